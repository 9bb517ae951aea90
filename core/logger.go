package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// ProductionLogger provides layered observability: structured JSON in
// cluster environments, human-readable text locally, and an optional
// metrics layer enabled once telemetry initializes.
type ProductionLogger struct {
	level       string
	debug       bool
	serviceName string
	format      string
	output      io.Writer

	metricsEnabled bool
}

// NewProductionLogger builds a Logger from the IOA_LOG_LEVEL/IOA_LOG_FORMAT/
// IOA_DEBUG environment triple for the given service name.
func NewProductionLogger(serviceName string) Logger {
	format := strings.ToLower(os.Getenv("IOA_LOG_FORMAT"))
	if format == "" {
		if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
			format = "json"
		} else {
			format = "text"
		}
	}
	level := strings.ToLower(os.Getenv("IOA_LOG_LEVEL"))
	if level == "" {
		level = "info"
	}
	debug := strings.EqualFold(os.Getenv("IOA_DEBUG"), "true") || level == "debug"

	logger := &ProductionLogger{
		level:       level,
		debug:       debug,
		serviceName: serviceName,
		format:      format,
		output:      os.Stdout,
	}
	trackLogger(logger)
	return logger
}

// WithComponent returns a Logger that tags every entry with component.
func (p *ProductionLogger) WithComponent(component string) Logger {
	return &componentLogger{base: p, component: component}
}

// EnableMetrics is called by the telemetry package once it has a
// MetricsRegistry wired up.
func (p *ProductionLogger) EnableMetrics() { p.metricsEnabled = true }

func (p *ProductionLogger) Info(msg string, fields map[string]interface{}) {
	p.logEvent("INFO", "", msg, fields, nil)
}
func (p *ProductionLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("INFO", "", msg, fields, ctx)
}
func (p *ProductionLogger) Error(msg string, fields map[string]interface{}) {
	p.logEvent("ERROR", "", msg, fields, nil)
}
func (p *ProductionLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("ERROR", "", msg, fields, ctx)
}
func (p *ProductionLogger) Warn(msg string, fields map[string]interface{}) {
	p.logEvent("WARN", "", msg, fields, nil)
}
func (p *ProductionLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("WARN", "", msg, fields, ctx)
}
func (p *ProductionLogger) Debug(msg string, fields map[string]interface{}) {
	if p.debug {
		p.logEvent("DEBUG", "", msg, fields, nil)
	}
}
func (p *ProductionLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	if p.debug {
		p.logEvent("DEBUG", "", msg, fields, ctx)
	}
}

func (p *ProductionLogger) logEvent(level, component, msg string, fields map[string]interface{}, ctx context.Context) {
	timestamp := time.Now().Format(time.RFC3339)

	if p.format == "json" {
		entry := map[string]interface{}{
			"timestamp": timestamp,
			"level":     level,
			"service":   p.serviceName,
			"message":   msg,
		}
		if component != "" {
			entry["component"] = component
		}
		if ctx != nil && p.metricsEnabled {
			for k, v := range getContextBaggage(ctx) {
				entry["trace."+k] = v
			}
		}
		for k, v := range fields {
			entry[k] = v
		}
		if data, err := json.Marshal(entry); err == nil {
			fmt.Fprintln(p.output, string(data))
		}
		return
	}

	traceInfo := ""
	if ctx != nil && p.metricsEnabled {
		if baggage := getContextBaggage(ctx); baggage["request_id"] != "" {
			traceInfo = fmt.Sprintf("[req=%s] ", baggage["request_id"])
		}
	}
	var fieldStr strings.Builder
	if len(fields) > 0 {
		fieldStr.WriteString(" ")
		for k, v := range fields {
			fmt.Fprintf(&fieldStr, "%s=%v ", k, v)
		}
	}
	comp := p.serviceName
	if component != "" {
		comp = p.serviceName + "/" + component
	}
	fmt.Fprintf(p.output, "%s [%s] [%s] %s%s%s\n", timestamp, level, comp, traceInfo, msg, fieldStr.String())

	if p.metricsEnabled {
		p.emitFrameworkMetric(level, component, ctx)
	}
}

func (p *ProductionLogger) emitFrameworkMetric(level, component string, ctx context.Context) {
	labels := []string{"level", level, "service", p.serviceName}
	if component != "" {
		labels = append(labels, "component", component)
	}
	if ctx != nil {
		emitMetricWithContext(ctx, "ioa.framework.log_events", 1.0, labels...)
	} else {
		emitMetric("ioa.framework.log_events", 1.0, labels...)
	}
}

// componentLogger tags every call with a fixed component name.
type componentLogger struct {
	base      *ProductionLogger
	component string
}

func (c *componentLogger) Info(msg string, fields map[string]interface{}) {
	c.base.logEvent("INFO", c.component, msg, fields, nil)
}
func (c *componentLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	c.base.logEvent("INFO", c.component, msg, fields, ctx)
}
func (c *componentLogger) Error(msg string, fields map[string]interface{}) {
	c.base.logEvent("ERROR", c.component, msg, fields, nil)
}
func (c *componentLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	c.base.logEvent("ERROR", c.component, msg, fields, ctx)
}
func (c *componentLogger) Warn(msg string, fields map[string]interface{}) {
	c.base.logEvent("WARN", c.component, msg, fields, nil)
}
func (c *componentLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	c.base.logEvent("WARN", c.component, msg, fields, ctx)
}
func (c *componentLogger) Debug(msg string, fields map[string]interface{}) {
	if c.base.debug {
		c.base.logEvent("DEBUG", c.component, msg, fields, nil)
	}
}
func (c *componentLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	if c.base.debug {
		c.base.logEvent("DEBUG", c.component, msg, fields, ctx)
	}
}
func (c *componentLogger) WithComponent(component string) Logger {
	return &componentLogger{base: c.base, component: component}
}

func emitMetric(name string, value float64, labels ...string) {
	if globalMetricsRegistry != nil {
		globalMetricsRegistry.Counter(name, labels...)
	}
}

func emitMetricWithContext(ctx context.Context, name string, value float64, labels ...string) {
	if globalMetricsRegistry != nil {
		globalMetricsRegistry.EmitWithContext(ctx, name, value, labels...)
	}
}

func getContextBaggage(ctx context.Context) map[string]string {
	if globalMetricsRegistry != nil {
		return globalMetricsRegistry.GetBaggage(ctx)
	}
	return make(map[string]string)
}
