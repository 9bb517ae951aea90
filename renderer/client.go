// Package renderer is a thin client over the external page-rendering
// service named WEB_PERCEPTOR_URL by the spec. Grounded on the teacher's
// ai/providers request/response pattern, narrowed to the single
// fetch-and-extract-links call the Scout worker and the crawler need.
//
// A render failure or timeout is not surfaced as a transport error: per
// the external interface contract, the caller gets back a Result with an
// empty Body rather than a non-2xx response, so upstream callers treat
// "nothing rendered" as ordinary data rather than a fault to retry.
package renderer

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/meridianlabs/ioa/core"
)

// Result is what the render service returns for one URL.
type Result struct {
	URL   string   `json:"url"`
	Body  string   `json:"body"`
	Hrefs []string `json:"hrefs"`
}

// Client talks to WEB_PERCEPTOR_URL, the full render endpoint (the
// config default already includes the "/render" path, matching the
// external spec's single POST /render contract).
type Client struct {
	endpoint string
	http     *http.Client
	logger   core.Logger
}

// New returns a Client against endpoint (config.Config.WebPerceptorURL).
func New(endpoint string, logger core.Logger) *Client {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		logger = cal.WithComponent("renderer")
	}
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 0}, // per-request timeout is carried in the payload and ctx
		logger:   logger,
	}
}

type renderRequest struct {
	URL     string `json:"url"`
	Timeout int    `json:"timeout"`
}

// Render asks the renderer to fetch url, waiting up to timeout for it to
// finish. On any transport error, non-2xx status, or undecodable body,
// Render returns an empty-bodied Result rather than an error — a page
// that fails to render is a normal outcome for callers, not a fault.
func (c *Client) Render(ctx context.Context, url string, timeout time.Duration) Result {
	body, err := json.Marshal(renderRequest{URL: url, Timeout: int(timeout.Seconds())})
	if err != nil {
		c.logger.Warn("renderer request marshal failed", map[string]interface{}{"url": url, "error": err.Error()})
		return Result{URL: url}
	}

	reqCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, timeout+5*time.Second)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		c.logger.Warn("renderer request build failed", map[string]interface{}{"url": url, "error": err.Error()})
		return Result{URL: url}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("renderer call failed", map[string]interface{}{"url": url, "error": err.Error()})
		return Result{URL: url}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		c.logger.Warn("renderer returned non-2xx", map[string]interface{}{"url": url, "status": resp.StatusCode})
		return Result{URL: url}
	}

	var out Result
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.logger.Warn("renderer response decode failed", map[string]interface{}{"url": url, "error": err.Error()})
		return Result{URL: url}
	}
	if out.URL == "" {
		out.URL = url
	}
	return out
}
