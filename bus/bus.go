// Package bus implements message delivery between the conductor,
// orchestrator, and workers. Addresses are opaque strings (in-process
// handler names, or URLs for HTTPBus); messages are any of the
// messages package's structs, dispatched by a type switch on the
// receiving end rather than a string-keyed handler table.
package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/meridianlabs/ioa/core"
)

// Handler processes one inbound message for a registered address.
type Handler func(ctx context.Context, msg interface{}) error

// Bus delivers messages to addresses registered via Register.
type Bus interface {
	Send(ctx context.Context, address string, msg interface{}) error
	Register(address string, handler Handler) error
}

// InProcessBus dispatches messages within one process: Send looks up
// the handler registered for the address and calls it synchronously on
// the caller's goroutine. It keeps no inbox channel and starts no
// goroutine of its own; it only owns delivery.
type InProcessBus struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   core.Logger
}

// NewInProcessBus returns an empty in-process bus.
func NewInProcessBus() *InProcessBus {
	return &InProcessBus{
		handlers: make(map[string]Handler),
		logger:   &core.NoOpLogger{},
	}
}

// SetLogger attaches a logger, tagged "bus" when component-aware.
func (b *InProcessBus) SetLogger(logger core.Logger) {
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		b.logger = cal.WithComponent("bus")
		return
	}
	b.logger = logger
}

// Register associates address with handler. Re-registering the same
// address replaces its handler.
func (b *InProcessBus) Register(address string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[address] = handler
	return nil
}

// Send delivers msg synchronously to address's handler.
func (b *InProcessBus) Send(ctx context.Context, address string, msg interface{}) error {
	b.mu.RLock()
	h, ok := b.handlers[address]
	b.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: no handler registered for address %q", core.ErrNotFound, address)
	}
	if err := h(ctx, msg); err != nil {
		b.logger.Warn("bus.send failed", map[string]interface{}{"address": address, "error": err.Error()})
		return err
	}
	return nil
}
