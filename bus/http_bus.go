package bus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/meridianlabs/ioa/core"
	"github.com/meridianlabs/ioa/messages"
)

// envelope tags a message with its kind so the receiving HTTP handler
// can unmarshal into the right concrete type before invoking its
// handler, mirroring the tagged-union dispatch the orchestrator uses
// in-process.
type envelope struct {
	Kind string          `json:"kind"`
	Body json.RawMessage `json:"body"`
}

func kindOf(msg interface{}) (string, error) {
	switch msg.(type) {
	case messages.UserQuery, *messages.UserQuery:
		return "UserQuery", nil
	case messages.AgentGoal, *messages.AgentGoal:
		return "AgentGoal", nil
	case messages.Thought, *messages.Thought:
		return "Thought", nil
	case messages.Response, *messages.Response:
		return "Response", nil
	case messages.ReplanRequest, *messages.ReplanRequest:
		return "ReplanRequest", nil
	case messages.AgentRegistration, *messages.AgentRegistration:
		return "AgentRegistration", nil
	default:
		return "", fmt.Errorf("bus: unknown message type %T", msg)
	}
}

// DecodeEnvelope unmarshals an HTTP request body into the concrete
// message type named by its envelope kind, as a value rather than a
// pointer — every production handle() (workers.Worker.handle,
// orchestrator.Conductor.handle, gateway.Gateway.handle) type-switches
// or asserts on the value type, matching how InProcessBus delivers
// messages, so HTTPBus must decode the same way for the two
// transports to be interchangeable.
func DecodeEnvelope(data []byte) (interface{}, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	switch env.Kind {
	case "UserQuery":
		var m messages.UserQuery
		return m, json.Unmarshal(env.Body, &m)
	case "AgentGoal":
		var m messages.AgentGoal
		return m, json.Unmarshal(env.Body, &m)
	case "Thought":
		var m messages.Thought
		return m, json.Unmarshal(env.Body, &m)
	case "Response":
		var m messages.Response
		return m, json.Unmarshal(env.Body, &m)
	case "ReplanRequest":
		var m messages.ReplanRequest
		return m, json.Unmarshal(env.Body, &m)
	case "AgentRegistration":
		var m messages.AgentRegistration
		return m, json.Unmarshal(env.Body, &m)
	default:
		return nil, fmt.Errorf("bus: unknown envelope kind %q", env.Kind)
	}
}

// HTTPBus delivers messages across processes: addresses are URLs,
// Send POSTs a JSON envelope, and Register hosts a handler under
// "/goal" on an http.ServeMux the caller starts. Grounded on the
// teacher's agent self-hosting pattern (core/agent.go's Start(ctx,
// port)), narrowed to one message endpoint instead of a capability
// catalog.
type HTTPBus struct {
	client *http.Client
	mux    *http.ServeMux
	logger core.Logger
}

// NewHTTPBus returns an HTTPBus with a 30s client timeout and an empty
// mux that callers pass to http.ListenAndServe.
func NewHTTPBus(mux *http.ServeMux) *HTTPBus {
	return &HTTPBus{
		client: &http.Client{Timeout: 30 * time.Second},
		mux:    mux,
		logger: &core.NoOpLogger{},
	}
}

// Send POSTs msg, enveloped by kind, to address+"/goal".
func (h *HTTPBus) Send(ctx context.Context, address string, msg interface{}) error {
	kind, err := kindOf(msg)
	if err != nil {
		return err
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	env := envelope{Kind: kind, Body: body}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, address+"/goal", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrTransport, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: bus send to %s returned status %d", core.ErrTransport, address, resp.StatusCode)
	}
	return nil
}

// Register mounts handler at "/goal" on the bus's mux. address is
// unused here (the mux already knows its own URL); it exists to
// satisfy the Bus interface uniformly with InProcessBus.
func (h *HTTPBus) Register(address string, handler Handler) error {
	h.mux.HandleFunc("/goal", func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(r.Body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		msg, err := DecodeEnvelope(buf.Bytes())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := handler(r.Context(), msg); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	return nil
}
