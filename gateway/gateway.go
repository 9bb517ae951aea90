// Package gateway implements two roles that share one process: the
// public HTTP surface from §6 EXTERNAL INTERFACES (submit, poll,
// stream, crawler admin) and the SPEAKER agent that receives a
// finished graph's Response, narrates it through an LLM into
// user-facing markdown, and relays that text onward.
//
// Grounded on original_source/src/agents/gateway.py's GatewayAgent
// (queue-forward, cognition-stack narration, speaker/failure prompt
// pair, JSON/code-fence rejection with one retry) and
// original_source/src/gateway_http.py's FastAPI submit route. The HTTP
// layer itself is gin (see SPEC_FULL.md §6 AMBIENT notes); SSE is
// written directly against http.Flusher, matching teacher
// ui/transports/sse/sse.go.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/meridianlabs/ioa/bus"
	"github.com/meridianlabs/ioa/core"
	"github.com/meridianlabs/ioa/llmclient"
	"github.com/meridianlabs/ioa/messages"
)

// Request status values returned by GetStatus and carried on SSE events.
const (
	StatusPending = "pending"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// sseEvent is one payload delivered to a /api/stream_result subscriber,
// matching the external contract's {text, status} shape.
type sseEvent struct {
	Text   string `json:"text"`
	Status string `json:"status"`
}

// requestRecord tracks one in-flight or completed request's status,
// original query text (needed for the speaker prompt, since the
// Response that finalizes a graph carries no query of its own), and
// any live SSE subscribers.
type requestRecord struct {
	mu     sync.Mutex
	status string
	query  string
	text   strings.Builder
	subs   []chan sseEvent
}

func (r *requestRecord) snapshot() (status, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status, r.text.String()
}

func (r *requestRecord) append(chunk, status string) {
	r.mu.Lock()
	r.text.WriteString(chunk)
	r.status = status
	subs := make([]chan sseEvent, len(r.subs))
	copy(subs, r.subs)
	text := r.text.String()
	r.mu.Unlock()

	event := sseEvent{Text: text, Status: status}
	for _, ch := range subs {
		select {
		case ch <- event:
		default:
		}
	}
}

func (r *requestRecord) subscribe() chan sseEvent {
	ch := make(chan sseEvent, 8)
	r.mu.Lock()
	r.subs = append(r.subs, ch)
	r.mu.Unlock()
	return ch
}

func (r *requestRecord) unsubscribe(ch chan sseEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, s := range r.subs {
		if s == ch {
			r.subs = append(r.subs[:i], r.subs[i+1:]...)
			break
		}
	}
}

// httpDoer is satisfied by *http.Client; narrowed for testability.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Gateway is registered on the bus at address and receives each
// graph's finished or failed Response. It also backs the HTTP intake,
// polling, and streaming routes wired in server.go.
type Gateway struct {
	address       string
	conductorAddr string
	b             bus.Bus
	llm           *llmclient.Client
	model         string
	chatServerURL string
	httpClient    httpDoer
	logger        core.Logger

	mu       sync.Mutex
	requests map[string]*requestRecord
}

// New wires a Gateway. chatServerURL may be empty: when unset, the
// narrated answer is only ever available via polling/SSE, not relayed
// onward to an external chat server.
func New(address, conductorAddr string, b bus.Bus, llm *llmclient.Client, model, chatServerURL string, logger core.Logger) *Gateway {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		logger = cal.WithComponent("gateway")
	}
	return &Gateway{
		address:       address,
		conductorAddr: conductorAddr,
		b:             b,
		llm:           llm,
		model:         model,
		chatServerURL: chatServerURL,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		logger:        logger,
		requests:      make(map[string]*requestRecord),
	}
}

// Register installs the Gateway's bus handler at its own address.
func (g *Gateway) Register(ctx context.Context) error {
	return g.b.Register(g.address, g.handle)
}

func (g *Gateway) handle(ctx context.Context, msg interface{}) error {
	resp, ok := msg.(messages.Response)
	if !ok {
		return fmt.Errorf("%w: gateway received unexpected message type %T", core.ErrValidation, msg)
	}
	return g.handleResponse(ctx, resp)
}

func (g *Gateway) recordFor(requestID string) *requestRecord {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.requests[requestID]
	if !ok {
		r = &requestRecord{status: StatusPending}
		g.requests[requestID] = r
	}
	return r
}

// Submit mints (or reuses) bookkeeping for requestID, remembers its
// original query text, and forwards a UserQuery to the conductor —
// the shared path behind both POST /api/query and POST /submit.
func (g *Gateway) Submit(ctx context.Context, requestID, text string) error {
	r := g.recordFor(requestID)
	r.mu.Lock()
	r.query = text
	r.mu.Unlock()

	return g.b.Send(ctx, g.conductorAddr, messages.UserQuery{RequestID: requestID, Text: text})
}

// MarkAbandoned pre-populates requestID's status as failed without any
// accumulated text. Called once at startup for every request ID a
// SessionLedger reconciliation found still active from a prior process
// life, so a client that was polling that ID across the restart gets
// "failed" on its next poll instead of polling forever against an
// ID the fresh process has never heard of.
func (g *Gateway) MarkAbandoned(requestID string) {
	g.recordFor(requestID).append("", StatusFailed)
}

// GetStatus reports requestID's current status and accumulated text.
// ok is false only if the gateway holds no record for requestID; a
// record is created on submission, and also by MarkAbandoned,
// HandleResult, or an inbound Response.
func (g *Gateway) GetStatus(requestID string) (status, text string, ok bool) {
	g.mu.Lock()
	r, found := g.requests[requestID]
	g.mu.Unlock()
	if !found {
		return "", "", false
	}
	status, text = r.snapshot()
	return status, text, true
}

// Subscribe registers ch for incremental {text,status} events on
// requestID; the returned cancel func must be called once the
// subscriber disconnects.
func (g *Gateway) Subscribe(requestID string) (ch chan sseEvent, cancel func(), ok bool) {
	g.mu.Lock()
	r, found := g.requests[requestID]
	g.mu.Unlock()
	if !found {
		return nil, nil, false
	}
	ch = r.subscribe()
	return ch, func() { r.unsubscribe(ch) }, true
}

// HandleResult processes the external /api/result contract directly:
// {text, request_id, type}. type==-1 finalizes as success, type>=0
// appends. It is the HTTP-facing twin of handleResponse, used when a
// chat server (rather than the bus) is the one delivering chunks.
func (g *Gateway) HandleResult(requestID, text string, msgType int) {
	status := StatusPending
	if msgType < 0 {
		status = StatusDone
	}
	g.recordFor(requestID).append(text, status)
}

// handleResponse narrates a finished graph's Response through the
// SPEAKER prompt pair, validates the result carries no JSON/code
// fence, retries once if it does, records the outcome, and relays it
// to the configured chat server.
func (g *Gateway) handleResponse(ctx context.Context, resp messages.Response) error {
	r := g.recordFor(resp.RequestID)
	r.mu.Lock()
	query := r.query
	r.mu.Unlock()
	if query == "" {
		query = "your question"
	}

	failed := resp.Type == messages.ResponseFailure
	narrated, err := g.narrate(ctx, query, resp.Content, failed)
	if err != nil {
		g.logger.ErrorWithContext(ctx, "speaker narration failed, relaying raw content", map[string]interface{}{
			"request_id": resp.RequestID, "error": err.Error(),
		})
		narrated = resp.Content
	}

	status := StatusDone
	if failed {
		status = StatusFailed
	}
	r.append(narrated, status)

	return g.relayToChatServer(ctx, resp.RequestID, narrated)
}

func (g *Gateway) relayToChatServer(ctx context.Context, requestID, text string) error {
	if g.chatServerURL == "" {
		return nil
	}
	body, err := json.Marshal(map[string]string{"text": text, "request_id": requestID})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.chatServerURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.logger.ErrorWithContext(ctx, "failed to relay result to chat server", map[string]interface{}{
			"request_id": requestID, "error": err.Error(),
		})
		return fmt.Errorf("%w: %v", core.ErrTransport, err)
	}
	defer resp.Body.Close()
	return nil
}
