// Package orchestrator implements the per-request execution graph
// dispatcher (Orchestrator) and the message router sitting in front of
// it (Conductor). Grounded on original_source/src/orchestrator.py's
// GraphExecutionManager (Kahn's-algorithm dispatch, node_outputs
// fan-in) and original_source/src/orchestrator_agent.py's routing
// table, translated onto graph.State and a bus.Bus instead of uagents'
// own message loop.
package orchestrator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/meridianlabs/ioa/bus"
	"github.com/meridianlabs/ioa/core"
	"github.com/meridianlabs/ioa/graph"
	"github.com/meridianlabs/ioa/ledger"
	"github.com/meridianlabs/ioa/memory"
	"github.com/meridianlabs/ioa/messages"
	"github.com/meridianlabs/ioa/registry"
	"github.com/meridianlabs/ioa/telemetry"
)

// Orchestrator owns map[request_id]*graph.State and drives the
// scheduling algorithm from §4.4: dispatch ready nodes, record
// completions, finalize or re-plan.
//
// No lock spans a suspension point: the mutex here only ever guards
// the states map itself, never a Send or Ledger/Memory call, since
// graph.State already serializes its own mutations independently.
type Orchestrator struct {
	mu     sync.RWMutex
	states map[string]*graph.State

	registry      registry.Registry
	b             bus.Bus
	store         *memory.Store
	conductorAddr string
	gatewayAddr   string
	logger        core.Logger

	sessions *ledger.SessionLedger
}

// NewOrchestrator wires an Orchestrator against its registry, bus, and
// shared memory. conductorAddr receives ReplanRequests; gatewayAddr
// receives the final Response for each completed graph.
func NewOrchestrator(reg registry.Registry, b bus.Bus, store *memory.Store, conductorAddr, gatewayAddr string, logger core.Logger) *Orchestrator {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		logger = cal.WithComponent("orchestrator")
	}
	return &Orchestrator{
		states:        make(map[string]*graph.State),
		registry:      reg,
		b:             b,
		store:         store,
		conductorAddr: conductorAddr,
		gatewayAddr:   gatewayAddr,
		logger:        logger,
	}
}

// SetSessions attaches restart-recovery bookkeeping; without it the
// Orchestrator behaves exactly as before (in-memory state only, no
// abandoned-request detection across a restart).
func (o *Orchestrator) SetSessions(sessions *ledger.SessionLedger) {
	o.sessions = sessions
}

// StartGraph parses planYAML and begins a fresh graph.State for
// requestID, discarding any prior one — a re-plan shares request_id but
// always produces a brand new graph. An invalid plan is treated exactly
// like a FAILED thought, per §4.4.
func (o *Orchestrator) StartGraph(ctx context.Context, requestID, planYAML string) error {
	plan, err := graph.ParsePlan(planYAML)
	if err != nil {
		o.logger.WarnWithContext(ctx, "invalid plan, aborting graph", map[string]interface{}{
			"request_id": requestID, "error": err.Error(),
		})
		return o.HandleFailure(ctx, requestID)
	}

	state := graph.NewState(plan)
	o.mu.Lock()
	o.states[requestID] = state
	o.mu.Unlock()

	if o.sessions != nil {
		if err := o.sessions.Begin(ctx, requestID); err != nil {
			o.logger.WarnWithContext(ctx, "session ledger begin failed, restart recovery unavailable for this request", map[string]interface{}{
				"request_id": requestID, "error": err.Error(),
			})
		}
	}

	telemetry.Counter("orchestrator.graph_started", "request_id", requestID)
	o.dispatchTick(ctx, requestID, state)
	return nil
}

func (o *Orchestrator) stateFor(requestID string) (*graph.State, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	s, ok := o.states[requestID]
	return s, ok
}

func (o *Orchestrator) dropState(requestID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.states, requestID)
}

// dispatchTick drains the ready queue: for each node it resolves an
// agent address from the registry and sends an AgentGoal with the
// fan-in content (concatenated predecessor impression keys). A node
// whose type has no registered agent, or whose send fails, is requeued
// and dispatch stops for this tick — it stays at the front of the
// queue and is retried on the next completion-triggered tick.
func (o *Orchestrator) dispatchTick(ctx context.Context, requestID string, state *graph.State) {
	for {
		item, ok := state.NextReady()
		if !ok {
			return
		}

		addr, found, err := o.registry.GetAgent(ctx, messages.AgentType(item.Node.Type))
		if err != nil || !found {
			state.Requeue(item.Node.ID)
			o.logger.WarnWithContext(ctx, "no agent registered for node type, will retry", map[string]interface{}{
				"request_id": requestID, "node_id": item.Node.ID, "agent_type": item.Node.Type,
			})
			return
		}

		goal := messages.AgentGoal{
			RequestID: requestID,
			Type:      messages.GoalTask,
			Content:   strings.Join(item.Inputs, ","),
			Metadata: map[string]string{
				messages.MetaNodeID: item.Node.ID,
				messages.MetaStepID: strconv.Itoa(item.StepID),
			},
		}
		if err := o.b.Send(ctx, addr, goal); err != nil {
			o.logger.WarnWithContext(ctx, "dispatch send failed, requeueing node", map[string]interface{}{
				"request_id": requestID, "node_id": item.Node.ID, "error": err.Error(),
			})
			state.Requeue(item.Node.ID)
			return
		}
	}
}

// HandleStepCompletion processes a RESOLVED thought for one node:
// record its impressions, re-run dispatch, and either finalize the
// request (graph complete) or request a re-plan (graph stalled).
func (o *Orchestrator) HandleStepCompletion(ctx context.Context, requestID, nodeID string, impressions []string) error {
	state, ok := o.stateFor(requestID)
	if !ok {
		return fmt.Errorf("%w: no active graph for request %s", core.ErrNotFound, requestID)
	}

	state.OnNodeComplete(nodeID, impressions)

	if state.IsComplete() {
		return o.finalize(ctx, requestID, state)
	}

	o.dispatchTick(ctx, requestID, state)

	if state.HasStalled() {
		return o.requestReplan(ctx, requestID, "execution graph stalled with no ready or running nodes")
	}
	return nil
}

func (o *Orchestrator) finalize(ctx context.Context, requestID string, state *graph.State) error {
	key, ok := state.TerminalImpression()
	var content string
	if ok {
		content, _ = o.store.Get(key)
	}

	telemetry.Counter("orchestrator.graph_completed", "request_id", requestID)
	o.dropState(requestID)
	o.store.ClearSession(requestID, false)
	o.completeSession(ctx, requestID)

	return o.b.Send(ctx, o.gatewayAddr, messages.Response{RequestID: requestID, Content: content, Type: -1})
}

func (o *Orchestrator) requestReplan(ctx context.Context, requestID, reason string) error {
	o.dropState(requestID)
	o.store.ClearSession(requestID, true)
	telemetry.Counter("orchestrator.replan_requested", "request_id", requestID)
	return o.b.Send(ctx, o.conductorAddr, messages.ReplanRequest{RequestID: requestID, Reason: reason})
}

// HandleFailure aborts requestID's graph, if any, and clears its
// session while preserving the original query so a re-plan can reuse
// it without the user resubmitting.
func (o *Orchestrator) HandleFailure(ctx context.Context, requestID string) error {
	o.dropState(requestID)
	o.store.ClearSession(requestID, true)
	o.completeSession(ctx, requestID)
	telemetry.Counter("orchestrator.graph_failed", "request_id", requestID)
	return nil
}

func (o *Orchestrator) completeSession(ctx context.Context, requestID string) {
	if o.sessions == nil {
		return
	}
	if err := o.sessions.Complete(ctx, requestID); err != nil {
		o.logger.WarnWithContext(ctx, "session ledger complete failed", map[string]interface{}{
			"request_id": requestID, "error": err.Error(),
		})
	}
}
