// Package workers implements the Planner, Scout, Retrieve, Architect,
// and Compute agents: the contract common to all of them (read
// impression keys from SharedMemory, perform work, write impressions
// back, reply with a Thought) plus each worker's own task.
//
// Grounded on the teacher's core/agent.go BaseAgent lifecycle —
// register on startup, process one request type, reply through a bus —
// narrowed to message-passing instead of HTTP capability hosting.
package workers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/meridianlabs/ioa/bus"
	"github.com/meridianlabs/ioa/core"
	"github.com/meridianlabs/ioa/memory"
	"github.com/meridianlabs/ioa/messages"
)

// Task is the work a concrete worker performs for one AgentGoal; the
// goal's Content is passed unsplit (InputImpressions resolves it). It returns the impression
// names (not yet namespaced) it wrote, or an error to report as FAILED.
type Task func(ctx context.Context, goal messages.AgentGoal, store *memory.Store, requestID, stepID string) ([]string, error)

// TaskError lets a Task attach extra metadata to the FAILED Thought it
// produces (e.g. Compute's exit_code), beyond the node_id/step_id every
// failure already carries.
type TaskError struct {
	Err      error
	Metadata map[string]string
}

func (e *TaskError) Error() string { return e.Err.Error() }
func (e *TaskError) Unwrap() error { return e.Err }

// Worker wires a Task into the common register/receive/reply contract.
type Worker struct {
	agentType     messages.AgentType
	address       string
	conductorAddr string
	store         *memory.Store
	b             bus.Bus
	task          Task
	logger        core.Logger
}

// New returns a Worker of agentType at address, replying to conductorAddr,
// backed by store and driven by task.
func New(agentType messages.AgentType, address, conductorAddr string, store *memory.Store, b bus.Bus, task Task, logger core.Logger) *Worker {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		logger = cal.WithComponent(strings.ToLower(string(agentType)))
	}
	return &Worker{
		agentType:     agentType,
		address:       address,
		conductorAddr: conductorAddr,
		store:         store,
		b:             b,
		task:          task,
		logger:        logger,
	}
}

// Register announces this worker's type and address to the conductor
// and registers its own inbox handler on the bus.
func (w *Worker) Register(ctx context.Context) error {
	if err := w.b.Register(w.address, w.handle); err != nil {
		return err
	}
	return w.b.Send(ctx, w.conductorAddr, messages.AgentRegistration{AgentType: w.agentType, Address: w.address})
}

func (w *Worker) handle(ctx context.Context, msg interface{}) error {
	goal, ok := msg.(messages.AgentGoal)
	if !ok {
		return fmt.Errorf("%w: %s worker received unexpected message type %T", core.ErrValidation, w.agentType, msg)
	}

	nodeID := goal.Metadata[messages.MetaNodeID]
	stepID := goal.Metadata[messages.MetaStepID]

	impressionNames, err := w.task(ctx, goal, w.store, goal.RequestID, stepID)
	if err != nil {
		w.logger.WarnWithContext(ctx, "worker task failed", map[string]interface{}{
			"agent_type": string(w.agentType),
			"request_id": goal.RequestID,
			"node_id":    nodeID,
			"error":      err.Error(),
		})
		failureMetadata := map[string]string{messages.MetaNodeID: nodeID, messages.MetaStepID: stepID, messages.MetaGoalType: string(goal.Type)}
		var taskErr *TaskError
		if errors.As(err, &taskErr) {
			for k, v := range taskErr.Metadata {
				failureMetadata[k] = v
			}
		}
		return w.b.Send(ctx, w.conductorAddr, messages.Thought{
			RequestID: goal.RequestID,
			Type:      messages.ThoughtFailed,
			Content:   err.Error(),
			Metadata:  failureMetadata,
		})
	}

	keys := make([]string, len(impressionNames))
	for i, name := range impressionNames {
		keys[i] = memory.ImpressionKey(goal.RequestID, stepID, name)
	}

	return w.b.Send(ctx, w.conductorAddr, messages.Thought{
		RequestID:   goal.RequestID,
		Type:        messages.ThoughtResolved,
		Impressions: keys,
		Metadata:    map[string]string{messages.MetaNodeID: nodeID, messages.MetaStepID: stepID, messages.MetaGoalType: string(goal.Type)},
	})
}

// InputImpressions reads goal.Content as a whitespace/comma-separated
// list of SharedMemory keys (the concatenated predecessor impressions
// the orchestrator assembled) and resolves each to its stored value,
// skipping keys that are absent — per §7 a missing impression key is a
// validation concern the caller should have prevented, not a fatal
// worker error, so workers proceed with what resolves.
func InputImpressions(store *memory.Store, content string) []string {
	var out []string
	for _, key := range splitKeys(content) {
		if v, ok := store.Get(key); ok {
			out = append(out, v)
		}
	}
	return out
}

func splitKeys(content string) []string {
	fields := strings.FieldsFunc(content, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\t'
	})
	out := fields[:0]
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
