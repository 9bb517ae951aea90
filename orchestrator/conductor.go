package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/meridianlabs/ioa/bus"
	"github.com/meridianlabs/ioa/core"
	"github.com/meridianlabs/ioa/memory"
	"github.com/meridianlabs/ioa/messages"
	"github.com/meridianlabs/ioa/registry"
)

const strategistStepID = "plan"

// Conductor is a pure router: it holds no graph state of its own,
// dispatching each inbound message type to the orchestrator or the
// registry per §4.5. The one addition beyond the base spec is the
// optional Strategist round-trip, grounded on
// original_source/src/agents/strategist.py: when a STRATEGIST agent is
// registered, a freshly produced plan is routed through it once for
// revision before the orchestrator starts the graph.
type Conductor struct {
	orch        *Orchestrator
	registry    registry.Registry
	b           bus.Bus
	store       *memory.Store
	address     string
	plannerAddr string
	gatewayAddr string
	logger      core.Logger

	mu             sync.Mutex
	strategistDone map[string]bool
}

// NewConductor wires a Conductor listening at address, forwarding PLAN
// goals to plannerAddr and failure notifications to gatewayAddr (the
// SPEAKER role, per §7's failure-prompt policy).
func NewConductor(orch *Orchestrator, reg registry.Registry, b bus.Bus, store *memory.Store, address, plannerAddr, gatewayAddr string, logger core.Logger) *Conductor {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		logger = cal.WithComponent("conductor")
	}
	return &Conductor{
		orch:           orch,
		registry:       reg,
		b:              b,
		store:          store,
		address:        address,
		plannerAddr:    plannerAddr,
		gatewayAddr:    gatewayAddr,
		logger:         logger,
		strategistDone: make(map[string]bool),
	}
}

// Register installs the Conductor's dispatch handler at its own bus
// address.
func (c *Conductor) Register(ctx context.Context) error {
	return c.b.Register(c.address, c.handle)
}

func (c *Conductor) handle(ctx context.Context, msg interface{}) error {
	switch m := msg.(type) {
	case messages.UserQuery:
		return c.handleUserQuery(ctx, m)
	case messages.Thought:
		return c.handleThought(ctx, m)
	case messages.ReplanRequest:
		return c.handleReplan(ctx, m)
	case messages.AgentRegistration:
		return c.registry.Register(ctx, m.AgentType, m.Address)
	default:
		return fmt.Errorf("%w: conductor received unexpected message type %T", core.ErrValidation, msg)
	}
}

// handleUserQuery writes the raw query text into shared memory and
// asks the planner for a YAML plan.
func (c *Conductor) handleUserQuery(ctx context.Context, q messages.UserQuery) error {
	c.store.Set(memory.QueryKey(q.RequestID), q.Text)
	return c.sendPlanGoal(ctx, q.RequestID, q.Text)
}

// handleReplan re-issues the PLAN goal for requestID, reusing the
// query text preserved by Orchestrator.HandleFailure/requestReplan.
func (c *Conductor) handleReplan(ctx context.Context, r messages.ReplanRequest) error {
	query, _ := c.store.Get(memory.QueryKey(r.RequestID))
	return c.sendPlanGoal(ctx, r.RequestID, query)
}

func (c *Conductor) sendPlanGoal(ctx context.Context, requestID, query string) error {
	addr, found, err := c.registry.GetAgent(ctx, messages.AgentPlanner)
	if err != nil || !found {
		return fmt.Errorf("%w: no planner agent registered", core.ErrNotFound)
	}
	return c.b.Send(ctx, addr, messages.AgentGoal{
		RequestID: requestID,
		Type:      messages.GoalPlan,
		Content:   query,
	})
}

// handleThought routes a worker reply: FAILED aborts the graph, a PLAN
// thought starts (or, via the strategist, revises then starts) the
// graph, and every other RESOLVED thought is forwarded as a step
// completion.
func (c *Conductor) handleThought(ctx context.Context, t messages.Thought) error {
	if t.Type == messages.ThoughtFailed {
		if err := c.orch.HandleFailure(ctx, t.RequestID); err != nil {
			return err
		}
		return c.b.Send(ctx, c.gatewayAddr, messages.Response{
			RequestID: t.RequestID,
			Content:   t.Content,
			Type:      messages.ResponseFailure,
		})
	}

	if t.Metadata[messages.MetaGoalType] == string(messages.GoalPlan) {
		return c.handlePlanThought(ctx, t)
	}

	nodeID := t.Metadata[messages.MetaNodeID]
	return c.orch.HandleStepCompletion(ctx, t.RequestID, nodeID, t.Impressions)
}

func (c *Conductor) handlePlanThought(ctx context.Context, t messages.Thought) error {
	if len(t.Impressions) == 0 {
		return fmt.Errorf("%w: plan thought carried no impression key", core.ErrValidation)
	}
	planYAML, _ := c.store.Get(t.Impressions[0])

	strategistAddr, hasStrategist, err := c.registry.GetAgent(ctx, messages.AgentStrategist)
	if err == nil && hasStrategist && !c.consumeStrategistPass(t.RequestID) {
		return c.b.Send(ctx, strategistAddr, messages.AgentGoal{
			RequestID: t.RequestID,
			Type:      messages.GoalPlan,
			Content:   t.Impressions[0],
			Metadata:  map[string]string{messages.MetaStepID: strategistStepID},
		})
	}

	c.clearStrategistPass(t.RequestID)
	return c.orch.StartGraph(ctx, t.RequestID, planYAML)
}

// consumeStrategistPass reports whether requestID's plan has already
// been through the strategist once, marking it as pending-revision if
// not — this is what keeps the optional round-trip from looping
// forever between the planner's reply and the strategist's own reply,
// which both carry goal_type=PLAN.
func (c *Conductor) consumeStrategistPass(requestID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.strategistDone[requestID] {
		return true
	}
	c.strategistDone[requestID] = true
	return false
}

func (c *Conductor) clearStrategistPass(requestID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.strategistDone, requestID)
}
