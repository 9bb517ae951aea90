package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianlabs/ioa/bus"
	"github.com/meridianlabs/ioa/memory"
	"github.com/meridianlabs/ioa/messages"
	"github.com/meridianlabs/ioa/registry"
)

func newTestConductor(t *testing.T) (*Conductor, *Orchestrator, *bus.InProcessBus, *registry.InMemory, *memory.Store) {
	t.Helper()
	b := bus.NewInProcessBus()
	reg := registry.NewInMemory()
	store := memory.New()
	o := NewOrchestrator(reg, b, store, "conductor", "gateway", nil)
	c := NewConductor(o, reg, b, store, "conductor", "planner", "gateway", nil)
	require.NoError(t, c.Register(context.Background()))
	require.NoError(t, b.Register("gateway", func(ctx context.Context, msg interface{}) error { return nil }))
	return c, o, b, reg, store
}

func TestConductorUserQueryWritesQueryAndSendsPlanGoal(t *testing.T) {
	c, _, b, reg, store := newTestConductor(t)
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, messages.AgentPlanner, "planner-1"))

	var received messages.AgentGoal
	require.NoError(t, b.Register("planner-1", func(ctx context.Context, msg interface{}) error {
		received = msg.(messages.AgentGoal)
		return nil
	}))

	require.NoError(t, b.Send(ctx, "conductor", messages.UserQuery{RequestID: "req1", Text: "what is 2+2?"}))

	q, ok := store.Get(memory.QueryKey("req1"))
	require.True(t, ok)
	assert.Equal(t, "what is 2+2?", q)
	assert.Equal(t, messages.GoalPlan, received.Type)
	assert.Equal(t, "what is 2+2?", received.Content)
	_ = c
}

func TestConductorForwardsPlanThoughtToOrchestratorWithoutStrategist(t *testing.T) {
	c, o, b, reg, store := newTestConductor(t)
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, messages.AgentRetrieve, "retrieve-1"))
	require.NoError(t, b.Register("retrieve-1", func(ctx context.Context, msg interface{}) error { return nil }))

	store.Set("req1:0:plan", twoNodePlan)
	require.NoError(t, b.Send(ctx, "conductor", messages.Thought{
		RequestID:   "req1",
		Type:        messages.ThoughtResolved,
		Impressions: []string{"req1:0:plan"},
		Metadata:    map[string]string{messages.MetaGoalType: string(messages.GoalPlan)},
	}))

	_, tracked := o.stateFor("req1")
	assert.True(t, tracked, "orchestrator should have started the graph directly, no strategist registered")
	_ = c
}

func TestConductorRoutesPlanThroughStrategistOnce(t *testing.T) {
	c, o, b, reg, store := newTestConductor(t)
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, messages.AgentStrategist, "strategist-1"))
	require.NoError(t, reg.Register(ctx, messages.AgentRetrieve, "retrieve-1"))
	require.NoError(t, b.Register("retrieve-1", func(ctx context.Context, msg interface{}) error { return nil }))

	var strategistCalls int
	require.NoError(t, b.Register("strategist-1", func(ctx context.Context, msg interface{}) error {
		goal := msg.(messages.AgentGoal)
		strategistCalls++
		plan, _ := store.Get(goal.Content)
		store.Set("req1:plan:revised_plan", plan)
		return b.Send(ctx, "conductor", messages.Thought{
			RequestID:   goal.RequestID,
			Type:        messages.ThoughtResolved,
			Impressions: []string{"req1:plan:revised_plan"},
			Metadata:    map[string]string{messages.MetaGoalType: string(messages.GoalPlan)},
		})
	}))

	store.Set("req1:0:plan", twoNodePlan)
	require.NoError(t, b.Send(ctx, "conductor", messages.Thought{
		RequestID:   "req1",
		Type:        messages.ThoughtResolved,
		Impressions: []string{"req1:0:plan"},
		Metadata:    map[string]string{messages.MetaGoalType: string(messages.GoalPlan)},
	}))

	assert.Equal(t, 1, strategistCalls, "strategist should be consulted exactly once, not looped")
	_, tracked := o.stateFor("req1")
	assert.True(t, tracked, "orchestrator should start the graph after the strategist's single pass")
	_ = c
}

func TestConductorFailedThoughtAbortsGraph(t *testing.T) {
	c, o, b, reg, store := newTestConductor(t)
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, messages.AgentRetrieve, "retrieve-1"))
	require.NoError(t, b.Register("retrieve-1", func(ctx context.Context, msg interface{}) error { return nil }))
	require.NoError(t, o.StartGraph(ctx, "req1", twoNodePlan))
	store.Set(memory.QueryKey("req1"), "original question")

	var failureResponse messages.Response
	require.NoError(t, b.Register("gateway", func(ctx context.Context, msg interface{}) error {
		failureResponse = msg.(messages.Response)
		return nil
	}))

	require.NoError(t, b.Send(ctx, "conductor", messages.Thought{RequestID: "req1", Type: messages.ThoughtFailed, Content: "boom"}))

	_, tracked := o.stateFor("req1")
	assert.False(t, tracked)
	q, ok := store.Get(memory.QueryKey("req1"))
	require.True(t, ok)
	assert.Equal(t, "original question", q)
	assert.Equal(t, messages.ResponseFailure, failureResponse.Type)
	assert.Equal(t, "boom", failureResponse.Content)
	_ = c
}

func TestConductorRegistersAgentOnRegistration(t *testing.T) {
	_, _, b, reg, _ := newTestConductor(t)
	ctx := context.Background()

	require.NoError(t, b.Send(ctx, "conductor", messages.AgentRegistration{AgentType: messages.AgentCompute, Address: "compute-1"}))

	addr, found, err := reg.GetAgent(ctx, messages.AgentCompute)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "compute-1", addr)
}
