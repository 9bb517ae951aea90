package bus

import (
	"context"
	"testing"

	"github.com/meridianlabs/ioa/messages"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInProcessBusSendDeliversToHandler(t *testing.T) {
	b := NewInProcessBus()
	received := make(chan *messages.AgentGoal, 1)

	require.NoError(t, b.Register("planner", func(ctx context.Context, msg interface{}) error {
		goal := msg.(*messages.AgentGoal)
		received <- goal
		return nil
	}))

	goal := &messages.AgentGoal{RequestID: "r1", Type: messages.GoalTask, Content: "[]"}
	require.NoError(t, b.Send(context.Background(), "planner", goal))

	select {
	case got := <-received:
		assert.Equal(t, "r1", got.RequestID)
	default:
		t.Fatal("handler was not invoked")
	}
}

func TestInProcessBusSendToUnknownAddress(t *testing.T) {
	b := NewInProcessBus()
	err := b.Send(context.Background(), "nowhere", &messages.AgentGoal{})
	assert.Error(t, err)
}

func TestKindOfNamesAgentGoal(t *testing.T) {
	goal := messages.AgentGoal{RequestID: "r1", Type: messages.GoalTask, Content: "x"}
	kind, err := kindOf(goal)
	require.NoError(t, err)
	assert.Equal(t, "AgentGoal", kind)
}
