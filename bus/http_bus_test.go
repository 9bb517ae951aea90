package bus_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianlabs/ioa/bus"
	"github.com/meridianlabs/ioa/memory"
	"github.com/meridianlabs/ioa/messages"
	"github.com/meridianlabs/ioa/workers"
)

// TestHTTPBusRoundTripIntoWorkerHandle exercises the actual HTTP wire
// path end to end, mirroring the standalone scale-out topology where
// the conductor and each worker are separate processes (separate
// muxes) talking over HTTPBus: a real workers.Worker registers its
// inbox, and a goal sent over HTTP must decode into the value type its
// handle() type-asserts on.
func TestHTTPBusRoundTripIntoWorkerHandle(t *testing.T) {
	conductorMux := http.NewServeMux()
	conductorServer := httptest.NewServer(conductorMux)
	defer conductorServer.Close()
	conductorBus := bus.NewHTTPBus(conductorMux)

	resolved := make(chan messages.Thought, 1)
	unexpected := make(chan interface{}, 1)
	require.NoError(t, conductorBus.Register(conductorServer.URL, func(ctx context.Context, msg interface{}) error {
		switch m := msg.(type) {
		case messages.AgentRegistration:
			// the worker's own Register announces itself first.
		case messages.Thought:
			resolved <- m
		default:
			unexpected <- msg
		}
		return nil
	}))

	workerMux := http.NewServeMux()
	workerServer := httptest.NewServer(workerMux)
	defer workerServer.Close()
	workerBus := bus.NewHTTPBus(workerMux)

	store := memory.New()
	task := func(ctx context.Context, goal messages.AgentGoal, s *memory.Store, requestID, stepID string) ([]string, error) {
		s.Set(memory.ImpressionKey(requestID, stepID, "out"), "value")
		return []string{"out"}, nil
	}

	w := workers.New(messages.AgentRetrieve, workerServer.URL, conductorServer.URL, store, workerBus, task, nil)
	require.NoError(t, w.Register(context.Background()))

	require.NoError(t, workerBus.Send(context.Background(), workerServer.URL, messages.AgentGoal{
		RequestID: "req1",
		Type:      messages.GoalTask,
		Metadata:  map[string]string{messages.MetaNodeID: "n1", messages.MetaStepID: "s1"},
	}))

	select {
	case thought := <-resolved:
		assert.Equal(t, "req1", thought.RequestID)
		assert.Equal(t, messages.ThoughtResolved, thought.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("conductor handler was not invoked")
	}
}
