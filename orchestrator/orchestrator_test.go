package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianlabs/ioa/bus"
	"github.com/meridianlabs/ioa/ledger"
	"github.com/meridianlabs/ioa/memory"
	"github.com/meridianlabs/ioa/messages"
	"github.com/meridianlabs/ioa/registry"
)

// memLedger implements ledger.Ledger with plain in-memory maps,
// exercising only the hash/set operations SessionLedger needs.
type memLedger struct {
	hashes map[string]map[string][]byte
	sets   map[string]map[string]bool
}

func newMemLedger() *memLedger {
	return &memLedger{hashes: map[string]map[string][]byte{}, sets: map[string]map[string]bool{}}
}
func (m *memLedger) key(ns, k string) string { return ns + ":" + k }
func (m *memLedger) HSet(ctx context.Context, ns, key, field string, value []byte) error {
	k := m.key(ns, key)
	if m.hashes[k] == nil {
		m.hashes[k] = map[string][]byte{}
	}
	m.hashes[k][field] = value
	return nil
}
func (m *memLedger) HGet(ctx context.Context, ns, key, field string) ([]byte, bool, error) {
	v, ok := m.hashes[m.key(ns, key)][field]
	return v, ok, nil
}
func (m *memLedger) HExists(ctx context.Context, ns, key, field string) (bool, error) {
	_, ok, _ := m.HGet(ctx, ns, key, field)
	return ok, nil
}
func (m *memLedger) HDel(ctx context.Context, ns, key, field string) error {
	delete(m.hashes[m.key(ns, key)], field)
	return nil
}
func (m *memLedger) HIncrBy(ctx context.Context, ns, key, field string, delta int64) (int64, error) {
	return 0, nil
}
func (m *memLedger) SAdd(ctx context.Context, ns, key, member string) (int64, error) {
	k := m.key(ns, key)
	if m.sets[k] == nil {
		m.sets[k] = map[string]bool{}
	}
	m.sets[k][member] = true
	return 1, nil
}
func (m *memLedger) SIsMember(ctx context.Context, ns, key, member string) (bool, error) {
	return m.sets[m.key(ns, key)][member], nil
}
func (m *memLedger) SMembers(ctx context.Context, ns, key string) ([]string, error) {
	var out []string
	for member := range m.sets[m.key(ns, key)] {
		out = append(out, member)
	}
	return out, nil
}
func (m *memLedger) SRem(ctx context.Context, ns, key, member string) error {
	delete(m.sets[m.key(ns, key)], member)
	return nil
}
func (m *memLedger) LPush(ctx context.Context, ns, key, value string) error { return nil }
func (m *memLedger) BRPop(ctx context.Context, timeout time.Duration, ns, key string) (string, bool, error) {
	return "", false, nil
}
func (m *memLedger) LLen(ctx context.Context, ns, key string) (int64, error)         { return 0, nil }
func (m *memLedger) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return true, nil
}
func (m *memLedger) ReleaseLock(ctx context.Context, key string) error { return nil }
func (m *memLedger) HealthCheck(ctx context.Context) error             { return nil }

const twoNodePlan = `
graph:
  nodes:
    - {id: n1, type: RETRIEVE}
    - {id: n2, type: SYNTHESIZE}
  edges:
    - {from: n1, to: n2}
  entry_nodes: [n1]
  terminal_node: n2
`

func newTestOrchestrator(t *testing.T) (*Orchestrator, *bus.InProcessBus, *registry.InMemory, *memory.Store) {
	t.Helper()
	b := bus.NewInProcessBus()
	reg := registry.NewInMemory()
	store := memory.New()
	o := NewOrchestrator(reg, b, store, "conductor", "gateway", nil)
	return o, b, reg, store
}

func TestStartGraphDispatchesEntryNode(t *testing.T) {
	o, b, reg, _ := newTestOrchestrator(t)
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, messages.AgentRetrieve, "retrieve-1"))

	var received messages.AgentGoal
	require.NoError(t, b.Register("retrieve-1", func(ctx context.Context, msg interface{}) error {
		received = msg.(messages.AgentGoal)
		return nil
	}))

	require.NoError(t, o.StartGraph(ctx, "req1", twoNodePlan))

	assert.Equal(t, "req1", received.RequestID)
	assert.Equal(t, messages.GoalTask, received.Type)
	assert.Equal(t, "n1", received.Metadata[messages.MetaNodeID])
	assert.Equal(t, "1", received.Metadata[messages.MetaStepID])
}

func TestHandleStepCompletionAdvancesAndFinalizes(t *testing.T) {
	o, b, reg, store := newTestOrchestrator(t)
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, messages.AgentRetrieve, "retrieve-1"))
	require.NoError(t, reg.Register(ctx, messages.AgentSynthesize, "synth-1"))

	var n2Goal messages.AgentGoal
	require.NoError(t, b.Register("retrieve-1", func(ctx context.Context, msg interface{}) error { return nil }))
	require.NoError(t, b.Register("synth-1", func(ctx context.Context, msg interface{}) error {
		n2Goal = msg.(messages.AgentGoal)
		return nil
	}))

	var finalResponse messages.Response
	require.NoError(t, b.Register("gateway", func(ctx context.Context, msg interface{}) error {
		finalResponse = msg.(messages.Response)
		return nil
	}))

	require.NoError(t, o.StartGraph(ctx, "req1", twoNodePlan))

	store.Set("req1:1:retrieved_context", `["doc1","doc2"]`)
	require.NoError(t, o.HandleStepCompletion(ctx, "req1", "n1", []string{"req1:1:retrieved_context"}))

	assert.Equal(t, "req1:1:retrieved_context", n2Goal.Content)
	assert.Equal(t, "n2", n2Goal.Metadata[messages.MetaNodeID])

	store.Set("req1:2:final_answer", "the answer")
	require.NoError(t, o.HandleStepCompletion(ctx, "req1", "n2", []string{"req1:2:final_answer"}))

	assert.Equal(t, "req1", finalResponse.RequestID)
	assert.Equal(t, "the answer", finalResponse.Content)
	assert.Equal(t, -1, finalResponse.Type)

	_, stillTracked := o.stateFor("req1")
	assert.False(t, stillTracked, "graph state should be dropped after finalize")
}

func TestHandleFailurePreservesQuery(t *testing.T) {
	o, _, _, store := newTestOrchestrator(t)
	ctx := context.Background()

	store.Set(memory.QueryKey("req1"), "original question")
	store.Set("req1:1:some_impression", "value")

	require.NoError(t, o.HandleFailure(ctx, "req1"))

	q, ok := store.Get(memory.QueryKey("req1"))
	require.True(t, ok)
	assert.Equal(t, "original question", q)

	_, ok = store.Get("req1:1:some_impression")
	assert.False(t, ok)
}

func TestSessionLedgerTracksRequestAcrossFinalizeAndReconcile(t *testing.T) {
	o, b, reg, store := newTestOrchestrator(t)
	ctx := context.Background()

	sessions := ledger.NewSessionLedger(newMemLedger())
	o.SetSessions(sessions)

	require.NoError(t, reg.Register(ctx, messages.AgentRetrieve, "retrieve-1"))
	require.NoError(t, reg.Register(ctx, messages.AgentSynthesize, "synth-1"))
	require.NoError(t, b.Register("retrieve-1", func(ctx context.Context, msg interface{}) error { return nil }))
	require.NoError(t, b.Register("synth-1", func(ctx context.Context, msg interface{}) error { return nil }))
	require.NoError(t, b.Register("gateway", func(ctx context.Context, msg interface{}) error { return nil }))

	require.NoError(t, o.StartGraph(ctx, "req1", twoNodePlan))

	// A second, still in-flight request: never finalized, so it must
	// survive a "restart" (a fresh Reconcile call) as abandoned.
	require.NoError(t, o.StartGraph(ctx, "req2", twoNodePlan))

	store.Set("req1:1:retrieved_context", `["doc1"]`)
	require.NoError(t, o.HandleStepCompletion(ctx, "req1", "n1", []string{"req1:1:retrieved_context"}))
	store.Set("req1:2:final_answer", "the answer")
	require.NoError(t, o.HandleStepCompletion(ctx, "req1", "n2", []string{"req1:2:final_answer"}))

	abandoned, err := sessions.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"req2"}, abandoned)
}

func TestDispatchRequeuesNodeWithNoRegisteredAgent(t *testing.T) {
	o, b, reg, _ := newTestOrchestrator(t)
	ctx := context.Background()

	// No RETRIEVE agent registered yet: the first dispatch tick must
	// requeue n1 rather than drop it.
	require.NoError(t, o.StartGraph(ctx, "req1", twoNodePlan))

	var received messages.AgentGoal
	gotGoal := false
	require.NoError(t, b.Register("retrieve-1", func(ctx context.Context, msg interface{}) error {
		received = msg.(messages.AgentGoal)
		gotGoal = true
		return nil
	}))
	require.NoError(t, reg.Register(ctx, messages.AgentRetrieve, "retrieve-1"))

	state, ok := o.stateFor("req1")
	require.True(t, ok)
	o.dispatchTick(ctx, "req1", state)

	assert.True(t, gotGoal, "n1 should still be dispatchable once an agent registers")
	assert.Equal(t, "n1", received.Metadata[messages.MetaNodeID])
}
