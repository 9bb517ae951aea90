package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionLedgerReconcileFindsAbandonedRequests(t *testing.T) {
	l := newFakeLedger()
	s := NewSessionLedger(l)
	ctx := context.Background()

	require.NoError(t, s.Begin(ctx, "req1"))
	require.NoError(t, s.Begin(ctx, "req2"))
	require.NoError(t, s.Complete(ctx, "req2"))

	abandoned, err := s.Reconcile(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"req1"}, abandoned)
}

func TestSessionLedgerReconcileIsIdempotent(t *testing.T) {
	l := newFakeLedger()
	s := NewSessionLedger(l)
	ctx := context.Background()

	require.NoError(t, s.Begin(ctx, "req1"))

	first, err := s.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"req1"}, first)

	second, err := s.Reconcile(ctx)
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestSessionLedgerCompleteRemovesFromActiveSet(t *testing.T) {
	l := newFakeLedger()
	s := NewSessionLedger(l)
	ctx := context.Background()

	require.NoError(t, s.Begin(ctx, "req1"))
	require.NoError(t, s.Complete(ctx, "req1"))

	abandoned, err := s.Reconcile(ctx)
	require.NoError(t, err)
	assert.Empty(t, abandoned)
}
