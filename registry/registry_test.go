package registry

import (
	"context"
	"testing"

	"github.com/meridianlabs/ioa/messages"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRegisterIdempotent(t *testing.T) {
	ctx := context.Background()
	r := NewInMemory()

	require.NoError(t, r.Register(ctx, messages.AgentScout, "addr-1"))
	require.NoError(t, r.Register(ctx, messages.AgentScout, "addr-1"))
	require.NoError(t, r.Register(ctx, messages.AgentScout, "addr-2"))

	assert.Len(t, r.byType[messages.AgentScout], 2)
}

func TestInMemoryGetAgentRandomAndMissing(t *testing.T) {
	ctx := context.Background()
	r := NewInMemory()

	_, ok, err := r.GetAgent(ctx, messages.AgentScout)
	require.NoError(t, err)
	assert.False(t, ok, "unregistered type returns not-ok")

	require.NoError(t, r.Register(ctx, messages.AgentScout, "addr-1"))
	addr, ok, err := r.GetAgent(ctx, messages.AgentScout)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "addr-1", addr)
}

func TestInMemoryReverseLookup(t *testing.T) {
	ctx := context.Background()
	r := NewInMemory()
	require.NoError(t, r.Register(ctx, messages.AgentCompute, "addr-9"))

	typ, ok, err := r.GetAgentType(ctx, "addr-9")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, messages.AgentCompute, typ)

	_, ok, err = r.GetAgentType(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, ok)
}
