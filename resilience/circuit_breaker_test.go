package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/meridianlabs/ioa/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfig(name string) *CircuitBreakerConfig {
	cfg := DefaultConfig()
	cfg.Name = name
	cfg.VolumeThreshold = 2
	cfg.ErrorThreshold = 0.5
	cfg.SleepWindow = 10 * time.Millisecond
	cfg.HalfOpenRequests = 1
	cfg.SuccessThreshold = 1.0
	return cfg
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb, err := NewCircuitBreaker(newTestConfig("opens"))
	require.NoError(t, err)

	boom := errors.New("boom")
	_ = cb.Execute(context.Background(), func() error { return boom })
	_ = cb.Execute(context.Background(), func() error { return boom })

	assert.Equal(t, "open", cb.GetState())

	err = cb.Execute(context.Background(), func() error { return nil })
	assert.ErrorIs(t, err, core.ErrCircuitBreakerOpen)
}

func TestCircuitBreakerHalfOpenRecoversToClosed(t *testing.T) {
	cb, err := NewCircuitBreaker(newTestConfig("recovers"))
	require.NoError(t, err)

	boom := errors.New("boom")
	_ = cb.Execute(context.Background(), func() error { return boom })
	_ = cb.Execute(context.Background(), func() error { return boom })
	require.Equal(t, "open", cb.GetState())

	time.Sleep(15 * time.Millisecond)

	err = cb.Execute(context.Background(), func() error { return nil })
	require.NoError(t, err)
	assert.Equal(t, "closed", cb.GetState())
}

func TestCircuitBreakerForceOpenAndClear(t *testing.T) {
	cb, err := NewCircuitBreaker(newTestConfig("force"))
	require.NoError(t, err)

	cb.ForceOpen()
	assert.Equal(t, "open", cb.GetState())

	cb.ClearForce()
	cb.ForceClosed()
	assert.Equal(t, "closed", cb.GetState())
}
