package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleRateLimiter_Wait(t *testing.T) {
	r := NewSimpleRateLimiter(30*time.Millisecond, 30*time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, r.Wait(ctx))
	assert.Less(t, time.Since(start), 20*time.Millisecond, "first wait is immediate")

	start = time.Now()
	require.NoError(t, r.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}

func TestSimpleRateLimiter_ContextCancelled(t *testing.T) {
	r := NewSimpleRateLimiter(time.Hour, time.Hour)
	require.NoError(t, r.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.Wait(ctx), context.Canceled)
}

func TestSimpleRateLimiter_Jitter(t *testing.T) {
	r := NewSimpleRateLimiter(10*time.Millisecond, 20*time.Millisecond)
	for i := 0; i < 50; i++ {
		d := r.calculateDelay()
		assert.GreaterOrEqual(t, d, 10*time.Millisecond)
		assert.Less(t, d, 20*time.Millisecond)
	}
}

func TestAdaptiveRateLimiter(t *testing.T) {
	a := NewAdaptiveRateLimiter(2*time.Second, 4*time.Second)

	a.RecordError()
	lo, hi := a.Delays()
	assert.Equal(t, 2*time.Second, lo, "single challenge does not back off")
	assert.Equal(t, 4*time.Second, hi)

	a.RecordError()
	lo, hi = a.Delays()
	assert.Equal(t, 3*time.Second, lo)
	assert.Equal(t, 6*time.Second, hi)

	for i := 0; i < 3; i++ {
		a.RecordSuccess()
	}
	lo, _ = a.Delays()
	assert.InDelta(t, float64(2700*time.Millisecond), float64(lo), float64(time.Millisecond))

	for i := 0; i < 30; i++ {
		a.RecordSuccess()
	}
	lo, _ = a.Delays()
	assert.Equal(t, 2*time.Second, lo, "never faster than the configured minimum")
}

func TestAdaptiveRateLimiter_Caps(t *testing.T) {
	a := NewAdaptiveRateLimiter(50*time.Second, 100*time.Second)
	for i := 0; i < 10; i++ {
		a.RecordError()
	}

	lo, hi := a.Delays()
	assert.Equal(t, 60*time.Second, lo)
	assert.Equal(t, 120*time.Second, hi)
}
