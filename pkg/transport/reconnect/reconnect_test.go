package reconnect

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelayMonotonicGrowthNoJitter(t *testing.T) {
	t.Parallel()
	m := New(Policy{
		MaxAttempts:       5,
		InitialDelay:      1000 * time.Millisecond,
		BackoffMultiplier: 2,
		MaxDelay:          3000 * time.Millisecond,
		JitterFraction:    0,
	})

	var delays []time.Duration
	var mu sync.Mutex
	m.OnStateChange(func(c StateChange) {
		if c.HasNextDelay {
			mu.Lock()
			delays = append(delays, c.NextRetryDelay)
			mu.Unlock()
		}
	})

	noop := func(context.Context) error { return nil }
	for i := 0; i < 5; i++ {
		err := m.ScheduleReconnect(context.Background(), noop)
		require.NoError(t, err)
		m.Cancel() // stop the fired timer from racing with the next schedule
	}

	require.Len(t, delays, 5)
	expected := []time.Duration{
		1000 * time.Millisecond,
		2000 * time.Millisecond,
		3000 * time.Millisecond,
		3000 * time.Millisecond,
		3000 * time.Millisecond,
	}
	assert.Equal(t, expected, delays)
}

func TestMaxAttemptsExceededIsTerminal(t *testing.T) {
	t.Parallel()
	m := New(Policy{
		MaxAttempts:       2,
		InitialDelay:      10 * time.Millisecond,
		BackoffMultiplier: 2,
		MaxDelay:          100 * time.Millisecond,
	})
	noop := func(context.Context) error { return nil }

	require.NoError(t, m.ScheduleReconnect(context.Background(), noop))
	m.Cancel()
	require.NoError(t, m.ScheduleReconnect(context.Background(), noop))
	m.Cancel()

	// third attempt exceeds MaxAttempts=2
	err := m.ScheduleReconnect(context.Background(), noop)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Max reconnection attempts (2) exceeded")
	assert.Equal(t, StateFailed, m.State())

	// Failed must not downgrade to Disconnected.
	m.OnDisconnected(nil)
	assert.Equal(t, StateFailed, m.State())
}

func TestCancelIsIdempotent(t *testing.T) {
	t.Parallel()
	m := New(Policy{MaxAttempts: 3, InitialDelay: time.Millisecond, BackoffMultiplier: 2, MaxDelay: time.Second})
	m.Cancel()
	m.Cancel()
	assert.Equal(t, StateDisconnected, m.State())
}

func TestOnConnectedResetsRetryCount(t *testing.T) {
	t.Parallel()
	m := New(Policy{MaxAttempts: 5, InitialDelay: time.Millisecond, BackoffMultiplier: 2, MaxDelay: time.Second})
	noop := func(context.Context) error { return nil }
	require.NoError(t, m.ScheduleReconnect(context.Background(), noop))
	m.Cancel()
	assert.Equal(t, 1, m.RetryCount())

	m.OnConnected()
	assert.Equal(t, 0, m.RetryCount())
	assert.Equal(t, StateConnected, m.State())
}

func TestJitterStaysWithinFraction(t *testing.T) {
	t.Parallel()
	const fraction = 0.2
	m := New(Policy{
		MaxAttempts:       1,
		InitialDelay:      1000 * time.Millisecond,
		BackoffMultiplier: 2,
		MaxDelay:          10 * time.Second,
		JitterFraction:    fraction,
	})
	var got time.Duration
	var once atomic.Bool
	m.OnStateChange(func(c StateChange) {
		if c.HasNextDelay && once.CompareAndSwap(false, true) {
			got = c.NextRetryDelay
		}
	})
	require.NoError(t, m.ScheduleReconnect(context.Background(), func(context.Context) error { return nil }))
	m.Cancel()

	lower := time.Duration(float64(1000*time.Millisecond) * (1 - fraction))
	upper := time.Duration(float64(1000*time.Millisecond) * (1 + fraction))
	assert.GreaterOrEqual(t, got, lower)
	assert.LessOrEqual(t, got, upper)
}

func TestPolicyValidate(t *testing.T) {
	t.Parallel()
	assert.Error(t, Policy{BackoffMultiplier: 1}.Validate())
	assert.Error(t, Policy{BackoffMultiplier: 2, MaxAttempts: -1}.Validate())
	assert.NoError(t, Policy{BackoffMultiplier: 2, MaxAttempts: 1, InitialDelay: time.Second, MaxDelay: time.Minute}.Validate())
}
