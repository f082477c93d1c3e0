package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = eris.New("boom")

func failingCall(ctx context.Context) error { return errBoom }
func okCall(ctx context.Context) error      { return nil }

func TestCircuitOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, RecoveryTimeout: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.Equal(t, CircuitClosed, cb.State())
		err := cb.Execute(ctx, failingCall)
		assert.ErrorIs(t, err, errBoom)
	}
	assert.Equal(t, CircuitOpen, cb.State())

	// While open, calls are rejected without invoking fn.
	called := false
	err := cb.Execute(ctx, func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, RecoveryTimeout: time.Minute})
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, failingCall))
	require.Error(t, cb.Execute(ctx, failingCall))
	require.NoError(t, cb.Execute(ctx, okCall))

	failures, state := cb.Counters()
	assert.Equal(t, 0, failures)
	assert.Equal(t, CircuitClosed, state)
}

func TestCircuitHalfOpenProbe(t *testing.T) {
	now := time.Unix(1000, 0)
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, RecoveryTimeout: 30 * time.Second})
	cb.nowFunc = func() time.Time { return now }
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, failingCall))
	assert.Equal(t, CircuitOpen, cb.State())

	// Before the timeout, still rejected.
	now = now.Add(29 * time.Second)
	assert.ErrorIs(t, cb.Execute(ctx, okCall), ErrCircuitOpen)

	// After the timeout, exactly one probe is let through.
	now = now.Add(2 * time.Second)
	assert.Equal(t, CircuitHalfOpen, cb.State())

	probeStarted := make(chan struct{})
	probeRelease := make(chan struct{})
	probeDone := make(chan error, 1)
	go func() {
		probeDone <- cb.Execute(ctx, func(ctx context.Context) error {
			close(probeStarted)
			<-probeRelease
			return nil
		})
	}()
	<-probeStarted

	// A second call during the in-flight probe is rejected.
	assert.ErrorIs(t, cb.Execute(ctx, okCall), ErrCircuitOpen)

	close(probeRelease)
	require.NoError(t, <-probeDone)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitFailedProbeReopens(t *testing.T) {
	now := time.Unix(1000, 0)
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, RecoveryTimeout: 30 * time.Second})
	cb.nowFunc = func() time.Time { return now }
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, failingCall))
	now = now.Add(31 * time.Second)

	assert.ErrorIs(t, cb.Execute(ctx, failingCall), errBoom)
	_, state := cb.Counters()
	assert.Equal(t, CircuitOpen, state)

	// The timeout restarts from the probe failure.
	assert.ErrorIs(t, cb.Execute(ctx, okCall), ErrCircuitOpen)
	now = now.Add(31 * time.Second)
	require.NoError(t, cb.Execute(ctx, okCall))
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitShouldTripFilter(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  time.Minute,
		ShouldTrip:       IsTransient,
	})
	ctx := context.Background()

	// A non-transient error passes through without tripping.
	require.Error(t, cb.Execute(ctx, failingCall))
	assert.Equal(t, CircuitClosed, cb.State())

	require.Error(t, cb.Execute(ctx, func(ctx context.Context) error {
		return NewTransientError(errBoom, 503)
	}))
	assert.Equal(t, CircuitOpen, cb.State())
}

func TestCircuitOnStateChange(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  time.Minute,
		OnStateChange: func(from, to CircuitState) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	require.Error(t, cb.Execute(context.Background(), failingCall))
	cb.Reset()
	assert.Equal(t, []string{"closed->open", "open->closed"}, transitions)
}

func TestSourceBreakersIsolation(t *testing.T) {
	sb := NewSourceBreakers(CircuitBreakerConfig{FailureThreshold: 1, RecoveryTimeout: time.Minute})
	ctx := context.Background()

	require.Error(t, sb.Get("wikipedia").Execute(ctx, failingCall))

	assert.Equal(t, CircuitOpen, sb.Get("wikipedia").State())
	assert.Equal(t, CircuitClosed, sb.Get("scorecard").State())

	states := sb.States()
	assert.Equal(t, CircuitOpen, states["wikipedia"])
	assert.Equal(t, CircuitClosed, states["scorecard"])

	assert.Same(t, sb.Get("wikipedia"), sb.Get("wikipedia"))
}
