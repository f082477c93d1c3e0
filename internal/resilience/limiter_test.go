package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterSharedPerSource(t *testing.T) {
	sl := NewSourceLimiters(map[string]LimitConfig{
		"scorecard": {RPS: 100, Burst: 2},
	})

	assert.Same(t, sl.Get("scorecard"), sl.Get("scorecard"))
	assert.NotSame(t, sl.Get("scorecard"), sl.Get("wikipedia"))
}

func TestLimiterUnknownSourceGetsDefault(t *testing.T) {
	sl := NewSourceLimiters(nil)
	l := sl.Get("anything")
	assert.Equal(t, float64(DefaultSourceLimit.RPS), float64(l.Limit()))
	assert.Equal(t, DefaultSourceLimit.Burst, l.Burst())
}

func TestLimiterAcquireBlocksPastBurst(t *testing.T) {
	sl := NewSourceLimiters(map[string]LimitConfig{
		"slow": {RPS: 20, Burst: 1},
	})
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, sl.Acquire(ctx, "slow"))
	require.NoError(t, sl.Acquire(ctx, "slow"))
	elapsed := time.Since(start)

	// Second token needs a refill at 20 rps, so roughly 50ms.
	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
}

func TestLimiterAcquireHonorsContext(t *testing.T) {
	sl := NewSourceLimiters(map[string]LimitConfig{
		"glacial": {RPS: 0.001, Burst: 1},
	})
	ctx := context.Background()
	require.NoError(t, sl.Acquire(ctx, "glacial"))

	ctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.Error(t, sl.Acquire(ctx, "glacial"))
}
