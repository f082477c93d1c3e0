package resilience

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// LimitConfig holds the token bucket parameters for one source:
// RPS is the refill rate in requests per second, Burst the bucket capacity.
type LimitConfig struct {
	RPS   float64
	Burst int
}

// SourceLimiters hands out one token bucket per source name. Buckets are
// created on demand from the configured parameters; unknown sources fall
// back to the default limit. Aggregate call volume to a source is bounded
// across all jobs because every caller shares the same bucket.
type SourceLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	configs  map[string]LimitConfig
	fallback LimitConfig
}

// DefaultSourceLimit is applied to sources without an explicit config.
var DefaultSourceLimit = LimitConfig{RPS: 1, Burst: 1}

// NewSourceLimiters creates a limiter registry. configs maps source names to
// bucket parameters; pass nil to rate-limit everything at the default.
func NewSourceLimiters(configs map[string]LimitConfig) *SourceLimiters {
	cp := make(map[string]LimitConfig, len(configs))
	for k, v := range configs {
		cp[k] = v
	}
	return &SourceLimiters{
		limiters: make(map[string]*rate.Limiter),
		configs:  cp,
		fallback: DefaultSourceLimit,
	}
}

// Get returns the token bucket for the named source, creating it if needed.
func (sl *SourceLimiters) Get(source string) *rate.Limiter {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if l, ok := sl.limiters[source]; ok {
		return l
	}
	cfg, ok := sl.configs[source]
	if !ok || cfg.RPS <= 0 {
		cfg = sl.fallback
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	l := rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst)
	sl.limiters[source] = l
	return l
}

// Acquire blocks until the source's bucket grants a token or ctx is done.
// Waiters are served in FIFO order; the wait is exactly the time needed to
// refill the shortfall.
func (sl *SourceLimiters) Acquire(ctx context.Context, source string) error {
	return sl.Get(source).Wait(ctx)
}

// AcquireN blocks until n tokens are available for the source.
func (sl *SourceLimiters) AcquireN(ctx context.Context, source string, n int) error {
	return sl.Get(source).WaitN(ctx, n)
}
