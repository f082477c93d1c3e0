// Package enricher implements the source adapters that discover missing
// institution attributes from external services.
package enricher

import (
	"context"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/campusdata/enrich-cli/internal/model"
	"github.com/campusdata/enrich-cli/internal/resilience"
)

// Source names. These key the rate limiters, circuit breakers, cache
// entries, and reliability table.
const (
	SourceScorecard = "scorecard"
	SourceKnowledge = "knowledge"
	SourceWikipedia = "wikipedia"
	SourceWebSearch = "websearch"
	SourceWebsite   = "website"
)

// FieldMap is a partial set of field values produced by one source.
type FieldMap map[model.Field]any

// Enricher queries one external source for missing institution attributes.
type Enricher interface {
	// Name identifies the source.
	Name() string

	// Priority orders sources within a pass; lower runs first.
	Priority() int

	// Applies reports whether the source can be consulted for this record
	// (jurisdiction gates, required inputs).
	Applies(u *model.University) bool

	// Enrich returns whatever fields the source could supply. A degraded
	// source returns an empty map and an error; callers treat the error as
	// advisory and keep going.
	Enrich(ctx context.Context, u *model.University) (FieldMap, error)
}

// Guard wraps outbound source calls in the shared resilience stack: a retry
// loop whose every attempt waits on the source's rate limiter, honors an
// inter-request politeness delay, and passes through the source's circuit
// breaker.
type Guard struct {
	limiters   *resilience.SourceLimiters
	breakers   *resilience.SourceBreakers
	retry      resilience.RetryConfig
	politeness time.Duration

	mu       sync.Mutex
	lastCall map[string]time.Time
}

// DefaultPoliteness spaces successive calls to the same source.
const DefaultPoliteness = 500 * time.Millisecond

// NewGuard creates a Guard. Zero politeness disables the inter-request delay.
func NewGuard(limiters *resilience.SourceLimiters, breakers *resilience.SourceBreakers, retry resilience.RetryConfig, politeness time.Duration) *Guard {
	return &Guard{
		limiters:   limiters,
		breakers:   breakers,
		retry:      retry,
		politeness: politeness,
		lastCall:   make(map[string]time.Time),
	}
}

// Do runs fn under the source's guard stack.
func (g *Guard) Do(ctx context.Context, source, operation string, fn func(ctx context.Context) error) error {
	cfg := g.retry
	cfg.OnRetry = resilience.RetryLogger(source, operation)

	return resilience.Do(ctx, cfg, func(ctx context.Context) error {
		if err := g.politeWait(ctx, source); err != nil {
			return err
		}
		if err := g.limiters.Acquire(ctx, source); err != nil {
			return eris.Wrapf(err, "%s: rate limiter", source)
		}
		return g.breakers.Get(source).Execute(ctx, fn)
	})
}

// politeWait sleeps out the remainder of the politeness window since the
// last call to the source, scaled by a uniform jitter factor in [0.5, 1.5].
func (g *Guard) politeWait(ctx context.Context, source string) error {
	if g.politeness <= 0 {
		return nil
	}

	g.mu.Lock()
	last, ok := g.lastCall[source]
	now := time.Now()
	g.lastCall[source] = now
	g.mu.Unlock()
	if !ok {
		return nil
	}

	window := time.Duration(float64(g.politeness) * (0.5 + rand.Float64()))
	remaining := window - now.Sub(last)
	if remaining <= 0 {
		return nil
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return eris.Wrapf(ctx.Err(), "%s: politeness wait", source)
	case <-timer.C:
		return nil
	}
}

// filterPlausible drops numeric values outside their field's plausibility
// range and values that fail type coercion. Rejections are silent: an
// out-of-range extraction is a false positive, not an error.
func filterPlausible(fm FieldMap) FieldMap {
	out := make(FieldMap, len(fm))
	for f, v := range fm {
		coerced, err := model.CoerceValue(f, v)
		if err != nil {
			continue
		}
		if model.IsNumeric(f) {
			n, ok := model.NumericValue(coerced)
			if !ok || !model.Plausible(f, n) {
				continue
			}
		}
		out[f] = coerced
	}
	return out
}

// ByPriority returns the enrichers sorted by ascending priority.
func ByPriority(enrichers []Enricher) []Enricher {
	out := make([]Enricher, len(enrichers))
	copy(out, enrichers)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority() < out[j].Priority() })
	return out
}
