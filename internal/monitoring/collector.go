// Package monitoring aggregates health metrics from the job queue, the
// field cache, the circuit breakers, and the catalog itself.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/campusdata/enrich-cli/internal/cache"
	"github.com/campusdata/enrich-cli/internal/model"
	"github.com/campusdata/enrich-cli/internal/queue"
	"github.com/campusdata/enrich-cli/internal/resilience"
	"github.com/campusdata/enrich-cli/internal/store"
)

// MetricsSnapshot holds a point-in-time view of system health.
type MetricsSnapshot struct {
	// Job metrics.
	JobsByStatus map[model.JobStatus]int `json:"jobs_by_status"`
	QueueDepth   int                     `json:"queue_depth"`

	// Catalog completeness.
	CatalogTotal    int     `json:"catalog_total"`
	CatalogComplete int     `json:"catalog_complete"`
	AvgMissingScore float64 `json:"avg_missing_score"`

	// Field cache counters since process start.
	CacheHits    int64   `json:"cache_hits"`
	CacheMisses  int64   `json:"cache_misses"`
	CacheWrites  int64   `json:"cache_writes"`
	CacheHitRate float64 `json:"cache_hit_rate"`

	// Per-source circuit breaker states.
	BreakerStates map[string]string `json:"breaker_states"`

	// Metadata.
	CollectedAt time.Time `json:"collected_at"`
}

// Collector gathers metrics from the store, queue, cache, and breakers.
// Any of the non-store fields may be nil; their sections are then omitted.
type Collector struct {
	store    store.Store
	queue    *queue.Queue
	cache    *cache.FieldCache
	breakers *resilience.SourceBreakers
}

// NewCollector creates a metrics collector.
func NewCollector(st store.Store, q *queue.Queue, fc *cache.FieldCache, sb *resilience.SourceBreakers) *Collector {
	return &Collector{store: st, queue: q, cache: fc, breakers: sb}
}

// Collect gathers a snapshot of system metrics.
func (c *Collector) Collect(ctx context.Context) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		CollectedAt: time.Now().UTC(),
	}

	if c.queue != nil {
		stats, err := c.queue.Stats(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "monitoring: queue stats")
		}
		snap.JobsByStatus = stats.ByStatus
		snap.QueueDepth = stats.QueueDepth
	}

	unis, err := c.store.ListUniversities(ctx, 0)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list universities")
	}
	snap.CatalogTotal = len(unis)
	var scoreSum int
	for _, u := range unis {
		score := u.EnrichmentScore()
		if score == 0 {
			snap.CatalogComplete++
		}
		scoreSum += score
	}
	if snap.CatalogTotal > 0 {
		snap.AvgMissingScore = float64(scoreSum) / float64(snap.CatalogTotal)
	}

	if c.cache != nil {
		cs := c.cache.Stats()
		snap.CacheHits = cs.Hits
		snap.CacheMisses = cs.Misses
		snap.CacheWrites = cs.Writes
		if lookups := cs.Hits + cs.Misses; lookups > 0 {
			snap.CacheHitRate = float64(cs.Hits) / float64(lookups)
		}
	}

	if c.breakers != nil {
		snap.BreakerStates = make(map[string]string)
		for source, state := range c.breakers.States() {
			snap.BreakerStates[source] = state.String()
		}
	}

	return snap, nil
}
