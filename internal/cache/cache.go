// Package cache provides a persistent per-field cache for enrichment
// results, keyed by institution and field name.
package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/campusdata/enrich-cli/internal/model"
	"github.com/campusdata/enrich-cli/internal/store"
)

// TTLs by source class. Values from official registries change once a year
// at most, so they keep much longer than scraped or searched values.
const (
	OfficialTTL = 30 * 24 * time.Hour
	DefaultTTL  = 7 * 24 * time.Hour
)

// officialSources are the source names whose entries get the long TTL.
var officialSources = map[string]bool{
	"scorecard": true,
}

// TTLForSource returns the cache lifetime for values produced by a source.
func TTLForSource(source string) time.Duration {
	if officialSources[source] {
		return OfficialTTL
	}
	return DefaultTTL
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Writes int64 `json:"writes"`
	Errors int64 `json:"errors"`
}

// FieldCache caches per-field enrichment values in the store. A cache error
// is never fatal: reads degrade to a miss, writes are logged and dropped,
// and the pipeline proceeds against the live sources.
type FieldCache struct {
	store store.Store
	now   func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
	writes atomic.Int64
	errors atomic.Int64
}

// New creates a FieldCache backed by the given store.
func New(st store.Store) *FieldCache {
	return &FieldCache{store: st, now: time.Now}
}

// WithClock overrides the cache's time source. Used by tests.
func (c *FieldCache) WithClock(now func() time.Time) *FieldCache {
	c.now = now
	return c
}

// Get returns the unexpired cached values for the given fields of one
// institution. Fields absent from the result are misses.
func (c *FieldCache) Get(ctx context.Context, universityID int64, fields []model.Field) (map[model.Field]store.CacheEntry, error) {
	entries, err := c.store.GetCacheEntries(ctx, universityID, fields, c.now().UTC())
	if err != nil {
		c.errors.Add(1)
		return nil, eris.Wrapf(err, "cache: get for university %d", universityID)
	}

	out := make(map[model.Field]store.CacheEntry, len(entries))
	for _, e := range entries {
		out[e.Field] = e
	}
	for _, f := range fields {
		if _, ok := out[f]; ok {
			c.hits.Add(1)
		} else {
			c.misses.Add(1)
		}
	}
	return out, nil
}

// Put stores one field value with the TTL derived from its source. The
// previous entry for the same (institution, field) pair is replaced even
// when a different source produced it.
func (c *FieldCache) Put(ctx context.Context, universityID int64, field model.Field, value any, source string) error {
	coerced, err := model.CoerceValue(field, value)
	if err != nil {
		c.errors.Add(1)
		return eris.Wrap(err, "cache: put")
	}

	now := c.now().UTC()
	err = c.store.PutCacheEntry(ctx, store.CacheEntry{
		UniversityID: universityID,
		Field:        field,
		Value:        coerced,
		Source:       source,
		CachedAt:     now,
		ExpiresAt:    now.Add(TTLForSource(source)),
	})
	if err != nil {
		c.errors.Add(1)
		return eris.Wrapf(err, "cache: put %d/%s", universityID, field)
	}
	c.writes.Add(1)
	return nil
}

// PutMany stores a batch of field values from one source. Individual write
// failures are logged and skipped so one bad value cannot sink the batch.
func (c *FieldCache) PutMany(ctx context.Context, universityID int64, values map[model.Field]any, source string) {
	for f, v := range values {
		if err := c.Put(ctx, universityID, f, v, source); err != nil {
			zap.L().Warn("cache write failed",
				zap.Int64("university_id", universityID),
				zap.String("field", string(f)),
				zap.String("source", source),
				zap.Error(err))
		}
	}
}

// InvalidateUniversity drops all cached values for one institution.
func (c *FieldCache) InvalidateUniversity(ctx context.Context, universityID int64) (int, error) {
	n, err := c.store.DeleteCacheByUniversity(ctx, universityID)
	if err != nil {
		c.errors.Add(1)
		return 0, eris.Wrapf(err, "cache: invalidate university %d", universityID)
	}
	return n, nil
}

// InvalidateField drops the cached values of one field across all institutions.
func (c *FieldCache) InvalidateField(ctx context.Context, field model.Field) (int, error) {
	n, err := c.store.DeleteCacheByField(ctx, field)
	if err != nil {
		c.errors.Add(1)
		return 0, eris.Wrapf(err, "cache: invalidate field %s", field)
	}
	return n, nil
}

// PurgeExpired removes every expired entry.
func (c *FieldCache) PurgeExpired(ctx context.Context) (int, error) {
	n, err := c.store.DeleteExpiredCache(ctx, c.now().UTC())
	if err != nil {
		c.errors.Add(1)
		return 0, eris.Wrap(err, "cache: purge expired")
	}
	return n, nil
}

// Stats returns a snapshot of the cache counters.
func (c *FieldCache) Stats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Writes: c.writes.Load(),
		Errors: c.errors.Load(),
	}
}
