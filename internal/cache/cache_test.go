package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campusdata/enrich-cli/internal/model"
	"github.com/campusdata/enrich-cli/internal/store"
)

func TestMain(m *testing.M) {
	zap.ReplaceGlobals(zap.NewNop())
	m.Run()
}

func newTestCache(t *testing.T) (*FieldCache, *time.Time, int64) {
	t.Helper()
	ctx := context.Background()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(ctx))

	_, err = st.UpsertUniversities(ctx, []model.University{{Name: "Cache U"}})
	require.NoError(t, err)
	unis, err := st.ListUniversities(ctx, 1)
	require.NoError(t, err)

	now := time.Now().UTC()
	fc := New(st).WithClock(func() time.Time { return now })
	return fc, &now, unis[0].ID
}

func TestTTLForSource(t *testing.T) {
	assert.Equal(t, OfficialTTL, TTLForSource("scorecard"))
	assert.Equal(t, DefaultTTL, TTLForSource("wikipedia"))
	assert.Equal(t, DefaultTTL, TTLForSource("websearch"))
	assert.Equal(t, DefaultTTL, TTLForSource("unknown"))
}

func TestCachePutGet(t *testing.T) {
	fc, _, id := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, fc.Put(ctx, id, model.FieldCity, "Boston", "wikipedia"))
	require.NoError(t, fc.Put(ctx, id, model.FieldTotalStudents, float64(12000), "scorecard"))

	got, err := fc.Get(ctx, id, []model.Field{
		model.FieldCity, model.FieldTotalStudents, model.FieldWebsite,
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Boston", got[model.FieldCity].Value)
	assert.Equal(t, "wikipedia", got[model.FieldCity].Source)
	assert.Equal(t, int64(12000), got[model.FieldTotalStudents].Value,
		"values come back coerced to the field's kind")

	stats := fc.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(2), stats.Writes)
}

func TestCacheExpiry(t *testing.T) {
	fc, now, id := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, fc.Put(ctx, id, model.FieldCity, "Boston", "wikipedia"))
	require.NoError(t, fc.Put(ctx, id, model.FieldState, "MA", "scorecard"))

	// Just past the scraped-source TTL: wikipedia entry is gone, the
	// official entry survives.
	*now = now.Add(DefaultTTL + time.Minute)

	got, err := fc.Get(ctx, id, []model.Field{model.FieldCity, model.FieldState})
	require.NoError(t, err)
	assert.NotContains(t, got, model.FieldCity)
	assert.Contains(t, got, model.FieldState)

	// Past the official TTL everything is gone.
	*now = now.Add(OfficialTTL)
	got, err = fc.Get(ctx, id, []model.Field{model.FieldState})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCachePutReplacesPerField(t *testing.T) {
	fc, _, id := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, fc.Put(ctx, id, model.FieldCity, "Boston", "websearch"))
	require.NoError(t, fc.Put(ctx, id, model.FieldCity, "Cambridge", "scorecard"))

	got, err := fc.Get(ctx, id, []model.Field{model.FieldCity})
	require.NoError(t, err)
	require.Contains(t, got, model.FieldCity)
	assert.Equal(t, "Cambridge", got[model.FieldCity].Value)
	assert.Equal(t, "scorecard", got[model.FieldCity].Source)
}

func TestCachePutRejectsBadValue(t *testing.T) {
	fc, _, id := newTestCache(t)

	err := fc.Put(context.Background(), id, model.FieldTotalStudents, "lots", "wikipedia")
	assert.Error(t, err)
	assert.Equal(t, int64(1), fc.Stats().Errors)
}

func TestCachePutMany(t *testing.T) {
	fc, _, id := newTestCache(t)
	ctx := context.Background()

	fc.PutMany(ctx, id, map[model.Field]any{
		model.FieldCity:          "Ithaca",
		model.FieldTotalStudents: float64(25000),
		model.FieldState:         12345, // bad type, dropped without sinking the batch
	}, "knowledge")

	got, err := fc.Get(ctx, id, []model.Field{
		model.FieldCity, model.FieldTotalStudents, model.FieldState,
	})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestCacheInvalidate(t *testing.T) {
	fc, _, id := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, fc.Put(ctx, id, model.FieldCity, "Boston", "wikipedia"))
	require.NoError(t, fc.Put(ctx, id, model.FieldState, "MA", "wikipedia"))

	n, err := fc.InvalidateField(ctx, model.FieldCity)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = fc.InvalidateUniversity(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := fc.Get(ctx, id, []model.Field{model.FieldCity, model.FieldState})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCachePurgeExpired(t *testing.T) {
	fc, now, id := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, fc.Put(ctx, id, model.FieldCity, "Boston", "wikipedia"))
	require.NoError(t, fc.Put(ctx, id, model.FieldState, "MA", "scorecard"))

	*now = now.Add(DefaultTTL + time.Minute)
	n, err := fc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
