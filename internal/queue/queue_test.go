package queue

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

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func newTestQueue(t *testing.T) (*Queue, store.Store) {
	t.Helper()
	st := newTestStore(t)
	q, err := New(context.Background(), st)
	require.NoError(t, err)
	return q, st
}

func TestClampConcurrency(t *testing.T) {
	assert.Equal(t, DefaultConcurrent, ClampConcurrency(0))
	assert.Equal(t, MinConcurrent, ClampConcurrency(-5))
	assert.Equal(t, 7, ClampConcurrency(7))
	assert.Equal(t, MaxConcurrent, ClampConcurrency(500))
}

func TestCreateJobAndDequeueFIFO(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	first, err := q.CreateJob(ctx, CreateOptions{UniversityIDs: []int64{1, 2}})
	require.NoError(t, err)
	second, err := q.CreateJob(ctx, CreateOptions{Limit: 50})
	require.NoError(t, err)

	assert.Equal(t, model.JobStatusPending, first.Status)
	assert.Equal(t, 2, first.TotalUniversities)
	assert.Equal(t, DefaultConcurrent, first.MaxConcurrent)

	got, err := q.NextPending(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.ID, got.ID)

	got, err = q.NextPending(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, second.ID, got.ID)

	got, err = q.NextPending(ctx)
	require.NoError(t, err)
	assert.Nil(t, got, "an empty queue yields nil, not an error")
}

func TestNextPendingSkipsStaleEntries(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	cancelled, err := q.CreateJob(ctx, CreateOptions{UniversityIDs: []int64{1}})
	require.NoError(t, err)
	live, err := q.CreateJob(ctx, CreateOptions{UniversityIDs: []int64{2}})
	require.NoError(t, err)

	_, err = q.CancelJob(ctx, cancelled.ID)
	require.NoError(t, err)

	// The cancelled job was removed from the FIFO, but even a stale entry
	// that slipped through would be skipped on the status re-check.
	got, err := q.NextPending(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, live.ID, got.ID)
}

func TestRehydrationRequeuesInterruptedJobs(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	q1, err := New(ctx, st)
	require.NoError(t, err)

	pending, err := q1.CreateJob(ctx, CreateOptions{UniversityIDs: []int64{1}})
	require.NoError(t, err)
	running, err := q1.CreateJob(ctx, CreateOptions{UniversityIDs: []int64{2}})
	require.NoError(t, err)
	done, err := q1.CreateJob(ctx, CreateOptions{UniversityIDs: []int64{3}})
	require.NoError(t, err)

	require.NoError(t, q1.UpdateStatus(ctx, running, model.JobStatusRunning))
	require.NoError(t, q1.UpdateStatus(ctx, done, model.JobStatusCompleted))

	// A fresh queue simulates a worker restart: the running job is reset to
	// pending and requeued, the completed one stays finished.
	q2, err := New(ctx, st)
	require.NoError(t, err)

	reset, err := st.GetJob(ctx, running.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPending, reset.Status)

	var ids []string
	for {
		job, err := q2.NextPending(ctx)
		require.NoError(t, err)
		if job == nil {
			break
		}
		ids = append(ids, job.ID)
	}
	assert.ElementsMatch(t, []string{pending.ID, running.ID}, ids)
}

func TestUpdateStatusTimestampsSetOnce(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	base := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	now := base
	q.WithClock(func() time.Time { return now })

	job, err := q.CreateJob(ctx, CreateOptions{UniversityIDs: []int64{1}})
	require.NoError(t, err)
	assert.Nil(t, job.StartedAt)
	assert.Nil(t, job.CompletedAt)

	require.NoError(t, q.UpdateStatus(ctx, job, model.JobStatusRunning))
	require.NotNil(t, job.StartedAt)
	assert.Equal(t, base, *job.StartedAt)

	// A second transition to running must not move the start time.
	now = base.Add(time.Hour)
	require.NoError(t, q.UpdateStatus(ctx, job, model.JobStatusRunning))
	assert.Equal(t, base, *job.StartedAt)

	require.NoError(t, q.UpdateStatus(ctx, job, model.JobStatusCompleted))
	require.NotNil(t, job.CompletedAt)
	assert.Equal(t, base.Add(time.Hour), *job.CompletedAt)

	assert.Error(t, q.UpdateStatus(ctx, job, model.JobStatus("bogus")))
}

func TestReportProgressFlushCadence(t *testing.T) {
	q, st := newTestQueue(t)
	ctx := context.Background()

	job, err := q.CreateJob(ctx, CreateOptions{Limit: 25})
	require.NoError(t, err)

	// Nine reports stay in memory.
	for i := 0; i < 9; i++ {
		require.NoError(t, q.ReportProgress(ctx, job, 1, 1, 2, 0))
	}
	persisted, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Zero(t, persisted.Processed, "progress is buffered until the flush interval")

	// The tenth crosses the interval and flushes everything accumulated.
	require.NoError(t, q.ReportProgress(ctx, job, 1, 0, 0, 1))
	persisted, err = st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, persisted.Processed)
	assert.Equal(t, 9, persisted.SuccessfulUpdates)
	assert.Equal(t, 18, persisted.TotalFieldsFilled)
	assert.Equal(t, 1, persisted.ErrorsCount)
}

func TestCancelJobOnlyWhenPending(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	job, err := q.CreateJob(ctx, CreateOptions{UniversityIDs: []int64{1}})
	require.NoError(t, err)

	cancelled, err := q.CancelJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CompletedAt)

	running, err := q.CreateJob(ctx, CreateOptions{UniversityIDs: []int64{2}})
	require.NoError(t, err)
	require.NoError(t, q.UpdateStatus(ctx, running, model.JobStatusRunning))

	_, err = q.CancelJob(ctx, running.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotCancellable)

	_, err = q.CancelJob(ctx, "no-such-job")
	assert.Error(t, err)
}

func TestCleanupOldJobs(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := old
	q.WithClock(func() time.Time { return now })

	ancient, err := q.CreateJob(ctx, CreateOptions{UniversityIDs: []int64{1}})
	require.NoError(t, err)
	require.NoError(t, q.UpdateStatus(ctx, ancient, model.JobStatusCompleted))

	stillPending, err := q.CreateJob(ctx, CreateOptions{UniversityIDs: []int64{2}})
	require.NoError(t, err)

	now = old.AddDate(0, 2, 0)
	recent, err := q.CreateJob(ctx, CreateOptions{UniversityIDs: []int64{3}})
	require.NoError(t, err)
	require.NoError(t, q.UpdateStatus(ctx, recent, model.JobStatusCompleted))

	n, err := q.CleanupOldJobs(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only terminal jobs past retention are deleted")

	_, err = q.GetJob(ctx, ancient.ID)
	assert.Error(t, err)
	_, err = q.GetJob(ctx, stillPending.ID)
	assert.NoError(t, err)
	_, err = q.GetJob(ctx, recent.ID)
	assert.NoError(t, err)
}

func TestStats(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	a, err := q.CreateJob(ctx, CreateOptions{UniversityIDs: []int64{1}})
	require.NoError(t, err)
	_, err = q.CreateJob(ctx, CreateOptions{UniversityIDs: []int64{2}})
	require.NoError(t, err)
	require.NoError(t, q.UpdateStatus(ctx, a, model.JobStatusRunning))

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ByStatus[model.JobStatusPending])
	assert.Equal(t, 1, stats.ByStatus[model.JobStatusRunning])
	assert.Equal(t, 2, stats.QueueDepth, "running jobs are only removed from the FIFO on dequeue or terminal transition")
}
