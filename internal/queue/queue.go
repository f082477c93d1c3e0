// Package queue manages durable enrichment jobs: an in-memory FIFO of
// pending work backed by the persistent store as the source of truth.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/campusdata/enrich-cli/internal/model"
	"github.com/campusdata/enrich-cli/internal/store"
)

// flushInterval bounds write amplification: progress counters hit the store
// every this many processed entities, plus once at completion.
const flushInterval = 10

// Concurrency bounds for a job's entity fan-out.
const (
	MinConcurrent     = 1
	MaxConcurrent     = 20
	DefaultConcurrent = 3
)

// ErrNotCancellable is returned when cancelling a job that already left PENDING.
var ErrNotCancellable = eris.New("queue: only pending jobs can be cancelled")

// CreateOptions selects the entities a new job covers.
type CreateOptions struct {
	// UniversityIDs is the explicit entity list. When empty, the worker
	// resolves a size-bounded scored selection using Limit.
	UniversityIDs []int64

	// Limit bounds the scored selection when UniversityIDs is empty.
	Limit int

	// MaxConcurrent caps the per-job fan-out; clamped to [1, 20].
	MaxConcurrent int
}

// Stats summarizes queue state.
type Stats struct {
	ByStatus   map[model.JobStatus]int `json:"by_status"`
	QueueDepth int                     `json:"queue_depth"`
}

// Queue is the durable job queue. The pending FIFO lives in memory and is
// rebuilt from the store on startup; every state change is persisted before
// it is visible.
type Queue struct {
	store store.Store
	now   func() time.Time

	mu      sync.Mutex
	pending []string
}

// New creates a Queue and rehydrates unfinished jobs from the store:
// pending jobs rejoin the FIFO, and jobs left running by a crashed worker
// are reset to pending and requeued.
func New(ctx context.Context, st store.Store) (*Queue, error) {
	q := &Queue{store: st, now: time.Now}

	active, err := st.ListActiveJobs(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "queue: rehydrate")
	}
	for i := range active {
		job := &active[i]
		if job.Status == model.JobStatusRunning {
			job.Status = model.JobStatusPending
			if err := st.UpdateJob(ctx, job); err != nil {
				return nil, eris.Wrapf(err, "queue: requeue interrupted job %s", job.ID)
			}
			zap.L().Info("requeued interrupted job", zap.String("job_id", job.ID))
		}
		q.pending = append(q.pending, job.ID)
	}
	if len(q.pending) > 0 {
		zap.L().Info("rehydrated job queue", zap.Int("pending", len(q.pending)))
	}
	return q, nil
}

// WithClock overrides the queue's time source. Used by tests.
func (q *Queue) WithClock(now func() time.Time) *Queue {
	q.now = now
	return q
}

// ClampConcurrency bounds a requested fan-out to the allowed range,
// defaulting when unset.
func ClampConcurrency(n int) int {
	if n == 0 {
		return DefaultConcurrent
	}
	if n < MinConcurrent {
		return MinConcurrent
	}
	if n > MaxConcurrent {
		return MaxConcurrent
	}
	return n
}

// CreateJob persists a new PENDING job and appends it to the FIFO.
func (q *Queue) CreateJob(ctx context.Context, opts CreateOptions) (*model.EnrichmentJob, error) {
	job := &model.EnrichmentJob{
		ID:                uuid.New().String(),
		Status:            model.JobStatusPending,
		CreatedAt:         q.now().UTC(),
		Limit:             opts.Limit,
		UniversityIDs:     opts.UniversityIDs,
		MaxConcurrent:     ClampConcurrency(opts.MaxConcurrent),
		TotalUniversities: len(opts.UniversityIDs),
	}

	if err := q.store.InsertJob(ctx, job); err != nil {
		return nil, eris.Wrap(err, "queue: create job")
	}

	q.mu.Lock()
	q.pending = append(q.pending, job.ID)
	q.mu.Unlock()

	zap.L().Info("job created",
		zap.String("job_id", job.ID),
		zap.Int("universities", len(opts.UniversityIDs)),
		zap.Int("limit", opts.Limit),
		zap.Int("max_concurrent", job.MaxConcurrent))
	return job, nil
}

// NextPending pops the head of the FIFO, discarding stale entries whose
// persisted status has changed (e.g. cancelled while queued). Returns nil
// when no pending work exists.
func (q *Queue) NextPending(ctx context.Context) (*model.EnrichmentJob, error) {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.mu.Unlock()
			return nil, nil
		}
		id := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		job, err := q.store.GetJob(ctx, id)
		if err != nil {
			if eris.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, eris.Wrapf(err, "queue: dequeue %s", id)
		}
		if job.Status != model.JobStatusPending {
			zap.L().Debug("skipping stale queue entry",
				zap.String("job_id", id),
				zap.String("status", string(job.Status)))
			continue
		}
		return job, nil
	}
}

// UpdateStatus transitions a job and persists the full snapshot. StartedAt
// is set on the first transition to RUNNING and CompletedAt on the first
// terminal transition; both are set exactly once.
func (q *Queue) UpdateStatus(ctx context.Context, job *model.EnrichmentJob, status model.JobStatus) error {
	if !status.Valid() {
		return eris.Errorf("queue: invalid status %q", status)
	}

	now := q.now().UTC()
	job.Status = status
	if status == model.JobStatusRunning && job.StartedAt == nil {
		job.StartedAt = &now
	}
	if status.Terminal() {
		if job.CompletedAt == nil {
			job.CompletedAt = &now
		}
		q.removePending(job.ID)
	}

	if err := q.store.UpdateJob(ctx, job); err != nil {
		return eris.Wrapf(err, "queue: update status %s", job.ID)
	}
	return nil
}

// ReportProgress applies counter deltas to the in-memory job and flushes to
// the store every flushInterval processed entities. Safe for concurrent use
// by a job's fan-out goroutines.
func (q *Queue) ReportProgress(ctx context.Context, job *model.EnrichmentJob, processed, successful, fieldsFilled, errs int) error {
	q.mu.Lock()
	job.Processed += processed
	job.SuccessfulUpdates += successful
	job.TotalFieldsFilled += fieldsFilled
	job.ErrorsCount += errs
	flush := job.Processed%flushInterval == 0
	p, s, f, e := job.Processed, job.SuccessfulUpdates, job.TotalFieldsFilled, job.ErrorsCount
	q.mu.Unlock()

	if !flush {
		return nil
	}
	if err := q.store.UpdateJobProgress(ctx, job.ID, p, s, f, e); err != nil {
		return eris.Wrapf(err, "queue: flush progress %s", job.ID)
	}
	return nil
}

// CancelJob cancels a job if and only if it is still PENDING.
func (q *Queue) CancelJob(ctx context.Context, id string) (*model.EnrichmentJob, error) {
	job, err := q.store.GetJob(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "queue: cancel %s", id)
	}
	if job.Status != model.JobStatusPending {
		return nil, eris.Wrapf(ErrNotCancellable, "job %s is %s", id, job.Status)
	}

	if err := q.UpdateStatus(ctx, job, model.JobStatusCancelled); err != nil {
		return nil, err
	}
	zap.L().Info("job cancelled", zap.String("job_id", id))
	return job, nil
}

// CleanupOldJobs deletes terminal jobs older than the retention window.
func (q *Queue) CleanupOldJobs(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := q.now().UTC().Add(-retention)
	n, err := q.store.DeleteTerminalJobsBefore(ctx, cutoff)
	if err != nil {
		return 0, eris.Wrap(err, "queue: cleanup")
	}
	if n > 0 {
		zap.L().Info("cleaned up old jobs", zap.Int("deleted", n))
	}
	return n, nil
}

// GetJob fetches one job by id.
func (q *Queue) GetJob(ctx context.Context, id string) (*model.EnrichmentJob, error) {
	return q.store.GetJob(ctx, id)
}

// ListJobs lists jobs by filter, most recent first.
func (q *Queue) ListJobs(ctx context.Context, filter store.JobFilter) ([]model.EnrichmentJob, error) {
	return q.store.ListJobs(ctx, filter)
}

// Stats returns job counts by status plus the in-memory queue depth.
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	counts, err := q.store.CountJobsByStatus(ctx)
	if err != nil {
		return Stats{}, eris.Wrap(err, "queue: stats")
	}
	q.mu.Lock()
	depth := len(q.pending)
	q.mu.Unlock()
	return Stats{ByStatus: counts, QueueDepth: depth}, nil
}

func (q *Queue) removePending(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, pid := range q.pending {
		if pid == id {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return
		}
	}
}
