// Package worker runs enrichment jobs: it dequeues pending work, resolves
// the entity set, and fans out per-institution enrichment under the job's
// concurrency cap.
package worker

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/campusdata/enrich-cli/internal/model"
	"github.com/campusdata/enrich-cli/internal/pipeline"
	"github.com/campusdata/enrich-cli/internal/queue"
	"github.com/campusdata/enrich-cli/internal/store"
)

// DefaultPollInterval is how long a continuous worker sleeps when the queue
// is empty.
const DefaultPollInterval = 5 * time.Second

// Worker drains the job queue.
type Worker struct {
	store        store.Store
	queue        *queue.Queue
	orchestrator *pipeline.Orchestrator
	pollInterval time.Duration
}

// New creates a Worker.
func New(st store.Store, q *queue.Queue, orch *pipeline.Orchestrator, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Worker{store: st, queue: q, orchestrator: orch, pollInterval: pollInterval}
}

// Run processes jobs until the context is cancelled. With continuous set it
// polls for new work when the queue drains; otherwise it returns once the
// queue is empty.
func (w *Worker) Run(ctx context.Context, continuous bool) error {
	for {
		job, err := w.queue.NextPending(ctx)
		if err != nil {
			return eris.Wrap(err, "worker: dequeue")
		}
		if job == nil {
			if !continuous {
				return nil
			}
			timer := time.NewTimer(w.pollInterval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
				continue
			}
		}

		if err := w.runJob(ctx, job); err != nil {
			// runJob marks the job FAILED itself; an error here means even
			// that could not be persisted.
			zap.L().Error("job execution failed",
				zap.String("job_id", job.ID),
				zap.Error(err))
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// RunOne processes at most one pending job. Returns false when the queue
// was empty.
func (w *Worker) RunOne(ctx context.Context) (bool, error) {
	job, err := w.queue.NextPending(ctx)
	if err != nil {
		return false, eris.Wrap(err, "worker: dequeue")
	}
	if job == nil {
		return false, nil
	}
	return true, w.runJob(ctx, job)
}

func (w *Worker) runJob(ctx context.Context, job *model.EnrichmentJob) error {
	log := zap.L().With(zap.String("job_id", job.ID))

	unis, err := w.resolveEntities(ctx, job)
	if err != nil {
		return w.failJob(ctx, job, eris.Wrap(err, "resolve entities"))
	}
	job.TotalUniversities = len(unis)
	if err := w.queue.UpdateStatus(ctx, job, model.JobStatusRunning); err != nil {
		return err
	}
	log.Info("job started",
		zap.Int("universities", len(unis)),
		zap.Int("max_concurrent", job.MaxConcurrent))

	results := &model.JobResults{FieldsFilledByName: make(map[model.Field]int)}
	var resultsMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(queue.ClampConcurrency(job.MaxConcurrent))

	for i := range unis {
		u := unis[i]
		g.Go(func() error {
			filled, n, err := w.orchestrator.Enrich(gctx, &u)

			resultsMu.Lock()
			results.UniversitiesProcessed++
			if err != nil {
				results.Errors = append(results.Errors, model.JobEntityError{
					UniversityID: u.ID,
					Name:         u.Name,
					Error:        err.Error(),
				})
			} else if n > 0 {
				results.UniversitiesUpdated++
				results.TotalFieldsFilled += n
				for f := range filled {
					results.FieldsFilledByName[f]++
				}
			}
			resultsMu.Unlock()

			if err != nil {
				log.Warn("university enrichment failed",
					zap.Int64("university_id", u.ID),
					zap.String("name", u.Name),
					zap.Error(err))
				if pErr := w.queue.ReportProgress(gctx, job, 1, 0, 0, 1); pErr != nil {
					log.Warn("progress flush failed", zap.Error(pErr))
				}
				return nil // don't abort batch on individual failure
			}

			success := 0
			if n > 0 {
				success = 1
			}
			if pErr := w.queue.ReportProgress(gctx, job, 1, success, n, 0); pErr != nil {
				log.Warn("progress flush failed", zap.Error(pErr))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return w.failJob(ctx, job, eris.Wrap(err, "batch aborted"))
	}
	if ctx.Err() != nil {
		return w.failJob(ctx, job, eris.Wrap(ctx.Err(), "batch interrupted"))
	}

	job.Results = results
	if err := w.queue.UpdateStatus(ctx, job, model.JobStatusCompleted); err != nil {
		return err
	}
	log.Info("job completed",
		zap.Int("processed", results.UniversitiesProcessed),
		zap.Int("updated", results.UniversitiesUpdated),
		zap.Int("fields_filled", results.TotalFieldsFilled),
		zap.Int("errors", len(results.Errors)))
	return nil
}

func (w *Worker) failJob(ctx context.Context, job *model.EnrichmentJob, cause error) error {
	job.ErrorMessage = cause.Error()
	if err := w.queue.UpdateStatus(ctx, job, model.JobStatusFailed); err != nil {
		return eris.Wrapf(err, "worker: mark job %s failed", job.ID)
	}
	zap.L().Error("job failed",
		zap.String("job_id", job.ID),
		zap.Error(cause))
	return nil
}

// resolveEntities turns the job's selector into concrete records: the
// explicit id list when given, otherwise a size-bounded selection scored so
// the most incomplete records are serviced first.
func (w *Worker) resolveEntities(ctx context.Context, job *model.EnrichmentJob) ([]model.University, error) {
	if len(job.UniversityIDs) > 0 {
		unis := make([]model.University, 0, len(job.UniversityIDs))
		for _, id := range job.UniversityIDs {
			u, err := w.store.GetUniversity(ctx, id)
			if err != nil {
				if eris.Is(err, store.ErrNotFound) {
					zap.L().Warn("skipping unknown university",
						zap.String("job_id", job.ID),
						zap.Int64("university_id", id))
					continue
				}
				return nil, err
			}
			unis = append(unis, *u)
		}
		return unis, nil
	}

	all, err := w.store.ListUniversities(ctx, 0)
	if err != nil {
		return nil, err
	}

	var incomplete []model.University
	for _, u := range all {
		if u.EnrichmentScore() > 0 {
			incomplete = append(incomplete, u)
		}
	}
	sort.SliceStable(incomplete, func(i, j int) bool {
		return incomplete[i].EnrichmentScore() > incomplete[j].EnrichmentScore()
	})

	if job.Limit > 0 && len(incomplete) > job.Limit {
		incomplete = incomplete[:job.Limit]
	}
	return incomplete, nil
}
