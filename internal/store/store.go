// Package store defines persistence for institution records, enrichment
// jobs, and the field cache, with SQLite and Postgres implementations.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/campusdata/enrich-cli/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = eris.New("store: not found")

// JobFilter specifies criteria for listing jobs.
type JobFilter struct {
	Status model.JobStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// CacheEntry is one cached field value for an institution, keyed by the
// source that produced it. Invariant: ExpiresAt > CachedAt.
type CacheEntry struct {
	UniversityID int64       `json:"university_id"`
	Field        model.Field `json:"field_name"`
	Value        any         `json:"value"`
	Source       string      `json:"source"`
	CachedAt     time.Time   `json:"cached_at"`
	ExpiresAt    time.Time   `json:"expires_at"`
}

// Store is the keyed-table persistence interface for the enrichment pipeline.
type Store interface {
	// Universities
	GetUniversity(ctx context.Context, id int64) (*model.University, error)
	ListUniversities(ctx context.Context, limit int) ([]model.University, error)
	UpdateUniversityFields(ctx context.Context, id int64, fields map[model.Field]any) error
	UpsertUniversities(ctx context.Context, unis []model.University) (int, error)

	// Jobs
	InsertJob(ctx context.Context, job *model.EnrichmentJob) error
	UpdateJob(ctx context.Context, job *model.EnrichmentJob) error
	UpdateJobProgress(ctx context.Context, id string, processed, successful, fieldsFilled, errs int) error
	GetJob(ctx context.Context, id string) (*model.EnrichmentJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]model.EnrichmentJob, error)
	ListActiveJobs(ctx context.Context) ([]model.EnrichmentJob, error)
	CountJobsByStatus(ctx context.Context) (map[model.JobStatus]int, error)
	DeleteTerminalJobsBefore(ctx context.Context, cutoff time.Time) (int, error)

	// Field cache
	GetCacheEntries(ctx context.Context, universityID int64, fields []model.Field, now time.Time) ([]CacheEntry, error)
	PutCacheEntry(ctx context.Context, e CacheEntry) error
	DeleteCacheByUniversity(ctx context.Context, universityID int64) (int, error)
	DeleteCacheByField(ctx context.Context, field model.Field) (int, error)
	DeleteExpiredCache(ctx context.Context, now time.Time) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
