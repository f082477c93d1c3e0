package model

import "time"

// JobStatus represents the lifecycle state of an enrichment job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status is a terminal state.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// Valid reports whether s is a known job status.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// EnrichmentJob is one tracked unit of batch enrichment work.
// Transitions are monotonic: pending → running → {completed, failed},
// or pending → cancelled. StartedAt and CompletedAt are set exactly once.
type EnrichmentJob struct {
	ID          string     `json:"job_id"`
	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Entity selection: either an explicit id list, or a size-bounded
	// scored selection when Limit is set and IDs is empty.
	Limit         int     `json:"limit,omitempty"`
	UniversityIDs []int64 `json:"university_ids,omitempty"`
	MaxConcurrent int     `json:"max_concurrent"`

	// Progress counters.
	TotalUniversities int `json:"total_universities"`
	Processed         int `json:"processed"`
	SuccessfulUpdates int `json:"successful_updates"`
	TotalFieldsFilled int `json:"total_fields_filled"`
	ErrorsCount       int `json:"errors_count"`

	ErrorMessage string      `json:"error_message,omitempty"`
	Results      *JobResults `json:"results,omitempty"`
}

// JobResults summarizes a completed job.
type JobResults struct {
	UniversitiesProcessed int              `json:"universities_processed"`
	UniversitiesUpdated   int              `json:"universities_updated"`
	TotalFieldsFilled     int              `json:"total_fields_filled"`
	FieldsFilledByName    map[Field]int    `json:"fields_filled_by_name,omitempty"`
	Errors                []JobEntityError `json:"errors,omitempty"`
}

// JobEntityError records one failed entity inside a batch.
type JobEntityError struct {
	UniversityID int64  `json:"university_id"`
	Name         string `json:"name,omitempty"`
	Error        string `json:"error"`
}
