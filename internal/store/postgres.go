package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/campusdata/enrich-cli/internal/db"
	"github.com/campusdata/enrich-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_university":      `SELECT ` + universityColumns + ` FROM universities WHERE id = $1`,
	"get_job":             `SELECT ` + jobColumns + ` FROM enrichment_jobs WHERE id = $1`,
	"update_job_progress": `UPDATE enrichment_jobs SET processed = $1, successful_updates = $2, total_fields_filled = $3, errors_count = $4 WHERE id = $5`,
	"put_cache_entry": `INSERT INTO enrichment_cache (university_id, field_name, value, source, cached_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (university_id, field_name) DO UPDATE SET
			value = $3, source = $4, cached_at = $5, expires_at = $6`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for use by subsystems that need
// direct query access (e.g., bulk catalog import).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS universities (
	id                    BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
	name                  TEXT NOT NULL UNIQUE,
	city                  TEXT,
	state                 TEXT,
	country               TEXT,
	website               TEXT,
	logo_url              TEXT,
	description           TEXT,
	institution_type      TEXT,
	location_type         TEXT,
	total_students        BIGINT,
	acceptance_rate       DOUBLE PRECISION,
	gpa_average           DOUBLE PRECISION,
	sat_math_25th         BIGINT,
	sat_math_75th         BIGINT,
	sat_ebrw_25th         BIGINT,
	sat_ebrw_75th         BIGINT,
	act_composite_25th    BIGINT,
	act_composite_75th    BIGINT,
	tuition_out_state     DOUBLE PRECISION,
	total_cost            DOUBLE PRECISION,
	graduation_rate_4year DOUBLE PRECISION,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS enrichment_jobs (
	id                  TEXT PRIMARY KEY,
	status              TEXT NOT NULL DEFAULT 'pending',
	created_at          TIMESTAMPTZ NOT NULL,
	started_at          TIMESTAMPTZ,
	completed_at        TIMESTAMPTZ,
	job_limit           INTEGER NOT NULL DEFAULT 0,
	university_ids      JSONB,
	max_concurrent      INTEGER NOT NULL DEFAULT 3,
	total_universities  INTEGER NOT NULL DEFAULT 0,
	processed           INTEGER NOT NULL DEFAULT 0,
	successful_updates  INTEGER NOT NULL DEFAULT 0,
	total_fields_filled INTEGER NOT NULL DEFAULT 0,
	errors_count        INTEGER NOT NULL DEFAULT 0,
	error_message       TEXT,
	results             JSONB
);

CREATE TABLE IF NOT EXISTS enrichment_cache (
	university_id BIGINT NOT NULL REFERENCES universities(id),
	field_name    TEXT NOT NULL,
	value         JSONB NOT NULL,
	source        TEXT NOT NULL,
	cached_at     TIMESTAMPTZ NOT NULL,
	expires_at    TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (university_id, field_name)
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON enrichment_jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON enrichment_jobs(created_at);
CREATE INDEX IF NOT EXISTS idx_cache_expires_at ON enrichment_cache(expires_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetUniversity(ctx context.Context, id int64) (*model.University, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+universityColumns+` FROM universities WHERE id = $1`, id)
	u, err := scanUniversityPgx(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "university %d", id)
		}
		return nil, eris.Wrapf(err, "postgres: get university %d", id)
	}
	return u, nil
}

func (s *PostgresStore) ListUniversities(ctx context.Context, limit int) ([]model.University, error) {
	query := `SELECT ` + universityColumns + ` FROM universities ORDER BY id`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list universities")
	}
	defer rows.Close()

	var unis []model.University
	for rows.Next() {
		u, err := scanUniversityPgx(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan university")
		}
		unis = append(unis, *u)
	}
	return unis, eris.Wrap(rows.Err(), "postgres: list universities iterate")
}

func (s *PostgresStore) UpdateUniversityFields(ctx context.Context, id int64, fields map[model.Field]any) error {
	if len(fields) == 0 {
		return nil
	}

	var sets []string
	var args []any
	argIdx := 1
	for _, f := range model.FillableFields() {
		v, ok := fields[f]
		if !ok {
			continue
		}
		coerced, err := model.CoerceValue(f, v)
		if err != nil {
			return eris.Wrapf(err, "postgres: update university %d", id)
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", f, argIdx))
		args = append(args, coerced)
		argIdx++
	}
	if len(sets) != len(fields) {
		return eris.Errorf("postgres: update university %d: unknown field in update set", id)
	}

	sets = append(sets, fmt.Sprintf("updated_at = $%d", argIdx))
	args = append(args, time.Now().UTC())
	argIdx++
	args = append(args, id)

	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE universities SET %s WHERE id = $%d`, strings.Join(sets, ", "), argIdx),
		args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: update university %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "university %d", id)
	}
	return nil
}

// upsertColumns is the COPY column order for bulk catalog import.
var upsertColumns = []string{
	"name", "city", "state", "country", "website", "logo_url", "description",
	"institution_type", "location_type", "total_students", "acceptance_rate",
	"gpa_average", "sat_math_25th", "sat_math_75th", "sat_ebrw_25th", "sat_ebrw_75th",
	"act_composite_25th", "act_composite_75th", "tuition_out_state", "total_cost",
	"graduation_rate_4year", "created_at", "updated_at",
}

// UpsertUniversities bulk-imports records keyed by name using COPY into a
// temp table. Existing rows keep their populated attributes.
func (s *PostgresStore) UpsertUniversities(ctx context.Context, unis []model.University) (int, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(unis))
	for _, u := range unis {
		if strings.TrimSpace(u.Name) == "" {
			continue
		}
		rows = append(rows, []any{
			u.Name, u.City, u.State, u.Country, u.Website, u.LogoURL, u.Description,
			u.InstitutionType, u.LocationType, u.TotalStudents, u.AcceptanceRate,
			u.GPAAverage, u.SATMath25th, u.SATMath75th, u.SATEBRW25th, u.SATEBRW75th,
			u.ACTComposite25th, u.ACTComposite75th, u.TuitionOutState, u.TotalCost,
			u.GraduationRate4Year, now, now,
		})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:         "universities",
		Columns:       upsertColumns,
		ConflictKeys:  []string{"name"},
		UpdateCols:    upsertColumns[1 : len(upsertColumns)-2],
		FillNullsOnly: true,
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert universities")
	}
	return int(n), nil
}

func (s *PostgresStore) InsertJob(ctx context.Context, job *model.EnrichmentJob) error {
	idsJSON, resultsJSON, err := marshalJobBlobsPgx(job)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO enrichment_jobs (
			id, status, created_at, started_at, completed_at, job_limit,
			university_ids, max_concurrent, total_universities, processed,
			successful_updates, total_fields_filled, errors_count,
			error_message, results
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		job.ID, string(job.Status), job.CreatedAt, job.StartedAt, job.CompletedAt,
		job.Limit, idsJSON, job.MaxConcurrent, job.TotalUniversities, job.Processed,
		job.SuccessfulUpdates, job.TotalFieldsFilled, job.ErrorsCount,
		emptyToNil(job.ErrorMessage), resultsJSON,
	)
	return eris.Wrapf(err, "postgres: insert job %s", job.ID)
}

func (s *PostgresStore) UpdateJob(ctx context.Context, job *model.EnrichmentJob) error {
	idsJSON, resultsJSON, err := marshalJobBlobsPgx(job)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE enrichment_jobs SET
			status = $1, started_at = $2, completed_at = $3, job_limit = $4,
			university_ids = $5, max_concurrent = $6, total_universities = $7,
			processed = $8, successful_updates = $9, total_fields_filled = $10,
			errors_count = $11, error_message = $12, results = $13
		WHERE id = $14`,
		string(job.Status), job.StartedAt, job.CompletedAt, job.Limit,
		idsJSON, job.MaxConcurrent, job.TotalUniversities,
		job.Processed, job.SuccessfulUpdates, job.TotalFieldsFilled,
		job.ErrorsCount, emptyToNil(job.ErrorMessage), resultsJSON,
		job.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update job %s", job.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "job %s", job.ID)
	}
	return nil
}

func (s *PostgresStore) UpdateJobProgress(ctx context.Context, id string, processed, successful, fieldsFilled, errs int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE enrichment_jobs SET processed = $1, successful_updates = $2, total_fields_filled = $3, errors_count = $4 WHERE id = $5`,
		processed, successful, fieldsFilled, errs, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update job progress %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "job %s", id)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id string) (*model.EnrichmentJob, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM enrichment_jobs WHERE id = $1`, id)
	j, err := scanJobPgx(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "job %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get job %s", id)
	}
	return j, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.EnrichmentJob, error) {
	query := `SELECT ` + jobColumns + ` FROM enrichment_jobs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list jobs")
	}
	defer rows.Close()

	return collectJobsPgx(rows)
}

func (s *PostgresStore) ListActiveJobs(ctx context.Context) ([]model.EnrichmentJob, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM enrichment_jobs WHERE status IN ($1, $2) ORDER BY created_at ASC`,
		string(model.JobStatusPending), string(model.JobStatusRunning),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list active jobs")
	}
	defer rows.Close()

	return collectJobsPgx(rows)
}

func (s *PostgresStore) CountJobsByStatus(ctx context.Context) (map[model.JobStatus]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM enrichment_jobs GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count jobs")
	}
	defer rows.Close()

	counts := make(map[model.JobStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan job count")
		}
		counts[model.JobStatus(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: count jobs iterate")
}

func (s *PostgresStore) DeleteTerminalJobsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM enrichment_jobs
		WHERE status IN ($1, $2, $3)
		  AND COALESCE(completed_at, created_at) <= $4`,
		string(model.JobStatusCompleted), string(model.JobStatusFailed),
		string(model.JobStatusCancelled), cutoff,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete terminal jobs")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) GetCacheEntries(ctx context.Context, universityID int64, fields []model.Field, now time.Time) ([]CacheEntry, error) {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM enrichment_cache WHERE university_id = $1 AND expires_at <= $2`,
		universityID, now,
	); err != nil {
		return nil, eris.Wrapf(err, "postgres: purge cache for university %d", universityID)
	}

	query := `SELECT university_id, field_name, value, source, cached_at, expires_at
		FROM enrichment_cache WHERE university_id = $1`
	args := []any{universityID}

	if len(fields) > 0 {
		names := make([]string, len(fields))
		for i, f := range fields {
			names[i] = string(f)
		}
		query += ` AND field_name = ANY($2)`
		args = append(args, names)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get cache for university %d", universityID)
	}
	defer rows.Close()

	var entries []CacheEntry
	for rows.Next() {
		var e CacheEntry
		var field string
		var valueJSON []byte
		if err := rows.Scan(&e.UniversityID, &field, &valueJSON, &e.Source, &e.CachedAt, &e.ExpiresAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan cache entry")
		}
		e.Field = model.Field(field)
		v, err := decodeCacheValue(e.Field, string(valueJSON))
		if err != nil {
			return nil, err
		}
		e.Value = v
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: get cache iterate")
}

func (s *PostgresStore) PutCacheEntry(ctx context.Context, e CacheEntry) error {
	valueJSON, err := json.Marshal(e.Value)
	if err != nil {
		return eris.Wrapf(err, "postgres: marshal cache value for %s", e.Field)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO enrichment_cache (university_id, field_name, value, source, cached_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (university_id, field_name) DO UPDATE SET
			value = $3, source = $4, cached_at = $5, expires_at = $6`,
		e.UniversityID, string(e.Field), valueJSON, e.Source, e.CachedAt, e.ExpiresAt,
	)
	return eris.Wrapf(err, "postgres: put cache entry %d/%s", e.UniversityID, e.Field)
}

func (s *PostgresStore) DeleteCacheByUniversity(ctx context.Context, universityID int64) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM enrichment_cache WHERE university_id = $1`, universityID)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: delete cache for university %d", universityID)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) DeleteCacheByField(ctx context.Context, field model.Field) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM enrichment_cache WHERE field_name = $1`, string(field))
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: delete cache for field %s", field)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) DeleteExpiredCache(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM enrichment_cache WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired cache")
	}
	return int(tag.RowsAffected()), nil
}

// helpers

func emptyToNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func marshalJobBlobsPgx(job *model.EnrichmentJob) ([]byte, []byte, error) {
	var idsJSON, resultsJSON []byte
	if len(job.UniversityIDs) > 0 {
		b, err := json.Marshal(job.UniversityIDs)
		if err != nil {
			return nil, nil, eris.Wrap(err, "postgres: marshal university ids")
		}
		idsJSON = b
	}
	if job.Results != nil {
		b, err := json.Marshal(job.Results)
		if err != nil {
			return nil, nil, eris.Wrap(err, "postgres: marshal job results")
		}
		resultsJSON = b
	}
	return idsJSON, resultsJSON, nil
}

func scanUniversityPgx(row pgx.Row) (*model.University, error) {
	var u model.University
	err := row.Scan(
		&u.ID, &u.Name, &u.City, &u.State, &u.Country, &u.Website, &u.LogoURL,
		&u.Description, &u.InstitutionType, &u.LocationType, &u.TotalStudents,
		&u.AcceptanceRate, &u.GPAAverage,
		&u.SATMath25th, &u.SATMath75th, &u.SATEBRW25th, &u.SATEBRW75th,
		&u.ACTComposite25th, &u.ACTComposite75th,
		&u.TuitionOutState, &u.TotalCost, &u.GraduationRate4Year,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func scanJobPgx(row pgx.Row) (*model.EnrichmentJob, error) {
	var j model.EnrichmentJob
	var status string
	var idsJSON, resultsJSON []byte
	var errMsg *string

	err := row.Scan(
		&j.ID, &status, &j.CreatedAt, &j.StartedAt, &j.CompletedAt, &j.Limit,
		&idsJSON, &j.MaxConcurrent, &j.TotalUniversities, &j.Processed,
		&j.SuccessfulUpdates, &j.TotalFieldsFilled, &j.ErrorsCount,
		&errMsg, &resultsJSON,
	)
	if err != nil {
		return nil, err
	}

	j.Status = model.JobStatus(status)
	if errMsg != nil {
		j.ErrorMessage = *errMsg
	}
	if len(idsJSON) > 0 {
		if err := json.Unmarshal(idsJSON, &j.UniversityIDs); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal university ids")
		}
	}
	if len(resultsJSON) > 0 {
		j.Results = &model.JobResults{}
		if err := json.Unmarshal(resultsJSON, j.Results); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal job results")
		}
	}
	return &j, nil
}

func collectJobsPgx(rows pgx.Rows) ([]model.EnrichmentJob, error) {
	var jobs []model.EnrichmentJob
	for rows.Next() {
		j, err := scanJobPgx(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan job")
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: iterate jobs")
}
