package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/campusdata/enrich-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS universities (
	id                    INTEGER PRIMARY KEY AUTOINCREMENT,
	name                  TEXT NOT NULL UNIQUE,
	city                  TEXT,
	state                 TEXT,
	country               TEXT,
	website               TEXT,
	logo_url              TEXT,
	description           TEXT,
	institution_type      TEXT,
	location_type         TEXT,
	total_students        INTEGER,
	acceptance_rate       REAL,
	gpa_average           REAL,
	sat_math_25th         INTEGER,
	sat_math_75th         INTEGER,
	sat_ebrw_25th         INTEGER,
	sat_ebrw_75th         INTEGER,
	act_composite_25th    INTEGER,
	act_composite_75th    INTEGER,
	tuition_out_state     REAL,
	total_cost            REAL,
	graduation_rate_4year REAL,
	created_at            DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at            DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS enrichment_jobs (
	id                  TEXT PRIMARY KEY,
	status              TEXT NOT NULL DEFAULT 'pending',
	created_at          DATETIME NOT NULL,
	started_at          DATETIME,
	completed_at        DATETIME,
	job_limit           INTEGER NOT NULL DEFAULT 0,
	university_ids      TEXT,
	max_concurrent      INTEGER NOT NULL DEFAULT 3,
	total_universities  INTEGER NOT NULL DEFAULT 0,
	processed           INTEGER NOT NULL DEFAULT 0,
	successful_updates  INTEGER NOT NULL DEFAULT 0,
	total_fields_filled INTEGER NOT NULL DEFAULT 0,
	errors_count        INTEGER NOT NULL DEFAULT 0,
	error_message       TEXT,
	results             TEXT
);

CREATE TABLE IF NOT EXISTS enrichment_cache (
	university_id INTEGER NOT NULL REFERENCES universities(id),
	field_name    TEXT NOT NULL,
	value         TEXT NOT NULL,
	source        TEXT NOT NULL,
	cached_at     DATETIME NOT NULL,
	expires_at    DATETIME NOT NULL,
	PRIMARY KEY (university_id, field_name)
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON enrichment_jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON enrichment_jobs(created_at);
CREATE INDEX IF NOT EXISTS idx_cache_expires_at ON enrichment_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const universityColumns = `id, name, city, state, country, website, logo_url, description,
	institution_type, location_type, total_students, acceptance_rate, gpa_average,
	sat_math_25th, sat_math_75th, sat_ebrw_25th, sat_ebrw_75th,
	act_composite_25th, act_composite_75th, tuition_out_state, total_cost,
	graduation_rate_4year, created_at, updated_at`

func (s *SQLiteStore) GetUniversity(ctx context.Context, id int64) (*model.University, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+universityColumns+` FROM universities WHERE id = ?`, id)
	u, err := scanUniversity(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get university %d", id)
	}
	return u, nil
}

func (s *SQLiteStore) ListUniversities(ctx context.Context, limit int) ([]model.University, error) {
	query := `SELECT ` + universityColumns + ` FROM universities ORDER BY id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list universities")
	}
	defer rows.Close()

	var unis []model.University
	for rows.Next() {
		u, err := scanUniversity(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan university")
		}
		unis = append(unis, *u)
	}
	return unis, eris.Wrap(rows.Err(), "sqlite: list universities iterate")
}

// UpdateUniversityFields sets the given fields on one record. Field keys are
// validated against the closed fillable set, so the column names interpolated
// into the statement can never carry caller input.
func (s *SQLiteStore) UpdateUniversityFields(ctx context.Context, id int64, fields map[model.Field]any) error {
	if len(fields) == 0 {
		return nil
	}

	var sets []string
	var args []any
	for _, f := range model.FillableFields() {
		v, ok := fields[f]
		if !ok {
			continue
		}
		coerced, err := model.CoerceValue(f, v)
		if err != nil {
			return eris.Wrapf(err, "sqlite: update university %d", id)
		}
		sets = append(sets, fmt.Sprintf("%s = ?", f))
		args = append(args, coerced)
	}
	if len(sets) != len(fields) {
		return eris.Errorf("sqlite: update university %d: unknown field in update set", id)
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE universities SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update university %d", id)
	}
	return checkRowsAffected(res, "university", fmt.Sprintf("%d", id))
}

// UpsertUniversities inserts records keyed by name. Existing rows keep their
// populated attributes; only NULL columns are filled from the incoming row.
func (s *SQLiteStore) UpsertUniversities(ctx context.Context, unis []model.University) (int, error) {
	if len(unis) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO universities (
			name, city, state, country, website, logo_url, description,
			institution_type, location_type, total_students, acceptance_rate,
			gpa_average, sat_math_25th, sat_math_75th, sat_ebrw_25th, sat_ebrw_75th,
			act_composite_25th, act_composite_75th, tuition_out_state, total_cost,
			graduation_rate_4year, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			city = COALESCE(universities.city, excluded.city),
			state = COALESCE(universities.state, excluded.state),
			country = COALESCE(universities.country, excluded.country),
			website = COALESCE(universities.website, excluded.website),
			logo_url = COALESCE(universities.logo_url, excluded.logo_url),
			description = COALESCE(universities.description, excluded.description),
			institution_type = COALESCE(universities.institution_type, excluded.institution_type),
			location_type = COALESCE(universities.location_type, excluded.location_type),
			total_students = COALESCE(universities.total_students, excluded.total_students),
			acceptance_rate = COALESCE(universities.acceptance_rate, excluded.acceptance_rate),
			gpa_average = COALESCE(universities.gpa_average, excluded.gpa_average),
			sat_math_25th = COALESCE(universities.sat_math_25th, excluded.sat_math_25th),
			sat_math_75th = COALESCE(universities.sat_math_75th, excluded.sat_math_75th),
			sat_ebrw_25th = COALESCE(universities.sat_ebrw_25th, excluded.sat_ebrw_25th),
			sat_ebrw_75th = COALESCE(universities.sat_ebrw_75th, excluded.sat_ebrw_75th),
			act_composite_25th = COALESCE(universities.act_composite_25th, excluded.act_composite_25th),
			act_composite_75th = COALESCE(universities.act_composite_75th, excluded.act_composite_75th),
			tuition_out_state = COALESCE(universities.tuition_out_state, excluded.tuition_out_state),
			total_cost = COALESCE(universities.total_cost, excluded.total_cost),
			graduation_rate_4year = COALESCE(universities.graduation_rate_4year, excluded.graduation_rate_4year),
			updated_at = excluded.updated_at`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare upsert")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	count := 0
	for _, u := range unis {
		if strings.TrimSpace(u.Name) == "" {
			continue
		}
		_, err := stmt.ExecContext(ctx,
			u.Name, u.City, u.State, u.Country, u.Website, u.LogoURL, u.Description,
			u.InstitutionType, u.LocationType, u.TotalStudents, u.AcceptanceRate,
			u.GPAAverage, u.SATMath25th, u.SATMath75th, u.SATEBRW25th, u.SATEBRW75th,
			u.ACTComposite25th, u.ACTComposite75th, u.TuitionOutState, u.TotalCost,
			u.GraduationRate4Year, now, now,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert university %q", u.Name)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit upsert")
	}
	return count, nil
}

func (s *SQLiteStore) InsertJob(ctx context.Context, job *model.EnrichmentJob) error {
	idsJSON, resultsJSON, err := marshalJobBlobs(job)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO enrichment_jobs (
			id, status, created_at, started_at, completed_at, job_limit,
			university_ids, max_concurrent, total_universities, processed,
			successful_updates, total_fields_filled, errors_count,
			error_message, results
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, string(job.Status), job.CreatedAt, job.StartedAt, job.CompletedAt,
		job.Limit, idsJSON, job.MaxConcurrent, job.TotalUniversities, job.Processed,
		job.SuccessfulUpdates, job.TotalFieldsFilled, job.ErrorsCount,
		nullIfEmpty(job.ErrorMessage), resultsJSON,
	)
	return eris.Wrapf(err, "sqlite: insert job %s", job.ID)
}

func (s *SQLiteStore) UpdateJob(ctx context.Context, job *model.EnrichmentJob) error {
	idsJSON, resultsJSON, err := marshalJobBlobs(job)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE enrichment_jobs SET
			status = ?, started_at = ?, completed_at = ?, job_limit = ?,
			university_ids = ?, max_concurrent = ?, total_universities = ?,
			processed = ?, successful_updates = ?, total_fields_filled = ?,
			errors_count = ?, error_message = ?, results = ?
		WHERE id = ?`,
		string(job.Status), job.StartedAt, job.CompletedAt, job.Limit,
		idsJSON, job.MaxConcurrent, job.TotalUniversities,
		job.Processed, job.SuccessfulUpdates, job.TotalFieldsFilled,
		job.ErrorsCount, nullIfEmpty(job.ErrorMessage), resultsJSON,
		job.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update job %s", job.ID)
	}
	return checkRowsAffected(res, "job", job.ID)
}

func (s *SQLiteStore) UpdateJobProgress(ctx context.Context, id string, processed, successful, fieldsFilled, errs int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE enrichment_jobs SET
			processed = ?, successful_updates = ?, total_fields_filled = ?, errors_count = ?
		WHERE id = ?`,
		processed, successful, fieldsFilled, errs, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update job progress %s", id)
	}
	return checkRowsAffected(res, "job", id)
}

const jobColumns = `id, status, created_at, started_at, completed_at, job_limit,
	university_ids, max_concurrent, total_universities, processed,
	successful_updates, total_fields_filled, errors_count, error_message, results`

func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*model.EnrichmentJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM enrichment_jobs WHERE id = ?`, id)
	return scanJob(row)
}

func (s *SQLiteStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.EnrichmentJob, error) {
	query := `SELECT ` + jobColumns + ` FROM enrichment_jobs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list jobs")
	}
	defer rows.Close()

	return collectJobs(rows)
}

func (s *SQLiteStore) ListActiveJobs(ctx context.Context) ([]model.EnrichmentJob, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM enrichment_jobs
		 WHERE status IN (?, ?) ORDER BY created_at ASC`,
		string(model.JobStatusPending), string(model.JobStatusRunning),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list active jobs")
	}
	defer rows.Close()

	return collectJobs(rows)
}

func (s *SQLiteStore) CountJobsByStatus(ctx context.Context) (map[model.JobStatus]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM enrichment_jobs GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count jobs")
	}
	defer rows.Close()

	counts := make(map[model.JobStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan job count")
		}
		counts[model.JobStatus(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: count jobs iterate")
}

func (s *SQLiteStore) DeleteTerminalJobsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM enrichment_jobs
		WHERE status IN (?, ?, ?)
		  AND COALESCE(completed_at, created_at) <= ?`,
		string(model.JobStatusCompleted), string(model.JobStatusFailed),
		string(model.JobStatusCancelled), cutoff,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete terminal jobs")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// GetCacheEntries returns unexpired cache rows for the given fields (all
// fields when the slice is empty). Expired rows for the record are purged
// on the way, keeping the table from accumulating stale values.
func (s *SQLiteStore) GetCacheEntries(ctx context.Context, universityID int64, fields []model.Field, now time.Time) ([]CacheEntry, error) {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM enrichment_cache WHERE university_id = ? AND expires_at <= ?`,
		universityID, now,
	); err != nil {
		return nil, eris.Wrapf(err, "sqlite: purge cache for university %d", universityID)
	}

	query := `SELECT university_id, field_name, value, source, cached_at, expires_at
		FROM enrichment_cache WHERE university_id = ?`
	args := []any{universityID}

	if len(fields) > 0 {
		placeholders := make([]string, len(fields))
		for i, f := range fields {
			placeholders[i] = "?"
			args = append(args, string(f))
		}
		query += ` AND field_name IN (` + strings.Join(placeholders, ", ") + `)`
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get cache for university %d", universityID)
	}
	defer rows.Close()

	var entries []CacheEntry
	for rows.Next() {
		var e CacheEntry
		var field, valueJSON string
		if err := rows.Scan(&e.UniversityID, &field, &valueJSON, &e.Source, &e.CachedAt, &e.ExpiresAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan cache entry")
		}
		e.Field = model.Field(field)
		v, err := decodeCacheValue(e.Field, valueJSON)
		if err != nil {
			return nil, err
		}
		e.Value = v
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: get cache iterate")
}

func (s *SQLiteStore) PutCacheEntry(ctx context.Context, e CacheEntry) error {
	valueJSON, err := json.Marshal(e.Value)
	if err != nil {
		return eris.Wrapf(err, "sqlite: marshal cache value for %s", e.Field)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO enrichment_cache (university_id, field_name, value, source, cached_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(university_id, field_name) DO UPDATE SET
			value = excluded.value,
			source = excluded.source,
			cached_at = excluded.cached_at,
			expires_at = excluded.expires_at`,
		e.UniversityID, string(e.Field), string(valueJSON), e.Source, e.CachedAt, e.ExpiresAt,
	)
	return eris.Wrapf(err, "sqlite: put cache entry %d/%s", e.UniversityID, e.Field)
}

func (s *SQLiteStore) DeleteCacheByUniversity(ctx context.Context, universityID int64) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM enrichment_cache WHERE university_id = ?`, universityID)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: delete cache for university %d", universityID)
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) DeleteCacheByField(ctx context.Context, field model.Field) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM enrichment_cache WHERE field_name = ?`, string(field))
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: delete cache for field %s", field)
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) DeleteExpiredCache(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM enrichment_cache WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired cache")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func marshalJobBlobs(job *model.EnrichmentJob) (sql.NullString, sql.NullString, error) {
	var idsJSON, resultsJSON sql.NullString
	if len(job.UniversityIDs) > 0 {
		b, err := json.Marshal(job.UniversityIDs)
		if err != nil {
			return idsJSON, resultsJSON, eris.Wrap(err, "sqlite: marshal university ids")
		}
		idsJSON = sql.NullString{String: string(b), Valid: true}
	}
	if job.Results != nil {
		b, err := json.Marshal(job.Results)
		if err != nil {
			return idsJSON, resultsJSON, eris.Wrap(err, "sqlite: marshal job results")
		}
		resultsJSON = sql.NullString{String: string(b), Valid: true}
	}
	return idsJSON, resultsJSON, nil
}

func decodeCacheValue(f model.Field, raw string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal cache value for %s", f)
	}
	coerced, err := model.CoerceValue(f, v)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: cache value for %s", f)
	}
	return coerced, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanUniversity(row scannable) (*model.University, error) {
	var u model.University
	var city, state, country, website, logoURL, description, instType, locType sql.NullString
	var totalStudents, satM25, satM75, satE25, satE75, act25, act75 sql.NullInt64
	var acceptance, gpa, tuition, totalCost, gradRate sql.NullFloat64

	err := row.Scan(
		&u.ID, &u.Name, &city, &state, &country, &website, &logoURL, &description,
		&instType, &locType, &totalStudents, &acceptance, &gpa,
		&satM25, &satM75, &satE25, &satE75, &act25, &act75,
		&tuition, &totalCost, &gradRate, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	u.City = strPtr(city)
	u.State = strPtr(state)
	u.Country = strPtr(country)
	u.Website = strPtr(website)
	u.LogoURL = strPtr(logoURL)
	u.Description = strPtr(description)
	u.InstitutionType = strPtr(instType)
	u.LocationType = strPtr(locType)
	u.TotalStudents = intPtr(totalStudents)
	u.AcceptanceRate = floatPtr(acceptance)
	u.GPAAverage = floatPtr(gpa)
	u.SATMath25th = intPtr(satM25)
	u.SATMath75th = intPtr(satM75)
	u.SATEBRW25th = intPtr(satE25)
	u.SATEBRW75th = intPtr(satE75)
	u.ACTComposite25th = intPtr(act25)
	u.ACTComposite75th = intPtr(act75)
	u.TuitionOutState = floatPtr(tuition)
	u.TotalCost = floatPtr(totalCost)
	u.GraduationRate4Year = floatPtr(gradRate)
	return &u, nil
}

func scanJob(row scannable) (*model.EnrichmentJob, error) {
	var j model.EnrichmentJob
	var status string
	var startedAt, completedAt sql.NullTime
	var idsJSON, errMsg, resultsJSON sql.NullString

	err := row.Scan(
		&j.ID, &status, &j.CreatedAt, &startedAt, &completedAt, &j.Limit,
		&idsJSON, &j.MaxConcurrent, &j.TotalUniversities, &j.Processed,
		&j.SuccessfulUpdates, &j.TotalFieldsFilled, &j.ErrorsCount,
		&errMsg, &resultsJSON,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan job")
	}

	j.Status = model.JobStatus(status)
	if startedAt.Valid {
		t := startedAt.Time
		j.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		j.CompletedAt = &t
	}
	if errMsg.Valid {
		j.ErrorMessage = errMsg.String
	}
	if idsJSON.Valid {
		if err := json.Unmarshal([]byte(idsJSON.String), &j.UniversityIDs); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal university ids")
		}
	}
	if resultsJSON.Valid {
		j.Results = &model.JobResults{}
		if err := json.Unmarshal([]byte(resultsJSON.String), j.Results); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal job results")
		}
	}
	return &j, nil
}

func collectJobs(rows *sql.Rows) ([]model.EnrichmentJob, error) {
	var jobs []model.EnrichmentJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: iterate jobs")
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func intPtr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	n := ni.Int64
	return &n
}

func floatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	f := nf.Float64
	return &f
}
