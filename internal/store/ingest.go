package store

import (
	"database/sql"
	"time"
)

// IngestRun records one external fetch for auditing.
type IngestRun struct {
	ID                int64
	StartedAt         time.Time
	FinishedAt        sql.NullTime
	Source            string // "open-meteo"
	Endpoint          string // "air-quality"
	TargetDate        sql.NullString
	HTTPStatus        sql.NullInt64
	ResponseSizeBytes sql.NullInt64
	RecordsStored     sql.NullInt64
	Success           bool
	ErrorMessage      sql.NullString
	QualityFlags      sql.NullString // JSON array of validation flags
}

func (s *Store) StartIngestRun(source, endpoint, targetDate string) (*IngestRun, error) {
	run := &IngestRun{
		StartedAt: time.Now().UTC(),
		Source:    source,
		Endpoint:  endpoint,
	}
	if targetDate != "" {
		run.TargetDate = sql.NullString{String: targetDate, Valid: true}
	}

	result, err := s.db.Exec(`
		INSERT INTO ingest_runs (started_at, source, endpoint, target_date, success)
		VALUES (?, ?, ?, ?, FALSE)
	`, run.StartedAt, run.Source, run.Endpoint, run.TargetDate)
	if err != nil {
		return nil, err
	}

	run.ID, err = result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (s *Store) CompleteIngestRun(run *IngestRun) error {
	if run == nil {
		return nil
	}

	run.FinishedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}

	_, err := s.db.Exec(`
		UPDATE ingest_runs SET
			finished_at = ?,
			http_status = ?,
			response_size_bytes = ?,
			records_stored = ?,
			success = ?,
			error_message = ?,
			quality_flags = ?
		WHERE id = ?
	`, run.FinishedAt, run.HTTPStatus, run.ResponseSizeBytes, run.RecordsStored,
		run.Success, run.ErrorMessage, run.QualityFlags, run.ID)
	return err
}

const ingestRunColumns = `id, started_at, finished_at, source, endpoint, target_date,
	http_status, response_size_bytes, records_stored, success, error_message, quality_flags`

// GetRecentIngestErrors returns the most recent failed runs.
func (s *Store) GetRecentIngestErrors(limit int) ([]IngestRun, error) {
	return s.queryIngestRuns(`
		SELECT `+ingestRunColumns+`
		FROM ingest_runs
		WHERE success = FALSE
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
}

// GetRecentIngestRuns returns the most recent runs, successful or not.
func (s *Store) GetRecentIngestRuns(limit int) ([]IngestRun, error) {
	return s.queryIngestRuns(`
		SELECT `+ingestRunColumns+`
		FROM ingest_runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
}

func (s *Store) queryIngestRuns(query string, args ...any) ([]IngestRun, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []IngestRun
	for rows.Next() {
		var r IngestRun
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Source, &r.Endpoint,
			&r.TargetDate, &r.HTTPStatus, &r.ResponseSizeBytes, &r.RecordsStored,
			&r.Success, &r.ErrorMessage, &r.QualityFlags); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
