package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackzampolin/semtag/internal/store"
)

const jobColumns = `id, status, is_cancelling, domain_filter, model, priority_mode,
	total_words, processed, refined, errors, current_offset,
	n2_refined, n3_refined, n4_refined, sample_refinements, last_error,
	created_at, started_at, completed_at, last_chunk_at`

func scanJob(row scanner) (*store.Job, error) {
	var (
		j                             store.Job
		status, mode                  string
		cancelling                    int
		samples, createdAt            string
		startedAt, completedAt, lastAt sql.NullString
	)
	err := row.Scan(&j.ID, &status, &cancelling, &j.DomainFilter, &j.Model, &mode,
		&j.TotalWords, &j.Processed, &j.Refined, &j.Errors, &j.CurrentOffset,
		&j.N2Refined, &j.N3Refined, &j.N4Refined, &samples, &j.LastError,
		&createdAt, &startedAt, &completedAt, &lastAt)
	if err != nil {
		return nil, err
	}
	j.Status = store.JobStatus(status)
	j.PriorityMode = store.PriorityMode(mode)
	j.IsCancelling = cancelling != 0

	if samples != "" {
		if err := json.Unmarshal([]byte(samples), &j.SampleRefinements); err != nil {
			return nil, fmt.Errorf("failed to decode samples for job %s: %w", j.ID, err)
		}
	}
	if j.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if j.StartedAt, err = parseTimePtr(startedAt); err != nil {
		return nil, err
	}
	if j.CompletedAt, err = parseTimePtr(completedAt); err != nil {
		return nil, err
	}
	if j.LastChunkAt, err = parseTimePtr(lastAt); err != nil {
		return nil, err
	}
	return &j, nil
}

func encodeSamples(samples []store.Sample) (string, error) {
	if samples == nil {
		samples = []store.Sample{}
	}
	data, err := json.Marshal(samples)
	if err != nil {
		return "", fmt.Errorf("failed to encode samples: %w", err)
	}
	return string(data), nil
}

// ReplaceActiveJob cancels active jobs and inserts job in one transaction.
func (s *Store) ReplaceActiveJob(ctx context.Context, job *store.Job) ([]string, error) {
	samples, err := encodeSamples(job.SampleRefinements)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	active := []any{string(store.StatusPending), string(store.StatusRunning), string(store.StatusPaused)}
	rows, err := tx.QueryContext(ctx, s.rebind(`SELECT id FROM jobs WHERE status IN (`+placeholders(len(active))+`)`), active...)
	if err != nil {
		return nil, fmt.Errorf("failed to query active jobs: %w", err)
	}
	var cancelled []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		cancelled = append(cancelled, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(cancelled) > 0 {
		args := append([]any{string(store.StatusCancelled)}, active...)
		if _, err := s.exec(ctx, tx,
			`UPDATE jobs SET status = ?, is_cancelling = 1 WHERE status IN (`+placeholders(len(active))+`)`,
			args...); err != nil {
			return nil, fmt.Errorf("failed to cancel active jobs: %w", err)
		}
	}

	_, err = s.exec(ctx, tx, `INSERT INTO jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, string(job.Status), boolInt(job.IsCancelling), job.DomainFilter, job.Model, string(job.PriorityMode),
		job.TotalWords, job.Processed, job.Refined, job.Errors, job.CurrentOffset,
		job.N2Refined, job.N3Refined, job.N4Refined, samples, job.LastError,
		formatTime(job.CreatedAt), formatTimePtr(job.StartedAt), formatTimePtr(job.CompletedAt), formatTimePtr(job.LastChunkAt))
	if err != nil {
		return nil, fmt.Errorf("failed to insert job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit job: %w", err)
	}
	return cancelled, nil
}

// GetJob returns a job by id.
func (s *Store) GetJob(ctx context.Context, id string) (*store.Job, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`), id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", id, err)
	}
	return j, nil
}

// ListJobs returns jobs newest first.
func (s *Store) ListJobs(ctx context.Context, filter store.JobFilter) ([]*store.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	var args []any
	if filter.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	out := make([]*store.Job, 0)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// UpdateStatus applies a compare-and-set status change.
func (s *Store) UpdateStatus(ctx context.Context, id string, upd store.StatusUpdate) (*store.Job, error) {
	if len(upd.From) == 0 {
		return nil, fmt.Errorf("status update for job %s has no source statuses", id)
	}

	var lastError sql.NullString
	if upd.LastError != nil {
		lastError = sql.NullString{String: *upd.LastError, Valid: true}
	}
	var touched, completed sql.NullString
	if upd.Touch {
		touched = sql.NullString{String: formatTime(upd.At), Valid: true}
	}
	if upd.Complete {
		completed = sql.NullString{String: formatTime(upd.At), Valid: true}
	}

	args := []any{string(upd.To), boolInt(upd.Cancelling), lastError, touched, completed, id}
	for _, st := range upd.From {
		args = append(args, string(st))
	}

	res, err := s.exec(ctx, s.db, `UPDATE jobs SET
		status = ?,
		is_cancelling = ?,
		last_error = COALESCE(?, last_error),
		last_chunk_at = COALESCE(?, last_chunk_at),
		completed_at = COALESCE(?, completed_at)
		WHERE id = ? AND status IN (`+placeholders(len(upd.From))+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update job %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}

	j, err := s.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("job %s is %s: %w", id, j.Status, store.ErrConflict)
	}
	return j, nil
}

// SaveProgress writes progress fields guarded by current_offset.
func (s *Store) SaveProgress(ctx context.Context, job *store.Job, expectedOffset int) error {
	samples, err := encodeSamples(job.SampleRefinements)
	if err != nil {
		return err
	}

	res, err := s.exec(ctx, s.db, `UPDATE jobs SET
		processed = ?, refined = ?, errors = ?, current_offset = ?,
		n2_refined = ?, n3_refined = ?, n4_refined = ?,
		sample_refinements = ?,
		last_chunk_at = COALESCE(?, last_chunk_at)
		WHERE id = ? AND current_offset = ?`,
		job.Processed, job.Refined, job.Errors, job.CurrentOffset,
		job.N2Refined, job.N3Refined, job.N4Refined,
		samples, formatTimePtr(job.LastChunkAt),
		job.ID, expectedOffset)
	if err != nil {
		return fmt.Errorf("failed to save progress for job %s: %w", job.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := s.GetJob(ctx, job.ID); err != nil {
			return err
		}
		return fmt.Errorf("job %s moved past offset %d: %w", job.ID, expectedOffset, store.ErrConflict)
	}
	return nil
}
