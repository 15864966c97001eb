package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackzampolin/semtag/internal/store"
)

const entryColumns = `id, surface_form, lemma, pos, code, n1, n2, n3, n4,
	confidence, provenance, refine_job_id, document_id, occurrences, cached_at`

func scanEntry(row scanner) (store.Entry, error) {
	var (
		e              store.Entry
		n1, n2, n3, n4 sql.NullString
		cachedAt       string
	)
	err := row.Scan(&e.ID, &e.SurfaceForm, &e.Lemma, &e.PartOfSpeech, &e.Code, &n1, &n2, &n3, &n4,
		&e.Confidence, &e.Provenance, &e.RefineJobID, &e.DocumentID, &e.Occurrences, &cachedAt)
	if err != nil {
		return e, err
	}
	e.N1, e.N2, e.N3, e.N4 = n1.String, n2.String, n3.String, n4.String
	e.CachedAt, err = parseTime(cachedAt)
	return e, err
}

// windowClause selects coarse entries inside the domain plus entries the job
// has already refined.
func windowClause(jobID, domain string) (string, []any) {
	var args []any
	coarse := `code NOT LIKE '%.%'`
	if c := store.CoarseDomain(domain); c != "" {
		coarse += ` AND code = ?`
		args = append(args, c)
	}
	if jobID == "" {
		return coarse, args
	}
	return `(refine_job_id = ? OR (` + coarse + `))`, append([]any{jobID}, args...)
}

func orderClause(mode store.PriorityMode) string {
	switch mode {
	case store.PriorityAlphabetical:
		return `surface_form ASC, id ASC`
	case store.PriorityRandom:
		return `cached_at DESC, id ASC`
	default:
		return `occurrences DESC, surface_form ASC, id ASC`
	}
}

// CountCoarse counts coarse entries inside the domain.
func (s *Store) CountCoarse(ctx context.Context, domain string) (int, error) {
	where, args := windowClause("", domain)
	var n int
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM entries WHERE `+where), args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return n, nil
}

// FetchPage returns the ordered window of entries for a job.
func (s *Store) FetchPage(ctx context.Context, q store.PageQuery) ([]store.Entry, error) {
	where, args := windowClause(q.JobID, q.Domain)
	query := `SELECT ` + entryColumns + ` FROM entries WHERE ` + where + ` ORDER BY ` + orderClause(q.Mode)
	if q.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, q.Limit, q.Offset)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch entries: %w", err)
	}
	defer rows.Close()

	out := make([]store.Entry, 0, q.Limit)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpdateEntry writes a refinement.
func (s *Store) UpdateEntry(ctx context.Context, upd store.EntryUpdate) error {
	res, err := s.exec(ctx, s.db, `UPDATE entries SET
		code = ?, n1 = ?, n2 = ?, n3 = ?, n4 = ?,
		confidence = ?, provenance = ?, refine_job_id = ?
		WHERE id = ?`,
		upd.Code, nullString(upd.Levels[0]), nullString(upd.Levels[1]), nullString(upd.Levels[2]), nullString(upd.Levels[3]),
		upd.Confidence, upd.Provenance, upd.JobID, upd.ID)
	if err != nil {
		return fmt.Errorf("failed to update entry %s: %w", upd.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("entry %s: %w", upd.ID, store.ErrNotFound)
	}
	return nil
}

// GetEntry returns one entry.
func (s *Store) GetEntry(ctx context.Context, id string) (*store.Entry, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+entryColumns+` FROM entries WHERE id = ?`), id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entry %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry %s: %w", id, err)
	}
	return &e, nil
}

// UpsertEntries inserts or replaces entries in one transaction.
func (s *Store) UpsertEntries(ctx context.Context, entries []store.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	cols := strings.Split(strings.Join(strings.Fields(entryColumns), ""), ",")
	var set []string
	for _, c := range cols[1:] {
		set = append(set, c+" = excluded."+c)
	}
	query := `INSERT INTO entries (` + entryColumns + `) VALUES (` + placeholders(len(cols)) + `)
		ON CONFLICT (id) DO UPDATE SET ` + strings.Join(set, ", ")

	for _, e := range entries {
		_, err := s.exec(ctx, tx, query,
			e.ID, e.SurfaceForm, e.Lemma, e.PartOfSpeech, e.Code,
			nullString(e.N1), nullString(e.N2), nullString(e.N3), nullString(e.N4),
			e.Confidence, e.Provenance, e.RefineJobID, e.DocumentID, e.Occurrences, formatTime(e.CachedAt))
		if err != nil {
			return fmt.Errorf("failed to upsert entry %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}
