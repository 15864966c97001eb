package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackzampolin/semtag/internal/store"
)

// GetDocuments returns the documents that exist among ids.
func (s *Store) GetDocuments(ctx context.Context, ids []string) (map[string]store.Document, error) {
	out := make(map[string]store.Document, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT id, body, content_type FROM documents WHERE id IN (`+placeholders(len(ids))+`)`), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch documents: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var d store.Document
		if err := rows.Scan(&d.ID, &d.Body, &d.ContentType); err != nil {
			return nil, err
		}
		out[d.ID] = d
	}
	return out, rows.Err()
}

// UpsertDocuments inserts or replaces documents.
func (s *Store) UpsertDocuments(ctx context.Context, docs []store.Document) error {
	if len(docs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	for _, d := range docs {
		_, err := s.exec(ctx, tx, `INSERT INTO documents (id, body, content_type) VALUES (?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET body = excluded.body, content_type = excluded.content_type`,
			d.ID, d.Body, d.ContentType)
		if err != nil {
			return fmt.Errorf("failed to upsert document %s: %w", d.ID, err)
		}
	}
	return tx.Commit()
}

// ActiveTaxonomy returns active taxonomy entries sorted by code.
func (s *Store) ActiveTaxonomy(ctx context.Context) ([]store.TaxonomyEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT code, name, description, depth, examples, parent, active
		FROM taxonomy WHERE active = 1 ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("failed to load taxonomy: %w", err)
	}
	defer rows.Close()

	out := make([]store.TaxonomyEntry, 0)
	for rows.Next() {
		var (
			t        store.TaxonomyEntry
			examples string
			active   int
		)
		if err := rows.Scan(&t.Code, &t.Name, &t.Description, &t.Depth, &examples, &t.Parent, &active); err != nil {
			return nil, err
		}
		if examples != "" {
			if err := json.Unmarshal([]byte(examples), &t.Examples); err != nil {
				return nil, fmt.Errorf("failed to decode examples for %s: %w", t.Code, err)
			}
		}
		t.Active = active != 0
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpsertTaxonomy inserts or replaces taxonomy entries.
func (s *Store) UpsertTaxonomy(ctx context.Context, entries []store.TaxonomyEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	for _, t := range entries {
		examples := t.Examples
		if examples == nil {
			examples = []string{}
		}
		data, err := json.Marshal(examples)
		if err != nil {
			return err
		}
		_, err = s.exec(ctx, tx, `INSERT INTO taxonomy (code, name, description, depth, examples, parent, active)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (code) DO UPDATE SET name = excluded.name, description = excluded.description,
			depth = excluded.depth, examples = excluded.examples, parent = excluded.parent, active = excluded.active`,
			t.Code, t.Name, t.Description, t.Depth, string(data), t.Parent, boolInt(t.Active))
		if err != nil {
			return fmt.Errorf("failed to upsert taxonomy %s: %w", t.Code, err)
		}
	}
	return tx.Commit()
}

// InsertCalls appends call records.
func (s *Store) InsertCalls(ctx context.Context, calls []store.LLMCall) error {
	if len(calls) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	for _, c := range calls {
		_, err := s.exec(ctx, tx, `INSERT INTO llm_calls (id, job_id, created_at, provider, model, prompt_hash,
			batch_size, latency_ms, input_tokens, output_tokens, success, error, response)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.JobID, formatTime(c.Timestamp), c.Provider, c.Model, c.PromptHash,
			c.BatchSize, c.LatencyMs, c.InputTokens, c.OutputTokens, boolInt(c.Success), c.Error, c.Response)
		if err != nil {
			return fmt.Errorf("failed to insert call %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// ListCalls returns call records newest first.
func (s *Store) ListCalls(ctx context.Context, filter store.CallFilter) ([]store.LLMCall, error) {
	query := `SELECT id, job_id, created_at, provider, model, prompt_hash,
		batch_size, latency_ms, input_tokens, output_tokens, success, error, response FROM llm_calls`
	var args []any
	if filter.JobID != "" {
		query += ` WHERE job_id = ?`
		args = append(args, filter.JobID)
	}
	// ULIDs sort by creation time.
	query += ` ORDER BY id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list calls: %w", err)
	}
	defer rows.Close()

	out := make([]store.LLMCall, 0)
	for rows.Next() {
		var (
			c       store.LLMCall
			created string
			success int
		)
		if err := rows.Scan(&c.ID, &c.JobID, &created, &c.Provider, &c.Model, &c.PromptHash,
			&c.BatchSize, &c.LatencyMs, &c.InputTokens, &c.OutputTokens, &success, &c.Error, &c.Response); err != nil {
			return nil, err
		}
		if c.Timestamp, err = parseTime(created); err != nil {
			return nil, err
		}
		c.Success = success != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

var _ store.Store = (*Store)(nil)
