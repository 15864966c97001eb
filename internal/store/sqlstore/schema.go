package sqlstore

import "context"

// schema is portable between SQLite and PostgreSQL. Timestamps are fixed
// width text and booleans are 0/1 integers.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	is_cancelling INTEGER NOT NULL DEFAULT 0,
	domain_filter TEXT NOT NULL DEFAULT '',
	model TEXT NOT NULL,
	priority_mode TEXT NOT NULL,
	total_words INTEGER NOT NULL DEFAULT 0,
	processed INTEGER NOT NULL DEFAULT 0,
	refined INTEGER NOT NULL DEFAULT 0,
	errors INTEGER NOT NULL DEFAULT 0,
	current_offset INTEGER NOT NULL DEFAULT 0,
	n2_refined INTEGER NOT NULL DEFAULT 0,
	n3_refined INTEGER NOT NULL DEFAULT 0,
	n4_refined INTEGER NOT NULL DEFAULT 0,
	sample_refinements TEXT NOT NULL DEFAULT '[]',
	last_error TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	started_at TEXT,
	completed_at TEXT,
	last_chunk_at TEXT
)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status)`,

	`CREATE TABLE IF NOT EXISTS entries (
	id TEXT PRIMARY KEY,
	surface_form TEXT NOT NULL,
	lemma TEXT NOT NULL DEFAULT '',
	pos TEXT NOT NULL DEFAULT '',
	code TEXT NOT NULL DEFAULT '',
	n1 TEXT,
	n2 TEXT,
	n3 TEXT,
	n4 TEXT,
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	provenance TEXT NOT NULL DEFAULT '',
	refine_job_id TEXT NOT NULL DEFAULT '',
	document_id TEXT NOT NULL DEFAULT '',
	occurrences INTEGER NOT NULL DEFAULT 0,
	cached_at TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_entries_code ON entries(code)`,
	`CREATE INDEX IF NOT EXISTS idx_entries_refine_job ON entries(refine_job_id)`,

	`CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	body TEXT NOT NULL,
	content_type TEXT NOT NULL DEFAULT ''
)`,

	`CREATE TABLE IF NOT EXISTS taxonomy (
	code TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	depth INTEGER NOT NULL,
	examples TEXT NOT NULL DEFAULT '[]',
	parent TEXT NOT NULL DEFAULT '',
	active INTEGER NOT NULL DEFAULT 1
)`,

	`CREATE TABLE IF NOT EXISTS llm_calls (
	id TEXT PRIMARY KEY,
	job_id TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	provider TEXT NOT NULL DEFAULT '',
	model TEXT NOT NULL DEFAULT '',
	prompt_hash TEXT NOT NULL DEFAULT '',
	batch_size INTEGER NOT NULL DEFAULT 0,
	latency_ms INTEGER NOT NULL DEFAULT 0,
	input_tokens INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	success INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT '',
	response TEXT NOT NULL DEFAULT ''
)`,
	`CREATE INDEX IF NOT EXISTS idx_llm_calls_job ON llm_calls(job_id, created_at)`,
}

func (s *Store) initSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
