// Package store defines the persisted records of the refinement pipeline and
// the narrow interfaces each component uses to read and write them.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a compare-and-set precondition fails.
	ErrConflict = errors.New("conflict")
)

// JobStatus is the lifecycle state of a refinement job.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusPaused    JobStatus = "paused"
	StatusCancelled JobStatus = "cancelled"
	StatusCompleted JobStatus = "completed"
)

// ActiveStatuses are the statuses of a job that still owns the pipeline.
var ActiveStatuses = []JobStatus{StatusPending, StatusRunning, StatusPaused}

// PriorityMode orders the entries a job works through.
type PriorityMode string

const (
	PriorityImpact       PriorityMode = "impact"
	PriorityAlphabetical PriorityMode = "alphabetical"
	PriorityRandom       PriorityMode = "random"
)

// Valid reports whether m is a known priority mode.
func (m PriorityMode) Valid() bool {
	switch m {
	case PriorityImpact, PriorityAlphabetical, PriorityRandom:
		return true
	}
	return false
}

// Sample is one recorded refinement kept on the job for operators.
type Sample struct {
	SurfaceForm    string  `json:"surfaceForm"`
	OldCode        string  `json:"oldCode"`
	NewCode        string  `json:"newCode"`
	Depth          int     `json:"depth"`
	Confidence     float64 `json:"confidence"`
	ContextExcerpt string  `json:"contextExcerpt,omitempty"`
}

// Job is one refinement run.
type Job struct {
	ID           string       `json:"id"`
	Status       JobStatus    `json:"status"`
	IsCancelling bool         `json:"is_cancelling"`
	DomainFilter string       `json:"domain_filter,omitempty"`
	Model        string       `json:"model"`
	PriorityMode PriorityMode `json:"priority_mode"`

	TotalWords    int `json:"total_words"`
	Processed     int `json:"processed"`
	Refined       int `json:"refined"`
	Errors        int `json:"errors"`
	CurrentOffset int `json:"current_offset"`
	N2Refined     int `json:"n2_refined"`
	N3Refined     int `json:"n3_refined"`
	N4Refined     int `json:"n4_refined"`

	SampleRefinements []Sample `json:"sample_refinements"`
	LastError         string   `json:"last_error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	LastChunkAt *time.Time `json:"last_chunk_at,omitempty"`
}

// Clone returns a deep copy of j.
func (j *Job) Clone() *Job {
	c := *j
	c.SampleRefinements = append([]Sample(nil), j.SampleRefinements...)
	c.StartedAt = cloneTime(j.StartedAt)
	c.CompletedAt = cloneTime(j.CompletedAt)
	c.LastChunkAt = cloneTime(j.LastChunkAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Entry is a corpus entry that may be refined.
type Entry struct {
	ID           string    `json:"id"`
	SurfaceForm  string    `json:"surface_form"`
	Lemma        string    `json:"lemma,omitempty"`
	PartOfSpeech string    `json:"pos,omitempty"`
	Code         string    `json:"code"`
	N1           string    `json:"n1,omitempty"`
	N2           string    `json:"n2,omitempty"`
	N3           string    `json:"n3,omitempty"`
	N4           string    `json:"n4,omitempty"`
	Confidence   float64   `json:"confidence,omitempty"`
	Provenance   string    `json:"provenance,omitempty"`
	RefineJobID  string    `json:"refine_job_id,omitempty"`
	DocumentID   string    `json:"document_id,omitempty"`
	Occurrences  int       `json:"occurrences"`
	CachedAt     time.Time `json:"cached_at"`
}

// EntryUpdate is the set of fields written when an entry is refined.
// Empty level codes are stored as null.
type EntryUpdate struct {
	ID         string
	Code       string
	Levels     [4]string
	Confidence float64
	Provenance string
	JobID      string
}

// Document is a source text entries were drawn from.
type Document struct {
	ID          string `json:"id"`
	Body        string `json:"body"`
	ContentType string `json:"content_type,omitempty"`
}

// TaxonomyEntry is one code of the hierarchical label set.
type TaxonomyEntry struct {
	Code        string   `json:"code" yaml:"code"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Depth       int      `json:"depth" yaml:"depth,omitempty"`
	Examples    []string `json:"examples,omitempty" yaml:"examples,omitempty"`
	Parent      string   `json:"parent,omitempty" yaml:"parent,omitempty"`
	Active      bool     `json:"active" yaml:"active"`
}

// LLMCall is a recorded classification oracle call.
type LLMCall struct {
	ID           string    `json:"id"`
	JobID        string    `json:"job_id,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	PromptHash   string    `json:"prompt_hash,omitempty"`
	BatchSize    int       `json:"batch_size"`
	LatencyMs    int       `json:"latency_ms"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	Success      bool      `json:"success"`
	Error        string    `json:"error,omitempty"`
	Response     string    `json:"response,omitempty"`
}

// PageQuery selects the next window of entries for a job.
type PageQuery struct {
	JobID  string
	Domain string
	Mode   PriorityMode
	Offset int
	Limit  int
}

// JobFilter narrows ListJobs.
type JobFilter struct {
	Status JobStatus
	Limit  int
}

// CallFilter narrows ListCalls.
type CallFilter struct {
	JobID string
	Limit int
}

// StatusUpdate is a compare-and-set status change. The update applies only
// when the job's current status is one of From.
type StatusUpdate struct {
	From []JobStatus
	To   JobStatus

	// Cancelling is written to is_cancelling.
	Cancelling bool
	// LastError replaces last_error when non-nil.
	LastError *string
	// Touch sets last_chunk_at to At.
	Touch bool
	// Complete sets completed_at to At.
	Complete bool
	At       time.Time
}

// JobStore persists job records.
type JobStore interface {
	// ReplaceActiveJob cancels every active job and inserts job, atomically
	// where the backend allows. It returns the ids of the cancelled jobs.
	ReplaceActiveJob(ctx context.Context, job *Job) ([]string, error)
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*Job, error)
	// UpdateStatus applies upd and returns the updated job. It returns
	// ErrNotFound for unknown ids and ErrConflict when the current status is
	// not in upd.From.
	UpdateStatus(ctx context.Context, id string, upd StatusUpdate) (*Job, error)
	// SaveProgress writes the progress fields of job when the stored
	// current_offset still equals expectedOffset, and ErrConflict otherwise.
	// Status fields are never written.
	SaveProgress(ctx context.Context, job *Job, expectedOffset int) error
}

// EntryStore reads and refines corpus entries.
type EntryStore interface {
	// CountCoarse counts entries of depth at most one inside domain.
	CountCoarse(ctx context.Context, domain string) (int, error)
	// FetchPage returns the entries inside the job's window: coarse entries
	// inside the domain plus entries already refined by the job.
	FetchPage(ctx context.Context, q PageQuery) ([]Entry, error)
	UpdateEntry(ctx context.Context, upd EntryUpdate) error
	GetEntry(ctx context.Context, id string) (*Entry, error)
	UpsertEntries(ctx context.Context, entries []Entry) error
}

// DocumentStore reads source documents.
type DocumentStore interface {
	GetDocuments(ctx context.Context, ids []string) (map[string]Document, error)
	UpsertDocuments(ctx context.Context, docs []Document) error
}

// TaxonomyStore reads the label set.
type TaxonomyStore interface {
	ActiveTaxonomy(ctx context.Context) ([]TaxonomyEntry, error)
	UpsertTaxonomy(ctx context.Context, entries []TaxonomyEntry) error
}

// CallStore records oracle calls.
type CallStore interface {
	InsertCalls(ctx context.Context, calls []LLMCall) error
	ListCalls(ctx context.Context, filter CallFilter) ([]LLMCall, error)
}

// Store is the full persistence surface.
type Store interface {
	JobStore
	EntryStore
	DocumentStore
	TaxonomyStore
	CallStore

	Ping(ctx context.Context) error
	Close() error
}

// CoarseDomain returns the code a coarse entry must carry to fall inside
// domain, or "" when every coarse entry matches.
func CoarseDomain(domain string) string {
	for i := 0; i < len(domain); i++ {
		if domain[i] == '.' {
			return domain[:i]
		}
	}
	return domain
}

// ContainsStatus reports whether s is in list.
func ContainsStatus(list []JobStatus, s JobStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
