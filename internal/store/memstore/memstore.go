// Package memstore is an in-memory store.Store used by tests and by
// `semtag serve --database memory`.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jackzampolin/semtag/internal/store"
)

// Store keeps every record in maps guarded by a single mutex.
type Store struct {
	mu       sync.RWMutex
	jobs     map[string]*store.Job
	jobOrder []string
	entries  map[string]*store.Entry
	docs     map[string]store.Document
	taxonomy map[string]store.TaxonomyEntry
	calls    []store.LLMCall

	// Fault injection for tests.
	FailFetch     error
	FailDocuments error
	FailTaxonomy  error
	FailUpdate    func(id string) error
}

// New creates an empty store.
func New() *Store {
	return &Store{
		jobs:     make(map[string]*store.Job),
		entries:  make(map[string]*store.Entry),
		docs:     make(map[string]store.Document),
		taxonomy: make(map[string]store.TaxonomyEntry),
	}
}

func (s *Store) Ping(ctx context.Context) error { return nil }
func (s *Store) Close() error                   { return nil }

// ReplaceActiveJob cancels active jobs and inserts job.
func (s *Store) ReplaceActiveJob(ctx context.Context, job *store.Job) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return nil, fmt.Errorf("%w: job %s already exists", store.ErrConflict, job.ID)
	}

	var cancelled []string
	for _, id := range s.jobOrder {
		j := s.jobs[id]
		if store.ContainsStatus(store.ActiveStatuses, j.Status) {
			j.Status = store.StatusCancelled
			j.IsCancelling = true
			cancelled = append(cancelled, id)
		}
	}

	s.jobs[job.ID] = job.Clone()
	s.jobOrder = append(s.jobOrder, job.ID)
	return cancelled, nil
}

// GetJob returns a copy of the job.
func (s *Store) GetJob(ctx context.Context, id string) (*store.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, store.ErrNotFound)
	}
	return j.Clone(), nil
}

// ListJobs returns jobs newest first.
func (s *Store) ListJobs(ctx context.Context, filter store.JobFilter) ([]*store.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*store.Job, 0, len(s.jobOrder))
	for i := len(s.jobOrder) - 1; i >= 0; i-- {
		j := s.jobs[s.jobOrder[i]]
		if filter.Status != "" && j.Status != filter.Status {
			continue
		}
		out = append(out, j.Clone())
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// UpdateStatus applies a compare-and-set status change.
func (s *Store) UpdateStatus(ctx context.Context, id string, upd store.StatusUpdate) (*store.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, store.ErrNotFound)
	}
	if !store.ContainsStatus(upd.From, j.Status) {
		return nil, fmt.Errorf("job %s is %s: %w", id, j.Status, store.ErrConflict)
	}

	j.Status = upd.To
	j.IsCancelling = upd.Cancelling
	if upd.LastError != nil {
		j.LastError = *upd.LastError
	}
	if upd.Touch {
		at := upd.At
		j.LastChunkAt = &at
	}
	if upd.Complete {
		at := upd.At
		j.CompletedAt = &at
	}
	return j.Clone(), nil
}

// SaveProgress writes progress fields guarded by current_offset.
func (s *Store) SaveProgress(ctx context.Context, job *store.Job, expectedOffset int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[job.ID]
	if !ok {
		return fmt.Errorf("job %s: %w", job.ID, store.ErrNotFound)
	}
	if j.CurrentOffset != expectedOffset {
		return fmt.Errorf("job %s offset is %d, expected %d: %w", job.ID, j.CurrentOffset, expectedOffset, store.ErrConflict)
	}

	j.Processed = job.Processed
	j.Refined = job.Refined
	j.Errors = job.Errors
	j.CurrentOffset = job.CurrentOffset
	j.N2Refined = job.N2Refined
	j.N3Refined = job.N3Refined
	j.N4Refined = job.N4Refined
	j.SampleRefinements = append([]store.Sample(nil), job.SampleRefinements...)
	if job.LastChunkAt != nil {
		at := *job.LastChunkAt
		j.LastChunkAt = &at
	}
	return nil
}

func inWindow(e *store.Entry, jobID, coarseDomain string) bool {
	if jobID != "" && e.RefineJobID == jobID {
		return true
	}
	if strings.Contains(e.Code, ".") {
		return false
	}
	return coarseDomain == "" || e.Code == coarseDomain
}

// CountCoarse counts coarse entries inside the domain.
func (s *Store) CountCoarse(ctx context.Context, domain string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	coarse := store.CoarseDomain(domain)
	n := 0
	for _, e := range s.entries {
		if inWindow(e, "", coarse) {
			n++
		}
	}
	return n, nil
}

// FetchPage returns the ordered window of entries for a job.
func (s *Store) FetchPage(ctx context.Context, q store.PageQuery) ([]store.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.FailFetch != nil {
		return nil, s.FailFetch
	}

	coarse := store.CoarseDomain(q.Domain)
	matched := make([]store.Entry, 0)
	for _, e := range s.entries {
		if inWindow(e, q.JobID, coarse) {
			matched = append(matched, *e)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch q.Mode {
		case store.PriorityAlphabetical:
			if a.SurfaceForm != b.SurfaceForm {
				return a.SurfaceForm < b.SurfaceForm
			}
		case store.PriorityRandom:
			if !a.CachedAt.Equal(b.CachedAt) {
				return a.CachedAt.After(b.CachedAt)
			}
		default:
			if a.Occurrences != b.Occurrences {
				return a.Occurrences > b.Occurrences
			}
			if a.SurfaceForm != b.SurfaceForm {
				return a.SurfaceForm < b.SurfaceForm
			}
		}
		return a.ID < b.ID
	})

	if q.Offset >= len(matched) {
		return []store.Entry{}, nil
	}
	end := len(matched)
	if q.Limit > 0 && q.Offset+q.Limit < end {
		end = q.Offset + q.Limit
	}
	return matched[q.Offset:end], nil
}

// UpdateEntry writes a refinement.
func (s *Store) UpdateEntry(ctx context.Context, upd store.EntryUpdate) error {
	if s.FailUpdate != nil {
		if err := s.FailUpdate(upd.ID); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[upd.ID]
	if !ok {
		return fmt.Errorf("entry %s: %w", upd.ID, store.ErrNotFound)
	}
	e.Code = upd.Code
	e.N1, e.N2, e.N3, e.N4 = upd.Levels[0], upd.Levels[1], upd.Levels[2], upd.Levels[3]
	e.Confidence = upd.Confidence
	e.Provenance = upd.Provenance
	e.RefineJobID = upd.JobID
	return nil
}

// GetEntry returns a copy of the entry.
func (s *Store) GetEntry(ctx context.Context, id string) (*store.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, fmt.Errorf("entry %s: %w", id, store.ErrNotFound)
	}
	c := *e
	return &c, nil
}

// UpsertEntries inserts or replaces entries.
func (s *Store) UpsertEntries(ctx context.Context, entries []store.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		e := e
		s.entries[e.ID] = &e
	}
	return nil
}

// GetDocuments returns the documents that exist among ids.
func (s *Store) GetDocuments(ctx context.Context, ids []string) (map[string]store.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailDocuments != nil {
		return nil, s.FailDocuments
	}
	out := make(map[string]store.Document, len(ids))
	for _, id := range ids {
		if d, ok := s.docs[id]; ok {
			out[id] = d
		}
	}
	return out, nil
}

// UpsertDocuments inserts or replaces documents.
func (s *Store) UpsertDocuments(ctx context.Context, docs []store.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range docs {
		s.docs[d.ID] = d
	}
	return nil
}

// ActiveTaxonomy returns active taxonomy entries sorted by code.
func (s *Store) ActiveTaxonomy(ctx context.Context) ([]store.TaxonomyEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailTaxonomy != nil {
		return nil, s.FailTaxonomy
	}
	out := make([]store.TaxonomyEntry, 0, len(s.taxonomy))
	for _, t := range s.taxonomy {
		if t.Active {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// UpsertTaxonomy inserts or replaces taxonomy entries.
func (s *Store) UpsertTaxonomy(ctx context.Context, entries []store.TaxonomyEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range entries {
		s.taxonomy[t.Code] = t
	}
	return nil
}

// InsertCalls appends call records.
func (s *Store) InsertCalls(ctx context.Context, calls []store.LLMCall) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, calls...)
	return nil
}

// ListCalls returns call records newest first.
func (s *Store) ListCalls(ctx context.Context, filter store.CallFilter) ([]store.LLMCall, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.LLMCall, 0)
	for i := len(s.calls) - 1; i >= 0; i-- {
		c := s.calls[i]
		if filter.JobID != "" && c.JobID != filter.JobID {
			continue
		}
		out = append(out, c)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

var _ store.Store = (*Store)(nil)
