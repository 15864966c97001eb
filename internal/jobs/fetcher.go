package jobs

import (
	"context"

	"github.com/jackzampolin/semtag/internal/store"
)

// DefaultChunkSize is the number of entries processed per chunk.
const DefaultChunkSize = 50

// Fetcher reads the next window of entries for a job.
type Fetcher struct {
	entries   store.EntryStore
	chunkSize int
}

// NewFetcher creates a fetcher. A non-positive chunkSize uses DefaultChunkSize.
func NewFetcher(entries store.EntryStore, chunkSize int) *Fetcher {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Fetcher{entries: entries, chunkSize: chunkSize}
}

// ChunkSize returns the page size.
func (f *Fetcher) ChunkSize() int {
	return f.chunkSize
}

// NextPage returns up to ChunkSize entries starting at the job's offset,
// ordered by its priority mode. Entries the job already refined stay in the
// window so refinement does not shift later pages.
func (f *Fetcher) NextPage(ctx context.Context, job *store.Job) ([]store.Entry, error) {
	mode := job.PriorityMode
	if !mode.Valid() {
		mode = store.PriorityImpact
	}
	return f.entries.FetchPage(ctx, store.PageQuery{
		JobID:  job.ID,
		Domain: job.DomainFilter,
		Mode:   mode,
		Offset: job.CurrentOffset,
		Limit:  f.chunkSize,
	})
}

// IsLastPage reports whether a page of n entries ends the job.
func (f *Fetcher) IsLastPage(n int) bool {
	return n < f.chunkSize
}
