// Package jobs runs refinement jobs: the controller owns the job lifecycle,
// the processor refines one chunk of entries per invocation, and the
// scheduler keeps invoking chunks until the job stops.
package jobs

import (
	"errors"

	"github.com/jackzampolin/semtag/internal/store"
)

var (
	// ErrInvalidTransition is returned when a lifecycle request does not
	// apply to the job's current status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidParams is returned for malformed create requests.
	ErrInvalidParams = errors.New("invalid job parameters")

	// ErrPageFetch marks a chunk attempt that could not read its page.
	ErrPageFetch = errors.New("failed to fetch page")

	// ErrStaleChunk is returned when another invocation already saved the
	// window this chunk processed. Its counters are discarded.
	ErrStaleChunk = errors.New("stale chunk")
)

// transitions lists the statuses each status may move to. A pending job may
// be paused before its first chunk runs.
var transitions = map[store.JobStatus][]store.JobStatus{
	store.StatusPending: {store.StatusRunning, store.StatusPaused, store.StatusCancelled},
	store.StatusRunning: {store.StatusPaused, store.StatusCancelled, store.StatusCompleted},
	store.StatusPaused:  {store.StatusRunning, store.StatusCancelled},
}

// CanTransition reports whether a job may move from one status to another.
// Cancelled and completed are terminal.
func CanTransition(from, to store.JobStatus) bool {
	return store.ContainsStatus(transitions[from], to)
}

// ChunkResult summarizes one chunk invocation.
type ChunkResult struct {
	ProcessedCount int            `json:"processedCount"`
	RefinedCount   int            `json:"refinedCount"`
	ErrorCount     int            `json:"errorCount"`
	N2Count        int            `json:"n2Count"`
	N3Count        int            `json:"n3Count"`
	N4Count        int            `json:"n4Count"`
	Samples        []store.Sample `json:"samples"`
	Completed      bool           `json:"completed"`

	// Skipped is set when the job was not running at the start of the
	// invocation and no work was done.
	Skipped bool `json:"skipped,omitempty"`
}

// Done reports whether the scheduler should stop invoking chunks.
func (r *ChunkResult) Done() bool {
	return r == nil || r.Completed || r.Skipped
}
