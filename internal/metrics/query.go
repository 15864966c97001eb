// Package metrics aggregates recorded classification calls into latency,
// token and success statistics.
package metrics

import (
	"context"

	"github.com/jackzampolin/semtag/internal/store"
)

// Filter narrows the calls a query aggregates.
type Filter struct {
	JobID string
}

// Query reads call records for aggregation.
type Query struct {
	calls store.CallStore
}

// NewQuery creates a query over the given call store.
func NewQuery(calls store.CallStore) *Query {
	return &Query{calls: calls}
}

// List returns calls matching the filter, newest first. A limit of 0 returns all.
func (q *Query) List(ctx context.Context, f Filter, limit int) ([]store.LLMCall, error) {
	return q.calls.ListCalls(ctx, store.CallFilter{JobID: f.JobID, Limit: limit})
}

// GetDetailedStats returns statistics over every call matching the filter.
func (q *Query) GetDetailedStats(ctx context.Context, f Filter) (*DetailedStats, error) {
	calls, err := q.List(ctx, f, 0)
	if err != nil {
		return nil, err
	}
	return Summarize(calls), nil
}

// ModelDetailedStats returns statistics grouped by model.
func (q *Query) ModelDetailedStats(ctx context.Context, f Filter) (map[string]*DetailedStats, error) {
	calls, err := q.List(ctx, f, 0)
	if err != nil {
		return nil, err
	}
	return GroupBy(calls, func(c store.LLMCall) string { return c.Model }), nil
}
