// Package testutil holds fixtures and helpers shared by package tests.
package testutil

import (
	"time"

	"github.com/jackzampolin/semtag/internal/store"
)

// Epoch is the fixed clock used by fixtures.
var Epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// Taxonomy returns a small four-level label set.
func Taxonomy() []store.TaxonomyEntry {
	return []store.TaxonomyEntry{
		{Code: "A", Name: "Animals", Depth: 1, Active: true},
		{Code: "A.1", Name: "Mammals", Depth: 2, Parent: "A", Active: true, Examples: []string{"cat", "whale"}},
		{Code: "A.1.1", Name: "Canines", Depth: 3, Parent: "A.1", Active: true},
		{Code: "A.1.1.1", Name: "Dogs", Depth: 4, Parent: "A.1.1", Active: true, Examples: []string{"terrier"}},
		{Code: "A.2", Name: "Birds", Depth: 2, Parent: "A", Active: true},
		{Code: "B", Name: "Finance", Depth: 1, Active: true},
		{Code: "B.1", Name: "Banking", Depth: 2, Parent: "B", Active: true},
		{Code: "B.1.2", Name: "Retail banking", Depth: 3, Parent: "B.1", Active: true},
		{Code: "B.9", Name: "Retired", Depth: 2, Parent: "B", Active: false},
		{Code: "C", Name: "Places", Depth: 1, Active: true},
	}
}

// Entry builds a coarse entry.
func Entry(id, surface, code string, occurrences int) store.Entry {
	return store.Entry{
		ID:          id,
		SurfaceForm: surface,
		Code:        code,
		N1:          code,
		Occurrences: occurrences,
		CachedAt:    Epoch,
	}
}

// Job builds a running job.
func Job(id string, total int) *store.Job {
	started := Epoch
	return &store.Job{
		ID:                id,
		Status:            store.StatusRunning,
		Model:             "mock/test",
		PriorityMode:      store.PriorityImpact,
		TotalWords:        total,
		SampleRefinements: []store.Sample{},
		CreatedAt:         Epoch,
		StartedAt:         &started,
		LastChunkAt:       &started,
	}
}
