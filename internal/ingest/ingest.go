// Package ingest loads taxonomy, entries and source documents into a store.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/jackzampolin/semtag/internal/store"
	"github.com/jackzampolin/semtag/internal/taxonomy"
)

// DefaultBatchSize is the number of records written per upsert.
const DefaultBatchSize = 500

// Seeder is the slice of store.Store that ingest writes to.
type Seeder interface {
	UpsertTaxonomy(ctx context.Context, entries []store.TaxonomyEntry) error
	UpsertEntries(ctx context.Context, entries []store.Entry) error
	UpsertDocuments(ctx context.Context, docs []store.Document) error
}

// Request names the files to load. Any of them may be empty.
type Request struct {
	// TaxonomyPath is a YAML list of taxonomy entries.
	TaxonomyPath string
	// EntryPaths are JSONL files of entries (sorted by numeric suffix).
	EntryPaths []string
	// DocumentPaths are JSONL files of documents, or directories of .txt
	// files whose names become document ids.
	DocumentPaths []string

	BatchSize int
	Logger    *slog.Logger // Optional logger for progress updates
}

// Result counts what was written.
type Result struct {
	Taxonomy  int `json:"taxonomy" yaml:"taxonomy"`
	Entries   int `json:"entries" yaml:"entries"`
	Documents int `json:"documents" yaml:"documents"`
}

// Ingest reads every file in req and upserts its records into st.
func Ingest(ctx context.Context, st Seeder, req Request) (*Result, error) {
	log := req.Logger
	if log == nil {
		log = slog.Default()
	}
	if req.BatchSize <= 0 {
		req.BatchSize = DefaultBatchSize
	}
	if req.TaxonomyPath == "" && len(req.EntryPaths) == 0 && len(req.DocumentPaths) == 0 {
		return nil, fmt.Errorf("nothing to ingest")
	}

	res := &Result{}

	if req.TaxonomyPath != "" {
		codes, err := ReadTaxonomy(req.TaxonomyPath)
		if err != nil {
			return nil, err
		}
		if err := st.UpsertTaxonomy(ctx, codes); err != nil {
			return nil, fmt.Errorf("failed to write taxonomy: %w", err)
		}
		res.Taxonomy = len(codes)
		log.Info("taxonomy loaded", "file", req.TaxonomyPath, "codes", len(codes))
	}

	for _, path := range req.DocumentPaths {
		docs, err := ReadDocuments(path)
		if err != nil {
			return nil, err
		}
		for batch := range chunk(docs, req.BatchSize) {
			if err := st.UpsertDocuments(ctx, batch); err != nil {
				return nil, fmt.Errorf("failed to write documents from %s: %w", path, err)
			}
		}
		res.Documents += len(docs)
		log.Info("documents loaded", "path", path, "count", len(docs))
	}

	now := time.Now().UTC()
	for _, path := range sortByNumber(req.EntryPaths) {
		entries, err := ReadEntries(path, now)
		if err != nil {
			return nil, err
		}
		for batch := range chunk(entries, req.BatchSize) {
			if err := st.UpsertEntries(ctx, batch); err != nil {
				return nil, fmt.Errorf("failed to write entries from %s: %w", path, err)
			}
		}
		res.Entries += len(entries)
		log.Info("entries loaded", "file", path, "count", len(entries))
	}

	return res, nil
}

// ReadTaxonomy parses a YAML list of taxonomy entries. Missing depth and
// parent are derived from the code.
func ReadTaxonomy(path string) ([]store.TaxonomyEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read taxonomy: %w", err)
	}
	var codes []store.TaxonomyEntry
	if err := yaml.Unmarshal(data, &codes); err != nil {
		return nil, fmt.Errorf("failed to parse taxonomy %s: %w", path, err)
	}
	for i := range codes {
		c := &codes[i]
		c.Code = taxonomy.Normalize(c.Code)
		if c.Code == "" {
			return nil, fmt.Errorf("taxonomy %s: entry %d has no code", path, i+1)
		}
		if c.Depth == 0 {
			c.Depth = taxonomy.Depth(c.Code)
		}
		if c.Parent == "" {
			c.Parent = taxonomy.Parent(c.Code)
		}
	}
	return codes, nil
}

// ReadEntries parses a JSONL file of entries. Entries without an id get a
// random one; level codes default to the prefixes of code.
func ReadEntries(path string, now time.Time) ([]store.Entry, error) {
	var entries []store.Entry
	err := readJSONL(path, func(line int, e *store.Entry) error {
		if strings.TrimSpace(e.SurfaceForm) == "" {
			return fmt.Errorf("line %d: surface_form is required", line)
		}
		e.Code = taxonomy.Normalize(e.Code)
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		if e.N1 == "" && e.N2 == "" && e.N3 == "" && e.N4 == "" {
			lv := taxonomy.Levels(e.Code)
			e.N1, e.N2, e.N3, e.N4 = lv[0], lv[1], lv[2], lv[3]
		}
		if e.CachedAt.IsZero() {
			e.CachedAt = now
		}
		entries = append(entries, *e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ReadDocuments parses a JSONL file of documents, or loads every .txt file
// in a directory.
func ReadDocuments(path string) ([]store.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("documents not found: %s", path)
	}
	if info.IsDir() {
		return readDocumentDir(path)
	}

	var docs []store.Document
	err = readJSONL(path, func(line int, d *store.Document) error {
		if d.ID == "" {
			return fmt.Errorf("line %d: id is required", line)
		}
		docs = append(docs, *d)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func readDocumentDir(dir string) ([]store.Document, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	docs := make([]store.Document, 0, len(matches))
	for _, p := range matches {
		body, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read document: %w", err)
		}
		docs = append(docs, store.Document{
			ID:          documentID(p),
			Body:        string(body),
			ContentType: "text/plain",
		})
	}
	return docs, nil
}

// chunk yields consecutive slices of at most size items.
func chunk[T any](items []T, size int) func(yield func([]T) bool) {
	return func(yield func([]T) bool) {
		for start := 0; start < len(items); start += size {
			if !yield(items[start:min(start+size, len(items))]) {
				return
			}
		}
	}
}

var numberSuffix = regexp.MustCompile(`-(\d+)\.[^.]+$`)

// sortByNumber sorts file paths by their numeric suffix.
// e.g., ["entries-2.jsonl", "entries-1.jsonl", "entries-10.jsonl"] -> ["entries-1.jsonl", "entries-2.jsonl", "entries-10.jsonl"]
func sortByNumber(paths []string) []string {
	sorted := make([]string, len(paths))
	copy(sorted, paths)

	sort.SliceStable(sorted, func(i, j int) bool {
		mi := numberSuffix.FindStringSubmatch(sorted[i])
		mj := numberSuffix.FindStringSubmatch(sorted[j])

		// If both have numbers, sort numerically
		if len(mi) > 1 && len(mj) > 1 {
			ni, _ := strconv.Atoi(mi[1])
			nj, _ := strconv.Atoi(mj[1])
			return ni < nj
		}

		// Files without numbers come first
		if len(mi) > 1 {
			return false
		}
		if len(mj) > 1 {
			return true
		}

		// Both without numbers: alphabetical
		return sorted[i] < sorted[j]
	})

	return sorted
}

// documentID derives a document id from a file name.
// e.g., "corpus/bbc-0042.txt" -> "bbc-0042"
func documentID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
