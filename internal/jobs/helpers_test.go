package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"testing"

	"github.com/jackzampolin/semtag/internal/classify"
	"github.com/jackzampolin/semtag/internal/providers"
	"github.com/jackzampolin/semtag/internal/store"
	"github.com/jackzampolin/semtag/internal/store/memstore"
	"github.com/jackzampolin/semtag/internal/taxonomy"
	"github.com/jackzampolin/semtag/internal/testutil"
)

var itemLine = regexp.MustCompile(`(?m)^\d+\. (.+)$`)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// promptSurfaces returns the surface forms listed in a refinement prompt.
func promptSurfaces(req *providers.ChatRequest) []string {
	var user string
	for _, m := range req.Messages {
		if m.Role == "user" {
			user = m.Content
		}
	}
	var out []string
	for _, m := range itemLine.FindAllStringSubmatch(user, -1) {
		out = append(out, strings.TrimSpace(m[1]))
	}
	return out
}

func userPrompt(req *providers.ChatRequest) string {
	for _, m := range req.Messages {
		if m.Role == "user" {
			return m.Content
		}
	}
	return ""
}

// proposeAll answers every prompt with one proposal per listed entry. Entries
// missing from codes get fallback.
func proposeAll(codes map[string]string, fallback string) func(*providers.ChatRequest) (string, error) {
	return func(req *providers.ChatRequest) (string, error) {
		var props []classify.Proposal
		for _, s := range promptSurfaces(req) {
			code, ok := codes[s]
			if !ok {
				code = fallback
			}
			props = append(props, classify.Proposal{SurfaceForm: s, ProposedCode: code, Confidence: 0.9})
		}
		raw, err := json.Marshal(props)
		return string(raw), err
	}
}

type harness struct {
	store    *memstore.Store
	cache    *taxonomy.Cache
	mock     *providers.MockClient
	registry *providers.Registry
	proc     *Processor
}

func newHarness(t *testing.T, chunkSize int) *harness {
	t.Helper()
	st := memstore.New()
	ctx := context.Background()
	if err := st.UpsertTaxonomy(ctx, testutil.Taxonomy()); err != nil {
		t.Fatalf("UpsertTaxonomy() error = %v", err)
	}

	mock := providers.NewMockClient()
	mock.Responder = proposeAll(nil, "A.1")
	registry := providers.NewRegistry()
	registry.RegisterLLM("mock", mock)

	logger := quietLogger()
	cache := taxonomy.NewCache(taxonomy.CacheConfig{Loader: st, Logger: logger})
	caller := classify.NewCaller(classify.Config{
		Clients:   registry,
		BatchSize: 10,
		Logger:    logger,
	})
	proc := NewProcessor(ProcessorConfig{
		Store:      st,
		Taxonomy:   cache,
		Classifier: caller,
		ChunkSize:  chunkSize,
		Logger:     logger,
	})
	return &harness{store: st, cache: cache, mock: mock, registry: registry, proc: proc}
}

// seedEntries adds n coarse entries under code with descending occurrences,
// so impact order is word000, word001, ...
func (h *harness) seedEntries(t *testing.T, n int, code string) []store.Entry {
	t.Helper()
	entries := make([]store.Entry, n)
	for i := range entries {
		entries[i] = testutil.Entry(fmt.Sprintf("e%03d", i), fmt.Sprintf("word%03d", i), code, 1000-i)
	}
	if err := h.store.UpsertEntries(context.Background(), entries); err != nil {
		t.Fatalf("UpsertEntries() error = %v", err)
	}
	return entries
}

func (h *harness) insertJob(t *testing.T, job *store.Job) {
	t.Helper()
	if _, err := h.store.ReplaceActiveJob(context.Background(), job); err != nil {
		t.Fatalf("ReplaceActiveJob() error = %v", err)
	}
}

func (h *harness) job(t *testing.T, id string) *store.Job {
	t.Helper()
	job, err := h.store.GetJob(context.Background(), id)
	if err != nil {
		t.Fatalf("GetJob(%s) error = %v", id, err)
	}
	return job
}

func (h *harness) entry(t *testing.T, id string) *store.Entry {
	t.Helper()
	e, err := h.store.GetEntry(context.Background(), id)
	if err != nil {
		t.Fatalf("GetEntry(%s) error = %v", id, err)
	}
	return e
}

// recordingKicker collects kicked job ids.
type recordingKicker struct {
	ids []string
}

func (k *recordingKicker) Kick(jobID string) {
	k.ids = append(k.ids, jobID)
}
