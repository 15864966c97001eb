package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackzampolin/semtag/internal/classify"
	"github.com/jackzampolin/semtag/internal/kwic"
	"github.com/jackzampolin/semtag/internal/prompts/refine"
	"github.com/jackzampolin/semtag/internal/store"
	"github.com/jackzampolin/semtag/internal/taxonomy"
)

// Defaults for ProcessorConfig.
const (
	DefaultSamplesPerChunk = 3
	DefaultMaxSamples      = 10
	DefaultResultSamples   = 5
)

// ProvenancePrefix tags entries written by the pipeline.
const ProvenancePrefix = "semtag:"

// ProcessorStore is the persistence a Processor needs.
type ProcessorStore interface {
	store.JobStore
	store.EntryStore
	store.DocumentStore
}

// Classifier classifies items in batches. *classify.Caller implements it.
type Classifier interface {
	Run(ctx context.Context, req classify.Request, items []refine.Item, handle func(classify.Batch)) error
}

// ProcessorConfig configures a Processor.
type ProcessorConfig struct {
	Store      ProcessorStore
	Taxonomy   *taxonomy.Cache
	Classifier Classifier

	ChunkSize       int
	ContextWindow   int
	SamplesPerChunk int
	MaxSamples      int

	// Now defaults to time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

// Processor refines one chunk of a job per call.
type Processor struct {
	store      ProcessorStore
	taxonomy   *taxonomy.Cache
	classifier Classifier
	fetcher    *Fetcher

	contextWindow   int
	samplesPerChunk int
	maxSamples      int

	now    func() time.Time
	logger *slog.Logger
}

// NewProcessor creates a processor.
func NewProcessor(cfg ProcessorConfig) *Processor {
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = kwic.DefaultWindow
	}
	if cfg.SamplesPerChunk <= 0 {
		cfg.SamplesPerChunk = DefaultSamplesPerChunk
	}
	if cfg.MaxSamples <= 0 {
		cfg.MaxSamples = DefaultMaxSamples
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Processor{
		store:           cfg.Store,
		taxonomy:        cfg.Taxonomy,
		classifier:      cfg.Classifier,
		fetcher:         NewFetcher(cfg.Store, cfg.ChunkSize),
		contextWindow:   cfg.ContextWindow,
		samplesPerChunk: cfg.SamplesPerChunk,
		maxSamples:      cfg.MaxSamples,
		now:             cfg.Now,
		logger:          cfg.Logger,
	}
}

// ChunkSize returns the number of entries per chunk.
func (p *Processor) ChunkSize() int {
	return p.fetcher.ChunkSize()
}

// Process refines the next chunk of the job. A job that is not running, or
// is being cancelled, is left untouched and the result is Skipped.
//
// Entry-level failures are counted in the result. A page fetch failure, a
// taxonomy load failure or an oracle transport failure fails the whole
// attempt without saving progress.
func (p *Processor) Process(ctx context.Context, jobID string) (*ChunkResult, error) {
	job, err := p.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	logger := p.logger.With("job_id", job.ID, "offset", job.CurrentOffset)

	if job.Status != store.StatusRunning || job.IsCancelling {
		logger.Debug("chunk skipped", "status", job.Status, "is_cancelling", job.IsCancelling)
		return &ChunkResult{Skipped: true, Samples: []store.Sample{}}, nil
	}

	set, err := p.taxonomy.LoadActive(ctx)
	if err != nil {
		return nil, err
	}

	page, err := p.fetcher.NextPage(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("%w at offset %d: %v", ErrPageFetch, job.CurrentOffset, err)
	}

	result := &ChunkResult{Samples: []store.Sample{}}
	if len(page) == 0 {
		result.Completed = p.complete(ctx, logger, job.ID)
		return result, nil
	}

	items := p.buildItems(ctx, logger, page)
	c := &chunk{
		proc:   p,
		set:    set,
		job:    job,
		page:   page,
		items:  items,
		result: result,
		logger: logger,
	}

	req := classify.Request{
		JobID:    job.ID,
		Model:    job.Model,
		Domain:   job.DomainFilter,
		Taxonomy: set.Render(job.DomainFilter),
	}
	if err := p.classifier.Run(ctx, req, items, func(b classify.Batch) { c.apply(ctx, b) }); err != nil {
		return nil, err
	}
	result.ProcessedCount = len(page)

	if err := p.saveProgress(ctx, job, c); err != nil {
		return nil, err
	}

	if p.fetcher.IsLastPage(len(page)) || job.Processed+len(page) >= job.TotalWords {
		result.Completed = p.complete(ctx, logger, job.ID)
	}

	logger.Info("chunk processed",
		"processed", result.ProcessedCount,
		"refined", result.RefinedCount,
		"errors", result.ErrorCount,
		"completed", result.Completed)
	return result, nil
}

// buildItems loads the page's source documents and extracts a context
// snippet per entry. Documents that cannot be read leave entries without
// context.
func (p *Processor) buildItems(ctx context.Context, logger *slog.Logger, page []store.Entry) []refine.Item {
	ids := make([]string, 0, len(page))
	seen := make(map[string]bool)
	for _, e := range page {
		if e.DocumentID != "" && !seen[e.DocumentID] {
			seen[e.DocumentID] = true
			ids = append(ids, e.DocumentID)
		}
	}

	texts := make(map[string]string, len(ids))
	if len(ids) > 0 {
		docs, err := p.store.GetDocuments(ctx, ids)
		if err != nil {
			logger.Warn("failed to load source documents, classifying without context", "error", err, "documents", len(ids))
		}
		for id, d := range docs {
			texts[id] = kwic.PlainText(d.Body, d.ContentType)
		}
	}

	items := make([]refine.Item, len(page))
	for i, e := range page {
		snippet := ""
		if text := texts[e.DocumentID]; text != "" {
			snippet = kwic.Extract(text, e.SurfaceForm, p.contextWindow)
			if snippet == "" && e.Lemma != "" {
				snippet = kwic.Extract(text, e.Lemma, p.contextWindow)
			}
		}
		items[i] = refine.Item{
			SurfaceForm:  e.SurfaceForm,
			Lemma:        e.Lemma,
			PartOfSpeech: e.PartOfSpeech,
			Code:         e.Code,
			Occurrences:  e.Occurrences,
			Context:      snippet,
		}
	}
	return items
}

// saveProgress folds the chunk into the job's counters and writes them,
// guarded by the offset the chunk started from.
func (p *Processor) saveProgress(ctx context.Context, job *store.Job, c *chunk) error {
	now := p.now().UTC()
	next := job.Clone()

	next.Processed = min(job.Processed+c.result.ProcessedCount, job.TotalWords)
	next.Refined = min(job.Refined+c.result.RefinedCount, next.Processed)
	next.N2Refined = min(job.N2Refined+c.result.N2Count, next.Refined)
	next.N3Refined = min(job.N3Refined+c.result.N3Count, next.N2Refined)
	next.N4Refined = min(job.N4Refined+c.result.N4Count, next.N3Refined)
	next.Errors = job.Errors + c.result.ErrorCount
	next.CurrentOffset = job.CurrentOffset + p.fetcher.ChunkSize()
	next.SampleRefinements = MergeSamples(c.kept, job.SampleRefinements, p.maxSamples)
	next.LastChunkAt = &now

	if err := p.store.SaveProgress(ctx, next, job.CurrentOffset); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return fmt.Errorf("%w: offset %d already saved: %v", ErrStaleChunk, job.CurrentOffset, err)
		}
		return fmt.Errorf("failed to save progress: %w", err)
	}
	return nil
}

// complete moves a running job to completed. It returns false when the job
// left running in the meantime (paused or cancelled mid-chunk).
func (p *Processor) complete(ctx context.Context, logger *slog.Logger, jobID string) bool {
	_, err := p.store.UpdateStatus(ctx, jobID, store.StatusUpdate{
		From:     []store.JobStatus{store.StatusRunning},
		To:       store.StatusCompleted,
		Complete: true,
		Touch:    true,
		At:       p.now().UTC(),
	})
	if err != nil {
		logger.Warn("job not marked completed", "error", err)
		return false
	}
	logger.Info("job completed")
	return true
}

// chunk accumulates the outcome of one Process call.
type chunk struct {
	proc   *Processor
	set    *taxonomy.Set
	job    *store.Job
	page   []store.Entry
	items  []refine.Item
	result *ChunkResult
	// kept are the samples persisted on the job.
	kept   []store.Sample
	logger *slog.Logger
}

// apply handles one classified batch.
func (c *chunk) apply(ctx context.Context, b classify.Batch) {
	if !b.Reply.OK() {
		c.result.ErrorCount += len(b.Items)
		return
	}

	used := make([]bool, len(b.Items))
	for _, prop := range b.Reply.Proposals {
		idx := matchItem(b.Items, used, prop.SurfaceForm)
		if idx < 0 {
			c.logger.Debug("proposal for unknown surface form", "surface_form", prop.SurfaceForm)
			continue
		}
		used[idx] = true
		c.refine(ctx, c.page[b.Offset+idx], b.Items[idx], prop)
	}
}

func (c *chunk) refine(ctx context.Context, entry store.Entry, item refine.Item, prop classify.Proposal) {
	// An entry already carrying this job's id was refined by an earlier
	// attempt on this window whose progress was never saved.
	prior := entry.RefineJobID != "" && entry.RefineJobID == c.job.ID
	oldCode := entry.Code
	if prior {
		oldCode = entry.N1
	}

	proposed := taxonomy.Normalize(prop.ProposedCode)
	code, ok := c.set.Resolve(proposed)
	if !ok {
		c.logger.Info("proposed code has no valid ancestor, keeping original",
			"entry_id", entry.ID, "proposed", prop.ProposedCode, "code", entry.Code)
		if prior {
			c.count(entry, item, oldCode, entry.Code, entry.Confidence)
		}
		return
	}
	if code != proposed {
		c.logger.Info("proposed code fell back to ancestor",
			"entry_id", entry.ID, "proposed", prop.ProposedCode, "resolved", code)
	}
	if !taxonomy.IsRefinement(entry.Code, code) {
		if prior {
			c.count(entry, item, oldCode, entry.Code, entry.Confidence)
		}
		return
	}

	err := c.proc.store.UpdateEntry(ctx, store.EntryUpdate{
		ID:         entry.ID,
		Code:       code,
		Levels:     taxonomy.Levels(code),
		Confidence: prop.Confidence,
		Provenance: ProvenancePrefix + c.job.Model,
		JobID:      c.job.ID,
	})
	if err != nil {
		c.logger.Warn("failed to persist refinement", "entry_id", entry.ID, "error", err)
		c.result.ErrorCount++
		return
	}

	c.count(entry, item, oldCode, code, prop.Confidence)
}

// count adds a refinement of entry to code to the chunk result and samples.
func (c *chunk) count(entry store.Entry, item refine.Item, oldCode, code string, confidence float64) {
	depth := taxonomy.Depth(code)
	c.result.RefinedCount++
	if depth >= 2 {
		c.result.N2Count++
	}
	if depth >= 3 {
		c.result.N3Count++
	}
	if depth >= 4 {
		c.result.N4Count++
	}

	sample := store.Sample{
		SurfaceForm:    entry.SurfaceForm,
		OldCode:        oldCode,
		NewCode:        code,
		Depth:          depth,
		Confidence:     confidence,
		ContextExcerpt: item.Context,
	}
	if len(c.kept) < c.proc.samplesPerChunk {
		c.kept = append(c.kept, sample)
	}
	if len(c.result.Samples) < DefaultResultSamples {
		c.result.Samples = append(c.result.Samples, sample)
	}
}

// matchItem returns the first unused item whose surface form equals s,
// ignoring case, or -1.
func matchItem(items []refine.Item, used []bool, s string) int {
	s = strings.TrimSpace(s)
	for i, it := range items {
		if !used[i] && strings.EqualFold(it.SurfaceForm, s) {
			return i
		}
	}
	return -1
}

// MergeSamples puts recent ahead of older and keeps at most limit samples.
func MergeSamples(recent, older []store.Sample, limit int) []store.Sample {
	if limit <= 0 {
		return []store.Sample{}
	}
	out := make([]store.Sample, 0, min(len(recent)+len(older), limit))
	for _, s := range recent {
		if len(out) == limit {
			return out
		}
		out = append(out, s)
	}
	for _, s := range older {
		if len(out) == limit {
			break
		}
		out = append(out, s)
	}
	return out
}
