// Package export renders job reports as XLSX workbooks.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/jackzampolin/semtag/internal/metrics"
	"github.com/jackzampolin/semtag/internal/store"
)

// Sheet names in a job report.
const (
	SummarySheet = "Summary"
	SamplesSheet = "Samples"
	CallsSheet   = "LLM Calls"
)

// MaxReportCalls caps the call history written to a report.
const MaxReportCalls = 1000

// ReportStore is the persistence a Reporter reads from.
type ReportStore interface {
	GetJob(ctx context.Context, id string) (*store.Job, error)
	ListCalls(ctx context.Context, filter store.CallFilter) ([]store.LLMCall, error)
}

// Reporter builds job reports.
type Reporter struct {
	store  ReportStore
	logger *slog.Logger
}

// NewReporter creates a reporter.
func NewReporter(s ReportStore, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{store: s, logger: logger}
}

// JobReport returns an XLSX workbook with the job's summary, its sample
// refinements and the oracle calls it made.
func (r *Reporter) JobReport(ctx context.Context, jobID string) ([]byte, error) {
	start := time.Now()

	job, err := r.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	calls, err := r.store.ListCalls(ctx, store.CallFilter{JobID: jobID, Limit: MaxReportCalls})
	if err != nil {
		return nil, fmt.Errorf("failed to list llm calls: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	// NewFile starts with Sheet1; rename it so the summary opens first.
	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return nil, err
	}
	for _, name := range []string{SamplesSheet, CallsSheet} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}

	writeSummary(f, job, metrics.Summarize(calls))
	writeSamples(f, job.SampleRefinements)
	writeCalls(f, calls)

	idx, _ := f.GetSheetIndex(SummarySheet)
	f.SetActiveSheet(idx)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	r.logger.Info("job report built",
		"job_id", jobID,
		"samples", len(job.SampleRefinements),
		"calls", len(calls),
		"elapsed_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func writeSummary(f *excelize.File, job *store.Job, stats *metrics.DetailedStats) {
	rows := [][]any{
		{"Job ID", job.ID},
		{"Status", string(job.Status)},
		{"Model", job.Model},
		{"Priority mode", string(job.PriorityMode)},
		{"Domain filter", orDash(job.DomainFilter)},
		{"Total words", job.TotalWords},
		{"Processed", job.Processed},
		{"Refined", job.Refined},
		{"Errors", job.Errors},
		{"Refined to level 2", job.N2Refined},
		{"Refined to level 3", job.N3Refined},
		{"Refined to level 4", job.N4Refined},
		{"Progress", percent(job.Processed, job.TotalWords)},
		{"Refinement rate", percent(job.Refined, job.Processed)},
		{"Current offset", job.CurrentOffset},
		{"Created", formatTime(&job.CreatedAt)},
		{"Started", formatTime(job.StartedAt)},
		{"Last chunk", formatTime(job.LastChunkAt)},
		{"Completed", formatTime(job.CompletedAt)},
		{"Last error", orDash(job.LastError)},
		{"Oracle calls", stats.Count},
		{"Failed calls", stats.ErrorCount},
		{"Latency p50 ms", fmt.Sprintf("%.0f", stats.LatencyP50)},
		{"Latency p95 ms", fmt.Sprintf("%.0f", stats.LatencyP95)},
		{"Input tokens", stats.TotalInputTokens},
		{"Output tokens", stats.TotalOutputTokens},
	}
	for i, row := range rows {
		writeRow(f, SummarySheet, i+1, row...)
	}
	_ = f.SetColWidth(SummarySheet, "A", "A", 22)
	_ = f.SetColWidth(SummarySheet, "B", "B", 48)
}

func writeSamples(f *excelize.File, samples []store.Sample) {
	writeRow(f, SamplesSheet, 1, "Surface form", "Old code", "New code", "Depth", "Confidence", "Context")
	for i, s := range samples {
		writeRow(f, SamplesSheet, i+2, s.SurfaceForm, s.OldCode, s.NewCode, s.Depth, s.Confidence, s.ContextExcerpt)
	}
	_ = f.SetColWidth(SamplesSheet, "A", "A", 24)
	_ = f.SetColWidth(SamplesSheet, "B", "C", 14)
	_ = f.SetColWidth(SamplesSheet, "F", "F", 80)
}

func writeCalls(f *excelize.File, calls []store.LLMCall) {
	writeRow(f, CallsSheet, 1, "ID", "Time", "Provider", "Model", "Batch size", "Latency ms", "Input tokens", "Output tokens", "Success", "Error", "Prompt hash")
	for i, c := range calls {
		writeRow(f, CallsSheet, i+2,
			c.ID, c.Timestamp.UTC().Format(time.RFC3339), c.Provider, c.Model, c.BatchSize,
			c.LatencyMs, c.InputTokens, c.OutputTokens, c.Success, c.Error, c.PromptHash)
	}
	_ = f.SetColWidth(CallsSheet, "A", "B", 28)
	_ = f.SetColWidth(CallsSheet, "J", "J", 48)
}

func percent(n, of int) string {
	if of <= 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(n)*100/float64(of))
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
