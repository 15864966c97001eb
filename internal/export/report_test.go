package export

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/jackzampolin/semtag/internal/store"
	"github.com/jackzampolin/semtag/internal/store/memstore"
	"github.com/jackzampolin/semtag/internal/testutil"
)

func TestJobReport(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	job := testutil.Job("job-1", 200)
	job.Processed = 100
	job.Refined = 40
	job.N2Refined = 40
	job.N3Refined = 12
	job.SampleRefinements = []store.Sample{
		{SurfaceForm: "terrier", OldCode: "A", NewCode: "A.1.1.1", Depth: 4, Confidence: 0.93, ContextExcerpt: "the terrier barked"},
		{SurfaceForm: "wren", OldCode: "A", NewCode: "A.2", Depth: 2, Confidence: 0.8},
	}
	if _, err := s.ReplaceActiveJob(ctx, job); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertCalls(ctx, []store.LLMCall{
		{ID: "c1", JobID: "job-1", Timestamp: testutil.Epoch, Provider: "mock", Model: "test", BatchSize: 10, Success: true},
		{ID: "c2", JobID: "job-1", Timestamp: testutil.Epoch.Add(time.Second), Provider: "mock", Model: "test", Error: "unparseable reply"},
		{ID: "c3", JobID: "other", Timestamp: testutil.Epoch, Provider: "mock"},
	}); err != nil {
		t.Fatal(err)
	}

	data, err := NewReporter(s, nil).JobReport(ctx, "job-1")
	if err != nil {
		t.Fatalf("JobReport() error = %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("report is not a workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 3 || sheets[0] != SummarySheet {
		t.Errorf("sheets = %v", sheets)
	}

	summary, err := f.GetRows(SummarySheet)
	if err != nil {
		t.Fatal(err)
	}
	values := make(map[string]string)
	for _, row := range summary {
		if len(row) == 2 {
			values[row[0]] = row[1]
		}
	}
	for key, want := range map[string]string{
		"Job ID":             "job-1",
		"Status":             "running",
		"Processed":          "100",
		"Refined to level 3": "12",
		"Progress":           "50.0%",
		"Refinement rate":    "40.0%",
		"Completed":          "-",
		"Oracle calls":       "2",
		"Failed calls":       "1",
	} {
		if values[key] != want {
			t.Errorf("summary %q = %q, want %q", key, values[key], want)
		}
	}

	samples, err := f.GetRows(SamplesSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 3 || samples[1][0] != "terrier" || samples[1][2] != "A.1.1.1" {
		t.Errorf("samples = %v", samples)
	}

	calls, err := f.GetRows(CallsSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(calls) != 3 {
		t.Errorf("call rows = %d, want header and the job's 2 calls", len(calls))
	}
}

func TestJobReport_UnknownJob(t *testing.T) {
	_, err := NewReporter(memstore.New(), nil).JobReport(context.Background(), "missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("JobReport() error = %v, want ErrNotFound", err)
	}
}

func TestPercent(t *testing.T) {
	if got := percent(1, 3); got != "33.3%" {
		t.Errorf("percent(1, 3) = %q", got)
	}
	if got := percent(5, 0); got != "0.0%" {
		t.Errorf("percent(5, 0) = %q", got)
	}
}
