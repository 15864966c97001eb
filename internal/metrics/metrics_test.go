package metrics

import (
	"context"
	"math"
	"testing"

	"github.com/jackzampolin/semtag/internal/store"
	"github.com/jackzampolin/semtag/internal/store/memstore"
)

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		p      float64
		want   float64
	}{
		{"empty", nil, 50, 0},
		{"single", []float64{7}, 99, 7},
		{"median of odd", []float64{1, 2, 3}, 50, 2},
		{"interpolated", []float64{10, 20}, 50, 15},
		{"top", []float64{1, 2, 3, 4}, 100, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := percentile(tt.values, tt.p); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("percentile(%v, %v) = %v, want %v", tt.values, tt.p, got, tt.want)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	calls := []store.LLMCall{
		{Model: "a", Success: true, BatchSize: 10, LatencyMs: 100, InputTokens: 50, OutputTokens: 20},
		{Model: "a", Success: true, BatchSize: 10, LatencyMs: 300, InputTokens: 70, OutputTokens: 40},
		{Model: "b", Success: false, BatchSize: 5, Error: "timeout"},
	}

	s := Summarize(calls)
	if s.Count != 3 || s.SuccessCount != 2 || s.ErrorCount != 1 {
		t.Errorf("counts = %d/%d/%d", s.Count, s.SuccessCount, s.ErrorCount)
	}
	if s.Items != 25 {
		t.Errorf("items = %d, want 25", s.Items)
	}
	if s.TotalInputTokens != 120 || s.TotalOutputTokens != 60 {
		t.Errorf("tokens = %d/%d", s.TotalInputTokens, s.TotalOutputTokens)
	}
	if s.LatencyMin != 100 || s.LatencyMax != 300 || s.LatencyAvg != 200 || s.LatencyP50 != 200 {
		t.Errorf("latency = min %v max %v avg %v p50 %v", s.LatencyMin, s.LatencyMax, s.LatencyAvg, s.LatencyP50)
	}
	if got := s.SuccessRate(); math.Abs(got-2.0/3.0) > 1e-9 {
		t.Errorf("SuccessRate() = %v", got)
	}

	if empty := Summarize(nil); empty.Count != 0 || empty.SuccessRate() != 0 {
		t.Errorf("Summarize(nil) = %+v", empty)
	}

	byModel := GroupBy(calls, func(c store.LLMCall) string { return c.Model })
	if len(byModel) != 2 || byModel["a"].Count != 2 || byModel["b"].ErrorCount != 1 {
		t.Errorf("GroupBy = %+v", byModel)
	}
}

func TestQueryFiltersByJob(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	err := st.InsertCalls(ctx, []store.LLMCall{
		{ID: "01", JobID: "j1", Model: "m", Success: true, LatencyMs: 10},
		{ID: "02", JobID: "j1", Model: "m", Success: true, LatencyMs: 30},
		{ID: "03", JobID: "j2", Model: "m", Success: false},
	})
	if err != nil {
		t.Fatal(err)
	}

	q := NewQuery(st)
	s, err := q.GetDetailedStats(ctx, Filter{JobID: "j1"})
	if err != nil {
		t.Fatalf("GetDetailedStats() error = %v", err)
	}
	if s.Count != 2 || s.ErrorCount != 0 || s.LatencyAvg != 20 {
		t.Errorf("j1 stats = %+v", s)
	}

	all, err := q.ModelDetailedStats(ctx, Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if all["m"].Count != 3 {
		t.Errorf("model m count = %d, want 3", all["m"].Count)
	}
}
