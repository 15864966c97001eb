package classify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jackzampolin/semtag/internal/llmcall"
	"github.com/jackzampolin/semtag/internal/prompts/refine"
	"github.com/jackzampolin/semtag/internal/providers"
	"github.com/jackzampolin/semtag/internal/store"
	"github.com/jackzampolin/semtag/internal/store/memstore"
)

func testItems(n int) []refine.Item {
	items := make([]refine.Item, n)
	for i := range items {
		items[i] = refine.Item{SurfaceForm: fmt.Sprintf("w%02d", i), Code: "A", Occurrences: n - i}
	}
	return items
}

func newTestCaller(mock *providers.MockClient, cfg Config) *Caller {
	registry := providers.NewRegistry()
	registry.RegisterLLM("mock", mock)
	cfg.Clients = registry
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCaller(cfg)
}

func TestCaller_RunBatches(t *testing.T) {
	mock := providers.NewMockClient()
	mock.ResponseText = `[{"surfaceForm":"w00","proposedCode":"A.1","confidence":0.9}]`
	c := newTestCaller(mock, Config{BatchSize: 4, BatchDelay: time.Millisecond})

	var batches []Batch
	req := Request{JobID: "job-1", Model: "mock/test-model", Taxonomy: "A  Animals\n"}
	if err := c.Run(context.Background(), req, testItems(10), func(b Batch) {
		batches = append(batches, b)
	}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(batches) != 3 {
		t.Fatalf("batches = %d, want 3", len(batches))
	}
	for i, want := range []struct{ offset, size int }{{0, 4}, {4, 4}, {8, 2}} {
		if batches[i].Offset != want.offset || len(batches[i].Items) != want.size {
			t.Errorf("batch %d = offset %d size %d, want %d/%d", i, batches[i].Offset, len(batches[i].Items), want.offset, want.size)
		}
		if !batches[i].Reply.OK() || len(batches[i].Reply.Proposals) != 1 {
			t.Errorf("batch %d reply = %+v", i, batches[i].Reply)
		}
	}

	reqs := mock.Requests()
	if len(reqs) != 3 {
		t.Fatalf("requests = %d, want 3", len(reqs))
	}
	if reqs[0].Model != "test-model" {
		t.Errorf("model = %q, want the provider prefix stripped", reqs[0].Model)
	}
	if reqs[0].Messages[0].Role != "system" || reqs[0].Messages[1].Role != "user" {
		t.Errorf("messages = %+v", reqs[0].Messages)
	}
	if !strings.Contains(reqs[2].Messages[1].Content, "w08") || strings.Contains(reqs[2].Messages[1].Content, "w07") {
		t.Errorf("last batch prompt:\n%s", reqs[2].Messages[1].Content)
	}
}

func TestCaller_UnparseableReplyReachesHandler(t *testing.T) {
	mock := providers.NewMockClient()
	mock.ResponseText = "Sorry, I cannot help with that."
	c := newTestCaller(mock, Config{BatchSize: 10})

	var got []Batch
	err := c.Run(context.Background(), Request{Model: "mock/x"}, testItems(3), func(b Batch) { got = append(got, b) })
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(got) != 1 || got[0].Reply.OK() || !errors.Is(got[0].Reply.Unparseable, ErrUnparseable) {
		t.Errorf("batches = %+v, want one unparseable", got)
	}
}

func TestCaller_TimeoutIsUnparseable(t *testing.T) {
	mock := providers.NewMockClient()
	mock.Latency = time.Second
	c := newTestCaller(mock, Config{BatchSize: 10, CallTimeout: 20 * time.Millisecond})

	var got []Batch
	err := c.Run(context.Background(), Request{Model: "mock/x"}, testItems(2), func(b Batch) { got = append(got, b) })
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(got) != 1 || !errors.Is(got[0].Reply.Unparseable, ErrCallTimeout) {
		t.Errorf("batches = %+v, want a timed out batch", got)
	}
}

func TestCaller_TransportFailureStopsRun(t *testing.T) {
	mock := providers.NewMockClient()
	mock.ResponseText = `[]`
	mock.FailAfter = 1
	c := newTestCaller(mock, Config{BatchSize: 2})

	handled := 0
	err := c.Run(context.Background(), Request{Model: "mock/x"}, testItems(6), func(Batch) { handled++ })
	if err == nil {
		t.Fatal("Run() error = nil, want transport failure")
	}
	if handled != 1 {
		t.Errorf("handled = %d, want the batch before the failure", handled)
	}
}

func TestCaller_UnknownProvider(t *testing.T) {
	c := NewCaller(Config{Clients: providers.NewRegistry()})
	err := c.Run(context.Background(), Request{Model: "nope/x"}, testItems(1), func(Batch) {
		t.Error("handler called without a client")
	})
	if err == nil {
		t.Error("Run() error = nil, want resolution failure")
	}
}

func TestCaller_EmptyItems(t *testing.T) {
	mock := providers.NewMockClient()
	c := newTestCaller(mock, Config{})
	if err := c.Run(context.Background(), Request{Model: "mock/x"}, nil, func(Batch) {}); err != nil {
		t.Errorf("Run() error = %v", err)
	}
	if mock.RequestCount() != 0 {
		t.Error("empty run called the oracle")
	}
}

func TestCaller_RecordsCalls(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	rec := llmcall.NewRecorder(llmcall.RecorderConfig{Store: s, BatchSize: 100, FlushInterval: time.Hour})
	rec.Start(ctx)
	defer rec.Stop()

	mock := providers.NewMockClient()
	mock.ResponseText = "not json"
	c := newTestCaller(mock, Config{BatchSize: 5, Recorder: rec})

	if err := c.Run(ctx, Request{JobID: "job-7", Model: "mock/x"}, testItems(7), func(Batch) {}); err != nil {
		t.Fatal(err)
	}
	rec.Flush(ctx)

	calls, err := s.ListCalls(ctx, store.CallFilter{JobID: "job-7"})
	if err != nil {
		t.Fatal(err)
	}
	if len(calls) != 2 {
		t.Fatalf("recorded calls = %d, want 2", len(calls))
	}
	for _, call := range calls {
		if call.Success || call.Error == "" || call.PromptHash == "" {
			t.Errorf("call = %+v, want a failed call with prompt hash", call)
		}
	}
}
