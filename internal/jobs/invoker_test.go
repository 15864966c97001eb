package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackzampolin/semtag/internal/api"
	"github.com/jackzampolin/semtag/internal/store"
)

func TestHTTPInvoker(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/jobs/{id}/process", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.PathValue("id") {
		case "ok":
			json.NewEncoder(w).Encode(ChunkResult{ProcessedCount: 50, RefinedCount: 12, Samples: []store.Sample{}})
		case "missing":
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(api.ErrorResponse{Error: "job not found"})
		case "stale":
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(api.ErrorResponse{Error: "stale chunk"})
		default:
			w.WriteHeader(http.StatusBadGateway)
			json.NewEncoder(w).Encode(api.ErrorResponse{Error: "upstream down"})
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	inv := NewHTTPInvoker(srv.URL, 5*time.Second)
	ctx := context.Background()

	res, err := inv.Invoke(ctx, "ok")
	if err != nil {
		t.Fatalf("Invoke(ok) error = %v", err)
	}
	if res.ProcessedCount != 50 || res.RefinedCount != 12 {
		t.Errorf("result = %+v", res)
	}

	if _, err := inv.Invoke(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Invoke(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := inv.Invoke(ctx, "stale"); !errors.Is(err, ErrStaleChunk) {
		t.Errorf("Invoke(stale) error = %v, want ErrStaleChunk", err)
	}
	_, err = inv.Invoke(ctx, "broken")
	if err == nil || errors.Is(err, ErrStaleChunk) || api.StatusCode(err) != http.StatusBadGateway {
		t.Errorf("Invoke(broken) error = %v, want a retryable 502", err)
	}
}

func TestLocalInvoker(t *testing.T) {
	h := newHarness(t, 50)
	h.seedEntries(t, 3, "A")
	h.insertJob(t, &store.Job{ID: "job-1", Status: store.StatusRunning, Model: "mock/test", TotalWords: 3})

	res, err := (&LocalInvoker{Processor: h.proc}).Invoke(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if res.ProcessedCount != 3 || !res.Completed {
		t.Errorf("result = %+v", res)
	}
}
