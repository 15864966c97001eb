package jobs

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/jackzampolin/semtag/internal/api"
	"github.com/jackzampolin/semtag/internal/store"
)

// Invoker runs one chunk of a job.
type Invoker interface {
	Invoke(ctx context.Context, jobID string) (*ChunkResult, error)
}

// LocalInvoker runs chunks in this process.
type LocalInvoker struct {
	Processor *Processor
}

// Invoke processes the next chunk of the job.
func (l *LocalInvoker) Invoke(ctx context.Context, jobID string) (*ChunkResult, error) {
	return l.Processor.Process(ctx, jobID)
}

// HTTPInvoker runs chunks on a processing host through
// POST /api/jobs/{id}/process.
type HTTPInvoker struct {
	client *api.Client
}

// NewHTTPInvoker creates an invoker for the server at baseURL. Each
// invocation gives up after timeout.
func NewHTTPInvoker(baseURL string, timeout time.Duration) *HTTPInvoker {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &HTTPInvoker{client: api.NewClientWithTimeout(baseURL, timeout)}
}

// Invoke asks the processing host to run the next chunk of the job.
func (h *HTTPInvoker) Invoke(ctx context.Context, jobID string) (*ChunkResult, error) {
	var res ChunkResult
	err := h.client.Post(ctx, "/api/jobs/"+url.PathEscape(jobID)+"/process", nil, &res)
	if err == nil {
		return &res, nil
	}
	switch api.StatusCode(err) {
	case http.StatusNotFound:
		return nil, fmt.Errorf("job %s: %w", jobID, store.ErrNotFound)
	case http.StatusConflict:
		return nil, fmt.Errorf("%w: %v", ErrStaleChunk, err)
	}
	return nil, err
}
