package llmcall

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackzampolin/semtag/internal/providers"
	"github.com/jackzampolin/semtag/internal/store"
)

// RecorderConfig configures the recorder.
type RecorderConfig struct {
	Store         store.CallStore
	BatchSize     int           // Flush after N calls (default: 50)
	FlushInterval time.Duration // Or after duration (default: 2s)
	QueueSize     int           // Buffer size (default: 1000)
	Logger        *slog.Logger
}

// Recorder handles fire-and-forget call recording. Calls are queued and
// written to the store in batches by a single goroutine.
type Recorder struct {
	store  store.CallStore
	logger *slog.Logger

	batchSize     int
	flushInterval time.Duration

	queue   chan store.LLMCall
	flushCh chan chan struct{}

	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
	mu        sync.RWMutex
	stopped   bool
}

// NewRecorder creates a recorder. A nil store yields a recorder that drops
// everything.
func NewRecorder(cfg RecorderConfig) *Recorder {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 2 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Recorder{
		store:         cfg.Store,
		logger:        cfg.Logger,
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		queue:         make(chan store.LLMCall, cfg.QueueSize),
		flushCh:       make(chan chan struct{}),
	}
}

// Start begins processing queued calls.
func (r *Recorder) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		r.wg.Add(1)
		go r.run(ctx)
	})
}

// Stop flushes remaining calls and waits for the writer to exit.
func (r *Recorder) Stop() {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		r.stopped = true
		close(r.queue)
		r.mu.Unlock()
		r.wg.Wait()
	})
}

// Record captures a call asynchronously.
func (r *Recorder) Record(result *providers.ChatResult, opts RecordOptions) {
	if r == nil || r.store == nil {
		return
	}
	if call := FromChatResult(result, opts); call != nil {
		r.RecordCall(*call)
	}
}

// RecordCall queues an already-constructed call. It never blocks; when the
// queue is full or the recorder stopped the call is dropped.
func (r *Recorder) RecordCall(call store.LLMCall) {
	if r == nil || r.store == nil {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.stopped {
		r.logger.Warn("recorder stopped, dropping llm call", "id", call.ID)
		return
	}
	select {
	case r.queue <- call:
	default:
		r.logger.Warn("recorder queue full, dropping llm call", "id", call.ID, "job_id", call.JobID)
	}
}

// Flush writes everything queued so far and returns once it is stored.
func (r *Recorder) Flush(ctx context.Context) {
	if r == nil || r.store == nil {
		return
	}
	r.mu.RLock()
	stopped := r.stopped
	r.mu.RUnlock()
	if stopped {
		return
	}
	done := make(chan struct{})
	select {
	case r.flushCh <- done:
	case <-ctx.Done():
		return
	}
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (r *Recorder) run(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	batch := make([]store.LLMCall, 0, r.batchSize)
	write := func() {
		if len(batch) == 0 {
			return
		}
		// Writes outlive ctx so Stop can drain after shutdown began.
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := r.store.InsertCalls(wctx, batch); err != nil {
			r.logger.Warn("failed to store llm calls", "count", len(batch), "error", err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case call, ok := <-r.queue:
			if !ok {
				write()
				return
			}
			batch = append(batch, call)
			if len(batch) >= r.batchSize {
				write()
			}
		case done := <-r.flushCh:
			// Drain what is already queued before acknowledging.
			for n := len(r.queue); n > 0; n-- {
				call, ok := <-r.queue
				if !ok {
					break
				}
				batch = append(batch, call)
			}
			write()
			close(done)
		case <-ticker.C:
			write()
		}
	}
}
