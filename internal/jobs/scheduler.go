package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/jackzampolin/semtag/internal/store"
)

// Defaults for SchedulerConfig.
const (
	DefaultInitialDelay = 100 * time.Millisecond
	DefaultBaseDelay    = time.Second
	DefaultMaxAttempts  = 3
)

// SchedulerStore is the persistence a Scheduler needs.
type SchedulerStore interface {
	ListJobs(ctx context.Context, filter store.JobFilter) ([]*store.Job, error)
	UpdateStatus(ctx context.Context, id string, upd store.StatusUpdate) (*store.Job, error)
}

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	Store   SchedulerStore
	Invoker Invoker

	// InitialDelay is waited before the first attempt of every chunk.
	InitialDelay time.Duration
	// BaseDelay doubles on each retry of a failed chunk.
	BaseDelay   time.Duration
	MaxAttempts int

	// Now defaults to time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

// Scheduler keeps invoking chunks of a job until the job completes, stops
// running, or a chunk fails MaxAttempts times in a row, in which case the
// job is paused with the error recorded.
//
// All job state is read from the store on every chunk, so a loop can be
// started again after a restart with Recover.
type Scheduler struct {
	store   SchedulerStore
	invoker Invoker

	initialDelay time.Duration
	baseDelay    time.Duration
	maxAttempts  int

	now    func() time.Time
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
	// loops holds the jobs with a live loop; true means it was kicked
	// again while running and must re-check the job before exiting.
	loops map[string]bool
}

// NewScheduler creates a scheduler. Loops run until Stop.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	if cfg.InitialDelay < 0 {
		cfg.InitialDelay = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		store:        cfg.Store,
		invoker:      cfg.Invoker,
		initialDelay: cfg.InitialDelay,
		baseDelay:    cfg.BaseDelay,
		maxAttempts:  cfg.MaxAttempts,
		now:          cfg.Now,
		logger:       cfg.Logger,
		ctx:          ctx,
		cancel:       cancel,
		loops:        make(map[string]bool),
	}
}

// SetInvoker replaces the invoker used by loops started afterwards and by
// the next chunk of running loops.
func (s *Scheduler) SetInvoker(inv Invoker) {
	s.mu.Lock()
	s.invoker = inv
	s.mu.Unlock()
}

func (s *Scheduler) currentInvoker() Invoker {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invoker
}

// Kick starts the loop for a job. If a loop is already running for it,
// that loop runs once more before exiting instead.
func (s *Scheduler) Kick(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if _, running := s.loops[jobID]; running {
		s.loops[jobID] = true
		return
	}
	s.loops[jobID] = false
	s.wg.Add(1)
	go s.loop(jobID)
}

func (s *Scheduler) loop(jobID string) {
	defer s.wg.Done()
	for {
		if err := s.RunJob(s.ctx, jobID); err != nil && s.ctx.Err() == nil {
			s.logger.Warn("job loop stopped", "job_id", jobID, "error", err)
		}

		s.mu.Lock()
		again := s.loops[jobID]
		if !again || s.closed {
			delete(s.loops, jobID)
			s.mu.Unlock()
			return
		}
		s.loops[jobID] = false
		s.mu.Unlock()
	}
}

// Active returns the ids of jobs with a live loop.
func (s *Scheduler) Active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.loops))
	for id := range s.loops {
		ids = append(ids, id)
	}
	return ids
}

// RunJob invokes chunks of the job until it is done. It returns the error
// that exhausted the retries, after pausing the job.
func (s *Scheduler) RunJob(ctx context.Context, jobID string) error {
	logger := s.logger.With("job_id", jobID)
	for {
		res, err := s.invokeWithRetry(ctx, logger, jobID)
		switch {
		case err == nil:
			if res.Done() {
				return nil
			}
		case errors.Is(err, ErrStaleChunk):
			logger.Warn("chunk already processed elsewhere, moving on", "error", err)
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, store.ErrNotFound):
			return err
		default:
			s.pause(logger, jobID, err)
			return err
		}
	}
}

// invokeWithRetry runs one chunk: the first attempt after InitialDelay,
// retry n after BaseDelay * 2^(n-1).
func (s *Scheduler) invokeWithRetry(ctx context.Context, logger *slog.Logger, jobID string) (*ChunkResult, error) {
	if err := sleep(ctx, s.initialDelay); err != nil {
		return nil, err
	}

	return retry.DoWithData(
		func() (*ChunkResult, error) {
			res, err := s.currentInvoker().Invoke(ctx, jobID)
			if err != nil {
				if errors.Is(err, ErrStaleChunk) || errors.Is(err, store.ErrNotFound) {
					return nil, retry.Unrecoverable(err)
				}
				return nil, err
			}
			return res, nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(s.maxAttempts)),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			return s.backoff(n + 1)
		}),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("chunk attempt failed",
				"attempt", n+1,
				"max_attempts", s.maxAttempts,
				"next_delay", s.backoff(n+1),
				"error", err)
		}),
	)
}

// backoff returns the wait before retry n (1-based).
func (s *Scheduler) backoff(n uint) time.Duration {
	return s.baseDelay * time.Duration(1<<(n-1))
}

func (s *Scheduler) pause(logger *slog.Logger, jobID string, cause error) {
	msg := fmt.Sprintf("chunk failed after %d attempts: %v", s.maxAttempts, cause)
	// The job may already be stopping; the update must outlive ctx.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := s.store.UpdateStatus(ctx, jobID, store.StatusUpdate{
		From:      []store.JobStatus{store.StatusRunning},
		To:        store.StatusPaused,
		LastError: &msg,
		At:        s.now().UTC(),
	})
	if err != nil {
		logger.Warn("failed to pause job after retries", "error", err, "cause", cause)
		return
	}
	logger.Error("job paused after repeated chunk failures", "error", cause, "attempts", s.maxAttempts)
}

// Recover restarts the loop of every job persisted as running.
func (s *Scheduler) Recover(ctx context.Context) (int, error) {
	running, err := s.store.ListJobs(ctx, store.JobFilter{Status: store.StatusRunning})
	if err != nil {
		return 0, fmt.Errorf("failed to list running jobs: %w", err)
	}
	kicked := 0
	for _, job := range running {
		if job.IsCancelling {
			continue
		}
		s.logger.Info("resuming job", "job_id", job.ID, "offset", job.CurrentOffset, "processed", job.Processed)
		s.Kick(job.ID)
		kicked++
	}
	return kicked, nil
}

// Stop cancels every loop and waits for them to return. An in-flight chunk
// sees its context cancelled.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

// Wait blocks until every loop has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
