package jobs

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackzampolin/semtag/internal/providers"
	"github.com/jackzampolin/semtag/internal/store"
	"github.com/jackzampolin/semtag/internal/testutil"
)

// countingInvoker wraps an invoker and can fail the first N calls.
type countingInvoker struct {
	inner    Invoker
	failures int32
	failWith error
	calls    atomic.Int32
}

func (c *countingInvoker) Invoke(ctx context.Context, jobID string) (*ChunkResult, error) {
	n := c.calls.Add(1)
	if n <= c.failures {
		return nil, c.failWith
	}
	return c.inner.Invoke(ctx, jobID)
}

type pipeline struct {
	*harness
	sched   *Scheduler
	invoker *countingInvoker
	ctrl    *Controller
}

func newPipeline(t *testing.T, chunkSize int) *pipeline {
	t.Helper()
	h := newHarness(t, chunkSize)
	inv := &countingInvoker{inner: &LocalInvoker{Processor: h.proc}}
	sched := NewScheduler(SchedulerConfig{
		Store:        h.store,
		Invoker:      inv,
		InitialDelay: 0,
		BaseDelay:    time.Millisecond,
		MaxAttempts:  3,
		Logger:       quietLogger(),
	})
	t.Cleanup(sched.Stop)
	ctrl := NewController(ControllerConfig{
		Store:        h.store,
		Taxonomy:     h.cache,
		Kicker:       sched,
		DefaultModel: func() string { return "mock/test" },
		Logger:       quietLogger(),
	})
	return &pipeline{harness: h, sched: sched, invoker: inv, ctrl: ctrl}
}

func (p *pipeline) waitStatus(t *testing.T, id string, want store.JobStatus) *store.Job {
	t.Helper()
	testutil.Eventually(t, 5*time.Second, func() bool {
		return p.job(t, id).Status == want
	}, "job "+id+" never became "+string(want))
	p.sched.Wait()
	return p.job(t, id)
}

func TestScheduler_RunsJobToCompletion(t *testing.T) {
	p := newPipeline(t, 50)
	p.seedEntries(t, 120, "A")

	job, err := p.ctrl.Create(context.Background(), CreateParams{})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	done := p.waitStatus(t, job.ID, store.StatusCompleted)

	if done.Processed != 120 || done.Refined != 120 || done.N2Refined != 120 {
		t.Errorf("job = processed %d refined %d n2 %d, want 120 each", done.Processed, done.Refined, done.N2Refined)
	}
	if done.CurrentOffset != 150 {
		t.Errorf("offset = %d, want 150 after three chunks", done.CurrentOffset)
	}
	if got := p.invoker.calls.Load(); got != 3 {
		t.Errorf("chunk invocations = %d, want 3", got)
	}
	if got := p.mock.RequestCount(); got != 12 {
		t.Errorf("oracle calls = %d, want 12", got)
	}
	if done.CompletedAt == nil || done.LastError != "" {
		t.Errorf("completed job = %+v", done)
	}
	if len(p.sched.Active()) != 0 {
		t.Errorf("active loops = %v, want none", p.sched.Active())
	}
}

func TestScheduler_PausesAfterRepeatedFailures(t *testing.T) {
	p := newPipeline(t, 50)
	p.seedEntries(t, 10, "A")
	p.store.FailFetch = errors.New("statement timeout")

	job, err := p.ctrl.Create(context.Background(), CreateParams{})
	if err != nil {
		t.Fatal(err)
	}
	paused := p.waitStatus(t, job.ID, store.StatusPaused)

	if got := p.invoker.calls.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
	if !strings.Contains(paused.LastError, "statement timeout") {
		t.Errorf("last_error = %q, want the fetch failure", paused.LastError)
	}
	if paused.CurrentOffset != 0 || paused.Processed != 0 {
		t.Errorf("failed chunk moved progress: offset %d processed %d", paused.CurrentOffset, paused.Processed)
	}

	// Resuming after the fault clears picks up from the stored offset.
	p.store.FailFetch = nil
	resumed, err := p.ctrl.Resume(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if resumed.LastError != "" {
		t.Errorf("resume kept last_error %q", resumed.LastError)
	}
	done := p.waitStatus(t, job.ID, store.StatusCompleted)
	if done.Processed != 10 {
		t.Errorf("processed = %d, want 10", done.Processed)
	}
}

func TestScheduler_RetriesTransientFailures(t *testing.T) {
	p := newPipeline(t, 50)
	p.seedEntries(t, 10, "A")
	p.invoker.failures = 2
	p.invoker.failWith = errors.New("bad gateway")

	job, err := p.ctrl.Create(context.Background(), CreateParams{})
	if err != nil {
		t.Fatal(err)
	}
	done := p.waitStatus(t, job.ID, store.StatusCompleted)
	if got := p.invoker.calls.Load(); got != 3 {
		t.Errorf("invocations = %d, want 2 failures and 1 success", got)
	}
	if done.Processed != 10 || done.LastError != "" {
		t.Errorf("job = %+v", done)
	}
}

func TestScheduler_StaleChunkMovesOn(t *testing.T) {
	p := newPipeline(t, 50)
	p.seedEntries(t, 10, "A")
	p.invoker.failures = 1
	p.invoker.failWith = ErrStaleChunk

	job, err := p.ctrl.Create(context.Background(), CreateParams{})
	if err != nil {
		t.Fatal(err)
	}
	p.waitStatus(t, job.ID, store.StatusCompleted)
	if got := p.invoker.calls.Load(); got != 2 {
		t.Errorf("invocations = %d, want 2", got)
	}
}

func TestScheduler_PauseMidChunk(t *testing.T) {
	p := newPipeline(t, 50)
	p.seedEntries(t, 120, "A")
	ctx := context.Background()

	var once sync.Once
	refineAll := proposeAll(nil, "A.1")
	p.mock.Responder = func(req *providers.ChatRequest) (string, error) {
		once.Do(func() {
			if _, err := p.ctrl.Pause(ctx, "job-1"); err != nil {
				t.Errorf("Pause() error = %v", err)
			}
		})
		return refineAll(req)
	}
	job := testutil.Job("job-1", 120)
	p.insertJob(t, job)
	p.sched.Kick(job.ID)

	paused := p.waitStatus(t, job.ID, store.StatusPaused)
	if paused.Processed != 50 || paused.CurrentOffset != 50 {
		t.Errorf("paused job = processed %d offset %d, want the in-flight chunk saved", paused.Processed, paused.CurrentOffset)
	}
	if got := p.mock.RequestCount(); got != 5 {
		t.Errorf("oracle calls = %d, want only the in-flight chunk", got)
	}
	if paused.CompletedAt != nil {
		t.Error("paused job has completed_at")
	}

	p.mock.Responder = refineAll
	if _, err := p.ctrl.Resume(ctx, job.ID); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	done := p.waitStatus(t, job.ID, store.StatusCompleted)
	if done.Processed != 120 || done.Refined != 120 {
		t.Errorf("resumed job = processed %d refined %d, want 120", done.Processed, done.Refined)
	}
}

func TestScheduler_CancelStopsLoop(t *testing.T) {
	p := newPipeline(t, 10)
	p.seedEntries(t, 40, "A")
	ctx := context.Background()

	var once sync.Once
	refineAll := proposeAll(nil, "A.1")
	p.mock.Responder = func(req *providers.ChatRequest) (string, error) {
		once.Do(func() {
			if _, err := p.ctrl.Cancel(ctx, "job-1"); err != nil {
				t.Errorf("Cancel() error = %v", err)
			}
		})
		return refineAll(req)
	}
	p.insertJob(t, testutil.Job("job-1", 40))
	p.sched.Kick("job-1")

	cancelled := p.waitStatus(t, "job-1", store.StatusCancelled)
	if cancelled.Processed != 10 {
		t.Errorf("processed = %d, want the in-flight chunk only", cancelled.Processed)
	}
	if got := p.invoker.calls.Load(); got != 2 {
		t.Errorf("invocations = %d, want the in-flight chunk and one skipped", got)
	}
}

func TestScheduler_Recover(t *testing.T) {
	p := newPipeline(t, 50)
	p.seedEntries(t, 10, "A")
	ctx := context.Background()

	// Jobs left behind by a previous process.
	finished := testutil.Job("finished", 0)
	finished.Status = store.StatusCompleted
	p.insertJob(t, finished)
	p.insertJob(t, testutil.Job("running", 10))

	kicked, err := p.sched.Recover(ctx)
	if err != nil {
		t.Fatalf("Recover() error = %v", err)
	}
	if kicked != 1 {
		t.Errorf("Recover() kicked %d, want 1", kicked)
	}
	done := p.waitStatus(t, "running", store.StatusCompleted)
	if done.Processed != 10 {
		t.Errorf("recovered job processed = %d", done.Processed)
	}
}

func TestScheduler_StopLeavesJobRunning(t *testing.T) {
	p := newPipeline(t, 50)
	p.seedEntries(t, 10, "A")
	p.mock.Latency = time.Minute
	p.insertJob(t, testutil.Job("job-1", 10))
	p.sched.Kick("job-1")

	testutil.Eventually(t, 5*time.Second, func() bool {
		return p.mock.RequestCount() > 0
	}, "oracle never called")
	p.sched.Stop()

	job := p.job(t, "job-1")
	if job.Status != store.StatusRunning || job.LastError != "" {
		t.Errorf("job after shutdown = %s %q, want running for recovery", job.Status, job.LastError)
	}

	// A stopped scheduler ignores kicks.
	p.sched.Kick("job-1")
	if len(p.sched.Active()) != 0 {
		t.Errorf("active loops after Stop = %v", p.sched.Active())
	}
}

func TestScheduler_UnknownJobEndsLoop(t *testing.T) {
	p := newPipeline(t, 50)
	p.sched.Kick("ghost")
	testutil.Eventually(t, 5*time.Second, func() bool {
		return len(p.sched.Active()) == 0
	}, "loop for unknown job never exited")
	if got := p.invoker.calls.Load(); got != 1 {
		t.Errorf("invocations = %d, want 1 with no retries", got)
	}
}

func TestScheduler_Backoff(t *testing.T) {
	s := NewScheduler(SchedulerConfig{BaseDelay: time.Second})
	defer s.Stop()
	for n, want := range map[uint]time.Duration{1: time.Second, 2: 2 * time.Second, 3: 4 * time.Second} {
		if got := s.backoff(n); got != want {
			t.Errorf("backoff(%d) = %v, want %v", n, got, want)
		}
	}
}
