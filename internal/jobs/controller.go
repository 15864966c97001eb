package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/semtag/internal/store"
	"github.com/jackzampolin/semtag/internal/taxonomy"
)

// ControllerStore is the persistence a Controller needs.
type ControllerStore interface {
	store.JobStore
	CountCoarse(ctx context.Context, domain string) (int, error)
}

// Kicker starts chunk processing for a job. *Scheduler implements it.
type Kicker interface {
	Kick(jobID string)
}

// ControllerConfig configures a Controller.
type ControllerConfig struct {
	Store    ControllerStore
	Taxonomy *taxonomy.Cache
	Kicker   Kicker

	// DefaultModel names the model used when a create request has none.
	// It is read on every create so config reloads apply.
	DefaultModel func() string

	// Now defaults to time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

// Controller creates jobs and applies pause, resume and cancel requests.
type Controller struct {
	store        ControllerStore
	taxonomy     *taxonomy.Cache
	kicker       Kicker
	defaultModel func() string
	now          func() time.Time
	logger       *slog.Logger
}

// NewController creates a controller.
func NewController(cfg ControllerConfig) *Controller {
	if cfg.DefaultModel == nil {
		cfg.DefaultModel = func() string { return "" }
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Controller{
		store:        cfg.Store,
		taxonomy:     cfg.Taxonomy,
		kicker:       cfg.Kicker,
		defaultModel: cfg.DefaultModel,
		now:          cfg.Now,
		logger:       cfg.Logger,
	}
}

// CreateParams are the options of a new job.
type CreateParams struct {
	DomainFilter string             `json:"domain_filter,omitempty"`
	Model        string             `json:"model"`
	PriorityMode store.PriorityMode `json:"priority_mode"`
}

// Create cancels any active job, inserts a running job over the coarse
// entries inside the domain filter, and starts processing it.
func (c *Controller) Create(ctx context.Context, params CreateParams) (*store.Job, error) {
	mode := store.PriorityMode(strings.ToLower(strings.TrimSpace(string(params.PriorityMode))))
	if mode == "" {
		mode = store.PriorityImpact
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: unknown priority mode %q", ErrInvalidParams, params.PriorityMode)
	}

	model := strings.TrimSpace(params.Model)
	if model == "" {
		model = c.defaultModel()
	}
	if model == "" {
		return nil, fmt.Errorf("%w: model is required", ErrInvalidParams)
	}

	domain := taxonomy.Normalize(params.DomainFilter)
	if domain != "" {
		set, err := c.taxonomy.LoadActive(ctx)
		if err != nil {
			return nil, err
		}
		if !set.IsValid(domain) {
			return nil, fmt.Errorf("%w: domain filter %q is not an active taxonomy code", ErrInvalidParams, domain)
		}
	}

	total, err := c.store.CountCoarse(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("failed to count entries: %w", err)
	}

	now := c.now().UTC()
	job := &store.Job{
		ID:                uuid.NewString(),
		Status:            store.StatusRunning,
		DomainFilter:      domain,
		Model:             model,
		PriorityMode:      mode,
		TotalWords:        total,
		SampleRefinements: []store.Sample{},
		CreatedAt:         now,
		StartedAt:         &now,
		LastChunkAt:       &now,
	}

	cancelled, err := c.store.ReplaceActiveJob(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	for _, id := range cancelled {
		c.logger.Info("job cancelled by new job", "job_id", id, "replaced_by", job.ID)
	}

	c.logger.Info("job created",
		"job_id", job.ID,
		"model", model,
		"priority_mode", mode,
		"domain_filter", domain,
		"total_words", total)

	c.kicker.Kick(job.ID)
	return job, nil
}

// Get returns a job by id.
func (c *Controller) Get(ctx context.Context, id string) (*store.Job, error) {
	return c.store.GetJob(ctx, id)
}

// List returns jobs newest first.
func (c *Controller) List(ctx context.Context, filter store.JobFilter) ([]*store.Job, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	return c.store.ListJobs(ctx, filter)
}

// Pause stops a job after its in-flight chunk. Pausing a paused job is a no-op.
func (c *Controller) Pause(ctx context.Context, id string) (*store.Job, error) {
	return c.transition(ctx, id, store.StatusUpdate{To: store.StatusPaused})
}

// Cancel stops a job for good after its in-flight chunk. Cancelling a
// cancelled job is a no-op.
func (c *Controller) Cancel(ctx context.Context, id string) (*store.Job, error) {
	return c.transition(ctx, id, store.StatusUpdate{
		To:         store.StatusCancelled,
		Cancelling: true,
		Complete:   true,
	})
}

// Resume restarts a paused job from its stored offset. Resuming a running
// job only makes sure its scheduler loop is alive.
func (c *Controller) Resume(ctx context.Context, id string) (*store.Job, error) {
	cleared := ""
	job, err := c.transition(ctx, id, store.StatusUpdate{
		To:        store.StatusRunning,
		Touch:     true,
		LastError: &cleared,
	})
	if err != nil {
		return nil, err
	}
	c.kicker.Kick(job.ID)
	return job, nil
}

func (c *Controller) transition(ctx context.Context, id string, upd store.StatusUpdate) (*store.Job, error) {
	job, err := c.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status == upd.To {
		return job, nil
	}
	if !CanTransition(job.Status, upd.To) {
		return nil, fmt.Errorf("%w: job %s is %s, cannot become %s", ErrInvalidTransition, id, job.Status, upd.To)
	}

	upd.From = []store.JobStatus{job.Status}
	upd.At = c.now().UTC()
	updated, err := c.store.UpdateStatus(ctx, id, upd)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("%w: job %s changed status concurrently", ErrInvalidTransition, id)
		}
		return nil, fmt.Errorf("failed to update job status: %w", err)
	}

	c.logger.Info("job status changed", "job_id", id, "from", job.Status, "to", updated.Status)
	return updated, nil
}
