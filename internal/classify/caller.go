// Package classify sends entry batches to the classification oracle and
// parses its proposals.
package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackzampolin/semtag/internal/llmcall"
	"github.com/jackzampolin/semtag/internal/prompts"
	"github.com/jackzampolin/semtag/internal/prompts/refine"
	"github.com/jackzampolin/semtag/internal/providers"
)

// Defaults for Config.
const (
	DefaultBatchSize   = 10
	DefaultBatchDelay  = 500 * time.Millisecond
	DefaultCallTimeout = 60 * time.Second
	DefaultTemperature = 0.2
)

// ClientResolver maps a job's model string to a client.
type ClientResolver interface {
	Resolve(model string) (providers.LLMClient, string, error)
}

// Config configures a Caller.
type Config struct {
	Clients  ClientResolver
	Prompts  *prompts.Resolver
	Recorder *llmcall.Recorder

	BatchSize   int
	BatchDelay  time.Duration
	CallTimeout time.Duration
	Temperature float64

	Logger *slog.Logger
}

// Request describes the work shared by every batch of one chunk.
type Request struct {
	JobID  string
	Model  string
	Domain string
	// Taxonomy is the rendered label hierarchy shown to the model.
	Taxonomy string
}

// Batch is one oracle call's worth of items and its outcome.
type Batch struct {
	// Offset is the index of Items[0] in the slice passed to Run.
	Offset int
	Items  []refine.Item
	Reply  Reply
}

// Caller runs classification batches.
type Caller struct {
	clients  ClientResolver
	prompts  *prompts.Resolver
	recorder *llmcall.Recorder

	batchSize   int
	batchDelay  time.Duration
	callTimeout time.Duration
	temperature float64

	logger *slog.Logger
}

// NewCaller creates a caller. Prompts defaults to a resolver holding the
// embedded refinement prompts.
func NewCaller(cfg Config) *Caller {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchDelay < 0 {
		cfg.BatchDelay = 0
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Prompts == nil {
		cfg.Prompts = prompts.NewResolver(cfg.Logger)
		refine.RegisterPrompts(cfg.Prompts)
	}
	return &Caller{
		clients:     cfg.Clients,
		prompts:     cfg.Prompts,
		recorder:    cfg.Recorder,
		batchSize:   cfg.BatchSize,
		batchDelay:  cfg.BatchDelay,
		callTimeout: cfg.CallTimeout,
		temperature: cfg.Temperature,
		logger:      cfg.Logger,
	}
}

// BatchSize returns the configured batch size.
func (c *Caller) BatchSize() int {
	return c.batchSize
}

// Run classifies items in batches, sleeping BatchDelay between batches, and
// hands each outcome to handle. Unusable replies and timeouts reach handle
// as an unparseable Reply. A transport failure stops the run and is
// returned; batches already handled stay handled.
func (c *Caller) Run(ctx context.Context, req Request, items []refine.Item, handle func(Batch)) error {
	if len(items) == 0 {
		return nil
	}
	client, model, err := c.clients.Resolve(req.Model)
	if err != nil {
		return err
	}
	logger := c.logger.With("job_id", req.JobID, "provider", client.Name(), "model", model)

	for start := 0; start < len(items); start += c.batchSize {
		if start > 0 && c.batchDelay > 0 {
			if err := sleep(ctx, c.batchDelay); err != nil {
				return err
			}
		}
		end := min(start+c.batchSize, len(items))
		batch := Batch{Offset: start, Items: items[start:end]}

		reply, err := c.call(ctx, logger, client, model, req, batch.Items)
		if err != nil {
			return err
		}
		batch.Reply = reply
		if !reply.OK() {
			logger.Warn("batch reply unusable", "offset", start, "size", len(batch.Items), "error", reply.Unparseable)
		}
		handle(batch)
	}
	return nil
}

func (c *Caller) call(ctx context.Context, logger *slog.Logger, client providers.LLMClient, model string, req Request, items []refine.Item) (Reply, error) {
	built, err := refine.Build(c.prompts, refine.Data{Domain: req.Domain, Taxonomy: req.Taxonomy, Items: items})
	if err != nil {
		return Reply{}, fmt.Errorf("failed to build prompt: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	result, err := client.Chat(callCtx, &providers.ChatRequest{
		Messages: []providers.Message{
			{Role: "system", Content: built.System},
			{Role: "user", Content: built.User},
		},
		Model:       model,
		Temperature: c.temperature,
	})
	opts := llmcall.RecordOptions{JobID: req.JobID, PromptHash: built.Hash, BatchSize: len(items)}

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			timeout := fmt.Errorf("%w after %s", ErrCallTimeout, c.callTimeout)
			opts.Err = timeout
			c.recorder.Record(result, opts)
			return Reply{Unparseable: timeout}, nil
		}
		opts.Err = err
		c.recorder.Record(result, opts)
		return Reply{}, fmt.Errorf("classification call failed: %w", err)
	}

	reply := ParseReply(result.Content)
	opts.Err = reply.Unparseable
	c.recorder.Record(result, opts)
	logger.Debug("batch classified",
		"size", len(items),
		"proposals", len(reply.Proposals),
		"latency_ms", result.ExecutionTime.Milliseconds())
	return reply, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
