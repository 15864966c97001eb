package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds semtag configuration.
// Stored at: ~/.semtag/config.yaml
type Config struct {
	Database     DatabaseCfg               `mapstructure:"database" yaml:"database"`
	LLMProviders map[string]LLMProviderCfg `mapstructure:"llm_providers" yaml:"llm_providers"`
	Defaults     DefaultsCfg               `mapstructure:"defaults" yaml:"defaults"`
	Refine       RefineCfg                 `mapstructure:"refine" yaml:"refine"`
	Scheduler    SchedulerCfg              `mapstructure:"scheduler" yaml:"scheduler"`
}

// DatabaseCfg selects and tunes the job/entry store.
type DatabaseCfg struct {
	Driver   string `mapstructure:"driver" yaml:"driver"` // "sqlite", "postgres", "memory"
	DSN      string `mapstructure:"dsn" yaml:"dsn"`       // File path or connection URL (supports ${ENV_VAR})
	MaxConns int32  `mapstructure:"max_conns" yaml:"max_conns"`
	MinConns int32  `mapstructure:"min_conns" yaml:"min_conns"`
}

// LLMProviderCfg configures an LLM provider.
type LLMProviderCfg struct {
	// Type is "openrouter", "openai" or "mock".
	Type string `mapstructure:"type" yaml:"type"`
	// BaseURL overrides the type's default endpoint.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	Model   string `mapstructure:"model" yaml:"model"`
	// APIKey supports ${ENV_VAR} syntax.
	APIKey string `mapstructure:"api_key" yaml:"api_key"`
	// RateLimit is in requests per minute.
	RateLimit      int  `mapstructure:"rate_limit" yaml:"rate_limit"`
	TimeoutSeconds int  `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	Enabled        bool `mapstructure:"enabled" yaml:"enabled"`
}

// DefaultsCfg specifies default provider selections.
type DefaultsCfg struct {
	LLMProvider string `mapstructure:"llm_provider" yaml:"llm_provider"` // Provider for bare model names
	Model       string `mapstructure:"model" yaml:"model"`               // Model used when a job names none
}

// RefineCfg tunes chunk processing.
type RefineCfg struct {
	ChunkSize          int `mapstructure:"chunk_size" yaml:"chunk_size"`
	BatchSize          int `mapstructure:"batch_size" yaml:"batch_size"`
	BatchDelayMs       int `mapstructure:"batch_delay_ms" yaml:"batch_delay_ms"`
	ContextWindow      int `mapstructure:"context_window" yaml:"context_window"`
	TaxonomyTTLSeconds int `mapstructure:"taxonomy_ttl_seconds" yaml:"taxonomy_ttl_seconds"`
	CallTimeoutSeconds int `mapstructure:"call_timeout_seconds" yaml:"call_timeout_seconds"`
	SamplesPerChunk    int `mapstructure:"samples_per_chunk" yaml:"samples_per_chunk"`
	MaxSamples         int `mapstructure:"max_samples" yaml:"max_samples"`
}

// SchedulerCfg controls how the next chunk is invoked.
type SchedulerCfg struct {
	Mode           string `mapstructure:"mode" yaml:"mode"`               // "local" or "http"
	ProcessURL     string `mapstructure:"process_url" yaml:"process_url"` // Base URL of the processing host (http mode)
	InitialDelayMs int    `mapstructure:"initial_delay_ms" yaml:"initial_delay_ms"`
	BaseDelayMs    int    `mapstructure:"base_delay_ms" yaml:"base_delay_ms"`
	MaxAttempts    int    `mapstructure:"max_attempts" yaml:"max_attempts"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseCfg{
			Driver:   "sqlite",
			MaxConns: 10,
			MinConns: 1,
		},
		LLMProviders: map[string]LLMProviderCfg{
			"openrouter": {
				Type:           "openrouter",
				Model:          "anthropic/claude-sonnet-4",
				APIKey:         "${OPENROUTER_API_KEY}",
				RateLimit:      120,
				TimeoutSeconds: 120,
				Enabled:        true,
			},
			"openai": {
				Type:           "openai",
				Model:          "gpt-4o-mini",
				APIKey:         "${OPENAI_API_KEY}",
				RateLimit:      60,
				TimeoutSeconds: 120,
				Enabled:        true,
			},
		},
		Defaults: DefaultsCfg{
			LLMProvider: "openrouter",
			Model:       "google/gemini-2.5-flash",
		},
		Refine: RefineCfg{
			ChunkSize:          50,
			BatchSize:          10,
			BatchDelayMs:       500,
			ContextWindow:      100,
			TaxonomyTTLSeconds: 300,
			CallTimeoutSeconds: 60,
			SamplesPerChunk:    3,
			MaxSamples:         10,
		},
		Scheduler: SchedulerCfg{
			Mode:           "local",
			InitialDelayMs: 100,
			BaseDelayMs:    1000,
			MaxAttempts:    3,
		},
	}
}

// GetLLMProvider returns an LLM provider config by name.
func (c *Config) GetLLMProvider(name string) (LLMProviderCfg, bool) {
	cfg, ok := c.LLMProviders[name]
	return cfg, ok
}

// EnabledLLMProviders returns all enabled LLM providers.
func (c *Config) EnabledLLMProviders() map[string]LLMProviderCfg {
	result := make(map[string]LLMProviderCfg)
	for name, cfg := range c.LLMProviders {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}

// BatchDelay returns the pause between oracle batches.
func (r RefineCfg) BatchDelay() time.Duration {
	return time.Duration(r.BatchDelayMs) * time.Millisecond
}

// TaxonomyTTL returns how long the taxonomy cache is trusted.
func (r RefineCfg) TaxonomyTTL() time.Duration {
	return time.Duration(r.TaxonomyTTLSeconds) * time.Second
}

// CallTimeout returns the deadline for one oracle call.
func (r RefineCfg) CallTimeout() time.Duration {
	return time.Duration(r.CallTimeoutSeconds) * time.Second
}

// InitialDelay returns the wait before the first invocation of a chunk.
func (s SchedulerCfg) InitialDelay() time.Duration {
	return time.Duration(s.InitialDelayMs) * time.Millisecond
}

// BaseDelay returns the backoff base for retried invocations.
func (s SchedulerCfg) BaseDelay() time.Duration {
	return time.Duration(s.BaseDelayMs) * time.Millisecond
}

// Validate reports every setting the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case "sqlite", "postgres", "memory":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q: want sqlite, postgres or memory", c.Database.Driver))
	}
	if c.Database.Driver == "postgres" && c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required for postgres"))
	}
	if c.Database.MinConns > c.Database.MaxConns && c.Database.MaxConns > 0 {
		errs = append(errs, fmt.Errorf("database.min_conns %d exceeds max_conns %d", c.Database.MinConns, c.Database.MaxConns))
	}
	switch c.Scheduler.Mode {
	case "local":
	case "http":
		if c.Scheduler.ProcessURL == "" {
			errs = append(errs, errors.New("scheduler.process_url is required in http mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("scheduler.mode %q: want local or http", c.Scheduler.Mode))
	}
	if c.Refine.SamplesPerChunk > c.Refine.MaxSamples {
		errs = append(errs, fmt.Errorf("refine.samples_per_chunk %d exceeds max_samples %d", c.Refine.SamplesPerChunk, c.Refine.MaxSamples))
	}
	if c.Refine.BatchDelayMs < 0 || c.Scheduler.InitialDelayMs < 0 {
		errs = append(errs, errors.New("delays must not be negative"))
	}
	for name, p := range c.LLMProviders {
		switch p.Type {
		case "openrouter", "openai", "mock":
		default:
			errs = append(errs, fmt.Errorf("llm_providers.%s.type %q: want openrouter, openai or mock", name, p.Type))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
