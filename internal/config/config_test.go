package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if len(cfg.LLMProviders) == 0 {
		t.Error("expected default LLM providers")
	}
	if cfg.LLMProviders["openrouter"].APIKey != "${OPENROUTER_API_KEY}" {
		t.Error("expected openrouter API key placeholder")
	}
	if cfg.Refine.ChunkSize != 50 || cfg.Refine.BatchSize != 10 || cfg.Refine.MaxSamples != 10 {
		t.Errorf("unexpected refine defaults: %+v", cfg.Refine)
	}
	if cfg.Scheduler.MaxAttempts != 3 || cfg.Scheduler.Mode != "local" {
		t.Errorf("unexpected scheduler defaults: %+v", cfg.Scheduler)
	}
	if cfg.Refine.TaxonomyTTL() != 5*time.Minute {
		t.Errorf("TaxonomyTTL() = %v, want 5m", cfg.Refine.TaxonomyTTL())
	}
}

func TestResolveEnvVars(t *testing.T) {
	t.Run("resolves environment variable", func(t *testing.T) {
		os.Setenv("TEST_API_KEY", "secret123")
		defer os.Unsetenv("TEST_API_KEY")

		result := ResolveEnvVars("${TEST_API_KEY}")
		if result != "secret123" {
			t.Errorf("expected secret123, got %s", result)
		}
	})

	t.Run("returns empty for missing env var", func(t *testing.T) {
		result := ResolveEnvVars("${DEFINITELY_NOT_SET_12345}")
		if result != "" {
			t.Errorf("expected empty string, got %s", result)
		}
	})

	t.Run("uses default when unset", func(t *testing.T) {
		if got := ResolveEnvVars("${DEFINITELY_NOT_SET_12345:-sqlite.db}"); got != "sqlite.db" {
			t.Errorf("expected sqlite.db, got %s", got)
		}
		t.Setenv("TEST_DSN", "postgres://db/semtag")
		if got := ResolveEnvVars("${TEST_DSN:-sqlite.db}"); got != "postgres://db/semtag" {
			t.Errorf("expected env value over default, got %s", got)
		}
	})

	t.Run("leaves literal values unchanged", func(t *testing.T) {
		result := ResolveEnvVars("literal-value")
		if result != "literal-value" {
			t.Errorf("expected literal-value, got %s", result)
		}
	})
}

func TestConfig_ToProviderRegistryConfig(t *testing.T) {
	os.Setenv("TEST_OPENROUTER_KEY", "or-key-123")
	defer os.Unsetenv("TEST_OPENROUTER_KEY")

	cfg := &Config{
		LLMProviders: map[string]LLMProviderCfg{
			"openrouter": {Type: "openrouter", APIKey: "${TEST_OPENROUTER_KEY}", TimeoutSeconds: 30, Enabled: true},
			"literal":    {Type: "openai", APIKey: "direct-key", BaseURL: "http://localhost:1234/v1"},
		},
		Defaults: DefaultsCfg{LLMProvider: "openrouter"},
	}
	reg := cfg.ToProviderRegistryConfig()

	t.Run("resolves env var reference", func(t *testing.T) {
		if got := reg.LLMProviders["openrouter"].APIKey; got != "or-key-123" {
			t.Errorf("expected or-key-123, got %s", got)
		}
		if got := reg.LLMProviders["openrouter"].Timeout; got != 30*time.Second {
			t.Errorf("expected 30s timeout, got %v", got)
		}
	})

	t.Run("returns literal value", func(t *testing.T) {
		lit := reg.LLMProviders["literal"]
		if lit.APIKey != "direct-key" || lit.BaseURL != "http://localhost:1234/v1" || lit.Enabled {
			t.Errorf("unexpected literal provider: %+v", lit)
		}
	})

	if reg.DefaultProvider != "openrouter" {
		t.Errorf("expected default provider openrouter, got %q", reg.DefaultProvider)
	}
}

func TestNewManager(t *testing.T) {
	t.Run("loads from config file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configFile := filepath.Join(tmpDir, "config.yaml")

		configContent := `
refine:
  chunk_size: 25
`
		if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
			t.Fatalf("failed to write config file: %v", err)
		}

		mgr, err := NewManager(configFile)
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}

		cfg := mgr.Get()
		if cfg.Refine.ChunkSize != 25 {
			t.Errorf("expected chunk size 25, got %d", cfg.Refine.ChunkSize)
		}
		if cfg.Refine.BatchSize != 10 {
			t.Errorf("expected unset batch size to default to 10, got %d", cfg.Refine.BatchSize)
		}
		if cfg.Scheduler.MaxAttempts != 3 {
			t.Errorf("expected default max attempts, got %d", cfg.Scheduler.MaxAttempts)
		}
	})

	t.Run("missing file falls back to defaults", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("HOME", t.TempDir())

		mgr, err := NewManager("")
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}
		if mgr.Get().Refine.ChunkSize != 50 {
			t.Errorf("expected default chunk size, got %d", mgr.Get().Refine.ChunkSize)
		}
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults are valid", func(c *Config) {}, ""},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, "database.driver"},
		{"postgres without dsn", func(c *Config) { c.Database.Driver = "postgres" }, "database.dsn"},
		{"pool sizes inverted", func(c *Config) { c.Database.MinConns = 20 }, "min_conns"},
		{"http mode without url", func(c *Config) { c.Scheduler.Mode = "http" }, "process_url"},
		{"http mode with url", func(c *Config) {
			c.Scheduler.Mode = "http"
			c.Scheduler.ProcessURL = "http://worker:8080"
		}, ""},
		{"unknown mode", func(c *Config) { c.Scheduler.Mode = "cron" }, "scheduler.mode"},
		{"samples above cap", func(c *Config) { c.Refine.SamplesPerChunk = 11 }, "samples_per_chunk"},
		{"negative delay", func(c *Config) { c.Refine.BatchDelayMs = -1 }, "negative"},
		{"unknown provider type", func(c *Config) {
			c.LLMProviders["local"] = LLMProviderCfg{Type: "ollama"}
		}, "llm_providers.local.type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestNewManager_RejectsInvalidFile(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	content := `
scheduler:
  mode: http
`
	if err := os.WriteFile(configFile, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewManager(configFile); err == nil || !strings.Contains(err.Error(), "process_url") {
		t.Errorf("NewManager() error = %v, want process_url complaint", err)
	}
}

func TestManager_OnChange_Multiple(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	configContent := `
defaults:
  model: "value"
`
	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	mgr, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	// Register multiple callbacks
	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})

	mgr.mu.RLock()
	if len(mgr.callbacks) != 3 {
		t.Errorf("expected 3 callbacks, got %d", len(mgr.callbacks))
	}
	mgr.mu.RUnlock()
}

func TestManager_Get_ThreadSafe(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	configContent := `
defaults:
  model: "value"
`
	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	mgr, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	// Call Get concurrently to verify no race conditions
	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				cfg := mgr.Get()
				_ = cfg.Defaults.Model
			}
			done <- struct{}{}
		}()
	}

	// Wait for all goroutines
	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestManager_WatchConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	configContent := `
defaults:
  model: "initial_value"
`
	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	mgr, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	// Verify initial value
	cfg := mgr.Get()
	if cfg.Defaults.Model != "initial_value" {
		t.Errorf("initial value mismatch: expected initial_value, got %s", cfg.Defaults.Model)
	}

	// Track callback invocations
	var callbackCount atomic.Int32
	var lastValue atomic.Value

	mgr.OnChange(func(cfg *Config) {
		callbackCount.Add(1)
		lastValue.Store(cfg.Defaults.Model)
	})

	// Start watching
	mgr.WatchConfig()

	// Give fsnotify time to set up the watcher
	time.Sleep(100 * time.Millisecond)

	// Update the config file
	newContent := `
defaults:
  model: "updated_value"
`
	if err := os.WriteFile(configFile, []byte(newContent), 0644); err != nil {
		t.Fatalf("failed to write updated config file: %v", err)
	}

	// Wait for the watcher to detect the change (fsnotify is async)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if callbackCount.Load() > 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	if callbackCount.Load() == 0 {
		t.Error("callback was not invoked after config file change")
	}

	// Verify the config was updated
	newCfg := mgr.Get()
	if newCfg.Defaults.Model != "updated_value" {
		t.Errorf("config not updated: expected updated_value, got %s", newCfg.Defaults.Model)
	}

	// Verify callback received the updated value
	if v := lastValue.Load(); v != "updated_value" {
		t.Errorf("callback received wrong value: expected updated_value, got %v", v)
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}

	mgr, err := NewManager(path)
	if err != nil {
		t.Fatalf("failed to load written config: %v", err)
	}
	cfg := mgr.Get()
	if cfg.Refine.ChunkSize != 50 || cfg.Defaults.LLMProvider != "openrouter" {
		t.Errorf("round-tripped config lost defaults: %+v", cfg)
	}
	if _, ok := cfg.GetLLMProvider("openrouter"); !ok {
		t.Error("expected openrouter provider in written config")
	}
}
