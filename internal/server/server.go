package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jackzampolin/semtag/internal/api"
	"github.com/jackzampolin/semtag/internal/classify"
	"github.com/jackzampolin/semtag/internal/config"
	"github.com/jackzampolin/semtag/internal/export"
	"github.com/jackzampolin/semtag/internal/home"
	"github.com/jackzampolin/semtag/internal/jobs"
	"github.com/jackzampolin/semtag/internal/llmcall"
	"github.com/jackzampolin/semtag/internal/prompts"
	"github.com/jackzampolin/semtag/internal/prompts/refine"
	"github.com/jackzampolin/semtag/internal/providers"
	"github.com/jackzampolin/semtag/internal/server/endpoints"
	"github.com/jackzampolin/semtag/internal/store"
	"github.com/jackzampolin/semtag/internal/store/memstore"
	"github.com/jackzampolin/semtag/internal/store/sqlstore"
	"github.com/jackzampolin/semtag/internal/svcctx"
	"github.com/jackzampolin/semtag/internal/taxonomy"
)

// Server is the semtag HTTP server. It owns the store, the refinement
// pipeline and the scheduler loops, and stops them on shutdown.
type Server struct {
	httpServer *http.Server
	store      store.Store
	recorder   *llmcall.Recorder
	scheduler  *jobs.Scheduler
	processor  *jobs.Processor
	registry   *providers.Registry
	configMgr  *config.Manager
	settings   *config.Config
	home       *home.Dir
	logger     *slog.Logger

	// storeOverride is used instead of opening the configured database.
	storeOverride store.Store

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	listenAddr string

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8080)
	Port string
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Settings is used when there is no ConfigManager (default: config.DefaultConfig())
	Settings *config.Config
	// Home is the semtag home directory (default: ~/.semtag)
	Home *home.Dir
	// Store replaces the configured database when set.
	Store store.Store
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Home == nil {
		h, err := home.New("")
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		cfg.Home = h
	}
	if cfg.Settings == nil {
		cfg.Settings = config.DefaultConfig()
	}

	// Create provider registry
	registry := providers.NewRegistry()
	registry.SetLogger(cfg.Logger)

	s := &Server{
		registry:      registry,
		configMgr:     cfg.ConfigManager,
		settings:      cfg.Settings,
		home:          cfg.Home,
		logger:        cfg.Logger,
		storeOverride: cfg.Store,
	}

	// If config manager provided, set up providers and hot reload
	registry.Reload(s.config().ToProviderRegistryConfig())
	if cfg.ConfigManager != nil {
		cfg.ConfigManager.OnChange(func(c *config.Config) {
			registry.Reload(c.ToProviderRegistryConfig())
			s.mu.RLock()
			sched := s.scheduler
			s.mu.RUnlock()
			if sched != nil {
				sched.SetInvoker(s.newInvoker(c))
			}
			cfg.Logger.Info("provider registry reloaded from config")
		})
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	if err := s.endpointRegistry.Register(endpoints.All()...); err != nil {
		return nil, err
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.withServices(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// config returns the live configuration.
func (s *Server) config() *config.Config {
	if s.configMgr != nil {
		return s.configMgr.Get()
	}
	return s.settings
}

// Start opens the store, builds the refinement pipeline, resumes jobs left
// running by a previous process, and serves HTTP. It blocks until the
// context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	cfg := s.config()

	st, err := s.openStore(ctx, cfg.Database)
	if err != nil {
		s.setNotRunning()
		return err
	}
	s.store = st

	s.recorder = llmcall.NewRecorder(llmcall.RecorderConfig{
		Store:  st,
		Logger: s.logger,
	})
	s.recorder.Start(context.WithoutCancel(ctx))

	cache := taxonomy.NewCache(taxonomy.CacheConfig{
		Loader: st,
		TTL:    cfg.Refine.TaxonomyTTL(),
		Logger: s.logger,
	})

	resolver := prompts.NewResolver(s.logger)
	refine.RegisterPrompts(resolver)
	if n, err := resolver.LoadOverrides(s.home.PromptsDir()); err != nil {
		s.logger.Warn("failed to load prompt overrides", "dir", s.home.PromptsDir(), "error", err)
	} else if n > 0 {
		s.logger.Info("prompt overrides loaded", "count", n)
	}

	caller := classify.NewCaller(classify.Config{
		Clients:     s.registry,
		Prompts:     resolver,
		Recorder:    s.recorder,
		BatchSize:   cfg.Refine.BatchSize,
		BatchDelay:  cfg.Refine.BatchDelay(),
		CallTimeout: cfg.Refine.CallTimeout(),
		Logger:      s.logger,
	})

	processor := jobs.NewProcessor(jobs.ProcessorConfig{
		Store:           st,
		Taxonomy:        cache,
		Classifier:      caller,
		ChunkSize:       cfg.Refine.ChunkSize,
		ContextWindow:   cfg.Refine.ContextWindow,
		SamplesPerChunk: cfg.Refine.SamplesPerChunk,
		MaxSamples:      cfg.Refine.MaxSamples,
		Logger:          s.logger,
	})

	s.processor = processor

	scheduler := jobs.NewScheduler(jobs.SchedulerConfig{
		Store:        st,
		Invoker:      s.newInvoker(cfg),
		InitialDelay: cfg.Scheduler.InitialDelay(),
		BaseDelay:    cfg.Scheduler.BaseDelay(),
		MaxAttempts:  cfg.Scheduler.MaxAttempts,
		Logger:       s.logger,
	})
	s.mu.Lock()
	s.scheduler = scheduler
	s.mu.Unlock()

	controller := jobs.NewController(jobs.ControllerConfig{
		Store:    st,
		Taxonomy: cache,
		Kicker:   s.scheduler,
		DefaultModel: func() string {
			return s.config().Defaults.Model
		},
		Logger: s.logger,
	})

	// Create services struct for context enrichment
	services := &svcctx.Services{
		Store:      st,
		Controller: controller,
		Processor:  processor,
		Scheduler:  s.scheduler,
		Taxonomy:   cache,
		Registry:   s.registry,
		Prompts:    resolver,
		Reporter:   export.NewReporter(st, s.logger),
		Config:     s.configMgr,
		Logger:     s.logger,
		Home:       s.home,
	}
	s.mu.Lock()
	s.services = services
	s.mu.Unlock()

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		_ = s.shutdown()
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	s.mu.Lock()
	s.listenAddr = ln.Addr().String()
	s.mu.Unlock()

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", ln.Addr().String(), "routes", len(s.endpointRegistry.Routes()))
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	if n, err := s.scheduler.Recover(ctx); err != nil {
		s.logger.Error("failed to recover running jobs", "error", err)
	} else if n > 0 {
		s.logger.Info("resumed running jobs", "count", n)
	}

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// openStore opens the configured database, or returns the override.
func (s *Server) openStore(ctx context.Context, db config.DatabaseCfg) (store.Store, error) {
	if s.storeOverride != nil {
		return s.storeOverride, nil
	}
	return OpenStore(ctx, db, s.home, s.logger)
}

// OpenStore opens the store named by the database config. A sqlite store with
// no DSN lives in the home directory.
func OpenStore(ctx context.Context, db config.DatabaseCfg, h *home.Dir, logger *slog.Logger) (store.Store, error) {
	switch db.Driver {
	case "memory":
		logger.Warn("using in-memory store, nothing will be persisted")
		return memstore.New(), nil
	case "", sqlstore.DriverSQLite:
		dsn := config.ResolveEnvVars(db.DSN)
		if dsn == "" {
			if err := h.EnsureExists(); err != nil {
				return nil, err
			}
			dsn = h.DatabasePath()
		}
		logger.Info("opening sqlite store", "path", dsn)
		st, err := sqlstore.Open(ctx, sqlstore.Config{Driver: sqlstore.DriverSQLite, DSN: dsn, Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return st, nil
	case sqlstore.DriverPostgres:
		logger.Info("connecting to postgres store")
		st, err := sqlstore.Open(ctx, sqlstore.Config{
			Driver:   sqlstore.DriverPostgres,
			DSN:      config.ResolveEnvVars(db.DSN),
			MaxConns: db.MaxConns,
			MinConns: db.MinConns,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", db.Driver)
	}
}

// newInvoker returns the chunk invoker the scheduler mode asks for.
func (s *Server) newInvoker(cfg *config.Config) jobs.Invoker {
	if cfg.Scheduler.Mode == "http" && cfg.Scheduler.ProcessURL != "" {
		return jobs.NewHTTPInvoker(cfg.Scheduler.ProcessURL, 0)
	}
	if cfg.Scheduler.Mode == "http" {
		s.logger.Warn("scheduler mode http without process_url, processing locally")
	}
	return &jobs.LocalInvoker{Processor: s.processor}
}

// shutdown stops accepting requests, then stops scheduler loops, flushes
// recorded calls and closes the store. Jobs left running are resumed by
// the next Start.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	// Shutdown HTTP server with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	if s.recorder != nil {
		s.recorder.Stop()
	}
	if s.store != nil && s.storeOverride == nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("store close error", "error", err)
		}
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's listen address. Once started it is the bound
// address, which resolves port 0.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listenAddr != "" {
		return s.listenAddr
	}
	return s.httpServer.Addr
}

// Registry returns the provider registry.
func (s *Server) Registry() *providers.Registry {
	return s.registry
}

// Routes returns the mounted "METHOD /path" patterns.
func (s *Server) Routes() []string {
	return s.endpointRegistry.Routes()
}

// Services returns the services built by Start, or nil before it.
func (s *Server) Services() *svcctx.Services {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.services
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if services := s.Services(); services != nil {
			ctx = svcctx.WithServices(ctx, services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable until the store and pipeline are ready.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Services() == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
