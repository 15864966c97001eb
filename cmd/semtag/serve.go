package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/semtag/internal/config"
	"github.com/jackzampolin/semtag/internal/home"
	"github.com/jackzampolin/semtag/internal/server"
)

var (
	serveHost      string
	servePort      string
	serveLogLevel  string
	serveLogFormat string
	serveDatabase  string
	serveDSN       string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Semtag server",
	Long: `Start the Semtag HTTP server.

This opens the configured store, recovers running refinement jobs and
serves the job API. Jobs keep their status across restarts; running jobs
are picked up again on the next start.

The server provides:
  - /health        - Basic server health check
  - /ready         - Readiness check (includes store status)
  - /api/jobs      - Refinement job control
  - /swagger.json  - OpenAPI document

Examples:
  semtag serve                          # Start on default port 8080
  semtag serve --port 3000              # Start on custom port
  semtag serve --host 0.0.0.0           # Bind to all interfaces
  semtag serve --database postgres --dsn '${DATABASE_URL}'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		logger, err := newLogger(serveLogLevel, serveLogFormat)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)

		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		path := cfgFile
		if path == "" && h.ConfigExists() {
			path = h.ConfigPath()
		}
		cfgMgr, err := config.NewManager(path)
		if err != nil {
			return err
		}
		cfgMgr.WatchConfig()

		settings := cfgMgr.Get()
		if serveDatabase != "" {
			settings.Database.Driver = serveDatabase
		}
		if serveDSN != "" {
			settings.Database.DSN = serveDSN
		}
		if used := cfgMgr.ConfigFile(); used != "" {
			logger.Info("config loaded", "file", used)
		}

		srv, err := server.New(server.Config{
			Host:          serveHost,
			Port:          servePort,
			ConfigManager: cfgMgr,
			Home:          h,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

// newLogger builds the process logger from the --log-level and --log-format flags.
func newLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(os.Stdout, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stdout, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q (want text or json)", format)
	}
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to")
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "Port to listen on")
	serveCmd.Flags().StringVar(&serveLogLevel, "log-level", "info", "Log level: debug, info, warn or error")
	serveCmd.Flags().StringVar(&serveLogFormat, "log-format", "text", "Log format: text or json")
	serveCmd.Flags().StringVar(&serveDatabase, "database", "", "Override database.driver: sqlite, postgres or memory")
	serveCmd.Flags().StringVar(&serveDSN, "dsn", "", "Override database.dsn (supports ${ENV_VAR})")

	rootCmd.AddCommand(serveCmd)
}
