package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/semtag/internal/api"
	"github.com/jackzampolin/semtag/internal/config"
	"github.com/jackzampolin/semtag/internal/home"
	"github.com/jackzampolin/semtag/internal/ingest"
	"github.com/jackzampolin/semtag/internal/server"
)

var (
	seedTaxonomy  string
	seedEntries   []string
	seedDocuments []string
	seedDatabase  string
	seedDSN       string
	seedBatchSize int
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load taxonomy, entries and documents into the store",
	Long: `Load seed data directly into the configured store.

The taxonomy is a YAML list of codes. Entries are JSONL, one entry per
line; files named entries-1.jsonl, entries-2.jsonl and so on load in
numeric order. Documents are JSONL or a directory of .txt files.

Examples:
  semtag seed --taxonomy taxonomy.yaml
  semtag seed --entries entries-1.jsonl --entries entries-2.jsonl
  semtag seed --documents ./corpus --database postgres --dsn '${DATABASE_URL}'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

		h, err := home.New(homeDir)
		if err != nil {
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
		db := cfgMgr.Get().Database
		if seedDatabase != "" {
			db.Driver = seedDatabase
		}
		if seedDSN != "" {
			db.DSN = seedDSN
		}
		if db.Driver == "memory" {
			return fmt.Errorf("cannot seed the in-memory store; choose sqlite or postgres")
		}

		st, err := server.OpenStore(ctx, db, h, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		res, err := ingest.Ingest(ctx, st, ingest.Request{
			TaxonomyPath:  seedTaxonomy,
			EntryPaths:    seedEntries,
			DocumentPaths: seedDocuments,
			BatchSize:     seedBatchSize,
			Logger:        logger,
		})
		if err != nil {
			return err
		}
		return api.Output(res)
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedTaxonomy, "taxonomy", "", "YAML taxonomy file")
	seedCmd.Flags().StringArrayVar(&seedEntries, "entries", nil, "JSONL entries file (repeatable)")
	seedCmd.Flags().StringArrayVar(&seedDocuments, "documents", nil, "JSONL documents file or directory of .txt files (repeatable)")
	seedCmd.Flags().StringVar(&seedDatabase, "database", "", "Override database.driver: sqlite or postgres")
	seedCmd.Flags().StringVar(&seedDSN, "dsn", "", "Override database.dsn (supports ${ENV_VAR})")
	seedCmd.Flags().IntVar(&seedBatchSize, "batch-size", ingest.DefaultBatchSize, "Records written per transaction")

	rootCmd.AddCommand(seedCmd)
}
