package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/semtag/internal/api"
	"github.com/jackzampolin/semtag/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "semtag",
	Short: "Batch refinement of coarse semantic tags with an LLM classifier",
	Long: `Semtag refines coarsely tagged lexicon entries into fine-grained taxonomy
codes. Refinement jobs walk the entries of one domain chunk by chunk, show
each surface form to an LLM together with a snippet of its source text, and
write the proposed codes back.

The pipeline includes:
  - Cached taxonomy with TTL and manual refresh
  - Keyword-in-context extraction from source documents
  - Batched classification calls with per-call history
  - Self-scheduling jobs with pause, cancel and resume`,
	Version:      version.GitRelease,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.semtag/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "semtag home directory (default: ~/.semtag)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
