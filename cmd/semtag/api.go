package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/semtag/internal/api"
	"github.com/jackzampolin/semtag/internal/server/endpoints"
)

var serverURL string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Commands that call the running server",
	Long: `API commands call the running Semtag server via HTTP.

These commands require a running server (semtag serve).
Use --server to specify a custom server URL.

Examples:
  semtag api health                       # Check server health
  semtag api jobs create --domain A       # Start refining domain A
  semtag api jobs list --status running   # List running jobs
  semtag api jobs report <id>             # Download the job workbook`,
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Refinement job commands",
}

var taxonomyCmd = &cobra.Command{
	Use:   "taxonomy",
	Short: "Taxonomy cache commands",
}

var llmcallsCmd = &cobra.Command{
	Use:   "llmcalls",
	Short: "LLM call history commands",
}

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Prompt template commands",
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func init() {
	// Add --server flag to api command (persistent so all subcommands inherit it)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8080", "Server URL",
	)

	// Health endpoints at top level of api
	api.AddCommands(apiCmd, getServerURL,
		&endpoints.HealthEndpoint{},
		&endpoints.ReadyEndpoint{},
		&endpoints.StatusEndpoint{},
		&endpoints.SwaggerEndpoint{},
	)

	api.AddCommands(jobsCmd, getServerURL, endpoints.JobCommands()...)
	api.AddCommands(taxonomyCmd, getServerURL, endpoints.TaxonomyCommands()...)
	api.AddCommands(llmcallsCmd, getServerURL, endpoints.LLMCallCommands()...)
	api.AddCommands(promptsCmd, getServerURL, endpoints.PromptCommands()...)

	apiCmd.AddCommand(jobsCmd)
	apiCmd.AddCommand(taxonomyCmd)
	apiCmd.AddCommand(llmcallsCmd)
	apiCmd.AddCommand(promptsCmd)
	rootCmd.AddCommand(apiCmd)
}
