package endpoints

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/semtag/internal/api"
	"github.com/jackzampolin/semtag/internal/home"
	"github.com/jackzampolin/semtag/internal/svcctx"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// JobReportEndpoint handles GET /api/jobs/{id}/report.
type JobReportEndpoint struct{}

func (e *JobReportEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/jobs/{id}/report", e.handler
}

func (e *JobReportEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Download job report
//	@Description	XLSX workbook with the job summary, sample refinements and oracle calls
//	@Tags			jobs
//	@Produce		application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
//	@Param			id	path		string	true	"Job ID"
//	@Success		200	{file}		binary
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/jobs/{id}/report [get]
func (e *JobReportEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "job id is required")
		return
	}

	reporter := svcctx.ReporterFrom(r.Context())
	if reporter == nil {
		writeError(w, http.StatusServiceUnavailable, "reporter not initialized")
		return
	}

	data, err := reporter.JobReport(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "refine-"+id+".xlsx"))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (e *JobReportEndpoint) Command(getServerURL func() string) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "report <id>",
		Short: "Download a job's XLSX report",
		Long: `Download a job's XLSX report.

Without --out the report is written to the reports directory under the
semtag home (~/.semtag/reports/job_<id>.xlsx).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			client := api.NewClient(getServerURL())
			data, err := client.Download(cmd.Context(), "/api/jobs/"+url.PathEscape(id)+"/report")
			if err != nil {
				return err
			}

			path := out
			if path == "" {
				path, err = defaultReportPath(cmd, id)
				if err != nil {
					return err
				}
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("failed to create report directory: %w", err)
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return fmt.Errorf("failed to write report: %w", err)
			}
			fmt.Printf("Report written to %s (%d bytes)\n", path, len(data))
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Output file path")
	return cmd
}

// defaultReportPath places the report under the --home directory.
func defaultReportPath(cmd *cobra.Command, jobID string) (string, error) {
	var homePath string
	if f := cmd.Flag("home"); f != nil {
		homePath = f.Value.String()
	}
	dir, err := home.New(homePath)
	if err != nil {
		return "", err
	}
	return dir.ReportPath(jobID), nil
}
