package endpoints

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/semtag/internal/api"
	"github.com/jackzampolin/semtag/internal/jobs"
	"github.com/jackzampolin/semtag/internal/store"
	"github.com/jackzampolin/semtag/internal/svcctx"
)

// Job control actions.
const (
	ActionPause  = "pause"
	ActionCancel = "cancel"
	ActionResume = "resume"
)

// JobIDRequest is the body form of the control routes.
type JobIDRequest struct {
	JobID string `json:"jobId"`
}

// JobStatusResponse is returned by pause, cancel and resume.
type JobStatusResponse struct {
	ID     string          `json:"id"`
	Status store.JobStatus `json:"status"`
}

// JobControlEndpoint handles POST /api/jobs/{id}/{action} for pause, cancel
// and resume. With BodyForm set it serves POST /api/jobs/{action} and reads
// the job id from a {"jobId": ...} body instead.
type JobControlEndpoint struct {
	Action   string
	BodyForm bool
}

func (e *JobControlEndpoint) Route() (string, string, http.HandlerFunc) {
	if e.BodyForm {
		return "POST", "/api/jobs/" + e.Action, e.handler
	}
	return "POST", "/api/jobs/{id}/" + e.Action, e.handler
}

func (e *JobControlEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Pause, cancel or resume a job
//	@Description	Pause and cancel take effect after the in-flight chunk; resume continues from the stored offset
//	@Tags			jobs
//	@Produce		json
//	@Param			id	path		string	true	"Job ID"
//	@Success		200	{object}	JobStatusResponse
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		409	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/jobs/{id}/pause [post]
//	@Router			/api/jobs/{id}/cancel [post]
//	@Router			/api/jobs/{id}/resume [post]
func (e *JobControlEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id, ok := jobIDFrom(w, r, e.BodyForm)
	if !ok {
		return
	}

	ctrl := svcctx.ControllerFrom(r.Context())
	if ctrl == nil {
		writeError(w, http.StatusServiceUnavailable, "job controller not initialized")
		return
	}

	var action func(context.Context, string) (*store.Job, error)
	switch e.Action {
	case ActionPause:
		action = ctrl.Pause
	case ActionCancel:
		action = ctrl.Cancel
	case ActionResume:
		action = ctrl.Resume
	default:
		writeError(w, http.StatusNotFound, "unknown action "+e.Action)
		return
	}

	job, err := action(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, JobStatusResponse{ID: job.ID, Status: job.Status})
}

func (e *JobControlEndpoint) Command(getServerURL func() string) *cobra.Command {
	use := e.Action + " <id>"
	if e.BodyForm {
		use = e.Action + "-by-body <id>"
	}
	return &cobra.Command{
		Use:    use,
		Short:  fmt.Sprintf("%s a job", titleCase(e.Action)),
		Hidden: e.BodyForm,
		Args:   cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp JobStatusResponse
			var err error
			if e.BodyForm {
				err = client.Post(cmd.Context(), "/api/jobs/"+e.Action, JobIDRequest{JobID: args[0]}, &resp)
			} else {
				err = client.Post(cmd.Context(), "/api/jobs/"+url.PathEscape(args[0])+"/"+e.Action, nil, &resp)
			}
			if err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// ProcessChunkEndpoint handles POST /api/jobs/{id}/process, which runs one
// chunk of the job. The scheduler calls it; operators normally do not.
type ProcessChunkEndpoint struct {
	BodyForm bool
}

func (e *ProcessChunkEndpoint) Route() (string, string, http.HandlerFunc) {
	if e.BodyForm {
		return "POST", "/api/jobs/process", e.handler
	}
	return "POST", "/api/jobs/{id}/process", e.handler
}

func (e *ProcessChunkEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Process one chunk
//	@Description	Refines the next chunk of a running job and saves its progress
//	@Tags			jobs
//	@Produce		json
//	@Param			id	path		string	true	"Job ID"
//	@Success		200	{object}	jobs.ChunkResult
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		409	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/jobs/{id}/process [post]
func (e *ProcessChunkEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id, ok := jobIDFrom(w, r, e.BodyForm)
	if !ok {
		return
	}

	proc := svcctx.ProcessorFrom(r.Context())
	if proc == nil {
		writeError(w, http.StatusServiceUnavailable, "chunk processor not initialized")
		return
	}

	res, err := proc.Process(r.Context(), id)
	if err != nil {
		svcctx.LoggerFrom(r.Context()).Warn("chunk failed", "job_id", id, "error", err)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (e *ProcessChunkEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:    processUse(e.BodyForm),
		Short:  "Run one chunk of a job now",
		Hidden: e.BodyForm,
		Args:   cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp jobs.ChunkResult
			var err error
			if e.BodyForm {
				err = client.Post(cmd.Context(), "/api/jobs/process", JobIDRequest{JobID: args[0]}, &resp)
			} else {
				err = client.Post(cmd.Context(), "/api/jobs/"+url.PathEscape(args[0])+"/process", nil, &resp)
			}
			if err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// jobIDFrom reads the job id from the path or the body. It writes a 400 and
// returns false when there is none.
func jobIDFrom(w http.ResponseWriter, r *http.Request, bodyForm bool) (string, bool) {
	if !bodyForm {
		id := r.PathValue("id")
		if id == "" {
			writeError(w, http.StatusBadRequest, "job id is required")
			return "", false
		}
		return id, true
	}

	var req JobIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return "", false
	}
	if req.JobID == "" {
		writeError(w, http.StatusBadRequest, "jobId is required")
		return "", false
	}
	return req.JobID, true
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}

func processUse(bodyForm bool) string {
	if bodyForm {
		return "process-by-body <id>"
	}
	return "process <id>"
}
