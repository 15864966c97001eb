package endpoints

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/semtag/internal/api"
	"github.com/jackzampolin/semtag/internal/metrics"
	"github.com/jackzampolin/semtag/internal/store"
	"github.com/jackzampolin/semtag/internal/svcctx"
)

// LLMCallsResponse contains a list of LLM calls.
type LLMCallsResponse struct {
	Calls []store.LLMCall `json:"calls"`
	Total int             `json:"total"`
}

// ListLLMCallsEndpoint handles GET /api/llmcalls.
type ListLLMCallsEndpoint struct{}

func (e *ListLLMCallsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/llmcalls", e.handler
}

func (e *ListLLMCallsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List LLM calls
//	@Description	Oracle call history, newest first
//	@Tags			llmcalls
//	@Produce		json
//	@Param			job_id	query		string	false	"Filter by job ID"
//	@Param			limit	query		int		false	"Max results (default 100)"
//	@Success		200		{object}	LLMCallsResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/api/llmcalls [get]
func (e *ListLLMCallsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	q := r.URL.Query()
	filter := store.CallFilter{JobID: q.Get("job_id"), Limit: 100}
	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	calls, err := st.ListCalls(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if calls == nil {
		calls = []store.LLMCall{}
	}

	writeJSON(w, http.StatusOK, LLMCallsResponse{Calls: calls, Total: len(calls)})
}

func (e *ListLLMCallsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var jobID string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List LLM calls",
		RunE: func(cmd *cobra.Command, args []string) error {
			params := url.Values{}
			if jobID != "" {
				params.Set("job_id", jobID)
			}
			if limit > 0 {
				params.Set("limit", strconv.Itoa(limit))
			}
			path := "/api/llmcalls"
			if len(params) > 0 {
				path += "?" + params.Encode()
			}

			client := api.NewClient(getServerURL())
			var resp LLMCallsResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&jobID, "job", "", "Filter by job ID")
	cmd.Flags().IntVar(&limit, "limit", 0, "Max results")
	return cmd
}

// CallSummaryResponse aggregates call history.
type CallSummaryResponse struct {
	JobID   string                            `json:"job_id,omitempty"`
	Overall *metrics.DetailedStats            `json:"overall"`
	ByModel map[string]*metrics.DetailedStats `json:"by_model"`
}

// LLMCallSummaryEndpoint handles GET /api/llmcalls/summary.
type LLMCallSummaryEndpoint struct{}

func (e *LLMCallSummaryEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/llmcalls/summary", e.handler
}

func (e *LLMCallSummaryEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Summarize LLM calls
//	@Description	Latency percentiles, token totals and failure counts, overall and per model
//	@Tags			llmcalls
//	@Produce		json
//	@Param			job_id	query		string	false	"Filter by job ID"
//	@Success		200		{object}	CallSummaryResponse
//	@Failure		500		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/api/llmcalls/summary [get]
func (e *LLMCallSummaryEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	f := metrics.Filter{JobID: r.URL.Query().Get("job_id")}
	calls, err := metrics.NewQuery(st).List(r.Context(), f, 0)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, CallSummaryResponse{
		JobID:   f.JobID,
		Overall: metrics.Summarize(calls),
		ByModel: metrics.GroupBy(calls, func(c store.LLMCall) string { return c.Model }),
	})
}

func (e *LLMCallSummaryEndpoint) Command(getServerURL func() string) *cobra.Command {
	var jobID string
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize LLM call latency and token use",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/llmcalls/summary"
			if jobID != "" {
				path += "?" + url.Values{"job_id": {jobID}}.Encode()
			}
			client := api.NewClient(getServerURL())
			var resp CallSummaryResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&jobID, "job", "", "Filter by job ID")
	return cmd
}
