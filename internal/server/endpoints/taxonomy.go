package endpoints

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/semtag/internal/api"
	"github.com/jackzampolin/semtag/internal/store"
	"github.com/jackzampolin/semtag/internal/svcctx"
)

// TaxonomyResponse is the cached active taxonomy.
type TaxonomyResponse struct {
	LoadedAt time.Time             `json:"loaded_at"`
	Count    int                   `json:"count"`
	Codes    []store.TaxonomyEntry `json:"codes"`
}

// RefreshTaxonomyResponse reports a cache reload.
type RefreshTaxonomyResponse struct {
	Count int `json:"count"`
}

// GetTaxonomyEndpoint handles GET /api/taxonomy.
type GetTaxonomyEndpoint struct{}

func (e *GetTaxonomyEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/taxonomy", e.handler
}

func (e *GetTaxonomyEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get taxonomy
//	@Description	Active taxonomy codes as currently cached, loading them if the cache is cold or expired
//	@Tags			taxonomy
//	@Produce		json
//	@Success		200	{object}	TaxonomyResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/taxonomy [get]
func (e *GetTaxonomyEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	cache := svcctx.TaxonomyFrom(r.Context())
	if cache == nil {
		writeError(w, http.StatusServiceUnavailable, "taxonomy cache not initialized")
		return
	}

	set, err := cache.LoadActive(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, TaxonomyResponse{
		LoadedAt: set.LoadedAt,
		Count:    set.Len(),
		Codes:    set.Entries(),
	})
}

func (e *GetTaxonomyEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Show the active taxonomy",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp TaxonomyResponse
			if err := client.Get(cmd.Context(), "/api/taxonomy", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// RefreshTaxonomyEndpoint handles POST /api/taxonomy/refresh.
type RefreshTaxonomyEndpoint struct{}

func (e *RefreshTaxonomyEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/taxonomy/refresh", e.handler
}

func (e *RefreshTaxonomyEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Refresh taxonomy
//	@Description	Drops the cached taxonomy and reloads it from the store
//	@Tags			taxonomy
//	@Produce		json
//	@Success		200	{object}	RefreshTaxonomyResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/taxonomy/refresh [post]
func (e *RefreshTaxonomyEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	cache := svcctx.TaxonomyFrom(r.Context())
	if cache == nil {
		writeError(w, http.StatusServiceUnavailable, "taxonomy cache not initialized")
		return
	}

	cache.Invalidate()
	set, err := cache.LoadActive(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	svcctx.LoggerFrom(r.Context()).Info("taxonomy refreshed", "codes", set.Len())
	writeJSON(w, http.StatusOK, RefreshTaxonomyResponse{Count: set.Len()})
}

func (e *RefreshTaxonomyEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Reload the taxonomy cache from the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp RefreshTaxonomyResponse
			if err := client.Post(cmd.Context(), "/api/taxonomy/refresh", nil, &resp); err != nil {
				return err
			}
			fmt.Printf("Taxonomy reloaded: %d codes\n", resp.Count)
			return nil
		},
	}
}
