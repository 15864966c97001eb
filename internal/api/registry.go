package api

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/spf13/cobra"
)

// Registry holds the endpoints a server exposes.
type Registry struct {
	endpoints []Endpoint
	routes    map[string]bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{routes: make(map[string]bool)}
}

// Register adds endpoints. A method and path pair may only be registered once.
func (r *Registry) Register(eps ...Endpoint) error {
	for _, ep := range eps {
		method, path, _ := ep.Route()
		key := method + " " + path
		if r.routes[key] {
			return fmt.Errorf("duplicate route %s", key)
		}
		r.routes[key] = true
		r.endpoints = append(r.endpoints, ep)
	}
	return nil
}

// RegisterRoutes mounts every endpoint on mux using method patterns.
// Handlers of endpoints that need the pipeline are wrapped by initMiddleware.
func (r *Registry) RegisterRoutes(mux *http.ServeMux, initMiddleware func(http.HandlerFunc) http.HandlerFunc) {
	for _, ep := range r.endpoints {
		method, path, handler := ep.Route()
		if ep.RequiresInit() {
			handler = initMiddleware(handler)
		}
		mux.HandleFunc(method+" "+path, handler)
	}
}

// Routes returns the registered "METHOD /path" patterns, sorted.
func (r *Registry) Routes() []string {
	out := make([]string, 0, len(r.routes))
	for k := range r.routes {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// AddCommands attaches the CLI command of each endpoint to parent.
func AddCommands(parent *cobra.Command, getServerURL func() string, eps ...Endpoint) {
	for _, ep := range eps {
		parent.AddCommand(ep.Command(getServerURL))
	}
}
