package api

import (
	"net/http"

	"github.com/printwerk/labelpress/internal/api/handlers"
)

// Router sets up all API routes
type Router struct {
	mux  *http.ServeMux
	jobs *handlers.JobHandler
}

// NewRouter creates a new Router
func NewRouter(jobs *handlers.JobHandler) *Router {
	return &Router{
		mux:  http.NewServeMux(),
		jobs: jobs,
	}
}

// Setup configures all routes and wraps them with the middleware stack
func (r *Router) Setup(token string) http.Handler {
	r.mux.HandleFunc("/api/v1/health", r.jobs.Health)

	r.mux.HandleFunc("/api/v1/jobs", r.handleJobs)
	r.mux.HandleFunc("/api/v1/jobs/{id}", r.handleJob)
	r.mux.HandleFunc("/api/v1/jobs/{id}/status", methodOnly(http.MethodGet, r.jobs.GetStatus))
	r.mux.HandleFunc("/api/v1/jobs/{id}/cancel", methodOnly(http.MethodPost, r.jobs.Cancel))
	r.mux.HandleFunc("/api/v1/jobs/{id}/labels", methodOnly(http.MethodGet, r.jobs.DownloadLabels))

	return Chain(r.mux,
		Recovery,
		Logger,
		CORS,
		SecurityHeaders,
		Auth(token),
	)
}

// handleJobs routes requests for /api/v1/jobs
func (r *Router) handleJobs(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		r.jobs.List(w, req)
	case http.MethodPost:
		r.jobs.Create(w, req)
	default:
		handlers.RenderError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleJob routes requests for /api/v1/jobs/{id}
func (r *Router) handleJob(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		r.jobs.GetByID(w, req)
	case http.MethodDelete:
		r.jobs.Delete(w, req)
	default:
		handlers.RenderError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func methodOnly(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			handlers.RenderError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h(w, r)
	}
}
