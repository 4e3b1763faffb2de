package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path"
	"strconv"

	"github.com/google/uuid"

	"github.com/printwerk/labelpress/internal/cache"
	"github.com/printwerk/labelpress/internal/domain"
	"github.com/printwerk/labelpress/internal/service"
	"github.com/printwerk/labelpress/internal/storage"
)

// JobServiceInterface defines the job service methods used by the handler
type JobServiceInterface interface {
	Create(ctx context.Context, req *domain.SubmitRequest) (*domain.AutomationJob, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.AutomationJob, error)
	GetStatus(ctx context.Context, id uuid.UUID) (*service.StatusView, error)
	List(ctx context.Context, limit, offset int) ([]*domain.AutomationJob, int, error)
	Cancel(ctx context.Context, id uuid.UUID) (*domain.AutomationJob, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// MaxSubmitBodySize is the maximum size of a job submit body (1MB)
const MaxSubmitBodySize = 1 << 20

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	jobs  JobServiceInterface
	blobs storage.BlobStore
	cache cache.Cache
}

// NewJobHandler creates a new JobHandler. blobs is used for label
// artifact downloads and may be nil when the manager has no store.
func NewJobHandler(jobs JobServiceInterface, blobs storage.BlobStore) *JobHandler {
	return &JobHandler{jobs: jobs, blobs: blobs}
}

// NewJobHandlerWithCache creates a JobHandler that caches status lookups
func NewJobHandlerWithCache(jobs JobServiceInterface, blobs storage.BlobStore, c cache.Cache) *JobHandler {
	return &JobHandler{jobs: jobs, blobs: blobs, cache: c}
}

// Create handles POST /api/v1/jobs
func (h *JobHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxSubmitBodySize)

	var req domain.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RenderError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	job, err := h.jobs.Create(r.Context(), &req)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			RenderError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("[JobHandler] Create failed: %v", err)
		RenderError(w, http.StatusInternalServerError, "Failed to create job")
		return
	}

	log.Printf("[JobHandler] Job %s accepted", job.ID)
	RenderJSON(w, http.StatusCreated, job)
}

// List handles GET /api/v1/jobs
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	jobs, total, err := h.jobs.List(r.Context(), perPage, (page-1)*perPage)
	if err != nil {
		RenderError(w, http.StatusInternalServerError, "Failed to list jobs: "+err.Error())
		return
	}

	RenderJSON(w, http.StatusOK, NewPaginatedResponse(jobs, total, page, perPage))
}

// GetByID handles GET /api/v1/jobs/{id}
func (h *JobHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := parseJobID(r)
	if err != nil {
		RenderError(w, http.StatusBadRequest, "Invalid job ID")
		return
	}

	job, err := h.jobs.GetByID(r.Context(), id)
	if err != nil {
		renderJobError(w, err, "Failed to retrieve job")
		return
	}
	RenderJSON(w, http.StatusOK, job)
}

// GetStatus handles GET /api/v1/jobs/{id}/status. Status is the hot
// polling path, so responses are cached briefly when a cache is wired.
func (h *JobHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseJobID(r)
	if err != nil {
		RenderError(w, http.StatusBadRequest, "Invalid job ID")
		return
	}

	ctx := r.Context()
	cacheKey := fmt.Sprintf("%s:%s", cache.KeyPrefixJobStatus, id)

	if h.cache != nil {
		if cached, err := h.cache.Get(ctx, cacheKey); err == nil && cached != nil {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Cache", "HIT")
			w.WriteHeader(http.StatusOK)
			w.Write(cached)
			return
		}
	}

	view, err := h.jobs.GetStatus(ctx, id)
	if err != nil {
		renderJobError(w, err, "Failed to retrieve job status")
		return
	}

	if h.cache != nil {
		if data, err := json.Marshal(view); err == nil {
			h.cache.Set(ctx, cacheKey, data, cache.TTLJobStatus)
		}
	}

	w.Header().Set("X-Cache", "MISS")
	RenderJSON(w, http.StatusOK, view)
}

// Cancel handles POST /api/v1/jobs/{id}/cancel
func (h *JobHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := parseJobID(r)
	if err != nil {
		RenderError(w, http.StatusBadRequest, "Invalid job ID")
		return
	}

	job, err := h.jobs.Cancel(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			RenderError(w, http.StatusNotFound, "Job not found")
			return
		}
		if errors.Is(err, domain.ErrValidation) {
			RenderError(w, http.StatusConflict, err.Error())
			return
		}
		RenderError(w, http.StatusInternalServerError, "Failed to cancel job: "+err.Error())
		return
	}

	h.invalidateStatus(r.Context(), id)
	RenderJSON(w, http.StatusOK, job)
}

// Delete handles DELETE /api/v1/jobs/{id}
func (h *JobHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseJobID(r)
	if err != nil {
		RenderError(w, http.StatusBadRequest, "Invalid job ID")
		return
	}

	if err := h.jobs.Delete(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			RenderError(w, http.StatusNotFound, "Job not found")
			return
		}
		if errors.Is(err, domain.ErrValidation) {
			RenderError(w, http.StatusConflict, err.Error())
			return
		}
		RenderError(w, http.StatusInternalServerError, "Failed to delete job: "+err.Error())
		return
	}

	h.invalidateStatus(r.Context(), id)
	w.WriteHeader(http.StatusNoContent)
}

// DownloadLabels handles GET /api/v1/jobs/{id}/labels and streams the
// rendered label sheet produced by a completed job.
func (h *JobHandler) DownloadLabels(w http.ResponseWriter, r *http.Request) {
	id, err := parseJobID(r)
	if err != nil {
		RenderError(w, http.StatusBadRequest, "Invalid job ID")
		return
	}

	if h.blobs == nil {
		RenderError(w, http.StatusNotImplemented, "Artifact storage not configured")
		return
	}

	job, err := h.jobs.GetByID(r.Context(), id)
	if err != nil {
		renderJobError(w, err, "Failed to retrieve job")
		return
	}

	if len(job.Results.Labels) == 0 {
		RenderError(w, http.StatusNotFound, "Job has no rendered labels")
		return
	}

	key := job.Results.Labels[0]
	data, err := h.blobs.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			RenderError(w, http.StatusNotFound, "Label artifact not found")
			return
		}
		log.Printf("[JobHandler] Label download for job %s failed: %v", id, err)
		RenderError(w, http.StatusInternalServerError, "Failed to read label artifact")
		return
	}

	filename := path.Base(key)
	w.Header().Set("Content-Type", contentTypeFor(filename))
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

// Health handles GET /api/v1/health
func (h *JobHandler) Health(w http.ResponseWriter, r *http.Request) {
	RenderJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *JobHandler) invalidateStatus(ctx context.Context, id uuid.UUID) {
	if h.cache == nil {
		return
	}
	key := fmt.Sprintf("%s:%s", cache.KeyPrefixJobStatus, id)
	if err := h.cache.Delete(ctx, key); err != nil {
		log.Printf("[JobHandler] Warning: failed to invalidate status cache for %s: %v", id, err)
	}
}

func renderJobError(w http.ResponseWriter, err error, fallback string) {
	if errors.Is(err, domain.ErrJobNotFound) {
		RenderError(w, http.StatusNotFound, "Job not found")
		return
	}
	RenderError(w, http.StatusInternalServerError, fallback+": "+err.Error())
}

func contentTypeFor(filename string) string {
	switch path.Ext(filename) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

func parseJobID(r *http.Request) (uuid.UUID, error) {
	idStr := r.PathValue("id")
	if idStr == "" {
		idStr = r.URL.Query().Get("id")
	}
	return uuid.Parse(idStr)
}
