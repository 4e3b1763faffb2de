package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printwerk/labelpress/internal/cache"
	"github.com/printwerk/labelpress/internal/domain"
	"github.com/printwerk/labelpress/internal/service"
	"github.com/printwerk/labelpress/internal/storage"
)

type fakeJobService struct {
	jobs      map[uuid.UUID]*domain.AutomationJob
	cancelled []uuid.UUID
	deleted   []uuid.UUID
}

func newFakeJobService() *fakeJobService {
	return &fakeJobService{jobs: make(map[uuid.UUID]*domain.AutomationJob)}
}

func (f *fakeJobService) Create(_ context.Context, req *domain.SubmitRequest) (*domain.AutomationJob, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	job := req.ToJob()
	f.jobs[job.ID] = job
	return job, nil
}

func (f *fakeJobService) GetByID(_ context.Context, id uuid.UUID) (*domain.AutomationJob, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return job, nil
}

func (f *fakeJobService) GetStatus(_ context.Context, id uuid.UUID) (*service.StatusView, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return &service.StatusView{ID: job.ID, Status: job.Status, Progress: job.Progress}, nil
}

func (f *fakeJobService) List(_ context.Context, limit, offset int) ([]*domain.AutomationJob, int, error) {
	var out []*domain.AutomationJob
	for _, job := range f.jobs {
		out = append(out, job)
	}
	_ = limit
	_ = offset
	return out, len(f.jobs), nil
}

func (f *fakeJobService) Cancel(_ context.Context, id uuid.UUID) (*domain.AutomationJob, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	if !job.Status.CanCancel() {
		return nil, fmt.Errorf("%w: job is already %s", domain.ErrValidation, job.Status)
	}
	job.Status = domain.JobStatusCancelled
	f.cancelled = append(f.cancelled, id)
	return job, nil
}

func (f *fakeJobService) Delete(_ context.Context, id uuid.UUID) error {
	job, ok := f.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	if !job.Status.IsTerminal() {
		return fmt.Errorf("%w: job is still %s", domain.ErrValidation, job.Status)
	}
	delete(f.jobs, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func seedJob(t *testing.T, svc *fakeJobService) *domain.AutomationJob {
	t.Helper()
	job, err := svc.Create(context.Background(), &domain.SubmitRequest{
		TargetURL: "https://shop.example.com/kategorie/werkzeug",
	})
	require.NoError(t, err)
	return job
}

func requestWithID(method, target string, id uuid.UUID, body []byte) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.SetPathValue("id", id.String())
	return req
}

func TestCreateJob(t *testing.T) {
	svc := newFakeJobService()
	h := NewJobHandler(svc, nil)

	body, _ := json.Marshal(domain.SubmitRequest{
		Name:      "scan",
		TargetURL: "https://shop.example.com/kategorie/werkzeug",
	})
	w := httptest.NewRecorder()
	h.Create(w, httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewReader(body)))

	require.Equal(t, http.StatusCreated, w.Code)

	var created domain.AutomationJob
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, domain.JobStatusPending, created.Status)
	assert.Equal(t, "scan", created.Name)
}

func TestCreateJobValidationError(t *testing.T) {
	h := NewJobHandler(newFakeJobService(), nil)

	body, _ := json.Marshal(domain.SubmitRequest{TargetURL: ""})
	w := httptest.NewRecorder()
	h.Create(w, httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateJobMalformedBody(t *testing.T) {
	h := NewJobHandler(newFakeJobService(), nil)

	w := httptest.NewRecorder()
	h.Create(w, httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewReader([]byte("{not json"))))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetJobByID(t *testing.T) {
	svc := newFakeJobService()
	job := seedJob(t, svc)
	h := NewJobHandler(svc, nil)

	w := httptest.NewRecorder()
	h.GetByID(w, requestWithID(http.MethodGet, "/api/v1/jobs/"+job.ID.String(), job.ID, nil))

	require.Equal(t, http.StatusOK, w.Code)
	var got domain.AutomationJob
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, job.ID, got.ID)
}

func TestGetJobNotFound(t *testing.T) {
	h := NewJobHandler(newFakeJobService(), nil)

	w := httptest.NewRecorder()
	h.GetByID(w, requestWithID(http.MethodGet, "/api/v1/jobs/x", uuid.New(), nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetStatusCaching(t *testing.T) {
	svc := newFakeJobService()
	job := seedJob(t, svc)
	h := NewJobHandlerWithCache(svc, nil, cache.NewMemoryCache())

	w := httptest.NewRecorder()
	h.GetStatus(w, requestWithID(http.MethodGet, "/status", job.ID, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

	w = httptest.NewRecorder()
	h.GetStatus(w, requestWithID(http.MethodGet, "/status", job.ID, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))

	var view service.StatusView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, job.ID, view.ID)
	assert.Equal(t, domain.JobStatusPending, view.Status)
}

func TestCancelJob(t *testing.T) {
	svc := newFakeJobService()
	job := seedJob(t, svc)
	h := NewJobHandler(svc, nil)

	w := httptest.NewRecorder()
	h.Cancel(w, requestWithID(http.MethodPost, "/cancel", job.ID, nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []uuid.UUID{job.ID}, svc.cancelled)
}

func TestCancelTerminalJobConflicts(t *testing.T) {
	svc := newFakeJobService()
	job := seedJob(t, svc)
	job.Status = domain.JobStatusCompleted
	h := NewJobHandler(svc, nil)

	w := httptest.NewRecorder()
	h.Cancel(w, requestWithID(http.MethodPost, "/cancel", job.ID, nil))

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestDeleteJob(t *testing.T) {
	svc := newFakeJobService()
	job := seedJob(t, svc)
	job.Status = domain.JobStatusFailed
	h := NewJobHandler(svc, nil)

	w := httptest.NewRecorder()
	h.Delete(w, requestWithID(http.MethodDelete, "/", job.ID, nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []uuid.UUID{job.ID}, svc.deleted)
}

func TestDeleteRunningJobConflicts(t *testing.T) {
	svc := newFakeJobService()
	job := seedJob(t, svc)
	job.Status = domain.JobStatusCrawling
	h := NewJobHandler(svc, nil)

	w := httptest.NewRecorder()
	h.Delete(w, requestWithID(http.MethodDelete, "/", job.ID, nil))

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestDownloadLabels(t *testing.T) {
	svc := newFakeJobService()
	job := seedJob(t, svc)

	store, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	key := "renders/" + job.ID.String() + "/labels.png"
	require.NoError(t, store.Put(context.Background(), key, []byte("png-bytes")))
	job.Results.Labels = []string{key}
	job.Status = domain.JobStatusCompleted

	h := NewJobHandler(svc, store)

	w := httptest.NewRecorder()
	h.DownloadLabels(w, requestWithID(http.MethodGet, "/labels", job.ID, nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "png-bytes", w.Body.String())
}

func TestDownloadLabelsNoneRendered(t *testing.T) {
	svc := newFakeJobService()
	job := seedJob(t, svc)

	store, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	h := NewJobHandler(svc, store)

	w := httptest.NewRecorder()
	h.DownloadLabels(w, requestWithID(http.MethodGet, "/labels", job.ID, nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListJobsPagination(t *testing.T) {
	svc := newFakeJobService()
	seedJob(t, svc)
	seedJob(t, svc)
	h := NewJobHandler(svc, nil)

	w := httptest.NewRecorder()
	h.List(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs?page=1&per_page=10", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp PaginatedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, 10, resp.PerPage)
	assert.Equal(t, 1, resp.TotalPages)
}
