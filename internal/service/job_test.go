package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printwerk/labelpress/internal/domain"
)

type memJobs struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*domain.AutomationJob
}

func newMemJobs() *memJobs {
	return &memJobs{jobs: make(map[uuid.UUID]*domain.AutomationJob)}
}

func (m *memJobs) Create(_ context.Context, job *domain.AutomationJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *memJobs) GetByID(_ context.Context, id uuid.UUID) (*domain.AutomationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (m *memJobs) Update(_ context.Context, job *domain.AutomationJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; !ok {
		return domain.ErrJobNotFound
	}
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *memJobs) UpdateStatus(_ context.Context, id uuid.UUID, status domain.JobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	job.Status = status
	return nil
}

func (m *memJobs) List(_ context.Context, limit, offset int) ([]*domain.AutomationJob, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.AutomationJob
	for _, job := range m.jobs {
		cp := *job
		out = append(out, &cp)
	}
	_ = limit
	_ = offset
	return out, len(m.jobs), nil
}

func (m *memJobs) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[id]; !ok {
		return domain.ErrJobNotFound
	}
	delete(m.jobs, id)
	return nil
}

type fakeEnqueuer struct {
	mu      sync.Mutex
	jobIDs  []uuid.UUID
	failAll bool
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, jobID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errors.New("redis unavailable")
	}
	f.jobIDs = append(f.jobIDs, jobID)
	return nil
}

type eventRecorder struct {
	mu     sync.Mutex
	events []domain.JobEvent
}

func (r *eventRecorder) PublishJobEvent(_ context.Context, event *domain.JobEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *event)
	return nil
}

func (r *eventRecorder) kinds() []domain.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]domain.EventKind, 0, len(r.events))
	for _, e := range r.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

func validRequest() *domain.SubmitRequest {
	return &domain.SubmitRequest{
		Name:      "shop scan",
		TargetURL: "https://shop.example.com/kategorie/werkzeug",
	}
}

func TestCreatePersistsAndEnqueues(t *testing.T) {
	repo := newMemJobs()
	queue := &fakeEnqueuer{}
	events := &eventRecorder{}
	svc := NewJobService(repo, queue, events)

	job, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)
	require.NotNil(t, job)

	assert.Equal(t, domain.JobStatusPending, job.Status)
	assert.Equal(t, 50, job.Config.MaxProducts)

	stored, err := repo.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, stored.ID)

	require.Len(t, queue.jobIDs, 1)
	assert.Equal(t, job.ID, queue.jobIDs[0])
	assert.Equal(t, []domain.EventKind{domain.EventJobCreated}, events.kinds())
}

func TestCreateRejectsInvalidRequest(t *testing.T) {
	svc := NewJobService(newMemJobs(), &fakeEnqueuer{}, nil)

	req := validRequest()
	req.TargetURL = "not a url"
	_, err := svc.Create(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCreateEnqueueFailureSurfaces(t *testing.T) {
	repo := newMemJobs()
	queue := &fakeEnqueuer{failAll: true}
	svc := NewJobService(repo, queue, nil)

	_, err := svc.Create(context.Background(), validRequest())
	require.Error(t, err)

	// The pending record stays so the submit can be retried.
	jobs, total, err := repo.List(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, domain.JobStatusPending, jobs[0].Status)
}

func TestCreateWithoutQueueStaysPending(t *testing.T) {
	repo := newMemJobs()
	svc := NewJobService(repo, nil, nil)

	job, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, job.Status)
}

func TestGetStatusProjection(t *testing.T) {
	repo := newMemJobs()
	svc := NewJobService(repo, &fakeEnqueuer{}, nil)

	job, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)

	job.Status = domain.JobStatusProcessingOCR
	job.Progress.Overall = 42.5
	job.Progress.CurrentStep = "ocr"
	require.NoError(t, repo.Update(context.Background(), job))

	view, err := svc.GetStatus(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusProcessingOCR, view.Status)
	assert.Equal(t, 42.5, view.Progress.Overall)
	assert.Equal(t, "ocr", view.Progress.CurrentStep)
}

func TestCancelRunningJob(t *testing.T) {
	repo := newMemJobs()
	events := &eventRecorder{}
	svc := NewJobService(repo, &fakeEnqueuer{}, events)

	job, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)
	require.NoError(t, repo.UpdateStatus(context.Background(), job.ID, domain.JobStatusCrawling))

	cancelled, err := svc.Cancel(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCancelled, cancelled.Status)

	stored, err := repo.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCancelled, stored.Status)
	assert.Equal(t, []domain.EventKind{domain.EventJobCreated, domain.EventJobUpdated}, events.kinds())
}

func TestCancelTerminalJobRejected(t *testing.T) {
	repo := newMemJobs()
	svc := NewJobService(repo, &fakeEnqueuer{}, nil)

	job, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)
	require.NoError(t, repo.UpdateStatus(context.Background(), job.ID, domain.JobStatusCompleted))

	_, err = svc.Cancel(context.Background(), job.ID)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestDeleteRequiresTerminalStatus(t *testing.T) {
	repo := newMemJobs()
	svc := NewJobService(repo, &fakeEnqueuer{}, nil)

	job, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)

	err = svc.Delete(context.Background(), job.ID)
	assert.ErrorIs(t, err, domain.ErrValidation)

	require.NoError(t, repo.UpdateStatus(context.Background(), job.ID, domain.JobStatusFailed))
	require.NoError(t, svc.Delete(context.Background(), job.ID))

	_, err = svc.GetByID(context.Background(), job.ID)
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestGetByIDUnknown(t *testing.T) {
	svc := NewJobService(newMemJobs(), &fakeEnqueuer{}, nil)
	_, err := svc.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}
