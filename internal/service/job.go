// Package service implements the application layer between the HTTP API
// and persistence/queueing.
package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/printwerk/labelpress/internal/domain"
)

// Enqueuer hands accepted jobs to the worker fleet
type Enqueuer interface {
	Enqueue(ctx context.Context, jobID uuid.UUID) error
}

// JobService owns the automation job lifecycle on the manager side
type JobService struct {
	jobs   domain.JobRepository
	queue  Enqueuer
	events domain.EventPublisher
}

// NewJobService creates a JobService. queue may be nil in standalone
// mode, where the caller runs the pipeline directly.
func NewJobService(jobs domain.JobRepository, queue Enqueuer, events domain.EventPublisher) *JobService {
	if events == nil {
		events = domain.NoopPublisher{}
	}
	return &JobService{jobs: jobs, queue: queue, events: events}
}

// Create validates and persists a new job, then enqueues it for a worker
func (s *JobService) Create(ctx context.Context, req *domain.SubmitRequest) (*domain.AutomationJob, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	job := req.ToJob()
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("persist job: %w", err)
	}

	if s.queue != nil {
		if err := s.queue.Enqueue(ctx, job.ID); err != nil {
			// Leave the pending record in place so the submit can be
			// retried once the queue recovers.
			return nil, fmt.Errorf("enqueue job %s: %w", job.ID, err)
		}
	}

	s.publish(ctx, job, domain.EventJobCreated, "job accepted")
	log.Printf("service: job %s created for %s", job.ID, job.Config.TargetURL)
	return job, nil
}

// GetByID returns the full job record
func (s *JobService) GetByID(ctx context.Context, id uuid.UUID) (*domain.AutomationJob, error) {
	return s.jobs.GetByID(ctx, id)
}

// StatusView is the lightweight status projection for polling clients
type StatusView struct {
	ID           uuid.UUID          `json:"id"`
	Status       domain.JobStatus   `json:"status"`
	Progress     domain.JobProgress `json:"progress"`
	FailedStage  *string            `json:"failed_stage,omitempty"`
	ErrorMessage *string            `json:"error_message,omitempty"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// GetStatus returns the status projection of a job
func (s *JobService) GetStatus(ctx context.Context, id uuid.UUID) (*StatusView, error) {
	job, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &StatusView{
		ID:           job.ID,
		Status:       job.Status,
		Progress:     job.Progress,
		FailedStage:  job.FailedStage,
		ErrorMessage: job.ErrorMessage,
		UpdatedAt:    job.UpdatedAt,
	}, nil
}

// List returns jobs newest first
func (s *JobService) List(ctx context.Context, limit, offset int) ([]*domain.AutomationJob, int, error) {
	return s.jobs.List(ctx, limit, offset)
}

// Cancel requests cancellation of a running job. The pipeline observes
// the new status at its next stage boundary.
func (s *JobService) Cancel(ctx context.Context, id uuid.UUID) (*domain.AutomationJob, error) {
	job, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !job.Status.CanCancel() {
		return nil, fmt.Errorf("%w: job %s is already %s", domain.ErrValidation, id, job.Status)
	}

	if err := s.jobs.UpdateStatus(ctx, id, domain.JobStatusCancelled); err != nil {
		return nil, err
	}
	job.Status = domain.JobStatusCancelled

	s.publish(ctx, job, domain.EventJobUpdated, "cancellation requested")
	log.Printf("service: job %s cancellation requested", id)
	return job, nil
}

// Delete removes a terminal job record
func (s *JobService) Delete(ctx context.Context, id uuid.UUID) error {
	job, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !job.Status.IsTerminal() {
		return fmt.Errorf("%w: job %s is still %s", domain.ErrValidation, id, job.Status)
	}
	return s.jobs.Delete(ctx, id)
}

func (s *JobService) publish(ctx context.Context, job *domain.AutomationJob, kind domain.EventKind, message string) {
	err := s.events.PublishJobEvent(ctx, &domain.JobEvent{
		Kind:      kind,
		JobID:     job.ID,
		Status:    job.Status,
		Progress:  job.Progress.Overall,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		log.Printf("service: job %s event %s publish failed: %v", job.ID, kind, err)
	}
}
