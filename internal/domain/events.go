package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventKind names a job lifecycle event
type EventKind string

const (
	EventJobCreated   EventKind = "job:created"
	EventJobUpdated   EventKind = "job:updated"
	EventJobProgress  EventKind = "job:progress"
	EventJobCompleted EventKind = "job:completed"
	EventJobFailed    EventKind = "job:failed"
)

// JobEvent is a fire-and-forget lifecycle notification
type JobEvent struct {
	Kind      EventKind `json:"kind"`
	JobID     uuid.UUID `json:"job_id"`
	Status    JobStatus `json:"status"`
	Progress  float64   `json:"progress"` // 0-100
	Stage     string    `json:"stage,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventPublisher publishes job lifecycle events. Publishing is
// fire-and-forget; no acknowledgement is expected by callers.
type EventPublisher interface {
	PublishJobEvent(ctx context.Context, event *JobEvent) error
}

// NoopPublisher drops all events. Used in standalone mode and tests.
type NoopPublisher struct{}

// PublishJobEvent implements EventPublisher
func (NoopPublisher) PublishJobEvent(_ context.Context, _ *JobEvent) error { return nil }
