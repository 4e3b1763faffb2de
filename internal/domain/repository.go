package domain

import (
	"context"

	"github.com/google/uuid"
)

// JobRepository defines the interface for automation-job persistence
type JobRepository interface {
	// Create creates a new job
	Create(ctx context.Context, job *AutomationJob) error

	// GetByID retrieves a job by ID. Returns ErrJobNotFound when missing.
	GetByID(ctx context.Context, id uuid.UUID) (*AutomationJob, error)

	// Update persists the full job snapshot (status, progress, results)
	Update(ctx context.Context, job *AutomationJob) error

	// UpdateStatus updates only the status of a job
	UpdateStatus(ctx context.Context, id uuid.UUID, status JobStatus) error

	// List retrieves jobs, newest first
	List(ctx context.Context, limit, offset int) ([]*AutomationJob, int, error)

	// Delete deletes a job by ID
	Delete(ctx context.Context, id uuid.UUID) error
}

// ArticleRepository defines the interface for article persistence
type ArticleRepository interface {
	// Upsert creates or updates articles keyed by article number and
	// reports per-record outcomes. Records without an article number are
	// counted as skipped, not failed.
	Upsert(ctx context.Context, articles []*Article) (UpsertCounts, error)

	// GetByArticleNumber retrieves one article, nil when missing
	GetByArticleNumber(ctx context.Context, articleNumber string) (*Article, error)

	// List retrieves articles ordered by article number
	List(ctx context.Context, limit, offset int) ([]*Article, int, error)

	// Count returns the number of stored articles
	Count(ctx context.Context) (int, error)
}
