package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/printwerk/labelpress/internal/domain"
)

// JobRepository implements domain.JobRepository for PostgreSQL
type JobRepository struct {
	db *sql.DB
}

// NewJobRepository creates a new JobRepository
func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create creates a new job
func (r *JobRepository) Create(ctx context.Context, job *domain.AutomationJob) error {
	query := `
		INSERT INTO automation_jobs (
			id, name, status,
			config, progress, results, schema_version,
			failed_stage, error_message,
			created_at, updated_at, started_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	configJSON, progressJSON, resultsJSON, err := marshalBlobs(job)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query,
		job.ID, job.Name, string(job.Status),
		configJSON, progressJSON, resultsJSON, domain.SchemaVersion,
		job.FailedStage, job.ErrorMessage,
		job.CreatedAt, job.UpdatedAt, job.StartedAt, job.CompletedAt,
	)
	return err
}

// GetByID retrieves a job by ID
func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.AutomationJob, error) {
	query := `
		SELECT
			id, name, status,
			config, progress, results,
			failed_stage, error_message,
			created_at, updated_at, started_at, completed_at
		FROM automation_jobs
		WHERE id = $1
	`

	job, err := scanJob(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, domain.ErrJobNotFound)
	}
	return job, err
}

// Update persists the full job snapshot
func (r *JobRepository) Update(ctx context.Context, job *domain.AutomationJob) error {
	query := `
		UPDATE automation_jobs SET
			name = $1, status = $2,
			config = $3, progress = $4, results = $5,
			failed_stage = $6, error_message = $7,
			updated_at = $8, started_at = $9, completed_at = $10
		WHERE id = $11
	`

	configJSON, progressJSON, resultsJSON, err := marshalBlobs(job)
	if err != nil {
		return err
	}

	job.UpdatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, query,
		job.Name, string(job.Status),
		configJSON, progressJSON, resultsJSON,
		job.FailedStage, job.ErrorMessage,
		job.UpdatedAt, job.StartedAt, job.CompletedAt,
		job.ID,
	)
	if err != nil {
		return err
	}
	return requireRow(res, job.ID)
}

// UpdateStatus updates only the status of a job
func (r *JobRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE automation_jobs SET status = $1, updated_at = now() WHERE id = $2",
		string(status), id,
	)
	if err != nil {
		return err
	}
	return requireRow(res, id)
}

// List retrieves jobs, newest first
func (r *JobRepository) List(ctx context.Context, limit, offset int) ([]*domain.AutomationJob, int, error) {
	if limit <= 0 {
		limit = 50
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM automation_jobs").Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT
			id, name, status,
			config, progress, results,
			failed_stage, error_message,
			created_at, updated_at, started_at, completed_at
		FROM automation_jobs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var jobs []*domain.AutomationJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, 0, err
		}
		jobs = append(jobs, job)
	}
	return jobs, total, rows.Err()
}

// Delete deletes a job by ID
func (r *JobRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM automation_jobs WHERE id = $1", id)
	if err != nil {
		return err
	}
	return requireRow(res, id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.AutomationJob, error) {
	job := &domain.AutomationJob{}
	var statusStr string
	var configJSON, progressJSON, resultsJSON []byte
	var failedStage, errorMessage sql.NullString
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&job.ID, &job.Name, &statusStr,
		&configJSON, &progressJSON, &resultsJSON,
		&failedStage, &errorMessage,
		&job.CreatedAt, &job.UpdatedAt, &startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Status = domain.JobStatus(statusStr)

	if err := json.Unmarshal(configJSON, &job.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := json.Unmarshal(progressJSON, &job.Progress); err != nil {
		return nil, fmt.Errorf("failed to unmarshal progress: %w", err)
	}
	if err := json.Unmarshal(resultsJSON, &job.Results); err != nil {
		return nil, fmt.Errorf("failed to unmarshal results: %w", err)
	}

	if failedStage.Valid {
		job.FailedStage = &failedStage.String
	}
	if errorMessage.Valid {
		job.ErrorMessage = &errorMessage.String
	}
	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}

	return job, nil
}

func marshalBlobs(job *domain.AutomationJob) (config, progress, results []byte, err error) {
	config, err = json.Marshal(job.Config)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	progress, err = json.Marshal(job.Progress)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal progress: %w", err)
	}
	results, err = json.Marshal(job.Results)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal results: %w", err)
	}
	return config, progress, results, nil
}

func requireRow(res sql.Result, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("job %s: %w", id, domain.ErrJobNotFound)
	}
	return nil
}
