package sqlite

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

// JobRepository implements domain.JobRepository for SQLite
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
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	configJSON, progressJSON, resultsJSON, err := marshalBlobs(job)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query,
		job.ID.String(), job.Name, string(job.Status),
		configJSON, progressJSON, resultsJSON, domain.SchemaVersion,
		job.FailedStage, job.ErrorMessage,
		job.CreatedAt.Format(time.RFC3339), job.UpdatedAt.Format(time.RFC3339),
		nullTime(job.StartedAt), nullTime(job.CompletedAt),
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
		WHERE id = ?
	`

	job, err := scanJob(r.db.QueryRowContext(ctx, query, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, domain.ErrJobNotFound)
	}
	return job, err
}

// Update persists the full job snapshot
func (r *JobRepository) Update(ctx context.Context, job *domain.AutomationJob) error {
	query := `
		UPDATE automation_jobs SET
			name = ?, status = ?,
			config = ?, progress = ?, results = ?,
			failed_stage = ?, error_message = ?,
			updated_at = ?, started_at = ?, completed_at = ?
		WHERE id = ?
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
		job.UpdatedAt.Format(time.RFC3339), nullTime(job.StartedAt), nullTime(job.CompletedAt),
		job.ID.String(),
	)
	if err != nil {
		return err
	}
	return requireRow(res, job.ID)
}

// UpdateStatus updates only the status of a job
func (r *JobRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE automation_jobs SET status = ?, updated_at = ? WHERE id = ?",
		string(status), time.Now().UTC().Format(time.RFC3339), id.String(),
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
		LIMIT ? OFFSET ?
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
	res, err := r.db.ExecContext(ctx, "DELETE FROM automation_jobs WHERE id = ?", id.String())
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
	var idStr, statusStr string
	var configJSON, progressJSON, resultsJSON string
	var failedStage, errorMessage sql.NullString
	var createdAtStr, updatedAtStr string
	var startedAtStr, completedAtStr sql.NullString

	err := row.Scan(
		&idStr, &job.Name, &statusStr,
		&configJSON, &progressJSON, &resultsJSON,
		&failedStage, &errorMessage,
		&createdAtStr, &updatedAtStr, &startedAtStr, &completedAtStr,
	)
	if err != nil {
		return nil, err
	}

	job.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse job ID: %w", err)
	}
	job.Status = domain.JobStatus(statusStr)

	if err := json.Unmarshal([]byte(configJSON), &job.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := json.Unmarshal([]byte(progressJSON), &job.Progress); err != nil {
		return nil, fmt.Errorf("failed to unmarshal progress: %w", err)
	}
	if err := json.Unmarshal([]byte(resultsJSON), &job.Results); err != nil {
		return nil, fmt.Errorf("failed to unmarshal results: %w", err)
	}

	if failedStage.Valid {
		job.FailedStage = &failedStage.String
	}
	if errorMessage.Valid {
		job.ErrorMessage = &errorMessage.String
	}

	job.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	job.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	job.StartedAt = parseNullTime(startedAtStr)
	job.CompletedAt = parseNullTime(completedAtStr)

	return job, nil
}

func marshalBlobs(job *domain.AutomationJob) (config, progress, results string, err error) {
	configJSON, err := json.Marshal(job.Config)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to marshal config: %w", err)
	}
	progressJSON, err := json.Marshal(job.Progress)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to marshal progress: %w", err)
	}
	resultsJSON, err := json.Marshal(job.Results)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to marshal results: %w", err)
	}
	return string(configJSON), string(progressJSON), string(resultsJSON), nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
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
