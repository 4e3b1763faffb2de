// Package queue provides a Redis-based job queue using Asynq
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// TypeJobProcess is the task type for full automation pipeline runs
	TypeJobProcess = "automation:process"

	// QueueDefault carries all automation jobs
	QueueDefault = "default"
)

// A pipeline run holds browser instances and an OCR engine for up to
// half an hour; retrying a partially-run job would duplicate work, so
// failures surface on the job record instead of the queue.
const (
	taskMaxRetry  = 0
	taskTimeout   = 30 * time.Minute
	taskRetention = 24 * time.Hour
)

// JobPayload is the payload for an automation job task
type JobPayload struct {
	JobID     uuid.UUID `json:"job_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Config holds Redis queue configuration
type Config struct {
	RedisURL  string
	RedisAddr string
	Password  string
	DB        int
}

// Queue is a Redis-based job queue
type Queue struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	redisOpt  asynq.RedisConnOpt
}

// New creates a new Queue
func New(cfg *Config) (*Queue, error) {
	redisOpt, err := connOpt(cfg.RedisURL, cfg.RedisAddr, cfg.Password, cfg.DB)
	if err != nil {
		return nil, err
	}

	return &Queue{
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
		redisOpt:  redisOpt,
	}, nil
}

func connOpt(redisURL, addr, password string, db int) (asynq.RedisConnOpt, error) {
	if redisURL != "" {
		opt, err := asynq.ParseRedisURI(redisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis URL: %w", err)
		}
		return opt, nil
	}
	if addr != "" {
		return asynq.RedisClientOpt{
			Addr:         addr,
			Password:     password,
			DB:           db,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolSize:     10,
		}, nil
	}
	return nil, fmt.Errorf("redis URL or address is required")
}

// Enqueue hands a job to a worker
func (q *Queue) Enqueue(ctx context.Context, jobID uuid.UUID) error {
	payload := JobPayload{
		JobID:     jobID,
		CreatedAt: time.Now(),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	task := asynq.NewTask(TypeJobProcess, data)

	opts := []asynq.Option{
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(taskMaxRetry),
		asynq.Timeout(taskTimeout),
		asynq.Retention(taskRetention),
	}

	info, err := q.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	log.Printf("queue: enqueued job %s (task_id: %s)", jobID, info.ID)
	return nil
}

// GetRedisOpt returns the Redis client options for creating a server
func (q *Queue) GetRedisOpt() asynq.RedisConnOpt {
	return q.redisOpt
}

// GetQueueStats returns queue statistics
func (q *Queue) GetQueueStats(ctx context.Context) (*asynq.QueueInfo, error) {
	return q.inspector.GetQueueInfo(QueueDefault)
}

// Close closes the queue client
func (q *Queue) Close() error {
	if q.client != nil {
		return q.client.Close()
	}
	return nil
}

// ParsePayload parses a job payload from task data
func ParsePayload(data []byte) (*JobPayload, error) {
	var payload JobPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return &payload, nil
}
