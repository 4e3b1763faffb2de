package queue

import (
	"context"
	"fmt"
	"log"

	"github.com/hibiken/asynq"
)

// JobHandler runs the automation pipeline for one queued job
type JobHandler func(ctx context.Context, payload *JobPayload) error

// Worker processes automation jobs from the Redis queue
type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	handler JobHandler
}

// WorkerConfig holds worker configuration
type WorkerConfig struct {
	RedisURL    string
	RedisAddr   string
	Password    string
	DB          int
	Concurrency int
}

// NewWorker creates a new queue worker
func NewWorker(cfg *WorkerConfig, handler JobHandler) (*Worker, error) {
	redisOpt, err := connOpt(cfg.RedisURL, cfg.RedisAddr, cfg.Password, cfg.DB)
	if err != nil {
		return nil, err
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: concurrency,
			Queues:      map[string]int{QueueDefault: 1},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("queue worker error: task=%s, error=%v", task.Type(), err)
			}),
			Logger: &asynqLogger{},
		},
	)

	w := &Worker{
		server:  server,
		mux:     asynq.NewServeMux(),
		handler: handler,
	}
	w.mux.HandleFunc(TypeJobProcess, w.handleJob)

	return w, nil
}

func (w *Worker) handleJob(ctx context.Context, task *asynq.Task) error {
	payload, err := ParsePayload(task.Payload())
	if err != nil {
		return fmt.Errorf("failed to parse payload: %w", err)
	}

	log.Printf("queue worker: processing job %s", payload.JobID)

	if err := w.handler(ctx, payload); err != nil {
		log.Printf("queue worker: job %s failed: %v", payload.JobID, err)
		return err
	}

	log.Printf("queue worker: job %s completed", payload.JobID)
	return nil
}

// Run starts the worker and blocks until ctx is cancelled
func (w *Worker) Run(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		errChan <- w.server.Run(w.mux)
	}()

	select {
	case <-ctx.Done():
		w.server.Shutdown()
		return ctx.Err()
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully shuts down the worker
func (w *Worker) Shutdown() {
	if w.server != nil {
		w.server.Shutdown()
	}
}

// asynqLogger adapts asynq logging to standard log
type asynqLogger struct{}

func (l *asynqLogger) Debug(args ...interface{}) {
	// Suppress debug logs
}

func (l *asynqLogger) Info(args ...interface{}) {
	log.Println(args...)
}

func (l *asynqLogger) Warn(args ...interface{}) {
	log.Println("[WARN]", fmt.Sprint(args...))
}

func (l *asynqLogger) Error(args ...interface{}) {
	log.Println("[ERROR]", fmt.Sprint(args...))
}

func (l *asynqLogger) Fatal(args ...interface{}) {
	log.Fatalln("[FATAL]", fmt.Sprint(args...))
}
