// Package managerrunner runs the API side of the system: it accepts
// jobs over HTTP, persists them and hands them to workers through the
// Redis queue.
package managerrunner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/printwerk/labelpress/internal/api"
	"github.com/printwerk/labelpress/internal/api/handlers"
	"github.com/printwerk/labelpress/internal/cache"
	"github.com/printwerk/labelpress/internal/domain"
	"github.com/printwerk/labelpress/internal/mq"
	"github.com/printwerk/labelpress/internal/queue"
	"github.com/printwerk/labelpress/internal/service"
	"github.com/printwerk/labelpress/runner"
)

// ManagerRunner serves the job API without running any pipeline work
type ManagerRunner struct {
	cfg       *runner.Config
	repos     *runner.Repositories
	srv       *http.Server
	queue     *queue.Queue
	publisher mq.Publisher
	consumer  mq.Consumer
	cache     cache.Cache
}

// New creates a ManagerRunner
func New(cfg *runner.Config) (runner.Runner, error) {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.DataFolder == "" {
		cfg.DataFolder = "."
	}
	if err := os.MkdirAll(cfg.DataFolder, os.ModePerm); err != nil {
		return nil, err
	}

	if cfg.RedisURL == "" && cfg.RedisAddr == "" {
		return nil, fmt.Errorf("manager mode requires redis (-redis-url or -redis-addr)")
	}

	repos, err := runner.OpenRepositories(cfg.Dsn, cfg.DataFolder)
	if err != nil {
		return nil, err
	}

	q, err := queue.New(&queue.Config{
		RedisURL:  cfg.RedisURL,
		RedisAddr: cfg.RedisAddr,
		Password:  cfg.RedisPass,
		DB:        cfg.RedisDB,
	})
	if err != nil {
		repos.DB.Close()
		return nil, err
	}

	var publisher mq.Publisher
	var consumer mq.Consumer
	var events domain.EventPublisher = domain.NoopPublisher{}
	if cfg.RabbitMQURL != "" {
		publisher, err = mq.NewPublisher(mq.Config{URL: cfg.RabbitMQURL})
		if err != nil {
			repos.DB.Close()
			q.Close()
			return nil, err
		}
		events = publisher

		consumer, err = mq.NewConsumer(mq.ConsumerConfig{
			URL:        cfg.RabbitMQURL,
			ConsumerID: "manager",
		})
		if err != nil {
			repos.DB.Close()
			q.Close()
			publisher.Close()
			return nil, err
		}
	}

	var c cache.Cache
	if cfg.RedisAddr != "" {
		c, err = cache.NewRedisCache(cache.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPass,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Printf("manager: redis cache unavailable, continuing without: %v", err)
			c = cache.NewNoOpCache()
		}
	} else {
		c = cache.NewNoOpCache()
	}

	store, err := runner.NewBlobStore(cfg)
	if err != nil {
		repos.DB.Close()
		q.Close()
		return nil, err
	}

	jobSvc := service.NewJobService(repos.Jobs, q, events)
	jobHandler := handlers.NewJobHandlerWithCache(jobSvc, store, c)

	router := api.NewRouter(jobHandler)
	handler := router.Setup(cfg.APIToken)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	return &ManagerRunner{
		cfg:       cfg,
		repos:     repos,
		srv:       srv,
		queue:     q,
		publisher: publisher,
		consumer:  consumer,
		cache:     c,
	}, nil
}

// Run starts the API server and the event consumer, blocking until ctx
// is cancelled
func (m *ManagerRunner) Run(ctx context.Context) error {
	egroup, ctx := errgroup.WithContext(ctx)

	if m.consumer != nil {
		egroup.Go(func() error {
			return m.consumeEvents(ctx)
		})
	}

	egroup.Go(func() error {
		return m.startServer(ctx)
	})

	return egroup.Wait()
}

func (m *ManagerRunner) startServer(ctx context.Context) error {
	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := m.srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("error shutting down server: %v", err)
		}
	}()

	log.Printf("manager API server starting on http://localhost%s", m.cfg.Addr)
	if strings.HasPrefix(m.cfg.Dsn, "postgres") {
		log.Printf("using PostgreSQL database")
	} else {
		log.Printf("using SQLite database")
	}
	log.Printf("API endpoints available at /api/v1/")

	err := m.srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// consumeEvents drops cached status entries as workers publish progress,
// so polling clients see fresh state within one request.
func (m *ManagerRunner) consumeEvents(ctx context.Context) error {
	err := m.consumer.Consume(ctx, func(ctx context.Context, event *domain.JobEvent) error {
		key := fmt.Sprintf("%s:%s", cache.KeyPrefixJobStatus, event.JobID)
		return m.cache.Delete(ctx, key)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Close cleans up resources
func (m *ManagerRunner) Close(_ context.Context) error {
	if m.consumer != nil {
		m.consumer.Close()
	}
	if m.publisher != nil {
		m.publisher.Close()
	}
	if m.cache != nil {
		m.cache.Close()
	}
	if m.queue != nil {
		m.queue.Close()
	}
	if m.repos != nil && m.repos.DB != nil {
		return m.repos.DB.Close()
	}
	return nil
}
