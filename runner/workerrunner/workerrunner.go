// Package workerrunner runs the processing side of the system: it pulls
// jobs from the Redis queue and drives them through the crawl, OCR,
// matching and rendering pipeline.
package workerrunner

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/printwerk/labelpress/internal/browser"
	"github.com/printwerk/labelpress/internal/cache"
	"github.com/printwerk/labelpress/internal/crawler"
	"github.com/printwerk/labelpress/internal/domain"
	"github.com/printwerk/labelpress/internal/excel"
	"github.com/printwerk/labelpress/internal/layout"
	"github.com/printwerk/labelpress/internal/match"
	"github.com/printwerk/labelpress/internal/mq"
	"github.com/printwerk/labelpress/internal/ocr"
	"github.com/printwerk/labelpress/internal/pipeline"
	"github.com/printwerk/labelpress/internal/queue"
	"github.com/printwerk/labelpress/runner"
)

// WorkerRunner processes queued automation jobs
type WorkerRunner struct {
	cfg       *runner.Config
	repos     *runner.Repositories
	launcher  *browser.Launcher
	pool      *browser.Pool
	worker    *queue.Worker
	publisher mq.Publisher
	cache     cache.Cache
}

// New creates a WorkerRunner and wires the full pipeline
func New(cfg *runner.Config) (runner.Runner, error) {
	if cfg.RedisURL == "" && cfg.RedisAddr == "" {
		return nil, fmt.Errorf("worker mode requires redis (-redis-url or -redis-addr)")
	}
	if cfg.DataFolder == "" {
		cfg.DataFolder = "."
	}
	if err := os.MkdirAll(cfg.DataFolder, os.ModePerm); err != nil {
		return nil, err
	}

	repos, err := runner.OpenRepositories(cfg.Dsn, cfg.DataFolder)
	if err != nil {
		return nil, err
	}

	store, err := runner.NewBlobStore(cfg)
	if err != nil {
		repos.DB.Close()
		return nil, err
	}

	launcher, err := browser.NewLauncher(!cfg.Debug)
	if err != nil {
		repos.DB.Close()
		return nil, fmt.Errorf("start browser launcher: %w", err)
	}

	pool := browser.NewPool(launcher.Launch, browser.Options{
		Max: browser.DefaultMaxInstances(cfg.BrowserMax),
	})

	crawl := crawler.New(pool, store)
	engine := ocr.NewTesseract(cfg.OCRLanguages...)
	extractor := ocr.NewExtractor(engine, store, ocr.Config{})
	matcher := match.New(match.Config{FuzzyThreshold: cfg.MatchThreshold})
	composer := layout.NewComposer(store)

	var c cache.Cache
	var dedupe pipeline.Deduper
	if cfg.RedisAddr != "" {
		rc, err := cache.NewRedisCache(cache.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPass,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Printf("worker: redis cache unavailable, continuing without: %v", err)
			c = cache.NewMemoryCache()
		} else {
			c = rc
			// Reuse the cache connection for cross-run deduplication
			dedupe = queue.NewDeduperFromClient(rc.Client(), "label", 0)
		}
	} else {
		c = cache.NewMemoryCache()
	}

	var publisher mq.Publisher
	var events domain.EventPublisher = domain.NoopPublisher{}
	if cfg.RabbitMQURL != "" {
		publisher, err = mq.NewPublisher(mq.Config{URL: cfg.RabbitMQURL})
		if err != nil {
			repos.DB.Close()
			launcher.Close()
			return nil, err
		}
		events = publisher
	}

	orch := pipeline.New(
		repos.Jobs,
		repos.Articles,
		events,
		store,
		crawl,
		extractor,
		matcher,
		composer,
		excel.NewCachedLoader(c),
		pipeline.Config{
			OCRBatch: cfg.Concurrency,
			Dedupe:   dedupe,
		},
	)

	worker, err := queue.NewWorker(&queue.WorkerConfig{
		RedisURL:    cfg.RedisURL,
		RedisAddr:   cfg.RedisAddr,
		Password:    cfg.RedisPass,
		DB:          cfg.RedisDB,
		Concurrency: 1,
	}, func(ctx context.Context, payload *queue.JobPayload) error {
		return orch.Run(ctx, payload.JobID)
	})
	if err != nil {
		repos.DB.Close()
		launcher.Close()
		if publisher != nil {
			publisher.Close()
		}
		return nil, err
	}

	return &WorkerRunner{
		cfg:       cfg,
		repos:     repos,
		launcher:  launcher,
		pool:      pool,
		worker:    worker,
		publisher: publisher,
		cache:     c,
	}, nil
}

// Run starts the queue worker and blocks until ctx is cancelled
func (w *WorkerRunner) Run(ctx context.Context) error {
	log.Printf("worker starting, browsers=%d ocr-batch=%d", w.pool.Size(), w.cfg.Concurrency)
	return w.worker.Run(ctx)
}

// Close shuts down the worker and releases all resources
func (w *WorkerRunner) Close(ctx context.Context) error {
	if w.worker != nil {
		w.worker.Shutdown()
	}
	if w.pool != nil {
		if err := w.pool.Shutdown(ctx); err != nil {
			log.Printf("worker: pool shutdown: %v", err)
		}
	}
	if w.launcher != nil {
		if err := w.launcher.Close(); err != nil {
			log.Printf("worker: launcher close: %v", err)
		}
	}
	if w.publisher != nil {
		w.publisher.Close()
	}
	if w.cache != nil {
		w.cache.Close()
	}
	if w.repos != nil && w.repos.DB != nil {
		return w.repos.DB.Close()
	}
	return nil
}
