// Package standalonerunner runs a single automation job end to end in
// one process, without Redis or RabbitMQ. Useful for one-off scans and
// local development.
package standalonerunner

import (
	"context"
	"encoding/json"
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
	"github.com/printwerk/labelpress/internal/ocr"
	"github.com/printwerk/labelpress/internal/pipeline"
	"github.com/printwerk/labelpress/runner"
)

// StandaloneRunner drives one job through the pipeline and exits
type StandaloneRunner struct {
	cfg      *runner.Config
	repos    *runner.Repositories
	launcher *browser.Launcher
	pool     *browser.Pool
	cache    cache.Cache
	orch     *pipeline.Orchestrator
}

// New creates a StandaloneRunner
func New(cfg *runner.Config) (runner.Runner, error) {
	if cfg.TargetURL == "" {
		return nil, fmt.Errorf("standalone mode requires a shop URL (-url)")
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

	c := cache.NewMemoryCache()

	orch := pipeline.New(
		repos.Jobs,
		repos.Articles,
		domain.NoopPublisher{},
		store,
		crawler.New(pool, store),
		ocr.NewExtractor(ocr.NewTesseract(cfg.OCRLanguages...), store, ocr.Config{}),
		match.New(match.Config{FuzzyThreshold: cfg.MatchThreshold}),
		layout.NewComposer(store),
		excel.NewCachedLoader(c),
		pipeline.Config{OCRBatch: cfg.Concurrency},
	)

	return &StandaloneRunner{
		cfg:      cfg,
		repos:    repos,
		launcher: launcher,
		pool:     pool,
		cache:    c,
		orch:     orch,
	}, nil
}

// Run submits one job from the command line configuration, drives it to
// a terminal state and prints the summary to stdout.
func (s *StandaloneRunner) Run(ctx context.Context) error {
	req := &domain.SubmitRequest{
		TargetURL:         s.cfg.TargetURL,
		MaxProducts:       s.cfg.MaxProducts,
		FollowPagination:  s.cfg.FollowPagination,
		FullShopScan:      s.cfg.FullShopScan,
		ScreenshotQuality: s.cfg.ScreenshotQuality,
		TimeoutSeconds:    int(s.cfg.Timeout.Seconds()),
		ReferencePath:     s.cfg.ReferencePath,
		MatchThreshold:    s.cfg.MatchThreshold,
	}
	if s.cfg.RenderFormat != "" {
		req.Render = &domain.RenderConfig{
			PaperType: s.cfg.PaperType,
			Format:    s.cfg.RenderFormat,
			DPI:       s.cfg.RenderDPI,
			CutMarks:  s.cfg.CutMarks,
		}
	}
	if err := req.Validate(); err != nil {
		return err
	}

	job := req.ToJob()
	if err := s.repos.Jobs.Create(ctx, job); err != nil {
		return err
	}

	log.Printf("standalone: running job %s for %s", job.ID, s.cfg.TargetURL)
	if err := s.orch.Run(ctx, job.ID); err != nil {
		return err
	}

	final, err := s.repos.Jobs.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}

	out := json.NewEncoder(os.Stdout)
	out.SetIndent("", "  ")
	return out.Encode(map[string]any{
		"id":      final.ID,
		"status":  final.Status,
		"summary": final.Results.Summary,
		"labels":  final.Results.Labels,
	})
}

// Close releases all resources
func (s *StandaloneRunner) Close(ctx context.Context) error {
	if s.pool != nil {
		if err := s.pool.Shutdown(ctx); err != nil {
			log.Printf("standalone: pool shutdown: %v", err)
		}
	}
	if s.launcher != nil {
		if err := s.launcher.Close(); err != nil {
			log.Printf("standalone: launcher close: %v", err)
		}
	}
	if s.cache != nil {
		s.cache.Close()
	}
	if s.repos != nil && s.repos.DB != nil {
		return s.repos.DB.Close()
	}
	return nil
}
