// Package pipeline drives automation jobs through their stages: crawl,
// OCR, persistence, and the optional matching and rendering steps.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/printwerk/labelpress/internal/domain"
	"github.com/printwerk/labelpress/internal/storage"
)

// Stage weights sum to 100. OCR dominates wall-clock time on real shops,
// so it gets half the progress range.
const (
	weightCrawl   = 25.0
	weightOCR     = 50.0
	weightPersist = 15.0
	weightTail    = 10.0
)

// crawlPollInterval is the fallback cadence for reading crawl progress
// when the completion channel has not fired yet.
const crawlPollInterval = time.Second

const defaultOCRBatch = 10

// Crawler runs shop crawls and exposes their progress
type Crawler interface {
	StartCrawl(ctx context.Context, targetURL string, cfg domain.CrawlConfig) (uuid.UUID, error)
	GetJob(id uuid.UUID) (*domain.CrawlJob, error)
	Wait(id uuid.UUID) (<-chan *domain.CrawlJob, error)
}

// Extractor turns stored screenshots into structured product data
type Extractor interface {
	ProcessScreenshot(ctx context.Context, imagePath string) (*domain.ExtractedData, error)
	ProcessArticleElements(ctx context.Context, dir, articleNumber string) (*domain.ExtractedData, error)
}

// Matcher correlates extractions against the reference dataset
type Matcher interface {
	BatchMatch(data []*domain.ExtractedData, reference []*domain.Article) []*domain.MatchResult
}

// Composer lays out and renders label sheets
type Composer interface {
	CreateLayout(labels []string, cfg domain.RenderConfig) (*domain.PrintLayout, error)
	Export(ctx context.Context, l *domain.PrintLayout, format string) ([]byte, error)
}

// ReferenceLoader loads the reference article dataset for matching
type ReferenceLoader func(ctx context.Context, path string) ([]*domain.Article, error)

// Deduper claims product folder keys across runs, so repeated scans of
// the same shop skip products an earlier job already processed
type Deduper interface {
	IsDuplicate(ctx context.Context, folderKey string) (bool, error)
}

// Config configures an Orchestrator
type Config struct {
	// OCRBatch bounds concurrent OCR workers (default 10)
	OCRBatch int

	// Dedupe enables cross-run product deduplication when set
	Dedupe Deduper
}

// Orchestrator owns the automation job state machine. Every status or
// progress mutation is persisted and published before the next stage
// proceeds, so observers never see the pipeline ahead of the job record.
type Orchestrator struct {
	jobs     domain.JobRepository
	articles domain.ArticleRepository
	events   domain.EventPublisher
	store    storage.BlobStore

	crawler   Crawler
	extractor Extractor
	matcher   Matcher
	composer  Composer
	reference ReferenceLoader
	dedupe    Deduper

	ocrBatch int
}

// New creates an Orchestrator
func New(
	jobs domain.JobRepository,
	articles domain.ArticleRepository,
	events domain.EventPublisher,
	store storage.BlobStore,
	crawler Crawler,
	extractor Extractor,
	matcher Matcher,
	composer Composer,
	reference ReferenceLoader,
	cfg Config,
) *Orchestrator {
	if events == nil {
		events = domain.NoopPublisher{}
	}
	batch := cfg.OCRBatch
	if batch <= 0 {
		batch = defaultOCRBatch
	}
	return &Orchestrator{
		jobs:      jobs,
		articles:  articles,
		events:    events,
		store:     store,
		crawler:   crawler,
		extractor: extractor,
		matcher:   matcher,
		composer:  composer,
		reference: reference,
		dedupe:    cfg.Dedupe,
		ocrBatch:  batch,
	}
}

// Run executes the full pipeline for one job. Cancellation is observed at
// stage boundaries: a running stage finishes its current work before the
// job stops.
func (o *Orchestrator) Run(ctx context.Context, jobID uuid.UUID) error {
	job, err := o.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		log.Printf("pipeline: job %s already %s, skipping", jobID, job.Status)
		return nil
	}

	started := time.Now()
	startedAt := started.UTC()
	job.StartedAt = &startedAt

	// Stage 1: crawl
	o.enterStage(job, domain.JobStatusCrawling, "crawl")
	if err := o.save(ctx, job, domain.EventJobUpdated, "crawl started"); err != nil {
		return err
	}

	shots, err := o.runCrawl(ctx, job)
	if err != nil {
		return o.failJob(ctx, job, "crawl", err)
	}
	job.Results.Screenshots = shots
	job.Progress.ProductsFound = len(shots)

	if stop, err := o.stageBoundary(ctx, job); stop || err != nil {
		return err
	}

	// Stage 2: OCR over deduplicated screenshots
	o.enterStage(job, domain.JobStatusProcessingOCR, "ocr")
	if err := o.save(ctx, job, domain.EventJobUpdated, "ocr started"); err != nil {
		return err
	}

	unique := o.filterSeen(ctx, job.ID, dedupeScreenshots(shots))
	job.Progress.ProductsFound = len(unique)

	extractions, err := o.runOCR(ctx, job, unique)
	if err != nil {
		return o.failJob(ctx, job, "ocr", err)
	}
	job.Results.OCRResults = derefAll(extractions)

	if stop, err := o.stageBoundary(ctx, job); stop || err != nil {
		return err
	}

	// Stage 3: persist extracted articles
	o.enterStage(job, domain.JobStatusProductsSaved, "persist")
	if err := o.save(ctx, job, domain.EventJobUpdated, "persisting articles"); err != nil {
		return err
	}

	counts, err := o.persistArticles(ctx, extractions)
	if err != nil {
		return o.failJob(ctx, job, "persist", err)
	}
	job.Progress.Overall = weightCrawl + weightOCR + weightPersist
	log.Printf("pipeline: job %s articles created=%d updated=%d skipped=%d",
		job.ID, counts.Created, counts.Updated, counts.Skipped)

	if stop, err := o.stageBoundary(ctx, job); stop || err != nil {
		return err
	}

	matchBase, matchWeight, renderBase, renderWeight := tailSpans(job.Config)

	// Stage 4: optional matching against the reference dataset
	if job.Config.ReferencePath != "" {
		o.enterStage(job, domain.JobStatusMatching, "match")
		job.Progress.Overall = matchBase
		if err := o.save(ctx, job, domain.EventJobUpdated, "matching against reference"); err != nil {
			return err
		}

		matches, err := o.runMatching(ctx, job, extractions)
		if err != nil {
			return o.failJob(ctx, job, "match", err)
		}
		job.Results.MatchResults = matches
		job.Progress.Overall = matchBase + matchWeight

		if stop, err := o.stageBoundary(ctx, job); stop || err != nil {
			return err
		}
	}

	// Stage 5: optional label sheet rendering
	if job.Config.Render != nil {
		o.enterStage(job, domain.JobStatusRendering, "render")
		job.Progress.Overall = renderBase
		if err := o.save(ctx, job, domain.EventJobUpdated, "rendering label sheet"); err != nil {
			return err
		}

		labels, err := o.runRendering(ctx, job, unique)
		if err != nil {
			return o.failJob(ctx, job, "render", err)
		}
		job.Results.Labels = labels
		job.Progress.LabelsGenerated = len(unique)
		job.Progress.Overall = renderBase + renderWeight
	}

	// Completion
	job.Status = domain.JobStatusCompleted
	job.Progress.CurrentStep = "completed"
	job.Progress.CurrentStepProgress = 100
	job.Progress.Overall = 100
	job.Results.Summary = o.summarize(job, time.Since(started))

	completedAt := time.Now().UTC()
	job.CompletedAt = &completedAt

	return o.save(ctx, job, domain.EventJobCompleted, "pipeline completed")
}

// enterStage advances the forward-only status machine
func (o *Orchestrator) enterStage(job *domain.AutomationJob, status domain.JobStatus, step string) {
	if job.Status.CanTransitionTo(status) {
		job.Status = status
	}
	job.Progress.CurrentStep = step
	job.Progress.CurrentStepProgress = 0
}

// stageBoundary reloads the job record and honors an external cancel
// before the next stage starts.
func (o *Orchestrator) stageBoundary(ctx context.Context, job *domain.AutomationJob) (bool, error) {
	if err := ctx.Err(); err != nil {
		return true, err
	}

	current, err := o.jobs.GetByID(ctx, job.ID)
	if err != nil {
		return true, err
	}
	if current.Status != domain.JobStatusCancelled {
		return false, nil
	}

	log.Printf("pipeline: job %s cancelled, stopping before next stage", job.ID)
	job.Status = domain.JobStatusCancelled
	completedAt := time.Now().UTC()
	job.CompletedAt = &completedAt
	return true, o.save(ctx, job, domain.EventJobUpdated, "job cancelled")
}

// runCrawl starts the crawl and follows its progress until terminal,
// mapping crawl-internal progress into this stage's slice of the overall
// range. The completion channel is authoritative; polling covers
// progress updates in between.
func (o *Orchestrator) runCrawl(ctx context.Context, job *domain.AutomationJob) ([]domain.Screenshot, error) {
	crawlID, err := o.crawler.StartCrawl(ctx, job.Config.TargetURL, domain.CrawlConfig{
		MaxProducts:       job.Config.MaxProducts,
		FollowPagination:  job.Config.FollowPagination,
		FullShopScan:      job.Config.FullShopScan,
		ScreenshotQuality: job.Config.ScreenshotQuality,
		Timeout:           job.Config.Timeout,
	})
	if err != nil {
		return nil, err
	}
	job.Results.CrawlJobID = &crawlID

	waitCh, err := o.crawler.Wait(crawlID)
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(crawlPollInterval)
	defer ticker.Stop()

	var final *domain.CrawlJob
	for final == nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case done, ok := <-waitCh:
			if ok && done != nil {
				final = done
				continue
			}
			// Channel closed without a value; fall back to a direct read
			snap, err := o.crawler.GetJob(crawlID)
			if err != nil {
				return nil, err
			}
			if !snap.Status.IsTerminal() {
				return nil, fmt.Errorf("crawl %s ended without result", crawlID)
			}
			final = snap

		case <-ticker.C:
			snap, err := o.crawler.GetJob(crawlID)
			if err != nil {
				continue
			}
			if snap.Status.IsTerminal() {
				final = snap
				continue
			}
			job.Progress.CurrentStepProgress = snap.Results.Stats.Progress
			job.Progress.Overall = weightCrawl * snap.Results.Stats.Progress / 100
			job.Progress.ProductsFound = snap.Results.Stats.ProductsFound
			if err := o.save(ctx, job, domain.EventJobProgress, "crawling"); err != nil {
				log.Printf("pipeline: job %s progress save failed: %v", job.ID, err)
			}
		}
	}

	if final.Status == domain.CrawlStatusFailed {
		msg := "crawl failed"
		if n := len(final.Results.Errors); n > 0 {
			msg = final.Results.Errors[n-1].Message
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrNavigation, msg)
	}

	job.Progress.CurrentStepProgress = 100
	job.Progress.Overall = weightCrawl
	return final.Results.Screenshots, nil
}

// dedupeScreenshots keeps the first screenshot per product folder key.
// Later duplicates vanish from totals entirely instead of counting as
// failures.
func dedupeScreenshots(shots []domain.Screenshot) []domain.Screenshot {
	seen := make(map[string]bool, len(shots))
	unique := make([]domain.Screenshot, 0, len(shots))
	for _, shot := range shots {
		key := shot.FolderKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, shot)
	}
	return unique
}

// filterSeen drops screenshots whose product key was already claimed by
// an earlier run. A dedupe store outage keeps the screenshot: reprocessing
// a product is cheaper than silently losing it.
func (o *Orchestrator) filterSeen(ctx context.Context, jobID uuid.UUID, shots []domain.Screenshot) []domain.Screenshot {
	if o.dedupe == nil {
		return shots
	}

	kept := make([]domain.Screenshot, 0, len(shots))
	for _, shot := range shots {
		dup, err := o.dedupe.IsDuplicate(ctx, shot.FolderKey())
		if err != nil {
			log.Printf("pipeline: job %s dedupe check for %s failed: %v", jobID, shot.FolderKey(), err)
			kept = append(kept, shot)
			continue
		}
		if dup {
			continue
		}
		kept = append(kept, shot)
	}

	if skipped := len(shots) - len(kept); skipped > 0 {
		log.Printf("pipeline: job %s skipping %d products processed by earlier runs", jobID, skipped)
	}
	return kept
}

// runOCR extracts all unique screenshots in bounded concurrent batches.
// A failed item becomes an error-carrying record; it never aborts the
// stage.
func (o *Orchestrator) runOCR(ctx context.Context, job *domain.AutomationJob, unique []domain.Screenshot) ([]*domain.ExtractedData, error) {
	results := make([]*domain.ExtractedData, len(unique))

	var mu sync.Mutex
	processed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.ocrBatch)

	for i, shot := range unique {
		g.Go(func() error {
			data := o.extractOne(gctx, shot)
			results[i] = data

			mu.Lock()
			processed++
			job.Progress.ProductsProcessed = processed
			job.Progress.CurrentStepProgress = float64(processed) / float64(len(unique)) * 100
			job.Progress.Overall = weightCrawl + weightOCR*float64(processed)/float64(len(unique))
			if data.Error != "" {
				job.Progress.Errors = append(job.Progress.Errors,
					fmt.Sprintf("ocr %s: %s", data.ProductKey, data.Error))
			}
			err := o.save(gctx, job, domain.EventJobProgress, "ocr")
			mu.Unlock()

			if err != nil {
				log.Printf("pipeline: job %s progress save failed: %v", job.ID, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// extractOne prefers the specialized crop path when the crawler captured
// element crops, falling back to whole-page recognition.
func (o *Orchestrator) extractOne(ctx context.Context, shot domain.Screenshot) *domain.ExtractedData {
	var data *domain.ExtractedData
	var err error

	if len(shot.Elements) > 0 {
		data, err = o.extractor.ProcessArticleElements(ctx, path.Dir(shot.ImagePath), "")
	} else {
		data, err = o.extractor.ProcessScreenshot(ctx, shot.ImagePath)
	}

	if err != nil {
		data = &domain.ExtractedData{
			SourcePath: shot.ImagePath,
			Error:      err.Error(),
		}
	}
	data.ProductKey = shot.FolderKey()
	return data
}

// persistArticles upserts every usable extraction
func (o *Orchestrator) persistArticles(ctx context.Context, extractions []*domain.ExtractedData) (domain.UpsertCounts, error) {
	var articles []*domain.Article
	for _, data := range extractions {
		if data.Usable() {
			articles = append(articles, domain.FromExtracted(data))
		}
	}
	if len(articles) == 0 {
		return domain.UpsertCounts{}, nil
	}
	return o.articles.Upsert(ctx, articles)
}

// runMatching loads the reference dataset and correlates the usable
// extractions against it.
func (o *Orchestrator) runMatching(ctx context.Context, job *domain.AutomationJob, extractions []*domain.ExtractedData) ([]domain.MatchResult, error) {
	reference, err := o.reference(ctx, job.Config.ReferencePath)
	if err != nil {
		return nil, err
	}

	var usable []*domain.ExtractedData
	for _, data := range extractions {
		if data.Error == "" {
			usable = append(usable, data)
		}
	}

	matches := o.matcher.BatchMatch(usable, reference)
	return derefAll(matches), nil
}

// runRendering composes the label sheet from the captured screenshots
// and stores the rendered artifact.
func (o *Orchestrator) runRendering(ctx context.Context, job *domain.AutomationJob, unique []domain.Screenshot) ([]string, error) {
	labelKeys := make([]string, 0, len(unique))
	for _, shot := range unique {
		labelKeys = append(labelKeys, shot.ImagePath)
	}

	cfg := *job.Config.Render
	layout, err := o.composer.CreateLayout(labelKeys, cfg)
	if err != nil {
		return nil, err
	}

	artifact, err := o.composer.Export(ctx, layout, cfg.Format)
	if err != nil {
		return nil, err
	}

	ext := cfg.Format
	if ext == "" {
		ext = "png"
	}
	key := storage.Join("renders", job.ID.String(), "labels."+ext)
	if err := o.store.Put(ctx, key, artifact); err != nil {
		return nil, err
	}
	return []string{key}, nil
}

// summarize builds the final results summary
func (o *Orchestrator) summarize(job *domain.AutomationJob, elapsed time.Duration) *domain.Summary {
	summary := &domain.Summary{
		TotalProducts:       len(job.Results.OCRResults),
		LabelsGenerated:     job.Progress.LabelsGenerated,
		TotalProcessingTime: elapsed,
	}

	var confidenceSum float64
	for i := range job.Results.OCRResults {
		if job.Results.OCRResults[i].Error == "" {
			summary.SuccessfulOCR++
			confidenceSum += job.Results.OCRResults[i].Confidence.Overall
		} else {
			summary.FailedOCR++
		}
	}
	if summary.SuccessfulOCR > 0 {
		summary.AverageConfidence = confidenceSum / float64(summary.SuccessfulOCR)
	}

	if job.Config.ReferencePath != "" {
		summary.SuccessfulMatches = len(job.Results.MatchResults)
		summary.FailedMatches = summary.SuccessfulOCR - summary.SuccessfulMatches
		if summary.FailedMatches < 0 {
			summary.FailedMatches = 0
		}
	}
	return summary
}

// failJob records the failure on the job and publishes the terminal
// event. The stage error is returned so queue logs carry the cause.
func (o *Orchestrator) failJob(ctx context.Context, job *domain.AutomationJob, stage string, cause error) error {
	log.Printf("pipeline: job %s failed at %s: %v", job.ID, stage, cause)

	msg := cause.Error()
	job.Status = domain.JobStatusFailed
	job.FailedStage = &stage
	job.ErrorMessage = &msg
	completedAt := time.Now().UTC()
	job.CompletedAt = &completedAt

	if err := o.save(ctx, job, domain.EventJobFailed, msg); err != nil {
		log.Printf("pipeline: job %s failure save failed: %v", job.ID, err)
	}
	return cause
}

// save persists the job snapshot and publishes the corresponding event.
// Event publishing is fire-and-forget; a broker outage never fails the
// pipeline.
func (o *Orchestrator) save(ctx context.Context, job *domain.AutomationJob, kind domain.EventKind, message string) error {
	if err := o.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("persist job %s: %w", job.ID, err)
	}

	event := &domain.JobEvent{
		Kind:      kind,
		JobID:     job.ID,
		Status:    job.Status,
		Progress:  job.Progress.Overall,
		Stage:     job.Progress.CurrentStep,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
	if err := o.events.PublishJobEvent(ctx, event); err != nil {
		log.Printf("pipeline: job %s event %s publish failed: %v", job.ID, kind, err)
	}
	return nil
}

// tailSpans splits the final 10% between the optional stages
func tailSpans(cfg domain.JobConfig) (matchBase, matchWeight, renderBase, renderWeight float64) {
	base := weightCrawl + weightOCR + weightPersist

	hasMatch := cfg.ReferencePath != ""
	hasRender := cfg.Render != nil

	switch {
	case hasMatch && hasRender:
		return base, weightTail / 2, base + weightTail/2, weightTail / 2
	case hasMatch:
		return base, weightTail, 100, 0
	case hasRender:
		return 100, 0, base, weightTail
	default:
		return 100, 0, 100, 0
	}
}

func derefAll[T any](items []*T) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if item != nil {
			out = append(out, *item)
		}
	}
	return out
}
