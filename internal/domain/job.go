package domain

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is embedded in serialized progress/results blobs so that
// readers of persisted jobs can detect incompatible shapes.
const SchemaVersion = 1

// JobStatus represents the status of an automation job
type JobStatus string

const (
	JobStatusPending       JobStatus = "pending"
	JobStatusCrawling      JobStatus = "crawling"
	JobStatusProcessingOCR JobStatus = "processing-ocr"
	JobStatusProductsSaved JobStatus = "products-saved"
	JobStatusMatching      JobStatus = "matching"
	JobStatusRendering     JobStatus = "rendering"
	JobStatusCompleted     JobStatus = "completed"
	JobStatusFailed        JobStatus = "failed"
	JobStatusCancelled     JobStatus = "cancelled"
)

// IsTerminal returns true if the job is in a terminal state
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// CanCancel returns true if the job can still be cancelled
func (s JobStatus) CanCancel() bool {
	return !s.IsTerminal()
}

// stageOrder maps each status to its position in the forward-only stage
// sequence. failed/cancelled are reachable from anywhere.
var stageOrder = map[JobStatus]int{
	JobStatusPending:       0,
	JobStatusCrawling:      1,
	JobStatusProcessingOCR: 2,
	JobStatusProductsSaved: 3,
	JobStatusMatching:      4,
	JobStatusRendering:     5,
	JobStatusCompleted:     6,
}

// CanTransitionTo reports whether moving from s to next honors the
// forward-only invariant.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	if next == JobStatusFailed || next == JobStatusCancelled {
		return !s.IsTerminal()
	}
	from, ok := stageOrder[s]
	if !ok {
		return false
	}
	to, ok := stageOrder[next]
	if !ok {
		return false
	}
	return to > from
}

// AutomationJob is the aggregate root driven through the pipeline
type AutomationJob struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Status JobStatus `json:"status"`

	Config   JobConfig   `json:"config"`
	Progress JobProgress `json:"progress"`
	Results  JobResults  `json:"results"`

	FailedStage  *string `json:"failed_stage,omitempty"`
	ErrorMessage *string `json:"error_message,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// JobConfig contains the automation configuration
type JobConfig struct {
	TargetURL         string        `json:"target_url"`
	MaxProducts       int           `json:"max_products"`
	FollowPagination  bool          `json:"follow_pagination"`
	FullShopScan      bool          `json:"full_shop_scan"`
	ScreenshotQuality int           `json:"screenshot_quality"`
	Timeout           time.Duration `json:"timeout"`

	// ReferencePath enables the matching stage when set. It points to an
	// Excel workbook with the reference article dataset.
	ReferencePath  string  `json:"reference_path,omitempty"`
	MatchThreshold float64 `json:"match_threshold,omitempty"`

	// Render enables the rendering stage when set.
	Render *RenderConfig `json:"render,omitempty"`
}

// RenderConfig configures the optional label-sheet rendering stage
type RenderConfig struct {
	PaperType   string  `json:"paper_type"`  // a4, a3, letter
	Orientation string  `json:"orientation"` // portrait, landscape
	Format      string  `json:"format"`      // png, jpeg, pdf
	DPI         int     `json:"dpi"`
	LabelScale  string  `json:"label_scale"` // fit, cover
	CutMarks    bool    `json:"cut_marks"`
	MarginMM    float64 `json:"margin_mm"`
	SpacingMM   float64 `json:"spacing_mm"`
}

// JobProgress tracks pipeline progress
type JobProgress struct {
	SchemaVersion       int      `json:"schema_version"`
	CurrentStep         string   `json:"current_step"`
	TotalSteps          int      `json:"total_steps"`
	CurrentStepProgress float64  `json:"current_step_progress"` // 0-100 within the step
	Overall             float64  `json:"overall"`               // 0-100 across the job
	ProductsFound       int      `json:"products_found"`
	ProductsProcessed   int      `json:"products_processed"`
	LabelsGenerated     int      `json:"labels_generated"`
	Errors              []string `json:"errors,omitempty"`
}

// JobResults accumulates stage outputs
type JobResults struct {
	SchemaVersion int             `json:"schema_version"`
	CrawlJobID    *uuid.UUID      `json:"crawl_job_id,omitempty"`
	Screenshots   []Screenshot    `json:"screenshots,omitempty"`
	OCRResults    []ExtractedData `json:"ocr_results,omitempty"`
	MatchResults  []MatchResult   `json:"match_results,omitempty"`
	Labels        []string        `json:"labels,omitempty"` // rendered artifact keys
	Summary       *Summary        `json:"summary,omitempty"`
}

// Summary is the final results summary exposed to callers
type Summary struct {
	TotalProducts       int           `json:"totalProducts"`
	SuccessfulOCR       int           `json:"successfulOCR"`
	FailedOCR           int           `json:"failedOCR"`
	SuccessfulMatches   int           `json:"successfulMatches"`
	FailedMatches       int           `json:"failedMatches"`
	LabelsGenerated     int           `json:"labelsGenerated"`
	AverageConfidence   float64       `json:"averageConfidence"`
	TotalProcessingTime time.Duration `json:"totalProcessingTime"`
}

// SubmitRequest is the request to submit a new automation job
type SubmitRequest struct {
	Name              string        `json:"name"`
	TargetURL         string        `json:"target_url"`
	MaxProducts       int           `json:"max_products"`
	FollowPagination  bool          `json:"follow_pagination"`
	FullShopScan      bool          `json:"full_shop_scan"`
	ScreenshotQuality int           `json:"screenshot_quality"`
	TimeoutSeconds    int           `json:"timeout_seconds"`
	ReferencePath     string        `json:"reference_path,omitempty"`
	MatchThreshold    float64       `json:"match_threshold,omitempty"`
	Render            *RenderConfig `json:"render,omitempty"`
}

// Validate checks the request for malformed configuration
func (r *SubmitRequest) Validate() error {
	if strings.TrimSpace(r.TargetURL) == "" {
		return fmt.Errorf("%w: target_url is required", ErrValidation)
	}
	u, err := url.Parse(r.TargetURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: target_url must be an absolute URL", ErrValidation)
	}
	if r.MaxProducts < 0 {
		return fmt.Errorf("%w: max_products must not be negative", ErrValidation)
	}
	if r.ScreenshotQuality < 0 || r.ScreenshotQuality > 100 {
		return fmt.Errorf("%w: screenshot_quality must be within 0-100", ErrValidation)
	}
	if r.MatchThreshold < 0 || r.MatchThreshold > 1 {
		return fmt.Errorf("%w: match_threshold must be within 0-1", ErrValidation)
	}
	if r.Render != nil {
		switch r.Render.Format {
		case "", "png", "jpeg", "pdf":
		default:
			return fmt.Errorf("%w: render format %q not supported", ErrValidation, r.Render.Format)
		}
	}
	return nil
}

// ToJob converts a SubmitRequest into a pending AutomationJob with defaults
func (r *SubmitRequest) ToJob() *AutomationJob {
	now := time.Now().UTC()

	cfg := JobConfig{
		TargetURL:         r.TargetURL,
		MaxProducts:       r.MaxProducts,
		FollowPagination:  r.FollowPagination,
		FullShopScan:      r.FullShopScan,
		ScreenshotQuality: r.ScreenshotQuality,
		Timeout:           time.Duration(r.TimeoutSeconds) * time.Second,
		ReferencePath:     r.ReferencePath,
		MatchThreshold:    r.MatchThreshold,
		Render:            r.Render,
	}

	if cfg.MaxProducts == 0 {
		cfg.MaxProducts = 50
	}
	if cfg.ScreenshotQuality == 0 {
		cfg.ScreenshotQuality = 80
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MatchThreshold == 0 {
		cfg.MatchThreshold = 0.75
	}
	if cfg.Render != nil {
		if cfg.Render.PaperType == "" {
			cfg.Render.PaperType = "a4"
		}
		if cfg.Render.Format == "" {
			cfg.Render.Format = "png"
		}
		if cfg.Render.DPI == 0 {
			cfg.Render.DPI = 300
		}
		if cfg.Render.LabelScale == "" {
			cfg.Render.LabelScale = "fit"
		}
		if cfg.Render.MarginMM == 0 {
			cfg.Render.MarginMM = 5
		}
		if cfg.Render.SpacingMM == 0 {
			cfg.Render.SpacingMM = 2
		}
	}

	name := r.Name
	if name == "" {
		name = cfg.TargetURL
	}

	totalSteps := 3
	if cfg.ReferencePath != "" {
		totalSteps++
	}
	if cfg.Render != nil {
		totalSteps++
	}

	return &AutomationJob{
		ID:     uuid.New(),
		Name:   name,
		Status: JobStatusPending,
		Config: cfg,
		Progress: JobProgress{
			SchemaVersion: SchemaVersion,
			TotalSteps:    totalSteps,
		},
		Results: JobResults{
			SchemaVersion: SchemaVersion,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}
