package domain

import (
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CrawlStatus represents the status of a crawl job
type CrawlStatus string

const (
	CrawlStatusPending    CrawlStatus = "pending"
	CrawlStatusCrawling   CrawlStatus = "crawling"
	CrawlStatusProcessing CrawlStatus = "processing"
	CrawlStatusCompleted  CrawlStatus = "completed"
	CrawlStatusFailed     CrawlStatus = "failed"
)

// IsTerminal returns true if the crawl is finished
func (s CrawlStatus) IsTerminal() bool {
	return s == CrawlStatusCompleted || s == CrawlStatusFailed
}

// CrawlJob tracks one crawl of a target shop
type CrawlJob struct {
	ID        uuid.UUID    `json:"id"`
	TargetURL string       `json:"target_url"`
	Status    CrawlStatus  `json:"status"`
	Config    CrawlConfig  `json:"config"`
	Results   CrawlResults `json:"results"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// CrawlConfig configures a single crawl
type CrawlConfig struct {
	MaxProducts       int           `json:"max_products"`
	FollowPagination  bool          `json:"follow_pagination"`
	FullShopScan      bool          `json:"full_shop_scan"`
	ScreenshotQuality int           `json:"screenshot_quality"`
	Timeout           time.Duration `json:"timeout"`
}

// CrawlResults accumulates crawl output
type CrawlResults struct {
	Screenshots []Screenshot `json:"screenshots,omitempty"`
	Errors      []CrawlError `json:"errors,omitempty"`
	Stats       CrawlStats   `json:"stats"`
}

// CrawlError records a per-page failure that did not abort the crawl
type CrawlError struct {
	URL     string    `json:"url"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// CrawlStats tracks crawl counters
type CrawlStats struct {
	PagesVisited   int     `json:"pages_visited"`
	ProductsFound  int     `json:"products_found"`
	ProductsFailed int     `json:"products_failed"`
	Progress       float64 `json:"progress"` // 0-100
}

// Crop kinds captured per product page
const (
	CropPrice         = "price"
	CropArticleNumber = "articlenumber"
	CropDescription   = "description"
)

// Screenshot is one captured product page plus its targeted crops
type Screenshot struct {
	ID            uuid.UUID     `json:"id"`
	ProductURL    string        `json:"product_url"`
	ImagePath     string        `json:"image_path"`
	ThumbnailPath string        `json:"thumbnail_path,omitempty"`
	Metadata      ImageMetadata `json:"metadata"`

	// Elements maps crop kind (price, articlenumber, description) to the
	// stored crop image key. Filled once by the crawler.
	Elements map[string]string `json:"elements,omitempty"`
}

// ImageMetadata describes a stored image
type ImageMetadata struct {
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Format   string `json:"format"`
	FileSize int64  `json:"file_size"`
}

// FolderKey derives the deduplication key for a screenshot: the name of
// its containing folder, which the crawler sets to the product identifier.
func (s *Screenshot) FolderKey() string {
	dir := path.Dir(strings.ReplaceAll(s.ImagePath, "\\", "/"))
	return path.Base(dir)
}
