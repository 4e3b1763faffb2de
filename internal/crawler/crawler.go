// Package crawler drives automated shop navigation and screenshot capture
// on top of the browser pool.
package crawler

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"log"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"

	"github.com/printwerk/labelpress/internal/browser"
	"github.com/printwerk/labelpress/internal/domain"
	"github.com/printwerk/labelpress/internal/storage"
)

const (
	// maxCatalogPages bounds pagination even on a full shop scan
	maxCatalogPages = 200

	thumbnailWidth = 240
)

// Crawler captures per-product screenshots and crops from a target shop.
// Crawls run asynchronously; callers poll GetJob or block on Wait.
type Crawler struct {
	pool  *browser.Pool
	store storage.BlobStore

	chains        map[string]Chain
	linkSelectors []string
	nextSelectors []string

	mu   sync.RWMutex
	jobs map[uuid.UUID]*domain.CrawlJob
	done map[uuid.UUID]chan *domain.CrawlJob
}

// New creates a Crawler
func New(pool *browser.Pool, store storage.BlobStore) *Crawler {
	return &Crawler{
		pool:          pool,
		store:         store,
		chains:        defaultChains(),
		linkSelectors: defaultLinkSelectors,
		nextSelectors: defaultNextSelectors,
		jobs:          make(map[uuid.UUID]*domain.CrawlJob),
		done:          make(map[uuid.UUID]chan *domain.CrawlJob),
	}
}

// StartCrawl begins an asynchronous crawl and returns its job ID immediately
func (c *Crawler) StartCrawl(ctx context.Context, targetURL string, cfg domain.CrawlConfig) (uuid.UUID, error) {
	u, err := url.Parse(targetURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return uuid.Nil, fmt.Errorf("%w: target URL %q", domain.ErrValidation, targetURL)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	now := time.Now().UTC()
	job := &domain.CrawlJob{
		ID:        uuid.New(),
		TargetURL: targetURL,
		Status:    domain.CrawlStatusPending,
		Config:    cfg,
		CreatedAt: now,
		UpdatedAt: now,
	}

	c.mu.Lock()
	c.jobs[job.ID] = job
	c.done[job.ID] = make(chan *domain.CrawlJob, 1)
	c.mu.Unlock()

	go c.run(ctx, job.ID)

	return job.ID, nil
}

// GetJob returns a snapshot of a crawl job
func (c *Crawler) GetJob(id uuid.UUID) (*domain.CrawlJob, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	job, ok := c.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	snapshot := *job
	snapshot.Results.Screenshots = append([]domain.Screenshot(nil), job.Results.Screenshots...)
	snapshot.Results.Errors = append([]domain.CrawlError(nil), job.Results.Errors...)
	return &snapshot, nil
}

// Wait returns a channel that delivers the final job once the crawl is
// terminal. Cross-process observers use GetJob polling instead.
func (c *Crawler) Wait(id uuid.UUID) (<-chan *domain.CrawlJob, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ch, ok := c.done[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return ch, nil
}

func (c *Crawler) mutate(id uuid.UUID, fn func(job *domain.CrawlJob)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if job, ok := c.jobs[id]; ok {
		fn(job)
		job.UpdatedAt = time.Now().UTC()
	}
}

func (c *Crawler) finish(id uuid.UUID, status domain.CrawlStatus) {
	now := time.Now().UTC()
	c.mutate(id, func(job *domain.CrawlJob) {
		job.Status = status
		job.CompletedAt = &now
		job.Results.Stats.Progress = 100
	})

	c.mu.RLock()
	ch := c.done[id]
	c.mu.RUnlock()

	if final, err := c.GetJob(id); err == nil && ch != nil {
		ch <- final
		close(ch)
	}
}

func (c *Crawler) run(ctx context.Context, id uuid.UUID) {
	now := time.Now().UTC()
	c.mutate(id, func(job *domain.CrawlJob) {
		job.Status = domain.CrawlStatusCrawling
		job.StartedAt = &now
	})

	job, err := c.GetJob(id)
	if err != nil {
		return
	}

	links, err := c.enumerateProducts(ctx, job)
	if err != nil {
		// Total navigation failure aborts the crawl outright
		log.Printf("crawler: job %s enumeration failed: %v", id, err)
		c.mutate(id, func(j *domain.CrawlJob) {
			j.Results.Errors = append(j.Results.Errors, domain.CrawlError{
				URL:     job.TargetURL,
				Message: err.Error(),
				At:      time.Now().UTC(),
			})
		})
		c.finish(id, domain.CrawlStatusFailed)
		return
	}

	if job.Config.MaxProducts > 0 && len(links) > job.Config.MaxProducts {
		links = links[:job.Config.MaxProducts]
	}

	log.Printf("crawler: job %s capturing %d product pages", id, len(links))
	c.mutate(id, func(j *domain.CrawlJob) {
		j.Status = domain.CrawlStatusProcessing
	})

	for i, link := range links {
		if ctx.Err() != nil {
			break
		}

		shot, err := c.captureProduct(ctx, id, link, job.Config)
		c.mutate(id, func(j *domain.CrawlJob) {
			if err != nil {
				j.Results.Errors = append(j.Results.Errors, domain.CrawlError{
					URL:     link,
					Message: err.Error(),
					At:      time.Now().UTC(),
				})
				j.Results.Stats.ProductsFailed++
			} else {
				j.Results.Screenshots = append(j.Results.Screenshots, *shot)
				j.Results.Stats.ProductsFound++
			}
			j.Results.Stats.Progress = float64(i+1) / float64(len(links)) * 100
		})
		if err != nil {
			log.Printf("crawler: job %s page %s: %v", id, link, err)
		}
	}

	c.finish(id, domain.CrawlStatusCompleted)
}

// enumerateProducts walks the catalog and collects product links. With
// FullShopScan the whole catalog is enumerated before any capping; without
// it enumeration stops once MaxProducts links are known.
func (c *Crawler) enumerateProducts(ctx context.Context, job *domain.CrawlJob) ([]string, error) {
	lease, release, err := c.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	page, err := lease.Context().NewPage()
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}

	if err := c.navigate(page, job.TargetURL, job.Config.Timeout); err != nil {
		return nil, err
	}

	base, _ := url.Parse(job.TargetURL)
	seen := make(map[string]bool)
	var links []string

	for pageNo := 1; pageNo <= maxCatalogPages; pageNo++ {
		c.mutate(job.ID, func(j *domain.CrawlJob) {
			j.Results.Stats.PagesVisited++
		})

		for _, href := range c.collectLinks(page) {
			abs := resolveLink(base, href)
			if abs == "" || seen[abs] {
				continue
			}
			seen[abs] = true
			links = append(links, abs)
		}

		enough := !job.Config.FullShopScan &&
			job.Config.MaxProducts > 0 &&
			len(links) >= job.Config.MaxProducts
		if enough || !job.Config.FollowPagination {
			break
		}

		next := c.nextPageURL(page, base)
		if next == "" {
			break
		}
		if err := c.navigate(page, next, job.Config.Timeout); err != nil {
			// A broken pagination link ends enumeration but is not fatal
			log.Printf("crawler: job %s pagination stopped: %v", job.ID, err)
			break
		}
	}

	if len(links) == 0 {
		return nil, fmt.Errorf("%w: no product links found at %s", domain.ErrNavigation, job.TargetURL)
	}
	return links, nil
}

// collectLinks tries the link selector candidates in order; the first
// selector yielding any hrefs wins.
func (c *Crawler) collectLinks(page playwright.Page) []string {
	for _, selector := range c.linkSelectors {
		els, err := page.QuerySelectorAll(selector)
		if err != nil || len(els) == 0 {
			continue
		}
		var hrefs []string
		for _, el := range els {
			href, err := el.GetAttribute("href")
			if err != nil || href == "" {
				continue
			}
			hrefs = append(hrefs, href)
		}
		if len(hrefs) > 0 {
			return hrefs
		}
	}
	return nil
}

func (c *Crawler) nextPageURL(page playwright.Page, base *url.URL) string {
	for _, selector := range c.nextSelectors {
		el, err := page.QuerySelector(selector)
		if err != nil || el == nil {
			continue
		}
		href, err := el.GetAttribute("href")
		if err != nil || href == "" {
			continue
		}
		return resolveLink(base, href)
	}
	return ""
}

// captureProduct captures the full-page screenshot plus targeted crops for
// one product page using a scoped lease.
func (c *Crawler) captureProduct(ctx context.Context, jobID uuid.UUID, productURL string, cfg domain.CrawlConfig) (*domain.Screenshot, error) {
	lease, release, err := c.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	page, err := lease.Context().NewPage()
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}

	if err := c.navigate(page, productURL, cfg.Timeout); err != nil {
		return nil, err
	}

	full, err := page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
		Type:     playwright.ScreenshotTypePng,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: screenshot: %v", domain.ErrNavigation, err)
	}

	key := ProductKey(productURL)
	folder := storage.Join("crawls", jobID.String(), key)

	imagePath := storage.Join(folder, "full.png")
	if err := c.store.Put(ctx, imagePath, full); err != nil {
		return nil, err
	}

	shot := &domain.Screenshot{
		ID:         uuid.New(),
		ProductURL: productURL,
		ImagePath:  imagePath,
		Elements:   make(map[string]string),
	}

	if cfgImg, _, err := image.DecodeConfig(bytes.NewReader(full)); err == nil {
		shot.Metadata = domain.ImageMetadata{
			Width:    cfgImg.Width,
			Height:   cfgImg.Height,
			Format:   "png",
			FileSize: int64(len(full)),
		}
	}

	if thumbKey, err := c.writeThumbnail(ctx, folder, full, cfg.ScreenshotQuality); err == nil {
		shot.ThumbnailPath = thumbKey
	}

	// Targeted crops via ordered selector chains. A missing element is not
	// an error; whole-page OCR covers the gap.
	for kind, chain := range c.chains {
		el, probe, err := chain.Resolve(page)
		if err != nil {
			continue
		}
		crop, err := el.Screenshot(playwright.ElementHandleScreenshotOptions{
			Type: playwright.ScreenshotTypePng,
		})
		if err != nil {
			log.Printf("crawler: crop %s via %s failed: %v", kind, probe.Name, err)
			continue
		}
		cropKey := storage.Join(folder, kind+".png")
		if err := c.store.Put(ctx, cropKey, crop); err != nil {
			continue
		}
		shot.Elements[kind] = cropKey
	}

	return shot, nil
}

func (c *Crawler) writeThumbnail(ctx context.Context, folder string, full []byte, quality int) (string, error) {
	img, err := png.Decode(bytes.NewReader(full))
	if err != nil {
		return "", err
	}
	thumb := imaging.Resize(img, thumbnailWidth, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if quality <= 0 {
		quality = 80
	}
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return "", err
	}

	key := storage.Join(folder, "thumb.jpg")
	if err := c.store.Put(ctx, key, buf.Bytes()); err != nil {
		return "", err
	}
	return key, nil
}

func (c *Crawler) navigate(page playwright.Page, target string, timeout time.Duration) error {
	_, err := page.Goto(target, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrNavigation, target, err)
	}
	return nil
}

var keySanitizer = regexp.MustCompile(`[^a-z0-9]+`)

// ProductKey derives the deduplication key for a product URL: the final
// path segment sanitized to a folder name, with a short hash fallback for
// URLs without a usable slug.
func ProductKey(productURL string) string {
	u, err := url.Parse(productURL)
	if err == nil {
		segments := strings.Split(strings.Trim(u.Path, "/"), "/")
		for i := len(segments) - 1; i >= 0; i-- {
			slug := segments[i]
			if dot := strings.LastIndex(slug, "."); dot > 0 {
				slug = slug[:dot]
			}
			slug = keySanitizer.ReplaceAllString(strings.ToLower(slug), "-")
			slug = strings.Trim(slug, "-")
			if slug != "" {
				return slug
			}
		}
	}
	sum := sha1.Sum([]byte(productURL))
	return "product-" + hex.EncodeToString(sum[:6])
}

// resolveLink resolves href against base and normalizes it; returns "" for
// non-http links.
func resolveLink(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	abs := ref
	if base != nil {
		abs = base.ResolveReference(ref)
	}
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	abs.Fragment = ""
	return abs.String()
}
