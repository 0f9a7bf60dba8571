package crawling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jonathan/plan-auditor/internal/fetch"
	"github.com/jonathan/plan-auditor/internal/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultAPIURL is the review listing endpoint of the course rating site
	DefaultAPIURL = "https://yourschool.cc/thucourse_api/api/review/"
	// DefaultPageSize is the number of reviews per page
	DefaultPageSize = 20
	// DefaultRequestDelay is the pause before each request
	DefaultRequestDelay = 400 * time.Millisecond
	// DefaultRetryDelay is the pause after a throttled or failed request
	DefaultRetryDelay = 1 * time.Second
	// DefaultMaxRetries bounds attempts per page
	DefaultMaxRetries = 3
	// DefaultConcurrency is the number of pages fetched at once
	DefaultConcurrency = 2

	rateLimitMarker = "限速"
)

// Config configures a ReviewCrawler. Zero delays mean no waiting.
type Config struct {
	APIURL       string
	PageSize     int
	RequestDelay time.Duration
	RetryDelay   time.Duration
	MaxRetries   int
	Concurrency  int
	Client       *http.Client
	Logger       *zap.Logger
}

// DefaultConfig returns the crawler settings used against the live site.
func DefaultConfig() Config {
	return Config{
		APIURL:       DefaultAPIURL,
		PageSize:     DefaultPageSize,
		RequestDelay: DefaultRequestDelay,
		RetryDelay:   DefaultRetryDelay,
		MaxRetries:   DefaultMaxRetries,
		Concurrency:  DefaultConcurrency,
	}
}

// Progress reports how many pages have been processed.
type Progress struct {
	Current    int `json:"current"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// ProgressCallback is called after each page, successful or not.
type ProgressCallback func(Progress)

// ReviewCrawler pages through the review API.
type ReviewCrawler struct {
	cfg     Config
	options *fetch.Options
	logger  *zap.Logger
	now     func() time.Time
}

// NewReviewCrawler creates a crawler, filling in missing sizes and limits.
func NewReviewCrawler(cfg Config) *ReviewCrawler {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := fetch.DefaultOptions()
	opts.Headers = map[string]string{"Accept": "application/json"}
	opts.Client = cfg.Client

	return &ReviewCrawler{cfg: cfg, options: opts, logger: logger, now: time.Now}
}

// PageURL returns the listing URL for a 1-based page number.
func (c *ReviewCrawler) PageURL(page int) string {
	return fmt.Sprintf("%s?page=%d&size=%d", c.cfg.APIURL, page, c.cfg.PageSize)
}

// PageCount returns the number of pages needed for count reviews.
func (c *ReviewCrawler) PageCount(count int) int {
	if count <= 0 {
		return 0
	}
	return (count + c.cfg.PageSize - 1) / c.cfg.PageSize
}

// FetchPage fetches one page, retrying on throttling and transport errors.
func (c *ReviewCrawler) FetchPage(ctx context.Context, page int) (*types.ReviewPage, error) {
	pageURL := c.PageURL(page)
	var lastErr error

	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		if err := sleep(ctx, c.cfg.RequestDelay); err != nil {
			return nil, err
		}

		result, err := c.fetchOnce(ctx, pageURL)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err

		var rl *RateLimitError
		if errors.As(err, &rl) {
			c.logger.Info("review page rate limited",
				zap.Int("page", page), zap.Int("attempt", attempt), zap.Int("max_retries", c.cfg.MaxRetries))
		} else {
			c.logger.Warn("review page request failed",
				zap.Int("page", page), zap.Int("attempt", attempt), zap.Error(err))
		}
		if err := sleep(ctx, c.cfg.RetryDelay); err != nil {
			return nil, err
		}
	}

	return nil, &PageError{Page: page, Attempts: c.cfg.MaxRetries, Cause: lastErr}
}

func (c *ReviewCrawler) fetchOnce(ctx context.Context, pageURL string) (*types.ReviewPage, error) {
	result, fetchErr := fetch.URL(ctx, pageURL, c.options)
	if result == nil {
		return nil, fetchErr
	}

	var page types.ReviewPage
	if err := json.Unmarshal([]byte(result.HTML), &page); err != nil {
		if fetchErr != nil {
			return nil, fetchErr
		}
		return nil, &CrawlError{Message: "failed to decode review page", Cause: err}
	}
	if strings.Contains(page.Detail, rateLimitMarker) {
		return nil, &RateLimitError{Detail: page.Detail}
	}
	if fetchErr != nil {
		return nil, fetchErr
	}
	return &page, nil
}

// CrawlResult is the outcome of a full or partial crawl.
type CrawlResult struct {
	Reviews     []types.Review
	RemoteCount int
	Pages       int
	FailedPages []int
}

// CrawlAll reads the first page for the total count, then fetches the rest
// concurrently. Pages that exhaust their retries are skipped and listed in
// FailedPages; the first page failing is an error.
func (c *ReviewCrawler) CrawlAll(ctx context.Context, onProgress ProgressCallback) (*CrawlResult, error) {
	first, err := c.FetchPage(ctx, 1)
	if err != nil {
		return nil, &CrawlError{Message: "failed to get total page count", Cause: err}
	}
	return c.crawl(ctx, first, 0, onProgress)
}

// crawl fetches pages 2 up to limit (0 = every page) after an already read first page.
func (c *ReviewCrawler) crawl(ctx context.Context, first *types.ReviewPage, limit int, onProgress ProgressCallback) (*CrawlResult, error) {
	totalPages := c.PageCount(first.Count)
	if limit > 0 && limit < totalPages {
		totalPages = limit
	}
	if totalPages < 1 {
		totalPages = 1
	}
	c.logger.Info("crawling reviews", zap.Int("remote_count", first.Count), zap.Int("pages", totalPages))

	pages := make([][]types.Review, totalPages)
	pages[0] = first.Results

	var (
		mu     sync.Mutex
		done   = 1
		failed []int
	)
	report := func() {
		if onProgress != nil {
			onProgress(Progress{Current: done, Total: totalPages, Percentage: done * 100 / totalPages})
		}
	}
	report()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for p := 2; p <= totalPages; p++ {
		g.Go(func() error {
			page, err := c.FetchPage(gctx, p)

			mu.Lock()
			defer mu.Unlock()
			done++
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				c.logger.Warn("skipping review page", zap.Int("page", p), zap.Error(err))
				failed = append(failed, p)
			} else {
				pages[p-1] = page.Results
			}
			report()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, &CrawlError{Message: "crawl interrupted", Cause: err}
	}

	result := &CrawlResult{RemoteCount: first.Count, Pages: totalPages, FailedPages: failed}
	for _, reviews := range pages {
		result.Reviews = append(result.Reviews, reviews...)
	}
	slices.Sort(result.FailedPages)
	c.logger.Info("crawl complete", zap.Int("reviews", len(result.Reviews)), zap.Int("failed_pages", len(failed)))
	return result, nil
}

// Refresh brings a local rating set up to date. When the remote count is not
// above the local total nothing is fetched and the returned flag is false.
// Otherwise the newest ceil((remote-local)/pageSize) pages are fetched, and
// the first remote-local reviews, the ones local has not seen, are merged into
// a copy of local. If any of those pages fails the refresh fails and local
// stays as it is, so the missing reviews are retried next time.
func (c *ReviewCrawler) Refresh(ctx context.Context, local *types.RatingSet, onProgress ProgressCallback) (*types.RatingSet, bool, error) {
	if local == nil {
		local = &types.RatingSet{}
	}

	first, err := c.FetchPage(ctx, 1)
	if err != nil {
		return nil, false, &CrawlError{Message: "failed to read remote review count", Cause: err}
	}
	if first.Count <= local.TotalCount {
		c.logger.Info("ratings already up to date",
			zap.Int("remote_count", first.Count), zap.Int("local_count", local.TotalCount))
		return local, false, nil
	}

	newCount := first.Count - local.TotalCount
	newPages := c.PageCount(newCount)
	c.logger.Info("refreshing ratings",
		zap.Int("remote_count", first.Count), zap.Int("local_count", local.TotalCount), zap.Int("pages", newPages))

	result, err := c.crawl(ctx, first, newPages, onProgress)
	if err != nil {
		return nil, false, err
	}
	if len(result.FailedPages) > 0 {
		return nil, false, &CrawlError{Message: fmt.Sprintf("refresh incomplete, pages %v failed", result.FailedPages)}
	}

	reviews := result.Reviews
	if len(reviews) > newCount {
		reviews = reviews[:newCount]
	}
	updated := &types.RatingSet{
		Courses:    MergeRatings(local.Courses, reviews),
		TotalCount: local.TotalCount + len(reviews),
		UpdatedAt:  c.now().UTC(),
	}
	return updated, true, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
