package fetch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DefaultSnapshotTTL is how long a stored plan page is reused.
const DefaultSnapshotTTL = 6 * time.Hour

// PlanSource returns a plan page. SessionFetcher and BrowserFetcher implement it.
type PlanSource interface {
	FetchPlan(ctx context.Context) (*Result, error)
}

// Snapshot is a stored plan page.
type Snapshot struct {
	Key        string
	HTML       string
	StatusCode int
	FetchedAt  time.Time
}

// SnapshotStore persists plan pages.
type SnapshotStore interface {
	GetFreshSnapshot(ctx context.Context, key string, ttl time.Duration) (*Snapshot, error)
	SaveSnapshot(ctx context.Context, snap *Snapshot) error
}

// CachedFetcher wraps a PlanSource with snapshot reuse.
type CachedFetcher struct {
	source    PlanSource
	store     SnapshotStore
	key       string
	cacheTTL  time.Duration
	skipCache bool // For testing or forcing fresh fetches
	logger    *zap.Logger
	now       func() time.Time
}

// CachedFetcherConfig holds configuration for the cached fetcher.
type CachedFetcherConfig struct {
	// Key identifies whose plan is cached, usually the account name
	Key       string
	CacheTTL  time.Duration
	SkipCache bool
	Logger    *zap.Logger
}

// NewCachedFetcher creates a new cached fetcher. A nil store disables caching.
func NewCachedFetcher(source PlanSource, store SnapshotStore, config CachedFetcherConfig) *CachedFetcher {
	if config.CacheTTL == 0 {
		config.CacheTTL = DefaultSnapshotTTL
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &CachedFetcher{
		source:    source,
		store:     store,
		key:       config.Key,
		cacheTTL:  config.CacheTTL,
		skipCache: config.SkipCache,
		logger:    config.Logger,
		now:       time.Now,
	}
}

// CachedResult extends Result with cache metadata.
type CachedResult struct {
	*Result
	FromCache bool
	FetchedAt time.Time
}

// FetchPlan returns a fresh stored snapshot when one exists, otherwise fetches
// and stores a new one. A failure to store is logged, not returned.
func (f *CachedFetcher) FetchPlan(ctx context.Context) (*CachedResult, error) {
	// Step 1: Try to get a fresh snapshot
	if !f.skipCache && f.store != nil {
		snap, err := f.store.GetFreshSnapshot(ctx, f.key, f.cacheTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to check snapshot cache: %w", err)
		}
		if snap != nil {
			f.logger.Info("using cached plan page", zap.String("key", f.key), zap.Time("fetched_at", snap.FetchedAt))
			return &CachedResult{
				Result: &Result{
					URL:        snap.Key,
					HTML:       snap.HTML,
					StatusCode: snap.StatusCode,
				},
				FromCache: true,
				FetchedAt: snap.FetchedAt,
			}, nil
		}
	}

	// Step 2: Fetch fresh content
	result, err := f.source.FetchPlan(ctx)
	if err != nil {
		return nil, err
	}
	fetchedAt := f.now()

	// Step 3: Store the snapshot
	if f.store != nil {
		snap := &Snapshot{Key: f.key, HTML: result.HTML, StatusCode: result.StatusCode, FetchedAt: fetchedAt}
		if err := f.store.SaveSnapshot(ctx, snap); err != nil {
			f.logger.Warn("failed to store plan snapshot", zap.Error(err))
		}
	}

	return &CachedResult{Result: result, FetchedAt: fetchedAt}, nil
}
