package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/plan-auditor/internal/cache"
	"github.com/jonathan/plan-auditor/internal/crawling"
	"github.com/jonathan/plan-auditor/internal/db"
	"github.com/jonathan/plan-auditor/internal/observability"
	"github.com/jonathan/plan-auditor/internal/types"
)

// defaultRatingsFile is used when neither --out nor reviews.ratings_file is set.
const defaultRatingsFile = "ratings.json"

func newCrawlReviewsCmd(a *app) *cobra.Command {
	var (
		output string
		full   bool
		noDB   bool
	)
	cmd := &cobra.Command{
		Use:   "crawl-reviews",
		Short: "Download course reviews and update the rating snapshot",
		Long: `Pages through the course review API and averages ratings per course. With an
existing snapshot only the pages holding reviews newer than it are fetched;
--full starts over. The snapshot is written to the ratings file and, when
configured, to Redis and PostgreSQL.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			path := output
			if path == "" {
				path = a.ratingsFile()
			}

			var database *db.DB
			if !noDB {
				d, err := a.openDB(ctx)
				if err != nil {
					return err
				}
				defer closeDB(d)
				database = d
			}
			c, closeCache := a.openCache()
			defer closeCache()

			local, err := crawling.LoadRatings(path)
			if err != nil {
				return err
			}
			set, updated, err := updateRatings(ctx, a.newCrawler(), local, full, nil, a.logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if p := a.printer(out); p != nil {
				p.PrintRatings(set, updated)
			}
			if !updated {
				fmt.Fprintf(out, "Ratings are up to date (%d reviews, %d courses)\n", set.TotalCount, len(set.Courses)) //nolint:errcheck
				return nil
			}
			if err := a.persistRatings(ctx, path, set, c, database); err != nil {
				return err
			}
			fmt.Fprintf(out, "Saved ratings for %d courses (%d reviews) to %s\n", len(set.Courses), set.TotalCount, path) //nolint:errcheck
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "out", "o", "", "Rating snapshot file, .json or .yaml (defaults to reviews.ratings_file)")
	cmd.Flags().BoolVar(&full, "full", false, "Crawl every page instead of refreshing")
	cmd.Flags().BoolVar(&noDB, "no-db", false, "Do not write rating snapshots to the database")
	return cmd
}

func (a *app) ratingsFile() string {
	if a.cfg.Reviews.RatingsFile != "" {
		return a.cfg.Reviews.RatingsFile
	}
	return defaultRatingsFile
}

func (a *app) newCrawler() *crawling.ReviewCrawler {
	rc := a.cfg.Reviews
	return crawling.NewReviewCrawler(crawling.Config{
		APIURL:       rc.APIURL,
		PageSize:     rc.PageSize,
		RequestDelay: rc.RequestDelay,
		RetryDelay:   rc.RetryDelay,
		MaxRetries:   rc.MaxRetries,
		Concurrency:  rc.Concurrency,
		Logger:       a.logger,
	})
}

// updateRatings crawls every page when full is set or nothing is known yet,
// otherwise it refreshes local with the newest pages only.
func updateRatings(ctx context.Context, crawler *crawling.ReviewCrawler, local *types.RatingSet, full bool, metrics *observability.Metrics, logger *zap.Logger) (*types.RatingSet, bool, error) {
	onProgress := func(p crawling.Progress) {
		logger.Debug("review pages", zap.Int("current", p.Current), zap.Int("total", p.Total), zap.Int("percent", p.Percentage))
	}

	if !full && local != nil && local.TotalCount > 0 {
		return crawler.Refresh(ctx, local, onProgress)
	}

	result, err := crawler.CrawlAll(ctx, onProgress)
	if err != nil {
		return nil, false, err
	}
	metrics.ObserveCrawl(result.Pages, len(result.FailedPages))
	if len(result.FailedPages) > 0 {
		logger.Warn("some review pages were skipped", zap.Ints("pages", result.FailedPages))
	}
	set := crawling.BuildRatingSet(result)
	set.UpdatedAt = time.Now().UTC()
	return set, true, nil
}

// persistRatings writes the snapshot file, then best-effort to Redis and
// PostgreSQL.
func (a *app) persistRatings(ctx context.Context, path string, set *types.RatingSet, c *cache.Cache, database *db.DB) error {
	if err := crawling.SaveRatings(path, set); err != nil {
		return err
	}
	if err := c.SetRatings(ctx, set); err != nil {
		a.logger.Warn("failed to cache ratings", zap.Error(err))
	}
	if database != nil {
		if err := database.SaveRatings(ctx, set); err != nil {
			a.logger.Warn("failed to store ratings", zap.Error(err))
		}
	}
	return nil
}
