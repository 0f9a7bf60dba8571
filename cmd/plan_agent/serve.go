package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/plan-auditor/internal/cache"
	"github.com/jonathan/plan-auditor/internal/db"
	"github.com/jonathan/plan-auditor/internal/observability"
	"github.com/jonathan/plan-auditor/internal/server"
	"github.com/jonathan/plan-auditor/internal/server/ratelimit"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		port           int
		refreshRatings time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		Long: `Start an HTTP server that analyzes uploaded plan pages and serves stored runs.

Runs are persisted when database.url is set; analyses are cached in Redis when
redis.addr is set. With --refresh-ratings the course rating snapshot is kept
up to date in the background.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sc := a.cfg.Server
			if cmd.Flags().Changed("port") {
				sc.Port = port
			}

			database, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer closeDB(database)
			c, closeCache := a.openCache()
			defer closeCache()

			ratings, err := a.loadRatings(ctx, a.cfg.Reviews.RatingsFile, c, database)
			if err != nil {
				a.logger.Warn("failed to load ratings, suggestions will not be annotated", zap.Error(err))
			}

			deps := server.Deps{
				Cache:   c,
				Metrics: observability.NewMetrics(),
				Logger:  a.logger,
				Ratings: ratings,
			}
			if database != nil {
				deps.Store = database
			} else {
				a.logger.Info("database.url not set, runs will not be stored")
			}

			srv := server.New(server.Config{
				Port:           sc.Port,
				MaxUploadBytes: sc.MaxUploadBytes,
				RateLimit:      ratelimit.FromConfig(sc.RateLimit),
				Render:         a.renderOptions(),
			}, deps)

			var jobs []func(context.Context)
			if refreshRatings > 0 {
				jobs = append(jobs, func(ctx context.Context) {
					a.refreshRatingsLoop(ctx, srv, refreshRatings, c, database)
				})
			}
			// the deferred database and cache closes run only after every job has stopped
			return serveUntilDone(ctx, srv.Start, jobs...)
		},
	}
	cmd.Flags().IntVar(&port, "port", 8080, "Port to listen on (defaults to server.port)")
	cmd.Flags().DurationVar(&refreshRatings, "refresh-ratings", 0, "Refresh course ratings at this interval, e.g. 24h (0 disables)")
	return cmd
}

// serveUntilDone runs start alongside the background jobs. When start returns,
// the jobs' context is canceled, and serveUntilDone returns start's error once
// every job has returned.
func serveUntilDone(ctx context.Context, start func(context.Context) error, jobs ...func(context.Context)) error {
	g, gctx := errgroup.WithContext(ctx)
	jobCtx, cancelJobs := context.WithCancel(gctx)
	defer cancelJobs()

	for _, job := range jobs {
		g.Go(func() error {
			job(jobCtx)
			return nil
		})
	}
	g.Go(func() error {
		defer cancelJobs()
		return start(gctx)
	})
	return g.Wait()
}

// refreshRatingsLoop refreshes the server's rating snapshot every interval
// until ctx is done.
func (a *app) refreshRatingsLoop(ctx context.Context, srv *server.Server, interval time.Duration, c *cache.Cache, database *db.DB) {
	crawler := a.newCrawler()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		set, updated, err := updateRatings(ctx, crawler, srv.Ratings(), false, srv.Metrics(), a.logger)
		if err != nil {
			a.logger.Warn("rating refresh failed", zap.Error(err))
			continue
		}
		if !updated {
			continue
		}
		srv.SetRatings(set)
		if err := a.persistRatings(ctx, a.ratingsFile(), set, c, database); err != nil {
			a.logger.Warn("failed to save refreshed ratings", zap.Error(err))
		}
		a.logger.Info("ratings refreshed", zap.Int("courses", len(set.Courses)), zap.Int("reviews", set.TotalCount))
	}
}
