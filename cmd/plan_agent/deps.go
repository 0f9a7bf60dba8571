package main

import (
	"context"
	"errors"
	"io"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/plan-auditor/internal/cache"
	"github.com/jonathan/plan-auditor/internal/crawling"
	"github.com/jonathan/plan-auditor/internal/db"
	"github.com/jonathan/plan-auditor/internal/fetch"
	"github.com/jonathan/plan-auditor/internal/observability"
	"github.com/jonathan/plan-auditor/internal/rendering"
	"github.com/jonathan/plan-auditor/internal/types"
)

// openDB connects and migrates when a database URL is configured. It returns
// nil, nil when persistence is off.
func (a *app) openDB(ctx context.Context) (*db.DB, error) {
	if a.cfg.Database.URL == "" {
		return nil, nil
	}
	database, err := db.Connect(ctx, a.cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx); err != nil {
		database.Close()
		return nil, err
	}
	a.logger.Debug("connected to database")
	return database, nil
}

// openCache returns a Redis-backed cache, or a disabled one when Redis is not
// configured or unreachable.
func (a *app) openCache() (*cache.Cache, func()) {
	if a.cfg.Redis.Addr == "" {
		return cache.New(nil, 0, a.logger), func() {}
	}
	client, err := cache.NewRedis(a.cfg.Redis.Addr, a.cfg.Redis.Password, a.cfg.Redis.DB)
	if err != nil {
		a.logger.Warn("redis unavailable, caching disabled", zap.Error(err))
		return cache.New(nil, 0, a.logger), func() {}
	}
	return cache.New(client, a.cfg.Redis.TTL, a.logger), func() { _ = client.Close() }
}

// loadRatings finds the newest rating snapshot: the ratings file, then Redis,
// then PostgreSQL. A nil set means no ratings are known.
func (a *app) loadRatings(ctx context.Context, path string, c *cache.Cache, database *db.DB) (*types.RatingSet, error) {
	if path != "" {
		set, err := crawling.LoadRatings(path)
		if err != nil {
			return nil, err
		}
		if len(set.Courses) > 0 {
			a.logger.Debug("loaded ratings file", zap.String("path", path), zap.Int("courses", len(set.Courses)))
			return set, nil
		}
	}

	set, err := c.Ratings(ctx)
	switch {
	case err == nil:
		return set, nil
	case !errors.Is(err, cache.ErrCacheMiss):
		a.logger.Warn("failed to read cached ratings", zap.Error(err))
	}

	if database != nil {
		set, err := database.LoadRatings(ctx)
		if err != nil {
			return nil, err
		}
		return set, nil
	}
	return nil, nil
}

// fetchFlags are the retrieval overrides shared by fetch and run.
type fetchFlags struct {
	cookies     string
	useBrowser  bool
	headful     bool
	skipRefresh bool
	noCache     bool
}

func (f *fetchFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.cookies, "cookies", "", "Cookie header of a logged-in learning-site session (defaults to fetch.cookies)")
	cmd.Flags().BoolVar(&f.useBrowser, "use-browser", false, "Log in through headless Chrome with fetch.username/fetch.password")
	cmd.Flags().BoolVar(&f.headful, "show-browser", false, "Show the browser window, e.g. to finish a login by hand")
	cmd.Flags().BoolVar(&f.skipRefresh, "skip-refresh", false, "Do not click the registrar's refresh button before capturing")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "Ignore stored plan snapshots and fetch a fresh page")
}

// newFetcher builds the plan source for the configured retrieval mode and
// wraps it with snapshot reuse when a database is available.
func (a *app) newFetcher(cmd *cobra.Command, f *fetchFlags, database *db.DB) (*fetch.CachedFetcher, string, error) {
	fc := a.cfg.Fetch
	if cmd.Flags().Changed("cookies") {
		fc.Cookies = f.cookies
	}
	if cmd.Flags().Changed("use-browser") {
		fc.UseBrowser = f.useBrowser
	}
	if cmd.Flags().Changed("show-browser") {
		fc.Headless = !f.headful
	}
	if cmd.Flags().Changed("skip-refresh") {
		fc.SkipRefresh = f.skipRefresh
	}

	var (
		source    fetch.PlanSource
		sourceTag string
	)
	if fc.UseBrowser {
		if fc.Headless && (fc.Username == "" || fc.Password == "") {
			return nil, "", errors.New("headless login needs fetch.username and fetch.password (PLAN_FETCH_USERNAME, PLAN_FETCH_PASSWORD)")
		}
		source = fetch.NewBrowserFetcher(fetch.BrowserConfig{
			LearnBaseURL: fc.LearnBaseURL,
			EduBaseURL:   fc.EduBaseURL,
			Credentials:  fetch.Credentials{Username: fc.Username, Password: fc.Password},
			Timeout:      fc.Timeout,
			Headless:     fc.Headless,
			SkipRefresh:  fc.SkipRefresh,
			Logger:       a.logger,
		})
		sourceTag = db.SourceBrowser
	} else {
		if fc.Cookies == "" {
			return nil, "", errors.New("no session cookies: pass --cookies, set PLAN_FETCH_COOKIES, or use --use-browser")
		}
		opts := fetch.DefaultOptions()
		opts.Timeout = fc.Timeout
		session, err := fetch.NewSessionFetcher(fetch.SessionConfig{
			LearnBaseURL: fc.LearnBaseURL,
			EduBaseURL:   fc.EduBaseURL,
			Cookies:      fc.Cookies,
			Options:      opts,
			Logger:       a.logger,
		})
		if err != nil {
			return nil, "", err
		}
		source = session
		sourceTag = db.SourceSession
	}

	var store fetch.SnapshotStore
	if database != nil {
		store = database
	}
	key := fc.Username
	if key == "" {
		key = sourceTag
	}
	fetcher := fetch.NewCachedFetcher(source, store, fetch.CachedFetcherConfig{
		Key:       key,
		CacheTTL:  fc.CacheTTL,
		SkipCache: f.noCache,
		Logger:    a.logger,
	})
	return fetcher, sourceTag, nil
}

// exportFlags select the files written after an analysis.
type exportFlags struct {
	formats   []string
	outputDir string
}

func (e *exportFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&e.formats, "format", "f", nil, "Export formats: json, yaml, txt, md, csv, pdf (defaults to export.formats)")
	cmd.Flags().StringVarP(&e.outputDir, "out", "o", "", "Output directory (defaults to export.output_dir)")
}

func (a *app) exportTargets(cmd *cobra.Command, e *exportFlags) ([]rendering.Format, string, error) {
	names := a.cfg.Export.Formats
	if cmd.Flags().Changed("format") {
		names = e.formats
	}
	formats, err := parseFormats(names)
	if err != nil {
		return nil, "", err
	}
	dir := a.cfg.Export.OutputDir
	if e.outputDir != "" {
		dir = e.outputDir
	}
	return formats, dir, nil
}

func (a *app) renderOptions() rendering.Options {
	return rendering.Options{
		TemplatePath: a.cfg.Export.Template,
		FontPath:     a.cfg.Export.FontPath,
	}
}

func (a *app) printer(out io.Writer) *observability.Printer {
	if !a.cfg.Verbose {
		return nil
	}
	return observability.NewPrinter(out)
}

// parseFormats resolves format names, dropping duplicates.
func parseFormats(names []string) ([]rendering.Format, error) {
	formats := make([]rendering.Format, 0, len(names))
	for _, name := range names {
		f, err := rendering.ParseFormat(name)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(formats, f) {
			formats = append(formats, f)
		}
	}
	return formats, nil
}

func closeDB(database *db.DB) {
	if database != nil {
		database.Close()
	}
}
