package fetch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Browser defaults
const (
	DefaultBrowserTimeout = 90 * time.Second
	DefaultLoginPath      = "/f/login"

	loginButtonSelector   = "#loginButtonId"
	refreshButtonSelector = `input[type="button"][value*="刷新培养方案完成情况"]`
	refreshWait           = 10 * time.Second
	loginPollInterval     = 500 * time.Millisecond
)

// Credentials are the learning-site login fields.
type Credentials struct {
	Username string
	Password string
	// UserSelector and PasswordSelector locate the login inputs
	UserSelector     string
	PasswordSelector string
}

// BrowserConfig configures a BrowserFetcher.
type BrowserConfig struct {
	LearnBaseURL string
	EduBaseURL   string
	Credentials  Credentials
	Timeout      time.Duration
	// Headless can be turned off to complete a login by hand
	Headless bool
	// SkipRefresh leaves the registrar's cached figures in place
	SkipRefresh bool
	Logger      *zap.Logger
}

// BrowserFetcher logs in through a headless Chrome and captures the plan page.
// Requires Chrome/Chromium to be installed on the system.
type BrowserFetcher struct {
	cfg    BrowserConfig
	logger *zap.Logger
}

// NewBrowserFetcher creates a browser fetcher, filling in defaults.
func NewBrowserFetcher(cfg BrowserConfig) *BrowserFetcher {
	if cfg.LearnBaseURL == "" {
		cfg.LearnBaseURL = DefaultLearnBaseURL
	}
	if cfg.EduBaseURL == "" {
		cfg.EduBaseURL = DefaultEduBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultBrowserTimeout
	}
	if cfg.Credentials.UserSelector == "" {
		cfg.Credentials.UserSelector = `input[name="i_user"]`
	}
	if cfg.Credentials.PasswordSelector == "" {
		cfg.Credentials.PasswordSelector = `input[name="i_pass"]`
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BrowserFetcher{cfg: cfg, logger: logger}
}

// FetchPlan logs in, follows the ticket flow, optionally clicks the refresh
// button and returns the rendered plan page.
func (b *BrowserFetcher) FetchPlan(ctx context.Context) (*Result, error) {
	learnBase := strings.TrimRight(b.cfg.LearnBaseURL, "/")
	b.logger.Info("starting browser", zap.String("url", learnBase+DefaultLoginPath), zap.Bool("headless", b.cfg.Headless))

	allocCtx, cancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", b.cfg.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)...,
	)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, b.cfg.Timeout)
	defer cancel()

	// Step 1: Log in to the learning site
	if err := chromedp.Run(browserCtx, b.loginActions(learnBase)...); err != nil {
		return nil, &Error{URL: learnBase, Message: "browser login failed", Cause: err}
	}
	b.logger.Debug("logged in")

	// Step 2: Read the XSRF token and exchange it for a ticket
	var cookies, ticket string
	if err := chromedp.Run(browserCtx, chromedp.Evaluate(`document.cookie`, &cookies)); err != nil {
		return nil, &Error{URL: learnBase, Message: "failed to read cookies", Cause: err}
	}
	token := ""
	for _, c := range ParseCookieHeader(cookies) {
		if c.Name == xsrfCookieName {
			token = c.Value
		}
	}
	if token == "" {
		return nil, &Error{URL: learnBase, Message: "XSRF-TOKEN cookie not found after login"}
	}

	ticketURL := learnBase + ticketPath + "?_csrf=" + token
	if err := chromedp.Run(browserCtx,
		chromedp.Navigate(ticketURL),
		chromedp.WaitReady("body"),
		chromedp.Text("body", &ticket, chromedp.ByQuery),
	); err != nil {
		return nil, &Error{URL: ticketURL, Message: "failed to get registrar ticket", Cause: err}
	}
	ticket = strings.TrimSpace(ticket)
	if ticket == "" {
		return nil, &Error{URL: ticketURL, Message: "empty ticket"}
	}

	// Step 3: Open the plan page and refresh the registrar's figures
	planURL := PlanURL(b.cfg.EduBaseURL, ticket)
	if err := chromedp.Run(browserCtx, chromedp.Navigate(planURL), chromedp.WaitReady("body")); err != nil {
		return nil, &Error{URL: planURL, Message: "failed to open plan page", Cause: err}
	}
	if !b.cfg.SkipRefresh {
		b.clickRefresh(browserCtx)
	}

	// Step 4: Capture the rendered HTML
	var html, location string
	if err := chromedp.Run(browserCtx,
		chromedp.WaitReady("body"),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html),
	); err != nil {
		return nil, &Error{URL: planURL, Message: "failed to capture plan page", Cause: err}
	}

	b.logger.Info("plan page rendered", zap.String("url", location), zap.Int("bytes", len(html)))
	result := &Result{URL: location, HTML: html, ContentType: "text/html", StatusCode: 200}
	if !LooksLikePlan(html) {
		return result, &Error{URL: location, Message: "page does not contain the plan table"}
	}
	return result, nil
}

func (b *BrowserFetcher) loginActions(learnBase string) []chromedp.Action {
	creds := b.cfg.Credentials
	actions := []chromedp.Action{
		chromedp.Navigate(learnBase + DefaultLoginPath),
		chromedp.WaitReady("body"),
	}
	if creds.Username != "" {
		actions = append(actions,
			chromedp.WaitVisible(creds.UserSelector, chromedp.ByQuery),
			chromedp.SendKeys(creds.UserSelector, creds.Username, chromedp.ByQuery),
			chromedp.SendKeys(creds.PasswordSelector, creds.Password, chromedp.ByQuery),
		)
	}
	actions = append(actions,
		chromedp.Click(loginButtonSelector, chromedp.ByQuery, chromedp.NodeVisible),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return waitForLogin(ctx, learnBase)
		}),
	)
	return actions
}

// waitForLogin polls the page location until it leaves the login page.
func waitForLogin(ctx context.Context, learnBase string) error {
	ticker := time.NewTicker(loginPollInterval)
	defer ticker.Stop()
	for {
		var loc string
		if err := chromedp.Location(&loc).Do(ctx); err != nil {
			return err
		}
		if strings.HasPrefix(loc, learnBase) && !strings.Contains(loc, DefaultLoginPath) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("login did not complete: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// clickRefresh clicks the registrar's refresh button when it shows up.
// A missing button is not an error.
func (b *BrowserFetcher) clickRefresh(ctx context.Context) {
	refreshCtx, cancel := context.WithTimeout(ctx, refreshWait)
	defer cancel()

	err := chromedp.Run(refreshCtx,
		chromedp.WaitVisible(refreshButtonSelector, chromedp.ByQuery),
		chromedp.Click(refreshButtonSelector, chromedp.ByQuery),
	)
	if err != nil {
		b.logger.Warn("refresh button not clicked", zap.Error(err))
		return
	}
	// The click reloads the page
	_ = chromedp.Run(ctx, chromedp.Sleep(2*time.Second), chromedp.WaitReady("body"))
	b.logger.Debug("plan refreshed")
}
