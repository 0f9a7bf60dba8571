package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// Portal defaults
const (
	DefaultLearnBaseURL = "https://learn.tsinghua.edu.cn"
	DefaultEduBaseURL   = "http://zhjw.cic.tsinghua.edu.cn"

	xsrfCookieName = "XSRF-TOKEN"
	ticketPath     = "/b/wlxt/common/auth/getzhjwTicket"
	planPathTitle  = "培养方案完成情况"
)

// SessionConfig configures a SessionFetcher.
type SessionConfig struct {
	LearnBaseURL string
	EduBaseURL   string
	// Cookies is a Cookie header value from an authenticated learning-site session
	Cookies string
	Options *Options
	Logger  *zap.Logger
}

// SessionFetcher walks the learning site → ticket → registrar flow over plain
// HTTP, reusing the cookies of an existing login.
type SessionFetcher struct {
	learnBase *url.URL
	eduBase   string
	client    *http.Client
	options   *Options
	logger    *zap.Logger

	xsrfToken string
	ticket    string
}

// NewSessionFetcher creates a fetcher with its own cookie jar, seeded with cfg.Cookies.
func NewSessionFetcher(cfg SessionConfig) (*SessionFetcher, error) {
	if cfg.LearnBaseURL == "" {
		cfg.LearnBaseURL = DefaultLearnBaseURL
	}
	if cfg.EduBaseURL == "" {
		cfg.EduBaseURL = DefaultEduBaseURL
	}
	if cfg.Options == nil {
		cfg.Options = DefaultOptions()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	learnBase, err := url.Parse(strings.TrimRight(cfg.LearnBaseURL, "/"))
	if err != nil || learnBase.Scheme == "" || learnBase.Host == "" {
		return nil, &Error{URL: cfg.LearnBaseURL, Message: "invalid learning site URL", Cause: err}
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	if cookies := ParseCookieHeader(cfg.Cookies); len(cookies) > 0 {
		jar.SetCookies(learnBase, cookies)
	}

	opts := *cfg.Options
	client := &http.Client{Timeout: opts.Timeout, Jar: jar}
	opts.Client = client

	return &SessionFetcher{
		learnBase: learnBase,
		eduBase:   strings.TrimRight(cfg.EduBaseURL, "/"),
		client:    client,
		options:   &opts,
		logger:    cfg.Logger,
	}, nil
}

// XSRFToken visits the learning site and reads the XSRF token from its cookies.
func (f *SessionFetcher) XSRFToken(ctx context.Context) (string, error) {
	if _, err := URL(ctx, f.learnBase.String(), f.options); err != nil {
		return "", fmt.Errorf("failed to visit learning site: %w", err)
	}

	for _, c := range f.client.Jar.Cookies(f.learnBase) {
		if c.Name == xsrfCookieName && c.Value != "" {
			f.xsrfToken = c.Value
			f.logger.Debug("xsrf token acquired")
			return c.Value, nil
		}
	}
	return "", &Error{URL: f.learnBase.String(), Message: "XSRF-TOKEN cookie not found, session is probably not logged in"}
}

// Ticket exchanges the XSRF token for a registrar ticket.
func (f *SessionFetcher) Ticket(ctx context.Context) (string, error) {
	if f.xsrfToken == "" {
		if _, err := f.XSRFToken(ctx); err != nil {
			return "", err
		}
	}

	ticketURL := f.learnBase.String() + ticketPath + "?_csrf=" + url.QueryEscape(f.xsrfToken)
	result, err := URL(ctx, ticketURL, f.options)
	if err != nil {
		return "", fmt.Errorf("failed to get registrar ticket: %w", err)
	}

	ticket := strings.TrimSpace(result.HTML)
	if ticket == "" {
		return "", &Error{URL: ticketURL, Message: "empty ticket"}
	}
	f.ticket = ticket
	f.logger.Debug("registrar ticket acquired")
	return ticket, nil
}

// PlanURL builds the registrar URL that logs in with a ticket and lands on the plan page.
func PlanURL(eduBase, ticket string) string {
	return fmt.Sprintf("%s/j_acegi_login.do?ticket=%s&url=/jhBks.by_fascjgmxb_gr.do?m=queryFaScjgmx_gr&xsViewFlag=pyfa&pathContent=%s",
		strings.TrimRight(eduBase, "/"), url.QueryEscape(ticket), url.QueryEscape(planPathTitle))
}

// FetchPlan runs the full flow and returns the plan page.
func (f *SessionFetcher) FetchPlan(ctx context.Context) (*Result, error) {
	if f.ticket == "" {
		if _, err := f.Ticket(ctx); err != nil {
			return nil, err
		}
	}

	planURL := PlanURL(f.eduBase, f.ticket)
	result, err := URL(ctx, planURL, f.options)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch plan page: %w", err)
	}

	f.logger.Info("plan page fetched", zap.Int("bytes", len(result.HTML)))
	if !LooksLikePlan(result.HTML) {
		return result, &Error{URL: planURL, Message: "page does not contain the plan table"}
	}
	return result, nil
}

// ParseCookieHeader splits a Cookie header value into cookies.
func ParseCookieHeader(header string) []*http.Cookie {
	var cookies []*http.Cookie
	for _, part := range strings.Split(header, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || name == "" {
			continue
		}
		cookies = append(cookies, &http.Cookie{Name: strings.TrimSpace(name), Value: strings.TrimSpace(value)})
	}
	return cookies
}
