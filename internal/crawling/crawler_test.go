package crawling

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/jonathan/plan-auditor/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

// reviewAPI serves count reviews, pageSize per page. Review i belongs to
// course "c<i%3>" and carries rating i%5+1. throttle lists pages that answer
// with the rate-limit message a given number of times before succeeding.
type reviewAPI struct {
	count    int
	pageSize int
	throttle map[int]int
	broken   map[int]bool

	mu   sync.Mutex
	hits map[int]int
}

func (a *reviewAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))

	a.mu.Lock()
	a.hits[page]++
	hits := a.hits[page]
	broken := a.broken[page]
	a.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if hits <= a.throttle[page] {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"detail":"请求超过了限速，请稍后再试"}`))
		return
	}
	if broken {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`oops`))
		return
	}

	resp := types.ReviewPage{Count: a.count}
	start := (page - 1) * a.pageSize
	for i := start; i < start+a.pageSize && i < a.count; i++ {
		resp.Results = append(resp.Results, types.Review{
			Course:  types.ReviewCourse{ID: types.CourseKey(fmt.Sprintf("c%d", i%3)), Name: fmt.Sprintf("课程%d", i%3), Teacher: "张老师"},
			Rating:  float64(i%5 + 1),
			Comment: fmt.Sprintf("review %d", i),
		})
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func (a *reviewAPI) hitsFor(page int) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hits[page]
}

func newReviewAPI(t *testing.T, api *reviewAPI) (*httptest.Server, *ReviewCrawler) {
	t.Helper()
	if api.pageSize == 0 {
		api.pageSize = 20
	}
	api.hits = map[int]int{}
	server := httptest.NewServer(api)
	t.Cleanup(func() {
		server.CloseClientConnections()
		server.Close()
	})

	crawler := NewReviewCrawler(Config{
		APIURL:      server.URL + "/api/review/",
		PageSize:    api.pageSize,
		MaxRetries:  3,
		Concurrency: 3,
		Client:      server.Client(),
	})
	t.Cleanup(server.Client().CloseIdleConnections)
	return server, crawler
}

func TestPageURL(t *testing.T) {
	c := NewReviewCrawler(DefaultConfig())
	assert.Equal(t, "https://yourschool.cc/thucourse_api/api/review/?page=3&size=20", c.PageURL(3))
}

func TestPageCount(t *testing.T) {
	c := NewReviewCrawler(Config{PageSize: 20})
	tests := []struct {
		count int
		want  int
	}{
		{0, 0},
		{-5, 0},
		{1, 1},
		{20, 1},
		{21, 2},
		{95, 5},
	}
	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.count), func(t *testing.T) {
			assert.Equal(t, tt.want, c.PageCount(tt.count))
		})
	}
}

func TestNewReviewCrawler_Defaults(t *testing.T) {
	c := NewReviewCrawler(Config{})
	assert.Equal(t, DefaultAPIURL, c.cfg.APIURL)
	assert.Equal(t, DefaultPageSize, c.cfg.PageSize)
	assert.Equal(t, DefaultMaxRetries, c.cfg.MaxRetries)
	assert.Equal(t, DefaultConcurrency, c.cfg.Concurrency)
	assert.Zero(t, c.cfg.RequestDelay)
}

func TestFetchPage_RetriesAfterRateLimit(t *testing.T) {
	api := &reviewAPI{count: 5, throttle: map[int]int{1: 2}}
	_, c := newReviewAPI(t, api)

	page, err := c.FetchPage(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 5, page.Count)
	assert.Len(t, page.Results, 5)
	assert.Equal(t, 3, api.hitsFor(1))
}

func TestFetchPage_GivesUpAfterMaxRetries(t *testing.T) {
	api := &reviewAPI{count: 5, throttle: map[int]int{1: 10}}
	_, c := newReviewAPI(t, api)

	_, err := c.FetchPage(context.Background(), 1)
	require.Error(t, err)

	var pageErr *PageError
	require.ErrorAs(t, err, &pageErr)
	assert.Equal(t, 1, pageErr.Page)
	assert.Equal(t, 3, pageErr.Attempts)

	var rl *RateLimitError
	assert.ErrorAs(t, err, &rl)
	assert.Equal(t, 3, api.hitsFor(1))
}

func TestFetchPage_ContextCanceled(t *testing.T) {
	api := &reviewAPI{count: 5}
	_, c := newReviewAPI(t, api)
	c.cfg.RequestDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.FetchPage(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, api.hitsFor(1))
}

func TestCrawlAll(t *testing.T) {
	api := &reviewAPI{count: 95, throttle: map[int]int{3: 1}}
	_, c := newReviewAPI(t, api)

	var (
		mu     sync.Mutex
		events []Progress
	)
	result, err := c.CrawlAll(context.Background(), func(p Progress) {
		mu.Lock()
		events = append(events, p)
		mu.Unlock()
	})
	require.NoError(t, err)

	assert.Equal(t, 95, result.RemoteCount)
	assert.Equal(t, 5, result.Pages)
	assert.Empty(t, result.FailedPages)
	require.Len(t, result.Reviews, 95)
	// pages are reassembled in order
	assert.Equal(t, "review 0", result.Reviews[0].Comment)
	assert.Equal(t, "review 94", result.Reviews[94].Comment)

	require.Len(t, events, 5)
	last := events[len(events)-1]
	assert.Equal(t, 5, last.Current)
	assert.Equal(t, 100, last.Percentage)
}

func TestCrawlAll_SkipsFailedPages(t *testing.T) {
	api := &reviewAPI{count: 60, broken: map[int]bool{2: true}}
	_, c := newReviewAPI(t, api)

	result, err := c.CrawlAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, result.FailedPages)
	assert.Len(t, result.Reviews, 40)
	assert.Equal(t, 3, api.hitsFor(2))
}

func TestCrawlAll_FirstPageFailure(t *testing.T) {
	api := &reviewAPI{count: 60, broken: map[int]bool{1: true}}
	_, c := newReviewAPI(t, api)

	_, err := c.CrawlAll(context.Background(), nil)
	var crawlErr *CrawlError
	require.ErrorAs(t, err, &crawlErr)
	assert.Contains(t, err.Error(), "total page count")
}

func TestRefresh_UpToDate(t *testing.T) {
	api := &reviewAPI{count: 40}
	_, c := newReviewAPI(t, api)

	local := &types.RatingSet{TotalCount: 40, Courses: []types.CourseRating{{CourseID: "c0", Rating: 4, CommentCount: 2}}}
	got, updated, err := c.Refresh(context.Background(), local, nil)
	require.NoError(t, err)
	assert.False(t, updated)
	assert.Same(t, local, got)
	assert.Zero(t, api.hitsFor(2))
}

func TestRefresh_FetchesOnlyNewPages(t *testing.T) {
	api := &reviewAPI{count: 100}
	_, c := newReviewAPI(t, api)
	fixed := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	local := &types.RatingSet{
		TotalCount: 75,
		Courses:    []types.CourseRating{{CourseID: "c0", CourseName: "课程0", Rating: 5, CommentCount: 1, Comments: []string{"old"}}},
	}
	got, updated, err := c.Refresh(context.Background(), local, nil)
	require.NoError(t, err)
	require.True(t, updated)

	// 25 new reviews need two pages; page 1 is read once
	assert.Equal(t, 1, api.hitsFor(1))
	assert.Equal(t, 1, api.hitsFor(2))
	assert.Zero(t, api.hitsFor(3))

	assert.Equal(t, 100, got.TotalCount)
	assert.Equal(t, fixed, got.UpdatedAt)
	require.Len(t, got.Courses, 3)
	// only reviews 0..24 are new: 9 for c0, 8 each for c1 and c2
	assert.Equal(t, 1+9, got.Courses[0].CommentCount)
	assert.Equal(t, 8, got.Courses[1].CommentCount)
	assert.Equal(t, 8, got.Courses[2].CommentCount)
	assert.Equal(t, "review 24", got.Courses[0].Comments[len(got.Courses[0].Comments)-1])

	// local set is untouched
	assert.Equal(t, 1, local.Courses[0].CommentCount)
	assert.Equal(t, []string{"old"}, local.Courses[0].Comments)
}

func TestRefresh_FailedPageKeepsLocal(t *testing.T) {
	api := &reviewAPI{count: 100, broken: map[int]bool{2: true}}
	_, c := newReviewAPI(t, api)

	local := &types.RatingSet{
		TotalCount: 60,
		Courses:    []types.CourseRating{{CourseID: "c0", Rating: 4, CommentCount: 2, Comments: []string{"a", "b"}}},
	}
	got, updated, err := c.Refresh(context.Background(), local, nil)
	var crawlErr *CrawlError
	require.ErrorAs(t, err, &crawlErr)
	assert.Contains(t, err.Error(), "pages [2] failed")
	assert.False(t, updated)
	assert.Nil(t, got)
	assert.Equal(t, 60, local.TotalCount)
	assert.Equal(t, 2, local.Courses[0].CommentCount)

	// once the page recovers the same 40 reviews are picked up
	api.mu.Lock()
	api.broken = nil
	api.mu.Unlock()

	got, updated, err = c.Refresh(context.Background(), local, nil)
	require.NoError(t, err)
	require.True(t, updated)
	assert.Equal(t, 100, got.TotalCount)
	total := 0
	for _, course := range got.Courses {
		total += course.CommentCount
	}
	assert.Equal(t, 2+40, total)
}
