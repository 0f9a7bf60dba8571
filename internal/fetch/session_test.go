package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newPortal serves the learning site, ticket endpoint and registrar plan page from one server.
func newPortal(t *testing.T, planHTML string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		session, err := r.Cookie("JSESSIONID")
		if err != nil || session.Value != "logged-in" {
			_, _ = w.Write([]byte("<html>请登录</html>"))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "XSRF-TOKEN", Value: "tok123", Path: "/"})
		_, _ = w.Write([]byte("<html>home</html>"))
	})
	mux.HandleFunc("/b/wlxt/common/auth/getzhjwTicket", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("_csrf") != "tok123" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte("  TICKET-42\n"))
	})
	mux.HandleFunc("/j_acegi_login.do", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("ticket") != "TICKET-42" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(planHTML))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestSessionFetcher_FullFlow(t *testing.T) {
	server := newPortal(t, "<table><tr><td>课程属性</td><td>课组名</td></tr></table>")

	f, err := NewSessionFetcher(SessionConfig{
		LearnBaseURL: server.URL,
		EduBaseURL:   server.URL,
		Cookies:      "JSESSIONID=logged-in; other=1",
	})
	require.NoError(t, err)

	result, err := f.FetchPlan(context.Background())
	require.NoError(t, err)
	assert.Contains(t, result.HTML, "课组名")
	assert.Equal(t, "tok123", f.xsrfToken)
	assert.Equal(t, "TICKET-42", f.ticket)
}

func TestSessionFetcher_NotLoggedIn(t *testing.T) {
	server := newPortal(t, "<table></table>")

	f, err := NewSessionFetcher(SessionConfig{LearnBaseURL: server.URL, EduBaseURL: server.URL})
	require.NoError(t, err)

	_, err = f.FetchPlan(context.Background())
	require.Error(t, err)
	var fetchErr *Error
	assert.ErrorAs(t, err, &fetchErr)
	assert.Contains(t, err.Error(), "XSRF-TOKEN")
}

func TestSessionFetcher_PageWithoutPlan(t *testing.T) {
	server := newPortal(t, "<html><body>系统维护中</body></html>")

	f, err := NewSessionFetcher(SessionConfig{
		LearnBaseURL: server.URL,
		EduBaseURL:   server.URL,
		Cookies:      "JSESSIONID=logged-in",
	})
	require.NoError(t, err)

	result, err := f.FetchPlan(context.Background())
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Contains(t, result.HTML, "系统维护中")
}

func TestNewSessionFetcher_InvalidURL(t *testing.T) {
	_, err := NewSessionFetcher(SessionConfig{LearnBaseURL: "not a url"})
	var fetchErr *Error
	assert.ErrorAs(t, err, &fetchErr)
}

func TestPlanURL(t *testing.T) {
	u := PlanURL("http://zhjw.example/", "a b")
	assert.True(t, strings.HasPrefix(u, "http://zhjw.example/j_acegi_login.do?ticket=a+b&url=/jhBks.by_fascjgmxb_gr.do"))
	assert.Contains(t, u, "xsViewFlag=pyfa")
	assert.NotContains(t, u, "培养方案")
}

func TestParseCookieHeader(t *testing.T) {
	cookies := ParseCookieHeader(" a=1; b = two ;broken; =x; c=")
	require.Len(t, cookies, 3)
	assert.Equal(t, "a", cookies[0].Name)
	assert.Equal(t, "1", cookies[0].Value)
	assert.Equal(t, "b", cookies[1].Name)
	assert.Equal(t, "two", cookies[1].Value)
	assert.Equal(t, "c", cookies[2].Name)
	assert.Empty(t, cookies[2].Value)

	assert.Empty(t, ParseCookieHeader(""))
}

func TestNewBrowserFetcher_Defaults(t *testing.T) {
	b := NewBrowserFetcher(BrowserConfig{})
	assert.Equal(t, DefaultLearnBaseURL, b.cfg.LearnBaseURL)
	assert.Equal(t, DefaultEduBaseURL, b.cfg.EduBaseURL)
	assert.Equal(t, DefaultBrowserTimeout, b.cfg.Timeout)
	assert.NotEmpty(t, b.cfg.Credentials.UserSelector)
	assert.NotNil(t, b.logger)
}
