package updates

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/Lottamob/Updates/analytics"
	"github.com/Lottamob/Updates/check"
)

func textComponent(s string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	})
}

// testViews returns stub templates that render recognizable markers so
// handler tests can assert which view was picked.
func testViews() ViewFuncs {
	return ViewFuncs{
		Home: func(posts []Post, activeTag string, tags []string, siteURL string) templ.Component {
			return textComponent(fmt.Sprintf("home:%d", len(posts)))
		},
		HomePartial: func(posts []Post, activeTag string, tags []string, siteURL string) templ.Component {
			return textComponent("home-partial")
		},
		BlogSection: func(posts []Post, activeTag string, tags []string) templ.Component {
			return textComponent("blog-section")
		},
		Post: func(post Post, posts []Post, siteURL string) templ.Component {
			return textComponent("post:" + post.Slug)
		},
		PostPartial: func(post Post, posts []Post, siteURL string) templ.Component {
			return textComponent("post-partial:" + post.Slug)
		},
		AdminLogin: func(showError bool, csrfToken string) templ.Component {
			if showError {
				return textComponent("login:error")
			}
			return textComponent("login")
		},
		AdminDashboard: func(posts []Post, message string, csrfToken string) templ.Component {
			return textComponent("dashboard:" + message)
		},
		AdminFormPartial: func(post Post, csrfToken string) templ.Component {
			return textComponent("form:" + post.Slug)
		},
		AdminImages: func(images []Image, csrfToken string) templ.Component {
			return textComponent("images")
		},
		NotFound:    func() templ.Component { return textComponent("not found") },
		ServerError: func() templ.Component { return textComponent("server error") },
		PostLayouts: map[string]func(post Post, posts []Post, siteURL string) templ.Component{
			"PostBanner": func(post Post, posts []Post, siteURL string) templ.Component {
				return textComponent("banner:" + post.Slug)
			},
		},
	}
}

// newTestApp wires an App the way Start does, but without binding a port.
func newTestApp(t *testing.T) *App {
	t.Helper()
	return newTestAppConfig(t, SiteConfig{})
}

func newTestAppConfig(t *testing.T, cfg SiteConfig) *App {
	t.Helper()
	dir := t.TempDir()
	if cfg.Name == "" {
		cfg.Name = "Test Blog"
	}
	if cfg.URL == "" {
		cfg.URL = "https://example.com"
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(dir, "blog.db")
	}
	if cfg.AnalyticsDatabasePath == "" {
		cfg.AnalyticsDatabasePath = filepath.Join(dir, "analytics.db")
	}
	if cfg.AdminPassword == "" {
		cfg.AdminPassword = "correct-horse"
	}
	if cfg.SessionSecret == "" {
		cfg.SessionSecret = "0123456789abcdef0123456789abcdef"
	}

	a := New(cfg, testViews())
	a.Echo.Logger.SetOutput(io.Discard)

	store, err := NewStore(a.Config.DatabasePath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	a.Store = store
	a.Cache = NewPostCache(store, time.Minute)
	a.loginLimiter = NewLoginLimiter(5, time.Minute)
	a.linkChecker = &check.LinkChecker{}

	if cfg.AnalyticsEnabled {
		as, err := analytics.NewStore(a.Config.AnalyticsDatabasePath)
		if err != nil {
			t.Fatalf("failed to create analytics store: %v", err)
		}
		t.Cleanup(func() { as.Close() })
		if err := analytics.InitSalt(as); err != nil {
			t.Fatalf("failed to init analytics salt: %v", err)
		}
		a.analyticsStore = as
	}

	a.setupMiddleware()
	a.setupRoutes()
	return a
}

// validPost returns a post that passes every editorial check.
func validPost(slug string) Post {
	return Post{
		Slug:      slug,
		Title:     "Testing Tools Roundup",
		Date:      "2024-03-01",
		Tags:      []string{"go", "testing"},
		Summary:   "A tour of the testing tools worth knowing.",
		Authors:   []string{"default"},
		Images:    []string{"/static/images/cover.jpg"},
		Layout:    "PostLayout",
		Content:   "## Why bother\n\nBecause tests keep you honest.\n",
		Published: true,
	}
}

func seedPost(t *testing.T, a *App, p Post) {
	t.Helper()
	if err := a.Store.SavePost(p); err != nil {
		t.Fatalf("seed post: %v", err)
	}
	a.Cache.Invalidate()
}

func doRequest(a *App, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, req)
	return rec
}

// mergeCookies overlays later cookies over earlier ones by name, so a
// re-issued session or csrf cookie replaces the stale copy.
func mergeCookies(old, latest []*http.Cookie) []*http.Cookie {
	byName := map[string]*http.Cookie{}
	var order []string
	for _, ck := range append(append([]*http.Cookie{}, old...), latest...) {
		if _, ok := byName[ck.Name]; !ok {
			order = append(order, ck.Name)
		}
		byName[ck.Name] = ck
	}
	out := make([]*http.Cookie, 0, len(order))
	for _, name := range order {
		out = append(out, byName[name])
	}
	return out
}

func fetchCSRF(t *testing.T, a *App) (string, []*http.Cookie) {
	t.Helper()
	rec := doRequest(a, httptest.NewRequest(http.MethodGet, "/admin/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /admin/ = %d, want 200", rec.Code)
	}
	cookies := rec.Result().Cookies()
	for _, ck := range cookies {
		if ck.Name == "_csrf" {
			return ck.Value, cookies
		}
	}
	t.Fatal("no csrf cookie issued")
	return "", nil
}

// loginAdmin authenticates and returns the csrf token plus the cookie jar
// for follow-up admin requests.
func loginAdmin(t *testing.T, a *App) (string, []*http.Cookie) {
	t.Helper()
	token, cookies := fetchCSRF(t, a)
	form := url.Values{"password": {a.Config.AdminPassword}, "_csrf": {token}}
	req := httptest.NewRequest(http.MethodPost, "/admin/login/", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := doRequest(a, req)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("login = %d, want 303 (body %q)", rec.Code, rec.Body.String())
	}
	return token, mergeCookies(cookies, rec.Result().Cookies())
}

func TestHomePage(t *testing.T) {
	a := newTestApp(t)
	seedPost(t, a, validPost("hello-world"))
	draft := validPost("secret-draft")
	draft.Published = false
	seedPost(t, a, draft)

	rec := doRequest(a, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET / = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "home:1" {
		t.Errorf("body = %q, want home view with only the published post", got)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "public, max-age=3600" {
		t.Errorf("Cache-Control = %q", cc)
	}
}

func TestHomePartials(t *testing.T) {
	a := newTestApp(t)
	seedPost(t, a, validPost("hello-world"))

	req := httptest.NewRequest(http.MethodGet, "/?partial=blog", nil)
	req.Header.Set("HX-Request", "true")
	rec := doRequest(a, req)
	if rec.Body.String() != "blog-section" {
		t.Errorf("partial=blog body = %q, want blog-section", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/?partial=home", nil)
	req.Header.Set("HX-Request", "true")
	rec = doRequest(a, req)
	if rec.Body.String() != "home-partial" {
		t.Errorf("partial=home body = %q, want home-partial", rec.Body.String())
	}
}

func TestPostPage(t *testing.T) {
	a := newTestApp(t)
	seedPost(t, a, validPost("hello-world"))

	rec := doRequest(a, httptest.NewRequest(http.MethodGet, "/blog/hello-world/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET post = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "post:hello-world" {
		t.Errorf("body = %q, want default post view", rec.Body.String())
	}

	rec = doRequest(a, httptest.NewRequest(http.MethodGet, "/blog/missing/", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("GET missing post = %d, want 404", rec.Code)
	}
	if rec.Body.String() != "not found" {
		t.Errorf("404 body = %q, want not found view", rec.Body.String())
	}
}

func TestPostLayoutDispatch(t *testing.T) {
	a := newTestApp(t)
	banner := validPost("with-banner")
	banner.Layout = "PostBanner"
	seedPost(t, a, banner)
	plain := validPost("with-default")
	plain.Layout = "PostSimple" // not in the test layout map
	seedPost(t, a, plain)

	rec := doRequest(a, httptest.NewRequest(http.MethodGet, "/blog/with-banner/", nil))
	if rec.Body.String() != "banner:with-banner" {
		t.Errorf("body = %q, want the PostBanner layout", rec.Body.String())
	}

	rec = doRequest(a, httptest.NewRequest(http.MethodGet, "/blog/with-default/", nil))
	if rec.Body.String() != "post:with-default" {
		t.Errorf("body = %q, want fallback to the default post view", rec.Body.String())
	}
}

func TestTrailingSlashRedirect(t *testing.T) {
	a := newTestApp(t)
	seedPost(t, a, validPost("hello-world"))

	rec := doRequest(a, httptest.NewRequest(http.MethodGet, "/blog/hello-world", nil))
	if rec.Code != http.StatusMovedPermanently {
		t.Fatalf("GET without slash = %d, want 301", rec.Code)
	}
	if loc := rec.Header().Get(echo.HeaderLocation); loc != "/blog/hello-world/" {
		t.Errorf("Location = %q, want /blog/hello-world/", loc)
	}
}

func TestSitemap(t *testing.T) {
	a := newTestApp(t)
	seedPost(t, a, validPost("hello-world"))

	rec := doRequest(a, httptest.NewRequest(http.MethodGet, "/sitemap.xml", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /sitemap.xml = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); !strings.Contains(ct, "application/xml") {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<urlset") {
		t.Errorf("body missing urlset: %q", body)
	}
	if !strings.Contains(body, "https://example.com/blog/hello-world") {
		t.Errorf("body missing post url: %q", body)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "public, max-age=86400" {
		t.Errorf("Cache-Control = %q", cc)
	}
}

func TestFeed(t *testing.T) {
	a := newTestApp(t)
	a.Authors = map[string]Author{
		"default": {Name: "Jane Doe", Email: "jane@example.com"},
	}
	seedPost(t, a, validPost("hello-world"))

	rec := doRequest(a, httptest.NewRequest(http.MethodGet, "/feed.xml", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /feed.xml = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); !strings.Contains(ct, "application/rss+xml") {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<rss") {
		t.Errorf("body missing rss element: %q", body)
	}
	if !strings.Contains(body, "Testing Tools Roundup") {
		t.Errorf("body missing post title: %q", body)
	}
	if !strings.Contains(body, "<category>go</category>") {
		t.Errorf("body missing category: %q", body)
	}
	if !strings.Contains(body, "jane@example.com (Jane Doe)") {
		t.Errorf("body missing resolved author: %q", body)
	}
}

func TestAdminLoginPage(t *testing.T) {
	a := newTestApp(t)

	rec := doRequest(a, httptest.NewRequest(http.MethodGet, "/admin/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /admin/ = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "login" {
		t.Errorf("body = %q, want login view", rec.Body.String())
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", cc)
	}
}

func TestAdminLoginWrongPassword(t *testing.T) {
	a := newTestApp(t)
	token, cookies := fetchCSRF(t, a)

	form := url.Values{"password": {"wrong"}, "_csrf": {token}}
	req := httptest.NewRequest(http.MethodPost, "/admin/login/", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := doRequest(a, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("wrong password = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "login:error" {
		t.Errorf("body = %q, want login error view", rec.Body.String())
	}
}

func TestAdminLoginRateLimit(t *testing.T) {
	a := newTestApp(t)
	a.loginLimiter = NewLoginLimiter(1, time.Minute)
	token, cookies := fetchCSRF(t, a)

	post := func() *httptest.ResponseRecorder {
		form := url.Values{"password": {"wrong"}, "_csrf": {token}}
		req := httptest.NewRequest(http.MethodPost, "/admin/login/", strings.NewReader(form.Encode()))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
		for _, ck := range cookies {
			req.AddCookie(ck)
		}
		return doRequest(a, req)
	}

	if rec := post(); rec.Code != http.StatusOK {
		t.Fatalf("first attempt = %d, want 200", rec.Code)
	}
	if rec := post(); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second attempt = %d, want 429", rec.Code)
	}
}

func TestAdminLoginAndLogout(t *testing.T) {
	a := newTestApp(t)
	token, cookies := loginAdmin(t, a)

	req := httptest.NewRequest(http.MethodGet, "/admin/", nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := doRequest(a, req)
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Body.String(), "dashboard:") {
		t.Fatalf("GET /admin/ after login = %d %q, want dashboard", rec.Code, rec.Body.String())
	}

	form := url.Values{"_csrf": {token}}
	req = httptest.NewRequest(http.MethodPost, "/admin/logout/", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec = doRequest(a, req)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("logout = %d, want 303", rec.Code)
	}
	cookies = mergeCookies(cookies, rec.Result().Cookies())

	req = httptest.NewRequest(http.MethodGet, "/admin/", nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec = doRequest(a, req)
	if rec.Body.String() != "login" {
		t.Errorf("GET /admin/ after logout = %q, want login view", rec.Body.String())
	}
}

func TestAdminSaveRequiresLogin(t *testing.T) {
	a := newTestApp(t)
	token, cookies := fetchCSRF(t, a)

	form := url.Values{"title": {"Sneaky"}, "_csrf": {token}}
	req := httptest.NewRequest(http.MethodPost, "/admin/save/", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := doRequest(a, req)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("unauthenticated save = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get(echo.HeaderLocation); loc != "/admin/" {
		t.Errorf("Location = %q, want /admin/", loc)
	}
}

func TestAdminSavePublishGate(t *testing.T) {
	a := newTestApp(t)
	token, cookies := loginAdmin(t, a)

	save := func(form url.Values) *httptest.ResponseRecorder {
		form.Set("_csrf", token)
		req := httptest.NewRequest(http.MethodPost, "/admin/save/", strings.NewReader(form.Encode()))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
		for _, ck := range cookies {
			req.AddCookie(ck)
		}
		return doRequest(a, req)
	}

	// Publishing with an empty summary must be blocked and nothing saved.
	form := url.Values{
		"title":     {"Broken Post"},
		"slug":      {"broken-post"},
		"date":      {"2024-03-01"},
		"tags":      {"go"},
		"authors":   {"default"},
		"layout":    {"PostLayout"},
		"content":   {"Body text."},
		"published": {"on"},
	}
	rec := save(form)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("blocked publish = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get(echo.HeaderLocation); !strings.Contains(loc, "Not+published") {
		t.Errorf("Location = %q, want a not-published message", loc)
	}
	if _, err := a.Store.GetPostAny("broken-post"); err != sql.ErrNoRows {
		t.Errorf("blocked post should not be saved, got err %v", err)
	}

	// The same post with a summary passes the checks and publishes.
	form.Set("summary", "A complete summary.")
	rec = save(form)
	if rec.Code != http.StatusOK || rec.Body.String() != "dashboard:saved" {
		t.Fatalf("publish = %d %q, want saved dashboard", rec.Code, rec.Body.String())
	}
	got, err := a.Store.GetPost("broken-post")
	if err != nil {
		t.Fatalf("GetPost after publish: %v", err)
	}
	if !got.Published {
		t.Error("post should be published")
	}
}

func TestAdminSaveDraftSkipsChecks(t *testing.T) {
	a := newTestApp(t)
	token, cookies := loginAdmin(t, a)

	// No summary, no tags: would never publish, but drafts save fine.
	form := url.Values{
		"title":   {"Rough Draft"},
		"slug":    {"rough-draft"},
		"content": {"Half a thought."},
		"_csrf":   {token},
	}
	req := httptest.NewRequest(http.MethodPost, "/admin/save/", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := doRequest(a, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "dashboard:saved" {
		t.Fatalf("draft save = %d %q, want saved dashboard", rec.Code, rec.Body.String())
	}

	got, err := a.Store.GetPostAny("rough-draft")
	if err != nil {
		t.Fatalf("GetPostAny: %v", err)
	}
	if got.Published {
		t.Error("draft should not be published")
	}
}

func TestAdminCheckEndpoint(t *testing.T) {
	a := newTestApp(t)
	token, cookies := loginAdmin(t, a)

	p := validPost("needs-work")
	p.Summary = ""
	p.Published = false
	seedPost(t, a, p)

	req := httptest.NewRequest(http.MethodPost, "/admin/check/needs-work/", nil)
	req.Header.Set("X-CSRF-Token", token)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := doRequest(a, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("check = %d, want 200 (body %q)", rec.Code, rec.Body.String())
	}

	var report check.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Path != "needs-work" {
		t.Errorf("report path = %q, want needs-work", report.Path)
	}
	found := false
	for _, f := range report.Findings {
		if f.Rule == check.RuleFrontMatterMissing && strings.Contains(f.Message, "summary") {
			found = true
		}
	}
	if !found {
		t.Errorf("findings %v missing the empty-summary error", report.Findings)
	}

	req = httptest.NewRequest(http.MethodPost, "/admin/check/nope/", nil)
	req.Header.Set("X-CSRF-Token", token)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec = doRequest(a, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("check unknown slug = %d, want 404", rec.Code)
	}
}

func TestAdminCheckWithLinks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ok" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	a := newTestApp(t)
	token, cookies := loginAdmin(t, a)

	p := validPost("linked")
	p.Content = "See [good](" + srv.URL + "/ok) and [bad](" + srv.URL + "/missing).\n"
	seedPost(t, a, p)

	req := httptest.NewRequest(http.MethodPost, "/admin/check/linked/?links=1", nil)
	req.Header.Set("X-CSRF-Token", token)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := doRequest(a, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("check = %d, want 200", rec.Code)
	}

	var report check.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	broken := 0
	for _, f := range report.Findings {
		if f.Rule == check.RuleLinkBroken {
			broken++
			if !strings.Contains(f.Message, "/missing") {
				t.Errorf("broken link finding should name the bad url, got %q", f.Message)
			}
		}
	}
	if broken != 1 {
		t.Errorf("broken link findings = %d, want 1 (report %v)", broken, report.Findings)
	}
}

func TestAdminDeletePost(t *testing.T) {
	a := newTestApp(t)
	token, cookies := loginAdmin(t, a)
	seedPost(t, a, validPost("doomed"))

	req := httptest.NewRequest(http.MethodDelete, "/admin/post/doomed/", nil)
	req.Header.Set("X-CSRF-Token", token)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := doRequest(a, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "dashboard:deleted" {
		t.Fatalf("delete = %d %q, want deleted dashboard", rec.Code, rec.Body.String())
	}
	if _, err := a.Store.GetPostAny("doomed"); err != sql.ErrNoRows {
		t.Errorf("post should be gone, got err %v", err)
	}
}

func TestAdminPostFormPartial(t *testing.T) {
	a := newTestApp(t)
	_, cookies := loginAdmin(t, a)
	seedPost(t, a, validPost("editable"))

	req := httptest.NewRequest(http.MethodGet, "/admin/post/editable/", nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := doRequest(a, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "form:editable" {
		t.Fatalf("form partial = %d %q", rec.Code, rec.Body.String())
	}
}

func TestAnalyticsCollectSkipsCSRF(t *testing.T) {
	a := newTestAppConfig(t, SiteConfig{AnalyticsEnabled: true})

	body := `{"path":"/blog/hello-world/","screen_size":"1920x1080"}`
	req := httptest.NewRequest(http.MethodPost, "/api/analytics/collect", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) Firefox/124.0")
	rec := doRequest(a, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("collect without csrf = %d, want 204 (body %q)", rec.Code, rec.Body.String())
	}
}

func TestAnalyticsCollectHonorsDNT(t *testing.T) {
	a := newTestAppConfig(t, SiteConfig{AnalyticsEnabled: true})

	body := `{"path":"/blog/hello-world/"}`
	req := httptest.NewRequest(http.MethodPost, "/api/analytics/collect", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) Firefox/124.0")
	req.Header.Set("DNT", "1")
	rec := doRequest(a, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("collect with DNT = %d, want 204", rec.Code)
	}

	stats, err := a.analyticsStore.GetStats(time.Now().Add(-time.Hour), time.Now().Add(time.Hour), false, false)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.TotalViews != 0 {
		t.Errorf("DNT visit should not be stored, got %d views", stats.TotalViews)
	}
}
