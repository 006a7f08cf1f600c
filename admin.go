package updates

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"gopkg.in/yaml.v3"

	"github.com/Lottamob/Updates/check"
	"github.com/Lottamob/Updates/content"
)

// handleAdmin shows the dashboard, or the login form to anonymous
// visitors. Every other admin route sits behind adminRequired.
func (a *App) handleAdmin(c echo.Context) error {
	if !IsAdmin(c) {
		return Render(c, a.Views.AdminLogin(false, CsrfToken(c)))
	}
	return a.renderAdminDashboard(c, c.QueryParam("msg"))
}

func (a *App) handleAdminPost(c echo.Context) error {
	post, err := a.Store.GetPostAny(c.Param("slug"))
	if errors.Is(err, ErrNotFound) {
		return c.NoContent(http.StatusNotFound)
	}
	if err != nil {
		return err
	}
	return Render(c, a.Views.AdminFormPartial(post, CsrfToken(c)))
}

// handleAdminLogin checks the password constant-time, behind the login
// limiter so the comparison cannot be brute-forced.
func (a *App) handleAdminLogin(c echo.Context) error {
	if !a.loginLimiter.Allow(c.RealIP()) {
		return c.String(http.StatusTooManyRequests, "Too many attempts. Wait a minute and try again.")
	}
	supplied := []byte(c.FormValue("password"))
	if subtle.ConstantTimeCompare(supplied, []byte(a.Config.AdminPassword)) != 1 {
		return Render(c, a.Views.AdminLogin(true, CsrfToken(c)))
	}
	if err := saveAdminSession(c, true); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/")
}

func handleAdminLogout(c echo.Context) error {
	if err := saveAdminSession(c, false); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/")
}

// adminRedirect bounces back to the dashboard with msg in the query string.
func adminRedirect(c echo.Context, msg string) error {
	return c.Redirect(http.StatusSeeOther, "/admin/?msg="+url.QueryEscape(msg))
}

// formDate normalizes the date field: empty means today, anything else
// must be YYYY-MM-DD.
func formDate(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Now().Format("2006-01-02"), true
	}
	_, err := time.Parse("2006-01-02", raw)
	return raw, err == nil
}

func (a *App) handleAdminSave(c echo.Context) error {
	if err := c.Request().ParseForm(); err != nil {
		return err
	}
	title := strings.TrimSpace(c.FormValue("title"))
	slug := strings.TrimSpace(c.FormValue("slug"))
	if slug == "" {
		slug = Slugify(title)
	}
	if slug == "" {
		return adminRedirect(c, "Slug is required. Add a title or slug.")
	}
	date, ok := formDate(c.FormValue("date"))
	if !ok {
		return adminRedirect(c, "Invalid date format. Use YYYY-MM-DD.")
	}
	post := Post{
		Slug:      slug,
		Title:     title,
		Date:      date,
		Tags:      SplitCSV(c.FormValue("tags")),
		Summary:   c.FormValue("summary"),
		Authors:   SplitCSV(c.FormValue("authors")),
		Images:    SplitCSV(c.FormValue("images")),
		Layout:    strings.TrimSpace(c.FormValue("layout")),
		Content:   c.FormValue("content"),
		Published: c.FormValue("published") != "",
	}
	// Drafts save unconditionally. Publishing has to pass the offline
	// editorial checks first.
	if post.Published {
		report, _, err := a.checkPost(post)
		if err != nil {
			return err
		}
		if !report.Ok() {
			return adminRedirect(c, publishBlockedMessage(report))
		}
	}
	if err := a.Store.SavePost(post); err != nil {
		return err
	}
	a.Cache.Invalidate()
	return a.renderAdminDashboard(c, "saved")
}

// handleAdminCheck runs the editorial checks for one post and returns
// the report as JSON. Passing ?links=1 also probes external links.
func (a *App) handleAdminCheck(c echo.Context) error {
	slug := c.Param("slug")
	post, err := a.Store.GetPostAny(slug)
	if errors.Is(err, ErrNotFound) {
		return c.NoContent(http.StatusNotFound)
	}
	if err != nil {
		return err
	}
	report, doc, err := a.checkPost(post)
	if err != nil {
		return err
	}
	if c.QueryParam("links") == "1" {
		report.Merge(a.linkChecker.Check(c.Request().Context(), doc))
	}
	report.Path = slug
	return c.JSON(http.StatusOK, report)
}

func (a *App) handleAdminDelete(c echo.Context) error {
	if err := a.Store.DeletePost(c.Param("slug")); err != nil {
		return err
	}
	a.Cache.Invalidate()
	return a.renderAdminDashboard(c, "deleted")
}

func (a *App) renderAdminDashboard(c echo.Context, msg string) error {
	posts, err := a.Store.ListAllPosts()
	if err != nil {
		return err
	}
	return Render(c, a.Views.AdminDashboard(posts, msg, CsrfToken(c)))
}

// checkPost parses the post as it would appear on disk, front matter
// included, and runs the offline editorial checks against it.
func (a *App) checkPost(post Post) (*check.Report, *content.Document, error) {
	src, err := composePostSource(post)
	if err != nil {
		return nil, nil, err
	}
	doc, err := a.parser.Parse([]byte(src))
	if err != nil {
		return nil, nil, err
	}
	return a.checker.Check(doc), doc, nil
}

// composePostSource rebuilds a post's on-disk form from its fields.
func composePostSource(post Post) (string, error) {
	head, err := yaml.Marshal(content.FrontMatter{
		Title:   post.Title,
		Date:    post.Date,
		Tags:    post.Tags,
		Draft:   !post.Published,
		Summary: post.Summary,
		Authors: post.Authors,
		Images:  post.Images,
		Layout:  post.Layout,
	})
	if err != nil {
		return "", err
	}
	return "---\n" + string(head) + "---\n\n" + post.Content, nil
}

func publishBlockedMessage(report *check.Report) string {
	for _, f := range report.Findings {
		if f.Severity == check.SeverityError {
			return "Not published. " + f.Rule + ": " + f.Message
		}
	}
	return "Not published."
}
