package updates

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// htmxRequest reports whether the request came from htmx, in which case a
// handler may answer with a fragment instead of a full page.
func htmxRequest(c echo.Context) bool {
	return c.Request().Header.Get("HX-Request") == "true"
}

func (a *App) handleHome(c echo.Context) error {
	activeTag := c.QueryParam("tag")
	posts, err := a.Cache.ListPosts(activeTag)
	if err != nil {
		return err
	}
	tags, err := a.Cache.ListTags()
	if err != nil {
		return err
	}
	if htmxRequest(c) {
		switch c.QueryParam("partial") {
		case "blog":
			return Render(c, a.Views.BlogSection(posts, activeTag, tags))
		case "home":
			return Render(c, a.Views.HomePartial(posts, activeTag, tags, a.Config.URL))
		}
	}
	return Render(c, a.Views.Home(posts, activeTag, tags, a.Config.URL))
}

// handlePost serves a published post. The post's layout field picks the
// component: a match in Views.PostLayouts wins, anything else falls back to
// Views.Post.
func (a *App) handlePost(c echo.Context) error {
	post, err := a.Cache.GetPost(c.Param("slug"))
	if errors.Is(err, ErrNotFound) {
		return RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
	}
	if err != nil {
		return err
	}
	all, err := a.Cache.ListPosts("")
	if err != nil {
		return err
	}
	if htmxRequest(c) && c.QueryParam("partial") == "post" {
		return Render(c, a.Views.PostPartial(post, all, a.Config.URL))
	}
	if layout, ok := a.Views.PostLayouts[post.Layout]; ok {
		return Render(c, layout(post, all, a.Config.URL))
	}
	return Render(c, a.Views.Post(post, all, a.Config.URL))
}

func (a *App) handleSitemap(c echo.Context) error {
	posts, err := a.Cache.ListPosts("")
	if err != nil {
		return err
	}
	return a.renderSitemap(c, posts)
}

func (a *App) handleFeed(c echo.Context) error {
	posts, err := a.Cache.ListPosts("")
	if err != nil {
		return err
	}
	return a.renderRSS(c, posts)
}

// The home page is the blog index, so /blog has nothing of its own.
func handleBlogRedirect(c echo.Context) error {
	return c.Redirect(http.StatusMovedPermanently, "/")
}

func (a *App) handleFavicon(c echo.Context) error {
	return c.File(a.staticDir + "/favicon.svg")
}

func (a *App) handleRobots(c echo.Context) error {
	return c.File(a.staticDir + "/robots.txt")
}

// httpErrorHandler swaps echo's default error pages for the injected
// NotFound and ServerError views.
func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
	}
	switch {
	case code == http.StatusNotFound:
		_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
	case code >= 500:
		c.Logger().Errorf("server error: %v", err)
		_ = RenderStatus(c, code, a.Views.ServerError())
	default:
		a.Echo.DefaultHTTPErrorHandler(err, c)
	}
}
