package updates

import (
	"net/http"
	"strings"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const sessionName = "admin_session"

// Content-Security-Policy for every response. htmx needs inline scripts and
// eval-adjacent wasm, images may come from anywhere over https.
var cspHeader = strings.Join([]string{
	"default-src 'self'",
	"script-src 'self' 'unsafe-inline' 'wasm-unsafe-eval' blob:",
	"style-src 'self' 'unsafe-inline'",
	"img-src 'self' https: data:",
	"font-src 'self'",
	"connect-src 'self' data: blob:",
	"worker-src 'self' blob:",
	"media-src 'self' data:",
}, "; ")

// Paths that are files, not pages: no trailing-slash redirect for these.
var filePaths = map[string]bool{
	"/sitemap.xml": true,
	"/feed.xml":    true,
	"/robots.txt":  true,
}

func pathHasAnyPrefix(path string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func (a *App) setupMiddleware() {
	e := a.Echo

	e.IPExtractor = echo.ExtractIPFromXFFHeader(
		echo.TrustLoopback(true),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(true),
	)

	e.HTTPErrorHandler = a.httpErrorHandler

	e.Pre(middleware.NonWWWRedirect())

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			c.Logger().Infof("%s %s %s -> %d (%s)", v.RemoteIP, v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))

	e.Use(middleware.Recover())

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			// Embedded assets are served as-is.
			return pathHasAnyPrefix(c.Request().URL.Path, "/public/")
		},
	}))

	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: cspHeader,
		HSTSMaxAge:            31536000,
		HSTSExcludeSubdomains: false,
	}))

	e.Use(session.Middleware(a.sessionStore()))

	e.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
		ContextKey:     middleware.DefaultCSRFConfig.ContextKey,
		TokenLookup:    "header:X-CSRF-Token,form:_csrf",
		CookieName:     "_csrf",
		CookiePath:     "/",
		CookieSameSite: http.SameSiteLaxMode,
		CookieSecure:   a.Config.CookieSecure,
		Skipper: func(c echo.Context) bool {
			// The beacon posts cross-page without a token.
			return pathHasAnyPrefix(c.Request().URL.Path, "/api/analytics/")
		},
		ErrorHandler: func(err error, c echo.Context) error {
			return c.String(http.StatusForbidden, "Forbidden")
		},
	}))

	e.Use(middleware.AddTrailingSlashWithConfig(middleware.TrailingSlashConfig{
		RedirectCode: http.StatusMovedPermanently,
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return filePaths[path] ||
				pathHasAnyPrefix(path, "/public", "/api/", "/admin/analytics/api/")
		},
	}))

	e.Use(cacheControl)
}

// cacheControl sets a Cache-Control policy by path class: embedded assets
// are immutable, feeds refresh daily, pages hourly, admin never.
func cacheControl(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		path := c.Request().URL.Path
		policy := "public, max-age=3600"
		switch {
		case strings.HasPrefix(path, "/public/"):
			policy = "public, max-age=31536000, immutable"
		case filePaths[path]:
			policy = "public, max-age=86400"
		case strings.HasPrefix(path, "/admin"):
			policy = "no-store"
		}
		c.Response().Header().Set("Cache-Control", policy)
		return next(c)
	}
}

func (a *App) sessionStore() *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(a.Config.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		MaxAge:   60 * 60 * 12,
		SameSite: http.SameSiteLaxMode,
		Secure:   a.Config.CookieSecure,
	}
	return store
}

// IsAdmin reports whether the request carries an authenticated admin session.
func IsAdmin(c echo.Context) bool {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return false
	}
	auth, ok := sess.Values["authenticated"].(bool)
	return ok && auth
}

// adminRequired bounces anonymous requests to the login page. /admin/
// itself stays open so it can show the login form.
func adminRequired(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !IsAdmin(c) {
			return c.Redirect(http.StatusSeeOther, "/admin/")
		}
		return next(c)
	}
}

// saveAdminSession writes the session cookie: authenticated on login,
// expired on logout.
func saveAdminSession(c echo.Context, authenticated bool) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	if authenticated {
		sess.Values["authenticated"] = true
	} else {
		sess.Options.MaxAge = -1
	}
	return sess.Save(c.Request(), c.Response())
}

// CsrfToken exposes the request's CSRF token to the injected templates.
func CsrfToken(c echo.Context) string {
	token, _ := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string)
	return token
}
