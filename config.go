package updates

import (
	"time"

	"github.com/Lottamob/Updates/check"
)

// SiteConfig holds all configuration for an updates site.
type SiteConfig struct {
	Name        string // Site name (default "Blog")
	URL         string // Canonical URL (default "http://localhost:3000")
	Description string // Site description for RSS and meta tags
	Author      string // Default author name for JSON-LD

	Addr         string // Listen address (default ":3000")
	DatabasePath string // SQLite path (default "data/blog.db")

	ContentDir   string // Directory of .md/.mdx post sources; empty disables ingest
	AuthorsFile  string // YAML authors registry (default "<ContentDir>/authors.yaml")
	WatchContent bool   // Re-ingest when files under ContentDir change

	Layouts          []string      // Accepted post layouts (default check.DefaultLayouts)
	LinkCheckTimeout time.Duration // Per-request timeout for on-demand link checks (default 10s)

	AnalyticsEnabled      bool   // Enable the analytics subsystem
	AnalyticsDatabasePath string // Analytics SQLite path (default "data/analytics.db")

	AdminPassword string // Admin login password, required
	SessionSecret string // Session cookie encryption key, required
	CookieSecure  bool   // Mark cookies Secure; enable when serving HTTPS

	PostCacheTTL time.Duration // How long the post cache holds a snapshot (default 5min)
}

func defaultString(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

func (c *SiteConfig) setDefaults() {
	defaultString(&c.Name, "Blog")
	defaultString(&c.URL, "http://localhost:3000")
	defaultString(&c.Addr, ":3000")
	defaultString(&c.DatabasePath, "data/blog.db")
	defaultString(&c.AnalyticsDatabasePath, "data/analytics.db")
	if c.AuthorsFile == "" && c.ContentDir != "" {
		c.AuthorsFile = c.ContentDir + "/authors.yaml"
	}
	if c.LinkCheckTimeout == 0 {
		c.LinkCheckTimeout = 10 * time.Second
	}
	if c.PostCacheTTL == 0 {
		c.PostCacheTTL = 5 * time.Minute
	}
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App before the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStaticDir sets the directory for user-owned static assets (default "public").
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.staticDir = dir
	}
}

// WithLinkChecker replaces the link checker used by the admin check
// endpoint, mainly so tests can point it at a local server.
func WithLinkChecker(lc *check.LinkChecker) Option {
	return func(a *App) {
		a.linkChecker = lc
	}
}
