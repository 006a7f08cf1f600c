// Package updates is a publishing engine for a writing site built with
// Go, Echo, and templ. Posts are Markdown/MDX files with YAML front
// matter, ingested into SQLite and served with an admin dashboard,
// editorial checks, analytics, RSS, and sitemap out of the box.
//
// Users provide their own templ templates via the ViewFuncs struct,
// and the engine handles all the handler logic, middleware, content
// pipeline, and database operations.
package updates

import (
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/Lottamob/Updates/analytics"
	"github.com/Lottamob/Updates/check"
	"github.com/Lottamob/Updates/content"
)

// ViewFuncs holds user-provided templ components that the engine calls
// when rendering pages. This is the inversion-of-control mechanism that
// lets users own and customize all templates.
type ViewFuncs struct {
	Home             func(posts []Post, activeTag string, tags []string, siteURL string) templ.Component
	HomePartial      func(posts []Post, activeTag string, tags []string, siteURL string) templ.Component
	BlogSection      func(posts []Post, activeTag string, tags []string) templ.Component
	Post             func(post Post, posts []Post, siteURL string) templ.Component
	PostPartial      func(post Post, posts []Post, siteURL string) templ.Component
	AdminLogin       func(showError bool, csrfToken string) templ.Component
	AdminDashboard   func(posts []Post, message string, csrfToken string) templ.Component
	AdminFormPartial func(post Post, csrfToken string) templ.Component
	AdminImages      func(images []Image, csrfToken string) templ.Component
	NotFound         func() templ.Component
	ServerError      func() templ.Component

	// PostLayouts maps front-matter layout ids ("PostLayout",
	// "PostSimple", "PostBanner") to components. A post whose layout is
	// found here renders with that component; otherwise Post is used.
	PostLayouts map[string]func(post Post, posts []Post, siteURL string) templ.Component
}

// App is the central application. It wires together the store, cache,
// content pipeline, handlers, middleware, and user-provided templates.
type App struct {
	Config  SiteConfig
	Echo    *echo.Echo
	Store   *Store
	Cache   *PostCache
	Views   ViewFuncs
	Authors map[string]Author

	parser         *content.Parser
	checker        *check.Checker
	linkChecker    *check.LinkChecker
	loginLimiter   *LoginLimiter
	analyticsStore *analytics.Store
	customRoutes   []func(*App)
	staticDir      string
}

// New creates an App with the given configuration and view functions.
func New(cfg SiteConfig, views ViewFuncs, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config:    cfg,
		Echo:      echo.New(),
		Views:     views,
		Authors:   map[string]Author{},
		parser:    content.NewParser(),
		checker:   &check.Checker{Layouts: cfg.Layouts},
		staticDir: "public",
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Start initializes the database, content pipeline, middleware, and
// routes, and starts the server.
func (a *App) Start() error {
	// Validate required config
	if a.Config.AdminPassword == "" {
		return fmt.Errorf("updates: AdminPassword is required")
	}
	if a.Config.SessionSecret == "" {
		return fmt.Errorf("updates: SessionSecret is required")
	}

	// Initialize store
	store, err := NewStore(a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("updates: init store: %w", err)
	}
	a.Store = store

	// Load the author registry and ingest file-based content
	if a.Config.AuthorsFile != "" {
		authors, err := LoadAuthors(a.Config.AuthorsFile)
		if err != nil {
			return fmt.Errorf("updates: load authors: %w", err)
		}
		a.Authors = authors
		a.checker.Authors = authorIDs(authors)
	}
	if a.Config.ContentDir != "" {
		if err := a.SyncContent(); err != nil {
			return fmt.Errorf("updates: sync content: %w", err)
		}
	}

	// Initialize cache
	a.Cache = NewPostCache(a.Store, a.Config.PostCacheTTL)

	// Initialize login limiter
	a.loginLimiter = NewLoginLimiter(5, time.Minute)

	// Initialize the link checker used by on-demand admin checks
	if a.linkChecker == nil {
		a.linkChecker = &check.LinkChecker{Timeout: a.Config.LinkCheckTimeout}
	}

	// Initialize analytics if enabled
	if a.Config.AnalyticsEnabled {
		analyticsStore, err := analytics.NewStore(a.Config.AnalyticsDatabasePath)
		if err != nil {
			return fmt.Errorf("updates: init analytics: %w", err)
		}
		a.analyticsStore = analyticsStore
		if err := analytics.InitSalt(analyticsStore); err != nil {
			return fmt.Errorf("updates: init analytics salt: %w", err)
		}
		stopCleanup := analyticsStore.StartCleanupScheduler(365, 24*time.Hour)
		defer stopCleanup()
	}

	// Setup middleware
	a.setupMiddleware()

	// Setup routes
	a.setupRoutes()

	// Apply custom routes
	for _, fn := range a.customRoutes {
		fn(a)
	}

	// Re-ingest when files under the content directory change
	if a.Config.WatchContent && a.Config.ContentDir != "" {
		stopWatch, err := a.watchContent()
		if err != nil {
			return fmt.Errorf("updates: watch content: %w", err)
		}
		defer stopWatch()
	}

	// Start server
	if err := a.Echo.Start(a.Config.Addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	// Serve the embedded analytics beacon under /public/, ahead of the
	// user's static dir.
	embeddedFS, _ := fs.Sub(EmbeddedAssets, "embedded")
	embeddedHandler := http.FileServer(http.FS(embeddedFS))
	e.GET("/public/analytics.js", echo.WrapHandler(http.StripPrefix("/public/", embeddedHandler)))

	// User's static assets
	e.Static("/public", a.staticDir)
	e.GET("/favicon.svg", a.handleFavicon)
	e.GET("/robots.txt", a.handleRobots)

	// Public routes
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/blog", handleBlogRedirect)
	e.GET("/", a.handleHome)
	e.GET("/blog/:slug/", a.handlePost)

	// Admin routes. Login and the dashboard entry point are open;
	// everything else requires the session.
	e.GET("/admin/", a.handleAdmin)
	e.POST("/admin/login/", a.handleAdminLogin)
	e.POST("/admin/logout/", handleAdminLogout)
	e.GET("/admin/post/:slug/", a.handleAdminPost, adminRequired)
	e.POST("/admin/save/", a.handleAdminSave, adminRequired)
	e.POST("/admin/check/:slug/", a.handleAdminCheck, adminRequired)
	e.DELETE("/admin/post/:slug/", a.handleAdminDelete, adminRequired)
	e.GET("/admin/images/", a.handleImageList, adminRequired)
	e.POST("/admin/images/upload/", a.handleImageUpload, adminRequired)
	e.DELETE("/admin/images/:filename/", a.handleImageDelete, adminRequired)

	// Analytics routes
	if a.Config.AnalyticsEnabled && a.analyticsStore != nil {
		analyticsHandler := analytics.NewHandler(a.analyticsStore)
		publicGroup := e.Group("")
		analyticsHandler.RegisterRoutes(e, publicGroup, adminRequired)
	}
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.Store != nil {
		a.Store.Close()
	}
	if a.analyticsStore != nil {
		a.analyticsStore.Close()
	}
	return nil
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// MustEnv returns the value of the environment variable key, or fatally exits if empty.
func MustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("updates: required environment variable %s is not set", key)
	}
	return v
}
