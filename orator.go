// Package orator serves a personal website of talk and reading pages and
// books, with a small admin API for creating and deleting pages and for
// converting the site into its static form.
//
// The filesystem under the site root is the only source of truth. Handlers
// re-read the pages and book directories on every request.
package orator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/eringen/orator/activity"
	"github.com/eringen/orator/logging"
	"github.com/eringen/orator/pages"
	"github.com/eringen/orator/templates"
	"github.com/eringen/orator/views"
)

// ViewFuncs holds the templ components the server renders. The defaults
// come from the views package; WithViews swaps them out.
type ViewFuncs struct {
	AdminLogin     func(showError bool, csrfToken string) templ.Component
	AdminDashboard func(d views.Dashboard) templ.Component
	NotFound       func() templ.Component
	ServerError    func() templ.Component
}

// DefaultViews returns the built-in views.
func DefaultViews() ViewFuncs {
	return ViewFuncs{
		AdminLogin:     views.AdminLogin,
		AdminDashboard: views.AdminDashboard,
		NotFound:       views.NotFound,
		ServerError:    views.ServerError,
	}
}

// App is the central orator application. It wires together the page store,
// the activity log, handlers, middleware, and views.
type App struct {
	Config    SiteConfig
	Echo      *echo.Echo
	Pages     *pages.Store
	Templates *templates.Set
	Activity  *activity.Store
	Views     ViewFuncs
	Log       *logging.Logger

	loginLimiter *LoginLimiter
	stopCleanup  func()
	customRoutes []func(*App)
	ready        bool
}

// New creates a new orator App with the given configuration.
func New(cfg SiteConfig, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
		Views:  DefaultViews(),
	}
	a.Echo.HideBanner = true
	a.Echo.HidePort = true

	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Init opens the activity log and registers middleware and routes. Start
// calls it; tests call it directly and drive a.Echo with httptest.
func (a *App) Init() error {
	if a.ready {
		return nil
	}
	if a.Config.AdminPassword == "" {
		return fmt.Errorf("orator: AdminPassword is required")
	}
	if a.Config.SessionSecret == "" {
		return fmt.Errorf("orator: SessionSecret is required")
	}
	if a.Log == nil {
		l, err := logging.New(a.Config.LogMode)
		if err != nil {
			return fmt.Errorf("orator: init logger: %w", err)
		}
		a.Log = l
	}

	a.Templates = templates.NewSet(a.Config.TemplatesDir)
	a.Pages = pages.NewStore(a.Config.PagesDir, a.Templates, a.Log)

	store, err := activity.NewStore(a.Config.ActivityDatabasePath, a.Log)
	if err != nil {
		return fmt.Errorf("orator: init activity log: %w", err)
	}
	a.Activity = store
	a.stopCleanup = store.StartCleanupScheduler(a.Config.ActivityRetentionDays, 24*time.Hour)

	a.loginLimiter = NewLoginLimiter(5, time.Minute)

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	a.ready = true
	return nil
}

// Start initializes the app and serves until the server is shut down.
func (a *App) Start() error {
	if err := a.Init(); err != nil {
		return err
	}
	a.Log.Info("serving site", "addr", a.Config.Addr, "root", a.Config.Root, "debug", a.Config.Debug)
	if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Echo.Shutdown(ctx)
}

func (a *App) setupRoutes() {
	e := a.Echo

	// Site
	e.GET("/", a.handleIndex)
	e.GET("/pages/*", a.serveDir(a.Config.PagesDir))
	e.GET("/data/*", a.serveDir(a.Config.DataDir))
	e.GET("/files/*", a.serveDir(a.Config.FilesDir))
	e.GET("/books/*", a.serveDir(a.Config.BooksDir))
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/*", a.serveDir(a.Config.Root))

	// Page API
	e.GET("/get_pages", a.handleGetPages)
	e.POST("/create_page", a.handleCreatePage, a.requireAdmin)
	e.POST("/delete_page", a.handleDeletePage, a.requireAdmin)
	e.GET("/api/chapters/:book_id", a.handleChapters)
	e.POST("/api/convert", a.handleConvert, a.requireAdmin)

	if a.Config.Debug {
		e.GET("/check_files/:book_id", a.handleCheckFiles)
		e.GET("/debug/paths", a.handleDebugPaths)
	}

	// Admin
	e.GET("/admin/", a.handleAdmin)
	e.POST("/admin/login/", a.handleAdminLogin)
	e.POST("/admin/logout/", handleAdminLogout)
	e.POST("/admin/create/", a.handleAdminCreate)
	e.POST("/admin/delete/", a.handleAdminDelete)
	e.POST("/admin/convert/", a.handleAdminConvert)
	e.GET("/admin/activity/", a.handleActivity, a.requireAdmin)
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.stopCleanup != nil {
		a.stopCleanup()
	}
	if a.loginLimiter != nil {
		a.loginLimiter.Stop()
	}
	if a.Activity != nil {
		a.Activity.Close()
	}
	if a.Log != nil {
		a.Log.Sync()
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

// MustEnv returns the value of the environment variable key, or exits if empty.
func MustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		fmt.Fprintf(os.Stderr, "orator: required environment variable %s is not set\n", key)
		os.Exit(1)
	}
	return v
}
