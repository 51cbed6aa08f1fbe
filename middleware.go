package orator

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/eringen/orator/activity"
)

const sessionName = "admin_session"

// apiPaths are the JSON endpoints that accept header authentication.
var apiPaths = map[string]bool{
	"/create_page": true,
	"/delete_page": true,
	"/api/convert": true,
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
		LogError:    true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			kv := []interface{}{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency, "ip", v.RemoteIP}
			if v.Error != nil {
				a.Log.Warn("request", append(kv, "error", v.Error)...)
				return nil
			}
			a.Log.Info("request", kv...)
			return nil
		},
	}))

	e.Use(middleware.Recover())

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			// Audio and cover images are already compressed.
			p := c.Request().URL.Path
			return strings.HasPrefix(p, "/files/") || strings.HasSuffix(p, ".jpg")
		},
	}))

	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "SAMEORIGIN",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' https: data:; font-src 'self'; connect-src 'self'; frame-src 'self' https:; media-src 'self'",
		HSTSMaxAge:            31536000,
		HSTSExcludeSubdomains: false,
	}))

	e.Use(session.Middleware(a.newSessionStore()))

	e.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
		ContextKey:  middleware.DefaultCSRFConfig.ContextKey,
		TokenLookup: "header:X-CSRF-Token,form:_csrf",
		CookieName:  "_csrf",
		CookiePath:  "/",
		CookieSameSite: func() http.SameSite {
			return http.SameSiteLaxMode
		}(),
		CookieSecure: a.Config.CookieSecure,
		Skipper: func(c echo.Context) bool {
			// Header-authenticated API clients carry no cookies to forge, and
			// unauthenticated API calls are rejected by requireAdmin.
			if !apiPaths[c.Request().URL.Path] {
				return false
			}
			return c.Request().Header.Get(echo.HeaderAuthorization) != "" || !IsAdmin(c)
		},
		ErrorHandler: func(err error, c echo.Context) error {
			return writeAPIError(c, errForbidden)
		},
	}))

	e.Use(middleware.AddTrailingSlashWithConfig(middleware.TrailingSlashConfig{
		RedirectCode: http.StatusMovedPermanently,
		Skipper: func(c echo.Context) bool {
			return !strings.HasPrefix(c.Request().URL.Path, "/admin")
		},
	}))

	e.Use(cacheControlMiddleware)
}

func cacheControlMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		path := c.Request().URL.Path
		h := c.Response().Header()
		switch {
		case strings.HasPrefix(path, "/admin"), path == "/get_pages",
			apiPaths[path], strings.HasPrefix(path, "/api/"):
			h.Set("Cache-Control", "no-store")
		case strings.HasPrefix(path, "/data/"), strings.HasPrefix(path, "/pages/"), path == "/":
			// Rewritten on every create, delete, and conversion.
			h.Set("Cache-Control", "no-cache")
		case strings.HasPrefix(path, "/files/"), strings.HasPrefix(path, "/books/"),
			path == "/sitemap.xml", path == "/feed.xml":
			h.Set("Cache-Control", "public, max-age=86400")
		default:
			h.Set("Cache-Control", "public, max-age=3600")
		}
		return next(c)
	}
}

func (a *App) newSessionStore() *sessions.CookieStore {
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

// IsAdmin checks if the current session is authenticated.
func IsAdmin(c echo.Context) bool {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return false
	}
	auth, ok := sess.Values["authenticated"].(bool)
	return ok && auth
}

func setAdminSession(c echo.Context) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	sess.Values["authenticated"] = true
	return sess.Save(c.Request(), c.Response())
}

func clearAdminSession(c echo.Context) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	sess.Options.MaxAge = -1
	return sess.Save(c.Request(), c.Response())
}

// CsrfToken extracts the CSRF token from the Echo context.
func CsrfToken(c echo.Context) string {
	token, _ := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string)
	return token
}

// checkSecret compares a presented credential with the admin password in
// constant time.
func (a *App) checkSecret(presented string) bool {
	return subtle.ConstantTimeCompare([]byte(presented), []byte(a.Config.AdminPassword)) == 1
}

// requireAdmin admits requests carrying the admin password in the
// Authorization header or an authenticated session. Wrong credentials count
// against the caller's login limit.
func (a *App) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		auth := c.Request().Header.Get(echo.HeaderAuthorization)
		if auth == "" {
			if IsAdmin(c) {
				return next(c)
			}
			return errUnauthorized
		}

		ip := c.RealIP()
		if !a.loginLimiter.Check(ip) {
			return errTooManyAttempts
		}
		if !a.checkSecret(auth) {
			a.loginLimiter.Record(ip)
			a.Activity.Log(c.Request().Context(), activity.LoginFailed, ip, c.Request().URL.Path)
			return errUnauthorized
		}
		return next(c)
	}
}
