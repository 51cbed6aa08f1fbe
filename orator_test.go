package orator

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/orator/activity"
	"github.com/eringen/orator/logging"
	"github.com/eringen/orator/pages"
	"github.com/eringen/orator/scaffold"
)

const testPassword = "s3cret"

func newTestApp(t *testing.T, mutate ...func(*SiteConfig)) *App {
	t.Helper()
	root := filepath.Join(t.TempDir(), "site")
	_, err := scaffold.Write(root, scaffold.Data{SiteName: "Test Site"})
	require.NoError(t, err)

	cfg := SiteConfig{
		Name:          "Test Site",
		URL:           "https://talks.example",
		Root:          root,
		AdminPassword: testPassword,
		SessionSecret: "0123456789abcdef0123456789abcdef",
	}
	for _, m := range mutate {
		m(&cfg)
	}
	app := New(cfg, WithLogger(logging.Nop()))
	require.NoError(t, app.Init())
	t.Cleanup(func() { app.Close() })
	return app
}

type requestOpt func(*http.Request)

func withAuth(secret string) requestOpt {
	return func(r *http.Request) { r.Header.Set(echo.HeaderAuthorization, secret) }
}

func do(app *App, method, target, body string, opts ...requestOpt) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for _, o := range opts {
		o(req)
	}
	rec := httptest.NewRecorder()
	app.Echo.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestCreatePageRequiresAuth(t *testing.T) {
	app := newTestApp(t)
	bodies := []string{
		`{"type":"talk","title":"Hello World"}`,
		`{"type":"nonsense"}`,
		`not json`,
		``,
	}
	for _, body := range bodies {
		rec := do(app, http.MethodPost, "/create_page", body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, body)
		assert.Equal(t, "Unauthorized", decode(t, rec)["error"])
	}
	rec := do(app, http.MethodPost, "/delete_page", `{"filename":"x.html"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	entries, err := os.ReadDir(app.Config.PagesDir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotEqual(t, "hello-world.html", e.Name())
	}
}

func TestCreateListDelete(t *testing.T) {
	app := newTestApp(t)

	rec := do(app, http.MethodPost, "/create_page",
		`{"type":"talk","title":"Hello World","talkLink":"https://v.example/1"}`, withAuth(testPassword))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode(t, rec)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "pages/hello-world.html", out["filename"])

	content, err := os.ReadFile(filepath.Join(app.Config.PagesDir, "hello-world.html"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "<title>Hello World</title>")
	assert.Contains(t, string(content), `href="https://v.example/1"`)

	rec = do(app, http.MethodGet, "/get_pages", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		Pages []struct {
			Title    string  `json:"title"`
			Type     string  `json:"type"`
			URL      string  `json:"url"`
			Created  float64 `json:"created"`
			TalkLink string  `json:"talkLink"`
			Filename string  `json:"filename"`
		} `json:"pages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	require.Len(t, listing.Pages, 1)
	p := listing.Pages[0]
	assert.Equal(t, "Hello World", p.Title)
	assert.Equal(t, "talk", p.Type)
	assert.Equal(t, "pages/hello-world.html", p.URL)
	assert.Equal(t, "https://v.example/1", p.TalkLink)
	assert.Equal(t, "hello-world.html", p.Filename)
	assert.Greater(t, p.Created, 0.0)

	rec = do(app, http.MethodPost, "/delete_page", `{"filename":"hello-world.html"}`, withAuth(testPassword))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, decode(t, rec)["success"])
	_, err = os.Stat(filepath.Join(app.Config.PagesDir, "hello-world.html"))
	assert.True(t, os.IsNotExist(err))

	events, err := app.Activity.Recent(t.Context(), 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, activity.PageDeleted, events[0].Kind)
	assert.Equal(t, activity.PageCreated, events[1].Kind)
}

func TestCreatePageConflict(t *testing.T) {
	app := newTestApp(t)
	existing := filepath.Join(app.Config.PagesDir, "my-talk.html")
	require.NoError(t, os.WriteFile(existing, []byte("keep me"), 0o644))

	rec := do(app, http.MethodPost, "/create_page", `{"type":"reading","title":"My Talk"}`, withAuth(testPassword))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Page already exists", decode(t, rec)["error"])

	content, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(content))
}

func TestCreatePageInvalid(t *testing.T) {
	app := newTestApp(t)
	for _, body := range []string{
		`{"type":"video","title":"X"}`,
		`{"type":"talk","title":""}`,
		`{"type":"talk","title":"../escape"}`,
	} {
		rec := do(app, http.MethodPost, "/create_page", body, withAuth(testPassword))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.NotEmpty(t, decode(t, rec)["error"])
	}
}

func TestDeleteMissingPage(t *testing.T) {
	app := newTestApp(t)
	rec := do(app, http.MethodPost, "/delete_page", `{"filename":"nope.html"}`, withAuth(testPassword))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Page not found", decode(t, rec)["error"])

	rec = do(app, http.MethodPost, "/delete_page", `{"filename":""}`, withAuth(testPassword))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWrongSecretIsRateLimited(t *testing.T) {
	app := newTestApp(t)
	for i := 0; i < 5; i++ {
		rec := do(app, http.MethodPost, "/create_page", `{"type":"talk","title":"A"}`, withAuth("wrong"))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := do(app, http.MethodPost, "/create_page", `{"type":"talk","title":"A"}`, withAuth("wrong"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	events, err := app.Activity.Recent(t.Context(), 10)
	require.NoError(t, err)
	assert.Len(t, events, 5)
	assert.Equal(t, activity.LoginFailed, events[0].Kind)
}

func writeChapters(t *testing.T, app *App, id string, files map[string]string) {
	t.Helper()
	dir := filepath.Join(app.Config.FilesDir, id)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
}

func TestChapters(t *testing.T) {
	app := newTestApp(t)
	writeChapters(t, app, "novel", map[string]string{
		"10.txt": "Ten\n",
		"2.txt":  "Two\n",
		"1.txt":  "\nuntitled",
	})

	rec := do(app, http.MethodGet, "/api/chapters/novel", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Chapters []struct {
			Title string `json:"title"`
			File  string `json:"file"`
		} `json:"chapters"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Chapters, 3)
	assert.Equal(t, "Chapter 1", out.Chapters[0].Title)
	assert.Equal(t, "2.txt", out.Chapters[1].File)
	assert.Equal(t, "Ten", out.Chapters[2].Title)

	rec = do(app, http.MethodGet, "/api/chapters/ghost", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "book directory not found")

	require.NoError(t, os.MkdirAll(filepath.Join(app.Config.FilesDir, "empty"), 0o755))
	rec = do(app, http.MethodGet, "/api/chapters/empty", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDebugRoutesOnlyWhenEnabled(t *testing.T) {
	app := newTestApp(t)
	rec := do(app, http.MethodGet, "/debug/paths", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	app = newTestApp(t, func(c *SiteConfig) { c.Debug = true })
	writeChapters(t, app, "novel", map[string]string{"1.txt": "One\n"})

	rec = do(app, http.MethodGet, "/debug/paths", "")
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, true, out["files_exists"])

	rec = do(app, http.MethodGet, "/check_files/novel", "")
	require.Equal(t, http.StatusOK, rec.Code)
	out = decode(t, rec)
	assert.Equal(t, true, out["book_path_exists"])
	assert.Equal(t, []interface{}{"1.txt"}, out["files"])

	rec = do(app, http.MethodGet, "/check_files/ghost", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["book_path_exists"])
}

func TestStaticServing(t *testing.T) {
	app := newTestApp(t)
	require.NoError(t, os.WriteFile(filepath.Join(app.Config.PagesDir, "a.html"), []byte("<title>A</title>"), 0o644))

	rec := do(app, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Test Site")

	rec = do(app, http.MethodGet, "/pages/a.html", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<title>A</title>")

	rec = do(app, http.MethodGet, "/style.css", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(app, http.MethodGet, "/.orator/activity.db", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(app, http.MethodGet, "/pages/missing.html", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "404")

	rec = do(app, http.MethodGet, "/files/missing.mp3", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, decode(t, rec)["error"])
}

func TestSitemapAndFeed(t *testing.T) {
	app := newTestApp(t)
	rec := do(app, http.MethodPost, "/create_page", `{"type":"reading","title":"Paper Notes","pdfUrl":"/files/notes.pdf"}`, withAuth(testPassword))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(app, http.MethodGet, "/sitemap.xml", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<loc>https://talks.example/pages/paper-notes.html</loc>")

	rec = do(app, http.MethodGet, "/feed.xml", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<title>Paper Notes</title>")
	assert.Contains(t, body, `<enclosure url="https://talks.example/files/notes.pdf" type="application/pdf"></enclosure>`)
}

func TestConvertEndpoint(t *testing.T) {
	app := newTestApp(t)
	writeChapters(t, app, "novel", map[string]string{"1.txt": "One\nbody", "2.txt": "Two\nbody"})
	require.NoError(t, os.WriteFile(filepath.Join(app.Config.PagesDir, "a.html"), []byte("<title>A</title>"), 0o644))

	rec := do(app, http.MethodPost, "/api/convert", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(app, http.MethodPost, "/api/convert", "", withAuth(testPassword))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode(t, rec)
	assert.EqualValues(t, 1, out["pages"])

	idx, err := pages.ReadIndex(filepath.Join(app.Config.DataDir, "pages.json"))
	require.NoError(t, err)
	require.Len(t, idx.Pages, 1)
	_, err = os.Stat(filepath.Join(app.Config.BooksDir, "novel", "2.html"))
	assert.NoError(t, err)

	rec = do(app, http.MethodGet, "/admin/activity/", "", withAuth(testPassword))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), string(activity.SiteConverted))
}

var csrfInput = regexp.MustCompile(`name="_csrf" value="([^"]+)"`)

func TestSessionLoginFlow(t *testing.T) {
	app := newTestApp(t)

	rec := do(app, http.MethodGet, "/admin/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	m := csrfInput.FindStringSubmatch(rec.Body.String())
	require.Len(t, m, 2)
	token := m[1]
	cookies := rec.Result().Cookies()

	withCookies := func(cs []*http.Cookie) requestOpt {
		return func(r *http.Request) {
			for _, c := range cs {
				r.AddCookie(c)
			}
		}
	}

	form := url.Values{"password": {"wrong"}, "_csrf": {token}}
	req := httptest.NewRequest(http.MethodPost, "/admin/login/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	withCookies(cookies)(req)
	rec = httptest.NewRecorder()
	app.Echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Wrong password")

	form.Set("password", testPassword)
	req = httptest.NewRequest(http.MethodPost, "/admin/login/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	withCookies(cookies)(req)
	rec = httptest.NewRecorder()
	app.Echo.ServeHTTP(rec, req)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	cookies = append(cookies, rec.Result().Cookies()...)

	// A session-authenticated API call must carry the CSRF token.
	rec = do(app, http.MethodPost, "/create_page", `{"type":"talk","title":"Via Session"}`, withCookies(cookies))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(app, http.MethodPost, "/create_page", `{"type":"talk","title":"Via Session"}`, withCookies(cookies),
		func(r *http.Request) { r.Header.Set("X-CSRF-Token", token) })
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(app, http.MethodGet, "/admin/", "", withCookies(cookies))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Via Session")
	assert.Contains(t, rec.Body.String(), "page_created")
	assert.Contains(t, rec.Body.String(), "logged_in")
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "orator.yaml")
	require.NoError(t, os.WriteFile(p, []byte("name: From File\naddr: \":8080\"\nroot: "+dir+"\ndebug: true\n"), 0o644))
	t.Setenv("ORATOR_ADDR", ":9090")
	t.Setenv("ADMIN_PASSWORD", "pw")
	t.Setenv("COOKIE_SECURE", "true")

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	assert.Equal(t, "From File", cfg.Name)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "pw", cfg.AdminPassword)
	assert.True(t, cfg.CookieSecure)
	assert.True(t, cfg.Debug)
	assert.Equal(t, filepath.Join(dir, "pages"), cfg.PagesDir)

	t.Setenv("ORATOR_DEBUG", "maybe")
	_, err = LoadConfig(p)
	assert.Error(t, err)
}

func TestInitRequiresSecrets(t *testing.T) {
	app := New(SiteConfig{Root: t.TempDir()}, WithLogger(logging.Nop()))
	assert.Error(t, app.Init())
}

func TestBuildURL(t *testing.T) {
	assert.Equal(t, "https://x.example/", BuildURL("https://x.example"))
	assert.Equal(t, "https://x.example/pages/a.html", BuildURL("https://x.example", "pages/a.html"))
	assert.Equal(t, "https://x.example/books/novel/", BuildURL("https://x.example/", "books", "novel"))
}
