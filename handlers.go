package orator

import (
	"errors"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/orator/books"
	"github.com/eringen/orator/pages"
)

func (a *App) handleIndex(c echo.Context) error {
	return c.File(filepath.Join(a.Config.Root, "index.html"))
}

// serveDir serves files below dir from the route's wildcard. Hidden path
// segments are never served, which keeps .orator/ private.
func (a *App) serveDir(dir string) echo.HandlerFunc {
	return func(c echo.Context) error {
		name, err := url.PathUnescape(c.Param("*"))
		if err != nil {
			return echo.ErrNotFound
		}
		rel, ok := cleanStaticPath(name)
		if !ok {
			return echo.ErrNotFound
		}
		return c.File(filepath.Join(dir, filepath.FromSlash(rel)))
	}
}

func cleanStaticPath(name string) (string, bool) {
	rel := strings.TrimPrefix(path.Clean("/"+name), "/")
	if rel == "" {
		return "", true
	}
	for _, seg := range strings.Split(rel, "/") {
		if strings.HasPrefix(seg, ".") {
			return "", false
		}
	}
	return rel, true
}

// pageEntry is a page as listed by /get_pages: the index fields plus the
// filename the delete endpoint expects.
type pageEntry struct {
	pages.Page
	Filename string `json:"filename"`
}

type pagesResponse struct {
	Pages []pageEntry `json:"pages"`
}

func (a *App) handleGetPages(c echo.Context) error {
	list, err := a.Pages.List(c.Request().Context())
	if err != nil {
		return apiError(err)
	}
	entries := make([]pageEntry, len(list))
	for i, p := range list {
		entries[i] = pageEntry{Page: p, Filename: p.Filename}
	}
	return c.JSON(http.StatusOK, pagesResponse{Pages: entries})
}

type chaptersResponse struct {
	Chapters []books.Chapter `json:"chapters"`
}

func (a *App) handleChapters(c echo.Context) error {
	id := c.Param("book_id")
	chapters, err := books.ListChapters(a.Config.FilesDir, id, a.Log)
	if err != nil {
		a.Log.Warn("chapters unavailable", "book", id, "error", err)
		return apiError(err)
	}
	return c.JSON(http.StatusOK, chaptersResponse{Chapters: chapters})
}

type checkFilesResponse struct {
	BookPathExists bool     `json:"book_path_exists"`
	BookPath       string   `json:"book_path"`
	Files          []string `json:"files"`
	Error          string   `json:"error,omitempty"`
}

func (a *App) handleCheckFiles(c echo.Context) error {
	id := c.Param("book_id")
	if err := books.CheckID(id); err != nil {
		return apiError(err)
	}
	dir := books.Dir(a.Config.FilesDir, id)
	res := checkFilesResponse{BookPath: dir, Files: []string{}}
	if _, err := os.Stat(dir); err == nil {
		res.BookPathExists = true
		names, err := listNames(dir)
		if err != nil {
			res.Error = err.Error()
		}
		res.Files = names
	}
	return c.JSON(http.StatusOK, res)
}

type debugPathsResponse struct {
	CurrentDir    string   `json:"current_dir"`
	Root          string   `json:"root"`
	DataExists    bool     `json:"data_exists"`
	DataFiles     []string `json:"data_files"`
	FilesExists   bool     `json:"files_exists"`
	FilesContents []string `json:"files_contents"`
}

func (a *App) handleDebugPaths(c echo.Context) error {
	wd, _ := os.Getwd()
	res := debugPathsResponse{CurrentDir: wd, Root: a.Config.Root}
	res.DataFiles, _ = listNames(a.Config.DataDir)
	res.DataExists = exists(a.Config.DataDir)
	res.FilesContents, _ = listNames(a.Config.FilesDir)
	res.FilesExists = exists(a.Config.FilesDir)
	return c.JSON(http.StatusOK, res)
}

func (a *App) handleSitemap(c echo.Context) error {
	list, err := a.Pages.List(c.Request().Context())
	if err != nil {
		return err
	}
	return a.renderSitemap(c, list)
}

func (a *App) handleFeed(c echo.Context) error {
	list, err := a.Pages.List(c.Request().Context())
	if err != nil {
		return err
	}
	return a.renderRSS(c, list)
}

// wantsJSON reports whether errors on this request go back as JSON rather
// than an HTML page.
func wantsJSON(c echo.Context) bool {
	p := c.Request().URL.Path
	switch {
	case apiPaths[p], p == "/get_pages",
		strings.HasPrefix(p, "/api/"),
		strings.HasPrefix(p, "/files/"),
		strings.HasPrefix(p, "/check_files/"),
		strings.HasPrefix(p, "/debug/"),
		strings.HasPrefix(p, "/admin/activity/"):
		return true
	}
	return strings.Contains(c.Request().Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON)
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var ae *APIError
	if errors.As(err, &ae) {
		if ae.Status >= 500 {
			a.Log.Error("request failed", "path", c.Request().URL.Path, "error", err)
		}
		_ = writeAPIError(c, ae)
		return
	}

	code := http.StatusInternalServerError
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	}
	if code >= 500 {
		a.Log.Error("server error", "path", c.Request().URL.Path, "error", err)
	}
	if wantsJSON(c) {
		_ = c.JSON(code, errorBody{Error: msg})
		return
	}
	switch {
	case code == http.StatusNotFound:
		_ = RenderStatus(c, code, a.Views.NotFound())
	case code >= 500:
		_ = RenderStatus(c, code, a.Views.ServerError())
	default:
		a.Echo.DefaultHTTPErrorHandler(err, c)
	}
}
