package orator

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/orator/activity"
	"github.com/eringen/orator/books"
	"github.com/eringen/orator/convert"
	"github.com/eringen/orator/pages"
	"github.com/eringen/orator/views"
)

// createRequest is the body of /create_page and the dashboard create form.
type createRequest struct {
	Type     string `json:"type" form:"type"`
	Title    string `json:"title" form:"title"`
	TalkLink string `json:"talkLink" form:"talkLink"`
	PDFURL   string `json:"pdfUrl" form:"pdfUrl"`
}

type deleteRequest struct {
	Filename string `json:"filename" form:"filename"`
}

type createResponse struct {
	Success  bool   `json:"success"`
	Filename string `json:"filename"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type activityResponse struct {
	Events []activity.Event `json:"events"`
}

func (a *App) createPage(ctx context.Context, req createRequest) (string, error) {
	kind, err := pages.ParseKind(strings.TrimSpace(req.Type))
	if err != nil {
		return "", err
	}
	link := req.PDFURL
	if kind == pages.KindTalk {
		link = req.TalkLink
	}
	filename, err := a.Pages.Create(ctx, pages.NewPage{
		Kind:  kind,
		Title: strings.TrimSpace(req.Title),
		Link:  strings.TrimSpace(link),
	})
	if err != nil {
		return "", err
	}
	a.Activity.Log(ctx, activity.PageCreated, filename, string(kind))
	return filename, nil
}

func (a *App) deletePage(ctx context.Context, filename string) error {
	if strings.TrimSpace(filename) == "" {
		return NewInvalidRequest("filename is required")
	}
	if err := a.Pages.Delete(ctx, filename); err != nil {
		return err
	}
	a.Activity.Log(ctx, activity.PageDeleted, filename, "")
	return nil
}

// convertSite runs the static conversion, limited to ids when given.
func (a *App) convertSite(ctx context.Context, ids []string) (convert.Report, error) {
	opts := a.Config.ConvertOptions(a.Log)
	opts.Books = ids
	report, err := convert.ToStatic(ctx, opts)
	if err != nil {
		return report, err
	}
	a.Activity.Log(ctx, activity.SiteConverted, "site",
		fmt.Sprintf("pages=%d books=%d failed=%d", report.Pages, len(report.Books), len(report.Failed())))
	return report, nil
}

func (a *App) handleCreatePage(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return NewInvalidRequest("Invalid request body")
	}
	filename, err := a.createPage(c.Request().Context(), req)
	if err != nil {
		return apiError(err)
	}
	return c.JSON(http.StatusOK, createResponse{Success: true, Filename: filename})
}

func (a *App) handleDeletePage(c echo.Context) error {
	var req deleteRequest
	if err := c.Bind(&req); err != nil {
		return NewInvalidRequest("Invalid request body")
	}
	if err := a.deletePage(c.Request().Context(), req.Filename); err != nil {
		return apiError(err)
	}
	return c.JSON(http.StatusOK, successResponse{Success: true})
}

func (a *App) handleConvert(c echo.Context) error {
	report, err := a.convertSite(c.Request().Context(), c.QueryParams()["book"])
	if err != nil {
		return apiError(err)
	}
	return c.JSON(http.StatusOK, report)
}

func (a *App) handleActivity(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	events, err := a.Activity.Recent(c.Request().Context(), limit)
	if err != nil {
		return apiError(err)
	}
	return c.JSON(http.StatusOK, activityResponse{Events: events})
}

func (a *App) handleAdmin(c echo.Context) error {
	if !IsAdmin(c) {
		return Render(c, a.Views.AdminLogin(false, CsrfToken(c)))
	}
	return a.renderAdminDashboard(c, c.QueryParam("msg"))
}

func (a *App) handleAdminLogin(c echo.Context) error {
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return c.String(http.StatusTooManyRequests, "Too many login attempts. Try again later.")
	}
	if a.checkSecret(c.FormValue("password")) {
		if err := setAdminSession(c); err != nil {
			return err
		}
		a.Activity.Log(c.Request().Context(), activity.LoggedIn, ip, "/admin/login/")
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	a.loginLimiter.Record(ip)
	a.Activity.Log(c.Request().Context(), activity.LoginFailed, ip, "/admin/login/")
	return RenderStatus(c, http.StatusUnauthorized, a.Views.AdminLogin(true, CsrfToken(c)))
}

func handleAdminLogout(c echo.Context) error {
	if err := clearAdminSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/")
}

func (a *App) handleAdminCreate(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return redirectWithMessage(c, "Invalid form.")
	}
	filename, err := a.createPage(c.Request().Context(), req)
	if err != nil {
		return redirectWithMessage(c, apiError(err).Message)
	}
	return redirectWithMessage(c, "Created "+filename)
}

func (a *App) handleAdminDelete(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	filename := c.FormValue("filename")
	if err := a.deletePage(c.Request().Context(), filename); err != nil {
		return redirectWithMessage(c, apiError(err).Message)
	}
	return redirectWithMessage(c, "Deleted "+filename)
}

func (a *App) handleAdminConvert(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	report, err := a.convertSite(c.Request().Context(), nil)
	if err != nil {
		return redirectWithMessage(c, "Conversion failed: "+err.Error())
	}
	msg := fmt.Sprintf("Converted %d pages and %d books.", report.Pages, len(report.Books))
	if failed := report.Failed(); len(failed) > 0 {
		ids := make([]string, len(failed))
		for i, b := range failed {
			ids[i] = b.ID
		}
		msg += " Failed: " + strings.Join(ids, ", ")
	}
	return redirectWithMessage(c, msg)
}

func redirectWithMessage(c echo.Context, msg string) error {
	return c.Redirect(http.StatusSeeOther, "/admin/?msg="+url.QueryEscape(msg))
}

func (a *App) renderAdminDashboard(c echo.Context, msg string) error {
	ctx := c.Request().Context()
	list, err := a.Pages.List(ctx)
	if err != nil {
		return err
	}
	events, err := a.Activity.Recent(ctx, 20)
	if err != nil {
		a.Log.Warn("activity unavailable", "error", err)
	}
	ids, err := books.Discover(a.Config.FilesDir)
	if err != nil {
		a.Log.Debug("no books", "dir", a.Config.FilesDir, "error", err)
	}
	return Render(c, a.Views.AdminDashboard(views.Dashboard{
		SiteName:  a.Config.Name,
		Pages:     list,
		Books:     ids,
		Events:    events,
		Message:   msg,
		CSRFToken: CsrfToken(c),
	}))
}
