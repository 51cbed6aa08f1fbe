package views

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/orator/activity"
	"github.com/eringen/orator/pages"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Render(context.Background(), &buf))
	return buf.String()
}

func TestAdminLogin(t *testing.T) {
	out := render(t, AdminLogin(false, "tok"))
	assert.Contains(t, out, `name="_csrf" value="tok"`)
	assert.NotContains(t, out, "Wrong password")

	assert.Contains(t, render(t, AdminLogin(true, "tok")), "Wrong password")
}

func TestAdminDashboardEscapes(t *testing.T) {
	out := render(t, AdminDashboard(Dashboard{
		SiteName: "Site",
		Pages: []pages.Page{{
			Title:    `<script>alert(1)</script>`,
			Kind:     pages.KindTalk,
			URL:      "pages/x.html",
			TalkLink: "https://v.example/1",
			Filename: "x.html",
		}},
		Books:     []string{"novel"},
		Events:    []activity.Event{{Kind: activity.PageCreated, Subject: "pages/x.html", At: time.Now()}},
		Message:   "Created pages/x.html",
		CSRFToken: "tok",
	}))

	assert.NotContains(t, out, "<script>alert(1)</script>")
	assert.Contains(t, out, "&lt;script&gt;")
	assert.Contains(t, out, `name="filename" value="x.html"`)
	assert.Contains(t, out, `href="/books/novel/"`)
	assert.Contains(t, out, "page_created")
	assert.Contains(t, out, "just now")
	assert.Contains(t, out, "Created pages/x.html")
}

func TestAdminDashboardEscapesAttributes(t *testing.T) {
	out := render(t, AdminDashboard(Dashboard{
		SiteName:  "Site",
		Pages:     []pages.Page{{Title: "Q", Kind: pages.KindReading, URL: "pages/q.html", Filename: `q"><b>.html`}},
		CSRFToken: `t"k`,
	}))
	assert.Contains(t, out, `name="filename" value="q&#34;&gt;&lt;b&gt;.html"`)
	assert.Contains(t, out, `name="_csrf" value="t&#34;k"`)
	assert.NotContains(t, out, "<b>")
	assert.Contains(t, out, "Pages (1)")
}

func TestAdminDashboardEmpty(t *testing.T) {
	out := render(t, AdminDashboard(Dashboard{SiteName: "Site"}))
	assert.Contains(t, out, "No pages yet.")
	assert.Contains(t, out, "No books.")
	assert.Contains(t, out, "Nothing recorded.")
}

func TestFormatEventTime(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "just now", FormatEventTime(now.Add(-10*time.Second), now))
	assert.Equal(t, "5m ago", FormatEventTime(now.Add(-5*time.Minute), now))
	assert.Equal(t, "3h ago", FormatEventTime(now.Add(-3*time.Hour), now))
}

func TestErrorPages(t *testing.T) {
	assert.Contains(t, render(t, NotFound()), "404")
	assert.Contains(t, render(t, ServerError()), "500")
}
