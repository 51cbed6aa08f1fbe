package orator

import (
	"encoding/xml"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/orator/pages"
)

type rssXML struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string        `xml:"title"`
	Link        string        `xml:"link"`
	Description string        `xml:"description"`
	Category    string        `xml:"category"`
	Enclosure   *rssEnclosure `xml:"enclosure,omitempty"`
	PubDate     string        `xml:"pubDate"`
	GUID        string        `xml:"guid"`
}

type rssEnclosure struct {
	URL  string `xml:"url,attr"`
	Type string `xml:"type,attr"`
}

// feedDescription describes a page by what it links to.
func feedDescription(p pages.Page) string {
	link := p.Link()
	if link == "" || link == pages.FallbackLink {
		return ""
	}
	if p.Kind == pages.KindTalk {
		return "Talk recording: " + link
	}
	return "Reading: " + link
}

func (a *App) renderRSS(c echo.Context, list []pages.Page) error {
	base := a.Config.URL
	items := make([]rssItem, 0, len(list))
	for _, p := range list {
		pageURL := BuildURL(base, p.URL)
		item := rssItem{
			Title:       p.Title,
			Link:        pageURL,
			Description: feedDescription(p),
			Category:    string(p.Kind),
			PubDate:     p.Created.Format(time.RFC1123Z),
			GUID:        pageURL,
		}
		if p.Kind == pages.KindReading && p.PDFURL != "" && p.PDFURL != pages.FallbackLink {
			item.Enclosure = &rssEnclosure{URL: resolveURL(base, p.PDFURL), Type: "application/pdf"}
		}
		items = append(items, item)
	}
	feed := rssXML{
		Version: "2.0",
		Channel: rssChannel{
			Title:       a.Config.Name,
			Link:        base,
			Description: a.Config.Description,
			Items:       items,
		},
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/rss+xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Write([]byte(xml.Header))
	return xml.NewEncoder(c.Response()).Encode(feed)
}
