package views

import (
	"github.com/eringen/orator/activity"
	"github.com/eringen/orator/pages"
)

// Dashboard is everything the admin dashboard shows.
type Dashboard struct {
	SiteName  string
	Pages     []pages.Page
	Books     []string
	Events    []activity.Event
	Message   string // flash message from the last action
	CSRFToken string
}
