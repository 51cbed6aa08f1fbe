package views

import (
	"fmt"
	"time"

	"github.com/eringen/orator/pages"
)

// FormatCreated renders a page's creation time for humans.
func FormatCreated(t pages.Timestamp) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04")
}

// FormatEventTime renders an activity timestamp relative to now when recent.
func FormatEventTime(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
	return t.Local().Format("2006-01-02 15:04")
}

// KindLabel is the display name of a page kind.
func KindLabel(k pages.Kind) string {
	if k == pages.KindTalk {
		return "Talk"
	}
	return "Reading"
}
