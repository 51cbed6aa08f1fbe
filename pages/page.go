// Package pages reads, creates, and deletes the site's talk and reading pages.
//
// The pages directory is the only record of which pages exist. Metadata is
// recovered from each file's content on every scan.
package pages

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Kind is the type of a page.
type Kind string

const (
	KindTalk    Kind = "talk"
	KindReading Kind = "reading"
)

// ParseKind validates s as a page kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindTalk, KindReading:
		return Kind(s), nil
	}
	return "", fmt.Errorf("%w: unknown page type %q", ErrInvalid, s)
}

// URLPrefix is the path, relative to the site root, under which pages live.
const URLPrefix = "pages"

var (
	// ErrExists is returned when creating a page whose file already exists.
	ErrExists = errors.New("page already exists")
	// ErrNotFound is returned when deleting a page that does not exist.
	ErrNotFound = errors.New("page not found")
	// ErrInvalid is returned for titles, types, or filenames that cannot
	// name a page inside the pages directory.
	ErrInvalid = errors.New("invalid page")
)

// Page is the metadata of one page as published in the index.
type Page struct {
	Title    string    `json:"title"`
	Kind     Kind      `json:"type"`
	URL      string    `json:"url"`
	Created  Timestamp `json:"created"`
	TalkLink string    `json:"talkLink,omitempty"`
	PDFURL   string    `json:"pdfUrl,omitempty"`

	// Filename is the page's base name inside the pages directory.
	Filename string `json:"-"`
}

// Link returns the talk link or PDF URL, whichever applies to the page kind.
func (p Page) Link() string {
	if p.Kind == KindTalk {
		return p.TalkLink
	}
	return p.PDFURL
}

// Timestamp is a point in time serialized as fractional Unix seconds, the
// format the front end sorts on.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// Seconds returns t as fractional Unix seconds.
func (t Timestamp) Seconds() float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.Unix()) + float64(t.Nanosecond())/float64(time.Second)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(t.Seconds(), 'f', -1, 64)), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var secs float64
	if err := json.Unmarshal(b, &secs); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if secs == 0 {
		t.Time = time.Time{}
		return nil
	}
	whole, frac := math.Modf(secs)
	t.Time = time.Unix(int64(whole), int64(math.Round(frac*1e9)))
	return nil
}
