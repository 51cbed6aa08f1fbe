// Package convert turns the backend site into its static form: the
// data/pages.json index and the pre-rendered book pages.
//
// The CLI, the watch loop, and the admin API all run the same conversion.
package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/eringen/orator/books"
	"github.com/eringen/orator/logging"
	"github.com/eringen/orator/pages"
	"github.com/eringen/orator/templates"
)

// IndexFile is the generated page index, relative to the data directory.
const IndexFile = "pages.json"

// Options locates the site directories. Empty directories default to the
// standard layout under Root.
type Options struct {
	Root         string
	PagesDir     string
	TemplatesDir string
	DataDir      string
	FilesDir     string // book sources
	BooksDir     string // rendered book output

	// Books limits the run to these book IDs. Empty means every book found
	// under FilesDir.
	Books []string

	Log *logging.Logger
}

// WithDefaults returns a copy of o with every empty directory filled in.
func (o Options) WithDefaults() Options {
	if o.Root == "" {
		o.Root = "."
	}
	def := func(p *string, name string) {
		if *p == "" {
			*p = filepath.Join(o.Root, name)
		}
	}
	def(&o.PagesDir, "pages")
	def(&o.TemplatesDir, "templates")
	def(&o.DataDir, "data")
	def(&o.FilesDir, "files")
	def(&o.BooksDir, "books")
	o.Log = logging.OrNop(o.Log)
	return o
}

// IndexPath is the location of the generated page index.
func (o Options) IndexPath() string {
	return filepath.Join(o.WithDefaults().DataDir, IndexFile)
}

// BookResult is the outcome of rendering one book.
type BookResult struct {
	ID       string `json:"id"`
	Chapters int    `json:"chapters"`
	Err      error  `json:"-"`
	Error    string `json:"error,omitempty"`
}

// Report summarizes a conversion run.
type Report struct {
	Pages int          `json:"pages"`
	Books []BookResult `json:"books"`
}

// Failed returns the books that could not be rendered.
func (r Report) Failed() []BookResult {
	var out []BookResult
	for _, b := range r.Books {
		if b.Err != nil {
			out = append(out, b)
		}
	}
	return out
}

// ToStatic rebuilds the page index and every requested book. A book whose
// directory is missing or holds no chapters is recorded in the report and
// the run continues; a missing template aborts it.
func ToStatic(ctx context.Context, opts Options) (Report, error) {
	opts = opts.WithDefaults()
	log := opts.Log
	report := Report{Books: []BookResult{}}

	list, err := pages.Scan(opts.PagesDir, log)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Warn("pages directory missing", "dir", opts.PagesDir)
		list = []pages.Page{}
	case err != nil:
		return report, fmt.Errorf("scan pages: %w", err)
	}
	if err := pages.WriteIndex(opts.IndexPath(), list); err != nil {
		return report, fmt.Errorf("write index: %w", err)
	}
	report.Pages = len(list)
	log.Info("wrote page index", "path", opts.IndexPath(), "pages", len(list))

	ids := opts.Books
	if len(ids) == 0 {
		ids, err = books.Discover(opts.FilesDir)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return report, fmt.Errorf("discover books: %w", err)
		}
	}
	if len(ids) == 0 {
		return report, nil
	}

	r, err := books.NewRenderer(templates.NewSet(opts.TemplatesDir), opts.BooksDir, log)
	if err != nil {
		return report, fmt.Errorf("load book templates: %w", err)
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res := BookResult{ID: id}
		b, err := books.Load(opts.FilesDir, id, log)
		if err == nil {
			res.Chapters = len(b.Chapters)
			err = r.Render(b)
		}
		if err != nil {
			log.Error("book not rendered", "book", id, "error", err)
			res.Err = err
			res.Error = err.Error()
		}
		report.Books = append(report.Books, res)
	}
	return report, nil
}

// ToBackend restores any template missing from the templates directory from
// its backup copy.
func ToBackend(opts Options) ([]string, error) {
	opts = opts.WithDefaults()
	restored, err := templates.NewSet(opts.TemplatesDir).Restore()
	for _, name := range restored {
		opts.Log.Info("restored template", "template", name)
	}
	return restored, err
}

// Backup copies every template to its backup file.
func Backup(opts Options) ([]string, error) {
	opts = opts.WithDefaults()
	saved, err := templates.NewSet(opts.TemplatesDir).Backup()
	for _, name := range saved {
		opts.Log.Info("backed up template", "template", name)
	}
	return saved, err
}
