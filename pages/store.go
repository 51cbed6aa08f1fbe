package pages

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/eringen/orator/logging"
	"github.com/eringen/orator/templates"
)

// NewPage describes a page to create.
type NewPage struct {
	Kind  Kind
	Title string
	// Link is the talk link or PDF URL. Empty means FallbackLink.
	Link string
}

// Store creates, deletes, and lists pages in a directory. It keeps no state
// besides the paths; concurrent callers race on the filesystem.
type Store struct {
	Dir       string
	Templates *templates.Set
	Log       *logging.Logger
}

// NewStore returns a Store for the pages in dir, instantiated from tmpl.
func NewStore(dir string, tmpl *templates.Set, log *logging.Logger) *Store {
	return &Store{Dir: dir, Templates: tmpl, Log: logging.OrNop(log)}
}

// Create instantiates the template for np.Kind and writes it as a new page.
// It returns the page path relative to the site root, e.g. "pages/intro.html".
// An existing page with the same derived filename is never modified.
func (s *Store) Create(ctx context.Context, np NewPage) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := ParseKind(string(np.Kind)); err != nil {
		return "", err
	}
	name, err := FilenameForTitle(np.Title)
	if err != nil {
		return "", err
	}
	target := filepath.Join(s.Dir, name)
	if _, err := os.Lstat(target); err == nil {
		return "", fmt.Errorf("%w: %s", ErrExists, name)
	}

	link := np.Link
	if link == "" {
		link = FallbackLink
	}
	vals := templates.Values{templates.TokenTitle: np.Title}
	tmplName := templates.Reading
	if np.Kind == KindTalk {
		tmplName = templates.Talk
		vals[templates.TokenTalkLink] = link
	} else {
		vals[templates.TokenPDFURL] = link
	}
	content, err := s.Templates.Render(tmplName, vals)
	if err != nil {
		return "", err
	}
	content = StampKind(content, np.Kind)

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", err
	}
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("%w: %s", ErrExists, name)
		}
		return "", err
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		os.Remove(target)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	s.Log.Info("page created", "file", name, "type", np.Kind)
	return path.Join(URLPrefix, name), nil
}

// Delete removes the named page. filename may be a bare name or carry the
// "pages/" prefix returned by Create.
func (s *Store) Delete(ctx context.Context, filename string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name := strings.TrimPrefix(filename, URLPrefix+"/")
	if err := checkFilename(name); err != nil {
		return err
	}
	target := filepath.Join(s.Dir, name)
	info, err := os.Lstat(target)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrInvalid, name)
	}
	if err := os.Remove(target); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return err
	}
	s.Log.Info("page deleted", "file", name)
	return nil
}

// List scans the pages directory. A missing directory yields no pages.
func (s *Store) List(ctx context.Context) ([]Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(s.Dir); errors.Is(err, fs.ErrNotExist) {
		return []Page{}, nil
	}
	return Scan(s.Dir, s.Log)
}
