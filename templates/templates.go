// Package templates loads the site's HTML templates and fills their bracketed
// placeholder tokens. Substitution is literal: no escaping, no template
// language, tokens are replaced verbatim.
package templates

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/otiai10/copy"
)

// Template file names.
const (
	Talk    = "talk_template.html"
	Reading = "reading_template.html"
	Chapter = "chapter_template.html"
	Book    = "book_template.html"
)

// Placeholder tokens understood by the templates.
const (
	TokenTitle       = "[TITLE]"
	TokenTalkLink    = "[TALK_LINK]"
	TokenPDFURL      = "[PDF_URL]"
	TokenContent     = "[CONTENT]"
	TokenBookID      = "[BOOK_ID]"
	TokenAudioPath   = "[AUDIO_PATH]"
	TokenDescription = "[DESCRIPTION]"
	TokenChapterList = "[CHAPTER_LIST]"
	TokenPrevLink    = "[PREV_LINK]"
	TokenNextLink    = "[NEXT_LINK]"
	TokenCover       = "[COVER]"
)

// BackupSuffix is appended to a template name for its backup copy.
const BackupSuffix = ".bak"

// Names lists every template the site knows about.
var Names = []string{Talk, Reading, Chapter, Book}

// Values maps placeholder tokens to replacement text.
type Values map[string]string

// Set is a directory of template files. The directory is read on every call;
// nothing is cached.
type Set struct {
	Dir string
}

// NewSet returns a Set rooted at dir.
func NewSet(dir string) *Set {
	return &Set{Dir: dir}
}

// Path returns the full path of the named template.
func (s *Set) Path(name string) string {
	return filepath.Join(s.Dir, name)
}

// Load reads the named template. A missing template returns an error that
// matches fs.ErrNotExist.
func (s *Set) Load(name string) (string, error) {
	b, err := os.ReadFile(s.Path(name))
	if err != nil {
		return "", fmt.Errorf("load template %s: %w", name, err)
	}
	return string(b), nil
}

// Render loads the named template and fills it with vals.
func (s *Set) Render(name string, vals Values) (string, error) {
	text, err := s.Load(name)
	if err != nil {
		return "", err
	}
	return Fill(text, vals), nil
}

// Backup copies every existing template to <name>.bak. Templates that do not
// exist are skipped; the names that were backed up are returned.
func (s *Set) Backup() ([]string, error) {
	var done []string
	for _, name := range Names {
		src := s.Path(name)
		if _, err := os.Stat(src); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := copy.Copy(src, src+BackupSuffix); err != nil {
			return done, fmt.Errorf("backup %s: %w", name, err)
		}
		done = append(done, name)
	}
	return done, nil
}

// Restore recreates every missing template from its .bak copy. Templates that
// already exist are left alone. A template missing both the file and its
// backup is skipped. The names that were restored are returned.
func (s *Set) Restore() ([]string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return nil, err
	}
	var done []string
	for _, name := range Names {
		dst := s.Path(name)
		if _, err := os.Stat(dst); err == nil {
			continue
		}
		bak := dst + BackupSuffix
		if _, err := os.Stat(bak); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := copy.Copy(bak, dst); err != nil {
			return done, fmt.Errorf("restore %s: %w", name, err)
		}
		done = append(done, name)
	}
	return done, nil
}

// Fill replaces every token in vals with its value in a single pass, so a
// value that happens to contain a token is never substituted again.
func Fill(text string, vals Values) string {
	if len(vals) == 0 {
		return text
	}
	keys := make([]string, 0, len(vals))
	for k := range vals {
		if k != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, k, vals[k])
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
