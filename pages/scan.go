package pages

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/eringen/orator/logging"
)

// Index is the on-disk page index consumed by the front end.
type Index struct {
	Pages []Page `json:"pages"`
}

// Scan reads every .html file in dir and returns its metadata, newest first.
// Files that cannot be read are logged and skipped.
func Scan(dir string, log *logging.Logger) ([]Page, error) {
	log = logging.OrNop(log)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read pages dir: %w", err)
	}

	pages := make([]Page, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".html") {
			continue
		}
		p, err := ReadPage(filepath.Join(dir, e.Name()))
		if err != nil {
			log.Warn("skipping page", "file", e.Name(), "error", err)
			continue
		}
		pages = append(pages, p)
	}
	SortNewestFirst(pages)
	return pages, nil
}

// ReadPage builds the metadata for the page file at p.
func ReadPage(p string) (Page, error) {
	info, err := os.Stat(p)
	if err != nil {
		return Page{}, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return Page{}, err
	}
	content := string(b)
	name := filepath.Base(p)

	page := Page{
		Title:    ExtractTitle(content, name),
		Kind:     Classify(content),
		URL:      path.Join(URLPrefix, name),
		Created:  NewTimestamp(info.ModTime()),
		Filename: name,
	}
	if page.Kind == KindTalk {
		page.TalkLink = ExtractTalkLink(content)
	} else {
		page.PDFURL = ExtractPDFURL(content)
	}
	return page, nil
}

// SortNewestFirst orders pages by creation time descending. Pages created at
// the same instant are ordered by filename.
func SortNewestFirst(pages []Page) {
	sort.SliceStable(pages, func(i, j int) bool {
		a, b := pages[i].Created.Time, pages[j].Created.Time
		if !a.Equal(b) {
			return a.After(b)
		}
		return pages[i].Filename < pages[j].Filename
	})
}

// WriteIndex writes pages to file as {"pages": [...]}, replacing any previous
// index. The parent directory is created when missing.
func WriteIndex(file string, pages []Page) error {
	if pages == nil {
		pages = []Page{}
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(Index{Pages: pages}, "", "    ")
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	return os.WriteFile(file, b, 0o644)
}

// ReadIndex reads an index written by WriteIndex.
func ReadIndex(file string) (Index, error) {
	var idx Index
	b, err := os.ReadFile(file)
	if err != nil {
		return idx, err
	}
	if err := json.Unmarshal(b, &idx); err != nil {
		return idx, fmt.Errorf("decode index: %w", err)
	}
	for i := range idx.Pages {
		idx.Pages[i].Filename = path.Base(idx.Pages[i].URL)
	}
	return idx, nil
}
