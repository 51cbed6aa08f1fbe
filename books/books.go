// Package books lists the chapters of a book directory and renders them into
// static HTML pages.
//
// A book is a directory under the books root. Each chapter is a text file
// named with a numeric prefix ("1.txt", "2.txt", "10.txt"); its first line is
// the chapter title and the rest is the body.
package books

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/eringen/orator/logging"
)

var (
	// ErrBookNotFound is returned when a book directory does not exist.
	ErrBookNotFound = errors.New("book directory not found")
	// ErrNoChapters is returned when a book has no readable chapter files.
	ErrNoChapters = errors.New("no chapters found")
	// ErrInvalidID is returned for book identifiers that are not plain
	// directory names.
	ErrInvalidID = errors.New("invalid book id")
)

// AudioDir is the directory under the books root holding chapter audio. It
// is never treated as a book.
const AudioDir = "audio"

// Chapter is one chapter file.
type Chapter struct {
	Number int    `json:"number"`
	File   string `json:"file"`
	Title  string `json:"title"`
	Body   string `json:"-"`
}

// Book is a book directory with its chapters in reading order.
type Book struct {
	ID          string
	Title       string
	Author      string
	Description string // rendered HTML
	Chapters    []Chapter
	CoverPath   string // source cover image, empty when the book has none
}

// CheckID rejects identifiers that would escape the books root.
func CheckID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// Dir returns the directory of book id under root.
func Dir(root, id string) string {
	return filepath.Join(root, id)
}

// ChapterNumber parses the numeric prefix of a chapter filename: the part
// before the first dot.
func ChapterNumber(filename string) (int, error) {
	prefix, _, _ := strings.Cut(filename, ".")
	n, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, fmt.Errorf("chapter %q has no numeric prefix", filename)
	}
	return n, nil
}

// ChapterFiles returns the .txt files of book id, ordered by numeric prefix.
// Files without a numeric prefix are logged and left out, as is every file
// after the first (by name) that shares a chapter number.
func ChapterFiles(root, id string, log *logging.Logger) ([]string, error) {
	log = logging.OrNop(log)
	if err := CheckID(id); err != nil {
		return nil, err
	}
	dir := Dir(root, id)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrBookNotFound, dir)
	}
	if err != nil {
		return nil, err
	}

	type numbered struct {
		name string
		n    int
	}
	var files []numbered
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		n, err := ChapterNumber(e.Name())
		if err != nil {
			log.Warn("skipping chapter file", "book", id, "file", e.Name(), "error", err)
			continue
		}
		files = append(files, numbered{name: e.Name(), n: n})
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no .txt files in %s", ErrNoChapters, dir)
	}
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].n != files[j].n {
			return files[i].n < files[j].n
		}
		return files[i].name < files[j].name
	})
	names := make([]string, 0, len(files))
	for i, f := range files {
		// Chapters render to <n>.html, so "1.txt" and "01.txt" would collide.
		if i > 0 && files[i-1].n == f.n {
			log.Warn("skipping duplicate chapter number", "book", id, "file", f.name, "kept", files[i-1].name, "chapter", f.n)
			continue
		}
		names = append(names, f.name)
	}
	return names, nil
}

// ListChapters reads every chapter of book id in numeric order. A chapter
// file that cannot be read is logged and excluded; the listing fails only
// when no chapter survives.
func ListChapters(root, id string, log *logging.Logger) ([]Chapter, error) {
	log = logging.OrNop(log)
	files, err := ChapterFiles(root, id, log)
	if err != nil {
		return nil, err
	}
	chapters := make([]Chapter, 0, len(files))
	for _, name := range files {
		ch, err := ReadChapter(filepath.Join(Dir(root, id), name))
		if err != nil {
			log.Warn("error reading chapter", "book", id, "file", name, "error", err)
			continue
		}
		chapters = append(chapters, ch)
	}
	if len(chapters) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoChapters, id)
	}
	log.Debug("loaded chapters", "book", id, "count", len(chapters))
	return chapters, nil
}

// ReadChapter reads one chapter file. An empty first line yields the title
// "Chapter N".
func ReadChapter(p string) (Chapter, error) {
	name := filepath.Base(p)
	n, err := ChapterNumber(name)
	if err != nil {
		return Chapter{}, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return Chapter{}, err
	}
	first, body, _ := strings.Cut(string(b), "\n")
	title := strings.TrimSpace(first)
	if title == "" {
		title = "Chapter " + strconv.Itoa(n)
	}
	return Chapter{Number: n, File: name, Title: title, Body: body}, nil
}

// Discover returns the IDs of every book under root: subdirectories holding
// at least one .txt file, excluding AudioDir, sorted by name.
func Discover(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if !e.IsDir() || e.Name() == AudioDir || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if hasText(filepath.Join(root, e.Name())) {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func hasText(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".txt") {
			return true
		}
	}
	return false
}

// FormatBody prepares chapter text for the chapter template. Every space
// becomes a <br> line break. The transformation is lossy and kept exactly as
// existing rendered chapters expect.
func FormatBody(body string) string {
	return strings.ReplaceAll(body, " ", "<br>")
}

// AudioPath returns the site path of the audio file for chapter n of book id.
func AudioPath(id string, n int) string {
	return path.Join("/files", AudioDir, id, strconv.Itoa(n)+".mp3")
}
