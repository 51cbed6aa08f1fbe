package books

import (
	"errors"
	"fmt"
	"html"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/eringen/orator/logging"
	"github.com/eringen/orator/markdown"
	"github.com/eringen/orator/templates"
)

// DescriptionFile is the optional Markdown description of a book.
const DescriptionFile = "book.md"

// Load reads book id from root: its chapters, its description, and its cover.
func Load(root, id string, log *logging.Logger) (Book, error) {
	chapters, err := ListChapters(root, id, log)
	if err != nil {
		return Book{}, err
	}
	b := Book{
		ID:        id,
		Title:     id,
		Chapters:  chapters,
		CoverPath: FindCover(Dir(root, id)),
	}

	src, err := os.ReadFile(filepath.Join(Dir(root, id), DescriptionFile))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return b, nil
	case err != nil:
		return Book{}, err
	}
	doc, err := markdown.Parse(src)
	if err != nil {
		return Book{}, fmt.Errorf("book %s: %w", id, err)
	}
	if doc.Meta.Title != "" {
		b.Title = doc.Meta.Title
	}
	b.Author = doc.Meta.Author
	if b.Description, err = markdown.ToHTML(doc.Body); err != nil {
		return Book{}, fmt.Errorf("book %s: %w", id, err)
	}
	return b, nil
}

// Renderer writes book index and chapter pages. Templates are read once when
// the renderer is built so a missing template fails before any output is
// touched.
type Renderer struct {
	OutDir string
	Log    *logging.Logger

	chapterTmpl string
	bookTmpl    string
}

// NewRenderer loads the chapter and book templates from set.
func NewRenderer(set *templates.Set, outDir string, log *logging.Logger) (*Renderer, error) {
	chapter, err := set.Load(templates.Chapter)
	if err != nil {
		return nil, err
	}
	book, err := set.Load(templates.Book)
	if err != nil {
		return nil, err
	}
	return &Renderer{
		OutDir:      outDir,
		Log:         logging.OrNop(log),
		chapterTmpl: chapter,
		bookTmpl:    book,
	}, nil
}

// BookDir returns the output directory of book id.
func (r *Renderer) BookDir(id string) string {
	return filepath.Join(r.OutDir, id)
}

// Render regenerates the output directory of b from scratch: the index page,
// one page per chapter, and the cover thumbnail.
func (r *Renderer) Render(b Book) error {
	if err := CheckID(b.ID); err != nil {
		return err
	}
	dir := r.BookDir(b.ID)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clear %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	cover := ""
	if b.CoverPath != "" {
		size, err := writeCover(b.CoverPath, filepath.Join(dir, CoverFile))
		if err != nil {
			r.Log.Warn("skipping cover", "book", b.ID, "error", err)
		} else {
			cover = fmt.Sprintf(`<img class="cover" src="%s" width="%d" height="%d" alt="%s">`, CoverFile, size.X, size.Y, html.EscapeString(b.Title))
		}
	}

	index := templates.Fill(r.bookTmpl, templates.Values{
		templates.TokenTitle:       b.Title,
		templates.TokenBookID:      b.ID,
		templates.TokenDescription: b.Description,
		templates.TokenChapterList: ChapterList(b.Chapters),
		templates.TokenCover:       cover,
	})
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte(index), 0o644); err != nil {
		return err
	}

	for i, ch := range b.Chapters {
		var prev, next string
		if i > 0 {
			prev = navLink("prev", b.Chapters[i-1], "Previous")
		}
		if i < len(b.Chapters)-1 {
			next = navLink("next", b.Chapters[i+1], "Next")
		}
		page := r.RenderChapter(b.ID, ch, prev, next)
		if err := os.WriteFile(filepath.Join(dir, ChapterPage(ch)), []byte(page), 0o644); err != nil {
			return err
		}
	}
	r.Log.Info("rendered book", "book", b.ID, "chapters", len(b.Chapters))
	return nil
}

// RenderChapter fills the chapter template for ch.
func (r *Renderer) RenderChapter(id string, ch Chapter, prev, next string) string {
	return templates.Fill(r.chapterTmpl, templates.Values{
		templates.TokenTitle:     ch.Title,
		templates.TokenContent:   FormatBody(ch.Body),
		templates.TokenBookID:    id,
		templates.TokenAudioPath: AudioPath(id, ch.Number),
		templates.TokenPrevLink:  prev,
		templates.TokenNextLink:  next,
	})
}

// ChapterPage is the output filename of a chapter, e.g. "3.html".
func ChapterPage(ch Chapter) string {
	return strconv.Itoa(ch.Number) + ".html"
}

// ChapterList renders the <li> entries linking each chapter page.
func ChapterList(chapters []Chapter) string {
	var b strings.Builder
	for i, ch := range chapters {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, `      <li><a href="%s">%s</a></li>`, ChapterPage(ch), ch.Title)
	}
	return b.String()
}

func navLink(class string, ch Chapter, label string) string {
	return fmt.Sprintf(`<a class="%s" href="%s">%s</a>`, class, ChapterPage(ch), label)
}
