package books

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/orator/templates"
)

const testChapterTemplate = `<title>[TITLE]</title><body data-book="[BOOK_ID]"><audio src="[AUDIO_PATH]"></audio>[PREV_LINK][NEXT_LINK]<div>[CONTENT]</div></body>`

const testBookTemplate = `<title>[TITLE]</title>[COVER]<section>[DESCRIPTION]</section><ol>
[CHAPTER_LIST]
</ol>`

func writeChapter(t *testing.T, root, id, name, content string) {
	t.Helper()
	dir := filepath.Join(root, id)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	tmplDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmplDir, templates.Chapter), []byte(testChapterTemplate), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmplDir, templates.Book), []byte(testBookTemplate), 0o644))
	r, err := NewRenderer(templates.NewSet(tmplDir), t.TempDir(), nil)
	require.NoError(t, err)
	return r
}

func TestChapterOrderIsNumeric(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"10.txt", "2.txt", "1.txt"} {
		writeChapter(t, root, "novel", name, "Title "+name+"\nbody")
	}

	files, err := ChapterFiles(root, "novel", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"1.txt", "2.txt", "10.txt"}, files)

	chapters, err := ListChapters(root, "novel", nil)
	require.NoError(t, err)
	require.Len(t, chapters, 3)
	assert.Equal(t, []int{1, 2, 10}, []int{chapters[0].Number, chapters[1].Number, chapters[2].Number})
}

func TestListChaptersTitles(t *testing.T) {
	root := t.TempDir()
	writeChapter(t, root, "b", "1.txt", "  The Beginning  \nIt was a dark night.\nSecond line.")
	writeChapter(t, root, "b", "2.txt", "\nNo title here.")

	chapters, err := ListChapters(root, "b", nil)
	require.NoError(t, err)
	require.Len(t, chapters, 2)
	assert.Equal(t, "The Beginning", chapters[0].Title)
	assert.Equal(t, "It was a dark night.\nSecond line.", chapters[0].Body)
	assert.Equal(t, "Chapter 2", chapters[1].Title)
	assert.Equal(t, "1.txt", chapters[0].File)
}

func TestListChaptersSkipsNonNumeric(t *testing.T) {
	root := t.TempDir()
	writeChapter(t, root, "b", "1.txt", "One\n")
	writeChapter(t, root, "b", "notes.txt", "scratch\n")
	writeChapter(t, root, "b", "cover.png", "not text")

	chapters, err := ListChapters(root, "b", nil)
	require.NoError(t, err)
	require.Len(t, chapters, 1)
	assert.Equal(t, "One", chapters[0].Title)
}

func TestListChaptersSkipsDuplicateNumbers(t *testing.T) {
	root := t.TempDir()
	writeChapter(t, root, "b", "1.txt", "Late\n")
	writeChapter(t, root, "b", "01.txt", "Early\n")
	writeChapter(t, root, "b", "2.txt", "Two\n")

	files, err := ChapterFiles(root, "b", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"01.txt", "2.txt"}, files)

	chapters, err := ListChapters(root, "b", nil)
	require.NoError(t, err)
	require.Len(t, chapters, 2)
	assert.Equal(t, "Early", chapters[0].Title)
	assert.Equal(t, 2, chapters[1].Number)
}

func TestListChaptersErrors(t *testing.T) {
	root := t.TempDir()

	_, err := ListChapters(root, "missing", nil)
	assert.ErrorIs(t, err, ErrBookNotFound)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))
	_, err = ListChapters(root, "empty", nil)
	assert.ErrorIs(t, err, ErrNoChapters)

	_, err = ListChapters(root, "../etc", nil)
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	writeChapter(t, root, "zeta", "1.txt", "Z\n")
	writeChapter(t, root, "alpha", "1.txt", "A\n")
	writeChapter(t, root, "audio/alpha", "1.mp3", "")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "no-text"), 0o755))

	ids, err := Discover(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, ids)
}

func TestFormatBodyReplacesSpaces(t *testing.T) {
	assert.Equal(t, "one<br>two<br><br>three", FormatBody("one two  three"))
	assert.Equal(t, "line\nbreak", FormatBody("line\nbreak"))
}

func TestAudioPath(t *testing.T) {
	assert.Equal(t, "/files/audio/novel/3.mp3", AudioPath("novel", 3))
}

func TestRenderBook(t *testing.T) {
	root := t.TempDir()
	writeChapter(t, root, "novel", "1.txt", "Arrival\nWe came by sea")
	writeChapter(t, root, "novel", "2.txt", "Departure\nWe left by air")
	writeChapter(t, root, "novel", DescriptionFile, "---\ntitle: The Novel\nauthor: Someone\n---\nA **short** book.\n")

	r := newTestRenderer(t)
	// Stale output from a previous run must disappear.
	stale := filepath.Join(r.BookDir("novel"), "99.html")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	b, err := Load(root, "novel", nil)
	require.NoError(t, err)
	assert.Equal(t, "The Novel", b.Title)
	assert.Equal(t, "Someone", b.Author)
	require.NoError(t, r.Render(b))

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))

	index, err := os.ReadFile(filepath.Join(r.BookDir("novel"), "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(index), "<title>The Novel</title>")
	assert.Contains(t, string(index), "<strong>short</strong>")
	assert.Contains(t, string(index), `<li><a href="1.html">Arrival</a></li>`)
	assert.Contains(t, string(index), `<li><a href="2.html">Departure</a></li>`)

	ch1, err := os.ReadFile(filepath.Join(r.BookDir("novel"), "1.html"))
	require.NoError(t, err)
	page := string(ch1)
	assert.Contains(t, page, "<title>Arrival</title>")
	assert.Contains(t, page, `data-book="novel"`)
	assert.Contains(t, page, `src="/files/audio/novel/1.mp3"`)
	assert.Contains(t, page, "<div>We<br>came<br>by<br>sea</div>")
	assert.Contains(t, page, `<a class="next" href="2.html">Next</a>`)
	assert.NotContains(t, page, `class="prev"`)

	ch2, err := os.ReadFile(filepath.Join(r.BookDir("novel"), "2.html"))
	require.NoError(t, err)
	assert.Contains(t, string(ch2), `<a class="prev" href="1.html">Previous</a>`)
	assert.NotContains(t, string(ch2), `class="next"`)
}

func TestRenderIsIdempotent(t *testing.T) {
	root := t.TempDir()
	writeChapter(t, root, "b", "1.txt", "One\nbody text")
	r := newTestRenderer(t)

	b, err := Load(root, "b", nil)
	require.NoError(t, err)
	require.NoError(t, r.Render(b))
	first, err := os.ReadFile(filepath.Join(r.BookDir("b"), "1.html"))
	require.NoError(t, err)

	require.NoError(t, r.Render(b))
	second, err := os.ReadFile(filepath.Join(r.BookDir("b"), "1.html"))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestNewRendererMissingTemplate(t *testing.T) {
	_, err := NewRenderer(templates.NewSet(t.TempDir()), t.TempDir(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestThumbnailScalesWideImages(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 800, 200))
	for x := 0; x < 800; x++ {
		src.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	data, size, err := Thumbnail(&buf)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(400, 100), size)
	assert.NotEmpty(t, data)

	_, _, err = Thumbnail(strings.NewReader("not an image"))
	assert.Error(t, err)
}

func TestRenderBookWithCover(t *testing.T) {
	root := t.TempDir()
	writeChapter(t, root, "pics", "1.txt", "One\n")
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 50, 80))))
	require.NoError(t, os.WriteFile(filepath.Join(root, "pics", "cover.png"), buf.Bytes(), 0o644))

	r := newTestRenderer(t)
	b, err := Load(root, "pics", nil)
	require.NoError(t, err)
	require.NoError(t, r.Render(b))

	_, err = os.Stat(filepath.Join(r.BookDir("pics"), CoverFile))
	require.NoError(t, err)
	index, err := os.ReadFile(filepath.Join(r.BookDir("pics"), "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(index), `<img class="cover" src="cover.jpg" width="50" height="80" alt="pics">`)
}
