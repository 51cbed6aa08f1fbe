package scaffold

import (
	"os"
	"path/filepath"
	"testing"
	"text/template"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "site")
	created, err := Write(dir, Data{SiteName: "Jane's Talks"})
	require.NoError(t, err)
	assert.Contains(t, created, filepath.Join(dir, "index.html"))
	assert.Contains(t, created, filepath.Join(dir, "orator.yaml"))

	index, err := os.ReadFile(filepath.Join(dir, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(index), "<title>Jane's Talks</title>")

	for _, sub := range []string{"pages", "data", "files/audio"} {
		info, err := os.Stat(filepath.Join(dir, sub))
		require.NoError(t, err, sub)
		assert.True(t, info.IsDir(), sub)
	}
	_, err = os.Stat(filepath.Join(dir, "pages", ".keep"))
	assert.True(t, os.IsNotExist(err), "placeholders are not copied")

	_, err = os.Stat(filepath.Join(dir, "templates", "talk_template.html"))
	assert.NoError(t, err)
}

func TestWriteRefusesExistingDir(t *testing.T) {
	_, err := Write(t.TempDir(), Data{SiteName: "x"})
	assert.Error(t, err)
}

func TestWriteTemplate(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "ok.html")
	tmpl := template.Must(template.New("ok").Parse("<h1>{{.SiteName}}</h1>"))
	require.NoError(t, writeTemplate(out, tmpl, Data{SiteName: "Talks"}))
	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "<h1>Talks</h1>", string(b))

	bad := template.Must(template.New("bad").Parse("{{.Missing}}"))
	out = filepath.Join(dir, "bad.html")
	assert.Error(t, writeTemplate(out, bad, Data{}))
	_, err = os.Stat(out)
	assert.True(t, os.IsNotExist(err), "failed execution must not leave a file")

	assert.Error(t, writeTemplate(filepath.Join(dir, "missing", "x.html"), tmpl, Data{}))
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "My Site", Title("my-site"))
	assert.Equal(t, "Talks", Title("talks"))
	assert.Equal(t, "A  B", Title("a--b"))
}
