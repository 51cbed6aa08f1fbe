package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/orator/templates"
)

// run executes the CLI with args and returns its stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := newCLIApp(&out).Run(append([]string{"orator", "--log-mode", "prod"}, args...))
	return out.String(), err
}

func newSite(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "my-talks")
	out, err := run(t, "new", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Created "+dir)
	return dir
}

func TestNewCreatesSkeleton(t *testing.T) {
	dir := newSite(t)
	for _, name := range templates.Names {
		_, err := os.Stat(filepath.Join(dir, "templates", name))
		assert.NoError(t, err, name)
	}
	index, err := os.ReadFile(filepath.Join(dir, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(index), "My Talks")

	_, err = run(t, "new", dir)
	assert.Error(t, err, "existing directory must be refused")
}

func TestToStaticCommand(t *testing.T) {
	dir := newSite(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pages", "a.html"), []byte("<title>A</title>"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "files", "novel"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "files", "novel", "1.txt"), []byte("One\nbody"), 0o644))

	out, err := run(t, "--root", dir, "to-static")
	require.NoError(t, err)
	var report struct {
		Pages int `json:"pages"`
		Books []struct {
			ID       string `json:"id"`
			Chapters int    `json:"chapters"`
		} `json:"books"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report), out)
	assert.Equal(t, 1, report.Pages)
	require.Len(t, report.Books, 1)
	assert.Equal(t, "novel", report.Books[0].ID)

	_, err = os.Stat(filepath.Join(dir, "data", "pages.json"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "books", "novel", "1.html"))
	assert.NoError(t, err)
}

func TestToStaticMissingTemplateFails(t *testing.T) {
	dir := newSite(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "files", "novel"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "files", "novel", "1.txt"), []byte("One\n"), 0o644))
	require.NoError(t, os.Remove(filepath.Join(dir, "templates", templates.Book)))

	_, err := run(t, "--root", dir, "to-static")
	assert.Error(t, err)
}

func TestBackupAndToBackend(t *testing.T) {
	dir := newSite(t)

	out, err := run(t, "--root", dir, "backup")
	require.NoError(t, err)
	assert.Contains(t, out, templates.Talk)

	require.NoError(t, os.Remove(filepath.Join(dir, "templates", templates.Reading)))
	out, err = run(t, "--root", dir, "to-backend")
	require.NoError(t, err)
	var res map[string][]string
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, []string{templates.Reading}, res["restored"])
}

func TestAudioRequiresArgs(t *testing.T) {
	_, err := run(t, "audio", "only-one")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "orator dev\n", out)
}
