// Package markdown renders Markdown documents with optional YAML front matter
// to HTML. It backs the book descriptions shown on generated book pages.
package markdown

import (
	"bytes"
	"fmt"

	"github.com/adrg/frontmatter"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

// FrontMatter is the metadata block recognized at the top of a document.
type FrontMatter struct {
	Title   string   `yaml:"title"`
	Author  string   `yaml:"author"`
	Summary string   `yaml:"summary"`
	Tags    []string `yaml:"tags"`
}

// Document is a parsed Markdown file.
type Document struct {
	Meta FrontMatter
	Body []byte
}

var engine = goldmark.New(
	goldmark.WithExtensions(extension.GFM, extension.Typographer),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	goldmark.WithRendererOptions(html.WithUnsafe()),
)

// Parse splits source into front matter and Markdown body. A document
// without front matter yields an empty FrontMatter and the full source.
func Parse(source []byte) (Document, error) {
	var meta FrontMatter
	body, err := frontmatter.Parse(bytes.NewReader(source), &meta)
	if err != nil {
		return Document{}, fmt.Errorf("parse frontmatter: %w", err)
	}
	return Document{Meta: meta, Body: body}, nil
}

// ToHTML converts Markdown to HTML.
func ToHTML(md []byte) (string, error) {
	var buf bytes.Buffer
	if err := engine.Convert(md, &buf); err != nil {
		return "", fmt.Errorf("markdown: %w", err)
	}
	return buf.String(), nil
}
