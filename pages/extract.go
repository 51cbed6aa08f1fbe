package pages

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TalkMarker is the substring whose presence marks a page without an explicit
// page-type tag as a talk.
const TalkMarker = "TALK_LINK"

// FallbackLink is returned when a page's link cannot be extracted.
const FallbackLink = "#"

const (
	talkLinkAttr       = `href="`
	talkLinkOccurrence = 3
	pdfURLAssign       = "const url = '"
)

var reKindMeta = regexp.MustCompile(`<meta\s+name="page-type"\s+content="(talk|reading)"\s*/?>`)

// Classify returns the kind of a page. An explicit
// <meta name="page-type" content="..."> tag wins; pages without one are talks
// when they contain TalkMarker and readings otherwise.
func Classify(content string) Kind {
	if m := reKindMeta.FindStringSubmatch(content); m != nil {
		return Kind(m[1])
	}
	if strings.Contains(content, TalkMarker) {
		return KindTalk
	}
	return KindReading
}

// StampKind records kind in content as a page-type meta tag, placed right
// after <head> when there is one. An existing tag is replaced.
func StampKind(content string, kind Kind) string {
	tag := fmt.Sprintf(`<meta name="page-type" content="%s">`, kind)
	if reKindMeta.MatchString(content) {
		return reKindMeta.ReplaceAllLiteralString(content, tag)
	}
	if i := strings.Index(content, "<head>"); i >= 0 {
		at := i + len("<head>")
		return content[:at] + "\n  " + tag + content[at:]
	}
	if i := strings.Index(content, "<title>"); i >= 0 {
		return content[:i] + tag + "\n" + content[i:]
	}
	return tag + "\n" + content
}

// ExtractTitle returns the text of the first <title> element, or a title
// derived from filename when the document has none.
func ExtractTitle(content, filename string) string {
	if _, rest, ok := strings.Cut(content, "<title>"); ok {
		if title, _, ok := strings.Cut(rest, "</title>"); ok {
			return title
		}
	}
	return TitleFromFilename(filename)
}

// TitleFromFilename turns "my-first-talk.html" into "My First Talk".
func TitleFromFilename(filename string) string {
	base := strings.TrimSuffix(filepath.Base(filename), ".html")
	return cases.Title(language.Und).String(strings.ReplaceAll(base, "-", " "))
}

// ExtractTalkLink returns the value of the third href attribute in content,
// or FallbackLink when there are fewer than three or the value is unterminated.
func ExtractTalkLink(content string) string {
	rest := content
	for i := 0; i < talkLinkOccurrence; i++ {
		_, after, ok := strings.Cut(rest, talkLinkAttr)
		if !ok {
			return FallbackLink
		}
		rest = after
	}
	link, _, ok := strings.Cut(rest, `"`)
	if !ok {
		return FallbackLink
	}
	return link
}

// ExtractPDFURL returns the string assigned in the first
// "const url = '...'" statement, or FallbackLink when there is none.
func ExtractPDFURL(content string) string {
	_, rest, ok := strings.Cut(content, pdfURLAssign)
	if !ok {
		return FallbackLink
	}
	u, _, ok := strings.Cut(rest, "'")
	if !ok {
		return FallbackLink
	}
	return u
}

// FilenameForTitle derives the page filename for title: lowercased, spaces
// replaced with hyphens, with an .html extension. Titles that would escape
// the pages directory or name a hidden file are rejected.
func FilenameForTitle(title string) (string, error) {
	if strings.TrimSpace(title) == "" {
		return "", fmt.Errorf("%w: title is required", ErrInvalid)
	}
	name := strings.ReplaceAll(strings.ToLower(title), " ", "-") + ".html"
	if err := checkFilename(name); err != nil {
		return "", err
	}
	return name, nil
}

func checkFilename(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: empty filename", ErrInvalid)
	case strings.ContainsAny(name, `/\`), strings.Contains(name, ".."), strings.ContainsRune(name, 0):
		return fmt.Errorf("%w: %q is not a plain filename", ErrInvalid, name)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("%w: %q is a hidden file", ErrInvalid, name)
	}
	return nil
}
