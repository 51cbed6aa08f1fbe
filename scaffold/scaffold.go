// Package scaffold embeds the skeleton of a new orator site: the default page,
// chapter, and book templates plus a minimal front end.
package scaffold

import "embed"

// Templates contains the site skeleton rooted at "templates".
// Files with a .tmpl suffix are executed as Go text/template; every other
// file is written verbatim.
//
//go:embed all:templates
var Templates embed.FS

// Root is the directory inside Templates that holds the skeleton.
const Root = "templates"

// TemplatesDir is the path of the page templates inside the skeleton.
const TemplatesDir = "templates/templates"
