package web

import "embed"

// Templates holds the HTML views, rooted at "templates".
//
//go:embed templates/*.tmpl
var Templates embed.FS
