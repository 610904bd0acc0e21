package http

import (
	"github.com/fjod/go_cart/storefront/web"
	"github.com/unrolled/render"
)

const (
	tmplCheckout = "checkout"
	tmplThankYou = "thank_you"
	tmplNotFound = "not_found"
)

// NewRenderer loads the embedded page templates.
func NewRenderer(development bool) *render.Render {
	return render.New(render.Options{
		Directory:     "templates",
		FileSystem:    &render.EmbedFileSystem{FS: web.Templates},
		Extensions:    []string{".tmpl"},
		Layout:        "layout",
		IsDevelopment: development,
	})
}
