// Package web embeds the dashboard's templates and static assets.
package web

import (
	"embed"
	"io/fs"
)

//go:embed templates/layouts/*.html templates/partials/*.html templates/pages/*.html
var templates embed.FS

//go:embed static
var static embed.FS

// TemplatePatterns lists the globs parsed into the view engine, layouts first.
var TemplatePatterns = []string{"templates/layouts/*.html", "templates/partials/*.html", "templates/pages/*.html"}

// Templates returns the embedded template tree.
func Templates() fs.FS {
	return templates
}

// Static returns the asset tree rooted at static/, ready for http.FS.
func Static() (fs.FS, error) {
	return fs.Sub(static, "static")
}
