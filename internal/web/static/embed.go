package static

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
)

//go:embed assets/*
var assetsFS embed.FS

//go:embed templates/*.html
var templatesFS embed.FS

// GetFileSystem returns an http.FileSystem for the embedded assets directory.
func GetFileSystem() http.FileSystem {
	fsys, err := fs.Sub(assetsFS, "assets")
	if err != nil {
		panic(err)
	}
	return http.FS(fsys)
}

// ParseTemplates parses the embedded page templates with funcs available.
func ParseTemplates(funcs template.FuncMap) (*template.Template, error) {
	return template.New("").Funcs(funcs).ParseFS(templatesFS, "templates/*.html")
}
