package server

import (
	"embed"
	"html/template"
	"path"
)

//go:embed templates/*
var templateFiles embed.FS

// ParseTemplate parses one page from the embedded templates directory.
func ParseTemplate(name string) (*template.Template, error) {
	return template.New(name).ParseFS(templateFiles, path.Join("templates", name))
}
