// Package web holds the page templates and static assets compiled into the binary.
package web

import "embed"

// TemplatesFS holds the pages and htmx partials.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds the stylesheet and the small client script.
//
//go:embed static/*
var StaticFS embed.FS
