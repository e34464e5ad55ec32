// Package web embeds the templates and static assets served by cmd/capext.
package web

import "embed"

// TemplatesFS holds the page and the HTMX partials.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds the stylesheet and the notification script.
//
//go:embed static/*
var StaticFS embed.FS
