package web

import "embed"

// TemplatesFS embeds the server-rendered page.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS embeds the script and stylesheet served under /static/.
//
//go:embed static/*
var StaticFS embed.FS
