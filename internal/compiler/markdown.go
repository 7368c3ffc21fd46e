package compiler

import (
	"bytes"
	"log"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	markdownEngine = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify),
		goldmark.WithRendererOptions(html.WithXHTML()),
	)
	sanitizer = bluemonday.UGCPolicy()
)

// renderMarkdown converts markdown text into sanitized HTML. Raw HTML in the
// source is dropped by goldmark's default renderer and again by the policy.
func renderMarkdown(src string) string {
	var buf bytes.Buffer
	if err := markdownEngine.Convert([]byte(src), &buf); err != nil {
		log.Printf("WARN: markdown conversion failed, rendering as text: %v", err)
		return "<p>" + esc(src) + "</p>\n"
	}
	return sanitizer.Sanitize(buf.String())
}
