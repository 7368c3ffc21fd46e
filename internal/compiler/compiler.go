// Package compiler turns the stored page schema into markup: plain HTML for
// previews and artifacts, and Gutenberg block markup for WordPress.
package compiler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"sitecraft/internal/common"
	"sitecraft/internal/models"
)

// ParseDocument decodes and validates a page schema document.
func ParseDocument(data []byte) (*models.Document, error) {
	var doc models.Document
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decode document: %v", common.ErrInvalidInput, err)
	}
	if err := Validate(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// RenderHTML renders every page of doc to plain HTML keyed by page slug.
func RenderHTML(doc *models.Document) (map[string]string, error) {
	if err := Validate(doc); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(doc.Pages))
	for i := range doc.Pages {
		out[doc.Pages[i].Slug] = RenderPageHTML(&doc.Pages[i])
	}
	return out, nil
}

// RenderGutenberg renders every page of doc to Gutenberg block markup keyed by page slug.
func RenderGutenberg(doc *models.Document) (map[string]string, error) {
	if err := Validate(doc); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(doc.Pages))
	for i := range doc.Pages {
		out[doc.Pages[i].Slug] = RenderPageGutenberg(&doc.Pages[i])
	}
	return out, nil
}

// RenderSite renders doc as one standalone HTML5 document, each page in its
// own article with a navigation bar linking them.
func RenderSite(doc *models.Document, title string) (string, error) {
	if err := Validate(doc); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n")
	b.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", esc(title))
	b.WriteString("</head>\n<body>\n<nav>\n<ul>\n")
	for _, p := range doc.Pages {
		fmt.Fprintf(&b, "<li><a href=\"#page-%s\">%s</a></li>\n", escAttr(p.Slug), esc(p.Title))
	}
	b.WriteString("</ul>\n</nav>\n")
	for i := range doc.Pages {
		p := &doc.Pages[i]
		fmt.Fprintf(&b, "<article id=\"page-%s\">\n<h1>%s</h1>\n", escAttr(p.Slug), esc(p.Title))
		b.WriteString(RenderPageHTML(p))
		b.WriteString("</article>\n")
	}
	b.WriteString("</body>\n</html>\n")
	return b.String(), nil
}

func esc(s string) string {
	return html.EscapeString(s)
}

func escAttr(s string) string {
	return html.EscapeString(s)
}

func headingLevel(b *models.Block) int {
	if b.Level == 0 {
		return 2
	}
	return b.Level
}
