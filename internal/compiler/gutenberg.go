package compiler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"sitecraft/internal/models"
)

// RenderPageGutenberg renders one page as serialized Gutenberg blocks, the
// format stored in wp_posts.post_content. The page is assumed valid.
func RenderPageGutenberg(p *models.Page) string {
	var b strings.Builder
	for i := range p.Sections {
		if i > 0 {
			b.WriteString("\n")
		}
		writeSectionGutenberg(&b, &p.Sections[i])
	}
	return b.String()
}

type groupAttrs struct {
	TagName string `json:"tagName"`
	Anchor  string `json:"anchor,omitempty"`
}

func writeSectionGutenberg(b *strings.Builder, s *models.Section) {
	openBlock(b, "group", groupAttrs{TagName: "section", Anchor: s.ID})
	if s.ID != "" {
		fmt.Fprintf(b, "<section id=\"%s\" class=\"wp-block-group\">", escAttr(s.ID))
	} else {
		b.WriteString("<section class=\"wp-block-group\">")
	}
	if s.Heading != "" {
		b.WriteString("\n")
		writeHeading(b, s.Heading, 2)
	}
	for i := range s.Blocks {
		b.WriteString("\n")
		writeBlockGutenberg(b, &s.Blocks[i])
	}
	b.WriteString("</section>\n")
	closeBlock(b, "group")
}

func writeBlockGutenberg(b *strings.Builder, blk *models.Block) {
	switch blk.Type {
	case models.BlockText:
		switch {
		case blk.Style == models.TextStyleHeading:
			writeHeading(b, blk.Text, headingLevel(blk))
		case blk.Markdown:
			openBlock(b, "html", nil)
			b.WriteString(strings.TrimRight(renderMarkdown(blk.Text), "\n"))
			b.WriteString("\n")
			closeBlock(b, "html")
		default:
			openBlock(b, "paragraph", nil)
			fmt.Fprintf(b, "<p>%s</p>\n", esc(blk.Text))
			closeBlock(b, "paragraph")
		}
	case models.BlockImage:
		openBlock(b, "image", nil)
		fmt.Fprintf(b, "<figure class=\"wp-block-image\"><img src=\"%s\" alt=\"%s\"/>", escAttr(blk.Src), escAttr(blk.Alt))
		if blk.Caption != "" {
			fmt.Fprintf(b, "<figcaption class=\"wp-element-caption\">%s</figcaption>", esc(blk.Caption))
		}
		b.WriteString("</figure>\n")
		closeBlock(b, "image")
	case models.BlockButton:
		openBlock(b, "buttons", nil)
		b.WriteString("<div class=\"wp-block-buttons\">")
		if blk.Variant == models.ButtonSecondary {
			openBlock(b, "button", map[string]string{"className": "is-style-outline"})
			b.WriteString("<div class=\"wp-block-button is-style-outline\">")
		} else {
			openBlock(b, "button", nil)
			b.WriteString("<div class=\"wp-block-button\">")
		}
		fmt.Fprintf(b, "<a class=\"wp-block-button__link wp-element-button\" href=\"%s\">%s</a></div>\n", escAttr(blk.Href), esc(blk.Label))
		b.WriteString("<!-- /wp:button --></div>\n")
		closeBlock(b, "buttons")
	case models.BlockList:
		tag := "ul"
		if blk.Ordered {
			tag = "ol"
			openBlock(b, "list", map[string]bool{"ordered": true})
		} else {
			openBlock(b, "list", nil)
		}
		fmt.Fprintf(b, "<%s class=\"wp-block-list\">", tag)
		for _, item := range blk.Items {
			openBlock(b, "list-item", nil)
			fmt.Fprintf(b, "<li>%s</li>\n", esc(item))
			b.WriteString("<!-- /wp:list-item -->")
		}
		fmt.Fprintf(b, "</%s>\n", tag)
		closeBlock(b, "list")
	}
}

func writeHeading(b *strings.Builder, text string, level int) {
	if level == 2 {
		openBlock(b, "heading", nil)
	} else {
		openBlock(b, "heading", map[string]int{"level": level})
	}
	fmt.Fprintf(b, "<h%d class=\"wp-block-heading\">%s</h%d>\n", level, esc(text), level)
	closeBlock(b, "heading")
}

// openBlock writes the opening delimiter comment. Nil attrs omit the JSON object.
func openBlock(b *strings.Builder, name string, attrs interface{}) {
	b.WriteString("<!-- wp:")
	b.WriteString(name)
	if attrs != nil {
		b.WriteString(" ")
		b.WriteString(blockAttrs(attrs))
	}
	b.WriteString(" -->\n")
}

func closeBlock(b *strings.Builder, name string) {
	b.WriteString("<!-- /wp:")
	b.WriteString(name)
	b.WriteString(" -->")
}

// blockAttrs serializes attrs the way WordPress' serialize_block_attributes
// does: characters that could end the comment or confuse HTML are unicode escaped.
func blockAttrs(attrs interface{}) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(true)
	if err := enc.Encode(attrs); err != nil {
		return "{}"
	}
	out := strings.TrimRight(buf.String(), "\n")
	out = strings.ReplaceAll(out, "--", "\\u002d\\u002d")
	return out
}
