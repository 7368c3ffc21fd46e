package compiler

import (
	"fmt"
	"strings"

	"sitecraft/internal/models"
)

// RenderPageHTML renders one page as a <main> element. The page is assumed valid.
func RenderPageHTML(p *models.Page) string {
	var b strings.Builder
	b.WriteString("<main>\n")
	for i := range p.Sections {
		writeSectionHTML(&b, &p.Sections[i])
	}
	b.WriteString("</main>\n")
	return b.String()
}

func writeSectionHTML(b *strings.Builder, s *models.Section) {
	if s.ID != "" {
		fmt.Fprintf(b, "<section id=\"%s\">\n", escAttr(s.ID))
	} else {
		b.WriteString("<section>\n")
	}
	if s.Heading != "" {
		fmt.Fprintf(b, "<h2>%s</h2>\n", esc(s.Heading))
	}
	for i := range s.Blocks {
		writeBlockHTML(b, &s.Blocks[i])
	}
	b.WriteString("</section>\n")
}

func writeBlockHTML(b *strings.Builder, blk *models.Block) {
	switch blk.Type {
	case models.BlockText:
		switch {
		case blk.Style == models.TextStyleHeading:
			lvl := headingLevel(blk)
			fmt.Fprintf(b, "<h%d>%s</h%d>\n", lvl, esc(blk.Text), lvl)
		case blk.Markdown:
			b.WriteString(renderMarkdown(blk.Text))
		default:
			fmt.Fprintf(b, "<p>%s</p>\n", esc(blk.Text))
		}
	case models.BlockImage:
		fmt.Fprintf(b, "<figure><img src=\"%s\" alt=\"%s\">", escAttr(blk.Src), escAttr(blk.Alt))
		if blk.Caption != "" {
			fmt.Fprintf(b, "<figcaption>%s</figcaption>", esc(blk.Caption))
		}
		b.WriteString("</figure>\n")
	case models.BlockButton:
		variant := blk.Variant
		if variant == "" {
			variant = models.ButtonPrimary
		}
		fmt.Fprintf(b, "<a class=\"button button-%s\" href=\"%s\">%s</a>\n", variant, escAttr(blk.Href), esc(blk.Label))
	case models.BlockList:
		tag := "ul"
		if blk.Ordered {
			tag = "ol"
		}
		fmt.Fprintf(b, "<%s>\n", tag)
		for _, item := range blk.Items {
			fmt.Fprintf(b, "<li>%s</li>\n", esc(item))
		}
		fmt.Fprintf(b, "</%s>\n", tag)
	}
}
