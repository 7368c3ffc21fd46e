package compiler

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"sitecraft/internal/common"
	"sitecraft/internal/models"
)

var (
	slugPattern   = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	anchorPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)
)

// Problem is a single schema violation with its location in the document.
type Problem struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationError collects every problem found in a document.
type ValidationError struct {
	Problems []Problem `json:"problems"`
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return fmt.Sprintf("invalid document: %s: %s", e.Problems[0].Path, e.Problems[0].Message)
	}
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, p.Path+": "+p.Message)
	}
	return fmt.Sprintf("invalid document (%d problems): %s", len(e.Problems), strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return common.ErrInvalidInput
}

func (e *ValidationError) add(path, format string, args ...interface{}) {
	e.Problems = append(e.Problems, Problem{Path: path, Message: fmt.Sprintf(format, args...)})
}

// Validate checks doc against the page schema rules and returns a
// *ValidationError listing all violations, or nil.
func Validate(doc *models.Document) error {
	verr := &ValidationError{}
	if doc == nil || len(doc.Pages) == 0 {
		verr.add("pages", "at least one page is required")
		return verr
	}

	seen := make(map[string]bool, len(doc.Pages))
	for i := range doc.Pages {
		page := &doc.Pages[i]
		path := fmt.Sprintf("pages[%d]", i)

		switch {
		case page.Slug == "":
			verr.add(path+".slug", "is required")
		case !slugPattern.MatchString(page.Slug):
			verr.add(path+".slug", "must contain lowercase letters, digits and dashes only")
		case seen[page.Slug]:
			verr.add(path+".slug", "duplicate slug %q", page.Slug)
		}
		seen[page.Slug] = true

		if strings.TrimSpace(page.Title) == "" {
			verr.add(path+".title", "is required")
		}

		for j := range page.Sections {
			validateSection(verr, fmt.Sprintf("%s.sections[%d]", path, j), &page.Sections[j])
		}
	}

	if len(verr.Problems) > 0 {
		return verr
	}
	return nil
}

func validateSection(verr *ValidationError, path string, s *models.Section) {
	if s.ID != "" && !anchorPattern.MatchString(s.ID) {
		verr.add(path+".id", "must start with a letter and contain only letters, digits, dashes or underscores")
	}
	if len(s.Blocks) == 0 && strings.TrimSpace(s.Heading) == "" {
		verr.add(path+".blocks", "section needs a heading or at least one block")
	}
	for k := range s.Blocks {
		validateBlock(verr, fmt.Sprintf("%s.blocks[%d]", path, k), &s.Blocks[k])
	}
}

func validateBlock(verr *ValidationError, path string, b *models.Block) {
	switch b.Type {
	case models.BlockText:
		if strings.TrimSpace(b.Text) == "" {
			verr.add(path+".text", "is required")
		}
		switch b.Style {
		case "", models.TextStyleParagraph:
		case models.TextStyleHeading:
			if b.Level != 0 && (b.Level < 1 || b.Level > 6) {
				verr.add(path+".level", "must be between 1 and 6")
			}
			if b.Markdown {
				verr.add(path+".markdown", "headings cannot be markdown")
			}
		default:
			verr.add(path+".style", "unknown text style %q", b.Style)
		}
	case models.BlockImage:
		if b.Src == "" {
			verr.add(path+".src", "is required")
		} else if !safeImageURL(b.Src) {
			verr.add(path+".src", "must be an http(s) URL or a relative path")
		}
	case models.BlockButton:
		if strings.TrimSpace(b.Label) == "" {
			verr.add(path+".label", "is required")
		}
		if b.Href == "" {
			verr.add(path+".href", "is required")
		} else if !safeLinkURL(b.Href) {
			verr.add(path+".href", "unsupported link %q", b.Href)
		}
		switch b.Variant {
		case "", models.ButtonPrimary, models.ButtonSecondary:
		default:
			verr.add(path+".variant", "unknown button variant %q", b.Variant)
		}
	case models.BlockList:
		if len(b.Items) == 0 {
			verr.add(path+".items", "at least one item is required")
		}
		for i, item := range b.Items {
			if strings.TrimSpace(item) == "" {
				verr.add(fmt.Sprintf("%s.items[%d]", path, i), "is empty")
			}
		}
	case "":
		verr.add(path+".type", "is required")
	default:
		verr.add(path+".type", "unknown block type %q", b.Type)
	}
}

// safeImageURL accepts http(s) URLs and references relative to the site.
// Protocol-relative "//host" references and other schemes are rejected.
func safeImageURL(u string) bool {
	if strings.TrimSpace(u) != u || strings.HasPrefix(u, "//") || strings.HasPrefix(u, `/\`) || strings.HasPrefix(u, `\`) {
		return false
	}
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
		return parsed.Host != ""
	case "":
		return parsed.Host == "" && parsed.Path != ""
	}
	return false
}

func safeLinkURL(u string) bool {
	if safeImageURL(u) {
		return true
	}
	lower := strings.ToLower(u)
	return strings.HasPrefix(lower, "#") || strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "tel:")
}
