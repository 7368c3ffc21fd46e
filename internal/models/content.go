package models

// Document is the page schema stored in site_versions.content.
// The tree is fixed depth: pages hold sections, sections hold blocks.
type Document struct {
	Pages []Page `json:"pages"`
}

type Page struct {
	Slug     string    `json:"slug"`
	Title    string    `json:"title"`
	Sections []Section `json:"sections"`
}

type Section struct {
	ID      string  `json:"id,omitempty"`
	Heading string  `json:"heading,omitempty"`
	Blocks  []Block `json:"blocks"`
}

type BlockType string

const (
	BlockText   BlockType = "text"
	BlockImage  BlockType = "image"
	BlockButton BlockType = "button"
	BlockList   BlockType = "list"
)

const (
	TextStyleParagraph = "paragraph"
	TextStyleHeading   = "heading"

	ButtonPrimary   = "primary"
	ButtonSecondary = "secondary"
)

// Block is a flat union of the four block variants. Only the fields of the
// variant named by Type are meaningful.
type Block struct {
	Type BlockType `json:"type"`

	// text
	Text     string `json:"text,omitempty"`
	Style    string `json:"style,omitempty"`
	Level    int    `json:"level,omitempty"`
	Markdown bool   `json:"markdown,omitempty"`

	// image
	Src     string `json:"src,omitempty"`
	Alt     string `json:"alt,omitempty"`
	Caption string `json:"caption,omitempty"`

	// button
	Label   string `json:"label,omitempty"`
	Href    string `json:"href,omitempty"`
	Variant string `json:"variant,omitempty"`

	// list
	Items   []string `json:"items,omitempty"`
	Ordered bool     `json:"ordered,omitempty"`
}

// Page returns the page with the given slug, or nil.
func (d *Document) Page(slug string) *Page {
	for i := range d.Pages {
		if d.Pages[i].Slug == slug {
			return &d.Pages[i]
		}
	}
	return nil
}
