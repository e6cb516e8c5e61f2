// Package block defines the content block model for guide pages and the
// single tolerant decoder that rebuilds it from persisted data.
package block

import "strings"

// Type discriminates the block union. The set is closed; unknown values are
// dropped during normalization rather than rejected.
type Type string

const (
	TypeTitle       Type = "title"
	TypeHeading     Type = "heading"
	TypeParagraph   Type = "paragraph"
	TypeImage       Type = "image"
	TypeDivider     Type = "divider"
	TypeIcon        Type = "icon"
	TypeSpace       Type = "space"
	TypeSection     Type = "section"
	TypeColumns     Type = "columns"
	TypeIconRow     Type = "iconRow"
	TypeCTA         Type = "cta"
	TypeBadge       Type = "badge"
	TypeHours       Type = "hours"
	TypePricing     Type = "pricing"
	TypeQuote       Type = "quote"
	TypeChecklist   Type = "checklist"
	TypeGallery     Type = "gallery"
	TypeColumnGroup Type = "columnGroup"
)

var knownTypes = map[Type]struct{}{
	TypeTitle:       {},
	TypeHeading:     {},
	TypeParagraph:   {},
	TypeImage:       {},
	TypeDivider:     {},
	TypeIcon:        {},
	TypeSpace:       {},
	TypeSection:     {},
	TypeColumns:     {},
	TypeIconRow:     {},
	TypeCTA:         {},
	TypeBadge:       {},
	TypeHours:       {},
	TypePricing:     {},
	TypeQuote:       {},
	TypeChecklist:   {},
	TypeGallery:     {},
	TypeColumnGroup: {},
}

// Known reports whether t is one of the supported block types.
func Known(t Type) bool {
	_, ok := knownTypes[t]
	return ok
}

// Block is one typed unit of page content. It is a flat tagged union: the
// Type field decides which of the remaining fields are meaningful, everything
// else stays at its zero value and is omitted from JSON.
type Block struct {
	ID   string `json:"id"`
	Type Type   `json:"type"`

	Text      string `json:"text,omitempty"`
	Title     string `json:"title,omitempty"`
	URL       string `json:"url,omitempty"`
	Link      string `json:"link,omitempty"`
	Icon      string `json:"icon,omitempty"`
	TextAlign string `json:"textAlign,omitempty"`
	Weight    string `json:"weight,omitempty"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
	Bg        string `json:"backgroundColor,omitempty"`
	Author    string `json:"author,omitempty"`
	Level     int    `json:"level,omitempty"`
	Spacing   int    `json:"spacing,omitempty"`

	IconItems      []IconRowItem    `json:"iconItems,omitempty"`
	HoursItems     []LabelValueItem `json:"hoursItems,omitempty"`
	PricingItems   []LabelValueItem `json:"pricingItems,omitempty"`
	GalleryItems   []GalleryItem    `json:"galleryItems,omitempty"`
	ChecklistItems []ChecklistItem  `json:"checklistItems,omitempty"`
	ColumnItems    []ColumnItem     `json:"columnItems,omitempty"`
}

// IconRowItem is a sub-entity of an iconRow block. NodeID, when set,
// correlates the item to a navigation graph node; this is the only coupling
// between the block model and the graph.
type IconRowItem struct {
	ID     string `json:"id"`
	Icon   string `json:"icon,omitempty"`
	Label  string `json:"label,omitempty"`
	Link   string `json:"link,omitempty"`
	NodeID string `json:"nodeId,omitempty"`
	Bg     string `json:"backgroundColor,omitempty"`
}

// LabelValueItem backs hours and pricing rows.
type LabelValueItem struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
	Value string `json:"value,omitempty"`
}

// GalleryItem is one image in a gallery block.
type GalleryItem struct {
	ID      string `json:"id"`
	URL     string `json:"url,omitempty"`
	Caption string `json:"caption,omitempty"`
}

// ChecklistItem is one line of a checklist block.
type ChecklistItem struct {
	ID      string `json:"id"`
	Text    string `json:"text,omitempty"`
	Checked bool   `json:"checked,omitempty"`
}

// ColumnItem is one column in a columns or columnGroup block.
type ColumnItem struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
	Text  string `json:"text,omitempty"`
	Icon  string `json:"icon,omitempty"`
}

// InternalLinkPrefix marks a link that targets another page by slug rather
// than an external URL.
const InternalLinkPrefix = "page:"

// InternalLink builds an internal link value for a slug.
func InternalLink(slug string) string {
	return InternalLinkPrefix + slug
}

// InternalSlug returns the target slug of an internal link, or "" if the link
// is not internal.
func InternalSlug(link string) string {
	if !strings.HasPrefix(link, InternalLinkPrefix) {
		return ""
	}
	return strings.TrimPrefix(link, InternalLinkPrefix)
}

// IsInternalLink reports whether link uses the to-page-by-slug form.
func IsInternalLink(link string) bool {
	return strings.HasPrefix(link, InternalLinkPrefix)
}

// HasContent reports whether b carries meaningful user content. Purely
// decorative blocks (divider, space, icon) never count. The predicate mirrors
// the text/image extraction rules used for the derived caches.
func HasContent(b Block) bool {
	switch b.Type {
	case TypeTitle, TypeHeading, TypeParagraph, TypeCTA, TypeBadge, TypeQuote:
		return strings.TrimSpace(b.Text) != ""
	case TypeSection:
		return strings.TrimSpace(b.Title) != "" || strings.TrimSpace(b.Text) != ""
	case TypeImage:
		return strings.TrimSpace(b.URL) != ""
	case TypeGallery:
		for _, item := range b.GalleryItems {
			if strings.TrimSpace(item.URL) != "" {
				return true
			}
		}
	case TypeIconRow:
		for _, item := range b.IconItems {
			if strings.TrimSpace(item.Label) != "" {
				return true
			}
		}
	case TypeHours:
		return hasLabelValueContent(b.HoursItems)
	case TypePricing:
		return hasLabelValueContent(b.PricingItems)
	case TypeChecklist:
		for _, item := range b.ChecklistItems {
			if strings.TrimSpace(item.Text) != "" {
				return true
			}
		}
	case TypeColumns, TypeColumnGroup:
		for _, col := range b.ColumnItems {
			if strings.TrimSpace(col.Title) != "" || strings.TrimSpace(col.Text) != "" {
				return true
			}
		}
	}
	return false
}

func hasLabelValueContent(items []LabelValueItem) bool {
	for _, item := range items {
		if strings.TrimSpace(item.Label) != "" || strings.TrimSpace(item.Value) != "" {
			return true
		}
	}
	return false
}
