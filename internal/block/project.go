package block

import "strings"

// MaxCachedImages caps the derived image list stored on a page.
const MaxCachedImages = 3

// BodyText folds a block sequence into the flattened plain-text cache used
// for search and legacy consumers. Blocks that contribute no text are skipped
// silently; contributing blocks are separated by a blank line. The fold is
// pure and order-preserving, so recomputing it after any mutation yields the
// same value as deriving it from scratch.
func BodyText(blocks []Block) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if text := textOf(b); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// ImageURLs collects the first MaxCachedImages non-empty image URLs in block
// order, from image blocks and gallery items.
func ImageURLs(blocks []Block) []string {
	urls := make([]string, 0, MaxCachedImages)
	for _, b := range blocks {
		switch b.Type {
		case TypeImage:
			urls = appendURL(urls, b.URL)
		case TypeGallery:
			for _, item := range b.GalleryItems {
				urls = appendURL(urls, item.URL)
			}
		}
		if len(urls) == MaxCachedImages {
			return urls
		}
	}
	return urls
}

func appendURL(urls []string, url string) []string {
	if len(urls) == MaxCachedImages {
		return urls
	}
	if trimmed := strings.TrimSpace(url); trimmed != "" {
		urls = append(urls, trimmed)
	}
	return urls
}

func textOf(b Block) string {
	switch b.Type {
	case TypeTitle, TypeHeading, TypeParagraph, TypeCTA, TypeBadge:
		return strings.TrimSpace(b.Text)
	case TypeQuote:
		return joinNonEmpty("\n", strings.TrimSpace(b.Text), strings.TrimSpace(b.Author))
	case TypeSection:
		return joinNonEmpty("\n", strings.TrimSpace(b.Title), strings.TrimSpace(b.Text))
	case TypeHours:
		return labelValueLines(b.HoursItems)
	case TypePricing:
		return labelValueLines(b.PricingItems)
	case TypeIconRow:
		labels := make([]string, 0, len(b.IconItems))
		for _, item := range b.IconItems {
			if label := strings.TrimSpace(item.Label); label != "" {
				labels = append(labels, label)
			}
		}
		return strings.Join(labels, " / ")
	case TypeChecklist:
		lines := make([]string, 0, len(b.ChecklistItems))
		for _, item := range b.ChecklistItems {
			if text := strings.TrimSpace(item.Text); text != "" {
				lines = append(lines, text)
			}
		}
		return strings.Join(lines, "\n")
	case TypeColumns, TypeColumnGroup:
		lines := make([]string, 0, len(b.ColumnItems))
		for _, col := range b.ColumnItems {
			if entry := joinNonEmpty("\n", strings.TrimSpace(col.Title), strings.TrimSpace(col.Text)); entry != "" {
				lines = append(lines, entry)
			}
		}
		return strings.Join(lines, "\n")
	}
	return ""
}

func labelValueLines(items []LabelValueItem) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		line := joinNonEmpty(" ", strings.TrimSpace(item.Label), strings.TrimSpace(item.Value))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func joinNonEmpty(sep string, parts ...string) string {
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
