package block

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var blankLines = regexp.MustCompile(`\n\s*\n`)

// Normalize rebuilds a valid block sequence from whatever the store returned.
// Every element is validated independently: unknown types are dropped, every
// field is type-checked and defaulted, missing ids are synthesized from
// position so repeated normalization of the same input is stable. When raw
// holds no usable array the fallback plain text is split on blank lines into
// paragraph blocks. Normalize never fails; worst case it returns a single
// empty paragraph.
func Normalize(raw json.RawMessage, fallback string) []Block {
	if elements := decodeArray(raw); len(elements) > 0 {
		blocks := make([]Block, 0, len(elements))
		for i, el := range elements {
			b, ok := decodeBlock(el, i)
			if !ok {
				continue
			}
			blocks = append(blocks, b)
		}
		if len(blocks) > 0 {
			return blocks
		}
	}
	return fromPlainText(fallback)
}

// Serialize is the inverse of Normalize for persistence. It cannot fail for
// blocks produced by Normalize.
func Serialize(blocks []Block) json.RawMessage {
	data, err := json.Marshal(blocks)
	if err != nil {
		return json.RawMessage("[]")
	}
	return data
}

func decodeArray(raw json.RawMessage) []map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var elements []any
	if err := json.Unmarshal(raw, &elements); err != nil {
		return nil
	}
	out := make([]map[string]any, 0, len(elements))
	for _, el := range elements {
		m, ok := el.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, m)
	}
	return out
}

func fromPlainText(text string) []Block {
	parts := blankLines.Split(strings.ReplaceAll(text, "\r\n", "\n"), -1)
	blocks := make([]Block, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		blocks = append(blocks, Block{
			ID:        fmt.Sprintf("blk-%d", len(blocks)),
			Type:      TypeParagraph,
			Text:      trimmed,
			TextAlign: "left",
		})
	}
	if len(blocks) == 0 {
		blocks = append(blocks, Block{ID: "blk-0", Type: TypeParagraph, TextAlign: "left"})
	}
	return blocks
}

func decodeBlock(m map[string]any, pos int) (Block, bool) {
	t := Type(asString(m["type"]))
	if !Known(t) {
		return Block{}, false
	}

	b := Block{
		ID:        asString(m["id"]),
		Type:      t,
		Text:      asString(m["text"]),
		Title:     asString(m["title"]),
		URL:       asString(m["url"]),
		Link:      asString(m["link"]),
		Icon:      asString(m["icon"]),
		TextAlign: asString(m["textAlign"]),
		Weight:    asString(m["weight"]),
		Size:      asString(m["size"]),
		Color:     asString(m["color"]),
		Bg:        asString(m["backgroundColor"]),
		Author:    asString(m["author"]),
		Level:     asInt(m["level"]),
		Spacing:   asInt(m["spacing"]),
	}
	if b.ID == "" {
		b.ID = fmt.Sprintf("blk-%d", pos)
	}
	if b.TextAlign == "" {
		b.TextAlign = "left"
	}
	if b.Type == TypeHeading && (b.Level < 1 || b.Level > 6) {
		b.Level = 2
	}

	switch t {
	case TypeIconRow:
		b.IconItems = decodeIconItems(m["iconItems"], pos)
	case TypeHours:
		b.HoursItems = decodeLabelValueItems(m["hoursItems"], pos, "hours")
	case TypePricing:
		b.PricingItems = decodeLabelValueItems(m["pricingItems"], pos, "pricing")
	case TypeGallery:
		b.GalleryItems = decodeGalleryItems(m["galleryItems"], pos)
	case TypeChecklist:
		b.ChecklistItems = decodeChecklistItems(m["checklistItems"], pos)
	case TypeColumns, TypeColumnGroup:
		b.ColumnItems = decodeColumnItems(m["columnItems"], pos)
	}
	return b, true
}

func decodeIconItems(v any, pos int) []IconRowItem {
	raw := asMapSlice(v)
	items := make([]IconRowItem, 0, len(raw))
	for j, m := range raw {
		item := IconRowItem{
			ID:     asString(m["id"]),
			Icon:   asString(m["icon"]),
			Label:  asString(m["label"]),
			Link:   asString(m["link"]),
			NodeID: asString(m["nodeId"]),
			Bg:     asString(m["backgroundColor"]),
		}
		if item.ID == "" {
			item.ID = subItemID(pos, "icon", j)
		}
		items = append(items, item)
	}
	return items
}

func decodeLabelValueItems(v any, pos int, kind string) []LabelValueItem {
	raw := asMapSlice(v)
	items := make([]LabelValueItem, 0, len(raw))
	for j, m := range raw {
		item := LabelValueItem{
			ID:    asString(m["id"]),
			Label: asString(m["label"]),
			Value: asString(m["value"]),
		}
		if item.ID == "" {
			item.ID = subItemID(pos, kind, j)
		}
		items = append(items, item)
	}
	return items
}

func decodeGalleryItems(v any, pos int) []GalleryItem {
	raw := asMapSlice(v)
	items := make([]GalleryItem, 0, len(raw))
	for j, m := range raw {
		item := GalleryItem{
			ID:      asString(m["id"]),
			URL:     asString(m["url"]),
			Caption: asString(m["caption"]),
		}
		if item.ID == "" {
			item.ID = subItemID(pos, "gallery", j)
		}
		items = append(items, item)
	}
	return items
}

func decodeChecklistItems(v any, pos int) []ChecklistItem {
	raw := asMapSlice(v)
	items := make([]ChecklistItem, 0, len(raw))
	for j, m := range raw {
		item := ChecklistItem{
			ID:      asString(m["id"]),
			Text:    asString(m["text"]),
			Checked: asBool(m["checked"]),
		}
		if item.ID == "" {
			item.ID = subItemID(pos, "check", j)
		}
		items = append(items, item)
	}
	return items
}

func decodeColumnItems(v any, pos int) []ColumnItem {
	raw := asMapSlice(v)
	items := make([]ColumnItem, 0, len(raw))
	for j, m := range raw {
		item := ColumnItem{
			ID:    asString(m["id"]),
			Title: asString(m["title"]),
			Text:  asString(m["text"]),
			Icon:  asString(m["icon"]),
		}
		if item.ID == "" {
			item.ID = subItemID(pos, "col", j)
		}
		items = append(items, item)
	}
	return items
}

func subItemID(pos int, kind string, j int) string {
	return fmt.Sprintf("blk-%d-%s-%d", pos, kind, j)
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return 0
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asMapSlice(v any) []map[string]any {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
