package export

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"strings"

	"guidepost/api/internal/block"
)

// PageData holds everything the page template needs.
type PageData struct {
	Title       string
	ContentHTML template.HTML
	Accent      string
	Background  string
}

var pageTemplate = template.Must(template.New("page").Parse(pageTemplateHTML))

// RenderPageHTML renders a full standalone HTML document for a page.
func RenderPageHTML(data PageData) (string, error) {
	if data.Accent == "" {
		data.Accent = "#1a73e8"
	}
	if data.Background == "" {
		data.Background = "#ffffff"
	}
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// BlocksToHTML renders normalized blocks to an HTML fragment.
func BlocksToHTML(blocks []block.Block) string {
	var b strings.Builder
	for _, blk := range blocks {
		b.WriteString(renderBlock(blk))
	}
	return b.String()
}

func renderBlock(blk block.Block) string {
	align := blk.TextAlign
	if align == "" {
		align = "left"
	}

	switch blk.Type {
	case block.TypeTitle:
		return fmt.Sprintf("<h1 style=\"text-align:%s\">%s</h1>\n", align, esc(blk.Text))
	case block.TypeHeading:
		level := blk.Level
		if level < 1 || level > 6 {
			level = 2
		}
		return fmt.Sprintf("<h%d style=\"text-align:%s\">%s</h%d>\n", level, align, esc(blk.Text), level)
	case block.TypeParagraph:
		return fmt.Sprintf("<p style=\"text-align:%s\">%s</p>\n", align, escMultiline(blk.Text))
	case block.TypeImage:
		if blk.URL == "" {
			return ""
		}
		img := fmt.Sprintf("<img src=%q alt=%q>", blk.URL, blk.Title)
		if blk.Title != "" {
			return fmt.Sprintf("<figure>%s<figcaption>%s</figcaption></figure>\n", img, esc(blk.Title))
		}
		return fmt.Sprintf("<figure>%s</figure>\n", img)
	case block.TypeDivider:
		return "<hr>\n"
	case block.TypeIcon:
		return fmt.Sprintf("<div class=\"icon\" style=\"text-align:%s\">%s</div>\n", align, esc(blk.Icon))
	case block.TypeSpace:
		spacing := blk.Spacing
		if spacing <= 0 {
			spacing = 16
		}
		return fmt.Sprintf("<div style=\"height:%dpx\"></div>\n", spacing)
	case block.TypeSection:
		var b strings.Builder
		b.WriteString("<section class=\"section\">\n")
		if blk.Title != "" {
			b.WriteString(fmt.Sprintf("<h2>%s</h2>\n", esc(blk.Title)))
		}
		if blk.Text != "" {
			b.WriteString(fmt.Sprintf("<p>%s</p>\n", escMultiline(blk.Text)))
		}
		b.WriteString("</section>\n")
		return b.String()
	case block.TypeColumns, block.TypeColumnGroup:
		var b strings.Builder
		b.WriteString("<div class=\"columns\">\n")
		for _, col := range blk.ColumnItems {
			b.WriteString("<div class=\"column\">")
			if col.Icon != "" {
				b.WriteString(fmt.Sprintf("<div class=\"icon\">%s</div>", esc(col.Icon)))
			}
			if col.Title != "" {
				b.WriteString(fmt.Sprintf("<h3>%s</h3>", esc(col.Title)))
			}
			if col.Text != "" {
				b.WriteString(fmt.Sprintf("<p>%s</p>", escMultiline(col.Text)))
			}
			b.WriteString("</div>\n")
		}
		b.WriteString("</div>\n")
		return b.String()
	case block.TypeIconRow:
		var b strings.Builder
		b.WriteString("<nav class=\"icon-row\">\n")
		for _, item := range blk.IconItems {
			b.WriteString("<div class=\"icon-item\">")
			if item.Icon != "" {
				b.WriteString(fmt.Sprintf("<span class=\"icon\">%s</span>", esc(item.Icon)))
			}
			b.WriteString(fmt.Sprintf("<span>%s</span>", esc(item.Label)))
			b.WriteString("</div>\n")
		}
		b.WriteString("</nav>\n")
		return b.String()
	case block.TypeCTA:
		return fmt.Sprintf("<div class=\"cta\" style=\"text-align:%s\"><span class=\"button\">%s</span></div>\n", align, esc(blk.Text))
	case block.TypeBadge:
		return fmt.Sprintf("<span class=\"badge\">%s</span>\n", esc(blk.Text))
	case block.TypeHours:
		return renderLabelValueTable("hours", blk.HoursItems)
	case block.TypePricing:
		return renderLabelValueTable("pricing", blk.PricingItems)
	case block.TypeQuote:
		var b strings.Builder
		b.WriteString("<blockquote>")
		b.WriteString(escMultiline(blk.Text))
		if blk.Author != "" {
			b.WriteString(fmt.Sprintf("<cite>%s</cite>", esc(blk.Author)))
		}
		b.WriteString("</blockquote>\n")
		return b.String()
	case block.TypeChecklist:
		var b strings.Builder
		b.WriteString("<ul class=\"checklist\">\n")
		for _, item := range blk.ChecklistItems {
			mark := "☐"
			if item.Checked {
				mark = "☑"
			}
			b.WriteString(fmt.Sprintf("<li>%s %s</li>\n", mark, esc(item.Text)))
		}
		b.WriteString("</ul>\n")
		return b.String()
	case block.TypeGallery:
		var b strings.Builder
		b.WriteString("<div class=\"gallery\">\n")
		for _, item := range blk.GalleryItems {
			if item.URL == "" {
				continue
			}
			b.WriteString(fmt.Sprintf("<figure><img src=%q alt=%q>", item.URL, item.Caption))
			if item.Caption != "" {
				b.WriteString(fmt.Sprintf("<figcaption>%s</figcaption>", esc(item.Caption)))
			}
			b.WriteString("</figure>\n")
		}
		b.WriteString("</div>\n")
		return b.String()
	default:
		return ""
	}
}

func renderLabelValueTable(class string, items []block.LabelValueItem) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("<table class=%q>\n", class))
	for _, item := range items {
		b.WriteString(fmt.Sprintf("<tr><td>%s</td><td>%s</td></tr>\n", esc(item.Label), esc(item.Value)))
	}
	b.WriteString("</table>\n")
	return b.String()
}

func esc(s string) string {
	return html.EscapeString(s)
}

func escMultiline(s string) string {
	return strings.ReplaceAll(html.EscapeString(s), "\n", "<br>")
}

const pageTemplateHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 700px; margin: 2rem auto; background: {{.Background}}; }
    h1, h2, h3 { color: {{.Accent}}; }
    hr { border: none; border-top: 1px solid #ddd; margin: 1.5rem 0; }
    img { max-width: 100%; border-radius: 8px; }
    figcaption, cite { color: #666; font-size: 0.9em; }
    blockquote { border-left: 3px solid {{.Accent}}; margin: 1rem 0; padding-left: 1rem; }
    blockquote cite { display: block; margin-top: 0.5rem; }
    table { width: 100%; border-collapse: collapse; margin: 1rem 0; }
    td { padding: 0.4rem 0; border-bottom: 1px solid #eee; }
    td:last-child { text-align: right; }
    .columns { display: flex; gap: 1rem; }
    .column { flex: 1; }
    .icon-row { display: flex; gap: 1.5rem; margin: 1rem 0; }
    .icon-item { display: flex; flex-direction: column; align-items: center; gap: 0.25rem; }
    .badge { display: inline-block; background: {{.Accent}}; color: #fff; border-radius: 999px; padding: 0.2rem 0.8rem; font-size: 0.85em; }
    .cta .button { display: inline-block; background: {{.Accent}}; color: #fff; border-radius: 6px; padding: 0.6rem 1.4rem; }
    .checklist { list-style: none; padding: 0; }
    .gallery { display: flex; flex-wrap: wrap; gap: 0.5rem; }
    .gallery figure { flex: 1 1 30%; margin: 0; }
  </style>
</head>
<body>
{{.ContentHTML}}
</body>
</html>`
