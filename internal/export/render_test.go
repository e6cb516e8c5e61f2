package export

import (
	"strings"
	"testing"

	"guidepost/api/internal/block"
)

func TestBlocksToHTMLTextBlocks(t *testing.T) {
	blocks := []block.Block{
		{ID: "blk-0", Type: block.TypeTitle, Text: "Hotel Aurora", TextAlign: "center"},
		{ID: "blk-1", Type: block.TypeHeading, Text: "Breakfast", Level: 3, TextAlign: "left"},
		{ID: "blk-2", Type: block.TypeParagraph, Text: "Served daily\n7 to 10", TextAlign: "left"},
		{ID: "blk-3", Type: block.TypeQuote, Text: "Lovely stay", Author: "A guest"},
	}

	html := BlocksToHTML(blocks)

	for _, want := range []string{
		`<h1 style="text-align:center">Hotel Aurora</h1>`,
		`<h3 style="text-align:left">Breakfast</h3>`,
		"Served daily<br>7 to 10",
		"<blockquote>Lovely stay<cite>A guest</cite></blockquote>",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("output missing %q\n%s", want, html)
		}
	}
}

func TestBlocksToHTMLEscapesUserText(t *testing.T) {
	html := BlocksToHTML([]block.Block{
		{ID: "blk-0", Type: block.TypeParagraph, Text: `<script>alert("x")</script>`, TextAlign: "left"},
	})
	if strings.Contains(html, "<script>") {
		t.Fatalf("user text not escaped: %s", html)
	}
	if !strings.Contains(html, "&lt;script&gt;") {
		t.Fatalf("expected escaped script tag: %s", html)
	}
}

func TestBlocksToHTMLCompositeBlocks(t *testing.T) {
	blocks := []block.Block{
		{ID: "blk-0", Type: block.TypeHours, HoursItems: []block.LabelValueItem{
			{ID: "h-0", Label: "Mon", Value: "9-17"},
		}},
		{ID: "blk-1", Type: block.TypeChecklist, ChecklistItems: []block.ChecklistItem{
			{ID: "c-0", Text: "Towels", Checked: true},
			{ID: "c-1", Text: "Keys"},
		}},
		{ID: "blk-2", Type: block.TypeGallery, GalleryItems: []block.GalleryItem{
			{ID: "g-0", URL: "https://img.example.com/pool.jpg", Caption: "Pool"},
			{ID: "g-1"},
		}},
		{ID: "blk-3", Type: block.TypeIconRow, IconItems: []block.IconRowItem{
			{ID: "i-0", Icon: "spa", Label: "Spa"},
		}},
	}

	html := BlocksToHTML(blocks)

	for _, want := range []string{
		"<tr><td>Mon</td><td>9-17</td></tr>",
		"☑ Towels",
		"☐ Keys",
		`<img src="https://img.example.com/pool.jpg" alt="Pool">`,
		"<figcaption>Pool</figcaption>",
		`<span class="icon">spa</span><span>Spa</span>`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("output missing %q\n%s", want, html)
		}
	}

	// The empty gallery item contributes nothing.
	if strings.Count(html, "<figure>") != 1 {
		t.Errorf("expected exactly one gallery figure\n%s", html)
	}
}

func TestBlocksToHTMLDecorativeBlocks(t *testing.T) {
	html := BlocksToHTML([]block.Block{
		{ID: "blk-0", Type: block.TypeDivider},
		{ID: "blk-1", Type: block.TypeSpace, Spacing: 32},
		{ID: "blk-2", Type: block.TypeImage}, // no URL, skipped
	})
	if !strings.Contains(html, "<hr>") {
		t.Error("missing divider")
	}
	if !strings.Contains(html, "height:32px") {
		t.Error("missing spacer height")
	}
	if strings.Contains(html, "<img") {
		t.Error("image without URL should render nothing")
	}
}

func TestRenderPageHTML(t *testing.T) {
	out, err := RenderPageHTML(PageData{
		Title:       "Hotel Aurora",
		ContentHTML: "<h1>Hotel Aurora</h1>",
		Accent:      "#aa3322",
	})
	if err != nil {
		t.Fatalf("RenderPageHTML failed: %v", err)
	}
	if !strings.Contains(out, "<title>Hotel Aurora</title>") {
		t.Error("missing title tag")
	}
	if !strings.Contains(out, "#aa3322") {
		t.Error("missing accent color")
	}
	if !strings.Contains(out, "<h1>Hotel Aurora</h1>") {
		t.Error("missing content")
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	got := percentEncodeForDataURL("a b<c>")
	if got != "a%20b%3Cc%3E" {
		t.Fatalf("percentEncodeForDataURL = %q", got)
	}
}

func TestQRPNG(t *testing.T) {
	res, err := QRPNG("https://guidepost.example.com/p/hotel-aurora", 256)
	if err != nil {
		t.Fatalf("QRPNG failed: %v", err)
	}
	if res.MimeType != "image/png" {
		t.Errorf("mime = %q", res.MimeType)
	}
	// PNG magic bytes.
	if len(res.Data) < 8 || string(res.Data[1:4]) != "PNG" {
		t.Error("payload is not a PNG")
	}
}
