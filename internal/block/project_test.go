package block

import (
	"fmt"
	"reflect"
	"testing"
)

func TestBodyTextExtraction(t *testing.T) {
	blocks := []Block{
		{ID: "b1", Type: TypeTitle, Text: "Hotel Aurora"},
		{ID: "b2", Type: TypeDivider},
		{ID: "b3", Type: TypeSection, Title: "Breakfast", Text: "Served daily"},
		{ID: "b4", Type: TypeHours, HoursItems: []LabelValueItem{
			{ID: "h1", Label: "Mon-Fri", Value: "7:00-10:30"},
			{ID: "h2", Label: "Weekend", Value: "8:00-11:00"},
		}},
		{ID: "b5", Type: TypeIconRow, IconItems: []IconRowItem{
			{ID: "i1", Label: "Spa"},
			{ID: "i2", Label: "Pool"},
			{ID: "i3"},
		}},
		{ID: "b6", Type: TypeSpace},
	}

	want := "Hotel Aurora\n\nBreakfast\nServed daily\n\nMon-Fri 7:00-10:30\nWeekend 8:00-11:00\n\nSpa / Pool"
	if got := BodyText(blocks); got != want {
		t.Fatalf("BodyText mismatch\ngot:  %q\nwant: %q", got, want)
	}
}

func TestBodyTextSkipsEmptyBlocks(t *testing.T) {
	blocks := []Block{
		{ID: "b1", Type: TypeParagraph, Text: "  "},
		{ID: "b2", Type: TypeImage, URL: "https://img/1.jpg"},
		{ID: "b3", Type: TypeParagraph, Text: "only this"},
	}
	if got := BodyText(blocks); got != "only this" {
		t.Fatalf("expected empty blocks skipped, got %q", got)
	}
}

func TestImageURLsCap(t *testing.T) {
	var blocks []Block
	for i := 0; i < 5; i++ {
		blocks = append(blocks, Block{
			ID:   fmt.Sprintf("img-%d", i),
			Type: TypeImage,
			URL:  fmt.Sprintf("https://img/%d.jpg", i),
		})
	}
	blocks = append(blocks, Block{ID: "g1", Type: TypeGallery, GalleryItems: []GalleryItem{
		{ID: "gi1", URL: "https://img/gallery.jpg"},
	}})

	urls := ImageURLs(blocks)
	want := []string{"https://img/0.jpg", "https://img/1.jpg", "https://img/2.jpg"}
	if !reflect.DeepEqual(urls, want) {
		t.Fatalf("expected first %d images in order, got %v", MaxCachedImages, urls)
	}
}

func TestImageURLsGalleryOrderAndEmpties(t *testing.T) {
	blocks := []Block{
		{ID: "g1", Type: TypeGallery, GalleryItems: []GalleryItem{
			{ID: "gi1", URL: ""},
			{ID: "gi2", URL: "https://img/a.jpg"},
		}},
		{ID: "i1", Type: TypeImage, URL: "   "},
		{ID: "i2", Type: TypeImage, URL: "https://img/b.jpg"},
	}
	urls := ImageURLs(blocks)
	want := []string{"https://img/a.jpg", "https://img/b.jpg"}
	if !reflect.DeepEqual(urls, want) {
		t.Fatalf("unexpected urls: %v", urls)
	}
}

// Recomputing projections must match deriving them from scratch after any
// mutation; the caches on the page row are never patched incrementally.
func TestProjectionsStableUnderRecompute(t *testing.T) {
	blocks := Normalize(Serialize([]Block{
		{ID: "b1", Type: TypeParagraph, Text: "hello"},
		{ID: "b2", Type: TypeImage, URL: "https://img/x.jpg"},
	}), "")

	body, images := BodyText(blocks), ImageURLs(blocks)
	blocks[0].Text = "hello again"

	if got := BodyText(blocks); got == body {
		t.Fatal("expected body to change after mutation")
	}
	if got := ImageURLs(blocks); !reflect.DeepEqual(got, images) {
		t.Fatalf("image projection drifted without image mutation: %v vs %v", got, images)
	}
}

func TestHasContent(t *testing.T) {
	cases := []struct {
		name string
		b    Block
		want bool
	}{
		{"paragraph with text", Block{Type: TypeParagraph, Text: "hi"}, true},
		{"paragraph blank", Block{Type: TypeParagraph, Text: " "}, false},
		{"divider never", Block{Type: TypeDivider}, false},
		{"space never", Block{Type: TypeSpace}, false},
		{"icon never", Block{Type: TypeIcon, Icon: "star"}, false},
		{"image with url", Block{Type: TypeImage, URL: "https://x/1.jpg"}, true},
		{"image without url", Block{Type: TypeImage}, false},
		{"gallery with one url", Block{Type: TypeGallery, GalleryItems: []GalleryItem{{URL: "https://x"}}}, true},
		{"iconRow labels", Block{Type: TypeIconRow, IconItems: []IconRowItem{{Label: "Spa"}}}, true},
		{"iconRow empty labels", Block{Type: TypeIconRow, IconItems: []IconRowItem{{Icon: "x"}}}, false},
		{"pricing with value", Block{Type: TypePricing, PricingItems: []LabelValueItem{{Value: "10"}}}, true},
		{"section with title only", Block{Type: TypeSection, Title: "About"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := HasContent(tc.b); got != tc.want {
				t.Fatalf("HasContent(%+v) = %v, want %v", tc.b, got, tc.want)
			}
		})
	}
}
