package export

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// QRPNG renders a QR code pointing at a page's public URL. Guests scan it at
// the front desk or in the room to open the page.
func QRPNG(publicURL string, size int) (*Result, error) {
	if size <= 0 {
		size = 512
	}
	data, err := qrcode.Encode(publicURL, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return &Result{
		Data:     data,
		Filename: "qr.png",
		MimeType: "image/png",
	}, nil
}
