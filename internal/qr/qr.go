// Package qr renders image URLs as PNG QR codes.
package qr

import (
	"errors"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

const (
	defaultSize = 256
	maxSize     = 1024
)

var ErrBadSize = errors.New("qr size out of range")

// PNG encodes url as a QR code. size is the square edge in pixels;
// zero picks the default.
func PNG(url string, size int) ([]byte, error) {
	if size == 0 {
		size = defaultSize
	}
	if size < 64 || size > maxSize {
		return nil, fmt.Errorf("%w: %d", ErrBadSize, size)
	}

	png, err := qrcode.Encode(url, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
