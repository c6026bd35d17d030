package qr

import (
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

const (
	minSize     = 64
	maxSize     = 2048
	defaultSize = 512
)

// StorefrontURL builds the public URL a printed code resolves to.
func StorefrontURL(baseURL, slug string) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return "", fmt.Errorf("base url is required")
	}
	if strings.TrimSpace(slug) == "" {
		return "", fmt.Errorf("slug is required")
	}
	return fmt.Sprintf("%s/store/%s", base, slug), nil
}

// EncodePNG renders the URL as a PNG at the requested pixel size. Size is
// clamped to a printable range.
func EncodePNG(url string, size int) ([]byte, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("url is required")
	}
	if size <= 0 {
		size = defaultSize
	}
	if size < minSize {
		size = minSize
	}
	if size > maxSize {
		size = maxSize
	}

	png, err := qrcode.Encode(url, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encoding qr png: %w", err)
	}
	return png, nil
}
