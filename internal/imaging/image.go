// Package imaging decodes uploaded images and produces scaled JPEG renditions.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrTooLarge is returned when the declared pixel count exceeds the decode limit.
var ErrTooLarge = errors.New("image dimensions exceed limit")

// Decode decodes any registered image format and returns the bitmap and format name.
// The header is read first; images declaring more than maxPixels pixels are
// rejected with ErrTooLarge before any pixel buffer is allocated. A
// non-positive maxPixels disables the check.
func Decode(r io.Reader, maxPixels int64) (image.Image, string, error) {
	var header bytes.Buffer
	cfg, _, err := image.DecodeConfig(io.TeeReader(r, &header))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image header: %w", err)
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, "", fmt.Errorf("%dx%d: %w", cfg.Width, cfg.Height, ErrTooLarge)
	}

	img, format, err := image.Decode(io.MultiReader(&header, r))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return img, format, nil
}

// Fit scales img down to fit within maxSize (width or height) while keeping aspect ratio.
// Images that already fit are returned unchanged.
func Fit(img image.Image, maxSize int) image.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width <= maxSize && height <= maxSize {
		return img
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = maxSize
		newHeight = max(1, int(float64(height)*float64(maxSize)/float64(width)))
	} else {
		newHeight = maxSize
		newWidth = max(1, int(float64(width)*float64(maxSize)/float64(height)))
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
	return resized
}

// EncodeJPEG scales img to fit within maxSize and encodes it as JPEG.
func EncodeJPEG(img image.Image, maxSize int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Fit(img, maxSize), &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// DataURI returns a base64 JPEG data URI of img scaled to fit within maxSize.
func DataURI(img image.Image, maxSize int) (string, error) {
	data, err := EncodeJPEG(img, maxSize)
	if err != nil {
		return "", err
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data), nil
}
