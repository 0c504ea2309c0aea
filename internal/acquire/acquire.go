// Package acquire turns user uploads into decoded bitmaps. Inputs whose
// declared media type is not an image kind are rejected before decoding.
package acquire

import (
	"errors"
	"fmt"
	"image"
	"io"
	"mime"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/kozaktomas/face-check/internal/constants"
	"github.com/kozaktomas/face-check/internal/imaging"
)

var (
	// ErrNotImage is returned when the declared media type is not image/*.
	ErrNotImage = errors.New("not an image file")
	// ErrDecode is returned when an image-typed input cannot be decoded or
	// declares more pixels than constants.MaxImagePixels.
	ErrDecode = errors.New("image could not be decoded")
	// ErrNoFile is returned when an upload carries no file.
	ErrNoFile = errors.New("no file provided")
)

// UploadedImage is a decoded upload. It is valid until Release is called.
type UploadedImage struct {
	Bitmap    image.Image
	Format    string
	FileName  string
	MediaType string
	Size      int64
	Preview   string // JPEG data URI, safe to keep after Release

	release func()
	once    sync.Once
}

// Width returns the bitmap width in pixels.
func (u *UploadedImage) Width() int {
	return u.Bitmap.Bounds().Dx()
}

// Height returns the bitmap height in pixels.
func (u *UploadedImage) Height() int {
	return u.Bitmap.Bounds().Dy()
}

// Release drops the transient upload resources. It is safe to call more than once.
func (u *UploadedImage) Release() {
	u.once.Do(func() {
		if u.release != nil {
			u.release()
		}
	})
}

// Handoff receives an accepted image. The image is released when it returns.
type Handoff func(*UploadedImage)

// IsImageType reports whether a declared media type is an image kind.
func IsImageType(mediaType string) bool {
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	return strings.HasPrefix(mediaType, "image/")
}

// Accept takes ownership of file. Non-image media types are rejected with
// ErrNotImage without reading the content. An accepted file is decoded and
// handed to handoff, after which its resources are released. handoff is never
// called when Accept returns an error.
func Accept(file io.ReadCloser, name, mediaType string, size int64, handoff Handoff) error {
	if !IsImageType(mediaType) {
		file.Close()
		return fmt.Errorf("%s (%s): %w", name, mediaType, ErrNotImage)
	}

	bitmap, format, err := imaging.Decode(io.LimitReader(file, constants.MaxUploadSize), constants.MaxImagePixels)
	if err != nil {
		file.Close()
		return fmt.Errorf("%s: %w: %w", name, ErrDecode, err)
	}

	preview, err := imaging.DataURI(bitmap, constants.PreviewSize)
	if err != nil {
		file.Close()
		return fmt.Errorf("%s: building preview: %w", name, err)
	}

	upload := &UploadedImage{
		Bitmap:    bitmap,
		Format:    format,
		FileName:  filepath.Base(name),
		MediaType: mediaType,
		Size:      size,
		Preview:   preview,
		release:   func() { file.Close() },
	}
	defer upload.Release()

	handoff(upload)
	return nil
}

// AcceptFileHeader accepts a multipart upload using the part's declared Content-Type.
func AcceptFileHeader(fh *multipart.FileHeader, handoff Handoff) error {
	if fh == nil {
		return ErrNoFile
	}
	mediaType := fh.Header.Get("Content-Type")
	if !IsImageType(mediaType) {
		return fmt.Errorf("%s (%s): %w", fh.Filename, mediaType, ErrNotImage)
	}
	file, err := fh.Open()
	if err != nil {
		return fmt.Errorf("failed to open file: %s: %w", fh.Filename, err)
	}
	return Accept(file, fh.Filename, mediaType, fh.Size, handoff)
}

// extraImageTypes covers decodable formats missing from minimal mime tables.
var extraImageTypes = map[string]string{
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".webp": "image/webp",
}

// MediaTypeForPath returns the media type implied by the file extension.
func MediaTypeForPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return extraImageTypes[ext]
}

// AcceptPath accepts a local file, deriving its media type from the extension.
func AcceptPath(path string, handoff Handoff) error {
	mediaType := MediaTypeForPath(path)
	if !IsImageType(mediaType) {
		return fmt.Errorf("%s: %w", path, ErrNotImage)
	}
	file, err := os.Open(path) //nolint:gosec // path supplied by the CLI user
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	var size int64
	if stat, err := file.Stat(); err == nil {
		size = stat.Size()
	}
	return Accept(file, path, mediaType, size, handoff)
}
