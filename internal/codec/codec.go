// Package codec decodes source images and encodes job output.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register
	_ "image/jpeg" // register
	_ "image/png"  // register
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // register
	_ "golang.org/x/image/tiff" // register
	_ "golang.org/x/image/webp" // register
)

// MIMEPNG is the media type of every encoded output.
const MIMEPNG = "image/png"

// DefaultMaxPixels caps decoded images at 64 megapixels.
const DefaultMaxPixels int64 = 1 << 26

// ErrTooManyPixels is returned for images larger than the pixel limit.
var ErrTooManyPixels = errors.New("image exceeds pixel limit")

// SupportedExtensions lists the file extensions LoadFile accepts.
var SupportedExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

// Error wraps a failure in one codec step.
type Error struct {
	Operation string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("image codec error in %s: %v", e.Operation, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Metadata describes a decoded source.
type Metadata struct {
	Format    string
	SizeBytes int
	Width     int
	Height    int
}

// Decode parses an encoded image, applying its EXIF orientation. Images
// above DefaultMaxPixels are rejected.
func Decode(data []byte) (image.Image, Metadata, error) {
	return DecodeLimited(data, DefaultMaxPixels)
}

// DecodeLimited is Decode with an explicit pixel limit. The limit is checked
// against the header before any pixel memory is allocated; maxPixels <= 0
// selects DefaultMaxPixels.
func DecodeLimited(data []byte, maxPixels int64) (image.Image, Metadata, error) {
	if len(data) == 0 {
		return nil, Metadata{}, &Error{Operation: "decode", Err: errors.New("empty input")}
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, Metadata{}, &Error{Operation: "decode", Err: err}
	}
	if err := CheckPixels(cfg.Width, cfg.Height, maxPixels); err != nil {
		return nil, Metadata{}, &Error{Operation: "decode", Err: err}
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, Metadata{}, &Error{Operation: "decode", Err: err}
	}
	b := img.Bounds()
	return img, Metadata{Format: format, SizeBytes: len(data), Width: b.Dx(), Height: b.Dy()}, nil
}

// CheckPixels reports ErrTooManyPixels when a w x h image exceeds
// maxPixels. maxPixels <= 0 selects DefaultMaxPixels.
func CheckPixels(w, h int, maxPixels int64) error {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	if w <= 0 || h <= 0 {
		return fmt.Errorf("invalid image size %dx%d", w, h)
	}
	if int64(w) > maxPixels/int64(h) {
		return fmt.Errorf("%w: %dx%d > %d", ErrTooManyPixels, w, h, maxPixels)
	}
	return nil
}

// EncodePNG serialises img and returns the bytes with their media type.
func EncodePNG(img image.Image) ([]byte, string, error) {
	if img == nil {
		return nil, "", &Error{Operation: "encode", Err: errors.New("nil image")}
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, "", &Error{Operation: "encode", Err: err}
	}
	return buf.Bytes(), MIMEPNG, nil
}

// IsSupported reports whether path has a decodable extension.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// LoadFile reads and decodes the image at path.
func LoadFile(path string) (image.Image, Metadata, error) {
	if path == "" {
		return nil, Metadata{}, &Error{Operation: "load", Err: errors.New("empty path")}
	}
	if !IsSupported(path) {
		return nil, Metadata{}, &Error{Operation: "load", Err: fmt.Errorf("unsupported format: %s", filepath.Ext(path))}
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: reading a user-supplied image path is the point
	if err != nil {
		return nil, Metadata{}, &Error{Operation: "load", Err: err}
	}
	return Decode(data)
}

// SaveFile writes img to path as PNG.
func SaveFile(path string, img image.Image) error {
	data, _, err := EncodePNG(img)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return &Error{Operation: "save", Err: err}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return &Error{Operation: "save", Err: err}
	}
	return nil
}
