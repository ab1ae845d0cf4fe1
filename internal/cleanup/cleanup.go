// Package cleanup replaces everything outside the document with white.
//
// Paper is assumed to be less saturated than its surroundings: the HSV
// saturation channel is thresholded (inverted Otsu), closed with an
// elliptical kernel, and the largest outer contour becomes the keep-mask.
// This is a heuristic and can mis-segment colourful paper or grey desks;
// callers treat every error as "keep the input".
package cleanup

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/scanwarp/internal/vision"
)

// ErrNoDocument is returned when the mask has no contour to keep.
var ErrNoDocument = errors.New("no document region found")

// Config tunes the segmentation.
type Config struct {
	// KernelSize is the side of the elliptical closing kernel.
	KernelSize int
}

// DefaultConfig returns the standard settings.
func DefaultConfig() Config {
	return Config{KernelSize: 5}
}

// Whiten returns a copy of img where pixels outside the detected document
// are opaque white. img is never modified.
func Whiten(b vision.Backend, img image.Image, cfg Config) (out *image.NRGBA, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("cleanup panicked: %v", r)
		}
	}()

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil, ErrNoDocument
	}

	sat, err := b.Saturation(img)
	if err != nil {
		return nil, fmt.Errorf("saturation: %w", err)
	}
	mask, err := b.OtsuThreshold(sat, true)
	if err != nil {
		return nil, fmt.Errorf("threshold: %w", err)
	}
	mask, err = b.MorphClose(mask, cfg.KernelSize)
	if err != nil {
		return nil, fmt.Errorf("close: %w", err)
	}
	contours, err := b.FindContours(mask, vision.RetrieveExternal)
	if err != nil {
		return nil, fmt.Errorf("contours: %w", err)
	}
	if len(contours) == 0 {
		return nil, ErrNoDocument
	}

	best, bestArea := 0, 0.0
	for i, c := range contours {
		if a := c.Area(); a > bestArea {
			best, bestArea = i, a
		}
	}
	keep, err := b.FillContour(contours[best], w, h)
	if err != nil {
		return nil, fmt.Errorf("fill: %w", err)
	}

	return composite(img, keep), nil
}

// composite keeps img where keep is set and paints white elsewhere.
func composite(img image.Image, keep *image.Gray) *image.NRGBA {
	out := imaging.Clone(img)
	w, h := out.Rect.Dx(), out.Rect.Dy()
	for y := range h {
		row := out.Pix[y*out.Stride:]
		for x := range w {
			if keep.Pix[keep.PixOffset(keep.Rect.Min.X+x, keep.Rect.Min.Y+y)] != 0 {
				continue
			}
			copy(row[x*4:x*4+4], []uint8{255, 255, 255, 255})
		}
	}
	return out
}
