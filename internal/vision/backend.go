// Package vision is the image-analysis capability behind detection and
// background cleanup. A Backend is obtained through a Capability, which
// loads it at most once per worker context.
package vision

import (
	"fmt"
	"image"

	"github.com/MeKo-Tech/scanwarp/internal/geometry"
	"github.com/MeKo-Tech/scanwarp/internal/remap"
)

// RetrievalMode selects which boundaries FindContours reports.
type RetrievalMode int

const (
	// RetrieveList reports every boundary: outer borders and hole borders.
	RetrieveList RetrievalMode = iota
	// RetrieveExternal reports outer borders only.
	RetrieveExternal
)

func (m RetrievalMode) String() string {
	switch m {
	case RetrieveList:
		return "list"
	case RetrieveExternal:
		return "external"
	default:
		return fmt.Sprintf("RetrievalMode(%d)", int(m))
	}
}

// Contour is a closed boundary in pixel-centre coordinates.
type Contour []geometry.Point

// Area is the shoelace area enclosed by the contour.
func (c Contour) Area() float64 { return geometry.PolygonArea(c) }

// Backend is the set of primitives detection and cleanup are built from.
// Masks are single-channel images with 0 for background and 255 for foreground.
type Backend interface {
	Name() string

	// Desaturate returns a grey copy of img in four-channel form.
	Desaturate(img image.Image) (*image.NRGBA, error)
	// Gray converts img to luma.
	Gray(img image.Image) (*image.Gray, error)
	// GaussianBlur smooths g with a ksize x ksize kernel; ksize is odd.
	GaussianBlur(g *image.Gray, ksize int) (*image.Gray, error)
	// OtsuThreshold binarises g at the Otsu level; inverse swaps the classes.
	OtsuThreshold(g *image.Gray, inverse bool) (*image.Gray, error)
	// Saturation returns the HSV saturation channel of img scaled to 0..255.
	Saturation(img image.Image) (*image.Gray, error)
	// MorphClose dilates then erodes a mask with a ksize elliptical kernel.
	MorphClose(mask *image.Gray, ksize int) (*image.Gray, error)
	// FindContours traces the boundaries of the foreground of mask.
	FindContours(mask *image.Gray, mode RetrievalMode) ([]Contour, error)
	// FillContour rasterises c into a w x h mask, boundary pixels included.
	FillContour(c Contour, w, h int) (*image.Gray, error)
	// Remap resamples src through f with bilinear taps and replicated borders.
	Remap(src image.Image, f *remap.Field) (*image.NRGBA, error)
}
