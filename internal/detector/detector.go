// Package detector finds the outline of a document in a photograph.
//
// The search binarises a blurred grey copy with Otsu's method, traces every
// boundary, and keeps the largest contour whose polygon approximation has
// exactly four vertices. When nothing qualifies the whole frame is used, so
// detection itself never fails.
package detector

import (
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/scanwarp/internal/geometry"
	"github.com/MeKo-Tech/scanwarp/internal/vision"
)

// Result is the outcome of one detection.
type Result struct {
	Edges  geometry.EdgeDescription
	Width  int
	Height int
	// Found is false when Edges is the full-frame fallback.
	Found bool
	// Area is the contour area of the chosen quadrilateral in source pixels.
	Area float64
	// Reason explains a fallback.
	Reason string
}

// Detector runs the quadrilateral search with a fixed Config.
type Detector struct {
	cfg Config
}

// New returns a Detector for cfg.
func New(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// Detect locates the document in img. Backend errors are logged and treated
// like a miss.
func (d *Detector) Detect(b vision.Backend, img image.Image) Result {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	fallback := func(reason string) Result {
		return Result{Edges: geometry.FullFrame(w, h), Width: w, Height: h, Reason: reason}
	}
	if w == 0 || h == 0 {
		return fallback("empty image")
	}

	work, scale := d.downscale(img)
	corners, area, err := d.search(b, work, d.cfg.MinArea*scale*scale)
	if err != nil {
		slog.Warn("Corner search failed, using full frame", "backend", b.Name(), "error", err)
		return fallback(err.Error())
	}
	if corners == nil {
		return fallback("no quadrilateral found")
	}

	inv := 1 / scale
	tl, tr, br, bl := geometry.OrderCorners(*corners)
	edges := geometry.FlatEdges(tl, tr, br, bl).Scale(inv)
	slog.Debug("Document corners detected",
		"width", w, "height", h, "scale", scale, "area", area*inv*inv)
	return Result{Edges: edges, Width: w, Height: h, Found: true, Area: area * inv * inv}
}

// downscale shrinks img so its longer side fits MaxDimension.
func (d *Detector) downscale(img image.Image) (image.Image, float64) {
	b := img.Bounds()
	longest := max(b.Dx(), b.Dy())
	if d.cfg.MaxDimension <= 0 || longest <= d.cfg.MaxDimension {
		return img, 1
	}
	s := float64(d.cfg.MaxDimension) / float64(longest)
	nw := max(1, int(math.Round(float64(b.Dx())*s)))
	nh := max(1, int(math.Round(float64(b.Dy())*s)))
	// use the realised ratio so corners map back exactly
	return imaging.Resize(img, nw, nh, imaging.Linear), float64(nw) / float64(b.Dx())
}

// search returns the best quadrilateral of img, or nil when none qualifies.
func (d *Detector) search(b vision.Backend, img image.Image, minArea float64) (*[4]geometry.Point, float64, error) {
	gray, err := b.Gray(img)
	if err != nil {
		return nil, 0, fmt.Errorf("grayscale: %w", err)
	}
	blurred, err := b.GaussianBlur(gray, d.cfg.BlurKernel)
	if err != nil {
		return nil, 0, fmt.Errorf("blur: %w", err)
	}
	mask, err := b.OtsuThreshold(blurred, false)
	if err != nil {
		return nil, 0, fmt.Errorf("threshold: %w", err)
	}
	contours, err := b.FindContours(mask, vision.RetrieveList)
	if err != nil {
		return nil, 0, fmt.Errorf("contours: %w", err)
	}

	var best *[4]geometry.Point
	bestArea := 0.0
	for _, c := range contours {
		area := c.Area()
		if area <= minArea {
			continue
		}
		approx := geometry.ApproxClosed(c, d.cfg.EpsilonRatio*geometry.Perimeter(c))
		if len(approx) != 4 || area <= bestArea {
			continue
		}
		quad := [4]geometry.Point{approx[0], approx[1], approx[2], approx[3]}
		best, bestArea = &quad, area
	}
	return best, bestArea, nil
}
