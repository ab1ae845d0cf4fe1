// Package remap turns an EdgeDescription into a per-pixel source lookup field.
//
// The target rectangle is parametrised by (u, v) in [0,1]^2. Every
// destination pixel samples the average of two interpolations: one between
// the top and bottom Bezier edges, one between the left and right edges.
// With flat control points this reduces to a bilinear blend of the corners.
package remap

import (
	"errors"
	"fmt"
	"math"

	"github.com/MeKo-Tech/scanwarp/internal/geometry"
	"github.com/MeKo-Tech/scanwarp/internal/mempool"
)

// Field holds the source coordinates for each destination pixel in row-major order.
// X and Y are borrowed from mempool and must be handed back with Release.
type Field struct {
	Width  int
	Height int
	X      []float32
	Y      []float32
}

// ErrTooLarge is returned when the target rectangle exceeds the pixel limit.
var ErrTooLarge = errors.New("target size exceeds pixel limit")

// TargetSize is the output rectangle implied by the corner distances:
// the mean of the top and bottom lengths by the mean of the left and right
// lengths, rounded and clamped to at least one pixel.
func TargetSize(e geometry.EdgeDescription) (w, h int) {
	fw, fh := extent(e)
	return int(fw), int(fh)
}

func extent(e geometry.EdgeDescription) (fw, fh float64) {
	c := e.Corners()
	tl, tr, br, bl := c[0], c[1], c[2], c[3]
	fw = math.Max(1, math.Round((geometry.Distance(tl, tr)+geometry.Distance(bl, br))/2))
	fh = math.Max(1, math.Round((geometry.Distance(tl, bl)+geometry.Distance(tr, br))/2))
	return fw, fh
}

// CheckTargetSize returns TargetSize(e), or an error when the output would
// hold more than maxPixels pixels (maxPixels <= 0 only rejects non-finite
// sizes). The bound is evaluated in floating point so that far-away points
// cannot overflow the integer size.
func CheckTargetSize(e geometry.EdgeDescription, maxPixels int64) (w, h int, err error) {
	fw, fh := extent(e)
	area := fw * fh
	if math.IsNaN(area) || math.IsInf(area, 0) || (maxPixels > 0 && area > float64(maxPixels)) {
		return 0, 0, fmt.Errorf("%w: %.0fx%.0f > %d", ErrTooLarge, fw, fh, maxPixels)
	}
	return int(fw), int(fh), nil
}

// SourcePoint evaluates the blended edge model at (u, v).
func SourcePoint(e geometry.EdgeDescription, u, v float64) geometry.Point {
	top := geometry.QuadraticBezier(u, e[geometry.TopLeft], e[geometry.TopMid], e[geometry.TopRight])
	bottom := geometry.QuadraticBezier(u, e[geometry.BottomLeft], e[geometry.BottomMid], e[geometry.BottomRight])
	left := geometry.QuadraticBezier(v, e[geometry.TopLeft], e[geometry.LeftMid], e[geometry.BottomLeft])
	right := geometry.QuadraticBezier(v, e[geometry.TopRight], e[geometry.RightMid], e[geometry.BottomRight])

	p1 := geometry.Lerp(top, bottom, v)
	p2 := geometry.Lerp(left, right, u)
	return geometry.Midpoint(p1, p2)
}

// Build computes the remap field for e at TargetSize(e).
func Build(e geometry.EdgeDescription) *Field {
	w, h := TargetSize(e)
	n := w * h
	f := &Field{
		Width:  w,
		Height: h,
		X:      mempool.GetFloat32(n),
		Y:      mempool.GetFloat32(n),
	}

	du := 1 / float64(max(1, w-1))
	dv := 1 / float64(max(1, h-1))

	// Edge curves depend on one parameter only; evaluate them once per column/row.
	top := make([]geometry.Point, w)
	bottom := make([]geometry.Point, w)
	for i := range w {
		u := float64(i) * du
		top[i] = geometry.QuadraticBezier(u, e[geometry.TopLeft], e[geometry.TopMid], e[geometry.TopRight])
		bottom[i] = geometry.QuadraticBezier(u, e[geometry.BottomLeft], e[geometry.BottomMid], e[geometry.BottomRight])
	}

	for j := range h {
		v := float64(j) * dv
		left := geometry.QuadraticBezier(v, e[geometry.TopLeft], e[geometry.LeftMid], e[geometry.BottomLeft])
		right := geometry.QuadraticBezier(v, e[geometry.TopRight], e[geometry.RightMid], e[geometry.BottomRight])
		row := j * w
		for i := range w {
			u := float64(i) * du
			p1 := geometry.Lerp(top[i], bottom[i], v)
			p2 := geometry.Lerp(left, right, u)
			f.X[row+i] = float32((p1.X + p2.X) * 0.5)
			f.Y[row+i] = float32((p1.Y + p2.Y) * 0.5)
		}
	}
	return f
}

// At returns the source coordinate for destination pixel (i, j).
func (f *Field) At(i, j int) (x, y float32) {
	k := j*f.Width + i
	return f.X[k], f.Y[k]
}

// Release hands the coordinate grids back to the pool. The field must not be used afterwards.
func (f *Field) Release() {
	if f == nil {
		return
	}
	mempool.PutFloat32(f.X)
	mempool.PutFloat32(f.Y)
	f.X, f.Y = nil, nil
}
