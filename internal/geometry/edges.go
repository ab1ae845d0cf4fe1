package geometry

import (
	"errors"
	"fmt"
)

// ErrMalformedEdges is returned when a point list cannot form an EdgeDescription.
var ErrMalformedEdges = errors.New("edge description needs exactly 8 points")

// Slots of an EdgeDescription.
const (
	TopLeft = iota
	TopRight
	BottomRight
	BottomLeft
	TopMid
	RightMid
	BottomMid
	LeftMid
)

// EdgeDescription is the four corners of a document followed by the quadratic
// Bezier control point of each edge: tl, tr, br, bl, tm, rm, bm, lm.
// A control point at the average of its two corners describes a straight edge.
type EdgeDescription [8]Point

// EdgesFromPoints validates the length of pts and copies it.
func EdgesFromPoints(pts []Point) (EdgeDescription, error) {
	var e EdgeDescription
	if len(pts) != len(e) {
		return e, fmt.Errorf("%w: got %d", ErrMalformedEdges, len(pts))
	}
	copy(e[:], pts)
	return e, nil
}

// FlatEdges builds an EdgeDescription with straight edges between the corners.
func FlatEdges(tl, tr, br, bl Point) EdgeDescription {
	return EdgeDescription{
		tl, tr, br, bl,
		Midpoint(tl, tr),
		Midpoint(tr, br),
		Midpoint(bl, br),
		Midpoint(tl, bl),
	}
}

// FullFrame covers a whole w x h image. Corners sit on (0,0) and (w,h), not w-1.
func FullFrame(w, h int) EdgeDescription {
	fw, fh := float64(w), float64(h)
	return FlatEdges(Pt(0, 0), Pt(fw, 0), Pt(fw, fh), Pt(0, fh))
}

// Points returns the description as a slice in slot order.
func (e EdgeDescription) Points() []Point {
	out := make([]Point, len(e))
	copy(out, e[:])
	return out
}

// Corners returns tl, tr, br, bl.
func (e EdgeDescription) Corners() [4]Point {
	return [4]Point{e[TopLeft], e[TopRight], e[BottomRight], e[BottomLeft]}
}

// IsFlat reports whether every control point lies within tol of its edge midpoint.
func (e EdgeDescription) IsFlat(tol float64) bool {
	flat := FlatEdges(e[TopLeft], e[TopRight], e[BottomRight], e[BottomLeft])
	for i := TopMid; i <= LeftMid; i++ {
		if Distance(flat[i], e[i]) > tol {
			return false
		}
	}
	return true
}

// Scale multiplies every point by s.
func (e EdgeDescription) Scale(s float64) EdgeDescription {
	for i := range e {
		e[i] = e[i].Scale(s)
	}
	return e
}
