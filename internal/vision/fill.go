package vision

import (
	"image"
	"image/draw"

	"golang.org/x/image/vector"
)

// fillContour rasterises the closed polygon c into a w x h mask. Contour
// points are pixel centres, so every pixel the polygon touches is set and
// the traced boundary pixels are set explicitly.
func fillContour(c Contour, w, h int) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, w, h))
	if len(c) == 0 || w <= 0 || h <= 0 {
		return out
	}

	if len(c) >= 3 {
		r := vector.NewRasterizer(w, h)
		r.DrawOp = draw.Src
		r.MoveTo(float32(c[0].X)+0.5, float32(c[0].Y)+0.5)
		for _, p := range c[1:] {
			r.LineTo(float32(p.X)+0.5, float32(p.Y)+0.5)
		}
		r.ClosePath()

		cov := image.NewAlpha(out.Rect)
		r.Draw(cov, cov.Bounds(), image.Opaque, image.Point{})
		for i, a := range cov.Pix {
			if a > 0 {
				out.Pix[i] = 255
			}
		}
	}

	// Boundary segments: the polygon through pixel centres only half covers them.
	for i := range c {
		a, b := c[i], c[(i+1)%len(c)]
		drawSegment(out, int(a.X), int(a.Y), int(b.X), int(b.Y))
	}
	return out
}

// drawSegment sets the pixels of the Bresenham line from (x0,y0) to (x1,y1).
func drawSegment(m *image.Gray, x0, y0, x1, y1 int) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		if image.Pt(x0, y0).In(m.Rect) {
			m.Pix[m.PixOffset(x0, y0)] = 255
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
