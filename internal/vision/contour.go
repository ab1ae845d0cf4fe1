package vision

import (
	"github.com/MeKo-Tech/scanwarp/internal/geometry"
)

// 8-neighbourhood in clockwise order starting east: E, SE, S, SW, W, NW, N, NE.
var (
	ndx = [8]int{1, 1, 0, -1, -1, -1, 0, 1}
	ndy = [8]int{0, 1, 1, 1, 0, -1, -1, -1}
)

const west = 4

// traceMoore follows the boundary of component c with Moore-neighbour
// tracing and returns it in pixel-centre coordinates. Runs of collinear
// boundary pixels collapse to their end points.
func traceMoore(g *labelGrid, c component) Contour {
	sx, sy := startPixel(g, c)
	if sx < 0 {
		return nil
	}

	pts := make(Contour, 0, 64)
	push := func(x, y int) {
		p := geometry.Pt(float64(x), float64(y))
		if n := len(pts); n >= 2 {
			a, b := pts[n-2], pts[n-1]
			cross := (b.X-a.X)*(p.Y-b.Y) - (b.Y-a.Y)*(p.X-b.X)
			if cross == 0 {
				pts = pts[:n-1]
			}
		}
		pts = append(pts, p)
	}
	push(sx, sy)

	cx, cy := sx, sy
	from := west // the start is the first pixel in raster order, so west is outside
	secondX, secondY := -1, -1
	maxSteps := 4*c.count + 8

	for step := 0; step < maxSteps; step++ {
		nx, ny, d, ok := nextBoundary(g, c.label, cx, cy, from)
		if !ok {
			break // isolated pixel
		}
		if step == 0 {
			secondX, secondY = nx, ny
		} else if cx == sx && cy == sy && nx == secondX && ny == secondY {
			break
		}
		from = (d + 4) % 8
		cx, cy = nx, ny
		if cx != sx || cy != sy {
			push(cx, cy)
		}
	}
	// the closing segment runs back to the start; drop a last point lying on it
	if n := len(pts); n >= 3 {
		a, b, p := pts[n-2], pts[n-1], pts[0]
		if (b.X-a.X)*(p.Y-b.Y)-(b.Y-a.Y)*(p.X-b.X) == 0 {
			pts = pts[:n-1]
		}
	}
	return pts
}

// startPixel is the first pixel of c in raster order.
func startPixel(g *labelGrid, c component) (int, int) {
	for y := c.minY; y <= c.maxY; y++ {
		for x := c.minX; x <= c.maxX; x++ {
			if g.at(x, y) == c.label {
				return x, y
			}
		}
	}
	return -1, -1
}

// nextBoundary scans the neighbours of (cx, cy) clockwise, starting just
// after direction from, and returns the first one carrying label.
func nextBoundary(g *labelGrid, label int32, cx, cy, from int) (int, int, int, bool) {
	for k := 1; k <= 8; k++ {
		i := (from + k) % 8
		tx, ty := cx+ndx[i], cy+ndy[i]
		if g.at(tx, ty) == label {
			return tx, ty, i, true
		}
	}
	return 0, 0, 0, false
}

// findContours traces outer borders of the 8-connected foreground and, for
// RetrieveList, the borders of enclosed 4-connected background holes.
// RetrieveExternal also reports islands that sit inside a hole; callers that
// keep only the largest contour are unaffected since an island is always
// smaller than the region around it.
func findContours(mask []uint8, w, h int, mode RetrievalMode) []Contour {
	fg, comps := labelComponents(mask, w, h, func(v uint8) bool { return v != 0 }, true)
	defer fg.release()

	out := make([]Contour, 0, len(comps))
	for _, c := range comps {
		if ct := traceMoore(fg, c); len(ct) > 0 {
			out = append(out, ct)
		}
	}
	if mode != RetrieveList {
		return out
	}

	bg, holes := labelComponents(mask, w, h, func(v uint8) bool { return v == 0 }, false)
	defer bg.release()
	for _, c := range holes {
		if c.border {
			continue
		}
		if ct := traceMoore(bg, c); len(ct) > 0 {
			out = append(out, ct)
		}
	}
	return out
}
