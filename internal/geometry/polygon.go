package geometry

import (
	"math"
	"sort"
)

// PolygonArea returns the absolute shoelace area of a closed polygon.
func PolygonArea(pts []Point) float64 {
	n := len(pts)
	if n < 3 {
		return 0
	}
	s := 0.0
	for i := range n {
		j := (i + 1) % n
		s += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return math.Abs(s) * 0.5
}

// Perimeter returns the length of the closed curve through pts.
func Perimeter(pts []Point) float64 {
	n := len(pts)
	if n < 2 {
		return 0
	}
	l := 0.0
	for i := range n {
		l += Distance(pts[i], pts[(i+1)%n])
	}
	return l
}

// ApproxClosed simplifies a closed curve with the Douglas–Peucker algorithm.
// The curve is split at two mutually distant points and each half is
// simplified independently, so the result does not depend on where the
// contour trace happened to start.
func ApproxClosed(pts []Point, epsilon float64) []Point {
	n := len(pts)
	if n <= 3 || epsilon <= 0 {
		return append([]Point(nil), pts...)
	}

	a := farthestFrom(pts, 0)
	b := farthestFrom(pts, a)
	if a == b {
		return []Point{pts[a]}
	}

	// Ring rotated to start at a, closed by repeating pts[a].
	ring := make([]Point, n+1)
	for i := range n {
		ring[i] = pts[(a+i)%n]
	}
	ring[n] = ring[0]
	split := (b - a + n) % n

	keep := make([]bool, n+1)
	keep[0], keep[split] = true, true
	dpSimplify(ring, 0, split, epsilon, keep)
	dpSimplify(ring, split, n, epsilon, keep)

	out := make([]Point, 0, 8)
	for i := range n {
		if keep[i] {
			out = append(out, ring[i])
		}
	}
	return out
}

func farthestFrom(pts []Point, idx int) int {
	best, bestD := idx, -1.0
	for i, p := range pts {
		if d := Distance(pts[idx], p); d > bestD {
			best, bestD = i, d
		}
	}
	return best
}

func dpSimplify(pts []Point, start, end int, eps float64, keep []bool) {
	if end <= start+1 {
		return
	}
	maxDist := -1.0
	index := -1
	a, b := pts[start], pts[end]
	for i := start + 1; i < end; i++ {
		if d := segmentDistance(pts[i], a, b); d > maxDist {
			maxDist, index = d, i
		}
	}
	if maxDist > eps {
		keep[index] = true
		dpSimplify(pts, start, index, eps, keep)
		dpSimplify(pts, index, end, eps, keep)
	}
}

// segmentDistance is the distance from p to the line through a and b.
func segmentDistance(p, a, b Point) float64 {
	vx, vy := b.X-a.X, b.Y-a.Y
	if vx == 0 && vy == 0 {
		return Distance(p, a)
	}
	num := math.Abs((p.X-a.X)*vy - (p.Y-a.Y)*vx)
	return num / math.Hypot(vx, vy)
}

// OrderCorners assigns four unordered points to tl, tr, br, bl: the two
// smallest y form the top pair, each pair is then ordered by x.
func OrderCorners(pts [4]Point) (tl, tr, br, bl Point) {
	s := pts
	sort.SliceStable(s[:], func(i, j int) bool { return s[i].Y < s[j].Y })
	top := [2]Point{s[0], s[1]}
	bottom := [2]Point{s[2], s[3]}
	if top[1].X < top[0].X {
		top[0], top[1] = top[1], top[0]
	}
	if bottom[1].X < bottom[0].X {
		bottom[0], bottom[1] = bottom[1], bottom[0]
	}
	return top[0], top[1], bottom[1], bottom[0]
}
