package vision

import (
	"github.com/MeKo-Tech/scanwarp/internal/mempool"
)

// component summarises one connected region of a labelGrid.
type component struct {
	label      int32
	count      int
	minX, minY int
	maxX, maxY int
	border     bool // touches the image edge
}

// labelGrid holds a component label per pixel; 0 means unlabelled.
type labelGrid struct {
	w, h   int
	labels []int32
}

func newLabelGrid(w, h int) *labelGrid {
	return &labelGrid{w: w, h: h, labels: mempool.GetInt32(w * h)}
}

func (g *labelGrid) release() {
	mempool.PutInt32(g.labels)
	g.labels = nil
}

// at returns the label at (x, y), or 0 outside the grid.
func (g *labelGrid) at(x, y int) int32 {
	if x < 0 || y < 0 || x >= g.w || y >= g.h {
		return 0
	}
	return g.labels[y*g.w+x]
}

var (
	dirs4 = [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	dirs8 = [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}, {1, 1}, {-1, -1}, {1, -1}, {-1, 1}}
)

// labelComponents labels the pixels of mask for which want(v) holds.
// Foreground uses 8-connectivity and background 4-connectivity so that the
// two never cross each other diagonally.
func labelComponents(mask []uint8, w, h int, want func(uint8) bool, eight bool) (*labelGrid, []component) {
	g := newLabelGrid(w, h)
	dirs := dirs4
	if eight {
		dirs = dirs8
	}

	var comps []component
	var stack []int
	next := int32(1)

	for y := range h {
		for x := range w {
			idx := y*w + x
			if g.labels[idx] != 0 || !want(mask[idx]) {
				continue
			}
			c := component{label: next, minX: x, minY: y, maxX: x, maxY: y}
			g.labels[idx] = next
			stack = append(stack[:0], idx)
			for len(stack) > 0 {
				ci := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				cx, cy := ci%w, ci/w
				c.grow(cx, cy, w, h)
				for _, d := range dirs {
					nx, ny := cx+d[0], cy+d[1]
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					ni := ny*w + nx
					if g.labels[ni] == 0 && want(mask[ni]) {
						g.labels[ni] = next
						stack = append(stack, ni)
					}
				}
			}
			comps = append(comps, c)
			next++
		}
	}
	return g, comps
}

func (c *component) grow(x, y, w, h int) {
	c.count++
	c.minX = min(c.minX, x)
	c.minY = min(c.minY, y)
	c.maxX = max(c.maxX, x)
	c.maxY = max(c.maxY, y)
	if x == 0 || y == 0 || x == w-1 || y == h-1 {
		c.border = true
	}
}
