package vision

import (
	"math"

	"github.com/MeKo-Tech/scanwarp/internal/mempool"
)

// ellipseKernel returns the offsets of a k x k elliptical structuring
// element, matching the usual raster ellipse: for k=5 the corners and the
// outer cells of the first and last rows are excluded.
func ellipseKernel(k int) [][2]int {
	if k < 1 {
		k = 1
	}
	if k%2 == 0 {
		k++
	}
	r := k / 2
	offs := make([][2]int, 0, k*k)
	for i := range k {
		dy := i - r
		dx := 0
		if r > 0 {
			dx = int(math.Round(float64(r) * math.Sqrt(float64(r*r-dy*dy)/float64(r*r))))
		}
		for j := r - dx; j <= r+dx; j++ {
			offs = append(offs, [2]int{j - r, dy})
		}
	}
	return offs
}

// dilate sets a pixel of out when any in-bounds kernel neighbour in mask is
// set. out must be zeroed and as long as mask.
func dilate(out, mask []uint8, w, h int, kernel [][2]int) {
	for y := range h {
		for x := range w {
			for _, o := range kernel {
				nx, ny := x+o[0], y+o[1]
				if nx >= 0 && nx < w && ny >= 0 && ny < h && mask[ny*w+nx] != 0 {
					out[y*w+x] = 255
					break
				}
			}
		}
	}
}

// erode clears a pixel when any in-bounds kernel neighbour is clear.
// Out-of-bounds neighbours are ignored, so the image edge does not erode.
func erode(mask []uint8, w, h int, kernel [][2]int) []uint8 {
	out := make([]uint8, len(mask))
	for y := range h {
		for x := range w {
			v := uint8(255)
			for _, o := range kernel {
				nx, ny := x+o[0], y+o[1]
				if nx >= 0 && nx < w && ny >= 0 && ny < h && mask[ny*w+nx] == 0 {
					v = 0
					break
				}
			}
			out[y*w+x] = v
		}
	}
	return out
}

// closing is dilate followed by erode; it fills gaps narrower than the kernel.
func closing(mask []uint8, w, h, ksize int) []uint8 {
	k := ellipseKernel(ksize)
	tmp := mempool.GetUint8(len(mask))
	defer mempool.PutUint8(tmp)
	dilate(tmp, mask, w, h, k)
	return erode(tmp, w, h, k)
}
