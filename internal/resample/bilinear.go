// Package resample renders a remap field into a destination image.
package resample

import (
	"image"
	"math"
	"runtime"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/scanwarp/internal/remap"
)

// minBandRows keeps small outputs on a single goroutine.
const minBandRows = 64

// Bilinear samples src at every coordinate of f. Taps outside src repeat the
// nearest edge pixel. The result is f.Width x f.Height.
func Bilinear(src image.Image, f *remap.Field) *image.NRGBA {
	in := asNRGBA(src)
	out := image.NewNRGBA(image.Rect(0, 0, f.Width, f.Height))
	if in.Rect.Empty() {
		return out
	}

	bands := min(runtime.GOMAXPROCS(0), max(1, f.Height/minBandRows))
	if bands == 1 {
		sampleRows(in, f, out, 0, f.Height)
		return out
	}

	var wg sync.WaitGroup
	step := (f.Height + bands - 1) / bands
	for y0 := 0; y0 < f.Height; y0 += step {
		y1 := min(y0+step, f.Height)
		wg.Add(1)
		go func() {
			defer wg.Done()
			sampleRows(in, f, out, y0, y1)
		}()
	}
	wg.Wait()
	return out
}

func sampleRows(in *image.NRGBA, f *remap.Field, out *image.NRGBA, y0, y1 int) {
	w, h := in.Rect.Dx(), in.Rect.Dy()
	for j := y0; j < y1; j++ {
		dst := out.Pix[j*out.Stride : j*out.Stride+f.Width*4]
		for i := range f.Width {
			x, y := f.At(i, j)
			sample(in, w, h, float64(x), float64(y), dst[i*4:i*4+4])
		}
	}
}

// sample writes the bilinear blend of the four taps around (x, y) into px.
func sample(in *image.NRGBA, w, h int, x, y float64, px []uint8) {
	fx0 := math.Floor(x)
	fy0 := math.Floor(y)
	fx := x - fx0
	fy := y - fy0
	x0 := clamp(int(fx0), w)
	y0 := clamp(int(fy0), h)
	x1 := clamp(int(fx0)+1, w)
	y1 := clamp(int(fy0)+1, h)

	r0 := in.Pix[y0*in.Stride:]
	r1 := in.Pix[y1*in.Stride:]
	for c := range 4 {
		a := float64(r0[x0*4+c])
		b := float64(r0[x1*4+c])
		d := float64(r1[x0*4+c])
		e := float64(r1[x1*4+c])
		top := a + (b-a)*fx
		bot := d + (e-d)*fx
		px[c] = uint8(math.Round(top + (bot-top)*fy))
	}
}

func clamp(v, n int) int {
	if v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}

// asNRGBA returns src as a zero-origin NRGBA, copying only when needed.
func asNRGBA(src image.Image) *image.NRGBA {
	if n, ok := src.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	return imaging.Clone(src)
}
