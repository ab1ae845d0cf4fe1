package resample

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/scanwarp/internal/geometry"
	"github.com/MeKo-Tech/scanwarp/internal/remap"
)

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 10), G: uint8(y * 10), B: 100, A: 255})
		}
	}
	return img
}

func fieldOf(w, h int, fn func(i, j int) (float32, float32)) *remap.Field {
	f := &remap.Field{Width: w, Height: h, X: make([]float32, w*h), Y: make([]float32, w*h)}
	for j := range h {
		for i := range w {
			f.X[j*w+i], f.Y[j*w+i] = fn(i, j)
		}
	}
	return f
}

func TestBilinear_IntegerCoordinatesCopyPixels(t *testing.T) {
	src := gradient(8, 6)
	f := fieldOf(8, 6, func(i, j int) (float32, float32) { return float32(i), float32(j) })

	out := Bilinear(src, f)
	require.Equal(t, src.Bounds(), out.Bounds())
	assert.Equal(t, src.Pix, out.Pix)
}

func TestBilinear_HalfPixelAverages(t *testing.T) {
	src := gradient(4, 4)
	f := fieldOf(1, 1, func(int, int) (float32, float32) { return 1.5, 2.5 })

	out := Bilinear(src, f)
	c := out.NRGBAAt(0, 0)
	assert.Equal(t, uint8(15), c.R)
	assert.Equal(t, uint8(25), c.G)
	assert.Equal(t, uint8(100), c.B)
	assert.Equal(t, uint8(255), c.A)
}

func TestBilinear_ReplicatesBorder(t *testing.T) {
	src := gradient(5, 5)
	f := fieldOf(4, 1, func(i, _ int) (float32, float32) {
		return [4]float32{-3.5, 50, 2, -1}[i], [4]float32{-10, 2, 99, 4.25}[i]
	})

	out := Bilinear(src, f)
	assert.Equal(t, src.NRGBAAt(0, 0), out.NRGBAAt(0, 0))
	assert.Equal(t, src.NRGBAAt(4, 2), out.NRGBAAt(1, 0))
	assert.Equal(t, src.NRGBAAt(2, 4), out.NRGBAAt(2, 0))
	assert.Equal(t, src.NRGBAAt(0, 4), out.NRGBAAt(3, 0))
}

func TestBilinear_NonZeroOriginSource(t *testing.T) {
	full := gradient(10, 10)
	sub, ok := full.SubImage(image.Rect(3, 3, 8, 8)).(*image.NRGBA)
	require.True(t, ok)

	f := fieldOf(1, 1, func(int, int) (float32, float32) { return 0, 0 })
	out := Bilinear(sub, f)
	assert.Equal(t, full.NRGBAAt(3, 3), out.NRGBAAt(0, 0))
}

func TestBilinear_LargeFieldUsesBands(t *testing.T) {
	src := gradient(20, 20)
	e := geometry.FlatEdges(geometry.Pt(0, 0), geometry.Pt(19, 0), geometry.Pt(19, 400), geometry.Pt(0, 400))
	f := remap.Build(e)
	defer f.Release()

	out := Bilinear(src, f)
	require.Equal(t, f.Width, out.Bounds().Dx())
	require.Equal(t, f.Height, out.Bounds().Dy())
	// rows beyond the source repeat the last source row
	assert.Equal(t, src.NRGBAAt(0, 19), out.NRGBAAt(0, f.Height-1))
}

func TestBilinear_EmptySource(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 0, 0))
	f := fieldOf(2, 2, func(int, int) (float32, float32) { return 0, 0 })
	out := Bilinear(src, f)
	assert.Equal(t, image.Rect(0, 0, 2, 2), out.Bounds())
}
