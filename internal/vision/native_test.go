package vision

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/scanwarp/internal/geometry"
	"github.com/MeKo-Tech/scanwarp/internal/remap"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestNative_Saturation(t *testing.T) {
	n := NewNative()
	img := solid(4, 1, color.NRGBA{255, 255, 255, 255})
	img.SetNRGBA(1, 0, color.NRGBA{255, 0, 0, 255})
	img.SetNRGBA(2, 0, color.NRGBA{128, 128, 128, 255})
	img.SetNRGBA(3, 0, color.NRGBA{200, 100, 100, 255})

	s, err := n.Saturation(img)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), s.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(255), s.GrayAt(1, 0).Y)
	assert.Equal(t, uint8(0), s.GrayAt(2, 0).Y)
	assert.InDelta(t, 128, int(s.GrayAt(3, 0).Y), 1)
}

func TestNative_GrayAndDesaturate(t *testing.T) {
	n := NewNative()
	img := solid(3, 2, color.NRGBA{255, 0, 0, 255})

	g, err := n.Gray(img)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 2), g.Bounds())
	assert.InDelta(t, 76, int(g.GrayAt(1, 1).Y), 1)

	d, err := n.Desaturate(img)
	require.NoError(t, err)
	c := d.NRGBAAt(2, 1)
	assert.Equal(t, c.R, c.G)
	assert.Equal(t, c.G, c.B)
	assert.Equal(t, uint8(255), c.A)
}

func TestNative_GaussianBlurKeepsUniform(t *testing.T) {
	n := NewNative()
	g := image.NewGray(image.Rect(0, 0, 16, 16))
	for i := range g.Pix {
		g.Pix[i] = 90
	}
	out, err := n.GaussianBlur(g, 5)
	require.NoError(t, err)
	require.Equal(t, g.Bounds(), out.Bounds())
	assert.InDelta(t, 90, int(out.GrayAt(8, 8).Y), 1)

	same, err := n.GaussianBlur(g, 1)
	require.NoError(t, err)
	assert.Equal(t, g.Pix, same.Pix)
}

func TestNative_ThresholdOnSubImage(t *testing.T) {
	n := NewNative()
	full := image.NewGray(image.Rect(0, 0, 10, 10))
	for y := range 10 {
		for x := range 10 {
			if x >= 5 {
				full.SetGray(x, y, color.Gray{Y: 230})
			} else {
				full.SetGray(x, y, color.Gray{Y: 20})
			}
		}
	}
	sub, ok := full.SubImage(image.Rect(3, 2, 8, 6)).(*image.Gray)
	require.True(t, ok)

	m, err := n.OtsuThreshold(sub, false)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 5, 4), m.Bounds())
	assert.Zero(t, m.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(255), m.GrayAt(4, 3).Y)

	inv, err := n.OtsuThreshold(sub, true)
	require.NoError(t, err)
	assert.Equal(t, uint8(255), inv.GrayAt(0, 0).Y)
}

func TestNative_ContoursAndFill(t *testing.T) {
	n := NewNative()
	mask := image.NewGray(image.Rect(0, 0, 40, 30))
	for y := 5; y < 25; y++ {
		for x := 8; x < 32; x++ {
			mask.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	closed, err := n.MorphClose(mask, 5)
	require.NoError(t, err)

	cs, err := n.FindContours(closed, RetrieveExternal)
	require.NoError(t, err)
	require.Len(t, cs, 1)
	assert.InDelta(t, 23.0*19.0, cs[0].Area(), 1e-9)

	filled, err := n.FillContour(cs[0], 40, 30)
	require.NoError(t, err)
	assert.Equal(t, mask.Pix, filled.Pix)
}

func TestNative_Remap(t *testing.T) {
	n := NewNative()
	img := solid(20, 10, color.NRGBA{10, 20, 30, 255})
	f := remap.Build(geometry.FullFrame(20, 10))
	defer f.Release()

	out, err := n.Remap(img, f)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 20, 10), out.Bounds())
	assert.Equal(t, color.NRGBA{10, 20, 30, 255}, out.NRGBAAt(19, 9))
}
