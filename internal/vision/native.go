package vision

import (
	"image"
	"math"

	"github.com/anthonynsimon/bild/blur"
	"github.com/disintegration/imaging"
	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/MeKo-Tech/scanwarp/internal/remap"
	"github.com/MeKo-Tech/scanwarp/internal/resample"
)

// Native is a pure-Go Backend. It needs no shared libraries, so loading it
// never fails.
type Native struct{}

// NewNative returns the pure-Go backend.
func NewNative() *Native { return &Native{} }

// Name implements Backend.
func (*Native) Name() string { return BackendNative }

// Desaturate implements Backend.
func (*Native) Desaturate(img image.Image) (*image.NRGBA, error) {
	return imaging.Grayscale(img), nil
}

// Gray implements Backend.
func (*Native) Gray(img image.Image) (*image.Gray, error) {
	g := imaging.Grayscale(img)
	out := image.NewGray(image.Rect(0, 0, g.Rect.Dx(), g.Rect.Dy()))
	for i := range out.Pix {
		out.Pix[i] = g.Pix[i*4]
	}
	return out, nil
}

// GaussianBlur implements Backend.
func (*Native) GaussianBlur(g *image.Gray, ksize int) (*image.Gray, error) {
	radius := float64(ksize / 2)
	if radius <= 0 {
		return cloneGray(g), nil
	}
	rgba := blur.Gaussian(g, radius)
	b := rgba.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := range b.Dy() {
		src := rgba.Pix[y*rgba.Stride:]
		dst := out.Pix[y*out.Stride:]
		for x := range b.Dx() {
			dst[x] = src[x*4]
		}
	}
	return out, nil
}

// OtsuThreshold implements Backend.
func (*Native) OtsuThreshold(g *image.Gray, inverse bool) (*image.Gray, error) {
	pix, w, h := plane(g)
	level := otsuLevel(pix)
	return wrapGray(binarize(pix, level, inverse), w, h), nil
}

// Saturation implements Backend.
func (*Native) Saturation(img image.Image) (*image.Gray, error) {
	src := imaging.Clone(img)
	w, h := src.Rect.Dx(), src.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for i := range out.Pix {
		p := src.Pix[i*4 : i*4+3]
		c := colorful.Color{R: float64(p[0]) / 255, G: float64(p[1]) / 255, B: float64(p[2]) / 255}
		_, s, _ := c.Hsv()
		out.Pix[i] = uint8(math.Round(s * 255))
	}
	return out, nil
}

// MorphClose implements Backend.
func (*Native) MorphClose(mask *image.Gray, ksize int) (*image.Gray, error) {
	pix, w, h := plane(mask)
	return wrapGray(closing(pix, w, h, ksize), w, h), nil
}

// FindContours implements Backend.
func (*Native) FindContours(mask *image.Gray, mode RetrievalMode) ([]Contour, error) {
	pix, w, h := plane(mask)
	return findContours(pix, w, h, mode), nil
}

// FillContour implements Backend.
func (*Native) FillContour(c Contour, w, h int) (*image.Gray, error) {
	return fillContour(c, w, h), nil
}

// Remap implements Backend.
func (*Native) Remap(src image.Image, f *remap.Field) (*image.NRGBA, error) {
	return resample.Bilinear(src, f), nil
}

// plane returns g as a packed, zero-origin byte slice.
func plane(g *image.Gray) ([]uint8, int, int) {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	if g.Rect.Min == (image.Point{}) && g.Stride == w {
		return g.Pix[:w*h], w, h
	}
	out := make([]uint8, w*h)
	for y := range h {
		row := g.Pix[g.PixOffset(g.Rect.Min.X, g.Rect.Min.Y+y):]
		copy(out[y*w:(y+1)*w], row[:w])
	}
	return out, w, h
}

func wrapGray(pix []uint8, w, h int) *image.Gray {
	return &image.Gray{Pix: pix, Stride: w, Rect: image.Rect(0, 0, w, h)}
}

func cloneGray(g *image.Gray) *image.Gray {
	pix, w, h := plane(g)
	out := make([]uint8, len(pix))
	copy(out, pix)
	return wrapGray(out, w, h)
}
