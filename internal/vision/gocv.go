//go:build vision_gocv

package vision

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/MeKo-Tech/scanwarp/internal/geometry"
	"github.com/MeKo-Tech/scanwarp/internal/remap"
)

// Gocv is a Backend on top of OpenCV through gocv.
type Gocv struct{}

func newGocv() (Backend, error) {
	// Touch the library once so a broken install fails at load time.
	m := gocv.NewMat()
	defer m.Close()
	if m.Ptr() == nil {
		return nil, fmt.Errorf("%w: opencv did not allocate a matrix", ErrUnavailable)
	}
	return &Gocv{}, nil
}

// Name implements Backend.
func (*Gocv) Name() string { return BackendGocv }

// Mats built by gocv.ImageToMatRGBA hold BGRA bytes, following OpenCV's
// channel order, and Mat.ToImage swaps them back.

// Desaturate implements Backend.
func (*Gocv) Desaturate(img image.Image) (*image.NRGBA, error) {
	src, err := gocv.ImageToMatRGBA(img)
	if err != nil {
		return nil, fmt.Errorf("load image: %w", err)
	}
	defer src.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(src, &gray, gocv.ColorBGRAToGray)

	back := gocv.NewMat()
	defer back.Close()
	gocv.CvtColor(gray, &back, gocv.ColorGrayToBGRA)
	return matToNRGBA(back)
}

// Gray implements Backend.
func (*Gocv) Gray(img image.Image) (*image.Gray, error) {
	src, err := gocv.ImageToMatRGBA(img)
	if err != nil {
		return nil, fmt.Errorf("load image: %w", err)
	}
	defer src.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(src, &gray, gocv.ColorBGRAToGray)
	return matToGray(gray)
}

// GaussianBlur implements Backend.
func (*Gocv) GaussianBlur(g *image.Gray, ksize int) (*image.Gray, error) {
	return withGray(g, func(src gocv.Mat, dst *gocv.Mat) {
		gocv.GaussianBlur(src, dst, image.Pt(ksize, ksize), 0, 0, gocv.BorderDefault)
	})
}

// OtsuThreshold implements Backend.
func (*Gocv) OtsuThreshold(g *image.Gray, inverse bool) (*image.Gray, error) {
	typ := gocv.ThresholdBinary
	if inverse {
		typ = gocv.ThresholdBinaryInv
	}
	return withGray(g, func(src gocv.Mat, dst *gocv.Mat) {
		gocv.Threshold(src, dst, 0, 255, typ|gocv.ThresholdOtsu)
	})
}

// Saturation implements Backend.
func (*Gocv) Saturation(img image.Image) (*image.Gray, error) {
	src, err := gocv.ImageToMatRGBA(img)
	if err != nil {
		return nil, fmt.Errorf("load image: %w", err)
	}
	defer src.Close()

	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(src, &bgr, gocv.ColorBGRAToBGR)

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(bgr, &hsv, gocv.ColorBGRToHSV)

	channels := gocv.Split(hsv)
	defer func() {
		for _, c := range channels {
			c.Close()
		}
	}()
	if len(channels) != 3 {
		return nil, errors.New("hsv split: unexpected channel count")
	}
	return matToGray(channels[1])
}

// MorphClose implements Backend.
func (*Gocv) MorphClose(mask *image.Gray, ksize int) (*image.Gray, error) {
	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(ksize, ksize))
	defer kernel.Close()
	return withGray(mask, func(src gocv.Mat, dst *gocv.Mat) {
		gocv.MorphologyEx(src, dst, gocv.MorphClose, kernel)
	})
}

// FindContours implements Backend.
func (*Gocv) FindContours(mask *image.Gray, mode RetrievalMode) ([]Contour, error) {
	src, err := gocv.ImageGrayToMatGray(mask)
	if err != nil {
		return nil, fmt.Errorf("load mask: %w", err)
	}
	defer src.Close()

	cvMode := gocv.RetrievalList
	if mode == RetrieveExternal {
		cvMode = gocv.RetrievalExternal
	}
	pv := gocv.FindContours(src, cvMode, gocv.ChainApproxSimple)
	defer pv.Close()

	out := make([]Contour, 0, pv.Size())
	for i := range pv.Size() {
		pts := pv.At(i).ToPoints()
		c := make(Contour, len(pts))
		for j, p := range pts {
			c[j] = geometry.Pt(float64(p.X), float64(p.Y))
		}
		out = append(out, c)
	}
	return out, nil
}

// FillContour implements Backend.
func (*Gocv) FillContour(c Contour, w, h int) (*image.Gray, error) {
	m := gocv.Zeros(h, w, gocv.MatTypeCV8UC1)
	defer m.Close()

	pts := make([]image.Point, len(c))
	for i, p := range c {
		pts[i] = image.Pt(int(p.X), int(p.Y))
	}
	pv := gocv.NewPointsVectorFromPoints([][]image.Point{pts})
	defer pv.Close()
	gocv.DrawContours(&m, pv, 0, color.RGBA{R: 255, G: 255, B: 255, A: 255}, -1)
	return matToGray(m)
}

// Remap implements Backend.
func (*Gocv) Remap(src image.Image, f *remap.Field) (*image.NRGBA, error) {
	in, err := gocv.ImageToMatRGBA(src)
	if err != nil {
		return nil, fmt.Errorf("load image: %w", err)
	}
	defer in.Close()

	mapX := gocv.NewMatWithSize(f.Height, f.Width, gocv.MatTypeCV32FC1)
	defer mapX.Close()
	mapY := gocv.NewMatWithSize(f.Height, f.Width, gocv.MatTypeCV32FC1)
	defer mapY.Close()
	for j := range f.Height {
		for i := range f.Width {
			x, y := f.At(i, j)
			mapX.SetFloatAt(j, i, x)
			mapY.SetFloatAt(j, i, y)
		}
	}

	out := gocv.NewMat()
	defer out.Close()
	gocv.Remap(in, &out, &mapX, &mapY, gocv.InterpolationLinear, gocv.BorderReplicate, color.RGBA{})
	return matToNRGBA(out)
}

func withGray(g *image.Gray, fn func(src gocv.Mat, dst *gocv.Mat)) (*image.Gray, error) {
	src, err := gocv.ImageGrayToMatGray(g)
	if err != nil {
		return nil, fmt.Errorf("load gray: %w", err)
	}
	defer src.Close()
	dst := gocv.NewMat()
	defer dst.Close()
	fn(src, &dst)
	return matToGray(dst)
}

func matToGray(m gocv.Mat) (*image.Gray, error) {
	img, err := m.ToImage()
	if err != nil {
		return nil, fmt.Errorf("read matrix: %w", err)
	}
	g, ok := img.(*image.Gray)
	if !ok {
		return nil, fmt.Errorf("read matrix: expected gray, got %T", img)
	}
	return g, nil
}

func matToNRGBA(m gocv.Mat) (*image.NRGBA, error) {
	img, err := m.ToImage()
	if err != nil {
		return nil, fmt.Errorf("read matrix: %w", err)
	}
	switch v := img.(type) {
	case *image.RGBA:
		// opaque pixels are identical in both layouts
		return &image.NRGBA{Pix: v.Pix, Stride: v.Stride, Rect: v.Rect}, nil
	case *image.NRGBA:
		return v, nil
	default:
		return nil, fmt.Errorf("read matrix: unexpected %T", img)
	}
}
