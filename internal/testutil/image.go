// Package testutil renders synthetic document photographs for tests.
package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/MeKo-Tech/scanwarp/internal/geometry"
)

// DocumentConfig describes a sheet of paper lying on a background.
type DocumentConfig struct {
	Width      int
	Height     int
	Background color.NRGBA
	Paper      color.NRGBA
	Ink        color.NRGBA
	// Corners of the sheet in tl, tr, br, bl order.
	Corners [4]geometry.Point
	// Lines of text drawn inside the sheet's bounding box; empty draws none.
	Lines []string
}

// DefaultDocument is a white sheet seen at a slight angle on a dark desk.
func DefaultDocument() DocumentConfig {
	return DocumentConfig{
		Width:      640,
		Height:     480,
		Background: color.NRGBA{R: 40, G: 45, B: 60, A: 255},
		Paper:      color.NRGBA{R: 245, G: 245, B: 240, A: 255},
		Ink:        color.NRGBA{R: 20, G: 20, B: 20, A: 255},
		Corners: [4]geometry.Point{
			{X: 110, Y: 70}, {X: 520, Y: 90},
			{X: 540, Y: 410}, {X: 90, Y: 395},
		},
		Lines: []string{"INVOICE 2024-117", "Qty  Item        Price", "3    Widgets     9.99"},
	}
}

// GenerateDocument renders cfg.
func GenerateDocument(cfg DocumentConfig) *image.NRGBA {
	img := Solid(cfg.Width, cfg.Height, cfg.Background)

	r := vector.NewRasterizer(cfg.Width, cfg.Height)
	r.MoveTo(float32(cfg.Corners[0].X), float32(cfg.Corners[0].Y))
	for _, p := range cfg.Corners[1:] {
		r.LineTo(float32(p.X), float32(p.Y))
	}
	r.ClosePath()
	r.Draw(img, img.Bounds(), image.NewUniform(cfg.Paper), image.Point{})

	if len(cfg.Lines) > 0 {
		minX, minY := cfg.Corners[0].X, cfg.Corners[0].Y
		for _, p := range cfg.Corners[1:] {
			minX = min(minX, p.X)
			minY = min(minY, p.Y)
		}
		face := basicfont.Face7x13
		d := &font.Drawer{Dst: img, Src: image.NewUniform(cfg.Ink), Face: face}
		lineHeight := face.Metrics().Height.Ceil()
		for i, line := range cfg.Lines {
			d.Dot = fixed.P(int(minX)+60, int(minY)+60+(i+1)*lineHeight*2)
			d.DrawString(line)
		}
	}
	return img
}

// Solid returns a w x h image filled with c.
func Solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

// EncodePNG returns img as PNG bytes.
func EncodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// DecodePNG parses PNG bytes.
func DecodePNG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

// WritePNG saves img as dir/name and returns the path.
func WritePNG(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, EncodePNG(t, img), 0o600))
	return path
}

// FileExists reports whether path names a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
