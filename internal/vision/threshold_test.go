package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOtsuLevel(t *testing.T) {
	tests := []struct {
		name   string
		pix    []uint8
		minLvl uint8
		maxLvl uint8
	}{
		{"empty", nil, 0, 0},
		{"bimodal", append(repeat(30, 500), repeat(220, 500)...), 30, 219},
		{"skewed bimodal", append(repeat(10, 900), repeat(200, 100)...), 10, 199},
		{"uniform white", repeat(255, 100), 255, 255},
		{"uniform mid grey", repeat(128, 100), 128, 128},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lvl := otsuLevel(tt.pix)
			assert.GreaterOrEqual(t, lvl, tt.minLvl)
			assert.LessOrEqual(t, lvl, tt.maxLvl)
		})
	}
}

func TestBinarize_UniformImageIsAllBackground(t *testing.T) {
	pix := repeat(200, 64)
	out := binarize(pix, otsuLevel(pix), false)
	for _, v := range out {
		require.Zero(t, v)
	}
	inv := binarize(pix, otsuLevel(pix), true)
	for _, v := range inv {
		require.Equal(t, uint8(255), v)
	}
}

func TestBinarize_SeparatesClasses(t *testing.T) {
	pix := []uint8{10, 12, 240, 250, 11, 245}
	lvl := otsuLevel(pix)
	assert.Equal(t, []uint8{0, 0, 255, 255, 0, 255}, binarize(pix, lvl, false))
	assert.Equal(t, []uint8{255, 255, 0, 0, 255, 0}, binarize(pix, lvl, true))
}

func repeat(v uint8, n int) []uint8 {
	out := make([]uint8, n)
	for i := range out {
		out[i] = v
	}
	return out
}
