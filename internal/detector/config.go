package detector

import (
	"errors"
	"fmt"
)

// Config tunes the quadrilateral search.
type Config struct {
	// MinArea is the smallest contour area, in source pixels, worth approximating.
	MinArea float64
	// EpsilonRatio is the polygon simplification tolerance as a fraction of the contour perimeter.
	EpsilonRatio float64
	// BlurKernel is the Gaussian kernel size applied before thresholding.
	BlurKernel int
	// MaxDimension downscales larger images before searching; 0 keeps full resolution.
	MaxDimension int
}

// DefaultConfig returns the standard detection settings.
func DefaultConfig() Config {
	return Config{
		MinArea:      1000,
		EpsilonRatio: 0.015,
		BlurKernel:   5,
		MaxDimension: 1600,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.MinArea < 0 {
		return errors.New("min area must be non-negative")
	}
	if c.EpsilonRatio <= 0 || c.EpsilonRatio >= 1 {
		return fmt.Errorf("epsilon ratio must be in (0, 1), got %v", c.EpsilonRatio)
	}
	if c.BlurKernel < 1 || c.BlurKernel%2 == 0 {
		return fmt.Errorf("blur kernel must be a positive odd number, got %d", c.BlurKernel)
	}
	if c.MaxDimension < 0 {
		return errors.New("max dimension must be non-negative")
	}
	return nil
}
