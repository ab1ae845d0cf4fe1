//go:build !vision_gocv

package vision

import "fmt"

func newGocv() (Backend, error) {
	return nil, fmt.Errorf("%w: built without the vision_gocv tag", ErrUnavailable)
}
