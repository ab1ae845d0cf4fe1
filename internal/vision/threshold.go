package vision

// otsuLevel returns the grey level that maximises the between-class
// variance of the histogram of pix. Pixels strictly above the level are the
// bright class. An image with a single grey level has no split; the level is
// then that grey value so every pixel lands in the dark class.
func otsuLevel(pix []uint8) uint8 {
	if len(pix) == 0 {
		return 0
	}
	var hist [256]int
	for _, v := range pix {
		hist[v]++
	}

	total := len(pix)
	var sum float64
	top := 0
	for i, n := range hist {
		sum += float64(i) * float64(n)
		if n > 0 {
			top = i
		}
	}

	var sumB, maxVar float64
	best := top
	wB := 0
	for t := range 256 {
		wB += hist[t]
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(hist[t])
		mB := sumB / float64(wB)
		mF := (sum - sumB) / float64(wF)
		between := float64(wB) * float64(wF) * (mB - mF) * (mB - mF)
		if between > maxVar {
			maxVar = between
			best = t
		}
	}
	return uint8(best)
}

// binarize maps pix to 0/255 around level; inverse swaps the output classes.
func binarize(pix []uint8, level uint8, inverse bool) []uint8 {
	hi, lo := uint8(255), uint8(0)
	if inverse {
		hi, lo = lo, hi
	}
	out := make([]uint8, len(pix))
	for i, v := range pix {
		if v > level {
			out[i] = hi
		} else {
			out[i] = lo
		}
	}
	return out
}
