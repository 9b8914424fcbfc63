package frame

// Mean returns the mean pixel intensity of f, truncated toward zero.
// The frame must satisfy the invariants checked by New; anything else is a
// programming error and panics.
func Mean(f *Frame) uint8 {
	if f == nil {
		panic("frame: mean of nil frame")
	}

	if err := validate(f.Width, f.Height, len(f.Pix)); err != nil {
		panic("frame: mean of invalid frame: " + err.Error())
	}

	var sum uint64
	for _, p := range f.Pix {
		sum += uint64(p)
	}

	return uint8(sum / uint64(len(f.Pix)))
}
