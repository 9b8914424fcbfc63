package frame

const (
	// MarkerOffset is the distance in rows of each marker band from the
	// top and bottom edges.
	MarkerOffset = 10
	// MarkerHeight is the number of rows in a marker band.
	MarkerHeight = 4

	markerDark  uint8 = 0
	markerLight uint8 = 255
)

// Annotate returns a copy of f with two horizontal marker bands, one near
// the top and one near the bottom. Band pixels alternate dark and light by
// column. Frames too short to hold both bands are returned as a plain copy.
func Annotate(f *Frame) *Frame {
	marked := f.Clone()

	if f.Height < 2*(MarkerOffset+MarkerHeight) {
		return marked
	}

	top := MarkerOffset
	bottom := f.Height - MarkerOffset - MarkerHeight

	for _, start := range []int{top, bottom} {
		for y := start; y < start+MarkerHeight; y++ {
			row := marked.Pix[y*f.Width : (y+1)*f.Width]
			for x := range row {
				if x%2 == 0 {
					row[x] = markerDark
				} else {
					row[x] = markerLight
				}
			}
		}
	}

	return marked
}
