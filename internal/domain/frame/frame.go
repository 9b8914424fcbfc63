package frame

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"time"
)

// Frame is a row-major grayscale image with one byte per pixel.
// A Frame must not be modified once it has been handed to the pipeline.
type Frame struct {
	// Width is the number of pixels per row.
	Width int
	// Height is the number of rows.
	Height int
	// Pix holds Width*Height intensity samples, row by row.
	Pix []uint8
	// Seq is the capture sequence number assigned by the source.
	Seq uint64
	// Timestamp is when the frame was captured.
	Timestamp time.Time
}

var (
	// ErrInvalidDimensions is returned when width or height is not positive.
	ErrInvalidDimensions = errors.New("frame dimensions must be positive")
	// ErrPixelCount is returned when the sample count does not match width*height.
	ErrPixelCount = errors.New("pixel count does not match frame dimensions")
)

// New validates the dimensions and wraps pix into a Frame.
// The slice is not copied, the caller hands over ownership.
func New(width, height int, pix []uint8) (*Frame, error) {
	if err := validate(width, height, len(pix)); err != nil {
		return nil, err
	}

	return &Frame{
		Width:  width,
		Height: height,
		Pix:    pix,
	}, nil
}

// Uniform returns a frame where every pixel has intensity v.
func Uniform(width, height int, v uint8) (*Frame, error) {
	if err := validate(width, height, width*height); err != nil {
		return nil, err
	}

	pix := make([]uint8, width*height)
	for i := range pix {
		pix[i] = v
	}

	return New(width, height, pix)
}

// FromImage converts any image into a grayscale Frame using the standard
// luminance conversion of image/color.
func FromImage(img image.Image) (*Frame, error) {
	bounds := img.Bounds()

	gray, ok := img.(*image.Gray)
	if !ok || gray.Stride != bounds.Dx() || bounds.Min != (image.Point{}) {
		gray = image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(gray, gray.Bounds(), img, bounds.Min, draw.Src)
	}

	// A top-anchored sub-image shares the tail of its parent's buffer.
	return New(bounds.Dx(), bounds.Dy(), gray.Pix[:min(len(gray.Pix), bounds.Dx()*bounds.Dy())])
}

// Image returns the frame as an *image.Gray sharing the pixel buffer.
func (f *Frame) Image() *image.Gray {
	return &image.Gray{
		Pix:    f.Pix,
		Stride: f.Width,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
}

// At returns the intensity at column x, row y.
func (f *Frame) At(x, y int) color.Gray {
	return color.Gray{Y: f.Pix[y*f.Width+x]}
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	if f == nil {
		return nil
	}

	cloned := *f
	cloned.Pix = make([]uint8, len(f.Pix))
	copy(cloned.Pix, f.Pix)

	return &cloned
}

func validate(width, height, samples int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}

	if samples != width*height {
		return fmt.Errorf("%w: got %d samples for %dx%d", ErrPixelCount, samples, width, height)
	}

	return nil
}
