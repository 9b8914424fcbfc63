package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/png" // Register the PNG decoder.
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	_ "golang.org/x/image/bmp" // Register the BMP decoder.

	"github.com/oshokin/intruder-alarm/internal/domain/frame"
)

// Source produces the next frame, blocking until one is available.
type Source interface {
	Acquire(ctx context.Context) (*frame.Frame, error)
}

var (
	// ErrNoFrames is returned when the source directory holds no images.
	ErrNoFrames = errors.New("no frame images found")
	// ErrFrameSize is returned when a frame does not match the configured size.
	ErrFrameSize = errors.New("frame size does not match camera settings")
)

// supportedExtensions lists the image files picked up by DirectorySource.
//
//nolint:gochecknoglobals // Read-only lookup table.
var supportedExtensions = []string{".bmp", ".png"}

// DirectorySource cycles through the images of a directory in name order.
// A directory with a single image behaves as a constant reader. Files are
// decoded on every capture, so replacing them on disk changes the scene.
type DirectorySource struct {
	// files holds the image paths in capture order.
	files []string
	// width and height are the expected frame dimensions.
	width  int
	height int
	// next is the index of the file returned by the next capture.
	next int
	// seq is the sequence number of the last frame.
	seq uint64
	// now stamps captured frames.
	now func() time.Time
}

// NewDirectorySource lists the images in dir and checks that at least one exists.
func NewDirectorySource(dir string, width, height int) (*DirectorySource, error) {
	entries, err := os.ReadDir(filepath.Clean(dir))
	if err != nil {
		return nil, fmt.Errorf("read source directory: %w", err)
	}

	files := make([]string, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if slices.Contains(supportedExtensions, ext) {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoFrames, dir)
	}

	slices.Sort(files)

	return &DirectorySource{
		files:  files,
		width:  width,
		height: height,
		now:    time.Now,
	}, nil
}

// Files returns the image paths in capture order.
func (s *DirectorySource) Files() []string {
	return slices.Clone(s.files)
}

// Acquire decodes the next image and converts it to a grayscale frame.
func (s *DirectorySource) Acquire(ctx context.Context) (*frame.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := s.files[s.next]
	s.next = (s.next + 1) % len(s.files)

	f, err := decodeFile(path)
	if err != nil {
		return nil, err
	}

	if f.Width != s.width || f.Height != s.height {
		return nil, fmt.Errorf("%w: %s is %dx%d, want %dx%d",
			ErrFrameSize, path, f.Width, f.Height, s.width, s.height)
	}

	s.seq++
	f.Seq = s.seq
	f.Timestamp = s.now()

	return f, nil
}

func decodeFile(path string) (*frame.Frame, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open frame: %w", err)
	}

	defer func() {
		_ = file.Close()
	}()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decode frame %s: %w", path, err)
	}

	f, err := frame.FromImage(img)
	if err != nil {
		return nil, fmt.Errorf("convert frame %s: %w", path, err)
	}

	return f, nil
}
