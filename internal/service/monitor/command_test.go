package monitor

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"

	"github.com/oshokin/intruder-alarm/internal/config"
	"github.com/oshokin/intruder-alarm/internal/repository/journal"
	"github.com/oshokin/intruder-alarm/internal/repository/snapshot"
)

// writeFrame writes a uniform 4x4 bitmap.
func writeFrame(t *testing.T, path string, v uint8) {
	t.Helper()

	img := image.NewGray(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = v
	}

	file, err := os.Create(path)
	require.NoError(t, err)

	defer func() {
		require.NoError(t, file.Close())
	}()

	require.NoError(t, bmp.Encode(file, img))
}

// writeSettings stores a terminate-policy configuration rooted at dir.
func writeSettings(t *testing.T, dir string) string {
	t.Helper()

	cfg := config.Default()
	cfg.HistoryLength = 3
	cfg.Threshold = 3
	cfg.Policy = "terminate"
	cfg.StartupDelay = 0
	cfg.LogLevel = "error"
	cfg.Camera.Width = 4
	cfg.Camera.Height = 4
	cfg.Camera.SourceDir = filepath.Join(dir, "frames")
	cfg.Snapshot.Path = filepath.Join(dir, "intruder.bmp")
	cfg.Journal.Path = filepath.Join(dir, "journal.db")

	path := filepath.Join(dir, config.DefaultConfigFilename)
	require.NoError(t, config.Save(path, cfg))

	return path
}

// TestRun_DetectsIntruderFromDirectory runs the whole pipeline over bitmap files.
func TestRun_DetectsIntruderFromDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	frames := filepath.Join(dir, "frames")
	require.NoError(t, os.Mkdir(frames, 0o750))

	for i, v := range []uint8{50, 50, 50, 90} {
		writeFrame(t, filepath.Join(frames, fmt.Sprintf("frame-%02d.bmp", i)), v)
	}

	ctx := context.Background()
	require.NoError(t, Run(ctx, &Options{ConfigPath: writeSettings(t, dir)}))

	imagePath := filepath.Join(dir, "intruder.bmp")
	require.FileExists(t, imagePath)

	event, err := snapshot.NewFileRepository(imagePath).Load(ctx, snapshot.SidecarPath(imagePath))
	require.NoError(t, err)
	require.Equal(t, uint8(90), event.Measure)
	require.Equal(t, uint8(50), event.Baseline)
	require.Equal(t, uint64(4), event.FrameSeq)

	j, err := journal.Open(ctx, filepath.Join(dir, "journal.db"))
	require.NoError(t, err)

	defer func() {
		require.NoError(t, j.Close())
	}()

	entries, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, event.ID, entries[0].Event.ID)
	require.Equal(t, imagePath, entries[0].ImagePath)
}

// TestRun_MissingSourceDirectory fails before any capture.
func TestRun_MissingSourceDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	err := Run(context.Background(), &Options{ConfigPath: writeSettings(t, dir)})
	require.ErrorContains(t, err, "open camera")
}

// TestLoadConfig_Overrides applies command line values over the file.
func TestLoadConfig_Overrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	cfg, err := loadConfig(&Options{
		ConfigPath: writeSettings(t, dir),
		SourceDir:  "elsewhere",
		Policy:     "self-reset",
		LogLevel:   "debug",
	})
	require.NoError(t, err)
	require.Equal(t, "elsewhere", cfg.Camera.SourceDir)
	require.Equal(t, "self-reset", cfg.Policy)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, 3, cfg.HistoryLength)
}

// TestLoadConfig_InvalidOverride rejects an unknown policy.
func TestLoadConfig_InvalidOverride(t *testing.T) {
	t.Parallel()

	_, err := loadConfig(&Options{
		ConfigPath: writeSettings(t, t.TempDir()),
		Policy:     "panic",
	})
	require.ErrorContains(t, err, "validate settings")
}
