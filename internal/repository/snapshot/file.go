package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/image/bmp"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/intruder-alarm/internal/config"
	"github.com/oshokin/intruder-alarm/internal/domain/alarm"
	"github.com/oshokin/intruder-alarm/internal/domain/frame"
)

// Snapshot is a triggering frame together with its alarm event.
type Snapshot struct {
	// Event describes the alarm.
	Event *alarm.Event
	// Frame is the image that triggered the alarm.
	Frame *frame.Frame
}

// Repository defines persistence operations for snapshots.
type Repository interface {
	Save(ctx context.Context, snapshot *Snapshot) (string, error)
	Load(ctx context.Context, path string) (*alarm.Event, error)
}

var (
	// ErrNotFound is returned when a sidecar file does not exist.
	ErrNotFound = errors.New("snapshot not found")
	// errIncomplete is returned when a snapshot lacks its event or frame.
	errIncomplete = errors.New("snapshot requires an event and a frame")
)

// Option configures a FileRepository.
type Option func(*FileRepository)

// WithKeepAll makes every alarm write its own file suffixed with the event id.
func WithKeepAll(keepAll bool) Option {
	return func(r *FileRepository) {
		r.keepAll = keepAll
	}
}

// WithAnnotation draws marker bands on stored frames.
func WithAnnotation(annotate bool) Option {
	return func(r *FileRepository) {
		r.annotate = annotate
	}
}

// FileRepository stores snapshots on the local filesystem.
type FileRepository struct {
	// path is the image path; the sidecar shares its name with a .json extension.
	path string
	// keepAll suffixes file names with the event id.
	keepAll bool
	// annotate marks the stored frame.
	annotate bool
	// mu serializes writes to the same path.
	mu sync.Mutex
}

// NewFileRepository creates a repository writing images to path.
func NewFileRepository(path string, opts ...Option) *FileRepository {
	r := &FileRepository{
		path: filepath.Clean(path),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Save writes the frame and its sidecar and returns the image path.
func (r *FileRepository) Save(_ context.Context, snapshot *Snapshot) (string, error) {
	if snapshot == nil || snapshot.Event == nil || snapshot.Frame == nil {
		return "", errIncomplete
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	target := r.imagePath(snapshot.Event)

	if dir := filepath.Dir(target); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return "", fmt.Errorf("create snapshot directory: %w", err)
		}
	}

	img := snapshot.Frame
	if r.annotate {
		img = frame.Annotate(img)
	}

	if err := writeBitmap(target, img); err != nil {
		return "", err
	}

	sidecar, err := toProto(snapshot, target)
	if err != nil {
		return "", fmt.Errorf("encode event: %w", err)
	}

	data, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(sidecar)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	if err = os.WriteFile(SidecarPath(target), data, config.DefaultFilePermissions); err != nil {
		return "", fmt.Errorf("write event file: %w", err)
	}

	return target, nil
}

// Load reads an event from a sidecar file, or from the sidecar of an image path.
func (r *FileRepository) Load(_ context.Context, path string) (*alarm.Event, error) {
	if !strings.EqualFold(filepath.Ext(path), ".json") {
		path = SidecarPath(path)
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read event file: %w", err)
	}

	var sidecar structpb.Struct
	if err = protojson.Unmarshal(contents, &sidecar); err != nil {
		return nil, fmt.Errorf("decode event file: %w", err)
	}

	return fromProto(&sidecar)
}

// SidecarPath returns the event file path belonging to an image path.
func SidecarPath(imagePath string) string {
	return strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + ".json"
}

// imagePath returns the configured path, suffixed with the event id when every snapshot is kept.
func (r *FileRepository) imagePath(event *alarm.Event) string {
	if !r.keepAll {
		return r.path
	}

	ext := filepath.Ext(r.path)
	stamp := event.Timestamp.UTC().Format("20060102T150405")

	return fmt.Sprintf("%s-%s-%s%s", strings.TrimSuffix(r.path, ext), stamp, shortID(event.ID), ext)
}

func shortID(id string) string {
	const length = 8

	if len(id) <= length {
		return id
	}

	return id[:length]
}

func writeBitmap(path string, f *frame.Frame) error {
	file, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, config.DefaultFilePermissions)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}

	if err = bmp.Encode(file, f.Image()); err != nil {
		_ = file.Close()

		return fmt.Errorf("encode snapshot: %w", err)
	}

	if err = file.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}

	return nil
}

// toProto converts a snapshot into the sidecar representation.
func toProto(snapshot *Snapshot, imagePath string) (*structpb.Struct, error) {
	event := snapshot.Event

	return structpb.NewStruct(map[string]any{
		"id":        event.ID,
		"timestamp": event.Timestamp.UTC().Format(time.RFC3339Nano),
		"frame_seq": float64(event.FrameSeq),
		"measure":   float64(event.Measure),
		"baseline":  float64(event.Baseline),
		"threshold": float64(event.Threshold),
		"deviation": float64(event.Deviation()),
		"image":     filepath.Base(imagePath),
		"width":     float64(snapshot.Frame.Width),
		"height":    float64(snapshot.Frame.Height),
	})
}

// fromProto converts a sidecar back into an alarm event.
func fromProto(sidecar *structpb.Struct) (*alarm.Event, error) {
	fields := sidecar.GetFields()

	var timestamp time.Time

	if raw := fields["timestamp"].GetStringValue(); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("parse timestamp: %w", err)
		}

		timestamp = parsed
	}

	return &alarm.Event{
		ID:        fields["id"].GetStringValue(),
		Timestamp: timestamp,
		FrameSeq:  uint64(fields["frame_seq"].GetNumberValue()),
		Measure:   uint8(fields["measure"].GetNumberValue()),
		Baseline:  uint8(fields["baseline"].GetNumberValue()),
		Threshold: int(fields["threshold"].GetNumberValue()),
	}, nil
}
