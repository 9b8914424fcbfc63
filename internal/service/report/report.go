package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/intruder-alarm/internal/config"
	"github.com/oshokin/intruder-alarm/internal/domain/alarm"
	"github.com/oshokin/intruder-alarm/internal/logger"
	"github.com/oshokin/intruder-alarm/internal/repository/journal"
	"github.com/oshokin/intruder-alarm/internal/repository/snapshot"
)

// EventsOptions selects the journal to read.
type EventsOptions struct {
	// ConfigPath is the settings file providing journal.path.
	ConfigPath string
	// JournalPath overrides the configured journal.
	JournalPath string
	// Limit caps the number of printed events.
	Limit int
}

// ErrJournalDisabled is returned when no journal path is configured.
var ErrJournalDisabled = errors.New("alarm journal is disabled, set journal.path")

// eventView is the printable form of an alarm event.
type eventView struct {
	ID        string `yaml:"id"`
	RaisedAt  string `yaml:"raised_at"`
	FrameSeq  uint64 `yaml:"frame_seq"`
	Measure   uint8  `yaml:"measure"`
	Baseline  uint8  `yaml:"baseline"`
	Threshold int    `yaml:"threshold"`
	Deviation int    `yaml:"deviation"`
	Image     string `yaml:"image,omitempty"`
}

func newEventView(event *alarm.Event, image string) eventView {
	return eventView{
		ID:        event.ID,
		RaisedAt:  event.Timestamp.UTC().Format(time.RFC3339),
		FrameSeq:  event.FrameSeq,
		Measure:   event.Measure,
		Baseline:  event.Baseline,
		Threshold: event.Threshold,
		Deviation: event.Deviation(),
		Image:     image,
	}
}

// Events prints the most recent journal entries as a table.
func Events(ctx context.Context, w io.Writer, opts *EventsOptions) error {
	ctx = logger.WithName(ctx, "report")

	path := opts.JournalPath
	if path == "" {
		cfg, err := config.Load(opts.ConfigPath)
		if err != nil {
			return fmt.Errorf("load settings: %w", err)
		}

		path = cfg.Journal.Path
	}

	if path == "" {
		return ErrJournalDisabled
	}

	j, err := journal.Open(ctx, path)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}

	defer func() {
		if err := j.Close(); err != nil {
			logger.ErrorKV(ctx, "Failed to close journal", "error", err)
		}
	}()

	entries, err := j.Recent(ctx, opts.Limit)
	if err != nil {
		return err
	}

	logger.DebugKV(ctx, "Journal read", "path", path, "entries", len(entries))

	table := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(table, "ID\tRAISED AT\tFRAME\tMEASURE\tBASELINE\tDEVIATION\tIMAGE")

	for _, entry := range entries {
		view := newEventView(entry.Event, entry.ImagePath)

		_, _ = fmt.Fprintf(table, "%s\t%s\t%d\t%d\t%d\t%+d\t%s\n",
			view.ID, view.RaisedAt, view.FrameSeq, view.Measure, view.Baseline, view.Deviation, view.Image)
	}

	if err = table.Flush(); err != nil {
		return fmt.Errorf("write events: %w", err)
	}

	return nil
}

// Inspect prints the event stored next to a snapshot as YAML.
// path may name the image or its sidecar.
func Inspect(ctx context.Context, w io.Writer, path string) error {
	event, err := snapshot.NewFileRepository(path).Load(ctx, path)
	if err != nil {
		return fmt.Errorf("load snapshot %s: %w", path, err)
	}

	image := path
	if filepath.Ext(path) == ".json" {
		image = ""
	}

	data, err := yaml.Marshal(newEventView(event, image))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if _, err = w.Write(data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	return nil
}
