package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Register the pure-Go SQLite driver.

	"github.com/oshokin/intruder-alarm/internal/domain/alarm"
)

const schema = `
CREATE TABLE IF NOT EXISTS alarm_events (
	id         TEXT PRIMARY KEY,
	raised_at  INTEGER NOT NULL,
	frame_seq  INTEGER NOT NULL,
	measure    INTEGER NOT NULL,
	baseline   INTEGER NOT NULL,
	threshold  INTEGER NOT NULL,
	image_path TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_alarm_events_raised_at ON alarm_events(raised_at);
`

// ErrNilEvent is returned when Record receives no event.
var ErrNilEvent = errors.New("event must be provided")

// Entry is a recorded alarm.
type Entry struct {
	// Event is the alarm that was raised.
	Event *alarm.Event
	// ImagePath is where the snapshot was written, empty if persisting failed.
	ImagePath string
}

// Journal stores alarm events in a SQLite database.
type Journal struct {
	// db is the underlying connection pool.
	db *sql.DB
}

// Open opens (or creates) the journal database at path and applies the schema.
func Open(ctx context.Context, path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	// A single writer keeps SQLite free of lock contention.
	db.SetMaxOpenConns(1)

	if _, err = db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err = db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("apply journal schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close releases the database.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}

	return j.db.Close()
}

// Record inserts an alarm event.
func (j *Journal) Record(ctx context.Context, event *alarm.Event, imagePath string) error {
	if event == nil {
		return ErrNilEvent
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO alarm_events (id, raised_at, frame_seq, measure, baseline, threshold, image_path)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.Timestamp.UnixNano(),
		int64(event.FrameSeq), //nolint:gosec // Sequence numbers stay far below MaxInt64.
		int(event.Measure),
		int(event.Baseline),
		event.Threshold,
		imagePath,
	)
	if err != nil {
		return fmt.Errorf("insert alarm event: %w", err)
	}

	return nil
}

// Recent returns up to limit events, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, raised_at, frame_seq, measure, baseline, threshold, image_path
		 FROM alarm_events ORDER BY raised_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query alarm events: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var entries []Entry

	for rows.Next() {
		var (
			raisedAt                 int64
			seq                      int64
			measure, base, threshold int
			entry                    Entry
			event                    alarm.Event
		)

		if err = rows.Scan(&event.ID, &raisedAt, &seq, &measure, &base, &threshold, &entry.ImagePath); err != nil {
			return nil, fmt.Errorf("scan alarm event: %w", err)
		}

		event.Timestamp = time.Unix(0, raisedAt).UTC()
		event.FrameSeq = uint64(seq)   //nolint:gosec // Stored from a uint64.
		event.Measure = uint8(measure) //nolint:gosec // Stored from a uint8.
		event.Baseline = uint8(base)   //nolint:gosec // Stored from a uint8.
		event.Threshold = threshold
		entry.Event = &event

		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alarm events: %w", err)
	}

	return entries, nil
}
