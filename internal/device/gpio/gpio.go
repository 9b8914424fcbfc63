package gpio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/oshokin/intruder-alarm/internal/config"
	"github.com/oshokin/intruder-alarm/internal/domain/alarm"
	"github.com/oshokin/intruder-alarm/internal/logger"
)

// Bank sets the level of the indicator channels.
type Bank interface {
	Set(ctx context.Context, ch alarm.Channel, asserted bool) error
}

// ErrUnknownChannel is returned for a channel with no configured line.
var ErrUnknownChannel = errors.New("unknown indicator channel")

// Line is a sysfs GPIO value file.
type Line struct {
	// Path is the value file of an exported output line.
	Path string
	// ActiveLow inverts the level written to the file.
	ActiveLow bool
}

// SysfsBank writes indicator levels to sysfs value files.
type SysfsBank struct {
	// lines maps each channel to its output.
	lines map[alarm.Channel]Line
}

// NewSysfsBank wires the two indicator lines.
func NewSysfsBank(surveillance, intruder Line) *SysfsBank {
	return &SysfsBank{
		lines: map[alarm.Channel]Line{
			alarm.ChannelSurveillance: surveillance,
			alarm.ChannelIntruder:     intruder,
		},
	}
}

// Set writes "1" or "0" to the channel's value file, honoring polarity.
func (b *SysfsBank) Set(_ context.Context, ch alarm.Channel, asserted bool) error {
	line, ok := b.lines[ch]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, ch)
	}

	value := "0"
	if asserted != line.ActiveLow {
		value = "1"
	}

	if err := os.WriteFile(filepath.Clean(line.Path), []byte(value), config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write %s line: %w", ch, err)
	}

	return nil
}

// LogBank records levels in memory and logs every change.
// It replaces real outputs on hosts without GPIO.
type LogBank struct {
	// levels holds the last level set per channel.
	levels map[alarm.Channel]bool
	// mu protects levels.
	mu sync.Mutex
}

// NewLogBank creates a bank with every channel de-asserted.
func NewLogBank() *LogBank {
	return &LogBank{
		levels: map[alarm.Channel]bool{
			alarm.ChannelSurveillance: false,
			alarm.ChannelIntruder:     false,
		},
	}
}

// Set stores the level and logs it when it changes.
func (b *LogBank) Set(ctx context.Context, ch alarm.Channel, asserted bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	previous, ok := b.levels[ch]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, ch)
	}

	b.levels[ch] = asserted

	if previous != asserted {
		logger.DebugKV(ctx, "Indicator changed", "channel", ch.String(), "asserted", asserted)
	}

	return nil
}

// Level returns the last level set on ch.
func (b *LogBank) Level(ch alarm.Channel) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.levels[ch]
}

// New builds the bank selected by the configuration.
//
//nolint:ireturn // The driver is chosen at runtime.
func New(cfg config.GPIO) (Bank, error) {
	switch cfg.Driver {
	case config.DriverLog, "":
		return NewLogBank(), nil
	case config.DriverSysfs:
		return NewSysfsBank(
			Line{Path: cfg.Surveillance.Path, ActiveLow: cfg.Surveillance.ActiveLow},
			Line{Path: cfg.Intruder.Path, ActiveLow: cfg.Intruder.ActiveLow},
		), nil
	default:
		return nil, fmt.Errorf("unsupported gpio driver %q", cfg.Driver)
	}
}
