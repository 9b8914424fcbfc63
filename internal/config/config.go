package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/intruder-alarm/internal/domain/alarm"
	"github.com/oshokin/intruder-alarm/internal/logger"
)

// Config holds every setting of the alarm process.
type Config struct {
	// HistoryLength is the number of measures averaged into the baseline.
	HistoryLength int `yaml:"history_length"`
	// Threshold is the tolerated deviation from the baseline.
	Threshold int `yaml:"threshold"`
	// Policy is either "terminate" or "self-reset".
	Policy string `yaml:"policy"`
	// Cooldown is the pause after an alarm before re-arming (self-reset only).
	Cooldown time.Duration `yaml:"cooldown"`
	// StartupDelay is the pause before the first capture.
	StartupDelay time.Duration `yaml:"startup_delay"`
	// LogLevel is the minimum zap level name.
	LogLevel string `yaml:"log_level"`
	// Camera configures frame acquisition.
	Camera Camera `yaml:"camera"`
	// GPIO configures the indicator outputs.
	GPIO GPIO `yaml:"gpio"`
	// Snapshot configures intruder image persistence.
	Snapshot Snapshot `yaml:"snapshot"`
	// Journal configures the optional SQLite alarm journal.
	Journal Journal `yaml:"journal"`
}

// Camera configures the frame source.
type Camera struct {
	// Width is the expected frame width in pixels.
	Width int `yaml:"width"`
	// Height is the expected frame height in pixels.
	Height int `yaml:"height"`
	// SourceDir is the directory the frames are read from.
	SourceDir string `yaml:"source_dir"`
	// MaxAttempts bounds the capture retries for a single frame.
	MaxAttempts int `yaml:"max_attempts"`
	// RetryDelay is the pause between capture attempts.
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// GPIO configures the indicator lines.
type GPIO struct {
	// Driver is "log" or "sysfs".
	Driver string `yaml:"driver"`
	// Surveillance is the line blinking while monitoring.
	Surveillance Line `yaml:"surveillance"`
	// Intruder is the line asserted during an alarm.
	Intruder Line `yaml:"intruder"`
}

// Line is a single sysfs GPIO value file.
type Line struct {
	// Path is the value file, e.g. /sys/class/gpio/gpio17/value.
	Path string `yaml:"path"`
	// ActiveLow inverts the written level.
	ActiveLow bool `yaml:"active_low"`
}

// Snapshot configures how triggering frames are stored.
type Snapshot struct {
	// Path is the bitmap file written on alarm.
	Path string `yaml:"path"`
	// KeepAll suffixes the event id so every alarm keeps its own file.
	KeepAll bool `yaml:"keep_all"`
	// Annotate draws marker bands on the stored frame.
	Annotate bool `yaml:"annotate"`
}

// Journal configures the alarm journal.
type Journal struct {
	// Path is the SQLite database file; empty disables the journal.
	Path string `yaml:"path"`
}

// GPIO driver names.
const (
	DriverLog   = "log"
	DriverSysfs = "sysfs"
)

const (
	// DefaultConfigFilename is the default settings file.
	DefaultConfigFilename = "intruder-alarm.yaml"
	// DefaultHistoryLength is the default number of buffered measures.
	DefaultHistoryLength = 20
	// DefaultThreshold is the default deviation band.
	DefaultThreshold = 2
	// DefaultCooldown is the default wait after an alarm.
	DefaultCooldown = 2 * time.Second
	// DefaultStartupDelay is the default wait before the first capture.
	DefaultStartupDelay = 5 * time.Second
	// DefaultWidth is the default frame width.
	DefaultWidth = 752
	// DefaultHeight is the default frame height.
	DefaultHeight = 480
	// DefaultSourceDir is the default frame directory.
	DefaultSourceDir = "frames"
	// DefaultMaxAttempts is the default capture retry ceiling.
	DefaultMaxAttempts = 5
	// DefaultRetryDelay is the default pause between capture attempts.
	DefaultRetryDelay = 100 * time.Millisecond
	// DefaultSnapshotPath is the default intruder image path.
	DefaultSnapshotPath = "intruder.bmp"
	// DefaultFilePermissions is the permission of files written by the process.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errHistoryLength is returned for a non-positive history length.
	errHistoryLength = errors.New("history_length must be positive")
	// errThreshold is returned for a negative threshold.
	errThreshold = errors.New("threshold must not be negative")
	// errCooldown is returned when the self-reset policy has no cooldown.
	errCooldown = errors.New("cooldown must be positive for the self-reset policy")
	// errStartupDelay is returned for a negative startup delay.
	errStartupDelay = errors.New("startup_delay must not be negative")
	// errFrameSize is returned for non-positive frame dimensions.
	errFrameSize = errors.New("camera width and height must be positive")
	// errSourceDir is returned when no frame directory is configured.
	errSourceDir = errors.New("camera source_dir must be provided")
	// errDriver is returned for an unknown GPIO driver.
	errDriver = errors.New("gpio driver must be log or sysfs")
	// errLinePath is returned when the sysfs driver lacks a line path.
	errLinePath = errors.New("gpio line path must be provided for the sysfs driver")
	// errSnapshotPath is returned when no snapshot path is configured.
	errSnapshotPath = errors.New("snapshot path must be provided")
)

// Default returns the settings used when a key is missing from the file.
func Default() *Config {
	return &Config{
		HistoryLength: DefaultHistoryLength,
		Threshold:     DefaultThreshold,
		Policy:        alarm.PolicySelfReset.String(),
		Cooldown:      DefaultCooldown,
		StartupDelay:  DefaultStartupDelay,
		LogLevel:      "info",
		Camera: Camera{
			Width:       DefaultWidth,
			Height:      DefaultHeight,
			SourceDir:   DefaultSourceDir,
			MaxAttempts: DefaultMaxAttempts,
			RetryDelay:  DefaultRetryDelay,
		},
		GPIO: GPIO{
			Driver: DriverLog,
		},
		Snapshot: Snapshot{
			Path: DefaultSnapshotPath,
		},
	}
}

// Load reads configuration from path on top of Default and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save validates cfg and writes it to path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks settings and fills retry defaults left at zero.
//
//nolint:cyclop // A flat list of checks reads better than helpers.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if settings.HistoryLength <= 0 {
		return errHistoryLength
	}

	if settings.Threshold < 0 {
		return errThreshold
	}

	policy, err := alarm.ParsePolicy(settings.Policy)
	if err != nil {
		return fmt.Errorf("invalid policy: %w", err)
	}

	if policy == alarm.PolicySelfReset && settings.Cooldown <= 0 {
		return errCooldown
	}

	if settings.StartupDelay < 0 {
		return errStartupDelay
	}

	if _, err := logger.ParseLogLevel(settings.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	if settings.Camera.Width <= 0 || settings.Camera.Height <= 0 {
		return errFrameSize
	}

	if settings.Camera.SourceDir == "" {
		return errSourceDir
	}

	// Retry settings are optional.
	if settings.Camera.MaxAttempts <= 0 {
		settings.Camera.MaxAttempts = DefaultMaxAttempts
	}

	if settings.Camera.RetryDelay < 0 {
		settings.Camera.RetryDelay = DefaultRetryDelay
	}

	switch settings.GPIO.Driver {
	case DriverLog:
	case DriverSysfs:
		if settings.GPIO.Surveillance.Path == "" || settings.GPIO.Intruder.Path == "" {
			return errLinePath
		}
	default:
		return fmt.Errorf("%w: %q", errDriver, settings.GPIO.Driver)
	}

	if settings.Snapshot.Path == "" {
		return errSnapshotPath
	}

	return nil
}

// AlarmSettings converts the configuration into state machine settings.
func (c *Config) AlarmSettings() (alarm.Settings, error) {
	policy, err := alarm.ParsePolicy(c.Policy)
	if err != nil {
		return alarm.Settings{}, err
	}

	return alarm.Settings{
		HistoryLength: c.HistoryLength,
		Threshold:     c.Threshold,
		Policy:        policy,
		Cooldown:      c.Cooldown,
	}, nil
}
