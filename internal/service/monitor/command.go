package monitor

import (
	"context"
	"fmt"

	"github.com/oshokin/intruder-alarm/internal/config"
	"github.com/oshokin/intruder-alarm/internal/device/camera"
	"github.com/oshokin/intruder-alarm/internal/device/gpio"
	"github.com/oshokin/intruder-alarm/internal/domain/alarm"
	"github.com/oshokin/intruder-alarm/internal/logger"
	"github.com/oshokin/intruder-alarm/internal/repository/journal"
	"github.com/oshokin/intruder-alarm/internal/repository/snapshot"
)

// Options controls the monitor process and configuration overrides.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// SourceDir overrides the camera source directory.
	SourceDir string
	// Policy overrides the alarm policy.
	Policy string
	// LogLevel overrides the configured log level.
	LogLevel string
}

// Run loads the configuration, wires the collaborators and blocks until the
// alarm is final, the context is canceled or the camera fails for good.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "intruder-alarm")

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	level, err := logger.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}

	logger.SetLevel(level)
	defer logger.Sync()

	settings, err := cfg.AlarmSettings()
	if err != nil {
		return fmt.Errorf("alarm settings: %w", err)
	}

	machine, err := alarm.NewMachine(settings)
	if err != nil {
		return fmt.Errorf("create alarm machine: %w", err)
	}

	directory, err := camera.NewDirectorySource(cfg.Camera.SourceDir, cfg.Camera.Width, cfg.Camera.Height)
	if err != nil {
		return fmt.Errorf("open camera: %w", err)
	}

	bank, err := gpio.New(cfg.GPIO)
	if err != nil {
		return fmt.Errorf("open indicators: %w", err)
	}

	m := &monitor{
		source: camera.NewRetrying(directory, cfg.Camera.MaxAttempts, cfg.Camera.RetryDelay),
		bank:   bank,
		snapshots: snapshot.NewFileRepository(
			cfg.Snapshot.Path,
			snapshot.WithKeepAll(cfg.Snapshot.KeepAll),
			snapshot.WithAnnotation(cfg.Snapshot.Annotate),
		),
		machine:      machine,
		startupDelay: cfg.StartupDelay,
	}

	if cfg.Journal.Path != "" {
		j, err := journal.Open(ctx, cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}

		defer func() {
			if err := j.Close(); err != nil {
				logger.ErrorKV(ctx, "Failed to close journal", "error", err)
			}
		}()

		m.journal = j
	}

	logger.InfoKV(ctx, "Intruder alarm starting",
		"source_dir", cfg.Camera.SourceDir,
		"frame_size", fmt.Sprintf("%dx%d", cfg.Camera.Width, cfg.Camera.Height),
		"gpio_driver", cfg.GPIO.Driver,
		"snapshot", cfg.Snapshot.Path,
		"startup_delay", cfg.StartupDelay.String(),
	)

	return m.run(ctx)
}

// loadConfig reads the settings file and applies command line overrides.
func loadConfig(opts *Options) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	if opts.SourceDir != "" {
		cfg.Camera.SourceDir = opts.SourceDir
	}

	if opts.Policy != "" {
		cfg.Policy = opts.Policy
	}

	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}

	if err = config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate settings: %w", err)
	}

	return cfg, nil
}
