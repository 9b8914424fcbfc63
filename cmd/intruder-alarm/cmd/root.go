package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/intruder-alarm/internal/config"
	"github.com/oshokin/intruder-alarm/internal/service/monitor"
	"github.com/oshokin/intruder-alarm/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// sourceDir overrides the directory frames are read from.
	sourceDir string
	// policy overrides the alarm policy.
	policy string
	// logLevel overrides the configured log level.
	logLevel string

	// rootCmd represents the base command for watching the camera.
	rootCmd = &cobra.Command{
		Use:   "intruder-alarm",
		Short: "Watch a fixed camera and raise an alarm on brightness changes.",
		Long: `Monitors grayscale frames from a fixed camera and raises an alarm when the mean
brightness of a frame leaves the band around the average of recent frames.

While everything is calm the surveillance indicator blinks once per frame.
On alarm the intruder indicator is asserted and the triggering frame is stored
as a bitmap with a JSON event file next to it.

With the self-reset policy monitoring resumes after a cool-down with a freshly
captured history; with the terminate policy the process exits after the alarm.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &monitor.Options{
				ConfigPath: configPath,
				SourceDir:  sourceDir,
				Policy:     policy,
				LogLevel:   logLevel,
			}

			return monitor.Run(ctx, options)
		},
	}
)

// Execute runs the intruder-alarm CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVar(&sourceDir, "source-dir", "", "override the directory frames are read from")
	rootCmd.Flags().StringVar(&policy, "policy", "", "override the alarm policy (terminate or self-reset)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "override the log level")

	rootCmd.AddCommand(initConfigCmd, eventsCmd, inspectCmd)
}
