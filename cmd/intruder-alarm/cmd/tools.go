package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oshokin/intruder-alarm/internal/config"
	"github.com/oshokin/intruder-alarm/internal/service/report"
)

var (
	// force allows init-config to replace an existing file.
	force bool
	// limit caps the number of listed events.
	limit int
	// journalPath overrides the journal configured in the settings file.
	journalPath string

	// errConfigExists is returned when init-config would overwrite a file.
	errConfigExists = errors.New("configuration file already exists, use --force to overwrite")

	// initConfigCmd writes the default settings.
	initConfigCmd = &cobra.Command{
		Use:   "init-config [path]",
		Short: "Write a configuration file with default settings.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultConfigFilename
			if len(args) > 0 {
				path = args[0]
			}

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%w: %s", errConfigExists, path)
			}

			if err := config.Save(path, config.Default()); err != nil {
				return err
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Configuration written to", path)

			return nil
		},
	}

	// eventsCmd lists journaled alarms.
	eventsCmd = &cobra.Command{
		Use:   "events",
		Short: "List recent alarms from the journal.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return report.Events(cmd.Context(), cmd.OutOrStdout(), &report.EventsOptions{
				ConfigPath:  configPath,
				JournalPath: journalPath,
				Limit:       limit,
			})
		},
	}

	// inspectCmd prints a stored snapshot event.
	inspectCmd = &cobra.Command{
		Use:   "inspect <snapshot>",
		Short: "Print the event stored next to a snapshot image.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return report.Inspect(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	initConfigCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")

	eventsCmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum number of events to list")
	eventsCmd.Flags().StringVar(&journalPath, "journal", "", "override the journal database path")
}
