package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/spf13/cobra"

	"github.com/ferry-io/ferry/pkg/filesystem"
	"github.com/ferry-io/ferry/pkg/logging"
	"github.com/ferry-io/ferry/pkg/manifest"
)

// cleanMain is the entry point for the clean command.
func cleanMain(command *cobra.Command, arguments []string) error {
	// Apply any log level specification.
	if err := applyLogLevel(); err != nil {
		return err
	}
	logger := logging.RootLogger.Sublogger("clean")

	// Remove orphaned temporary files beneath any specified directories.
	// These are left behind only if a transfer was interrupted between
	// staging and publish.
	for _, argument := range arguments {
		removed, err := filesystem.RemoveTemporaryFiles(argument)
		if err != nil {
			return errors.Wrapf(err, "unable to remove temporary files beneath %s", argument)
		}
		fmt.Printf("Removed %d temporary file(s) beneath %s\n", removed, argument)
	}

	// Expire stale manifest entries. The database is only created on demand
	// by transfers, so its absence means there's nothing to clean.
	dataDirectory, err := filesystem.Ferry(false)
	if err != nil {
		return errors.Wrap(err, "unable to compute Ferry data directory")
	}
	databasePath := filepath.Join(dataDirectory, filesystem.FerryManifestDatabaseName)
	store, err := manifest.OpenBoltStore(databasePath, logger)
	if err != nil {
		logger.Debugf("skipping manifest cleaning: %v", err)
		return nil
	}
	defer store.Close()
	removed, err := store.Clean(cleanConfiguration.maximumAge)
	if err != nil {
		return errors.Wrap(err, "unable to clean manifest database")
	}
	fmt.Printf("Removed %d stale manifest entries\n", removed)

	// Success.
	return nil
}

// cleanCommand is the clean command.
var cleanCommand = &cobra.Command{
	Use:          "clean [<directory>...]",
	Short:        "Remove orphaned temporary files and expire stale manifest entries",
	RunE:         cleanMain,
	SilenceUsage: true,
}

// cleanConfiguration stores configuration for the clean command.
var cleanConfiguration struct {
	// help indicates whether or not to show help information and exit.
	help bool
	// maximumAge specifies the age beyond which manifest entries are removed.
	maximumAge time.Duration
}

func init() {
	// Grab a handle for the command line flags.
	flags := cleanCommand.Flags()

	// Disable alphabetical sorting of flags in help output.
	flags.SortFlags = false

	// Manually add a help flag to override the default message. Cobra will
	// still implement its logic automatically.
	flags.BoolVarP(&cleanConfiguration.help, "help", "h", false, "Show help information")

	// Add clean flags.
	flags.DurationVar(&cleanConfiguration.maximumAge, "max-age", 30*24*time.Hour, "Set the age beyond which manifest entries are removed")
}
