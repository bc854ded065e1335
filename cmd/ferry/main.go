package main

import (
	"os"

	"github.com/pkg/errors"

	"github.com/spf13/cobra"

	"github.com/joho/godotenv"

	"github.com/ferry-io/ferry/pkg/ferry"
	"github.com/ferry-io/ferry/pkg/logging"
	"github.com/ferry-io/ferry/pkg/must"
)

// rootMain is the entry point for the root command.
func rootMain(command *cobra.Command, _ []string) error {
	// If no command has been specified, then print help information.
	must.CommandHelp(command, logging.RootLogger)

	// Success.
	return nil
}

// rootCommand is the root command.
var rootCommand = &cobra.Command{
	Use:          "ferry",
	Version:      ferry.Version,
	Short:        "Ferry moves files efficiently by transferring only changed blocks",
	RunE:         rootMain,
	SilenceUsage: true,
}

// rootConfiguration stores configuration for the root command.
var rootConfiguration struct {
	// help indicates whether or not to show help information and exit.
	help bool
	// logLevel specifies the log level for the command.
	logLevel string
}

func init() {
	// Disable Cobra's command sorting behavior. By default, it sorts commands
	// alphabetically in the help output.
	cobra.EnableCommandSorting = false

	// Disable Cobra's use of mousetrap. This is only relevant on Windows, but
	// it avoids pulling in unnecessary behavior.
	cobra.MousetrapHelpText = ""

	// Set the template used by the version flag.
	rootCommand.SetVersionTemplate("Ferry version {{ .Version }}\n")

	// Grab a handle for the command line flags.
	flags := rootCommand.Flags()

	// Disable alphabetical sorting of flags in help output.
	flags.SortFlags = false

	// Manually add a help flag to override the default message. Cobra will
	// still implement its logic automatically.
	flags.BoolVarP(&rootConfiguration.help, "help", "h", false, "Show help information")

	// Add the log level flag. It applies to all commands.
	rootCommand.PersistentFlags().StringVar(&rootConfiguration.logLevel, "log-level", "", "Set the log level (disabled|error|warn|info|debug|trace)")

	// Register commands. We do this here (rather than in individual init
	// functions) so that we can control the order.
	rootCommand.AddCommand(
		syncCommand,
		planCommand,
		cleanCommand,
		versionCommand,
		legalCommand,
	)
}

// applyLogLevel applies any log level specified on the command line or in the
// environment.
func applyLogLevel() error {
	name := rootConfiguration.logLevel
	if name == "" {
		name = os.Getenv("FERRY_LOG_LEVEL")
	}
	if name == "" {
		return nil
	}
	level, ok := logging.NameToLevel(name)
	if !ok {
		return errors.Errorf("invalid log level: %s", name)
	}
	logging.SetLevel(level)
	return nil
}

func main() {
	// Load any .env file from the current directory. Absence is not an error,
	// so failures here are ignored entirely.
	godotenv.Load()

	// Execute the root command.
	if err := rootCommand.Execute(); err != nil {
		os.Exit(1)
	}
}
