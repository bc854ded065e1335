package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/spf13/cobra"

	"github.com/dustin/go-humanize"

	"github.com/ferry-io/ferry/pkg/configuration"
	"github.com/ferry-io/ferry/pkg/delta"
	"github.com/ferry-io/ferry/pkg/logging"
	"github.com/ferry-io/ferry/pkg/storage/local"
	"github.com/ferry-io/ferry/pkg/transfer"
)

// planMain is the entry point for the plan command.
func planMain(command *cobra.Command, arguments []string) error {
	// Validate arguments.
	if len(arguments) != 2 {
		return errors.New("plan requires a source path and a destination path")
	}
	sourceArgument, destinationArgument := arguments[0], arguments[1]

	// Apply any log level specification.
	if err := applyLogLevel(); err != nil {
		return err
	}
	logger := logging.RootLogger.Sublogger("plan")

	// Load the global configuration and overlay plan flags.
	global, err := configuration.Load()
	if err != nil {
		return errors.Wrap(err, "unable to load global configuration")
	}
	flags := command.Flags()
	if flags.Changed("block-size") {
		if err := global.Transfer.BlockSize.UnmarshalText([]byte(planConfiguration.blockSize)); err != nil {
			return errors.Wrap(err, "invalid block size")
		}
	}
	if flags.Changed("hash") {
		if err := global.Transfer.Hash.UnmarshalText([]byte(planConfiguration.hash)); err != nil {
			return err
		}
	}
	deltaConfiguration := global.DeltaConfiguration()
	if err := deltaConfiguration.EnsureValid(); err != nil {
		return errors.Wrap(err, "invalid transfer configuration")
	}

	// If the destination is an existing directory, plan against the source's
	// base name within it, mirroring sync's behavior.
	if info, err := os.Stat(destinationArgument); err == nil && info.IsDir() {
		destinationArgument = filepath.Join(destinationArgument, filepath.Base(sourceArgument))
	}

	// Create a session rooted at the parent directories of each side.
	source := local.NewStore(filepath.Dir(sourceArgument), logger.Sublogger("source"))
	destination := local.NewStore(filepath.Dir(destinationArgument), logger.Sublogger("destination"))
	session, err := transfer.NewSession(source, destination, &transfer.SessionOptions{
		Configuration: deltaConfiguration,
		Logger:        logger,
	})
	if err != nil {
		return errors.Wrap(err, "unable to create session")
	}

	// Compute the plan.
	result, err := session.PlanFile(filepath.Base(sourceArgument), filepath.Base(destinationArgument))
	if err != nil {
		return err
	}

	// Report whole-file decisions.
	if result.Decision == delta.DecisionWholeFile {
		fmt.Printf("Decision: whole-file (%s)\n", result.Reason)
		return nil
	}

	// Report delta plans.
	fmt.Println("Decision: delta")
	fmt.Printf(
		"Plan: %d instructions (%d copy, %d literal)\n",
		result.Stats.TotalBlocks, result.Stats.BlocksMatched, result.Stats.BlocksLiteral,
	)
	fmt.Printf(
		"Would reuse %s, send %s (%.1f%% savings)\n",
		humanize.Bytes(result.Stats.BytesMatched),
		humanize.Bytes(result.Stats.BytesLiteral),
		100*result.Stats.SavingsRatio,
	)
	if planConfiguration.long {
		for _, instruction := range result.Plan {
			if instruction.IsCopy() {
				fmt.Printf("copy    offset=%d length=%d\n", instruction.Offset, instruction.Length)
			} else {
				fmt.Printf("literal length=%d\n", len(instruction.Data))
			}
		}
	}

	// Success.
	return nil
}

// planCommand is the plan command.
var planCommand = &cobra.Command{
	Use:          "plan <source> <destination>",
	Short:        "Show the transfer decision and instruction stream for a file without writing anything",
	RunE:         planMain,
	SilenceUsage: true,
}

// planConfiguration stores configuration for the plan command.
var planConfiguration struct {
	// help indicates whether or not to show help information and exit.
	help bool
	// blockSize specifies the signature block size.
	blockSize string
	// hash specifies the strong hashing algorithm.
	hash string
	// long indicates whether or not to print the full instruction stream.
	long bool
}

func init() {
	// Grab a handle for the command line flags.
	flags := planCommand.Flags()

	// Disable alphabetical sorting of flags in help output.
	flags.SortFlags = false

	// Manually add a help flag to override the default message. Cobra will
	// still implement its logic automatically.
	flags.BoolVarP(&planConfiguration.help, "help", "h", false, "Show help information")

	// Add plan flags.
	flags.StringVar(&planConfiguration.blockSize, "block-size", "", "Set the signature block size (e.g. \"128 KiB\", 0 selects automatically)")
	flags.StringVar(&planConfiguration.hash, "hash", "", "Set the strong hashing algorithm (sha256|blake3)")
	flags.BoolVarP(&planConfiguration.long, "long", "l", false, "Print the full instruction stream")
}
