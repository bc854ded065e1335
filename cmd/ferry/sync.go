package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dustin/go-humanize"

	"github.com/mattn/go-isatty"

	"github.com/ferry-io/ferry/cmd"
	"github.com/ferry-io/ferry/pkg/configuration"
	"github.com/ferry-io/ferry/pkg/delta"
	"github.com/ferry-io/ferry/pkg/filesystem"
	"github.com/ferry-io/ferry/pkg/logging"
	"github.com/ferry-io/ferry/pkg/manifest"
	"github.com/ferry-io/ferry/pkg/storage/local"
	"github.com/ferry-io/ferry/pkg/telemetry"
	"github.com/ferry-io/ferry/pkg/transfer"
)

// statusRecorder is a telemetry recorder that prints per-file progress to a
// status line while delegating all notifications to an inner recorder.
type statusRecorder struct {
	telemetry.Recorder
	// printer is the status line printer.
	printer *cmd.StatusLinePrinter
}

// OperationBegan implements telemetry.Recorder.OperationBegan.
func (r *statusRecorder) OperationBegan(operation, source, destination string) {
	r.printer.Print(fmt.Sprintf("Transferring %s", source))
	r.Recorder.OperationBegan(operation, source, destination)
}

// resolveConfiguration loads the global configuration file and overlays any
// transfer flags that were explicitly set on the command line.
func resolveConfiguration(flags *pflag.FlagSet) (*configuration.Configuration, error) {
	// Load the global configuration, using defaults if it doesn't exist.
	global, err := configuration.Load()
	if err != nil {
		return nil, errors.Wrap(err, "unable to load global configuration")
	}

	// Overlay flags. Only flags that were explicitly set take precedence over
	// file-based values.
	if flags.Changed("block-size") {
		if err := global.Transfer.BlockSize.UnmarshalText([]byte(syncConfiguration.blockSize)); err != nil {
			return nil, errors.Wrap(err, "invalid block size")
		}
	}
	if flags.Changed("hash") {
		if err := global.Transfer.Hash.UnmarshalText([]byte(syncConfiguration.hash)); err != nil {
			return nil, err
		}
	}
	if flags.Changed("parallel") {
		global.Transfer.ParallelHashing = syncConfiguration.parallel
	}
	if flags.Changed("min-file-size") {
		if err := global.Transfer.MinimumFileSize.UnmarshalText([]byte(syncConfiguration.minimumFileSize)); err != nil {
			return nil, errors.Wrap(err, "invalid minimum file size")
		}
	}
	if flags.Changed("max-size-ratio") {
		global.Transfer.MaximumSizeRatio = syncConfiguration.maximumSizeRatio
	}
	if flags.Changed("whole-file") {
		global.Transfer.WholeFile = syncConfiguration.wholeFile
	}
	if flags.Changed("jobs") {
		global.Transfer.Jobs = syncConfiguration.jobs
	}
	if flags.Changed("ignore") {
		global.Ignore.Default = append(global.Ignore.Default, syncConfiguration.ignores...)
	}
	if flags.Changed("manifest") {
		if err := global.Manifest.Mode.UnmarshalText([]byte(syncConfiguration.manifest)); err != nil {
			return nil, err
		}
	}

	// Success.
	return global, nil
}

// openManifestStore opens the manifest store indicated by the specified mode,
// returning nil if no store should be used. The disk-backed store lives in
// the Ferry data directory, which is created if necessary.
func openManifestStore(mode configuration.ManifestMode, logger *logging.Logger) (manifest.Store, error) {
	switch mode {
	case configuration.ManifestModeDefault, configuration.ManifestModeNone:
		return nil, nil
	case configuration.ManifestModeMemory:
		return manifest.NewMemoryStore(0), nil
	case configuration.ManifestModeDisk:
		dataDirectory, err := filesystem.Ferry(true)
		if err != nil {
			return nil, errors.Wrap(err, "unable to compute Ferry data directory")
		}
		return manifest.OpenBoltStore(filepath.Join(dataDirectory, filesystem.FerryManifestDatabaseName), logger)
	default:
		panic("unhandled manifest mode")
	}
}

// syncMain is the entry point for the sync command.
func syncMain(command *cobra.Command, arguments []string) error {
	// Validate arguments.
	if len(arguments) != 2 {
		return errors.New("sync requires a source path and a destination path")
	}
	sourceArgument, destinationArgument := arguments[0], arguments[1]

	// Apply any log level specification.
	if err := applyLogLevel(); err != nil {
		return err
	}
	logger := logging.RootLogger.Sublogger("sync")

	// Resolve the effective configuration.
	global, err := resolveConfiguration(command.Flags())
	if err != nil {
		return err
	}
	deltaConfiguration := global.DeltaConfiguration()
	if err := deltaConfiguration.EnsureValid(); err != nil {
		return errors.Wrap(err, "invalid transfer configuration")
	}

	// Stat the source to decide between single-file and directory modes.
	sourceInfo, err := os.Stat(sourceArgument)
	if err != nil {
		return errors.Wrap(err, "unable to stat source")
	}

	// Set up tracing. The shutdown function flushes any pending spans.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	shutdownTracing, err := telemetry.SetupTracing(ctx)
	if err != nil {
		return errors.Wrap(err, "unable to initialize tracing")
	}
	defer shutdownTracing(context.Background())

	// Build the recorder stack: tracing spans, wrapped with status line
	// output when standard output is a terminal.
	var recorder telemetry.Recorder = telemetry.NewTracingRecorder(logger)
	var printer *cmd.StatusLinePrinter
	if isatty.IsTerminal(os.Stdout.Fd()) {
		printer = &cmd.StatusLinePrinter{}
		recorder = &statusRecorder{Recorder: recorder, printer: printer}
		defer printer.Clear()
	}

	// Open the manifest store, if any.
	manifests, err := openManifestStore(global.Manifest.Mode, logger)
	if err != nil {
		return errors.Wrap(err, "unable to open manifest store")
	}
	if manifests != nil {
		defer manifests.Close()
	}

	// Convert termination signals into context cancellation.
	signalTermination := make(chan os.Signal, 1)
	signal.Notify(signalTermination, cmd.TerminationSignals...)
	defer signal.Stop(signalTermination)
	go func() {
		<-signalTermination
		cancel()
	}()

	// Dispatch based on source type.
	if sourceInfo.IsDir() {
		return syncTree(ctx, sourceArgument, destinationArgument, global, deltaConfiguration, manifests, recorder, logger, printer)
	}
	return syncFile(sourceArgument, destinationArgument, deltaConfiguration, manifests, recorder, logger, printer)
}

// syncFile performs a single-file transfer. The destination may name either
// the target file or an existing directory, in which case the source's base
// name is used within that directory.
func syncFile(
	sourceArgument, destinationArgument string,
	deltaConfiguration *delta.Config,
	manifests manifest.Store,
	recorder telemetry.Recorder,
	logger *logging.Logger,
	printer *cmd.StatusLinePrinter,
) error {
	// If the destination is an existing directory, transfer into it.
	if info, err := os.Stat(destinationArgument); err == nil && info.IsDir() {
		destinationArgument = filepath.Join(destinationArgument, filepath.Base(sourceArgument))
	}

	// Root stores at the parent directories of each side.
	source := local.NewStore(filepath.Dir(sourceArgument), logger.Sublogger("source"))
	destination := local.NewStore(filepath.Dir(destinationArgument), logger.Sublogger("destination"))

	// Create the session.
	session, err := transfer.NewSession(source, destination, &transfer.SessionOptions{
		Configuration: deltaConfiguration,
		Manifests:     manifests,
		Recorder:      recorder,
		Logger:        logger,
	})
	if err != nil {
		return errors.Wrap(err, "unable to create session")
	}

	// Transfer.
	stats, err := session.TransferFile(filepath.Base(sourceArgument), filepath.Base(destinationArgument))
	if err != nil {
		return err
	}

	// Print a summary.
	if printer != nil {
		printer.Clear()
	}
	if stats != nil {
		fmt.Printf(
			"Transferred %s (%s reused, %s sent, %.1f%% savings)\n",
			destinationArgument,
			humanize.Bytes(stats.BytesMatched),
			humanize.Bytes(stats.BytesLiteral),
			100*stats.SavingsRatio,
		)
	} else {
		fmt.Printf("Transferred %s (whole file)\n", destinationArgument)
	}

	// Success.
	return nil
}

// syncTree performs a recursive directory transfer.
func syncTree(
	ctx context.Context,
	sourceArgument, destinationArgument string,
	global *configuration.Configuration,
	deltaConfiguration *delta.Config,
	manifests manifest.Store,
	recorder telemetry.Recorder,
	logger *logging.Logger,
	printer *cmd.StatusLinePrinter,
) error {
	// Root stores at the specified directories.
	source := local.NewStore(sourceArgument, logger.Sublogger("source"))
	destination := local.NewStore(destinationArgument, logger.Sublogger("destination"))

	// Create the session.
	session, err := transfer.NewSession(source, destination, &transfer.SessionOptions{
		Configuration: deltaConfiguration,
		Manifests:     manifests,
		Recorder:      recorder,
		Logger:        logger,
		Ignores:       global.Ignore.Default,
		Jobs:          global.Transfer.Jobs,
	})
	if err != nil {
		return errors.Wrap(err, "unable to create session")
	}

	// Transfer.
	summary, err := session.TransferTree(ctx, "")
	if err != nil {
		return err
	}

	// Print a summary.
	if printer != nil {
		printer.Clear()
	}
	fmt.Printf(
		"Transferred %d files (%d delta, %d whole-file, %d fallbacks)\n",
		summary.Files, summary.DeltaTransfers, summary.WholeFileTransfers, summary.Fallbacks,
	)
	fmt.Printf(
		"Moved %s, reused %s (%.1f%% savings)\n",
		humanize.Bytes(summary.BytesLiteral+summary.BytesCopied),
		humanize.Bytes(summary.BytesMatched),
		100*summary.SavingsRatio(),
	)

	// Report any file-level failures. These don't abort sibling transfers,
	// but they do make the command as a whole fail.
	if len(summary.Errors) > 0 {
		for _, failure := range summary.Errors {
			cmd.Warning(fmt.Sprintf("unable to transfer %s: %v", failure.Path, failure.Err))
		}
		return errors.Errorf("%d file(s) failed to transfer", len(summary.Errors))
	}

	// Success.
	return nil
}

// syncCommand is the sync command.
var syncCommand = &cobra.Command{
	Use:          "sync <source> <destination>",
	Short:        "Transfer a file or directory, moving only changed blocks",
	RunE:         syncMain,
	SilenceUsage: true,
}

// syncConfiguration stores configuration for the sync command.
var syncConfiguration struct {
	// help indicates whether or not to show help information and exit.
	help bool
	// blockSize specifies the signature block size.
	blockSize string
	// hash specifies the strong hashing algorithm.
	hash string
	// parallel indicates whether or not to parallelize signature hashing.
	parallel bool
	// minimumFileSize specifies the minimum file size for delta transfers.
	minimumFileSize string
	// maximumSizeRatio specifies the maximum source/destination size ratio
	// for delta transfers.
	maximumSizeRatio float64
	// wholeFile indicates whether or not to bypass delta transfers.
	wholeFile bool
	// ignores specifies ignore patterns for directory transfers.
	ignores []string
	// jobs specifies the directory transfer concurrency.
	jobs int
	// manifest specifies the manifest persistence mode.
	manifest string
}

func init() {
	// Grab a handle for the command line flags.
	flags := syncCommand.Flags()

	// Disable alphabetical sorting of flags in help output.
	flags.SortFlags = false

	// Manually add a help flag to override the default message. Cobra will
	// still implement its logic automatically.
	flags.BoolVarP(&syncConfiguration.help, "help", "h", false, "Show help information")

	// Add transfer flags.
	flags.StringVar(&syncConfiguration.blockSize, "block-size", "", "Set the signature block size (e.g. \"128 KiB\", 0 selects automatically)")
	flags.StringVar(&syncConfiguration.hash, "hash", "", "Set the strong hashing algorithm (sha256|blake3)")
	flags.BoolVar(&syncConfiguration.parallel, "parallel", false, "Parallelize signature hashing across CPUs")
	flags.StringVar(&syncConfiguration.minimumFileSize, "min-file-size", "", "Set the minimum file size for delta transfers")
	flags.Float64Var(&syncConfiguration.maximumSizeRatio, "max-size-ratio", 0, "Set the maximum source/destination size ratio for delta transfers")
	flags.BoolVarP(&syncConfiguration.wholeFile, "whole-file", "W", false, "Bypass delta transfers entirely")
	flags.StringSliceVarP(&syncConfiguration.ignores, "ignore", "i", nil, "Ignore paths matching the specified pattern")
	flags.IntVarP(&syncConfiguration.jobs, "jobs", "j", 0, "Set the number of concurrent file transfers (0 uses the CPU count)")
	flags.StringVar(&syncConfiguration.manifest, "manifest", "", "Set the manifest persistence mode (none|memory|disk)")
}
