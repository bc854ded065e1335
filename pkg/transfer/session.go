// Package transfer implements the per-file transfer pipeline and the
// multi-file orchestrator around the delta engine: decision policy gating,
// signature index acquisition (fresh or manifest-supplied), scanning,
// staged reconstruction with atomic publish, whole-file fallback, ignore
// filtering, and bounded-concurrency directory transfers.
package transfer

import (
	"io"
	"runtime"

	"github.com/pkg/errors"

	"github.com/ferry-io/ferry/pkg/delta"
	"github.com/ferry-io/ferry/pkg/identifier"
	"github.com/ferry-io/ferry/pkg/logging"
	"github.com/ferry-io/ferry/pkg/manifest"
	"github.com/ferry-io/ferry/pkg/must"
	"github.com/ferry-io/ferry/pkg/storage"
	"github.com/ferry-io/ferry/pkg/telemetry"
)

// SessionOptions parameterizes a transfer session. The zero value is valid:
// default configuration, no manifest store, no telemetry, no ignores, and
// CPU-bounded concurrency.
type SessionOptions struct {
	// Configuration is the delta configuration for the session's operations.
	Configuration *delta.Config
	// Manifests is an optional store of precomputed signature indexes.
	Manifests manifest.Store
	// Recorder is an optional telemetry recorder.
	Recorder telemetry.Recorder
	// Logger is the session's logger.
	Logger *logging.Logger
	// Ignores are ignore patterns applied to directory transfers.
	Ignores []string
	// Jobs bounds the number of concurrent per-file operations in directory
	// transfers. If 0, the number of CPUs is used.
	Jobs int
}

// Session moves data from a source store to a destination store. A session
// holds no global mutable state beyond its summary accumulation; per-file
// operations on distinct paths are independent.
type Session struct {
	// id is the session identifier.
	id string
	// source is the store supplying source content.
	source storage.Store
	// destination is the store being updated.
	destination storage.Store
	// configuration is the session's delta configuration.
	configuration *delta.Config
	// manifests is the optional precomputed index store.
	manifests manifest.Store
	// recorder is the session's telemetry recorder.
	recorder telemetry.Recorder
	// logger is the session's logger.
	logger *logging.Logger
	// filter is the session's ignore filter.
	filter *Filter
	// jobs is the directory transfer concurrency bound.
	jobs int
}

// NewSession creates a transfer session between the specified stores.
func NewSession(source, destination storage.Store, options *SessionOptions) (*Session, error) {
	// Use default options if none were provided.
	if options == nil {
		options = &SessionOptions{}
	}

	// Validate any supplied configuration.
	if options.Configuration != nil {
		if err := options.Configuration.EnsureValid(); err != nil {
			return nil, errors.Wrap(err, "invalid configuration")
		}
	}

	// Parse ignore patterns.
	filter, err := NewFilter(options.Ignores)
	if err != nil {
		return nil, err
	}

	// Generate the session identifier.
	id, err := identifier.New(identifier.PrefixSession)
	if err != nil {
		return nil, errors.Wrap(err, "unable to generate session identifier")
	}

	// Resolve the telemetry recorder.
	recorder := options.Recorder
	if recorder == nil {
		recorder = &telemetry.Nop{}
	}

	// Resolve the concurrency bound.
	jobs := options.Jobs
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}

	// Success.
	return &Session{
		id:            id,
		source:        source,
		destination:   destination,
		configuration: options.Configuration,
		manifests:     options.Manifests,
		recorder:      recorder,
		logger:        options.Logger,
		filter:        filter,
		jobs:          jobs,
	}, nil
}

// fileResult describes the outcome of a single successful per-file
// operation.
type fileResult struct {
	// stats are the delta statistics, nil for whole-file transfers.
	stats *delta.Stats
	// fallback indicates that a whole-file transfer was a fallback from a
	// failed delta attempt.
	fallback bool
	// copied is the number of bytes moved by a whole-file transfer.
	copied uint64
}

// TransferFile moves a single file from the source store to the destination
// store, using a delta transfer when the decision policy deems it worthwhile
// and falling back to a whole-file copy on any delta failure. The source and
// destination paths may differ. It returns the delta statistics for delta
// transfers and nil for whole-file transfers.
func (s *Session) TransferFile(sourcePath, destinationPath string) (*delta.Stats, error) {
	result, err := s.transferFile(delta.NewEngine(), sourcePath, destinationPath)
	if err != nil {
		return nil, err
	}
	return result.stats, nil
}

// transferFile is the underlying per-file pipeline, operating with a
// caller-supplied engine so that directory transfers can re-use engines
// across files.
func (s *Session) transferFile(engine *delta.Engine, sourcePath, destinationPath string) (*fileResult, error) {
	// Generate the operation identifier.
	operation, err := identifier.New(identifier.PrefixTransfer)
	if err != nil {
		return nil, errors.Wrap(err, "unable to generate operation identifier")
	}
	logger := s.logger.Sublogger(operation)

	// Stat the source. A missing source is a file-level failure, not a
	// policy matter.
	sourceMetadata, err := s.source.Stat(sourcePath)
	if err != nil {
		return nil, errors.Wrap(err, "unable to stat source")
	}

	// Stat the destination, mapping absence to nil metadata for the policy.
	destinationMetadata, err := s.destination.Stat(destinationPath)
	if err != nil && err != storage.ErrNotExist {
		return nil, errors.Wrap(err, "unable to stat destination")
	}

	// Begin telemetry for the operation.
	s.recorder.OperationBegan(operation, sourcePath, destinationPath)

	// Gate entry through the decision policy.
	decision, reason := delta.Decide(sourceMetadata, destinationMetadata, s.configuration)
	if decision == delta.DecisionWholeFile {
		logger.Debugf("using whole-file transfer for %s: %s", sourcePath, reason)
		copied, err := s.wholeFileCopy(sourcePath, destinationPath)
		s.recorder.OperationEnded(operation, nil, err)
		if err != nil {
			return nil, err
		}
		return &fileResult{copied: copied}, nil
	}

	// Attempt the delta transfer. Any delta failure is converted into a
	// whole-file fallback for this file - only a failure of the fallback
	// itself propagates.
	stats, err := s.deltaTransfer(engine, operation, sourcePath, destinationPath, destinationMetadata)
	if err == nil {
		s.recorder.OperationEnded(operation, stats, nil)
		return &fileResult{stats: stats}, nil
	}
	logger.Debugf("delta transfer failed for %s, falling back to whole-file copy: %v", sourcePath, err)
	copied, fallbackErr := s.wholeFileCopy(sourcePath, destinationPath)
	s.recorder.OperationEnded(operation, nil, fallbackErr)
	if fallbackErr != nil {
		return nil, errors.Wrap(fallbackErr, "whole-file fallback failed")
	}
	return &fileResult{fallback: true, copied: copied}, nil
}

// PlanResult describes the outcome of a read-only planning operation.
type PlanResult struct {
	// Decision is the policy decision for the file.
	Decision delta.Decision
	// Reason is the human-readable reason for a whole-file decision.
	Reason string
	// Plan is the instruction stream that a delta transfer would replay. It
	// is nil for whole-file decisions.
	Plan []*delta.Instruction
	// Stats are the statistics that the delta transfer would produce. They
	// are nil for whole-file decisions.
	Stats *delta.Stats
}

// PlanFile computes the instruction stream that a transfer of the specified
// paths would replay, without writing anything. It is used for inspection and
// testing of transfer behavior. Manifest stores are consulted but never
// updated.
func (s *Session) PlanFile(sourcePath, destinationPath string) (*PlanResult, error) {
	// Stat both sides.
	sourceMetadata, err := s.source.Stat(sourcePath)
	if err != nil {
		return nil, errors.Wrap(err, "unable to stat source")
	}
	destinationMetadata, err := s.destination.Stat(destinationPath)
	if err != nil && err != storage.ErrNotExist {
		return nil, errors.Wrap(err, "unable to stat destination")
	}

	// Evaluate the decision policy.
	decision, reason := delta.Decide(sourceMetadata, destinationMetadata, s.configuration)
	if decision == delta.DecisionWholeFile {
		return &PlanResult{Decision: decision, Reason: reason}, nil
	}

	// Open the destination and acquire the signature index.
	engine := delta.NewEngine()
	destination, err := s.destination.OpenDestination(destinationPath)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open destination")
	}
	defer must.Close(destination, s.logger)
	baseLength := uint64(destination.Length())
	blockSize := s.configuration.BlockSizeFor(baseLength)
	var index *delta.SignatureIndex
	if s.manifests != nil {
		if supplied, ok := s.manifests.Load(destinationPath, manifest.FingerprintFor(destinationMetadata)); ok {
			if supplied.BlockSize == 0 || supplied.BlockSize == blockSize {
				index = supplied
			}
		}
	}
	if index == nil {
		index, err = s.generateIndex(engine, destination, baseLength, blockSize)
		if err != nil {
			return nil, errors.Wrap(err, "unable to generate signature index")
		}
	}

	// Scan the source.
	source, err := s.source.OpenSource(sourcePath)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open source")
	}
	defer must.Close(source, s.logger)
	plan, err := engine.Plan(source, index)
	if err != nil {
		return nil, errors.Wrap(err, "unable to scan source")
	}

	// Success.
	return &PlanResult{
		Decision: decision,
		Plan:     plan,
		Stats:    delta.AggregateStats(plan),
	}, nil
}

// deltaTransfer performs the delta pipeline for a single file: index
// acquisition, scan, staged reconstruction, and atomic publish.
func (s *Session) deltaTransfer(engine *delta.Engine, operation, sourcePath, destinationPath string, destinationMetadata *storage.Metadata) (*delta.Stats, error) {
	// Open the destination for random-access reads.
	destination, err := s.destination.OpenDestination(destinationPath)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open destination")
	}
	defer must.Close(destination, s.logger)

	// Acquire the signature index, preferring a manifest-supplied index with
	// a matching fingerprint and generating (and saving) a fresh one
	// otherwise. A stored index whose block size disagrees with the session's
	// configuration is a miss, not an error.
	baseLength := uint64(destination.Length())
	blockSize := s.configuration.BlockSizeFor(baseLength)
	fingerprint := manifest.FingerprintFor(destinationMetadata)
	s.recorder.PhaseBegan(operation, telemetry.PhaseSignature)
	var index *delta.SignatureIndex
	if s.manifests != nil {
		if supplied, ok := s.manifests.Load(destinationPath, fingerprint); ok {
			if supplied.BlockSize == 0 || supplied.BlockSize == blockSize {
				index = supplied
			} else {
				s.logger.Debugf("ignoring manifest entry for %s with mismatched block size", destinationPath)
			}
		}
	}
	if index == nil {
		index, err = s.generateIndex(engine, destination, baseLength, blockSize)
		if err != nil {
			s.recorder.PhaseEnded(operation, telemetry.PhaseSignature)
			return nil, errors.Wrap(err, "unable to generate signature index")
		}
		if s.manifests != nil {
			if err := s.manifests.Save(destinationPath, fingerprint, index); err != nil {
				// Manifest persistence is an optimization - its failure
				// must not affect the transfer.
				s.logger.Warnf("unable to save manifest entry for %s: %v", destinationPath, err)
			}
		}
	}
	s.recorder.PhaseEnded(operation, telemetry.PhaseSignature)

	// Open the source for sequential reads.
	source, err := s.source.OpenSource(sourcePath)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open source")
	}
	defer must.Close(source, s.logger)

	// Scan the source against the index.
	s.recorder.PhaseBegan(operation, telemetry.PhaseScan)
	var plan []*delta.Instruction
	scanResult, err := engine.Scan(source, index, func(instruction *delta.Instruction) error {
		plan = append(plan, instruction.Copy())
		return nil
	})
	s.recorder.PhaseEnded(operation, telemetry.PhaseScan)
	if err != nil {
		return nil, errors.Wrap(err, "unable to scan source")
	}
	if scanResult.WeakCollisions > 0 {
		s.logger.Debugf("scan of %s encountered %d weak hash collisions", sourcePath, scanResult.WeakCollisions)
	}

	// Reconstruct into a staging target and atomically publish it. Any
	// failure discards the staging target and leaves the destination
	// untouched.
	s.recorder.PhaseBegan(operation, telemetry.PhaseReconstruct)
	staging, err := s.destination.BeginStaging(destinationPath)
	if err != nil {
		s.recorder.PhaseEnded(operation, telemetry.PhaseReconstruct)
		return nil, errors.Wrap(err, "unable to begin staging")
	}
	if err := engine.ApplyPlan(staging, destination, plan); err != nil {
		must.Discard(staging, s.logger)
		s.recorder.PhaseEnded(operation, telemetry.PhaseReconstruct)
		return nil, errors.Wrap(err, "unable to reconstruct")
	}
	if err := staging.Commit(); err != nil {
		must.Discard(staging, s.logger)
		s.recorder.PhaseEnded(operation, telemetry.PhaseReconstruct)
		return nil, errors.Wrap(err, "unable to publish staged content")
	}
	s.recorder.PhaseEnded(operation, telemetry.PhaseReconstruct)

	// Aggregate statistics.
	return delta.AggregateStats(plan), nil
}

// generateIndex generates a signature index from an open destination,
// dispatching hashing across CPUs if the configuration requests it.
func (s *Session) generateIndex(engine *delta.Engine, destination storage.Destination, baseLength, blockSize uint64) (*delta.SignatureIndex, error) {
	algorithm := s.configuration.Algorithm()
	if s.configuration != nil && s.configuration.ParallelHashing {
		return engine.SignatureParallel(destination, baseLength, blockSize, algorithm)
	}
	return engine.Signature(io.NewSectionReader(destination, 0, int64(baseLength)), blockSize, algorithm)
}

// wholeFileCopy transfers a file by copying its entire contents through a
// staging target, preserving the same atomic publish semantics as delta
// reconstruction. It returns the number of bytes copied.
func (s *Session) wholeFileCopy(sourcePath, destinationPath string) (uint64, error) {
	// Open the source.
	source, err := s.source.OpenSource(sourcePath)
	if err != nil {
		return 0, errors.Wrap(err, "unable to open source")
	}
	defer must.Close(source, s.logger)

	// Stage the full contents.
	staging, err := s.destination.BeginStaging(destinationPath)
	if err != nil {
		return 0, errors.Wrap(err, "unable to begin staging")
	}
	copied, err := io.Copy(staging, source)
	if err != nil {
		must.Discard(staging, s.logger)
		return 0, errors.Wrap(err, "unable to copy contents")
	}

	// Publish.
	if err := staging.Commit(); err != nil {
		must.Discard(staging, s.logger)
		return 0, errors.Wrap(err, "unable to publish staged content")
	}

	// Success.
	return uint64(copied), nil
}
