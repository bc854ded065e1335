package delta

import (
	"github.com/ferry-io/ferry/pkg/storage"
)

// Decision is the result of the transfer decision policy.
type Decision uint8

const (
	// DecisionDelta indicates that a delta transfer is worthwhile.
	DecisionDelta Decision = iota
	// DecisionWholeFile indicates that the file should be transferred with a
	// whole-file copy.
	DecisionWholeFile
)

// String provides a human-readable representation of a decision.
func (d Decision) String() string {
	switch d {
	case DecisionDelta:
		return "delta"
	case DecisionWholeFile:
		return "whole-file"
	default:
		return "unknown"
	}
}

// Decide determines whether a delta transfer is worthwhile for the specified
// source and destination. The destination metadata may be nil, indicating
// that the destination does not exist. Each whole-file condition is
// independently sufficient. Decide is a pure function: it is deterministic
// and free of side effects. Along with the decision, it returns a
// human-readable reason for any whole-file decision, suitable for diagnostic
// reporting.
func Decide(source *storage.Metadata, destination *storage.Metadata, configuration *Config) (Decision, string) {
	// Honor any explicit override.
	if configuration != nil && configuration.WholeFileOverride {
		return DecisionWholeFile, "whole-file transfer forced by configuration"
	}

	// If the destination does not exist, then there is nothing to reuse.
	if destination == nil {
		return DecisionWholeFile, "destination does not exist"
	}

	// Resolve the minimum file size.
	minimumFileSize := uint64(DefaultMinimumFileSize)
	if configuration != nil && configuration.MinimumFileSize != 0 {
		minimumFileSize = configuration.MinimumFileSize
	}

	// Reject files too small for delta transfers to be worthwhile.
	if uint64(source.Size) < minimumFileSize {
		return DecisionWholeFile, "source below minimum file size"
	} else if uint64(destination.Size) < minimumFileSize {
		return DecisionWholeFile, "destination below minimum file size"
	}

	// Resolve the maximum size ratio.
	maximumSizeRatio := DefaultMaximumSizeRatio
	if configuration != nil && configuration.MaximumSizeRatio != 0 {
		maximumSizeRatio = configuration.MaximumSizeRatio
	}

	// Reject pairs whose sizes differ too much for significant reuse to be
	// plausible.
	larger, smaller := source.Size, destination.Size
	if smaller > larger {
		larger, smaller = smaller, larger
	}
	if smaller == 0 || float64(larger)/float64(smaller) > maximumSizeRatio {
		return DecisionWholeFile, "size ratio exceeds maximum"
	}

	// A delta transfer is worthwhile.
	return DecisionDelta, ""
}
