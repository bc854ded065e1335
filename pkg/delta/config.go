package delta

import (
	"io"
	"math"

	"github.com/pkg/errors"

	"github.com/ferry-io/ferry/pkg/delta/hashing"
)

const (
	// MinimumBlockSize is the minimum block size that may be specified in a
	// configuration. It has to be chosen so that it is at least a few orders
	// of magnitude larger than the size of a BlockSignature.
	MinimumBlockSize = 1 << 16
	// MaximumBlockSize is the maximum block size that may be specified in a
	// configuration. It mostly just needs to be bounded by what can fit into
	// a reasonably sized in-memory buffer, particularly if multiple delta
	// engines are running. It also needs to be less than or equal to (2^32)-1
	// for the weak hash algorithm to work.
	MaximumBlockSize = 1 << 22
	// DefaultBlockSize is the block size that will be used if a zero block
	// size is configured and no optimal block size can be computed.
	DefaultBlockSize = 1 << 16
	// DefaultMinimumFileSize is the default file size below which delta
	// transfers are not worthwhile and whole-file copies are used instead.
	DefaultMinimumFileSize = 1 << 16
	// DefaultMaximumSizeRatio is the default bound on the size ratio between
	// source and destination beyond which delta transfers are not worthwhile.
	DefaultMaximumSizeRatio = 8.0
)

// Config parameterizes a single delta operation. It is supplied fresh per
// operation and read-only for the engine.
type Config struct {
	// BlockSize is the block size to use for signature generation and
	// scanning. If 0, an optimal block size is computed from the destination
	// length. Caller-supplied non-zero values must lie within the range
	// [MinimumBlockSize, MaximumBlockSize] (see EnsureValid), though engine
	// entry points themselves accept any positive block size.
	BlockSize uint64
	// StrongHashAlgorithm is the strong hashing algorithm to use for block
	// fingerprinting and match confirmation. If default, SHA-256 is used.
	StrongHashAlgorithm hashing.Algorithm
	// ParallelHashing indicates whether or not signature generation should
	// dispatch per-block hashing across available CPUs.
	ParallelHashing bool
	// MinimumFileSize is the file size below which the decision policy
	// directs transfers to whole-file copies.
	MinimumFileSize uint64
	// MaximumSizeRatio is the bound on the ratio of the larger file size to
	// the smaller beyond which the decision policy directs transfers to
	// whole-file copies. A value of 0 disables the check.
	MaximumSizeRatio float64
	// WholeFileOverride forces whole-file copies regardless of any other
	// policy condition.
	WholeFileOverride bool
}

// EnsureValid verifies that configuration invariants are respected.
func (c *Config) EnsureValid() error {
	// A nil configuration is not valid.
	if c == nil {
		return errors.New("nil configuration")
	}

	// Ensure that any explicit block size lies within the supported range.
	if c.BlockSize != 0 {
		if c.BlockSize < MinimumBlockSize {
			return errors.New("block size too small")
		} else if c.BlockSize > MaximumBlockSize {
			return errors.New("block size too large")
		}
	}

	// Ensure that the hashing algorithm is supported if specified.
	if !c.StrongHashAlgorithm.IsDefault() && !c.StrongHashAlgorithm.Supported() {
		return errors.New("unknown or unsupported hashing algorithm")
	}

	// Ensure that the size ratio bound is sane. A ratio below 1 would reject
	// even identical file sizes.
	if c.MaximumSizeRatio != 0 && c.MaximumSizeRatio < 1.0 {
		return errors.New("maximum size ratio less than 1")
	}

	// Success.
	return nil
}

// BlockSizeFor resolves the effective block size for a destination of the
// specified length, falling back to the optimal block size heuristic when no
// explicit block size is configured. It is safe to call on a nil receiver.
func (c *Config) BlockSizeFor(baseLength uint64) uint64 {
	if c != nil && c.BlockSize != 0 {
		return c.BlockSize
	}
	return OptimalBlockSizeForBaseLength(baseLength)
}

// Algorithm resolves the effective strong hashing algorithm. It is safe to
// call on a nil receiver.
func (c *Config) Algorithm() hashing.Algorithm {
	if c != nil && !c.StrongHashAlgorithm.IsDefault() {
		return c.StrongHashAlgorithm
	}
	return hashing.AlgorithmSHA256
}

// OptimalBlockSizeForBaseLength uses a simple heuristic to choose a block
// size based on the base (destination) length. It starts by choosing the
// optimal block length using the formula given in the rsync thesis (assuming
// one change per file) and then clamps the result to the supported range.
func OptimalBlockSizeForBaseLength(baseLength uint64) uint64 {
	// Compute the optimal block length.
	result := uint64(math.Sqrt(24.0 * float64(baseLength)))

	// Ensure that it's within the allowed range.
	if result < MinimumBlockSize {
		result = MinimumBlockSize
	} else if result > MaximumBlockSize {
		result = MaximumBlockSize
	}

	// Done.
	return result
}

// OptimalBlockSizeForBase is a convenience function that will determine the
// optimal block size for a base that implements io.Seeker. It calls down to
// OptimalBlockSizeForBaseLength. After determining the base's length, it will
// attempt to reset the base to its original position.
func OptimalBlockSizeForBase(base io.Seeker) (uint64, error) {
	if currentOffset, err := base.Seek(0, io.SeekCurrent); err != nil {
		return 0, errors.Wrap(err, "unable to determine current base offset")
	} else if currentOffset < 0 {
		return 0, errors.New("seek returned negative starting location")
	} else if length, err := base.Seek(0, io.SeekEnd); err != nil {
		return 0, errors.Wrap(err, "unable to compute base length")
	} else if length < 0 {
		return 0, errors.New("seek returned negative offset")
	} else if _, err = base.Seek(currentOffset, io.SeekStart); err != nil {
		return 0, errors.Wrap(err, "unable to reset base")
	} else {
		return OptimalBlockSizeForBaseLength(uint64(length)), nil
	}
}
