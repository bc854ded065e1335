package delta

import (
	"io"

	"github.com/pkg/errors"
)

// ErrIndexBlockSizeMismatch indicates that a precomputed signature index was
// supplied whose block size does not match the block size of the current
// configuration. It forces regeneration of the index.
var ErrIndexBlockSizeMismatch = errors.New("precomputed index block size does not match configuration")

// validateSuppliedIndex validates a precomputed signature index against the
// effective block size of the current operation. Indexes representing an
// empty destination are compatible with any block size.
func validateSuppliedIndex(index *SignatureIndex, blockSize uint64) error {
	if err := index.EnsureValid(); err != nil {
		return errors.Wrap(err, "invalid precomputed index")
	}
	if index.BlockSize != 0 && index.BlockSize != blockSize {
		return ErrIndexBlockSizeMismatch
	}
	return nil
}

// Transfer performs a complete delta operation for a single file: it
// validates (or generates) the signature index for the base (the existing
// destination), scans the source against it, and replays the resulting
// instruction stream against the base into the staging writer, aggregating
// statistics along the way. Scanning and reconstruction are fused, so the
// instruction stream is never materialized. The staging writer must not be
// the live destination - the caller is responsible for atomically publishing
// the staged content after this method returns successfully, and for
// discarding it on error. If index is non-nil, it is treated as a
// precomputed index for the base and validated for compatibility before any
// I/O is performed, failing with ErrIndexBlockSizeMismatch (wrapped) on block
// size disagreement. A nil configuration is treated as a default
// configuration.
func (e *Engine) Transfer(source io.Reader, base io.ReaderAt, baseLength uint64, staging io.Writer, index *SignatureIndex, configuration *Config) (*Stats, error) {
	// Resolve the effective block size.
	blockSize := configuration.BlockSizeFor(baseLength)

	// Validate any supplied precomputed index before touching any data, or
	// generate a fresh index from the base.
	if index != nil {
		if err := validateSuppliedIndex(index, blockSize); err != nil {
			return nil, err
		}
	} else {
		var err error
		if configuration != nil && configuration.ParallelHashing {
			index, err = e.SignatureParallel(base, baseLength, blockSize, configuration.Algorithm())
		} else {
			index, err = e.Signature(io.NewSectionReader(base, 0, int64(baseLength)), blockSize, configuration.Algorithm())
		}
		if err != nil {
			return nil, errors.Wrap(err, "unable to generate signature index")
		}
	}

	// Scan the source, applying each instruction to the staging target as it
	// is emitted and folding it into the statistics.
	stats := &Stats{}
	emit := func(instruction *Instruction) error {
		if err := e.Apply(staging, base, instruction); err != nil {
			return err
		}
		stats.update(instruction)
		return nil
	}
	if _, err := e.Scan(source, index, emit); err != nil {
		return nil, errors.Wrap(err, "unable to scan source")
	}

	// Finalize and return the statistics.
	stats.finalize()
	return stats, nil
}
