package delta

import (
	"io"
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/ferry-io/ferry/pkg/delta/hashing"
)

// SignatureParallel computes the signature index for a base (destination)
// with random access support, dispatching per-block hashing across available
// CPUs. Blocks are content-independent pure computations, so workers are
// assigned deterministic strided block positions and write their results into
// disjoint slots of a preallocated signature slice, with no synchronization
// beyond the final join. The result is identical to that of Signature for the
// same base contents. If the provided block size is 0, the optimal block size
// for the base length is used, and if the provided algorithm is the default
// value, SHA-256 is used. Any read error fails the whole generation.
func (e *Engine) SignatureParallel(base io.ReaderAt, baseLength uint64, blockSize uint64, algorithm hashing.Algorithm) (*SignatureIndex, error) {
	// Choose a block size if none is specified.
	if blockSize == 0 {
		blockSize = OptimalBlockSizeForBaseLength(baseLength)
	}

	// Resolve the hashing algorithm.
	if algorithm.IsDefault() {
		algorithm = hashing.AlgorithmSHA256
	}

	// An empty base yields an empty index.
	if baseLength == 0 {
		return &SignatureIndex{Algorithm: algorithm}, nil
	}

	// Compute the number of blocks, accounting for a shortened final block.
	blockCount := baseLength / blockSize
	if baseLength%blockSize != 0 {
		blockCount += 1
	}

	// Preallocate the signature slots.
	signatures := make([]BlockSignature, blockCount)

	// Bound the worker count by available parallelism and the block count.
	workers := uint64(runtime.NumCPU())
	if workers > blockCount {
		workers = blockCount
	}

	// Dispatch workers across strided block positions. Each worker owns its
	// own read buffer and hash function, since neither is safe for shared
	// use.
	var group errgroup.Group
	for w := uint64(0); w < workers; w++ {
		worker := w
		group.Go(func() error {
			buffer := make([]byte, blockSize)
			hasher := algorithm.Factory()()
			for b := worker; b < blockCount; b += workers {
				// Compute the block's extent.
				offset := b * blockSize
				length := blockSize
				if offset+length > baseLength {
					length = baseLength - offset
				}

				// Read the block. ReaderAt implementations are permitted to
				// return io.EOF alongside a complete read of the final
				// bytes, so that combination is treated as success.
				n, err := base.ReadAt(buffer[:length], int64(offset))
				if err == io.EOF && uint64(n) == length {
					err = nil
				}
				if err != nil {
					return errors.Wrap(err, "unable to read data block")
				}

				// Compute the block's fingerprints. As in the sequential
				// path, short blocks use the full block size convention for
				// the weak hash.
				weak, _, _ := weakHash(buffer[:length], blockSize)
				hasher.Reset()
				hasher.Write(buffer[:length])

				// Populate the block's slot.
				signatures[b] = BlockSignature{
					Offset: offset,
					Length: uint32(length),
					Weak:   weak,
					Strong: hasher.Sum(nil),
				}
			}
			return nil
		})
	}

	// Join the workers.
	if err := group.Wait(); err != nil {
		return nil, err
	}

	// Success.
	return &SignatureIndex{
		BlockSize:  blockSize,
		Algorithm:  algorithm,
		Signatures: signatures,
	}, nil
}
