package delta

import (
	"bufio"
	"bytes"
	"hash"
	"io"

	"github.com/pkg/errors"

	"github.com/ferry-io/ferry/pkg/delta/hashing"
)

// dualModeReader unifies the io.Reader and io.ByteReader interfaces. It is
// used in scan operations to ensure that bytes can be efficiently extracted
// from sources.
type dualModeReader interface {
	io.Reader
	io.ByteReader
}

// ScanResult conveys diagnostic information about a completed scan. It never
// affects the correctness of the resulting instruction stream.
type ScanResult struct {
	// WeakCollisions is the number of window positions at which a weak hash
	// lookup produced candidates but strong digest confirmation rejected all
	// of them. Collisions are expected to be rare, but they are not errors -
	// the two-tier scheme exists precisely to absorb them.
	WeakCollisions uint64
}

// Engine provides delta functionality without any notion of transport or
// storage. It is designed to be re-used to avoid heavy buffer allocation, but
// it is not safe for concurrent use - callers running operations in parallel
// should use one engine per goroutine.
type Engine struct {
	// buffer is a re-usable buffer that will be used for reading data and
	// setting up instructions.
	buffer []byte
	// applyBuffer is a re-usable buffer used to satisfy copy instructions
	// during reconstruction. It is separate from buffer because scanning and
	// reconstruction may be fused, with instructions applied mid-scan while
	// buffer still holds live window state.
	applyBuffer []byte
	// pending is a re-usable buffer that accumulates unmatched bytes during
	// scans until they can be emitted as a single literal instruction.
	pending []byte
	// strongHashers maps algorithms to lazily constructed hash functions.
	strongHashers map[hashing.Algorithm]hash.Hash
	// strongHashBuffer is a re-usable buffer that can be used by methods to
	// receive digests.
	strongHashBuffer []byte
	// sourceReader is a re-usable bufio.Reader that will be used for scan
	// operations.
	sourceReader *bufio.Reader
	// instruction is a re-usable instruction object used for emission to
	// avoid allocations.
	instruction *Instruction
}

// NewEngine creates a new delta engine.
func NewEngine() *Engine {
	return &Engine{
		strongHashers:    make(map[hashing.Algorithm]hash.Hash),
		strongHashBuffer: make([]byte, 0, hashing.DigestLength),
		sourceReader:     bufio.NewReader(nil),
		instruction:      &Instruction{},
	}
}

// bufferWithSize lazily allocates the engine's internal buffer, ensuring that
// it is the required size. The capacity of the internal buffer is retained
// between calls to avoid allocations if possible.
func (e *Engine) bufferWithSize(size uint64) []byte {
	// Check if the buffer currently has the required capacity. If it does,
	// then use that space. Note that we're checking *capacity* - you're
	// allowed to slice a buffer up to its capacity, not just its length.
	if uint64(cap(e.buffer)) >= size {
		return e.buffer[:size]
	}

	// If we couldn't use our existing buffer, create a new one, but store it
	// for later re-use.
	e.buffer = make([]byte, size)
	return e.buffer
}

// applyBufferWithSize is the analog of bufferWithSize for the engine's
// reconstruction buffer.
func (e *Engine) applyBufferWithSize(size uint64) []byte {
	if uint64(cap(e.applyBuffer)) >= size {
		return e.applyBuffer[:size]
	}
	e.applyBuffer = make([]byte, size)
	return e.applyBuffer
}

// strongHasher returns the (cached) hash function for the specified
// algorithm. It panics if invoked with a default or unsupported algorithm.
func (e *Engine) strongHasher(algorithm hashing.Algorithm) hash.Hash {
	if hasher, ok := e.strongHashers[algorithm]; ok {
		return hasher
	}
	hasher := algorithm.Factory()()
	e.strongHashers[algorithm] = hasher
	return hasher
}

// strongHash computes a slow but strong digest for a block of data. If
// allocate is true, then a new byte slice will be allocated to receive the
// digest, otherwise the engine's internal digest buffer will be used, but
// then the digest will only be valid until the next call to strongHash.
func (e *Engine) strongHash(hasher hash.Hash, data []byte, allocate bool) []byte {
	// Reset the hasher.
	hasher.Reset()

	// Digest the data. The Hash interface guarantees that writes succeed.
	hasher.Write(data)

	// Compute the output location.
	var output []byte
	if !allocate {
		output = e.strongHashBuffer[:0]
	}

	// Compute the digest.
	return hasher.Sum(output)
}

// Signature computes the signature index for a base (destination) stream. If
// the provided block size is 0, this method will attempt to compute the
// optimal block size (which requires that base implement io.Seeker), and
// failing that will fall back to a default block size. If the provided
// algorithm is the default value, SHA-256 is used. Any read error fails the
// whole generation.
func (e *Engine) Signature(base io.Reader, blockSize uint64, algorithm hashing.Algorithm) (*SignatureIndex, error) {
	// Choose a block size if none is specified. If the base also implements
	// io.Seeker, then use the optimal block size, otherwise use the default.
	if blockSize == 0 {
		if baseSeeker, ok := base.(io.Seeker); ok {
			if s, err := OptimalBlockSizeForBase(baseSeeker); err == nil {
				blockSize = s
			} else {
				blockSize = DefaultBlockSize
			}
		} else {
			blockSize = DefaultBlockSize
		}
	}

	// Resolve the hashing algorithm.
	if algorithm.IsDefault() {
		algorithm = hashing.AlgorithmSHA256
	}
	hasher := e.strongHasher(algorithm)

	// Create the result.
	result := &SignatureIndex{
		BlockSize: blockSize,
		Algorithm: algorithm,
	}

	// Create a buffer with which to read blocks.
	buffer := e.bufferWithSize(blockSize)

	// Read blocks and append their signatures until we reach EOF.
	var offset uint64
	eof := false
	for !eof {
		// Read the next block and watch for errors. If we receive io.EOF,
		// then nothing was read, and we should break immediately. This means
		// that the base had a length that was a multiple of the block size.
		// If we receive io.ErrUnexpectedEOF, then something was read but
		// we're still at the end of the base, so we should fingerprint this
		// block but not go through the loop again. All other errors are
		// terminal.
		n, err := io.ReadFull(base, buffer)
		if err == io.EOF {
			break
		} else if err == io.ErrUnexpectedEOF {
			eof = true
		} else if err != nil {
			return nil, errors.Wrap(err, "unable to read data block")
		}

		// Compute fingerprints for the block that was read. For short blocks,
		// we still use the full block size when computing the weak hash - all
		// that matters is that we keep consistency with the computation
		// performed when searching during scans.
		weak, _, _ := weakHash(buffer[:n], blockSize)
		strong := e.strongHash(hasher, buffer[:n], true)

		// Add the block signature.
		result.Signatures = append(result.Signatures, BlockSignature{
			Offset: offset,
			Length: uint32(n),
			Weak:   weak,
			Strong: strong,
		})

		// Advance the offset.
		offset += uint64(n)
	}

	// If there are no signatures, then clear out the block size so that the
	// index uniformly represents an empty base.
	if len(result.Signatures) == 0 {
		result.BlockSize = 0
	}

	// Success.
	return result, nil
}

// BytesSignature computes the signature index for a byte slice.
func (e *Engine) BytesSignature(base []byte, blockSize uint64, algorithm hashing.Algorithm) *SignatureIndex {
	// Perform the signature and watch for errors (which shouldn't be able to
	// occur in-memory).
	result, err := e.Signature(bytes.NewReader(base), blockSize, algorithm)
	if err != nil {
		panic(errors.Wrap(err, "in-memory signature failure"))
	}

	// Success.
	return result
}

// emitLiteral emits a literal instruction using the engine's internal
// instruction object.
func (e *Engine) emitLiteral(data []byte, emit InstructionEmitter) error {
	*e.instruction = Instruction{
		Data: data,
	}
	return emit(e.instruction)
}

// emitCopy emits a copy instruction using the engine's internal instruction
// object.
func (e *Engine) emitCopy(offset uint64, length uint32, emit InstructionEmitter) error {
	*e.instruction = Instruction{
		Offset: offset,
		Length: length,
	}
	return emit(e.instruction)
}

// emitAll is a fast-path routine for simply emitting all data in a source
// stream as a single literal instruction. This is used when there are no
// blocks to match because the base is empty.
func (e *Engine) emitAll(source io.Reader, emit InstructionEmitter) error {
	// Read the entire source into the pending buffer.
	pending := e.pending[:0]
	buffer := e.bufferWithSize(DefaultBlockSize)
	for {
		n, err := source.Read(buffer)
		pending = append(pending, buffer[:n]...)
		if err == io.EOF {
			break
		} else if err != nil {
			e.pending = pending
			return errors.Wrap(err, "unable to read source")
		}
	}
	e.pending = pending

	// An empty source yields an empty instruction stream.
	if len(pending) == 0 {
		return nil
	}

	// Emit the data.
	return e.emitLiteral(pending, emit)
}

// Scan computes the delta instruction stream needed to reconstitute the
// source data stream using the base (destination) described by the provided
// signature index. It streams instructions to the provided emitter: unmatched
// runs are emitted as single literal instructions and each matched block is
// emitted as an individual copy instruction. The internal engine buffer will
// be resized to twice the index's block size and retained for the lifetime of
// the engine. For performance reasons, this method does not validate that the
// provided index satisfies expected invariants. It is the responsibility of
// the caller to verify indexes received from untrusted locations (e.g. a
// manifest store) by calling their EnsureValid method. An invalid index can
// result in undefined behavior.
func (e *Engine) Scan(source io.Reader, index *SignatureIndex, emit InstructionEmitter) (*ScanResult, error) {
	// Create the result.
	result := &ScanResult{}

	// If the base is empty, then there's no way we'll find any matching
	// blocks, so just emit the entire source as a single literal.
	if index.empty() {
		return result, e.emitAll(source, emit)
	}

	// Extract the block size and hasher for the index.
	blockSize := index.BlockSize
	hasher := e.strongHasher(index.Algorithm)

	// Ensure that the weak hash lookup buckets have been built.
	index.ensureBuckets()

	// Extract the short final block, if any. It can only ever match at the
	// very end of the source stream, once the window has shrunk below the
	// block size.
	shortFinal := index.shortFinal()

	// Ensure that the source implements io.Reader and io.ByteReader. If it
	// can do this natively, great! If not, wrap it in our re-usable buffered
	// reader, but ensure that it is released when we're done so that we don't
	// retain it indefinitely.
	bufferedSource, ok := source.(dualModeReader)
	if !ok {
		e.sourceReader.Reset(source)
		bufferedSource = e.sourceReader
		defer func() {
			e.sourceReader.Reset(nil)
		}()
	}

	// Create a buffer that we can use to hold the search window and the data
	// immediately preceding it. We start by filling it with a block's worth
	// of data and then continuously appending bytes until we either fill the
	// buffer (at which point we spill the data preceding the window into the
	// pending literal buffer and truncate) or find a match (at which point we
	// emit the pending literal run and then the matched block). Once we're
	// unable to append a new byte or refill with a full block, we terminate
	// our search and handle the remaining data (potentially matching the
	// destination's shortened final block at the end of the buffer).
	buffer := e.bufferWithSize(2 * blockSize)

	// Track the occupancy of the buffer.
	var occupancy uint64

	// Reset the pending literal buffer, maintaining its capacity. Unmatched
	// runs are not chunked - the buffer grows to the length of the run and is
	// emitted as a single literal instruction.
	pending := e.pending[:0]
	defer func() {
		e.pending = pending[:0]
	}()

	// flushLiteral appends any data preceding the search window to the
	// pending literal run and emits the run (if non-empty) as a single
	// literal instruction.
	flushLiteral := func(precedingWindow []byte) error {
		pending = append(pending, precedingWindow...)
		if len(pending) == 0 {
			return nil
		}
		if err := e.emitLiteral(pending, emit); err != nil {
			return err
		}
		pending = pending[:0]
		return nil
	}

	// Track the weak hash and its parameters for the window at the end of the
	// buffer.
	var weak, r1, r2 uint32

	// Loop over the contents of the source and search for matches.
	for {
		// If the buffer is empty, then we need to read in a block's worth of
		// data (if possible) and calculate the weak hash and its parameters.
		// The window state is always initialized fresh after a match - there
		// is no incremental carry across a jump. If the buffer is non-empty
		// but holds less than a block's worth of data, then we've broken an
		// invariant in our code. Otherwise, we need to move the search window
		// one byte forward and roll the hash.
		if occupancy == 0 {
			if n, err := io.ReadFull(bufferedSource, buffer[:blockSize]); err == io.EOF || err == io.ErrUnexpectedEOF {
				occupancy = uint64(n)
				break
			} else if err != nil {
				return nil, errors.Wrap(err, "unable to perform initial buffer fill")
			} else {
				occupancy = blockSize
				weak, r1, r2 = weakHash(buffer[:occupancy], blockSize)
			}
		} else if occupancy < blockSize {
			panic("buffer contains less than a block worth of data")
		} else {
			if b, err := bufferedSource.ReadByte(); err == io.EOF {
				break
			} else if err != nil {
				return nil, errors.Wrap(err, "unable to read source byte")
			} else {
				weak, r1, r2 = rollWeakHash(r1, r2, buffer[occupancy-blockSize], b, blockSize)
				buffer[occupancy] = b
				occupancy += 1
			}
		}

		// Look for a match for the window at the end of the buffer. The
		// window is exactly one block long here, so candidates are filtered
		// to those with a full block length - the short final block (if any)
		// can't match a full-sized window.
		candidates := index.buckets[weak]
		var match *BlockSignature
		weakHit := false
		if len(candidates) > 0 {
			window := buffer[occupancy-blockSize : occupancy]
			var strong []byte
			for _, c := range candidates {
				candidate := &index.Signatures[c]
				if uint64(candidate.Length) != blockSize {
					continue
				}
				weakHit = true
				if strong == nil {
					strong = e.strongHash(hasher, window, false)
				}
				if bytes.Equal(candidate.Strong, strong) {
					match = candidate
					break
				}
			}
		}

		// If there's a match, emit any pending literal run and then the
		// match, and restart the window fresh after the matched block.
		// Otherwise, record any weak hash collision, and if we've reached
		// buffer capacity, spill the data preceding the search window into
		// the pending literal run.
		if match != nil {
			if err := flushLiteral(buffer[:occupancy-blockSize]); err != nil {
				return nil, errors.Wrap(err, "unable to emit literal preceding match")
			} else if err = e.emitCopy(match.Offset, match.Length, emit); err != nil {
				return nil, errors.Wrap(err, "unable to emit match")
			}
			occupancy = 0
		} else {
			if weakHit {
				result.WeakCollisions += 1
			}
			if occupancy == uint64(len(buffer)) {
				pending = append(pending, buffer[:occupancy-blockSize]...)
				copy(buffer[:blockSize], buffer[occupancy-blockSize:occupancy])
				occupancy = blockSize
			}
		}
	}

	// If the base has a shortened final block and the occupancy of the buffer
	// is large enough that it could match, then check for a match against the
	// window suffix of exactly its length - it is the only signature whose
	// recorded length such a window can equal. Its weak hash was computed
	// with the full block size convention during signature generation, so the
	// same convention is used here.
	if shortFinal != nil && occupancy >= uint64(shortFinal.Length) {
		tail := buffer[occupancy-uint64(shortFinal.Length) : occupancy]
		if w, _, _ := weakHash(tail, blockSize); w == shortFinal.Weak {
			if bytes.Equal(e.strongHash(hasher, tail, false), shortFinal.Strong) {
				if err := flushLiteral(buffer[:occupancy-uint64(shortFinal.Length)]); err != nil {
					return nil, errors.Wrap(err, "unable to emit literal preceding final match")
				} else if err = e.emitCopy(shortFinal.Offset, shortFinal.Length, emit); err != nil {
					return nil, errors.Wrap(err, "unable to emit final match")
				}
				occupancy = 0
			} else {
				result.WeakCollisions += 1
			}
		}
	}

	// Emit any data remaining in the buffer as a final literal.
	if err := flushLiteral(buffer[:occupancy]); err != nil {
		return nil, errors.Wrap(err, "unable to emit final literal")
	}

	// Success.
	return result, nil
}

// Plan computes the delta instruction stream for a source stream and
// materializes it as a slice. The same caveats about index validation apply
// as for Scan.
func (e *Engine) Plan(source io.Reader, index *SignatureIndex) ([]*Instruction, error) {
	// Create an empty result.
	var plan []*Instruction

	// Create an instruction emitter to populate the result.
	emit := func(instruction *Instruction) error {
		plan = append(plan, instruction.Copy())
		return nil
	}

	// Perform the scan.
	if _, err := e.Scan(source, index, emit); err != nil {
		return nil, err
	}

	// Success.
	return plan, nil
}

// PlanBytes computes the delta instruction stream for a byte slice. Unlike
// the streaming Scan method, it returns a slice of instructions, which should
// be reasonable since the source data can already fit into memory.
func (e *Engine) PlanBytes(source []byte, index *SignatureIndex) []*Instruction {
	// Compute the plan and watch for errors (which shouldn't occur for
	// in-memory data).
	plan, err := e.Plan(bytes.NewReader(source), index)
	if err != nil {
		panic(errors.Wrap(err, "in-memory planning failure"))
	}

	// Success.
	return plan
}
