package delta

import (
	"math"

	"github.com/pkg/errors"

	"github.com/ferry-io/ferry/pkg/delta/hashing"
)

// BlockSignature describes a single destination block: its location and
// extent within the destination, plus the fingerprints used for matching.
// Signatures are immutable once computed.
type BlockSignature struct {
	// Offset is the byte offset of the block within the destination.
	Offset uint64
	// Length is the length of the block in bytes. All blocks in a destination
	// share the index's block size, except possibly the final block, which
	// may be shorter.
	Length uint32
	// Weak is the rolling checksum of the block's contents.
	Weak uint32
	// Strong is the strong digest of the block's contents.
	Strong []byte
}

// EnsureValid verifies that block signature invariants are respected.
func (s *BlockSignature) EnsureValid() error {
	// A nil block signature is not valid.
	if s == nil {
		return errors.New("nil block signature")
	}

	// Ensure that the block is non-empty.
	if s.Length == 0 {
		return errors.New("zero-length block")
	}

	// Ensure that the strong digest has the expected length.
	if len(s.Strong) != hashing.DigestLength {
		return errors.New("strong digest has incorrect length")
	}

	// Success.
	return nil
}

// SignatureIndex is the queryable set of block signatures describing one
// destination snapshot. It is built once per operation, never mutated after
// construction, and owned exclusively by a single delta operation.
type SignatureIndex struct {
	// BlockSize is the block size with which the index was generated.
	BlockSize uint64
	// Algorithm is the strong hashing algorithm with which the index was
	// generated.
	Algorithm hashing.Algorithm
	// Signatures are the destination's block signatures in destination order.
	Signatures []BlockSignature
	// buckets maps weak hashes to the positions of candidate signatures
	// within Signatures. It is built lazily on first lookup.
	buckets map[uint32][]int
}

// EnsureValid verifies that signature index invariants are respected. It
// should be called on any index received from an external source (e.g. a
// manifest store) before use.
func (s *SignatureIndex) EnsureValid() error {
	// A nil signature index is not valid.
	if s == nil {
		return errors.New("nil signature index")
	}

	// If the block size is 0, then there shouldn't be any signatures.
	if s.BlockSize == 0 {
		if len(s.Signatures) != 0 {
			return errors.New("block size of 0 with signatures present")
		}
		return nil
	}

	// The rolling checksum arithmetic requires that the block size fit within
	// 32 bits.
	if s.BlockSize > math.MaxUint32 {
		return errors.New("block size too large")
	}

	// Ensure that all signatures are individually valid, that blocks are
	// contiguous from the start of the destination, and that only the final
	// block (if any) deviates from the block size.
	var expectedOffset uint64
	for i := range s.Signatures {
		signature := &s.Signatures[i]
		if err := signature.EnsureValid(); err != nil {
			return errors.Wrap(err, "invalid block signature")
		}
		if signature.Offset != expectedOffset {
			return errors.New("non-contiguous block offsets")
		}
		if uint64(signature.Length) > s.BlockSize {
			return errors.New("block length exceeds block size")
		}
		if uint64(signature.Length) != s.BlockSize && i != len(s.Signatures)-1 {
			return errors.New("short block before final position")
		}
		expectedOffset += uint64(signature.Length)
	}

	// Success.
	return nil
}

// BaseLength returns the total destination length covered by the index.
func (s *SignatureIndex) BaseLength() uint64 {
	if len(s.Signatures) == 0 {
		return 0
	}
	last := &s.Signatures[len(s.Signatures)-1]
	return last.Offset + uint64(last.Length)
}

// empty indicates whether or not the index contains any signatures.
func (s *SignatureIndex) empty() bool {
	return len(s.Signatures) == 0
}

// shortFinal returns the final block signature if (and only if) it is shorter
// than the block size.
func (s *SignatureIndex) shortFinal() *BlockSignature {
	if len(s.Signatures) == 0 {
		return nil
	}
	last := &s.Signatures[len(s.Signatures)-1]
	if uint64(last.Length) == s.BlockSize {
		return nil
	}
	return last
}

// ensureBuckets builds the weak hash lookup buckets if they haven't been
// built already. Indexes are owned by a single operation, so no
// synchronization is performed.
func (s *SignatureIndex) ensureBuckets() {
	if s.buckets != nil {
		return
	}
	s.buckets = make(map[uint32][]int, len(s.Signatures))
	for i := range s.Signatures {
		weak := s.Signatures[i].Weak
		s.buckets[weak] = append(s.buckets[weak], i)
	}
}
