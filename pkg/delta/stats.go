package delta

// Stats summarizes a completed delta instruction stream. It is derived
// purely from the stream itself and is never an independent source of truth.
type Stats struct {
	// TotalBlocks is the total number of instructions in the stream.
	TotalBlocks uint64
	// BlocksMatched is the number of copy instructions in the stream.
	BlocksMatched uint64
	// BlocksLiteral is the number of literal instructions in the stream.
	BlocksLiteral uint64
	// BytesMatched is the number of reconstructed bytes satisfied by copy
	// instructions (i.e. reused from the existing destination).
	BytesMatched uint64
	// BytesLiteral is the number of reconstructed bytes satisfied by literal
	// instructions (i.e. freshly transferred).
	BytesLiteral uint64
	// SavingsRatio is the fraction of reconstructed bytes satisfied by copy
	// instructions. It is 0 when no bytes were reconstructed.
	SavingsRatio float64
}

// update folds a single instruction into the statistics. The SavingsRatio
// field is not maintained incrementally - finalize must be called once the
// stream is complete.
func (s *Stats) update(instruction *Instruction) {
	s.TotalBlocks += 1
	if instruction.IsCopy() {
		s.BlocksMatched += 1
		s.BytesMatched += uint64(instruction.Length)
	} else {
		s.BlocksLiteral += 1
		s.BytesLiteral += uint64(len(instruction.Data))
	}
}

// finalize computes the savings ratio from the accumulated byte counts.
func (s *Stats) finalize() {
	if total := s.BytesMatched + s.BytesLiteral; total > 0 {
		s.SavingsRatio = float64(s.BytesMatched) / float64(total)
	} else {
		s.SavingsRatio = 0
	}
}

// AggregateStats performs a single pass over a completed instruction stream
// and derives its statistics.
func AggregateStats(plan []*Instruction) *Stats {
	result := &Stats{}
	for _, instruction := range plan {
		result.update(instruction)
	}
	result.finalize()
	return result
}
