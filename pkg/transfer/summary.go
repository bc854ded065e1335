package transfer

import (
	"sync"

	"github.com/ferry-io/ferry/pkg/delta"
)

// FileError records a file-level transfer failure. Per-file failures never
// abort sibling operations, so they are collected rather than propagated.
type FileError struct {
	// Path is the path of the file that failed to transfer.
	Path string
	// Err is the failure.
	Err error
}

// Summary aggregates the results of a transfer session.
type Summary struct {
	// Files is the total number of files transferred successfully.
	Files uint64
	// DeltaTransfers is the number of files transferred via delta.
	DeltaTransfers uint64
	// WholeFileTransfers is the number of files transferred via whole-file
	// copy, whether policy-directed or by fallback.
	WholeFileTransfers uint64
	// Fallbacks is the number of files that attempted a delta transfer but
	// fell back to a whole-file copy.
	Fallbacks uint64
	// BytesMatched is the total number of bytes reused from existing
	// destinations across all delta transfers.
	BytesMatched uint64
	// BytesLiteral is the total number of bytes freshly transferred across
	// all delta transfers.
	BytesLiteral uint64
	// BytesCopied is the total number of bytes moved by whole-file copies.
	BytesCopied uint64
	// Errors are the file-level failures encountered.
	Errors []FileError
}

// SavingsRatio computes the overall fraction of delta-reconstructed bytes
// that were reused rather than transferred. It is 0 when no bytes were
// reconstructed via delta.
func (s *Summary) SavingsRatio() float64 {
	if total := s.BytesMatched + s.BytesLiteral; total > 0 {
		return float64(s.BytesMatched) / float64(total)
	}
	return 0
}

// summaryBuilder accumulates a summary across concurrent per-file
// operations.
type summaryBuilder struct {
	// lock serializes access to the summary.
	lock sync.Mutex
	// summary is the summary being built.
	summary Summary
}

// recordDelta records a successful delta transfer.
func (b *summaryBuilder) recordDelta(stats *delta.Stats) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.summary.Files += 1
	b.summary.DeltaTransfers += 1
	b.summary.BytesMatched += stats.BytesMatched
	b.summary.BytesLiteral += stats.BytesLiteral
}

// recordWholeFile records a successful whole-file transfer, with an
// indication of whether it was a fallback from a failed delta attempt.
func (b *summaryBuilder) recordWholeFile(copied uint64, fallback bool) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.summary.Files += 1
	b.summary.WholeFileTransfers += 1
	b.summary.BytesCopied += copied
	if fallback {
		b.summary.Fallbacks += 1
	}
}

// recordError records a file-level failure.
func (b *summaryBuilder) recordError(path string, err error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.summary.Errors = append(b.summary.Errors, FileError{Path: path, Err: err})
}
