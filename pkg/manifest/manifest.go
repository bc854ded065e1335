// Package manifest provides optional persistence for precomputed signature
// indexes. Persistence is always explicit and injectable - the delta core
// never consults a manifest store implicitly, and it re-validates the block
// size of any supplied index against the operation's configuration regardless
// of where the index came from.
package manifest

import (
	"time"

	"github.com/ferry-io/ferry/pkg/delta"
	"github.com/ferry-io/ferry/pkg/storage"
)

// Fingerprint identifies the destination state from which a signature index
// was computed. A stored index is only reusable while its fingerprint still
// matches the destination - any difference is a miss, forcing regeneration.
// Content is deliberately not re-read for fingerprinting; size and
// modification time are cheap and sufficient for a cache whose misses are
// merely regeneration.
type Fingerprint struct {
	// Size is the destination's size at signature time.
	Size int64
	// ModTime is the destination's modification time at signature time.
	ModTime time.Time
}

// FingerprintFor computes the fingerprint for destination metadata.
func FingerprintFor(metadata *storage.Metadata) Fingerprint {
	return Fingerprint{
		Size:    metadata.Size,
		ModTime: metadata.ModTime,
	}
}

// matches indicates whether or not two fingerprints describe the same
// destination state. Modification times are compared by instant rather than
// structural equality.
func (f Fingerprint) matches(other Fingerprint) bool {
	return f.Size == other.Size && f.ModTime.Equal(other.ModTime)
}

// Store persists signature indexes keyed by destination path and fingerprint.
// Implementations must treat stale fingerprints as misses.
type Store interface {
	// Load returns the stored index for the specified path if one exists and
	// its fingerprint matches.
	Load(path string, fingerprint Fingerprint) (*delta.SignatureIndex, bool)
	// Save stores an index for the specified path, replacing any previous
	// entry.
	Save(path string, fingerprint Fingerprint, index *delta.SignatureIndex) error
	// Delete removes any entry for the specified path.
	Delete(path string) error
	// Close releases any resources held by the store.
	Close() error
}
