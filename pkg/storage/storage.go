// Package storage defines the abstract capabilities that the delta engine
// and transfer pipeline require of a storage backend, regardless of physical
// medium: sequential streamed reads of a source, random-access reads of an
// existing destination, and a staging target whose contents can atomically
// replace the destination.
package storage

import (
	"io"
	"time"

	"github.com/pkg/errors"
)

// ErrNotExist indicates that the specified path does not exist within a
// store.
var ErrNotExist = errors.New("path does not exist")

// Metadata describes a file within a store.
type Metadata struct {
	// Path is the file's path within the store.
	Path string
	// Size is the file's size in bytes.
	Size int64
	// ModTime is the file's modification time.
	ModTime time.Time
}

// Source provides sequential streamed reads of a file's contents.
type Source interface {
	io.ReadCloser
}

// Destination provides random-access reads of an existing destination's
// contents by offset and length.
type Destination interface {
	io.ReaderAt
	io.Closer
	// Length returns the destination's length in bytes.
	Length() int64
}

// Staging provides sequential writes to a staging target, together with an
// atomic publish operation. Exactly one of Commit or Discard must be called.
type Staging interface {
	io.Writer
	// Commit flushes the staged content and atomically replaces the
	// destination's contents with it. After Commit, the destination is
	// observed either fully in its old state or fully in its new state,
	// never partially overwritten, even under interruption.
	Commit() error
	// Discard abandons the staged content, leaving the destination
	// untouched.
	Discard() error
}

// Store provides the three storage capabilities for a single backend.
type Store interface {
	// Stat returns metadata for the specified path, or ErrNotExist if the
	// path does not exist.
	Stat(path string) (*Metadata, error)
	// OpenSource opens the specified path for sequential streamed reads.
	OpenSource(path string) (Source, error)
	// OpenDestination opens the specified path for random-access reads.
	OpenDestination(path string) (Destination, error)
	// BeginStaging creates a staging target whose Commit operation will
	// atomically replace the specified path's contents.
	BeginStaging(path string) (Staging, error)
}

// Walker is an optional interface that stores can implement to support
// directory transfers. Walk visits every file beneath root in deterministic
// order, invoking the callback with the file's store-relative slash-separated
// path and metadata.
type Walker interface {
	Walk(root string, callback func(path string, metadata *Metadata) error) error
}
