// Package memory provides a map-backed implementation of the storage
// capabilities with the same commit semantics as the local store. It is used
// by tests and embeddable callers that need hermetic storage.
package memory

import (
	"bytes"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/ferry-io/ferry/pkg/storage"
)

// file is a single stored file.
type file struct {
	contents []byte
	modTime  time.Time
}

// Store is a map-backed storage.Store. It is safe for concurrent use.
type Store struct {
	// lock serializes access to files.
	lock sync.RWMutex
	// files maps slash-separated paths to file records.
	files map[string]*file
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		files: make(map[string]*file),
	}
}

// Set stores the specified contents at the specified path.
func (s *Store) Set(path string, contents []byte) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.files[path] = &file{
		contents: append([]byte(nil), contents...),
		modTime:  time.Now(),
	}
}

// Contents returns the contents stored at the specified path and an
// indication of whether or not the path exists.
func (s *Store) Contents(path string) ([]byte, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if f, ok := s.files[path]; ok {
		return append([]byte(nil), f.contents...), true
	}
	return nil, false
}

// Stat implements storage.Store.Stat.
func (s *Store) Stat(path string) (*storage.Metadata, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	f, ok := s.files[path]
	if !ok {
		return nil, storage.ErrNotExist
	}
	return &storage.Metadata{
		Path:    path,
		Size:    int64(len(f.contents)),
		ModTime: f.modTime,
	}, nil
}

// source adapts a bytes.Reader to the storage.Source interface.
type source struct {
	*bytes.Reader
}

// Close implements io.Closer.Close.
func (s *source) Close() error {
	return nil
}

// OpenSource implements storage.Store.OpenSource.
func (s *Store) OpenSource(path string) (storage.Source, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	f, ok := s.files[path]
	if !ok {
		return nil, storage.ErrNotExist
	}
	return &source{bytes.NewReader(f.contents)}, nil
}

// destination adapts a bytes.Reader to the storage.Destination interface.
type destination struct {
	*bytes.Reader
}

// Close implements io.Closer.Close.
func (d *destination) Close() error {
	return nil
}

// Length implements storage.Destination.Length.
func (d *destination) Length() int64 {
	return d.Size()
}

// OpenDestination implements storage.Store.OpenDestination. The returned
// destination reads a snapshot of the path's contents at open time, so a
// subsequent commit against the same path does not disturb in-flight reads.
func (s *Store) OpenDestination(path string) (storage.Destination, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	f, ok := s.files[path]
	if !ok {
		return nil, storage.ErrNotExist
	}
	return &destination{bytes.NewReader(f.contents)}, nil
}

// staging is an in-memory staging target.
type staging struct {
	store     *Store
	path      string
	buffer    bytes.Buffer
	finalized bool
}

// Write implements io.Writer.Write.
func (s *staging) Write(data []byte) (int, error) {
	if s.finalized {
		return 0, errors.New("staging target already finalized")
	}
	return s.buffer.Write(data)
}

// Commit implements storage.Staging.Commit.
func (s *staging) Commit() error {
	if s.finalized {
		return errors.New("staging target already finalized")
	}
	s.finalized = true
	s.store.lock.Lock()
	defer s.store.lock.Unlock()
	s.store.files[s.path] = &file{
		contents: s.buffer.Bytes(),
		modTime:  time.Now(),
	}
	return nil
}

// Discard implements storage.Staging.Discard.
func (s *staging) Discard() error {
	s.finalized = true
	s.buffer.Reset()
	return nil
}

// BeginStaging implements storage.Store.BeginStaging.
func (s *Store) BeginStaging(path string) (storage.Staging, error) {
	return &staging{store: s, path: path}, nil
}

// Walk implements storage.Walker.Walk, visiting files in lexicographic path
// order.
func (s *Store) Walk(root string, callback func(path string, metadata *storage.Metadata) error) error {
	// Snapshot matching paths under the read lock.
	s.lock.RLock()
	prefix := ""
	if root != "" {
		prefix = strings.TrimSuffix(root, "/") + "/"
	}
	var paths []string
	for path := range s.files {
		if prefix == "" || strings.HasPrefix(path, prefix) {
			paths = append(paths, path)
		}
	}
	s.lock.RUnlock()
	sort.Strings(paths)

	// Visit the files. Metadata is re-fetched per path so that the callback
	// observes consistent sizes, skipping paths deleted mid-walk.
	for _, path := range paths {
		metadata, err := s.Stat(path)
		if err != nil {
			continue
		}
		if err := callback(path, metadata); err != nil {
			return err
		}
	}

	// Success.
	return nil
}
