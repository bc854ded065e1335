package manifest

import (
	"sync"

	"github.com/golang/groupcache/lru"

	"github.com/ferry-io/ferry/pkg/delta"
)

const (
	// DefaultMemoryStoreCapacity is the default maximum number of indexes
	// retained by a memory store.
	DefaultMemoryStoreCapacity = 256
)

// memoryEntry is a single cached index with its fingerprint.
type memoryEntry struct {
	fingerprint Fingerprint
	index       *delta.SignatureIndex
}

// MemoryStore is an in-process, LRU-evicting manifest store for long-running
// embedders. It is safe for concurrent use.
type MemoryStore struct {
	// lock serializes access to the cache, which is not itself safe for
	// concurrent use.
	lock sync.Mutex
	// cache is the underlying LRU cache.
	cache *lru.Cache
}

// NewMemoryStore creates a memory store retaining at most capacity indexes.
// If capacity is 0, a default capacity is used.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity == 0 {
		capacity = DefaultMemoryStoreCapacity
	}
	return &MemoryStore{
		cache: lru.New(capacity),
	}
}

// Load implements Store.Load.
func (s *MemoryStore) Load(path string, fingerprint Fingerprint) (*delta.SignatureIndex, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	value, ok := s.cache.Get(path)
	if !ok {
		return nil, false
	}
	entry := value.(*memoryEntry)
	if !entry.fingerprint.matches(fingerprint) {
		// The destination has changed since the index was computed, so the
		// entry is useless and can be dropped eagerly.
		s.cache.Remove(path)
		return nil, false
	}
	return entry.index, true
}

// Save implements Store.Save.
func (s *MemoryStore) Save(path string, fingerprint Fingerprint, index *delta.SignatureIndex) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.cache.Add(path, &memoryEntry{fingerprint, index})
	return nil
}

// Delete implements Store.Delete.
func (s *MemoryStore) Delete(path string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.cache.Remove(path)
	return nil
}

// Close implements Store.Close.
func (s *MemoryStore) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.cache.Clear()
	return nil
}
