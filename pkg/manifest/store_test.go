package manifest

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/boltdb/bolt"

	"github.com/ferry-io/ferry/pkg/delta/hashing"
)

// testFingerprint returns a fingerprint with a fixed modification time.
func testFingerprint(size int64) Fingerprint {
	return Fingerprint{
		Size:    size,
		ModTime: time.Unix(1700000000, 123456789),
	}
}

// testStore exercises the Store contract against an implementation.
func testStore(t *testing.T, store Store) {
	t.Helper()
	index := testIndex(t, 300000, hashing.AlgorithmSHA256)
	fingerprint := testFingerprint(300000)

	// A load from an empty store misses.
	if _, ok := store.Load("data.bin", fingerprint); ok {
		t.Error("load from empty store hit")
	}

	// A save followed by a load with the same fingerprint hits.
	if err := store.Save("data.bin", fingerprint, index); err != nil {
		t.Fatal("unable to save entry:", err)
	}
	loaded, ok := store.Load("data.bin", fingerprint)
	if !ok {
		t.Fatal("load after save missed")
	}
	if !indexesEqual(index, loaded) {
		t.Error("loaded index does not match saved index")
	}

	// A stale fingerprint misses.
	stale := fingerprint
	stale.ModTime = stale.ModTime.Add(time.Second)
	if _, ok := store.Load("data.bin", stale); ok {
		t.Error("load with stale fingerprint hit")
	}

	// A save replaces any previous entry.
	replacement := testIndex(t, 200000, hashing.AlgorithmBLAKE3)
	if err := store.Save("data.bin", fingerprint, replacement); err != nil {
		t.Fatal("unable to replace entry:", err)
	}
	if loaded, ok := store.Load("data.bin", fingerprint); !ok {
		t.Error("load after replacement missed")
	} else if !indexesEqual(replacement, loaded) {
		t.Error("loaded index does not match replacement")
	}

	// A delete removes the entry.
	if err := store.Delete("data.bin"); err != nil {
		t.Fatal("unable to delete entry:", err)
	}
	if _, ok := store.Load("data.bin", fingerprint); ok {
		t.Error("load after delete hit")
	}
}

// TestMemoryStore verifies the Store contract for memory stores.
func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore(0)
	defer store.Close()
	testStore(t, store)
}

// TestMemoryStoreEviction verifies LRU eviction at capacity.
func TestMemoryStoreEviction(t *testing.T) {
	store := NewMemoryStore(1)
	defer store.Close()
	index := testIndex(t, 100000, hashing.AlgorithmSHA256)
	fingerprint := testFingerprint(100000)
	if err := store.Save("first.bin", fingerprint, index); err != nil {
		t.Fatal("unable to save first entry:", err)
	}
	if err := store.Save("second.bin", fingerprint, index); err != nil {
		t.Fatal("unable to save second entry:", err)
	}
	if _, ok := store.Load("first.bin", fingerprint); ok {
		t.Error("evicted entry still loadable")
	}
	if _, ok := store.Load("second.bin", fingerprint); !ok {
		t.Error("retained entry not loadable")
	}
}

// TestBoltStore verifies the Store contract for Bolt stores, including
// persistence across reopens.
func TestBoltStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.db")
	store, err := OpenBoltStore(path, nil)
	if err != nil {
		t.Fatal("unable to open store:", err)
	}
	testStore(t, store)

	// Save an entry, close, and reopen to verify persistence.
	index := testIndex(t, 150000, hashing.AlgorithmSHA256)
	fingerprint := testFingerprint(150000)
	if err := store.Save("persisted.bin", fingerprint, index); err != nil {
		t.Fatal("unable to save entry:", err)
	}
	if err := store.Close(); err != nil {
		t.Fatal("unable to close store:", err)
	}
	store, err = OpenBoltStore(path, nil)
	if err != nil {
		t.Fatal("unable to reopen store:", err)
	}
	defer store.Close()
	if loaded, ok := store.Load("persisted.bin", fingerprint); !ok {
		t.Error("persisted entry not loadable after reopen")
	} else if !indexesEqual(index, loaded) {
		t.Error("persisted index does not match original")
	}
}

// TestBoltStoreCorruptEntry verifies that corrupt entries behave as misses.
func TestBoltStoreCorruptEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.db")
	store, err := OpenBoltStore(path, nil)
	if err != nil {
		t.Fatal("unable to open store:", err)
	}
	defer store.Close()

	// Write garbage directly at the entry's key.
	if err := store.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put([]byte("corrupt.bin"), []byte("garbage"))
	}); err != nil {
		t.Fatal("unable to write corrupt entry:", err)
	}
	if _, ok := store.Load("corrupt.bin", testFingerprint(7)); ok {
		t.Error("corrupt entry produced a hit")
	}
}

// TestBoltStoreClean verifies age-based garbage collection.
func TestBoltStoreClean(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.db")
	store, err := OpenBoltStore(path, nil)
	if err != nil {
		t.Fatal("unable to open store:", err)
	}
	defer store.Close()
	index := testIndex(t, 100000, hashing.AlgorithmSHA256)
	fingerprint := testFingerprint(100000)
	if err := store.Save("data.bin", fingerprint, index); err != nil {
		t.Fatal("unable to save entry:", err)
	}

	// A generous maximum age retains the entry.
	if removed, err := store.Clean(time.Hour); err != nil {
		t.Fatal("clean failed:", err)
	} else if removed != 0 {
		t.Errorf("clean removed %d fresh entries", removed)
	}
	if _, ok := store.Load("data.bin", fingerprint); !ok {
		t.Error("fresh entry removed by clean")
	}

	// A zero maximum age removes everything saved before now.
	if removed, err := store.Clean(0); err != nil {
		t.Fatal("clean failed:", err)
	} else if removed != 1 {
		t.Errorf("clean removed %d entries, expected 1", removed)
	}
	if _, ok := store.Load("data.bin", fingerprint); ok {
		t.Error("stale entry survived clean")
	}
}
