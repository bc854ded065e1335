package transfer

import (
	"bytes"
	"context"
	"math/rand"
	"testing"

	"github.com/pkg/errors"

	"github.com/ferry-io/ferry/pkg/delta"
	"github.com/ferry-io/ferry/pkg/manifest"
	"github.com/ferry-io/ferry/pkg/storage"
	"github.com/ferry-io/ferry/pkg/storage/memory"
)

// testConfiguration returns a configuration suitable for small test files,
// lowering the minimum file size so that the decision policy permits delta
// transfers.
func testConfiguration() *delta.Config {
	return &delta.Config{
		BlockSize:       delta.MinimumBlockSize,
		MinimumFileSize: 1,
	}
}

// testContents generates deterministic pseudorandom contents.
func testContents(length int, seed int64) []byte {
	random := rand.New(rand.NewSource(seed))
	result := make([]byte, length)
	random.Read(result)
	return result
}

// requireConverged verifies that the destination store holds the expected
// contents at the specified path.
func requireConverged(t *testing.T, destination *memory.Store, path string, expected []byte) {
	t.Helper()
	contents, ok := destination.Contents(path)
	if !ok {
		t.Fatalf("destination missing %s", path)
	}
	if !bytes.Equal(contents, expected) {
		t.Errorf("destination contents for %s do not match source", path)
	}
}

// TestTransferFileDelta verifies a delta transfer between stores with an
// existing, similar destination.
func TestTransferFileDelta(t *testing.T) {
	// Create stores with similar contents on both sides.
	contents := testContents(4*delta.MinimumBlockSize, 1)
	source := memory.NewStore()
	destination := memory.NewStore()
	destination.Set("data.bin", contents)
	mutated := append([]byte(nil), contents...)
	mutated[delta.MinimumBlockSize+100] ^= 0x40
	source.Set("data.bin", mutated)

	// Create the session and perform the transfer.
	session, err := NewSession(source, destination, &SessionOptions{
		Configuration: testConfiguration(),
	})
	if err != nil {
		t.Fatal("unable to create session:", err)
	}
	stats, err := session.TransferFile("data.bin", "data.bin")
	if err != nil {
		t.Fatal("transfer failed:", err)
	}

	// Verify convergence and that most blocks were reused.
	requireConverged(t, destination, "data.bin", mutated)
	if stats == nil {
		t.Fatal("delta transfer returned no statistics")
	}
	if stats.BlocksMatched < 3 {
		t.Errorf("expected at least 3 matched blocks, got %d", stats.BlocksMatched)
	}
}

// TestTransferFileNewDestination verifies that a missing destination yields a
// whole-file transfer.
func TestTransferFileNewDestination(t *testing.T) {
	contents := testContents(3*delta.MinimumBlockSize, 2)
	source := memory.NewStore()
	source.Set("fresh.bin", contents)
	destination := memory.NewStore()

	session, err := NewSession(source, destination, &SessionOptions{
		Configuration: testConfiguration(),
	})
	if err != nil {
		t.Fatal("unable to create session:", err)
	}
	stats, err := session.TransferFile("fresh.bin", "fresh.bin")
	if err != nil {
		t.Fatal("transfer failed:", err)
	}
	if stats != nil {
		t.Error("whole-file transfer returned delta statistics")
	}
	requireConverged(t, destination, "fresh.bin", contents)
}

// TestTransferFileMissingSource verifies that a missing source is an error.
func TestTransferFileMissingSource(t *testing.T) {
	session, err := NewSession(memory.NewStore(), memory.NewStore(), nil)
	if err != nil {
		t.Fatal("unable to create session:", err)
	}
	if _, err := session.TransferFile("absent.bin", "absent.bin"); err == nil {
		t.Error("transfer of missing source succeeded")
	}
}

// TestTransferFileWholeFileOverride verifies that the configuration override
// bypasses the delta pipeline.
func TestTransferFileWholeFileOverride(t *testing.T) {
	contents := testContents(4*delta.MinimumBlockSize, 3)
	source := memory.NewStore()
	destination := memory.NewStore()
	source.Set("data.bin", contents)
	destination.Set("data.bin", contents)

	configuration := testConfiguration()
	configuration.WholeFileOverride = true
	session, err := NewSession(source, destination, &SessionOptions{
		Configuration: configuration,
	})
	if err != nil {
		t.Fatal("unable to create session:", err)
	}
	stats, err := session.TransferFile("data.bin", "data.bin")
	if err != nil {
		t.Fatal("transfer failed:", err)
	}
	if stats != nil {
		t.Error("forced whole-file transfer returned delta statistics")
	}
	requireConverged(t, destination, "data.bin", contents)
}

// brokenDestinationStore wraps a store and fails destination opens, forcing
// any delta attempt to fail.
type brokenDestinationStore struct {
	*memory.Store
}

func (s *brokenDestinationStore) OpenDestination(path string) (storage.Destination, error) {
	return nil, errors.New("destination unavailable")
}

// TestTransferFileFallback verifies that a failed delta attempt falls back to
// a whole-file copy that still converges.
func TestTransferFileFallback(t *testing.T) {
	contents := testContents(4*delta.MinimumBlockSize, 4)
	source := memory.NewStore()
	destination := memory.NewStore()
	source.Set("data.bin", contents)
	destination.Set("data.bin", testContents(4*delta.MinimumBlockSize, 5))

	session, err := NewSession(source, &brokenDestinationStore{destination}, &SessionOptions{
		Configuration: testConfiguration(),
	})
	if err != nil {
		t.Fatal("unable to create session:", err)
	}
	result, err := session.transferFile(delta.NewEngine(), "data.bin", "data.bin")
	if err != nil {
		t.Fatal("transfer failed:", err)
	}
	if !result.fallback {
		t.Error("expected whole-file fallback")
	}
	if result.copied != uint64(len(contents)) {
		t.Errorf("fallback copied %d bytes, expected %d", result.copied, len(contents))
	}
	requireConverged(t, destination, "data.bin", contents)
}

// TestTransferFileWithManifests verifies that a manifest store accelerates
// repeated transfers without affecting convergence.
func TestTransferFileWithManifests(t *testing.T) {
	contents := testContents(4*delta.MinimumBlockSize, 6)
	source := memory.NewStore()
	destination := memory.NewStore()
	destination.Set("data.bin", contents)
	mutated := append([]byte(nil), contents...)
	mutated[100] ^= 0x01
	source.Set("data.bin", mutated)

	manifests := manifest.NewMemoryStore(0)
	defer manifests.Close()
	session, err := NewSession(source, destination, &SessionOptions{
		Configuration: testConfiguration(),
		Manifests:     manifests,
	})
	if err != nil {
		t.Fatal("unable to create session:", err)
	}

	// First transfer populates the manifest store.
	if _, err := session.TransferFile("data.bin", "data.bin"); err != nil {
		t.Fatal("first transfer failed:", err)
	}
	requireConverged(t, destination, "data.bin", mutated)

	// A second transfer (now a no-op delta) must still converge, whether the
	// manifest entry hits or the changed fingerprint forces regeneration.
	source.Set("data.bin", contents)
	if _, err := session.TransferFile("data.bin", "data.bin"); err != nil {
		t.Fatal("second transfer failed:", err)
	}
	requireConverged(t, destination, "data.bin", contents)
}

// TestTransferFileMismatchedManifestIndex verifies that a manifest-supplied
// index with an incompatible block size is treated as a miss, forcing
// regeneration and keeping the transfer correct.
func TestTransferFileMismatchedManifestIndex(t *testing.T) {
	contents := testContents(4*delta.MinimumBlockSize, 7)
	source := memory.NewStore()
	destination := memory.NewStore()
	source.Set("data.bin", contents)
	destination.Set("data.bin", contents)

	// Prime the manifest store with an index computed at a different block
	// size than the session's configuration.
	metadata, err := destination.Stat("data.bin")
	if err != nil {
		t.Fatal("unable to stat destination:", err)
	}
	index := delta.NewEngine().BytesSignature(contents, 2*delta.MinimumBlockSize, 0)
	manifests := manifest.NewMemoryStore(0)
	defer manifests.Close()
	if err := manifests.Save("data.bin", manifest.FingerprintFor(metadata), index); err != nil {
		t.Fatal("unable to prime manifest store:", err)
	}

	// The transfer must still converge, with the mismatched entry ignored.
	session, err := NewSession(source, destination, &SessionOptions{
		Configuration: testConfiguration(),
		Manifests:     manifests,
	})
	if err != nil {
		t.Fatal("unable to create session:", err)
	}
	if _, err := session.TransferFile("data.bin", "data.bin"); err != nil {
		t.Fatal("transfer failed:", err)
	}
	requireConverged(t, destination, "data.bin", contents)
}

// brokenSourceStore wraps a store and fails source opens for a single path.
type brokenSourceStore struct {
	*memory.Store
	broken string
}

func (s *brokenSourceStore) OpenSource(path string) (storage.Source, error) {
	if path == s.broken {
		return nil, errors.New("source unavailable")
	}
	return s.Store.OpenSource(path)
}

// TestTransferTree verifies directory transfers: convergence across multiple
// files, ignore filtering, per-file error isolation, and summary accounting.
func TestTransferTree(t *testing.T) {
	// Populate the source with a mix of fresh, updated, and ignored files,
	// plus one file whose transfer will fail.
	source := memory.NewStore()
	destination := memory.NewStore()
	shared := testContents(4*delta.MinimumBlockSize, 8)
	updated := append([]byte(nil), shared...)
	updated[delta.MinimumBlockSize] ^= 0x80
	fresh := testContents(2*delta.MinimumBlockSize, 9)
	source.Set("tree/updated.bin", updated)
	destination.Set("tree/updated.bin", shared)
	source.Set("tree/fresh.bin", fresh)
	source.Set("tree/skipped.log", []byte("ignore me"))
	source.Set("tree/broken.bin", []byte("unreadable"))

	session, err := NewSession(
		&brokenSourceStore{source, "tree/broken.bin"},
		destination,
		&SessionOptions{
			Configuration: testConfiguration(),
			Ignores:       []string{"*.log"},
			Jobs:          2,
		},
	)
	if err != nil {
		t.Fatal("unable to create session:", err)
	}
	summary, err := session.TransferTree(context.Background(), "tree")
	if err != nil {
		t.Fatal("tree transfer failed:", err)
	}

	// Verify convergence of the transferable files.
	requireConverged(t, destination, "tree/updated.bin", updated)
	requireConverged(t, destination, "tree/fresh.bin", fresh)
	if _, ok := destination.Contents("tree/skipped.log"); ok {
		t.Error("ignored file was transferred")
	}
	if _, ok := destination.Contents("tree/broken.bin"); ok {
		t.Error("broken file was transferred")
	}

	// Verify summary accounting.
	if summary.Files != 2 {
		t.Errorf("expected 2 transferred files, got %d", summary.Files)
	}
	if summary.DeltaTransfers != 1 {
		t.Errorf("expected 1 delta transfer, got %d", summary.DeltaTransfers)
	}
	if summary.WholeFileTransfers != 1 {
		t.Errorf("expected 1 whole-file transfer, got %d", summary.WholeFileTransfers)
	}
	if len(summary.Errors) != 1 {
		t.Fatalf("expected 1 file error, got %d", len(summary.Errors))
	} else if summary.Errors[0].Path != "tree/broken.bin" {
		t.Errorf("unexpected failed path: %s", summary.Errors[0].Path)
	}
	if summary.BytesMatched == 0 {
		t.Error("summary recorded no matched bytes")
	}
}

// TestTransferTreeCancellation verifies that a cancelled context aborts a
// directory transfer.
func TestTransferTreeCancellation(t *testing.T) {
	source := memory.NewStore()
	source.Set("tree/data.bin", testContents(delta.MinimumBlockSize, 10))
	session, err := NewSession(source, memory.NewStore(), nil)
	if err != nil {
		t.Fatal("unable to create session:", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := session.TransferTree(ctx, "tree"); err == nil {
		t.Error("cancelled tree transfer succeeded")
	}
}

// TestNewSessionInvalidConfiguration verifies configuration validation.
func TestNewSessionInvalidConfiguration(t *testing.T) {
	configuration := &delta.Config{BlockSize: delta.MinimumBlockSize - 1}
	if _, err := NewSession(memory.NewStore(), memory.NewStore(), &SessionOptions{
		Configuration: configuration,
	}); err == nil {
		t.Error("session created with invalid configuration")
	}
}

// TestNewSessionInvalidIgnores verifies ignore pattern validation.
func TestNewSessionInvalidIgnores(t *testing.T) {
	if _, err := NewSession(memory.NewStore(), memory.NewStore(), &SessionOptions{
		Ignores: []string{"!"},
	}); err == nil {
		t.Error("session created with invalid ignore pattern")
	}
}
