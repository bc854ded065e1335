package local

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ferry-io/ferry/pkg/filesystem"
	"github.com/ferry-io/ferry/pkg/storage"
)

// TestStoreMissingPaths verifies that missing paths surface as
// storage.ErrNotExist across the store surface.
func TestStoreMissingPaths(t *testing.T) {
	store := NewStore(t.TempDir(), nil)
	if _, err := store.Stat("missing"); err != storage.ErrNotExist {
		t.Errorf("Stat returned %v, expected ErrNotExist", err)
	}
	if _, err := store.OpenSource("missing"); err != storage.ErrNotExist {
		t.Errorf("OpenSource returned %v, expected ErrNotExist", err)
	}
	if _, err := store.OpenDestination("missing"); err != storage.ErrNotExist {
		t.Errorf("OpenDestination returned %v, expected ErrNotExist", err)
	}
}

// TestStagingCommitIsAtomic verifies that staged content is invisible until
// Commit, that the staging file carries the temporary name prefix, and that
// Commit atomically replaces the destination.
func TestStagingCommitIsAtomic(t *testing.T) {
	// Create a store with an existing destination.
	root := t.TempDir()
	store := NewStore(root, nil)
	if err := os.WriteFile(filepath.Join(root, "file"), []byte("old"), 0600); err != nil {
		t.Fatal("unable to create destination:", err)
	}

	// Begin staging and write new content.
	staging, err := store.BeginStaging("file")
	if err != nil {
		t.Fatal("unable to begin staging:", err)
	}
	if _, err := staging.Write([]byte("new content")); err != nil {
		t.Fatal("unable to write staged content:", err)
	}

	// Verify that the destination still has its old content and that the
	// staging file is identifiable by its prefix.
	if contents, err := os.ReadFile(filepath.Join(root, "file")); err != nil {
		t.Fatal("unable to read destination:", err)
	} else if !bytes.Equal(contents, []byte("old")) {
		t.Error("destination modified before commit")
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal("unable to list root:", err)
	}
	foundStaging := false
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), filesystem.TemporaryNamePrefix) {
			foundStaging = true
		}
	}
	if !foundStaging {
		t.Error("staging file does not carry the temporary name prefix")
	}

	// Commit and verify the publish.
	if err := staging.Commit(); err != nil {
		t.Fatal("unable to commit staged content:", err)
	}
	if contents, err := os.ReadFile(filepath.Join(root, "file")); err != nil {
		t.Fatal("unable to read destination:", err)
	} else if !bytes.Equal(contents, []byte("new content")) {
		t.Error("destination does not have staged content after commit")
	}
}

// TestStagingDiscard verifies that Discard removes the staging file and
// leaves the destination untouched.
func TestStagingDiscard(t *testing.T) {
	// Create a store with an existing destination.
	root := t.TempDir()
	store := NewStore(root, nil)
	if err := os.WriteFile(filepath.Join(root, "file"), []byte("old"), 0600); err != nil {
		t.Fatal("unable to create destination:", err)
	}

	// Stage content and then discard it.
	staging, err := store.BeginStaging("file")
	if err != nil {
		t.Fatal("unable to begin staging:", err)
	}
	if _, err := staging.Write([]byte("abandoned")); err != nil {
		t.Fatal("unable to write staged content:", err)
	}
	if err := staging.Discard(); err != nil {
		t.Fatal("unable to discard staged content:", err)
	}

	// Verify that the destination is untouched and no staging files remain.
	if contents, err := os.ReadFile(filepath.Join(root, "file")); err != nil {
		t.Fatal("unable to read destination:", err)
	} else if !bytes.Equal(contents, []byte("old")) {
		t.Error("destination modified by discarded staging")
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal("unable to list root:", err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), filesystem.TemporaryNamePrefix) {
			t.Error("staging file remains after discard")
		}
	}
}

// TestDestinationRandomAccess verifies offset reads and length reporting for
// destinations.
func TestDestinationRandomAccess(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root, nil)
	if err := os.WriteFile(filepath.Join(root, "file"), []byte("0123456789"), 0600); err != nil {
		t.Fatal("unable to create destination:", err)
	}
	destination, err := store.OpenDestination("file")
	if err != nil {
		t.Fatal("unable to open destination:", err)
	}
	defer destination.Close()
	if destination.Length() != 10 {
		t.Errorf("destination length was %d, expected 10", destination.Length())
	}
	buffer := make([]byte, 4)
	if _, err := destination.ReadAt(buffer, 3); err != nil && err != io.EOF {
		t.Fatal("unable to read destination range:", err)
	} else if !bytes.Equal(buffer, []byte("3456")) {
		t.Errorf("read %q, expected %q", buffer, "3456")
	}
}

// TestWalk verifies file enumeration, including the exclusion of temporary
// files.
func TestWalk(t *testing.T) {
	// Create a store with a small tree and a stale temporary file.
	root := t.TempDir()
	store := NewStore(root, nil)
	if err := os.MkdirAll(filepath.Join(root, "nested"), 0700); err != nil {
		t.Fatal("unable to create directory:", err)
	}
	for path, contents := range map[string]string{
		"a":                                      "alpha",
		"nested/b":                               "beta",
		filesystem.TemporaryNamePrefix + "stale": "junk",
	} {
		if err := os.WriteFile(filepath.Join(root, path), []byte(contents), 0600); err != nil {
			t.Fatal("unable to create file:", err)
		}
	}

	// Walk and collect paths.
	var paths []string
	if err := store.Walk("", func(path string, metadata *storage.Metadata) error {
		paths = append(paths, path)
		return nil
	}); err != nil {
		t.Fatal("walk failed:", err)
	}

	// Verify the walked set.
	if len(paths) != 2 {
		t.Fatalf("walk visited %d files, expected 2: %v", len(paths), paths)
	}
	for _, path := range paths {
		if path != "a" && path != "nested/b" {
			t.Errorf("walk visited unexpected path: %s", path)
		}
	}
}
