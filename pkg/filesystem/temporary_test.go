package filesystem

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRemoveTemporaryFiles(t *testing.T) {
	// Create a directory tree containing a mix of temporary and regular
	// files.
	directory := t.TempDir()
	if err := os.MkdirAll(filepath.Join(directory, "nested"), 0700); err != nil {
		t.Fatal("unable to create nested directory:", err)
	}
	temporaries := []string{
		filepath.Join(directory, TemporaryNamePrefix+"staging-abc"),
		filepath.Join(directory, "nested", TemporaryNamePrefix+"atomic-write123"),
	}
	regulars := []string{
		filepath.Join(directory, "keep.txt"),
		filepath.Join(directory, "nested", "keep.bin"),
	}
	for _, path := range append(append([]string(nil), temporaries...), regulars...) {
		if err := os.WriteFile(path, []byte("contents"), 0600); err != nil {
			t.Fatal("unable to create test file:", err)
		}
	}

	// Remove temporary files and verify the count.
	removed, err := RemoveTemporaryFiles(directory)
	if err != nil {
		t.Fatal("unable to remove temporary files:", err)
	}
	if removed != len(temporaries) {
		t.Errorf("removed %d files, expected %d", removed, len(temporaries))
	}

	// Verify that only temporary files were removed.
	for _, path := range temporaries {
		if _, err := os.Lstat(path); !os.IsNotExist(err) {
			t.Error("temporary file survived removal:", path)
		}
	}
	for _, path := range regulars {
		if _, err := os.Lstat(path); err != nil {
			t.Error("regular file removed:", path)
		}
	}
}

func TestRemoveTemporaryFilesNonExistentRoot(t *testing.T) {
	if _, err := RemoveTemporaryFiles(filepath.Join(t.TempDir(), "absent")); err != nil {
		t.Error("removal under non-existent root failed:", err)
	}
}
