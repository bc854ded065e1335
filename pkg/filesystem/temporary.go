package filesystem

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const (
	// TemporaryNamePrefix is the file name prefix used for all temporary files
	// and directories created by Ferry. Using this prefix guarantees that any
	// such files can be identified and removed by maintenance operations. It
	// may be suffixed with additional elements if desired.
	TemporaryNamePrefix = ".ferry-temporary-"
)

// RemoveTemporaryFiles removes all Ferry temporary files beneath the
// specified directory, returning the number of files removed. Such files can
// be left behind by interrupted operations. Removal is best-effort: paths
// that disappear mid-walk are skipped, but any other removal failure aborts
// the operation.
func RemoveTemporaryFiles(root string) (int, error) {
	removed := 0
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), TemporaryNamePrefix) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return errors.Wrap(err, "unable to remove temporary file")
		}
		removed += 1
		return nil
	})
	return removed, err
}
