// Package local provides an os-backed implementation of the storage
// capabilities. Staging targets are temporary files created beside the
// destination and atomically renamed over it on commit.
package local

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/ferry-io/ferry/pkg/filesystem"
	"github.com/ferry-io/ferry/pkg/logging"
	"github.com/ferry-io/ferry/pkg/must"
	"github.com/ferry-io/ferry/pkg/storage"
)

const (
	// stagingNamePrefix is the file name prefix used for staging temporary
	// files.
	stagingNamePrefix = filesystem.TemporaryNamePrefix + "staging-"
)

// Store is an os-backed storage.Store rooted at a directory. The zero root
// treats paths as native paths.
type Store struct {
	// root is the root directory for the store, or empty if paths should be
	// treated natively.
	root string
	// logger is the store's logger.
	logger *logging.Logger
}

// NewStore creates a local store rooted at the specified directory. If root
// is empty, paths are treated as native filesystem paths.
func NewStore(root string, logger *logging.Logger) *Store {
	return &Store{
		root:   root,
		logger: logger,
	}
}

// resolve converts a store path to a native filesystem path.
func (s *Store) resolve(path string) string {
	if s.root == "" {
		return filepath.FromSlash(path)
	}
	return filepath.Join(s.root, filepath.FromSlash(path))
}

// Stat implements storage.Store.Stat.
func (s *Store) Stat(path string) (*storage.Metadata, error) {
	info, err := os.Stat(s.resolve(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrNotExist
		}
		return nil, errors.Wrap(err, "unable to stat path")
	} else if info.IsDir() {
		return nil, errors.New("path is a directory")
	}
	return &storage.Metadata{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// OpenSource implements storage.Store.OpenSource.
func (s *Store) OpenSource(path string) (storage.Source, error) {
	file, err := os.Open(s.resolve(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrNotExist
		}
		return nil, errors.Wrap(err, "unable to open source")
	}
	return file, nil
}

// destination adapts an os.File to the storage.Destination interface.
type destination struct {
	*os.File
	length int64
}

// Length implements storage.Destination.Length.
func (d *destination) Length() int64 {
	return d.length
}

// OpenDestination implements storage.Store.OpenDestination.
func (s *Store) OpenDestination(path string) (storage.Destination, error) {
	file, err := os.Open(s.resolve(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrNotExist
		}
		return nil, errors.Wrap(err, "unable to open destination")
	}
	info, err := file.Stat()
	if err != nil {
		must.Close(file, s.logger)
		return nil, errors.Wrap(err, "unable to stat destination")
	}
	return &destination{file, info.Size()}, nil
}

// staging is a temporary file staging target that atomically replaces its
// associated destination on commit.
type staging struct {
	// file is the temporary file receiving staged content. It is nil once
	// the staging target has been committed or discarded.
	file *os.File
	// target is the native path that Commit will replace.
	target string
	// logger is the staging target's logger.
	logger *logging.Logger
}

// Write implements io.Writer.Write.
func (s *staging) Write(data []byte) (int, error) {
	if s.file == nil {
		return 0, errors.New("staging target already finalized")
	}
	return s.file.Write(data)
}

// Commit implements storage.Staging.Commit.
func (s *staging) Commit() error {
	if s.file == nil {
		return errors.New("staging target already finalized")
	}
	file := s.file
	s.file = nil

	// Flush the staged content to disk before publishing. A rename that
	// lands before its content would leave a window in which a crash could
	// expose a partially written destination.
	if err := file.Sync(); err != nil {
		must.Close(file, s.logger)
		must.OSRemove(file.Name(), s.logger)
		return errors.Wrap(err, "unable to flush staged content")
	} else if err = file.Close(); err != nil {
		must.OSRemove(file.Name(), s.logger)
		return errors.Wrap(err, "unable to close staging file")
	}

	// Atomically publish the staged content over the destination.
	if err := os.Rename(file.Name(), s.target); err != nil {
		must.OSRemove(file.Name(), s.logger)
		return errors.Wrap(err, "unable to publish staged content")
	}

	// Success.
	return nil
}

// Discard implements storage.Staging.Discard.
func (s *staging) Discard() error {
	if s.file == nil {
		return nil
	}
	file := s.file
	s.file = nil
	must.Close(file, s.logger)
	if err := os.Remove(file.Name()); err != nil {
		return errors.Wrap(err, "unable to remove staging file")
	}
	return nil
}

// BeginStaging implements storage.Store.BeginStaging.
func (s *Store) BeginStaging(path string) (storage.Staging, error) {
	// Resolve the target path and ensure that its parent directory exists.
	target := s.resolve(path)
	if err := os.MkdirAll(filepath.Dir(target), 0700); err != nil {
		return nil, errors.Wrap(err, "unable to create destination directory")
	}

	// Create the staging file beside the target so that the final rename
	// stays within one filesystem and remains atomic.
	file, err := os.CreateTemp(filepath.Dir(target), stagingNamePrefix)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create staging file")
	}

	// Success.
	return &staging{
		file:   file,
		target: target,
		logger: s.logger,
	}, nil
}

// Walk implements storage.Walker.Walk.
func (s *Store) Walk(root string, callback func(path string, metadata *storage.Metadata) error) error {
	nativeRoot := s.resolve(root)
	return filepath.WalkDir(nativeRoot, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		} else if entry.IsDir() {
			return nil
		} else if strings.HasPrefix(entry.Name(), filesystem.TemporaryNamePrefix) {
			// Skip temporary files left behind by interrupted operations.
			return nil
		}
		relative, err := filepath.Rel(nativeRoot, path)
		if err != nil {
			return errors.Wrap(err, "unable to compute relative path")
		}
		info, err := entry.Info()
		if err != nil {
			return errors.Wrap(err, "unable to extract file metadata")
		}
		storePath := filepath.ToSlash(relative)
		if root != "" {
			storePath = root + "/" + storePath
		}
		return callback(storePath, &storage.Metadata{
			Path:    storePath,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	})
}
