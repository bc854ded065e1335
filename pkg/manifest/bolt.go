package manifest

import (
	"encoding/binary"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"

	"github.com/ferry-io/ferry/pkg/delta"
	"github.com/ferry-io/ferry/pkg/filesystem"
	"github.com/ferry-io/ferry/pkg/logging"
)

const (
	// boltOpenTimeout is the maximum time to wait for the database file lock.
	boltOpenTimeout = 5 * time.Second
	// boltEntryHeaderSize is the fixed width of the metadata prefix stored
	// before each encoded index: fingerprint size (8) + fingerprint
	// modification time (8) + save time (8).
	boltEntryHeaderSize = 24
)

// boltBucket is the bucket holding signature index entries.
var boltBucket = []byte("signatures")

// BoltStore is a single-file persistent manifest store backed by a Bolt
// database.
type BoltStore struct {
	// db is the underlying database.
	db *bolt.DB
	// logger is the store's logger.
	logger *logging.Logger
}

// OpenBoltStore opens (creating if necessary) the Bolt-backed manifest store
// at the specified path. If path is empty, the default database inside the
// Ferry data directory is used.
func OpenBoltStore(path string, logger *logging.Logger) (*BoltStore, error) {
	// Compute the default path if necessary.
	if path == "" {
		dataDirectory, err := filesystem.Ferry(true)
		if err != nil {
			return nil, errors.Wrap(err, "unable to compute Ferry data directory")
		}
		path = dataDirectory + "/" + filesystem.FerryManifestDatabaseName
	}

	// Open the database.
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: boltOpenTimeout})
	if err != nil {
		return nil, errors.Wrap(err, "unable to open manifest database")
	}

	// Ensure that the signatures bucket exists.
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "unable to initialize manifest database")
	}

	// Success.
	return &BoltStore{db: db, logger: logger}, nil
}

// encodeEntry encodes a fingerprint, save time, and index into a single
// database value.
func encodeEntry(fingerprint Fingerprint, index *delta.SignatureIndex) []byte {
	encoded := EncodeIndex(index)
	result := make([]byte, boltEntryHeaderSize, boltEntryHeaderSize+len(encoded))
	binary.BigEndian.PutUint64(result[0:8], uint64(fingerprint.Size))
	binary.BigEndian.PutUint64(result[8:16], uint64(fingerprint.ModTime.UnixNano()))
	binary.BigEndian.PutUint64(result[16:24], uint64(time.Now().UnixNano()))
	return append(result, encoded...)
}

// decodeEntry decodes a database value into its fingerprint, save time, and
// index.
func decodeEntry(value []byte) (Fingerprint, time.Time, *delta.SignatureIndex, error) {
	if len(value) < boltEntryHeaderSize {
		return Fingerprint{}, time.Time{}, nil, errors.New("manifest entry truncated")
	}
	fingerprint := Fingerprint{
		Size:    int64(binary.BigEndian.Uint64(value[0:8])),
		ModTime: time.Unix(0, int64(binary.BigEndian.Uint64(value[8:16]))),
	}
	savedAt := time.Unix(0, int64(binary.BigEndian.Uint64(value[16:24])))
	index, err := DecodeIndex(value[boltEntryHeaderSize:])
	if err != nil {
		return Fingerprint{}, time.Time{}, nil, err
	}
	return fingerprint, savedAt, index, nil
}

// Load implements Store.Load.
func (s *BoltStore) Load(path string, fingerprint Fingerprint) (*delta.SignatureIndex, bool) {
	var result *delta.SignatureIndex
	err := s.db.View(func(tx *bolt.Tx) error {
		value := tx.Bucket(boltBucket).Get([]byte(path))
		if value == nil {
			return nil
		}
		stored, _, index, err := decodeEntry(value)
		if err != nil {
			// A corrupt entry is treated as a miss rather than a failure -
			// the worst case is index regeneration.
			s.logger.Warnf("Discarding corrupt manifest entry for %s: %v", path, err)
			return nil
		}
		if stored.matches(fingerprint) {
			result = index
		}
		return nil
	})
	if err != nil {
		s.logger.Warnf("Unable to load manifest entry for %s: %v", path, err)
		return nil, false
	}
	return result, result != nil
}

// Save implements Store.Save.
func (s *BoltStore) Save(path string, fingerprint Fingerprint, index *delta.SignatureIndex) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put([]byte(path), encodeEntry(fingerprint, index))
	})
}

// Delete implements Store.Delete.
func (s *BoltStore) Delete(path string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Delete([]byte(path))
	})
}

// Clean removes entries saved longer ago than the specified maximum age,
// returning the number of entries removed. It is used by maintenance
// operations to bound database growth.
func (s *BoltStore) Clean(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(boltBucket)
		cursor := bucket.Cursor()
		var stale [][]byte
		for key, value := cursor.First(); key != nil; key, value = cursor.Next() {
			_, savedAt, _, err := decodeEntry(value)
			if err != nil || savedAt.Before(cutoff) {
				stale = append(stale, append([]byte(nil), key...))
			}
		}
		for _, key := range stale {
			if err := bucket.Delete(key); err != nil {
				return err
			}
			removed += 1
		}
		return nil
	})
	return removed, err
}

// Close implements Store.Close.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
