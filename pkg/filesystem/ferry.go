package filesystem

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const (
	// FerryDataDirectoryName is the name of the global Ferry data directory
	// inside the user's home directory.
	FerryDataDirectoryName = ".ferry"

	// FerryGlobalConfigurationName is the name of the global Ferry
	// configuration file within the Ferry data directory.
	FerryGlobalConfigurationName = "ferry.yml"

	// FerryManifestDatabaseName is the name of the manifest database file
	// within the Ferry data directory.
	FerryManifestDatabaseName = "manifest.db"
)

// Ferry computes (and optionally creates) subdirectories inside the Ferry
// data directory.
func Ferry(create bool, pathComponents ...string) (string, error) {
	// Compute the path to the Ferry data directory.
	ferryDataDirectoryPath := filepath.Join(HomeDirectory, FerryDataDirectoryName)

	// Compute the target path.
	result := filepath.Join(ferryDataDirectoryPath, filepath.Join(pathComponents...))

	// If requested, attempt to create the Ferry directory and the specified
	// subpath. Also ensure that the Ferry data directory is hidden.
	if create {
		if err := os.MkdirAll(result, 0700); err != nil {
			return "", errors.Wrap(err, "unable to create subpath")
		} else if err := MarkHidden(ferryDataDirectoryPath); err != nil {
			return "", errors.Wrap(err, "unable to hide Ferry data directory")
		}
	}

	// Success.
	return result, nil
}
