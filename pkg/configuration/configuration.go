// Package configuration provides loading facilities for Ferry's global YAML
// configuration file. Configuration values provide defaults only - command
// line flags always take precedence over file-based values.
package configuration

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/ferry-io/ferry/pkg/delta"
	"github.com/ferry-io/ferry/pkg/delta/hashing"
	"github.com/ferry-io/ferry/pkg/encoding"
	"github.com/ferry-io/ferry/pkg/filesystem"
)

// ManifestMode specifies the manifest persistence mode for transfers.
type ManifestMode uint8

const (
	// ManifestModeDefault represents an unspecified manifest mode. It should
	// be converted to one of the values below or an error should be returned.
	ManifestModeDefault ManifestMode = iota
	// ManifestModeNone specifies that no manifest store should be used.
	ManifestModeNone
	// ManifestModeMemory specifies that an in-process LRU manifest store
	// should be used.
	ManifestModeMemory
	// ManifestModeDisk specifies that the persistent manifest database
	// should be used.
	ManifestModeDisk
)

// IsDefault indicates whether or not the manifest mode is
// ManifestModeDefault.
func (m ManifestMode) IsDefault() bool {
	return m == ManifestModeDefault
}

// UnmarshalText implements encoding.TextUnmarshaler.UnmarshalText.
func (m *ManifestMode) UnmarshalText(textBytes []byte) error {
	text := string(textBytes)
	switch text {
	case "none":
		*m = ManifestModeNone
	case "memory":
		*m = ManifestModeMemory
	case "disk":
		*m = ManifestModeDisk
	default:
		return errors.Errorf("unknown manifest mode specification: %s", text)
	}
	return nil
}

// String provides a human-readable representation of a manifest mode.
func (m ManifestMode) String() string {
	switch m {
	case ManifestModeDefault:
		return "default"
	case ManifestModeNone:
		return "none"
	case ManifestModeMemory:
		return "memory"
	case ManifestModeDisk:
		return "disk"
	default:
		return "unknown"
	}
}

// Configuration is the global YAML configuration object type.
type Configuration struct {
	// Transfer contains default transfer parameters.
	Transfer struct {
		// BlockSize specifies the block size for signature generation. It
		// can be specified in human-friendly units. A value of 0 selects an
		// optimal block size per destination.
		BlockSize ByteSize `yaml:"blockSize"`
		// Hash specifies the strong hashing algorithm.
		Hash hashing.Algorithm `yaml:"hash"`
		// ParallelHashing specifies whether or not signature generation
		// should be spread across CPUs.
		ParallelHashing bool `yaml:"parallelHashing"`
		// MinimumFileSize specifies the size below which files are moved with
		// whole-file copies rather than delta transfers. It can be specified
		// in human-friendly units.
		MinimumFileSize ByteSize `yaml:"minimumFileSize"`
		// MaximumSizeRatio specifies the source/destination size ratio above
		// which delta transfers are not attempted.
		MaximumSizeRatio float64 `yaml:"maximumSizeRatio"`
		// WholeFile specifies whether or not to bypass delta transfers
		// entirely.
		WholeFile bool `yaml:"wholeFile"`
		// Jobs specifies the number of concurrent per-file operations in
		// directory transfers. A value of 0 uses the number of CPUs.
		Jobs int `yaml:"jobs"`
	} `yaml:"transfer"`
	// Ignore contains parameters related to transfer ignore specifications.
	Ignore struct {
		// Default specifies the default list of ignore specifications.
		Default []string `yaml:"default"`
	} `yaml:"ignore"`
	// Manifest contains parameters related to manifest persistence.
	Manifest struct {
		// Mode specifies the manifest persistence mode.
		Mode ManifestMode `yaml:"mode"`
	} `yaml:"manifest"`
}

// DeltaConfiguration converts the transfer section into a delta
// configuration.
func (c *Configuration) DeltaConfiguration() *delta.Config {
	return &delta.Config{
		BlockSize:           uint64(c.Transfer.BlockSize),
		StrongHashAlgorithm: c.Transfer.Hash,
		ParallelHashing:     c.Transfer.ParallelHashing,
		MinimumFileSize:     uint64(c.Transfer.MinimumFileSize),
		MaximumSizeRatio:    c.Transfer.MaximumSizeRatio,
		WholeFileOverride:   c.Transfer.WholeFile,
	}
}

// GlobalConfigurationPath returns the path of the global configuration file
// inside the Ferry data directory. It does not verify that the file exists.
func GlobalConfigurationPath() (string, error) {
	// Compute the path to the Ferry data directory.
	dataDirectory, err := filesystem.Ferry(false)
	if err != nil {
		return "", errors.Wrap(err, "unable to compute Ferry data directory")
	}

	// Success.
	return filepath.Join(dataDirectory, filesystem.FerryGlobalConfigurationName), nil
}

// loadFromPath is the internal loading function, kept separate from Load so
// that loading can be exercised against temporary files.
func loadFromPath(path string) (*Configuration, error) {
	// Create a configuration that we can decode into. Nothing will be
	// modified in this structure if the configuration file doesn't exist, so
	// absence yields defaults.
	result := &Configuration{}

	// Attempt to load the configuration from disk.
	if err := encoding.LoadAndUnmarshalYAML(path, result); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	// Success.
	return result, nil
}

// Load loads the global Ferry configuration file from disk and populates a
// Configuration structure. If the configuration file does not exist, a
// structure with default values is returned. The returned structure is not
// re-used, so its members can be freely mutated.
func Load() (*Configuration, error) {
	// Compute the configuration file path.
	path, err := GlobalConfigurationPath()
	if err != nil {
		return nil, err
	}

	// Load.
	return loadFromPath(path)
}
