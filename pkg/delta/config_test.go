package delta

import (
	"testing"
)

// TestConfigEnsureValid tests configuration validation.
func TestConfigEnsureValid(t *testing.T) {
	// Set up test cases.
	testCases := []struct {
		description   string
		configuration *Config
		expectValid   bool
	}{
		{"nil configuration", nil, false},
		{"zero configuration", &Config{}, true},
		{"minimum block size", &Config{BlockSize: MinimumBlockSize}, true},
		{"maximum block size", &Config{BlockSize: MaximumBlockSize}, true},
		{"block size too small", &Config{BlockSize: MinimumBlockSize - 1}, false},
		{"block size too large", &Config{BlockSize: MaximumBlockSize + 1}, false},
		{"valid size ratio", &Config{MaximumSizeRatio: 2.0}, true},
		{"size ratio below 1", &Config{MaximumSizeRatio: 0.5}, false},
		{"unsupported hashing algorithm", &Config{StrongHashAlgorithm: 100}, false},
	}

	// Process test cases.
	for _, testCase := range testCases {
		if err := testCase.configuration.EnsureValid(); err != nil && testCase.expectValid {
			t.Errorf("%s: unexpectedly invalid: %v", testCase.description, err)
		} else if err == nil && !testCase.expectValid {
			t.Errorf("%s: unexpectedly valid", testCase.description)
		}
	}
}

// TestOptimalBlockSizeForBaseLength verifies that computed block sizes are
// clamped to the supported range.
func TestOptimalBlockSizeForBaseLength(t *testing.T) {
	// Process a spread of base lengths, including extremes.
	for _, baseLength := range []uint64{0, 1024, 1 << 20, 1 << 30, 1 << 50} {
		result := OptimalBlockSizeForBaseLength(baseLength)
		if result < MinimumBlockSize || result > MaximumBlockSize {
			t.Errorf("block size for length %d outside supported range", baseLength)
		}
	}

	// Verify clamping at the extremes.
	if OptimalBlockSizeForBaseLength(0) != MinimumBlockSize {
		t.Error("small base did not clamp to minimum block size")
	}
	if OptimalBlockSizeForBaseLength(1<<50) != MaximumBlockSize {
		t.Error("huge base did not clamp to maximum block size")
	}
}
