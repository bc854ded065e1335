package delta

import (
	"testing"

	"github.com/ferry-io/ferry/pkg/storage"
)

// TestDecide tests each transfer decision policy condition independently.
func TestDecide(t *testing.T) {
	// Set up test cases.
	testCases := []struct {
		description   string
		source        *storage.Metadata
		destination   *storage.Metadata
		configuration *Config
		expected      Decision
	}{
		{
			"similar large files",
			&storage.Metadata{Size: 10 * 1024 * 1024},
			&storage.Metadata{Size: 9 * 1024 * 1024},
			&Config{},
			DecisionDelta,
		},
		{
			"missing destination",
			&storage.Metadata{Size: 10 * 1024 * 1024},
			nil,
			&Config{},
			DecisionWholeFile,
		},
		{
			"source below minimum file size",
			&storage.Metadata{Size: 1024},
			&storage.Metadata{Size: 10 * 1024 * 1024},
			&Config{MinimumFileSize: 65536},
			DecisionWholeFile,
		},
		{
			"destination below minimum file size",
			&storage.Metadata{Size: 10 * 1024 * 1024},
			&storage.Metadata{Size: 1024},
			&Config{MinimumFileSize: 65536},
			DecisionWholeFile,
		},
		{
			"size ratio exceeded",
			&storage.Metadata{Size: 100 * 1024 * 1024},
			&storage.Metadata{Size: 1024 * 1024},
			&Config{MaximumSizeRatio: 4.0},
			DecisionWholeFile,
		},
		{
			"size ratio exceeded with larger destination",
			&storage.Metadata{Size: 1024 * 1024},
			&storage.Metadata{Size: 100 * 1024 * 1024},
			&Config{MaximumSizeRatio: 4.0},
			DecisionWholeFile,
		},
		{
			"whole-file override",
			&storage.Metadata{Size: 10 * 1024 * 1024},
			&storage.Metadata{Size: 10 * 1024 * 1024},
			&Config{WholeFileOverride: true},
			DecisionWholeFile,
		},
		{
			"nil configuration with defaults",
			&storage.Metadata{Size: 10 * 1024 * 1024},
			&storage.Metadata{Size: 9 * 1024 * 1024},
			nil,
			DecisionDelta,
		},
	}

	// Process test cases.
	for _, testCase := range testCases {
		decision, reason := Decide(testCase.source, testCase.destination, testCase.configuration)
		if decision != testCase.expected {
			t.Errorf(
				"%s: decision (%s) does not match expected (%s)",
				testCase.description, decision, testCase.expected,
			)
		}
		if decision == DecisionWholeFile && reason == "" {
			t.Errorf("%s: whole-file decision missing reason", testCase.description)
		} else if decision == DecisionDelta && reason != "" {
			t.Errorf("%s: delta decision carries unexpected reason", testCase.description)
		}
	}
}
