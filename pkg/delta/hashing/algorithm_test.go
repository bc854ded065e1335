package hashing

import (
	"testing"
)

// TestAlgorithmUnmarshal tests that unmarshaling from a string specification
// succeeds for Algorithm.
func TestAlgorithmUnmarshal(t *testing.T) {
	// Set up test cases.
	testCases := []struct {
		text          string
		expected      Algorithm
		expectFailure bool
	}{
		{"", AlgorithmDefault, true},
		{"asdf", AlgorithmDefault, true},
		{"sha1", AlgorithmDefault, true},
		{"sha256", AlgorithmSHA256, false},
		{"blake3", AlgorithmBLAKE3, false},
	}

	// Process test cases.
	for _, testCase := range testCases {
		var algorithm Algorithm
		if err := algorithm.UnmarshalText([]byte(testCase.text)); err != nil {
			if !testCase.expectFailure {
				t.Errorf("unable to unmarshal text (%s): %s", testCase.text, err)
			}
		} else if testCase.expectFailure {
			t.Error("unmarshaling succeeded unexpectedly for text:", testCase.text)
		} else if algorithm != testCase.expected {
			t.Errorf(
				"unmarshaled algorithm (%s) does not match expected (%s)",
				algorithm.Description(),
				testCase.expected.Description(),
			)
		}
	}
}

// TestAlgorithmSupported tests that Algorithm support detection works as
// expected.
func TestAlgorithmSupported(t *testing.T) {
	// Set up test cases.
	testCases := []struct {
		algorithm Algorithm
		expected  bool
	}{
		{AlgorithmDefault, false},
		{AlgorithmSHA256, true},
		{AlgorithmBLAKE3, true},
		{(AlgorithmBLAKE3 + 1), false},
	}

	// Process test cases.
	for _, testCase := range testCases {
		if supported := testCase.algorithm.Supported(); supported != testCase.expected {
			t.Errorf(
				"algorithm support status (%t) does not match expected (%t)",
				supported,
				testCase.expected,
			)
		}
	}
}

// TestAlgorithmDescription tests that Algorithm description generation works as
// expected.
func TestAlgorithmDescription(t *testing.T) {
	// Set up test cases.
	testCases := []struct {
		algorithm Algorithm
		expected  string
	}{
		{AlgorithmDefault, "Default"},
		{AlgorithmSHA256, "SHA-256"},
		{AlgorithmBLAKE3, "BLAKE3"},
		{(AlgorithmBLAKE3 + 1), "Unknown"},
	}

	// Process test cases.
	for _, testCase := range testCases {
		if description := testCase.algorithm.Description(); description != testCase.expected {
			t.Errorf(
				"algorithm description (%s) does not match expected (%s)",
				description,
				testCase.expected,
			)
		}
	}
}

// TestAlgorithmDigestLengths tests that all supported algorithms produce
// digests of the expected uniform length.
func TestAlgorithmDigestLengths(t *testing.T) {
	// Set up test cases.
	testCases := []Algorithm{
		AlgorithmSHA256,
		AlgorithmBLAKE3,
	}

	// Process test cases.
	for _, algorithm := range testCases {
		hasher := algorithm.Factory()()
		if hasher.Size() != DigestLength {
			t.Errorf(
				"digest length (%d) for %s does not match expected (%d)",
				hasher.Size(),
				algorithm.Description(),
				DigestLength,
			)
		}
	}
}
