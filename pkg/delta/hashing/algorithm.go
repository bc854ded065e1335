package hashing

import (
	"crypto/sha256"
	"fmt"
	"hash"

	"github.com/zeebo/blake3"
)

// Algorithm specifies a strong hashing algorithm used to fingerprint and
// verify blocks.
type Algorithm uint8

const (
	// AlgorithmDefault represents an unspecified hashing algorithm. It should
	// be converted to one of the values below by the consumer, based on an
	// appropriate default.
	AlgorithmDefault Algorithm = iota
	// AlgorithmSHA256 represents the SHA-256 hashing algorithm.
	AlgorithmSHA256
	// AlgorithmBLAKE3 represents the BLAKE3 hashing algorithm.
	AlgorithmBLAKE3
)

// DigestLength is the digest length, in bytes, of the supported hashing
// algorithms. All supported algorithms produce 256-bit digests.
const DigestLength = 32

// IsDefault indicates whether or not the algorithm is AlgorithmDefault.
func (a Algorithm) IsDefault() bool {
	return a == AlgorithmDefault
}

// MarshalText implements encoding.TextMarshaler.MarshalText.
func (a Algorithm) MarshalText() ([]byte, error) {
	var result string
	switch a {
	case AlgorithmDefault:
	case AlgorithmSHA256:
		result = "sha256"
	case AlgorithmBLAKE3:
		result = "blake3"
	default:
		result = "unknown"
	}
	return []byte(result), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.UnmarshalText.
func (a *Algorithm) UnmarshalText(textBytes []byte) error {
	// Convert the bytes to a string.
	text := string(textBytes)

	// Convert to a hashing algorithm.
	switch text {
	case "sha256":
		*a = AlgorithmSHA256
	case "blake3":
		*a = AlgorithmBLAKE3
	default:
		return fmt.Errorf("unknown hashing algorithm specification: %s", text)
	}

	// Success.
	return nil
}

// Supported indicates whether or not a particular hashing algorithm is a
// valid, non-default value.
func (a Algorithm) Supported() bool {
	switch a {
	case AlgorithmSHA256:
		return true
	case AlgorithmBLAKE3:
		return true
	default:
		return false
	}
}

// Description returns a human-readable description of a hashing algorithm.
func (a Algorithm) Description() string {
	switch a {
	case AlgorithmDefault:
		return "Default"
	case AlgorithmSHA256:
		return "SHA-256"
	case AlgorithmBLAKE3:
		return "BLAKE3"
	default:
		return "Unknown"
	}
}

// Factory returns a constructor for the hashing algorithm. If invoked on a
// default or invalid Algorithm value, this method will panic.
func (a Algorithm) Factory() func() hash.Hash {
	switch a {
	case AlgorithmSHA256:
		return sha256.New
	case AlgorithmBLAKE3:
		return func() hash.Hash { return blake3.New() }
	default:
		panic("default or unknown hashing algorithm")
	}
}
