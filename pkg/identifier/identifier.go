package identifier

import (
	"math"
	"strings"

	"github.com/pkg/errors"

	"github.com/ferry-io/ferry/pkg/encoding"
	"github.com/ferry-io/ferry/pkg/random"
)

const (
	// PrefixTransfer is the prefix used for per-file transfer operation
	// identifiers.
	PrefixTransfer = "xfer"
	// PrefixSession is the prefix used for transfer session identifiers.
	PrefixSession = "sess"

	// requiredPrefixLength is the required length for identifier prefixes.
	requiredPrefixLength = 4
	// collisionResistantLength is the number of random bytes encoded in an
	// identifier to ensure collision resistance.
	collisionResistantLength = random.CollisionResistantLength
	// targetBase62Length is the length to which the Base62-encoded portion of
	// an identifier is padded. It is the maximum encoded length for
	// collisionResistantLength bytes of data.
	targetBase62Length = 43
)

// init verifies that the constants defined by this package are sane.
func init() {
	if targetBase62Length != int(math.Ceil(collisionResistantLength*8*math.Log(2)/math.Log(62))) {
		panic("target Base62 length incorrect for collision resistant length")
	}
}

// validPrefix indicates whether or not a prefix is valid for use in an
// identifier. Prefixes must be of the required length and composed only of
// lowercase ASCII letters.
func validPrefix(prefix string) bool {
	if len(prefix) != requiredPrefixLength {
		return false
	}
	for _, r := range prefix {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

// New generates a new collision-resistant identifier with the specified
// prefix. The prefix must be of the required length and composed only of
// lowercase ASCII letters.
func New(prefix string) (string, error) {
	// Validate the prefix.
	if !validPrefix(prefix) {
		return "", errors.New("invalid prefix")
	}

	// Create the random value.
	value, err := random.New(collisionResistantLength)
	if err != nil {
		return "", errors.Wrap(err, "unable to generate random value")
	}

	// Encode the random value, padding it to a fixed width so that all
	// identifiers have equal length.
	return prefix + "_" + encoding.EncodeBase62Padded(value, targetBase62Length), nil
}

// IsValid indicates whether or not a value is a valid identifier.
func IsValid(value string) bool {
	// Verify the overall length.
	if len(value) != requiredPrefixLength+1+targetBase62Length {
		return false
	}

	// Verify the prefix and separator.
	if !validPrefix(value[:requiredPrefixLength]) {
		return false
	}
	if value[requiredPrefixLength] != '_' {
		return false
	}

	// Verify that the remainder of the identifier is composed of characters
	// from the Base62 alphabet.
	for _, r := range value[requiredPrefixLength+1:] {
		if !strings.ContainsRune(encoding.Base62Alphabet, r) {
			return false
		}
	}

	// Success.
	return true
}
