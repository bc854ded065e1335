package encoding

import (
	"strings"

	"github.com/eknkc/basex"
)

const (
	// Base62Alphabet is the alphabet used for Base62 encoding.
	Base62Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// base62 is the Base62 encoder. It is safe for concurrent use.
var base62 *basex.Encoding

func init() {
	// Initialize the Base62 encoder.
	if encoding, err := basex.NewEncoding(Base62Alphabet); err != nil {
		panic("unable to initialize Base62 encoder")
	} else {
		base62 = encoding
	}
}

// EncodeBase62 performs Base62 encoding.
func EncodeBase62(value []byte) string {
	return base62.Encode(value)
}

// EncodeBase62Padded performs Base62 encoding, left-padding the result with
// the zero digit of the alphabet to the specified length. It is used where
// fixed-width encoded values are required.
func EncodeBase62Padded(value []byte, length int) string {
	encoded := EncodeBase62(value)
	if padding := length - len(encoded); padding > 0 {
		return strings.Repeat(string(Base62Alphabet[0]), padding) + encoded
	}
	return encoded
}

// DecodeBase62 performs Base62 decoding.
func DecodeBase62(value string) ([]byte, error) {
	return base62.Decode(value)
}
