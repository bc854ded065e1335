package encoding

import (
	"bytes"
	"testing"
)

// TestBase62RoundTrip tests an encode/decode round trip.
func TestBase62RoundTrip(t *testing.T) {
	value := []byte{0, 1, 2, 3, 255, 128, 64, 7}
	decoded, err := DecodeBase62(EncodeBase62(value))
	if err != nil {
		t.Fatal("unable to decode encoded value:", err)
	}
	if !bytes.Equal(decoded, value) {
		t.Error("decoded value does not match original")
	}
}

// TestBase62Padded tests fixed-width encoding.
func TestBase62Padded(t *testing.T) {
	encoded := EncodeBase62Padded([]byte{1}, 10)
	if len(encoded) != 10 {
		t.Fatal("padded encoding has incorrect length:", len(encoded))
	}
	for i := 0; i < 9; i++ {
		if encoded[i] != Base62Alphabet[0] {
			t.Error("padding does not use the zero digit")
			break
		}
	}

	// Values already at or above the target length are returned unpadded.
	long := EncodeBase62Padded(bytes.Repeat([]byte{255}, 8), 1)
	if len(long) < 2 {
		t.Error("long value truncated by padding")
	}
}
