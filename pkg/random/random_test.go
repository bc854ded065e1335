package random

import (
	"bytes"
	"testing"
)

// TestNew tests New.
func TestNew(t *testing.T) {
	if data, err := New(CollisionResistantLength); err != nil {
		t.Fatal("unable to create random data:", err)
	} else if len(data) != CollisionResistantLength {
		t.Error("random data did not have expected length:", len(data), "!=", CollisionResistantLength)
	}
}

// TestNewNonConstant tests that sequential generations differ. A collision
// across two 32-byte generations indicates a broken source.
func TestNewNonConstant(t *testing.T) {
	first, err := New(CollisionResistantLength)
	if err != nil {
		t.Fatal("unable to create random data:", err)
	}
	second, err := New(CollisionResistantLength)
	if err != nil {
		t.Fatal("unable to create random data:", err)
	}
	if bytes.Equal(first, second) {
		t.Error("sequential random generations returned identical data")
	}
}
