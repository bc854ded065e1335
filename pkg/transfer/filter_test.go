package transfer

import (
	"testing"
)

// TestNewFilterInvalidPatterns verifies rejection of malformed patterns.
func TestNewFilterInvalidPatterns(t *testing.T) {
	for _, pattern := range []string{"", "!", "/", "!/", "//", "!//", "\\"} {
		if _, err := NewFilter([]string{pattern}); err == nil {
			t.Errorf("invalid pattern (%s) accepted", pattern)
		}
	}
}

// TestFilterIgnored verifies pattern evaluation against file paths.
func TestFilterIgnored(t *testing.T) {
	tests := []struct {
		patterns []string
		path     string
		expected bool
	}{
		// No patterns ignores nothing.
		{nil, "anything", false},
		// Basename matching for non-absolute patterns without slashes.
		{[]string{"*.log"}, "debug.log", true},
		{[]string{"*.log"}, "nested/deep/debug.log", true},
		{[]string{"*.log"}, "debug.logs", false},
		// Absolute patterns match only at the root.
		{[]string{"/output"}, "output", true},
		{[]string{"/output"}, "nested/output", false},
		// Directory-only patterns ignore entire subtrees.
		{[]string{"build/"}, "build/artifact.bin", true},
		{[]string{"build/"}, "nested/build/artifact.bin", true},
		{[]string{"build/"}, "build", false},
		// Negations apply in order, with the last match winning.
		{[]string{"*.log", "!important.log"}, "debug.log", true},
		{[]string{"*.log", "!important.log"}, "important.log", false},
		{[]string{"!important.log", "*.log"}, "important.log", true},
		// Negations can't resurrect contents of an ignored directory.
		{[]string{"build/", "!build/keep.txt"}, "build/keep.txt", true},
		// Doublestar patterns.
		{[]string{"docs/**/*.tmp"}, "docs/a/b/c.tmp", true},
		{[]string{"docs/**/*.tmp"}, "src/a/b/c.tmp", false},
	}
	for _, test := range tests {
		filter, err := NewFilter(test.patterns)
		if err != nil {
			t.Fatalf("unable to create filter from %v: %v", test.patterns, err)
		}
		if ignored := filter.Ignored(test.path); ignored != test.expected {
			t.Errorf(
				"patterns %v, path %s: ignored was %t, expected %t",
				test.patterns, test.path, ignored, test.expected,
			)
		}
	}
}

// TestFilterNil verifies that a nil filter ignores nothing.
func TestFilterNil(t *testing.T) {
	var filter *Filter
	if filter.Ignored("anything") {
		t.Error("nil filter ignored a path")
	}
}
