package transfer

import (
	pathpkg "path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
)

// ignorePattern represents a single parsed ignore pattern.
type ignorePattern struct {
	// negated indicates whether or not the pattern is negated.
	negated bool
	// directoryOnly indicates whether or not the pattern should only match
	// directories.
	directoryOnly bool
	// matchLeaf indicates whether or not the pattern should be matched
	// against a path's base name in addition to the whole path.
	matchLeaf bool
	// pattern is the pattern to use in matching.
	pattern string
}

// newIgnorePattern validates and parses a user-provided ignore pattern.
func newIgnorePattern(pattern string) (*ignorePattern, error) {
	// Check for invalid patterns, or at least those that would leave us with
	// an empty string after parsing.
	if pattern == "" || pattern == "!" {
		return nil, errors.New("empty pattern")
	} else if pattern == "/" || pattern == "!/" {
		return nil, errors.New("root pattern")
	} else if pattern == "//" || pattern == "!//" {
		return nil, errors.New("root directory pattern")
	}

	// Check if this is a negated pattern. If so, remove the exclamation
	// point prefix, since it won't enter into pattern matching.
	negated := false
	if pattern[0] == '!' {
		negated = true
		pattern = pattern[1:]
	}

	// Check if this is an absolute pattern. If so, remove the forward slash
	// prefix, since it won't enter into pattern matching.
	absolute := false
	if pattern[0] == '/' {
		absolute = true
		pattern = pattern[1:]
	}

	// Check if this is a directory-only pattern. If so, remove the trailing
	// slash, since it won't enter into pattern matching.
	directoryOnly := false
	if pattern[len(pattern)-1] == '/' {
		directoryOnly = true
		pattern = pattern[:len(pattern)-1]
	}

	// Determine whether or not the pattern contains a slash.
	containsSlash := strings.IndexByte(pattern, '/') >= 0

	// Attempt to do a match with the pattern to ensure validity. We have to
	// match against a non-empty path (we choose something simple), otherwise
	// bad pattern errors won't be detected.
	if _, err := doublestar.Match(pattern, "a"); err != nil {
		return nil, errors.Wrap(err, "unable to validate pattern")
	}

	// Success.
	return &ignorePattern{
		negated:       negated,
		directoryOnly: directoryOnly,
		matchLeaf:     (!absolute && !containsSlash),
		pattern:       pattern,
	}, nil
}

// matches indicates whether or not the pattern matches the specified path.
func (i *ignorePattern) matches(path string, directory bool) bool {
	// If this pattern only applies to directories and the path isn't one,
	// then there's no match.
	if i.directoryOnly && !directory {
		return false
	}

	// Check if there's a direct match.
	if match, _ := doublestar.Match(i.pattern, path); match {
		return true
	}

	// If it makes sense, attempt a leaf name match.
	if i.matchLeaf {
		if match, _ := doublestar.Match(i.pattern, pathpkg.Base(path)); match {
			return true
		}
	}

	// No match.
	return false
}

// Filter evaluates an ordered list of ignore patterns against transfer
// paths, with gitignore-style semantics: later patterns override earlier
// ones, negated patterns un-ignore, and ignoring a directory ignores
// everything beneath it.
type Filter struct {
	// patterns are the parsed patterns in specification order.
	patterns []*ignorePattern
}

// NewFilter creates a filter from the specified patterns. A nil or empty
// pattern list yields a filter that ignores nothing.
func NewFilter(patterns []string) (*Filter, error) {
	result := &Filter{}
	for _, pattern := range patterns {
		parsed, err := newIgnorePattern(pattern)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid ignore pattern (%s)", pattern)
		}
		result.patterns = append(result.patterns, parsed)
	}
	return result, nil
}

// status evaluates the pattern list against a single path, with the last
// matching pattern winning.
func (f *Filter) status(path string, directory bool) (ignored bool) {
	for _, pattern := range f.patterns {
		if pattern.matches(path, directory) {
			ignored = !pattern.negated
		}
	}
	return
}

// Ignored indicates whether or not a slash-separated file path should be
// excluded from a transfer, either directly or because one of its ancestor
// directories is ignored.
func (f *Filter) Ignored(path string) bool {
	// Watch for nil filters and empty pattern lists.
	if f == nil || len(f.patterns) == 0 {
		return false
	}

	// Check ancestor directories. An ignored directory ignores its entire
	// subtree, including any un-ignoring patterns beneath it.
	for i, c := range path {
		if c == '/' && f.status(path[:i], true) {
			return true
		}
	}

	// Check the path itself.
	return f.status(path, false)
}
