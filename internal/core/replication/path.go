package replication

import (
	"errors"
	"fmt"
	"strings"
)

// Separator splits a replication path into segments.
const Separator = "."

var ErrInvalidPath = errors.New("invalid replication path")

// Split breaks a dotted path into its segments.
func Split(path string) []string {
	return strings.Split(path, Separator)
}

// Root returns the first segment of path.
func Root(path string) string {
	if i := strings.Index(path, Separator); i >= 0 {
		return path[:i]
	}
	return path
}

// ValidatePath rejects empty paths and empty segments.
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	for _, seg := range Split(path) {
		if seg == "" {
			return fmt.Errorf("%w: %q has an empty segment", ErrInvalidPath, path)
		}
	}
	return nil
}

// Lookup resolves path against a tree of nested maps. A missing segment
// yields (nil, false) rather than an error.
func Lookup(tree map[string]any, path string) (any, bool) {
	var current any = tree
	for _, seg := range Split(path) {
		m, ok := asMap(current)
		if !ok {
			return nil, false
		}
		current, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Assign writes value at path inside a tree of nested maps. Every segment
// before the last must already exist; otherwise nothing is written and
// Assign reports false.
func Assign(tree map[string]any, path string, value any) bool {
	if tree == nil {
		return false
	}
	segs := Split(path)
	current := tree
	for _, seg := range segs[:len(segs)-1] {
		next, ok := asMap(current[seg])
		if !ok {
			return false
		}
		current = next
	}
	current[segs[len(segs)-1]] = value
	return true
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, m != nil
	case Patch:
		return m, m != nil
	default:
		return nil, false
	}
}
