package replication

import (
	"maps"
	"reflect"
	"slices"
)

// Patch maps replication paths to values. It is always partial.
type Patch map[string]any

// Merge copies every path of src into p, replacing older values.
// Paths missing from src are left as they are.
func (p Patch) Merge(src Patch) Patch {
	if p == nil {
		p = make(Patch, len(src))
	}
	for path, value := range src {
		p[path] = value
	}
	return p
}

func (p Patch) Clone() Patch {
	if p == nil {
		return nil
	}
	return maps.Clone(p)
}

// Paths returns the patch keys in lexical order.
func (p Patch) Paths() []string {
	return slices.Sorted(maps.Keys(p))
}

// Get returns the value of path with a presence flag.
func (p Patch) Get(path string) (any, bool) {
	v, ok := p[path]
	return v, ok
}

// Float returns path coerced to float64.
func (p Patch) Float(path string) (float64, bool) {
	v, ok := p[path]
	if !ok {
		return 0, false
	}
	return Float64(v)
}

// Equal compares two patches, treating numerically equal values as equal
// regardless of their Go type.
func (p Patch) Equal(other Patch) bool {
	if len(p) != len(other) {
		return false
	}
	for path, v := range p {
		o, ok := other[path]
		if !ok || !ValuesEqual(v, o) {
			return false
		}
	}
	return true
}

// Diff returns the paths of next that are new or changed compared with prev.
func Diff(prev, next Patch) Patch {
	out := Patch{}
	for path, v := range next {
		if old, ok := prev[path]; ok && ValuesEqual(old, v) {
			continue
		}
		out[path] = v
	}
	return out
}

// ValuesEqual compares two replicated values.
func ValuesEqual(a, b any) bool {
	if fa, ok := numeric(a); ok {
		fb, ok := numeric(b)
		return ok && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func numeric(v any) (float64, bool) {
	switch v.(type) {
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return Float64(v)
	default:
		return 0, false
	}
}

// State groups patches by component kind name.
type State map[string]Patch

// Merge folds src into s. The merge is shallow per kind: within a kind,
// newer path values replace older ones and other paths are untouched.
func (s State) Merge(src State) State {
	if s == nil {
		s = make(State, len(src))
	}
	for kind, patch := range src {
		s[kind] = s[kind].Clone().Merge(patch)
	}
	return s
}

func (s State) Clone() State {
	if s == nil {
		return nil
	}
	out := make(State, len(s))
	for kind, patch := range s {
		out[kind] = patch.Clone()
	}
	return out
}

// Kinds returns the kind names present in s in lexical order.
func (s State) Kinds() []string {
	return slices.Sorted(maps.Keys(s))
}

// StateFrom extracts a State from a loosely typed map such as decoded JSON
// construction props. Entries that are not objects are ignored.
func StateFrom(raw map[string]any) State {
	out := State{}
	for key, v := range raw {
		if m, ok := asMap(v); ok {
			out[key] = Patch(maps.Clone(m))
		}
	}
	return out
}
