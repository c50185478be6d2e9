package replication

import (
	"fmt"
)

// Field binds one replication path of component type C to explicit
// accessors. Get reports false when an intermediate value is absent;
// Set reports false when the write was skipped for the same reason or
// because the value could not be coerced.
type Field[C any] struct {
	Path string
	Get  func(C) (any, bool)
	Set  func(C, any) bool
}

// Codec serializes the declared subset of a component's state.
type Codec[C any] struct {
	fields []Field[C]
	index  map[string]int
}

// NewCodec validates the paths and keeps their declaration order.
func NewCodec[C any](fields ...Field[C]) (*Codec[C], error) {
	c := &Codec[C]{
		fields: make([]Field[C], 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		if err := ValidatePath(f.Path); err != nil {
			return nil, err
		}
		if f.Get == nil || f.Set == nil {
			return nil, fmt.Errorf("%w: %q needs both accessors", ErrInvalidPath, f.Path)
		}
		if _, dup := c.index[f.Path]; dup {
			return nil, fmt.Errorf("%w: %q declared twice", ErrInvalidPath, f.Path)
		}
		c.index[f.Path] = len(c.fields)
		c.fields = append(c.fields, f)
	}
	return c, nil
}

// MustCodec is NewCodec for package-level declarations.
func MustCodec[C any](fields ...Field[C]) *Codec[C] {
	c, err := NewCodec(fields...)
	if err != nil {
		panic(err)
	}
	return c
}

// Paths lists the declared paths in declaration order.
func (c *Codec[C]) Paths() []string {
	out := make([]string, len(c.fields))
	for i, f := range c.fields {
		out[i] = f.Path
	}
	return out
}

// Declares reports whether path is part of the codec.
func (c *Codec[C]) Declares(path string) bool {
	_, ok := c.index[path]
	return ok
}

// Serialize reads every declared path. Unresolvable paths map to nil.
func (c *Codec[C]) Serialize(component C) Patch {
	out := make(Patch, len(c.fields))
	for _, f := range c.fields {
		v, ok := f.Get(component)
		if !ok {
			out[f.Path] = nil
			continue
		}
		out[f.Path] = v
	}
	return out
}

// Deserialize applies every declared path present in patch and returns how
// many writes happened. Undeclared paths are ignored.
func (c *Codec[C]) Deserialize(component C, patch Patch) int {
	applied := 0
	for path, value := range patch {
		i, ok := c.index[path]
		if !ok {
			continue
		}
		if c.fields[i].Set(component, value) {
			applied++
		}
	}
	return applied
}

// Ref builds a Field from a function returning a pointer to the backing
// value. A nil pointer marks an absent intermediate segment.
func Ref[C any, V any](path string, ref func(C) *V, coerce func(any) (V, bool)) Field[C] {
	return Field[C]{
		Path: path,
		Get: func(c C) (any, bool) {
			p := ref(c)
			if p == nil {
				return nil, false
			}
			return *p, true
		},
		Set: func(c C, v any) bool {
			p := ref(c)
			if p == nil {
				return false
			}
			value, ok := coerce(v)
			if !ok {
				return false
			}
			*p = value
			return true
		},
	}
}

func FloatRef[C any](path string, ref func(C) *float64) Field[C] {
	return Ref(path, ref, Float64)
}

func IntRef[C any](path string, ref func(C) *int) Field[C] {
	return Ref(path, ref, Int)
}

func StringRef[C any](path string, ref func(C) *string) Field[C] {
	return Ref(path, ref, String)
}

func BoolRef[C any](path string, ref func(C) *bool) Field[C] {
	return Ref(path, ref, Bool)
}

// MapPath exposes path inside a nested map owned by the component, for
// components that keep loosely typed attributes. A nil value is never
// written, so an absent path stays absent after a round trip.
func MapPath[C any](path string, tree func(C) map[string]any) Field[C] {
	return Field[C]{
		Path: path,
		Get: func(c C) (any, bool) {
			return Lookup(tree(c), path)
		},
		Set: func(c C, v any) bool {
			if v == nil {
				return false
			}
			return Assign(tree(c), path, v)
		},
	}
}
