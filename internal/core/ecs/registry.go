package ecs

import (
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/zeusync/entisync/internal/core/replication"
)

// Replicator is the type-erased view of a replication.Codec.
type Replicator interface {
	Paths() []string
	Serialize(Component) replication.Patch
	Deserialize(Component, replication.Patch) int
}

// InterpolateFunc advances c toward target over dt and reports whether the
// target has been reached.
type InterpolateFunc func(c Component, target replication.Patch, dt float64) (finished bool)

// Descriptor is the registry metadata for one component kind.
type Descriptor struct {
	Kind Kind
	// Type is the concrete Go type, used by the typed query helpers.
	Type reflect.Type
	// Replicated marks components whose state is pushed by the server.
	Replicated  bool
	Codec       Replicator
	Interpolate InterpolateFunc
}

// Describe starts a descriptor for component type C.
func Describe[C Component](kind Kind) Descriptor {
	return Descriptor{Kind: kind, Type: reflect.TypeFor[C]()}
}

// WithCodec attaches a replication codec and marks the kind replicated.
func (d Descriptor) WithCodec(codec Replicator) Descriptor {
	d.Codec = codec
	d.Replicated = true
	return d
}

// WithInterpolation attaches an interpolator and marks the kind replicated.
func (d Descriptor) WithInterpolation(fn InterpolateFunc) Descriptor {
	d.Interpolate = fn
	d.Replicated = true
	return d
}

// Capabilities lists which event capabilities the registered type implements.
func (d Descriptor) Capabilities() []string {
	if d.Type == nil {
		return nil
	}
	var caps []string
	for name, iface := range capabilityTypes {
		if d.Type.Implements(iface) {
			caps = append(caps, name)
		}
	}
	slices.Sort(caps)
	return caps
}

var capabilityTypes = map[string]reflect.Type{
	"init":      reflect.TypeFor[Initializer](),
	"late_init": reflect.TypeFor[LateInitializer](),
	"update":    reflect.TypeFor[Updater](),
	"destroy":   reflect.TypeFor[Destroyer](),
	"move":      reflect.TypeFor[Mover](),
	"action":    reflect.TypeFor[ActionHandler](),
}

// Codec adapts a typed codec to the registry.
func Codec[C Component](c *replication.Codec[C]) Replicator {
	return typedCodec[C]{codec: c}
}

type typedCodec[C Component] struct {
	codec *replication.Codec[C]
}

func (t typedCodec[C]) Paths() []string {
	return t.codec.Paths()
}

func (t typedCodec[C]) Serialize(c Component) replication.Patch {
	typed, ok := c.(C)
	if !ok {
		return nil
	}
	return t.codec.Serialize(typed)
}

func (t typedCodec[C]) Deserialize(c Component, p replication.Patch) int {
	typed, ok := c.(C)
	if !ok {
		return 0
	}
	return t.codec.Deserialize(typed, p)
}

// Interpolator adapts a typed interpolation function to the registry.
func Interpolator[C Component](fn func(C, replication.Patch, float64) bool) InterpolateFunc {
	return func(c Component, target replication.Patch, dt float64) bool {
		typed, ok := c.(C)
		if !ok {
			return true
		}
		return fn(typed, target, dt)
	}
}

// Registry maps component kinds to their metadata. It is filled during
// startup and read afterwards.
type Registry struct {
	mu     sync.RWMutex
	byKind map[Kind]Descriptor
	byType map[reflect.Type]Kind
}

func NewRegistry() *Registry {
	return &Registry{
		byKind: make(map[Kind]Descriptor),
		byType: make(map[reflect.Type]Kind),
	}
}

// Register adds a kind. A replicated kind must provide a codec or an
// interpolator, otherwise ErrNotReplicable is returned.
func (r *Registry) Register(d Descriptor) error {
	if d.Kind == "" {
		return ErrInvalidKind
	}
	if d.Replicated && d.Codec == nil && d.Interpolate == nil {
		return fmt.Errorf("%w: %s", ErrNotReplicable, d.Kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byKind[d.Kind]; exists {
		return fmt.Errorf("%w: %s", ErrKindRegistered, d.Kind)
	}
	if d.Type != nil {
		if other, exists := r.byType[d.Type]; exists {
			return fmt.Errorf("%w: %s already registered as %s", ErrKindRegistered, d.Type, other)
		}
		r.byType[d.Type] = d.Kind
	}
	r.byKind[d.Kind] = d
	return nil
}

// MustRegister panics on configuration errors.
func (r *Registry) MustRegister(ds ...Descriptor) {
	for _, d := range ds {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
}

func (r *Registry) Lookup(kind Kind) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byKind[kind]
	return d, ok
}

// KindOf returns the kind registered for a Go type.
func (r *Registry) KindOf(t reflect.Type) (Kind, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.byType[t]
	return k, ok
}

// ParseKind validates a kind name received from the wire.
func (r *Registry) ParseKind(name string) (Kind, error) {
	k := Kind(name)
	if _, ok := r.Lookup(k); !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, name)
	}
	return k, nil
}

// Kinds lists registered kinds in lexical order.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Kind, 0, len(r.byKind))
	for k := range r.byKind {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// KindFor resolves the kind of component type C.
func KindFor[C Component](r *Registry) (Kind, error) {
	t := reflect.TypeFor[C]()
	k, ok := r.KindOf(t)
	if !ok {
		return "", fmt.Errorf("%w: type %s", ErrUnknownKind, t)
	}
	return k, nil
}
