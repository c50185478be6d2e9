package ecs

import (
	"github.com/zeusync/entisync/internal/core/replication"
)

// SerializeEntity captures the replicable state of every component of e
// that has a codec, keyed by kind.
func (w *World) SerializeEntity(e *Entity) replication.State {
	state := replication.State{}
	for _, c := range e.components {
		d, ok := w.registry.Lookup(c.Kind())
		if !ok || d.Codec == nil {
			continue
		}
		state[string(c.Kind())] = d.Codec.Serialize(c)
	}
	return state
}

// DeserializeEntity patches the components of e from state and returns the
// number of paths written. Unknown kinds, kinds the entity lacks and kinds
// without a codec are skipped.
func (w *World) DeserializeEntity(e *Entity, state replication.State) int {
	applied := 0
	for name, patch := range state {
		kind, err := w.registry.ParseKind(name)
		if err != nil {
			continue
		}
		c, ok := e.byKind[kind]
		if !ok {
			continue
		}
		d, _ := w.registry.Lookup(kind)
		if d.Codec == nil {
			continue
		}
		applied += d.Codec.Deserialize(c, patch)
	}
	return applied
}
