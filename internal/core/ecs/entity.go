package ecs

import (
	"errors"
	"fmt"
	"slices"
)

// EntityID is unique within a World. Networked entities use the id assigned
// by the server.
type EntityID uint64

// Entity owns an ordered set of components, at most one per kind.
type Entity struct {
	id         EntityID
	owner      string
	blueprint  string
	world      *World
	components []Component
	byKind     map[Kind]Component
	alive      bool

	// extra holds components supplied through WithComponents until assembly.
	extra []Component
}

// NewEntity creates a detached entity. Worlds create their own through
// AddEntity; this is for assembling entities outside a world.
func NewEntity(id EntityID) *Entity {
	return &Entity{
		id:     id,
		byKind: make(map[Kind]Component),
	}
}

func (e *Entity) ID() EntityID {
	return e.id
}

// Owner is the user id of the client that created the entity, or "" for
// entities owned by the server.
func (e *Entity) Owner() string {
	return e.owner
}

// Blueprint is the identifier the entity was assembled from.
func (e *Entity) Blueprint() string {
	return e.blueprint
}

// World returns the world tracking the entity, or nil.
func (e *Entity) World() *World {
	return e.world
}

// Alive reports whether the entity is tracked by a world.
func (e *Entity) Alive() bool {
	return e.alive
}

// Add attaches c. On a live entity the kind must be registered, and the
// component is indexed and receives InitEvent and LateInitEvent with empty
// props.
func (e *Entity) Add(c Component) error {
	if e.alive {
		if _, ok := e.world.registry.Lookup(c.Kind()); !ok {
			return fmt.Errorf("%w: %s on entity %d", ErrUnknownKind, c.Kind(), e.id)
		}
	}
	if err := e.attach(c); err != nil {
		return err
	}
	if !e.alive {
		return nil
	}
	e.world.indexAdd(c)
	for _, ev := range []Event{InitEvent{Props: Props{}}, LateInitEvent{Props: Props{}}} {
		if err := dispatch(c, ev); err != nil {
			e.detach(c)
			return fmt.Errorf("init %s on entity %d: %w", c.Kind(), e.id, err)
		}
	}
	return nil
}

func (e *Entity) attach(c Component) error {
	kind := c.Kind()
	if _, exists := e.byKind[kind]; exists {
		return fmt.Errorf("%w: %s on entity %d", ErrDuplicateComponent, kind, e.id)
	}
	if owner := c.Entity(); owner != nil && owner != e {
		return fmt.Errorf("%w: %s", ErrComponentAttached, kind)
	}
	c.attach(e)
	e.components = append(e.components, c)
	e.byKind[kind] = c
	return nil
}

// Remove fires DestroyEvent on the component of kind, then detaches and
// de-indexes it.
func (e *Entity) Remove(kind Kind) bool {
	c, ok := e.byKind[kind]
	if !ok {
		return false
	}
	_ = dispatch(c, DestroyEvent{})
	e.detach(c)
	return true
}

func (e *Entity) detach(c Component) {
	kind := c.Kind()
	if e.byKind[kind] != c {
		return
	}
	delete(e.byKind, kind)
	e.components = slices.DeleteFunc(e.components, func(other Component) bool { return other == c })
	if e.alive {
		e.world.indexRemove(c)
	}
	c.attach(nil)
}

// Get returns the component of kind.
func (e *Entity) Get(kind Kind) (Component, bool) {
	c, ok := e.byKind[kind]
	return c, ok
}

func (e *Entity) Has(kind Kind) bool {
	_, ok := e.byKind[kind]
	return ok
}

// Components returns a snapshot of the attached components in attach order.
func (e *Entity) Components() []Component {
	return slices.Clone(e.components)
}

// Fire dispatches ev to every component implementing the matching
// capability. Components removed by an earlier handler are skipped.
func (e *Entity) Fire(ev Event) error {
	var errs error
	for _, c := range slices.Clone(e.components) {
		if c.Entity() != e {
			continue
		}
		if err := dispatch(c, ev); err != nil {
			errs = errors.Join(errs, err)
		}
	}
	return errs
}

// Get returns the first component of type C attached to e.
func Get[C Component](e *Entity) (C, bool) {
	for _, c := range e.components {
		if typed, ok := c.(C); ok {
			return typed, true
		}
	}
	var zero C
	return zero, false
}
