package ecs

// Kind identifies a component type. Kinds are declared as constants by the
// packages owning the components and must match across client and server
// builds since they key the replication wire format.
type Kind string

func (k Kind) String() string {
	return string(k)
}

// Component is state attached to exactly one entity at a time.
// Implementations embed Base.
type Component interface {
	Kind() Kind
	Entity() *Entity
	attach(*Entity)
}

// Base carries the back-reference to the owning entity.
type Base struct {
	entity *Entity
}

// Entity returns the owning entity, or nil while detached.
func (b *Base) Entity() *Entity {
	return b.entity
}

// World returns the world of the owning entity, or nil while detached.
func (b *Base) World() *World {
	if b.entity == nil {
		return nil
	}
	return b.entity.world
}

func (b *Base) attach(e *Entity) {
	b.entity = e
}

// Sibling looks up another component on the same entity.
func Sibling[C Component](b *Base) (C, bool) {
	if b.entity == nil {
		var zero C
		return zero, false
	}
	return Get[C](b.entity)
}
