package ecs

import (
	"errors"
	"fmt"
	"slices"

	"github.com/zeusync/entisync/internal/core/observability/log"
)

// World owns entities and a per-kind index over their attached components.
// It is driven from a single goroutine.
type World struct {
	registry   *Registry
	blueprints *Blueprints
	logger     log.Log

	entities []*Entity
	byID     map[EntityID]*Entity
	index    map[Kind][]Component
	nextID   EntityID
}

type WorldOption func(*World)

// WithFirstID sets the first id handed out by AddEntity. Clients use a high
// base so locally created entities never collide with server ids.
func WithFirstID(id EntityID) WorldOption {
	return func(w *World) {
		w.nextID = id
	}
}

func NewWorld(registry *Registry, blueprints *Blueprints, logger log.Log, opts ...WorldOption) *World {
	w := &World{
		registry:   registry,
		blueprints: blueprints,
		logger:     logger.With(log.String("component", "world")),
		byID:       make(map[EntityID]*Entity),
		index:      make(map[Kind][]Component),
		nextID:     1,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *World) Registry() *Registry {
	return w.registry
}

type EntityOption func(*Entity)

// WithOwner records the user id that owns the entity.
func WithOwner(owner string) EntityOption {
	return func(e *Entity) {
		e.owner = owner
	}
}

// WithComponents attaches cs in addition to the blueprint assembly, before
// init events fire.
func WithComponents(cs ...Component) EntityOption {
	return func(e *Entity) {
		e.extra = append(e.extra, cs...)
	}
}

// AddEntity assembles blueprint under a fresh id.
func (w *World) AddEntity(blueprint string, props Props, opts ...EntityOption) (*Entity, error) {
	id := w.nextID
	for w.byID[id] != nil {
		id++
	}
	return w.AddEntityWithID(id, blueprint, props, opts...)
}

// AddEntityWithID assembles blueprint, registers and indexes its components,
// then fires InitEvent and LateInitEvent with props. If initialization fails
// the entity is removed again.
func (w *World) AddEntityWithID(id EntityID, blueprint string, props Props, opts ...EntityOption) (*Entity, error) {
	if _, exists := w.byID[id]; exists {
		return nil, fmt.Errorf("%w: %d", ErrEntityExists, id)
	}

	assemble, err := w.blueprints.Resolve(blueprint)
	if err != nil {
		w.logger.Error("Cannot create entity", log.String("blueprint", blueprint), log.Error(err))
		return nil, err
	}

	e := NewEntity(id)
	e.blueprint = blueprint
	for _, opt := range opts {
		opt(e)
	}
	components := append(assemble(), e.extra...)
	e.extra = nil
	for _, c := range components {
		if _, ok := w.registry.Lookup(c.Kind()); !ok {
			err = fmt.Errorf("%w: %s in blueprint %s", ErrUnknownKind, c.Kind(), blueprint)
			w.logger.Error("Cannot create entity", log.String("blueprint", blueprint), log.Error(err))
			return nil, err
		}
		if err = e.attach(c); err != nil {
			return nil, fmt.Errorf("blueprint %s: %w", blueprint, err)
		}
	}

	e.world = w
	e.alive = true
	w.entities = append(w.entities, e)
	w.byID[id] = e
	for _, c := range e.components {
		w.indexAdd(c)
	}
	if id >= w.nextID {
		w.nextID = id + 1
	}

	if props == nil {
		props = Props{}
	}
	if err = e.Fire(InitEvent{Props: props}); err == nil {
		err = e.Fire(LateInitEvent{Props: props})
	}
	if err != nil {
		_ = w.RemoveEntity(e)
		return nil, fmt.Errorf("init entity %d (%s): %w", id, blueprint, err)
	}

	return e, nil
}

// RemoveEntity forgets e, fires DestroyEvent and detaches every component.
// e is untracked before DestroyEvent fires, so removing it again from a
// destroy handler returns ErrEntityNotFound.
func (w *World) RemoveEntity(e *Entity) error {
	if e == nil || w.byID[e.id] != e {
		return ErrEntityNotFound
	}
	delete(w.byID, e.id)
	w.entities = slices.DeleteFunc(w.entities, func(other *Entity) bool { return other == e })

	_ = e.Fire(DestroyEvent{})

	for _, c := range slices.Clone(e.components) {
		e.detach(c)
	}
	e.alive = false
	e.world = nil
	return nil
}

// RemoveEntityByID removes the entity with id.
func (w *World) RemoveEntityByID(id EntityID) error {
	e, ok := w.byID[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrEntityNotFound, id)
	}
	return w.RemoveEntity(e)
}

func (w *World) Entity(id EntityID) (*Entity, bool) {
	e, ok := w.byID[id]
	return e, ok
}

// Entities returns a snapshot of live entities in creation order.
func (w *World) Entities() []*Entity {
	return slices.Clone(w.entities)
}

func (w *World) Len() int {
	return len(w.entities)
}

// FireEvent broadcasts ev to every live entity. Entities removed while the
// broadcast is running are skipped.
func (w *World) FireEvent(ev Event) error {
	var errs error
	for _, e := range slices.Clone(w.entities) {
		if !e.alive {
			continue
		}
		if err := e.Fire(ev); err != nil {
			errs = errors.Join(errs, err)
		}
	}
	return errs
}

// Tick advances every entity by dt.
func (w *World) Tick(dt float64) {
	if err := w.FireEvent(UpdateEvent{Delta: dt}); err != nil {
		w.logger.Warn("Tick reported errors", log.Error(err))
	}
}

// Count returns the number of live components of kind.
func (w *World) Count(kind Kind) int {
	return len(w.index[kind])
}

func (w *World) indexAdd(c Component) {
	kind := c.Kind()
	w.index[kind] = append(w.index[kind], c)
}

func (w *World) indexRemove(c Component) {
	kind := c.Kind()
	group := w.index[kind]
	if i := slices.Index(group, c); i >= 0 {
		w.index[kind] = slices.Delete(group, i, i+1)
	}
	if len(w.index[kind]) == 0 {
		delete(w.index, kind)
	}
}
