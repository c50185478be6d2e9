package reconcile

import (
	"maps"
	"slices"

	"github.com/zeusync/entisync/internal/core/ecs"
	"github.com/zeusync/entisync/internal/core/observability/log"
	"github.com/zeusync/entisync/internal/core/replication"
)

// KindServerActor is the kind of the reconciler component.
const KindServerActor ecs.Kind = "ServerActorComponent"

var (
	_ ecs.LateInitializer = (*ServerActor)(nil)
	_ ecs.Updater         = (*ServerActor)(nil)
)

// ServerActor buffers target state for the components of a remote entity.
// A kind is pending while it has a target and idle otherwise.
type ServerActor struct {
	ecs.Base
	targets map[ecs.Kind]replication.Patch
	logger  log.Log
}

func NewServerActor(logger log.Log) *ServerActor {
	return &ServerActor{
		targets: make(map[ecs.Kind]replication.Patch),
		logger:  logger,
	}
}

// Descriptor registers the actor itself. It is not replicated.
func Descriptor() ecs.Descriptor {
	return ecs.Describe[*ServerActor](KindServerActor)
}

func (*ServerActor) Kind() ecs.Kind {
	return KindServerActor
}

// OnLateInit applies the construction state right away, so the entity
// appears where the server has it instead of sliding in from the origin.
// Kinds that only interpolate receive it as their first target.
func (a *ServerActor) OnLateInit(ev ecs.LateInitEvent) error {
	state := replication.StateFrom(ev.Props)
	if len(state) == 0 {
		return nil
	}
	registry := a.World().Registry()
	for name := range state {
		if _, err := registry.ParseKind(name); err != nil {
			delete(state, name)
		}
	}
	a.World().DeserializeEntity(a.Entity(), state)
	return a.Push(state)
}

// Push merges a partial update into the targets. Unknown kinds, kinds the
// entity does not carry and kinds with no way to apply state are skipped,
// so one bad entry never holds back the rest of the update.
func (a *ServerActor) Push(state replication.State) error {
	world := a.World()
	if world == nil {
		return ecs.ErrEntityNotFound
	}
	registry := world.Registry()

	for name, patch := range state {
		kind, err := registry.ParseKind(name)
		if err != nil {
			a.logger.Warn("Dropping update for unknown kind",
				log.Uint64("entity_id", uint64(a.Entity().ID())),
				log.String("kind", name))
			continue
		}
		if !a.Entity().Has(kind) {
			a.logger.Debug("Entity lacks updated kind",
				log.Uint64("entity_id", uint64(a.Entity().ID())),
				log.String("kind", name))
			continue
		}
		d, _ := registry.Lookup(kind)
		if d.Codec == nil && d.Interpolate == nil {
			a.logger.Warn("Dropping update for non-replicated kind",
				log.Uint64("entity_id", uint64(a.Entity().ID())),
				log.String("kind", name))
			continue
		}
		a.targets[kind] = a.targets[kind].Merge(patch)
	}
	return nil
}

// OnUpdate advances every pending kind by one tick.
func (a *ServerActor) OnUpdate(ev ecs.UpdateEvent) {
	if len(a.targets) == 0 {
		return
	}
	registry := a.World().Registry()

	for _, kind := range slices.Sorted(maps.Keys(a.targets)) {
		target := a.targets[kind]
		c, ok := a.Entity().Get(kind)
		if !ok {
			delete(a.targets, kind)
			continue
		}
		d, _ := registry.Lookup(kind)

		var finished bool
		switch {
		case d.Interpolate != nil:
			finished = d.Interpolate(c, target, ev.Delta)
		case d.Codec != nil:
			d.Codec.Deserialize(c, target)
			finished = true
		default:
			finished = true
		}

		if finished {
			delete(a.targets, kind)
		}
	}
}

// Pending lists kinds that still have a target.
func (a *ServerActor) Pending() []ecs.Kind {
	return slices.Sorted(maps.Keys(a.targets))
}

// Idle reports whether nothing is left to apply.
func (a *ServerActor) Idle() bool {
	return len(a.targets) == 0
}

// Target returns a copy of the pending target for kind.
func (a *ServerActor) Target(kind ecs.Kind) (replication.Patch, bool) {
	t, ok := a.targets[kind]
	return t.Clone(), ok
}
