package server

import (
	"maps"
	"slices"
	"sync"

	"github.com/zeusync/entisync/internal/core/ecs"
	"github.com/zeusync/entisync/internal/core/protocol"
	"github.com/zeusync/entisync/internal/core/replication"
	"github.com/zeusync/entisync/pkg/vector"
)

// Game is the authoritative entity record store. Records hold the props an
// entity was created with, updated by merging patches per component kind.
// It is not persisted.
type Game struct {
	mu       sync.RWMutex
	entities map[ecs.EntityID]*protocol.NetworkEntity
	nextID   ecs.EntityID
	spawn    vector.Vec2
}

func NewGame(spawn vector.Vec2) *Game {
	return &Game{
		entities: make(map[ecs.EntityID]*protocol.NetworkEntity),
		nextID:   1,
		spawn:    spawn,
	}
}

func (g *Game) Spawn() vector.Vec2 {
	return g.spawn
}

// CreateEntity stores a new record and assigns its id.
func (g *Game) CreateEntity(blueprintID string, props ecs.Props, owner string) protocol.NetworkEntity {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.nextID
	g.nextID++

	record := &protocol.NetworkEntity{
		ID:          id,
		BlueprintID: blueprintID,
		Props:       cloneProps(props),
		Owner:       owner,
	}
	g.entities[id] = record
	return copyRecord(record)
}

// UpdateEntity merges a partial state into the record. Each kind is merged
// shallowly; props that are not kind maps are replaced.
func (g *Game) UpdateEntity(id ecs.EntityID, state replication.State) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	record, ok := g.entities[id]
	if !ok {
		return ErrEntityNotFound
	}
	if record.Props == nil {
		record.Props = make(ecs.Props, len(state))
	}
	for kind, patch := range state {
		prev, _ := record.Props[kind].(map[string]any)
		record.Props[kind] = map[string]any(replication.Patch(prev).Merge(patch))
	}
	return nil
}

func (g *Game) DestroyEntity(id ecs.EntityID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.entities[id]; !ok {
		return ErrEntityNotFound
	}
	delete(g.entities, id)
	return nil
}

func (g *Game) Entity(id ecs.EntityID) (protocol.NetworkEntity, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	record, ok := g.entities[id]
	if !ok {
		return protocol.NetworkEntity{}, false
	}
	return copyRecord(record), true
}

// Snapshot lists every record not owned by excludeOwner, ordered by id.
// An empty excludeOwner lists everything.
func (g *Game) Snapshot(excludeOwner string) []protocol.NetworkEntity {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]protocol.NetworkEntity, 0, len(g.entities))
	for _, id := range slices.Sorted(maps.Keys(g.entities)) {
		record := g.entities[id]
		if excludeOwner != "" && record.Owner == excludeOwner {
			continue
		}
		out = append(out, copyRecord(record))
	}
	return out
}

// OwnedBy reports whether id exists and belongs to owner.
func (g *Game) OwnedBy(id ecs.EntityID, owner string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	record, ok := g.entities[id]
	return ok && owner != "" && record.Owner == owner
}

func (g *Game) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.entities)
}

func copyRecord(r *protocol.NetworkEntity) protocol.NetworkEntity {
	out := *r
	out.Props = cloneProps(r.Props)
	return out
}

// cloneProps copies the top level and one level of kind maps, which is as
// deep as UpdateEntity writes.
func cloneProps(props ecs.Props) ecs.Props {
	if props == nil {
		return nil
	}
	out := make(ecs.Props, len(props))
	for k, v := range props {
		if m, ok := v.(map[string]any); ok {
			v = maps.Clone(m)
		}
		out[k] = v
	}
	return out
}
