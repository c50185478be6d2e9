package storage

import (
	"slices"
	"sync"

	"github.com/zeusync/entisync/internal/core/ecs"
)

var _ Store = (*MemoryStore)(nil)

type MemoryStore struct {
	mu       sync.RWMutex
	userID   string
	entities map[ecs.EntityID]SavedEntity
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entities: make(map[ecs.EntityID]SavedEntity)}
}

func (m *MemoryStore) GetEntity(id ecs.EntityID) (SavedEntity, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.entities[id]
	if !ok {
		return SavedEntity{}, false, nil
	}
	return SavedEntity{BlueprintID: data.BlueprintID, Components: data.Components.Clone()}, true, nil
}

func (m *MemoryStore) UpdateEntity(id ecs.EntityID, data SavedEntity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities[id] = SavedEntity{BlueprintID: data.BlueprintID, Components: data.Components.Clone()}
	return nil
}

func (m *MemoryStore) ClearEntities(keep []ecs.EntityID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.entities {
		if !slices.Contains(keep, id) {
			delete(m.entities, id)
		}
	}
	return nil
}

func (m *MemoryStore) SetUserID(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userID = id
	return nil
}

func (m *MemoryStore) UserID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.userID
}

// IDs lists saved entity ids in ascending order.
func (m *MemoryStore) IDs() []ecs.EntityID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]ecs.EntityID, 0, len(m.entities))
	for id := range m.entities {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
