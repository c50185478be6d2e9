// Package storage persists client-owned entities between sessions.
package storage

import (
	"errors"

	"github.com/zeusync/entisync/internal/core/ecs"
	"github.com/zeusync/entisync/internal/core/replication"
)

var ErrStoreClosed = errors.New("store is closed")

// SavedEntity is what a client keeps for one owned entity.
type SavedEntity struct {
	BlueprintID string            `yaml:"blueprint" json:"entityBlueprint"`
	Components  replication.State `yaml:"components" json:"components"`
}

// Store is the local persistence contract. It is used at session
// boundaries only.
type Store interface {
	GetEntity(id ecs.EntityID) (SavedEntity, bool, error)
	UpdateEntity(id ecs.EntityID, data SavedEntity) error
	// ClearEntities drops every saved entity whose id is not in keep.
	ClearEntities(keep []ecs.EntityID) error
	SetUserID(id string) error
	UserID() string
}
