package protocol

import (
	"github.com/zeusync/entisync/internal/core/ecs"
	"github.com/zeusync/entisync/internal/core/replication"
	"github.com/zeusync/entisync/pkg/vector"
)

// Message names. They are part of the wire format.
const (
	MsgQueryEntities   = "query entities"
	MsgGameInit        = "game init"
	MsgEntityCreate    = "entity create"
	MsgEntityCreateAll = "entity createAll"
	MsgEntityUpdate    = "entity update"
	MsgEntityDestroy   = "entity destroy"
	MsgSyncAction      = "sync entity action"
)

// PropClientOwned in the props of a create request asks the server to
// record the requester as owner. The server strips it before storing.
const PropClientOwned = "isClientOwned"

// NetworkEntity describes one entity as the server stores it. Owner is
// server-side only: a user id resumes a session, so it never goes on the
// wire.
type NetworkEntity struct {
	ID          ecs.EntityID `json:"id"`
	BlueprintID string       `json:"blueprintId"`
	Props       ecs.Props    `json:"props,omitempty"`
	Owner       string       `json:"-"`
}

// CreateRequest is sent by a client for entity create.
type CreateRequest struct {
	BlueprintID string    `json:"type"`
	Props       ecs.Props `json:"props,omitempty"`
}

// CreateReply carries the authoritative id assigned by the server.
type CreateReply struct {
	ID ecs.EntityID `json:"id"`
}

// EntityCreated is the server broadcast for entity create.
type EntityCreated = NetworkEntity

// EntityUpdate is a partial state patch keyed by component kind.
type EntityUpdate struct {
	ID    ecs.EntityID      `json:"id"`
	Props replication.State `json:"props"`
}

type EntityDestroy struct {
	ID ecs.EntityID `json:"id"`
}

// SyncAction relays a semantic action to an entity's components.
type SyncAction struct {
	ID    ecs.EntityID `json:"id"`
	Event string       `json:"event"`
	Props ecs.Props    `json:"props,omitempty"`
}

// GameInitRequest may name a previous session to resume after a
// reconnect. Ownership then carries over to the new connection.
type GameInitRequest struct {
	UserID string `json:"userId,omitempty"`
}

// GameInitReply establishes a session.
type GameInitReply struct {
	UserID   string         `json:"userId"`
	Entities []ecs.EntityID `json:"entities"`
	Spawn    vector.Vec2    `json:"spawn"`
}

// QueryEntitiesReply acknowledges query entities once the snapshot has
// been sent as entity createAll.
type QueryEntitiesReply struct {
	Count int `json:"count"`
}
