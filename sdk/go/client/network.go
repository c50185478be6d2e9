package client

import (
	"context"
	"fmt"

	"github.com/zeusync/entisync/internal/core/ecs"
	"github.com/zeusync/entisync/internal/core/observability/log"
	"github.com/zeusync/entisync/internal/core/protocol"
	"github.com/zeusync/entisync/internal/core/reconcile"
	"github.com/zeusync/entisync/internal/core/replication"
)

var _ Publisher = (*NetworkHandler)(nil)

// NetworkHandler applies server messages to the local world and sends the
// client side of the protocol. Inbound handlers must run on the goroutine
// that owns the world.
type NetworkHandler struct {
	world   *ecs.World
	channel *protocol.Channel
	logger  log.Log
}

// NewNetworkHandler installs the inbound handlers on ch.
func NewNetworkHandler(world *ecs.World, ch *protocol.Channel, logger log.Log) *NetworkHandler {
	n := &NetworkHandler{
		world:   world,
		channel: ch,
		logger:  logger.With(log.String("component", "network_handler")),
	}
	ch.On(protocol.MsgEntityUpdate, n.onEntityUpdate)
	ch.On(protocol.MsgEntityCreate, n.onEntityCreate)
	ch.On(protocol.MsgEntityCreateAll, n.onEntityCreateAll)
	ch.On(protocol.MsgEntityDestroy, n.onEntityDestroy)
	ch.On(protocol.MsgSyncAction, n.onSyncAction)
	return n
}

// UpdateEntity publishes a partial state of an owned entity.
func (n *NetworkHandler) UpdateEntity(ctx context.Context, id ecs.EntityID, state replication.State) error {
	return n.channel.Emit(ctx, protocol.MsgEntityUpdate, protocol.EntityUpdate{ID: id, Props: state})
}

func (n *NetworkHandler) DestroyEntity(ctx context.Context, id ecs.EntityID) error {
	return n.channel.Emit(ctx, protocol.MsgEntityDestroy, protocol.EntityDestroy{ID: id})
}

// SyncAction relays an action to the entity on every other client.
func (n *NetworkHandler) SyncAction(ctx context.Context, id ecs.EntityID, event string, props ecs.Props) error {
	return n.channel.Emit(ctx, protocol.MsgSyncAction, protocol.SyncAction{ID: id, Event: event, Props: props})
}

// CreateEntity asks the server for an entity; cb receives the assigned id
// on the loop. cb never runs if the connection drops first.
func (n *NetworkHandler) CreateEntity(ctx context.Context, blueprintID string, props ecs.Props, cb func(ecs.EntityID, error)) error {
	req := protocol.CreateRequest{BlueprintID: blueprintID, Props: props}
	return n.channel.EmitWithAck(ctx, protocol.MsgEntityCreate, req, func(msg *protocol.Message) {
		var reply protocol.CreateReply
		err := msg.Decode(&reply)
		cb(reply.ID, err)
	})
}

// RequestEntity is the blocking form of CreateEntity.
func (n *NetworkHandler) RequestEntity(ctx context.Context, blueprintID string, props ecs.Props) (ecs.EntityID, error) {
	var reply protocol.CreateReply
	req := protocol.CreateRequest{BlueprintID: blueprintID, Props: props}
	if err := n.channel.Request(ctx, protocol.MsgEntityCreate, req, &reply); err != nil {
		return 0, err
	}
	return reply.ID, nil
}

// QueryEntities requests the snapshot of entities this client does not
// own. The snapshot itself arrives as entity createAll before the reply.
func (n *NetworkHandler) QueryEntities(ctx context.Context) (int, error) {
	var reply protocol.QueryEntitiesReply
	if err := n.channel.Request(ctx, protocol.MsgQueryEntities, nil, &reply); err != nil {
		return 0, err
	}
	return reply.Count, nil
}

// InitGame establishes the session. A non-empty userID asks to resume it.
func (n *NetworkHandler) InitGame(ctx context.Context, userID string) (protocol.GameInitReply, error) {
	var reply protocol.GameInitReply
	err := n.channel.Request(ctx, protocol.MsgGameInit, protocol.GameInitRequest{UserID: userID}, &reply)
	return reply, err
}

func (n *NetworkHandler) onEntityUpdate(msg *protocol.Message) {
	var update protocol.EntityUpdate
	if err := msg.Decode(&update); err != nil {
		n.logger.Warn("Malformed entity update", log.Error(err))
		return
	}
	actor, ok := n.actor(update.ID)
	if !ok {
		n.logger.Warn("Actor not found, is this a client entity?", log.Uint64("entity_id", uint64(update.ID)))
		return
	}
	if err := actor.Push(update.Props); err != nil {
		n.logger.Error("Failed to apply entity update", log.Uint64("entity_id", uint64(update.ID)), log.Error(err))
	}
}

func (n *NetworkHandler) actor(id ecs.EntityID) (*reconcile.ServerActor, bool) {
	e, ok := n.world.Entity(id)
	if !ok {
		return nil, false
	}
	return ecs.Get[*reconcile.ServerActor](e)
}

func (n *NetworkHandler) onEntityCreate(msg *protocol.Message) {
	var entity protocol.NetworkEntity
	if err := msg.Decode(&entity); err != nil {
		n.logger.Warn("Malformed entity create", log.Error(err))
		return
	}
	n.spawnRemote(entity)
}

func (n *NetworkHandler) onEntityCreateAll(msg *protocol.Message) {
	var entities []protocol.NetworkEntity
	if err := msg.Decode(&entities); err != nil {
		n.logger.Warn("Malformed entity createAll", log.Error(err))
		return
	}
	for _, entity := range entities {
		n.spawnRemote(entity)
	}
}

// spawnRemote creates a server-driven entity. Its construction props go to
// the blueprint and, through the reconciler, to the replicated components.
func (n *NetworkHandler) spawnRemote(entity protocol.NetworkEntity) {
	if _, exists := n.world.Entity(entity.ID); exists {
		n.logger.Debug("Entity already present", log.Uint64("entity_id", uint64(entity.ID)))
		return
	}
	_, err := n.world.AddEntityWithID(entity.ID, entity.BlueprintID, entity.Props,
		ecs.WithComponents(reconcile.NewServerActor(n.logger)))
	if err != nil {
		n.logger.Error("Failed to create remote entity",
			log.Uint64("entity_id", uint64(entity.ID)),
			log.String("blueprint", entity.BlueprintID),
			log.Error(err))
	}
}

func (n *NetworkHandler) onEntityDestroy(msg *protocol.Message) {
	var destroy protocol.EntityDestroy
	if err := msg.Decode(&destroy); err != nil {
		n.logger.Warn("Malformed entity destroy", log.Error(err))
		return
	}
	if err := n.world.RemoveEntityByID(destroy.ID); err != nil {
		n.logger.Warn("Entity not found", log.Uint64("entity_id", uint64(destroy.ID)), log.Error(err))
	}
}

func (n *NetworkHandler) onSyncAction(msg *protocol.Message) {
	var action protocol.SyncAction
	if err := msg.Decode(&action); err != nil {
		n.logger.Warn("Malformed sync action", log.Error(err))
		return
	}
	e, ok := n.world.Entity(action.ID)
	if !ok {
		n.logger.Warn("Entity not found",
			log.Uint64("entity_id", uint64(action.ID)),
			log.String("event", action.Event))
		return
	}
	ev, err := ecs.EventFromAction(action.Event, action.Props)
	if err != nil {
		n.logger.Warn("Rejected action", log.String("event", action.Event), log.Error(err))
		return
	}
	if err = e.Fire(ev); err != nil {
		n.logger.Warn("Action failed", log.Uint64("entity_id", uint64(action.ID)), log.Error(fmt.Errorf("%s: %w", action.Event, err)))
	}
}
