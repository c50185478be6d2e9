package server

import (
	"github.com/spf13/cast"

	"github.com/zeusync/entisync/internal/core/events/bus"
	"github.com/zeusync/entisync/internal/core/observability/log"
	"github.com/zeusync/entisync/internal/core/protocol"
)

type handlerFunc func(session *ClientSession, msg *protocol.Message)

func (s *Server) install(ch *protocol.Channel) {
	ch.On(protocol.MsgGameInit, s.handle(ch, s.onGameInit))
	ch.On(protocol.MsgQueryEntities, s.handle(ch, s.onQueryEntities))
	ch.On(protocol.MsgEntityCreate, s.handle(ch, s.onEntityCreate))
	ch.On(protocol.MsgEntityUpdate, s.handle(ch, s.onEntityUpdate))
	ch.On(protocol.MsgEntityDestroy, s.handle(ch, s.onEntityDestroy))
	ch.On(protocol.MsgSyncAction, s.handle(ch, s.onSyncAction))
}

// handle resolves the session at dispatch time so a resumed session is
// picked up by handlers installed before the resume.
func (s *Server) handle(ch *protocol.Channel, fn handlerFunc) protocol.Handler {
	return func(msg *protocol.Message) {
		s.metrics.Incr("messages", "in")
		session, ok := s.sessions[ch]
		if !ok {
			s.drop(msg, "Message from unknown connection", log.String("remote_addr", ch.RemoteAddr()))
			return
		}
		fn(session, msg)
	}
}

func (s *Server) onGameInit(session *ClientSession, msg *protocol.Message) {
	var req protocol.GameInitRequest
	if err := msg.Decode(&req); err != nil {
		s.logger.Warn("Malformed game init", log.Error(err))
	}

	if req.UserID != "" && req.UserID != session.userID {
		previous, ok := s.byUser[req.UserID]
		switch {
		case ok && !previous.Connected():
			session = s.resume(session, previous, msg.Channel())
		case ok:
			s.logger.Warn("Session still connected, not resuming", log.String("user_id", req.UserID))
		default:
			s.logger.Debug("Unknown session, starting fresh", log.String("user_id", req.UserID))
		}
	}

	session.prune(s.game)
	s.reply(msg, protocol.GameInitReply{
		UserID:   session.userID,
		Entities: session.Owned(),
		Spawn:    s.game.Spawn(),
	})
}

func (s *Server) onQueryEntities(session *ClientSession, msg *protocol.Message) {
	entities := s.game.Snapshot(session.userID)
	s.emit(msg.Channel(), protocol.MsgEntityCreateAll, entities)
	s.reply(msg, protocol.QueryEntitiesReply{Count: len(entities)})
}

func (s *Server) onEntityCreate(session *ClientSession, msg *protocol.Message) {
	var req protocol.CreateRequest
	if err := msg.Decode(&req); err != nil {
		s.drop(msg, "Malformed create request", log.Error(err))
		return
	}
	if req.BlueprintID == "" {
		s.drop(msg, "Create request without type")
		return
	}

	var owner string
	if cast.ToBool(req.Props[protocol.PropClientOwned]) {
		owner = session.userID
	}
	delete(req.Props, protocol.PropClientOwned)

	entity := s.game.CreateEntity(req.BlueprintID, req.Props, owner)
	if owner != "" {
		session.own(entity.ID)
	}
	s.logger.Debug("Entity created",
		log.Uint64("entity_id", uint64(entity.ID)),
		log.String("blueprint", entity.BlueprintID),
		log.String("owner", owner))

	s.reply(msg, protocol.CreateReply{ID: entity.ID})
	s.broadcast(session, protocol.MsgEntityCreate, entity)
	s.publish(bus.Event{Type: bus.EntityCreated, UserID: session.userID, EntityID: entity.ID, Blueprint: entity.BlueprintID})
}

func (s *Server) onEntityUpdate(session *ClientSession, msg *protocol.Message) {
	var update protocol.EntityUpdate
	if err := msg.Decode(&update); err != nil {
		s.drop(msg, "Malformed entity update", log.Error(err))
		return
	}
	entity, ok := s.game.Entity(update.ID)
	if !ok {
		s.drop(msg, "Entity not found", log.Uint64("entity_id", uint64(update.ID)))
		return
	}
	if err := s.auth.Authorize(OpUpdate, session.userID, entity); err != nil {
		s.drop(msg, "Update rejected", log.String("user_id", session.userID), log.Error(err))
		return
	}

	if err := s.game.UpdateEntity(update.ID, update.Props); err != nil {
		s.drop(msg, "Update failed", log.Uint64("entity_id", uint64(update.ID)), log.Error(err))
		return
	}
	s.broadcast(session, protocol.MsgEntityUpdate, raw(msg))
}

func (s *Server) onEntityDestroy(session *ClientSession, msg *protocol.Message) {
	var destroy protocol.EntityDestroy
	if err := msg.Decode(&destroy); err != nil {
		s.drop(msg, "Malformed entity destroy", log.Error(err))
		return
	}
	entity, ok := s.game.Entity(destroy.ID)
	if !ok {
		s.drop(msg, "Entity not found", log.Uint64("entity_id", uint64(destroy.ID)))
		return
	}
	if err := s.auth.Authorize(OpDestroy, session.userID, entity); err != nil {
		s.drop(msg, "Destroy rejected", log.String("user_id", session.userID), log.Error(err))
		return
	}

	if err := s.game.DestroyEntity(destroy.ID); err != nil {
		s.drop(msg, "Destroy failed", log.Uint64("entity_id", uint64(destroy.ID)), log.Error(err))
		return
	}
	if owner, ok := s.byUser[entity.Owner]; ok {
		owner.disown(entity.ID)
	}
	s.broadcast(session, protocol.MsgEntityDestroy, raw(msg))
	s.publish(bus.Event{Type: bus.EntityDestroyed, UserID: session.userID, EntityID: entity.ID, Blueprint: entity.BlueprintID})
}

// onSyncAction relays without interpreting. Unknown ids are relayed too
// since the action may target an entity the server never stored.
func (s *Server) onSyncAction(session *ClientSession, msg *protocol.Message) {
	var action protocol.SyncAction
	if err := msg.Decode(&action); err != nil {
		s.drop(msg, "Malformed sync action", log.Error(err))
		return
	}
	if entity, ok := s.game.Entity(action.ID); ok {
		if err := s.auth.Authorize(OpAction, session.userID, entity); err != nil {
			s.drop(msg, "Action rejected", log.String("user_id", session.userID), log.Error(err))
			return
		}
	}
	s.broadcast(session, protocol.MsgSyncAction, raw(msg))
}
