package server

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/zeusync/entisync/internal/core/ecs"
	"github.com/zeusync/entisync/internal/core/protocol"
)

// ClientSession is the server view of one player: its identity, the
// entities it created as owner, and its current connection. Sessions are
// only touched from the event loop.
type ClientSession struct {
	userID      string
	owned       []ecs.EntityID
	channel     *protocol.Channel
	connectedAt time.Time
	// detaches counts disconnects, so a stale eviction can tell the
	// session was resumed and dropped again in between.
	detaches uint64
}

func newClientSession(ch *protocol.Channel) *ClientSession {
	return &ClientSession{
		userID:      uuid.NewString(),
		channel:     ch,
		connectedAt: time.Now(),
	}
}

func (s *ClientSession) UserID() string {
	return s.userID
}

// Owned returns the owned entity ids in creation order.
func (s *ClientSession) Owned() []ecs.EntityID {
	return slices.Clone(s.owned)
}

func (s *ClientSession) Channel() *protocol.Channel {
	return s.channel
}

func (s *ClientSession) Connected() bool {
	return s.channel != nil
}

func (s *ClientSession) ConnectedAt() time.Time {
	return s.connectedAt
}

// Rebind moves the session onto a new connection. Handlers of the old one
// are removed; install registers them on the new one.
func (s *ClientSession) Rebind(ch *protocol.Channel, install func(*protocol.Channel)) {
	if s.channel != nil && s.channel != ch {
		s.channel.OffAll()
	}
	s.channel = ch
	s.connectedAt = time.Now()
	if install != nil {
		install(ch)
	}
}

func (s *ClientSession) detach() {
	s.channel = nil
	s.detaches++
}

func (s *ClientSession) own(ids ...ecs.EntityID) {
	for _, id := range ids {
		if !slices.Contains(s.owned, id) {
			s.owned = append(s.owned, id)
		}
	}
}

func (s *ClientSession) disown(id ecs.EntityID) {
	s.owned = slices.DeleteFunc(s.owned, func(o ecs.EntityID) bool { return o == id })
}

// prune keeps only ids that still exist and still belong to the session.
func (s *ClientSession) prune(game *Game) {
	s.owned = slices.DeleteFunc(s.owned, func(id ecs.EntityID) bool {
		return !game.OwnedBy(id, s.userID)
	})
}
