package server

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"

	"github.com/zeusync/entisync/internal/core/events/bus"
	"github.com/zeusync/entisync/internal/core/observability/log"
	"github.com/zeusync/entisync/internal/core/observability/metrics"
	"github.com/zeusync/entisync/internal/core/protocol"
)

// Server is the authoritative process. Every connection reader posts into
// one inbox drained by Run, so handlers run one at a time and each runs to
// completion before the next message from any connection.
type Server struct {
	config  Config
	game    *Game
	auth    Authorizer
	logger  log.Log
	metrics metrics.Recorder
	events  *bus.Bus

	inbox     chan func()
	done      chan struct{}
	closeOnce sync.Once
	base      context.Context
	cancel    context.CancelFunc

	// event loop state
	sessions map[*protocol.Channel]*ClientSession
	byUser   map[string]*ClientSession
}

type Option func(*Server)

func WithAuthorizer(a Authorizer) Option {
	return func(s *Server) {
		s.auth = a
	}
}

func WithMetrics(m metrics.Recorder) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithEvents publishes session and entity lifecycle events on b. Handlers
// run on the event loop.
func WithEvents(b *bus.Bus) Option {
	return func(s *Server) {
		s.events = b
	}
}

func WithGame(g *Game) Option {
	return func(s *Server) {
		s.game = g
	}
}

// New creates a server. The authorizer defaults to Config.Authorization.
func New(config Config, logger log.Log, opts ...Option) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	auth, err := NewAuthorizer(config.Authorization)
	if err != nil {
		return nil, err
	}

	base, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:   config,
		game:     NewGame(config.Spawn),
		auth:     auth,
		logger:   logger.With(log.String("component", "server")),
		metrics:  metrics.Nop{},
		inbox:    make(chan func(), config.InboxSize),
		done:     make(chan struct{}),
		base:     base,
		cancel:   cancel,
		sessions: make(map[*protocol.Channel]*ClientSession),
		byUser:   make(map[string]*ClientSession),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.logger.Info("Server created",
		log.String("listen_addr", config.ListenAddr),
		log.String("transport", config.Transport),
		log.String("authorization", config.Authorization))
	return s, nil
}

func (s *Server) Game() *Game {
	return s.game
}

// Accept starts serving a connected link.
func (s *Server) Accept(link protocol.Link) error {
	if s.isClosed() {
		_ = link.Close()
		return ErrServerClosed
	}

	ch := protocol.NewChannel(link, s.config.Channel, s.logger,
		protocol.WithDispatcher(func(fn func()) { s.post(fn) }),
		protocol.WithMetrics(s.metrics))
	// Handlers must exist before the first frame is read.
	s.install(ch)
	if !s.post(func() { s.connect(ch) }) {
		_ = ch.Close()
		return ErrServerClosed
	}

	go func() {
		if err := ch.Run(s.base); err != nil && s.base.Err() == nil {
			s.logger.Debug("Connection ended", log.String("remote_addr", ch.RemoteAddr()), log.Error(err))
		}
		s.post(func() { s.disconnect(ch) })
	}()
	return nil
}

// Run drains the inbox until ctx ends or the server is closed.
func (s *Server) Run(ctx context.Context) error {
	defer s.Close()
	s.logger.Info("Event loop started")
	defer s.logger.Info("Event loop stopped")

	for {
		select {
		case fn := <-s.inbox:
			fn()
		case <-ctx.Done():
			return nil
		case <-s.done:
			return nil
		}
	}
}

// Close stops the loop and closes every connection. Pending
// acknowledgements are dropped.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.cancel()
		s.logger.Info("Server closed")
	})
	return nil
}

func (s *Server) isClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Server) post(fn func()) bool {
	select {
	case s.inbox <- fn:
		return true
	case <-s.done:
		return false
	}
}

// Online returns the user ids of connected sessions, sorted.
func (s *Server) Online(ctx context.Context) ([]string, error) {
	result := make(chan []string, 1)
	if !s.post(func() {
		users := make([]string, 0, len(s.sessions))
		for _, session := range s.sessions {
			users = append(users, session.userID)
		}
		slices.Sort(users)
		result <- users
	}) {
		return nil, ErrServerClosed
	}
	select {
	case users := <-result:
		return users, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, ErrServerClosed
	}
}

func (s *Server) connect(ch *protocol.Channel) {
	session := newClientSession(ch)
	s.sessions[ch] = session
	s.byUser[session.userID] = session
	s.metrics.SetGauge(float32(len(s.sessions)), "sessions")

	s.logger.Info("Client connected",
		log.String("user_id", session.userID),
		log.String("remote_addr", ch.RemoteAddr()))
	s.publish(bus.Event{Type: bus.SessionOpened, UserID: session.userID})
}

func (s *Server) disconnect(ch *protocol.Channel) {
	session, ok := s.sessions[ch]
	if !ok {
		return
	}
	delete(s.sessions, ch)
	session.detach()
	session.prune(s.game)
	s.metrics.SetGauge(float32(len(s.sessions)), "sessions")

	s.logger.Info("Client disconnected",
		log.String("user_id", session.userID),
		log.Int("owned", len(session.owned)))
	s.publish(bus.Event{Type: bus.SessionClosed, UserID: session.userID})

	if len(session.owned) == 0 || s.config.ResumeWindow == 0 {
		s.forget(session)
		return
	}
	detaches := session.detaches
	time.AfterFunc(s.config.ResumeWindow, func() {
		s.post(func() {
			if !session.Connected() && session.detaches == detaches {
				s.forget(session)
			}
		})
	})
}

// forget drops a detached session so its user id can no longer be resumed.
// Entities it owned keep their owner.
func (s *Server) forget(session *ClientSession) {
	if s.byUser[session.userID] != session {
		return
	}
	delete(s.byUser, session.userID)
	s.logger.Debug("Session forgotten", log.String("user_id", session.userID))
}

func (s *Server) publish(ev bus.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ev); err != nil {
		s.logger.Warn("Event handler failed", log.String("event", ev.Type), log.Error(err))
	}
}

// resume moves ch from the fresh session to a detached earlier one.
func (s *Server) resume(fresh, previous *ClientSession, ch *protocol.Channel) *ClientSession {
	previous.Rebind(ch, nil)
	previous.own(fresh.owned...)
	s.sessions[ch] = previous
	delete(s.byUser, fresh.userID)

	s.logger.Info("Session resumed",
		log.String("user_id", previous.userID),
		log.String("remote_addr", ch.RemoteAddr()))
	s.publish(bus.Event{Type: bus.SessionResumed, UserID: previous.userID})
	return previous
}

func (s *Server) sendContext() (context.Context, context.CancelFunc) {
	if s.config.SendTimeout > 0 {
		return context.WithTimeout(s.base, s.config.SendTimeout)
	}
	return context.WithCancel(s.base)
}

func (s *Server) emit(ch *protocol.Channel, name string, payload any) bool {
	ctx, cancel := s.sendContext()
	defer cancel()
	if err := ch.Emit(ctx, name, payload); err != nil {
		s.logger.Warn("Emit failed",
			log.String("message", name),
			log.String("remote_addr", ch.RemoteAddr()),
			log.Error(err))
		return false
	}
	return true
}

func (s *Server) reply(msg *protocol.Message, payload any) {
	if !msg.WantsReply() {
		return
	}
	ctx, cancel := s.sendContext()
	defer cancel()
	if err := msg.Reply(ctx, payload); err != nil {
		s.logger.Warn("Reply failed", log.String("message", msg.Name), log.Error(err))
	}
}

// broadcast sends to every connected session except origin.
func (s *Server) broadcast(origin *ClientSession, name string, payload any) {
	for ch, session := range s.sessions {
		if session == origin {
			continue
		}
		if s.emit(ch, name, payload) {
			s.metrics.Incr("messages", "relayed")
		}
	}
}

func (s *Server) drop(msg *protocol.Message, reason string, fields ...log.Field) {
	s.metrics.Incr("messages", "dropped")
	s.logger.Warn(reason, append(fields, log.String("message", msg.Name))...)
}

// raw relays a payload exactly as received.
func raw(msg *protocol.Message) any {
	if len(msg.Payload) == 0 {
		return nil
	}
	return json.RawMessage(msg.Payload)
}
