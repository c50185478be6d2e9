// Package client connects a local world to an entisync server.
//
// The world is owned by the goroutine running Client.Run. Network
// handlers, ticks and functions passed to Do all run there, one at a time.
package client

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zeusync/entisync/internal/core/ecs"
	"github.com/zeusync/entisync/internal/core/observability/log"
	"github.com/zeusync/entisync/internal/core/protocol"
	"github.com/zeusync/entisync/internal/core/protocol/quic"
	"github.com/zeusync/entisync/internal/core/protocol/websocket"
	"github.com/zeusync/entisync/internal/core/reconcile"
	"github.com/zeusync/entisync/pkg/vector"
	"github.com/zeusync/entisync/sdk/go/client/storage"
)

// Session is the outcome of Bootstrap.
type Session struct {
	UserID string
	Spawn  vector.Vec2
	// Owned lists the entities the server still attributes to this user.
	Owned []ecs.EntityID
	// Restored counts owned entities recreated from local storage.
	Restored int
	// Remote is the number of entities announced by query entities.
	Remote int
}

type Client struct {
	config  Config
	logger  log.Log
	world   *ecs.World
	channel *protocol.Channel
	network *NetworkHandler
	store   storage.Store

	inbox     chan func()
	done      chan struct{}
	closeOnce sync.Once

	mu      sync.RWMutex
	session *Session
}

// New builds a client over link. The reconciler and client actor kinds are
// registered on registry when missing.
func New(link protocol.Link, registry *ecs.Registry, blueprints *ecs.Blueprints, store storage.Store, config Config, logger log.Log) (*Client, error) {
	for _, d := range []ecs.Descriptor{reconcile.Descriptor(), ClientActorDescriptor()} {
		if err := registry.Register(d); err != nil && !errors.Is(err, ecs.ErrKindRegistered) {
			return nil, err
		}
	}
	if store == nil {
		store = storage.NewMemoryStore()
	}
	if config.InboxSize <= 0 {
		config.InboxSize = DefaultConfig().InboxSize
	}
	if config.TickRate <= 0 {
		config.TickRate = DefaultConfig().TickRate
	}

	logger = logger.With(log.String("component", "client"))
	c := &Client{
		config: config,
		logger: logger,
		world:  ecs.NewWorld(registry, blueprints, logger, ecs.WithFirstID(config.LocalIDBase)),
		store:  store,
		inbox:  make(chan func(), config.InboxSize),
		done:   make(chan struct{}),
	}
	c.channel = protocol.NewChannel(link, config.Channel, logger, protocol.WithDispatcher(c.dispatch))
	c.network = NewNetworkHandler(c.world, c.channel, logger)
	return c, nil
}

// Dial opens a link to config.ServerAddr with the configured transport.
func Dial(ctx context.Context, config Config) (protocol.Link, error) {
	switch config.Transport {
	case TransportWebsocket, "":
		u := url.URL{Scheme: "ws", Host: config.ServerAddr, Path: config.Websocket.Path}
		link, err := websocket.Dial(ctx, u.String(), config.Websocket)
		if err != nil {
			return nil, err
		}
		return link, nil
	case TransportQUIC:
		link, err := quic.Dial(ctx, config.ServerAddr, config.QUIC)
		if err != nil {
			return nil, err
		}
		return link, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, config.Transport)
	}
}

// Network exposes the protocol operations.
func (c *Client) Network() *NetworkHandler {
	return c.network
}

// Run reads from the connection and drives the world until ctx ends, the
// client is closed or the server goes away.
func (c *Client) Run(ctx context.Context) error {
	defer c.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.channel.Run(gctx)
	})
	g.Go(func() error {
		return c.loop(gctx)
	})
	return g.Wait()
}

func (c *Client) loop(ctx context.Context) error {
	ticker := time.NewTicker(c.config.TickRate)
	defer ticker.Stop()
	last := time.Now()

	c.logger.Info("Client loop started")
	defer c.logger.Info("Client loop stopped")

	for {
		select {
		case fn := <-c.inbox:
			fn()
		case now := <-ticker.C:
			c.world.Tick(now.Sub(last).Seconds())
			last = now
		case <-c.channel.Done():
			return protocol.ErrConnectionClosed
		case <-ctx.Done():
			return nil
		case <-c.done:
			return nil
		}
	}
}

func (c *Client) dispatch(fn func()) {
	select {
	case c.inbox <- fn:
	case <-c.done:
	}
}

// Do runs fn on the loop and waits for it. It must not be called from the
// loop itself.
func (c *Client) Do(ctx context.Context, fn func(*ecs.World) error) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	errc := make(chan error, 1)
	task := func() {
		errc <- fn(c.world)
	}
	select {
	case c.inbox <- task:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClientClosed
	}
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClientClosed
	}
}

// Bootstrap loads the remote entities, establishes the session and
// recreates owned entities from local storage. Saved entities the server no
// longer attributes to this user are dropped from the store.
func (c *Client) Bootstrap(ctx context.Context) (*Session, error) {
	ctx, cancel := c.requestContext(ctx)
	defer cancel()

	remote, err := c.network.QueryEntities(ctx)
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}
	init, err := c.network.InitGame(ctx, c.store.UserID())
	if err != nil {
		return nil, fmt.Errorf("game init: %w", err)
	}
	if err = c.store.SetUserID(init.UserID); err != nil {
		return nil, err
	}
	if err = c.store.ClearEntities(init.Entities); err != nil {
		return nil, err
	}

	session := &Session{
		UserID: init.UserID,
		Spawn:  init.Spawn,
		Owned:  init.Entities,
		Remote: remote,
	}
	c.mu.Lock()
	c.session = session
	c.mu.Unlock()

	err = c.Do(ctx, func(w *ecs.World) error {
		for _, id := range init.Entities {
			ok, err := c.restore(w, id, init.UserID)
			if err != nil {
				return err
			}
			if ok {
				session.Restored++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("Session established",
		log.String("user_id", session.UserID),
		log.Int("owned", len(session.Owned)),
		log.Int("restored", session.Restored),
		log.Int("remote", session.Remote))
	return session, nil
}

// restore recreates an owned entity from the store. Query entities runs
// before the session is resumed, so the entity may already be present as a
// remote copy; it is replaced by the saved state, or adopted as is when
// nothing was saved.
func (c *Client) restore(w *ecs.World, id ecs.EntityID, userID string) (bool, error) {
	saved, ok, err := c.store.GetEntity(id)
	if err != nil {
		return false, err
	}
	if e, exists := w.Entity(id); exists {
		if !ok {
			e.Remove(reconcile.KindServerActor)
			return false, e.Add(c.newActor(e.Blueprint()))
		}
		if err = w.RemoveEntity(e); err != nil {
			return false, err
		}
	}
	if !ok {
		c.logger.Warn("No saved state for owned entity", log.Uint64("entity_id", uint64(id)))
		return false, nil
	}
	actor := c.newActor(saved.BlueprintID)
	if _, err = w.AddEntityWithID(id, saved.BlueprintID, nil, ecs.WithOwner(userID), ecs.WithComponents(actor)); err != nil {
		return false, err
	}
	return actor.Load(c.store)
}

func (c *Client) newActor(blueprint string) *ClientActor {
	return NewClientActor(blueprint, c.network, c.config.SyncInterval, c.config.RequestTimeout, c.logger)
}

// Session returns the bootstrapped session, or nil.
func (c *Client) Session() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

func (c *Client) UserID() string {
	if s := c.Session(); s != nil {
		return s.UserID
	}
	return ""
}

// Spawn asks the server for a client-owned entity and creates it locally
// under the assigned id.
func (c *Client) Spawn(ctx context.Context, blueprint string, props ecs.Props) (ecs.EntityID, error) {
	userID := c.UserID()
	if userID == "" {
		return 0, ErrNotBootstrapped
	}

	req := maps.Clone(props)
	if req == nil {
		req = ecs.Props{}
	}
	req[protocol.PropClientOwned] = true

	rctx, cancel := c.requestContext(ctx)
	defer cancel()
	id, err := c.network.RequestEntity(rctx, blueprint, req)
	if err != nil {
		return 0, fmt.Errorf("entity create: %w", err)
	}

	err = c.Do(ctx, func(w *ecs.World) error {
		_, err := w.AddEntityWithID(id, blueprint, props, ecs.WithOwner(userID), ecs.WithComponents(c.newActor(blueprint)))
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// SpawnLocal creates an entity the server never hears about.
func (c *Client) SpawnLocal(ctx context.Context, blueprint string, props ecs.Props) (ecs.EntityID, error) {
	var id ecs.EntityID
	err := c.Do(ctx, func(w *ecs.World) error {
		e, err := w.AddEntity(blueprint, props)
		if err != nil {
			return err
		}
		id = e.ID()
		return nil
	})
	return id, err
}

// Despawn removes an entity locally; owned entities are destroyed on the
// server as well.
func (c *Client) Despawn(ctx context.Context, id ecs.EntityID) error {
	var owned bool
	err := c.Do(ctx, func(w *ecs.World) error {
		e, ok := w.Entity(id)
		if !ok {
			return fmt.Errorf("%w: %d", ecs.ErrEntityNotFound, id)
		}
		_, owned = ecs.Get[*ClientActor](e)
		return w.RemoveEntity(e)
	})
	if err != nil || !owned {
		return err
	}
	return c.network.DestroyEntity(ctx, id)
}

// Action fires an action on an entity and relays it to the other clients.
func (c *Client) Action(ctx context.Context, id ecs.EntityID, event string, props ecs.Props) error {
	err := c.Do(ctx, func(w *ecs.World) error {
		e, ok := w.Entity(id)
		if !ok {
			return fmt.Errorf("%w: %d", ecs.ErrEntityNotFound, id)
		}
		ev, err := ecs.EventFromAction(event, props)
		if err != nil {
			return err
		}
		return e.Fire(ev)
	})
	if err != nil {
		return err
	}
	return c.network.SyncAction(ctx, id, event, props)
}

// SaveAll writes every owned entity to the store.
func (c *Client) SaveAll(ctx context.Context) error {
	return c.Do(ctx, func(w *ecs.World) error {
		var errs error
		for _, actor := range ecs.Query1[*ClientActor](w) {
			errs = errors.Join(errs, actor.Save(c.store))
		}
		return errs
	})
}

// LoadAll restores every owned entity from the store.
func (c *Client) LoadAll(ctx context.Context) error {
	return c.Do(ctx, func(w *ecs.World) error {
		var errs error
		for _, actor := range ecs.Query1[*ClientActor](w) {
			_, err := actor.Load(c.store)
			errs = errors.Join(errs, err)
		}
		return errs
	})
}

func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.channel.Close()
		c.logger.Info("Client closed")
	})
	return nil
}

func (c *Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || c.config.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.config.RequestTimeout)
}
