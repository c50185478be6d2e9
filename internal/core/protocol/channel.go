package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/zeusync/entisync/internal/core/observability/log"
	"github.com/zeusync/entisync/internal/core/observability/metrics"
)

// Handler processes one inbound named message.
type Handler func(msg *Message)

// Dispatcher schedules handler execution. The default runs handlers on the
// reader goroutine; event loops pass a function posting into their inbox.
type Dispatcher func(fn func())

// Message is an inbound named message.
type Message struct {
	Name    string
	Payload json.RawMessage

	channel *Channel
	ack     uint64
	replied bool
}

// Decode unmarshals the payload into v. An empty payload leaves v untouched.
func (m *Message) Decode(v any) error {
	if len(m.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("decode %q: %w", m.Name, err)
	}
	return nil
}

// WantsReply reports whether the sender awaits an acknowledgement.
func (m *Message) WantsReply() bool {
	return m.ack != 0
}

// Reply acknowledges the message with payload v. It fails with ErrNoReply
// when nothing awaits an answer and with ErrAlreadyReplied on a second call.
func (m *Message) Reply(ctx context.Context, v any) error {
	if !m.WantsReply() {
		return ErrNoReply
	}
	if m.replied {
		return ErrAlreadyReplied
	}
	m.replied = true
	return m.channel.send(ctx, "", v, 0, m.ack)
}

// Channel returns the connection the message arrived on.
func (m *Message) Channel() *Channel {
	return m.channel
}

type pending struct {
	fn     func(*Message)
	direct bool
}

type ChannelOption func(*Channel)

// WithDispatcher routes handlers and ack callbacks through d.
func WithDispatcher(d Dispatcher) ChannelOption {
	return func(c *Channel) {
		c.dispatch = d
	}
}

// WithMetrics counts sent, received and dropped envelopes.
func WithMetrics(r metrics.Recorder) ChannelOption {
	return func(c *Channel) {
		c.metrics = r
	}
}

// Channel is a named-message pub/sub over a Link with optional
// acknowledgements. Message order on the link is preserved.
type Channel struct {
	link     Link
	config   ChannelConfig
	logger   log.Log
	dispatch Dispatcher
	metrics  metrics.Recorder

	mu       sync.Mutex
	handlers map[string][]Handler
	pending  map[uint64]pending
	nextAck  uint64

	sendMu    sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

func NewChannel(link Link, config ChannelConfig, logger log.Log, opts ...ChannelOption) *Channel {
	c := &Channel{
		link:     link,
		config:   config,
		logger:   logger.With(log.String("remote_addr", link.RemoteAddr())),
		dispatch: func(fn func()) { fn() },
		metrics:  metrics.Nop{},
		handlers: make(map[string][]Handler),
		pending:  make(map[uint64]pending),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// On appends a handler for name.
func (c *Channel) On(name string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[name] = append(c.handlers[name], h)
}

// Off removes every handler for name.
func (c *Channel) Off(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, name)
}

// OffAll removes every handler.
func (c *Channel) OffAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.handlers)
}

// Emit sends a fire-and-forget message.
func (c *Channel) Emit(ctx context.Context, name string, payload any) error {
	return c.send(ctx, name, payload, 0, 0)
}

// EmitWithAck sends a message and registers cb for the reply. The callback
// runs through the dispatcher. If the connection closes first, cb is
// discarded without being called.
func (c *Channel) EmitWithAck(ctx context.Context, name string, payload any, cb func(*Message)) error {
	id, err := c.register(pending{fn: cb})
	if err != nil {
		return err
	}
	if err = c.send(ctx, name, payload, id, 0); err != nil {
		c.forget(id)
		return err
	}
	return nil
}

// Request sends a message and blocks until the reply is decoded into reply.
// The reply bypasses the dispatcher, so Request may be called from a
// handler. Without a context deadline AckTimeout applies.
func (c *Channel) Request(ctx context.Context, name string, payload any, reply any) error {
	if _, ok := ctx.Deadline(); !ok && c.config.AckTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.AckTimeout)
		defer cancel()
	}

	result := make(chan *Message, 1)
	id, err := c.register(pending{fn: func(m *Message) { result <- m }, direct: true})
	if err != nil {
		return err
	}
	if err = c.send(ctx, name, payload, id, 0); err != nil {
		c.forget(id)
		return err
	}

	select {
	case m := <-result:
		if reply == nil {
			return nil
		}
		return m.Decode(reply)
	case <-c.done:
		return ErrConnectionClosed
	case <-ctx.Done():
		c.forget(id)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s", ErrAckTimeout, name)
		}
		return ctx.Err()
	}
}

// Run reads the link until it fails or ctx ends, then closes the channel.
func (c *Channel) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()
	defer func() { _ = c.Close() }()

	for {
		frame, err := c.link.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if c.isClosed() {
				return nil
			}
			c.logger.Debug("Link receive failed", log.Error(err))
			return fmt.Errorf("%w: %w", ErrConnectionClosed, err)
		}
		c.handleFrame(frame)
	}
}

func (c *Channel) handleFrame(frame []byte) {
	if c.config.MaxMessageSize > 0 && len(frame) > c.config.MaxMessageSize {
		c.metrics.Incr("channel", "dropped")
		c.logger.Warn("Dropping oversized frame", log.Int("size", len(frame)))
		return
	}
	env, err := Decode(frame)
	if err != nil {
		c.metrics.Incr("channel", "dropped")
		c.logger.Warn("Dropping malformed frame", log.Error(err))
		return
	}
	c.metrics.Incr("channel", "received")

	msg := &Message{Name: env.Name, Payload: env.Payload, channel: c, ack: env.Ack}

	if env.IsReply() {
		c.mu.Lock()
		p, ok := c.pending[env.Reply]
		delete(c.pending, env.Reply)
		c.mu.Unlock()
		if !ok {
			c.logger.Debug("Reply without pending request", log.Uint64("reply", env.Reply))
			return
		}
		if p.direct {
			p.fn(msg)
			return
		}
		c.dispatch(func() { p.fn(msg) })
		return
	}

	c.mu.Lock()
	handlers := append([]Handler(nil), c.handlers[env.Name]...)
	c.mu.Unlock()
	if len(handlers) == 0 {
		c.logger.Debug("No handler for message", log.String("message", env.Name))
		return
	}
	c.dispatch(func() {
		for _, h := range handlers {
			h(msg)
		}
	})
}

// Close closes the link and drops pending acknowledgements.
func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.link.Close()
		c.mu.Lock()
		clear(c.pending)
		c.mu.Unlock()
	})
	return err
}

// Done is closed once the channel is closed.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

func (c *Channel) RemoteAddr() string {
	return c.link.RemoteAddr()
}

// Pending reports the number of acknowledgements still awaited.
func (c *Channel) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Channel) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Channel) register(p pending) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isClosed() {
		return 0, ErrConnectionClosed
	}
	c.nextAck++
	c.pending[c.nextAck] = p
	return c.nextAck, nil
}

func (c *Channel) forget(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Channel) send(ctx context.Context, name string, payload any, ack, reply uint64) error {
	if c.isClosed() {
		return ErrConnectionClosed
	}
	frame, err := Encode(name, payload, ack, reply)
	if err != nil {
		return err
	}
	if c.config.MaxMessageSize > 0 && len(frame) > c.config.MaxMessageSize {
		return fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(frame))
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if err = c.link.Send(ctx, frame); err != nil {
		return err
	}
	c.metrics.Incr("channel", "sent")
	return nil
}
