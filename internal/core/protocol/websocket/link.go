// Package websocket carries protocol envelopes over gorilla/websocket text
// frames, one envelope per frame.
package websocket

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/zeusync/entisync/internal/core/protocol"
)

var _ protocol.Link = (*Link)(nil)

// Link is a protocol.Link over one websocket connection.
type Link struct {
	id     string
	conn   *websocket.Conn
	config Config
	closed int32

	// gorilla allows one concurrent writer
	writeMu sync.Mutex
}

// NewLink wraps an established connection.
func NewLink(conn *websocket.Conn, config Config) *Link {
	if config.MaxMessageSize > 0 {
		conn.SetReadLimit(config.MaxMessageSize)
	}
	return &Link{
		id:     uuid.New().String(),
		conn:   conn,
		config: config,
	}
}

// ID returns the connection ID
func (l *Link) ID() string {
	return l.id
}

func (l *Link) RemoteAddr() string {
	return l.conn.RemoteAddr().String()
}

func (l *Link) IsClosed() bool {
	return atomic.LoadInt32(&l.closed) == 1
}

// Send writes one text frame.
func (l *Link) Send(ctx context.Context, frame []byte) error {
	if l.IsClosed() {
		return protocol.ErrConnectionClosed
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	deadline := time.Time{}
	if l.config.WriteTimeout > 0 {
		deadline = time.Now().Add(l.config.WriteTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	_ = l.conn.SetWriteDeadline(deadline)

	if err := l.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return errors.Wrap(err, "failed to write message")
	}
	return nil
}

// Receive reads the next data frame. Binary frames are accepted too.
func (l *Link) Receive(ctx context.Context) ([]byte, error) {
	if l.IsClosed() {
		return nil, protocol.ErrConnectionClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if l.config.ReadTimeout > 0 {
		_ = l.conn.SetReadDeadline(time.Now().Add(l.config.ReadTimeout))
	}

	for {
		messageType, data, err := l.conn.ReadMessage()
		if err != nil {
			if l.IsClosed() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, errors.Wrap(protocol.ErrConnectionClosed, err.Error())
			}
			return nil, errors.Wrap(err, "failed to read message")
		}
		if messageType == websocket.TextMessage || messageType == websocket.BinaryMessage {
			return data, nil
		}
	}
}

// Close sends a normal close frame and closes the connection.
func (l *Link) Close() error {
	return l.CloseWithReason("connection closed")
}

func (l *Link) CloseWithReason(reason string) error {
	if !atomic.CompareAndSwapInt32(&l.closed, 0, 1) {
		return nil // Already closed
	}

	l.writeMu.Lock()
	closeMessage := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = l.conn.WriteControl(websocket.CloseMessage, closeMessage, time.Now().Add(time.Second))
	l.writeMu.Unlock()

	return l.conn.Close()
}
