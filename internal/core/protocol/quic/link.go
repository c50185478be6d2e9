// Package quic carries protocol envelopes over a single bidirectional QUIC
// stream. Each envelope is framed with a 4-byte big-endian length.
package quic

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"

	"github.com/zeusync/entisync/internal/core/protocol"
	"github.com/zeusync/entisync/pkg/generic"
)

const headerSize = 4

var _ protocol.Link = (*Link)(nil)

var timeZero time.Time

var frames = generic.NewPool(
	func() *bytes.Buffer { return new(bytes.Buffer) },
	generic.WithReset(func(b *bytes.Buffer) { b.Reset() }),
)

type Link struct {
	conn   *quic.Conn
	stream *quic.Stream
	config Config
	closed int32

	writeMu sync.Mutex
	header  [headerSize]byte
}

func newLink(conn *quic.Conn, stream *quic.Stream, config Config) *Link {
	return &Link{conn: conn, stream: stream, config: config}
}

func (l *Link) RemoteAddr() string {
	return l.conn.RemoteAddr().String()
}

func (l *Link) IsClosed() bool {
	return atomic.LoadInt32(&l.closed) == 1
}

// Send writes one length-prefixed frame.
func (l *Link) Send(ctx context.Context, frame []byte) error {
	if l.IsClosed() {
		return protocol.ErrConnectionClosed
	}
	if l.config.MaxMessageSize > 0 && uint32(len(frame)) > l.config.MaxMessageSize {
		return errors.Wrapf(protocol.ErrMessageTooLarge, "frame of %d bytes", len(frame))
	}

	buf := frames.Get()
	defer frames.Put(buf)
	var header [headerSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(frame)))
	buf.Write(header[:])
	buf.Write(frame)

	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	if d, ok := ctx.Deadline(); ok {
		_ = l.stream.SetWriteDeadline(d)
		defer func() { _ = l.stream.SetWriteDeadline(timeZero) }()
	}
	if _, err := l.stream.Write(buf.Bytes()); err != nil {
		return l.wrap(err, "failed to write frame")
	}
	return nil
}

// Receive reads the next non-empty frame. Only one goroutine may receive.
func (l *Link) Receive(ctx context.Context) ([]byte, error) {
	for {
		if l.IsClosed() {
			return nil, protocol.ErrConnectionClosed
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if _, err := io.ReadFull(l.stream, l.header[:]); err != nil {
			return nil, l.wrap(err, "failed to read frame header")
		}
		size := binary.BigEndian.Uint32(l.header[:])
		if l.config.MaxMessageSize > 0 && size > l.config.MaxMessageSize {
			_ = l.Close()
			return nil, errors.Wrapf(protocol.ErrMessageTooLarge, "frame of %d bytes", size)
		}
		if size == 0 {
			continue
		}

		data := make([]byte, size)
		if _, err := io.ReadFull(l.stream, data); err != nil {
			return nil, l.wrap(err, "failed to read frame")
		}
		return data, nil
	}
}

func (l *Link) Close() error {
	if !atomic.CompareAndSwapInt32(&l.closed, 0, 1) {
		return nil // Already closed
	}
	_ = l.stream.Close()
	return l.conn.CloseWithError(0, "connection closed")
}

func (l *Link) wrap(err error, msg string) error {
	if l.IsClosed() || errors.Is(err, io.EOF) {
		return errors.Wrap(protocol.ErrConnectionClosed, err.Error())
	}
	var appErr *quic.ApplicationError
	if errors.As(err, &appErr) {
		return errors.Wrap(protocol.ErrConnectionClosed, err.Error())
	}
	return errors.Wrap(err, msg)
}
