package quic

import (
	"context"
	"crypto/tls"
	"net"

	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"

	"github.com/zeusync/entisync/internal/core/observability/log"
)

// Listener accepts QUIC connections and their single stream.
type Listener struct {
	listener *quic.Listener
	config   Config
	logger   log.Log
}

func Listen(addr string, tlsConfig *tls.Config, config Config, logger log.Log) (*Listener, error) {
	listener, err := quic.ListenAddr(addr, tlsConfig, config.quicConfig())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to listen on %s", addr)
	}
	l := &Listener{
		listener: listener,
		config:   config,
		logger:   logger.With(log.String("listener_addr", listener.Addr().String())),
	}
	l.logger.Info("QUIC listener created")
	return l, nil
}

// Accept waits for a connection and for the peer to open its stream.
func (l *Listener) Accept(ctx context.Context) (*Link, error) {
	conn, err := l.listener.Accept(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to accept QUIC connection")
	}

	streamCtx := ctx
	if l.config.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		streamCtx, cancel = context.WithTimeout(ctx, l.config.HandshakeTimeout)
		defer cancel()
	}
	stream, err := conn.AcceptStream(streamCtx)
	if err != nil {
		_ = conn.CloseWithError(1, "no stream")
		return nil, errors.Wrap(err, "failed to accept stream")
	}

	l.logger.Debug("QUIC connection accepted",
		log.String("remote_addr", conn.RemoteAddr().String()))
	return newLink(conn, stream, l.config), nil
}

func (l *Listener) Addr() net.Addr {
	return l.listener.Addr()
}

func (l *Listener) Close() error {
	return l.listener.Close()
}

// Dial connects and opens the stream. An empty frame is written right away
// so the server side sees the stream without waiting for traffic.
func Dial(ctx context.Context, addr string, config Config) (*Link, error) {
	conn, err := quic.DialAddr(ctx, addr, clientTLS(config.InsecureSkipVerify), config.quicConfig())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial %s", addr)
	}
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = conn.CloseWithError(1, "no stream")
		return nil, errors.Wrap(err, "failed to open stream")
	}
	link := newLink(conn, stream, config)
	if err = link.Send(ctx, nil); err != nil {
		_ = link.Close()
		return nil, err
	}
	return link, nil
}
