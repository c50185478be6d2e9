package websocket

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/zeusync/entisync/internal/core/observability/log"
	"github.com/zeusync/entisync/internal/core/protocol"
)

// Acceptor upgrades HTTP requests and hands each new link to onLink.
type Acceptor struct {
	upgrader websocket.Upgrader
	config   Config
	onLink   func(protocol.Link)
	logger   log.Log
}

func NewAcceptor(config Config, onLink func(protocol.Link), logger log.Log) *Acceptor {
	a := &Acceptor{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
		},
		config: config,
		onLink: onLink,
		logger: logger.With(log.String("component", "websocket_acceptor")),
	}
	if !config.CheckOrigin {
		a.upgrader.CheckOrigin = func(*http.Request) bool { return true }
	}
	return a
}

func (a *Acceptor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn("Websocket upgrade failed",
			log.String("remote_addr", r.RemoteAddr),
			log.Error(err))
		return
	}
	link := NewLink(conn, a.config)
	a.logger.Debug("Websocket connection accepted",
		log.String("remote_addr", link.RemoteAddr()),
		log.String("connection_id", link.ID()))
	a.onLink(link)
}

// Handler mounts the acceptor at config.Path.
func (a *Acceptor) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(a.config.Path, a)
	return mux
}

// Dial connects to a websocket endpoint such as ws://host:port/ws.
func Dial(ctx context.Context, url string, config Config) (*Link, error) {
	dialer := websocket.Dialer{
		ReadBufferSize:  config.ReadBufferSize,
		WriteBufferSize: config.WriteBufferSize,
	}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", url)
	}
	return NewLink(conn, config), nil
}
