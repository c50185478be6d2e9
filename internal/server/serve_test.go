package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/entisync/internal/core/observability/log"
	"github.com/zeusync/entisync/internal/core/protocol"
	"github.com/zeusync/entisync/internal/core/protocol/websocket"
	"github.com/zeusync/entisync/pkg/vector"
)

func TestListenAndServeWebsocket(t *testing.T) {
	config := DefaultConfig()
	config.ListenAddr = "127.0.0.1:0"
	config.Spawn = vector.New(3, 4)
	s, err := New(config, log.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	addrs := make(chan net.Addr, 1)
	served := make(chan error, 1)
	go func() { served <- s.ListenAndServe(ctx, func(a net.Addr) { addrs <- a }) }()

	var addr net.Addr
	select {
	case addr = <-addrs:
	case err = <-served:
		t.Fatalf("serve failed: %v", err)
	}

	dialCtx, dialCancel := context.WithTimeout(context.Background(), wait)
	defer dialCancel()
	link, err := websocket.Dial(dialCtx, "ws://"+addr.String()+config.Websocket.Path, config.Websocket)
	require.NoError(t, err)

	ch := protocol.NewChannel(link, config.Channel, log.NewNop())
	go func() { _ = ch.Run(dialCtx) }()

	var reply protocol.GameInitReply
	require.NoError(t, ch.Request(dialCtx, protocol.MsgGameInit, nil, &reply))
	assert.NotEmpty(t, reply.UserID)
	assert.Equal(t, vector.New(3, 4), reply.Spawn)

	cancel()
	select {
	case err = <-served:
		assert.NoError(t, err)
	case <-time.After(wait):
		t.Fatal("server did not stop")
	}
	_ = ch.Close()
}
