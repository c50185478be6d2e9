package quic

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/entisync/internal/core/observability/log"
	"github.com/zeusync/entisync/internal/core/protocol"
)

func connect(t *testing.T, config Config) (client, server *Link) {
	t.Helper()
	tlsConfig, err := GenerateSelfSignedTLS()
	require.NoError(t, err)

	ln, err := Listen("127.0.0.1:0", tlsConfig, config, log.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	accepted := make(chan *Link, 1)
	errs := make(chan error, 1)
	go func() {
		l, err := ln.Accept(ctx)
		if err != nil {
			errs <- err
			return
		}
		accepted <- l
	}()

	client, err = Dial(ctx, ln.Addr().String(), config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	select {
	case server = <-accepted:
	case err = <-errs:
		t.Fatalf("accept failed: %v", err)
	}
	t.Cleanup(func() { _ = server.Close() })
	return client, server
}

func TestLinkFrames(t *testing.T) {
	client, server := connect(t, DefaultConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msgs := []string{`{"name":"query entities","ack":1}`, `{"name":"game init","ack":2}`}
	for _, m := range msgs {
		require.NoError(t, client.Send(ctx, []byte(m)))
	}
	for _, m := range msgs {
		frame, err := server.Receive(ctx)
		require.NoError(t, err)
		assert.Equal(t, m, string(frame))
	}

	require.NoError(t, server.Send(ctx, []byte(`{"reply":2}`)))
	frame, err := client.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"reply":2}`, string(frame))
}

func TestLinkRejectsLargeFrames(t *testing.T) {
	config := DefaultConfig()
	config.MaxMessageSize = 16
	client, _ := connect(t, config)

	err := client.Send(context.Background(), make([]byte, 17))
	assert.ErrorIs(t, err, protocol.ErrMessageTooLarge)
}

func TestLinkChannel(t *testing.T) {
	client, server := connect(t, DefaultConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	serverCh := protocol.NewChannel(server, protocol.DefaultChannelConfig(), log.NewNop())
	serverCh.On(protocol.MsgEntityCreate, func(msg *protocol.Message) {
		_ = msg.Reply(ctx, protocol.CreateReply{ID: 42})
	})
	go func() { _ = serverCh.Run(ctx) }()

	clientCh := protocol.NewChannel(client, protocol.DefaultChannelConfig(), log.NewNop())
	go func() { _ = clientCh.Run(ctx) }()

	var reply protocol.CreateReply
	require.NoError(t, clientCh.Request(ctx, protocol.MsgEntityCreate, protocol.CreateRequest{BlueprintID: "Player"}, &reply))
	assert.EqualValues(t, 42, reply.ID)

	require.NoError(t, clientCh.Close())
	select {
	case <-serverCh.Done():
	case <-ctx.Done():
		t.Fatal("server channel still open")
	}
}
