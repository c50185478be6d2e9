package protocol

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/entisync/internal/core/ecs"
	"github.com/zeusync/entisync/internal/core/observability/log"
	"github.com/zeusync/entisync/internal/core/observability/metrics"
)

func newPair(t *testing.T, opts ...ChannelOption) (*Channel, *Channel) {
	t.Helper()
	a, b := NewPipe(16)
	left := NewChannel(a, DefaultChannelConfig(), log.NewNop(), opts...)
	right := NewChannel(b, DefaultChannelConfig(), log.NewNop(), opts...)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = left.Run(ctx) }()
	go func() { _ = right.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		_ = left.Close()
		_ = right.Close()
	})
	return left, right
}

func TestChannelEmitPreservesOrder(t *testing.T) {
	left, right := newPair(t)

	got := make(chan int, 10)
	right.On(MsgEntityUpdate, func(msg *Message) {
		var u EntityUpdate
		require.NoError(t, msg.Decode(&u))
		got <- int(u.ID)
	})

	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		require.NoError(t, left.Emit(ctx, MsgEntityUpdate, EntityUpdate{ID: ecs.EntityID(i)}))
	}

	for i := 1; i <= 5; i++ {
		select {
		case id := <-got:
			assert.Equal(t, i, id)
		case <-time.After(time.Second):
			t.Fatal("message not delivered")
		}
	}
}

func TestChannelRequestReply(t *testing.T) {
	left, right := newPair(t)

	right.On(MsgEntityCreate, func(msg *Message) {
		var req CreateRequest
		require.NoError(t, msg.Decode(&req))
		assert.Equal(t, "Player", req.BlueprintID)
		assert.True(t, msg.WantsReply())
		require.NoError(t, msg.Reply(context.Background(), CreateReply{ID: 7}))
		assert.ErrorIs(t, msg.Reply(context.Background(), CreateReply{ID: 8}), ErrAlreadyReplied)
	})

	var reply CreateReply
	err := left.Request(context.Background(), MsgEntityCreate, CreateRequest{BlueprintID: "Player"}, &reply)
	require.NoError(t, err)
	assert.EqualValues(t, 7, reply.ID)
	assert.Zero(t, left.Pending())
}

func TestChannelEmitWithAckUsesDispatcher(t *testing.T) {
	inbox := make(chan func(), 4)
	left, right := newPair(t, WithDispatcher(func(fn func()) { inbox <- fn }))

	right.On(MsgGameInit, func(msg *Message) {
		_ = msg.Reply(context.Background(), GameInitReply{UserID: "u1"})
	})

	acked := make(chan string, 1)
	require.NoError(t, left.EmitWithAck(context.Background(), MsgGameInit, nil, func(msg *Message) {
		var r GameInitReply
		require.NoError(t, msg.Decode(&r))
		acked <- r.UserID
	}))

	// Handler on the right, then the ack on the left.
	for i := 0; i < 2; i++ {
		select {
		case fn := <-inbox:
			fn()
		case <-time.After(time.Second):
			t.Fatal("dispatcher not used")
		}
	}
	assert.Equal(t, "u1", <-acked)
}

func TestChannelReplyWithoutAck(t *testing.T) {
	left, right := newPair(t)
	errs := make(chan error, 1)
	right.On(MsgEntityDestroy, func(msg *Message) {
		errs <- msg.Reply(context.Background(), nil)
	})
	require.NoError(t, left.Emit(context.Background(), MsgEntityDestroy, EntityDestroy{ID: 3}))
	assert.ErrorIs(t, <-errs, ErrNoReply)
}

func TestChannelRequestTimeout(t *testing.T) {
	left, _ := newPair(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := left.Request(ctx, MsgQueryEntities, nil, nil)
	assert.ErrorIs(t, err, ErrAckTimeout)
	assert.Zero(t, left.Pending())
}

func TestChannelCloseDropsPending(t *testing.T) {
	left, right := newPair(t)
	right.On(MsgQueryEntities, func(*Message) {})

	called := make(chan struct{}, 1)
	require.NoError(t, left.EmitWithAck(context.Background(), MsgQueryEntities, nil, func(*Message) {
		called <- struct{}{}
	}))

	errs := make(chan error, 1)
	go func() { errs <- left.Request(context.Background(), MsgGameInit, nil, nil) }()

	require.Eventually(t, func() bool { return left.Pending() == 2 }, time.Second, time.Millisecond)
	require.NoError(t, left.Close())

	assert.ErrorIs(t, <-errs, ErrConnectionClosed)
	assert.Zero(t, left.Pending())
	select {
	case <-called:
		t.Fatal("ack callback invoked after close")
	case <-time.After(20 * time.Millisecond):
	}

	assert.ErrorIs(t, left.Emit(context.Background(), MsgEntityUpdate, nil), ErrConnectionClosed)
	<-right.Done()
}

func TestChannelOff(t *testing.T) {
	left, right := newPair(t)

	hits := make(chan string, 4)
	right.On(MsgSyncAction, func(*Message) { hits <- "a" })
	right.On(MsgSyncAction, func(*Message) { hits <- "b" })
	right.On(MsgEntityDestroy, func(*Message) { hits <- "destroy" })

	require.NoError(t, left.Emit(context.Background(), MsgSyncAction, SyncAction{ID: 1, Event: "jump"}))
	assert.Equal(t, "a", <-hits)
	assert.Equal(t, "b", <-hits)

	right.Off(MsgSyncAction)
	require.NoError(t, left.Emit(context.Background(), MsgSyncAction, SyncAction{ID: 1}))
	require.NoError(t, left.Emit(context.Background(), MsgEntityDestroy, EntityDestroy{ID: 1}))
	assert.Equal(t, "destroy", <-hits)

	right.OffAll()
	require.NoError(t, left.Emit(context.Background(), MsgEntityDestroy, EntityDestroy{ID: 1}))
	select {
	case h := <-hits:
		t.Fatalf("unexpected handler %q", h)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestChannelDropsBadFrames(t *testing.T) {
	sink, err := metrics.New("test", time.Minute, time.Minute)
	require.NoError(t, err)

	a, b := NewPipe(4)
	cfg := DefaultChannelConfig()
	cfg.MaxMessageSize = 64
	ch := NewChannel(b, cfg, log.NewNop(), WithMetrics(sink))
	go func() { _ = ch.Run(context.Background()) }()
	defer ch.Close()

	got := make(chan struct{}, 1)
	ch.On(MsgEntityDestroy, func(*Message) { got <- struct{}{} })

	ctx := context.Background()
	require.NoError(t, a.Send(ctx, []byte("{not json")))
	require.NoError(t, a.Send(ctx, []byte(`{"payload":{}}`)))
	require.NoError(t, a.Send(ctx, make([]byte, 65)))
	frame, err := Encode(MsgEntityDestroy, EntityDestroy{ID: 2}, 0, 0)
	require.NoError(t, err)
	require.NoError(t, a.Send(ctx, frame))

	<-got
	assert.Equal(t, 3, sink.Counter("channel", "dropped"))
	assert.Equal(t, 1, sink.Counter("channel", "received"))

	big := SyncAction{ID: 1, Event: string(make([]byte, 100))}
	assert.ErrorIs(t, ch.Emit(ctx, MsgSyncAction, big), ErrMessageTooLarge)
}

func TestEnvelopeRoundTrip(t *testing.T) {
	frame, err := Encode(MsgEntityCreate, CreateRequest{BlueprintID: "Slime"}, 4, 0)
	require.NoError(t, err)

	env, err := Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, MsgEntityCreate, env.Name)
	assert.EqualValues(t, 4, env.Ack)
	assert.False(t, env.IsReply())
	assert.JSONEq(t, `{"type":"Slime"}`, string(env.Payload))

	_, err = Decode([]byte(`{}`))
	assert.ErrorIs(t, err, ErrInvalidEnvelope)
}
