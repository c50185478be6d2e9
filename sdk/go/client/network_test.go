package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/entisync/internal/core/ecs"
	"github.com/zeusync/entisync/internal/core/observability/log"
	"github.com/zeusync/entisync/internal/core/protocol"
	"github.com/zeusync/entisync/internal/core/reconcile"
	"github.com/zeusync/entisync/internal/core/replication"
	"github.com/zeusync/entisync/internal/demo"
	"github.com/zeusync/entisync/pkg/vector"
)

// harness runs a NetworkHandler against a bare peer channel. Dispatched
// handlers are queued and run by step on the test goroutine.
type harness struct {
	t       *testing.T
	world   *ecs.World
	network *NetworkHandler
	peer    *protocol.Channel
	queue   chan func()
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	reg := ecs.NewRegistry()
	bps := ecs.NewBlueprints()
	require.NoError(t, demo.Register(reg, bps, reconcile.DefaultInterpolationConfig()))
	reg.MustRegister(reconcile.Descriptor(), ClientActorDescriptor())

	local, remote := protocol.NewPipe(32)
	h := &harness{
		t:     t,
		world: ecs.NewWorld(reg, bps, log.NewNop()),
		queue: make(chan func(), 32),
	}
	ch := protocol.NewChannel(local, protocol.DefaultChannelConfig(), log.NewNop(),
		protocol.WithDispatcher(func(fn func()) { h.queue <- fn }))
	h.network = NewNetworkHandler(h.world, ch, log.NewNop())
	h.peer = protocol.NewChannel(remote, protocol.DefaultChannelConfig(), log.NewNop())

	go func() { _ = ch.Run(context.Background()) }()
	go func() { _ = h.peer.Run(context.Background()) }()
	t.Cleanup(func() {
		_ = ch.Close()
		_ = h.peer.Close()
	})
	return h
}

func (h *harness) send(name string, payload any) {
	h.t.Helper()
	require.NoError(h.t, h.peer.Emit(context.Background(), name, payload))
	select {
	case fn := <-h.queue:
		fn()
	case <-time.After(2 * time.Second):
		h.t.Fatalf("%s was not dispatched", name)
	}
}

func TestNetworkCreateAllSkipsExisting(t *testing.T) {
	h := newHarness(t)
	slime := protocol.NetworkEntity{
		ID:          3,
		BlueprintID: demo.BlueprintSlime,
		Owner:       "u1",
		Props:       ecs.Props{string(demo.KindPosition): map[string]any{"x": 4.0, "y": 5.0}},
	}
	h.send(protocol.MsgEntityCreate, slime)
	h.send(protocol.MsgEntityCreateAll, []protocol.NetworkEntity{
		slime,
		{ID: 4, BlueprintID: demo.BlueprintFren, Props: ecs.Props{"name": "pal"}},
		{ID: 5, BlueprintID: "Unknown"},
	})

	assert.Equal(t, 2, h.world.Len())
	e, ok := h.world.Entity(3)
	require.True(t, ok)
	assert.Empty(t, e.Owner(), "owner is not sent")
	pos, _ := ecs.Get[*demo.Position](e)
	assert.Equal(t, vector.New(4, 5), pos.Pos)
	_, remote := ecs.Get[*reconcile.ServerActor](e)
	assert.True(t, remote)
}

func TestNetworkUpdateFeedsReconciler(t *testing.T) {
	h := newHarness(t)
	h.send(protocol.MsgEntityCreate, protocol.NetworkEntity{ID: 1, BlueprintID: demo.BlueprintSlime})
	h.send(protocol.MsgEntityUpdate, protocol.EntityUpdate{
		ID:    1,
		Props: replication.State{string(demo.KindPosition): {"x": 1.0}},
	})

	e, _ := h.world.Entity(1)
	actor, _ := ecs.Get[*reconcile.ServerActor](e)
	target, ok := actor.Target(demo.KindPosition)
	require.True(t, ok)
	assert.Equal(t, replication.Patch{"x": 1.0}, target)

	h.world.Tick(0.016)
	pos, _ := ecs.Get[*demo.Position](e)
	assert.Equal(t, vector.New(1, 0), pos.Pos, "within epsilon the position snaps")
	assert.True(t, actor.Idle())
}

func TestNetworkUpdateForOwnedEntityIsIgnored(t *testing.T) {
	h := newHarness(t)
	_, err := h.world.AddEntityWithID(9, demo.BlueprintSlime, nil,
		ecs.WithComponents(NewClientActor(demo.BlueprintSlime, h.network, time.Second, time.Second, log.NewNop())))
	require.NoError(t, err)

	h.send(protocol.MsgEntityUpdate, protocol.EntityUpdate{
		ID:    9,
		Props: replication.State{string(demo.KindPosition): {"x": 50.0}},
	})
	h.send(protocol.MsgEntityUpdate, protocol.EntityUpdate{ID: 404})

	e, _ := h.world.Entity(9)
	pos, _ := ecs.Get[*demo.Position](e)
	assert.Equal(t, vector.Vec2{}, pos.Pos)
}

func TestNetworkDestroyAndActions(t *testing.T) {
	h := newHarness(t)
	h.send(protocol.MsgEntityCreate, protocol.NetworkEntity{ID: 2, BlueprintID: demo.BlueprintPlayer})

	h.send(protocol.MsgSyncAction, protocol.SyncAction{ID: 2, Event: "wave"})
	h.send(protocol.MsgSyncAction, protocol.SyncAction{ID: 2, Event: "destroy"})
	h.send(protocol.MsgSyncAction, protocol.SyncAction{ID: 2, Event: ecs.ActionMove, Props: ecs.Props{"x": 2.0, "y": -1.0}})

	e, ok := h.world.Entity(2)
	require.True(t, ok, "reserved actions do not destroy entities")
	emote, _ := ecs.Get[*demo.Emote](e)
	assert.Equal(t, "wave", emote.Last)
	pos, _ := ecs.Get[*demo.Position](e)
	assert.Equal(t, vector.New(2, -1), pos.Pos)

	h.send(protocol.MsgEntityDestroy, protocol.EntityDestroy{ID: 2})
	assert.Zero(t, h.world.Len())
	h.send(protocol.MsgEntityDestroy, protocol.EntityDestroy{ID: 2})
}

func TestNetworkOutbound(t *testing.T) {
	h := newHarness(t)
	got := make(chan *protocol.Message, 4)
	for _, name := range []string{protocol.MsgEntityUpdate, protocol.MsgEntityDestroy, protocol.MsgSyncAction} {
		h.peer.On(name, func(msg *protocol.Message) { got <- msg })
	}
	h.peer.On(protocol.MsgEntityCreate, func(msg *protocol.Message) {
		var req protocol.CreateRequest
		_ = msg.Decode(&req)
		_ = msg.Reply(context.Background(), protocol.CreateReply{ID: 12})
	})

	ctx := context.Background()
	id, err := h.network.RequestEntity(ctx, demo.BlueprintPlayer, ecs.Props{"name": "alice"})
	require.NoError(t, err)
	assert.EqualValues(t, 12, id)

	require.NoError(t, h.network.UpdateEntity(ctx, 12, replication.State{"NameComponent": {"text": "bob"}}))
	msg := <-got
	var update protocol.EntityUpdate
	require.NoError(t, msg.Decode(&update))
	assert.EqualValues(t, 12, update.ID)
	assert.Equal(t, "bob", update.Props["NameComponent"]["text"])

	require.NoError(t, h.network.SyncAction(ctx, 12, "wave", nil))
	assert.Equal(t, protocol.MsgSyncAction, (<-got).Name)
	require.NoError(t, h.network.DestroyEntity(ctx, 12))
	assert.Equal(t, protocol.MsgEntityDestroy, (<-got).Name)

	done := make(chan ecs.EntityID, 1)
	require.NoError(t, h.network.CreateEntity(ctx, demo.BlueprintSlime, nil, func(id ecs.EntityID, err error) {
		assert.NoError(t, err)
		done <- id
	}))
	select {
	case fn := <-h.queue:
		fn()
	case <-time.After(2 * time.Second):
		t.Fatal("create ack was not dispatched")
	}
	assert.EqualValues(t, 12, <-done)
}
