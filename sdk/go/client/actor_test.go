package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/entisync/internal/core/ecs"
	"github.com/zeusync/entisync/internal/core/observability/log"
	"github.com/zeusync/entisync/internal/core/reconcile"
	"github.com/zeusync/entisync/internal/core/replication"
	"github.com/zeusync/entisync/internal/demo"
	"github.com/zeusync/entisync/pkg/vector"
	"github.com/zeusync/entisync/sdk/go/client/storage"
)

type published struct {
	id    ecs.EntityID
	state replication.State
}

type recordingPublisher struct {
	sent []published
	err  error
}

func (p *recordingPublisher) UpdateEntity(_ context.Context, id ecs.EntityID, state replication.State) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, published{id: id, state: state})
	return nil
}

func newActorWorld(t *testing.T) *ecs.World {
	t.Helper()
	reg := ecs.NewRegistry()
	bps := ecs.NewBlueprints()
	require.NoError(t, demo.Register(reg, bps, reconcile.DefaultInterpolationConfig()))
	reg.MustRegister(ClientActorDescriptor())
	return ecs.NewWorld(reg, bps, log.NewNop())
}

func spawnOwned(t *testing.T, w *ecs.World, pub Publisher) (*ecs.Entity, *ClientActor) {
	t.Helper()
	actor := NewClientActor(demo.BlueprintPlayer, pub, 100*time.Millisecond, time.Second, log.NewNop())
	e, err := w.AddEntityWithID(7, demo.BlueprintPlayer, ecs.Props{
		"name":                    "alice",
		string(demo.KindPosition): map[string]any{"x": 1.0, "y": 2.0},
	}, ecs.WithComponents(actor))
	require.NoError(t, err)
	return e, actor
}

func TestClientActorPublishesOnInterval(t *testing.T) {
	w := newActorWorld(t)
	pub := &recordingPublisher{}
	spawnOwned(t, w, pub)

	w.Tick(0.05)
	assert.Empty(t, pub.sent)

	w.Tick(0.05)
	require.Len(t, pub.sent, 1)
	assert.EqualValues(t, 7, pub.sent[0].id)
	assert.Equal(t, replication.State{
		string(demo.KindPosition): {"x": 1.0, "y": 2.0},
		string(demo.KindName):     {"text": "alice"},
	}, pub.sent[0].state)
}

func TestClientActorSendsOnlyChanges(t *testing.T) {
	w := newActorWorld(t)
	pub := &recordingPublisher{}
	e, actor := spawnOwned(t, w, pub)
	ctx := context.Background()

	require.NoError(t, actor.Publish(ctx))
	require.Len(t, pub.sent, 1)

	require.NoError(t, actor.Publish(ctx))
	assert.Len(t, pub.sent, 1, "unchanged state is not sent again")

	require.NoError(t, e.Fire(ecs.MoveEvent{Delta: vector.New(3, 0)}))
	require.NoError(t, actor.Publish(ctx))
	require.Len(t, pub.sent, 2)
	assert.Equal(t, replication.State{
		string(demo.KindPosition): {"x": 4.0},
	}, pub.sent[1].state)
}

func TestClientActorRetriesAfterFailure(t *testing.T) {
	w := newActorWorld(t)
	pub := &recordingPublisher{err: errors.New("link down")}
	_, actor := spawnOwned(t, w, pub)
	ctx := context.Background()

	assert.Error(t, actor.Publish(ctx))
	assert.NotEmpty(t, actor.Changes())

	pub.err = nil
	require.NoError(t, actor.Publish(ctx))
	require.Len(t, pub.sent, 1)
	assert.Contains(t, pub.sent[0].state, string(demo.KindPosition))
	assert.Empty(t, actor.Changes())
}

func TestClientActorSaveLoad(t *testing.T) {
	w := newActorWorld(t)
	store := storage.NewMemoryStore()
	e, actor := spawnOwned(t, w, &recordingPublisher{})

	require.NoError(t, actor.Save(store))
	saved, ok, err := store.GetEntity(7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, demo.BlueprintPlayer, saved.BlueprintID)
	assert.Equal(t, 1.0, saved.Components[string(demo.KindPosition)]["x"])

	pos, _ := ecs.Get[*demo.Position](e)
	pos.Pos = vector.New(50, 50)

	loaded, err := actor.Load(store)
	require.NoError(t, err)
	assert.True(t, loaded)
	assert.Equal(t, vector.New(1, 2), pos.Pos)

	require.NoError(t, store.ClearEntities(nil))
	loaded, err = actor.Load(store)
	require.NoError(t, err)
	assert.False(t, loaded)
}

func TestClientActorDetached(t *testing.T) {
	actor := NewClientActor(demo.BlueprintPlayer, &recordingPublisher{}, time.Second, time.Second, log.NewNop())
	assert.ErrorIs(t, actor.Save(storage.NewMemoryStore()), ecs.ErrEntityNotFound)
	assert.Nil(t, actor.Changes())
}
