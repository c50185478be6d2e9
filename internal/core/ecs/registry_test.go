package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/entisync/internal/core/replication"
	"github.com/zeusync/entisync/pkg/vector"
)

func TestRegistryRejectsUnapplicableReplication(t *testing.T) {
	reg := NewRegistry()

	err := reg.Register(Descriptor{Kind: kindPosition, Replicated: true})
	assert.ErrorIs(t, err, ErrNotReplicable)

	assert.ErrorIs(t, reg.Register(Descriptor{}), ErrInvalidKind)

	require.NoError(t, reg.Register(Describe[*position](kindPosition).WithCodec(Codec(positionCodec))))
	assert.ErrorIs(t, reg.Register(Describe[*health](kindPosition)), ErrKindRegistered)
	assert.ErrorIs(t, reg.Register(Describe[*position]("Other")), ErrKindRegistered)

	k, err := KindFor[*position](reg)
	require.NoError(t, err)
	assert.Equal(t, kindPosition, k)

	_, err = KindFor[*health](reg)
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = reg.ParseKind("Nope")
	assert.ErrorIs(t, err, ErrUnknownKind)
	assert.Equal(t, []Kind{kindPosition}, reg.Kinds())
}

func TestDescriptorCapabilities(t *testing.T) {
	d := Describe[*position](kindPosition)
	assert.Equal(t, []string{"destroy", "init", "late_init", "move"}, d.Capabilities())
	assert.Equal(t, []string{"action"}, Describe[*tag](kindTag).Capabilities())
}

func TestBlueprints(t *testing.T) {
	bps := NewBlueprints()
	require.NoError(t, bps.Register("A", func() []Component { return nil }))
	assert.ErrorIs(t, bps.Register("A", func() []Component { return nil }), ErrBlueprintRegistered)

	_, err := bps.Resolve("B")
	assert.ErrorIs(t, err, ErrUnknownBlueprint)
	assert.Equal(t, []string{"A"}, bps.IDs())
}

func TestEventFromAction(t *testing.T) {
	ev, err := EventFromAction("move", Props{"x": 2.0, "y": -1})
	require.NoError(t, err)
	assert.Equal(t, MoveEvent{Delta: vector.New(2, -1)}, ev)

	ev, err = EventFromAction("jump", Props{"height": 3})
	require.NoError(t, err)
	assert.Equal(t, ActionEvent{Name: "jump", Props: Props{"height": 3}}, ev)

	_, err = EventFromAction("onDestroy", nil)
	assert.ErrorIs(t, err, ErrReservedAction)
}

func TestActionDispatchOnlyReachesHandlers(t *testing.T) {
	w := newTestWorld(t)
	e, err := w.AddEntity("Tagged", nil)
	require.NoError(t, err)

	require.NoError(t, e.Fire(ActionEvent{Name: "wave"}))
	require.NoError(t, e.Fire(MoveEvent{Delta: vector.New(3, 4)}))

	tg, _ := Get[*tag](e)
	p, _ := Get[*position](e)
	assert.Equal(t, []string{"wave"}, tg.actions)
	assert.Equal(t, 3.0, p.X)
	assert.Equal(t, 4.0, p.Y)
}

func TestSerializeDeserializeEntity(t *testing.T) {
	w := newTestWorld(t)
	e, err := w.AddEntity("Mob", Props{"x": 3, "y": 4})
	require.NoError(t, err)

	state := w.SerializeEntity(e)
	assert.Equal(t, replication.State{string(kindPosition): {"x": 3.0, "y": 4.0}}, state)

	other, err := w.AddEntity("Mob", nil)
	require.NoError(t, err)
	state[string(kindHealth)] = replication.Patch{"hp": 1.0}
	state["Unknown"] = replication.Patch{"a": 1.0}

	assert.Equal(t, 2, w.DeserializeEntity(other, state))
	p, _ := Get[*position](other)
	assert.Equal(t, 3.0, p.X)
	assert.Equal(t, 4.0, p.Y)
}
