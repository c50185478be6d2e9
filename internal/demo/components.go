// Package demo holds the sample components and blueprints used by the
// server and bot commands.
package demo

import (
	"math"
	"math/rand/v2"

	"github.com/zeusync/entisync/internal/core/ecs"
	"github.com/zeusync/entisync/internal/core/replication"
	"github.com/zeusync/entisync/pkg/vector"
)

const (
	KindPosition ecs.Kind = "PositionComponent"
	KindName     ecs.Kind = "NameComponent"
	KindEmote    ecs.Kind = "EmoteComponent"
	KindWander   ecs.Kind = "WanderComponent"
)

var (
	_ ecs.Initializer   = (*Position)(nil)
	_ ecs.Mover         = (*Position)(nil)
	_ ecs.Initializer   = (*Name)(nil)
	_ ecs.ActionHandler = (*Emote)(nil)
	_ ecs.Updater       = (*Wander)(nil)
)

// Position is a point on the map. It moves on MoveEvent.
type Position struct {
	ecs.Base
	Pos vector.Vec2
}

var positionCodec = replication.MustCodec(
	replication.FloatRef("x", func(p *Position) *float64 { return &p.Pos.X }),
	replication.FloatRef("y", func(p *Position) *float64 { return &p.Pos.Y }),
)

func (*Position) Kind() ecs.Kind {
	return KindPosition
}

func (p *Position) Position() vector.Vec2 {
	return p.Pos
}

func (p *Position) SetPosition(v vector.Vec2) {
	p.Pos = v
}

// OnInit reads the construction state from props under the component kind.
func (p *Position) OnInit(ev ecs.InitEvent) error {
	if patch, ok := replication.StateFrom(ev.Props)[string(KindPosition)]; ok {
		positionCodec.Deserialize(p, patch)
	}
	return nil
}

func (p *Position) OnMove(ev ecs.MoveEvent) {
	p.Pos = p.Pos.Add(ev.Delta)
}

// Name is a display name taken from the "name" prop.
type Name struct {
	ecs.Base
	Text string
}

var nameCodec = replication.MustCodec(
	replication.StringRef("text", func(n *Name) *string { return &n.Text }),
)

func (*Name) Kind() ecs.Kind {
	return KindName
}

func (n *Name) OnInit(ev ecs.InitEvent) error {
	if text, ok := replication.String(ev.Props["name"]); ok {
		n.Text = text
	}
	return nil
}

// Emote remembers the last action fired on the entity.
type Emote struct {
	ecs.Base
	Last  string
	Count int
}

func (*Emote) Kind() ecs.Kind {
	return KindEmote
}

func (e *Emote) OnAction(ev ecs.ActionEvent) {
	e.Last = ev.Name
	e.Count++
}

// Wander random-walks its entity. It changes heading every Turn seconds
// and moves at Speed units per second.
type Wander struct {
	ecs.Base
	Speed float64
	Turn  float64

	rng     *rand.Rand
	heading vector.Vec2
	elapsed float64
}

func NewWander(speed, turn float64, seed uint64) *Wander {
	return &Wander{
		Speed: speed,
		Turn:  turn,
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (*Wander) Kind() ecs.Kind {
	return KindWander
}

func (w *Wander) OnUpdate(ev ecs.UpdateEvent) {
	w.elapsed += ev.Delta
	if w.heading == (vector.Vec2{}) || w.elapsed >= w.Turn {
		w.elapsed = 0
		angle := w.rng.Float64() * 2 * math.Pi
		w.heading = vector.New(math.Cos(angle), math.Sin(angle))
	}
	if e := w.Entity(); e != nil {
		_ = e.Fire(ecs.MoveEvent{Delta: w.heading.Scale(w.Speed * ev.Delta)})
	}
}
