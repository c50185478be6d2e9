package ecs

import (
	"github.com/zeusync/entisync/internal/core/replication"
	"github.com/zeusync/entisync/pkg/vector"
)

// Props carries loosely typed construction or action parameters.
type Props = map[string]any

// Event is the closed set of things an entity can dispatch to its
// components. Each variant is delivered only to components implementing the
// matching capability interface; everybody else ignores it.
type Event interface {
	event()
}

type (
	// InitEvent fires once after an entity is assembled.
	InitEvent struct{ Props Props }
	// LateInitEvent fires after every component saw InitEvent.
	LateInitEvent struct{ Props Props }
	// UpdateEvent fires every tick with the elapsed time.
	UpdateEvent struct{ Delta float64 }
	// DestroyEvent fires before components are detached.
	DestroyEvent struct{}
	// MoveEvent announces a positional change by Delta.
	MoveEvent struct{ Delta vector.Vec2 }
	// ActionEvent is a named gameplay action, typically relayed over the network.
	ActionEvent struct {
		Name  string
		Props Props
	}
)

func (InitEvent) event()     {}
func (LateInitEvent) event() {}
func (UpdateEvent) event()   {}
func (DestroyEvent) event()  {}
func (MoveEvent) event()     {}
func (ActionEvent) event()   {}

type Initializer interface {
	OnInit(InitEvent) error
}

type LateInitializer interface {
	OnLateInit(LateInitEvent) error
}

type Updater interface {
	OnUpdate(UpdateEvent)
}

type Destroyer interface {
	OnDestroy(DestroyEvent)
}

type Mover interface {
	OnMove(MoveEvent)
}

type ActionHandler interface {
	OnAction(ActionEvent)
}

// Well-known action names accepted from the network.
const (
	ActionMove = "move"
)

var reservedActions = map[string]struct{}{
	"init":      {},
	"onInit":    {},
	"update":    {},
	"onUpdate":  {},
	"destroy":   {},
	"onDestroy": {},
}

// EventFromAction turns a relayed action into an Event. Lifecycle names are
// rejected so a peer cannot destroy or re-initialize a remote entity.
func EventFromAction(name string, props Props) (Event, error) {
	if _, reserved := reservedActions[name]; reserved {
		return nil, ErrReservedAction
	}
	if name == ActionMove || name == "onMove" {
		x, _ := replication.Float64(props["x"])
		y, _ := replication.Float64(props["y"])
		return MoveEvent{Delta: vector.New(x, y)}, nil
	}
	return ActionEvent{Name: name, Props: props}, nil
}

func dispatch(c Component, ev Event) error {
	switch ev := ev.(type) {
	case InitEvent:
		if h, ok := c.(Initializer); ok {
			return h.OnInit(ev)
		}
	case LateInitEvent:
		if h, ok := c.(LateInitializer); ok {
			return h.OnLateInit(ev)
		}
	case UpdateEvent:
		if h, ok := c.(Updater); ok {
			h.OnUpdate(ev)
		}
	case DestroyEvent:
		if h, ok := c.(Destroyer); ok {
			h.OnDestroy(ev)
		}
	case MoveEvent:
		if h, ok := c.(Mover); ok {
			h.OnMove(ev)
		}
	case ActionEvent:
		if h, ok := c.(ActionHandler); ok {
			h.OnAction(ev)
		}
	}
	return nil
}
