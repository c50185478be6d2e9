package bus

import (
	"time"

	"github.com/zeusync/entisync/internal/core/ecs"
)

// Event types published by the server.
const (
	SessionOpened   = "session.opened"
	SessionResumed  = "session.resumed"
	SessionClosed   = "session.closed"
	EntityCreated   = "entity.created"
	EntityDestroyed = "entity.destroyed"
)

// Event is a lifecycle notification. Fields that do not apply to the event
// type are zero.
type Event struct {
	Type      string
	UserID    string
	EntityID  ecs.EntityID
	Blueprint string
	Time      time.Time
}

// Handler is invoked synchronously by Publish. Returned errors are joined
// and handed back to the publisher.
type Handler func(Event) error

// Observer is notified around every delivery. Observers must return quickly.
type Observer interface {
	OnPublish(ev Event)
	OnDelivered(ev Event, handlers int, err error, took time.Duration)
}

// Stats are counted only while at least one observer is registered.
type Stats struct {
	Published         uint64
	DeliveredHandlers uint64
	Errors            uint64
	Subscribers       uint64
}
