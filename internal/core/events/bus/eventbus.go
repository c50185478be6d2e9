// Package bus is an in-process publish/subscribe bus for server lifecycle
// events.
package bus

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zeusync/entisync/internal/core/observability/metrics"
)

// Subscription is a registered handler. Cancel may be called more than once.
type Subscription struct {
	id        string
	eventType string
	cancel    func()
	once      sync.Once
}

func (s *Subscription) ID() string {
	return s.id
}

func (s *Subscription) EventType() string {
	return s.eventType
}

func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
}

// Bus is safe for concurrent use. The empty event type subscribes to every
// event.
type Bus struct {
	mu        sync.RWMutex
	handlers  map[string]map[string]Handler
	observers map[Observer]struct{}
	stats     Stats
}

func New() *Bus {
	return &Bus{
		handlers:  make(map[string]map[string]Handler),
		observers: make(map[Observer]struct{}),
	}
}

func (b *Bus) Subscribe(eventType string, h Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make(map[string]Handler)
	}
	id := uuid.NewString()
	b.handlers[eventType][id] = h
	return &Subscription{
		id:        id,
		eventType: eventType,
		cancel: func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.handlers[eventType], id)
			if len(b.handlers[eventType]) == 0 {
				delete(b.handlers, eventType)
			}
		},
	}
}

// Publish delivers ev to the handlers of its type and to catch-all handlers.
// A zero Time is set to now.
func (b *Bus) Publish(ev Event) error {
	start := time.Now()
	if ev.Time.IsZero() {
		ev.Time = start
	}

	b.mu.RLock()
	var handlers []Handler
	for _, h := range b.handlers[ev.Type] {
		handlers = append(handlers, h)
	}
	if ev.Type != "" {
		for _, h := range b.handlers[""] {
			handlers = append(handlers, h)
		}
	}
	observers := make([]Observer, 0, len(b.observers))
	for obs := range b.observers {
		observers = append(observers, obs)
	}
	b.mu.RUnlock()

	for _, obs := range observers {
		obs.OnPublish(ev)
	}

	var all error
	for _, h := range handlers {
		if err := h(ev); err != nil {
			all = errors.Join(all, err)
		}
	}

	if len(observers) > 0 {
		took := time.Since(start)
		for _, obs := range observers {
			obs.OnDelivered(ev, len(handlers), all, took)
		}
		b.mu.Lock()
		b.stats.Published++
		b.stats.DeliveredHandlers += uint64(len(handlers))
		if all != nil {
			b.stats.Errors++
		}
		var subs uint64
		for _, m := range b.handlers {
			subs += uint64(len(m))
		}
		b.stats.Subscribers = subs
		b.mu.Unlock()
	}
	return all
}

// PublishAsync publishes on its own goroutine. The channel receives the
// joined error and is closed.
func (b *Bus) PublishAsync(ev Event) <-chan error {
	ch := make(chan error, 1)
	go func() {
		ch <- b.Publish(ev)
		close(ch)
	}()
	return ch
}

func (b *Bus) AddObserver(obs Observer) {
	b.mu.Lock()
	b.observers[obs] = struct{}{}
	b.mu.Unlock()
}

func (b *Bus) RemoveObserver(obs Observer) {
	b.mu.Lock()
	delete(b.observers, obs)
	b.mu.Unlock()
}

func (b *Bus) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.stats
}

var _ Observer = MetricsObserver{}

// MetricsObserver counts published events and handler failures per type.
type MetricsObserver struct {
	Recorder metrics.Recorder
}

func (m MetricsObserver) OnPublish(ev Event) {
	m.Recorder.Incr("events", ev.Type)
}

func (m MetricsObserver) OnDelivered(ev Event, _ int, err error, _ time.Duration) {
	if err != nil {
		m.Recorder.Incr("events", ev.Type, "failed")
	}
}
