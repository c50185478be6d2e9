package bus

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/entisync/internal/core/observability/metrics"
)

type testObserver struct {
	publishCount   int
	deliveredCount int
	lastErr        error
}

func (o *testObserver) OnPublish(Event) {
	o.publishCount++
}

func (o *testObserver) OnDelivered(_ Event, handlers int, err error, _ time.Duration) {
	o.deliveredCount += handlers
	o.lastErr = err
}

func TestBasicPublishSubscribe(t *testing.T) {
	b := New()
	var got []Event
	b.Subscribe(EntityCreated, func(ev Event) error {
		got = append(got, ev)
		return nil
	})

	require.NoError(t, b.Publish(Event{Type: EntityCreated, EntityID: 3, Blueprint: "Slime"}))
	require.NoError(t, b.Publish(Event{Type: EntityDestroyed, EntityID: 3}))

	require.Len(t, got, 1)
	assert.EqualValues(t, 3, got[0].EntityID)
	assert.False(t, got[0].Time.IsZero())
}

func TestCatchAllAndCancel(t *testing.T) {
	b := New()
	var all, closed int
	sub := b.Subscribe("", func(Event) error { all++; return nil })
	b.Subscribe(SessionClosed, func(Event) error { closed++; return nil })

	_ = b.Publish(Event{Type: SessionOpened})
	_ = b.Publish(Event{Type: SessionClosed})
	assert.Equal(t, 2, all)
	assert.Equal(t, 1, closed)

	sub.Cancel()
	sub.Cancel()
	_ = b.Publish(Event{Type: SessionOpened})
	assert.Equal(t, 2, all)
}

func TestPublishJoinsErrors(t *testing.T) {
	b := New()
	first, second := errors.New("first"), errors.New("second")
	b.Subscribe(SessionOpened, func(Event) error { return first })
	b.Subscribe(SessionOpened, func(Event) error { return second })

	err := b.Publish(Event{Type: SessionOpened})
	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)
}

func TestPublishAsyncReturnsErrorChannel(t *testing.T) {
	b := New()
	handlerErr := errors.New("fail")
	b.Subscribe("x", func(Event) error { return handlerErr })

	select {
	case err := <-b.PublishAsync(Event{Type: "x"}):
		assert.ErrorIs(t, err, handlerErr)
	case <-time.After(time.Second):
		t.Fatal("async publish did not complete")
	}
}

func TestObserverStatsOptional(t *testing.T) {
	b := New()
	b.Subscribe("e", func(Event) error { return nil })
	_ = b.Publish(Event{Type: "e"})
	assert.Zero(t, b.Stats().Published, "stats stay zero without observers")

	obs := &testObserver{}
	b.AddObserver(obs)
	_ = b.Publish(Event{Type: "e"})
	stats := b.Stats()
	assert.EqualValues(t, 1, stats.Published)
	assert.EqualValues(t, 1, stats.DeliveredHandlers)
	assert.EqualValues(t, 1, stats.Subscribers)
	assert.Equal(t, 1, obs.publishCount)
	assert.Equal(t, 1, obs.deliveredCount)

	b.RemoveObserver(obs)
	_ = b.Publish(Event{Type: "e"})
	assert.Equal(t, 1, obs.publishCount)
}

func TestMetricsObserver(t *testing.T) {
	sink, err := metrics.New("test", time.Minute, time.Minute)
	require.NoError(t, err)
	b := New()
	b.AddObserver(MetricsObserver{Recorder: sink})
	b.Subscribe(EntityDestroyed, func(Event) error { return errors.New("boom") })

	_ = b.Publish(Event{Type: EntityCreated})
	_ = b.Publish(Event{Type: EntityDestroyed})

	assert.Equal(t, 1, sink.Counter("events", EntityCreated))
	assert.Equal(t, 1, sink.Counter("events", EntityDestroyed, "failed"))
}
