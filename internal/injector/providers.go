// Package injector wires the server process with google/wire.
package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/entisync/internal/core/events/bus"
	"github.com/zeusync/entisync/internal/core/observability/log"
	"github.com/zeusync/entisync/internal/core/observability/metrics"
	"github.com/zeusync/entisync/internal/server"
)

// MetricsService prefixes every server metric key.
const MetricsService = "entisync"

var ServerSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideEvents,
	ProvideServer,
	wire.Bind(new(log.Log), new(*log.Logger)),
	wire.Bind(new(metrics.Recorder), new(*metrics.Collector)),
)

func ProvideLogger(config server.Config) *log.Logger {
	return log.New(config.LogLevel)
}

// ProvideMetrics keeps six aggregation windows in memory.
func ProvideMetrics(config server.Config) (*metrics.Collector, error) {
	return metrics.New(MetricsService, config.MetricsInterval, 6*config.MetricsInterval)
}

// ProvideEvents counts lifecycle events and logs them at debug level.
func ProvideEvents(logger log.Log, recorder metrics.Recorder) *bus.Bus {
	events := bus.New()
	events.AddObserver(bus.MetricsObserver{Recorder: recorder})
	events.Subscribe("", func(ev bus.Event) error {
		logger.Debug("Lifecycle event",
			log.String("event", ev.Type),
			log.String("user_id", ev.UserID),
			log.Uint64("entity_id", uint64(ev.EntityID)))
		return nil
	})
	return events
}

func ProvideServer(config server.Config, logger log.Log, recorder metrics.Recorder, events *bus.Bus) (*server.Server, error) {
	return server.New(config, logger, server.WithMetrics(recorder), server.WithEvents(events))
}
