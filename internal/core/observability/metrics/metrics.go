package metrics

import (
	"time"

	gometrics "github.com/armon/go-metrics"
)

// Recorder receives protocol counters. Implementations must not block.
type Recorder interface {
	Incr(key ...string)
	SetGauge(value float32, key ...string)
}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)

// Collector records into an in-memory go-metrics sink so counters can be
// inspected at runtime (and in tests) without an external backend.
type Collector struct {
	metrics *gometrics.Metrics
	sink    *gometrics.InmemSink
	service string
}

// New creates a collector whose keys are prefixed with service.
func New(service string, interval, retain time.Duration) (*Collector, error) {
	sink := gometrics.NewInmemSink(interval, retain)

	conf := gometrics.DefaultConfig(service)
	conf.EnableHostname = false
	conf.EnableRuntimeMetrics = false

	m, err := gometrics.New(conf, sink)
	if err != nil {
		return nil, err
	}

	return &Collector{metrics: m, sink: sink, service: service}, nil
}

func (c *Collector) Incr(key ...string) {
	c.metrics.IncrCounter(key, 1)
}

func (c *Collector) SetGauge(value float32, key ...string) {
	c.metrics.SetGauge(key, value)
}

// Counter sums a counter across all retained intervals.
func (c *Collector) Counter(key ...string) int {
	name := c.flatten(key)
	total := 0
	for _, interval := range c.sink.Data() {
		interval.RLock()
		if sample, ok := interval.Counters[name]; ok && sample.AggregateSample != nil {
			total += sample.Count
		}
		interval.RUnlock()
	}
	return total
}

// Gauge returns the most recent value of a gauge.
func (c *Collector) Gauge(key ...string) (float32, bool) {
	name := c.flatten(key)
	data := c.sink.Data()
	for i := len(data) - 1; i >= 0; i-- {
		data[i].RLock()
		g, ok := data[i].Gauges[name]
		data[i].RUnlock()
		if ok {
			return g.Value, true
		}
	}
	return 0, false
}

func (c *Collector) flatten(key []string) string {
	name := c.service
	for _, k := range key {
		name += "." + k
	}
	return name
}

// Nop drops everything.
type Nop struct{}

func (Nop) Incr(...string)              {}
func (Nop) SetGauge(float32, ...string) {}
