package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounters(t *testing.T) {
	c, err := New("entisync", time.Minute, 5*time.Minute)
	require.NoError(t, err)

	c.Incr("messages", "in")
	c.Incr("messages", "in")
	c.Incr("messages", "dropped")

	assert.Equal(t, 2, c.Counter("messages", "in"))
	assert.Equal(t, 1, c.Counter("messages", "dropped"))
	assert.Equal(t, 0, c.Counter("messages", "relayed"))
}

func TestCollectorGauge(t *testing.T) {
	c, err := New("entisync", time.Minute, 5*time.Minute)
	require.NoError(t, err)

	_, ok := c.Gauge("sessions")
	assert.False(t, ok)

	c.SetGauge(3, "sessions")
	v, ok := c.Gauge("sessions")
	require.True(t, ok)
	assert.Equal(t, float32(3), v)
}
