package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, LevelWarn, lvl)

	lvl, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, LevelInfo, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestLoggerFieldsAndLevel(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := FromZap(zap.New(core), LevelDebug)

	logger.With(String("component", "world")).Warn("entity not found",
		Uint64("entity_id", 3),
		Bool("dropped", true))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "entity not found", entry.Message)
	ctx := entry.ContextMap()
	assert.Equal(t, "world", ctx["component"])
	assert.Equal(t, uint64(3), ctx["entity_id"])
	assert.Equal(t, true, ctx["dropped"])

	logger.SetLevel(LevelError)
	assert.Equal(t, LevelError, logger.GetLevel())
	logger.Log(LevelInfo, "suppressed")
	logger.Warn("suppressed too")
	assert.Equal(t, 1, logs.Len())

	logger.Error("kept", Error(assert.AnError))
	require.Equal(t, 2, logs.Len())
	assert.Equal(t, assert.AnError.Error(), logs.All()[1].ContextMap()["error"])
}
