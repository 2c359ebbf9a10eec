package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSONLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "json", zerolog.WarnLevel)

	log.Info().Msg("hidden")
	log.Warn().Str("component", "recordstore").Msg("shown")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["message"])
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "recordstore", entry["component"])
}

func TestSetupFallsBackToInfo(t *testing.T) {
	previous := Log
	t.Cleanup(func() { Log = previous })

	Setup("verbose", "json")
	assert.Equal(t, zerolog.InfoLevel, Log.GetLevel())

	Setup("debug", "json")
	assert.Equal(t, zerolog.DebugLevel, Log.GetLevel())
}

func TestSetupWriterTargetsDestination(t *testing.T) {
	previous := Log
	t.Cleanup(func() { Log = previous })

	var buf bytes.Buffer
	SetupWriter(&buf, "warn", "json")
	hiddenLog := Component("reportctl")
	hiddenLog.Info().Msg("hidden")
	shownLog := Component("reportctl")
	shownLog.Warn().Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"component":"reportctl"`)
}
