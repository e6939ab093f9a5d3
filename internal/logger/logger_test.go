package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug", "json")
	log.Info().Str("stage", "harvest").Msg("Starting run")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "harvest", line["stage"])
	assert.Equal(t, "Starting run", line["message"])
	assert.Contains(t, line, "time")
}

func TestNewAutoOnBufferIsJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info", "auto")
	log.Info().Msg("hello")
	assert.True(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}

func TestNewPretty(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info", "pretty")
	log.Info().Msg("hello")
	assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
	assert.Contains(t, buf.String(), "hello")
}

func TestLevelFallback(t *testing.T) {
	New(&bytes.Buffer{}, "nonsense", "json")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
