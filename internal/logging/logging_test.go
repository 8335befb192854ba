package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		raw  string
		want zerolog.Level
		ok   bool
	}{
		{"debug", zerolog.DebugLevel, true},
		{" WARN ", zerolog.WarnLevel, true},
		{"warning", zerolog.WarnLevel, true},
		{"off", zerolog.Disabled, true},
		{"trace", zerolog.TraceLevel, true},
		{"", zerolog.InfoLevel, false},
		{"loud", zerolog.InfoLevel, false},
	}

	for _, tt := range tests {
		got, ok := ParseLevel(tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
		assert.Equal(t, tt.ok, ok, tt.raw)
	}
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, LevelFor(false, false))
	assert.Equal(t, zerolog.DebugLevel, LevelFor(true, false))
	assert.Equal(t, zerolog.ErrorLevel, LevelFor(true, true))
}

func TestNewJSON(t *testing.T) {
	t.Setenv(EnvLogLevel, "")

	var buf bytes.Buffer
	log := New(&buf, Options{Level: zerolog.InfoLevel, JSON: true})
	log.Debug().Msg("hidden")
	log.Info().Str("id", "MangaDex").Msg("updating")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "updating", line["message"])
	assert.Equal(t, "MangaDex", line["id"])
	assert.Contains(t, line, "time")
}

func TestNewConsoleRespectsEnvLevel(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")

	var buf bytes.Buffer
	log := New(&buf, Options{Level: zerolog.DebugLevel, NoColor: true})
	log.Info().Msg("suppressed")
	assert.Empty(t, buf.String())

	log.Error().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}
