package logx

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(" warn "))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("loud"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
}

func TestJSONComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	log := Component(NewWithWriter(&buf, "info", "json"), "pool")

	log.Debug().Msg("hidden")
	log.Info().Str("account", "acc1").Msg("session opened")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "pool", entry["component"])
	assert.Equal(t, "acc1", entry["account"])
	assert.Equal(t, "session opened", entry["message"])
}
