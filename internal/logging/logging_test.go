package logging

import (
	"bytes"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("info", "json", &buf)
	require.NoError(t, err)

	log.Debug().Msg("hidden")
	log.Info().Int("added", 2).Msg("knowledge cache updated")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "knowledge cache updated", line["message"])
	assert.EqualValues(t, 2, line["added"])
	assert.Contains(t, line, "time")
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("debug", "text", &buf)
	require.NoError(t, err)

	log.Debug().Str("key", "k").Msg("loaded")
	assert.Contains(t, buf.String(), "loaded")
	assert.Contains(t, buf.String(), "key=")
}

func TestInvalidSettings(t *testing.T) {
	_, err := New("chatty", "json", &bytes.Buffer{})
	assert.Error(t, err)

	_, err = New("info", "xml", &bytes.Buffer{})
	assert.Error(t, err)
}
