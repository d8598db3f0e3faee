package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_LevelParsing(t *testing.T) {
	tests := []struct {
		name  string
		level string
		want  zerolog.Level
	}{
		{name: "debug", level: "debug", want: zerolog.DebugLevel},
		{name: "upper case", level: "WARN", want: zerolog.WarnLevel},
		{name: "empty falls back to info", level: "", want: zerolog.InfoLevel},
		{name: "garbage falls back to info", level: "loud", want: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(&bytes.Buffer{}, tt.level, "json")
			assert.Equal(t, tt.want, logger.GetLevel())
		})
	}
}

func TestSetGlobalLogger(t *testing.T) {
	original := Logger
	defer SetGlobalLogger(original)

	var buf bytes.Buffer
	SetGlobalLogger(New(&buf, "debug", "json"))

	Debug().Str("schema", "NewtonSceneAPI").Msg("registered schema")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "registered schema", entry["message"])
	assert.Equal(t, "NewtonSceneAPI", entry["schema"])
	assert.Equal(t, "debug", entry["level"])
}
