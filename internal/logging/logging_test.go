package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1broseidon/xwbridge/internal/config"
)

func TestNewWithWriter_JSON(t *testing.T) {
	t.Setenv(LevelEnv, "")
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, config.LoggingConfig{Level: "info", Format: "json"})

	logger.Info("surface mapped", "surface", 3)
	logger.Debug("hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "surface mapped", entry["msg"])
	assert.EqualValues(t, 3, entry["surface"])
}

func TestNewWithWriter_Text(t *testing.T) {
	t.Setenv(LevelEnv, "")
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, config.LoggingConfig{Level: "warn", Format: "text"})

	logger.Info("dropped")
	logger.Warn("kept", "xwm", 1)

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "kept")
	assert.Contains(t, out, "xwm=1")
}

func TestNewWithWriter_EnvOverridesLevel(t *testing.T) {
	t.Setenv(LevelEnv, "debug")
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, config.LoggingConfig{Level: "error", Format: "text"})

	logger.Debug("access denied")
	assert.Contains(t, buf.String(), "access denied")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]log.Level{
		"debug":   log.DebugLevel,
		"INFO":    log.InfoLevel,
		"warning": log.WarnLevel,
		"warn":    log.WarnLevel,
		"error":   log.ErrorLevel,
		"bogus":   log.InfoLevel,
		"":        log.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}
