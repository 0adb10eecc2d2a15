package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSONCarriesService(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "register-service", slog.LevelInfo, FormatJSON)

	l.Debug("hidden")
	l.Info("Session created", "session_id", "abc")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "register-service", record["service"])
	assert.Equal(t, "Session created", record["msg"])
	assert.Equal(t, "abc", record["session_id"])
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "sms-service", slog.LevelDebug, FormatText)
	l.Debug("tick")
	assert.Contains(t, buf.String(), "service=sms-service")
}

func TestEnvParsing(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARNING", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Setenv("LOG_LEVEL", tt.level)
		assert.Equal(t, tt.want, getLogLevel(), tt.level)
	}

	t.Setenv("LOG_FORMAT", "TEXT")
	assert.Equal(t, FormatText, getLogFormat())
	t.Setenv("LOG_FORMAT", "")
	assert.Equal(t, FormatJSON, getLogFormat())
}
