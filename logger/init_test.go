package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetLevelFromEnv(t *testing.T) {
	tests := []struct {
		name          string
		envValue      string
		expectedLevel LogLevel
	}{
		{"trace level", "trace", LevelTrace},
		{"debug level", "debug", LevelDebug},
		{"info level", "INFO", LevelInfo},
		{"warn level", "warn", LevelWarn},
		{"warning alias", "warning", LevelWarn},
		{"error level", "error", LevelError},
		{"none", "off", LevelNone},
		{"unknown defaults to debug", "loud", LevelDebug},
		{"empty defaults to debug", "", LevelDebug},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvLogLevel, tt.envValue)
			assert.Equal(t, tt.expectedLevel, GetLevelFromEnv())
		})
	}
}

func TestParseLevel(t *testing.T) {
	level, ok := ParseLevel(" Error ")
	assert.True(t, ok)
	assert.Equal(t, LevelError, level)
	_, ok = ParseLevel("verbose")
	assert.False(t, ok)
}

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "trace", LevelTrace.String())
	assert.Equal(t, "warn", LevelWarn.String())
	assert.Equal(t, "none", LevelNone.String())
	for _, l := range []LogLevel{LevelTrace, LevelDebug, LevelInfo, LevelWarn, LevelError, LevelNone} {
		parsed, ok := ParseLevel(l.String())
		assert.True(t, ok)
		assert.Equal(t, l, parsed)
	}
}
