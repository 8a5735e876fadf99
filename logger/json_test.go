package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testSink struct {
	mu  sync.Mutex
	buf []byte
}

func (s *testSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = append(s.buf, p...)
	return len(p), nil
}

func (s *testSink) lines(t *testing.T) []map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(string(s.buf)), "\n") {
		if line == "" {
			continue
		}
		var parsed map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &parsed), line)
		out = append(out, parsed)
	}
	return out
}

func TestJSONLogEntryString(t *testing.T) {
	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(JSONLogEntry{Message: "m"}.String()), &parsed))
	assert.Equal(t, "m", parsed["message"])
	assert.Equal(t, "INFO", parsed["severity"])

	entry := JSONLogEntry{Message: "m", Severity: "ERROR", Metadata: map[string]interface{}{"key": 42}}
	require.NoError(t, json.Unmarshal([]byte(entry.String()), &parsed))
	assert.Equal(t, "ERROR", parsed["severity"])
	assert.Equal(t, float64(42), parsed["metadata"].(map[string]interface{})["key"])
}

func TestJSONLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSONLoggerWithWriter(&buf, LevelWarn)
	log.Debug("hidden")
	log.Info("hidden")
	log.Warn("cache %s", "full")
	log.Error("boom")
	assert.False(t, log.IsLevelEnabled(LevelInfo))
	assert.True(t, log.IsLevelEnabled(LevelError))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"severity":"WARNING"`)
	assert.Contains(t, lines[0], `"message":"cache full"`)
	assert.Contains(t, lines[1], `"severity":"ERROR"`)
}

func TestJSONLoggerWithPrefix(t *testing.T) {
	sink := &testSink{}
	log := NewJSONLoggerWithSink(sink, LevelTrace)
	l1 := log.WithPrefix("[plancache]")
	l1.Info("one")
	l1.WithPrefix("store").Info("two")
	l1.WithPrefix("store").WithPrefix("store").Info("three")

	lines := sink.lines(t)
	require.Len(t, lines, 3)
	assert.Equal(t, "plancache", lines[0]["component"])
	assert.Equal(t, "plancache, store", lines[1]["component"])
	assert.Equal(t, "plancache, store", lines[2]["component"])
}

func TestJSONLoggerWith(t *testing.T) {
	sink := &testSink{}
	log := NewJSONLoggerWithSink(sink, LevelTrace)
	log.With(map[string]interface{}{"trace": "abc", "component": "eventing", "table": "orders"}).Info("msg")
	log.Info("plain")

	lines := sink.lines(t)
	require.Len(t, lines, 2)
	assert.Equal(t, "abc", lines[0]["trace"])
	assert.Equal(t, "eventing", lines[0]["component"])
	assert.Equal(t, "orders", lines[0]["metadata"].(map[string]interface{})["table"])
	assert.Nil(t, lines[1]["metadata"])
}

func TestJSONLoggerStack(t *testing.T) {
	sink := &testSink{}
	tl := NewTestLogger()
	log := NewJSONLoggerWithSink(sink, LevelInfo).Stack(tl)
	log.Debug("skipped by json")
	log.Warn("both")
	assert.Len(t, sink.lines(t), 1)
	assert.Len(t, tl.Logs(), 2)
}

func TestJSONLoggerStripsColors(t *testing.T) {
	sink := &testSink{}
	NewJSONLoggerWithSink(sink, LevelInfo).Info("\x1b[31mred\x1b[0m")
	assert.Equal(t, "red", sink.lines(t)[0]["message"])
}

func TestNewByFormat(t *testing.T) {
	_, ok := New("JSON", LevelInfo).(*jsonLogger)
	assert.True(t, ok)
	_, ok = New("console", LevelInfo).(*consoleLogger)
	assert.True(t, ok)
	_, ok = New("", LevelInfo).(*consoleLogger)
	assert.True(t, ok)
}
