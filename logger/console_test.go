package logger

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConsoleLoggerOutput(t *testing.T) {
	var buf bytes.Buffer
	log := NewConsoleLoggerWithWriter(&buf, LevelInfo)
	log.Debug("hidden")
	log.WithPrefix("[cache]").With(map[string]interface{}{"key": "abc"}).Info("stored %d", 3)

	out := ansiColorStripper.ReplaceAllString(buf.String(), "")
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[INFO ]")
	assert.Contains(t, out, "[cache] stored 3")
	assert.Contains(t, out, `{"key":"abc"}`)
}

func TestConsoleLoggerSink(t *testing.T) {
	var buf bytes.Buffer
	sink := &testSink{}
	log := NewConsoleLoggerWithWriter(&buf, LevelError)
	log.SetSink(sink, LevelDebug)
	log.Debug("to sink only")

	assert.Empty(t, buf.String())
	assert.Contains(t, string(sink.buf), "[DEBUG] to sink only")
	assert.NotContains(t, string(sink.buf), "\x1b[")
}

func TestConsoleLoggerConcurrent(t *testing.T) {
	var buf bytes.Buffer
	log := NewConsoleLoggerWithWriter(&buf, LevelInfo)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			log.With(map[string]interface{}{"n": i}).Info("line")
		}(i)
	}
	wg.Wait()
	assert.Len(t, strings.Split(strings.TrimSpace(buf.String()), "\n"), 20)
}

func TestConsoleLoggerStackForwardsEveryLevel(t *testing.T) {
	var buf bytes.Buffer
	tl := NewTestLogger()
	log := NewConsoleLoggerWithWriter(&buf, LevelWarn).Stack(tl)
	log.Trace("t")
	log.Debug("d")
	log.Info("i")
	log.Warn("w")
	log.Error("e")

	assert.Len(t, tl.Logs(), 5)
	for _, sev := range []string{"TRACE", "DEBUG", "INFO", "WARNING", "ERROR"} {
		assert.Equal(t, 1, tl.Count(sev), sev)
	}
	out := ansiColorStripper.ReplaceAllString(buf.String(), "")
	assert.Equal(t, 2, strings.Count(out, "\n"))
}
