package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// JSONLogEntry is one line of log.format=json output.
type JSONLogEntry struct {
	Timestamp time.Time              `json:"timestamp,omitempty"`
	Message   string                 `json:"message"`
	Severity  string                 `json:"severity,omitempty"`
	Trace     string                 `json:"trace,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Component string                 `json:"component,omitempty"`
}

// String renders the entry as a JSON object.
func (e JSONLogEntry) String() string {
	if e.Severity == "" {
		e.Severity = "INFO"
	}
	out, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf(`{"message":%q,"severity":"ERROR"}`, "json.Marshal: "+err.Error())
	}
	return string(out)
}

var severities = map[LogLevel]string{
	LevelTrace: "TRACE",
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARNING",
	LevelError: "ERROR",
}

type jsonLogger struct {
	metadata     map[string]interface{}
	traceID      string
	component    string
	out          io.Writer
	mu           *sync.Mutex
	sink         Sink
	sinkLogLevel LogLevel
	ts           *time.Time // for unit testing
	logLevel     LogLevel
	child        Logger
}

var _ SinkLogger = (*jsonLogger)(nil)

func (c *jsonLogger) clone() *jsonLogger {
	return &jsonLogger{
		metadata:     copyMetadata(c.metadata, nil),
		traceID:      c.traceID,
		component:    c.component,
		out:          c.out,
		mu:           c.mu,
		sink:         c.sink,
		sinkLogLevel: c.sinkLogLevel,
		ts:           c.ts,
		logLevel:     c.logLevel,
		child:        c.child,
	}
}

func (c *jsonLogger) WithContext(ctx context.Context) Logger {
	clone := c.clone()
	if clone.child != nil {
		clone.child = clone.child.WithContext(ctx)
	}
	return clone
}

func (c *jsonLogger) SetSink(sink Sink, level LogLevel) {
	c.sink = sink
	c.sinkLogLevel = level
	if child, ok := c.child.(SinkLogger); ok {
		child.SetSink(sink, level)
	}
}

// WithPrefix records a "[plancache]" style tag as the entry component.
func (c *jsonLogger) WithPrefix(prefix string) Logger {
	clone := c.clone()
	prefix = strings.Trim(prefix, "[]")
	switch {
	case clone.component == "":
		clone.component = prefix
	case !strings.Contains(clone.component, prefix):
		clone.component += ", " + prefix
	}
	if clone.child != nil {
		clone.child = clone.child.WithPrefix(prefix)
	}
	return clone
}

// With merges fields into the metadata. The "trace" and "component" keys are
// promoted to their own entry fields.
func (c *jsonLogger) With(fields map[string]interface{}) Logger {
	clone := c.clone()
	clone.metadata = copyMetadata(c.metadata, fields)
	if trace, ok := clone.metadata["trace"].(string); ok {
		clone.traceID = trace
		delete(clone.metadata, "trace")
	}
	if comp, ok := clone.metadata["component"].(string); ok {
		clone.component = comp
		delete(clone.metadata, "component")
	}
	if clone.child != nil {
		clone.child = clone.child.With(fields)
	}
	return clone
}

func (c *jsonLogger) IsLevelEnabled(level LogLevel) bool {
	return level >= c.logLevel || (c.sink != nil && level >= c.sinkLogLevel)
}

func (c *jsonLogger) log(level LogLevel, msg string, args ...interface{}) {
	if !c.IsLevelEnabled(level) {
		return
	}
	text := msg
	if len(args) > 0 {
		text = fmt.Sprintf(msg, args...)
	}
	entry := JSONLogEntry{
		Severity:  severities[level],
		Message:   ansiColorStripper.ReplaceAllString(text, ""),
		Trace:     c.traceID,
		Metadata:  c.metadata,
		Component: c.component,
		Timestamp: time.Now(),
	}
	if c.ts != nil {
		entry.Timestamp = *c.ts
	}
	line := entry.String() + "\n"
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.out != nil && level >= c.logLevel {
		io.WriteString(c.out, line)
	}
	if c.sink != nil && level >= c.sinkLogLevel {
		c.sink.Write([]byte(line))
	}
}

func (c *jsonLogger) emit(level LogLevel, msg string, args []interface{}) {
	c.log(level, msg, args...)
	forward(c.child, level, msg, args)
}

func (c *jsonLogger) Trace(msg string, args ...interface{}) { c.emit(LevelTrace, msg, args) }
func (c *jsonLogger) Debug(msg string, args ...interface{}) { c.emit(LevelDebug, msg, args) }
func (c *jsonLogger) Info(msg string, args ...interface{})  { c.emit(LevelInfo, msg, args) }
func (c *jsonLogger) Warn(msg string, args ...interface{})  { c.emit(LevelWarn, msg, args) }
func (c *jsonLogger) Error(msg string, args ...interface{}) { c.emit(LevelError, msg, args) }

func (c *jsonLogger) Fatal(msg string, args ...interface{}) {
	c.emit(LevelError, msg, args)
	os.Exit(1)
}

func (c *jsonLogger) Stack(next Logger) Logger {
	clone := c.clone()
	clone.child = next
	return clone
}

// NewJSONLogger returns a JSON Logger on stderr.
func NewJSONLogger(levels ...LogLevel) SinkLogger {
	return NewJSONLoggerWithWriter(os.Stderr, levels...)
}

// NewJSONLoggerWithWriter returns a JSON Logger writing to w.
func NewJSONLoggerWithWriter(w io.Writer, levels ...LogLevel) SinkLogger {
	level := GetLevelFromEnv()
	if len(levels) > 0 {
		level = levels[0]
	}
	return &jsonLogger{out: w, mu: &sync.Mutex{}, logLevel: level, sinkLogLevel: LevelNone}
}

// NewJSONLoggerWithSink returns a JSON Logger whose only output is sink.
func NewJSONLoggerWithSink(sink Sink, level LogLevel) SinkLogger {
	return &jsonLogger{mu: &sync.Mutex{}, sink: sink, sinkLogLevel: level, logLevel: LevelNone}
}

// New returns a console or JSON logger depending on format ("console" or
// "json") at the given level.
func New(format string, level LogLevel) Logger {
	if strings.EqualFold(format, "json") {
		return NewJSONLogger(level)
	}
	return NewConsoleLogger(level)
}
