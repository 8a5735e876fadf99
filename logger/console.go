package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

const isWindows = runtime.GOOS == "windows"

var noColor = os.Getenv("TERM") == "dumb" || os.Getenv("NO_COLOR") != "" ||
	(!isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()))

func color(val string) string {
	if isWindows || noColor {
		return ""
	}
	return val
}

const (
	Reset       = "\033[0m"
	Red         = "\033[31m"
	Green       = "\033[32m"
	Magenta     = "\033[35m"
	BlueBold    = "\033[34;1m"
	MagentaBold = "\033[35;1m"
	RedBold     = "\033[31;1m"
	YellowBold  = "\033[33;1m"
	WhiteBold   = "\033[37;1m"
	CyanBold    = "\033[36;1m"
	Gray        = "\033[1;90m"
	Purple      = "\u001b[38;5;200m"
)

type levelStyle struct {
	name         string
	levelColor   string
	messageColor string
}

var consoleStyles = map[LogLevel]levelStyle{
	LevelTrace: {"TRACE", CyanBold, Gray},
	LevelDebug: {"DEBUG", BlueBold, Green},
	LevelInfo:  {"INFO", YellowBold, WhiteBold},
	LevelWarn:  {"WARN", MagentaBold, Magenta},
	LevelError: {"ERROR", RedBold, Red},
}

// consoleLogger is the default for the CLI and for a Manager built without
// a logger. The mutex is shared by clones.
type consoleLogger struct {
	prefixes     []string
	metadata     map[string]interface{}
	out          io.Writer
	mu           *sync.Mutex
	sink         Sink
	logLevel     LogLevel
	sinkLogLevel LogLevel
	child        Logger
}

var _ SinkLogger = (*consoleLogger)(nil)

func (c *consoleLogger) clone() *consoleLogger {
	return &consoleLogger{
		prefixes:     slices.Clone(c.prefixes),
		metadata:     copyMetadata(c.metadata, nil),
		out:          c.out,
		mu:           c.mu,
		sink:         c.sink,
		logLevel:     c.logLevel,
		sinkLogLevel: c.sinkLogLevel,
		child:        c.child,
	}
}

func (c *consoleLogger) WithContext(ctx context.Context) Logger {
	clone := c.clone()
	if clone.child != nil {
		clone.child = clone.child.WithContext(ctx)
	}
	return clone
}

// WithPrefix adds a tag such as "[plancache]" shown before every message.
func (c *consoleLogger) WithPrefix(prefix string) Logger {
	l := c.clone()
	if !slices.Contains(l.prefixes, prefix) {
		l.prefixes = append(l.prefixes, prefix)
	}
	if l.child != nil {
		l.child = l.child.WithPrefix(prefix)
	}
	return l
}

func (c *consoleLogger) With(metadata map[string]interface{}) Logger {
	clone := c.clone()
	clone.metadata = copyMetadata(c.metadata, metadata)
	if clone.child != nil {
		clone.child = clone.child.With(metadata)
	}
	return clone
}

func (c *consoleLogger) SetSink(sink Sink, level LogLevel) {
	c.sink = sink
	c.sinkLogLevel = level
	if child, ok := c.child.(SinkLogger); ok {
		child.SetSink(sink, level)
	}
}

func (c *consoleLogger) IsLevelEnabled(level LogLevel) bool {
	return level >= c.logLevel || (c.sink != nil && level >= c.sinkLogLevel)
}

func (c *consoleLogger) log(level LogLevel, msg string, args ...interface{}) {
	if !c.IsLevelEnabled(level) {
		return
	}
	style := consoleStyles[level]
	text := msg
	if len(args) > 0 {
		text = fmt.Sprintf(msg, args...)
	}
	var prefix, suffix string
	if len(c.prefixes) > 0 {
		prefix = color(Purple) + strings.Join(c.prefixes, " ") + color(Reset) + " "
	}
	if len(c.metadata) > 0 {
		buf, _ := json.Marshal(c.metadata)
		suffix = " " + color(Gray) + string(buf) + color(Reset)
	}
	levelText := color(style.levelColor) + fmt.Sprintf("[%-5s]", style.name) + color(Reset)
	line := fmt.Sprintf("%s %s%s%s", levelText, prefix, color(style.messageColor)+text+color(Reset), suffix)

	c.mu.Lock()
	defer c.mu.Unlock()
	if level >= c.logLevel {
		fmt.Fprintf(c.out, "%s %s\n", time.Now().Format("15:04:05.000"), line)
	}
	if c.sink != nil && level >= c.sinkLogLevel {
		ts := time.Now().Format(time.RFC3339Nano)
		c.sink.Write([]byte(ts + " " + ansiColorStripper.ReplaceAllString(line, "") + "\n"))
	}
}

func (c *consoleLogger) emit(level LogLevel, msg string, args []interface{}) {
	c.log(level, msg, args...)
	forward(c.child, level, msg, args)
}

func (c *consoleLogger) Trace(msg string, args ...interface{}) { c.emit(LevelTrace, msg, args) }
func (c *consoleLogger) Debug(msg string, args ...interface{}) { c.emit(LevelDebug, msg, args) }
func (c *consoleLogger) Info(msg string, args ...interface{})  { c.emit(LevelInfo, msg, args) }
func (c *consoleLogger) Warn(msg string, args ...interface{})  { c.emit(LevelWarn, msg, args) }
func (c *consoleLogger) Error(msg string, args ...interface{}) { c.emit(LevelError, msg, args) }

func (c *consoleLogger) Fatal(msg string, args ...interface{}) {
	c.emit(LevelError, msg, args)
	os.Exit(1)
}

func (c *consoleLogger) Stack(next Logger) Logger {
	clone := c.clone()
	clone.child = next
	return clone
}

// NewConsoleLogger returns a console Logger on stderr.
func NewConsoleLogger(levels ...LogLevel) SinkLogger {
	return NewConsoleLoggerWithWriter(os.Stderr, levels...)
}

// NewConsoleLoggerWithWriter is NewConsoleLogger writing to w. Without a
// level argument PLANCACHE_LOG_LEVEL decides.
func NewConsoleLoggerWithWriter(w io.Writer, levels ...LogLevel) SinkLogger {
	level := GetLevelFromEnv()
	if len(levels) > 0 {
		level = levels[0]
	}
	return &consoleLogger{
		out:          w,
		mu:           &sync.Mutex{},
		logLevel:     level,
		sinkLogLevel: LevelNone,
	}
}
