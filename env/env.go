// Package env resolves command settings from flags, dotenv files and the
// process environment.
package env

import (
	"bufio"
	"bytes"
	"os"
	"strings"

	"github.com/agentuity/go-plancache/logger"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

// File holds the variables read from a dotenv file.
type File map[string]string

// ParseFile reads a dotenv file. A missing file yields an empty File.
func ParseFile(filename string) (File, error) {
	buf, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return File{}, nil
		}
		return nil, errors.Wrapf(err, "env: read %s", filename)
	}
	return Parse(buf)
}

// Parse reads KEY=VALUE lines. Blank lines, comments and a leading "export"
// are skipped; matching single or double quotes around a value are removed.
func Parse(buf []byte) (File, error) {
	out := File{}
	scanner := bufio.NewScanner(bytes.NewReader(buf))
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		text = strings.TrimPrefix(text, "export ")
		key, val, ok := strings.Cut(text, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errors.Newf("env: line %d: expected KEY=VALUE", line)
		}
		out[key] = dequote(strings.TrimSpace(val))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "env: scan")
	}
	return out, nil
}

func dequote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// Lookup returns a lookup function that prefers the process environment and
// falls back to f.
func (f File) Lookup() func(string) (string, bool) {
	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := f[key]
		return v, ok
	}
}

// FlagOrEnv will try and get a flag from the cobra.Command and if not found, look it up in the environment
// and fallback to defaultValue if non found
func FlagOrEnv(cmd *cobra.Command, flagName string, envName string, defaultValue string) string {
	flagValue, _ := cmd.Flags().GetString(flagName)
	if flagValue != "" {
		return flagValue
	}
	if val, ok := os.LookupEnv(envName); ok {
		return val
	}
	return defaultValue
}

// LogLevel reads the log-level flag, then PLANCACHE_LOG_LEVEL, and falls
// back to fallback when neither parses.
func LogLevel(cmd *cobra.Command, fallback logger.LogLevel) logger.LogLevel {
	level, ok := logger.ParseLevel(FlagOrEnv(cmd, "log-level", logger.EnvLogLevel, ""))
	if !ok {
		return fallback
	}
	return level
}

// NewLogger returns a logger using the log-level and log-format flags.
func NewLogger(cmd *cobra.Command, fallback logger.LogLevel) logger.Logger {
	format, _ := cmd.Flags().GetString("log-format")
	return logger.New(format, LogLevel(cmd, fallback))
}
