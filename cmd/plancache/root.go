package main

import (
	"bufio"
	"io"
	"strings"

	"github.com/agentuity/go-plancache/config"
	"github.com/agentuity/go-plancache/env"
	"github.com/agentuity/go-plancache/logger"
	"github.com/agentuity/go-plancache/telemetry"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "plancache",
		Short:        "Query plan cache tooling",
		Version:      version,
		SilenceUsage: true,
	}
	flags := root.PersistentFlags()
	flags.StringP("config", "c", "", "path to a YAML configuration file")
	flags.String("env-file", ".env", "dotenv file with PLANCACHE_* overrides")
	flags.String("log-level", "", "log level (trace, debug, info, warn, error, none)")
	flags.String("log-format", "", "log format (console or json)")
	flags.String("otlp-url", "", "OTLP collector URL for trace export (env PLANCACHE_OTLP_URL)")
	flags.String("otlp-token", "", "bearer token for the OTLP collector (env PLANCACHE_OTLP_TOKEN)")

	var shutdown telemetry.ShutdownFunc
	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		otlpURL := env.FlagOrEnv(cmd, "otlp-url", "PLANCACHE_OTLP_URL", "")
		if otlpURL == "" {
			return nil
		}
		var err error
		shutdown, err = telemetry.New(cmd.Context(), telemetry.Config{
			URL:         otlpURL,
			Token:       env.FlagOrEnv(cmd, "otlp-token", "PLANCACHE_OTLP_TOKEN", ""),
			ServiceName: "plancache",
		}, env.NewLogger(cmd, logger.LevelWarn))
		return err
	}
	root.PersistentPostRun = func(*cobra.Command, []string) {
		if shutdown != nil {
			shutdown()
		}
	}

	root.AddCommand(
		newNormalizeCommand(),
		newReplayCommand(),
		newInvalidateCommand(),
		newWatchCommand(),
	)
	return root
}

// loadConfig resolves the configuration file, the dotenv file and the
// process environment, in increasing order of precedence. Log flags win
// over all of them.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	vars := env.File{}
	if envFile != "" {
		var err error
		if vars, err = env.ParseFile(envFile); err != nil {
			return nil, err
		}
	}
	path := env.FlagOrEnv(cmd, "config", "PLANCACHE_CONFIG", "")
	cfg, err := config.LoadWith(path, vars.Lookup())
	if err != nil {
		return nil, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		if _, ok := logger.ParseLevel(lvl); !ok {
			return nil, errors.Wrapf(config.ErrInvalidConfig, "unknown log level %q", lvl)
		}
		cfg.Log.Level = lvl
	}
	if format, _ := cmd.Flags().GetString("log-format"); format != "" {
		cfg.Log.Format = format
	}
	return cfg, cfg.Validate()
}

// readStatements returns the non-empty lines of r, skipping "--" comments.
func readStatements(r io.Reader) ([]string, error) {
	var out []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read statements")
	}
	return out, nil
}
