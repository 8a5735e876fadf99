package main

import (
	"context"
	"os"
	"strings"

	"github.com/agentuity/go-plancache/config"
	"github.com/agentuity/go-plancache/eventing"
	"github.com/agentuity/go-plancache/logger"
	"github.com/agentuity/go-plancache/plan"
	"github.com/agentuity/go-plancache/plancache"
	"github.com/agentuity/go-plancache/tui"
	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func newInvalidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invalidate <table>...",
		Short: "Publish schema change notifications for tables",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runInvalidate,
	}
	cmd.Flags().String("schema-version", "", "schema version to announce")
	return cmd
}

func newWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run a plan cache that follows schema change notifications",
		Long: `Run a plan cache that follows schema change notifications.

The cache is warmed from --file and every received notification invalidates
the plans that depend on the announced table. The command runs until it is
interrupted.`,
		RunE: runWatch,
	}
	cmd.Flags().StringP("file", "f", "", "file with one statement per line to warm the cache")
	return cmd
}

// connectEvents opens the eventing client named by the events section.
func connectEvents(ctx context.Context, cfg *config.Config, log logger.Logger) (eventing.Client, error) {
	if !cfg.Events.Enabled {
		return nil, errors.Wrapf(config.ErrInvalidConfig, "events are not enabled, set events.url or %s", config.EnvEventsURL)
	}
	opts, err := redis.ParseURL(cfg.Events.URL)
	if err != nil {
		return nil, errors.Wrap(err, "parse events url")
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, errors.Wrapf(err, "connect to events at %s", config.MaskURL(cfg.Events.URL))
	}
	client, err := eventing.NewRedisClient(ctx, log, rdb)
	if err != nil {
		rdb.Close()
		return nil, err
	}
	log.Debug("connected to events at %s", config.MaskURL(cfg.Events.URL))
	return &ownedClient{Client: client, rdb: rdb}, nil
}

// ownedClient closes the redis connection along with the eventing client.
type ownedClient struct {
	eventing.Client
	rdb *redis.Client
}

func (c *ownedClient) Close() error {
	err := c.Client.Close()
	if cerr := c.rdb.Close(); err == nil {
		err = cerr
	}
	return err
}

func channel(cfg *config.Config) string {
	if cfg.Events.Channel != "" {
		return cfg.Events.Channel
	}
	return eventing.DefaultSchemaChannel
}

func runInvalidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := cfg.Logger()
	client, err := connectEvents(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer client.Close()

	version, _ := cmd.Flags().GetString("schema-version")
	origin := eventing.NewOrigin()
	for _, table := range args {
		change := eventing.SchemaChange{Table: strings.TrimSpace(table), Version: version, Origin: origin}
		if err := eventing.PublishSchemaChange(cmd.Context(), client, channel(cfg), change); err != nil {
			return errors.Wrapf(err, "publish schema change for %s", table)
		}
		tui.ShowSuccess(cmd.OutOrStdout(), "published schema change for %s on %s", change.Table, channel(cfg))
	}
	return nil
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := cfg.Logger()
	ctx := cmd.Context()

	client, err := connectEvents(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer client.Close()

	store, err := cfg.OpenStore(ctx, log)
	if err != nil {
		return err
	}
	m, err := plancache.New(plan.NewMockGenerator(0), cfg.ManagerOptions(log, store)...)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return err
	}
	defer m.Close()

	if fn, _ := cmd.Flags().GetString("file"); fn != "" {
		f, err := os.Open(fn)
		if err != nil {
			return errors.Wrapf(err, "open %s", fn)
		}
		statements, err := readStatements(f)
		f.Close()
		if err != nil {
			return err
		}
		for _, sql := range statements {
			if _, err := m.GetExecutionPlan(ctx, sql); err != nil {
				log.Warn("skipping %q: %s", sql, err)
			}
		}
		log.Info("warmed cache with %d plans", m.CacheSize())
	}

	sub, err := followSchemaChanges(ctx, client, channel(cfg), m, log)
	if err != nil {
		return err
	}
	defer sub.Close()
	tui.ShowSuccess(cmd.OutOrStdout(), "watching %s with %d cached plans", channel(cfg), m.CacheSize())

	<-ctx.Done()
	stats := m.Statistics()
	log.Info("stopping: %d plans cached, %d invalidations, schema version %s", m.CacheSize(), stats.Invalidations, m.SchemaVersion())
	return nil
}

// followSchemaChanges applies every received schema change to m.
func followSchemaChanges(ctx context.Context, client eventing.Client, ch string, m *plancache.Manager, log logger.Logger) (eventing.Subscriber, error) {
	return eventing.SubscribeSchemaChanges(ctx, client, ch, func(ctx context.Context, change eventing.SchemaChange) {
		before := m.CacheSize()
		if err := m.OnSchemaChange(ctx, change.Table); err != nil {
			log.Error("schema change for %s from %s: %s", change.Table, change.Origin, err)
			return
		}
		log.Info("schema change for %s from %s removed %d plans", change.Table, change.Origin, before-m.CacheSize())
	})
}
