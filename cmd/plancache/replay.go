package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/agentuity/go-plancache/config"
	"github.com/agentuity/go-plancache/plan"
	"github.com/agentuity/go-plancache/plancache"
	"github.com/agentuity/go-plancache/tui"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newReplayCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a SQL workload through the plan cache and report statistics",
		RunE:  runReplay,
	}
	flags := cmd.Flags()
	flags.StringP("file", "f", "", "file with one statement per line (stdin when empty)")
	flags.IntP("workers", "w", 4, "number of concurrent workers")
	flags.IntP("repeat", "r", 1, "number of passes over the workload")
	flags.Duration("latency", 0, "simulated plan generation latency")
	flags.StringSlice("invalidate", nil, "tables to invalidate after the first pass")
	flags.Int("top", 10, "number of cached entries to list")
	return cmd
}

type replayResult struct {
	requests  int64
	failures  int64
	bySource  map[plancache.Source]*atomic.Int64
	elapsed   time.Duration
	generator *plan.MockGenerator
}

func runReplay(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := cfg.Logger()

	var in io.Reader = cmd.InOrStdin()
	if fn, _ := cmd.Flags().GetString("file"); fn != "" {
		f, err := os.Open(fn)
		if err != nil {
			return errors.Wrapf(err, "open %s", fn)
		}
		defer f.Close()
		in = f
	}
	statements, err := readStatements(in)
	if err != nil {
		return err
	}
	if len(statements) == 0 {
		return errors.New("no statements to replay")
	}

	workers, _ := cmd.Flags().GetInt("workers")
	repeat, _ := cmd.Flags().GetInt("repeat")
	latency, _ := cmd.Flags().GetDuration("latency")
	tables, _ := cmd.Flags().GetStringSlice("invalidate")
	top, _ := cmd.Flags().GetInt("top")
	if workers < 1 || repeat < 1 {
		return errors.New("workers and repeat must be positive")
	}

	store, err := cfg.OpenStore(cmd.Context(), log)
	if err != nil {
		return err
	}
	if store != nil {
		log.Info("using %s store %s", cfg.Store.Backend, config.MaskURL(cfg.Store.URL))
	}
	gen := plan.NewMockGenerator(latency)
	m, err := plancache.New(gen, cfg.ManagerOptions(log, store)...)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return err
	}
	defer m.Close()

	res := &replayResult{
		bySource:  make(map[plancache.Source]*atomic.Int64),
		generator: gen,
	}
	for _, s := range []plancache.Source{plancache.SourceShortcut, plancache.SourceCache, plancache.SourceStore, plancache.SourceGenerated} {
		res.bySource[s] = new(atomic.Int64)
	}
	var requests, failures atomic.Int64

	started := time.Now()
	for pass := 0; pass < repeat; pass++ {
		if err := replayPass(cmd.Context(), m, statements, workers, &requests, &failures, res); err != nil {
			return err
		}
		if pass == 0 {
			for _, table := range tables {
				if err := m.OnSchemaChange(cmd.Context(), table); err != nil {
					return err
				}
			}
		}
	}
	res.elapsed = time.Since(started)
	res.requests = requests.Load()
	res.failures = failures.Load()

	printReplay(cmd.OutOrStdout(), m, res, top)
	return nil
}

func replayPass(ctx context.Context, m *plancache.Manager, statements []string, workers int, requests, failures *atomic.Int64, res *replayResult) error {
	g, ctx := errgroup.WithContext(ctx)
	var next atomic.Int64
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for {
				i := int(next.Add(1) - 1)
				if i >= len(statements) {
					return nil
				}
				requests.Add(1)
				ep, err := m.GetExecutionPlan(ctx, statements[i])
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					failures.Add(1)
					continue
				}
				res.bySource[ep.Source].Add(1)
			}
		})
	}
	return g.Wait()
}

func printReplay(w io.Writer, m *plancache.Manager, res *replayResult, top int) {
	stats := m.Statistics()
	fmt.Fprintln(w, tui.Title("Statistics"))
	tui.KeyValues(w,
		[2]string{"requests", strconv.FormatInt(res.requests, 10)},
		[2]string{"failures", strconv.FormatInt(res.failures, 10)},
		[2]string{"hits", strconv.FormatInt(stats.Hits, 10)},
		[2]string{"misses", strconv.FormatInt(stats.Misses, 10)},
		[2]string{"hit ratio", fmt.Sprintf("%.2f%%", stats.HitRatio*100)},
		[2]string{"evictions", strconv.FormatInt(stats.Evictions, 10)},
		[2]string{"invalidations", strconv.FormatInt(stats.Invalidations, 10)},
		[2]string{"generated", strconv.FormatInt(res.generator.Calls(), 10)},
		[2]string{"shortcut", strconv.FormatInt(res.bySource[plancache.SourceShortcut].Load(), 10)},
		[2]string{"store", strconv.FormatInt(res.bySource[plancache.SourceStore].Load(), 10)},
		[2]string{"cache size", strconv.Itoa(m.CacheSize())},
		[2]string{"schema version", m.SchemaVersion()},
		[2]string{"elapsed", res.elapsed.Round(time.Millisecond).String()},
	)
	if top <= 0 {
		return
	}
	entries := m.Entries()
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Hits != entries[j].Hits {
			return entries[i].Hits > entries[j].Hits
		}
		return entries[i].Pattern < entries[j].Pattern
	})
	if len(entries) > top {
		entries = entries[:top]
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			tui.SQL(tui.MaxWidth(e.Pattern, 70)),
			strconv.FormatInt(e.Hits, 10),
			e.SchemaVersion,
		})
	}
	fmt.Fprintln(w, tui.Title("Top entries"))
	tui.Table(w, []string{"Pattern", "Hits", "Version"}, rows)
}
