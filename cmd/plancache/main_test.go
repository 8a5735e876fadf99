package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agentuity/go-plancache/eventing"
	"github.com/agentuity/go-plancache/logger"
	"github.com/agentuity/go-plancache/plan"
	"github.com/agentuity/go-plancache/plancache"
	"github.com/agentuity/go-plancache/tui"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	prev := tui.HasTTY
	tui.HasTTY = false
	t.Cleanup(func() { tui.HasTTY = prev })

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append(args, "--env-file", ""))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestNormalizeArgs(t *testing.T) {
	out, err := execute(t, "", "normalize", "SELECT * FROM users WHERE id = 42")
	require.NoError(t, err)
	assert.Contains(t, out, "SELECT * FROM users WHERE id = ?")
	assert.Contains(t, out, "42:INTEGER")
	assert.Contains(t, out, "users")
}

func TestNormalizeStdinJSON(t *testing.T) {
	stdin := "-- workload\nSELECT name FROM users WHERE name = 'bob'\n\nSELECT * FROM t WHERE\n"
	out, err := execute(t, stdin, "normalize", "--json")
	assert.Error(t, err, "one statement does not parse")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	var first, second normalizeResult
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "SELECT name FROM users WHERE name = ?", first.Pattern)
	assert.Equal(t, []interface{}{"bob"}, first.Parameters)
	assert.Equal(t, []string{"STRING"}, first.Types)
	assert.Equal(t, plancache.CacheKey(first.Pattern), first.Key)
	assert.Empty(t, first.Error)
	assert.NotEmpty(t, second.Error)
	assert.Empty(t, second.Pattern)
}

func writeWorkload(t *testing.T) string {
	t.Helper()
	fn := filepath.Join(t.TempDir(), "workload.sql")
	body := strings.Join([]string{
		"SELECT * FROM users WHERE id = 1",
		"SELECT * FROM users WHERE id = 2",
		"SELECT * FROM users WHERE id = 3",
		"SELECT * FROM orders WHERE total > 10.5",
		"SELECT * FROM orders WHERE total > 99",
		"SELECT * FROM products WHERE name = 'widget'",
	}, "\n")
	require.NoError(t, os.WriteFile(fn, []byte(body), 0o644))
	return fn
}

func TestReplay(t *testing.T) {
	out, err := execute(t, "", "replay", "--file", writeWorkload(t), "--workers", "3", "--repeat", "2", "--log-level", "none")
	require.NoError(t, err)
	assert.Contains(t, out, "requests\t12\n")
	assert.Contains(t, out, "failures\t0\n")
	assert.Contains(t, out, "generated\t3\n")
	assert.Contains(t, out, "cache size\t3\n")
	assert.Contains(t, out, "SELECT * FROM users WHERE id = ?\t")
}

func TestReplayInvalidate(t *testing.T) {
	out, err := execute(t, "", "replay", "-f", writeWorkload(t), "-r", "2", "--invalidate", "orders", "--log-level", "none")
	require.NoError(t, err)
	assert.Contains(t, out, "generated\t4\n")
	assert.Contains(t, out, "invalidations\t1\n")
	assert.Contains(t, out, "schema version\tv2\n")
}

func TestReplayExportsTraces(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/traces" {
			requests.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })

	_, err := execute(t, "", "replay", "-f", writeWorkload(t), "--otlp-url", server.URL, "--log-level", "none")
	require.NoError(t, err)
	assert.Positive(t, requests.Load())
}

func TestReplayErrors(t *testing.T) {
	_, err := execute(t, "", "replay", "--log-level", "none")
	assert.Error(t, err)
	_, err = execute(t, "SELECT 1\n", "replay", "--workers", "0", "--log-level", "none")
	assert.Error(t, err)
	_, err = execute(t, "SELECT 1\n", "replay", "--log-level", "loud")
	assert.Error(t, err)
}

func TestInvalidateRequiresEvents(t *testing.T) {
	t.Setenv("PLANCACHE_EVENTS_URL", "")
	_, err := execute(t, "", "invalidate", "orders")
	assert.Error(t, err)
}

func TestInvalidateReachesWatcher(t *testing.T) {
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { rdb.Close() })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := logger.NewTestLogger()
	client, err := eventing.NewRedisClient(ctx, log, rdb)
	require.NoError(t, err)
	defer client.Close()

	m, err := plancache.New(plan.NewMockGenerator(0), plancache.WithLogger(log))
	require.NoError(t, err)
	defer m.Close()
	for _, sql := range []string{"SELECT * FROM users WHERE id = 1", "SELECT * FROM orders WHERE id = 1"} {
		_, err := m.GetExecutionPlan(ctx, sql)
		require.NoError(t, err)
	}

	sub, err := followSchemaChanges(ctx, client, eventing.DefaultSchemaChannel, m, log)
	require.NoError(t, err)
	defer sub.Close()

	t.Setenv("PLANCACHE_EVENTS_URL", "redis://"+srv.Addr())
	out, err := execute(t, "", "invalidate", "orders", "--log-level", "none")
	require.NoError(t, err)
	assert.Contains(t, out, "published schema change for orders on "+eventing.DefaultSchemaChannel)

	assert.Eventually(t, func() bool { return m.CacheSize() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "v2", m.SchemaVersion())
	assert.Equal(t, int64(1), m.Statistics().Invalidations)
}
