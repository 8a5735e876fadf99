package plancache

import (
	"context"
	"testing"

	"github.com/agentuity/go-plancache/plan"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestGeneratePlanSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { tp.Shutdown(context.Background()) })

	fail := errors.New("no optimizer")
	calls := 0
	gen := plan.GeneratorFunc(func(ctx context.Context, pattern string) (*plan.Plan, error) {
		calls++
		if calls == 1 {
			return nil, fail
		}
		return &plan.Plan{ID: "ok", Pattern: pattern}, nil
	})
	m := newTestManager(t, gen)
	ctx := context.Background()

	_, err := m.GetExecutionPlan(ctx, "SELECT * FROM t WHERE id = 1")
	require.Error(t, err)
	_, err = m.GetExecutionPlan(ctx, "SELECT * FROM t WHERE id = 1")
	require.NoError(t, err)
	_, err = m.GetExecutionPlan(ctx, "SELECT * FROM t WHERE id = 2")
	require.NoError(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 2, "hits do not start spans")
	for _, s := range spans {
		assert.Equal(t, "GeneratePlan", s.Name())
	}
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, codes.Ok, spans[1].Status().Code)

	var key string
	for _, kv := range spans[1].Attributes() {
		if kv.Key == "plancache.key" {
			key = kv.Value.AsString()
		}
	}
	assert.Equal(t, CacheKey("SELECT * FROM t WHERE id = ?"), key)
}
