package eventing

import (
	"context"
	"testing"
	"time"

	"github.com/agentuity/go-plancache/logger"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client, Client, *logger.TestLogger) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	log := logger.NewTestLogger()
	client, err := NewRedisClient(context.Background(), log, rdb)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return mr, rdb, client, log
}

func TestHeaders(t *testing.T) {
	h := Headers{}
	h.Set("a", "1")
	h.Set("b", "2")
	assert.Equal(t, "1", h.Get("a"))
	assert.Equal(t, "", h.Get("missing"))
	assert.ElementsMatch(t, []string{"a", "b"}, h.Keys())
}

func TestNewRedisClientNil(t *testing.T) {
	_, err := NewRedisClient(context.Background(), logger.NewTestLogger(), nil)
	assert.Error(t, err)
}

func TestRedisPublishSubscribe(t *testing.T) {
	_, _, client, _ := newTestClient(t)
	ctx := context.Background()

	received := make(chan Message, 1)
	sub, err := client.Subscribe(ctx, "subject", func(ctx context.Context, msg Message) {
		received <- msg
	})
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, client.Publish(ctx, "subject", []byte("hello"), WithHeader("x-test", "1")))

	select {
	case msg := <-received:
		assert.Equal(t, []byte("hello"), msg.Data())
		assert.Equal(t, "1", msg.Headers().Get("x-test"))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestRedisSubscriberClose(t *testing.T) {
	_, _, client, _ := newTestClient(t)
	ctx := context.Background()

	received := make(chan Message, 4)
	sub, err := client.Subscribe(ctx, "subject", func(ctx context.Context, msg Message) {
		received <- msg
	})
	require.NoError(t, err)
	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	require.NoError(t, client.Publish(ctx, "subject", []byte("late")))
	select {
	case <-received:
		t.Fatal("message delivered after close")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRedisUndecodableMessageLogged(t *testing.T) {
	_, rdb, client, log := newTestClient(t)
	ctx := context.Background()

	sub, err := client.Subscribe(ctx, "subject", func(ctx context.Context, msg Message) {
		t.Error("callback should not run")
	})
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, rdb.Publish(ctx, "subject", "garbage").Err())
	assert.Eventually(t, func() bool { return log.Count("ERROR") == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestRedisTracePropagation(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { tp.Shutdown(context.Background()) })

	_, _, client, _ := newTestClient(t)
	ctx := context.Background()

	got := make(chan trace.SpanContext, 1)
	sub, err := client.Subscribe(ctx, "traced", func(ctx context.Context, msg Message) {
		assert.NotEmpty(t, msg.Headers().Get("traceparent"))
		got <- trace.SpanContextFromContext(ctx)
	})
	require.NoError(t, err)
	defer sub.Close()

	parentCtx, parent := tp.Tracer("test").Start(ctx, "parent")
	require.NoError(t, client.Publish(parentCtx, "traced", []byte("x")))
	parent.End()

	select {
	case sc := <-got:
		assert.Equal(t, parent.SpanContext().TraceID(), sc.TraceID())
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}

	assert.Eventually(t, func() bool {
		var names []string
		for _, s := range sr.Ended() {
			names = append(names, s.Name())
		}
		return contains(names, "Publish") && contains(names, "Receive")
	}, 2*time.Second, 10*time.Millisecond)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestMessageEnvelopeEncoding(t *testing.T) {
	msg := newPubRedisMessage([]byte("payload"), WithHeader("k", "v"), WithHeader("bad"))
	buf, err := msgpack.Marshal(msg)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, msgpack.Unmarshal(buf, &raw))
	assert.Contains(t, raw, "data")
	assert.Contains(t, raw, "headers")
	assert.Equal(t, Headers{"k": "v"}, msg.Headers())
}
