package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/agentuity/go-plancache/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestBearerToken(t *testing.T) {
	tok := BearerToken("secret", "abc")
	parts := strings.SplitN(tok, ".", 2)
	require.Len(t, parts, 2)
	assert.Equal(t, "abc", parts[0])
	assert.Equal(t, tok, BearerToken("secret", "abc"))
	assert.NotEqual(t, tok, BearerToken("other", "abc"))
}

func TestNewExportsSpans(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
		auth  []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		auth = append(auth, r.Header.Get("Authorization"))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })

	shutdown, err := New(context.Background(), Config{
		URL:         server.URL,
		Token:       BearerToken("secret", "tok"),
		ServiceName: "plancache-test",
	}, logger.NewTestLogger())
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "GeneratePlan")
	span.End()
	shutdown()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, paths)
	assert.Equal(t, "/v1/traces", paths[0])
	assert.True(t, strings.HasPrefix(auth[0], "Bearer tok."))
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(context.Background(), Config{URL: "not a url", ServiceName: "x"}, nil)
	assert.Error(t, err)
	_, err = New(context.Background(), Config{URL: "://", ServiceName: "x"}, nil)
	assert.Error(t, err)
}
