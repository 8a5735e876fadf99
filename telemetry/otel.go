// Package telemetry exports the spans recorded by the plan cache to an OTLP
// collector.
package telemetry

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"net/url"
	"time"

	"github.com/agentuity/go-plancache/logger"
	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
)

// BearerToken signs token with sharedSecret for collectors that verify a
// shared secret.
func BearerToken(sharedSecret string, token string) string {
	sum := sha256.Sum256([]byte(sharedSecret + "." + token))
	return token + "." + base64.StdEncoding.EncodeToString(sum[:])
}

type ShutdownFunc func()

// Config describes the collector to export to.
type Config struct {
	// URL is the collector base URL; spans are sent to URL/v1/traces.
	URL string
	// Token, when set, is sent as a bearer token.
	Token       string
	ServiceName string
	// BatchTimeout overrides the exporter's batching delay.
	BatchTimeout time.Duration
}

// New installs a global tracer provider that exports to cfg.URL and a W3C
// trace context propagator. The returned function flushes and stops the
// exporter.
func New(ctx context.Context, cfg Config, log logger.Logger) (ShutdownFunc, error) {
	otlpURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "telemetry: parse otlp url")
	}
	if otlpURL.Scheme == "" || otlpURL.Host == "" {
		return nil, errors.Newf("telemetry: otlp url %q must include scheme and host", cfg.URL)
	}
	otlpURL.Path = "/v1/traces"

	res, err := resource.New(
		ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithProcess(),
		resource.WithHost(),
		resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)),
	)
	if errors.Is(err, resource.ErrPartialResource) || errors.Is(err, resource.ErrSchemaURLConflict) {
		if log != nil {
			log.Debug("telemetry resource: %s", err)
		}
	} else if err != nil {
		return nil, errors.Wrap(err, "telemetry: create resource")
	}

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpointURL(otlpURL.String()),
		otlptracehttp.WithTimeout(10 * time.Second),
		otlptracehttp.WithCompression(otlptracehttp.GzipCompression),
	}
	if cfg.Token != "" {
		opts = append(opts, otlptracehttp.WithHeaders(map[string]string{"Authorization": "Bearer " + cfg.Token}))
	}
	if otlpURL.Scheme == "http" {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "telemetry: create trace exporter")
	}

	var batch []sdktrace.BatchSpanProcessorOption
	if cfg.BatchTimeout > 0 {
		batch = append(batch, sdktrace.WithBatchTimeout(cfg.BatchTimeout))
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter, batch...),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil && log != nil {
			log.Warn("telemetry shutdown: %s", err)
		}
	}, nil
}
