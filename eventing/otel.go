package eventing

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

var tracer = otel.Tracer("github.com/agentuity/go-plancache/eventing")

var propagator = propagation.TraceContext{}
