// Package plan defines the execution plan artifact cached by plancache and
// the generator boundary that produces it.
package plan

import (
	"context"
	"time"
)

// Plan is an opaque execution plan. The cache never interprets Document; it
// only stores, serializes and returns it. A Plan is shared between callers
// once cached and must be treated as immutable.
type Plan struct {
	ID          string                 `json:"id" msgpack:"id"`
	Pattern     string                 `json:"pattern" msgpack:"pattern"`
	GeneratedAt time.Time              `json:"generated_at" msgpack:"generated_at"`
	Document    map[string]interface{} `json:"document" msgpack:"document"`
}

// Generator produces a plan for a normalized pattern. Implementations are
// expected to be deterministic for a given schema version and safe for
// concurrent use.
type Generator interface {
	Generate(ctx context.Context, pattern string) (*Plan, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, pattern string) (*Plan, error)

func (f GeneratorFunc) Generate(ctx context.Context, pattern string) (*Plan, error) {
	return f(ctx, pattern)
}

// Clone returns a deep copy of p.
func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	c := *p
	c.Document = cloneMap(p.Document)
	return &c
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch v := v.(type) {
	case map[string]interface{}:
		return cloneMap(v)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, e := range v {
			out[i] = cloneValue(e)
		}
		return out
	}
	return v
}
