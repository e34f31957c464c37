// Package fusionflow provides a top-level convenience entry point for creating
// the adaptive retrieval engine with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/fusionflow"
//
//	registry := fusionflow.NewRegistry()
//	registry.Register(myVectorAdapter)
//
//	engine := fusionflow.New(nil, registry, fusionflow.Backends{Pairwise: scorer})
//	resp, err := engine.Retrieve(ctx, types.Query{Text: "question"}, nil)
//
// This is a thin wrapper around [retrieval.NewEngine]; both produce identical
// results. Use this package when you prefer the shorter import path.
package fusionflow

import (
	"github.com/BaSui01/fusionflow/config"
	"github.com/BaSui01/fusionflow/retrieval"
)

// Option configures the engine created by [New].
type Option = retrieval.Option

// Backends carries the external scoring backends for the rerank stage.
type Backends = retrieval.RerankBackends

// New creates a [retrieval.Engine]. A nil cfg uses [config.DefaultConfig].
func New(cfg *config.Config, registry *retrieval.Registry, backends Backends, opts ...Option) *retrieval.Engine {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return retrieval.NewEngine(cfg, registry, backends, opts...)
}

// NewRegistry creates an empty strategy adapter registry.
func NewRegistry() *retrieval.Registry {
	return retrieval.NewRegistry()
}

// Re-export engine options so callers never need to import retrieval/.

// WithLogger sets a custom zap logger.
var WithLogger = retrieval.WithLogger

// WithMetrics sets a Prometheus metrics collector.
var WithMetrics = retrieval.WithMetrics

// WithHistory sets the strategy run history store.
var WithHistory = retrieval.WithHistory
