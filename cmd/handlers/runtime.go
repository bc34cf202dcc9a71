package handlers

import (
	"context"
	"fmt"
	"io"

	"collegecontent/internal/collegedb"
	"collegecontent/internal/config"
	"collegecontent/internal/llm"
	"collegecontent/internal/logger"
	"collegecontent/internal/pipeline"
	"collegecontent/internal/trends"
)

// runtime holds the long-lived dependencies of one command invocation
type runtime struct {
	cfg     *config.Config
	gateway llm.Gateway // Logging decorator around raw
	raw     llm.Gateway
	store   *collegedb.Store // nil when the database is unreachable
	trends  trends.Provider
	orch    *pipeline.Orchestrator
}

// runtimeOptions selects which dependencies a command needs
type runtimeOptions struct {
	gateway     bool
	store       bool
	trends      bool
	requireData bool // Fail instead of continuing without a store
}

// openRuntime connects the dependencies named by opts. When a gateway is
// opened the pipeline orchestrator is built as well.
func openRuntime(ctx context.Context, opts runtimeOptions) (*runtime, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	rt := &runtime{cfg: cfg}

	if opts.store {
		store, err := collegedb.OpenFromConfig(ctx, cfg.Database)
		switch {
		case err == nil:
			rt.store = store
		case opts.requireData:
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		default:
			// CSV imports still work without the store
			logger.Warn("College database unavailable, continuing without it",
				"driver", cfg.Database.Driver, "error", err.Error())
		}
	}

	if opts.trends {
		p, err := trends.New(ctx, cfg.Trends)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to create trends provider: %w", err)
		}
		rt.trends = p
	}

	if !opts.gateway {
		return rt, nil
	}

	settings, err := llm.SettingsFromConfig(cfg.LLM, provider, model)
	if err != nil {
		rt.Close()
		return nil, err
	}
	raw, err := llm.New(ctx, settings)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to create model gateway: %w", err)
	}
	rt.raw = raw
	rt.gateway = llm.WithLogging(raw)

	b := pipeline.NewBuilder().
		FromConfig(cfg).
		WithGateway(rt.gateway).
		WithTrends(rt.trends)
	if rt.store != nil {
		b = b.WithStore(rt.store)
	}
	orch, err := b.Build()
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}
	rt.orch = orch

	logger.Info("Runtime ready",
		"model", llm.Describe(rt.gateway),
		"database", rt.store != nil,
		"trends", rt.cfg.Trends.Provider)
	return rt, nil
}

// Close releases every opened dependency
func (rt *runtime) Close() {
	if rt.store != nil {
		if err := rt.store.Close(); err != nil {
			logger.Warn("Failed to close database", "error", err.Error())
		}
	}
	if rt.trends != nil {
		if err := trends.Close(rt.trends); err != nil {
			logger.Warn("Failed to close trends provider", "error", err.Error())
		}
	}
	if c, ok := rt.raw.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logger.Warn("Failed to close model gateway", "error", err.Error())
		}
	}
}
