package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/careers-cli/internal/approval"
	"github.com/sells-group/careers-cli/internal/pipeline"
	"github.com/sells-group/careers-cli/internal/store"
	anthropicpkg "github.com/sells-group/careers-cli/pkg/anthropic"
	"github.com/sells-group/careers-cli/pkg/browser"
)

// pipelineEnv holds the initialized store, clients, pipeline, and approval
// engine needed by the discover/drafts/runs/serve commands.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
	Approval *approval.Engine
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initStore connects to Postgres and runs migrations. Callers own the
// returned store and must Close it.
func initStore(ctx context.Context) (store.Store, error) {
	if cfg.Store.DatabaseURL == "" {
		return nil, eris.New("database URL is required (CAREERS_STORE_DATABASE_URL)")
	}

	st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	})
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	return st, nil
}

// initPipeline sets up the store, API clients, pipeline, and approval
// engine. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("anthropic API key is required (CAREERS_ANTHROPIC_KEY)")
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)
	browserClient := browser.NewClient(cfg.Browser.Key, browser.WithBaseURL(cfg.Browser.BaseURL))

	return &pipelineEnv{
		Store:    st,
		Pipeline: pipeline.New(st, browserClient, anthropicClient, cfg),
		Approval: approval.NewEngine(st.Pool()),
	}, nil
}
