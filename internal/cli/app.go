package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"shopassist/internal/brain"
	"shopassist/internal/catalog"
	"shopassist/internal/chat"
	ctxmgr "shopassist/internal/context"
	"shopassist/internal/domain"
	"shopassist/internal/health"
	"shopassist/internal/tokenizer"
	"shopassist/internal/tooling"
)

// App is the assembled assistant: catalog, model, agent and the services the
// gateway and the CLI commands call into.
type App struct {
	Store   catalog.Store
	Model   domain.ChatModel
	Agent   *brain.Agent
	Service *chat.Service
	Checker *health.Checker
}

// Build wires an App from cfg. The catalog connection is opened first and
// closed again if any later step fails.
func Build(ctx context.Context, cfg *domain.Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("build: config must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	store, err := catalogOpen(ctx, cfg.Catalog, logger)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	app, err := assemble(cfg, store, logger)
	if err != nil {
		_ = store.Close(context.WithoutCancel(ctx))
		return nil, err
	}
	return app, nil
}

func assemble(cfg *domain.Config, store catalog.Store, logger *slog.Logger) (*App, error) {
	model, err := newModel(cfg.Model, cfg.Retry)
	if err != nil {
		return nil, fmt.Errorf("create model: %w", err)
	}
	fallbacks := newFallbackModels(cfg.Fallbacks, cfg.Retry, logger)

	registry, err := tooling.NewShoppingRegistry(store)
	if err != nil {
		return nil, fmt.Errorf("register tools: %w", err)
	}
	dispatcher := brain.NewToolDispatcher(registry,
		brain.WithToolTimeout(seconds(cfg.Agent.ToolTimeout)),
		brain.WithMaxParallelTools(cfg.Agent.MaxParallelTools),
		brain.WithDispatcherLogger(logger),
	)
	agent := brain.NewAgent(model, dispatcher,
		brain.WithMaxIterations(cfg.Agent.MaxIterations),
		brain.WithModelTimeout(seconds(cfg.Model.Timeout)),
		brain.WithLogger(logger),
		brain.WithFallbacks(fallbacks...),
	)

	opts := []chat.Option{chat.WithRecommender(model), chat.WithLogger(logger)}
	if cfg.Agent.ContextTokens > 0 {
		tok := tokenizer.New(cfg.Agent.Encoding, logger)
		opts = append(opts, chat.WithContextManager(ctxmgr.NewManager(tok, cfg.Agent.ContextTokens)))
	}

	return &App{
		Store:   store,
		Model:   model,
		Agent:   agent,
		Service: chat.NewService(agent, store, opts...),
		Checker: health.NewChecker(store, model, health.WithLogger(logger)),
	}, nil
}

// Close releases the catalog connection.
func (a *App) Close(ctx context.Context) error {
	if a == nil || a.Store == nil {
		return nil
	}
	return a.Store.Close(ctx)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
