package app

import (
	"context"
	"fmt"
	"log/slog"

	"TanshinScanner/internal/config"
	"TanshinScanner/internal/domain"
	"TanshinScanner/internal/infrastructure/feed"
	"TanshinScanner/internal/infrastructure/fetch"
	"TanshinScanner/internal/infrastructure/llm"
	"TanshinScanner/internal/infrastructure/scheduler"
	"TanshinScanner/internal/infrastructure/storage"
	"TanshinScanner/internal/logging"
	"TanshinScanner/internal/ports"
	"TanshinScanner/internal/scanner"
	"TanshinScanner/internal/screen"
	"TanshinScanner/internal/usecase"
)

// Application wires configuration to use cases and owns the store
// lifecycle: open at startup, Close at shutdown.
type Application struct {
	cfg          config.Config
	logger       *slog.Logger
	store        ports.SummaryStore
	summarizer   *llm.GeminiClient
	catalog      *usecase.CatalogService
	orchestrator *usecase.Orchestrator
	refresher    *usecase.CatalogRefresher
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	registry := scanner.NewRegistry()
	registry.Register("webapi", feed.NewWebAPISource(cfg.Feed, nil, baseLogger.With("component", "feed.webapi")))
	registry.Register("page", feed.NewPageSource(cfg.Feed.PageURL, nil, baseLogger.With("component", "feed.page")))

	source, err := registry.Resolve(cfg.Feed.Source)
	if err != nil {
		return nil, err
	}

	store, err := openStore(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open summary cache: %w", err)
	}

	summarizer := llm.NewGeminiClient(cfg.Gemini)

	orchestrator := usecase.NewOrchestrator(usecase.OrchestratorDeps{
		Store:      store,
		Summarizer: summarizer,
		Downloader: fetch.NewDocumentFetcher(nil, cfg.Gemini.MaxDocumentBytes),
		Timeout:    cfg.Gemini.Timeout,
		Logger:     baseLogger.With("component", "orchestrator"),
	})

	catalog := usecase.NewCatalogService(source, baseLogger.With("component", "catalog"))
	refresher := usecase.NewCatalogRefresher(
		scheduler.NewIntervalScheduler(cfg.Refresh.Interval),
		catalog,
		baseLogger.With("component", "refresher"),
	)

	return &Application{
		cfg:          cfg,
		logger:       baseLogger,
		store:        store,
		summarizer:   summarizer,
		catalog:      catalog,
		orchestrator: orchestrator,
		refresher:    refresher,
	}, nil
}

func openStore(cfg config.DatabaseConfig) (ports.SummaryStore, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return storage.OpenSQLite(cfg.Path)
	case "postgres":
		return storage.OpenPostgres(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// Close flushes and closes the summary cache.
func (a *Application) Close() error {
	return a.store.Close()
}

// Refresh fetches the index feed once and merges it into the catalog.
func (a *Application) Refresh(ctx context.Context) (added int, err error) {
	return a.catalog.Refresh(ctx)
}

// Screen applies criteria over the current catalog.
func (a *Application) Screen(c screen.Criteria) []domain.FilingRecord {
	return a.catalog.Screen(c)
}

// Lookup resolves a filing id against the catalog.
func (a *Application) Lookup(filingID string) (domain.FilingRecord, bool) {
	return a.catalog.Lookup(filingID)
}

// ModelVersion reports the active summarizer configuration.
func (a *Application) ModelVersion() string {
	return a.summarizer.ModelVersion()
}

// Summarize returns the summary record for a filing, invoking the AI
// summarizer only when the cache misses.
func (a *Application) Summarize(ctx context.Context, filingID string) (*domain.SummaryRecord, error) {
	if !a.summarizer.Enabled() {
		return nil, fmt.Errorf("summarization disabled: GEMINI_API_KEY is not set")
	}

	filing, ok := a.catalog.Lookup(filingID)
	if !ok {
		return nil, fmt.Errorf("filing %s is not in the catalog (run list first)", filingID)
	}

	return a.orchestrator.EnsureSummary(ctx, filing, a.summarizer.ModelVersion())
}

// Evict removes one cached summary on explicit user request.
func (a *Application) Evict(ctx context.Context, filingID, modelVersion string) error {
	return a.orchestrator.Evict(ctx, filingID, modelVersion)
}

// CachedSummaries enumerates the cache for maintenance display.
func (a *Application) CachedSummaries(ctx context.Context) ([]domain.SummaryRecord, error) {
	return a.orchestrator.CachedSummaries(ctx)
}

// StartRefresher begins background catalog refresh; StopRefresher halts it.
func (a *Application) StartRefresher(ctx context.Context) error {
	return a.refresher.Start(ctx)
}

// StopRefresher halts background refresh.
func (a *Application) StopRefresher(ctx context.Context) error {
	return a.refresher.Stop(ctx)
}
