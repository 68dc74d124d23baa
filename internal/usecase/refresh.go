package usecase

import (
	"context"
	"log/slog"
	"time"

	"TanshinScanner/internal/ports"
)

// CatalogRefresher keeps the catalog current in the background while the
// user browses.
type CatalogRefresher struct {
	driver  ports.Refresher
	catalog *CatalogService
	logger  *slog.Logger
}

// NewCatalogRefresher wires the refresh driver with the catalog service.
func NewCatalogRefresher(driver ports.Refresher, catalog *CatalogService, log *slog.Logger) *CatalogRefresher {
	return &CatalogRefresher{driver: driver, catalog: catalog, logger: log}
}

// Start registers the periodic refresh job. Refresh failures are logged
// and retried on the next tick; the catalog keeps its last good state.
func (r *CatalogRefresher) Start(ctx context.Context) error {
	if r.driver == nil || r.catalog == nil {
		return nil
	}

	job := func(time.Time) {
		if _, err := r.catalog.Refresh(ctx); err != nil && r.logger != nil {
			r.logger.Warn("background refresh failed", "error", err)
		}
	}

	return r.driver.Start(ctx, job)
}

// Stop tears down the underlying driver.
func (r *CatalogRefresher) Stop(ctx context.Context) error {
	if r.driver == nil {
		return nil
	}
	return r.driver.Stop(ctx)
}
