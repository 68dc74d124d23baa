package usecase

import (
	"context"
	"log/slog"
	"sync"

	"TanshinScanner/internal/domain"
	"TanshinScanner/internal/ports"
	"TanshinScanner/internal/screen"
)

// CatalogService maintains the append-only filing catalog across fetch
// cycles and serves screened views of it. Reads and refreshes may overlap
// (a background refresh racing a manual action), so access is guarded.
type CatalogService struct {
	source  ports.IndexSource
	logger  *slog.Logger
	mu      sync.RWMutex
	catalog *domain.Catalog
}

// NewCatalogService wires the configured index source.
func NewCatalogService(source ports.IndexSource, log *slog.Logger) *CatalogService {
	return &CatalogService{
		source:  source,
		logger:  log,
		catalog: domain.NewCatalog(),
	}
}

// Refresh fetches the current index and merges it into the catalog. On a
// fetch or parse failure the catalog keeps its previous state.
func (s *CatalogService) Refresh(ctx context.Context) (added int, err error) {
	res, err := s.source.FetchIndex(ctx)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	added = s.catalog.Merge(res.Records)
	total := s.catalog.Len()
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.Info("catalog refreshed",
			"fetched", len(res.Records), "skipped", res.Skipped,
			"new", added, "total", total)
	}

	return added, nil
}

// Records returns the full catalog in display order.
func (s *CatalogService) Records() []domain.FilingRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalog.Records()
}

// Screen applies criteria over the current catalog.
func (s *CatalogService) Screen(c screen.Criteria) []domain.FilingRecord {
	return screen.Apply(s.Records(), c)
}

// Lookup resolves a filing id against the catalog.
func (s *CatalogService) Lookup(filingID string) (domain.FilingRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalog.Lookup(filingID)
}
