package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"TanshinScanner/internal/domain"
	"TanshinScanner/internal/ports"
)

// Orchestrator coordinates cache lookup, on-miss summarization, and
// write-back. It is the only component that calls the external
// summarizer, and it guarantees at most one call per
// (filing id, model version) forever.
type Orchestrator struct {
	store      ports.SummaryStore
	summarizer ports.Summarizer
	downloader ports.Downloader
	timeout    time.Duration
	locks      *keyedLocks
	logger     *slog.Logger
	now        func() time.Time
}

// OrchestratorDeps wires the driven adapters into the orchestrator.
type OrchestratorDeps struct {
	Store      ports.SummaryStore
	Summarizer ports.Summarizer
	Downloader ports.Downloader
	Timeout    time.Duration
	Logger     *slog.Logger
}

// NewOrchestrator constructs the coordination component.
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	return &Orchestrator{
		store:      deps.Store,
		summarizer: deps.Summarizer,
		downloader: deps.Downloader,
		timeout:    deps.Timeout,
		locks:      newKeyedLocks(),
		logger:     deps.Logger,
		now:        time.Now,
	}
}

// EnsureSummary returns the cached record for the filing, computing and
// persisting it first when absent.
//
// A summarizer failure is returned as *domain.SummarizerError and nothing
// is cached, so the next user action retries cleanly. A persistence
// failure after a successful computation is returned as
// *domain.CacheError together with the computed record: losing the write
// is preferable to losing an expensive result.
func (o *Orchestrator) EnsureSummary(ctx context.Context, filing domain.FilingRecord, modelVersion string) (*domain.SummaryRecord, error) {
	rec, err := o.cachedRecord(ctx, filing.FilingID, modelVersion)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		o.debug("cache hit", "filing", filing.FilingID, "model", modelVersion)
		return rec, nil
	}

	// Serialize computation per key so overlapping requests trigger a
	// single external call.
	release := o.locks.acquire(filing.FilingID + "@" + modelVersion)
	defer release()

	// Double-checked: another caller may have finished while we waited.
	rec, err = o.cachedRecord(ctx, filing.FilingID, modelVersion)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		o.debug("cache hit after lock", "filing", filing.FilingID, "model", modelVersion)
		return rec, nil
	}

	extraction, err := o.compute(ctx, filing)
	if err != nil {
		return nil, &domain.SummarizerError{FilingID: filing.FilingID, Err: err}
	}

	out := domain.SummaryRecord{
		FilingID:     filing.FilingID,
		ModelVersion: modelVersion,
		ExtractedAt:  o.now().UTC(),
		Fields:       extraction.Fields,
		SummaryText:  extraction.SummaryText,
	}

	if err := o.store.Put(ctx, out); err != nil {
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) {
			// differing content under the computation lock means a
			// versioning bug; keep it loud
			return nil, err
		}
		o.warn("summary computed but not persisted", "filing", filing.FilingID, "error", err)
		return &out, &domain.CacheError{Op: "put", Err: err}
	}

	o.debug("summary cached", "filing", filing.FilingID, "model", modelVersion)
	return &out, nil
}

// Evict removes one cache entry on explicit user request.
func (o *Orchestrator) Evict(ctx context.Context, filingID, modelVersion string) error {
	if err := o.store.Evict(ctx, filingID, modelVersion); err != nil {
		return &domain.CacheError{Op: "evict", Err: err}
	}
	return nil
}

// CachedSummaries enumerates the cache for maintenance display.
func (o *Orchestrator) CachedSummaries(ctx context.Context) ([]domain.SummaryRecord, error) {
	records, err := o.store.List(ctx)
	if err != nil {
		return nil, &domain.CacheError{Op: "list", Err: err}
	}
	return records, nil
}

func (o *Orchestrator) cachedRecord(ctx context.Context, filingID, modelVersion string) (*domain.SummaryRecord, error) {
	rec, err := o.store.Get(ctx, filingID, modelVersion)
	if err != nil {
		return nil, &domain.CacheError{Op: "get", Err: err}
	}
	return rec, nil
}

// compute downloads the document and runs the summarizer under a bounded
// deadline, so a hung upstream cannot hold the per-filing lock forever.
func (o *Orchestrator) compute(ctx context.Context, filing domain.FilingRecord) (domain.Extraction, error) {
	if o.summarizer == nil {
		return domain.Extraction{}, fmt.Errorf("no summarizer configured")
	}

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	var document []byte
	if o.downloader != nil {
		var err error
		document, err = o.downloader.Download(ctx, filing)
		if err != nil {
			return domain.Extraction{}, fmt.Errorf("download document: %w", err)
		}
	}

	return o.summarizer.Summarize(ctx, filing, document)
}

func (o *Orchestrator) debug(msg string, args ...any) {
	if o.logger != nil {
		o.logger.Debug(msg, args...)
	}
}

func (o *Orchestrator) warn(msg string, args ...any) {
	if o.logger != nil {
		o.logger.Warn(msg, args...)
	}
}
