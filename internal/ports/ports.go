package ports

import (
	"context"
	"time"

	"TanshinScanner/internal/domain"
	"TanshinScanner/internal/normalize"
)

// IndexSource fetches the current filings index from an upstream feed and
// returns the normalized batch.
type IndexSource interface {
	FetchIndex(ctx context.Context) (*normalize.Result, error)
}

// SummaryStore is the durable cache of AI-derived summary records, keyed
// by (filing id, model version). Get returns (nil, nil) on a miss. Put is
// append-only per key: re-writing identical content is a no-op success,
// differing content fails with *domain.ConflictError.
type SummaryStore interface {
	Get(ctx context.Context, filingID, modelVersion string) (*domain.SummaryRecord, error)
	Put(ctx context.Context, rec domain.SummaryRecord) error
	Evict(ctx context.Context, filingID, modelVersion string) error
	List(ctx context.Context) ([]domain.SummaryRecord, error)
	Close() error
}

// Summarizer extracts structured figures and commentary from one filing
// document. It is an opaque external service from the caller's view.
type Summarizer interface {
	ModelVersion() string
	Summarize(ctx context.Context, filing domain.FilingRecord, document []byte) (domain.Extraction, error)
}

// Downloader fetches the disclosed document behind a filing.
type Downloader interface {
	Download(ctx context.Context, filing domain.FilingRecord) ([]byte, error)
}

// Refresher drives periodic background catalog refresh.
type Refresher interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
