package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TanshinScanner/internal/domain"
)

// memStore is an in-memory ports.SummaryStore with the same append-only
// semantics as the durable backends.
type memStore struct {
	mu      sync.Mutex
	records map[string]domain.SummaryRecord
	getErr  error
	putErr  error
}

func newMemStore() *memStore {
	return &memStore{records: map[string]domain.SummaryRecord{}}
}

func (m *memStore) key(filingID, modelVersion string) string {
	return filingID + "@" + modelVersion
}

func (m *memStore) Get(_ context.Context, filingID, modelVersion string) (*domain.SummaryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	rec, ok := m.records[m.key(filingID, modelVersion)]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *memStore) Put(_ context.Context, rec domain.SummaryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	key := m.key(rec.FilingID, rec.ModelVersion)
	if existing, ok := m.records[key]; ok {
		if existing.ContentEquals(rec) {
			return nil
		}
		return &domain.ConflictError{FilingID: rec.FilingID, ModelVersion: rec.ModelVersion}
	}
	m.records[key] = rec
	return nil
}

func (m *memStore) Evict(_ context.Context, filingID, modelVersion string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, m.key(filingID, modelVersion))
	return nil
}

func (m *memStore) List(_ context.Context) ([]domain.SummaryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.SummaryRecord, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec)
	}
	return out, nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// fakeSummarizer counts invocations and can be told to fail or hang.
type fakeSummarizer struct {
	calls atomic.Int64
	fail  atomic.Bool
	block time.Duration
}

func (f *fakeSummarizer) ModelVersion() string { return "test-model" }

func (f *fakeSummarizer) Summarize(ctx context.Context, filing domain.FilingRecord, _ []byte) (domain.Extraction, error) {
	f.calls.Add(1)

	if f.block > 0 {
		select {
		case <-time.After(f.block):
		case <-ctx.Done():
			return domain.Extraction{}, ctx.Err()
		}
	}

	if f.fail.Load() {
		return domain.Extraction{}, fmt.Errorf("upstream quota exceeded")
	}

	return domain.Extraction{
		Fields:      json.RawMessage(`{"revenue": 100}`),
		SummaryText: "Summary of " + filing.Title,
	}, nil
}

type fakeDownloader struct {
	err error
}

func (f *fakeDownloader) Download(_ context.Context, _ domain.FilingRecord) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-1.7 ..."), nil
}

func testFiling() domain.FilingRecord {
	return domain.FilingRecord{
		FilingID:    "1301-20240501-01",
		IssuerCode:  "1301",
		IssuerName:  "Kyokuyo",
		DisclosedAt: time.Date(2024, 5, 1, 1, 0, 0, 0, time.UTC),
		DocumentURL: "https://example.org/1301.pdf",
		Title:       "Q1 results (final)",
		Category:    domain.CategoryEarnings,
	}
}

func newTestOrchestrator(store *memStore, summarizer *fakeSummarizer, downloader *fakeDownloader, timeout time.Duration) *Orchestrator {
	return NewOrchestrator(OrchestratorDeps{
		Store:      store,
		Summarizer: summarizer,
		Downloader: downloader,
		Timeout:    timeout,
	})
}

func TestEnsureSummaryComputesOnceAndCaches(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	summarizer := &fakeSummarizer{}
	o := newTestOrchestrator(store, summarizer, &fakeDownloader{}, 0)
	ctx := context.Background()

	first, err := o.EnsureSummary(ctx, testFiling(), "test-model")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "1301-20240501-01", first.FilingID)
	assert.Equal(t, int64(1), summarizer.calls.Load())

	// second request is served from the cache
	second, err := o.EnsureSummary(ctx, testFiling(), "test-model")
	require.NoError(t, err)
	assert.Equal(t, int64(1), summarizer.calls.Load(), "cached filings must not call the summarizer")
	assert.True(t, first.ContentEquals(*second))
}

func TestEnsureSummaryAtMostOnceUnderConcurrency(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	summarizer := &fakeSummarizer{block: 30 * time.Millisecond}
	o := newTestOrchestrator(store, summarizer, &fakeDownloader{}, 0)
	ctx := context.Background()

	const n = 12
	var wg sync.WaitGroup
	results := make([]*domain.SummaryRecord, n)
	failures := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], failures[i] = o.EnsureSummary(ctx, testFiling(), "test-model")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), summarizer.calls.Load(), "overlapping requests must share one computation")

	for i := 0; i < n; i++ {
		require.NoError(t, failures[i])
		require.NotNil(t, results[i])
		assert.True(t, results[0].ContentEquals(*results[i]), "all callers must see the same record")
	}
}

func TestEnsureSummaryDistinctModelVersions(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	summarizer := &fakeSummarizer{}
	o := newTestOrchestrator(store, summarizer, &fakeDownloader{}, 0)
	ctx := context.Background()

	_, err := o.EnsureSummary(ctx, testFiling(), "model-v1")
	require.NoError(t, err)
	_, err = o.EnsureSummary(ctx, testFiling(), "model-v2")
	require.NoError(t, err)

	assert.Equal(t, int64(2), summarizer.calls.Load(), "a new model version is a new computation")
	assert.Equal(t, 2, store.len())
}

func TestEnsureSummaryFailureIsNotCached(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	summarizer := &fakeSummarizer{}
	summarizer.fail.Store(true)
	o := newTestOrchestrator(store, summarizer, &fakeDownloader{}, 0)
	ctx := context.Background()

	_, err := o.EnsureSummary(ctx, testFiling(), "test-model")
	var sumErr *domain.SummarizerError
	require.ErrorAs(t, err, &sumErr)
	assert.Equal(t, "1301-20240501-01", sumErr.FilingID)
	assert.Equal(t, 0, store.len(), "failures must not poison the cache")

	// after the upstream recovers the next attempt succeeds and caches
	summarizer.fail.Store(false)
	rec, err := o.EnsureSummary(ctx, testFiling(), "test-model")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 1, store.len())
	assert.Equal(t, int64(2), summarizer.calls.Load())
}

func TestEnsureSummaryDownloadFailure(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	summarizer := &fakeSummarizer{}
	o := newTestOrchestrator(store, summarizer, &fakeDownloader{err: fmt.Errorf("404 not found")}, 0)

	_, err := o.EnsureSummary(context.Background(), testFiling(), "test-model")
	var sumErr *domain.SummarizerError
	require.ErrorAs(t, err, &sumErr)
	assert.Equal(t, int64(0), summarizer.calls.Load(), "no summarizer call without a document")
	assert.Equal(t, 0, store.len())
}

func TestEnsureSummaryTimeout(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	summarizer := &fakeSummarizer{block: time.Minute}
	o := newTestOrchestrator(store, summarizer, &fakeDownloader{}, 20*time.Millisecond)

	start := time.Now()
	_, err := o.EnsureSummary(context.Background(), testFiling(), "test-model")
	elapsed := time.Since(start)

	var sumErr *domain.SummarizerError
	require.ErrorAs(t, err, &sumErr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, elapsed, 5*time.Second, "a hung summarizer must not hold the lock")
	assert.Equal(t, 0, store.len())
}

func TestEnsureSummaryCacheWriteFailureReturnsRecord(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.putErr = fmt.Errorf("disk full")
	summarizer := &fakeSummarizer{}
	o := newTestOrchestrator(store, summarizer, &fakeDownloader{}, 0)

	rec, err := o.EnsureSummary(context.Background(), testFiling(), "test-model")

	var cacheErr *domain.CacheError
	require.ErrorAs(t, err, &cacheErr)
	require.NotNil(t, rec, "computed record must be returned despite the write failure")
	assert.Equal(t, "Summary of Q1 results (final)", rec.SummaryText)
}

func TestEnsureSummaryCacheReadFailure(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.getErr = fmt.Errorf("database is locked")
	summarizer := &fakeSummarizer{}
	o := newTestOrchestrator(store, summarizer, &fakeDownloader{}, 0)

	_, err := o.EnsureSummary(context.Background(), testFiling(), "test-model")

	var cacheErr *domain.CacheError
	require.ErrorAs(t, err, &cacheErr)
	assert.Equal(t, int64(0), summarizer.calls.Load(), "no external call on a cache read failure")
}

func TestEnsureSummaryConflictStaysLoud(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	summarizer := &fakeSummarizer{}
	_ = newTestOrchestrator(store, summarizer, &fakeDownloader{}, 0)
	ctx := context.Background()

	// seed a record whose content differs from what the summarizer will
	// produce, then make the orchestrator race past the cache check
	require.NoError(t, store.Put(ctx, domain.SummaryRecord{
		FilingID:     "1301-20240501-01",
		ModelVersion: "test-model",
		ExtractedAt:  time.Now().UTC(),
		Fields:       json.RawMessage(`{"revenue": 999}`),
		SummaryText:  "Stale divergent content.",
	}))

	// a normal call hits the cache, so exercise Put directly through the
	// store to assert the conflict shape the orchestrator relies on
	err := store.Put(ctx, domain.SummaryRecord{
		FilingID:     "1301-20240501-01",
		ModelVersion: "test-model",
		ExtractedAt:  time.Now().UTC(),
		Fields:       json.RawMessage(`{"revenue": 100}`),
		SummaryText:  "Different content.",
	})

	var conflict *domain.ConflictError
	require.True(t, errors.As(err, &conflict))
}

func TestEvictAllowsRecomputation(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	summarizer := &fakeSummarizer{}
	o := newTestOrchestrator(store, summarizer, &fakeDownloader{}, 0)
	ctx := context.Background()

	_, err := o.EnsureSummary(ctx, testFiling(), "test-model")
	require.NoError(t, err)
	require.NoError(t, o.Evict(ctx, "1301-20240501-01", "test-model"))

	_, err = o.EnsureSummary(ctx, testFiling(), "test-model")
	require.NoError(t, err)
	assert.Equal(t, int64(2), summarizer.calls.Load())
}
