// Package fetch downloads disclosed filing documents with a byte cap, so
// an oversized PDF cannot exhaust memory or blow the summarizer's input
// limit.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"TanshinScanner/internal/domain"
	"TanshinScanner/internal/ports"
)

const defaultMaxBytes = 20 * 1024 * 1024

// DocumentFetcher implements ports.Downloader over plain HTTP.
type DocumentFetcher struct {
	client   *http.Client
	maxBytes int64
}

var _ ports.Downloader = (*DocumentFetcher)(nil)

// NewDocumentFetcher wires an HTTP client; maxBytes defaults to 20 MB.
func NewDocumentFetcher(client *http.Client, maxBytes int64) *DocumentFetcher {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	return &DocumentFetcher{client: client, maxBytes: maxBytes}
}

// Download fetches the filing's document, failing when it exceeds the cap.
func (f *DocumentFetcher) Download(ctx context.Context, filing domain.FilingRecord) ([]byte, error) {
	if filing.DocumentURL == "" {
		return nil, fmt.Errorf("filing %s has no document url", filing.FilingID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, filing.DocumentURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "TanshinScanner/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("document server returned %s", resp.Status)
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	if int64(len(payload)) > f.maxBytes {
		return nil, fmt.Errorf("document exceeds %d bytes", f.maxBytes)
	}

	return payload, nil
}
