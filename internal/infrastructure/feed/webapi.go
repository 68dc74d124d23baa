// Package feed implements the index feed sources: the TDnet web-API JSON
// mirror and the official daily disclosure page.
package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"TanshinScanner/internal/config"
	"TanshinScanner/internal/normalize"
	"TanshinScanner/internal/ports"
)

const (
	userAgent = "TanshinScanner/1.0"

	// index payloads are small; anything bigger is a broken upstream
	maxIndexBytes = 8 * 1024 * 1024
)

// WebAPISource pulls the JSON index from the TDnet web-API mirror. With a
// 4-digit issuer code configured it uses the per-issuer endpoint,
// otherwise the recent list.
type WebAPISource struct {
	baseURL    string
	issuerCode string
	limit      int
	client     *http.Client
	logger     *slog.Logger
}

var _ ports.IndexSource = (*WebAPISource)(nil)

// NewWebAPISource wires an HTTP client; limit defaults to 200.
func NewWebAPISource(cfg config.FeedConfig, client *http.Client, log *slog.Logger) *WebAPISource {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = 200
	}
	return &WebAPISource{
		baseURL:    cfg.BaseURL,
		issuerCode: cfg.IssuerCode,
		limit:      limit,
		client:     client,
		logger:     log,
	}
}

// FetchIndex downloads the current index payload and normalizes it.
func (s *WebAPISource) FetchIndex(ctx context.Context) (*normalize.Result, error) {
	url := fmt.Sprintf("%s/recent.json?limit=%d", s.baseURL, s.limit)
	if isIssuerCode(s.issuerCode) {
		url = fmt.Sprintf("%s/%s.json?limit=%d", s.baseURL, s.issuerCode, s.limit)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch index: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("index feed returned %s", resp.Status)
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxIndexBytes))
	if err != nil {
		return nil, fmt.Errorf("read index payload: %w", err)
	}

	res, err := normalize.Normalize(payload)
	if err != nil {
		return nil, err
	}

	if res.Skipped > 0 && s.logger != nil {
		s.logger.Warn("index entries skipped", "skipped", res.Skipped, "kept", len(res.Records))
	}

	return res, nil
}

func isIssuerCode(code string) bool {
	if len(code) != 4 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
