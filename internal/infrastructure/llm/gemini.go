// Package llm implements the external summarizer boundary on top of the
// Gemini generateContent API.
package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"TanshinScanner/internal/config"
	"TanshinScanner/internal/domain"
	"TanshinScanner/internal/ports"
)

const extractionPrompt = `You are given a Japanese corporate earnings filing (tanshin) as a PDF.
Extract the headline figures and respond with a single JSON object:
{
  "summary_text": "3-5 sentence plain-language summary of results and guidance",
  "metrics": {
    "revenue": <number or null>,
    "operating_income": <number or null>,
    "ordinary_income": <number or null>,
    "net_income": <number or null>,
    "eps": <number or null>,
    "dividend_per_share": <number or null>,
    "fiscal_period": "<e.g. FY2024 Q1>",
    "guidance_revised": <true/false/null>
  }
}
Numbers are in the filing's reported unit (millions of yen unless stated).
Respond with JSON only.`

// GeminiClient implements ports.Summarizer against the Gemini REST API.
// The filing PDF is passed inline; the model answers in JSON mode.
type GeminiClient struct {
	endpoint string
	model    string
	apiKey   string
	client   *http.Client
}

var _ ports.Summarizer = (*GeminiClient)(nil)

// NewGeminiClient builds a client from configuration. Per-call deadlines
// come from the caller's context, so no client timeout is set here.
func NewGeminiClient(cfg config.GeminiConfig) *GeminiClient {
	return &GeminiClient{
		endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		client:   &http.Client{},
	}
}

// Enabled reports whether an API key is configured. Summarization is
// refused up front when it is not.
func (c *GeminiClient) Enabled() bool {
	return c.apiKey != ""
}

// ModelVersion identifies the summarizer configuration; it is part of the
// cache key, so changing the model re-summarizes without losing history.
func (c *GeminiClient) ModelVersion() string {
	return c.model
}

// Summarize sends the filing document to Gemini and parses the structured
// reply.
func (c *GeminiClient) Summarize(ctx context.Context, filing domain.FilingRecord, document []byte) (domain.Extraction, error) {
	if !c.Enabled() {
		return domain.Extraction{}, fmt.Errorf("gemini api key is not configured")
	}
	if len(document) == 0 {
		return domain.Extraction{}, fmt.Errorf("no document content for %s", filing.FilingID)
	}

	body, err := json.Marshal(map[string]any{
		"contents": []map[string]any{{
			"parts": []map[string]any{
				{"text": fmt.Sprintf("%s\n\nFiling title: %s\nIssuer: %s (%s)",
					extractionPrompt, filing.Title, filing.IssuerName, filing.IssuerCode)},
				{"inline_data": map[string]string{
					"mime_type": "application/pdf",
					"data":      base64.StdEncoding.EncodeToString(document),
				}},
			},
		}},
		"generationConfig": map[string]any{
			"response_mime_type": "application/json",
		},
	})
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("marshal gemini payload: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.endpoint, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("call gemini: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.Extraction{}, fmt.Errorf("gemini error %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	var reply struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return domain.Extraction{}, fmt.Errorf("decode gemini response: %w", err)
	}
	if len(reply.Candidates) == 0 || len(reply.Candidates[0].Content.Parts) == 0 {
		return domain.Extraction{}, fmt.Errorf("gemini returned no candidates")
	}

	return parseExtraction(reply.Candidates[0].Content.Parts[0].Text)
}

// parseExtraction validates the model's JSON answer. Malformed output is
// an upstream failure, surfaced (and retried later) like any other.
func parseExtraction(text string) (domain.Extraction, error) {
	var payload struct {
		SummaryText string          `json:"summary_text"`
		Metrics     json.RawMessage `json:"metrics"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return domain.Extraction{}, fmt.Errorf("gemini answer is not valid JSON: %w", err)
	}
	if strings.TrimSpace(payload.SummaryText) == "" {
		return domain.Extraction{}, fmt.Errorf("gemini answer has no summary_text")
	}

	fields := payload.Metrics
	if len(fields) == 0 {
		fields = json.RawMessage("{}")
	}

	return domain.Extraction{
		Fields:      fields,
		SummaryText: payload.SummaryText,
	}, nil
}
