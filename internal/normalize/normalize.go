// Package normalize turns the raw TDnet index payload into a validated,
// deduplicated batch of filing records. It is a pure transform: no network
// or disk I/O happens here.
package normalize

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"regexp"
	"strconv"
	"strings"
	"time"

	"TanshinScanner/internal/domain"
)

// jst is the disclosure timezone; naive feed timestamps are assumed JST.
var jst = time.FixedZone("JST", 9*60*60)

// Result is one normalized fetch cycle.
type Result struct {
	Records []domain.FilingRecord
	Skipped int
}

// Entry is a single raw index item after key extraction, before
// validation. The HTML page source builds these directly; the JSON path
// extracts them from the payload.
type Entry struct {
	IssuerCode   string
	IssuerName   string
	Title        string
	DocumentURL  string
	DisclosedAt  time.Time
	CategoryCode string
	Sequence     int // per-day document sequence, 0 when the feed omits it
}

// Normalize parses the web-API index payload ({"items":[{"TDnet":{...}}]})
// into an ordered record batch.
//
// A malformed top level is fatal and returns *domain.ParseError. A broken
// single entry is skipped and counted, never fatal. When two entries derive
// the same FilingID the later one in feed order wins: a republish is
// assumed to be a correction. Output is ordered by DisclosedAt descending,
// FilingID ascending on ties.
func Normalize(payload []byte) (*Result, error) {
	var index struct {
		Items json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(payload, &index); err != nil {
		return nil, &domain.ParseError{Reason: "payload is not valid JSON", Err: err}
	}
	if len(index.Items) == 0 {
		return nil, &domain.ParseError{Reason: "payload has no items array"}
	}

	var items []json.RawMessage
	if err := json.Unmarshal(index.Items, &items); err != nil {
		return nil, &domain.ParseError{Reason: "items is not an array", Err: err}
	}
	if items == nil {
		return nil, &domain.ParseError{Reason: "items is not an array"}
	}

	res := &Result{}
	position := map[string]int{}

	for _, raw := range items {
		entry, err := extractEntry(raw)
		if err != nil {
			res.Skipped++
			continue
		}

		rec, err := BuildRecord(entry)
		if err != nil {
			res.Skipped++
			continue
		}

		if i, ok := position[rec.FilingID]; ok {
			// later republish wins
			res.Records[i] = rec
			continue
		}
		position[rec.FilingID] = len(res.Records)
		res.Records = append(res.Records, rec)
	}

	domain.SortRecords(res.Records)
	return res, nil
}

// BuildRecord validates an entry and derives its stable filing identity.
// The id is <issuer code>-<disclosure date in JST>-<sequence>: the feed's
// own sequence when present (2 digits, wider if the feed exceeds 99),
// otherwise a 4-digit one derived from the document URL so that refetches
// produce the same id.
func BuildRecord(e Entry) (domain.FilingRecord, error) {
	code := issuerCode(e.IssuerCode)
	if code == "" {
		return domain.FilingRecord{}, fmt.Errorf("entry has no issuer code")
	}
	if strings.TrimSpace(e.Title) == "" {
		return domain.FilingRecord{}, fmt.Errorf("entry has no title")
	}
	if strings.TrimSpace(e.DocumentURL) == "" {
		return domain.FilingRecord{}, fmt.Errorf("entry has no document url")
	}
	if e.DisclosedAt.IsZero() {
		return domain.FilingRecord{}, fmt.Errorf("entry has no disclosure time")
	}

	day := e.DisclosedAt.In(jst).Format("20060102")
	var id string
	if e.Sequence > 0 {
		id = fmt.Sprintf("%s-%s-%02d", code, day, e.Sequence)
	} else {
		id = fmt.Sprintf("%s-%s-%04d", code, day, derivedSequence(e.DocumentURL))
	}

	return domain.FilingRecord{
		FilingID:    id,
		IssuerCode:  code,
		IssuerName:  strings.TrimSpace(e.IssuerName),
		DisclosedAt: e.DisclosedAt.UTC(),
		DocumentURL: strings.TrimSpace(e.DocumentURL),
		Title:       strings.TrimSpace(e.Title),
		Category:    InferCategory(e.CategoryCode, e.Title),
	}, nil
}

// extractEntry pulls known fields out of one raw item, tolerating the key
// variations the feed is known to produce.
func extractEntry(raw json.RawMessage) (Entry, error) {
	var item map[string]any
	if err := json.Unmarshal(raw, &item); err != nil {
		return Entry{}, fmt.Errorf("item is not an object: %w", err)
	}

	// items usually nest the payload under "TDnet"
	if nested, ok := item["TDnet"].(map[string]any); ok {
		item = nested
	}

	disclosed, err := ParseTime(stringField(item, "published_at", "pubdate", "date"))
	if err != nil {
		return Entry{}, err
	}

	return Entry{
		IssuerCode:   stringField(item, "code", "Code", "company_code"),
		IssuerName:   stringField(item, "company_name", "name", "Name"),
		Title:        stringField(item, "title", "Title"),
		DocumentURL:  stringField(item, "document_url", "documentUrl", "doc_url", "url"),
		DisclosedAt:  disclosed,
		CategoryCode: stringField(item, "category", "doc_type", "category_code"),
		Sequence:     intField(item, "seq", "sequence", "document_seq"),
	}, nil
}

// ParseTime accepts the timestamp shapes seen in the feed: RFC 3339 with
// offset or Z, and the naive "2006-01-02 15:04:05" form which is assumed
// to be JST. The returned time is UTC.
func ParseTime(value string) (time.Time, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}

	layouts := []string{
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, jst); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

var (
	earningsExpr = regexp.MustCompile(`(?i)(決算短信|四半期決算|通期決算|Financial Results|Earnings|Results)`)
	revisionExpr = regexp.MustCompile(`(?i)(業績予想|上方修正|下方修正|Revision of (Earnings|Forecast))`)
	dividendExpr = regexp.MustCompile(`(?i)(配当|Dividend)`)
	briefingExpr = regexp.MustCompile(`(?i)(説明会|説明資料|Briefing|Presentation Material)`)
)

// InferCategory maps an explicit feed category code when present, else
// falls back to title inference.
func InferCategory(code, title string) domain.Category {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "earnings", "kessan", "tanshin":
		return domain.CategoryEarnings
	case "revision":
		return domain.CategoryRevision
	case "dividend":
		return domain.CategoryDividend
	case "briefing":
		return domain.CategoryBriefing
	}

	switch {
	case briefingExpr.MatchString(title):
		return domain.CategoryBriefing
	case revisionExpr.MatchString(title):
		return domain.CategoryRevision
	case dividendExpr.MatchString(title):
		return domain.CategoryDividend
	case earningsExpr.MatchString(title):
		return domain.CategoryEarnings
	}
	return domain.CategoryOther
}

func stringField(item map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := item[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatInt(int64(v), 10)
		}
	}
	return ""
}

func intField(item map[string]any, keys ...string) int {
	for _, key := range keys {
		switch v := item[key].(type) {
		case float64:
			return int(v)
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return n
			}
		}
	}
	return 0
}

// issuerCode trims listing suffixes: the feed reports 5-digit codes
// ("13010") while screening and ids use the 4-digit form.
func issuerCode(raw string) string {
	code := strings.TrimSpace(raw)
	if len(code) == 5 && strings.HasSuffix(code, "0") {
		code = code[:4]
	}
	return code
}

// derivedSequence spreads distinct same-issuer same-day documents over a
// 4-digit space; two digits would make accidental id collisions (and a
// silently dropped filing) far too likely.
func derivedSequence(documentURL string) int {
	h := fnv.New32a()
	h.Write([]byte(strings.TrimSpace(documentURL)))
	return int(h.Sum32() % 10000)
}
