package normalize

import (
	"errors"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"TanshinScanner/internal/domain"
)

func payload(items ...string) []byte {
	return []byte(`{"items":[` + strings.Join(items, ",") + `]}`)
}

func item(code, title, url, published string, seq int) string {
	return `{"TDnet":{"code":"` + code + `","company_name":"Test Co","title":"` + title +
		`","document_url":"` + url + `","published_at":"` + published +
		`","seq":` + strconv.Itoa(seq) + `}}`
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	res, err := Normalize(payload(
		item("13010", "Q1 results", "https://example.org/a.pdf", "2024-05-01T10:00:00+09:00", 1),
		item("99840", "Annual results", "https://example.org/b.pdf", "2024-05-02T15:30:00+09:00", 1),
	))
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}

	if res.Skipped != 0 {
		t.Fatalf("expected no skipped entries, got %d", res.Skipped)
	}
	if len(res.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(res.Records))
	}

	// newest first
	if res.Records[0].FilingID != "9984-20240502-01" {
		t.Fatalf("unexpected first id: %s", res.Records[0].FilingID)
	}
	if res.Records[1].FilingID != "1301-20240501-01" {
		t.Fatalf("unexpected second id: %s", res.Records[1].FilingID)
	}

	rec := res.Records[1]
	if rec.IssuerCode != "1301" {
		t.Fatalf("unexpected issuer code: %s", rec.IssuerCode)
	}
	if rec.IssuerName != "Test Co" {
		t.Fatalf("unexpected issuer name: %s", rec.IssuerName)
	}
	if !rec.DisclosedAt.Equal(time.Date(2024, 5, 1, 1, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected disclosed time: %v", rec.DisclosedAt)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	t.Parallel()

	raw := payload(
		item("13010", "Q1 results", "https://example.org/a.pdf", "2024-05-01T10:00:00+09:00", 1),
		item("99840", "Annual results", "https://example.org/b.pdf", "2024-05-02T15:30:00+09:00", 1),
		item("13010", "Dividend notice", "https://example.org/c.pdf", "2024-05-01T11:00:00+09:00", 2),
	)

	first, err := Normalize(raw)
	if err != nil {
		t.Fatalf("first Normalize error: %v", err)
	}
	second, err := Normalize(raw)
	if err != nil {
		t.Fatalf("second Normalize error: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("Normalize is not idempotent:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

// Two raw entries deriving the same filing id keep only the later one:
// a republish is assumed to be a correction.
func TestNormalizeDedupLaterWins(t *testing.T) {
	t.Parallel()

	res, err := Normalize(payload(
		item("13010", "Q1 results (draft)", "https://example.org/a.pdf", "2024-05-01T10:00:00+09:00", 1),
		item("13010", "Q1 results (final)", "https://example.org/a2.pdf", "2024-05-01T12:00:00+09:00", 1),
	))
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}

	if len(res.Records) != 1 {
		t.Fatalf("expected 1 record after dedup, got %d", len(res.Records))
	}
	rec := res.Records[0]
	if rec.FilingID != "1301-20240501-01" {
		t.Fatalf("unexpected id: %s", rec.FilingID)
	}
	if rec.Title != "Q1 results (final)" {
		t.Fatalf("later entry should win, got title %q", rec.Title)
	}
}

func TestNormalizeOrderingTieBreak(t *testing.T) {
	t.Parallel()

	res, err := Normalize(payload(
		item("99840", "B filing", "https://example.org/b.pdf", "2024-05-01T10:00:00+09:00", 1),
		item("13010", "A filing", "https://example.org/a.pdf", "2024-05-01T10:00:00+09:00", 1),
	))
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}

	if len(res.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(res.Records))
	}
	// equal timestamps: filing id ascending
	if res.Records[0].FilingID != "1301-20240501-01" || res.Records[1].FilingID != "9984-20240501-01" {
		t.Fatalf("unexpected tie-break order: %s, %s", res.Records[0].FilingID, res.Records[1].FilingID)
	}
}

func TestNormalizeSkipsBrokenEntries(t *testing.T) {
	t.Parallel()

	res, err := Normalize(payload(
		item("13010", "Good filing", "https://example.org/a.pdf", "2024-05-01T10:00:00+09:00", 1),
		`{"TDnet":{"title":"no code","document_url":"https://example.org/x.pdf","published_at":"2024-05-01T10:00:00+09:00"}}`,
		`{"TDnet":{"code":"99840","title":"bad time","document_url":"https://example.org/y.pdf","published_at":"someday"}}`,
		`42`,
	))
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}

	if len(res.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(res.Records))
	}
	if res.Skipped != 3 {
		t.Fatalf("expected 3 skipped entries, got %d", res.Skipped)
	}
}

func TestNormalizeMalformedPayload(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		payload string
	}{
		{"not json", `{{{`},
		{"no items", `{"result":"ok"}`},
		{"items not array", `{"items":"nope"}`},
		{"items null", `{"items":null}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Normalize([]byte(tc.payload))
			var parseErr *domain.ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("expected ParseError, got %v", err)
			}
		})
	}
}

func TestBuildRecordDerivedSequenceIsStable(t *testing.T) {
	t.Parallel()

	entry := Entry{
		IssuerCode:  "13010",
		IssuerName:  "Test Co",
		Title:       "Q1 results",
		DocumentURL: "https://example.org/a.pdf",
		DisclosedAt: time.Date(2024, 5, 1, 1, 0, 0, 0, time.UTC),
	}

	first, err := BuildRecord(entry)
	if err != nil {
		t.Fatalf("BuildRecord error: %v", err)
	}
	second, err := BuildRecord(entry)
	if err != nil {
		t.Fatalf("BuildRecord error: %v", err)
	}

	if first.FilingID != second.FilingID {
		t.Fatalf("derived id not stable: %s vs %s", first.FilingID, second.FilingID)
	}
	// derived sequences use a 4-digit space
	if !regexp.MustCompile(`^1301-20240501-\d{4}$`).MatchString(first.FilingID) {
		t.Fatalf("unexpected id shape: %s", first.FilingID)
	}
}

func TestBuildRecordFeedSequenceNotTruncated(t *testing.T) {
	t.Parallel()

	entry := Entry{
		IssuerCode:  "13010",
		Title:       "Q1 results",
		DocumentURL: "https://example.org/a.pdf",
		DisclosedAt: time.Date(2024, 5, 1, 1, 0, 0, 0, time.UTC),
		Sequence:    123,
	}

	rec, err := BuildRecord(entry)
	if err != nil {
		t.Fatalf("BuildRecord error: %v", err)
	}
	if rec.FilingID != "1301-20240501-123" {
		t.Fatalf("feed sequence must be kept verbatim, got %s", rec.FilingID)
	}

	entry.Sequence = 7
	rec, err = BuildRecord(entry)
	if err != nil {
		t.Fatalf("BuildRecord error: %v", err)
	}
	if rec.FilingID != "1301-20240501-07" {
		t.Fatalf("small feed sequences stay 2 digits, got %s", rec.FilingID)
	}
}

func TestParseTime(t *testing.T) {
	t.Parallel()

	utc, err := ParseTime("2024-05-01T10:00:00Z")
	if err != nil {
		t.Fatalf("ParseTime error: %v", err)
	}
	if !utc.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected time: %v", utc)
	}

	// naive timestamps are JST
	naive, err := ParseTime("2024-05-01 10:00:00")
	if err != nil {
		t.Fatalf("ParseTime error: %v", err)
	}
	if !naive.Equal(time.Date(2024, 5, 1, 1, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected time: %v", naive)
	}

	if _, err := ParseTime("someday"); err == nil {
		t.Fatal("expected error for unparseable timestamp")
	}
	if _, err := ParseTime(""); err == nil {
		t.Fatal("expected error for empty timestamp")
	}
}

func TestInferCategory(t *testing.T) {
	t.Parallel()

	cases := []struct {
		code  string
		title string
		want  domain.Category
	}{
		{"", "2025年3月期 決算短信〔日本基準〕（連結）", domain.CategoryEarnings},
		{"", "Summary of Financial Results for FY2024", domain.CategoryEarnings},
		{"", "業績予想の修正に関するお知らせ", domain.CategoryRevision},
		{"", "配当予想の修正について", domain.CategoryDividend},
		{"", "決算説明会資料", domain.CategoryBriefing},
		{"", "新店舗オープンのお知らせ", domain.CategoryOther},
		{"kessan", "whatever", domain.CategoryEarnings},
		{"dividend", "whatever", domain.CategoryDividend},
	}

	for _, tc := range cases {
		if got := InferCategory(tc.code, tc.title); got != tc.want {
			t.Errorf("InferCategory(%q, %q) = %s, want %s", tc.code, tc.title, got, tc.want)
		}
	}
}
