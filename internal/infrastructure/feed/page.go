package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"TanshinScanner/internal/domain"
	"TanshinScanner/internal/normalize"
	"TanshinScanner/internal/ports"
)

// maxListPages bounds pagination on the daily list; TDnet serves at most a
// few thousand disclosures per day at 100 rows a page.
const maxListPages = 40

var jst = time.FixedZone("JST", 9*60*60)

// PageSource reads the official TDnet daily disclosure pages
// (I_list_NNN_YYYYMMDD.html). It is the fallback when the JSON mirror is
// unavailable and produces the same normalized records.
type PageSource struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
	now     func() time.Time
}

var _ ports.IndexSource = (*PageSource)(nil)

// NewPageSource wires an HTTP client against the daily list base URL.
func NewPageSource(baseURL string, client *http.Client, log *slog.Logger) *PageSource {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &PageSource{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
		logger:  log,
		now:     time.Now,
	}
}

// FetchIndex walks today's list pages and returns the merged batch,
// deduplicated and ordered like the JSON path.
func (s *PageSource) FetchIndex(ctx context.Context) (*normalize.Result, error) {
	day := s.now().In(jst)

	res := &normalize.Result{}
	position := map[string]int{}

	for page := 1; page <= maxListPages; page++ {
		url := fmt.Sprintf("%s/I_list_%03d_%s.html", s.baseURL, page, day.Format("20060102"))

		doc, found, err := s.fetchDocument(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		if !found {
			break
		}

		rows := s.extractRows(doc, day)
		if len(rows) == 0 {
			break
		}

		for _, entry := range rows {
			rec, err := normalize.BuildRecord(entry)
			if err != nil {
				res.Skipped++
				continue
			}
			if i, ok := position[rec.FilingID]; ok {
				res.Records[i] = rec
				continue
			}
			position[rec.FilingID] = len(res.Records)
			res.Records = append(res.Records, rec)
		}
	}

	domain.SortRecords(res.Records)

	if res.Skipped > 0 && s.logger != nil {
		s.logger.Warn("list rows skipped", "skipped", res.Skipped, "kept", len(res.Records))
	}

	return res, nil
}

// fetchDocument returns found=false on 404, which ends pagination.
func (s *PageSource) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("daily list returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("parse document: %w", err)
	}

	return doc, true, nil
}

func (s *PageSource) extractRows(doc *goquery.Document, day time.Time) []normalize.Entry {
	var entries []normalize.Entry

	doc.Find("table tr").Each(func(i int, row *goquery.Selection) {
		entry, ok := parseRow(row, s.baseURL, day)
		if !ok {
			return
		}
		entries = append(entries, entry)
	})

	return entries
}

// parseRow reads one disclosure row: time, issuer code, issuer name, and
// the linked document title.
func parseRow(row *goquery.Selection, baseURL string, day time.Time) (normalize.Entry, bool) {
	timeText := strings.TrimSpace(row.Find("td.kjTime").First().Text())
	code := strings.TrimSpace(row.Find("td.kjCode").First().Text())
	name := strings.TrimSpace(row.Find("td.kjName").First().Text())

	link := row.Find("td.kjTitle a").First()
	title := strings.TrimSpace(link.Text())
	href, _ := link.Attr("href")

	if timeText == "" || code == "" || title == "" || href == "" {
		return normalize.Entry{}, false
	}

	clock, err := time.Parse("15:04", timeText)
	if err != nil {
		return normalize.Entry{}, false
	}
	disclosed := time.Date(day.Year(), day.Month(), day.Day(),
		clock.Hour(), clock.Minute(), 0, 0, jst)

	if !strings.HasPrefix(href, "http") {
		href = baseURL + "/" + strings.TrimPrefix(href, "./")
	}

	return normalize.Entry{
		IssuerCode:  code,
		IssuerName:  name,
		Title:       title,
		DocumentURL: href,
		DisclosedAt: disclosed,
	}, true
}
