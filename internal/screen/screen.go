// Package screen filters the filing catalog by user-chosen criteria.
// Screening is pure: it never touches I/O and never mutates the catalog,
// so it can be re-run on every criteria change.
package screen

import (
	"strings"
	"time"

	"TanshinScanner/internal/domain"
)

// DateRange bounds DisclosedAt inclusively. A zero bound leaves that side
// open.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Criteria is one screening configuration. Every field is independently
// optional; unset means no constraint, and set fields combine with AND.
// An empty keyword is treated as unset, not as "match nothing".
type Criteria struct {
	IssuerCodes []string
	Categories  []domain.Category
	DateRange   *DateRange
	Keyword     string
}

// Apply returns the subsequence of catalog matching the criteria,
// preserving the catalog's order. An empty catalog or a criteria set
// matching nothing yields an empty result, never an error.
func Apply(catalog []domain.FilingRecord, c Criteria) []domain.FilingRecord {
	codes := toSet(c.IssuerCodes)

	categories := map[domain.Category]struct{}{}
	for _, cat := range c.Categories {
		categories[cat] = struct{}{}
	}

	keyword := strings.ToLower(strings.TrimSpace(c.Keyword))

	out := make([]domain.FilingRecord, 0, len(catalog))
	for _, rec := range catalog {
		if len(codes) > 0 {
			if _, ok := codes[rec.IssuerCode]; !ok {
				continue
			}
		}
		if len(categories) > 0 {
			if _, ok := categories[rec.Category]; !ok {
				continue
			}
		}
		if c.DateRange != nil && !inRange(rec.DisclosedAt, *c.DateRange) {
			continue
		}
		if keyword != "" && !matchesKeyword(rec, keyword) {
			continue
		}
		out = append(out, rec)
	}

	return out
}

func inRange(t time.Time, r DateRange) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}

// matchesKeyword checks title and issuer name, case-insensitively.
func matchesKeyword(rec domain.FilingRecord, keyword string) bool {
	return strings.Contains(strings.ToLower(rec.Title), keyword) ||
		strings.Contains(strings.ToLower(rec.IssuerName), keyword)
}

func toSet(values []string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}
