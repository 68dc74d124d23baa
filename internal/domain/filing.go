package domain

import (
	"bytes"
	"encoding/json"
	"reflect"
	"time"
)

// Category enumerates the filing types recognized in the disclosure index.
type Category string

const (
	CategoryEarnings Category = "earnings"
	CategoryRevision Category = "revision"
	CategoryDividend Category = "dividend"
	CategoryBriefing Category = "briefing"
	CategoryOther    Category = "other"
)

// FilingRecord is one disclosed document from the filings index.
// FilingID uniquely determines every other field; a record is never
// mutated once observed.
type FilingRecord struct {
	FilingID    string
	IssuerCode  string
	IssuerName  string
	DisclosedAt time.Time // UTC
	DocumentURL string
	Title       string
	Category    Category
}

// Extraction is the raw output of one summarizer call before it is
// stamped into a SummaryRecord.
type Extraction struct {
	Fields      json.RawMessage
	SummaryText string
}

// SummaryRecord is the AI-derived extraction persisted for one filing.
// At most one record exists per (FilingID, ModelVersion); a changed model
// version is a new entry, not an update. Fields is stored opaquely, its
// schema belongs to the summarizer.
type SummaryRecord struct {
	FilingID     string
	ModelVersion string
	ExtractedAt  time.Time
	Fields       json.RawMessage
	SummaryText  string
}

// ContentEquals reports whether two records carry the same extraction
// payload for the same cache key. ExtractedAt is excluded: re-writing
// identical content at a later time is still a no-op.
func (r SummaryRecord) ContentEquals(other SummaryRecord) bool {
	if r.FilingID != other.FilingID || r.ModelVersion != other.ModelVersion {
		return false
	}
	if r.SummaryText != other.SummaryText {
		return false
	}
	return jsonEqual(r.Fields, other.Fields)
}

// jsonEqual compares two raw payloads structurally so that formatting
// differences do not count as a conflict.
func jsonEqual(a, b json.RawMessage) bool {
	if len(bytes.TrimSpace(a)) == 0 && len(bytes.TrimSpace(b)) == 0 {
		return true
	}

	var av, bv any
	if err := json.Unmarshal(a, &av); err != nil {
		return bytes.Equal(a, b)
	}
	if err := json.Unmarshal(b, &bv); err != nil {
		return false
	}

	return reflect.DeepEqual(av, bv)
}
