package domain

import "sort"

// Catalog is the append-only set of filings observed across fetch cycles.
// A record, once merged, keeps its original field values under its
// FilingID. Entries that drop out of the feed stay in the catalog:
// absence means "not re-confirmed", not retracted.
type Catalog struct {
	records []FilingRecord
	byID    map[string]int
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{byID: map[string]int{}}
}

// Merge folds a normalized batch into the catalog and reports how many
// records were new. Already-observed ids are left untouched.
func (c *Catalog) Merge(records []FilingRecord) int {
	added := 0
	for _, rec := range records {
		if _, ok := c.byID[rec.FilingID]; ok {
			continue
		}
		c.byID[rec.FilingID] = len(c.records)
		c.records = append(c.records, rec)
		added++
	}

	if added > 0 {
		SortRecords(c.records)
		for i, rec := range c.records {
			c.byID[rec.FilingID] = i
		}
	}

	return added
}

// Records returns the catalog in display order. The returned slice is a
// copy; the catalog is never handed out mutably.
func (c *Catalog) Records() []FilingRecord {
	out := make([]FilingRecord, len(c.records))
	copy(out, c.records)
	return out
}

// Lookup returns the record for a filing id, if it has been observed.
func (c *Catalog) Lookup(filingID string) (FilingRecord, bool) {
	i, ok := c.byID[filingID]
	if !ok {
		return FilingRecord{}, false
	}
	return c.records[i], true
}

// Len reports the number of observed filings.
func (c *Catalog) Len() int { return len(c.records) }

// SortRecords orders records by DisclosedAt descending, ties broken by
// FilingID ascending. This is the display order everywhere.
func SortRecords(records []FilingRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].DisclosedAt.Equal(records[j].DisclosedAt) {
			return records[i].DisclosedAt.After(records[j].DisclosedAt)
		}
		return records[i].FilingID < records[j].FilingID
	})
}
