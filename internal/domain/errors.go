package domain

import "fmt"

// ParseError reports a structurally malformed index payload. The fetch
// cycle is abandoned and the catalog keeps its previous state.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse index: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("parse index: %s", e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SummarizerError reports a failed external summarizer call. Failures are
// never cached, so the next user action retries from scratch.
type SummarizerError struct {
	FilingID string
	Err      error
}

func (e *SummarizerError) Error() string {
	return fmt.Sprintf("summarize %s: %v", e.FilingID, e.Err)
}

func (e *SummarizerError) Unwrap() error { return e.Err }

// CacheError reports a persistence failure. When a record was already
// computed it is handed back to the caller alongside this error.
type CacheError struct {
	Op  string
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("summary cache %s: %v", e.Op, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }

// ConflictError reports an attempted overwrite of an immutable cache entry
// with different content. This indicates a model or versioning bug and is
// never swallowed.
type ConflictError struct {
	FilingID     string
	ModelVersion string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("summary for %s@%s already cached with different content", e.FilingID, e.ModelVersion)
}
