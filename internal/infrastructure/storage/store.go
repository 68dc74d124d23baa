// Package storage implements the durable summary cache over database/sql,
// with SQLite as the default backend and Postgres as an alternative.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"TanshinScanner/internal/domain"
	"TanshinScanner/internal/ports"
)

// Store persists summary records keyed by (filing_id, model_version).
// Writes go through transactions so readers never observe a partial row.
type Store struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var _ ports.SummaryStore = (*Store)(nil)

// Get returns the cached record, or (nil, nil) when the key is absent.
func (s *Store) Get(ctx context.Context, filingID, modelVersion string) (*domain.SummaryRecord, error) {
	query, args, err := s.sb.
		Select("filing_id", "model_version", "extracted_at", "fields_json", "summary_text").
		From("summaries").
		Where(sq.Eq{"filing_id": filingID, "model_version": modelVersion}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get query: %w", err)
	}

	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get summary: %w", err)
	}
	return rec, nil
}

// Put inserts a record. The cache is append-only per key: an identical
// re-write is a no-op success, differing content fails with
// *domain.ConflictError.
func (s *Store) Put(ctx context.Context, rec domain.SummaryRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put summary: begin tx: %w", err)
	}
	defer tx.Rollback() // no-op if committed

	query, args, err := s.sb.
		Select("filing_id", "model_version", "extracted_at", "fields_json", "summary_text").
		From("summaries").
		Where(sq.Eq{"filing_id": rec.FilingID, "model_version": rec.ModelVersion}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build lookup query: %w", err)
	}

	existing, err := scanRecord(tx.QueryRowContext(ctx, query, args...))
	switch {
	case err == nil:
		if existing.ContentEquals(rec) {
			return tx.Commit()
		}
		return &domain.ConflictError{FilingID: rec.FilingID, ModelVersion: rec.ModelVersion}
	case errors.Is(err, sql.ErrNoRows):
		// fall through to insert
	default:
		return fmt.Errorf("put summary: lookup existing: %w", err)
	}

	fields := rec.Fields
	if len(fields) == 0 {
		fields = json.RawMessage("{}")
	}

	query, args, err = s.sb.
		Insert("summaries").
		Columns("filing_id", "model_version", "extracted_at", "fields_json", "summary_text").
		Values(rec.FilingID, rec.ModelVersion, rec.ExtractedAt.UTC().Format(time.RFC3339Nano),
			string(fields), rec.SummaryText).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert query: %w", err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("put summary: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put summary: commit: %w", err)
	}
	return nil
}

// Evict deletes one cache entry. Missing keys are not an error: eviction
// is user-initiated and idempotent.
func (s *Store) Evict(ctx context.Context, filingID, modelVersion string) error {
	query, args, err := s.sb.
		Delete("summaries").
		Where(sq.Eq{"filing_id": filingID, "model_version": modelVersion}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build evict query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("evict summary: %w", err)
	}
	return nil
}

// List enumerates all cached records for maintenance tooling, newest
// extraction first.
func (s *Store) List(ctx context.Context) ([]domain.SummaryRecord, error) {
	query, args, err := s.sb.
		Select("filing_id", "model_version", "extracted_at", "fields_json", "summary_text").
		From("summaries").
		OrderBy("extracted_at DESC", "filing_id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	defer rows.Close()

	records := []domain.SummaryRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("list summaries: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}

	return records, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.SummaryRecord, error) {
	var (
		rec       domain.SummaryRecord
		extracted string
		fields    string
	)
	if err := row.Scan(&rec.FilingID, &rec.ModelVersion, &extracted, &fields, &rec.SummaryText); err != nil {
		return nil, err
	}

	t, err := time.Parse(time.RFC3339Nano, extracted)
	if err != nil {
		return nil, fmt.Errorf("parse extracted_at %q: %w", extracted, err)
	}
	rec.ExtractedAt = t
	rec.Fields = json.RawMessage(fields)

	return &rec, nil
}
