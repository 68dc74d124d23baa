package storage

import (
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS summaries (
    filing_id     TEXT NOT NULL,
    model_version TEXT NOT NULL,
    extracted_at  TEXT NOT NULL,
    fields_json   TEXT NOT NULL,
    summary_text  TEXT NOT NULL,
    PRIMARY KEY (filing_id, model_version)
);
CREATE INDEX IF NOT EXISTS idx_summaries_filing ON summaries(filing_id);
`

// OpenPostgres connects the cache to a Postgres database, for
// installations that keep the cache on a shared server instead of a
// local file. Semantics are identical to the SQLite backend.
func OpenPostgres(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if _, err := db.Exec(postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}, nil
}
