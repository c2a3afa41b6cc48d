// Package store implements the durable record store: a SQLite-backed
// mapping from source path to MediaRecord, queryable by status/kind and
// capable of producing aggregate statistics for the live dashboard.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// MediaKind classifies a record as a movie, a television episode, or
// unresolved.
type MediaKind string

const (
	KindMovie   MediaKind = "movie"
	KindTV      MediaKind = "tv"
	KindUnknown MediaKind = "unknown"
)

// Status is the lifecycle state of a MediaRecord.
type Status string

const (
	StatusPending Status = "pending"
	StatusMatched Status = "matched"
	StatusLinked  Status = "linked"
	StatusFailed  Status = "failed"
	StatusManual  Status = "manual"
	StatusIgnored Status = "ignored"
)

// MediaRecord is one row keyed by source path, per the data model.
type MediaRecord struct {
	ID int64

	SourcePath     string
	SourceFilename string
	FileSize       int64

	ParsedTitle   *string
	ParsedYear    *int
	ParsedSeason  *int
	ParsedEpisode *int
	MediaKind     MediaKind

	CatalogID        *string
	CatalogTitle     *string
	CatalogYear      *int
	CatalogPosterURL *string

	DestinationPath *string
	Status          Status
	ErrorMessage    *string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	ProcessedAt *time.Time
}

// Store wraps a SQLite connection pool with the record-store operations.
type Store struct {
	db *sql.DB
}

// Open connects to the SQLite database at path (or ":memory:" for tests),
// enables WAL mode for single-writer/many-reader concurrency, and applies
// the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS media_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source_path TEXT NOT NULL UNIQUE,
	source_filename TEXT NOT NULL,
	file_size INTEGER NOT NULL,
	parsed_title TEXT,
	parsed_year INTEGER,
	parsed_season INTEGER,
	parsed_episode INTEGER,
	media_kind TEXT NOT NULL,
	catalog_id TEXT,
	catalog_title TEXT,
	catalog_year INTEGER,
	catalog_poster_url TEXT,
	destination_path TEXT,
	status TEXT NOT NULL,
	error_message TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	processed_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_media_records_status ON media_records(status);
CREATE INDEX IF NOT EXISTS idx_media_records_kind ON media_records(media_kind);
CREATE INDEX IF NOT EXISTS idx_media_records_catalog_id ON media_records(catalog_id);
`

func (s *Store) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}

// BeginRecordTx opens the short, per-record transaction each worker in the
// ingestion engine owns for the duration of a single file's processing.
func (s *Store) BeginRecordTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}
