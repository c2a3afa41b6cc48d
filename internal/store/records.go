package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a lookup finds no matching record.
var ErrNotFound = errors.New("store: record not found")

// Insert creates a new pending record for a source path first observed
// during a scan. Re-insertion of an existing source_path collapses to an
// update, per invariant 1.
func (s *Store) Insert(ctx context.Context, tx *sql.Tx, r *MediaRecord) error {
	q := queryer(s, tx)
	row := q.QueryRowContext(ctx, `
		INSERT INTO media_records (
			source_path, source_filename, file_size,
			parsed_title, parsed_year, parsed_season, parsed_episode, media_kind,
			catalog_id, catalog_title, catalog_year, catalog_poster_url,
			destination_path, status, error_message,
			created_at, updated_at, processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP, ?)
		ON CONFLICT(source_path) DO UPDATE SET
			source_filename = excluded.source_filename,
			file_size = excluded.file_size,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id, created_at, updated_at`,
		r.SourcePath, r.SourceFilename, r.FileSize,
		r.ParsedTitle, r.ParsedYear, r.ParsedSeason, r.ParsedEpisode, string(r.MediaKind),
		r.CatalogID, r.CatalogTitle, r.CatalogYear, r.CatalogPosterURL,
		r.DestinationPath, string(r.Status), r.ErrorMessage,
		r.ProcessedAt,
	)
	if err := row.Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return fmt.Errorf("insert media record: %w", err)
	}
	return nil
}

// Update persists all mutable fields of r. updated_at always advances,
// preserving invariant 4 (monotonic non-decreasing per record).
func (s *Store) Update(ctx context.Context, tx *sql.Tx, r *MediaRecord) error {
	q := queryer(s, tx)
	row := q.QueryRowContext(ctx, `
		UPDATE media_records SET
			parsed_title = ?, parsed_year = ?, parsed_season = ?, parsed_episode = ?, media_kind = ?,
			catalog_id = ?, catalog_title = ?, catalog_year = ?, catalog_poster_url = ?,
			destination_path = ?, status = ?, error_message = ?,
			updated_at = CURRENT_TIMESTAMP, processed_at = ?
		WHERE id = ?
		RETURNING updated_at`,
		r.ParsedTitle, r.ParsedYear, r.ParsedSeason, r.ParsedEpisode, string(r.MediaKind),
		r.CatalogID, r.CatalogTitle, r.CatalogYear, r.CatalogPosterURL,
		r.DestinationPath, string(r.Status), r.ErrorMessage,
		r.ProcessedAt, r.ID,
	)
	if err := row.Scan(&r.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("update media record: %w", err)
	}
	return nil
}

// Delete removes a record by id. Callers are responsible for unlinking the
// destination and pruning ancestors first (invariant 5) — Delete only
// removes the row.
func (s *Store) Delete(ctx context.Context, tx *sql.Tx, id int64) error {
	q := queryer(s, tx)
	res, err := q.ExecContext(ctx, `DELETE FROM media_records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete media record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// FindBySourcePath looks up a record by its unique source path.
func (s *Store) FindBySourcePath(ctx context.Context, tx *sql.Tx, path string) (*MediaRecord, error) {
	q := queryer(s, tx)
	row := q.QueryRowContext(ctx, selectColumns+` WHERE source_path = ?`, path)
	return scanRecord(row)
}

// FindByID looks up a record by its primary key.
func (s *Store) FindByID(ctx context.Context, id int64) (*MediaRecord, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	return scanRecord(row)
}

// QueryParams filters and paginates Query results.
type QueryParams struct {
	Status        *Status
	Kind          *MediaKind
	TitleContains string
	Limit         int
	Offset        int
}

// Query returns records matching the given filters, ordered by created_at
// descending, the order callers should present newest-first.
func (s *Store) Query(ctx context.Context, p QueryParams) ([]*MediaRecord, error) {
	where, args := p.whereClause()
	limit := p.Limit
	if limit <= 0 {
		limit = 100
	}
	sqlStr := selectColumns + where + " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, p.Offset)

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query media records: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// GroupByMedia returns records ordered so callers can fold them into
// per-title groups, with TV episodes bucketed by season.
func (s *Store) GroupByMedia(ctx context.Context, p QueryParams) ([]*MediaRecord, error) {
	where, args := p.whereClause()
	sqlStr := selectColumns + where + " ORDER BY catalog_title, parsed_season, parsed_episode"

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("group media records: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (p QueryParams) whereClause() (string, []any) {
	var clauses []string
	var args []any
	if p.Status != nil {
		clauses = append(clauses, "status = ?")
		args = append(args, string(*p.Status))
	}
	if p.Kind != nil {
		clauses = append(clauses, "media_kind = ?")
		args = append(args, string(*p.Kind))
	}
	if p.TitleContains != "" {
		clauses = append(clauses, "(parsed_title LIKE ? OR catalog_title LIKE ?)")
		needle := "%" + p.TitleContains + "%"
		args = append(args, needle, needle)
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// Stats summarizes the whole record set for the live dashboard.
type Stats struct {
	TotalFiles    int
	ByStatus      map[Status]int
	ByKind        map[MediaKind]int
	ByStatusKind  map[string]int // "status:kind" -> count
	SeriesTotal   int            // distinct catalog_id where kind=tv
	SeriesLinked  int            // distinct catalog_id where kind=tv and >=1 linked episode
}

// Stats computes the aggregate counts required by the dashboard and by the
// scan_completed/stats_updated event payloads.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{
		ByStatus:     make(map[Status]int),
		ByKind:       make(map[MediaKind]int),
		ByStatusKind: make(map[string]int),
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM media_records`).Scan(&stats.TotalFiles); err != nil {
		return stats, fmt.Errorf("count total: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT status, media_kind, COUNT(*) FROM media_records GROUP BY status, media_kind`)
	if err != nil {
		return stats, fmt.Errorf("group by status/kind: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status, kind string
		var n int
		if err := rows.Scan(&status, &kind, &n); err != nil {
			return stats, err
		}
		stats.ByStatus[Status(status)] += n
		stats.ByKind[MediaKind(kind)] += n
		stats.ByStatusKind[status+":"+kind] += n
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}

	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT catalog_id) FROM media_records
		WHERE media_kind = 'tv' AND catalog_id IS NOT NULL`,
	).Scan(&stats.SeriesTotal); err != nil {
		return stats, fmt.Errorf("count series total: %w", err)
	}

	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT catalog_id) FROM media_records
		WHERE media_kind = 'tv' AND catalog_id IS NOT NULL AND status = 'linked'`,
	).Scan(&stats.SeriesLinked); err != nil {
		return stats, fmt.Errorf("count series linked: %w", err)
	}

	return stats, nil
}

// AllSourcePaths returns every currently recorded source path, used by the
// ingestion engine's orphan sweep to detect vanished files without loading
// full records.
func (s *Store) AllSourcePaths(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, source_path FROM media_records`)
	if err != nil {
		return nil, fmt.Errorf("list source paths: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var id int64
		var path string
		if err := rows.Scan(&id, &path); err != nil {
			return nil, err
		}
		out[path] = id
	}
	return out, rows.Err()
}

const selectColumns = `
	SELECT id, source_path, source_filename, file_size,
		parsed_title, parsed_year, parsed_season, parsed_episode, media_kind,
		catalog_id, catalog_title, catalog_year, catalog_poster_url,
		destination_path, status, error_message,
		created_at, updated_at, processed_at
	FROM media_records`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*MediaRecord, error) {
	var r MediaRecord
	var mediaKind, status string
	err := row.Scan(
		&r.ID, &r.SourcePath, &r.SourceFilename, &r.FileSize,
		&r.ParsedTitle, &r.ParsedYear, &r.ParsedSeason, &r.ParsedEpisode, &mediaKind,
		&r.CatalogID, &r.CatalogTitle, &r.CatalogYear, &r.CatalogPosterURL,
		&r.DestinationPath, &status, &r.ErrorMessage,
		&r.CreatedAt, &r.UpdatedAt, &r.ProcessedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan media record: %w", err)
	}
	r.MediaKind = MediaKind(mediaKind)
	r.Status = Status(status)
	return &r, nil
}

func scanRecords(rows *sql.Rows) ([]*MediaRecord, error) {
	var out []*MediaRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// txQueryer abstracts over *sql.DB and *sql.Tx so repository methods can
// optionally run inside a caller-supplied transaction.
type txQueryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func queryer(s *Store, tx *sql.Tx) txQueryer {
	if tx != nil {
		return tx
	}
	return s.db
}
