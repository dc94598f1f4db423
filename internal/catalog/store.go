package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Get and Update when no entry has the URL.
var ErrNotFound = errors.New("entry not found")

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	source_url        TEXT NOT NULL UNIQUE,
	title             TEXT NOT NULL DEFAULT '',
	category          TEXT NOT NULL DEFAULT '',
	description       TEXT NOT NULL DEFAULT '',
	genre             TEXT NOT NULL DEFAULT '',
	region            TEXT NOT NULL DEFAULT '',
	screenshots       TEXT NOT NULL DEFAULT '',
	interstitial_link TEXT NOT NULL DEFAULT '',
	resolved_link     TEXT NOT NULL DEFAULT '',
	resolved_at       TEXT NOT NULL DEFAULT '',
	download_status   TEXT NOT NULL DEFAULT 'pending',
	download_path     TEXT NOT NULL DEFAULT '',
	download_bytes    INTEGER NOT NULL DEFAULT 0,
	download_sha256   TEXT NOT NULL DEFAULT '',
	download_error    TEXT NOT NULL DEFAULT '',
	last_run_id       TEXT NOT NULL DEFAULT '',
	download_at       TEXT NOT NULL DEFAULT '',
	created_at        TEXT NOT NULL,
	updated_at        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS entries_category ON entries(category);
CREATE INDEX IF NOT EXISTS entries_status ON entries(download_status);
`

const columns = `id, source_url, title, category, description, genre, region, screenshots,
	interstitial_link, resolved_link, resolved_at,
	download_status, download_path, download_bytes, download_sha256, download_error, last_run_id, download_at,
	created_at, updated_at`

// Store persists catalog entries in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// OpenDB opens (creating if needed) the SQLite database at path.
func OpenDB(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating database dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single connection keeps :memory: databases alive and serializes writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configuring database: %w", err)
	}
	return db, nil
}

// NewStore wraps db and applies the schema.
func NewStore(ctx context.Context, db *sql.DB) (*Store, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Open is OpenDB followed by NewStore.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	s, err := NewStore(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save upserts e keyed by its source URL and sets e.ID. Empty link fields
// never overwrite stored ones, so re-scraping keeps resolution state.
// Download state is written by RecordDownloadStatus only.
func (s *Store) Save(ctx context.Context, e *Entry) (int64, error) {
	if e.SourceURL == "" {
		return 0, errors.New("entry has no source URL")
	}
	now := formatTime(s.now())
	row := s.db.QueryRowContext(ctx, `
INSERT INTO entries (source_url, title, category, description, genre, region, screenshots,
	interstitial_link, resolved_link, resolved_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(source_url) DO UPDATE SET
	title = CASE WHEN excluded.title = '' THEN entries.title ELSE excluded.title END,
	category = CASE WHEN excluded.category = '' THEN entries.category ELSE excluded.category END,
	description = CASE WHEN excluded.description = '' THEN entries.description ELSE excluded.description END,
	genre = CASE WHEN excluded.genre = '' THEN entries.genre ELSE excluded.genre END,
	region = CASE WHEN excluded.region = '' THEN entries.region ELSE excluded.region END,
	screenshots = CASE WHEN excluded.screenshots = '' THEN entries.screenshots ELSE excluded.screenshots END,
	interstitial_link = CASE WHEN excluded.interstitial_link = '' THEN entries.interstitial_link ELSE excluded.interstitial_link END,
	resolved_link = CASE WHEN excluded.resolved_link = '' THEN entries.resolved_link ELSE excluded.resolved_link END,
	resolved_at = CASE WHEN excluded.resolved_link = '' THEN entries.resolved_at ELSE excluded.resolved_at END,
	updated_at = excluded.updated_at
RETURNING id`,
		e.SourceURL, e.Title, e.Category, e.Description, e.Genre, e.Region,
		strings.Join(e.Screenshots, "\n"),
		e.InterstitialLink, e.ResolvedLink, formatTime(e.ResolvedAt), now, now)

	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("saving %s: %w", e.SourceURL, err)
	}
	e.ID = id
	return id, nil
}

// Get returns the entry with the given source URL.
func (s *Store) Get(ctx context.Context, sourceURL string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM entries WHERE source_url = ?`, sourceURL)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", sourceURL, err)
	}
	return e, nil
}

// List returns entries matching f, ordered by id.
func (s *Store) List(ctx context.Context, f Filter) ([]Entry, error) {
	return s.query(ctx, f, false)
}

// Pending returns entries matching f that are not yet downloaded.
func (s *Store) Pending(ctx context.Context, f Filter) ([]Entry, error) {
	return s.query(ctx, f, true)
}

func (s *Store) query(ctx context.Context, f Filter, pendingOnly bool) ([]Entry, error) {
	var (
		where []string
		args  []any
	)
	if pendingOnly {
		where = append(where, "download_status != ?")
		args = append(args, string(StatusDownloaded))
	}
	if f.Category != "" {
		where = append(where, "category = ? COLLATE NOCASE")
		args = append(args, f.Category)
	}
	if f.Status != "" {
		where = append(where, "download_status = ?")
		args = append(args, string(f.Status))
	}
	if f.Search != "" {
		q := "%" + strings.ToLower(f.Search) + "%"
		where = append(where, "(lower(title) LIKE ? OR lower(description) LIKE ? OR lower(genre) LIKE ?)")
		args = append(args, q, q, q)
	}

	stmt := `SELECT ` + columns + ` FROM entries`
	if len(where) > 0 {
		stmt += " WHERE " + strings.Join(where, " AND ")
	}
	stmt += " ORDER BY id"
	if f.Limit > 0 {
		stmt += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// RecordDownloadStatus stores the outcome of a download attempt for entry id.
func (s *Store) RecordDownloadStatus(ctx context.Context, id int64, st DownloadState) error {
	if !st.Status.Valid() {
		return fmt.Errorf("invalid status %q", st.Status)
	}
	if st.At.IsZero() {
		st.At = s.now()
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE entries SET
	download_status = ?, download_path = ?, download_bytes = ?, download_sha256 = ?,
	download_error = ?, last_run_id = ?, download_at = ?, updated_at = ?
WHERE id = ?`,
		string(st.Status), st.Path, st.Bytes, st.SHA256, st.Error, st.RunID,
		formatTime(st.At), formatTime(s.now()), id)
	if err != nil {
		return fmt.Errorf("recording status for %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Update loads the entry, applies fn, and saves it.
func (s *Store) Update(ctx context.Context, sourceURL string, fn func(*Entry) error) (*Entry, error) {
	e, err := s.Get(ctx, sourceURL)
	if err != nil {
		return nil, err
	}
	if err := fn(e); err != nil {
		return nil, err
	}
	if _, err := s.Save(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Stats counts entries per download status.
type Stats struct {
	Total  int
	Counts map[Status]int
}

// Stats returns per-status counts, optionally restricted to a category.
func (s *Store) Stats(ctx context.Context, category string) (Stats, error) {
	stmt := `SELECT download_status, COUNT(*) FROM entries`
	var args []any
	if category != "" {
		stmt += ` WHERE category = ? COLLATE NOCASE`
		args = append(args, category)
	}
	stmt += ` GROUP BY download_status`

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return Stats{}, fmt.Errorf("counting entries: %w", err)
	}
	defer rows.Close()

	st := Stats{Counts: map[Status]int{}}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return Stats{}, err
		}
		st.Counts[Status(status)] = n
		st.Total += n
	}
	return st, rows.Err()
}

// Categories returns the distinct category labels in use.
func (s *Store) Categories(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT category FROM entries WHERE category != '' ORDER BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (*Entry, error) {
	var e Entry
	var screenshots, status string
	var resolvedAt, downloadAt, createdAt, updatedAt string
	err := sc.Scan(&e.ID, &e.SourceURL, &e.Title, &e.Category, &e.Description, &e.Genre, &e.Region, &screenshots,
		&e.InterstitialLink, &e.ResolvedLink, &resolvedAt,
		&status, &e.Download.Path, &e.Download.Bytes, &e.Download.SHA256, &e.Download.Error, &e.Download.RunID, &downloadAt,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if screenshots != "" {
		e.Screenshots = strings.Split(screenshots, "\n")
	}
	e.Download.Status = Status(status)
	e.ResolvedAt = parseTime(resolvedAt)
	e.Download.At = parseTime(downloadAt)
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return &e, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
