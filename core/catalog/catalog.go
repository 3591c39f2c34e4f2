// Package catalog stores scanned video records in a SQLite database.
//
// The catalog is the persistent index behind `headcam dataset` and the
// serve dashboard. Records are keyed by the 10-character processed UID
// and unique on filesystem path, so re-scanning a dataset updates rows
// in place instead of duplicating them.
//
// Driver selection (pure Go vs CGO) is handled by core/sqlite.
package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	headcamerrors "github.com/headcamlab/headcam/core/errors"
	"github.com/headcamlab/headcam/core/sqlite"
)

// dateFormat is the storage format for the recorded date column.
const dateFormat = "2006-01-02"

// Video is one catalogued video file.
type Video struct {
	UID        string    `json:"uid"`
	Subject    string    `json:"subject"`
	Session    string    `json:"session"`
	Recorded   time.Time `json:"recorded"`
	RawName    string    `json:"raw_name,omitempty"`
	Path       string    `json:"path"`
	SizeBytes  int64     `json:"size_bytes"`
	BLAKE3     string    `json:"blake3,omitempty"`
	SHA256     string    `json:"sha256,omitempty"`
	Duration   float64   `json:"duration_seconds"`
	DeviceID   string    `json:"device_id,omitempty"`
	Highlights int       `json:"highlights"`
	ScannedAt  time.Time `json:"scanned_at"`
}

// SubjectStats aggregates catalog rows for one subject.
type SubjectStats struct {
	Subject  string  `json:"subject"`
	Videos   int     `json:"videos"`
	Bytes    int64   `json:"bytes"`
	Duration float64 `json:"duration_seconds"`
}

// Stats summarizes the whole catalog.
type Stats struct {
	TotalVideos   int            `json:"total_videos"`
	TotalBytes    int64          `json:"total_bytes"`
	TotalDuration float64        `json:"total_duration_seconds"`
	Subjects      []SubjectStats `json:"subjects"`
}

// ListOptions filters List results.
type ListOptions struct {
	// Subject restricts results to one subject when non-empty.
	Subject string
	// Limit caps the number of rows returned. Zero means no limit.
	Limit int
}

// Catalog is an open catalog database.
type Catalog struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the catalog database at path and applies the
// connection pragmas. Callers should follow with Migrate before writing.
func Open(path string) (*Catalog, error) {
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, headcamerrors.NewIO("open catalog", path, err)
	}

	// WAL allows the serve dashboard to read while a scan writes.
	pragmas := []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA foreign_keys = ON`,
		`PRAGMA busy_timeout = 5000`,
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, headcamerrors.NewIO("configure catalog", path, err)
		}
	}

	return &Catalog{db: db, path: path}, nil
}

// OpenReadOnly opens an existing catalog database without write access.
func OpenReadOnly(path string) (*Catalog, error) {
	db, err := sqlite.OpenReadOnly(path)
	if err != nil {
		return nil, headcamerrors.NewIO("open catalog read-only", path, err)
	}
	return &Catalog{db: db, path: path}, nil
}

// Close closes the underlying database.
func (c *Catalog) Close() error {
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

// Path returns the filesystem path the catalog was opened with.
func (c *Catalog) Path() string {
	return c.path
}

// DB exposes the underlying handle for callers that need raw queries,
// such as the serve dashboard's health check.
func (c *Catalog) DB() *sql.DB {
	return c.db
}

// Migrate creates the schema if it does not exist yet. It is safe to
// call on every open.
func (c *Catalog) Migrate() error {
	_, err := c.db.Exec(`
		CREATE TABLE IF NOT EXISTS videos (
			id TEXT PRIMARY KEY,
			subject TEXT NOT NULL,
			session TEXT NOT NULL DEFAULT '',
			recorded TEXT NOT NULL DEFAULT '',
			raw_name TEXT NOT NULL DEFAULT '',
			path TEXT NOT NULL UNIQUE,
			size_bytes INTEGER NOT NULL DEFAULT 0,
			blake3 TEXT NOT NULL DEFAULT '',
			sha256 TEXT NOT NULL DEFAULT '',
			duration_seconds REAL NOT NULL DEFAULT 0,
			device_id TEXT NOT NULL DEFAULT '',
			highlights INTEGER NOT NULL DEFAULT 0,
			scanned_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_videos_subject ON videos(subject);
	`)
	if err != nil {
		return headcamerrors.NewIO("migrate catalog", c.path, err)
	}
	return nil
}

// Upsert inserts or updates a video record. Conflicts on path replace
// the stored row, so moving a file to a new UID rewrites it in place.
func (c *Catalog) Upsert(v *Video) error {
	if v.UID == "" {
		return headcamerrors.NewValidation("uid", "must not be empty")
	}
	if v.Path == "" {
		return headcamerrors.NewValidation("path", "must not be empty")
	}
	scannedAt := v.ScannedAt
	if scannedAt.IsZero() {
		scannedAt = time.Now().UTC()
	}

	_, err := c.db.Exec(`
		INSERT INTO videos (
			id, subject, session, recorded, raw_name, path,
			size_bytes, blake3, sha256, duration_seconds,
			device_id, highlights, scanned_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			id = excluded.id,
			subject = excluded.subject,
			session = excluded.session,
			recorded = excluded.recorded,
			raw_name = excluded.raw_name,
			size_bytes = excluded.size_bytes,
			blake3 = excluded.blake3,
			sha256 = excluded.sha256,
			duration_seconds = excluded.duration_seconds,
			device_id = excluded.device_id,
			highlights = excluded.highlights,
			scanned_at = excluded.scanned_at
	`,
		v.UID, v.Subject, v.Session, formatDate(v.Recorded), v.RawName, v.Path,
		v.SizeBytes, v.BLAKE3, v.SHA256, v.Duration,
		v.DeviceID, v.Highlights, scannedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return headcamerrors.NewIO("upsert video", v.Path, err)
	}
	return nil
}

const videoColumns = `id, subject, session, recorded, raw_name, path,
	size_bytes, blake3, sha256, duration_seconds, device_id, highlights, scanned_at`

// Get returns the video with the given UID.
func (c *Catalog) Get(uid string) (*Video, error) {
	row := c.db.QueryRow(`SELECT `+videoColumns+` FROM videos WHERE id = ?`, uid)
	v, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, headcamerrors.NewNotFound("video", uid)
	}
	if err != nil {
		return nil, headcamerrors.NewIO("get video", c.path, err)
	}
	return v, nil
}

// ByPath returns the video stored for the given filesystem path.
func (c *Catalog) ByPath(path string) (*Video, error) {
	row := c.db.QueryRow(`SELECT `+videoColumns+` FROM videos WHERE path = ?`, path)
	v, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, headcamerrors.NewNotFound("video", path)
	}
	if err != nil {
		return nil, headcamerrors.NewIO("get video by path", c.path, err)
	}
	return v, nil
}

// DeleteByPath removes the record stored for a filesystem path.
// Renames delete the old-path row before upserting the new one.
func (c *Catalog) DeleteByPath(path string) error {
	res, err := c.db.Exec(`DELETE FROM videos WHERE path = ?`, path)
	if err != nil {
		return headcamerrors.NewIO("delete video", path, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return headcamerrors.NewNotFound("video", path)
	}
	return nil
}

// List returns videos matching opts, ordered by subject then recorded
// date then path for stable output.
func (c *Catalog) List(opts ListOptions) ([]*Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos`
	args := []any{}
	if opts.Subject != "" {
		query += ` WHERE subject = ?`
		args = append(args, opts.Subject)
	}
	query += ` ORDER BY subject, recorded, path`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, headcamerrors.NewIO("list videos", c.path, err)
	}
	defer rows.Close()

	var videos []*Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, headcamerrors.NewIO("list videos", c.path, err)
		}
		videos = append(videos, v)
	}
	if err := rows.Err(); err != nil {
		return nil, headcamerrors.NewIO("list videos", c.path, err)
	}
	return videos, nil
}

// Stats returns catalog totals plus a per-subject breakdown ordered by
// subject.
func (c *Catalog) Stats() (*Stats, error) {
	stats := &Stats{}

	err := c.db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(size_bytes), 0), COALESCE(SUM(duration_seconds), 0)
		FROM videos
	`).Scan(&stats.TotalVideos, &stats.TotalBytes, &stats.TotalDuration)
	if err != nil {
		return nil, headcamerrors.NewIO("catalog stats", c.path, err)
	}

	rows, err := c.db.Query(`
		SELECT subject, COUNT(*), COALESCE(SUM(size_bytes), 0), COALESCE(SUM(duration_seconds), 0)
		FROM videos
		GROUP BY subject
		ORDER BY subject
	`)
	if err != nil {
		return nil, headcamerrors.NewIO("catalog stats", c.path, err)
	}
	defer rows.Close()

	for rows.Next() {
		var s SubjectStats
		if err := rows.Scan(&s.Subject, &s.Videos, &s.Bytes, &s.Duration); err != nil {
			return nil, headcamerrors.NewIO("catalog stats", c.path, err)
		}
		stats.Subjects = append(stats.Subjects, s)
	}
	if err := rows.Err(); err != nil {
		return nil, headcamerrors.NewIO("catalog stats", c.path, err)
	}
	return stats, nil
}

// Durations returns stored duration seconds keyed by path. Used by
// `dataset durations --catalog` to flag drift against fresh probes.
func (c *Catalog) Durations() (map[string]float64, error) {
	rows, err := c.db.Query(`SELECT path, duration_seconds FROM videos`)
	if err != nil {
		return nil, headcamerrors.NewIO("catalog durations", c.path, err)
	}
	defer rows.Close()

	durations := make(map[string]float64)
	for rows.Next() {
		var path string
		var seconds float64
		if err := rows.Scan(&path, &seconds); err != nil {
			return nil, headcamerrors.NewIO("catalog durations", c.path, err)
		}
		durations[path] = seconds
	}
	if err := rows.Err(); err != nil {
		return nil, headcamerrors.NewIO("catalog durations", c.path, err)
	}
	return durations, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanVideo(s scanner) (*Video, error) {
	var v Video
	var recorded, scannedAt string
	err := s.Scan(
		&v.UID, &v.Subject, &v.Session, &recorded, &v.RawName, &v.Path,
		&v.SizeBytes, &v.BLAKE3, &v.SHA256, &v.Duration,
		&v.DeviceID, &v.Highlights, &scannedAt,
	)
	if err != nil {
		return nil, err
	}
	if recorded != "" {
		t, err := time.Parse(dateFormat, recorded)
		if err != nil {
			return nil, fmt.Errorf("parsing recorded date %q: %w", recorded, err)
		}
		v.Recorded = t
	}
	if scannedAt != "" {
		t, err := time.Parse(time.RFC3339, scannedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing scanned_at %q: %w", scannedAt, err)
		}
		v.ScannedAt = t
	}
	return &v, nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateFormat)
}
