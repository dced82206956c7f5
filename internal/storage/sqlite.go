package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"shortener/internal/models"
)

// sqliteSchema creates all tables on first open. The rate_limit_windows
// composite primary key is what makes the counter upsert atomic per
// (key, window) pair.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS links (
	id              TEXT PRIMARY KEY,
	slug            TEXT NOT NULL UNIQUE,
	destination_url TEXT NOT NULL,
	title           TEXT NOT NULL DEFAULT '',
	created_by      TEXT NOT NULL DEFAULT '',
	created_at      TEXT NOT NULL,
	updated_at      TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS tags (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS link_tags (
	link_id TEXT NOT NULL REFERENCES links(id) ON DELETE CASCADE,
	tag_id  TEXT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
	PRIMARY KEY (link_id, tag_id)
);
CREATE TABLE IF NOT EXISTS link_clicks (
	link_id TEXT NOT NULL,
	day     TEXT NOT NULL,
	clicks  INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (link_id, day)
);
CREATE TABLE IF NOT EXISTS api_keys (
	id           TEXT PRIMARY KEY,
	owner        TEXT NOT NULL,
	name         TEXT NOT NULL,
	key_hash     TEXT NOT NULL UNIQUE,
	prefix       TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	last_used_at TEXT
);
CREATE TABLE IF NOT EXISTS rate_limit_windows (
	api_key_id    TEXT NOT NULL,
	window_start  INTEGER NOT NULL,
	request_count INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (api_key_id, window_start)
);
`

// SQLiteStorage implements the Storage interface using an embedded SQLite
// database (modernc.org/sqlite, pure Go). Counter increments use
// INSERT .. ON CONFLICT DO UPDATE, which SQLite applies atomically.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage creates a new SQLite storage instance and ensures the
// schema exists.
func NewSQLiteStorage(config Config) (*SQLiteStorage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required for SQLite storage")
	}

	db, err := sql.Open("sqlite", config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serializes writers; a single connection avoids SQLITE_BUSY
	// under concurrent upserts.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// isUniqueViolation reports whether err is a SQLite uniqueness violation.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// CreateLink stores a new link.
func (ss *SQLiteStorage) CreateLink(ctx context.Context, link *models.Link) error {
	_, err := ss.db.ExecContext(ctx,
		`INSERT INTO links (id, slug, destination_url, title, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		link.ID, link.Slug, link.DestinationURL, link.Title, link.CreatedBy,
		formatTime(link.CreatedAt), formatTime(link.UpdatedAt))
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create link: %w", err)
	}
	return nil
}

func (ss *SQLiteStorage) scanLink(row *sql.Row) (*models.Link, error) {
	var link models.Link
	var createdAt, updatedAt string
	err := row.Scan(&link.ID, &link.Slug, &link.DestinationURL, &link.Title,
		&link.CreatedBy, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan link: %w", err)
	}
	if link.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if link.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return &link, nil
}

// GetLink retrieves a link by its ID.
func (ss *SQLiteStorage) GetLink(ctx context.Context, id string) (*models.Link, error) {
	row := ss.db.QueryRowContext(ctx,
		`SELECT id, slug, destination_url, title, created_by, created_at, updated_at
		 FROM links WHERE id = ?`, id)
	return ss.scanLink(row)
}

// GetLinkBySlug retrieves a link by its slug.
func (ss *SQLiteStorage) GetLinkBySlug(ctx context.Context, slug string) (*models.Link, error) {
	row := ss.db.QueryRowContext(ctx,
		`SELECT id, slug, destination_url, title, created_by, created_at, updated_at
		 FROM links WHERE slug = ?`, slug)
	return ss.scanLink(row)
}

// ListLinks returns all links, newest first, optionally filtered by tag name.
func (ss *SQLiteStorage) ListLinks(ctx context.Context, tag string) ([]*models.Link, error) {
	query := `SELECT id, slug, destination_url, title, created_by, created_at, updated_at
		 FROM links ORDER BY created_at DESC, id`
	args := []any{}
	if tag != "" {
		query = `SELECT l.id, l.slug, l.destination_url, l.title, l.created_by, l.created_at, l.updated_at
		 FROM links l
		 JOIN link_tags lt ON lt.link_id = l.id
		 JOIN tags t ON t.id = lt.tag_id
		 WHERE t.name = ?
		 ORDER BY l.created_at DESC, l.id`
		args = append(args, tag)
	}

	rows, err := ss.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	defer rows.Close()

	links := make([]*models.Link, 0)
	for rows.Next() {
		var link models.Link
		var createdAt, updatedAt string
		if err := rows.Scan(&link.ID, &link.Slug, &link.DestinationURL, &link.Title,
			&link.CreatedBy, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		if link.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		if link.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, fmt.Errorf("failed to parse updated_at: %w", err)
		}
		links = append(links, &link)
	}
	return links, rows.Err()
}

// UpdateLink updates an existing link.
func (ss *SQLiteStorage) UpdateLink(ctx context.Context, link *models.Link) error {
	res, err := ss.db.ExecContext(ctx,
		`UPDATE links SET slug = ?, destination_url = ?, title = ?, updated_at = ? WHERE id = ?`,
		link.Slug, link.DestinationURL, link.Title, formatTime(link.UpdatedAt), link.ID)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to update link: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteLink removes a link, its tag associations and click stats.
func (ss *SQLiteStorage) DeleteLink(ctx context.Context, id string) error {
	res, err := ss.db.ExecContext(ctx, `DELETE FROM links WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	// Foreign keys are not always enforced in SQLite; clean up explicitly.
	if _, err := ss.db.ExecContext(ctx, `DELETE FROM link_tags WHERE link_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete link tags: %w", err)
	}
	if _, err := ss.db.ExecContext(ctx, `DELETE FROM link_clicks WHERE link_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete link clicks: %w", err)
	}
	return nil
}

// CreateTag stores a new tag.
func (ss *SQLiteStorage) CreateTag(ctx context.Context, tag *models.Tag) error {
	_, err := ss.db.ExecContext(ctx,
		`INSERT INTO tags (id, name, created_at) VALUES (?, ?, ?)`,
		tag.ID, tag.Name, formatTime(tag.CreatedAt))
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create tag: %w", err)
	}
	return nil
}

// GetTagByName retrieves a tag by its normalized name.
func (ss *SQLiteStorage) GetTagByName(ctx context.Context, name string) (*models.Tag, error) {
	var tag models.Tag
	var createdAt string
	err := ss.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM tags WHERE name = ?`, name).
		Scan(&tag.ID, &tag.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tag: %w", err)
	}
	if tag.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	return &tag, nil
}

// ListTags returns all tags sorted by name.
func (ss *SQLiteStorage) ListTags(ctx context.Context) ([]*models.Tag, error) {
	rows, err := ss.db.QueryContext(ctx, `SELECT id, name, created_at FROM tags ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	tags := make([]*models.Tag, 0)
	for rows.Next() {
		var tag models.Tag
		var createdAt string
		if err := rows.Scan(&tag.ID, &tag.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		if tag.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		tags = append(tags, &tag)
	}
	return tags, rows.Err()
}

// DeleteTag removes a tag and all its link associations.
func (ss *SQLiteStorage) DeleteTag(ctx context.Context, id string) error {
	res, err := ss.db.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	if _, err := ss.db.ExecContext(ctx, `DELETE FROM link_tags WHERE tag_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete tag associations: %w", err)
	}
	return nil
}

// TagLink attaches a tag to a link. Attaching twice is a no-op.
func (ss *SQLiteStorage) TagLink(ctx context.Context, linkID, tagID string) error {
	var exists int
	if err := ss.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM links WHERE id = ?`, linkID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check link: %w", err)
	}
	if exists == 0 {
		return ErrNotFound
	}
	if err := ss.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tags WHERE id = ?`, tagID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check tag: %w", err)
	}
	if exists == 0 {
		return ErrNotFound
	}
	_, err := ss.db.ExecContext(ctx,
		`INSERT INTO link_tags (link_id, tag_id) VALUES (?, ?)
		 ON CONFLICT (link_id, tag_id) DO NOTHING`, linkID, tagID)
	if err != nil {
		return fmt.Errorf("failed to tag link: %w", err)
	}
	return nil
}

// UntagLink detaches a tag from a link.
func (ss *SQLiteStorage) UntagLink(ctx context.Context, linkID, tagID string) error {
	_, err := ss.db.ExecContext(ctx,
		`DELETE FROM link_tags WHERE link_id = ? AND tag_id = ?`, linkID, tagID)
	if err != nil {
		return fmt.Errorf("failed to untag link: %w", err)
	}
	return nil
}

// ListLinkTags returns the tags attached to a link, sorted by name.
func (ss *SQLiteStorage) ListLinkTags(ctx context.Context, linkID string) ([]*models.Tag, error) {
	rows, err := ss.db.QueryContext(ctx,
		`SELECT t.id, t.name, t.created_at FROM tags t
		 JOIN link_tags lt ON lt.tag_id = t.id
		 WHERE lt.link_id = ? ORDER BY t.name`, linkID)
	if err != nil {
		return nil, fmt.Errorf("failed to list link tags: %w", err)
	}
	defer rows.Close()

	tags := make([]*models.Tag, 0)
	for rows.Next() {
		var tag models.Tag
		var createdAt string
		if err := rows.Scan(&tag.ID, &tag.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		if tag.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		tags = append(tags, &tag)
	}
	return tags, rows.Err()
}

// IncrementClicks atomically adds one to the click count for (linkID, day).
func (ss *SQLiteStorage) IncrementClicks(ctx context.Context, linkID, day string) error {
	_, err := ss.db.ExecContext(ctx,
		`INSERT INTO link_clicks (link_id, day, clicks) VALUES (?, ?, 1)
		 ON CONFLICT (link_id, day) DO UPDATE SET clicks = clicks + 1`,
		linkID, day)
	if err != nil {
		return fmt.Errorf("failed to increment clicks: %w", err)
	}
	return nil
}

// ListClickStats returns daily click buckets for a link, oldest first.
func (ss *SQLiteStorage) ListClickStats(ctx context.Context, linkID, since string) ([]models.ClickStat, error) {
	rows, err := ss.db.QueryContext(ctx,
		`SELECT day, clicks FROM link_clicks WHERE link_id = ? AND day >= ? ORDER BY day`,
		linkID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list click stats: %w", err)
	}
	defer rows.Close()

	stats := make([]models.ClickStat, 0)
	for rows.Next() {
		stat := models.ClickStat{LinkID: linkID}
		if err := rows.Scan(&stat.Day, &stat.Clicks); err != nil {
			return nil, fmt.Errorf("failed to scan click stat: %w", err)
		}
		stats = append(stats, stat)
	}
	return stats, rows.Err()
}

// TotalClicks returns the all-time click count for a link.
func (ss *SQLiteStorage) TotalClicks(ctx context.Context, linkID string) (int64, error) {
	var total int64
	err := ss.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(clicks), 0) FROM link_clicks WHERE link_id = ?`, linkID).
		Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to total clicks: %w", err)
	}
	return total, nil
}

// CreateAPIKey stores a new API key record.
func (ss *SQLiteStorage) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	var lastUsed any
	if key.LastUsedAt != nil {
		lastUsed = formatTime(*key.LastUsedAt)
	}
	_, err := ss.db.ExecContext(ctx,
		`INSERT INTO api_keys (id, owner, name, key_hash, prefix, created_at, last_used_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		key.ID, key.Owner, key.Name, key.KeyHash, key.Prefix, formatTime(key.CreatedAt), lastUsed)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create api key: %w", err)
	}
	return nil
}

func scanAPIKey(id, owner, name, hash, prefix, createdAt string, lastUsed sql.NullString) (*models.APIKey, error) {
	key := &models.APIKey{ID: id, Owner: owner, Name: name, KeyHash: hash, Prefix: prefix}
	var err error
	if key.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if lastUsed.Valid {
		t, err := parseTime(lastUsed.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse last_used_at: %w", err)
		}
		key.LastUsedAt = &t
	}
	return key, nil
}

// GetAPIKeyByHash retrieves a key by the hash of its secret.
func (ss *SQLiteStorage) GetAPIKeyByHash(ctx context.Context, hash string) (*models.APIKey, error) {
	var id, owner, name, keyHash, prefix, createdAt string
	var lastUsed sql.NullString
	err := ss.db.QueryRowContext(ctx,
		`SELECT id, owner, name, key_hash, prefix, created_at, last_used_at
		 FROM api_keys WHERE key_hash = ?`, hash).
		Scan(&id, &owner, &name, &keyHash, &prefix, &createdAt, &lastUsed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}
	return scanAPIKey(id, owner, name, keyHash, prefix, createdAt, lastUsed)
}

// ListAPIKeys returns all key records, newest first.
func (ss *SQLiteStorage) ListAPIKeys(ctx context.Context) ([]*models.APIKey, error) {
	rows, err := ss.db.QueryContext(ctx,
		`SELECT id, owner, name, key_hash, prefix, created_at, last_used_at
		 FROM api_keys ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	defer rows.Close()

	keys := make([]*models.APIKey, 0)
	for rows.Next() {
		var id, owner, name, keyHash, prefix, createdAt string
		var lastUsed sql.NullString
		if err := rows.Scan(&id, &owner, &name, &keyHash, &prefix, &createdAt, &lastUsed); err != nil {
			return nil, fmt.Errorf("failed to scan api key: %w", err)
		}
		key, err := scanAPIKey(id, owner, name, keyHash, prefix, createdAt, lastUsed)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// TouchAPIKey updates a key's last-used timestamp.
func (ss *SQLiteStorage) TouchAPIKey(ctx context.Context, id string, usedAt time.Time) error {
	res, err := ss.db.ExecContext(ctx,
		`UPDATE api_keys SET last_used_at = ? WHERE id = ?`, formatTime(usedAt), id)
	if err != nil {
		return fmt.Errorf("failed to touch api key: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAPIKey removes a key by ID.
func (ss *SQLiteStorage) DeleteAPIKey(ctx context.Context, id string) error {
	res, err := ss.db.ExecContext(ctx, `DELETE FROM api_keys WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete api key: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// WindowCount returns the request count for (apiKeyID, windowStart).
func (ss *SQLiteStorage) WindowCount(ctx context.Context, apiKeyID string, windowStart int64) (int64, error) {
	var count int64
	err := ss.db.QueryRowContext(ctx,
		`SELECT request_count FROM rate_limit_windows WHERE api_key_id = ? AND window_start = ?`,
		apiKeyID, windowStart).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read window count: %w", err)
	}
	return count, nil
}

// IncrementWindowBelow atomically inserts the window at count 1 or
// increments it, provided the stored count is below limit. The conditional
// upsert runs as a single statement, so concurrent callers can never push
// the count past limit.
func (ss *SQLiteStorage) IncrementWindowBelow(ctx context.Context, apiKeyID string, windowStart, limit int64) (int64, bool, error) {
	var count int64
	err := ss.db.QueryRowContext(ctx,
		`INSERT INTO rate_limit_windows (api_key_id, window_start, request_count)
		 VALUES (?, ?, 1)
		 ON CONFLICT (api_key_id, window_start)
		 DO UPDATE SET request_count = request_count + 1 WHERE request_count < ?
		 RETURNING request_count`,
		apiKeyID, windowStart, limit).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		// Conflict with the WHERE guard failed: the window is full.
		current, err := ss.WindowCount(ctx, apiKeyID, windowStart)
		if err != nil {
			return 0, false, err
		}
		return current, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to increment window: %w", err)
	}
	return count, true, nil
}

// DeleteWindowsBefore removes all window records older than cutoff.
func (ss *SQLiteStorage) DeleteWindowsBefore(ctx context.Context, cutoff int64) (int64, error) {
	res, err := ss.db.ExecContext(ctx,
		`DELETE FROM rate_limit_windows WHERE window_start < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete windows: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return deleted, nil
}

// Ping verifies the database is reachable.
func (ss *SQLiteStorage) Ping(ctx context.Context) error {
	return ss.db.PingContext(ctx)
}

// Close closes the storage connection.
func (ss *SQLiteStorage) Close() error {
	return ss.db.Close()
}
