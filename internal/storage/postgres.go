package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"shortener/internal/models"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS links (
	id              TEXT PRIMARY KEY,
	slug            TEXT NOT NULL UNIQUE,
	destination_url TEXT NOT NULL,
	title           TEXT NOT NULL DEFAULT '',
	created_by      TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS tags (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS link_tags (
	link_id TEXT NOT NULL REFERENCES links(id) ON DELETE CASCADE,
	tag_id  TEXT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
	PRIMARY KEY (link_id, tag_id)
);
CREATE TABLE IF NOT EXISTS link_clicks (
	link_id TEXT NOT NULL,
	day     TEXT NOT NULL,
	clicks  BIGINT NOT NULL DEFAULT 0,
	PRIMARY KEY (link_id, day)
);
CREATE TABLE IF NOT EXISTS api_keys (
	id           TEXT PRIMARY KEY,
	owner        TEXT NOT NULL,
	name         TEXT NOT NULL,
	key_hash     TEXT NOT NULL UNIQUE,
	prefix       TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	last_used_at TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS rate_limit_windows (
	api_key_id    TEXT NOT NULL,
	window_start  BIGINT NOT NULL,
	request_count BIGINT NOT NULL DEFAULT 0,
	PRIMARY KEY (api_key_id, window_start)
);
`

// PostgresStorage implements the Storage interface using PostgreSQL via
// jackc/pgx connection pooling. Counter increments use the engine's
// atomic INSERT .. ON CONFLICT DO UPDATE with a conditional guard.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage creates a new PostgreSQL storage instance and ensures
// the schema exists.
func NewPostgresStorage(config Config) (*PostgresStorage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required for PostgreSQL storage")
	}

	poolCfg, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if config.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(config.MaxOpenConns)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(context.Background(), postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &PostgresStorage{pool: pool}, nil
}

// isPgUniqueViolation reports whether err is a PostgreSQL unique_violation.
func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// CreateLink stores a new link.
func (ps *PostgresStorage) CreateLink(ctx context.Context, link *models.Link) error {
	_, err := ps.pool.Exec(ctx,
		`INSERT INTO links (id, slug, destination_url, title, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		link.ID, link.Slug, link.DestinationURL, link.Title, link.CreatedBy,
		link.CreatedAt, link.UpdatedAt)
	if isPgUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create link: %w", err)
	}
	return nil
}

func (ps *PostgresStorage) getLinkWhere(ctx context.Context, clause string, arg any) (*models.Link, error) {
	var link models.Link
	err := ps.pool.QueryRow(ctx,
		`SELECT id, slug, destination_url, title, created_by, created_at, updated_at
		 FROM links WHERE `+clause, arg).
		Scan(&link.ID, &link.Slug, &link.DestinationURL, &link.Title,
			&link.CreatedBy, &link.CreatedAt, &link.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get link: %w", err)
	}
	return &link, nil
}

// GetLink retrieves a link by its ID.
func (ps *PostgresStorage) GetLink(ctx context.Context, id string) (*models.Link, error) {
	return ps.getLinkWhere(ctx, "id = $1", id)
}

// GetLinkBySlug retrieves a link by its slug.
func (ps *PostgresStorage) GetLinkBySlug(ctx context.Context, slug string) (*models.Link, error) {
	return ps.getLinkWhere(ctx, "slug = $1", slug)
}

// ListLinks returns all links, newest first, optionally filtered by tag name.
func (ps *PostgresStorage) ListLinks(ctx context.Context, tag string) ([]*models.Link, error) {
	query := `SELECT id, slug, destination_url, title, created_by, created_at, updated_at
		 FROM links ORDER BY created_at DESC, id`
	args := []any{}
	if tag != "" {
		query = `SELECT l.id, l.slug, l.destination_url, l.title, l.created_by, l.created_at, l.updated_at
		 FROM links l
		 JOIN link_tags lt ON lt.link_id = l.id
		 JOIN tags t ON t.id = lt.tag_id
		 WHERE t.name = $1
		 ORDER BY l.created_at DESC, l.id`
		args = append(args, tag)
	}

	rows, err := ps.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	defer rows.Close()

	links := make([]*models.Link, 0)
	for rows.Next() {
		var link models.Link
		if err := rows.Scan(&link.ID, &link.Slug, &link.DestinationURL, &link.Title,
			&link.CreatedBy, &link.CreatedAt, &link.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, &link)
	}
	return links, rows.Err()
}

// UpdateLink updates an existing link.
func (ps *PostgresStorage) UpdateLink(ctx context.Context, link *models.Link) error {
	tag, err := ps.pool.Exec(ctx,
		`UPDATE links SET slug = $1, destination_url = $2, title = $3, updated_at = $4 WHERE id = $5`,
		link.Slug, link.DestinationURL, link.Title, link.UpdatedAt, link.ID)
	if isPgUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to update link: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteLink removes a link; tag associations cascade, click stats are
// removed explicitly.
func (ps *PostgresStorage) DeleteLink(ctx context.Context, id string) error {
	tag, err := ps.pool.Exec(ctx, `DELETE FROM links WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	if _, err := ps.pool.Exec(ctx, `DELETE FROM link_clicks WHERE link_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete link clicks: %w", err)
	}
	return nil
}

// CreateTag stores a new tag.
func (ps *PostgresStorage) CreateTag(ctx context.Context, t *models.Tag) error {
	_, err := ps.pool.Exec(ctx,
		`INSERT INTO tags (id, name, created_at) VALUES ($1, $2, $3)`,
		t.ID, t.Name, t.CreatedAt)
	if isPgUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create tag: %w", err)
	}
	return nil
}

// GetTagByName retrieves a tag by its normalized name.
func (ps *PostgresStorage) GetTagByName(ctx context.Context, name string) (*models.Tag, error) {
	var t models.Tag
	err := ps.pool.QueryRow(ctx,
		`SELECT id, name, created_at FROM tags WHERE name = $1`, name).
		Scan(&t.ID, &t.Name, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tag: %w", err)
	}
	return &t, nil
}

// ListTags returns all tags sorted by name.
func (ps *PostgresStorage) ListTags(ctx context.Context) ([]*models.Tag, error) {
	rows, err := ps.pool.Query(ctx, `SELECT id, name, created_at FROM tags ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	tags := make([]*models.Tag, 0)
	for rows.Next() {
		var t models.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, &t)
	}
	return tags, rows.Err()
}

// DeleteTag removes a tag; link associations cascade.
func (ps *PostgresStorage) DeleteTag(ctx context.Context, id string) error {
	tag, err := ps.pool.Exec(ctx, `DELETE FROM tags WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TagLink attaches a tag to a link. Attaching twice is a no-op.
func (ps *PostgresStorage) TagLink(ctx context.Context, linkID, tagID string) error {
	_, err := ps.pool.Exec(ctx,
		`INSERT INTO link_tags (link_id, tag_id) VALUES ($1, $2)
		 ON CONFLICT (link_id, tag_id) DO NOTHING`, linkID, tagID)
	if err != nil {
		// Foreign key violations mean the link or tag does not exist.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrNotFound
		}
		return fmt.Errorf("failed to tag link: %w", err)
	}
	return nil
}

// UntagLink detaches a tag from a link.
func (ps *PostgresStorage) UntagLink(ctx context.Context, linkID, tagID string) error {
	_, err := ps.pool.Exec(ctx,
		`DELETE FROM link_tags WHERE link_id = $1 AND tag_id = $2`, linkID, tagID)
	if err != nil {
		return fmt.Errorf("failed to untag link: %w", err)
	}
	return nil
}

// ListLinkTags returns the tags attached to a link, sorted by name.
func (ps *PostgresStorage) ListLinkTags(ctx context.Context, linkID string) ([]*models.Tag, error) {
	rows, err := ps.pool.Query(ctx,
		`SELECT t.id, t.name, t.created_at FROM tags t
		 JOIN link_tags lt ON lt.tag_id = t.id
		 WHERE lt.link_id = $1 ORDER BY t.name`, linkID)
	if err != nil {
		return nil, fmt.Errorf("failed to list link tags: %w", err)
	}
	defer rows.Close()

	tags := make([]*models.Tag, 0)
	for rows.Next() {
		var t models.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, &t)
	}
	return tags, rows.Err()
}

// IncrementClicks atomically adds one to the click count for (linkID, day).
func (ps *PostgresStorage) IncrementClicks(ctx context.Context, linkID, day string) error {
	_, err := ps.pool.Exec(ctx,
		`INSERT INTO link_clicks (link_id, day, clicks) VALUES ($1, $2, 1)
		 ON CONFLICT (link_id, day) DO UPDATE SET clicks = link_clicks.clicks + 1`,
		linkID, day)
	if err != nil {
		return fmt.Errorf("failed to increment clicks: %w", err)
	}
	return nil
}

// ListClickStats returns daily click buckets for a link, oldest first.
func (ps *PostgresStorage) ListClickStats(ctx context.Context, linkID, since string) ([]models.ClickStat, error) {
	rows, err := ps.pool.Query(ctx,
		`SELECT day, clicks FROM link_clicks WHERE link_id = $1 AND day >= $2 ORDER BY day`,
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
func (ps *PostgresStorage) TotalClicks(ctx context.Context, linkID string) (int64, error) {
	var total int64
	err := ps.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(clicks), 0) FROM link_clicks WHERE link_id = $1`, linkID).
		Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to total clicks: %w", err)
	}
	return total, nil
}

// CreateAPIKey stores a new API key record.
func (ps *PostgresStorage) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := ps.pool.Exec(ctx,
		`INSERT INTO api_keys (id, owner, name, key_hash, prefix, created_at, last_used_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		key.ID, key.Owner, key.Name, key.KeyHash, key.Prefix, key.CreatedAt, key.LastUsedAt)
	if isPgUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create api key: %w", err)
	}
	return nil
}

// GetAPIKeyByHash retrieves a key by the hash of its secret.
func (ps *PostgresStorage) GetAPIKeyByHash(ctx context.Context, hash string) (*models.APIKey, error) {
	var key models.APIKey
	err := ps.pool.QueryRow(ctx,
		`SELECT id, owner, name, key_hash, prefix, created_at, last_used_at
		 FROM api_keys WHERE key_hash = $1`, hash).
		Scan(&key.ID, &key.Owner, &key.Name, &key.KeyHash, &key.Prefix,
			&key.CreatedAt, &key.LastUsedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}
	return &key, nil
}

// ListAPIKeys returns all key records, newest first.
func (ps *PostgresStorage) ListAPIKeys(ctx context.Context) ([]*models.APIKey, error) {
	rows, err := ps.pool.Query(ctx,
		`SELECT id, owner, name, key_hash, prefix, created_at, last_used_at
		 FROM api_keys ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	defer rows.Close()

	keys := make([]*models.APIKey, 0)
	for rows.Next() {
		var key models.APIKey
		if err := rows.Scan(&key.ID, &key.Owner, &key.Name, &key.KeyHash, &key.Prefix,
			&key.CreatedAt, &key.LastUsedAt); err != nil {
			return nil, fmt.Errorf("failed to scan api key: %w", err)
		}
		keys = append(keys, &key)
	}
	return keys, rows.Err()
}

// TouchAPIKey updates a key's last-used timestamp.
func (ps *PostgresStorage) TouchAPIKey(ctx context.Context, id string, usedAt time.Time) error {
	tag, err := ps.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = $1 WHERE id = $2`, usedAt, id)
	if err != nil {
		return fmt.Errorf("failed to touch api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAPIKey removes a key by ID.
func (ps *PostgresStorage) DeleteAPIKey(ctx context.Context, id string) error {
	tag, err := ps.pool.Exec(ctx, `DELETE FROM api_keys WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// WindowCount returns the request count for (apiKeyID, windowStart).
func (ps *PostgresStorage) WindowCount(ctx context.Context, apiKeyID string, windowStart int64) (int64, error) {
	var count int64
	err := ps.pool.QueryRow(ctx,
		`SELECT request_count FROM rate_limit_windows WHERE api_key_id = $1 AND window_start = $2`,
		apiKeyID, windowStart).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read window count: %w", err)
	}
	return count, nil
}

// IncrementWindowBelow atomically inserts the window at count 1 or
// increments it, provided the stored count is below limit. PostgreSQL
// evaluates the conditional upsert atomically under row locking, so
// concurrent callers can never push the count past limit.
func (ps *PostgresStorage) IncrementWindowBelow(ctx context.Context, apiKeyID string, windowStart, limit int64) (int64, bool, error) {
	var count int64
	err := ps.pool.QueryRow(ctx,
		`INSERT INTO rate_limit_windows (api_key_id, window_start, request_count)
		 VALUES ($1, $2, 1)
		 ON CONFLICT (api_key_id, window_start)
		 DO UPDATE SET request_count = rate_limit_windows.request_count + 1
		 WHERE rate_limit_windows.request_count < $3
		 RETURNING request_count`,
		apiKeyID, windowStart, limit).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		// Conflict with the WHERE guard failed: the window is full.
		current, err := ps.WindowCount(ctx, apiKeyID, windowStart)
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
func (ps *PostgresStorage) DeleteWindowsBefore(ctx context.Context, cutoff int64) (int64, error) {
	tag, err := ps.pool.Exec(ctx,
		`DELETE FROM rate_limit_windows WHERE window_start < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete windows: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Ping verifies the database is reachable.
func (ps *PostgresStorage) Ping(ctx context.Context) error {
	return ps.pool.Ping(ctx)
}

// Close closes the connection pool.
func (ps *PostgresStorage) Close() error {
	ps.pool.Close()
	return nil
}
