package storage

import (
	"context"
	"time"

	"shortener/internal/models"
)

// Storage defines the interface for link, tag, click, API key, and
// rate-limit window persistence. It provides a clean abstraction that can
// be implemented by different backends (in-memory, SQLite, PostgreSQL).
//
// Counter mutations (IncrementWindowBelow, IncrementClicks) must be atomic
// with respect to concurrent callers; implementations rely on the backend's
// own atomic-update primitives, never on caller-side locking.
type Storage interface {
	// CreateLink stores a new link. Returns ErrDuplicate when the slug
	// is already taken.
	CreateLink(ctx context.Context, link *models.Link) error

	// GetLink retrieves a link by its ID.
	GetLink(ctx context.Context, id string) (*models.Link, error)

	// GetLinkBySlug retrieves a link by its slug.
	GetLinkBySlug(ctx context.Context, slug string) (*models.Link, error)

	// ListLinks returns all links, newest first. When tag is non-empty only
	// links carrying that tag are returned.
	ListLinks(ctx context.Context, tag string) ([]*models.Link, error)

	// UpdateLink updates an existing link. Returns ErrDuplicate when the
	// new slug collides with another link.
	UpdateLink(ctx context.Context, link *models.Link) error

	// DeleteLink removes a link, its tag associations and click stats.
	DeleteLink(ctx context.Context, id string) error

	// CreateTag stores a new tag. Returns ErrDuplicate on name collision.
	CreateTag(ctx context.Context, tag *models.Tag) error

	// GetTagByName retrieves a tag by its normalized name.
	GetTagByName(ctx context.Context, name string) (*models.Tag, error)

	// ListTags returns all tags sorted by name.
	ListTags(ctx context.Context) ([]*models.Tag, error)

	// DeleteTag removes a tag and all its link associations.
	DeleteTag(ctx context.Context, id string) error

	// TagLink attaches a tag to a link. Attaching twice is a no-op.
	TagLink(ctx context.Context, linkID, tagID string) error

	// UntagLink detaches a tag from a link.
	UntagLink(ctx context.Context, linkID, tagID string) error

	// ListLinkTags returns the tags attached to a link, sorted by name.
	ListLinkTags(ctx context.Context, linkID string) ([]*models.Tag, error)

	// IncrementClicks atomically adds one to the click count for
	// (linkID, day), creating the bucket at 1 if absent.
	IncrementClicks(ctx context.Context, linkID, day string) error

	// ListClickStats returns daily click buckets for a link with
	// day >= since, oldest first.
	ListClickStats(ctx context.Context, linkID, since string) ([]models.ClickStat, error)

	// TotalClicks returns the all-time click count for a link.
	TotalClicks(ctx context.Context, linkID string) (int64, error)

	// CreateAPIKey stores a new API key record. Returns ErrDuplicate when
	// the hash already exists.
	CreateAPIKey(ctx context.Context, key *models.APIKey) error

	// GetAPIKeyByHash retrieves a key by the hash of its secret.
	// Returns ErrNotFound when no key matches.
	GetAPIKeyByHash(ctx context.Context, hash string) (*models.APIKey, error)

	// ListAPIKeys returns all key records, newest first.
	ListAPIKeys(ctx context.Context) ([]*models.APIKey, error)

	// TouchAPIKey updates a key's last-used timestamp.
	TouchAPIKey(ctx context.Context, id string, usedAt time.Time) error

	// DeleteAPIKey removes a key by ID. Returns ErrNotFound when absent.
	DeleteAPIKey(ctx context.Context, id string) error

	// WindowCount returns the request count for (apiKeyID, windowStart),
	// 0 when no record exists. windowStart is unix milliseconds.
	WindowCount(ctx context.Context, apiKeyID string, windowStart int64) (int64, error)

	// IncrementWindowBelow atomically inserts a window record at count 1,
	// or increments an existing one, provided the pre-increment count is
	// below limit. Returns the resulting count (unchanged when not
	// admitted) and whether the increment was applied.
	IncrementWindowBelow(ctx context.Context, apiKeyID string, windowStart, limit int64) (count int64, admitted bool, err error)

	// DeleteWindowsBefore removes all window records with
	// windowStart < cutoff and returns the number deleted.
	DeleteWindowsBefore(ctx context.Context, cutoff int64) (int64, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close closes the storage connection and cleans up resources.
	Close() error
}

// Config holds configuration for storage backends.
type Config struct {
	// Type specifies the storage backend type (memory, sqlite, postgres).
	Type string `json:"type" yaml:"type"`

	// ConnectionString is the DSN or file path for database backends.
	ConnectionString string `json:"connection_string,omitempty" yaml:"connection_string,omitempty"`

	// MaxOpenConns bounds the connection pool for database backends.
	MaxOpenConns int `json:"max_open_conns,omitempty" yaml:"max_open_conns,omitempty"`

	// MaxIdleConns bounds idle connections for database backends.
	MaxIdleConns int `json:"max_idle_conns,omitempty" yaml:"max_idle_conns,omitempty"`
}
