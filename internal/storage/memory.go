package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"shortener/internal/models"
)

// MemoryStorage implements the Storage interface using in-memory data
// structures. It is intended for development and testing; data is lost on
// restart. All counter mutations happen under the write lock, which makes
// them linearizable for concurrent callers.
type MemoryStorage struct {
	mu        sync.RWMutex
	links     map[string]*models.Link    // keyed by ID
	slugs     map[string]string          // slug -> ID
	tags      map[string]*models.Tag     // keyed by ID
	tagNames  map[string]string          // name -> ID
	linkTags  map[string]map[string]bool // linkID -> set of tagIDs
	clicks    map[clickKey]int64
	apiKeys   map[string]*models.APIKey // keyed by ID
	keyHashes map[string]string         // hash -> ID
	windows   map[windowKey]int64
}

type clickKey struct {
	linkID string
	day    string
}

type windowKey struct {
	apiKeyID    string
	windowStart int64
}

// NewMemoryStorage creates a new memory-based storage instance.
func NewMemoryStorage(config Config) (*MemoryStorage, error) {
	return &MemoryStorage{
		links:     make(map[string]*models.Link),
		slugs:     make(map[string]string),
		tags:      make(map[string]*models.Tag),
		tagNames:  make(map[string]string),
		linkTags:  make(map[string]map[string]bool),
		clicks:    make(map[clickKey]int64),
		apiKeys:   make(map[string]*models.APIKey),
		keyHashes: make(map[string]string),
		windows:   make(map[windowKey]int64),
	}, nil
}

// CreateLink stores a new link.
func (m *MemoryStorage) CreateLink(ctx context.Context, link *models.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.slugs[link.Slug]; exists {
		return ErrDuplicate
	}
	linkCopy := *link
	m.links[link.ID] = &linkCopy
	m.slugs[link.Slug] = link.ID
	return nil
}

// GetLink retrieves a link by its ID.
func (m *MemoryStorage) GetLink(ctx context.Context, id string) (*models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	link, exists := m.links[id]
	if !exists {
		return nil, ErrNotFound
	}
	linkCopy := *link
	return &linkCopy, nil
}

// GetLinkBySlug retrieves a link by its slug.
func (m *MemoryStorage) GetLinkBySlug(ctx context.Context, slug string) (*models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, exists := m.slugs[slug]
	if !exists {
		return nil, ErrNotFound
	}
	linkCopy := *m.links[id]
	return &linkCopy, nil
}

// ListLinks returns all links, newest first, optionally filtered by tag name.
func (m *MemoryStorage) ListLinks(ctx context.Context, tag string) ([]*models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var tagID string
	if tag != "" {
		id, exists := m.tagNames[tag]
		if !exists {
			return []*models.Link{}, nil
		}
		tagID = id
	}

	links := make([]*models.Link, 0, len(m.links))
	for _, link := range m.links {
		if tagID != "" && !m.linkTags[link.ID][tagID] {
			continue
		}
		linkCopy := *link
		links = append(links, &linkCopy)
	}
	sort.Slice(links, func(i, j int) bool {
		if links[i].CreatedAt.Equal(links[j].CreatedAt) {
			return links[i].ID < links[j].ID
		}
		return links[i].CreatedAt.After(links[j].CreatedAt)
	})
	return links, nil
}

// UpdateLink updates an existing link.
func (m *MemoryStorage) UpdateLink(ctx context.Context, link *models.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, exists := m.links[link.ID]
	if !exists {
		return ErrNotFound
	}
	if link.Slug != existing.Slug {
		if _, taken := m.slugs[link.Slug]; taken {
			return ErrDuplicate
		}
		delete(m.slugs, existing.Slug)
		m.slugs[link.Slug] = link.ID
	}
	linkCopy := *link
	m.links[link.ID] = &linkCopy
	return nil
}

// DeleteLink removes a link, its tag associations and click stats.
func (m *MemoryStorage) DeleteLink(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, exists := m.links[id]
	if !exists {
		return ErrNotFound
	}
	delete(m.slugs, link.Slug)
	delete(m.links, id)
	delete(m.linkTags, id)
	for key := range m.clicks {
		if key.linkID == id {
			delete(m.clicks, key)
		}
	}
	return nil
}

// CreateTag stores a new tag.
func (m *MemoryStorage) CreateTag(ctx context.Context, tag *models.Tag) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tagNames[tag.Name]; exists {
		return ErrDuplicate
	}
	tagCopy := *tag
	m.tags[tag.ID] = &tagCopy
	m.tagNames[tag.Name] = tag.ID
	return nil
}

// GetTagByName retrieves a tag by its normalized name.
func (m *MemoryStorage) GetTagByName(ctx context.Context, name string) (*models.Tag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, exists := m.tagNames[name]
	if !exists {
		return nil, ErrNotFound
	}
	tagCopy := *m.tags[id]
	return &tagCopy, nil
}

// ListTags returns all tags sorted by name.
func (m *MemoryStorage) ListTags(ctx context.Context) ([]*models.Tag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tags := make([]*models.Tag, 0, len(m.tags))
	for _, tag := range m.tags {
		tagCopy := *tag
		tags = append(tags, &tagCopy)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Name < tags[j].Name })
	return tags, nil
}

// DeleteTag removes a tag and all its link associations.
func (m *MemoryStorage) DeleteTag(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tag, exists := m.tags[id]
	if !exists {
		return ErrNotFound
	}
	delete(m.tagNames, tag.Name)
	delete(m.tags, id)
	for linkID := range m.linkTags {
		delete(m.linkTags[linkID], id)
	}
	return nil
}

// TagLink attaches a tag to a link. Attaching twice is a no-op.
func (m *MemoryStorage) TagLink(ctx context.Context, linkID, tagID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.links[linkID]; !exists {
		return ErrNotFound
	}
	if _, exists := m.tags[tagID]; !exists {
		return ErrNotFound
	}
	if m.linkTags[linkID] == nil {
		m.linkTags[linkID] = make(map[string]bool)
	}
	m.linkTags[linkID][tagID] = true
	return nil
}

// UntagLink detaches a tag from a link.
func (m *MemoryStorage) UntagLink(ctx context.Context, linkID, tagID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.linkTags[linkID], tagID)
	return nil
}

// ListLinkTags returns the tags attached to a link, sorted by name.
func (m *MemoryStorage) ListLinkTags(ctx context.Context, linkID string) ([]*models.Tag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tags := make([]*models.Tag, 0, len(m.linkTags[linkID]))
	for tagID := range m.linkTags[linkID] {
		tagCopy := *m.tags[tagID]
		tags = append(tags, &tagCopy)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Name < tags[j].Name })
	return tags, nil
}

// IncrementClicks atomically adds one to the click count for (linkID, day).
func (m *MemoryStorage) IncrementClicks(ctx context.Context, linkID, day string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clicks[clickKey{linkID: linkID, day: day}]++
	return nil
}

// ListClickStats returns daily click buckets for a link, oldest first.
func (m *MemoryStorage) ListClickStats(ctx context.Context, linkID, since string) ([]models.ClickStat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make([]models.ClickStat, 0)
	for key, count := range m.clicks {
		if key.linkID != linkID || key.day < since {
			continue
		}
		stats = append(stats, models.ClickStat{LinkID: linkID, Day: key.day, Clicks: count})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Day < stats[j].Day })
	return stats, nil
}

// TotalClicks returns the all-time click count for a link.
func (m *MemoryStorage) TotalClicks(ctx context.Context, linkID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var total int64
	for key, count := range m.clicks {
		if key.linkID == linkID {
			total += count
		}
	}
	return total, nil
}

// CreateAPIKey stores a new API key record.
func (m *MemoryStorage) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.keyHashes[key.KeyHash]; exists {
		return ErrDuplicate
	}
	keyCopy := *key
	m.apiKeys[key.ID] = &keyCopy
	m.keyHashes[key.KeyHash] = key.ID
	return nil
}

// GetAPIKeyByHash retrieves a key by the hash of its secret.
func (m *MemoryStorage) GetAPIKeyByHash(ctx context.Context, hash string) (*models.APIKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, exists := m.keyHashes[hash]
	if !exists {
		return nil, ErrNotFound
	}
	keyCopy := *m.apiKeys[id]
	return &keyCopy, nil
}

// ListAPIKeys returns all key records, newest first.
func (m *MemoryStorage) ListAPIKeys(ctx context.Context) ([]*models.APIKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]*models.APIKey, 0, len(m.apiKeys))
	for _, key := range m.apiKeys {
		keyCopy := *key
		keys = append(keys, &keyCopy)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CreatedAt.Equal(keys[j].CreatedAt) {
			return keys[i].ID < keys[j].ID
		}
		return keys[i].CreatedAt.After(keys[j].CreatedAt)
	})
	return keys, nil
}

// TouchAPIKey updates a key's last-used timestamp.
func (m *MemoryStorage) TouchAPIKey(ctx context.Context, id string, usedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key, exists := m.apiKeys[id]
	if !exists {
		return ErrNotFound
	}
	t := usedAt
	key.LastUsedAt = &t
	return nil
}

// DeleteAPIKey removes a key by ID.
func (m *MemoryStorage) DeleteAPIKey(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key, exists := m.apiKeys[id]
	if !exists {
		return ErrNotFound
	}
	delete(m.keyHashes, key.KeyHash)
	delete(m.apiKeys, id)
	return nil
}

// WindowCount returns the request count for (apiKeyID, windowStart).
func (m *MemoryStorage) WindowCount(ctx context.Context, apiKeyID string, windowStart int64) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.windows[windowKey{apiKeyID: apiKeyID, windowStart: windowStart}], nil
}

// IncrementWindowBelow atomically increments the window counter while it is
// below limit. The check and increment happen under a single lock, so
// concurrent callers never admit more than limit requests per window.
func (m *MemoryStorage) IncrementWindowBelow(ctx context.Context, apiKeyID string, windowStart, limit int64) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := windowKey{apiKeyID: apiKeyID, windowStart: windowStart}
	count := m.windows[key]
	if count >= limit {
		return count, false, nil
	}
	count++
	m.windows[key] = count
	return count, true, nil
}

// DeleteWindowsBefore removes all window records older than cutoff.
func (m *MemoryStorage) DeleteWindowsBefore(ctx context.Context, cutoff int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for key := range m.windows {
		if key.windowStart < cutoff {
			delete(m.windows, key)
			deleted++
		}
	}
	return deleted, nil
}

// Ping verifies the backend is reachable.
func (m *MemoryStorage) Ping(_ context.Context) error {
	return nil
}

// Close releases resources. No-op for memory storage.
func (m *MemoryStorage) Close() error {
	return nil
}
