package storage

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"shortener/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(Config{
		ConnectionString: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStorageRequiresDSN(t *testing.T) {
	_, err := NewSQLiteStorage(Config{})
	assert.Error(t, err)
}

func TestSQLiteStorageLinks(t *testing.T) {
	store := newSQLiteTestStorage(t)
	ctx := context.Background()

	link := newTestLink("docs")
	link.Title = "Team docs"
	link.CreatedBy = "ops"
	require.NoError(t, store.CreateLink(ctx, link))

	t.Run("round trip", func(t *testing.T) {
		got, err := store.GetLink(ctx, link.ID)
		require.NoError(t, err)
		assert.Equal(t, link.Slug, got.Slug)
		assert.Equal(t, link.Title, got.Title)
		assert.Equal(t, link.CreatedBy, got.CreatedBy)
		assert.WithinDuration(t, link.CreatedAt, got.CreatedAt, time.Second)
	})

	t.Run("duplicate slug", func(t *testing.T) {
		assert.ErrorIs(t, store.CreateLink(ctx, newTestLink("docs")), ErrDuplicate)
	})

	t.Run("update", func(t *testing.T) {
		link.DestinationURL = "https://example.com/moved"
		link.UpdatedAt = time.Now().UTC()
		require.NoError(t, store.UpdateLink(ctx, link))

		got, err := store.GetLinkBySlug(ctx, "docs")
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/moved", got.DestinationURL)
	})

	t.Run("update missing", func(t *testing.T) {
		missing := newTestLink("missing")
		assert.ErrorIs(t, store.UpdateLink(ctx, missing), ErrNotFound)
	})

	t.Run("list newest first", func(t *testing.T) {
		second := newTestLink("newer")
		second.CreatedAt = time.Now().UTC().Add(time.Minute)
		require.NoError(t, store.CreateLink(ctx, second))

		links, err := store.ListLinks(ctx, "")
		require.NoError(t, err)
		require.Len(t, links, 2)
		assert.Equal(t, "newer", links[0].Slug)
	})

	t.Run("delete cascades", func(t *testing.T) {
		require.NoError(t, store.IncrementClicks(ctx, link.ID, "2026-08-26"))
		require.NoError(t, store.DeleteLink(ctx, link.ID))

		_, err := store.GetLink(ctx, link.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		total, err := store.TotalClicks(ctx, link.ID)
		require.NoError(t, err)
		assert.Zero(t, total)
	})
}

func TestSQLiteStorageTags(t *testing.T) {
	store := newSQLiteTestStorage(t)
	ctx := context.Background()

	link := newTestLink("tagged")
	require.NoError(t, store.CreateLink(ctx, link))

	tag := &models.Tag{ID: models.NewID(), Name: "infra", CreatedAt: time.Now().UTC()}
	require.NoError(t, store.CreateTag(ctx, tag))
	assert.ErrorIs(t, store.CreateTag(ctx, &models.Tag{ID: models.NewID(), Name: "infra", CreatedAt: time.Now().UTC()}), ErrDuplicate)

	require.NoError(t, store.TagLink(ctx, link.ID, tag.ID))
	require.NoError(t, store.TagLink(ctx, link.ID, tag.ID)) // idempotent

	tags, err := store.ListLinkTags(ctx, link.ID)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "infra", tags[0].Name)

	links, err := store.ListLinks(ctx, "infra")
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, link.ID, links[0].ID)

	require.NoError(t, store.UntagLink(ctx, link.ID, tag.ID))
	tags, err = store.ListLinkTags(ctx, link.ID)
	require.NoError(t, err)
	assert.Empty(t, tags)

	require.NoError(t, store.DeleteTag(ctx, tag.ID))
	_, err = store.GetTagByName(ctx, "infra")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStorageClicks(t *testing.T) {
	store := newSQLiteTestStorage(t)
	ctx := context.Background()

	link := newTestLink("clicky")
	require.NoError(t, store.CreateLink(ctx, link))

	for i := 0; i < 5; i++ {
		require.NoError(t, store.IncrementClicks(ctx, link.ID, "2026-08-25"))
	}
	require.NoError(t, store.IncrementClicks(ctx, link.ID, "2026-08-26"))

	total, err := store.TotalClicks(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(6), total)

	stats, err := store.ListClickStats(ctx, link.ID, "2026-08-26")
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, int64(1), stats[0].Clicks)
}

func TestSQLiteStorageAPIKeys(t *testing.T) {
	store := newSQLiteTestStorage(t)
	ctx := context.Background()

	raw, err := models.GenerateAPIKey()
	require.NoError(t, err)
	key := models.NewAPIKey(models.NewID(), "ops", "ci", raw)
	require.NoError(t, store.CreateAPIKey(ctx, key))

	got, err := store.GetAPIKeyByHash(ctx, key.KeyHash)
	require.NoError(t, err)
	assert.Equal(t, key.ID, got.ID)
	assert.Nil(t, got.LastUsedAt)

	usedAt := time.Now().UTC()
	require.NoError(t, store.TouchAPIKey(ctx, key.ID, usedAt))

	got, err = store.GetAPIKeyByHash(ctx, key.KeyHash)
	require.NoError(t, err)
	require.NotNil(t, got.LastUsedAt)
	assert.WithinDuration(t, usedAt, *got.LastUsedAt, time.Second)

	keys, err := store.ListAPIKeys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)

	require.NoError(t, store.DeleteAPIKey(ctx, key.ID))
	_, err = store.GetAPIKeyByHash(ctx, key.KeyHash)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.DeleteAPIKey(ctx, key.ID), ErrNotFound)
}

func TestSQLiteStorageWindows(t *testing.T) {
	store := newSQLiteTestStorage(t)
	ctx := context.Background()
	const windowStart = int64(1_700_000_040_000)

	t.Run("sequential fill", func(t *testing.T) {
		for i := int64(1); i <= 5; i++ {
			count, admitted, err := store.IncrementWindowBelow(ctx, "key-a", windowStart, 5)
			require.NoError(t, err)
			assert.True(t, admitted)
			assert.Equal(t, i, count)
		}

		count, admitted, err := store.IncrementWindowBelow(ctx, "key-a", windowStart, 5)
		require.NoError(t, err)
		assert.False(t, admitted)
		assert.Equal(t, int64(5), count)

		count, err = store.WindowCount(ctx, "key-a", windowStart)
		require.NoError(t, err)
		assert.Equal(t, int64(5), count)
	})

	t.Run("exactly limit admitted under contention", func(t *testing.T) {
		const limit = 8
		ws := windowStart + 60_000

		var wg sync.WaitGroup
		admittedCh := make(chan bool, 2*limit)
		for i := 0; i < 2*limit; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, admitted, err := store.IncrementWindowBelow(ctx, "key-b", ws, limit)
				assert.NoError(t, err)
				admittedCh <- admitted
			}()
		}
		wg.Wait()
		close(admittedCh)

		admittedCount := 0
		for admitted := range admittedCh {
			if admitted {
				admittedCount++
			}
		}
		assert.Equal(t, limit, admittedCount)

		count, err := store.WindowCount(ctx, "key-b", ws)
		require.NoError(t, err)
		assert.Equal(t, int64(limit), count)
	})

	t.Run("sweep old windows", func(t *testing.T) {
		deleted, err := store.DeleteWindowsBefore(ctx, windowStart+60_000)
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)

		count, err := store.WindowCount(ctx, "key-a", windowStart)
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}
