package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"shortener/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLink(slug string) *models.Link {
	now := time.Now().UTC()
	return &models.Link{
		ID:             models.NewID(),
		Slug:           slug,
		DestinationURL: "https://example.com/" + slug,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestMemoryStorageLinks(t *testing.T) {
	store, err := NewMemoryStorage(Config{})
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		link := newTestLink("docs")
		require.NoError(t, store.CreateLink(ctx, link))

		got, err := store.GetLink(ctx, link.ID)
		require.NoError(t, err)
		assert.Equal(t, "docs", got.Slug)
		assert.Equal(t, link.DestinationURL, got.DestinationURL)

		bySlug, err := store.GetLinkBySlug(ctx, "docs")
		require.NoError(t, err)
		assert.Equal(t, link.ID, bySlug.ID)
	})

	t.Run("duplicate slug rejected", func(t *testing.T) {
		require.NoError(t, store.CreateLink(ctx, newTestLink("dup")))
		err := store.CreateLink(ctx, newTestLink("dup"))
		assert.ErrorIs(t, err, ErrDuplicate)
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := store.GetLink(ctx, "no-such-id")
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = store.GetLinkBySlug(ctx, "no-such-slug")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("update rename frees old slug", func(t *testing.T) {
		link := newTestLink("before")
		require.NoError(t, store.CreateLink(ctx, link))

		link.Slug = "after"
		require.NoError(t, store.UpdateLink(ctx, link))

		_, err := store.GetLinkBySlug(ctx, "before")
		assert.ErrorIs(t, err, ErrNotFound)

		got, err := store.GetLinkBySlug(ctx, "after")
		require.NoError(t, err)
		assert.Equal(t, link.ID, got.ID)

		// The freed slug is available again.
		require.NoError(t, store.CreateLink(ctx, newTestLink("before")))
	})

	t.Run("update slug collision", func(t *testing.T) {
		a := newTestLink("coll-a")
		b := newTestLink("coll-b")
		require.NoError(t, store.CreateLink(ctx, a))
		require.NoError(t, store.CreateLink(ctx, b))

		b.Slug = "coll-a"
		assert.ErrorIs(t, store.UpdateLink(ctx, b), ErrDuplicate)
	})

	t.Run("delete removes slug and clicks", func(t *testing.T) {
		link := newTestLink("gone")
		require.NoError(t, store.CreateLink(ctx, link))
		require.NoError(t, store.IncrementClicks(ctx, link.ID, "2026-08-26"))

		require.NoError(t, store.DeleteLink(ctx, link.ID))

		_, err := store.GetLinkBySlug(ctx, "gone")
		assert.ErrorIs(t, err, ErrNotFound)

		total, err := store.TotalClicks(ctx, link.ID)
		require.NoError(t, err)
		assert.Zero(t, total)

		assert.ErrorIs(t, store.DeleteLink(ctx, link.ID), ErrNotFound)
	})
}

func TestMemoryStorageTags(t *testing.T) {
	store, err := NewMemoryStorage(Config{})
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()

	link := newTestLink("tagged")
	require.NoError(t, store.CreateLink(ctx, link))

	tag := &models.Tag{ID: models.NewID(), Name: "team", CreatedAt: time.Now().UTC()}
	require.NoError(t, store.CreateTag(ctx, tag))

	t.Run("duplicate name rejected", func(t *testing.T) {
		dup := &models.Tag{ID: models.NewID(), Name: "team", CreatedAt: time.Now().UTC()}
		assert.ErrorIs(t, store.CreateTag(ctx, dup), ErrDuplicate)
	})

	t.Run("attach and list", func(t *testing.T) {
		require.NoError(t, store.TagLink(ctx, link.ID, tag.ID))
		// Attaching twice is a no-op.
		require.NoError(t, store.TagLink(ctx, link.ID, tag.ID))

		tags, err := store.ListLinkTags(ctx, link.ID)
		require.NoError(t, err)
		require.Len(t, tags, 1)
		assert.Equal(t, "team", tags[0].Name)
	})

	t.Run("attach to missing link or tag", func(t *testing.T) {
		assert.ErrorIs(t, store.TagLink(ctx, "nope", tag.ID), ErrNotFound)
		assert.ErrorIs(t, store.TagLink(ctx, link.ID, "nope"), ErrNotFound)
	})

	t.Run("filter links by tag", func(t *testing.T) {
		other := newTestLink("untagged")
		require.NoError(t, store.CreateLink(ctx, other))

		links, err := store.ListLinks(ctx, "team")
		require.NoError(t, err)
		require.Len(t, links, 1)
		assert.Equal(t, link.ID, links[0].ID)

		links, err = store.ListLinks(ctx, "no-such-tag")
		require.NoError(t, err)
		assert.Empty(t, links)
	})

	t.Run("untag", func(t *testing.T) {
		require.NoError(t, store.UntagLink(ctx, link.ID, tag.ID))
		tags, err := store.ListLinkTags(ctx, link.ID)
		require.NoError(t, err)
		assert.Empty(t, tags)
	})

	t.Run("delete tag detaches everywhere", func(t *testing.T) {
		require.NoError(t, store.TagLink(ctx, link.ID, tag.ID))
		require.NoError(t, store.DeleteTag(ctx, tag.ID))

		_, err := store.GetTagByName(ctx, "team")
		assert.ErrorIs(t, err, ErrNotFound)

		tags, err := store.ListLinkTags(ctx, link.ID)
		require.NoError(t, err)
		assert.Empty(t, tags)
	})
}

func TestMemoryStorageClicks(t *testing.T) {
	store, err := NewMemoryStorage(Config{})
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	link := newTestLink("clicky")
	require.NoError(t, store.CreateLink(ctx, link))

	for i := 0; i < 3; i++ {
		require.NoError(t, store.IncrementClicks(ctx, link.ID, "2026-08-25"))
	}
	require.NoError(t, store.IncrementClicks(ctx, link.ID, "2026-08-26"))

	t.Run("totals", func(t *testing.T) {
		total, err := store.TotalClicks(ctx, link.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(4), total)
	})

	t.Run("daily buckets ordered", func(t *testing.T) {
		stats, err := store.ListClickStats(ctx, link.ID, "2026-08-01")
		require.NoError(t, err)
		require.Len(t, stats, 2)
		assert.Equal(t, "2026-08-25", stats[0].Day)
		assert.Equal(t, int64(3), stats[0].Clicks)
		assert.Equal(t, "2026-08-26", stats[1].Day)
		assert.Equal(t, int64(1), stats[1].Clicks)
	})

	t.Run("since filter", func(t *testing.T) {
		stats, err := store.ListClickStats(ctx, link.ID, "2026-08-26")
		require.NoError(t, err)
		require.Len(t, stats, 1)
		assert.Equal(t, "2026-08-26", stats[0].Day)
	})

	t.Run("concurrent increments", func(t *testing.T) {
		fresh := newTestLink("burst")
		require.NoError(t, store.CreateLink(ctx, fresh))

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = store.IncrementClicks(ctx, fresh.ID, "2026-08-26")
			}()
		}
		wg.Wait()

		total, err := store.TotalClicks(ctx, fresh.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(50), total)
	})
}

func TestMemoryStorageAPIKeys(t *testing.T) {
	store, err := NewMemoryStorage(Config{})
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()

	raw, err := models.GenerateAPIKey()
	require.NoError(t, err)
	key := models.NewAPIKey(models.NewID(), "ops", "deploy bot", raw)
	require.NoError(t, store.CreateAPIKey(ctx, key))

	t.Run("lookup by hash", func(t *testing.T) {
		got, err := store.GetAPIKeyByHash(ctx, models.HashAPIKey(raw))
		require.NoError(t, err)
		assert.Equal(t, key.ID, got.ID)
		assert.Nil(t, got.LastUsedAt)

		_, err = store.GetAPIKeyByHash(ctx, models.HashAPIKey("shr_wrong"))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("duplicate hash rejected", func(t *testing.T) {
		dup := models.NewAPIKey(models.NewID(), "ops", "clone", raw)
		assert.ErrorIs(t, store.CreateAPIKey(ctx, dup), ErrDuplicate)
	})

	t.Run("touch", func(t *testing.T) {
		usedAt := time.Now().UTC()
		require.NoError(t, store.TouchAPIKey(ctx, key.ID, usedAt))

		got, err := store.GetAPIKeyByHash(ctx, key.KeyHash)
		require.NoError(t, err)
		require.NotNil(t, got.LastUsedAt)
		assert.WithinDuration(t, usedAt, *got.LastUsedAt, time.Second)

		assert.ErrorIs(t, store.TouchAPIKey(ctx, "nope", usedAt), ErrNotFound)
	})

	t.Run("delete frees hash", func(t *testing.T) {
		require.NoError(t, store.DeleteAPIKey(ctx, key.ID))

		_, err := store.GetAPIKeyByHash(ctx, key.KeyHash)
		assert.ErrorIs(t, err, ErrNotFound)

		assert.ErrorIs(t, store.DeleteAPIKey(ctx, key.ID), ErrNotFound)
	})
}

func TestMemoryStorageWindows(t *testing.T) {
	store, err := NewMemoryStorage(Config{})
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	const windowStart = int64(1_700_000_040_000)

	t.Run("missing window counts zero", func(t *testing.T) {
		count, err := store.WindowCount(ctx, "key-a", windowStart)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("increment below limit", func(t *testing.T) {
		for i := int64(1); i <= 3; i++ {
			count, admitted, err := store.IncrementWindowBelow(ctx, "key-a", windowStart, 3)
			require.NoError(t, err)
			assert.True(t, admitted)
			assert.Equal(t, i, count)
		}

		count, admitted, err := store.IncrementWindowBelow(ctx, "key-a", windowStart, 3)
		require.NoError(t, err)
		assert.False(t, admitted)
		assert.Equal(t, int64(3), count)
	})

	t.Run("keys and windows are independent", func(t *testing.T) {
		_, admitted, err := store.IncrementWindowBelow(ctx, "key-b", windowStart, 3)
		require.NoError(t, err)
		assert.True(t, admitted)

		_, admitted, err = store.IncrementWindowBelow(ctx, "key-a", windowStart+60_000, 3)
		require.NoError(t, err)
		assert.True(t, admitted)
	})

	t.Run("exactly limit admitted under contention", func(t *testing.T) {
		const limit = 10
		ws := windowStart + 120_000

		var wg sync.WaitGroup
		admittedCh := make(chan bool, 2*limit)
		for i := 0; i < 2*limit; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, admitted, err := store.IncrementWindowBelow(ctx, "key-c", ws, limit)
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

		count, err := store.WindowCount(ctx, "key-c", ws)
		require.NoError(t, err)
		assert.Equal(t, int64(limit), count)
	})

	t.Run("delete windows before cutoff", func(t *testing.T) {
		deleted, err := store.DeleteWindowsBefore(ctx, windowStart+60_000)
		require.NoError(t, err)
		// key-a and key-b records in the original window.
		assert.Equal(t, int64(2), deleted)

		count, err := store.WindowCount(ctx, "key-a", windowStart)
		require.NoError(t, err)
		assert.Zero(t, count)

		// The newer windows survive.
		count, err = store.WindowCount(ctx, "key-a", windowStart+60_000)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})
}

func TestMemoryStorageListOrdering(t *testing.T) {
	store, err := NewMemoryStorage(Config{})
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		link := newTestLink(fmt.Sprintf("order-%d", i))
		link.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.CreateLink(ctx, link))
	}

	links, err := store.ListLinks(ctx, "")
	require.NoError(t, err)
	require.Len(t, links, 3)
	assert.Equal(t, "order-2", links[0].Slug)
	assert.Equal(t, "order-0", links[2].Slug)
}
