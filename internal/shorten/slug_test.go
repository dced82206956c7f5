package shorten

import (
	"strings"
	"testing"

	"shortener/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSlug(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		slug, err := generateSlug()
		require.NoError(t, err)

		assert.Len(t, slug, generatedSlugLength)
		assert.NoError(t, models.ValidateSlug(slug))
		for _, c := range slug {
			assert.True(t, strings.ContainsRune(slugAlphabet, c))
		}
		seen[slug] = true
	}
	// 100 draws from 62^7 colliding would point at a broken generator.
	assert.Len(t, seen, 100)
}
