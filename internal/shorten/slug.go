package shorten

import (
	"crypto/rand"
	"fmt"
)

// slugAlphabet is the base62 character set used for generated slugs.
const slugAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// generatedSlugLength gives 62^7 ≈ 3.5e12 possible slugs, plenty for a
// self-hosted deployment while staying short enough to type.
const generatedSlugLength = 7

// generateSlug returns a random base62 slug. Modulo bias from the 256/62
// remainder is negligible for slug purposes.
func generateSlug() (string, error) {
	b := make([]byte, generatedSlugLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate slug: %w", err)
	}
	for i := range b {
		b[i] = slugAlphabet[int(b[i])%len(slugAlphabet)]
	}
	return string(b), nil
}
