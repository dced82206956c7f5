package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var tagNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,31}$`)

// Tag is a label that can be attached to any number of links.
type Tag struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// NormalizeTagName lowercases and trims a tag name for storage and lookup.
func NormalizeTagName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ValidateTagName checks a normalized tag name against the allowed format.
func ValidateTagName(name string) error {
	if name == "" {
		return fmt.Errorf("tag name is required")
	}
	if !tagNamePattern.MatchString(name) {
		return fmt.Errorf("tag name must be 1-32 characters of a-z, 0-9, '-' or '_', starting with a letter or digit")
	}
	return nil
}
