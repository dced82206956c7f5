package models

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// slugPattern restricts slugs to URL-safe characters. Slugs are matched
// case-sensitively on the redirect path.
var slugPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// reservedSlugs are path segments claimed by the service itself and can
// never be used as short link slugs.
var reservedSlugs = map[string]bool{
	"api":     true,
	"health":  true,
	"metrics": true,
}

// Link maps a short slug to a destination URL.
type Link struct {
	ID             string    `json:"id"`
	Slug           string    `json:"slug"`
	DestinationURL string    `json:"destination_url"`
	Title          string    `json:"title,omitempty"`
	CreatedBy      string    `json:"created_by,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Validate checks that the link has a well-formed slug and destination.
func (l *Link) Validate() error {
	if err := ValidateSlug(l.Slug); err != nil {
		return err
	}
	return ValidateDestinationURL(l.DestinationURL)
}

// ValidateSlug checks slug format and reserved-path collisions.
func ValidateSlug(slug string) error {
	if slug == "" {
		return fmt.Errorf("slug is required")
	}
	if !slugPattern.MatchString(slug) {
		return fmt.Errorf("slug must be 1-64 characters of a-z, A-Z, 0-9, '-' or '_'")
	}
	if reservedSlugs[strings.ToLower(slug)] {
		return fmt.Errorf("slug %q is reserved", slug)
	}
	return nil
}

// ValidateDestinationURL checks that the destination is an absolute
// http or https URL.
func ValidateDestinationURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("destination_url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("destination_url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("destination_url must use http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("destination_url must be absolute")
	}
	return nil
}
