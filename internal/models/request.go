// Package models - API request types and input validation.
// Incoming request structures validate fail-fast with clear messages and
// normalize input (trimmed strings, lowercased tag names) before processing.
package models

import (
	"fmt"
	"strings"
)

// CreateLinkRequest creates a new short link. Slug is optional; when empty
// the service generates a random one.
type CreateLinkRequest struct {
	Slug           string   `json:"slug,omitempty"`
	DestinationURL string   `json:"destination_url"`
	Title          string   `json:"title,omitempty"`
	Tags           []string `json:"tags,omitempty"`
}

// Normalize trims whitespace and normalizes tag names in place.
func (r *CreateLinkRequest) Normalize() {
	r.Slug = strings.TrimSpace(r.Slug)
	r.DestinationURL = strings.TrimSpace(r.DestinationURL)
	r.Title = strings.TrimSpace(r.Title)
	for i, tag := range r.Tags {
		r.Tags[i] = NormalizeTagName(tag)
	}
}

// Validate checks field formats. Call Normalize first.
func (r *CreateLinkRequest) Validate() error {
	if r.Slug != "" {
		if err := ValidateSlug(r.Slug); err != nil {
			return err
		}
	}
	if err := ValidateDestinationURL(r.DestinationURL); err != nil {
		return err
	}
	for _, tag := range r.Tags {
		if err := ValidateTagName(tag); err != nil {
			return fmt.Errorf("invalid tag %q: %w", tag, err)
		}
	}
	return nil
}

// UpdateLinkRequest modifies an existing link. All fields are optional;
// nil means "leave unchanged".
type UpdateLinkRequest struct {
	Slug           *string `json:"slug,omitempty"`
	DestinationURL *string `json:"destination_url,omitempty"`
	Title          *string `json:"title,omitempty"`
}

// Normalize trims whitespace on set fields.
func (r *UpdateLinkRequest) Normalize() {
	if r.Slug != nil {
		s := strings.TrimSpace(*r.Slug)
		r.Slug = &s
	}
	if r.DestinationURL != nil {
		s := strings.TrimSpace(*r.DestinationURL)
		r.DestinationURL = &s
	}
	if r.Title != nil {
		s := strings.TrimSpace(*r.Title)
		r.Title = &s
	}
}

// Validate checks set fields. Call Normalize first.
func (r *UpdateLinkRequest) Validate() error {
	if r.Slug == nil && r.DestinationURL == nil && r.Title == nil {
		return fmt.Errorf("at least one field must be provided")
	}
	if r.Slug != nil {
		if err := ValidateSlug(*r.Slug); err != nil {
			return err
		}
	}
	if r.DestinationURL != nil {
		if err := ValidateDestinationURL(*r.DestinationURL); err != nil {
			return err
		}
	}
	return nil
}

// CreateTagRequest creates a new tag.
type CreateTagRequest struct {
	Name string `json:"name"`
}

// Normalize lowercases and trims the tag name.
func (r *CreateTagRequest) Normalize() {
	r.Name = NormalizeTagName(r.Name)
}

// Validate checks the tag name format. Call Normalize first.
func (r *CreateTagRequest) Validate() error {
	return ValidateTagName(r.Name)
}

// CreateAPIKeyRequest issues a new API key.
type CreateAPIKeyRequest struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// Normalize trims whitespace.
func (r *CreateAPIKeyRequest) Normalize() {
	r.Owner = strings.TrimSpace(r.Owner)
	r.Name = strings.TrimSpace(r.Name)
}

// Validate checks required fields. Call Normalize first.
func (r *CreateAPIKeyRequest) Validate() error {
	if r.Owner == "" {
		return fmt.Errorf("owner is required")
	}
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}
