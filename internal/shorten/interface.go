package shorten

import (
	"context"

	"shortener/internal/models"
)

// ServiceInterface defines the interface for link shortening operations
type ServiceInterface interface {
	// CreateLink registers a new short link, generating a slug when the
	// request does not provide one
	CreateLink(ctx context.Context, req *models.CreateLinkRequest, createdBy string) (*models.LinkResponse, error)

	// GetLink returns a single link by ID
	GetLink(ctx context.Context, id string) (*models.LinkResponse, error)

	// ListLinks returns all links, optionally filtered by tag name
	ListLinks(ctx context.Context, tag string) (*models.ListLinksResponse, error)

	// UpdateLink modifies an existing link
	UpdateLink(ctx context.Context, id string, req *models.UpdateLinkRequest) (*models.LinkResponse, error)

	// DeleteLink removes a link and its click history
	DeleteLink(ctx context.Context, id string) error

	// Resolve returns the link for a slug and records the click
	Resolve(ctx context.Context, slug string) (*models.Link, error)

	// GetStats returns aggregated click analytics for a link
	GetStats(ctx context.Context, id string, days int) (*models.LinkStatsResponse, error)

	// CreateTag registers a new tag
	CreateTag(ctx context.Context, req *models.CreateTagRequest) (*models.TagResponse, error)

	// ListTags returns all tags
	ListTags(ctx context.Context) (*models.ListTagsResponse, error)

	// DeleteTag removes a tag by name
	DeleteTag(ctx context.Context, name string) error

	// TagLink attaches a tag (by name) to a link
	TagLink(ctx context.Context, linkID, tagName string) error

	// UntagLink detaches a tag (by name) from a link
	UntagLink(ctx context.Context, linkID, tagName string) error
}

// Ensure Service implements ServiceInterface
var _ ServiceInterface = (*Service)(nil)
