package shorten

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"shortener/internal/models"
	"shortener/internal/storage"
)

// slugRetries bounds collision retries when generating a random slug.
const slugRetries = 3

// Service handles link, tag, and click-analytics business logic
type Service struct {
	storage storage.Storage
	logger  *slog.Logger

	// clickTimeout bounds the background click-recording write kicked
	// off by Resolve.
	clickTimeout time.Duration
}

// NewService creates a new link service with the given storage backend
func NewService(storage storage.Storage, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		storage:      storage,
		logger:       logger,
		clickTimeout: 5 * time.Second,
	}
}

// CreateLink registers a new short link. When the request carries no slug a
// random one is generated, retrying on the unlikely collision.
func (s *Service) CreateLink(ctx context.Context, req *models.CreateLinkRequest, createdBy string) (*models.LinkResponse, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, NewInvalidRequestError(err.Error(), err)
	}

	now := time.Now().UTC()
	link := &models.Link{
		ID:             models.NewID(),
		Slug:           req.Slug,
		DestinationURL: req.DestinationURL,
		Title:          req.Title,
		CreatedBy:      createdBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if link.Slug != "" {
		if err := s.storage.CreateLink(ctx, link); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				return nil, NewSlugTakenError(link.Slug)
			}
			return nil, NewInternalError("failed to create link", err)
		}
	} else {
		if err := s.createWithGeneratedSlug(ctx, link); err != nil {
			return nil, err
		}
	}

	// Attach tags, creating any that do not exist yet. Tag failures after
	// the link row exists roll the link back so creation stays all-or-nothing.
	for _, tagName := range req.Tags {
		if err := s.attachTag(ctx, link.ID, tagName); err != nil {
			if delErr := s.storage.DeleteLink(ctx, link.ID); delErr != nil {
				s.logger.Error("failed to roll back link after tag error",
					"link_id", link.ID, "error", delErr)
			}
			return nil, err
		}
	}

	return s.linkResponse(ctx, link)
}

// createWithGeneratedSlug stores the link under a fresh random slug,
// regenerating on collision.
func (s *Service) createWithGeneratedSlug(ctx context.Context, link *models.Link) error {
	for attempt := 0; attempt < slugRetries; attempt++ {
		slug, err := generateSlug()
		if err != nil {
			return NewInternalError("failed to generate slug", err)
		}
		link.Slug = slug

		err = s.storage.CreateLink(ctx, link)
		if err == nil {
			return nil
		}
		if !errors.Is(err, storage.ErrDuplicate) {
			return NewInternalError("failed to create link", err)
		}
		s.logger.Warn("generated slug collided, retrying", "slug", slug, "attempt", attempt+1)
	}
	return NewInternalError("failed to find a free slug", storage.ErrDuplicate)
}

// GetLink returns a single link by ID
func (s *Service) GetLink(ctx context.Context, id string) (*models.LinkResponse, error) {
	link, err := s.storage.GetLink(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, NewLinkNotFoundError(id)
		}
		return nil, NewInternalError("failed to get link", err)
	}
	return s.linkResponse(ctx, link)
}

// ListLinks returns all links, optionally filtered by tag name
func (s *Service) ListLinks(ctx context.Context, tag string) (*models.ListLinksResponse, error) {
	if tag != "" {
		tag = models.NormalizeTagName(tag)
		if err := models.ValidateTagName(tag); err != nil {
			return nil, NewInvalidRequestError(err.Error(), err)
		}
	}

	links, err := s.storage.ListLinks(ctx, tag)
	if err != nil {
		return nil, NewInternalError("failed to list links", err)
	}

	resp := &models.ListLinksResponse{
		Links:      make([]models.LinkResponse, 0, len(links)),
		TotalCount: len(links),
	}
	for _, link := range links {
		lr, err := s.linkResponse(ctx, link)
		if err != nil {
			return nil, err
		}
		resp.Links = append(resp.Links, *lr)
	}
	return resp, nil
}

// UpdateLink modifies an existing link
func (s *Service) UpdateLink(ctx context.Context, id string, req *models.UpdateLinkRequest) (*models.LinkResponse, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, NewInvalidRequestError(err.Error(), err)
	}

	link, err := s.storage.GetLink(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, NewLinkNotFoundError(id)
		}
		return nil, NewInternalError("failed to get link", err)
	}

	if req.Slug != nil {
		link.Slug = *req.Slug
	}
	if req.DestinationURL != nil {
		link.DestinationURL = *req.DestinationURL
	}
	if req.Title != nil {
		link.Title = *req.Title
	}
	link.UpdatedAt = time.Now().UTC()

	if err := s.storage.UpdateLink(ctx, link); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, NewSlugTakenError(link.Slug)
		}
		if errors.Is(err, storage.ErrNotFound) {
			return nil, NewLinkNotFoundError(id)
		}
		return nil, NewInternalError("failed to update link", err)
	}

	return s.linkResponse(ctx, link)
}

// DeleteLink removes a link along with its tag associations and click stats
func (s *Service) DeleteLink(ctx context.Context, id string) error {
	if err := s.storage.DeleteLink(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return NewLinkNotFoundError(id)
		}
		return NewInternalError("failed to delete link", err)
	}
	return nil
}

// Resolve returns the link for a slug and records the click in the
// background. The redirect never waits on, and never fails because of,
// click accounting.
func (s *Service) Resolve(ctx context.Context, slug string) (*models.Link, error) {
	if err := models.ValidateSlug(slug); err != nil {
		return nil, NewLinkNotFoundError(slug)
	}

	link, err := s.storage.GetLinkBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, NewLinkNotFoundError(slug)
		}
		return nil, NewInternalError("failed to resolve slug", err)
	}

	go s.recordClick(link.ID)

	return link, nil
}

// recordClick bumps today's click bucket for the link. Runs detached from
// the request, so it carries its own timeout.
func (s *Service) recordClick(linkID string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.clickTimeout)
	defer cancel()

	day := models.ClickDay(time.Now())
	if err := s.storage.IncrementClicks(ctx, linkID, day); err != nil {
		s.logger.Error("failed to record click", "link_id", linkID, "day", day, "error", err)
	}
}

// GetStats returns aggregated click analytics for a link. days bounds the
// daily breakdown; the total is always all-time.
func (s *Service) GetStats(ctx context.Context, id string, days int) (*models.LinkStatsResponse, error) {
	if days <= 0 {
		days = 30
	}

	link, err := s.storage.GetLink(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, NewLinkNotFoundError(id)
		}
		return nil, NewInternalError("failed to get link", err)
	}

	since := models.ClickDay(time.Now().AddDate(0, 0, -(days - 1)))
	daily, err := s.storage.ListClickStats(ctx, id, since)
	if err != nil {
		return nil, NewInternalError("failed to list click stats", err)
	}

	total, err := s.storage.TotalClicks(ctx, id)
	if err != nil {
		return nil, NewInternalError("failed to total clicks", err)
	}

	return &models.LinkStatsResponse{
		LinkID:      link.ID,
		Slug:        link.Slug,
		TotalClicks: total,
		Daily:       daily,
	}, nil
}

// CreateTag registers a new tag
func (s *Service) CreateTag(ctx context.Context, req *models.CreateTagRequest) (*models.TagResponse, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, NewInvalidRequestError(err.Error(), err)
	}

	tag := &models.Tag{
		ID:        models.NewID(),
		Name:      req.Name,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.storage.CreateTag(ctx, tag); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, NewTagExistsError(tag.Name)
		}
		return nil, NewInternalError("failed to create tag", err)
	}

	resp := &models.TagResponse{}
	resp.FromTag(tag)
	return resp, nil
}

// ListTags returns all tags sorted by name
func (s *Service) ListTags(ctx context.Context) (*models.ListTagsResponse, error) {
	tags, err := s.storage.ListTags(ctx)
	if err != nil {
		return nil, NewInternalError("failed to list tags", err)
	}

	resp := &models.ListTagsResponse{
		Tags:       make([]models.TagResponse, 0, len(tags)),
		TotalCount: len(tags),
	}
	for _, tag := range tags {
		tr := models.TagResponse{}
		tr.FromTag(tag)
		resp.Tags = append(resp.Tags, tr)
	}
	return resp, nil
}

// DeleteTag removes a tag by name, detaching it from all links
func (s *Service) DeleteTag(ctx context.Context, name string) error {
	name = models.NormalizeTagName(name)
	tag, err := s.storage.GetTagByName(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return NewTagNotFoundError(name)
		}
		return NewInternalError("failed to get tag", err)
	}

	if err := s.storage.DeleteTag(ctx, tag.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return NewTagNotFoundError(name)
		}
		return NewInternalError("failed to delete tag", err)
	}
	return nil
}

// TagLink attaches a tag (by name) to a link, creating the tag if needed
func (s *Service) TagLink(ctx context.Context, linkID, tagName string) error {
	if _, err := s.storage.GetLink(ctx, linkID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return NewLinkNotFoundError(linkID)
		}
		return NewInternalError("failed to get link", err)
	}
	return s.attachTag(ctx, linkID, tagName)
}

// UntagLink detaches a tag (by name) from a link. Detaching a tag that is
// not attached is a no-op.
func (s *Service) UntagLink(ctx context.Context, linkID, tagName string) error {
	tagName = models.NormalizeTagName(tagName)
	tag, err := s.storage.GetTagByName(ctx, tagName)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return NewTagNotFoundError(tagName)
		}
		return NewInternalError("failed to get tag", err)
	}

	if err := s.storage.UntagLink(ctx, linkID, tag.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return NewLinkNotFoundError(linkID)
		}
		return NewInternalError("failed to untag link", err)
	}
	return nil
}

// attachTag resolves or creates the named tag and attaches it to the link.
func (s *Service) attachTag(ctx context.Context, linkID, tagName string) error {
	tagName = models.NormalizeTagName(tagName)
	if err := models.ValidateTagName(tagName); err != nil {
		return NewInvalidRequestError(err.Error(), err)
	}

	tag, err := s.storage.GetTagByName(ctx, tagName)
	if errors.Is(err, storage.ErrNotFound) {
		tag = &models.Tag{
			ID:        models.NewID(),
			Name:      tagName,
			CreatedAt: time.Now().UTC(),
		}
		if createErr := s.storage.CreateTag(ctx, tag); createErr != nil {
			// Lost a race with a concurrent create; re-read the winner.
			if !errors.Is(createErr, storage.ErrDuplicate) {
				return NewInternalError("failed to create tag", createErr)
			}
			tag, err = s.storage.GetTagByName(ctx, tagName)
			if err != nil {
				return NewInternalError("failed to get tag", err)
			}
		}
	} else if err != nil {
		return NewInternalError("failed to get tag", err)
	}

	if err := s.storage.TagLink(ctx, linkID, tag.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return NewLinkNotFoundError(linkID)
		}
		return NewInternalError("failed to tag link", err)
	}
	return nil
}

// linkResponse builds the API view of a link including its tag names.
func (s *Service) linkResponse(ctx context.Context, link *models.Link) (*models.LinkResponse, error) {
	resp := &models.LinkResponse{}
	resp.FromLink(link)

	tags, err := s.storage.ListLinkTags(ctx, link.ID)
	if err != nil {
		return nil, NewInternalError("failed to list link tags", err)
	}
	for _, tag := range tags {
		resp.Tags = append(resp.Tags, tag.Name)
	}
	return resp, nil
}
