package observability

import (
	"context"
	"time"

	"shortener/internal/models"
	"shortener/internal/storage"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentedStorage wraps a storage.Storage implementation with
// OpenTelemetry tracing and metrics instrumentation.
type InstrumentedStorage struct {
	inner    storage.Storage
	tracer   trace.Tracer
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

// NewInstrumentedStorage creates a new storage wrapper that records trace spans,
// operation latency histograms, and error counters for every storage method call.
func NewInstrumentedStorage(inner storage.Storage) (*InstrumentedStorage, error) {
	tracer := otel.Tracer("shortener/storage")
	meter := otel.Meter("shortener/storage")

	duration, err := meter.Float64Histogram(
		"storage.operation.duration",
		metric.WithDescription("Duration of storage operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errCounter, err := meter.Int64Counter(
		"storage.operation.errors",
		metric.WithDescription("Number of storage operation errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedStorage{
		inner:    inner,
		tracer:   tracer,
		duration: duration,
		errors:   errCounter,
	}, nil
}

func (s *InstrumentedStorage) startSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, "storage."+operation,
		trace.WithAttributes(append([]attribute.KeyValue{
			attribute.String("storage.operation", operation),
		}, attrs...)...),
	)
	return ctx, span
}

func (s *InstrumentedStorage) record(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	elapsed := time.Since(start).Seconds()
	attrs := metric.WithAttributes(attribute.String("operation", operation))

	s.duration.Record(ctx, elapsed, attrs)

	if err != nil {
		s.errors.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

func (s *InstrumentedStorage) CreateLink(ctx context.Context, link *models.Link) error {
	ctx, span := s.startSpan(ctx, "CreateLink", attribute.String("slug", link.Slug))
	start := time.Now()
	err := s.inner.CreateLink(ctx, link)
	s.record(ctx, span, "CreateLink", start, err)
	return err
}

func (s *InstrumentedStorage) GetLink(ctx context.Context, id string) (*models.Link, error) {
	ctx, span := s.startSpan(ctx, "GetLink", attribute.String("link_id", id))
	start := time.Now()
	result, err := s.inner.GetLink(ctx, id)
	s.record(ctx, span, "GetLink", start, err)
	return result, err
}

func (s *InstrumentedStorage) GetLinkBySlug(ctx context.Context, slug string) (*models.Link, error) {
	ctx, span := s.startSpan(ctx, "GetLinkBySlug", attribute.String("slug", slug))
	start := time.Now()
	result, err := s.inner.GetLinkBySlug(ctx, slug)
	s.record(ctx, span, "GetLinkBySlug", start, err)
	return result, err
}

func (s *InstrumentedStorage) ListLinks(ctx context.Context, tag string) ([]*models.Link, error) {
	ctx, span := s.startSpan(ctx, "ListLinks", attribute.String("tag", tag))
	start := time.Now()
	result, err := s.inner.ListLinks(ctx, tag)
	s.record(ctx, span, "ListLinks", start, err)
	return result, err
}

func (s *InstrumentedStorage) UpdateLink(ctx context.Context, link *models.Link) error {
	ctx, span := s.startSpan(ctx, "UpdateLink", attribute.String("link_id", link.ID))
	start := time.Now()
	err := s.inner.UpdateLink(ctx, link)
	s.record(ctx, span, "UpdateLink", start, err)
	return err
}

func (s *InstrumentedStorage) DeleteLink(ctx context.Context, id string) error {
	ctx, span := s.startSpan(ctx, "DeleteLink", attribute.String("link_id", id))
	start := time.Now()
	err := s.inner.DeleteLink(ctx, id)
	s.record(ctx, span, "DeleteLink", start, err)
	return err
}

func (s *InstrumentedStorage) CreateTag(ctx context.Context, tag *models.Tag) error {
	ctx, span := s.startSpan(ctx, "CreateTag", attribute.String("tag", tag.Name))
	start := time.Now()
	err := s.inner.CreateTag(ctx, tag)
	s.record(ctx, span, "CreateTag", start, err)
	return err
}

func (s *InstrumentedStorage) GetTagByName(ctx context.Context, name string) (*models.Tag, error) {
	ctx, span := s.startSpan(ctx, "GetTagByName", attribute.String("tag", name))
	start := time.Now()
	result, err := s.inner.GetTagByName(ctx, name)
	s.record(ctx, span, "GetTagByName", start, err)
	return result, err
}

func (s *InstrumentedStorage) ListTags(ctx context.Context) ([]*models.Tag, error) {
	ctx, span := s.startSpan(ctx, "ListTags")
	start := time.Now()
	result, err := s.inner.ListTags(ctx)
	s.record(ctx, span, "ListTags", start, err)
	return result, err
}

func (s *InstrumentedStorage) DeleteTag(ctx context.Context, id string) error {
	ctx, span := s.startSpan(ctx, "DeleteTag", attribute.String("tag_id", id))
	start := time.Now()
	err := s.inner.DeleteTag(ctx, id)
	s.record(ctx, span, "DeleteTag", start, err)
	return err
}

func (s *InstrumentedStorage) TagLink(ctx context.Context, linkID, tagID string) error {
	ctx, span := s.startSpan(ctx, "TagLink",
		attribute.String("link_id", linkID),
		attribute.String("tag_id", tagID),
	)
	start := time.Now()
	err := s.inner.TagLink(ctx, linkID, tagID)
	s.record(ctx, span, "TagLink", start, err)
	return err
}

func (s *InstrumentedStorage) UntagLink(ctx context.Context, linkID, tagID string) error {
	ctx, span := s.startSpan(ctx, "UntagLink",
		attribute.String("link_id", linkID),
		attribute.String("tag_id", tagID),
	)
	start := time.Now()
	err := s.inner.UntagLink(ctx, linkID, tagID)
	s.record(ctx, span, "UntagLink", start, err)
	return err
}

func (s *InstrumentedStorage) ListLinkTags(ctx context.Context, linkID string) ([]*models.Tag, error) {
	ctx, span := s.startSpan(ctx, "ListLinkTags", attribute.String("link_id", linkID))
	start := time.Now()
	result, err := s.inner.ListLinkTags(ctx, linkID)
	s.record(ctx, span, "ListLinkTags", start, err)
	return result, err
}

func (s *InstrumentedStorage) IncrementClicks(ctx context.Context, linkID, day string) error {
	ctx, span := s.startSpan(ctx, "IncrementClicks",
		attribute.String("link_id", linkID),
		attribute.String("day", day),
	)
	start := time.Now()
	err := s.inner.IncrementClicks(ctx, linkID, day)
	s.record(ctx, span, "IncrementClicks", start, err)
	return err
}

func (s *InstrumentedStorage) ListClickStats(ctx context.Context, linkID, since string) ([]models.ClickStat, error) {
	ctx, span := s.startSpan(ctx, "ListClickStats",
		attribute.String("link_id", linkID),
		attribute.String("since", since),
	)
	start := time.Now()
	result, err := s.inner.ListClickStats(ctx, linkID, since)
	s.record(ctx, span, "ListClickStats", start, err)
	return result, err
}

func (s *InstrumentedStorage) TotalClicks(ctx context.Context, linkID string) (int64, error) {
	ctx, span := s.startSpan(ctx, "TotalClicks", attribute.String("link_id", linkID))
	start := time.Now()
	result, err := s.inner.TotalClicks(ctx, linkID)
	s.record(ctx, span, "TotalClicks", start, err)
	return result, err
}

func (s *InstrumentedStorage) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	ctx, span := s.startSpan(ctx, "CreateAPIKey", attribute.String("key_id", key.ID))
	start := time.Now()
	err := s.inner.CreateAPIKey(ctx, key)
	s.record(ctx, span, "CreateAPIKey", start, err)
	return err
}

func (s *InstrumentedStorage) GetAPIKeyByHash(ctx context.Context, hash string) (*models.APIKey, error) {
	// The hash is deliberately not attached as a span attribute.
	ctx, span := s.startSpan(ctx, "GetAPIKeyByHash")
	start := time.Now()
	result, err := s.inner.GetAPIKeyByHash(ctx, hash)
	s.record(ctx, span, "GetAPIKeyByHash", start, err)
	return result, err
}

func (s *InstrumentedStorage) ListAPIKeys(ctx context.Context) ([]*models.APIKey, error) {
	ctx, span := s.startSpan(ctx, "ListAPIKeys")
	start := time.Now()
	result, err := s.inner.ListAPIKeys(ctx)
	s.record(ctx, span, "ListAPIKeys", start, err)
	return result, err
}

func (s *InstrumentedStorage) TouchAPIKey(ctx context.Context, id string, usedAt time.Time) error {
	ctx, span := s.startSpan(ctx, "TouchAPIKey", attribute.String("key_id", id))
	start := time.Now()
	err := s.inner.TouchAPIKey(ctx, id, usedAt)
	s.record(ctx, span, "TouchAPIKey", start, err)
	return err
}

func (s *InstrumentedStorage) DeleteAPIKey(ctx context.Context, id string) error {
	ctx, span := s.startSpan(ctx, "DeleteAPIKey", attribute.String("key_id", id))
	start := time.Now()
	err := s.inner.DeleteAPIKey(ctx, id)
	s.record(ctx, span, "DeleteAPIKey", start, err)
	return err
}

func (s *InstrumentedStorage) WindowCount(ctx context.Context, apiKeyID string, windowStart int64) (int64, error) {
	ctx, span := s.startSpan(ctx, "WindowCount",
		attribute.String("key_id", apiKeyID),
		attribute.Int64("window_start", windowStart),
	)
	start := time.Now()
	result, err := s.inner.WindowCount(ctx, apiKeyID, windowStart)
	s.record(ctx, span, "WindowCount", start, err)
	return result, err
}

func (s *InstrumentedStorage) IncrementWindowBelow(ctx context.Context, apiKeyID string, windowStart, limit int64) (int64, bool, error) {
	ctx, span := s.startSpan(ctx, "IncrementWindowBelow",
		attribute.String("key_id", apiKeyID),
		attribute.Int64("window_start", windowStart),
	)
	start := time.Now()
	count, admitted, err := s.inner.IncrementWindowBelow(ctx, apiKeyID, windowStart, limit)
	s.record(ctx, span, "IncrementWindowBelow", start, err)
	return count, admitted, err
}

func (s *InstrumentedStorage) DeleteWindowsBefore(ctx context.Context, cutoff int64) (int64, error) {
	ctx, span := s.startSpan(ctx, "DeleteWindowsBefore", attribute.Int64("cutoff", cutoff))
	start := time.Now()
	result, err := s.inner.DeleteWindowsBefore(ctx, cutoff)
	s.record(ctx, span, "DeleteWindowsBefore", start, err)
	return result, err
}

func (s *InstrumentedStorage) Ping(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "Ping")
	start := time.Now()
	err := s.inner.Ping(ctx)
	s.record(ctx, span, "Ping", start, err)
	return err
}

func (s *InstrumentedStorage) Close() error {
	return s.inner.Close()
}
