package observability

import (
	"context"

	"shortener/internal/ratelimit"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// InstrumentedLimiter wraps a ratelimit.Limiter and counts quota decisions.
type InstrumentedLimiter struct {
	inner     ratelimit.Limiter
	decisions metric.Int64Counter
}

// NewInstrumentedLimiter creates a limiter wrapper that records an
// allowed/denied counter for every quota check.
func NewInstrumentedLimiter(inner ratelimit.Limiter) (*InstrumentedLimiter, error) {
	meter := otel.Meter("shortener/ratelimit")

	decisions, err := meter.Int64Counter(
		"ratelimit.decisions",
		metric.WithDescription("Number of rate limit decisions by outcome"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedLimiter{
		inner:     inner,
		decisions: decisions,
	}, nil
}

// Allow delegates to the wrapped limiter and records the outcome.
func (l *InstrumentedLimiter) Allow(ctx context.Context, apiKeyID string) (ratelimit.Decision, error) {
	decision, err := l.inner.Allow(ctx, apiKeyID)
	if err != nil {
		l.decisions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "error")))
		return decision, err
	}

	outcome := "allowed"
	if !decision.Allowed {
		outcome = "denied"
	}
	l.decisions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	return decision, nil
}

// Status delegates to the wrapped limiter without recording a decision;
// status reads do not consume quota.
func (l *InstrumentedLimiter) Status(ctx context.Context, apiKeyID string) (ratelimit.Decision, error) {
	return l.inner.Status(ctx, apiKeyID)
}
