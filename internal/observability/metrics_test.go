package observability

import (
	"context"
	"strings"
	"testing"
	"time"

	"shortener/internal/models"
	"shortener/internal/ratelimit"
	"shortener/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// withTestMeterProvider installs a meter provider backed by a private
// Prometheus registry and restores the global provider afterwards.
func withTestMeterProvider(t *testing.T) *prometheus.Registry {
	t.Helper()

	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	require.NoError(t, err)

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	previous := otel.GetMeterProvider()
	otel.SetMeterProvider(mp)
	t.Cleanup(func() {
		otel.SetMeterProvider(previous)
		_ = mp.Shutdown(context.Background())
	})
	return registry
}

// findFamily locates a gathered metric family by name substring.
func findFamily(families []*dto.MetricFamily, fragment string) *dto.MetricFamily {
	for _, mf := range families {
		if strings.Contains(mf.GetName(), fragment) {
			return mf
		}
	}
	return nil
}

// counterValue sums a counter family's samples matching the given label.
func counterValue(mf *dto.MetricFamily, labelName, labelValue string) float64 {
	var total float64
	for _, m := range mf.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == labelName && lp.GetValue() == labelValue {
				total += m.GetCounter().GetValue()
			}
		}
	}
	return total
}

func TestInstrumentedStorageMetrics(t *testing.T) {
	registry := withTestMeterProvider(t)

	inner, err := storage.NewMemoryStorage(storage.Config{Type: "memory"})
	require.NoError(t, err)
	t.Cleanup(func() { inner.Close() })

	instrumented, err := NewInstrumentedStorage(inner)
	require.NoError(t, err)

	link := &models.Link{
		ID:             models.NewID(),
		Slug:           "metrics",
		DestinationURL: "https://example.com",
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	require.NoError(t, instrumented.CreateLink(t.Context(), link))

	// A lookup for a missing link records an error sample.
	_, err = instrumented.GetLink(t.Context(), "no-such-id")
	require.Error(t, err)

	families, err := registry.Gather()
	require.NoError(t, err)

	duration := findFamily(families, "storage_operation_duration")
	require.NotNil(t, duration, "duration histogram not gathered")
	assert.Equal(t, dto.MetricType_HISTOGRAM, duration.GetType())

	var samples uint64
	for _, m := range duration.GetMetric() {
		samples += m.GetHistogram().GetSampleCount()
	}
	assert.GreaterOrEqual(t, samples, uint64(2))

	errors := findFamily(families, "storage_operation_errors")
	require.NotNil(t, errors, "error counter not gathered")
	assert.Equal(t, float64(1), counterValue(errors, "operation", "GetLink"))
	assert.Equal(t, float64(0), counterValue(errors, "operation", "CreateLink"))
}

func TestInstrumentedLimiterMetrics(t *testing.T) {
	registry := withTestMeterProvider(t)

	store, err := storage.NewMemoryStorage(storage.Config{Type: "memory"})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	limiter, err := NewInstrumentedLimiter(ratelimit.NewFixedWindowLimiter(store, ratelimit.Config{
		MaxRequests: 1,
		Window:      time.Hour,
	}))
	require.NoError(t, err)

	first, err := limiter.Allow(t.Context(), "key-1")
	require.NoError(t, err)
	assert.True(t, first.Allowed)

	second, err := limiter.Allow(t.Context(), "key-1")
	require.NoError(t, err)
	assert.False(t, second.Allowed)

	// Status reads are not decisions and must not be counted.
	_, err = limiter.Status(t.Context(), "key-1")
	require.NoError(t, err)

	families, err := registry.Gather()
	require.NoError(t, err)

	decisions := findFamily(families, "ratelimit_decisions")
	require.NotNil(t, decisions, "decision counter not gathered")
	assert.Equal(t, float64(1), counterValue(decisions, "outcome", "allowed"))
	assert.Equal(t, float64(1), counterValue(decisions, "outcome", "denied"))
	assert.Equal(t, float64(0), counterValue(decisions, "outcome", "error"))
}
