package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"shortener/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareNoCredential(t *testing.T) {
	validator, _ := newTestValidator(t)

	var seen Identity
	handler := Middleware(validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = IdentityFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/links", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, seen.IsVerified())
	assert.Nil(t, seen.Key())
}

func TestMiddlewareValidCredential(t *testing.T) {
	validator, _ := newTestValidator(t)
	key, rawKey, err := validator.Issue(t.Context(), "ops", "ci")
	require.NoError(t, err)

	var seen Identity
	handler := Middleware(validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = IdentityFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/v1/links", nil)
	req.Header.Set("Authorization", "Bearer "+rawKey)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.True(t, seen.IsVerified())
	assert.Equal(t, key.ID, seen.Key().ID)
}

func TestMiddlewareRejections(t *testing.T) {
	validator, _ := newTestValidator(t)
	_, rawKey, err := validator.Issue(t.Context(), "ops", "ci")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{name: "wrong scheme", header: "Basic dXNlcjpwYXNz"},
		{name: "bare token", header: rawKey},
		{name: "unknown key", header: "Bearer shr_never-issued"},
		{name: "empty bearer", header: "Bearer "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Middleware(validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler must not run for rejected credentials")
			}))

			req := httptest.NewRequest("GET", "/api/v1/links", nil)
			req.Header.Set("Authorization", tt.header)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)

			var body models.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, models.ErrorCodeUnauthorized, body.Code)
		})
	}
}

func TestMiddlewareStoreFailure(t *testing.T) {
	validator := NewValidator(brokenStore{})

	handler := Middleware(validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run when the store is down")
	}))

	req := httptest.NewRequest("GET", "/api/v1/links", nil)
	req.Header.Set("Authorization", "Bearer shr_whatever")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	// Infrastructure failure is 503, never 401.
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequireVerified(t *testing.T) {
	handler := RequireVerified()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("default identity rejected", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/keys", nil)
		req = req.WithContext(WithIdentity(req.Context(), DefaultIdentity()))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("verified identity passes", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/keys", nil)
		req = req.WithContext(WithIdentity(req.Context(), Verified(&models.APIKey{ID: "k1"})))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestIdentityFromBareContext(t *testing.T) {
	id := IdentityFrom(t.Context())
	assert.False(t, id.IsVerified())
}
