package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"shortener/internal/auth"
	"shortener/internal/models"
	"shortener/internal/shorten"
	"shortener/internal/storage"
	"shortener/internal/version"
)

// Handlers contains HTTP handlers for the shortener API
type Handlers struct {
	linkService shorten.ServiceInterface
	validator   *auth.Validator
	storage     storage.Storage
	baseURL     string
}

// HandlerOption configures optional handler behavior.
type HandlerOption func(*Handlers)

// WithBaseURL sets the public base URL used to render short_url fields in
// link responses. Trailing slashes are stripped.
func WithBaseURL(baseURL string) HandlerOption {
	return func(h *Handlers) {
		h.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// NewHandlers creates a new handlers instance
func NewHandlers(linkService shorten.ServiceInterface, validator *auth.Validator, store storage.Storage, opts ...HandlerOption) *Handlers {
	h := &Handlers{
		linkService: linkService,
		validator:   validator,
		storage:     store,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HealthCheck handles health check requests
// GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := models.NewHealthCheckResponse(models.StatusHealthy)
	response.Version = version.Version

	if err := h.storage.Ping(r.Context()); err != nil {
		response.Status = models.StatusUnhealthy
		response.AddComponent("storage", models.StatusUnhealthy, err.Error())
		h.writeJSONResponse(w, http.StatusServiceUnavailable, response)
		return
	}

	response.AddComponent("storage", models.StatusHealthy, "Storage is operational")
	response.AddComponent("api", models.StatusHealthy, "API is operational")
	h.writeJSONResponse(w, http.StatusOK, response)
}

// decorate fills in the short_url field when a base URL is configured.
func (h *Handlers) decorate(lr *models.LinkResponse) {
	if h.baseURL != "" {
		lr.ShortURL = fmt.Sprintf("%s/%s", h.baseURL, lr.Slug)
	}
}

// writeJSONResponse writes a JSON response
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already written; nothing useful left to send.
		fmt.Printf("Error encoding JSON response: %v\n", err)
	}
}

// writeErrorResponse writes an error response
func (h *Handlers) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) {
	errorResp := models.NewErrorResponse(message, errorCode)
	h.writeJSONResponse(w, statusCode, errorResp)
}

// writeServiceError maps a service-layer error to its HTTP representation.
// Unrecognized errors become opaque 500s so storage internals never leak.
func (h *Handlers) writeServiceError(w http.ResponseWriter, err error) {
	var svcErr *shorten.ServiceError
	if errors.As(err, &svcErr) {
		h.writeErrorResponse(w, svcErr.StatusCode, svcErr.Code, svcErr.Message)
		return
	}
	h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "Internal server error")
}
