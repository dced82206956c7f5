// Package models - API response types and error handling.
// Outgoing responses share a consistent JSON structure: machine-readable
// error codes alongside human-readable messages, omitempty on optional
// fields, RFC3339 timestamps.
package models

import (
	"time"
)

// LinkResponse is the API view of a short link.
type LinkResponse struct {
	ID             string    `json:"id"`
	Slug           string    `json:"slug"`
	ShortURL       string    `json:"short_url,omitempty"`
	DestinationURL string    `json:"destination_url"`
	Title          string    `json:"title,omitempty"`
	Tags           []string  `json:"tags,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type ListLinksResponse struct {
	Links      []LinkResponse `json:"links"`
	TotalCount int            `json:"total_count"`
}

// LinkStatsResponse reports aggregated click analytics for one link.
type LinkStatsResponse struct {
	LinkID      string      `json:"link_id"`
	Slug        string      `json:"slug"`
	TotalClicks int64       `json:"total_clicks"`
	Daily       []ClickStat `json:"daily"`
}

type TagResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type ListTagsResponse struct {
	Tags       []TagResponse `json:"tags"`
	TotalCount int           `json:"total_count"`
}

// CreateAPIKeyResponse includes the raw key — returned exactly once.
type CreateAPIKeyResponse struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Name      string    `json:"name"`
	Key       string    `json:"key"`
	Prefix    string    `json:"prefix"`
	CreatedAt time.Time `json:"created_at"`
}

// APIKeyResponse is the metadata-only view (no raw key, no hash).
type APIKeyResponse struct {
	ID         string     `json:"id"`
	Owner      string     `json:"owner"`
	Name       string     `json:"name"`
	Prefix     string     `json:"prefix"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// ErrorResponse provides structured error information with debugging context.
type ErrorResponse struct {
	Error     string            `json:"error"`             // Always "error"
	Message   string            `json:"message"`           // Human-readable description
	Code      string            `json:"code,omitempty"`    // Machine-readable error code
	Details   map[string]string `json:"details,omitempty"` // Field-specific details
	Timestamp time.Time         `json:"timestamp"`
}

type HealthCheckResponse struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

type ComponentHealth struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Health status constants
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// Machine-readable error codes. Upper-case with underscores, mapped to
// standard HTTP status codes.
const (
	ErrorCodeNotFound           = "NOT_FOUND"           // 404
	ErrorCodeBadRequest         = "BAD_REQUEST"         // 400
	ErrorCodeInvalidRequest     = "INVALID_REQUEST"     // 400
	ErrorCodeConflict           = "CONFLICT"            // 409
	ErrorCodeUnauthorized       = "UNAUTHORIZED"        // 401
	ErrorCodeRateLimited        = "RATE_LIMIT_EXCEEDED" // 429
	ErrorCodeInternalError      = "INTERNAL_ERROR"      // 500
	ErrorCodeServiceUnavailable = "SERVICE_UNAVAILABLE" // 503
)

func NewErrorResponse(message string, code string) *ErrorResponse {
	return &ErrorResponse{
		Error:     "error",
		Message:   message,
		Code:      code,
		Timestamp: time.Now(),
	}
}

func NewHealthCheckResponse(status string) *HealthCheckResponse {
	return &HealthCheckResponse{
		Status:     status,
		Timestamp:  time.Now(),
		Components: make(map[string]ComponentHealth),
	}
}

func (h *HealthCheckResponse) AddComponent(name, status, message string) {
	h.Components[name] = ComponentHealth{
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// FromLink populates the response from a stored link.
func (lr *LinkResponse) FromLink(link *Link) {
	lr.ID = link.ID
	lr.Slug = link.Slug
	lr.DestinationURL = link.DestinationURL
	lr.Title = link.Title
	lr.CreatedAt = link.CreatedAt
	lr.UpdatedAt = link.UpdatedAt
}

// FromTag populates the response from a stored tag.
func (tr *TagResponse) FromTag(tag *Tag) {
	tr.ID = tag.ID
	tr.Name = tag.Name
	tr.CreatedAt = tag.CreatedAt
}

// FromAPIKey populates the metadata-only view from a stored key.
func (kr *APIKeyResponse) FromAPIKey(k *APIKey) {
	kr.ID = k.ID
	kr.Owner = k.Owner
	kr.Name = k.Name
	kr.Prefix = k.Prefix
	kr.CreatedAt = k.CreatedAt
	kr.LastUsedAt = k.LastUsedAt
}
