package shorten

import (
	"fmt"
	"net/http"

	"shortener/internal/models"
)

// ServiceError represents errors from the link service with HTTP context
type ServiceError struct {
	Code       string
	Message    string
	StatusCode int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Error constructors for common service errors

func NewSlugTakenError(slug string) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeConflict,
		Message:    fmt.Sprintf("slug '%s' is already in use", slug),
		StatusCode: http.StatusConflict,
	}
}

func NewLinkNotFoundError(id string) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeNotFound,
		Message:    fmt.Sprintf("link '%s' not found", id),
		StatusCode: http.StatusNotFound,
	}
}

func NewTagNotFoundError(name string) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeNotFound,
		Message:    fmt.Sprintf("tag '%s' not found", name),
		StatusCode: http.StatusNotFound,
	}
}

func NewTagExistsError(name string) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeConflict,
		Message:    fmt.Sprintf("tag '%s' already exists", name),
		StatusCode: http.StatusConflict,
	}
}

func NewInvalidRequestError(message string, err error) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeInvalidRequest,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Err:        err,
	}
}

func NewInternalError(message string, err error) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeInternalError,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}
