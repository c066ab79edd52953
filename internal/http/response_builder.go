// Package http provides the JSON API server and its handlers.
//
// This file implements the Builder Pattern for constructing JSON responses
// and the single mapping from domain errors to API errors.

package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"nettracker/internal/core"
	"nettracker/internal/services"
)

// Error codes carried in the "code" field of an error body.
const (
	CodeBadRequest      = "bad_request"
	CodeValidation      = "validation_failed"
	CodeNotFound        = "not_found"
	CodeAuth            = "auth_failed"
	CodeRemote          = "remote_unavailable"
	CodeSyncInProgress  = "sync_in_progress"
	CodeExportDisabled  = "export_disabled"
	CodeExportFailed    = "export_failed"
	CodeRateLimited     = "rate_limited"
	CodeNotReady        = "not_ready"
	CodeInternal        = "internal_error"
	CodeRequestCanceled = "request_canceled"
)

// APIError is the payload of every error response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorBody struct {
	Error APIError `json:"error"`
}

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body. A nil body writes no
// content.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// StatusCode returns the status the builder will write.
func (b *JSONResponseBuilder) StatusCode() int {
	return b.statusCode
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	if b.body == nil || b.statusCode == http.StatusNoContent {
		w.WriteHeader(b.statusCode)
		return
	}

	payload, err := json.Marshal(b.body)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"code":"internal_error","message":"failed to encode response"}}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(payload)
	_, _ = w.Write([]byte("\n"))
}

// ErrorResponse creates a standard error response.
func ErrorResponse(statusCode int, code, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(errorBody{Error: APIError{Code: code, Message: message}})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, CodeBadRequest, message)
}

// UnprocessableEntityError creates a 422 Unprocessable Entity error response.
func UnprocessableEntityError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, CodeValidation, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, CodeInternal, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, CodeNotFound, message)
}

// TooManyRequestsError creates a 429 response.
func TooManyRequestsError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded, try again later").
		Header("Retry-After", "60")
}

// FromError maps a domain error to its API error. Unknown errors become a
// 500 with a generic message so internal details do not leak.
func FromError(err error) *JSONResponseBuilder {
	switch {
	case errors.Is(err, core.ErrValidation):
		return UnprocessableEntityError(err.Error())
	case errors.Is(err, core.ErrNotFound):
		return NotFoundError(err.Error())
	case errors.Is(err, core.ErrAuth):
		return ErrorResponse(http.StatusUnauthorized, CodeAuth, err.Error())
	case errors.Is(err, services.ErrSyncInProgress):
		return ErrorResponse(http.StatusConflict, CodeSyncInProgress, err.Error())
	case errors.Is(err, core.ErrNetwork):
		return ErrorResponse(http.StatusBadGateway, CodeRemote, err.Error())
	case errors.Is(err, services.ErrExportDisabled):
		return ErrorResponse(http.StatusServiceUnavailable, CodeExportDisabled, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorResponse(http.StatusServiceUnavailable, CodeRequestCanceled, "request canceled")
	default:
		return InternalServerError("internal error")
	}
}
