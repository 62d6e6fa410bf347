package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/tictactoe-live/internal/model"
	"github.com/mcoot/tictactoe-live/internal/services/auth"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest           = "INVALID_REQUEST"
	CodeUnauthorizedMissingToken = "UNAUTHORIZED_MISSING_TOKEN"
	CodeUnauthorizedInvalidToken = "UNAUTHORIZED_INVALID_TOKEN"
	CodeAlreadyConnected         = "ALREADY_CONNECTED"
	CodeNotFound                 = "NOT_FOUND"
	CodeUnavailable              = "UNAVAILABLE"
	CodeInternalError            = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// Status returns the HTTP status err would be written with
func Status(err error) int {
	return toHTTPError(err).status
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	// Check for specific error types
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	switch {
	// Map auth errors
	case errors.Is(err, auth.ErrMissingToken):
		return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorizedMissingToken, "Bearer token required"}}
	case errors.Is(err, auth.ErrInvalidToken):
		return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorizedInvalidToken, "Bearer token is invalid or expired"}}

	// Map model errors
	case errors.Is(err, model.ErrAlreadyConnected):
		return &httpError{http.StatusConflict, APIError{CodeAlreadyConnected, "Player already has a live connection"}}
	case errors.Is(err, model.ErrSocketRebind), errors.Is(err, model.ErrAlreadyBound):
		return &httpError{http.StatusConflict, APIError{CodeAlreadyConnected, "Socket is already bound"}}

	default:
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewNotFoundError creates a not found error
func NewNotFoundError() error {
	return &httpError{http.StatusNotFound, APIError{CodeNotFound, "Not found"}}
}

// NewUnavailableError creates a service unavailable error
func NewUnavailableError(message string) error {
	return &httpError{http.StatusServiceUnavailable, APIError{CodeUnavailable, message}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
