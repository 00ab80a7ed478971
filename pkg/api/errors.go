package api

import (
	"fmt"
	"net/http"
)

// ErrorType represents the category of an API error.
type ErrorType string

const (
	ErrorTypeInvalidRequest ErrorType = "invalid_request_error"
	ErrorTypeAuthentication ErrorType = "authentication_error"
	ErrorTypeProxy          ErrorType = "proxy_error"
	ErrorTypeServerError    ErrorType = "server_error"
)

// Machine-readable error codes.
const (
	CodeModelNotFound      = "model_not_found"
	CodeInvalidAuth        = "invalid_auth"
	CodeMethodNotAllowed   = "method_not_allowed"
	CodeBackendError       = "backend_error"
	CodeAllProvidersFailed = "all_providers_failed"
	CodeRelayRejected      = "relay_rejected"
	CodeUpstreamFailed     = "upstream_unavailable"
	CodeConfiguration      = "configuration_error"
)

// APIError represents a structured API error with type, code, param, and message.
// Status carries the HTTP status to answer with and is not serialized.
type APIError struct {
	Type    ErrorType `json:"type"`
	Code    string    `json:"code,omitempty"`
	Param   string    `json:"param,omitempty"`
	Message string    `json:"message"`
	Status  int       `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (param: %s)", e.Type, e.Message, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// HTTPStatus returns the status carried by the error, or the default
// status for its type when none was set.
func (e *APIError) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	switch e.Type {
	case ErrorTypeInvalidRequest:
		if e.Code == CodeModelNotFound {
			return http.StatusNotFound
		}
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypeProxy:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse wraps an APIError for JSON serialization as the top-level error response.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// NewInvalidRequestError creates an APIError for invalid request parameters.
func NewInvalidRequestError(param, message string) *APIError {
	return &APIError{
		Type:    ErrorTypeInvalidRequest,
		Param:   param,
		Message: message,
		Status:  http.StatusBadRequest,
	}
}

// NewUnauthorizedError creates an APIError for a missing or wrong shared secret.
func NewUnauthorizedError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeAuthentication,
		Code:    CodeInvalidAuth,
		Message: message,
		Status:  http.StatusUnauthorized,
	}
}

// NewModelNotFoundError creates an APIError for a model name that matches no route.
func NewModelNotFoundError(model string) *APIError {
	return &APIError{
		Type:    ErrorTypeInvalidRequest,
		Code:    CodeModelNotFound,
		Param:   "model",
		Message: fmt.Sprintf("The model '%s' does not exist or is not configured", model),
		Status:  http.StatusNotFound,
	}
}

// NewMethodNotAllowedError creates an APIError for an unsupported HTTP method.
func NewMethodNotAllowedError() *APIError {
	return &APIError{
		Type:    ErrorTypeProxy,
		Code:    CodeMethodNotAllowed,
		Message: "Method not allowed",
		Status:  http.StatusMethodNotAllowed,
	}
}

// NewBackendError creates an APIError for a failure reported by one backend.
// A zero status becomes 500.
func NewBackendError(status int, message string) *APIError {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return &APIError{
		Type:    ErrorTypeProxy,
		Code:    CodeBackendError,
		Message: message,
		Status:  status,
	}
}

// NewAllProvidersFailedError creates an APIError once every backend of a
// route has failed. The status is the last observed upstream status.
func NewAllProvidersFailedError(status int, message string) *APIError {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return &APIError{
		Type:    ErrorTypeProxy,
		Code:    CodeAllProvidersFailed,
		Message: message,
		Status:  status,
	}
}

// NewRelayRejectedError creates an APIError for a relay target that is
// malformed (400) or not allowed (403).
func NewRelayRejectedError(status int, message string) *APIError {
	return &APIError{
		Type:    ErrorTypeProxy,
		Code:    CodeRelayRejected,
		Param:   "url",
		Message: message,
		Status:  status,
	}
}

// NewUpstreamUnavailableError creates an APIError for a network-level failure.
func NewUpstreamUnavailableError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeProxy,
		Code:    CodeUpstreamFailed,
		Message: message,
		Status:  http.StatusBadGateway,
	}
}

// NewServerError creates an APIError for internal server errors.
func NewServerError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeServerError,
		Message: message,
		Status:  http.StatusInternalServerError,
	}
}

// NewConfigurationError creates an APIError for a broken deployment, such
// as credentials that are declared but not set.
func NewConfigurationError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeServerError,
		Code:    CodeConfiguration,
		Message: message,
		Status:  http.StatusInternalServerError,
	}
}
