package cpclient

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidConfig is returned when the client configuration is unusable
	ErrInvalidConfig = errors.New("invalid client configuration")

	// ErrNetworkError is returned when the gateway could not be reached
	ErrNetworkError = errors.New("network error")

	// ErrUnauthorized is returned for a 401 from the gateway
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound is returned for a 404 from the gateway
	ErrNotFound = errors.New("not found")
)

// APIError is a response whose statusCode was not "0"
type APIError struct {
	HTTPStatus int
	Code       string
	Message    string
	Fields     map[string]string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway error %d %s: %s", e.HTTPStatus, e.Code, e.Message)
}

// Is maps the HTTP status onto the package sentinels
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.HTTPStatus == http.StatusUnauthorized
	case ErrNotFound:
		return e.HTTPStatus == http.StatusNotFound
	}
	return false
}

// Code returns the gateway status code carried by err, or "" when err is not an APIError
func Code(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}
