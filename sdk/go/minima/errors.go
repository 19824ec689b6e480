// Package minima provides a Go client for the Minima results API.
package minima

import (
	"errors"
	"fmt"
)

// Error represents an error from the Minima API with the HTTP status code
// and the server's error message.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("minima: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// IsNotFound returns true if the error is a 404.
func IsNotFound(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode == 404
	}
	return false
}

// IsUnauthorized returns true if the error is a 401.
func IsUnauthorized(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode == 401
	}
	return false
}

// IsRateLimited returns true if the error is a 429 (Too Many Requests).
func IsRateLimited(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode == 429
	}
	return false
}

// IsRemoteUnavailable returns true if the error is a 502, meaning the
// optimizer service behind Minima failed.
func IsRemoteUnavailable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode == 502
	}
	return false
}
