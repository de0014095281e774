// Package provider implements embedding providers backed by remote APIs.
package provider

import (
	"errors"
	"fmt"
)

// ErrRemoteUnavailable indicates the embedding service could not be reached
// or kept failing after all retries.
var ErrRemoteUnavailable = errors.New("embedding service unavailable")

// ProviderError carries the operation and HTTP status of a failed provider
// call.
type ProviderError struct {
	operation  string
	statusCode int
	message    string
	cause      error
}

// NewProviderError creates a ProviderError.
func NewProviderError(operation string, statusCode int, message string, cause error) *ProviderError {
	return &ProviderError{
		operation:  operation,
		statusCode: statusCode,
		message:    message,
		cause:      cause,
	}
}

// Operation returns the failed operation name.
func (e *ProviderError) Operation() string { return e.operation }

// StatusCode returns the HTTP status code, or 0 if none applies.
func (e *ProviderError) StatusCode() int { return e.statusCode }

func (e *ProviderError) Error() string {
	if e.statusCode > 0 {
		return fmt.Sprintf("provider %s failed (status %d): %s", e.operation, e.statusCode, e.message)
	}
	return fmt.Sprintf("provider %s failed: %s", e.operation, e.message)
}

func (e *ProviderError) Unwrap() error { return e.cause }
