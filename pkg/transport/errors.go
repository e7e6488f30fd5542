package transport

import (
	"errors"
	"fmt"
)

// Common errors returned by the transport.
var (
	// ErrNetworkFailure is matched by every failed document fetch, whatever
	// its class. Use errors.As with *FetchError for details.
	ErrNetworkFailure = errors.New("network failure")

	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of fetch failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx responses, including missing shards.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx responses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents connection and timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents a body that is not the expected JSON document.
	ErrorClassDecode ErrorClass = "decode"
)

// FetchError describes a failed document fetch.
type FetchError struct {
	Path       string
	StatusCode int
	Class      ErrorClass
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		if e.Err != nil {
			return fmt.Sprintf("fetch %s: %s error (status %d): %v", e.Path, e.Class, e.StatusCode, e.Err)
		}
		return fmt.Sprintf("fetch %s: %s error (status %d)", e.Path, e.Class, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s error: %v", e.Path, e.Class, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s error", e.Path, e.Class)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is reports every FetchError as ErrNetworkFailure.
func (e *FetchError) Is(target error) bool {
	return target == ErrNetworkFailure
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassServer, ErrorClassNetwork:
		return true
	default:
		// 4xx means the document does not exist; a bad body will not improve.
		return false
	}
}
