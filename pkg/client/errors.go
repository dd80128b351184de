package client

import (
	"fmt"

	"github.com/Sternrassler/artic-table/pkg/artwork"
)

// ErrorClass represents a classification of fetch failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx responses.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx responses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 responses and requests refused by
	// the local rate limit tracker.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents transport and timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents a response body that could not be parsed.
	ErrorClassDecode ErrorClass = "decode"
)

// APIError describes a failed page fetch. Every APIError matches
// artwork.ErrFetchFailed under errors.Is.
type APIError struct {
	Page       int
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("artworks page %d: %s error (status %d): %s: %v",
			e.Page, e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("artworks page %d: %s error (status %d): %s",
		e.Page, e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is reports APIError as a fetch failure.
func (e *APIError) Is(target error) bool {
	return target == artwork.ErrFetchFailed
}
