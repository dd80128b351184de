package client

import (
	"errors"
	"io"
	"testing"

	"github.com/Sternrassler/artic-table/pkg/artwork"
)

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name     string
		apiError *APIError
		expected string
	}{
		{
			name: "error with wrapped error",
			apiError: &APIError{
				Page:       2,
				ErrorClass: ErrorClassNetwork,
				Message:    "http request failed",
				Err:        io.ErrUnexpectedEOF,
			},
			expected: "artworks page 2: network error (status 0): http request failed: unexpected EOF",
		},
		{
			name: "error without wrapped error",
			apiError: &APIError{
				Page:       1,
				StatusCode: 503,
				ErrorClass: ErrorClassServer,
				Message:    "503 Service Unavailable",
			},
			expected: "artworks page 1: server error (status 503): 503 Service Unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.apiError.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAPIError_Is(t *testing.T) {
	var err error = &APIError{Page: 3, ErrorClass: ErrorClassDecode, Err: io.EOF}

	if !errors.Is(err, artwork.ErrFetchFailed) {
		t.Error("APIError should match artwork.ErrFetchFailed")
	}
	if !errors.Is(err, io.EOF) {
		t.Error("APIError should unwrap to the underlying error")
	}
	if errors.Is(err, artwork.ErrInvalidInput) {
		t.Error("APIError should not match artwork.ErrInvalidInput")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Page != 3 {
		t.Errorf("errors.As() = %+v", apiErr)
	}
}
