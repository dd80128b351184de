package artwork

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrFetchFailed classifies any failure to retrieve a page from the
	// remote collection.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrInvalidInput is returned for values rejected at an input boundary.
	ErrInvalidInput = errors.New("invalid input")
)

// ParseCount parses a user-supplied row count. Only plain non-negative
// decimal integers are accepted.
func ParseCount(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("%w: row count is empty", ErrInvalidInput)
	}
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return 0, fmt.Errorf("%w: %q is not a non-negative integer", ErrInvalidInput, raw)
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidInput, raw, err)
	}
	return n, nil
}
