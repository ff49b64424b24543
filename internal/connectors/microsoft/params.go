package microsoft

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// MaxPageSize is the largest $top Microsoft Graph accepts on collection endpoints.
const MaxPageSize = 1000

// ParsePageSize parses a $top value. Empty selects def; values above max are clamped.
func ParsePageSize(val string, def, max int) (int, error) {
	val = strings.TrimSpace(val)
	if val == "" {
		return def, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: top must be a positive integer", ErrInvalidRequest)
	}
	if n > max {
		n = max
	}
	return n, nil
}

// ParseOffset parses a $skip value. Empty selects zero.
func ParseOffset(val string) (int, error) {
	val = strings.TrimSpace(val)
	if val == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: skip must be a non-negative integer", ErrInvalidRequest)
	}
	return n, nil
}

// PathSegment escapes a Graph item ID for use in a request path.
func PathSegment(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: id is required", ErrInvalidRequest)
	}
	return url.PathEscape(id), nil
}
