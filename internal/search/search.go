// Package search compiles and applies regex patterns for query filtering.
package search

import (
	"regexp"

	"github.com/trailofbits/slither-mcp/internal/errors"
)

// Compile compiles a filter pattern. Invalid regex surfaces as
// INVALID_PATTERN with the compiler's message, never as a panic or an
// empty result set.
func Compile(pattern string, caseSensitive bool) (*regexp.Regexp, error) {
	if !caseSensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errors.Wrap(errors.InvalidPattern, "invalid regex pattern", err)
	}
	return re, nil
}

// Filter returns the items whose string form matches the pattern
func Filter[T any](items []T, re *regexp.Regexp, stringOf func(T) string) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if re.MatchString(stringOf(item)) {
			out = append(out, item)
		}
	}
	return out
}
