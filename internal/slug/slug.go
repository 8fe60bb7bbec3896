package slug

import (
	"context"
	"errors"
	"fmt"

	gosimple "github.com/gosimple/slug"
)

// ErrExhausted means the retry cap was hit while probing for a free slug.
// That many collisions on one base name points at a configuration problem
// (or a stuck probe), so it is fatal rather than retryable.
var ErrExhausted = errors.New("slug: candidate space exhausted")

// TakenFunc reports whether a candidate slug is already in use.
type TakenFunc func(ctx context.Context, candidate string) (bool, error)

// Make normalizes a display name into a URL-safe identifier: lowercase,
// accented letters transliterated to ASCII, runs of non-alphanumerics
// collapsed to single hyphens, no leading or trailing hyphens.
func Make(name string) string {
	return gosimple.Make(name)
}

// Unique probes taken() with Make(name), then name-1, name-2, ... until a
// free candidate is found or retryLimit suffixes have been tried.
func Unique(ctx context.Context, name string, retryLimit int, taken TakenFunc) (string, error) {
	base := Make(name)
	if base == "" {
		base = "tenant"
	}
	if retryLimit <= 0 {
		retryLimit = 10
	}

	candidate := base
	for i := 0; i <= retryLimit; i++ {
		if i > 0 {
			candidate = fmt.Sprintf("%s-%d", base, i)
		}
		inUse, err := taken(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !inUse {
			return candidate, nil
		}
	}
	return "", ErrExhausted
}
