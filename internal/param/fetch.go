package param

import (
	"context"
	"errors"
)

type Fetcher interface {
	Fetch(context.Context, string) (string, error)
}

var ErrNoSource = errors.New("neither a value nor a parameter path is configured")

// Resolve prefers an inline value and falls back to fetching path.
func Resolve(ctx context.Context, f Fetcher, value, path string) (string, error) {
	switch {
	case value != "":
		return value, nil
	case path == "":
		return "", ErrNoSource
	case f == nil:
		return "", errors.New("no parameter fetcher configured for " + path)
	}
	return f.Fetch(ctx, path)
}
