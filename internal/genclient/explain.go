package genclient

import (
	"errors"
	"fmt"

	"github.com/dmorgan81/genserve/internal/httpx"
)

// Explain turns a client error into the message shown to a person.
func Explain(err error, endpoint string) string {
	var statusErr *httpx.StatusError
	switch {
	case errors.Is(err, httpx.ErrUnreachable):
		return fmt.Sprintf("Cannot connect to API at %s. Make sure the service is running.", endpoint)
	case errors.Is(err, httpx.ErrTimeout):
		return "Request timed out. The model might be loading or overloaded."
	case errors.As(err, &statusErr):
		return fmt.Sprintf("Generation failed: %d - %s", statusErr.Code, statusErr.Body)
	default:
		return fmt.Sprintf("Error: %v", err)
	}
}
