package chat

import (
	"errors"
	"fmt"

	"github.com/dmorgan81/genserve/internal/httpx"
)

// Explain turns a client error into the message shown to a person.
func Explain(err error, endpoint string) string {
	switch {
	case errors.Is(err, httpx.ErrUnreachable):
		return fmt.Sprintf("Cannot reach model at %s: %v", endpoint, err)
	case errors.Is(err, httpx.ErrTimeout):
		return fmt.Sprintf("Request timed out: %v", err)
	default:
		return fmt.Sprintf("Error calling API: %v", err)
	}
}
