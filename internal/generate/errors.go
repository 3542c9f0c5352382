package generate

import "errors"

// ErrNotReady means the capability has not finished loading, or failed to.
var ErrNotReady = errors.New("model not loaded")

// InvocationError wraps a failure raised by the capability. Its message is
// the capability's own, unaltered.
type InvocationError struct {
	Err error
}

func (e *InvocationError) Error() string {
	return e.Err.Error()
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}
