package sync

import (
	"errors"
	"fmt"
)

// ErrCodeNotFound reports a cloud code that never existed or has expired.
// Callers distinguish it from transient provider failures.
var ErrCodeNotFound = errors.New("sync code not found or expired")

// TransportError wraps a failure of a named transport operation. Delivery
// failure never corrupts stored data; callers surface these and retry.
type TransportError struct {
	Transport string
	Op        string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport: %s: %v", e.Transport, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
