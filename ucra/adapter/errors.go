// Package adapter connects Go callers and remote processes to the UCRA
// entry points. It turns status codes into errors, owns the scratch memory
// handed to pull callbacks, and carries engines and streams over a
// websocket connection.
package adapter

import (
	"fmt"

	"github.com/openucra/ucra-go/ucra"
)

// StatusError is a non-success status returned by an entry point.
type StatusError struct {
	Code  ucra.Status // Status reported by the entry point
	Op    string      // Entry point that reported it
	Cause error       // Richer error captured on the Go side, may be nil
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("ucra %s: %s: %v", e.Op, e.Code, e.Cause)
	}
	return fmt.Sprintf("ucra %s: %s", e.Op, e.Code)
}

// Is matches the sentinel of the status code.
func (e *StatusError) Is(target error) bool {
	return target == e.Code.Err()
}

// Unwrap returns the captured cause.
func (e *StatusError) Unwrap() error {
	return e.Cause
}

// StatusCode returns the status code.
func (e *StatusError) StatusCode() ucra.Status {
	return e.Code
}

// Check converts st into an error, or nil for success.
func Check(op string, st ucra.Status) error {
	if st == ucra.StatusSuccess {
		return nil
	}
	return &StatusError{Code: st, Op: op}
}
