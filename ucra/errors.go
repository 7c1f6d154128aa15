package ucra

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Status is the numeric result code reported across the entry points.
type Status int

const (
	StatusSuccess Status = iota
	StatusInvalidArgument
	StatusOutOfMemory
	StatusNotSupported
	StatusInternal
	StatusFileNotFound
	StatusInvalidJSON
	StatusInvalidManifest
	// StatusEndOfStream is returned by a pull callback that has no more
	// notes to provide.
	StatusEndOfStream
)

// String returns the symbolic name of the status.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusInvalidArgument:
		return "invalid argument"
	case StatusOutOfMemory:
		return "out of memory"
	case StatusNotSupported:
		return "not supported"
	case StatusInternal:
		return "internal error"
	case StatusFileNotFound:
		return "file not found"
	case StatusInvalidJSON:
		return "invalid json"
	case StatusInvalidManifest:
		return "invalid manifest"
	case StatusEndOfStream:
		return "end of stream"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Err returns the sentinel error for the status, or nil for StatusSuccess.
func (s Status) Err() error {
	switch s {
	case StatusSuccess:
		return nil
	case StatusInvalidArgument:
		return ErrInvalidArgument
	case StatusOutOfMemory:
		return ErrOutOfMemory
	case StatusNotSupported:
		return ErrNotSupported
	case StatusFileNotFound:
		return ErrFileNotFound
	case StatusInvalidJSON:
		return ErrInvalidJSON
	case StatusInvalidManifest:
		return ErrInvalidManifest
	case StatusEndOfStream:
		return ErrEndOfStream
	default:
		return ErrInternal
	}
}

// Sentinel errors, one per status code.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrOutOfMemory     = errors.New("out of memory")
	ErrNotSupported    = errors.New("not supported")
	ErrInternal        = errors.New("internal error")

	// Data errors from the manifest and flag loaders
	ErrFileNotFound    = errors.New("file not found")
	ErrInvalidJSON     = errors.New("invalid json")
	ErrInvalidManifest = errors.New("invalid manifest")

	// Streaming
	ErrEndOfStream = errors.New("end of stream")
)

var sentinels = []struct {
	err    error
	status Status
}{
	{ErrInvalidArgument, StatusInvalidArgument},
	{ErrOutOfMemory, StatusOutOfMemory},
	{ErrNotSupported, StatusNotSupported},
	{ErrInternal, StatusInternal},
	{ErrFileNotFound, StatusFileNotFound},
	{ErrInvalidJSON, StatusInvalidJSON},
	{ErrInvalidManifest, StatusInvalidManifest},
	{ErrEndOfStream, StatusEndOfStream},
}

// statusCarrier is implemented by errors that know their own status code.
type statusCarrier interface {
	StatusCode() Status
}

// StatusOf maps an error to its status code. Errors that match none of the
// sentinels map to StatusInternal.
func StatusOf(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	var sc statusCarrier
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return s.status
		}
	}
	return StatusInternal
}

// IsRecoverable reports whether the caller can keep using the handle that
// produced err.
func IsRecoverable(err error) bool {
	switch StatusOf(err) {
	case StatusInternal, StatusOutOfMemory:
		return false
	}
	return true
}

// Error provides detailed error information.
type Error struct {
	Err       error                  // Sentinel describing the failure class
	Cause     error                  // Underlying error, may be nil
	Component string                 // Component that generated the error
	Action    string                 // Action being performed when error occurred
	Timestamp int64                  // Unix timestamp when error occurred
	Context   map[string]interface{} // Additional context
}

// NewError creates an error for the given sentinel, component and action.
func NewError(err error, component, action string) *Error {
	return &Error{
		Err:       err,
		Component: component,
		Action:    action,
		Timestamp: time.Now().Unix(),
		Context:   make(map[string]interface{}),
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Component != "" {
		b.WriteString(e.Component)
		if e.Action != "" {
			b.WriteString(" ")
			b.WriteString(e.Action)
		}
		b.WriteString(": ")
	}
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	} else {
		b.WriteString("unknown UCRA error")
	}
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%v", k, e.Context[k])
		}
		b.WriteString(")")
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// StatusCode returns the status of the sentinel.
func (e *Error) StatusCode() Status {
	for _, s := range sentinels {
		if e.Err == s.err {
			return s.status
		}
	}
	return StatusInternal
}

// WithCause attaches the underlying error.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// WithContext adds context to the error.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}
