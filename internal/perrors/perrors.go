// Package perrors defines the closed set of error kinds the core must
// distinguish when driving the LED pipeline (spec §7).
package perrors

import "fmt"

// Kind identifies one of the error categories the coordinator reacts to.
type Kind string

const (
	ConfigInvalid              Kind = "config_invalid"
	FrameSourcePermissionDenied Kind = "frame_source_permission_denied"
	FrameSourceTransient       Kind = "frame_source_transient"
	SerialOpenFailed           Kind = "serial_open_failed"
	SerialConfigureFailed      Kind = "serial_configure_failed"
	SerialWriteFailed          Kind = "serial_write_failed"
	PartialWrite               Kind = "partial_write"
)

// Error wraps an underlying cause with one of the Kind values above so
// callers can branch with errors.Is/errors.As without string-matching.
type Error struct {
	Kind Kind
	Code int // optional errno-style code, e.g. for SerialWriteFailed
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, perrors.ConfigInvalid)-style comparisons against
// a bare Kind value.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

func (k Kind) Error() string { return string(k) }

// New builds an *Error of the given kind wrapping err.
func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// NewWriteFailed builds a SerialWriteFailed error carrying the errno-style
// code observed on the write (ENXIO/EBADF/EIO per spec §4.I).
func NewWriteFailed(code int, err error) *Error {
	return &Error{Kind: SerialWriteFailed, Code: code, Err: err}
}
