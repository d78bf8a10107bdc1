// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for hioload-mq library.

package api

import "fmt"

// Common errors used across the library.
//
// ErrWouldBlock is not a failure: it is the expected outcome of a
// non-blocking operation that cannot make progress right now, and callers
// are expected to test for it with errors.Is and retry after readiness.
var (
	ErrWouldBlock        = fmt.Errorf("operation would block")
	ErrInvalidState      = fmt.Errorf("invalid connection state")
	ErrConnClosed        = fmt.Errorf("connection closed")
	ErrConnectFailed     = fmt.Errorf("connect failed")
	ErrBindFailed        = fmt.Errorf("bind failed")
	ErrAlreadyRegistered = fmt.Errorf("already registered")
	ErrNotRegistered     = fmt.Errorf("not registered")
	ErrBadMagic          = fmt.Errorf("bad message magic")
	ErrMsgTooBig         = fmt.Errorf("message exceeds size limit")
	ErrPollClosed        = fmt.Errorf("poll set is closed")
	ErrNotSupported      = fmt.Errorf("operation not supported")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeWouldBlock
	ErrCodeInvalidState
	ErrCodeConnect
	ErrCodeBind
	ErrCodeConnClosed
	ErrCodeAlreadyRegistered
	ErrCodeNotRegistered
	ErrCodeBadMagic
	ErrCodeMsgTooBig
	ErrCodePollClosed
	ErrCodeNotSupported
	ErrCodeInternal
)

// codeSentinels maps classified codes onto the package sentinels so that
// errors.Is sees through a structured *Error.
var codeSentinels = map[ErrorCode]error{
	ErrCodeWouldBlock:        ErrWouldBlock,
	ErrCodeInvalidState:      ErrInvalidState,
	ErrCodeConnect:           ErrConnectFailed,
	ErrCodeBind:              ErrBindFailed,
	ErrCodeConnClosed:        ErrConnClosed,
	ErrCodeAlreadyRegistered: ErrAlreadyRegistered,
	ErrCodeNotRegistered:     ErrNotRegistered,
	ErrCodeBadMagic:          ErrBadMagic,
	ErrCodeMsgTooBig:         ErrMsgTooBig,
	ErrCodePollClosed:        ErrPollClosed,
	ErrCodeNotSupported:      ErrNotSupported,
}

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %+v)", msg, e.Context)
}

// Unwrap exposes both the classified sentinel and the underlying cause,
// so errors.Is matches either.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s, ok := codeSentinels[e.Code]; ok {
		errs = append(errs, s)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithCause records the underlying OS-level error for diagnostics.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}
