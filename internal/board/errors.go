package board

import (
	"errors"
	"fmt"
)

// Code is the exit-code style classification carried by board errors. It
// mirrors the status codes the acquisition firmware and drivers report, so
// callers can switch on the class of failure without parsing messages.
type Code int

const (
	CodeOK Code = iota
	CodePortOpen
	CodeUnsupportedBoard
	CodeSessionNotReady
	CodeStreamAlreadyRunning
	CodeStreamThread
	CodeEmptyBuffer
	CodeInvalidArguments
	CodeFileOpen
)

// String returns the symbolic name of the code.
func (c Code) String() string {
	switch c {
	case CodeOK:
		return "STATUS_OK"
	case CodePortOpen:
		return "PORT_OPEN_ERROR"
	case CodeUnsupportedBoard:
		return "UNSUPPORTED_BOARD_ERROR"
	case CodeSessionNotReady:
		return "SESSION_NOT_READY_ERROR"
	case CodeStreamAlreadyRunning:
		return "STREAM_ALREADY_RUNNING_ERROR"
	case CodeStreamThread:
		return "STREAM_THREAD_ERROR"
	case CodeEmptyBuffer:
		return "EMPTY_BUFFER_ERROR"
	case CodeInvalidArguments:
		return "INVALID_ARGUMENTS_ERROR"
	case CodeFileOpen:
		return "FILE_OPEN_ERROR"
	default:
		return fmt.Sprintf("UNKNOWN_ERROR(%d)", int(c))
	}
}

// Error is a board failure with its classification code. The underlying
// cause, if any, is wrapped and reachable through errors.Unwrap.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s:%d %s: %v", e.Code, int(e.Code), e.Message, e.Err)
	}
	return fmt.Sprintf("%s:%d %s", e.Code, int(e.Code), e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors that carry the same code, so sentinel comparisons like
// errors.Is(err, &Error{Code: CodeEmptyBuffer}) work.
func (e *Error) Is(target error) bool {
	var be *Error
	if errors.As(target, &be) {
		return be.Code == e.Code
	}
	return false
}

// newError builds a coded error without an underlying cause.
func newError(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// wrapError builds a coded error around an underlying cause.
func wrapError(code Code, err error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf extracts the board code from an error chain. Errors that do not
// originate here report CodeStreamThread as a generic failure class.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	var be *Error
	if errors.As(err, &be) {
		return be.Code
	}
	return CodeStreamThread
}
