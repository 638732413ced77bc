package usecase

import "fmt"

type ErrorCode string

const (
	ErrorNoActiveSession  ErrorCode = "NO_ACTIVE_SESSION"
	ErrorSessionNotFound  ErrorCode = "SESSION_NOT_FOUND"
	ErrorUnknownCommand   ErrorCode = "UNKNOWN_COMMAND"
	ErrorInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrorStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
	ErrorStoreConflict    ErrorCode = "STORE_CONFLICT"
	ErrorAgent            ErrorCode = "AGENT_ERROR"
	ErrorAgentTimeout     ErrorCode = "AGENT_TIMEOUT"
	ErrorInvariant        ErrorCode = "INVARIANT_VIOLATION"
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}
