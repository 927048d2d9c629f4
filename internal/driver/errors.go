package driver

import "fmt"

// Error codes. Only ErrCodeContextInit is fatal to Start; everything
// else is recoverable and leaves the driver in a well-defined state.
const (
	ErrCodeContextInit     = "CONTEXT_INIT"
	ErrCodeNotFound        = "DEVICE_NOT_FOUND"
	ErrCodeAccessDenied    = "ACCESS_DENIED"
	ErrCodeOpenFailed      = "OPEN_FAILED"
	ErrCodeNegotiation     = "FORMAT_NEGOTIATION_FAILED"
	ErrCodeStreamStart     = "STREAM_START_FAILED"
	ErrCodeControlRejected = "CONTROL_REJECTED"
	ErrCodeConvert         = "FRAME_CONVERSION_FAILED"
	ErrCodeOversizedFrame  = "OVERSIZED_FRAME"
	ErrCodeEmptyFrame      = "EMPTY_FRAME"
)

// Error is a typed driver failure.
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}
