package usecase

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	ErrorInvalidInput      ErrorCode = "INVALID_INPUT"
	ErrorRateLimited       ErrorCode = "RATE_LIMITED"
	ErrorUpstream          ErrorCode = "UPSTREAM_ERROR"
	ErrorSchemaUnavailable ErrorCode = "SCHEMA_UNAVAILABLE"
	ErrorInternal          ErrorCode = "INTERNAL_ERROR"
)

// Error is a request-level failure raised before any event is streamed.
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

type httpStatusCoder interface {
	HTTPStatusCode() int
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// FailureKind classifies the terminal failure of a generation.
type FailureKind string

const (
	KindFatalPrecondition FailureKind = "fatal_precondition"
	KindTransport         FailureKind = "transport"
	KindExtraction        FailureKind = "extraction"
	KindValidation        FailureKind = "validation"
)

// Code maps a failure kind onto the request-level error code reported by
// transports.
func (k FailureKind) Code() ErrorCode {
	switch k {
	case KindFatalPrecondition:
		return ErrorSchemaUnavailable
	case KindTransport, KindExtraction, KindValidation:
		return ErrorUpstream
	default:
		return ErrorInternal
	}
}
