// Package errors defines the typed error taxonomy surfaced across the
// exchange core, from the order store down to the HTTP boundary.
package errors

import (
	"fmt"
	"net/http"
)

// Code identifies a class of failure understood by every layer of the core.
type Code string

const (
	InvalidArgument       Code = "INVALID_ARGUMENT"
	NotFound              Code = "NOT_FOUND"
	Unauthorized          Code = "UNAUTHORIZED"
	Forbidden             Code = "FORBIDDEN"
	BadSignature          Code = "BAD_SIGNATURE"
	Conflict              Code = "CONFLICT"
	InsufficientLiquidity Code = "INSUFFICIENT_LIQUIDITY"
	SlippageExceeded      Code = "SLIPPAGE_EXCEEDED"
	SettlementRejected    Code = "SETTLEMENT_REJECTED"
	Internal              Code = "INTERNAL"
)

// ExchangeError is the structured error type returned by every core
// component. It carries enough context for the HTTP boundary to render
// `{success:false, error:"..."}` without re-deriving the failure reason.
type ExchangeError struct {
	Code    Code
	Message string
	Details map[string]interface{}
	Cause   error
}

func (e *ExchangeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *ExchangeError) Unwrap() error { return e.Cause }

// WithDetail attaches a key/value pair to the error, returning the receiver
// for chaining.
func (e *ExchangeError) WithDetail(key string, value interface{}) *ExchangeError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates an ExchangeError with the given code and message.
func New(code Code, message string) *ExchangeError {
	return &ExchangeError{Code: code, Message: message}
}

// Newf creates an ExchangeError with a formatted message.
func Newf(code Code, format string, args ...interface{}) *ExchangeError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches a cause to a new ExchangeError.
func Wrap(err error, code Code, message string) *ExchangeError {
	if err == nil {
		return nil
	}
	return &ExchangeError{Code: code, Message: message, Cause: err}
}

// Is reports whether err (or something it wraps) carries the given code.
func Is(err error, code Code) bool {
	var ee *ExchangeError
	if As(err, &ee) {
		return ee.Code == code
	}
	return false
}

// As finds the first ExchangeError in err's chain and assigns it to target.
func As(err error, target **ExchangeError) bool {
	for err != nil {
		if ee, ok := err.(*ExchangeError); ok {
			*target = ee
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}

// CodeOf extracts the Code from err, or "" if err isn't an ExchangeError.
func CodeOf(err error) Code {
	var ee *ExchangeError
	if As(err, &ee) {
		return ee.Code
	}
	return ""
}

// HTTPStatus maps a Code onto the status code the HTTP surface returns.
func HTTPStatus(code Code) int {
	switch code {
	case InvalidArgument, BadSignature, Conflict, InsufficientLiquidity, SlippageExceeded:
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case SettlementRejected, Internal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
