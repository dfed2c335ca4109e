package core

import (
	"errors"
	"fmt"
)

// ErrorCode is the wire value reported in the code parameter of an error callback.
type ErrorCode string

const (
	CodeUserCancelled     ErrorCode = "user_cancelled"
	CodePermissionDenied  ErrorCode = "permission_denied"
	CodeInvalidRequest    ErrorCode = "invalid_request"
	CodeUnsupportedMethod ErrorCode = "unsupported_method"
	CodePayloadTooLarge   ErrorCode = "payload_too_large"
	CodeNotLoggedIn       ErrorCode = "not_logged_in"
	// CodeRateLimited is part of the wire vocabulary but nothing produces it yet.
	CodeRateLimited   ErrorCode = "rate_limited"
	CodeInternalError ErrorCode = "internal_error"
)

// ErrorCodes lists the closed set of wire error codes.
var ErrorCodes = []ErrorCode{
	CodeUserCancelled,
	CodePermissionDenied,
	CodeInvalidRequest,
	CodeUnsupportedMethod,
	CodePayloadTooLarge,
	CodeNotLoggedIn,
	CodeRateLimited,
	CodeInternalError,
}

// Valid reports whether c belongs to the wire vocabulary.
func (c ErrorCode) Valid() bool {
	for _, known := range ErrorCodes {
		if c == known {
			return true
		}
	}
	return false
}

var (
	// ErrNoSuccessCallback is returned when a success URL is requested for a
	// request that did not carry an x-success destination.
	ErrNoSuccessCallback = errors.New("no x-success provided")
	// ErrNotSignerURL indicates a link that does not belong to the signer protocol.
	ErrNotSignerURL = errors.New("no valid signer request in url")
)

// Error is a protocol failure with an explicit wire code.
type Error struct {
	Code   ErrorCode
	Reason string
}

// Errorf builds a protocol error with a formatted reason.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Reason: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Reason
}

// Friendly renders the error for local display.
func (e *Error) Friendly() string {
	switch e.Code {
	case CodeInvalidRequest:
		if e.Reason == "" {
			return "Invalid request."
		}
		return "Invalid request: " + e.Reason
	case CodeUnsupportedMethod:
		if e.Reason == "" {
			return "Unsupported method."
		}
		return "Unsupported method: " + e.Reason
	case CodePayloadTooLarge:
		if e.Reason == "" {
			return "Payload too large."
		}
		return "Payload too large: " + e.Reason
	default:
		if e.Reason == "" {
			return string(e.Code)
		}
		return e.Reason
	}
}

// Classify maps any failure onto the wire vocabulary. Errors that carry a
// *Error keep their code; everything else is an internal error.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var protoErr *Error
	if errors.As(err, &protoErr) {
		if protoErr.Code.Valid() {
			return protoErr
		}
		return &Error{Code: CodeInternalError, Reason: protoErr.Reason}
	}
	return &Error{Code: CodeInternalError, Reason: err.Error()}
}
