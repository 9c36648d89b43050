// Package domainerrors defines the coded error taxonomy shared by services
// and the transport layer. Stores return sentinel errors; services wrap them
// into coded errors so handlers can translate remediation paths precisely.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a class of failure with a distinct remediation path.
type Code string

const (
	// CodeBadRequest covers malformed or invalid caller input.
	CodeBadRequest Code = "bad_request"
	// CodeInvalidInput covers domain-value parse failures at trust boundaries.
	CodeInvalidInput Code = "invalid_input"
	// CodeUnauthorized means the request carried no valid credentials.
	CodeUnauthorized Code = "unauthorized"
	// CodeAccessDenied means the requester failed the ownership/role check.
	// It is always raised before any decryption is attempted.
	CodeAccessDenied Code = "access_denied"
	// CodeAuthenticationFailure means ciphertext failed authenticated
	// decryption (tamper or corruption). Never masked as a generic failure.
	CodeAuthenticationFailure Code = "authentication_failure"
	// CodeNotFound means the entity or field was never set.
	CodeNotFound Code = "not_found"
	// CodeConcurrentUpdateLost means a compare-and-set update lost the race.
	// Callers should reread and retry rather than treat this as fatal.
	CodeConcurrentUpdateLost Code = "concurrent_update_lost"
	// CodeReplicationInconsistency means a pipeline spawn succeeded but the
	// snapshot replication partially failed. Reported, never rolled back.
	CodeReplicationInconsistency Code = "replication_inconsistency"
	// CodeLocked means the requester is temporarily locked out of reveals.
	CodeLocked Code = "locked"
	// CodeInternal is the fallback for unexpected failures.
	CodeInternal Code = "internal"
)

// Error carries a code alongside a human-readable message and optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a coded error without a cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap builds a coded error around an underlying cause.
func Wrap(code Code, message string, err error) error {
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps codes to HTTP statuses for the transport layer.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeInvalidInput:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeAccessDenied:
		return http.StatusForbidden
	case CodeAuthenticationFailure:
		return http.StatusUnprocessableEntity
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConcurrentUpdateLost:
		return http.StatusConflict
	case CodeLocked:
		return http.StatusTooManyRequests
	case CodeReplicationInconsistency, CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
