package util

import (
	"errors"
	"fmt"
)

// Error codes for authentication failures.
const (
	CodeRejected          = "REJECTED"
	CodeTransportFailed   = "TRANSPORT_FAILED"
	CodeMalformedResponse = "MALFORMED_RESPONSE"
	CodeSessionExpired    = "SESSION_EXPIRED"
	CodeUnauthorized      = "UNAUTHORIZED"
)

// AuthError standardizes authentication errors surfaced to callers.
type AuthError struct {
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// NewAuthError constructs an AuthError.
func NewAuthError(code, message string, status int) *AuthError {
	return &AuthError{Code: code, Message: message, Status: status}
}

// NewRejected reports a domain-level rejection carrying the backend message.
func NewRejected(message string) error {
	if message == "" {
		message = "request rejected"
	}
	return NewAuthError(CodeRejected, message, 0)
}

// NewTransportError wraps a network-level failure.
func NewTransportError(err error) error {
	return &AuthError{
		Code:    CodeTransportFailed,
		Message: "backend unreachable",
		Err:     err,
	}
}

// NewMalformedResponse reports a response missing required fields.
func NewMalformedResponse(message string) error {
	if message == "" {
		message = "malformed backend response"
	}
	return NewAuthError(CodeMalformedResponse, message, 0)
}

// NewSessionExpired reports a locally detected token expiration.
func NewSessionExpired() error {
	return NewAuthError(CodeSessionExpired, "session expired", 0)
}

// NewUnauthorized reports a backend 401/403 rejection.
func NewUnauthorized(message string, status int) error {
	if message == "" {
		message = "unauthorized"
	}
	return NewAuthError(CodeUnauthorized, message, status)
}

// ToAuthError converts generic errors to AuthError.
func ToAuthError(err error) *AuthError {
	if err == nil {
		return nil
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr
	}
	return &AuthError{
		Code:    CodeTransportFailed,
		Message: "backend unreachable",
		Err:     err,
	}
}

// HasCode reports whether err is an AuthError with the given code.
func HasCode(err error, code string) bool {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Code == code
	}
	return false
}
