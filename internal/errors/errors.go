package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a category of application error.
type ErrorCode string

const (
	// ErrCodeAuthentication indicates rejected credentials or a failed login exchange.
	ErrCodeAuthentication ErrorCode = "authentication"
	// ErrCodeMalformedSession indicates stored session data that could not be decoded.
	ErrCodeMalformedSession ErrorCode = "malformed_session"
	// ErrCodeGeolocationUnavailable indicates the client could not supply a position.
	ErrCodeGeolocationUnavailable ErrorCode = "geolocation_unavailable"
	// ErrCodeValidation indicates invalid input data.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeForbidden indicates the caller lacks the required role.
	ErrCodeForbidden ErrorCode = "forbidden"
	// ErrCodeNotFound indicates a resource was not found.
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal ErrorCode = "internal"
)

// DefaultAuthenticationMessage is shown when the login backend gives no reason.
const DefaultAuthenticationMessage = "Error al iniciar sesión"

// AppError represents a structured application error with a code, message, and optional cause.
// It supports error wrapping and unwrapping for use with errors.Is and errors.As.
type AppError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is a human-readable error message, safe to show to end users
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Authentication creates an authentication error. An empty message falls back
// to DefaultAuthenticationMessage.
func Authentication(message string, cause error) *AppError {
	if message == "" {
		message = DefaultAuthenticationMessage
	}
	return &AppError{
		Code:    ErrCodeAuthentication,
		Message: message,
		Cause:   cause,
	}
}

// MalformedSession creates an error describing undecodable session data.
func MalformedSession(cause error) *AppError {
	return &AppError{
		Code:    ErrCodeMalformedSession,
		Message: "session data is malformed",
		Cause:   cause,
	}
}

// GeolocationUnavailable creates an error carrying the user-facing fallback message.
func GeolocationUnavailable(message string) *AppError {
	return &AppError{
		Code:    ErrCodeGeolocationUnavailable,
		Message: message,
	}
}

// Forbidden creates a new Forbidden error.
func Forbidden(message string) *AppError {
	return &AppError{
		Code:    ErrCodeForbidden,
		Message: message,
	}
}

// Validation creates a new Validation error.
func Validation(message string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsAuthentication checks if an error is an Authentication error.
func IsAuthentication(err error) bool {
	return isCode(err, ErrCodeAuthentication)
}

// IsGeolocationUnavailable checks if an error is a GeolocationUnavailable error.
func IsGeolocationUnavailable(err error) bool {
	return isCode(err, ErrCodeGeolocationUnavailable)
}

// IsValidation checks if an error is a Validation error.
func IsValidation(err error) bool {
	return isCode(err, ErrCodeValidation)
}

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// UserMessage returns the message intended for end users, without the cause chain.
// Non-AppError values yield fallback.
func UserMessage(err error, fallback string) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return fallback
}
