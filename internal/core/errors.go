package core

import (
	"errors"
	"fmt"
	"time"
)

// Core errors that can occur across the system
var (
	// Storage errors
	ErrTaskNotFound  = errors.New("task not found")
	ErrTokenNotFound = errors.New("token not found")

	// Provider errors
	ErrUnknownProvider = errors.New("unknown provider")
)

// ErrorKind discriminates provider error variants. The sync engine
// switches on the kind rather than on concrete platform error types.
type ErrorKind string

const (
	// ErrAuth means the credential is invalid, expired, or lacks scope.
	// Never retried; the user must reconnect the account.
	ErrAuth ErrorKind = "auth"

	// ErrConnection means the transport to the platform failed.
	ErrConnection ErrorKind = "connection"

	// ErrRateLimit means the platform quota was exceeded and retries
	// were exhausted. RetryAfter hints when to try again.
	ErrRateLimit ErrorKind = "rate_limit"

	// ErrNotFound means the platform has no record of the referenced
	// task. Surfaced on update, swallowed on delete.
	ErrNotFound ErrorKind = "not_found"
)

// ProviderError is the typed error surface of every platform adapter.
// Native platform errors never cross the adapter boundary.
type ProviderError struct {
	Kind     ErrorKind
	Provider string

	// RetryAfter is set for rate-limit errors when the platform
	// supplied a hint.
	RetryAfter time.Duration

	Err error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s: %s error", e.Provider, e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewAuthError reports an invalid or expired credential.
func NewAuthError(provider string, err error) *ProviderError {
	return &ProviderError{Kind: ErrAuth, Provider: provider, Err: err}
}

// NewConnectionError reports a transport failure.
func NewConnectionError(provider string, err error) *ProviderError {
	return &ProviderError{Kind: ErrConnection, Provider: provider, Err: err}
}

// NewRateLimitError reports quota exhaustion with an optional retry hint.
func NewRateLimitError(provider string, retryAfter time.Duration, err error) *ProviderError {
	return &ProviderError{Kind: ErrRateLimit, Provider: provider, RetryAfter: retryAfter, Err: err}
}

// NewNotFoundError reports a missing remote task.
func NewNotFoundError(provider string, err error) *ProviderError {
	return &ProviderError{Kind: ErrNotFound, Provider: provider, Err: err}
}

// errorKind extracts the kind from an error chain, or "" if the chain
// contains no ProviderError.
func errorKind(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// IsAuthError reports whether err is a credential failure.
func IsAuthError(err error) bool { return errorKind(err) == ErrAuth }

// IsConnectionError reports whether err is a transport failure.
func IsConnectionError(err error) bool { return errorKind(err) == ErrConnection }

// IsRateLimitError reports whether err is a rate-limit failure.
func IsRateLimitError(err error) bool { return errorKind(err) == ErrRateLimit }

// IsNotFoundError reports whether err is a missing-remote-task failure.
func IsNotFoundError(err error) bool { return errorKind(err) == ErrNotFound }
