package errors

import (
	"errors"
	"fmt"
)

// Common error types for the console session and API client
var (
	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotAuthenticated   = errors.New("not authenticated")

	// Refresh errors
	ErrNoRefreshToken  = errors.New("no refresh token")
	ErrRefreshRejected = errors.New("refresh rejected")

	// Request errors
	ErrAuthExpired = errors.New("session expired")
	ErrNetwork     = errors.New("network error")
	ErrServer      = errors.New("server error")
	ErrClient      = errors.New("client error")

	// Storage errors
	ErrDecrypt = errors.New("unable to decrypt session record")

	// General errors
	ErrInternal = errors.New("internal error")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// WithCause marks cause with sentinel so both match errors.Is
func WithCause(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %w", sentinel, cause)
}
