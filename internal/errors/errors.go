package errors

import (
	"errors"
	"fmt"
)

// Common error types for the session gateway
var (
	// Boundary errors, rejected before any identity provider call
	ErrCSRF             = errors.New("csrf validation failed")
	ErrMalformedRequest = errors.New("malformed request")

	// Authentication errors
	ErrAuthentication      = errors.New("authentication failed")
	ErrInvalidIDToken      = errors.New("invalid identity token")
	ErrStaleIDToken        = errors.New("identity token is not fresh")
	ErrProviderUnavailable = errors.New("identity provider unavailable")

	// Session credential errors
	ErrInvalidSession  = errors.New("invalid session credential")
	ErrSessionExpired  = errors.New("session credential expired")
	ErrSessionRevoked  = errors.New("session credential revoked")
	ErrInvalidLifetime = errors.New("invalid session lifetime")

	// General errors
	ErrNotFound = errors.New("not found")
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

// Join wraps err so that it matches both kind and the original cause.
func Join(kind, err error) error {
	if err == nil {
		return kind
	}
	return fmt.Errorf("%w: %w", kind, err)
}
