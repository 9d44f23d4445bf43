package domain

import "errors"

// Expected, caller-recoverable conditions. Anything not wrapping one of these
// is an internal fault.
var (
	ErrValidation              = errors.New("validation failed")
	ErrDuplicateEmail          = errors.New("email already registered")
	ErrInvalidCredentials      = errors.New("invalid email or password")
	ErrNotVerified             = errors.New("account is not verified")
	ErrUnauthenticated         = errors.New("not authenticated")
	ErrForbidden               = errors.New("access forbidden")
	ErrInvalidOrExpiredToken   = errors.New("invalid or expired token")
	ErrInvalidOrExpiredSession = errors.New("invalid or expired session")
	ErrIdentityNotFound        = errors.New("identity not found")
	ErrAlreadyVerified         = errors.New("account already verified")
)

// Signer failures. The Gate collapses all of them into ErrUnauthenticated.
var (
	ErrTokenMalformed        = errors.New("token malformed")
	ErrTokenSignatureInvalid = errors.New("token signature invalid")
	ErrTokenExpired          = errors.New("token expired")
)

// Session registry failures, collapsed into ErrInvalidOrExpiredSession at the boundary.
var (
	ErrSessionNotFound = errors.New("refresh session not found")
	ErrSessionExpired  = errors.New("refresh session expired")
)

// ValidationError carries the human message of a rejected input. It matches
// ErrValidation under errors.Is.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return ErrValidation.Error() + ": " + e.Msg
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError wraps ErrValidation with a human message.
func NewValidationError(msg string) error {
	return &ValidationError{Msg: msg}
}
