package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every account error wraps exactly one of these.
var (
	// ErrValidation is returned when the caller supplied malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict is returned when registration collides with an existing account.
	ErrConflict = errors.New("conflict")
	// ErrAuthentication is returned when credentials do not resolve to an account.
	ErrAuthentication = errors.New("authentication failed")
)

var (
	ErrInvalidName        = fmt.Errorf("%w: invalid name", ErrValidation)
	ErrInvalidMobile      = fmt.Errorf("%w: invalid mobile", ErrValidation)
	ErrInvalidEmail       = fmt.Errorf("%w: invalid email", ErrValidation)
	ErrPasswordTooShort   = fmt.Errorf("%w: password too short", ErrValidation)
	ErrPasswordMismatch   = fmt.Errorf("%w: password mismatch", ErrValidation)
	ErrMissingCredentials = fmt.Errorf("%w: missing credentials", ErrValidation)

	ErrEmailTaken  = fmt.Errorf("%w: email taken", ErrConflict)
	ErrMobileTaken = fmt.Errorf("%w: mobile taken", ErrConflict)

	ErrAccountNotFound   = fmt.Errorf("%w: account not found", ErrAuthentication)
	ErrIncorrectPassword = fmt.Errorf("%w: incorrect password", ErrAuthentication)
)

//nolint:gochecknoglobals
var errorCodes = []struct {
	err     error
	code    string
	message string
}{
	{ErrInvalidName, "invalid_name", "please enter your name"},
	{ErrInvalidMobile, "invalid_mobile", "mobile number must be exactly 10 digits"},
	{ErrInvalidEmail, "invalid_email", "please enter a valid email address"},
	{ErrPasswordTooShort, "password_too_short", "password must be at least 6 characters"},
	{ErrPasswordMismatch, "password_mismatch", "passwords do not match"},
	{ErrMissingCredentials, "missing_credentials", "email or mobile and password are required"},
	{ErrEmailTaken, "email_taken", "an account with this email already exists"},
	{ErrMobileTaken, "mobile_taken", "an account with this mobile number already exists"},
	{ErrAccountNotFound, "account_not_found", "account not found"},
	{ErrIncorrectPassword, "incorrect_password", "incorrect password"},
}

// ErrorCode returns a stable machine-readable code for an account error,
// or "internal" if err is not one of the account errors.
func ErrorCode(err error) string {
	for _, known := range errorCodes {
		if errors.Is(err, known.err) {
			return known.code
		}
	}

	return "internal"
}

// ErrorMessage returns the fixed user-facing message for an account error.
// It reports false if err is not one of the account errors.
func ErrorMessage(err error) (string, bool) {
	for _, known := range errorCodes {
		if errors.Is(err, known.err) {
			return known.message, true
		}
	}

	return "", false
}

// ErrorFromCode is the inverse of ErrorCode. It returns nil for unknown codes.
func ErrorFromCode(code string) error {
	for _, known := range errorCodes {
		if known.code == code {
			return known.err
		}
	}

	return nil
}
