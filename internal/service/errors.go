package service

import (
	"errors"
	"fmt"
)

// Clases de error; los errores concretos envuelven una de ellas y se comparan con errors.Is.
var (
	ErrValidation     = errors.New("validation error")
	ErrConflict       = errors.New("conflict")
	ErrAuthentication = errors.New("authentication error")
	ErrNotFound       = errors.New("not found")
	ErrDependency     = errors.New("dependency failure")
)

var (
	ErrNameRequired     = kind(ErrValidation, "name is required")
	ErrInvalidEmail     = kind(ErrValidation, "please enter a valid email address")
	ErrPasswordTooShort = kind(ErrValidation, "password must be at least 6 characters long")
	ErrInvalidAge       = kind(ErrValidation, "age must be a non-negative number")
	ErrImageType        = kind(ErrValidation, "only JPEG and PNG images are allowed")
	ErrImageTooLarge    = kind(ErrValidation, "profile image must be 2MB or smaller")

	ErrEmailTaken         = kind(ErrConflict, "user already exists with this email")
	ErrUserNotFound       = kind(ErrNotFound, "user not found")
	ErrEmailSendFailure   = kind(ErrDependency, "email send failed")
	ErrInvalidCredentials = kind(ErrAuthentication, "invalid email or password")
	ErrRateLimited        = errors.New("rate limited")

	// ErrInvalidOrExpiredOTP agrupa los tres rechazos de verificacion de OTP.
	ErrInvalidOrExpiredOTP = kind(ErrAuthentication, "invalid or expired otp")
	ErrOTPNotRequested     = kind(ErrInvalidOrExpiredOTP, "otp not requested")
	ErrOTPExpired          = kind(ErrInvalidOrExpiredOTP, "otp expired")
	ErrOTPInvalid          = kind(ErrInvalidOrExpiredOTP, "otp invalid")

	ErrTokenMissing    = kind(ErrAuthentication, "no token")
	ErrTokenExpired    = kind(ErrAuthentication, "token expired")
	ErrTokenInvalid    = kind(ErrAuthentication, "token invalid")
	ErrSessionUserGone = kind(ErrAuthentication, "session user not found")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

func kind(k error, msg string) error {
	return &kindError{kind: k, msg: msg}
}

func dependency(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrDependency, err)
}
