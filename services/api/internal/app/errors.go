package app

import "errors"

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrEmailExists        = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrNoImage            = errors.New("no image stored")
)

// inputError wraps ErrInvalidInput with a message safe to show to callers.
type inputError struct{ msg string }

func (e inputError) Error() string { return e.msg }
func (e inputError) Unwrap() error { return ErrInvalidInput }

func invalid(msg string) error { return inputError{msg: msg} }
