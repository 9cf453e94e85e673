package service

import "errors"

// Error classes surfaced to callers. Wrap them with fmt.Errorf("...: %w")
// to attach detail; the HTTP layer maps each class to a status code.
var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
)
