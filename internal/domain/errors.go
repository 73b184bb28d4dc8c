package domain

import "errors"

// Sentinel errors for domain-level error discrimination. Services wrap these
// with context so the HTTP layer can pick a status code without inspecting
// infrastructure errors. Anything not wrapping one of these surfaces as 500.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
)
