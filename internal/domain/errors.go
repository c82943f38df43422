package domain

import "errors"

// Sentinel errors for the domain layer.
var (
	ErrNotFound         = errors.New("domain: not found")
	ErrValidation       = errors.New("domain: validation failed")
	ErrNotAuthenticated = errors.New("domain: not authenticated")
	ErrUnavailable      = errors.New("domain: backend unavailable")
)
