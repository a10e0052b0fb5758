package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors shared by repositories and services. Controllers map these
// onto HTTP statuses; nothing below the controller layer knows about HTTP.
var (
	// ErrNotFound is returned when an issue or referenced entity is absent.
	ErrNotFound = errors.New("not found")

	// ErrPermission is returned when the actor lacks the required role or
	// ownership for an operation.
	ErrPermission = errors.New("permission denied")

	// ErrConflict signals a uniqueness-constraint violation, e.g. a duplicate
	// vote inserted by a concurrent request. Services recover from it
	// internally; it must never reach a client.
	ErrConflict = errors.New("conflict")

	// ErrTransient signals a store failure or aborted transaction that is
	// safe to retry.
	ErrTransient = errors.New("transient failure")
)

// ValidationError carries per-field constraint violations.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidationError builds a ValidationError with an initial field message.
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// AsValidationError unwraps err into a *ValidationError if it is one.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
