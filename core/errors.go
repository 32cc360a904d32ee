package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidParams is returned when operation parameters fail validation
	ErrInvalidParams = errors.New("invalid params")

	// ErrUnknownResource is returned for resources that were never registered
	ErrUnknownResource = errors.New("unknown resource")

	// ErrReadOnly is returned when a write targets a read-only resource
	ErrReadOnly = errors.New("resource is read-only")
)

// ValidationError represents one or more invalid parameter fields
type ValidationError struct {
	Operation string
	Fields    []FieldError
}

// FieldError describes a single rejected field
type FieldError struct {
	Field string
	Rule  string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%s: validation failed", e.Operation)
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s (%s)", f.Field, f.Rule)
	}
	return fmt.Sprintf("%s: invalid fields: %s", e.Operation, strings.Join(parts, ", "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidParams
}
