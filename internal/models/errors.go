package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrAuthFailure     = errors.New("invalid credentials")
	ErrSessionAbsent   = errors.New("no active session")
	ErrFetchFailure    = errors.New("failed to fetch products")
	ErrUploadFailure   = errors.New("image upload failed")
	ErrWriteFailure    = errors.New("failed to save product")
	ErrValidation      = errors.New("validation failed")
	ErrInvalidPrice    = fmt.Errorf("%w: price must be a non-negative number", ErrValidation)
	ErrProductNotFound = errors.New("product not found")
	ErrNotConfirmed    = errors.New("delete was not confirmed")
	ErrEmailTaken      = errors.New("email already registered")
)

// ValidationError lists the fields that failed validation, keyed by form field name.
type ValidationError struct {
	Fields map[string]string
	Cause  error
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, e.Fields[k])
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(msgs, "; "))
}

func (e *ValidationError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrValidation, e.Cause}
	}
	return []error{ErrValidation}
}
