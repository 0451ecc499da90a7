package features

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownCategory = errors.New("unknown category")
	ErrMissingField    = errors.New("missing required field")
	ErrInvalidSchema   = errors.New("invalid feature schema")
)

// UnknownCategoryError reports a categorical value outside the vocabulary the
// schema was fitted on.
type UnknownCategoryError struct {
	Field string
	Value string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown category %q for field %s", e.Value, e.Field)
}

func (e *UnknownCategoryError) Unwrap() error {
	return ErrUnknownCategory
}

type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field %s", e.Field)
}

func (e *MissingFieldError) Unwrap() error {
	return ErrMissingField
}
