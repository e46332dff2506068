package errs

import (
	"errors"
	"fmt"
)

// Common sentinel errors.
var (
	ErrNotFound           = errors.New("not found")
	ErrDataConflict       = errors.New("data conflict")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactive           = errors.New("client is inactive")
	ErrNotCustomer        = errors.New("client is not a customer")
)

// Type just for murshallig purpose.
// Should only be used immediately before marshalling.
type JSON struct {
	Error string `json:"error"`
}

// Let users know which required form field is not provided.
type RequiredFormFieldError struct {
	FieldName string
}

func (e *RequiredFormFieldError) Error() string {
	return fmt.Sprintf("form field %q is required, but not found", e.FieldName)
}

// Is reports RequiredFormFieldError as an invalid request.
func (e *RequiredFormFieldError) Is(target error) bool {
	return target == ErrInvalidRequest
}
