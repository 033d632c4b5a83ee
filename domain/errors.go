package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrValidation          = errors.New("validation failed")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrAccountLocked       = errors.New("account temporarily locked")
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrPaymentNotCompleted = errors.New("payment not completed")
	ErrStaleVersion        = errors.New("record was modified by another request")
	ErrGateway             = errors.New("payment provider error")
	ErrTxRefCollision      = errors.New("transaction reference collision")
)

// ValidationError carries field-qualified messages.
type ValidationError struct {
	Fields map[string][]string
}

func NewValidationError(field string, messages ...string) *ValidationError {
	return &ValidationError{Fields: map[string][]string{field: messages}}
}

func (e *ValidationError) Error() string {
	for field, messages := range e.Fields {
		if len(messages) > 0 {
			return field + ": " + messages[0]
		}
	}
	return ErrValidation.Error()
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
