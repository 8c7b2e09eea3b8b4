package appointment

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error for callers that map outcomes to responses.
type Kind string

const (
	KindNotFound                  Kind = "not_found"
	KindSlotUnavailable           Kind = "slot_unavailable"
	KindAlreadyCancelled          Kind = "already_cancelled"
	KindDuplicateConfirmationCode Kind = "duplicate_confirmation_code"
	KindTransientStore            Kind = "transient_store_error"
	KindValidation                Kind = "validation_error"
	KindFatal                     Kind = "fatal"
)

var (
	ErrNotFound                  = errors.New("not found")
	ErrSlotUnavailable           = errors.New("time slot is not available")
	ErrAlreadyCancelled          = errors.New("appointment is already cancelled")
	ErrDuplicateConfirmationCode = errors.New("duplicate confirmation number")
	ErrTransientStore            = errors.New("transient store error")
	ErrValidation                = errors.New("validation failed")
	ErrFatal                     = errors.New("fatal error")

	ErrProviderNotFound          = fmt.Errorf("provider %w", ErrNotFound)
	ErrAppointmentTypeNotFound   = fmt.Errorf("appointment type %w", ErrNotFound)
	ErrAppointmentNotFound       = fmt.Errorf("appointment %w", ErrNotFound)
	ErrConfirmationCodeExhausted = fmt.Errorf("confirmation number attempts exhausted: %w", ErrFatal)
)

// KindOf returns the Kind of err, or "" for nil. Unclassified errors are fatal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrSlotUnavailable):
		return KindSlotUnavailable
	case errors.Is(err, ErrAlreadyCancelled):
		return KindAlreadyCancelled
	case errors.Is(err, ErrDuplicateConfirmationCode):
		return KindDuplicateConfirmationCode
	case errors.Is(err, ErrTransientStore):
		return KindTransientStore
	default:
		return KindFatal
	}
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every rejected field of a request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// Err returns e when at least one field was rejected, nil otherwise.
func (e *ValidationError) Err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}
