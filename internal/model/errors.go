package model

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRecord matches every *InvalidRecordError via errors.Is.
	ErrInvalidRecord = errors.New("invalid record")
	// ErrMissingField matches every *MissingFieldError via errors.Is.
	ErrMissingField = errors.New("missing field")
)

// InvalidRecordError reports a record field holding an impossible value.
type InvalidRecordError struct {
	Record string
	Field  string
	Reason string
	Err    error
}

func (e *InvalidRecordError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s: %s", e.Record, e.Field, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvalidRecordError) Is(target error) bool { return target == ErrInvalidRecord }

func (e *InvalidRecordError) Unwrap() error { return e.Err }

// MissingFieldError reports that an identifying field is absent.
type MissingFieldError struct {
	Record string
	Field  string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s is missing required field %q", e.Record, e.Field)
}

func (e *MissingFieldError) Is(target error) bool { return target == ErrMissingField }
