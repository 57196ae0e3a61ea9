package model

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. The typed errors below match these through errors.Is so
// callers can branch on the category without caring about the details.
var (
	ErrNotFound             = errors.New("not found")
	ErrTemplateInvalid      = errors.New("template invalid")
	ErrMissingRequiredField = errors.New("missing required field")
	ErrInvalidTransition    = errors.New("invalid transition")
	ErrTokenNotFound        = errors.New("signing link not found")
	ErrNotSignable          = errors.New("not signable")
	ErrValidation           = errors.New("validation failed")
	ErrPersistence          = errors.New("persistence error")
)

// TemplateInvalidError reports a template that cannot be rendered.
type TemplateInvalidError struct {
	Reason string
}

func (e *TemplateInvalidError) Error() string {
	return "template invalid: " + e.Reason
}

func (e *TemplateInvalidError) Is(target error) bool { return target == ErrTemplateInvalid }

// MissingFieldsError lists the labels of required variables the binder could
// not satisfy from the deal or the overrides.
type MissingFieldsError struct {
	Labels []string
}

func (e *MissingFieldsError) Error() string {
	return "missing required fields: " + strings.Join(e.Labels, ", ")
}

func (e *MissingFieldsError) Is(target error) bool { return target == ErrMissingRequiredField }

// TransitionError reports an illegal status change.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move contract from %s to %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// NotSignableReason explains why a valid token cannot sign right now.
type NotSignableReason string

const (
	ReasonContractNotSignable NotSignableReason = "contract_not_signable"
	ReasonAlreadySigned       NotSignableReason = "already_signed"
)

// NotSignableError reports a valid token whose contract or role cannot sign.
type NotSignableError struct {
	Reason NotSignableReason
	Status Status
}

func (e *NotSignableError) Error() string {
	switch e.Reason {
	case ReasonAlreadySigned:
		return "this contract has already been signed for your role"
	default:
		return fmt.Sprintf("contract is not open for signature (status %s)", e.Status)
	}
}

func (e *NotSignableError) Is(target error) bool { return target == ErrNotSignable }

// PersistenceError wraps a store failure with the operation that failed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }
