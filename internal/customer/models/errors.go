package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	dErrors "customerhub/pkg/domain-errors"
)

// Domain sentinels. Every error returned by this package wraps exactly one of
// these inside a *dErrors.Error, so callers can match on either the sentinel
// (errors.Is) or the code (dErrors.HasCode).
var (
	// Format and validation failures raised by value-object constructors.
	ErrInvalidFormat      = errors.New("invalid format")
	ErrLuhnCheckFailed    = errors.New("luhn check failed")
	ErrNetworkNotDetected = errors.New("card network not detected")
	ErrCVVLengthMismatch  = errors.New("cvv length does not match card network")
	ErrUnderage           = errors.New("customer is under the minimum age")
	ErrAgeOutOfRange      = errors.New("customer age out of range")
	ErrMissingArgument    = errors.New("missing argument")
	ErrBlankReason        = errors.New("reason must not be blank")

	// Card validity failures.
	ErrExpiredAtCreation         = errors.New("card is expired")
	ErrExpirationInPast          = errors.New("expiration is in the past")
	ErrCannotValidateExpiredCard = errors.New("cannot validate an expired card")

	// Cardinality and ownership failures raised by the aggregate.
	ErrCardLimitExceeded    = errors.New("card limit exceeded")
	ErrCardNotFound         = errors.New("card not found")
	ErrCustomerRequiresCard = errors.New("customer must keep at least one card")
	ErrCardOwnerMismatch    = errors.New("card belongs to another customer")
	ErrDuplicateCard        = errors.New("card already registered for customer")
	ErrImmutableIdentity    = errors.New("identity number and birth date cannot change")

	// Lifecycle failures.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// Uniqueness failures. Raised by the service after consulting the store,
	// never by the aggregate itself.
	ErrDuplicateEmail          = errors.New("email already registered")
	ErrDuplicateIdentityNumber = errors.New("identity number already registered")
)

func validationErr(sentinel error, msg string) error {
	return dErrors.Wrap(sentinel, dErrors.CodeValidation, msg)
}

func invariantErr(sentinel error, msg string) error {
	return dErrors.Wrap(sentinel, dErrors.CodeInvariantViolation, msg)
}

func notFoundErr(sentinel error, msg string) error {
	return dErrors.Wrap(sentinel, dErrors.CodeNotFound, msg)
}

// ValidationError aggregates per-field failures of one value object so the
// caller sees every problem at once.
type ValidationError struct {
	Object string
	Fields map[string]string
	cause  error
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return fmt.Sprintf("invalid %s (%s)", e.Object, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return e.cause }

type fieldErrors struct {
	object string
	fields map[string]string
	cause  error
}

func newFieldErrors(object string) *fieldErrors {
	return &fieldErrors{object: object, fields: map[string]string{}}
}

// add records a field failure. The first non-format cause wins so that
// errors.Is(err, ErrUnderage) survives aggregation.
func (f *fieldErrors) add(field, msg string, cause error) {
	if _, exists := f.fields[field]; exists {
		return
	}
	f.fields[field] = msg
	if f.cause == nil || (errors.Is(f.cause, ErrInvalidFormat) && !errors.Is(cause, ErrInvalidFormat)) {
		f.cause = cause
	}
}

func (f *fieldErrors) err() error {
	if len(f.fields) == 0 {
		return nil
	}
	ve := &ValidationError{Object: f.object, Fields: f.fields, cause: f.cause}
	return dErrors.Wrap(ve, dErrors.CodeValidation, "")
}

// StateTransitionError reports an operation attempted from a state its guard
// does not list.
type StateTransitionError struct {
	Operation Operation
	Current   Status
	Allowed   []Status
}

func (e *StateTransitionError) Error() string {
	allowed := make([]string, len(e.Allowed))
	for i, s := range e.Allowed {
		allowed[i] = string(s)
	}
	return fmt.Sprintf("operation %s not allowed in state %s (requires %s)",
		e.Operation, e.Current, strings.Join(allowed, " or "))
}

func (e *StateTransitionError) Unwrap() error { return ErrInvalidStateTransition }

func stateErr(op Operation, current Status, allowed []Status) error {
	ste := &StateTransitionError{Operation: op, Current: current, Allowed: allowed}
	return dErrors.Wrap(ste, dErrors.CodeInvalidState, "")
}
