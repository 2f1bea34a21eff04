// Package errors provides the classified error taxonomy used across the
// sensor deployment manager. It includes error kinds, standard error
// variables, and helper functions for consistent error wrapping and
// classification across the system.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an error by the outcome it represents to a caller.
type Kind int

const (
	// KindValidation represents malformed input rejected before any write
	KindValidation Kind = iota
	// KindConflict represents a uniqueness violation such as a duplicate
	// identifier or a second live context for the same sensor
	KindConflict
	// KindNotFound represents a referenced entity that does not exist
	KindNotFound
	// KindForbidden represents a legal-shape but illegal-state request,
	// e.g. a relationship guard rule violation
	KindForbidden
	// KindStore represents a failure of the underlying document store.
	// Store failures carry a public-safe message; the raw store error is
	// kept on the wrapped chain for logging only.
	KindStore
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not-found"
	case KindForbidden:
		return "forbidden"
	case KindStore:
		return "store-failure"
	default:
		return "unknown"
	}
}

// Standard error variables for common conditions
var (
	// Entity lookup errors
	ErrSensorNotFound        = errors.New("sensor not found")
	ErrPlatformNotFound      = errors.New("platform not found")
	ErrDeploymentNotFound    = errors.New("deployment not found")
	ErrContextNotFound       = errors.New("context not found")
	ErrPermanentHostNotFound = errors.New("permanent host not found")

	// Uniqueness errors
	ErrAlreadyExists     = errors.New("already exists")
	ErrLiveContextExists = errors.New("live context already exists")
	ErrRevisionConflict  = errors.New("document changed concurrently")

	// Store errors
	ErrStoreUnavailable = errors.New("document store unavailable")
)

// Classified wraps an error with its kind plus the component and
// operation it came from. The Message is safe to surface to callers;
// the wrapped error may carry internal detail.
type Classified struct {
	Kind      Kind
	Component string
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface
func (c *Classified) Error() string {
	if c.Message != "" {
		return c.Message
	}
	if c.Err != nil {
		return c.Err.Error()
	}
	return c.Kind.String()
}

// Unwrap returns the underlying error
func (c *Classified) Unwrap() error {
	return c.Err
}

// newClassified creates a classified error following the message pattern
// "component.operation: message".
func newClassified(kind Kind, component, operation string, err error, format string, args ...any) *Classified {
	msg := fmt.Sprintf(format, args...)
	if component != "" && operation != "" {
		msg = fmt.Sprintf("%s.%s: %s", component, operation, msg)
	}
	return &Classified{
		Kind:      kind,
		Component: component,
		Operation: operation,
		Message:   msg,
		Err:       err,
	}
}

// Validationf creates a validation error for malformed input.
func Validationf(component, operation, format string, args ...any) error {
	return newClassified(KindValidation, component, operation, nil, format, args...)
}

// NotFoundf creates a not-found error for an absent entity.
func NotFoundf(component, operation, format string, args ...any) error {
	return newClassified(KindNotFound, component, operation, nil, format, args...)
}

// NotFound wraps a standard not-found sentinel with component context.
func NotFound(sentinel error, component, operation string) error {
	return newClassified(KindNotFound, component, operation, sentinel, "%s", sentinel.Error())
}

// Conflictf creates a conflict error for a uniqueness violation.
func Conflictf(component, operation, format string, args ...any) error {
	return newClassified(KindConflict, component, operation, nil, format, args...)
}

// Conflict wraps a standard conflict sentinel with component context.
func Conflict(sentinel error, component, operation string) error {
	return newClassified(KindConflict, component, operation, sentinel, "%s", sentinel.Error())
}

// Forbiddenf creates a forbidden error naming the rule that was violated
// and the fields in conflict.
func Forbiddenf(component, operation, format string, args ...any) error {
	return newClassified(KindForbidden, component, operation, nil, format, args...)
}

// WrapStore wraps a raw store error. The returned error's public message
// names only the component, operation and action; the raw error stays on
// the wrapped chain so it reaches logs but never callers verbatim.
func WrapStore(err error, component, operation, action string) error {
	if err == nil {
		return nil
	}
	return &Classified{
		Kind:      KindStore,
		Component: component,
		Operation: operation,
		Message:   fmt.Sprintf("%s.%s: %s failed", component, operation, action),
		Err:       err,
	}
}

// KindOf returns the kind of an error, defaulting to KindStore for
// unclassified errors so that unknown failures are never mistaken for
// expected domain outcomes.
func KindOf(err error) Kind {
	var c *Classified
	if errors.As(err, &c) {
		return c.Kind
	}
	return KindStore
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	return err != nil && is(err, KindValidation)
}

// IsConflict reports whether err is a conflict error.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	if is(err, KindConflict) {
		return true
	}
	return errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrLiveContextExists) ||
		errors.Is(err, ErrRevisionConflict)
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if is(err, KindNotFound) {
		return true
	}
	return errors.Is(err, ErrSensorNotFound) ||
		errors.Is(err, ErrPlatformNotFound) ||
		errors.Is(err, ErrDeploymentNotFound) ||
		errors.Is(err, ErrContextNotFound) ||
		errors.Is(err, ErrPermanentHostNotFound)
}

// IsForbidden reports whether err is a forbidden error.
func IsForbidden(err error) bool {
	return err != nil && is(err, KindForbidden)
}

// IsStore reports whether err represents a store failure. Unclassified
// errors are treated as store failures.
func IsStore(err error) bool {
	if err == nil {
		return false
	}
	var c *Classified
	if errors.As(err, &c) {
		return c.Kind == KindStore
	}
	return true
}

// IsExpected reports whether err is an expected domain outcome
// (validation, conflict, not-found or forbidden). Expected outcomes are
// returned to callers and never logged as failures.
func IsExpected(err error) bool {
	if err == nil {
		return false
	}
	var c *Classified
	if errors.As(err, &c) {
		return c.Kind != KindStore
	}
	return IsConflict(err) || IsNotFound(err)
}

func is(err error, kind Kind) bool {
	var c *Classified
	if errors.As(err, &c) {
		return c.Kind == kind
	}
	return false
}

// As is a re-export of the standard library errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Is is a re-export of the standard library errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// New is a re-export of the standard library errors.New.
func New(text string) error {
	return errors.New(text)
}
