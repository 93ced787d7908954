// Package errs is the structured error type shared across GeoRAG. Every
// error that crosses a port boundary (storage, embedder, spatial index,
// pipeline stage) is a *Error with a Kind drawn from the fixed taxonomy
// below, so callers can branch with errors.Is/errors.As instead of string
// matching.
package errs

import (
	"errors"
	"fmt"
)

// Kind is one of the fixed error categories the engine distinguishes.
type Kind string

const (
	Io                  Kind = "io"
	Parse               Kind = "parse"
	CrsError            Kind = "crs_error"
	GeometryError       Kind = "geometry_error"
	EmbedderUnavailable Kind = "embedder_unavailable"
	DimensionMismatch   Kind = "dimension_mismatch"
	InvalidInput        Kind = "invalid_input"
	NotFound            Kind = "not_found"
	Conflict            Kind = "conflict"
	Timeout             Kind = "timeout"
	Cancelled           Kind = "cancelled"
	IndexNotBuilt       Kind = "index_not_built"
	IntegrityMismatch   Kind = "integrity_mismatch"
	Internal            Kind = "internal"
)

var retryableKinds = map[Kind]bool{
	EmbedderUnavailable: true,
	Timeout:             true,
	Io:                  true,
}

// Error is GeoRAG's structured error type. It carries enough context to be
// both machine-actionable (Kind, Retryable) and operator-facing (Message,
// Remediation).
type Error struct {
	Kind        Kind
	Message     string
	Details     map[string]string
	Cause       error
	Retryable   bool
	Remediation string
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches by Kind so errors.Is(err, errs.IndexNotBuilt) style sentinel
// checks work against a bare Kind wrapped via errs.Sentinel.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// WithDetail attaches a key-value detail, returning the error for chaining.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithRemediation sets the operator-facing remediation hint.
func (e *Error) WithRemediation(remediation string) *Error {
	e.Remediation = remediation
	return e
}

// New creates an Error of the given Kind. Retryable is derived from Kind
// unless overridden with WithRetryable.
func New(kind Kind, message string, cause error) *Error {
	return &Error{
		Kind:      kind,
		Message:   message,
		Cause:     cause,
		Retryable: retryableKinds[kind],
	}
}

// WithRetryable overrides the Kind-derived retryable default.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// Sentinel returns a bare Error usable with errors.Is as a Kind check, e.g.
//
//	if errors.Is(err, errs.Sentinel(errs.IndexNotBuilt)) { ... }
func Sentinel(kind Kind) *Error {
	return &Error{Kind: kind}
}

// Wrap creates an Error from an existing error, preserving its message.
func Wrap(kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	return New(kind, err.Error(), err)
}

// IsRetryable reports whether err is a retryable *Error.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// KindOf extracts the Kind from err, or "" if err is not a *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
