// Package errdefs defines the classified errors shared by the empack
// packages. Every failure the builders, the scenario pipeline, or the
// override engine can raise carries one of the codes below; callers branch
// on codes via the Is* predicates instead of matching message strings.
package errdefs

import (
	"errors"
	"fmt"
)

// Code identifies the kind of failure.
type Code string

const (
	// CodeDefinitionNotFound indicates a component-type definition that does
	// not exist in the components directory.
	CodeDefinitionNotFound Code = "DEFINITION_NOT_FOUND"

	// CodeSchemaViolation indicates malformed or out-of-schema input: an
	// undeclared attribute, a missing required field, a "type" mismatch, or
	// an undeclared override column.
	CodeSchemaViolation Code = "SCHEMA_VIOLATION"

	// CodeLengthMismatch indicates a sequence column whose length differs
	// from the resource's time index.
	CodeLengthMismatch Code = "LENGTH_MISMATCH"

	// CodeResourceNotFound indicates a named resource absent from a package
	// at override time.
	CodeResourceNotFound Code = "RESOURCE_NOT_FOUND"

	// CodeAlreadyExists indicates a duplicate resource name or a render
	// target that is already populated.
	CodeAlreadyExists Code = "ALREADY_EXISTS"
)

// Error is a classified error with optional resource context and cause.
type Error struct {
	// Code is the failure classification.
	Code Code

	// Message is the human-readable error message.
	Message string

	// Resource names the resource or component the failure relates to.
	Resource string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Resource != "" {
		msg = fmt.Sprintf("[%s] %s (resource=%s)", e.Code, e.Message, e.Resource)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches two classified errors by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithResource attaches resource context to the error.
func (e *Error) WithResource(name string) *Error {
	e.Resource = name
	return e
}

// DefinitionNotFound creates a DEFINITION_NOT_FOUND error.
func DefinitionNotFound(format string, args ...any) *Error {
	return &Error{Code: CodeDefinitionNotFound, Message: fmt.Sprintf(format, args...)}
}

// SchemaViolation creates a SCHEMA_VIOLATION error.
func SchemaViolation(format string, args ...any) *Error {
	return &Error{Code: CodeSchemaViolation, Message: fmt.Sprintf(format, args...)}
}

// LengthMismatch creates a LENGTH_MISMATCH error.
func LengthMismatch(format string, args ...any) *Error {
	return &Error{Code: CodeLengthMismatch, Message: fmt.Sprintf(format, args...)}
}

// ResourceNotFound creates a RESOURCE_NOT_FOUND error.
func ResourceNotFound(format string, args ...any) *Error {
	return &Error{Code: CodeResourceNotFound, Message: fmt.Sprintf(format, args...)}
}

// AlreadyExists creates an ALREADY_EXISTS error.
func AlreadyExists(format string, args ...any) *Error {
	return &Error{Code: CodeAlreadyExists, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a classified error.
func Wrap(e *Error, err error) *Error {
	e.Err = err
	return e
}

func is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsDefinitionNotFound reports whether err is a DEFINITION_NOT_FOUND error.
func IsDefinitionNotFound(err error) bool { return is(err, CodeDefinitionNotFound) }

// IsSchemaViolation reports whether err is a SCHEMA_VIOLATION error.
func IsSchemaViolation(err error) bool { return is(err, CodeSchemaViolation) }

// IsLengthMismatch reports whether err is a LENGTH_MISMATCH error.
func IsLengthMismatch(err error) bool { return is(err, CodeLengthMismatch) }

// IsResourceNotFound reports whether err is a RESOURCE_NOT_FOUND error.
func IsResourceNotFound(err error) bool { return is(err, CodeResourceNotFound) }

// IsAlreadyExists reports whether err is an ALREADY_EXISTS error.
func IsAlreadyExists(err error) bool { return is(err, CodeAlreadyExists) }
