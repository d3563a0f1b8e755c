// Package errors classifies failures of the reference price engine.
//
// Per-code problems never surface here: a missing row or a failed lookup
// becomes a match status on that code. Only failures that abort a whole
// call, or a whole load, are typed errors.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Type identifies the category of error
type Type string

const (
	// TypeInput indicates a malformed request (empty code list, unknown care setting)
	TypeInput Type = "INPUT_ERROR"

	// TypeParsing indicates a reference file could not be parsed
	TypeParsing Type = "PARSING_ERROR"

	// TypeLookup indicates a single reference lookup failed or timed out
	TypeLookup Type = "LOOKUP_ERROR"

	// TypeStoreUnavailable indicates the reference store cannot serve the call at all
	TypeStoreUnavailable Type = "STORE_UNAVAILABLE"

	// TypeConfig indicates a configuration error
	TypeConfig Type = "CONFIG_ERROR"

	// TypeInternal indicates an internal error
	TypeInternal Type = "INTERNAL_ERROR"
)

// Error is a typed failure with optional context for API responses
type Error struct {
	Type    Type                   `json:"type"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext attaches a key to the error's context
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Newf creates a new formatted error
func Newf(errType Type, format string, args ...interface{}) *Error {
	return &Error{Type: errType, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps cause under a typed message
func Wrap(errType Type, message string, cause error) *Error {
	return &Error{Type: errType, Message: message, Cause: cause}
}

// TypeOf returns the type of the outermost *Error in err's chain.
// Untyped errors are TypeInternal.
func TypeOf(err error) Type {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return TypeInternal
}

// IsType checks if an error, or any error it wraps, is of a specific type
func IsType(err error, t Type) bool {
	return err != nil && TypeOf(err) == t
}

// Retryable reports whether the same call may succeed later
func Retryable(err error) bool {
	switch TypeOf(err) {
	case TypeLookup, TypeStoreUnavailable:
		return true
	}
	return false
}

// Input creates an input error
func Input(message string) *Error {
	return &Error{Type: TypeInput, Message: message}
}

// Parsing creates a parsing error
func Parsing(message string, cause error) *Error {
	return Wrap(TypeParsing, message, cause)
}

// Lookup creates a lookup error for one reference table
func Lookup(table string, cause error) *Error {
	return Wrap(TypeLookup, table+" lookup failed", cause).WithContext("table", table)
}

// StoreUnavailable creates the single batch-level failure
func StoreUnavailable(cause error) *Error {
	return Wrap(TypeStoreUnavailable, "reference store unavailable", cause)
}

// Config creates a configuration error
func Config(message string, cause error) *Error {
	return Wrap(TypeConfig, message, cause)
}

// Internal creates an internal error
func Internal(message string, cause error) *Error {
	return Wrap(TypeInternal, message, cause)
}
