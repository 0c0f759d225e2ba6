// Package errors defines the tagged error codes the engine surfaces across
// schema validation, tokenization, filtering, and sorting. Every error
// carries a stable string Code plus a formatted, positional message, and
// is never swallowed internally: schema/config errors fail at create
// time, filter/sort errors fail the offending search.
package errors

import (
	"errors"
	"fmt"
)

// Code is one of the stable, spec-defined error kinds.
type Code string

const (
	CodeLanguageNotSupported           Code = "LANGUAGE_NOT_SUPPORTED"
	CodeInvalidSchemaType              Code = "INVALID_SCHEMA_TYPE"
	CodeInvalidSortSchemaType          Code = "INVALID_SORT_SCHEMA_TYPE"
	CodeUnknownFilterProperty          Code = "UNKNOWN_FILTER_PROPERTY"
	CodeInvalidFilterOperation         Code = "INVALID_FILTER_OPERATION"
	CodeSortDisabled                   Code = "SORT_DISABLED"
	CodeUnableToSortOnUnknownField     Code = "UNABLE_TO_SORT_ON_UNKNOWN_FIELD"
	CodeComponentMustBeFunction        Code = "COMPONENT_MUST_BE_FUNCTION"
	CodeComponentMustBeFunctionOrArray Code = "COMPONENT_MUST_BE_FUNCTION_OR_ARRAY_FUNCTIONS"
	CodeUnsupportedComponent           Code = "UNSUPPORTED_COMPONENT"
	CodeNoLanguageWithCustomTokenizer  Code = "NO_LANGUAGE_WITH_CUSTOM_TOKENIZER"
)

// Err is the engine's tagged error type.
type Err struct {
	Code    Code
	Message string
	wrapped error
}

func (e *Err) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Err) Unwrap() error {
	return e.wrapped
}

// Is reports whether target is an *Err with the same Code, so
// errors.Is(err, New(CodeSortDisabled, "")) works regardless of message.
func (e *Err) Is(target error) bool {
	var other *Err
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// New creates an Err with a plain message.
func New(code Code, message string) *Err {
	return &Err{Code: code, Message: message}
}

// Newf creates an Err with a formatted, positional-argument message.
func Newf(code Code, format string, args ...any) *Err {
	return &Err{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Err that wraps an underlying cause, preserved for
// errors.Unwrap/errors.As chains.
func Wrap(code Code, cause error, format string, args ...any) *Err {
	return &Err{Code: code, Message: fmt.Sprintf(format, args...), wrapped: cause}
}

// CodeOf extracts the Code from err if it is (or wraps) an *Err.
func CodeOf(err error) (Code, bool) {
	var e *Err
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}
