// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package errors provides the typed errors surfaced by the legal review
// workflow. Every failure that crosses a package boundary carries an
// ErrorCode so callers can branch on the outcome instead of parsing output.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

// ErrorCode classifies review errors for callers, logs and metrics.
type ErrorCode string

const (
	// CodeInternal indicates an unexpected local failure.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeService indicates the remote agent service rejected a call.
	CodeService ErrorCode = "SERVICE_ERROR"

	// CodeRunFailure indicates a run reached a terminal status other than completed.
	CodeRunFailure ErrorCode = "RUN_FAILURE"

	// CodeNotFound indicates a delete or read against a missing resource.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeConfig indicates a missing or invalid configuration value.
	CodeConfig ErrorCode = "CONFIG_ERROR"

	// CodeInvalidInput indicates the caller supplied invalid input.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeRetrieval indicates the reference retrieval backend failed.
	CodeRetrieval ErrorCode = "RETRIEVAL_ERROR"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeCanceled indicates the caller canceled the operation.
	CodeCanceled ErrorCode = "CANCELED"
)

// Error is a typed error with structured context for logs and traces.
// It implements the error interface and can be unwrapped with errors.As().
type Error struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]any
	Recoverable bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *Error) MarshalJSON() ([]byte, error) {
	out := struct {
		Code        string         `json:"code"`
		Message     string         `json:"message"`
		Cause       string         `json:"cause,omitempty"`
		Context     map[string]any `json:"context,omitempty"`
		Recoverable bool           `json:"recoverable"`
	}{
		Code:        string(e.Code),
		Message:     e.Message,
		Context:     e.Context,
		Recoverable: e.Recoverable,
	}
	if e.Err != nil {
		out.Cause = e.Err.Error()
	}
	return json.Marshal(out)
}

// New creates a new Error with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: msg,
		Err:     cause,
		Context: make(map[string]any),
	}
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithRecoverable sets whether retrying the operation may succeed.
func (e *Error) WithRecoverable(recoverable bool) *Error {
	e.Recoverable = recoverable
	return e
}

// CodeOf returns the code of the first *Error in err's chain, or "" when
// there is none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HasCode reports whether any *Error in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var e *Error
		if !stderrors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Err
	}
	return false
}

// From converts err to an *Error, wrapping unknown errors as internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e
	}
	return New(CodeInternal, "unexpected error", err)
}

// IsRecoverable reports whether err is an *Error marked recoverable.
func IsRecoverable(err error) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Recoverable
	}
	return false
}

// Join is errors.Join, re-exported so callers importing this package under
// the name errors keep access to it.
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}

// Is is errors.Is, re-exported for the same reason as Join.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As is errors.As, re-exported for the same reason as Join.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
