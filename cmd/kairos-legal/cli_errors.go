// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jllopis/kairos-legal/pkg/errors"
	"github.com/jllopis/kairos-legal/pkg/review"
)

// CLIError wraps an *errors.Error with CLI-specific formatting and hints.
type CLIError struct {
	Cause *errors.Error
	Hint  string
}

// NewCLIError creates a new CLI error.
func NewCLIError(e *errors.Error, hint string) *CLIError {
	return &CLIError{
		Cause: e,
		Hint:  hint,
	}
}

// Error returns the formatted error message with hints.
func (e *CLIError) Error() string {
	if e.Cause == nil {
		return "unknown error"
	}
	msg := e.Cause.Error()
	if e.Hint != "" {
		msg += "\n  Hint: " + e.Hint
	}
	return msg
}

func (e *CLIError) Unwrap() error {
	return e.Cause
}

// NewInvalidArgumentError creates an invalid argument error with CLI hints.
func NewInvalidArgumentError(arg, reason string) *CLIError {
	e := errors.New(errors.CodeInvalidInput, fmt.Sprintf("invalid argument: %s", reason), nil).
		WithContext("argument", arg)
	return NewCLIError(e, "run 'kairos-legal help' for usage information")
}

// NewConfigError creates a configuration error with CLI hints.
func NewConfigError(err error, configPath string) *CLIError {
	e := errors.From(err)
	if e.Code != errors.CodeConfig {
		e = errors.New(errors.CodeConfig, "configuration error", err)
	}
	if configPath != "" {
		e = e.WithContext("config_path", configPath)
	}
	return NewCLIError(e, configHint(e, configPath))
}

func configHint(e *errors.Error, configPath string) string {
	if env, ok := e.Context["env"].(string); ok {
		key, _ := e.Context["key"].(string)
		return fmt.Sprintf("set %s in the environment or .env file, or pass --set %s=...", env, key)
	}
	if key, ok := e.Context["key"].(string); ok {
		return fmt.Sprintf("check the value of %s", key)
	}
	if configPath != "" {
		return fmt.Sprintf("check %s for syntax errors", configPath)
	}
	return "check your configuration file syntax"
}

// toCLIError attaches a hint matching the error code.
func toCLIError(err error) *CLIError {
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return cliErr
	}
	e := errors.From(err)
	var failure *review.RunFailure
	if errors.As(err, &failure) {
		e = errors.New(errors.CodeRunFailure, failure.Error(), nil)
	}
	switch e.Code {
	case errors.CodeConfig:
		return NewCLIError(e, configHint(e, ""))
	case errors.CodeTimeout:
		return NewCLIError(e, "try increasing the run timeout with --timeout or review.run_timeout")
	case errors.CodeCanceled:
		return NewCLIError(e, "")
	case errors.CodeRunFailure:
		return NewCLIError(e, "inspect the run on the agent service; the review can be retried")
	case errors.CodeNotFound:
		return NewCLIError(e, "check that the resource exists and you have access")
	case errors.CodeRetrieval:
		return NewCLIError(e, "check the references file or the search index settings")
	case errors.CodeService:
		if e.Recoverable {
			return NewCLIError(e, "this may be a transient error; try again later")
		}
		return NewCLIError(e, "check the model deployment name and the agent service endpoint")
	case errors.CodeInvalidInput:
		return NewCLIError(e, "run 'kairos-legal help' for usage information")
	default:
		return NewCLIError(e, "")
	}
}

func printError(w io.Writer, e *CLIError, asJSON bool) {
	if asJSON {
		payload, _ := json.Marshal(map[string]any{
			"error": map[string]any{
				"code":    e.Cause.Code,
				"message": e.Cause.Error(),
				"hint":    e.Hint,
			},
		})
		fmt.Fprintln(w, string(payload))
		return
	}

	fmt.Fprintf(w, "Error [%s]: %s\n", e.Cause.Code, e.Cause.Message)
	if e.Cause.Err != nil {
		fmt.Fprintf(w, "  Cause: %s\n", e.Cause.Err)
	}
	if e.Hint != "" {
		fmt.Fprintf(w, "  Hint: %s\n", e.Hint)
	}
}
