package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a namespaced error code for SkillForge errors.
type ErrorCode string

// Configuration error codes
const (
	CONFIG_LOAD_FAILED       ErrorCode = "CONFIG_LOAD_FAILED"
	CONFIG_PARSE_FAILED      ErrorCode = "CONFIG_PARSE_FAILED"
	CONFIG_VALIDATION_FAILED ErrorCode = "CONFIG_VALIDATION_FAILED"
)

// Workflow engine error codes
const (
	ENGINE_UNKNOWN_NODE       ErrorCode = "ENGINE_UNKNOWN_NODE"
	ENGINE_UNMAPPED_ROUTE     ErrorCode = "ENGINE_UNMAPPED_ROUTE"
	ENGINE_NODE_PANIC         ErrorCode = "ENGINE_NODE_PANIC"
	ENGINE_SNAPSHOT_FAILED    ErrorCode = "ENGINE_SNAPSHOT_FAILED"
	ENGINE_RESUME_FAILED      ErrorCode = "ENGINE_RESUME_FAILED"
	ENGINE_CHECKPOINT_EXISTS  ErrorCode = "ENGINE_CHECKPOINT_EXISTS"
	ENGINE_CHECKPOINT_MISSING ErrorCode = "ENGINE_CHECKPOINT_MISSING"
)

// Document store error codes
const (
	DOC_CONNECT_FAILED ErrorCode = "DOC_CONNECT_FAILED"
	DOC_NOT_FOUND      ErrorCode = "DOC_NOT_FOUND"
	DOC_WRITE_FAILED   ErrorCode = "DOC_WRITE_FAILED"
	DOC_DELETE_FAILED  ErrorCode = "DOC_DELETE_FAILED"
)

// Graph store error codes
const (
	GRAPH_CONNECT_FAILED  ErrorCode = "GRAPH_CONNECT_FAILED"
	GRAPH_QUERY_FAILED    ErrorCode = "GRAPH_QUERY_FAILED"
	GRAPH_ENDPOINT_ABSENT ErrorCode = "GRAPH_ENDPOINT_ABSENT"
)

// Relational store error codes
const (
	SQL_OPEN_FAILED   ErrorCode = "SQL_OPEN_FAILED"
	SQL_DELETE_FAILED ErrorCode = "SQL_DELETE_FAILED"
)

// Generator error codes
const (
	GEN_CALL_FAILED       ErrorCode = "GEN_CALL_FAILED"
	GEN_INVALID_OUTPUT    ErrorCode = "GEN_INVALID_OUTPUT"
	GEN_SCHEMA_VIOLATION  ErrorCode = "GEN_SCHEMA_VIOLATION"
	GEN_PROVIDER_UNKNOWN  ErrorCode = "GEN_PROVIDER_UNKNOWN"
	GEN_CONTEXT_TOO_LARGE ErrorCode = "GEN_CONTEXT_TOO_LARGE"
)

// Objective cascade error codes
const (
	CASCADE_DECOMPOSE_FAILED ErrorCode = "CASCADE_DECOMPOSE_FAILED"
	CASCADE_NO_QUESTS        ErrorCode = "CASCADE_NO_QUESTS"
)

// Deletion coordinator error codes
const (
	DELETE_FETCH_FAILED   ErrorCode = "DELETE_FETCH_FAILED"
	DELETE_PRIMARY_FAILED ErrorCode = "DELETE_PRIMARY_FAILED"
	DELETE_NOT_FOUND      ErrorCode = "DELETE_NOT_FOUND"
)

// ForgeError represents a structured error with error code, message, and
// optional cause. It supports error wrapping and retryability hints: the
// workflow engine retries a node only when the underlying error is retryable.
type ForgeError struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
}

// Error implements the error interface, returning a formatted error message.
// Format: "[CODE] message" or "[CODE] message: cause" if cause exists.
func (e *ForgeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for error unwrapping chains.
// This enables using errors.Is() and errors.As() with wrapped errors.
func (e *ForgeError) Unwrap() error {
	return e.Cause
}

// Is checks if the target error matches this error by error code.
// Returns true if target is a ForgeError with the same Code.
func (e *ForgeError) Is(target error) bool {
	var forgeErr *ForgeError
	if errors.As(target, &forgeErr) {
		return e.Code == forgeErr.Code
	}
	return false
}

// NewError creates a new non-retryable ForgeError with the given code and message.
func NewError(code ErrorCode, message string) *ForgeError {
	return &ForgeError{
		Code:    code,
		Message: message,
	}
}

// NewRetryableError creates a new retryable ForgeError with the given code and
// message. Use this for transient errors that may succeed on retry
// (e.g., generator timeouts, store connection blips).
func NewRetryableError(code ErrorCode, message string) *ForgeError {
	return &ForgeError{
		Code:      code,
		Message:   message,
		Retryable: true,
	}
}

// WrapError creates a new non-retryable ForgeError that wraps an existing error.
// The wrapped error is accessible via Unwrap() for error chain inspection.
func WrapError(code ErrorCode, message string, cause error) *ForgeError {
	return &ForgeError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WrapRetryableError creates a retryable ForgeError wrapping an existing error.
func WrapRetryableError(code ErrorCode, message string, cause error) *ForgeError {
	return &ForgeError{
		Code:      code,
		Message:   message,
		Retryable: true,
		Cause:     cause,
	}
}

// IsRetryable reports whether err (or any error in its chain) is a ForgeError
// marked retryable. Plain errors are treated as non-retryable.
func IsRetryable(err error) bool {
	var forgeErr *ForgeError
	if errors.As(err, &forgeErr) {
		return forgeErr.Retryable
	}
	return false
}
