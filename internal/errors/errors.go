// Package errors provides centralized error definitions and error handling
// utilities for the megaplan codebase. It defines domain-specific errors,
// semantic error types, error constructors with context wrapping, and error
// classification helpers.
//
// # Error Types
//
// Domain-specific errors represent errors from specific subsystems:
//   - StageError: a stage execution failed or timed out
//   - StructuralError: a finalize-only run is missing required inputs
//
// Semantic errors represent common error conditions:
//   - ValidationError: invalid input or state
//   - TimeoutError: operation timed out
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewStageError("executor exited non-zero", errors.ErrStageFailed).
//		WithStage("critique").WithTier(2)
//
//	err := errors.NewStructuralError("missing debate reports", []string{"bold"})
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrStageFailed) { ... }
//
//	var stageErr *errors.StageError
//	if errors.As(err, &stageErr) { ... }
package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Pipeline-related sentinel errors
var (
	// ErrStageFailed indicates that a stage's executor reported failure.
	ErrStageFailed = New("stage execution failed")
	// ErrEmptyArtifact indicates that an executor reported success but its
	// output artifact is missing or empty.
	ErrEmptyArtifact = New("output artifact missing or empty")
	// ErrMissingReports indicates that a finalize-only run lacks one or more
	// required stage outputs.
	ErrMissingReports = New("required stage outputs missing")
	// ErrUnknownStage indicates a stage name not present in the registry.
	ErrUnknownStage = New("unknown stage")
	// ErrRunAborted indicates the run stopped before all tiers completed.
	ErrRunAborted = New("run aborted")
)

// General sentinel errors
var (
	// ErrLockHeld indicates another run holds the prefix lock.
	ErrLockHeld = New("run prefix locked by another process")
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// StageError represents a failure in one pipeline stage. It is fatal to the
// run: no later tier starts once a StageError is raised.
//
// Example:
//
//	err := errors.NewStageError("executor exited non-zero", cause).
//		WithStage("critique").WithTier(2)
//	fmt.Println(err) // "stage error [stage=critique, tier=2]: executor exited non-zero: ..."
type StageError struct {
	Stage string
	Tier  int

	message string
	cause   error
}

// NewStageError creates a new StageError.
func NewStageError(message string, cause error) *StageError {
	return &StageError{
		message: message,
		cause:   cause,
		Tier:    -1, // -1 indicates not set
	}
}

// WithStage adds the stage name to the error context.
func (e *StageError) WithStage(name string) *StageError {
	e.Stage = name
	return e
}

// WithTier adds the tier index to the error context.
func (e *StageError) WithTier(tier int) *StageError {
	e.Tier = tier
	return e
}

// Error returns the formatted error message.
func (e *StageError) Error() string {
	var parts []string
	if e.Stage != "" {
		parts = append(parts, fmt.Sprintf("stage=%s", e.Stage))
	}
	if e.Tier >= 0 {
		parts = append(parts, fmt.Sprintf("tier=%d", e.Tier))
	}

	prefix := "stage error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("stage error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *StageError) Is(target error) bool {
	if _, ok := target.(*StageError); ok {
		return true
	}
	if errors.Is(target, ErrStageFailed) {
		return true
	}
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// StructuralError represents a finalize-only invocation whose required input
// set is incomplete. It is raised before any executor call and names every
// missing key.
//
// Example:
//
//	err := errors.NewStructuralError("missing debate reports", []string{"bold", "critique"})
//	fmt.Println(err) // "structural error: missing debate reports: [bold critique]"
type StructuralError struct {
	MissingKeys []string

	message string
}

// NewStructuralError creates a new StructuralError. The missing keys are
// sorted for deterministic messages.
func NewStructuralError(message string, missing []string) *StructuralError {
	keys := make([]string, len(missing))
	copy(keys, missing)
	sort.Strings(keys)
	return &StructuralError{
		MissingKeys: keys,
		message:     message,
	}
}

// Error returns the formatted error message.
func (e *StructuralError) Error() string {
	if len(e.MissingKeys) > 0 {
		return fmt.Sprintf("structural error: %s: [%s]", e.message, strings.Join(e.MissingKeys, " "))
	}
	return fmt.Sprintf("structural error: %s", e.message)
}

// Is checks if this error matches the target.
func (e *StructuralError) Is(target error) bool {
	if _, ok := target.(*StructuralError); ok {
		return true
	}
	return errors.Is(target, ErrMissingReports)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("feature description required").WithField("task")
type ValidationError struct {
	Field string

	message string
	cause   error
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{message: message}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	prefix := "validation error"
	if e.Field != "" {
		prefix = fmt.Sprintf("validation error [field=%s]", e.Field)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// TimeoutError represents an operation that timed out.
//
// Example:
//
//	err := errors.NewTimeoutError("waiting for critique stage", 20*time.Minute)
type TimeoutError struct {
	Operation string
	Duration  time.Duration

	cause error
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		Operation: operation,
		Duration:  duration,
	}
}

// WithCause adds a cause to the error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Unwrap returns the underlying error.
func (e *TimeoutError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if errors.Is(target, ErrTimeout) {
		return true
	}
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// IsStructural returns true if the error indicates a structurally invalid
// invocation (missing finalize inputs or failed validation) rather than a
// stage execution failure. Structural errors map to a distinct exit code.
func IsStructural(err error) bool {
	if err == nil {
		return false
	}

	var structural *StructuralError
	var validation *ValidationError
	return As(err, &structural) || As(err, &validation)
}

// IsStageFailure returns true if the error represents a failed or timed-out
// stage execution.
func IsStageFailure(err error) bool {
	if err == nil {
		return false
	}

	var stageErr *StageError
	var timeout *TimeoutError
	return As(err, &stageErr) || As(err, &timeout) || Is(err, ErrStageFailed)
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
//
// Example:
//
//	err := errors.Wrap(baseErr, "failed to write input artifact")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
//
// Example:
//
//	err := errors.Wrapf(baseErr, "failed to render stage %s", name)
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
