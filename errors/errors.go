package errors

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// ERROR CODES
// =============================================================================

// Error code constants for structured errors.
const (
	CodePluginNotFound         = "PLUGIN_NOT_FOUND"
	CodeDuplicatePlugin        = "DUPLICATE_PLUGIN"
	CodeMissingDependency      = "MISSING_DEPENDENCY"
	CodeInvalidStateTransition = "INVALID_STATE_TRANSITION"
	CodeHasRunningDependents   = "HAS_RUNNING_DEPENDENTS"
	CodeHookFailure            = "HOOK_FAILURE"
	CodeIncompatibleVersion    = "INCOMPATIBLE_VERSION"
	CodeServiceNotFound        = "SERVICE_NOT_FOUND"
	CodeConfigError            = "CONFIG_ERROR"
)

// =============================================================================
// STRUCTURED ERROR
// =============================================================================

// Error represents a structured error with a stable code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code. A target with an empty code
// matches any structured error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return t.Code == "" || e.Code == t.Code
}

// NewError creates a structured error.
func NewError(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// =============================================================================
// CONSTRUCTORS
// =============================================================================

// ErrPluginNotFound creates a plugin not found error.
func ErrPluginNotFound(id string) *Error {
	return NewError(CodePluginNotFound, "plugin '"+id+"' not found", nil)
}

// ErrDuplicatePlugin creates a duplicate registration error.
func ErrDuplicatePlugin(id string) *Error {
	return NewError(CodeDuplicatePlugin, "plugin '"+id+"' already registered", nil)
}

// ErrMissingDependencies creates a missing dependency error naming the
// dependency ids that are absent from the registry.
func ErrMissingDependencies(id string, missing []string) *Error {
	return NewError(CodeMissingDependency,
		"plugin '"+id+"' has missing dependencies: "+strings.Join(missing, ", "), nil)
}

// ErrInvalidStateTransition creates an invalid state transition error naming
// the current state.
func ErrInvalidStateTransition(id, operation, current string) *Error {
	return NewError(CodeInvalidStateTransition,
		fmt.Sprintf("cannot %s plugin '%s' in state %s", operation, id, current), nil)
}

// ErrHasRunningDependents creates a stop refusal error naming the running
// dependents.
func ErrHasRunningDependents(id string, dependents []string) *Error {
	return NewError(CodeHasRunningDependents,
		"plugin '"+id+"' has running dependents: "+strings.Join(dependents, ", "), nil)
}

// ErrHookFailure wraps an error returned (or a panic recovered) from a
// plugin's own lifecycle hook.
func ErrHookFailure(id, hook string, cause error) *Error {
	return NewError(CodeHookFailure,
		fmt.Sprintf("plugin '%s' %s hook failed", id, hook), cause)
}

// ErrIncompatibleVersion creates a version incompatibility error.
func ErrIncompatibleVersion(id, frameworkVersion string) *Error {
	return NewError(CodeIncompatibleVersion,
		fmt.Sprintf("plugin '%s' is not compatible with framework version %s", id, frameworkVersion), nil)
}

// ErrServiceNotFound creates a service not found error.
func ErrServiceNotFound(key string) *Error {
	return NewError(CodeServiceNotFound, "service '"+key+"' not found", nil)
}

// ErrConfigError creates a config error.
func ErrConfigError(message string, cause error) *Error {
	return NewError(CodeConfigError, message, cause)
}

// =============================================================================
// SENTINEL ERRORS (for use with Is)
// =============================================================================

// Sentinel errors that can be used with errors.Is comparisons.
var (
	ErrPluginNotFoundSentinel         = &Error{Code: CodePluginNotFound}
	ErrDuplicatePluginSentinel        = &Error{Code: CodeDuplicatePlugin}
	ErrMissingDependencySentinel      = &Error{Code: CodeMissingDependency}
	ErrInvalidStateTransitionSentinel = &Error{Code: CodeInvalidStateTransition}
	ErrHasRunningDependentsSentinel   = &Error{Code: CodeHasRunningDependents}
	ErrHookFailureSentinel            = &Error{Code: CodeHookFailure}
	ErrIncompatibleVersionSentinel    = &Error{Code: CodeIncompatibleVersion}
	ErrServiceNotFoundSentinel        = &Error{Code: CodeServiceNotFound}
)

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsPluginNotFound checks if the error is a plugin not found error.
func IsPluginNotFound(err error) bool {
	return Is(err, ErrPluginNotFoundSentinel)
}

// IsDuplicatePlugin checks if the error is a duplicate registration error.
func IsDuplicatePlugin(err error) bool {
	return Is(err, ErrDuplicatePluginSentinel)
}

// IsMissingDependency checks if the error is a missing dependency error.
func IsMissingDependency(err error) bool {
	return Is(err, ErrMissingDependencySentinel)
}

// IsInvalidStateTransition checks if the error is an invalid state transition error.
func IsInvalidStateTransition(err error) bool {
	return Is(err, ErrInvalidStateTransitionSentinel)
}

// IsHasRunningDependents checks if the error is a stop refusal error.
func IsHasRunningDependents(err error) bool {
	return Is(err, ErrHasRunningDependentsSentinel)
}

// IsHookFailure checks if the error wraps a plugin hook failure.
func IsHookFailure(err error) bool {
	return Is(err, ErrHookFailureSentinel)
}

// IsIncompatibleVersion checks if the error is a version incompatibility error.
func IsIncompatibleVersion(err error) bool {
	return Is(err, ErrIncompatibleVersionSentinel)
}

// IsServiceNotFound checks if the error is a service not found error.
func IsServiceNotFound(err error) bool {
	return Is(err, ErrServiceNotFoundSentinel)
}

// =============================================================================
// STANDARD ERRORS PACKAGE INTEGRATION
// =============================================================================

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around errors.Is from the standard library.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around errors.As from the standard library.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Unwrap returns the result of calling the Unwrap method on err, if any.
// This is a convenience wrapper around errors.Unwrap from the standard library.
func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// New returns an error that formats as the given text.
// This is a convenience wrapper around errors.New from the standard library.
func New(text string) error {
	return errors.New(text)
}

// Join returns an error that wraps the given errors.
// This is a convenience wrapper around errors.Join from the standard library.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
