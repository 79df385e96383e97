package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors. Every typed error below matches its sentinel through errors.Is.
var (
	// ErrValidation is matched by ValidationError (malformed guide or step).
	ErrValidation = errors.New("validation failed")
	// ErrPrecondition is matched by PreconditionError (unmet gating condition).
	ErrPrecondition = errors.New("precondition not met")
	// ErrLocate is matched by LocateError (target not found after retries).
	ErrLocate = errors.New("element not located")
	// ErrActionTimeout is matched by ActionTimeoutError (no user interaction in time).
	ErrActionTimeout = errors.New("action timed out")
	// ErrState is matched by StateError (illegal transition).
	ErrState = errors.New("illegal state transition")
	// ErrStorage is matched by StorageError (persistence failure).
	ErrStorage = errors.New("storage failure")

	// ErrNotFound is returned by a KeyValueStore when the key does not exist.
	ErrNotFound = errors.New("key not found")
	// ErrElementNotFound is returned by an ElementQuerier when nothing matches.
	ErrElementNotFound = errors.New("element not found")
	// ErrGuideNotFound is returned when a guide id is not registered.
	ErrGuideNotFound = errors.New("guide not found")
	// ErrGuideExists is returned when registering a guide id twice.
	ErrGuideExists = errors.New("guide already registered")
	// ErrNoActiveExecution is returned when finalizing an execution that is not current.
	ErrNoActiveExecution = errors.New("no active execution")
	// ErrAnimationFailed wraps every failure reported by the animation layer.
	ErrAnimationFailed = errors.New("animation failed")
)

// ValidationError reports a malformed guide, step or argument.
type ValidationError struct {
	Field  string // Field or entity that failed validation
	Reason string // Human-readable reason
	Value  any    // Offending value (optional)
}

func (e *ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s (got %v)", e.Field, e.Reason, e.Value)
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// PreconditionError reports a required condition that did not hold.
type PreconditionError struct {
	Subject   string // Step or guide the condition gates
	Condition string // Description of the failing condition
	Err       error  // Evaluation error, if the condition could not be evaluated
}

func (e *PreconditionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("precondition %q for %s failed: %v", e.Condition, e.Subject, e.Err)
	}
	return fmt.Sprintf("precondition %q for %s not met", e.Condition, e.Subject)
}

func (e *PreconditionError) Unwrap() error { return e.Err }

// Is reports whether target is ErrPrecondition.
func (e *PreconditionError) Is(target error) bool { return target == ErrPrecondition }

// LocateError reports a target that could not be resolved.
type LocateError struct {
	Target   Target
	Attempts int
	Err      error // Last underlying error
}

func (e *LocateError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("Failed to locate element %s after %d attempt(s)", e.Target, e.Attempts)
	}
	return fmt.Sprintf("Failed to locate element %s after %d attempt(s): %v", e.Target, e.Attempts, e.Err)
}

func (e *LocateError) Unwrap() error { return e.Err }

// Is reports whether target is ErrLocate.
func (e *LocateError) Is(target error) bool { return target == ErrLocate }

// ActionTimeoutError reports an action step whose interaction never arrived.
type ActionTimeoutError struct {
	StepID  string
	Timeout time.Duration
}

func (e *ActionTimeoutError) Error() string {
	return fmt.Sprintf("step %q: no interaction within %s", e.StepID, e.Timeout)
}

// Is reports whether target is ErrActionTimeout.
func (e *ActionTimeoutError) Is(target error) bool { return target == ErrActionTimeout }

// StateError reports an operation that is illegal in the current state.
type StateError struct {
	Op     string // Attempted operation, e.g. "start guide"
	Reason string // Why it is illegal right now
	Err    error  // Optional more specific sentinel
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s: %s", e.Op, e.Reason)
}

func (e *StateError) Unwrap() error { return e.Err }

// Is reports whether target is ErrState.
func (e *StateError) Is(target error) bool { return target == ErrState }

// StorageError reports a persistence failure.
type StorageError struct {
	Op  string // save, load, clear
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("failed to %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is reports whether target is ErrStorage.
func (e *StorageError) Is(target error) bool { return target == ErrStorage }
