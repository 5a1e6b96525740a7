package workflow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidTransition is returned when a state transition is not allowed
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidState is returned when a state or stage is not valid
	ErrInvalidState = errors.New("invalid state")

	// ErrGuardFailed is returned when a guard condition fails
	ErrGuardFailed = errors.New("guard condition failed")

	// ErrNotFound is returned when a request or approval does not exist
	ErrNotFound = errors.New("not found")

	ErrAuthorization = errors.New("not authorized for this stage")
	ErrValidation    = errors.New("payload validation failed")
	ErrStaleState    = errors.New("stale workflow state")
	ErrTerminalState = errors.New("workflow is in a terminal state")
	ErrPersistence   = errors.New("persistence failure")
)

// AuthorizationError is returned when the actor lacks the role for the stage.
type AuthorizationError struct {
	ActorID  string
	Stage    string
	Required []string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("actor %s is not authorized for %s (requires one of: %s)",
		e.ActorID, e.Stage, strings.Join(e.Required, ", "))
}

func (e *AuthorizationError) Is(target error) bool { return target == ErrAuthorization }

// ValidationError names the payload fields that failed the completeness check.
type ValidationError struct {
	Stage  string
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("incomplete %s payload: invalid or missing %s", e.Stage, strings.Join(e.Fields, ", "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// StaleStateError is returned when the live status differs from the one the
// caller observed. The caller must reload before retrying.
type StaleStateError struct {
	RequestID string
	Expected  State
	Actual    State
}

func (e *StaleStateError) Error() string {
	return fmt.Sprintf("request %s is in %s, caller expected %s", e.RequestID, e.Actual, e.Expected)
}

func (e *StaleStateError) Is(target error) bool { return target == ErrStaleState }

// TerminalStateError is returned for any transition attempted on a closed request or gate.
type TerminalStateError struct {
	ID    string
	State string
}

func (e *TerminalStateError) Error() string {
	return fmt.Sprintf("%s is already %s", e.ID, e.State)
}

func (e *TerminalStateError) Is(target error) bool { return target == ErrTerminalState }

// PersistenceError wraps a failed atomic write. Nothing was committed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// Kind classifies err into a short label used by logs, metrics and the HTTP layer
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAuthorization):
		return "authorization"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrStaleState):
		return "stale_state"
	case errors.Is(err, ErrTerminalState):
		return "terminal_state"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrGuardFailed):
		return "invalid_transition"
	default:
		return "internal"
	}
}
