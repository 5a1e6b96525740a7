package workflow

import "context"

// StateMachine tracks the status of one customization request and validates transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire returns true if the trigger has at least one transition from the current state
	CanFire(trigger Trigger) bool

	// Peek resolves the destination of a trigger without changing the current state
	Peek(ctx context.Context, trigger Trigger) (State, error)

	// Fire executes the trigger, moving to the destination state
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers returns all triggers configured for the current state
	PermittedTriggers() []Trigger
}
