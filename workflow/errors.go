/*
errors.go - Guard failure types for the absence lifecycle

PURPOSE:
  All guard errors in one place. The absence service and the API layer
  match on the sentinels with errors.Is to pick the right surface
  (HTTP 403 vs 409 vs 400), while the structured types carry enough
  context for a human-readable reason.

ERROR CATEGORIES:
  1. State-conflict errors - action not defined from the current state
  2. Permission errors     - actor lacks the role/scope for the level

USAGE:
  if errors.Is(err, workflow.ErrInvalidTransition) { ... }

  var perm *workflow.PermissionError
  if errors.As(err, &perm) { log actor, level }
*/
package workflow

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidTransition is returned when the attempted action is not
	// defined from the record's current state.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrPermissionDenied is returned when the actor lacks the role or
	// scope required for the attempted action.
	ErrPermissionDenied = errors.New("permission denied")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidTransitionError details a state-conflict rejection.
type InvalidTransitionError struct {
	From   State
	Action Action
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s from state %q: %s", e.Action, e.From, e.Reason)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// PermissionError details a permission rejection. Level is empty for
// actions that are not level-scoped (cancel, apply).
type PermissionError struct {
	ActorID string
	Action  Action
	Level   Level
}

func (e *PermissionError) Error() string {
	if e.Level != "" {
		return fmt.Sprintf("actor %q may not %s at level %s", e.ActorID, e.Action, e.Level)
	}
	return fmt.Sprintf("actor %q may not %s this request", e.ActorID, e.Action)
}

func (e *PermissionError) Unwrap() error { return ErrPermissionDenied }
