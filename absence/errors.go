/*
errors.go - Domain error taxonomy

PURPOSE:
  Sentinels and structured errors for the four categories the service
  surfaces: validation errors (rejected before any state change),
  permission errors (delegated to the workflow package), state-conflict
  errors (also workflow), and version conflicts from optimistic
  concurrency. The API layer maps categories to HTTP statuses through
  the helpers at the bottom.

USAGE:
  if errors.Is(err, absence.ErrValidation) { 400 }
  if errors.Is(err, workflow.ErrPermissionDenied) { 403 }
  if absence.IsConflict(err) { 409 }
*/
package absence

import (
	"errors"
	"fmt"

	"github.com/opale/absence-engine/workflow"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced request, catalog entry
	// or employee does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned for malformed input, rejected before
	// any state change.
	ErrValidation = errors.New("validation error")

	// ErrVersionConflict is returned when the record's version at write
	// time no longer matches the version the caller read. The caller is
	// expected to reload and re-attempt.
	ErrVersionConflict = errors.New("version conflict: request was modified concurrently")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ValidationError details which input was rejected and why.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsConflict reports whether the error should surface as a conflict
// (stale version or undefined transition).
func IsConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict) ||
		errors.Is(err, workflow.ErrInvalidTransition)
}

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
