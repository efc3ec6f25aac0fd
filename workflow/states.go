/*
Package workflow implements the absence validation lifecycle.

PURPOSE:
  This package contains the state machine governing how an absence
  request moves from submission to approval, rejection, cancellation
  or application to planning. It is pure decision logic: no I/O, no
  persistence, no transport. Callers (the absence service) evaluate
  permissions, load the catalog policy, invoke Transition, and persist
  the outcome.

KEY CONCEPTS IN THIS FILE (states.go):
  - State: the closed set of lifecycle states
  - Legacy states: simplified labels found on older records, readable
    but never written back
  - Terminal states: states from which no transition is defined

LIFECYCLE:
  en_attente_validation_n1 ──validate──▶ en_attente_validation_rh ──validate──▶ validee_rh ──apply──▶ appliquee
           │                                      │
        refuse                                 refuse
           ▼                                      ▼
      refusee_n1                             refusee_rh

  Any non-terminal state can move to annulee (cancellation).
  When the catalog requires no RH step, N1 validation lands directly
  in validee_n1, the final approval for that flow. The validated
  states are not terminal: they remain cancellable, and validee_rh
  can still be applied.

SEE ALSO:
  - machine.go: Transition function and guards
  - errors.go: Guard failure types
*/
package workflow

// =============================================================================
// STATES - Closed set of lifecycle labels
// =============================================================================

type State string

const (
	StatePendingN1   State = "en_attente_validation_n1"
	StateValidatedN1 State = "validee_n1"
	StateRefusedN1   State = "refusee_n1"
	StatePendingRH   State = "en_attente_validation_rh"
	StateValidatedRH State = "validee_rh"
	StateRefusedRH   State = "refusee_rh"
	StateApplied     State = "appliquee"
	StateCancelled   State = "annulee"
)

// Legacy simplified states found on records created before the two-level
// validation flow existed. Read-only: Normalize maps them to the modern
// set, and no code path ever writes them.
const (
	legacyPending  State = "en_attente"
	legacyApproved State = "validee"
	legacyRefused  State = "refusee"
)

// Normalize maps a raw stored label to the modern state set.
// Unknown labels are returned as-is; callers decide how to surface them.
func Normalize(s State) State {
	switch s {
	case legacyPending:
		return StatePendingN1
	case legacyApproved:
		return StateValidatedRH
	case legacyRefused:
		return StateRefusedRH
	default:
		return s
	}
}

// IsKnown reports whether the label belongs to the closed state set
// (after legacy normalization).
func IsKnown(s State) bool {
	switch Normalize(s) {
	case StatePendingN1, StateValidatedN1, StateRefusedN1,
		StatePendingRH, StateValidatedRH, StateRefusedRH,
		StateApplied, StateCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no transition is defined from s.
// The validated states are not terminal: validee_rh can still be
// applied to planning, and both can be cancelled.
func IsTerminal(s State) bool {
	switch Normalize(s) {
	case StateRefusedN1, StateRefusedRH, StateCancelled, StateApplied:
		return true
	}
	return false
}

// IsPending reports whether s awaits a validation decision.
func IsPending(s State) bool {
	n := Normalize(s)
	return n == StatePendingN1 || n == StatePendingRH
}

// IsApproved reports whether s represents a fully approved request,
// eligible for the planning feed. validee_n1 does not qualify: it is
// an N1-only terminus, never a planning input.
func IsApproved(s State) bool {
	switch Normalize(s) {
	case StateValidatedRH, StateApplied:
		return true
	}
	return false
}

// =============================================================================
// VALIDATION LEVELS
// =============================================================================

type Level string

const (
	LevelN1 Level = "n1"
	LevelRH Level = "rh"
)

// PendingLevel returns the validation level a pending state is waiting
// on, and false if the state is not pending.
func PendingLevel(s State) (Level, bool) {
	switch Normalize(s) {
	case StatePendingN1:
		return LevelN1, true
	case StatePendingRH:
		return LevelRH, true
	}
	return "", false
}
