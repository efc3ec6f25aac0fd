/*
machine.go - Transition function for the absence lifecycle

PURPOSE:
  A single pure function, Transition, that every caller goes through.
  It takes the current state, the attempted action, the actor's rights
  and the catalog policy, and returns either the outcome (new state +
  which validation slot to stamp) or a guard error. Centralizing the
  decision here is what keeps guard logic from being duplicated across
  handlers.

ACTIONS:
  Validate: approve at the level the record is currently waiting on.
            Approving at N1 when the catalog also requires RH cascades
            straight to en_attente_validation_rh in one atomic step, so
            validee_n1 never becomes an orphan resting state when an RH
            step is still due.
  Refuse:   reject at the current level; reason is advisory, never
            required.
  Cancel:   owner or RH moves any non-terminal record to annulee.
  Apply:    the planning subsystem consumes an approved record.
            Idempotent: applying an already-applied record is a no-op.

GUARD ORDER:
  1. State guard: the action must be defined from the current state.
  2. Permission guard: the actor must hold the level's role (scoped
     N1 manager, global RH, or ownership for cancel).
  Permission evaluation itself (who manages whom) lives behind the
  Actor struct; this package only consumes the booleans.

SEE ALSO:
  - states.go: State set and terminal classification
  - errors.go: InvalidTransitionError, PermissionError
*/
package workflow

// =============================================================================
// INPUTS
// =============================================================================

type Action string

const (
	ActionValidate Action = "validate"
	ActionRefuse   Action = "refuse"
	ActionCancel   Action = "cancel"
	ActionApply    Action = "apply"
)

// Policy is the slice of a catalog entry the state machine consumes:
// which validation steps the absence type requires.
type Policy struct {
	RequiresN1 bool
	RequiresRH bool
}

// Actor carries the pre-resolved rights of whoever attempts a
// transition. The permission oracle fills it in; the machine only
// reads it.
type Actor struct {
	ID string

	// IsOwner is true when the actor is the employee the request
	// belongs to.
	IsOwner bool

	// ManagesEmployee is true when the actor is the direct or
	// activity-line manager of the request's employee.
	ManagesEmployee bool

	// HasHRRights is true for global RH validators.
	HasHRRights bool

	// IsSystem marks non-interactive callers (the planning consumer).
	IsSystem bool
}

// =============================================================================
// OUTCOME
// =============================================================================

// Outcome describes the effect of an accepted transition.
type Outcome struct {
	From State
	To   State

	// StampLevel is the validation slot to record the actor and
	// timestamp into, empty when no slot is touched (cancel, apply).
	StampLevel Level

	// NoOp is true when the transition is accepted but changes nothing
	// (re-applying an already-applied record).
	NoOp bool
}

// =============================================================================
// INITIAL STATE
// =============================================================================

// InitialState computes the state a freshly created request starts in,
// from the catalog entry's requirement flags.
//
// When neither step is required, only a creator holding RH rights gets
// the auto-approved validee_rh; anyone else is routed through the RH
// queue so a plain employee cannot mint approved absences.
func InitialState(policy Policy, creator Actor) State {
	switch {
	case policy.RequiresN1:
		return StatePendingN1
	case policy.RequiresRH:
		return StatePendingRH
	case creator.HasHRRights:
		return StateValidatedRH
	default:
		return StatePendingRH
	}
}

// =============================================================================
// TRANSITION
// =============================================================================

// Transition evaluates one attempted action against the current state.
// It never mutates anything: callers persist the outcome.
func Transition(current State, action Action, actor Actor, policy Policy) (Outcome, error) {
	state := Normalize(current)
	if !IsKnown(state) {
		return Outcome{}, &InvalidTransitionError{From: current, Action: action, Reason: "unknown state"}
	}

	switch action {
	case ActionValidate:
		return validate(state, actor, policy)
	case ActionRefuse:
		return refuse(state, actor)
	case ActionCancel:
		return cancel(state, actor)
	case ActionApply:
		return apply(state, actor)
	default:
		return Outcome{}, &InvalidTransitionError{From: state, Action: action, Reason: "unknown action"}
	}
}

func validate(state State, actor Actor, policy Policy) (Outcome, error) {
	level, ok := PendingLevel(state)
	if !ok {
		return Outcome{}, &InvalidTransitionError{From: state, Action: ActionValidate, Reason: "no validation pending"}
	}

	switch level {
	case LevelN1:
		// RH validators may also decide at the N1 level; plain team
		// managers are scoped to their own team.
		if !actor.ManagesEmployee && !actor.HasHRRights {
			return Outcome{}, &PermissionError{ActorID: actor.ID, Action: ActionValidate, Level: LevelN1}
		}
		to := StateValidatedN1
		if policy.RequiresRH {
			// Single combined transition: the N1 slot is stamped and
			// the record lands directly in the RH queue.
			to = StatePendingRH
		}
		return Outcome{From: state, To: to, StampLevel: LevelN1}, nil

	case LevelRH:
		if !actor.HasHRRights {
			return Outcome{}, &PermissionError{ActorID: actor.ID, Action: ActionValidate, Level: LevelRH}
		}
		return Outcome{From: state, To: StateValidatedRH, StampLevel: LevelRH}, nil
	}

	return Outcome{}, &InvalidTransitionError{From: state, Action: ActionValidate, Reason: "no validation pending"}
}

func refuse(state State, actor Actor) (Outcome, error) {
	level, ok := PendingLevel(state)
	if !ok {
		return Outcome{}, &InvalidTransitionError{From: state, Action: ActionRefuse, Reason: "no validation pending"}
	}

	switch level {
	case LevelN1:
		if !actor.ManagesEmployee && !actor.HasHRRights {
			return Outcome{}, &PermissionError{ActorID: actor.ID, Action: ActionRefuse, Level: LevelN1}
		}
		return Outcome{From: state, To: StateRefusedN1, StampLevel: LevelN1}, nil

	case LevelRH:
		if !actor.HasHRRights {
			return Outcome{}, &PermissionError{ActorID: actor.ID, Action: ActionRefuse, Level: LevelRH}
		}
		return Outcome{From: state, To: StateRefusedRH, StampLevel: LevelRH}, nil
	}

	return Outcome{}, &InvalidTransitionError{From: state, Action: ActionRefuse, Reason: "no validation pending"}
}

func cancel(state State, actor Actor) (Outcome, error) {
	if IsTerminal(state) {
		return Outcome{}, &InvalidTransitionError{From: state, Action: ActionCancel, Reason: "terminal state"}
	}
	if !actor.IsOwner && !actor.HasHRRights {
		return Outcome{}, &PermissionError{ActorID: actor.ID, Action: ActionCancel}
	}
	return Outcome{From: state, To: StateCancelled}, nil
}

func apply(state State, actor Actor) (Outcome, error) {
	switch state {
	case StateApplied:
		// Idempotent: a second apply must not double-count.
		return Outcome{From: state, To: StateApplied, NoOp: true}, nil
	case StateValidatedRH:
		if !actor.IsSystem && !actor.HasHRRights {
			return Outcome{}, &PermissionError{ActorID: actor.ID, Action: ActionApply}
		}
		return Outcome{From: state, To: StateApplied}, nil
	default:
		return Outcome{}, &InvalidTransitionError{From: state, Action: ActionApply, Reason: "not approved by RH"}
	}
}
