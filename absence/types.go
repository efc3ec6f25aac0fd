/*
Package absence is the domain layer for absence requests.

PURPOSE:
  Wraps the pure workflow state machine with everything a real request
  carries: the entity itself, per-level validation slots, derived
  duration fields, the absence-type catalog, the append-only validation
  history, and the service orchestrating create / transition / apply /
  cancel against the persistence store and the permission oracle.

KEY CONCEPTS IN THIS FILE (types.go):
  - Request:        the central entity, versioned for optimistic
                    concurrency
  - ValidationSlot: validator identity + timestamp + refusal reason,
                    one independent slot per level (N1 and RH)
  - CatalogEntry:   reference data deciding which validation steps a
                    given absence type requires
  - HistoryEntry:   one append-only row per state-changing action

DESIGN PRINCIPLES:
  1. The stored state label is raw; read paths normalize legacy labels
     through workflow.Normalize and never write them back.
  2. Duration fields are derived: re-computed on every create and date
     edit, never trusted as input.
  3. History is best-effort audit trail, not a source of truth.

SEE ALSO:
  - service.go: lifecycle orchestration
  - store.go:   persistence interfaces
  - errors.go:  domain error taxonomy
*/
package absence

import (
	"time"

	"github.com/opale/absence-engine/workflow"
	"github.com/shopspring/decimal"
)

// =============================================================================
// REQUEST - The central entity
// =============================================================================

// ValidationSlot records one level's decision. The N1 and RH slots are
// stored independently: an RH refusal leaves the N1 approval intact.
type ValidationSlot struct {
	ValidatorID   string
	ValidatedAt   *time.Time
	RefusalReason string
}

func (s ValidationSlot) IsSet() bool { return s.ValidatorID != "" }

// Request is an absence request. Version increments on every write and
// guards transitions against concurrent decisions.
type Request struct {
	ID         string
	EmployeeID string
	SiteID     string

	// CatalogID references the absence-type catalog. Empty on legacy
	// records, which carry a free-text type instead.
	CatalogID  string
	LegacyType string

	// Inclusive calendar range.
	StartDate time.Time
	EndDate   time.Time

	// Derived on create and date edit, never recomputed implicitly.
	RawDays     int
	WorkingDays decimal.Decimal

	State   workflow.State
	Version int64

	N1 ValidationSlot
	RH ValidationSlot

	// Deprecated single-slot fields kept for backward read
	// compatibility with records predating the two-level flow.
	// Never written.
	LegacyValidatorID string
	LegacyValidatedAt *time.Time

	// ImpactPlanif marks whether the approved absence blocks the
	// employee's availability downstream. Defaults to true.
	ImpactPlanif bool

	// ForceValidationRH escalates the request into the RH queue even
	// when the catalog entry does not require the RH step.
	ForceValidationRH bool

	// External sync markers, opaque passthrough.
	OutlookSyncID string
	SIRHExportID  string

	Motive          string
	Comment         string
	JustificatifRef string

	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CurrentState returns the state with legacy labels normalized.
func (r *Request) CurrentState() workflow.State {
	return workflow.Normalize(r.State)
}

// Slot returns the validation slot for a level.
func (r *Request) Slot(level workflow.Level) *ValidationSlot {
	if level == workflow.LevelRH {
		return &r.RH
	}
	return &r.N1
}

// Overlaps reports whether the request's range intersects [from, to].
func (r *Request) Overlaps(from, to time.Time) bool {
	return !r.EndDate.Before(from) && !r.StartDate.After(to)
}

// =============================================================================
// CATALOG - Absence type reference data
// =============================================================================

// CatalogEntry defines an absence type and its validation policy.
// Admin-managed; existing requests keep referencing entries that were
// deactivated later.
type CatalogEntry struct {
	ID       string
	Code     string
	Label    string
	Category string

	// Duration bounds in working days. Zero MaxDays means unbounded.
	MinDays decimal.Decimal
	MaxDays decimal.Decimal

	NeedsJustification bool
	NeedsN1            bool
	NeedsRH            bool

	Active bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Policy projects the entry onto the slice the state machine consumes.
func (e *CatalogEntry) Policy() workflow.Policy {
	return workflow.Policy{RequiresN1: e.NeedsN1, RequiresRH: e.NeedsRH}
}

// legacyPolicy is applied to records with no catalog reference: both
// validation steps, the most conservative reading of the old flow.
func legacyPolicy() workflow.Policy {
	return workflow.Policy{RequiresN1: true, RequiresRH: true}
}

// =============================================================================
// HISTORY - Append-only validation audit trail
// =============================================================================

type HistoryAction string

const (
	HistoryCreated   HistoryAction = "creee"
	HistoryValidated HistoryAction = "validee"
	HistoryRefused   HistoryAction = "refusee"
	HistoryModified  HistoryAction = "modifiee"
)

// HistoryEntry is written once per state-changing action and never
// updated or deleted. Best-effort: its completeness is not tied to the
// request's current state.
type HistoryEntry struct {
	ID        string
	RequestID string
	Level     workflow.Level // empty for actions outside a level (cancel, apply, date edit)
	Action    HistoryAction
	ActorID   string
	At        time.Time
	Comment   string
	FromState workflow.State
	ToState   workflow.State
}
