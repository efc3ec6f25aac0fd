/*
service.go - Absence lifecycle orchestration

PURPOSE:
  The Service is the single entry point for every state-changing
  operation on absence requests. Handlers never mutate state directly:
  they call Create / Transition / ApplyToPlanning / UpdateDates here,
  and the service runs the guards through workflow.Transition, stamps
  the validation slots, bumps the optimistic version, and appends the
  audit history.

OPERATION FLOW (Transition):
  1. Load the request and the catalog entry it references
  2. Resolve the actor's rights through the permission oracle
  3. Evaluate the pure transition function
  4. Persist the outcome with a version-conditional update
  5. Append one history row (best-effort; a failed history write is a
     warning, never a rollback of the committed state change)

SIDE-EFFECT ORDERING:
  The state write commits first, the history append second. They are
  independent writes: history is audit trail, not source of truth. The
  history entry ID is deterministic per (request, version) so a retry
  after a failed append cannot duplicate rows.

SEE ALSO:
  - ../workflow/machine.go: the transition table and guards
  - store.go: persistence and oracle contracts
*/
package absence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/opale/absence-engine/calendar"
	"github.com/opale/absence-engine/workflow"
	"github.com/sirupsen/logrus"
)

// SystemActorID identifies the non-interactive planning consumer.
const SystemActorID = "system:planning"

// Service orchestrates the absence lifecycle.
type Service struct {
	Store    Store
	Oracle   PermissionOracle
	Calendar *calendar.Calculator
	Log      logrus.FieldLogger

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

func NewService(store Store, oracle PermissionOracle, cal *calendar.Calculator, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		Store:    store,
		Oracle:   oracle,
		Calendar: cal,
		Log:      log,
		Now:      time.Now,
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// =============================================================================
// CREATE
// =============================================================================

// CreateInput carries everything a new request needs. ImpactPlanif
// defaults to true when nil.
type CreateInput struct {
	EmployeeID        string
	SiteID            string
	CatalogID         string
	LegacyType        string
	StartDate         time.Time
	EndDate           time.Time
	Motive            string
	Comment           string
	JustificatifRef   string
	ImpactPlanif      *bool
	ForceValidationRH bool
}

// Create validates the input, computes the derived duration fields and
// the initial state, and persists the new request. Creating on behalf
// of another employee requires manager or RH rights over the target.
func (s *Service) Create(ctx context.Context, actorID string, in CreateInput) (*Request, error) {
	if in.EmployeeID == "" {
		return nil, &ValidationError{Field: "employee_id", Reason: "required"}
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return nil, &ValidationError{Field: "date_range", Reason: "start and end dates are required"}
	}
	if in.EndDate.Before(in.StartDate) {
		return nil, &ValidationError{Field: "date_range", Reason: "end date before start date"}
	}

	actor, err := s.resolveActor(ctx, actorID, in.EmployeeID)
	if err != nil {
		return nil, err
	}
	if !actor.IsOwner && !actor.ManagesEmployee && !actor.HasHRRights {
		return nil, &workflow.PermissionError{ActorID: actorID, Action: "create"}
	}

	policy := legacyPolicy()
	var entry *CatalogEntry
	if in.CatalogID != "" {
		entry, err = s.Store.GetCatalogEntry(ctx, in.CatalogID)
		if err != nil {
			return nil, fmt.Errorf("resolving catalog entry: %w", err)
		}
		if !entry.Active {
			return nil, &ValidationError{Field: "catalog_id", Reason: "absence type is no longer active"}
		}
		if entry.NeedsJustification && in.JustificatifRef == "" {
			return nil, &ValidationError{Field: "justificatif", Reason: "this absence type requires a justification document"}
		}
		policy = entry.Policy()
	} else if in.LegacyType == "" {
		return nil, &ValidationError{Field: "type", Reason: "either a catalog entry or a free-text type is required"}
	}
	if in.ForceValidationRH {
		policy.RequiresRH = true
	}

	working := s.Calendar.WorkingDaysBetween(in.StartDate, in.EndDate)
	if entry != nil {
		if !entry.MinDays.IsZero() && working.LessThan(entry.MinDays) {
			return nil, &ValidationError{Field: "date_range",
				Reason: fmt.Sprintf("duration %s below minimum %s for %s", working, entry.MinDays, entry.Code)}
		}
		if !entry.MaxDays.IsZero() && working.GreaterThan(entry.MaxDays) {
			return nil, &ValidationError{Field: "date_range",
				Reason: fmt.Sprintf("duration %s exceeds maximum %s for %s", working, entry.MaxDays, entry.Code)}
		}
	}

	impact := true
	if in.ImpactPlanif != nil {
		impact = *in.ImpactPlanif
	}

	now := s.now()
	req := &Request{
		ID:                uuid.NewString(),
		EmployeeID:        in.EmployeeID,
		SiteID:            in.SiteID,
		CatalogID:         in.CatalogID,
		LegacyType:        in.LegacyType,
		StartDate:         in.StartDate,
		EndDate:           in.EndDate,
		RawDays:           calendar.RawDaysBetween(in.StartDate, in.EndDate),
		WorkingDays:       working,
		State:             workflow.InitialState(policy, actor),
		Version:           1,
		ImpactPlanif:      impact,
		ForceValidationRH: in.ForceValidationRH,
		Motive:            in.Motive,
		Comment:           in.Comment,
		JustificatifRef:   in.JustificatifRef,
		CreatedBy:         actorID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	// Auto-approved creation stamps the RH slot with the creator.
	if req.State == workflow.StateValidatedRH {
		at := now
		req.RH = ValidationSlot{ValidatorID: actorID, ValidatedAt: &at}
	}

	if err := s.Store.InsertRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("persisting request: %w", err)
	}

	s.appendHistory(ctx, HistoryEntry{
		ID:        historyID(req.ID, 0),
		RequestID: req.ID,
		Action:    HistoryCreated,
		ActorID:   actorID,
		At:        now,
		Comment:   in.Motive,
		ToState:   req.State,
	})

	return req, nil
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// Transition applies one lifecycle action. expectedVersion is the
// version the caller read; 0 skips the optimistic check (trusted
// internal callers only). reason is advisory and recorded on refusals.
func (s *Service) Transition(ctx context.Context, requestID string, action workflow.Action, actorID, reason string, expectedVersion int64) (*Request, error) {
	req, err := s.Store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if expectedVersion > 0 && req.Version != expectedVersion {
		return nil, ErrVersionConflict
	}

	actor, err := s.resolveActor(ctx, actorID, req.EmployeeID)
	if err != nil {
		return nil, err
	}

	policy, err := s.policyFor(ctx, req)
	if err != nil {
		return nil, err
	}

	out, err := workflow.Transition(req.CurrentState(), action, actor, policy)
	if err != nil {
		return nil, err
	}
	if out.NoOp {
		return req, nil
	}

	now := s.now()
	prior := req.CurrentState()
	req.State = out.To
	req.UpdatedAt = now

	if out.StampLevel != "" {
		slot := req.Slot(out.StampLevel)
		slot.ValidatorID = actorID
		at := now
		slot.ValidatedAt = &at
		if action == workflow.ActionRefuse {
			slot.RefusalReason = reason
		}
	}

	version := req.Version
	if err := s.Store.UpdateRequest(ctx, req, version); err != nil {
		return nil, err
	}

	s.appendHistory(ctx, HistoryEntry{
		ID:        historyID(req.ID, version),
		RequestID: req.ID,
		Level:     out.StampLevel,
		Action:    historyAction(action),
		ActorID:   actorID,
		At:        now,
		Comment:   reason,
		FromState: prior,
		ToState:   req.State,
	})

	return req, nil
}

// ApplyToPlanning marks an approved record as consumed by the planning
// subsystem. Idempotent: re-applying is a no-op.
func (s *Service) ApplyToPlanning(ctx context.Context, requestID string) (*Request, error) {
	return s.Transition(ctx, requestID, workflow.ActionApply, SystemActorID, "", 0)
}

// UpdateDates amends the range of a still-pending request and
// re-derives the duration fields. Owner or RH only.
func (s *Service) UpdateDates(ctx context.Context, requestID, actorID string, start, end time.Time, expectedVersion int64) (*Request, error) {
	if end.Before(start) {
		return nil, &ValidationError{Field: "date_range", Reason: "end date before start date"}
	}

	req, err := s.Store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if expectedVersion > 0 && req.Version != expectedVersion {
		return nil, ErrVersionConflict
	}
	if !workflow.IsPending(req.CurrentState()) {
		return nil, &workflow.InvalidTransitionError{From: req.CurrentState(), Action: "edit", Reason: "dates may only change while pending"}
	}

	actor, err := s.resolveActor(ctx, actorID, req.EmployeeID)
	if err != nil {
		return nil, err
	}
	if !actor.IsOwner && !actor.HasHRRights {
		return nil, &workflow.PermissionError{ActorID: actorID, Action: "edit"}
	}

	now := s.now()
	req.StartDate = start
	req.EndDate = end
	req.RawDays = calendar.RawDaysBetween(start, end)
	req.WorkingDays = s.Calendar.WorkingDaysBetween(start, end)
	req.UpdatedAt = now

	version := req.Version
	if err := s.Store.UpdateRequest(ctx, req, version); err != nil {
		return nil, err
	}

	s.appendHistory(ctx, HistoryEntry{
		ID:        historyID(req.ID, version),
		RequestID: req.ID,
		Action:    HistoryModified,
		ActorID:   actorID,
		At:        now,
		Comment:   fmt.Sprintf("dates changed to %s / %s", start.Format("2006-01-02"), end.Format("2006-01-02")),
		FromState: req.CurrentState(),
		ToState:   req.CurrentState(),
	})

	return req, nil
}

// =============================================================================
// READS
// =============================================================================

func (s *Service) Get(ctx context.Context, requestID string) (*Request, error) {
	return s.Store.GetRequest(ctx, requestID)
}

func (s *Service) List(ctx context.Context, f Filter) ([]*Request, error) {
	return s.Store.ListRequests(ctx, f)
}

func (s *Service) History(ctx context.Context, requestID string) ([]HistoryEntry, error) {
	return s.Store.ListHistory(ctx, requestID)
}

// PlanningFeed returns the approved records the planning subsystem
// consumes for availability blocking: fully approved or applied, with
// impact_planif set, overlapping the window.
func (s *Service) PlanningFeed(ctx context.Context, from, to time.Time) ([]*Request, error) {
	all, err := s.Store.ListRequests(ctx, Filter{From: &from, To: &to})
	if err != nil {
		return nil, err
	}
	var feed []*Request
	for _, r := range all {
		if !r.ImpactPlanif || !workflow.IsApproved(r.CurrentState()) {
			continue
		}
		feed = append(feed, r)
	}
	return feed, nil
}

// ResolveRequirements reads the validation-requirement flags for a
// catalog entry.
func (s *Service) ResolveRequirements(ctx context.Context, catalogID string) (workflow.Policy, error) {
	entry, err := s.Store.GetCatalogEntry(ctx, catalogID)
	if err != nil {
		return workflow.Policy{}, err
	}
	return entry.Policy(), nil
}

// =============================================================================
// INTERNAL
// =============================================================================

func (s *Service) resolveActor(ctx context.Context, actorID, employeeID string) (workflow.Actor, error) {
	actor := workflow.Actor{ID: actorID}
	if actorID == SystemActorID {
		actor.IsSystem = true
		return actor, nil
	}
	actor.IsOwner = actorID == employeeID

	manages, err := s.Oracle.IsTeamManagerOf(ctx, actorID, employeeID)
	if err != nil {
		return workflow.Actor{}, fmt.Errorf("resolving management link: %w", err)
	}
	actor.ManagesEmployee = manages

	hr, err := s.Oracle.HasHRRights(ctx, actorID)
	if err != nil {
		return workflow.Actor{}, fmt.Errorf("resolving HR rights: %w", err)
	}
	actor.HasHRRights = hr

	return actor, nil
}

// policyFor resolves the effective validation policy of a request:
// catalog flags when referenced, the conservative legacy default
// otherwise, with the force_validation_rh escalation applied on top.
func (s *Service) policyFor(ctx context.Context, req *Request) (workflow.Policy, error) {
	policy := legacyPolicy()
	if req.CatalogID != "" {
		entry, err := s.Store.GetCatalogEntry(ctx, req.CatalogID)
		if err != nil {
			return workflow.Policy{}, fmt.Errorf("resolving catalog entry: %w", err)
		}
		// Inactive entries stay valid for existing requests.
		policy = entry.Policy()
	}
	if req.ForceValidationRH {
		policy.RequiresRH = true
	}
	return policy, nil
}

// appendHistory writes the audit row. Failure is logged and swallowed:
// the state change has already committed and takes precedence.
func (s *Service) appendHistory(ctx context.Context, h HistoryEntry) {
	if err := s.Store.AppendHistory(ctx, h); err != nil {
		s.Log.WithFields(logrus.Fields{
			"request_id": h.RequestID,
			"action":     h.Action,
			"actor":      h.ActorID,
		}).WithError(err).Warn("history write failed, state change is committed")
	}
}

// historyID is deterministic per (request, version) so retried appends
// cannot duplicate rows.
func historyID(requestID string, version int64) string {
	return fmt.Sprintf("%s-v%d", requestID, version)
}

func historyAction(a workflow.Action) HistoryAction {
	switch a {
	case workflow.ActionValidate:
		return HistoryValidated
	case workflow.ActionRefuse:
		return HistoryRefused
	default:
		return HistoryModified
	}
}
