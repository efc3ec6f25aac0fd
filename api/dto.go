/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types
  decouple the internal domain model from the external API contract,
  allowing field renaming without breaking clients and API-specific
  validation.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers and the domain service, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/opale/absence-engine/absence"
	"github.com/opale/absence-engine/calendar"
	"github.com/opale/absence-engine/directory"
	"github.com/shopspring/decimal"
)

// parseDays parses a day-count field; empty means zero (no bound).
func parseDays(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// =============================================================================
// ABSENCE TYPES
// =============================================================================

// ValidationSlotDTO mirrors one level's decision record.
type ValidationSlotDTO struct {
	ValidatorID   string `json:"validator_id,omitempty"`
	ValidatedAt   string `json:"validated_at,omitempty"`
	RefusalReason string `json:"refusal_reason,omitempty"`
}

// AbsenceDTO represents an absence request in API responses.
type AbsenceDTO struct {
	ID              string `json:"id"`
	EmployeeID      string `json:"employee_id"`
	SiteID          string `json:"site_id,omitempty"`
	CatalogID       string `json:"catalog_id,omitempty"`
	LegacyType      string `json:"legacy_type,omitempty"`
	StartDate       string `json:"start_date"`
	EndDate         string `json:"end_date"`
	RawDays         int    `json:"raw_days"`
	WorkingDays     string `json:"working_days"`
	State           string `json:"state"`
	Version         int64  `json:"version"`
	ImpactPlanif    bool   `json:"impact_planif"`
	Motive          string `json:"motive,omitempty"`
	Comment         string `json:"comment,omitempty"`
	JustificatifRef string `json:"justificatif_ref,omitempty"`

	N1 *ValidationSlotDTO `json:"validation_n1,omitempty"`
	RH *ValidationSlotDTO `json:"validation_rh,omitempty"`

	CreatedBy string `json:"created_by"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// CreateAbsenceRequest is the request body for POST /api/absences.
type CreateAbsenceRequest struct {
	EmployeeID        string `json:"employee_id"`
	SiteID            string `json:"site_id"`
	CatalogID         string `json:"catalog_id"`
	LegacyType        string `json:"type"`
	StartDate         string `json:"start_date"`
	EndDate           string `json:"end_date"`
	Motive            string `json:"motive"`
	Comment           string `json:"comment"`
	JustificatifRef   string `json:"justificatif_ref"`
	ImpactPlanif      *bool  `json:"impact_planif"`
	ForceValidationRH bool   `json:"force_validation_rh"`
}

// DecisionRequest carries a validate/refuse/cancel call. Version is the
// version the client read; the transition is rejected when stale.
type DecisionRequest struct {
	Reason  string `json:"reason"`
	Version int64  `json:"version"`
}

// UpdateDatesRequest amends a pending request's range.
type UpdateDatesRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Version   int64  `json:"version"`
}

// HistoryDTO is one validation-history row.
type HistoryDTO struct {
	ID        string `json:"id"`
	Level     string `json:"level,omitempty"`
	Action    string `json:"action"`
	ActorID   string `json:"actor_id"`
	At        string `json:"at"`
	Comment   string `json:"comment,omitempty"`
	FromState string `json:"from_state,omitempty"`
	ToState   string `json:"to_state"`
}

// =============================================================================
// CATALOG TYPES
// =============================================================================

type CatalogEntryDTO struct {
	ID                 string `json:"id"`
	Code               string `json:"code"`
	Label              string `json:"label"`
	Category           string `json:"category,omitempty"`
	MinDays            string `json:"min_days"`
	MaxDays            string `json:"max_days"`
	BesoinJustificatif bool   `json:"besoin_justificatif"`
	BesoinValidationN1 bool   `json:"besoin_validation_n1"`
	BesoinValidationRH bool   `json:"besoin_validation_rh"`
	IsActive           bool   `json:"is_active"`
}

type SaveCatalogEntryRequest struct {
	Code               string `json:"code"`
	Label              string `json:"label"`
	Category           string `json:"category"`
	MinDays            string `json:"min_days"`
	MaxDays            string `json:"max_days"`
	BesoinJustificatif bool   `json:"besoin_justificatif"`
	BesoinValidationN1 bool   `json:"besoin_validation_n1"`
	BesoinValidationRH bool   `json:"besoin_validation_rh"`
	IsActive           *bool  `json:"is_active"`
}

// =============================================================================
// DIRECTORY TYPES
// =============================================================================

type EmployeeDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	SiteID   string `json:"site_id,omitempty"`
	HRRights bool   `json:"hr_rights"`
	HireDate string `json:"hire_date,omitempty"`
}

type CreateEmployeeRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	SiteID   string `json:"site_id"`
	HRRights bool   `json:"hr_rights"`
	HireDate string `json:"hire_date"`
}

type ManagementLinkRequest struct {
	ManagerID  string `json:"manager_id"`
	EmployeeID string `json:"employee_id"`
	Kind       string `json:"kind"`
}

type HolidayDTO struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	Label     string `json:"label"`
	Recurring bool   `json:"recurring"`
}

// =============================================================================
// ERRORS
// =============================================================================

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// MAPPERS
// =============================================================================

func toAbsenceDTO(r *absence.Request) AbsenceDTO {
	dto := AbsenceDTO{
		ID:              r.ID,
		EmployeeID:      r.EmployeeID,
		SiteID:          r.SiteID,
		CatalogID:       r.CatalogID,
		LegacyType:      r.LegacyType,
		StartDate:       r.StartDate.Format("2006-01-02"),
		EndDate:         r.EndDate.Format("2006-01-02"),
		RawDays:         r.RawDays,
		WorkingDays:     r.WorkingDays.String(),
		State:           string(r.CurrentState()),
		Version:         r.Version,
		ImpactPlanif:    r.ImpactPlanif,
		Motive:          r.Motive,
		Comment:         r.Comment,
		JustificatifRef: r.JustificatifRef,
		CreatedBy:       r.CreatedBy,
		CreatedAt:       r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       r.UpdatedAt.Format(time.RFC3339),
	}
	if r.N1.IsSet() {
		dto.N1 = toSlotDTO(r.N1)
	}
	if r.RH.IsSet() {
		dto.RH = toSlotDTO(r.RH)
	}
	return dto
}

func toSlotDTO(s absence.ValidationSlot) *ValidationSlotDTO {
	dto := &ValidationSlotDTO{
		ValidatorID:   s.ValidatorID,
		RefusalReason: s.RefusalReason,
	}
	if s.ValidatedAt != nil {
		dto.ValidatedAt = s.ValidatedAt.Format(time.RFC3339)
	}
	return dto
}

func toHistoryDTO(h absence.HistoryEntry) HistoryDTO {
	return HistoryDTO{
		ID:        h.ID,
		Level:     string(h.Level),
		Action:    string(h.Action),
		ActorID:   h.ActorID,
		At:        h.At.Format(time.RFC3339),
		Comment:   h.Comment,
		FromState: string(h.FromState),
		ToState:   string(h.ToState),
	}
}

func toCatalogDTO(e *absence.CatalogEntry) CatalogEntryDTO {
	return CatalogEntryDTO{
		ID:                 e.ID,
		Code:               e.Code,
		Label:              e.Label,
		Category:           e.Category,
		MinDays:            e.MinDays.String(),
		MaxDays:            e.MaxDays.String(),
		BesoinJustificatif: e.NeedsJustification,
		BesoinValidationN1: e.NeedsN1,
		BesoinValidationRH: e.NeedsRH,
		IsActive:           e.Active,
	}
}

func toEmployeeDTO(e *directory.Employee) EmployeeDTO {
	dto := EmployeeDTO{
		ID:       e.ID,
		Name:     e.Name,
		Email:    e.Email,
		SiteID:   e.SiteID,
		HRRights: e.HRRights,
	}
	if !e.HireDate.IsZero() {
		dto.HireDate = e.HireDate.Format("2006-01-02")
	}
	return dto
}

func toHolidayDTO(h calendar.Holiday) HolidayDTO {
	return HolidayDTO{
		ID:        h.ID,
		Date:      h.Date.Format("2006-01-02"),
		Label:     h.Label,
		Recurring: h.Recurring,
	}
}
