/*
handlers.go - HTTP API handlers for the absence lifecycle service

PURPOSE:
  Exposes the absence engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates every state
  change to the domain service. Handlers never mutate records
  directly.

ENDPOINTS:
  Absences:
    POST   /api/absences                    Create request
    GET    /api/absences                    List (employee/site/status/date filters)
    GET    /api/absences/{id}               Get one
    POST   /api/absences/{id}/validate      N1 or RH approval
    POST   /api/absences/{id}/refuse        N1 or RH rejection
    POST   /api/absences/{id}/cancel        Owner/RH cancellation
    POST   /api/absences/{id}/apply         Planning consumption
    PUT    /api/absences/{id}/dates         Amend a pending range
    GET    /api/absences/{id}/history       Validation history

  Planning:
    GET    /api/planning/feed               Approved absences blocking availability

  Catalog:
    GET    /api/catalogue                   List absence types
    POST   /api/catalogue                   Create absence type
    GET    /api/catalogue/{id}              Get one
    PUT    /api/catalogue/{id}              Update (including activation)

  Directory:
    GET    /api/employees                   List employees
    POST   /api/employees                   Create employee
    GET    /api/employees/{id}              Get one
    POST   /api/admin/management-links      Declare manager->employee link
    GET    /api/holidays                    List company holidays
    POST   /api/holidays                    Add a holiday

ACTOR IDENTITY:
  Every mutating call reads the acting employee from the X-Actor-ID
  header. Authentication itself is out of scope: the header is the
  trusted output of the front auth layer.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 403: Permission errors
  - 404: Resource not found
  - 409: State conflict or stale version
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/opale/absence-engine/absence"
	"github.com/opale/absence-engine/calendar"
	"github.com/opale/absence-engine/directory"
	"github.com/opale/absence-engine/workflow"
	"github.com/sirupsen/logrus"
)

const dateLayout = "2006-01-02"

// HolidayStore persists company holidays. Satisfied by both the memory
// and the sqlite store.
type HolidayStore interface {
	SaveHoliday(ctx context.Context, h calendar.Holiday) error
	ListHolidays(ctx context.Context) ([]calendar.Holiday, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Absences  *absence.Service
	Directory directory.Store
	Holidays  HolidayStore
	Log       logrus.FieldLogger
}

// NewHandler creates a new handler around the domain service.
func NewHandler(svc *absence.Service, dir directory.Store, holidays HolidayStore, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{Absences: svc, Directory: dir, Holidays: holidays, Log: log}
}

// =============================================================================
// ABSENCE HANDLERS
// =============================================================================

// CreateAbsence creates a new absence request.
func (h *Handler) CreateAbsence(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}

	var req CreateAbsenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date format (use YYYY-MM-DD)", err)
		return
	}
	end, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date format (use YYYY-MM-DD)", err)
		return
	}

	created, err := h.Absences.Create(r.Context(), actor, absence.CreateInput{
		EmployeeID:        req.EmployeeID,
		SiteID:            req.SiteID,
		CatalogID:         req.CatalogID,
		LegacyType:        req.LegacyType,
		StartDate:         start,
		EndDate:           end,
		Motive:            req.Motive,
		Comment:           req.Comment,
		JustificatifRef:   req.JustificatifRef,
		ImpactPlanif:      req.ImpactPlanif,
		ForceValidationRH: req.ForceValidationRH,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAbsenceDTO(created))
}

// ListAbsences lists requests matching the query filters.
func (h *Handler) ListAbsences(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := absence.Filter{
		EmployeeID: q.Get("employee_id"),
		SiteID:     q.Get("site_id"),
		Status:     workflow.State(q.Get("status")),
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from date", err)
			return
		}
		f.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid to date", err)
			return
		}
		f.To = &t
	}

	list, err := h.Absences.List(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list absences", err)
		return
	}

	dtos := make([]AbsenceDTO, len(list))
	for i, a := range list {
		dtos[i] = toAbsenceDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetAbsence returns a single absence request.
func (h *Handler) GetAbsence(w http.ResponseWriter, r *http.Request) {
	a, err := h.Absences.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAbsenceDTO(a))
}

// ValidateAbsence approves at the level the record is waiting on.
func (h *Handler) ValidateAbsence(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, workflow.ActionValidate)
}

// RefuseAbsence rejects at the level the record is waiting on. The
// reason is advisory; an empty one never blocks the transition.
func (h *Handler) RefuseAbsence(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, workflow.ActionRefuse)
}

// CancelAbsence moves a non-terminal record to annulee.
func (h *Handler) CancelAbsence(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, workflow.ActionCancel)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, action workflow.Action) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}

	var req DecisionRequest
	if r.Body != nil {
		// Body is optional: a bare decision with no reason is valid.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	updated, err := h.Absences.Transition(r.Context(), chi.URLParam(r, "id"), action, actor, req.Reason, req.Version)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAbsenceDTO(updated))
}

// ApplyAbsence marks an approved record as consumed by planning.
func (h *Handler) ApplyAbsence(w http.ResponseWriter, r *http.Request) {
	updated, err := h.Absences.ApplyToPlanning(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAbsenceDTO(updated))
}

// UpdateAbsenceDates amends the range of a pending request.
func (h *Handler) UpdateAbsenceDates(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}

	var req UpdateDatesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date format (use YYYY-MM-DD)", err)
		return
	}
	end, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date format (use YYYY-MM-DD)", err)
		return
	}

	updated, err := h.Absences.UpdateDates(r.Context(), chi.URLParam(r, "id"), actor, start, end, req.Version)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAbsenceDTO(updated))
}

// GetAbsenceHistory returns the validation history of a request.
func (h *Handler) GetAbsenceHistory(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Absences.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load history", err)
		return
	}
	dtos := make([]HistoryDTO, len(rows))
	for i, row := range rows {
		dtos[i] = toHistoryDTO(row)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// PlanningFeed returns the approved absences the planning subsystem
// consumes for availability blocking.
func (h *Handler) PlanningFeed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := time.Parse(dateLayout, q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "from date required (YYYY-MM-DD)", err)
		return
	}
	to, err := time.Parse(dateLayout, q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "to date required (YYYY-MM-DD)", err)
		return
	}

	feed, err := h.Absences.PlanningFeed(r.Context(), from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build planning feed", err)
		return
	}
	dtos := make([]AbsenceDTO, len(feed))
	for i, a := range feed {
		dtos[i] = toAbsenceDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// CATALOG HANDLERS
// =============================================================================

// ListCatalog returns absence types. ?all=true includes inactive ones.
func (h *Handler) ListCatalog(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("all") == "true"
	entries, err := h.Absences.Store.ListCatalog(r.Context(), includeInactive)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list catalog", err)
		return
	}
	dtos := make([]CatalogEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toCatalogDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCatalogEntry returns one absence type.
func (h *Handler) GetCatalogEntry(w http.ResponseWriter, r *http.Request) {
	e, err := h.Absences.Store.GetCatalogEntry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCatalogDTO(e))
}

// CreateCatalogEntry creates an absence type.
func (h *Handler) CreateCatalogEntry(w http.ResponseWriter, r *http.Request) {
	h.saveCatalogEntry(w, r, uuid.NewString(), nil)
}

// UpdateCatalogEntry updates an absence type, including activation.
func (h *Handler) UpdateCatalogEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	existing, err := h.Absences.Store.GetCatalogEntry(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.saveCatalogEntry(w, r, id, existing)
}

func (h *Handler) saveCatalogEntry(w http.ResponseWriter, r *http.Request, id string, existing *absence.CatalogEntry) {
	var req SaveCatalogEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Code == "" || req.Label == "" {
		writeError(w, http.StatusBadRequest, "code and label are required", nil)
		return
	}

	minDays, err := parseDays(req.MinDays)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid min_days", err)
		return
	}
	maxDays, err := parseDays(req.MaxDays)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid max_days", err)
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	} else if existing != nil {
		active = existing.Active
	}

	entry := &absence.CatalogEntry{
		ID:                 id,
		Code:               req.Code,
		Label:              req.Label,
		Category:           req.Category,
		MinDays:            minDays,
		MaxDays:            maxDays,
		NeedsJustification: req.BesoinJustificatif,
		NeedsN1:            req.BesoinValidationN1,
		NeedsRH:            req.BesoinValidationRH,
		Active:             active,
	}
	if err := h.Absences.Store.SaveCatalogEntry(r.Context(), entry); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save catalog entry", err)
		return
	}

	status := http.StatusOK
	if existing == nil {
		status = http.StatusCreated
	}
	writeJSON(w, status, toCatalogDTO(entry))
}

// =============================================================================
// DIRECTORY HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Directory.ListEmployees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}
	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Directory.GetEmployee(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(emp))
}

// CreateEmployee creates a new employee.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}

	emp := &directory.Employee{
		ID:       req.ID,
		Name:     req.Name,
		Email:    req.Email,
		SiteID:   req.SiteID,
		HRRights: req.HRRights,
	}
	if req.HireDate != "" {
		hireDate, err := time.Parse(dateLayout, req.HireDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid hire_date format (use YYYY-MM-DD)", err)
			return
		}
		emp.HireDate = hireDate
	}

	if err := h.Directory.SaveEmployee(r.Context(), emp); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// CreateManagementLink declares that a manager validates at N1 for an
// employee.
func (h *Handler) CreateManagementLink(w http.ResponseWriter, r *http.Request) {
	var req ManagementLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ManagerID == "" || req.EmployeeID == "" {
		writeError(w, http.StatusBadRequest, "manager_id and employee_id are required", nil)
		return
	}

	kind := directory.LinkKind(req.Kind)
	if kind == "" {
		kind = directory.LinkDirect
	}

	link := directory.ManagementLink{ManagerID: req.ManagerID, EmployeeID: req.EmployeeID, Kind: kind}
	if err := h.Directory.SaveManagementLink(r.Context(), link); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save management link", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// ListHolidays returns all company holidays.
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	holidays, err := h.Holidays.ListHolidays(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list holidays", err)
		return
	}
	dtos := make([]HolidayDTO, len(holidays))
	for i, hol := range holidays {
		dtos[i] = toHolidayDTO(hol)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateHoliday adds a company holiday.
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req HolidayDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	hol := calendar.Holiday{
		ID:        uuid.NewString(),
		Date:      date,
		Label:     req.Label,
		Recurring: req.Recurring,
	}
	if err := h.Holidays.SaveHoliday(r.Context(), hol); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save holiday", err)
		return
	}
	writeJSON(w, http.StatusCreated, toHolidayDTO(hol))
}

// =============================================================================
// HELPERS
// =============================================================================

// actorID reads the acting employee from the X-Actor-ID header.
func actorID(w http.ResponseWriter, r *http.Request) (string, bool) {
	actor := r.Header.Get("X-Actor-ID")
	if actor == "" {
		writeError(w, http.StatusBadRequest, "X-Actor-ID header is required", nil)
		return "", false
	}
	return actor, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps the domain error taxonomy to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, absence.ErrValidation):
		writeError(w, http.StatusBadRequest, "Validation failed", err)
	case errors.Is(err, workflow.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, "Permission denied", err)
	case absence.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case absence.IsConflict(err):
		writeError(w, http.StatusConflict, "Conflict", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
