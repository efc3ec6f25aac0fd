package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/opale/absence-engine/absence"
	"github.com/opale/absence-engine/api"
	"github.com/opale/absence-engine/calendar"
	"github.com/opale/absence-engine/directory"
	"github.com/opale/absence-engine/store"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST HARNESS
// =============================================================================

// newTestRouter wires the full stack on the in-memory store: the
// directory doubles as permission oracle, so links and HR rights
// created through the API take effect on validation calls.
func newTestRouter(t *testing.T) *chi.Mux {
	t.Helper()

	mem := store.NewMemory()
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	svc := absence.NewService(mem, directory.NewStoreOracle(mem), calendar.NewCalculator(mem), log)
	h := api.NewHandler(svc, mem, mem, log)
	return api.NewRouter(h, []string{"*"})
}

func do(t *testing.T, router http.Handler, method, path, actor string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set("X-Actor-ID", actor)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out), "body: %s", rec.Body.String())
	return out
}

// seedDirectory creates the employees, the management link and the CP
// catalog entry the scenarios share.
func seedDirectory(t *testing.T, router http.Handler) (catalogID string) {
	t.Helper()

	for _, emp := range []map[string]any{
		{"id": "emp-1", "name": "Alice Durand", "site_id": "site-lyon"},
		{"id": "mgr-1", "name": "Bob Martin"},
		{"id": "rh-1", "name": "Claire Petit", "hr_rights": true},
	} {
		rec := do(t, router, http.MethodPost, "/api/employees", "", emp)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := do(t, router, http.MethodPost, "/api/admin/management-links", "", map[string]any{
		"manager_id": "mgr-1", "employee_id": "emp-1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/catalogue/", "", map[string]any{
		"code": "CP", "label": "Conges payes",
		"besoin_validation_n1": true, "besoin_validation_rh": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[api.CatalogEntryDTO](t, rec).ID
}

func createAbsence(t *testing.T, router http.Handler, catalogID string) api.AbsenceDTO {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/api/absences/", "emp-1", map[string]any{
		"employee_id": "emp-1",
		"site_id":     "site-lyon",
		"catalog_id":  catalogID,
		"start_date":  "2025-03-03",
		"end_date":    "2025-03-05",
		"motive":      "conges",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[api.AbsenceDTO](t, rec)
}

// =============================================================================
// ABSENCE LIFECYCLE OVER HTTP
// =============================================================================

func TestCreateAbsence_ReturnsDerivedFields(t *testing.T) {
	router := newTestRouter(t)
	catalogID := seedDirectory(t, router)

	dto := createAbsence(t, router, catalogID)

	assert.NotEmpty(t, dto.ID)
	assert.Equal(t, "en_attente_validation_n1", dto.State)
	assert.Equal(t, 3, dto.RawDays)
	assert.Equal(t, "3", dto.WorkingDays)
	assert.Equal(t, int64(1), dto.Version)
	assert.True(t, dto.ImpactPlanif)
	assert.Nil(t, dto.N1)
}

func TestCreateAbsence_MissingActorHeader_BadRequest(t *testing.T) {
	router := newTestRouter(t)
	catalogID := seedDirectory(t, router)

	rec := do(t, router, http.MethodPost, "/api/absences/", "", map[string]any{
		"employee_id": "emp-1", "catalog_id": catalogID,
		"start_date": "2025-03-03", "end_date": "2025-03-05",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidateFlow_N1ThenRH_OverHTTP(t *testing.T) {
	// GIVEN: A CP request pending N1
	// WHEN: The manager then RH validate through the API
	// THEN: en_attente_validation_rh then validee_rh, slots populated

	router := newTestRouter(t)
	catalogID := seedDirectory(t, router)
	created := createAbsence(t, router, catalogID)

	rec := do(t, router, http.MethodPost, "/api/absences/"+created.ID+"/validate", "mgr-1",
		map[string]any{"version": created.Version})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	afterN1 := decode[api.AbsenceDTO](t, rec)
	assert.Equal(t, "en_attente_validation_rh", afterN1.State)
	require.NotNil(t, afterN1.N1)
	assert.Equal(t, "mgr-1", afterN1.N1.ValidatorID)

	rec = do(t, router, http.MethodPost, "/api/absences/"+created.ID+"/validate", "rh-1",
		map[string]any{"version": afterN1.Version})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	final := decode[api.AbsenceDTO](t, rec)
	assert.Equal(t, "validee_rh", final.State)
	require.NotNil(t, final.RH)
	assert.Equal(t, "rh-1", final.RH.ValidatorID)
}

func TestValidate_ByNonManager_Forbidden(t *testing.T) {
	router := newTestRouter(t)
	catalogID := seedDirectory(t, router)
	created := createAbsence(t, router, catalogID)

	rec := do(t, router, http.MethodPost, "/api/absences/"+created.ID+"/validate", "emp-1",
		map[string]any{"version": created.Version})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRefuse_RecordsReason(t *testing.T) {
	router := newTestRouter(t)
	catalogID := seedDirectory(t, router)
	created := createAbsence(t, router, catalogID)

	rec := do(t, router, http.MethodPost, "/api/absences/"+created.ID+"/refuse", "mgr-1",
		map[string]any{"reason": "effectif insuffisant", "version": created.Version})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	dto := decode[api.AbsenceDTO](t, rec)
	assert.Equal(t, "refusee_n1", dto.State)
	require.NotNil(t, dto.N1)
	assert.Equal(t, "effectif insuffisant", dto.N1.RefusalReason)
}

func TestDecision_StaleVersion_Conflict(t *testing.T) {
	router := newTestRouter(t)
	catalogID := seedDirectory(t, router)
	created := createAbsence(t, router, catalogID)

	rec := do(t, router, http.MethodPost, "/api/absences/"+created.ID+"/validate", "mgr-1",
		map[string]any{"version": created.Version})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/absences/"+created.ID+"/refuse", "mgr-1",
		map[string]any{"reason": "trop tard", "version": created.Version})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCancel_FromRefused_Conflict(t *testing.T) {
	router := newTestRouter(t)
	catalogID := seedDirectory(t, router)
	created := createAbsence(t, router, catalogID)

	rec := do(t, router, http.MethodPost, "/api/absences/"+created.ID+"/refuse", "mgr-1",
		map[string]any{"version": created.Version})
	require.Equal(t, http.StatusOK, rec.Code)
	refused := decode[api.AbsenceDTO](t, rec)

	rec = do(t, router, http.MethodPost, "/api/absences/"+created.ID+"/cancel", "emp-1",
		map[string]any{"version": refused.Version})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUpdateDates_RecomputesDurations(t *testing.T) {
	router := newTestRouter(t)
	catalogID := seedDirectory(t, router)
	created := createAbsence(t, router, catalogID)

	rec := do(t, router, http.MethodPut, "/api/absences/"+created.ID+"/dates", "emp-1",
		map[string]any{"start_date": "2025-03-03", "end_date": "2025-03-14", "version": created.Version})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	dto := decode[api.AbsenceDTO](t, rec)
	assert.Equal(t, 12, dto.RawDays)
	assert.Equal(t, "10", dto.WorkingDays)
}

func TestGetAbsence_Unknown_NotFound(t *testing.T) {
	router := newTestRouter(t)
	rec := do(t, router, http.MethodGet, "/api/absences/ghost", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHistory_ExposedOverHTTP(t *testing.T) {
	router := newTestRouter(t)
	catalogID := seedDirectory(t, router)
	created := createAbsence(t, router, catalogID)

	rec := do(t, router, http.MethodPost, "/api/absences/"+created.ID+"/validate", "mgr-1",
		map[string]any{"version": created.Version})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/absences/"+created.ID+"/history", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rows := decode[[]api.HistoryDTO](t, rec)
	require.Len(t, rows, 2)
	assert.Equal(t, "creee", rows[0].Action)
	assert.Equal(t, "validee", rows[1].Action)
	assert.Equal(t, "n1", rows[1].Level)
}

func TestListAbsences_FilterByStatus(t *testing.T) {
	router := newTestRouter(t)
	catalogID := seedDirectory(t, router)
	created := createAbsence(t, router, catalogID)

	rec := do(t, router, http.MethodPost, "/api/absences/"+created.ID+"/refuse", "mgr-1",
		map[string]any{"version": created.Version})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/absences/?status=refusee_n1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[[]api.AbsenceDTO](t, rec), 1)

	rec = do(t, router, http.MethodGet, "/api/absences/?status=en_attente_validation_n1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]api.AbsenceDTO](t, rec), 0)
}

// =============================================================================
// PLANNING FEED
// =============================================================================

func TestPlanningFeed_OnlyApprovedAbsences(t *testing.T) {
	// GIVEN: One fully approved request and one still pending
	// WHEN: Reading the March feed
	// THEN: Only the approved one appears; it can then be applied
	//       idempotently

	router := newTestRouter(t)
	catalogID := seedDirectory(t, router)

	approved := createAbsence(t, router, catalogID)
	rec := do(t, router, http.MethodPost, "/api/absences/"+approved.ID+"/validate", "mgr-1",
		map[string]any{"version": approved.Version})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, router, http.MethodPost, "/api/absences/"+approved.ID+"/validate", "rh-1",
		map[string]any{"version": approved.Version + 1})
	require.Equal(t, http.StatusOK, rec.Code)

	pending := do(t, router, http.MethodPost, "/api/absences/", "emp-1", map[string]any{
		"employee_id": "emp-1", "catalog_id": catalogID,
		"start_date": "2025-03-17", "end_date": "2025-03-18",
	})
	require.Equal(t, http.StatusCreated, pending.Code)

	rec = do(t, router, http.MethodGet, "/api/planning/feed?from=2025-03-01&to=2025-03-31", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	feed := decode[[]api.AbsenceDTO](t, rec)
	require.Len(t, feed, 1)
	assert.Equal(t, approved.ID, feed[0].ID)

	rec = do(t, router, http.MethodPost, "/api/absences/"+approved.ID+"/apply", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	applied := decode[api.AbsenceDTO](t, rec)
	assert.Equal(t, "appliquee", applied.State)

	rec = do(t, router, http.MethodPost, "/api/absences/"+approved.ID+"/apply", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	again := decode[api.AbsenceDTO](t, rec)
	assert.Equal(t, applied.Version, again.Version)
}

func TestPlanningFeed_MissingRange_BadRequest(t *testing.T) {
	router := newTestRouter(t)
	rec := do(t, router, http.MethodGet, "/api/planning/feed", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// CATALOG ADMINISTRATION
// =============================================================================

func TestCatalog_CreateUpdateDeactivate(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/catalogue/", "", map[string]any{
		"code": "RTT", "label": "RTT", "besoin_validation_n1": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	entry := decode[api.CatalogEntryDTO](t, rec)
	assert.True(t, entry.IsActive)

	rec = do(t, router, http.MethodPut, "/api/catalogue/"+entry.ID, "", map[string]any{
		"code": "RTT", "label": "RTT", "besoin_validation_n1": true, "is_active": false,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[api.CatalogEntryDTO](t, rec).IsActive)

	rec = do(t, router, http.MethodGet, "/api/catalogue/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]api.CatalogEntryDTO](t, rec), 0, "inactive entries hidden by default")

	rec = do(t, router, http.MethodGet, "/api/catalogue/?all=true", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]api.CatalogEntryDTO](t, rec), 1)
}

func TestCatalog_MissingCode_BadRequest(t *testing.T) {
	router := newTestRouter(t)
	rec := do(t, router, http.MethodPost, "/api/catalogue/", "", map[string]any{"label": "Sans code"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func TestHolidays_AffectDurationDerivation(t *testing.T) {
	// GIVEN: Easter Monday 2025-04-21 registered as a holiday
	// WHEN: Creating an absence over that week
	// THEN: The holiday is excluded from working days

	router := newTestRouter(t)
	catalogID := seedDirectory(t, router)

	rec := do(t, router, http.MethodPost, "/api/holidays/", "", map[string]any{
		"date": "2025-04-21", "label": "Lundi de Paques",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/absences/", "emp-1", map[string]any{
		"employee_id": "emp-1", "catalog_id": catalogID,
		"start_date": "2025-04-21", "end_date": "2025-04-25",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	dto := decode[api.AbsenceDTO](t, rec)
	assert.Equal(t, 5, dto.RawDays)
	assert.Equal(t, "4", dto.WorkingDays)
}

func TestEmployees_CreateAndGet(t *testing.T) {
	router := newTestRouter(t)
	seedDirectory(t, router)

	rec := do(t, router, http.MethodGet, "/api/employees/rh-1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	emp := decode[api.EmployeeDTO](t, rec)
	assert.Equal(t, "Claire Petit", emp.Name)
	assert.True(t, emp.HRRights)

	rec = do(t, router, http.MethodGet, "/api/employees/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]api.EmployeeDTO](t, rec), 3)
}
