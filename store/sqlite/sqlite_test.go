package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/opale/absence-engine/absence"
	"github.com/opale/absence-engine/calendar"
	"github.com/opale/absence-engine/directory"
	"github.com/opale/absence-engine/store/sqlite"
	"github.com/opale/absence-engine/workflow"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func sampleRequest(id string) *absence.Request {
	now := time.Date(2025, time.February, 10, 9, 0, 0, 0, time.UTC)
	return &absence.Request{
		ID:           id,
		EmployeeID:   "emp-1",
		SiteID:       "site-lyon",
		CatalogID:    "cat-cp",
		StartDate:    time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC),
		RawDays:      3,
		WorkingDays:  decimal.NewFromInt(3),
		State:        workflow.StatePendingN1,
		Version:      1,
		ImpactPlanif: true,
		Motive:       "conges",
		CreatedBy:    "emp-1",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// =============================================================================
// REQUESTS
// =============================================================================

func TestInsertAndGetRequest_RoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	r := sampleRequest("abs-1")
	at := time.Date(2025, time.March, 6, 14, 30, 0, 0, time.UTC)
	r.N1 = absence.ValidationSlot{ValidatorID: "mgr-1", ValidatedAt: &at}
	require.NoError(t, st.InsertRequest(ctx, r))

	got, err := st.GetRequest(ctx, "abs-1")
	require.NoError(t, err)

	assert.Equal(t, "emp-1", got.EmployeeID)
	assert.Equal(t, "cat-cp", got.CatalogID)
	assert.Equal(t, workflow.StatePendingN1, got.State)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, 3, got.RawDays)
	assert.True(t, got.WorkingDays.Equal(decimal.NewFromInt(3)))
	assert.Equal(t, "mgr-1", got.N1.ValidatorID)
	require.NotNil(t, got.N1.ValidatedAt)
	assert.True(t, got.N1.ValidatedAt.Equal(at))
	assert.Nil(t, got.RH.ValidatedAt)
	assert.True(t, got.ImpactPlanif)
}

func TestGetRequest_Unknown_NotFound(t *testing.T) {
	st := newTestStore(t)
	_, err := st.GetRequest(context.Background(), "missing")
	assert.ErrorIs(t, err, absence.ErrNotFound)
}

func TestUpdateRequest_VersionGuard(t *testing.T) {
	// GIVEN: A stored request at version 1
	// WHEN: Updating with the right then a stale expected version
	// THEN: First write bumps to 2, second fails with a conflict

	st := newTestStore(t)
	ctx := context.Background()
	r := sampleRequest("abs-1")
	require.NoError(t, st.InsertRequest(ctx, r))

	r.State = workflow.StatePendingRH
	require.NoError(t, st.UpdateRequest(ctx, r, 1))
	assert.Equal(t, int64(2), r.Version)

	got, err := st.GetRequest(ctx, "abs-1")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatePendingRH, got.State)
	assert.Equal(t, int64(2), got.Version)

	stale := sampleRequest("abs-1")
	stale.State = workflow.StateRefusedN1
	err = st.UpdateRequest(ctx, stale, 1)
	assert.ErrorIs(t, err, absence.ErrVersionConflict)
}

func TestUpdateRequest_UnknownID_NotFound(t *testing.T) {
	st := newTestStore(t)
	err := st.UpdateRequest(context.Background(), sampleRequest("ghost"), 1)
	assert.ErrorIs(t, err, absence.ErrNotFound)
}

func TestListRequests_Filters(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	a := sampleRequest("abs-a")
	b := sampleRequest("abs-b")
	b.EmployeeID = "emp-2"
	b.StartDate = time.Date(2025, time.April, 7, 0, 0, 0, 0, time.UTC)
	b.EndDate = time.Date(2025, time.April, 11, 0, 0, 0, 0, time.UTC)
	b.State = workflow.StateValidatedRH
	require.NoError(t, st.InsertRequest(ctx, a))
	require.NoError(t, st.InsertRequest(ctx, b))

	byEmployee, err := st.ListRequests(ctx, absence.Filter{EmployeeID: "emp-2"})
	require.NoError(t, err)
	require.Len(t, byEmployee, 1)
	assert.Equal(t, "abs-b", byEmployee[0].ID)

	byStatus, err := st.ListRequests(ctx, absence.Filter{Status: workflow.StateValidatedRH})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, "abs-b", byStatus[0].ID)

	from := time.Date(2025, time.March, 4, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC)
	inWindow, err := st.ListRequests(ctx, absence.Filter{From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, inWindow, 1)
	assert.Equal(t, "abs-a", inWindow[0].ID, "March window overlaps abs-a only")
}

func TestListRequests_LegacyStatusFilter_Normalized(t *testing.T) {
	// GIVEN: A row persisted with the old single-level "en_attente" label
	// WHEN: Filtering on the modern en_attente_validation_n1 status
	// THEN: The legacy row matches through normalization

	st := newTestStore(t)
	ctx := context.Background()

	legacy := sampleRequest("abs-old")
	legacy.CatalogID = ""
	legacy.LegacyType = "CP"
	legacy.State = workflow.State("en_attente")
	require.NoError(t, st.InsertRequest(ctx, legacy))

	rows, err := st.ListRequests(ctx, absence.Filter{Status: workflow.StatePendingN1})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, workflow.StatePendingN1, rows[0].CurrentState())
}

// =============================================================================
// CATALOG
// =============================================================================

func TestCatalog_SaveGetList(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	cp := &absence.CatalogEntry{
		ID: "cat-cp", Code: "CP", Label: "Conges payes",
		NeedsN1: true, NeedsRH: true, Active: true,
	}
	old := &absence.CatalogEntry{
		ID: "cat-old", Code: "OLD", Label: "Retire",
		MaxDays: decimal.NewFromInt(5), Active: false,
	}
	require.NoError(t, st.SaveCatalogEntry(ctx, cp))
	require.NoError(t, st.SaveCatalogEntry(ctx, old))

	got, err := st.GetCatalogEntry(ctx, "cat-cp")
	require.NoError(t, err)
	assert.True(t, got.NeedsN1)
	assert.True(t, got.NeedsRH)

	active, err := st.ListCatalog(ctx, false)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "CP", active[0].Code)

	all, err := st.ListCatalog(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	// upsert on the same id
	cp.Label = "Conges payes annuels"
	cp.Active = false
	require.NoError(t, st.SaveCatalogEntry(ctx, cp))
	got, err = st.GetCatalogEntry(ctx, "cat-cp")
	require.NoError(t, err)
	assert.Equal(t, "Conges payes annuels", got.Label)
	assert.False(t, got.Active)
}

func TestGetCatalogEntry_Unknown_NotFound(t *testing.T) {
	st := newTestStore(t)
	_, err := st.GetCatalogEntry(context.Background(), "missing")
	assert.ErrorIs(t, err, absence.ErrNotFound)
}

// =============================================================================
// HISTORY
// =============================================================================

func TestHistory_AppendOnlyAndIdempotent(t *testing.T) {
	// GIVEN: Two history rows, the first appended twice
	// WHEN: Reading back the trail
	// THEN: Two rows in chronological order, no duplicate

	st := newTestStore(t)
	ctx := context.Background()

	first := absence.HistoryEntry{
		ID: "abs-1-v0", RequestID: "abs-1",
		Action:  absence.HistoryCreated,
		ActorID: "emp-1",
		At:      time.Date(2025, time.February, 10, 9, 0, 0, 0, time.UTC),
		ToState: workflow.StatePendingN1,
	}
	second := absence.HistoryEntry{
		ID: "abs-1-v1", RequestID: "abs-1",
		Level:     workflow.LevelN1,
		Action:    absence.HistoryValidated,
		ActorID:   "mgr-1",
		At:        time.Date(2025, time.February, 11, 10, 0, 0, 0, time.UTC),
		FromState: workflow.StatePendingN1,
		ToState:   workflow.StatePendingRH,
	}

	require.NoError(t, st.AppendHistory(ctx, first))
	require.NoError(t, st.AppendHistory(ctx, second))
	require.NoError(t, st.AppendHistory(ctx, first), "retried append must be a no-op")

	rows, err := st.ListHistory(ctx, "abs-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, absence.HistoryCreated, rows[0].Action)
	assert.Equal(t, absence.HistoryValidated, rows[1].Action)
	assert.Equal(t, workflow.LevelN1, rows[1].Level)
	assert.Equal(t, workflow.StatePendingRH, rows[1].ToState)
}

// =============================================================================
// DIRECTORY
// =============================================================================

func TestEmployeesAndManagementLinks(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	emp := &directory.Employee{ID: "emp-1", Name: "Alice Durand", SiteID: "site-lyon"}
	mgr := &directory.Employee{ID: "mgr-1", Name: "Bob Martin", HRRights: false}
	require.NoError(t, st.SaveEmployee(ctx, emp))
	require.NoError(t, st.SaveEmployee(ctx, mgr))

	got, err := st.GetEmployee(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, "Alice Durand", got.Name)

	_, err = st.GetEmployee(ctx, "ghost")
	assert.ErrorIs(t, err, absence.ErrNotFound)

	all, err := st.ListEmployees(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, st.SaveManagementLink(ctx, directory.ManagementLink{
		ManagerID: "mgr-1", EmployeeID: "emp-1", Kind: directory.LinkDirect,
	}))

	manages, err := st.ManagesEmployee(ctx, "mgr-1", "emp-1")
	require.NoError(t, err)
	assert.True(t, manages)

	manages, err = st.ManagesEmployee(ctx, "emp-1", "mgr-1")
	require.NoError(t, err)
	assert.False(t, manages, "links are directional")
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func TestHolidays_FixedAndRecurring(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveHoliday(ctx, calendar.Holiday{
		ID: "hol-1", Date: time.Date(2025, time.April, 21, 0, 0, 0, 0, time.UTC),
		Label: "Lundi de Paques",
	}))
	require.NoError(t, st.SaveHoliday(ctx, calendar.Holiday{
		ID: "hol-2", Date: time.Date(2025, time.July, 14, 0, 0, 0, 0, time.UTC),
		Label: "Fete nationale", Recurring: true,
	}))

	assert.True(t, st.IsHoliday(time.Date(2025, time.April, 21, 0, 0, 0, 0, time.UTC)))
	assert.False(t, st.IsHoliday(time.Date(2026, time.April, 21, 0, 0, 0, 0, time.UTC)),
		"fixed holidays do not repeat")
	assert.True(t, st.IsHoliday(time.Date(2030, time.July, 14, 0, 0, 0, 0, time.UTC)),
		"recurring holidays match on month and day")

	rows, err := st.ListHolidays(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestCalculator_SkipsStoredHolidays(t *testing.T) {
	// GIVEN: The week of 2025-04-21 with Easter Monday stored
	// WHEN: Counting working days Mon-Fri
	// THEN: 4, the holiday Monday excluded

	st := newTestStore(t)
	require.NoError(t, st.SaveHoliday(context.Background(), calendar.Holiday{
		ID: "hol-1", Date: time.Date(2025, time.April, 21, 0, 0, 0, 0, time.UTC),
		Label: "Lundi de Paques",
	}))

	calc := calendar.NewCalculator(st)
	days := calc.WorkingDaysBetween(
		time.Date(2025, time.April, 21, 0, 0, 0, 0, time.UTC),
		time.Date(2025, time.April, 25, 0, 0, 0, 0, time.UTC),
	)
	assert.Equal(t, "4", days.String())
}
