// Package store provides the in-memory implementation of the
// persistence interfaces, used by tests and for dev runs without a
// database file.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/opale/absence-engine/absence"
	"github.com/opale/absence-engine/calendar"
	"github.com/opale/absence-engine/directory"
	"github.com/opale/absence-engine/workflow"
)

// =============================================================================
// MEMORY STORE - implements absence.Store, directory.Store and
// calendar.HolidayCalendar
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	requests    map[string]*absence.Request
	history     map[string][]absence.HistoryEntry
	historyID   map[string]bool
	catalog     map[string]*absence.CatalogEntry
	employees   map[string]*directory.Employee
	links       map[string]map[string]bool
	holidays    *calendar.MemoryHolidayCalendar
	holidayRows []calendar.Holiday
}

func NewMemory() *Memory {
	return &Memory{
		requests:  make(map[string]*absence.Request),
		history:   make(map[string][]absence.HistoryEntry),
		historyID: make(map[string]bool),
		catalog:   make(map[string]*absence.CatalogEntry),
		employees: make(map[string]*directory.Employee),
		links:     make(map[string]map[string]bool),
		holidays:  calendar.NewMemoryHolidayCalendar(),
	}
}

// =============================================================================
// REQUESTS
// =============================================================================

func (m *Memory) InsertRequest(_ context.Context, r *absence.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.requests[r.ID] = &cp
	return nil
}

func (m *Memory) GetRequest(_ context.Context, id string) (*absence.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, absence.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

// UpdateRequest applies the optimistic version check: the stored
// version must still equal expectedVersion, and the write bumps it.
func (m *Memory) UpdateRequest(_ context.Context, r *absence.Request, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.requests[r.ID]
	if !ok {
		return absence.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return absence.ErrVersionConflict
	}
	r.Version = expectedVersion + 1
	cp := *r
	m.requests[r.ID] = &cp
	return nil
}

func (m *Memory) ListRequests(_ context.Context, f absence.Filter) ([]*absence.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*absence.Request
	for _, r := range m.requests {
		if !matches(r, f) {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartDate.Before(out[j].StartDate)
	})
	return out, nil
}

func matches(r *absence.Request, f absence.Filter) bool {
	if f.EmployeeID != "" && r.EmployeeID != f.EmployeeID {
		return false
	}
	if f.SiteID != "" && r.SiteID != f.SiteID {
		return false
	}
	if f.Status != "" && r.CurrentState() != workflow.Normalize(f.Status) {
		return false
	}
	if f.From != nil && f.To != nil && !r.Overlaps(*f.From, *f.To) {
		return false
	}
	if f.From != nil && f.To == nil && r.EndDate.Before(*f.From) {
		return false
	}
	if f.To != nil && f.From == nil && r.StartDate.After(*f.To) {
		return false
	}
	return true
}

// =============================================================================
// CATALOG
// =============================================================================

func (m *Memory) GetCatalogEntry(_ context.Context, id string) (*absence.CatalogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.catalog[id]
	if !ok {
		return nil, absence.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *Memory) ListCatalog(_ context.Context, includeInactive bool) ([]*absence.CatalogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*absence.CatalogEntry
	for _, e := range m.catalog {
		if !includeInactive && !e.Active {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *Memory) SaveCatalogEntry(_ context.Context, e *absence.CatalogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.catalog[e.ID] = &cp
	return nil
}

// =============================================================================
// HISTORY - append-only, idempotent on entry ID
// =============================================================================

func (m *Memory) AppendHistory(_ context.Context, h absence.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.historyID[h.ID] {
		return nil
	}
	m.historyID[h.ID] = true
	m.history[h.RequestID] = append(m.history[h.RequestID], h)
	return nil
}

func (m *Memory) ListHistory(_ context.Context, requestID string) ([]absence.HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows := m.history[requestID]
	out := make([]absence.HistoryEntry, len(rows))
	copy(out, rows)
	return out, nil
}

// =============================================================================
// DIRECTORY
// =============================================================================

func (m *Memory) GetEmployee(_ context.Context, id string) (*directory.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.employees[id]
	if !ok {
		return nil, absence.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *Memory) ListEmployees(_ context.Context) ([]*directory.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*directory.Employee
	for _, e := range m.employees {
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SaveEmployee(_ context.Context, e *directory.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.employees[e.ID] = &cp
	return nil
}

func (m *Memory) SaveManagementLink(_ context.Context, l directory.ManagementLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.links[l.ManagerID] == nil {
		m.links[l.ManagerID] = make(map[string]bool)
	}
	m.links[l.ManagerID][l.EmployeeID] = true
	return nil
}

func (m *Memory) ManagesEmployee(_ context.Context, managerID, employeeID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.links[managerID][employeeID], nil
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func (m *Memory) SaveHoliday(_ context.Context, h calendar.Holiday) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holidays.Add(h)
	m.holidayRows = append(m.holidayRows, h)
	return nil
}

func (m *Memory) ListHolidays(_ context.Context) ([]calendar.Holiday, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]calendar.Holiday, len(m.holidayRows))
	copy(out, m.holidayRows)
	return out, nil
}

func (m *Memory) IsHoliday(date time.Time) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.holidays.IsHoliday(date)
}
