/*
store.go - Persistence interfaces consumed by the absence service

PURPOSE:
  Interface definitions live here, next to the consumer; concrete
  implementations live in store/ (memory) and store/sqlite/. The
  service only ever talks to these interfaces, so tests run on the
  memory store and production runs on SQLite with identical semantics.

CONTRACTS:
  - UpdateRequest is conditional on the version the caller read and
    returns ErrVersionConflict on mismatch. This is the only
    concurrency control in the system.
  - AppendHistory is INSERT-only and idempotent on the entry ID, so a
    failed best-effort write may be retried without duplicating rows.
  - Get* return ErrNotFound (possibly wrapped) for missing records,
    never (nil, nil).
*/
package absence

import (
	"context"
	"time"

	"github.com/opale/absence-engine/workflow"
)

// =============================================================================
// FILTERS
// =============================================================================

// Filter narrows ListRequests. Zero-value fields are ignored; From/To
// select requests whose range overlaps the window.
type Filter struct {
	EmployeeID string
	SiteID     string
	Status     workflow.State
	From       *time.Time
	To         *time.Time
}

// =============================================================================
// STORE INTERFACES
// =============================================================================

type RequestStore interface {
	InsertRequest(ctx context.Context, r *Request) error

	// GetRequest returns ErrNotFound when the id is unknown.
	GetRequest(ctx context.Context, id string) (*Request, error)

	// UpdateRequest persists r only if the stored version still equals
	// expectedVersion, then increments it. Returns ErrVersionConflict
	// otherwise.
	UpdateRequest(ctx context.Context, r *Request, expectedVersion int64) error

	ListRequests(ctx context.Context, f Filter) ([]*Request, error)
}

type CatalogStore interface {
	GetCatalogEntry(ctx context.Context, id string) (*CatalogEntry, error)
	ListCatalog(ctx context.Context, includeInactive bool) ([]*CatalogEntry, error)
	SaveCatalogEntry(ctx context.Context, e *CatalogEntry) error
}

type HistoryStore interface {
	// AppendHistory is append-only. Re-appending an entry whose ID
	// already exists is a no-op, not an error.
	AppendHistory(ctx context.Context, h HistoryEntry) error

	ListHistory(ctx context.Context, requestID string) ([]HistoryEntry, error)
}

// Store aggregates everything the service needs.
type Store interface {
	RequestStore
	CatalogStore
	HistoryStore
}

// =============================================================================
// PERMISSION ORACLE
// =============================================================================

// PermissionOracle answers the two questions the guards ask. N1
// validators are scoped to their managed team; RH validators are
// global. Implementations live in the directory package.
type PermissionOracle interface {
	// IsTeamManagerOf reports whether actor manages employee directly
	// or through an activity line.
	IsTeamManagerOf(ctx context.Context, actorID, employeeID string) (bool, error)

	// HasHRRights reports whether actor validates at the RH level.
	HasHRRights(ctx context.Context, actorID string) (bool, error)
}
