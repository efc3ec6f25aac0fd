/*
Package directory holds the employee/site referential and the
permission oracle built on top of it.

PURPOSE:
  The absence guards only ever ask two questions: "does this actor
  manage that employee?" and "does this actor hold RH rights?". This
  package answers them from management links (direct or activity-line)
  and a per-employee HR flag. Authentication itself is out of scope:
  the actor identity arrives already established.

KEY CONCEPTS:
  - Employee:       referential record with site and HR flag
  - ManagementLink: actor manages employee, direct or activity scoped
  - StoreOracle:    production oracle reading the directory store
  - StaticOracle:   fixed in-memory answers for tests

SEE ALSO:
  - absence/store.go: the PermissionOracle contract this satisfies
*/
package directory

import (
	"context"
	"time"

	"github.com/opale/absence-engine/absence"
)

// =============================================================================
// REFERENTIAL TYPES
// =============================================================================

type Employee struct {
	ID       string
	Name     string
	Email    string
	SiteID   string
	HRRights bool

	HireDate  time.Time
	CreatedAt time.Time
}

type Site struct {
	ID    string
	Code  string
	Label string
}

// LinkKind distinguishes the two management relationships that grant
// N1 scope.
type LinkKind string

const (
	LinkDirect   LinkKind = "direct"
	LinkActivity LinkKind = "activity"
)

// ManagementLink states that Manager validates at N1 for Employee.
type ManagementLink struct {
	ManagerID  string
	EmployeeID string
	Kind       LinkKind
}

// =============================================================================
// DIRECTORY STORE
// =============================================================================

// Store is the persistence contract for the referential.
type Store interface {
	GetEmployee(ctx context.Context, id string) (*Employee, error)
	ListEmployees(ctx context.Context) ([]*Employee, error)
	SaveEmployee(ctx context.Context, e *Employee) error

	SaveManagementLink(ctx context.Context, l ManagementLink) error
	ManagesEmployee(ctx context.Context, managerID, employeeID string) (bool, error)
}

// =============================================================================
// ORACLES
// =============================================================================

// StoreOracle answers permission questions from the directory store.
type StoreOracle struct {
	Store Store
}

func NewStoreOracle(store Store) *StoreOracle {
	return &StoreOracle{Store: store}
}

func (o *StoreOracle) IsTeamManagerOf(ctx context.Context, actorID, employeeID string) (bool, error) {
	return o.Store.ManagesEmployee(ctx, actorID, employeeID)
}

func (o *StoreOracle) HasHRRights(ctx context.Context, actorID string) (bool, error) {
	emp, err := o.Store.GetEmployee(ctx, actorID)
	if err != nil {
		// Unknown actors hold no rights; the guards reject them.
		if absence.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return emp.HRRights, nil
}

// StaticOracle returns fixed answers. Test fixture.
type StaticOracle struct {
	Managers map[string][]string // manager -> managed employee ids
	HR       map[string]bool
}

func (o *StaticOracle) IsTeamManagerOf(_ context.Context, actorID, employeeID string) (bool, error) {
	for _, id := range o.Managers[actorID] {
		if id == employeeID {
			return true, nil
		}
	}
	return false, nil
}

func (o *StaticOracle) HasHRRights(_ context.Context, actorID string) (bool, error) {
	return o.HR[actorID], nil
}
