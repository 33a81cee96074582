/*
store.go - Persistence interfaces for the leave engine

PURPOSE:
  Defines the boundary between the domain logic and storage. Different
  implementations can use SQLite or memory; the domain only sees these
  interfaces.

KEY INTERFACES:
  RequestStore:  Requests + their status history (never deleted)
  PolicyStore:   Policy catalog reference data
  Directory:     Read-only view of the external employee directory
  Store:         Everything above, plus the writes used by admin/demo tooling

COMPARE-AND-SWAP:
  UpdateRequestStatus only succeeds if the stored Version still equals the
  version the caller read. Otherwise it returns ErrConcurrentModification and
  writes nothing. This makes status transitions serializable per request
  without a ledger-wide lock.

CONSISTENT READS:
  Reads return copies. A reader observes a request either before or after a
  status change, never half-applied.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - store/memory/memory.go: In-memory for tests and demos
*/
package timeoff

import (
	"context"

	"github.com/warp/leave-engine/generic"
)

// RequestStore persists requests. There is no delete.
type RequestStore interface {
	// InsertRequest stores a new request and its creation history entry atomically.
	InsertRequest(ctx context.Context, req TimeOffRequest, change StatusChange) error

	// GetRequest returns *generic.NotFoundError when the ID is unknown.
	GetRequest(ctx context.Context, id generic.RequestID) (*TimeOffRequest, error)

	// UpdateRequestStatus replaces the request if its stored version equals
	// expectedVersion, and appends change to the history, atomically.
	// Returns generic.ErrConcurrentModification on version mismatch.
	UpdateRequestStatus(ctx context.Context, req TimeOffRequest, expectedVersion int, change StatusChange) error

	// ListRequests returns matching requests ordered by creation time.
	ListRequests(ctx context.Context, filter RequestFilter) ([]TimeOffRequest, error)

	// RequestHistory returns the status changes of a request, oldest first.
	RequestHistory(ctx context.Context, id generic.RequestID) ([]StatusChange, error)
}

// PolicyStore persists leave policies.
type PolicyStore interface {
	SavePolicy(ctx context.Context, policy TimeOffPolicy) error
	// GetPolicy returns *generic.NotFoundError when the ID is unknown.
	GetPolicy(ctx context.Context, id generic.PolicyID) (*TimeOffPolicy, error)
	ListPolicies(ctx context.Context) ([]TimeOffPolicy, error)
}

// Directory is the read-only view of the external employee directory.
type Directory interface {
	// GetEmployee returns *generic.NotFoundError when the ID is unknown.
	GetEmployee(ctx context.Context, id generic.EmployeeID) (*Employee, error)
	ListEmployees(ctx context.Context, filter EmployeeFilter) ([]Employee, error)
}

// EmployeeStore adds the directory writes used by seeding and admin tooling.
type EmployeeStore interface {
	Directory
	SaveEmployee(ctx context.Context, emp Employee) error
}

// Store is the full persistence surface used by the HTTP layer.
type Store interface {
	RequestStore
	PolicyStore
	EmployeeStore

	// Reset wipes all data. Demo scenarios only.
	Reset(ctx context.Context) error
}
