// Package memory provides an in-memory timeoff.Store for tests and demos.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/timeoff"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Store keeps everything in maps behind one RWMutex. Reads hand out copies,
// so callers never see a request while it is being replaced.
type Store struct {
	mu sync.RWMutex

	requests map[generic.RequestID]timeoff.TimeOffRequest
	order    []generic.RequestID // insertion order = creation order
	history  map[generic.RequestID][]timeoff.StatusChange

	policies  map[generic.PolicyID]timeoff.TimeOffPolicy
	employees map[generic.EmployeeID]timeoff.Employee

	now func() time.Time
}

var _ timeoff.Store = (*Store)(nil)

func New() *Store {
	s := &Store{now: time.Now}
	s.resetLocked()
	return s
}

func (s *Store) resetLocked() {
	s.requests = make(map[generic.RequestID]timeoff.TimeOffRequest)
	s.order = nil
	s.history = make(map[generic.RequestID][]timeoff.StatusChange)
	s.policies = make(map[generic.PolicyID]timeoff.TimeOffPolicy)
	s.employees = make(map[generic.EmployeeID]timeoff.Employee)
}

// Reset wipes all data.
func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	return nil
}

// =============================================================================
// REQUESTS
// =============================================================================

func (s *Store) InsertRequest(_ context.Context, req timeoff.TimeOffRequest, change timeoff.StatusChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.requests[req.ID]; exists {
		return generic.NewValidationError("id", "duplicate request id "+string(req.ID))
	}
	s.requests[req.ID] = req
	s.order = append(s.order, req.ID)
	s.history[req.ID] = append(s.history[req.ID], change)
	return nil
}

func (s *Store) GetRequest(_ context.Context, id generic.RequestID) (*timeoff.TimeOffRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, &generic.NotFoundError{Kind: "request", ID: string(id)}
	}
	return &req, nil
}

// UpdateRequestStatus is a compare-and-swap on Version. The check and the
// write happen under the same lock.
func (s *Store) UpdateRequestStatus(_ context.Context, req timeoff.TimeOffRequest, expectedVersion int, change timeoff.StatusChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.requests[req.ID]
	if !ok {
		return &generic.NotFoundError{Kind: "request", ID: string(req.ID)}
	}
	if current.Version != expectedVersion {
		return generic.ErrConcurrentModification
	}
	s.requests[req.ID] = req
	s.history[req.ID] = append(s.history[req.ID], change)
	return nil
}

func (s *Store) ListRequests(_ context.Context, filter timeoff.RequestFilter) ([]timeoff.TimeOffRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var team map[generic.EmployeeID]bool
	if filter.EmployeeIDs != nil {
		team = make(map[generic.EmployeeID]bool, len(filter.EmployeeIDs))
		for _, id := range filter.EmployeeIDs {
			team[id] = true
		}
	}

	result := make([]timeoff.TimeOffRequest, 0)
	for _, id := range s.order {
		req := s.requests[id]
		if filter.EmployeeID != "" && req.EmployeeID != filter.EmployeeID {
			continue
		}
		if team != nil && !team[req.EmployeeID] {
			continue
		}
		if filter.Status != "" && req.Status != filter.Status {
			continue
		}
		result = append(result, req)
	}
	return result, nil
}

func (s *Store) RequestHistory(_ context.Context, id generic.RequestID) ([]timeoff.StatusChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]timeoff.StatusChange, len(s.history[id]))
	copy(result, s.history[id])
	return result, nil
}

// =============================================================================
// POLICIES
// =============================================================================

func (s *Store) SavePolicy(_ context.Context, policy timeoff.TimeOffPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	if existing, ok := s.policies[policy.ID]; ok {
		policy.CreatedAt = existing.CreatedAt
	} else {
		policy.CreatedAt = now
	}
	policy.UpdatedAt = now
	s.policies[policy.ID] = policy.Clone()
	return nil
}

func (s *Store) GetPolicy(_ context.Context, id generic.PolicyID) (*timeoff.TimeOffPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.policies[id]
	if !ok {
		return nil, &generic.NotFoundError{Kind: "policy", ID: string(id)}
	}
	p = p.Clone()
	return &p, nil
}

func (s *Store) ListPolicies(_ context.Context) ([]timeoff.TimeOffPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]timeoff.TimeOffPolicy, 0, len(s.policies))
	for _, p := range s.policies {
		result = append(result, p.Clone())
	}
	return result, nil
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (s *Store) SaveEmployee(_ context.Context, emp timeoff.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.employees[emp.ID] = emp
	return nil
}

func (s *Store) GetEmployee(_ context.Context, id generic.EmployeeID) (*timeoff.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	emp, ok := s.employees[id]
	if !ok {
		return nil, &generic.NotFoundError{Kind: "employee", ID: string(id)}
	}
	return &emp, nil
}

// ListEmployees returns matching employees ordered by name.
func (s *Store) ListEmployees(_ context.Context, filter timeoff.EmployeeFilter) ([]timeoff.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := strings.ToLower(filter.Query)
	result := make([]timeoff.Employee, 0)
	for _, emp := range s.employees {
		if filter.Department != "" && emp.Department != filter.Department {
			continue
		}
		if filter.PolicyID != "" && emp.PolicyID != filter.PolicyID {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(emp.Name), query) &&
			!strings.Contains(strings.ToLower(emp.Email), query) {
			continue
		}
		result = append(result, emp)
	}
	sortEmployees(result)
	return result, nil
}

func sortEmployees(emps []timeoff.Employee) {
	sort.Slice(emps, func(i, j int) bool {
		if emps[i].Name != emps[j].Name {
			return emps[i].Name < emps[j].Name
		}
		return emps[i].ID < emps[j].ID
	})
}
