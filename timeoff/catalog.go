package timeoff

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// POLICY CATALOG
// =============================================================================

// Catalog is the read-mostly set of leave policies an organization defined,
// plus the lookup from an employee to the policy explicitly assigned to them.
// Policies are cached after the first load; SavePolicy writes through.
type Catalog struct {
	store     PolicyStore
	directory Directory

	mu       sync.RWMutex
	policies map[generic.PolicyID]TimeOffPolicy
	loaded   bool
}

func NewCatalog(store PolicyStore, directory Directory) *Catalog {
	return &Catalog{
		store:     store,
		directory: directory,
		policies:  make(map[generic.PolicyID]TimeOffPolicy),
	}
}

// Reload replaces the cache with the store contents.
func (c *Catalog) Reload(ctx context.Context) error {
	records, err := c.store.ListPolicies(ctx)
	if err != nil {
		return fmt.Errorf("failed to load policies: %w", err)
	}

	policies := make(map[generic.PolicyID]TimeOffPolicy, len(records))
	for _, p := range records {
		policies[p.ID] = p.Clone()
	}

	c.mu.Lock()
	c.policies = policies
	c.loaded = true
	c.mu.Unlock()
	return nil
}

// ListPolicies returns all policies ordered by name.
func (c *Catalog) ListPolicies(ctx context.Context) ([]TimeOffPolicy, error) {
	if err := c.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	out := make([]TimeOffPolicy, 0, len(c.policies))
	for _, p := range c.policies {
		out = append(out, p.Clone())
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// GetPolicy returns *generic.NotFoundError for unknown IDs.
func (c *Catalog) GetPolicy(ctx context.Context, id generic.PolicyID) (*TimeOffPolicy, error) {
	c.mu.RLock()
	p, ok := c.policies[id]
	c.mu.RUnlock()
	if ok {
		p = p.Clone()
		return &p, nil
	}

	stored, err := c.store.GetPolicy(ctx, id)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.policies[id] = stored.Clone()
	c.mu.Unlock()
	return stored, nil
}

// SavePolicy validates and stores a policy (create or replace).
func (c *Catalog) SavePolicy(ctx context.Context, policy TimeOffPolicy) (*TimeOffPolicy, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if err := c.store.SavePolicy(ctx, policy); err != nil {
		return nil, fmt.Errorf("failed to save policy %s: %w", policy.ID, err)
	}

	// Re-read so timestamps come from the store.
	stored, err := c.store.GetPolicy(ctx, policy.ID)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.policies[policy.ID] = stored.Clone()
	c.mu.Unlock()
	return stored, nil
}

// PolicyForEmployee returns the policy explicitly assigned to the employee.
//
// A nil policy with a nil error means no policy is configured, which callers
// must render as "not set", not as zero remaining. Unknown employees and
// dangling policy references are *generic.NotFoundError.
func (c *Catalog) PolicyForEmployee(ctx context.Context, employeeID generic.EmployeeID) (*TimeOffPolicy, error) {
	emp, err := c.directory.GetEmployee(ctx, employeeID)
	if err != nil {
		if errors.Is(err, generic.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to look up employee %s: %w", employeeID, err)
	}
	if emp.PolicyID == "" {
		return nil, nil
	}

	policy, err := c.GetPolicy(ctx, emp.PolicyID)
	if err != nil {
		return nil, fmt.Errorf("employee %s policy: %w", employeeID, err)
	}
	return policy, nil
}

func (c *Catalog) ensureLoaded(ctx context.Context) error {
	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()
	if loaded {
		return nil
	}
	return c.Reload(ctx)
}
