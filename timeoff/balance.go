/*
balance.go - Balance calculation from approved requests

PURPOSE:
  Computes how many allowance days an employee used in a calendar year and
  how many remain. Balances are always derived from the ledger on demand;
  there is no stored balance that could drift.

ALGORITHM:
  1. Look up the policy explicitly assigned to the employee.
     - none:      NOT_CONFIGURED snapshot, no numbers
     - UNLIMITED: UNLIMITED snapshot, no numbers
  2. Take the employee's APPROVED requests of type PTO.
     SICK, PERSONAL, etc. are tracked but never balanced.
  3. Clamp each request to the year; sum DaysInclusive of what is left.
  4. remaining = max(allowance - used, 0). Never negative: over-allocation
     is an approval concern, not a balance.

YEAR BOUNDARIES:
  A request from Dec 28 to Jan 3 contributes 4 days to the first year and
  3 days to the second. Each year only sees its own share.

SEE ALSO:
  - generic/period.go: ClampToYear, DaysInclusive
  - catalog.go: PolicyForEmployee
*/
package timeoff

import (
	"context"
	"fmt"

	"github.com/warp/leave-engine/generic"
)

// BalanceCalculator computes BalanceSnapshots from the catalog and ledger.
type BalanceCalculator struct {
	catalog  *Catalog
	requests RequestStore
}

func NewBalanceCalculator(catalog *Catalog, requests RequestStore) *BalanceCalculator {
	return &BalanceCalculator{catalog: catalog, requests: requests}
}

// ComputeBalance returns the employee's balance for the calendar year.
// Lookup failures are returned wrapped; a partial or zeroed snapshot is never
// produced in their place.
func (b *BalanceCalculator) ComputeBalance(ctx context.Context, employeeID generic.EmployeeID, year int) (BalanceSnapshot, error) {
	if year < 1 || year > 9999 {
		return BalanceSnapshot{}, generic.NewValidationError("year", fmt.Sprintf("out of range: %d", year))
	}

	policy, err := b.catalog.PolicyForEmployee(ctx, employeeID)
	if err != nil {
		return BalanceSnapshot{}, fmt.Errorf("balance for %s: %w", employeeID, err)
	}

	var requests []TimeOffRequest
	if policy != nil && policy.Kind != PolicyUnlimited {
		requests, err = b.requests.ListRequests(ctx, RequestFilter{EmployeeID: employeeID})
		if err != nil {
			return BalanceSnapshot{}, fmt.Errorf("balance for %s: failed to load requests: %w", employeeID, err)
		}
	}

	return BalanceFor(employeeID, policy, requests, year), nil
}

// BalanceFor is the pure part of ComputeBalance. requests may contain other
// employees' or other types' requests; they are ignored.
func BalanceFor(employeeID generic.EmployeeID, policy *TimeOffPolicy, requests []TimeOffRequest, year int) BalanceSnapshot {
	snap := BalanceSnapshot{EmployeeID: employeeID, Year: year}

	switch {
	case policy == nil:
		snap.Kind = BalanceNotConfigured
		return snap
	case policy.Kind == PolicyUnlimited || policy.AnnualAllowanceDays == nil:
		snap.PolicyID = policy.ID
		snap.Kind = BalanceUnlimited
		return snap
	}

	used, pending := 0, 0
	for _, r := range requests {
		if r.EmployeeID != employeeID || r.Type != TypePTO {
			continue
		}
		days := daysInYear(r, year)
		switch r.Status {
		case StatusApproved:
			used += days
		case StatusRequested:
			pending += days
		}
	}

	allowance := *policy.AnnualAllowanceDays
	remaining := allowance - used
	if remaining < 0 {
		remaining = 0
	}

	snap.PolicyID = policy.ID
	snap.Kind = BalanceTracked
	snap.Allowance = intPtr(allowance)
	snap.UsedDays = intPtr(used)
	snap.RemainingDays = intPtr(remaining)
	snap.PendingDays = intPtr(pending)
	return snap
}

// daysInYear is the request's share of the year, zero when it lies outside.
func daysInYear(r TimeOffRequest, year int) int {
	clamped, ok := generic.ClampToYear(r.StartDate, r.EndDate, year)
	if !ok {
		return 0
	}
	return clamped.Days()
}

// Utilization is used/allowance rounded to two places, for reports. It is
// false for snapshots without numbers and for a zero allowance.
func Utilization(snap BalanceSnapshot) (generic.Amount, bool) {
	if snap.Kind != BalanceTracked || snap.Allowance == nil || *snap.Allowance == 0 {
		return generic.Amount{}, false
	}
	used := generic.NewAmountFromInt(*snap.UsedDays, generic.UnitDays)
	allowance := generic.NewAmountFromInt(*snap.Allowance, generic.UnitDays)
	return used.Ratio(allowance, 2), true
}
