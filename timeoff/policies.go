/*
policies.go - Pre-built time-off policy configurations

PURPOSE:
  Ready-to-use policies for common setups. Used by demo scenarios and
  tests; real organizations define their own through the catalog.

AVAILABLE POLICIES:
  StandardPTOPolicy:  FIXED allowance, e.g. 15 or 20 days per calendar year
  AccrualPTOPolicy:   ACCRUAL allowance; only the annual figure is consumed
  UnlimitedPTOPolicy: No balance tracking (approval workflow only)

SEE ALSO:
  - factory/policy.go: JSON-based policy creation
  - catalog.go: Policy lookup per employee
*/
package timeoff

import "github.com/warp/leave-engine/generic"

// StandardPTOPolicy returns a FIXED policy granting annualDays per year.
func StandardPTOPolicy(id generic.PolicyID, name string, annualDays int) TimeOffPolicy {
	return TimeOffPolicy{
		ID:                  id,
		Name:                name,
		Kind:                PolicyFixed,
		AnnualAllowanceDays: intPtr(annualDays),
	}
}

// AccrualPTOPolicy returns an ACCRUAL policy whose yearly total is annualDays.
func AccrualPTOPolicy(id generic.PolicyID, name string, annualDays int) TimeOffPolicy {
	return TimeOffPolicy{
		ID:                  id,
		Name:                name,
		Kind:                PolicyAccrual,
		AnnualAllowanceDays: intPtr(annualDays),
	}
}

// UnlimitedPTOPolicy returns a policy without a tracked allowance.
func UnlimitedPTOPolicy(id generic.PolicyID, name string) TimeOffPolicy {
	return TimeOffPolicy{
		ID:   id,
		Name: name,
		Kind: PolicyUnlimited,
	}
}

func intPtr(v int) *int { return &v }
