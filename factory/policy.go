/*
Package factory provides JSON to Go policy conversion.

PURPOSE:
  Converts JSON policy definitions into timeoff.TimeOffPolicy values. HR can
  define policies in JSON (admin UI, config files, seed data) and the
  factory produces validated Go structs.

JSON SCHEMA:
  {
    "id": "pto-standard",
    "name": "Standard PTO",
    "kind": "FIXED",
    "annual_allowance_days": 15
  }

  ACCRUAL policies may describe the accrual instead of the yearly figure:

  {
    "id": "pto-accrual",
    "name": "Accrual PTO",
    "kind": "ACCRUAL",
    "accrual": {"annual_days": 18, "frequency": "monthly"}
  }

  "is_unlimited": true is accepted as shorthand for kind UNLIMITED.

KEY FEATURES:
  - Validates JSON structure and the allowance invariant
  - Case-insensitive kind names
  - Whole-catalog parsing (JSON array)

USAGE:
  factory := NewPolicyFactory()

  policy, err := factory.ParsePolicy(jsonString)

  jsonStr := timeoff.StandardPTOJSON("pto-standard", "Standard PTO", 15)
  policy, err := factory.ParsePolicy(jsonStr)

SEE ALSO:
  - timeoff/types.go: TimeOffPolicy and its Validate
  - timeoff/factory.go: Preset JSON definitions
*/
package factory

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/timeoff"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PolicyJSON is the JSON representation of a policy.
type PolicyJSON struct {
	ID                  string       `json:"id"`
	Name                string       `json:"name"`
	Kind                string       `json:"kind,omitempty"`
	AnnualAllowanceDays *int         `json:"annual_allowance_days,omitempty"`
	IsUnlimited         bool         `json:"is_unlimited,omitempty"`
	Accrual             *AccrualJSON `json:"accrual,omitempty"`
}

// AccrualJSON describes how an ACCRUAL policy earns its yearly allowance.
// Only the annual total is consumed by balances; the frequency is kept for
// display.
type AccrualJSON struct {
	AnnualDays int    `json:"annual_days"`
	Frequency  string `json:"frequency,omitempty"` // upfront, monthly, biweekly
}

// =============================================================================
// POLICY FACTORY
// =============================================================================

// PolicyFactory converts JSON policies to Go structs.
type PolicyFactory struct{}

func NewPolicyFactory() *PolicyFactory {
	return &PolicyFactory{}
}

// ParsePolicy parses a JSON object into a validated policy.
func (f *PolicyFactory) ParsePolicy(jsonStr string) (*timeoff.TimeOffPolicy, error) {
	var pj PolicyJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return nil, &generic.ValidationError{Field: "policy", Message: "malformed JSON", Cause: err}
	}
	return f.FromJSON(pj)
}

// ParseCatalog parses a JSON array of policies. It fails on the first
// invalid entry and on duplicate IDs.
func (f *PolicyFactory) ParseCatalog(jsonStr string) ([]timeoff.TimeOffPolicy, error) {
	var pjs []PolicyJSON
	if err := json.Unmarshal([]byte(jsonStr), &pjs); err != nil {
		return nil, &generic.ValidationError{Field: "policies", Message: "malformed JSON", Cause: err}
	}

	seen := make(map[string]bool, len(pjs))
	policies := make([]timeoff.TimeOffPolicy, 0, len(pjs))
	for i, pj := range pjs {
		if seen[pj.ID] {
			return nil, generic.NewValidationError("id", fmt.Sprintf("duplicate policy id %q", pj.ID))
		}
		seen[pj.ID] = true

		policy, err := f.FromJSON(pj)
		if err != nil {
			return nil, fmt.Errorf("policy %d: %w", i, err)
		}
		policies = append(policies, *policy)
	}
	return policies, nil
}

// FromJSON converts PolicyJSON to a validated policy.
func (f *PolicyFactory) FromJSON(pj PolicyJSON) (*timeoff.TimeOffPolicy, error) {
	kind, err := parseKind(pj)
	if err != nil {
		return nil, err
	}

	policy := &timeoff.TimeOffPolicy{
		ID:   generic.PolicyID(pj.ID),
		Name: pj.Name,
		Kind: kind,
	}

	if kind != timeoff.PolicyUnlimited {
		switch {
		case pj.AnnualAllowanceDays != nil:
			days := *pj.AnnualAllowanceDays
			policy.AnnualAllowanceDays = &days
		case kind == timeoff.PolicyAccrual && pj.Accrual != nil:
			days := pj.Accrual.AnnualDays
			policy.AnnualAllowanceDays = &days
		}
	} else if pj.AnnualAllowanceDays != nil {
		// Leave it set so Validate reports the contradiction.
		days := *pj.AnnualAllowanceDays
		policy.AnnualAllowanceDays = &days
	}

	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return policy, nil
}

// ToJSON converts a policy to PolicyJSON.
func (f *PolicyFactory) ToJSON(policy timeoff.TimeOffPolicy) PolicyJSON {
	pj := PolicyJSON{
		ID:   string(policy.ID),
		Name: policy.Name,
		Kind: string(policy.Kind),
	}
	if policy.AnnualAllowanceDays != nil {
		days := *policy.AnnualAllowanceDays
		pj.AnnualAllowanceDays = &days
	}
	return pj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseKind(pj PolicyJSON) (timeoff.PolicyKind, error) {
	if pj.IsUnlimited {
		if pj.Kind != "" && !strings.EqualFold(pj.Kind, string(timeoff.PolicyUnlimited)) {
			return "", generic.NewValidationError("kind", "is_unlimited conflicts with kind "+pj.Kind)
		}
		return timeoff.PolicyUnlimited, nil
	}

	switch strings.ToUpper(strings.TrimSpace(pj.Kind)) {
	case "UNLIMITED":
		return timeoff.PolicyUnlimited, nil
	case "FIXED":
		return timeoff.PolicyFixed, nil
	case "ACCRUAL":
		return timeoff.PolicyAccrual, nil
	case "":
		if pj.Accrual != nil {
			return timeoff.PolicyAccrual, nil
		}
		return timeoff.PolicyFixed, nil
	default:
		return "", generic.NewValidationError("kind", fmt.Sprintf("unknown policy kind %q", pj.Kind))
	}
}
