/*
factory.go - Preset policy JSON

These functions build JSON policy definitions for common setups. They
construct JSON directly to avoid an import cycle with the factory package.

USAGE:
  import "github.com/warp/leave-engine/timeoff"

  jsonStr := timeoff.StandardPTOJSON("pto-standard", "Standard PTO", 15)
  policy, err := factory.NewPolicyFactory().ParsePolicy(jsonStr)
*/
package timeoff

import (
	"encoding/json"
)

// StandardPTOJSON returns JSON for a FIXED PTO policy.
func StandardPTOJSON(id, name string, annualDays int) string {
	return mustJSON(map[string]interface{}{
		"id":                    id,
		"name":                  name,
		"kind":                  string(PolicyFixed),
		"annual_allowance_days": annualDays,
	})
}

// AccrualPTOJSON returns JSON for an ACCRUAL policy earning annualDays a year.
func AccrualPTOJSON(id, name string, annualDays int, frequency string) string {
	return mustJSON(map[string]interface{}{
		"id":   id,
		"name": name,
		"kind": string(PolicyAccrual),
		"accrual": map[string]interface{}{
			"annual_days": annualDays,
			"frequency":   frequency,
		},
	})
}

// UnlimitedPTOJSON returns JSON for an unlimited policy.
func UnlimitedPTOJSON(id, name string) string {
	return mustJSON(map[string]interface{}{
		"id":           id,
		"name":         name,
		"is_unlimited": true,
	})
}

// DefaultCatalogJSON is the policy set loaded by the demo scenarios.
func DefaultCatalogJSON() string {
	raw := []json.RawMessage{
		json.RawMessage(StandardPTOJSON("pto-standard", "Standard PTO", 15)),
		json.RawMessage(StandardPTOJSON("pto-senior", "Senior PTO", 25)),
		json.RawMessage(AccrualPTOJSON("pto-accrual", "Accrual PTO", 18, "monthly")),
		json.RawMessage(UnlimitedPTOJSON("pto-unlimited", "Unlimited PTO")),
	}
	b, _ := json.MarshalIndent(raw, "", "  ")
	return string(b)
}

func mustJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
