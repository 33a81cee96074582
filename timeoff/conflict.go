package timeoff

import (
	"context"
	"sort"

	"github.com/warp/leave-engine/generic"
)

// FindConflicts reports every pair of requests from different employees whose
// date ranges share at least one day.
//
// Only REQUESTED and APPROVED requests take part: a pending request still
// signals intent to be out. Requests are stably sorted by StartDate and
// scanned pairwise, so the output order is deterministic, no pair appears
// twice and (A,B) is never repeated as (B,A). Input is bounded by one
// manager's team, so the quadratic scan is fine.
//
// The scan has no side effects and stops with ctx.Err() when ctx is done.
func FindConflicts(ctx context.Context, requests []TimeOffRequest) ([]ConflictPair, error) {
	active := make([]TimeOffRequest, 0, len(requests))
	for _, r := range requests {
		if r.PlannedOut() {
			active = append(active, r)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].StartDate.Before(active[j].StartDate)
	})

	var pairs []ConflictPair
	for i := range active {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a := active[i]
		for j := i + 1; j < len(active); j++ {
			b := active[j]
			// Sorted by start: once b starts after a ends, nothing later overlaps a.
			if b.StartDate.After(a.EndDate) {
				break
			}
			if a.EmployeeID == b.EmployeeID {
				continue
			}
			overlap, ok := a.Period().Intersect(b.Period())
			if !ok {
				continue
			}
			pairs = append(pairs, ConflictPair{A: a, B: b, Overlap: overlap})
		}
	}
	return pairs, nil
}

// ConflictsFor filters pairs down to those involving the employee.
func ConflictsFor(pairs []ConflictPair, employeeID generic.EmployeeID) []ConflictPair {
	var out []ConflictPair
	for _, p := range pairs {
		if p.A.EmployeeID == employeeID || p.B.EmployeeID == employeeID {
			out = append(out, p)
		}
	}
	return out
}
