/*
rollup.go - Manager views over the ledger

PURPOSE:
  Read-only compositions for a manager dashboard: who is about to be out,
  how many people are out in the coming window, and which team members
  overlap. The rollup holds no state of its own.

TEAM SCOPE:
  A team is a department in the employee directory. An empty department
  means every request in the ledger.

SEE ALSO:
  - conflict.go: FindConflicts
  - generic/period.go: Overlaps
*/
package timeoff

import (
	"context"
	"fmt"
	"sort"

	"github.com/warp/leave-engine/generic"
)

// DefaultWindowDays is the "this week" window when callers pass none.
const DefaultWindowDays = 7

type Rollup struct {
	requests  RequestStore
	directory Directory
}

func NewRollup(requests RequestStore, directory Directory) *Rollup {
	return &Rollup{requests: requests, directory: directory}
}

// TeamRequests returns every request (any status) of the department's
// employees, ordered by creation.
func (r *Rollup) TeamRequests(ctx context.Context, department string) ([]TimeOffRequest, error) {
	if department == "" {
		return r.requests.ListRequests(ctx, RequestFilter{})
	}

	members, err := r.directory.ListEmployees(ctx, EmployeeFilter{Department: department})
	if err != nil {
		return nil, fmt.Errorf("failed to list team %q: %w", department, err)
	}
	if len(members) == 0 {
		return []TimeOffRequest{}, nil
	}

	ids := make([]generic.EmployeeID, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	return r.requests.ListRequests(ctx, RequestFilter{EmployeeIDs: ids})
}

// Upcoming returns REQUESTED/APPROVED team requests starting on or after now,
// sorted by StartDate.
func (r *Rollup) Upcoming(ctx context.Context, department string, now generic.Date) ([]TimeOffRequest, error) {
	team, err := r.TeamRequests(ctx, department)
	if err != nil {
		return nil, err
	}
	return UpcomingFrom(team, now), nil
}

// DueThisWindow counts REQUESTED/APPROVED team requests overlapping
// [now, windowEnd].
func (r *Rollup) DueThisWindow(ctx context.Context, department string, now, windowEnd generic.Date) (int, error) {
	if windowEnd.Before(now) {
		return 0, &generic.InvalidRangeError{Start: now, End: windowEnd}
	}
	team, err := r.TeamRequests(ctx, department)
	if err != nil {
		return 0, err
	}
	return CountInWindow(team, now, windowEnd), nil
}

// Conflicts runs FindConflicts over the team's requests.
func (r *Rollup) Conflicts(ctx context.Context, department string) ([]ConflictPair, error) {
	team, err := r.TeamRequests(ctx, department)
	if err != nil {
		return nil, err
	}
	return FindConflicts(ctx, team)
}

// CurrentConflicts is Conflicts restricted to requests that have not ended
// before now.
func (r *Rollup) CurrentConflicts(ctx context.Context, department string, now generic.Date) ([]ConflictPair, error) {
	team, err := r.TeamRequests(ctx, department)
	if err != nil {
		return nil, err
	}
	return FindConflicts(ctx, notEndedBefore(team, now))
}

// notEndedBefore keeps requests whose EndDate is on or after now.
func notEndedBefore(requests []TimeOffRequest, now generic.Date) []TimeOffRequest {
	out := make([]TimeOffRequest, 0, len(requests))
	for _, req := range requests {
		if !req.EndDate.Before(now) {
			out = append(out, req)
		}
	}
	return out
}

// RollupSummary is the dashboard view for one team.
type RollupSummary struct {
	Department   string
	AsOf         generic.Date
	Window       generic.Period
	Upcoming     []TimeOffRequest
	OutInWindow  int
	PendingCount int
	Conflicts    []ConflictPair
}

// Summary builds the dashboard from a single read of the team's requests.
// Conflicts only consider requests that have not ended before now.
func (r *Rollup) Summary(ctx context.Context, department string, now generic.Date, windowDays int) (*RollupSummary, error) {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	window := generic.Period{Start: now, End: now.AddDays(windowDays - 1)}

	team, err := r.TeamRequests(ctx, department)
	if err != nil {
		return nil, err
	}

	pending := 0
	for _, req := range team {
		if req.Status == StatusRequested {
			pending++
		}
	}

	conflicts, err := FindConflicts(ctx, notEndedBefore(team, now))
	if err != nil {
		return nil, err
	}

	return &RollupSummary{
		Department:   department,
		AsOf:         now,
		Window:       window,
		Upcoming:     UpcomingFrom(team, now),
		OutInWindow:  CountInWindow(team, window.Start, window.End),
		PendingCount: pending,
		Conflicts:    conflicts,
	}, nil
}

// UpcomingFrom filters requests to REQUESTED/APPROVED ones starting on or
// after now, sorted by StartDate (stable on input order).
func UpcomingFrom(requests []TimeOffRequest, now generic.Date) []TimeOffRequest {
	out := make([]TimeOffRequest, 0)
	for _, req := range requests {
		if req.PlannedOut() && req.StartDate.AfterOrEqual(now) {
			out = append(out, req)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartDate.Before(out[j].StartDate)
	})
	return out
}

// CountInWindow counts REQUESTED/APPROVED requests overlapping [start, end].
func CountInWindow(requests []TimeOffRequest, start, end generic.Date) int {
	n := 0
	for _, req := range requests {
		if req.PlannedOut() && generic.Overlaps(req.StartDate, req.EndDate, start, end) {
			n++
		}
	}
	return n
}
