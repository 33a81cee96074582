/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the domain model in timeoff from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request bodies carry go-playground/validator struct tags. Handlers call
  h.validate.Struct before touching the domain; domain rules (end before
  start, unknown employee, illegal transition) are still enforced by the
  ledger and reported through the same error envelope.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/policy.go: PolicyJSON body for POST /api/policies
*/
package api

import (
	"time"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/timeoff"
)

// =============================================================================
// POLICIES & EMPLOYEES
// =============================================================================

// PolicyDTO represents a policy in API responses.
type PolicyDTO struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	Kind                string `json:"kind"`
	AnnualAllowanceDays *int   `json:"annual_allowance_days"`
	CreatedAt           string `json:"created_at,omitempty"`
	UpdatedAt           string `json:"updated_at,omitempty"`
}

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Department string `json:"department"`
	PolicyID   string `json:"policy_id,omitempty"`
}

// CreateEmployeeRequest registers (or updates) a directory record.
type CreateEmployeeRequest struct {
	ID         string `json:"id" validate:"required,max=64"`
	Name       string `json:"name" validate:"required,max=200"`
	Email      string `json:"email" validate:"omitempty,email"`
	Department string `json:"department" validate:"max=100"`
	PolicyID   string `json:"policy_id" validate:"max=64"`
}

// =============================================================================
// REQUESTS
// =============================================================================

// CreateTimeOffRequest is the body of POST /api/requests.
type CreateTimeOffRequest struct {
	EmployeeID string `json:"employee_id" validate:"required"`
	Type       string `json:"type" validate:"required"`
	StartDate  string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate    string `json:"end_date" validate:"required,datetime=2006-01-02"`
	Reason     string `json:"reason" validate:"max=1000"`
}

// PatchRequestStatus is the body of PATCH /api/requests/{id}.
type PatchRequestStatus struct {
	Status  string `json:"status" validate:"required,oneof=REQUESTED APPROVED DENIED CANCELLED"`
	ActorID string `json:"actor_id" validate:"required"`
}

// RequestDTO represents a time-off request in API responses.
type RequestDTO struct {
	ID         string  `json:"id"`
	EmployeeID string  `json:"employee_id"`
	Type       string  `json:"type"`
	Status     string  `json:"status"`
	StartDate  string  `json:"start_date"`
	EndDate    string  `json:"end_date"`
	Days       int     `json:"days"`
	Reason     string  `json:"reason,omitempty"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
	DecidedBy  string  `json:"decided_by,omitempty"`
	DecidedAt  *string `json:"decided_at,omitempty"`
	Version    int     `json:"version"`
}

// StatusChangeDTO is one history entry.
type StatusChangeDTO struct {
	ID        string `json:"id"`
	RequestID string `json:"request_id"`
	From      string `json:"from,omitempty"`
	To        string `json:"to"`
	ActorID   string `json:"actor_id"`
	At        string `json:"at"`
}

// =============================================================================
// BALANCE, CONFLICTS, ROLLUP
// =============================================================================

// BalanceDTO mirrors timeoff.BalanceSnapshot. Numeric fields are null unless
// kind is TRACKED.
type BalanceDTO struct {
	EmployeeID    string  `json:"employee_id"`
	Year          int     `json:"year"`
	PolicyID      string  `json:"policy_id,omitempty"`
	Kind          string  `json:"kind"`
	Allowance     *int    `json:"allowance"`
	UsedDays      *int    `json:"used_days"`
	RemainingDays *int    `json:"remaining_days"`
	PendingDays   *int    `json:"pending_days"`
	Utilization   *string `json:"utilization,omitempty"`
}

// ConflictInput is a request supplied inline to POST /api/conflicts.
// ID and Type are optional; status defaults to REQUESTED.
type ConflictInput struct {
	ID         string `json:"id"`
	EmployeeID string `json:"employee_id" validate:"required"`
	Type       string `json:"type"`
	Status     string `json:"status" validate:"omitempty,oneof=REQUESTED APPROVED DENIED CANCELLED"`
	StartDate  string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate    string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

// FindConflictsRequest is the body of POST /api/conflicts.
type FindConflictsRequest struct {
	Requests []ConflictInput `json:"requests" validate:"dive"`
}

// ConflictDTO is one overlapping pair.
type ConflictDTO struct {
	A            RequestDTO `json:"a"`
	B            RequestDTO `json:"b"`
	OverlapStart string     `json:"overlap_start"`
	OverlapEnd   string     `json:"overlap_end"`
	OverlapDays  int        `json:"overlap_days"`
}

// RollupDTO is the manager dashboard.
type RollupDTO struct {
	Department   string        `json:"department,omitempty"`
	AsOf         string        `json:"as_of"`
	WindowStart  string        `json:"window_start"`
	WindowEnd    string        `json:"window_end"`
	Upcoming     []RequestDTO  `json:"upcoming"`
	OutInWindow  int           `json:"out_in_window"`
	PendingCount int           `json:"pending_count"`
	Conflicts    []ConflictDTO `json:"conflicts"`
}

// =============================================================================
// SCENARIOS & ERRORS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the body of POST /api/scenarios/load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toPolicyDTO(p timeoff.TimeOffPolicy) PolicyDTO {
	dto := PolicyDTO{
		ID:                  string(p.ID),
		Name:                p.Name,
		Kind:                string(p.Kind),
		AnnualAllowanceDays: p.AnnualAllowanceDays,
	}
	if !p.CreatedAt.IsZero() {
		dto.CreatedAt = p.CreatedAt.Format(time.RFC3339)
	}
	if !p.UpdatedAt.IsZero() {
		dto.UpdatedAt = p.UpdatedAt.Format(time.RFC3339)
	}
	return dto
}

func toEmployeeDTO(e timeoff.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:         string(e.ID),
		Name:       e.Name,
		Email:      e.Email,
		Department: e.Department,
		PolicyID:   string(e.PolicyID),
	}
}

func toRequestDTO(r timeoff.TimeOffRequest) RequestDTO {
	days, _ := generic.DaysInclusive(r.StartDate, r.EndDate)
	dto := RequestDTO{
		ID:         string(r.ID),
		EmployeeID: string(r.EmployeeID),
		Type:       string(r.Type),
		Status:     string(r.Status),
		StartDate:  r.StartDate.String(),
		EndDate:    r.EndDate.String(),
		Days:       days,
		Reason:     r.Reason,
		DecidedBy:  r.DecidedBy,
		Version:    r.Version,
	}
	if !r.CreatedAt.IsZero() {
		dto.CreatedAt = r.CreatedAt.Format(time.RFC3339)
	}
	if !r.UpdatedAt.IsZero() {
		dto.UpdatedAt = r.UpdatedAt.Format(time.RFC3339)
	}
	if r.DecidedAt != nil {
		s := r.DecidedAt.Format(time.RFC3339)
		dto.DecidedAt = &s
	}
	return dto
}

func toRequestDTOs(reqs []timeoff.TimeOffRequest) []RequestDTO {
	dtos := make([]RequestDTO, len(reqs))
	for i, r := range reqs {
		dtos[i] = toRequestDTO(r)
	}
	return dtos
}

func toStatusChangeDTO(c timeoff.StatusChange) StatusChangeDTO {
	return StatusChangeDTO{
		ID:        c.ID,
		RequestID: string(c.RequestID),
		From:      string(c.From),
		To:        string(c.To),
		ActorID:   c.ActorID,
		At:        c.At.Format(time.RFC3339),
	}
}

func toBalanceDTO(s timeoff.BalanceSnapshot) BalanceDTO {
	dto := BalanceDTO{
		EmployeeID:    string(s.EmployeeID),
		Year:          s.Year,
		PolicyID:      string(s.PolicyID),
		Kind:          string(s.Kind),
		Allowance:     s.Allowance,
		UsedDays:      s.UsedDays,
		RemainingDays: s.RemainingDays,
		PendingDays:   s.PendingDays,
	}
	if u, ok := timeoff.Utilization(s); ok {
		v := u.Value.StringFixed(2)
		dto.Utilization = &v
	}
	return dto
}

func toConflictDTOs(pairs []timeoff.ConflictPair) []ConflictDTO {
	dtos := make([]ConflictDTO, len(pairs))
	for i, p := range pairs {
		dtos[i] = ConflictDTO{
			A:            toRequestDTO(p.A),
			B:            toRequestDTO(p.B),
			OverlapStart: p.Overlap.Start.String(),
			OverlapEnd:   p.Overlap.End.String(),
			OverlapDays:  p.Overlap.Days(),
		}
	}
	return dtos
}

func toRollupDTO(s *timeoff.RollupSummary) RollupDTO {
	return RollupDTO{
		Department:   s.Department,
		AsOf:         s.AsOf.String(),
		WindowStart:  s.Window.Start.String(),
		WindowEnd:    s.Window.End.String(),
		Upcoming:     toRequestDTOs(s.Upcoming),
		OutInWindow:  s.OutInWindow,
		PendingCount: s.PendingCount,
		Conflicts:    toConflictDTOs(s.Conflicts),
	}
}
