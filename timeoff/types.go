// Package timeoff implements the time-off ledger: leave policies, the request
// state machine, balance accounting and scheduling conflict detection.
// It builds on the calendar primitives of the generic package.
package timeoff

import (
	"time"

	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// POLICY
// =============================================================================

// PolicyKind says whether a policy tracks an allowance at all.
type PolicyKind string

const (
	PolicyUnlimited PolicyKind = "UNLIMITED" // no tracked allowance
	PolicyFixed     PolicyKind = "FIXED"     // flat annual day count
	PolicyAccrual   PolicyKind = "ACCRUAL"   // accrues over time; only the annual figure is consumed here
)

func (k PolicyKind) Valid() bool {
	switch k {
	case PolicyUnlimited, PolicyFixed, PolicyAccrual:
		return true
	}
	return false
}

// TimeOffPolicy is defined by an org administrator and referenced, never
// owned, by employees. The ledger never mutates it.
type TimeOffPolicy struct {
	ID   generic.PolicyID
	Name string
	Kind PolicyKind

	// AnnualAllowanceDays is nil for UNLIMITED and >= 0 otherwise.
	AnnualAllowanceDays *int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a copy that shares no memory with p.
func (p TimeOffPolicy) Clone() TimeOffPolicy {
	if p.AnnualAllowanceDays != nil {
		days := *p.AnnualAllowanceDays
		p.AnnualAllowanceDays = &days
	}
	return p
}

// Validate checks the allowance invariant for the policy kind.
func (p TimeOffPolicy) Validate() error {
	if p.ID == "" {
		return generic.NewValidationError("id", "required")
	}
	if p.Name == "" {
		return generic.NewValidationError("name", "required")
	}
	if !p.Kind.Valid() {
		return generic.NewValidationError("kind", "must be one of UNLIMITED, FIXED, ACCRUAL")
	}
	if p.Kind == PolicyUnlimited {
		if p.AnnualAllowanceDays != nil {
			return generic.NewValidationError("annual_allowance_days", "must be empty for UNLIMITED policies")
		}
		return nil
	}
	if p.AnnualAllowanceDays == nil {
		return generic.NewValidationError("annual_allowance_days", "required for "+string(p.Kind)+" policies")
	}
	if *p.AnnualAllowanceDays < 0 {
		return generic.NewValidationError("annual_allowance_days", "must be >= 0")
	}
	return nil
}

// =============================================================================
// EMPLOYEE - external directory record
// =============================================================================

// Employee holds only what the ledger needs from the directory: identity,
// display fields for conflict reporting, and the explicit policy assignment.
type Employee struct {
	ID         generic.EmployeeID
	Name       string
	Email      string
	Department string
	PolicyID   generic.PolicyID // empty = no policy assigned
}

// EmployeeFilter narrows ListEmployees. Zero values match everything.
type EmployeeFilter struct {
	Department string
	PolicyID   generic.PolicyID
	Query      string // case-insensitive substring of name or email
}

// =============================================================================
// REQUEST
// =============================================================================

// RequestType is the leave category of a request. Only PTO is balanced
// against the policy allowance.
type RequestType string

const (
	TypePTO           RequestType = "PTO"
	TypeSick          RequestType = "SICK"
	TypePersonal      RequestType = "PERSONAL"
	TypeUnpaid        RequestType = "UNPAID"
	TypeJuryDuty      RequestType = "JURY_DUTY"
	TypeParentalLeave RequestType = "PARENTAL_LEAVE"
)

// RequestTypes lists every supported type, in display order.
var RequestTypes = []RequestType{TypePTO, TypeSick, TypePersonal, TypeUnpaid, TypeJuryDuty, TypeParentalLeave}

func (t RequestType) Valid() bool {
	for _, known := range RequestTypes {
		if t == known {
			return true
		}
	}
	return false
}

// TimeOffRequest is a request to be out for whole days [StartDate, EndDate].
// Requests are never deleted; denied and cancelled ones stay for audit.
type TimeOffRequest struct {
	ID         generic.RequestID
	EmployeeID generic.EmployeeID
	Type       RequestType
	Status     RequestStatus
	StartDate  generic.Date
	EndDate    generic.Date
	Reason     string

	CreatedAt time.Time
	UpdatedAt time.Time

	// Set when the request leaves REQUESTED.
	DecidedBy string
	DecidedAt *time.Time

	// Version increments on every status change; stores compare-and-swap on it.
	Version int
}

// Period returns the requested days as a closed range.
func (r TimeOffRequest) Period() generic.Period {
	return generic.Period{Start: r.StartDate, End: r.EndDate}
}

// PlannedOut reports whether the request signals that the employee will be
// away: pending and approved requests both count.
func (r TimeOffRequest) PlannedOut() bool {
	return r.Status == StatusRequested || r.Status == StatusApproved
}

// RequestFilter narrows ListRequests. Zero values match everything.
type RequestFilter struct {
	EmployeeID  generic.EmployeeID
	EmployeeIDs []generic.EmployeeID // team scope; nil = no restriction
	Status      RequestStatus
}

// StatusChange is one entry of a request's append-only status history.
type StatusChange struct {
	ID        string
	RequestID generic.RequestID
	From      RequestStatus // empty for creation
	To        RequestStatus
	ActorID   string
	At        time.Time
}

// =============================================================================
// DERIVED VIEWS - never persisted
// =============================================================================

// BalanceKind distinguishes "not configured" and "unlimited" from a tracked
// balance, so that a missing policy is never shown as zero days left.
type BalanceKind string

const (
	BalanceNotConfigured BalanceKind = "NOT_CONFIGURED"
	BalanceUnlimited     BalanceKind = "UNLIMITED"
	BalanceTracked       BalanceKind = "TRACKED"
)

// BalanceSnapshot is recomputed from the ledger on every query. The numeric
// fields are nil unless Kind is BalanceTracked.
type BalanceSnapshot struct {
	EmployeeID    generic.EmployeeID
	Year          int
	PolicyID      generic.PolicyID
	Kind          BalanceKind
	Allowance     *int
	UsedDays      *int
	RemainingDays *int

	// PendingDays is REQUESTED PTO inside the year. Informational only; it
	// is not subtracted from RemainingDays.
	PendingDays *int
}

// ConflictPair reports two different employees planning to be out on at
// least one common day.
type ConflictPair struct {
	A TimeOffRequest
	B TimeOffRequest

	// Shared days of A and B.
	Overlap generic.Period
}
