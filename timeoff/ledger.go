/*
ledger.go - Request ledger: creation, validation and status transitions

PURPOSE:
  The Ledger is the single source of truth for time-off requests. It
  validates new requests, applies the state machine from request.go, and
  exposes read-only projections. Balances and conflict reports are always
  derived from what the ledger holds; nothing else stores them.

CRITICAL INVARIANTS:
  1. END >= START: invalid ranges are rejected at creation, never stored.
  2. MONOTONIC STATUS: REQUESTED -> {APPROVED, DENIED, CANCELLED}, all terminal.
  3. ATOMIC TRANSITIONS: two concurrent SetStatus calls on one request
     cannot both succeed. The loser observes InvalidTransitionError.
  4. NO DELETES: denied and cancelled requests stay for audit.

CONCURRENCY:
  SetStatus reads the request, checks the transition, then asks the store
  to compare-and-swap on Version. If another writer got there first the
  store reports ErrConcurrentModification; the ledger re-reads and checks
  again, at which point the request is terminal and the transition fails.

SIDE EFFECTS:
  Notifications run after the store commits, in their own goroutine. They
  never block or fail a transition.

EXAMPLE:
  ledger := timeoff.NewLedger(store, store)

  req, err := ledger.CreateRequest(ctx, timeoff.CreateRequestInput{
      EmployeeID: "emp-123",
      Type:       timeoff.TypePTO,
      StartDate:  generic.MustParseDate("2025-03-10"),
      EndDate:    generic.MustParseDate("2025-03-14"),
  })

  approved, err := ledger.Approve(ctx, req.ID, "manager-456")

SEE ALSO:
  - request.go: State machine
  - store.go: RequestStore compare-and-swap contract
  - balance.go: Reads approved PTO from the ledger
*/
package timeoff

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/warp/leave-engine/generic"
)

// maxTransitionAttempts bounds the re-read loop in SetStatus. A lost race
// always leaves the request terminal, so the second attempt fails cleanly;
// the bound only matters for stores that report spurious conflicts.
const maxTransitionAttempts = 3

// =============================================================================
// LEDGER
// =============================================================================

type Ledger struct {
	store     RequestStore
	directory Directory

	// Optional collaborators. NewLedger sets usable defaults.
	Notifier Notifier
	Clock    generic.Clock
	NewID    func() string
	Log      logrus.FieldLogger
}

// NewLedger creates a ledger over the given request store and directory.
func NewLedger(store RequestStore, directory Directory) *Ledger {
	return &Ledger{
		store:     store,
		directory: directory,
		Notifier:  LogNotifier{},
		Clock:     generic.SystemClock{},
		NewID:     uuid.NewString,
		Log:       logrus.StandardLogger(),
	}
}

// CreateRequestInput carries the fields a requester supplies.
type CreateRequestInput struct {
	EmployeeID generic.EmployeeID
	Type       RequestType
	StartDate  generic.Date
	EndDate    generic.Date
	Reason     string
}

// CreateRequest validates and stores a new REQUESTED request.
// Returns *generic.ValidationError on bad dates, type, or unknown employee.
func (l *Ledger) CreateRequest(ctx context.Context, in CreateRequestInput) (*TimeOffRequest, error) {
	if err := l.validate(ctx, in); err != nil {
		return nil, err
	}

	now := l.Clock.Now().UTC()
	req := TimeOffRequest{
		ID:         generic.RequestID(l.NewID()),
		EmployeeID: in.EmployeeID,
		Type:       in.Type,
		Status:     StatusRequested,
		StartDate:  in.StartDate,
		EndDate:    in.EndDate,
		Reason:     in.Reason,
		CreatedAt:  now,
		UpdatedAt:  now,
		Version:    1,
	}
	change := StatusChange{
		ID:        l.NewID(),
		RequestID: req.ID,
		To:        StatusRequested,
		ActorID:   string(in.EmployeeID),
		At:        now,
	}

	if err := l.store.InsertRequest(ctx, req, change); err != nil {
		return nil, fmt.Errorf("failed to store request: %w", err)
	}

	l.dispatch(ctx, RequestEvent{Request: req, ActorID: change.ActorID})
	return &req, nil
}

func (l *Ledger) validate(ctx context.Context, in CreateRequestInput) error {
	if in.EmployeeID == "" {
		return generic.NewValidationError("employee_id", "required")
	}
	if !in.Type.Valid() {
		return generic.NewValidationError("type", fmt.Sprintf("unknown leave type %q", in.Type))
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return generic.NewValidationError("start_date", "start and end dates are required")
	}
	if _, err := generic.DaysInclusive(in.StartDate, in.EndDate); err != nil {
		return &generic.ValidationError{Field: "end_date", Message: "must not be before start_date", Cause: err}
	}

	if _, err := l.directory.GetEmployee(ctx, in.EmployeeID); err != nil {
		if errors.Is(err, generic.ErrNotFound) {
			return &generic.ValidationError{Field: "employee_id", Message: "unknown employee", Cause: err}
		}
		return fmt.Errorf("failed to look up employee: %w", err)
	}
	return nil
}

// SetStatus moves a request to target on behalf of actorID.
//
// Returns *generic.NotFoundError for unknown requests and
// *InvalidTransitionError when the move is not permitted from the current
// status. On success the new status is immediately visible to balance and
// conflict queries; there is no separate commit step.
func (l *Ledger) SetStatus(ctx context.Context, id generic.RequestID, target RequestStatus, actorID string) (*TimeOffRequest, error) {
	if !target.Valid() {
		return nil, generic.NewValidationError("status", fmt.Sprintf("unknown status %q", target))
	}
	if actorID == "" {
		return nil, generic.NewValidationError("actor_id", "required")
	}

	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		current, err := l.store.GetRequest(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := checkTransition(*current, target); err != nil {
			return nil, err
		}

		now := l.Clock.Now().UTC()
		next := *current
		next.Status = target
		next.UpdatedAt = now
		next.DecidedBy = actorID
		next.DecidedAt = &now
		next.Version = current.Version + 1

		change := StatusChange{
			ID:        l.NewID(),
			RequestID: id,
			From:      current.Status,
			To:        target,
			ActorID:   actorID,
			At:        now,
		}

		err = l.store.UpdateRequestStatus(ctx, next, current.Version, change)
		if errors.Is(err, generic.ErrConcurrentModification) {
			l.Log.WithFields(logrus.Fields{
				"request_id": id,
				"attempt":    attempt + 1,
			}).Debug("status update lost a race, re-reading")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to update request %s: %w", id, err)
		}

		l.dispatch(ctx, RequestEvent{Request: next, From: current.Status, ActorID: actorID})
		return &next, nil
	}

	return nil, fmt.Errorf("request %s: %w", id, generic.ErrConcurrentModification)
}

// Approve is SetStatus(id, APPROVED, approverID).
func (l *Ledger) Approve(ctx context.Context, id generic.RequestID, approverID string) (*TimeOffRequest, error) {
	return l.SetStatus(ctx, id, StatusApproved, approverID)
}

// Deny is SetStatus(id, DENIED, approverID).
func (l *Ledger) Deny(ctx context.Context, id generic.RequestID, approverID string) (*TimeOffRequest, error) {
	return l.SetStatus(ctx, id, StatusDenied, approverID)
}

// Cancel is SetStatus(id, CANCELLED, actorID).
func (l *Ledger) Cancel(ctx context.Context, id generic.RequestID, actorID string) (*TimeOffRequest, error) {
	return l.SetStatus(ctx, id, StatusCancelled, actorID)
}

// =============================================================================
// READ-ONLY PROJECTIONS
// =============================================================================

func (l *Ledger) Get(ctx context.Context, id generic.RequestID) (*TimeOffRequest, error) {
	return l.store.GetRequest(ctx, id)
}

func (l *Ledger) List(ctx context.Context, filter RequestFilter) ([]TimeOffRequest, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, generic.NewValidationError("status", fmt.Sprintf("unknown status %q", filter.Status))
	}
	return l.store.ListRequests(ctx, filter)
}

func (l *Ledger) ListByEmployee(ctx context.Context, employeeID generic.EmployeeID) ([]TimeOffRequest, error) {
	return l.List(ctx, RequestFilter{EmployeeID: employeeID})
}

func (l *Ledger) ListByStatus(ctx context.Context, status RequestStatus) ([]TimeOffRequest, error) {
	return l.List(ctx, RequestFilter{Status: status})
}

func (l *Ledger) ListAll(ctx context.Context) ([]TimeOffRequest, error) {
	return l.List(ctx, RequestFilter{})
}

// History returns the status changes of a request, oldest first.
func (l *Ledger) History(ctx context.Context, id generic.RequestID) ([]StatusChange, error) {
	if _, err := l.store.GetRequest(ctx, id); err != nil {
		return nil, err
	}
	return l.store.RequestHistory(ctx, id)
}

// =============================================================================
// NOTIFICATION DISPATCH
// =============================================================================

// notifyTimeout caps how long a notifier may hold its goroutine.
const notifyTimeout = 10 * time.Second

func (l *Ledger) dispatch(ctx context.Context, event RequestEvent) {
	if l.Notifier == nil {
		return
	}
	// Detach from the caller: the HTTP request may finish before delivery.
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	go func() {
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				l.Log.WithField("request_id", event.Request.ID).Errorf("notifier panicked: %v", r)
			}
		}()
		l.Notifier.RequestChanged(nctx, event)
	}()
}
