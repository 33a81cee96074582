/*
request.go - Time-off request state machine

STATES:
  ┌───────────┐   approve   ┌──────────┐
  │ REQUESTED │ ──────────▶ │ APPROVED │  (terminal)
  │ (initial) │             └──────────┘
  │           │    deny     ┌──────────┐
  │           │ ──────────▶ │  DENIED  │  (terminal)
  │           │             └──────────┘
  │           │   cancel    ┌───────────┐
  │           │ ──────────▶ │ CANCELLED │ (terminal)
  └───────────┘             └───────────┘

RULES:
  - No transition leaves a terminal state.
  - Nothing re-enters REQUESTED.
  - CANCELLED is only reachable from REQUESTED: once approved or denied,
    the decision is the record of truth.

SEE ALSO:
  - ledger.go: SetStatus applies these rules atomically per request
  - errors.go: InvalidTransitionError
*/
package timeoff

// RequestStatus is the lifecycle state of a request.
type RequestStatus string

const (
	StatusRequested RequestStatus = "REQUESTED"
	StatusApproved  RequestStatus = "APPROVED"
	StatusDenied    RequestStatus = "DENIED"
	StatusCancelled RequestStatus = "CANCELLED"
)

var transitions = map[RequestStatus][]RequestStatus{
	StatusRequested: {StatusApproved, StatusDenied, StatusCancelled},
}

func (s RequestStatus) Valid() bool {
	switch s {
	case StatusRequested, StatusApproved, StatusDenied, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is permitted.
func (s RequestStatus) IsTerminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// NextStatuses lists the states reachable from s.
func (s RequestStatus) NextStatuses() []RequestStatus {
	next := transitions[s]
	out := make([]RequestStatus, len(next))
	copy(out, next)
	return out
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to RequestStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// checkTransition returns *InvalidTransitionError for illegal moves.
func checkTransition(req TimeOffRequest, to RequestStatus) error {
	if CanTransition(req.Status, to) {
		return nil
	}
	return &InvalidTransitionError{
		RequestID: req.ID,
		From:      req.Status,
		To:        to,
	}
}
