package timeoff

import (
	"fmt"

	"github.com/warp/leave-engine/generic"
)

// InvalidTransitionError is returned by SetStatus when the target status is
// not reachable from the current one. Callers refresh the request and decide
// whether to try a different target.
type InvalidTransitionError struct {
	RequestID generic.RequestID
	From      RequestStatus
	To        RequestStatus
}

func (e *InvalidTransitionError) Error() string {
	if e.From.IsTerminal() {
		return fmt.Sprintf("request %s is %s (terminal); cannot move to %s", e.RequestID, e.From, e.To)
	}
	return fmt.Sprintf("request %s cannot move from %s to %s", e.RequestID, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error {
	return generic.ErrInvalidTransition
}
