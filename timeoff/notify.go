package timeoff

import (
	"context"

	"github.com/sirupsen/logrus"
)

// RequestEvent describes a committed change to a request.
type RequestEvent struct {
	Request TimeOffRequest
	From    RequestStatus // empty on creation
	ActorID string
}

// Notifier receives request events after they commit. Delivery (email,
// chat, ...) lives behind this interface; the ledger dispatches events
// asynchronously and ignores the outcome.
type Notifier interface {
	RequestChanged(ctx context.Context, event RequestEvent)
}

// LogNotifier writes events to a logrus logger.
type LogNotifier struct {
	Log logrus.FieldLogger
}

func (n LogNotifier) RequestChanged(_ context.Context, event RequestEvent) {
	log := n.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log.WithFields(logrus.Fields{
		"request_id":  event.Request.ID,
		"employee_id": event.Request.EmployeeID,
		"type":        event.Request.Type,
		"from":        event.From,
		"to":          event.Request.Status,
		"actor_id":    event.ActorID,
	}).Info("time-off request changed")
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, event RequestEvent)

func (f NotifierFunc) RequestChanged(ctx context.Context, event RequestEvent) { f(ctx, event) }
