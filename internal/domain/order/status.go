package order

import (
	"strings"

	"github.com/go-faster/errors"
)

// Status is the order's lifecycle state.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
	StatusCanceled  Status = "CANCELED"
)

// ErrInvalidTransition is returned when a status change is not permitted by
// the lifecycle state machine.
var ErrInvalidTransition = errors.New("invalid status transition")

// transitions is the forward edge set of the lifecycle. CANCELED is reachable
// from every non-terminal state; DELIVERED and CANCELED are terminal.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCanceled},
	StatusConfirmed: {StatusShipped, StatusCanceled},
	StatusShipped:   {StatusDelivered, StatusCanceled},
	StatusDelivered: nil,
	StatusCanceled:  nil,
}

// ParseStatus validates raw caller input against the known statuses.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToUpper(s)); st {
	case StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCanceled:
		return st, nil
	default:
		return "", errors.Wrap(ErrInvalidTransition, "unknown status")
	}
}

// CanTransition reports whether moving from one status to another is allowed.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates and returns the new status, or ErrInvalidTransition.
func (o *Order) Transition(to Status) error {
	if !CanTransition(o.Status, to) {
		return errors.Wrapf(ErrInvalidTransition, "%s -> %s", o.Status, to)
	}
	o.Status = to
	return nil
}
