package booking

import (
	"context"
	"time"

	"github.com/warp/booking-engine/generic"
)

type EventType string

const (
	EventRequested EventType = "booking.requested"
	EventApproved  EventType = "booking.approved"
	EventRejected  EventType = "booking.rejected"
	EventCancelled EventType = "booking.cancelled"
	EventExpired   EventType = "booking.expired"
	EventCompleted EventType = "booking.completed"
	EventReported  EventType = "booking.reported"
)

// Event describes a committed transition. It is sent after commit.
type Event struct {
	Type      EventType      `json:"type"`
	BookingID BookingID      `json:"booking_id"`
	LearnerID generic.UserID `json:"learner_id"`
	TutorID   generic.UserID `json:"tutor_id"`
	Status    Status         `json:"status"`
	Actor     generic.UserID `json:"actor"`
	Amount    string         `json:"amount,omitempty"` // money moved by the transition
	Reason    string         `json:"reason,omitempty"`
	At        time.Time      `json:"at"`
}

// Notifier delivers events best-effort. Errors are logged by the caller and
// never affect the operation that produced the event.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, e Event) error

func (f NotifierFunc) Notify(ctx context.Context, e Event) error { return f(ctx, e) }

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Event) error { return nil }
