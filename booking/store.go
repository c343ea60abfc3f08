package booking

import (
	"context"
	"time"

	"github.com/warp/booking-engine/generic"
)

// Store persists bookings, sessions, slots and the tutor directory on top of
// the account store. Lookups of a single row return generic.ErrNotFound when
// it does not exist.
type Store interface {
	generic.AccountStore
	TutorDirectory

	SaveTutor(ctx context.Context, t Tutor) error

	SaveSlot(ctx context.Context, s Slot) error
	GetSlots(ctx context.Context, ids []SlotID) ([]Slot, error)
	SlotsByTutor(ctx context.Context, tutorID generic.UserID) ([]Slot, error)

	// ClaimSlots flips claimed=false → true for every id and records the
	// booking. It only touches slots that are currently free and returns how
	// many it claimed, so a count below len(ids) means a race was lost.
	ClaimSlots(ctx context.Context, ids []SlotID, bookingID BookingID) (int, error)

	// ReleaseSlots frees every slot claimed by the booking.
	ReleaseSlots(ctx context.Context, bookingID BookingID) error

	CreateBooking(ctx context.Context, b *Booking) error
	GetBooking(ctx context.Context, id BookingID) (*Booking, error)

	// LockBooking reads the booking for update.
	LockBooking(ctx context.Context, id BookingID) (*Booking, error)

	// UpdateBooking writes b if the stored version equals b.Version and
	// increments both the stored and b.Version. A stale version yields
	// generic.ErrConcurrentModification.
	UpdateBooking(ctx context.Context, b *Booking) error

	// FindActiveBooking returns the pending or approved booking for the
	// triple, or generic.ErrNotFound.
	FindActiveBooking(ctx context.Context, learner, tutor generic.UserID, subject SubjectID) (*Booking, error)

	// PendingCreatedBefore lists pending bookings created before cutoff, oldest first.
	PendingCreatedBefore(ctx context.Context, cutoff time.Time) ([]Booking, error)

	CreateSchedules(ctx context.Context, s []Schedule) error
	GetSchedule(ctx context.Context, id ScheduleID) (*Schedule, error)
	SchedulesByBooking(ctx context.Context, bookingID BookingID) ([]Schedule, error)
	SetAttended(ctx context.Context, id ScheduleID, attended bool) error
	DeleteSchedules(ctx context.Context, bookingID BookingID) (int, error)
}

// TxStore runs a function inside one database transaction. If fn returns an
// error everything it wrote is rolled back; otherwise it is committed.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}

// TutorDirectory is the read-only pricing collaborator.
type TutorDirectory interface {
	GetTutor(ctx context.Context, id generic.UserID) (*Tutor, error)
}
