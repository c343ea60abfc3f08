package booking

import (
	"errors"
	"fmt"
	"time"

	"github.com/warp/booking-engine/generic"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	ErrDuplicateBooking    = errors.New("an active booking already exists")
	ErrSlotConflict        = errors.New("slot already claimed")
	ErrIncompleteSessions  = errors.New("sessions not completed")
	ErrTooEarly            = errors.New("session has not started")
	ErrAlreadyTerminal     = errors.New("booking already in a terminal state")
	ErrInvalidTransition   = errors.New("invalid state transition")
	ErrAttendanceUnchanged = errors.New("attendance already has the requested value")
)

func init() {
	for _, err := range []error{
		ErrDuplicateBooking,
		ErrSlotConflict,
		ErrIncompleteSessions,
		ErrTooEarly,
		ErrAlreadyTerminal,
		ErrInvalidTransition,
		ErrAttendanceUnchanged,
	} {
		generic.RegisterClientError(err)
	}
}

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

type DuplicateBookingError struct {
	ExistingID BookingID
	Status     Status
}

func (e *DuplicateBookingError) Error() string {
	return fmt.Sprintf("booking %s is already %s for this learner, tutor and subject", e.ExistingID, e.Status)
}

func (e *DuplicateBookingError) Unwrap() error { return ErrDuplicateBooking }

// SlotConflictError reports which requested slots were not free.
type SlotConflictError struct {
	Requested int
	Claimed   int
	SlotIDs   []SlotID
}

func (e *SlotConflictError) Error() string {
	if len(e.SlotIDs) > 0 {
		return fmt.Sprintf("slot conflict: %v already claimed", e.SlotIDs)
	}
	return fmt.Sprintf("slot conflict: claimed %d of %d requested slots", e.Claimed, e.Requested)
}

func (e *SlotConflictError) Unwrap() error { return ErrSlotConflict }

type IncompleteSessionsError struct {
	BookingID BookingID
	Paid      int
	Total     int
}

func (e *IncompleteSessionsError) Error() string {
	return fmt.Sprintf("booking %s has %d of %d sessions paid", e.BookingID, e.Paid, e.Total)
}

func (e *IncompleteSessionsError) Unwrap() error { return ErrIncompleteSessions }

type TooEarlyError struct {
	ScheduleID ScheduleID
	StartsAt   time.Time
	Now        time.Time
}

func (e *TooEarlyError) Error() string {
	return fmt.Sprintf("session %s starts at %s", e.ScheduleID, e.StartsAt.Format(time.RFC3339))
}

func (e *TooEarlyError) Unwrap() error { return ErrTooEarly }

type AlreadyTerminalError struct {
	BookingID BookingID
	Status    Status
}

func (e *AlreadyTerminalError) Error() string {
	return fmt.Sprintf("booking %s is already %s", e.BookingID, e.Status)
}

func (e *AlreadyTerminalError) Unwrap() error { return ErrAlreadyTerminal }

// InvalidTransitionError is returned for an action the current non-terminal
// status does not allow (e.g. completing a pending booking).
type InvalidTransitionError struct {
	BookingID BookingID
	From      Status
	Action    string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("booking %s: cannot %s while %s", e.BookingID, e.Action, e.From)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

type AttendanceUnchangedError struct {
	ScheduleID ScheduleID
	Attended   bool
}

func (e *AttendanceUnchangedError) Error() string {
	return fmt.Sprintf("session %s attended is already %t", e.ScheduleID, e.Attended)
}

func (e *AttendanceUnchangedError) Unwrap() error { return ErrAttendanceUnchanged }

// checkTransition returns the error for moving b to `to`, or nil.
func checkTransition(b *Booking, to Status, action string) error {
	if b.Status.Terminal() {
		return &AlreadyTerminalError{BookingID: b.ID, Status: b.Status}
	}
	if !CanTransition(b.Status, to) {
		return &InvalidTransitionError{BookingID: b.ID, From: b.Status, Action: action}
	}
	return nil
}
