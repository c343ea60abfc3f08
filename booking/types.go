/*
Package booking implements the booking lifecycle of the tutoring marketplace.

PURPOSE:
  A booking binds a learner, a tutor and a subject for a number of months.
  Creating one claims the tutor's weekly slots, charges the first month,
  and materializes every dated session. From there the state machine moves
  it to approve, rejected, cancelled or completed, and the attendance
  processor transfers one session price from learner to tutor per attended
  session.

STATE MACHINE:
  ┌─────────┐  approve   ┌─────────┐  finish   ┌───────────┐
  │ pending │──────────▶ │ approve │─────────▶ │ completed │
  └─────────┘            └─────────┘           └───────────┘
     │    │ reject           │ cancel (forfeit)
     │    ▼                  ▼
     │  ┌──────────┐     ┌───────────┐
     │  │ rejected │     │ cancelled │
     │  └──────────┘     └───────────┘
     │ cancel / expiry (full refund)  ▲
     └────────────────────────────────┘

KEY CONCEPTS IN THIS FILE (types.go):
  - Status, DepositStatus
  - Booking: the aggregate
  - Schedule: one dated session
  - Slot: a tutor's recurring weekly window
  - Tutor: what the tutor directory tells us about pricing
  - Caller: the authenticated identity acting on the engine

SEE ALSO:
  - service.go: Creation and state transitions
  - attendance.go: Per-session transfers
  - sweeper.go: Expiry of stale pending bookings
*/
package booking

import (
	"time"

	"github.com/warp/booking-engine/generic"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type BookingID string
type ScheduleID string
type SlotID string
type SubjectID string

// =============================================================================
// STATUS
// =============================================================================

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approve"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Terminal states are never left.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusCancelled || s == StatusCompleted
}

// Active bookings hold slots and block a second booking for the same triple.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusApproved
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved: {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether from → to is an edge of the state machine.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type DepositStatus string

const (
	DepositNone     DepositStatus = "none"
	DepositHeld     DepositStatus = "held"
	DepositUsed     DepositStatus = "used"
	DepositRefunded DepositStatus = "refunded"
	DepositForfeit  DepositStatus = "forfeit"
)

func (d DepositStatus) Valid() bool {
	switch d {
	case DepositNone, DepositHeld, DepositUsed, DepositRefunded, DepositForfeit:
		return true
	}
	return false
}

// =============================================================================
// BOOKING - The aggregate
// =============================================================================

type Booking struct {
	ID        BookingID
	LearnerID generic.UserID
	TutorID   generic.UserID
	SubjectID SubjectID
	Note      string

	Status        Status
	DepositStatus DepositStatus

	// Price terms, fixed at creation.
	Amount           generic.Amount // MonthlyPayment × NumberOfMonths
	MonthlyPayment   generic.Amount
	InitialPayment   generic.Amount
	Deposit          generic.Amount
	SessionPrice     generic.Amount
	NumberOfMonths   int
	NumberOfSessions int

	PaidMonths   int
	PaidSessions int
	Completed    bool
	Reported     bool

	// Populated on reads that load the session list; not a stored column.
	ScheduleIDs []ScheduleID

	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsParty reports whether the user is the learner or the tutor of the booking.
func (b *Booking) IsParty(id generic.UserID) bool {
	return b.LearnerID == id || b.TutorID == id
}

// Transferred is what per-session attendance has moved to the tutor so far.
func (b *Booking) Transferred() generic.Amount {
	return b.SessionPrice.MulInt(b.PaidSessions)
}

// =============================================================================
// SCHEDULE - One dated session
// =============================================================================

type ScheduleStatus string

const (
	SessionScheduled ScheduleStatus = "scheduled"
	SessionAttended  ScheduleStatus = "attended"
)

type Schedule struct {
	ID        ScheduleID
	BookingID BookingID
	SlotID    SlotID
	TutorID   generic.UserID
	LearnerID generic.UserID
	Date      time.Time // midnight UTC of the session day
	StartTime generic.TimeOfDay
	EndTime   generic.TimeOfDay
	Attended  bool
	Status    ScheduleStatus
}

func (s Schedule) StartsAt() time.Time { return s.StartTime.On(s.Date) }
func (s Schedule) EndsAt() time.Time   { return s.EndTime.On(s.Date) }

// =============================================================================
// SLOT - Recurring weekly availability
// =============================================================================

type Slot struct {
	ID        SlotID
	TutorID   generic.UserID
	DayOfWeek time.Weekday // 0 = Sunday
	StartTime generic.TimeOfDay
	EndTime   generic.TimeOfDay
	Claimed   bool
	BookingID BookingID // set while claimed
}

// =============================================================================
// TUTOR - Directory view used for pricing
// =============================================================================

type Tutor struct {
	ID           generic.UserID
	PricePerHour generic.Amount
}

// =============================================================================
// CALLER - Authenticated identity
// =============================================================================

type Role string

const (
	RoleLearner Role = "learner"
	RoleTutor   Role = "tutor"
	RoleAdmin   Role = "admin"
	RoleSystem  Role = "system"
)

type Caller struct {
	UserID generic.UserID
	Role   Role
}

// SystemCaller is the identity background jobs act under.
var SystemCaller = Caller{UserID: "system", Role: RoleSystem}
