/*
attendance.go - Per-session money transfer

PURPOSE:
  Marking a session attended moves one session price from the learner to
  the tutor; un-marking moves it back. The flag, both balances, both
  ledger entries and the booking's paid-session counter change in one
  transaction.

IDEMPOTENCY:
  The transfer is keyed on the change of the attended flag. Requesting the
  value the session already has is rejected with AttendanceUnchangedError
  and moves nothing, so a retried request can never charge twice.

REVERSAL:
  If the tutor has already spent the earning, the tutor-side debit is
  skipped instead of taking the balance below zero. The learner is always
  made whole.
*/
package booking

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/warp/booking-engine/generic"
)

// AttendanceResult reports what a toggle changed.
type AttendanceResult struct {
	Booking           *Booking
	Schedule          Schedule
	Transferred       generic.Amount
	TutorDebitSkipped bool
}

// MarkAttendance sets the attended flag of a session. Only the booking's
// learner may call it, only once the session has started and only while
// the booking is approved.
func (s *Service) MarkAttendance(ctx context.Context, caller Caller, id ScheduleID, attended bool) (_ *AttendanceResult, err error) {
	ctx, span := s.startSpan(ctx, "MarkAttendance",
		attribute.String("schedule_id", string(id)),
		attribute.Bool("attended", attended),
	)
	defer func() { endSpan(span, err) }()

	first, err := s.store.GetSchedule(ctx, id)
	if err != nil {
		if generic.IsNotFound(err) {
			return nil, &generic.NotFoundError{Kind: "schedule", ID: string(id)}
		}
		return nil, fmt.Errorf("get schedule: %w", err)
	}

	res := &AttendanceResult{}
	b, err := s.transition(ctx, "mark attendance", first.BookingID, func(tx Store, b *Booking) error {
		// Re-read under the booking lock; the flag may have changed.
		sc, err := tx.GetSchedule(ctx, id)
		if err != nil {
			if generic.IsNotFound(err) {
				return &generic.NotFoundError{Kind: "schedule", ID: string(id)}
			}
			return fmt.Errorf("get schedule: %w", err)
		}

		if caller.UserID != b.LearnerID {
			return forbidden(caller, "mark attendance for booking "+string(b.ID))
		}
		if b.Completed || b.Status.Terminal() {
			return &AlreadyTerminalError{BookingID: b.ID, Status: b.Status}
		}
		if b.Status != StatusApproved {
			return &InvalidTransitionError{BookingID: b.ID, From: b.Status, Action: "mark attendance"}
		}
		if now := s.clock.Now(); now.Before(sc.StartsAt()) {
			return &TooEarlyError{ScheduleID: sc.ID, StartsAt: sc.StartsAt(), Now: now}
		}
		if sc.Attended == attended {
			return &AttendanceUnchangedError{ScheduleID: sc.ID, Attended: attended}
		}

		if err := lockParties(ctx, tx, b); err != nil {
			return err
		}
		if attended {
			err = s.transferSession(ctx, tx, b, sc)
		} else {
			res.TutorDebitSkipped, err = s.reverseSession(ctx, tx, b, sc)
		}
		if err != nil {
			return err
		}
		if err := tx.SetAttended(ctx, sc.ID, attended); err != nil {
			return fmt.Errorf("set attended: %w", err)
		}
		sc.Attended = attended
		sc.Status = SessionScheduled
		if attended {
			sc.Status = SessionAttended
		}
		res.Schedule = *sc
		return nil
	})
	if err != nil {
		return nil, err
	}

	res.Booking = b
	res.Transferred = b.SessionPrice
	s.logger.Info("attendance marked",
		zap.String("booking_id", string(b.ID)),
		zap.String("schedule_id", string(id)),
		zap.Bool("attended", attended),
		zap.Stringer("session_price", b.SessionPrice),
		zap.Int("paid_sessions", b.PaidSessions),
		zap.Bool("tutor_debit_skipped", res.TutorDebitSkipped),
	)
	return res, nil
}

func (s *Service) transferSession(ctx context.Context, tx Store, b *Booking, sc *Schedule) error {
	if b.PaidSessions >= b.NumberOfSessions {
		return &InvalidTransitionError{BookingID: b.ID, From: b.Status, Action: "pay more sessions than booked"}
	}
	desc := fmt.Sprintf("session %s on %s", sc.ID, sc.Date.Format("2006-01-02"))
	if _, err := s.ledger.Post(ctx, tx, generic.Posting{
		UserID:      b.LearnerID,
		Amount:      b.SessionPrice,
		Type:        generic.EntrySpend,
		Description: desc,
		ReferenceID: string(sc.ID),
	}); err != nil {
		return err
	}
	if _, err := s.ledger.Post(ctx, tx, generic.Posting{
		UserID:      b.TutorID,
		Amount:      b.SessionPrice,
		Type:        generic.EntryEarning,
		Description: desc,
		ReferenceID: string(sc.ID),
	}); err != nil {
		return err
	}
	b.PaidSessions++
	return nil
}

// reverseSession credits the learner back and debits the tutor if the
// tutor's balance covers it. It reports whether the tutor side was skipped.
func (s *Service) reverseSession(ctx context.Context, tx Store, b *Booking, sc *Schedule) (bool, error) {
	desc := fmt.Sprintf("attendance reversed for session %s", sc.ID)
	if _, err := s.ledger.Post(ctx, tx, generic.Posting{
		UserID:      b.LearnerID,
		Amount:      b.SessionPrice,
		Type:        generic.EntryRefund,
		Description: desc,
		ReferenceID: string(sc.ID),
	}); err != nil {
		return false, err
	}

	skipped := false
	_, err := s.ledger.Post(ctx, tx, generic.Posting{
		UserID:      b.TutorID,
		Amount:      b.SessionPrice,
		Type:        generic.EntrySpend,
		Description: desc,
		ReferenceID: string(sc.ID),
	})
	switch {
	case errors.Is(err, generic.ErrInsufficientBalance):
		skipped = true
		s.logger.Warn("tutor reversal skipped",
			zap.String("booking_id", string(b.ID)),
			zap.String("tutor_id", string(b.TutorID)),
			zap.Error(err),
		)
	case err != nil:
		return false, err
	}

	if b.PaidSessions > 0 {
		b.PaidSessions--
	}
	return skipped, nil
}
