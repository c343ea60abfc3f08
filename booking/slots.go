package booking

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/warp/booking-engine/generic"
)

// =============================================================================
// TUTORS AND SLOTS
// =============================================================================

// RegisterTutor stores the tutor's price and opens the account earnings go to.
func (s *Service) RegisterTutor(ctx context.Context, caller Caller, t Tutor) (*Tutor, error) {
	if t.ID == "" {
		return nil, generic.Invalid("tutor_id", "is required")
	}
	if caller.UserID != t.ID && caller.Role != RoleAdmin {
		return nil, forbidden(caller, "register tutor "+string(t.ID))
	}
	if !t.PricePerHour.IsPositive() {
		return nil, generic.Invalid("price_per_hour", "must be positive, got %s", t.PricePerHour)
	}

	now := s.clock.Now()
	err := s.atomically(ctx, "register tutor", func(tx Store) error {
		if err := tx.SaveTutor(ctx, t); err != nil {
			return fmt.Errorf("save tutor: %w", err)
		}
		return tx.SaveAccount(ctx, generic.Account{ID: t.ID, Balance: generic.NewAmount(0), CreatedAt: now, UpdatedAt: now})
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("tutor registered", zap.String("tutor_id", string(t.ID)), zap.Stringer("price_per_hour", t.PricePerHour))
	return &t, nil
}

// Tutor returns the directory entry.
func (s *Service) Tutor(ctx context.Context, id generic.UserID) (*Tutor, error) {
	t, err := s.tutors.GetTutor(ctx, id)
	if generic.IsNotFound(err) {
		return nil, &generic.NotFoundError{Kind: "tutor", ID: string(id)}
	}
	return t, err
}

type SlotRequest struct {
	TutorID   generic.UserID
	DayOfWeek time.Weekday
	StartTime generic.TimeOfDay
	EndTime   generic.TimeOfDay
}

func (r SlotRequest) Validate() error {
	if r.TutorID == "" {
		return generic.Invalid("tutor_id", "is required")
	}
	if r.DayOfWeek < time.Sunday || r.DayOfWeek > time.Saturday {
		return generic.Invalid("day_of_week", "must be 0-6, got %d", r.DayOfWeek)
	}
	if !r.StartTime.Valid() || !r.EndTime.Valid() {
		return generic.Invalid("start_time", "times must be within the day")
	}
	if r.EndTime <= r.StartTime {
		return generic.Invalid("end_time", "must be after start_time")
	}
	return nil
}

// AddSlot declares a new free weekly window for the tutor. Overlapping
// windows on the same weekday are rejected.
func (s *Service) AddSlot(ctx context.Context, caller Caller, req SlotRequest) (*Slot, error) {
	if req.TutorID == "" {
		req.TutorID = caller.UserID
	}
	if caller.UserID != req.TutorID && caller.Role != RoleAdmin {
		return nil, forbidden(caller, "add slot for "+string(req.TutorID))
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	slot := Slot{
		ID:        SlotID(s.newID()),
		TutorID:   req.TutorID,
		DayOfWeek: req.DayOfWeek,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	}
	if _, err := s.Tutor(ctx, req.TutorID); err != nil {
		return nil, err
	}
	err := s.atomically(ctx, "add slot", func(tx Store) error {
		existing, err := tx.SlotsByTutor(ctx, req.TutorID)
		if err != nil {
			return fmt.Errorf("list slots: %w", err)
		}
		for _, e := range existing {
			if e.DayOfWeek == slot.DayOfWeek && e.StartTime < slot.EndTime && slot.StartTime < e.EndTime {
				return generic.Invalid("start_time", "overlaps slot %s (%s %s-%s)", e.ID, e.DayOfWeek, e.StartTime, e.EndTime)
			}
		}
		return tx.SaveSlot(ctx, slot)
	})
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

// TutorSlots lists the tutor's slots by weekday and start time.
func (s *Service) TutorSlots(ctx context.Context, tutorID generic.UserID) ([]Slot, error) {
	var out []Slot
	err := s.read(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.store.SlotsByTutor(ctx, tutorID)
		return err
	})
	return out, err
}
