/*
scenarios.go - Demo data loaders for local runs and demonstrations

PURPOSE:
  Populates a fresh store with a tutor, a learner and their money so the
  API can be exercised end to end without manual setup.

AVAILABLE SCENARIOS:
  marketplace:      One tutor at 100,000/hour with three weekly slots and a
                    learner holding 1,000,000
  pending-request:  marketplace plus a two-slot, two-month booking request
                    waiting for the tutor

USAGE VIA API (admin):
  POST /api/scenarios/load
  {"scenario_id": "pending-request"}

NOTE:
  Loaders are safe to run twice: existing tutors, slots and top-ups are
  reused. A second pending-request load reports the duplicate booking.
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/generic"
)

const (
	DemoTutorID   generic.UserID    = "tutor-demo"
	DemoLearnerID generic.UserID    = "learner-demo"
	DemoSubjectID booking.SubjectID = "math"
)

var scenarios = []ScenarioDTO{
	{
		ID:          "marketplace",
		Name:        "Marketplace",
		Description: "A tutor with weekly slots and a funded learner",
	},
	{
		ID:          "pending-request",
		Name:        "Pending Request",
		Description: "Marketplace plus a two-month booking awaiting approval",
	},
}

// SeedResult lists what a scenario created or found.
type SeedResult struct {
	Scenario string      `json:"scenario"`
	Tutor    TutorDTO    `json:"tutor"`
	Learner  AccountDTO  `json:"learner"`
	Slots    []SlotDTO   `json:"slots"`
	Booking  *BookingDTO `json:"booking,omitempty"`
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario loads a named scenario. Admin only.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	caller := callerOf(r)
	if caller.Role != booking.RoleAdmin {
		h.fail(w, r, "Failed to load scenario", &generic.ForbiddenError{UserID: caller.UserID, Action: "load scenarios"})
		return
	}
	var req LoadScenarioRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := Seed(r.Context(), h.Service, req.ScenarioID)
	if err != nil {
		h.fail(w, r, "Failed to load scenario", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Seed loads scenario id into the service's store.
func Seed(ctx context.Context, svc *booking.Service, id string) (*SeedResult, error) {
	switch id {
	case "marketplace":
		return loadMarketplace(ctx, svc)
	case "pending-request":
		res, err := loadMarketplace(ctx, svc)
		if err != nil {
			return nil, err
		}
		return loadPendingRequest(ctx, svc, res)
	default:
		return nil, generic.Invalid("scenario_id", "unknown scenario %q", id)
	}
}

func loadMarketplace(ctx context.Context, svc *booking.Service) (*SeedResult, error) {
	admin := booking.Caller{UserID: "admin-seed", Role: booking.RoleAdmin}

	tutor, err := svc.Tutor(ctx, DemoTutorID)
	if generic.IsNotFound(err) {
		tutor, err = svc.RegisterTutor(ctx, admin, booking.Tutor{ID: DemoTutorID, PricePerHour: generic.NewAmount(100000)})
	}
	if err != nil {
		return nil, fmt.Errorf("tutor: %w", err)
	}

	slots, err := svc.TutorSlots(ctx, DemoTutorID)
	if err != nil {
		return nil, fmt.Errorf("slots: %w", err)
	}
	if len(slots) == 0 {
		for _, req := range []booking.SlotRequest{
			{TutorID: DemoTutorID, DayOfWeek: time.Monday, StartTime: generic.NewTimeOfDay(9, 0), EndTime: generic.NewTimeOfDay(10, 0)},
			{TutorID: DemoTutorID, DayOfWeek: time.Wednesday, StartTime: generic.NewTimeOfDay(18, 0), EndTime: generic.NewTimeOfDay(19, 0)},
			{TutorID: DemoTutorID, DayOfWeek: time.Friday, StartTime: generic.NewTimeOfDay(9, 0), EndTime: generic.NewTimeOfDay(10, 0)},
		} {
			slot, err := svc.AddSlot(ctx, admin, req)
			if err != nil {
				return nil, fmt.Errorf("add slot: %w", err)
			}
			slots = append(slots, *slot)
		}
	}

	if _, err := svc.OpenAccount(ctx, admin, DemoLearnerID); err != nil {
		return nil, fmt.Errorf("learner account: %w", err)
	}
	_, err = svc.TopUp(ctx, admin, DemoLearnerID, generic.NewAmount(1000000), "seed")
	if err != nil && !generic.IsClientError(err) {
		return nil, fmt.Errorf("top up: %w", err)
	}
	learner, err := svc.Account(ctx, admin, DemoLearnerID)
	if err != nil {
		return nil, err
	}

	res := &SeedResult{
		Scenario: "marketplace",
		Tutor:    TutorDTO{ID: string(tutor.ID), PricePerHour: money(tutor.PricePerHour)},
		Learner:  toAccountDTO(learner),
	}
	for _, s := range slots {
		res.Slots = append(res.Slots, toSlotDTO(s))
	}
	return res, nil
}

func loadPendingRequest(ctx context.Context, svc *booking.Service, res *SeedResult) (*SeedResult, error) {
	learner := booking.Caller{UserID: DemoLearnerID, Role: booking.RoleLearner}
	b, err := svc.Create(ctx, learner, booking.CreateRequest{
		LearnerID:      DemoLearnerID,
		TutorID:        DemoTutorID,
		SubjectID:      DemoSubjectID,
		NumberOfMonths: 2,
		SlotIDs:        []booking.SlotID{booking.SlotID(res.Slots[0].ID), booking.SlotID(res.Slots[1].ID)},
		Note:           "demo request",
	})
	if err != nil {
		return nil, err
	}
	acct, err := svc.Account(ctx, learner, DemoLearnerID)
	if err != nil {
		return nil, err
	}
	dto := toBookingDTO(b)
	res.Scenario = "pending-request"
	res.Booking = &dto
	res.Learner = toAccountDTO(acct)
	return res, nil
}
