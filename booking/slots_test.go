package booking_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/generic"
	"github.com/warp/booking-engine/store/memory"
)

func TestRegisterTutor(t *testing.T) {
	f := newFixture(t, memory.New(), 100000, 0)

	got, err := f.svc.Tutor(f.ctx, tutorID)
	require.NoError(t, err)
	assert.True(t, got.PricePerHour.Equal(generic.NewAmount(100000)))
	f.requireBalance(tutorID, 0)

	// Re-registering updates the price and keeps the account.
	_, err = f.svc.RegisterTutor(f.ctx, tutor, booking.Tutor{ID: tutorID, PricePerHour: generic.NewAmount(120000)})
	require.NoError(t, err)
	got, err = f.svc.Tutor(f.ctx, tutorID)
	require.NoError(t, err)
	assert.True(t, got.PricePerHour.Equal(generic.NewAmount(120000)))

	_, err = f.svc.RegisterTutor(f.ctx, learner, booking.Tutor{ID: tutorID, PricePerHour: generic.NewAmount(1)})
	assert.ErrorIs(t, err, generic.ErrForbidden)
	_, err = f.svc.RegisterTutor(f.ctx, admin, booking.Tutor{ID: "tutor-2", PricePerHour: generic.NewAmount(0)})
	assert.ErrorIs(t, err, generic.ErrValidation)

	_, err = f.svc.Tutor(f.ctx, "nobody")
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func TestAddSlot(t *testing.T) {
	f := newFixture(t, memory.New(), 100000, 0)
	monday := func(startHour, endHour int) booking.SlotRequest {
		return booking.SlotRequest{
			TutorID:   tutorID,
			DayOfWeek: time.Monday,
			StartTime: generic.NewTimeOfDay(startHour, 0),
			EndTime:   generic.NewTimeOfDay(endHour, 0),
		}
	}

	// Back to back with the fixture's Monday 09:00-10:00 slot.
	slot, err := f.svc.AddSlot(f.ctx, tutor, monday(10, 11))
	require.NoError(t, err)
	assert.False(t, slot.Claimed)
	assert.NotEmpty(t, slot.ID)

	tests := []struct {
		name string
		req  booking.SlotRequest
	}{
		{"overlaps start", monday(8, 10)},
		{"inside existing", booking.SlotRequest{TutorID: tutorID, DayOfWeek: time.Monday, StartTime: generic.NewTimeOfDay(9, 15), EndTime: generic.NewTimeOfDay(9, 45)}},
		{"end before start", monday(15, 14)},
		{"zero length", monday(15, 15)},
		{"bad weekday", booking.SlotRequest{TutorID: tutorID, DayOfWeek: 7, StartTime: 60, EndTime: 120}},
		{"beyond midnight", booking.SlotRequest{TutorID: tutorID, DayOfWeek: time.Sunday, StartTime: generic.NewTimeOfDay(23, 0), EndTime: generic.NewTimeOfDay(25, 0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.AddSlot(f.ctx, tutor, tt.req)
			assert.ErrorIs(t, err, generic.ErrValidation)
		})
	}

	slots, err := f.svc.TutorSlots(f.ctx, tutorID)
	require.NoError(t, err)
	require.Len(t, slots, 4)
	assert.Equal(t, time.Monday, slots[0].DayOfWeek)
	assert.Equal(t, generic.NewTimeOfDay(9, 0), slots[0].StartTime)
	assert.Equal(t, slot.ID, slots[1].ID)
	assert.Equal(t, time.Friday, slots[3].DayOfWeek)
}

func TestAddSlot_Permissions(t *testing.T) {
	f := newFixture(t, memory.New(), 100000, 0)
	req := booking.SlotRequest{
		TutorID:   tutorID,
		DayOfWeek: time.Tuesday,
		StartTime: generic.NewTimeOfDay(9, 0),
		EndTime:   generic.NewTimeOfDay(10, 0),
	}

	_, err := f.svc.AddSlot(f.ctx, learner, req)
	assert.ErrorIs(t, err, generic.ErrForbidden)

	_, err = f.svc.AddSlot(f.ctx, admin, req)
	assert.NoError(t, err)

	req.TutorID = "unregistered"
	_, err = f.svc.AddSlot(f.ctx, admin, req)
	assert.ErrorIs(t, err, generic.ErrNotFound)
}
