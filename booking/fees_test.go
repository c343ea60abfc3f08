package booking_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/generic"
)

func TestComputeQuote(t *testing.T) {
	tests := []struct {
		name         string
		price        string
		slots        int
		months       int
		monthly      string
		amount       string
		deposit      string
		sessions     int
		sessionPrice string
	}{
		{"two slots two months", "100000", 2, 2, "800000", "1600000", "800000", 16, "100000"},
		{"single month has no deposit", "50000", 1, 1, "200000", "200000", "0", 4, "50000"},
		{"three slots six months", "25000", 3, 6, "300000", "1800000", "300000", 72, "25000"},
		{"fractional price", "12.50", 1, 3, "50", "150", "50", 12, "12.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := booking.ComputeQuote(generic.MustParseAmount(tt.price), tt.slots, tt.months)
			require.NoError(t, err)

			assert.Equal(t, tt.monthly, q.MonthlyFee.String())
			assert.Equal(t, tt.amount, q.Amount.String())
			assert.Equal(t, tt.monthly, q.InitialPayment.String())
			assert.Equal(t, tt.deposit, q.Deposit.String())
			assert.Equal(t, tt.sessions, q.Sessions)
			assert.Equal(t, tt.sessionPrice, q.SessionPrice.String())
			if tt.months > 1 {
				assert.Equal(t, booking.DepositHeld, q.DepositStatus)
			} else {
				assert.Equal(t, booking.DepositNone, q.DepositStatus)
			}
		})
	}
}

func TestComputeQuote_Invalid(t *testing.T) {
	_, err := booking.ComputeQuote(generic.NewAmount(0), 1, 1)
	assert.ErrorIs(t, err, generic.ErrValidation)

	_, err = booking.ComputeQuote(generic.NewAmount(100), 0, 1)
	assert.ErrorIs(t, err, generic.ErrValidation)

	_, err = booking.ComputeQuote(generic.NewAmount(100), 1, 0)
	assert.ErrorIs(t, err, generic.ErrValidation)
}

// =============================================================================
// SCHEDULE GENERATION
// =============================================================================

func slotOn(id string, day time.Weekday, hour int) booking.Slot {
	return booking.Slot{
		ID:        booking.SlotID(id),
		TutorID:   tutorID,
		DayOfWeek: day,
		StartTime: generic.NewTimeOfDay(hour, 0),
		EndTime:   generic.NewTimeOfDay(hour+1, 0),
	}
}

func TestFirstOccurrence(t *testing.T) {
	// fixtureNow is Saturday 10:00.
	tests := []struct {
		name string
		slot booking.Slot
		want string
	}{
		{"later this week", slotOn("a", time.Monday, 9), "2025-03-03"},
		{"tomorrow", slotOn("b", time.Sunday, 9), "2025-03-02"},
		{"today not yet started", slotOn("c", time.Saturday, 11), "2025-03-01"},
		{"today already started", slotOn("d", time.Saturday, 9), "2025-03-08"},
		{"today starting right now", slotOn("e", time.Saturday, 10), "2025-03-08"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := booking.FirstOccurrence(fixtureNow, tt.slot)
			assert.Equal(t, tt.want, got.Format("2006-01-02"))
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestFirstOccurrence_NormalizesToUTC(t *testing.T) {
	// Sunday 00:30 in UTC+2 is still Saturday 22:30 in UTC.
	now := time.Date(2025, 3, 2, 0, 30, 0, 0, time.FixedZone("EET", 2*3600))
	got := booking.FirstOccurrence(now, slotOn("a", time.Saturday, 23))
	assert.Equal(t, "2025-03-01", got.Format("2006-01-02"))
}

func TestGenerateSessions(t *testing.T) {
	// GIVEN: a Wednesday and a Monday slot
	slots := []booking.Slot{slotOn("wed", time.Wednesday, 18), slotOn("mon", time.Monday, 9)}

	// WHEN: expanding for two months
	sessions := booking.GenerateSessions(fixtureNow, slots, 2)

	// THEN: 2 slots × 4 weeks × 2 months, in start order
	require.Len(t, sessions, 16)
	for i := 1; i < len(sessions); i++ {
		assert.True(t, sessions[i-1].StartsAt().Before(sessions[i].StartsAt()), "session %d out of order", i)
	}
	assert.Equal(t, booking.SlotID("mon"), sessions[0].SlotID)
	assert.Equal(t, "2025-03-03", sessions[0].Date.Format("2006-01-02"))
	assert.Equal(t, booking.SlotID("wed"), sessions[1].SlotID)

	// AND: each slot repeats exactly weekly
	bySlot := map[booking.SlotID][]booking.Schedule{}
	for _, s := range sessions {
		assert.Equal(t, tutorID, s.TutorID)
		assert.Equal(t, booking.SessionScheduled, s.Status)
		bySlot[s.SlotID] = append(bySlot[s.SlotID], s)
	}
	for id, list := range bySlot {
		require.Len(t, list, 8, id)
		for i := 1; i < len(list); i++ {
			assert.Equal(t, 7*24*time.Hour, list[i].Date.Sub(list[i-1].Date), id)
		}
	}
}

func TestGenerateSessions_IsDeterministic(t *testing.T) {
	slots := []booking.Slot{slotOn("a", time.Friday, 9), slotOn("b", time.Friday, 9)}
	first := booking.GenerateSessions(fixtureNow, slots, 1)
	second := booking.GenerateSessions(fixtureNow, slots, 1)
	assert.Equal(t, first, second)

	// Same start time: ordered by slot id.
	assert.Equal(t, booking.SlotID("a"), first[0].SlotID)
	assert.Equal(t, booking.SlotID("b"), first[1].SlotID)
}

func TestGenerateSessions_NoMonths(t *testing.T) {
	assert.Empty(t, booking.GenerateSessions(fixtureNow, []booking.Slot{slotOn("a", time.Monday, 9)}, 0))
}
