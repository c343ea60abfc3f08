// Package storetest is the behavior every booking.TxStore must share. Each
// store package runs it against its own constructor.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/generic"
)

// Factory returns an empty store. It registers its own cleanup.
type Factory func(t *testing.T) booking.TxStore

var (
	now    = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	errBad = errors.New("rolled back on purpose")
)

// Run executes the suite.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s booking.TxStore)
	}{
		{"RollbackLeavesNothing", testRollback},
		{"AccountsAndEntries", testAccountsAndEntries},
		{"IdempotencyKeyIsUnique", testIdempotencyKey},
		{"ClaimSlotsIsCompareAndSwap", testClaimSlots},
		{"OneActiveBookingPerTriple", testActiveTriple},
		{"UpdateBookingChecksVersion", testUpdateVersion},
		{"Schedules", testSchedules},
		{"PendingCreatedBefore", testPendingBefore},
		{"Tutors", testTutors},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) { tt.fn(t, newStore(t)) })
	}
}

func account(id generic.UserID) generic.Account {
	return generic.Account{ID: id, Balance: generic.NewAmount(0), CreatedAt: now, UpdatedAt: now}
}

func entry(id string, user generic.UserID, amount int64, key string) generic.Entry {
	return generic.Entry{
		ID:             generic.EntryID(id),
		UserID:         user,
		Amount:         generic.NewAmount(amount),
		BalanceChange:  generic.NewAmount(amount),
		BalanceAfter:   generic.NewAmount(amount),
		Type:           generic.EntryTopUp,
		Status:         generic.EntrySucceeded,
		Description:    "top-up",
		IdempotencyKey: key,
		CreatedAt:      now,
	}
}

func newBooking(id string, status booking.Status, createdAt time.Time) *booking.Booking {
	return &booking.Booking{
		ID:               booking.BookingID(id),
		LearnerID:        "learner-1",
		TutorID:          "tutor-1",
		SubjectID:        "math",
		Status:           status,
		DepositStatus:    booking.DepositNone,
		Amount:           generic.NewAmount(400),
		MonthlyPayment:   generic.NewAmount(400),
		InitialPayment:   generic.NewAmount(400),
		Deposit:          generic.NewAmount(0),
		SessionPrice:     generic.NewAmount(100),
		NumberOfMonths:   1,
		NumberOfSessions: 4,
		PaidMonths:       1,
		Version:          1,
		CreatedAt:        createdAt,
		UpdatedAt:        createdAt,
	}
}

func inTx(t *testing.T, s booking.TxStore, fn func(tx booking.Store) error) {
	t.Helper()
	require.NoError(t, s.WithTx(context.Background(), fn))
}

func testRollback(t *testing.T, s booking.TxStore) {
	ctx := context.Background()

	// GIVEN: a transaction that writes and then fails
	err := s.WithTx(ctx, func(tx booking.Store) error {
		if err := tx.SaveAccount(ctx, account("u-1")); err != nil {
			return err
		}
		if err := tx.AppendEntry(ctx, entry("e-1", "u-1", 10, "k-1")); err != nil {
			return err
		}
		if err := tx.SaveTutor(ctx, booking.Tutor{ID: "t-1", PricePerHour: generic.NewAmount(5)}); err != nil {
			return err
		}
		return errBad
	})

	// THEN: the error comes back unchanged and nothing was kept
	assert.ErrorIs(t, err, errBad)
	_, err = s.GetAccount(ctx, "u-1")
	assert.True(t, generic.IsNotFound(err))
	exists, err := s.EntryExists(ctx, "k-1")
	require.NoError(t, err)
	assert.False(t, exists)
	_, err = s.GetTutor(ctx, "t-1")
	assert.True(t, generic.IsNotFound(err))
}

func testAccountsAndEntries(t *testing.T, s booking.TxStore) {
	ctx := context.Background()
	inTx(t, s, func(tx booking.Store) error {
		if err := tx.SaveAccount(ctx, account("u-1")); err != nil {
			return err
		}
		if err := tx.SetBalance(ctx, "u-1", generic.MustParseAmount("10.50")); err != nil {
			return err
		}
		if err := tx.AppendEntry(ctx, entry("e-1", "u-1", 10, "")); err != nil {
			return err
		}
		return tx.AppendEntry(ctx, entry("e-2", "u-1", 20, ""))
	})

	// Saving again never resets the balance.
	require.NoError(t, s.SaveAccount(ctx, account("u-1")))

	acct, err := s.GetAccount(ctx, "u-1")
	require.NoError(t, err)
	assert.True(t, acct.Balance.Equal(generic.MustParseAmount("10.5")), acct.Balance.String())

	entries, err := s.Entries(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, generic.EntryID("e-1"), entries[0].ID)
	assert.Equal(t, generic.EntryID("e-2"), entries[1].ID)
	assert.Equal(t, generic.EntryTopUp, entries[1].Type)
	assert.True(t, entries[1].Amount.Equal(generic.NewAmount(20)))

	none, err := s.Entries(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)

	err = s.SetBalance(ctx, "nobody", generic.NewAmount(1))
	assert.True(t, generic.IsNotFound(err))
}

func testIdempotencyKey(t *testing.T, s booking.TxStore) {
	ctx := context.Background()
	inTx(t, s, func(tx booking.Store) error {
		if err := tx.SaveAccount(ctx, account("u-1")); err != nil {
			return err
		}
		return tx.AppendEntry(ctx, entry("e-1", "u-1", 10, "wallet:u-1:topup:card"))
	})

	exists, err := s.EntryExists(ctx, "wallet:u-1:topup:card")
	require.NoError(t, err)
	assert.True(t, exists)

	err = s.WithTx(ctx, func(tx booking.Store) error {
		return tx.AppendEntry(ctx, entry("e-2", "u-1", 10, "wallet:u-1:topup:card"))
	})
	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)

	entries, err := s.Entries(ctx, "u-1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func testClaimSlots(t *testing.T, s booking.TxStore) {
	ctx := context.Background()
	for _, id := range []booking.SlotID{"s-1", "s-2"} {
		require.NoError(t, s.SaveSlot(ctx, booking.Slot{
			ID:        id,
			TutorID:   "tutor-1",
			DayOfWeek: time.Monday,
			StartTime: generic.NewTimeOfDay(9, 0),
			EndTime:   generic.NewTimeOfDay(10, 0),
		}))
	}

	n, err := s.ClaimSlots(ctx, []booking.SlotID{"s-1"}, "b-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Only the free slot is taken; the claimed one keeps its owner.
	n, err = s.ClaimSlots(ctx, []booking.SlotID{"s-1", "s-2", "missing"}, "b-2")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	slots, err := s.GetSlots(ctx, []booking.SlotID{"s-1", "s-2"})
	require.NoError(t, err)
	require.Len(t, slots, 2)
	owners := map[booking.SlotID]booking.BookingID{}
	for _, sl := range slots {
		assert.True(t, sl.Claimed)
		owners[sl.ID] = sl.BookingID
	}
	assert.Equal(t, booking.BookingID("b-1"), owners["s-1"])
	assert.Equal(t, booking.BookingID("b-2"), owners["s-2"])

	require.NoError(t, s.ReleaseSlots(ctx, "b-1"))
	byTutor, err := s.SlotsByTutor(ctx, "tutor-1")
	require.NoError(t, err)
	require.Len(t, byTutor, 2)
	assert.False(t, byTutor[0].Claimed)
	assert.Empty(t, byTutor[0].BookingID)
	assert.True(t, byTutor[1].Claimed)
}

func testActiveTriple(t *testing.T, s booking.TxStore) {
	ctx := context.Background()
	inTx(t, s, func(tx booking.Store) error {
		return tx.CreateBooking(ctx, newBooking("b-1", booking.StatusPending, now))
	})

	found, err := s.FindActiveBooking(ctx, "learner-1", "tutor-1", "math")
	require.NoError(t, err)
	assert.Equal(t, booking.BookingID("b-1"), found.ID)

	err = s.WithTx(ctx, func(tx booking.Store) error {
		return tx.CreateBooking(ctx, newBooking("b-2", booking.StatusPending, now))
	})
	assert.ErrorIs(t, err, booking.ErrDuplicateBooking)

	// Terminal bookings do not count.
	inTx(t, s, func(tx booking.Store) error {
		return tx.CreateBooking(ctx, newBooking("b-3", booking.StatusCancelled, now))
	})

	_, err = s.FindActiveBooking(ctx, "learner-1", "tutor-1", "physics")
	assert.True(t, generic.IsNotFound(err))
}

func testUpdateVersion(t *testing.T, s booking.TxStore) {
	ctx := context.Background()
	inTx(t, s, func(tx booking.Store) error {
		return tx.CreateBooking(ctx, newBooking("b-1", booking.StatusPending, now))
	})

	var stale *booking.Booking
	inTx(t, s, func(tx booking.Store) error {
		b, err := tx.LockBooking(ctx, "b-1")
		if err != nil {
			return err
		}
		copied := *b
		stale = &copied
		b.Status = booking.StatusApproved
		b.PaidSessions = 2
		b.Reported = true
		return tx.UpdateBooking(ctx, b)
	})

	got, err := s.GetBooking(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, booking.StatusApproved, got.Status)
	assert.Equal(t, 2, got.PaidSessions)
	assert.True(t, got.Reported)
	assert.Equal(t, 2, got.Version)
	assert.True(t, got.SessionPrice.Equal(generic.NewAmount(100)))
	assert.True(t, got.CreatedAt.Equal(now))

	err = s.WithTx(ctx, func(tx booking.Store) error {
		stale.Status = booking.StatusRejected
		return tx.UpdateBooking(ctx, stale)
	})
	assert.ErrorIs(t, err, generic.ErrConcurrentModification)

	_, err = s.GetBooking(ctx, "missing")
	assert.True(t, generic.IsNotFound(err))
}

func testSchedules(t *testing.T, s booking.TxStore) {
	ctx := context.Background()
	day := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	mk := func(id string, slot booking.SlotID, date time.Time, hour int) booking.Schedule {
		return booking.Schedule{
			ID:        booking.ScheduleID(id),
			BookingID: "b-1",
			SlotID:    slot,
			TutorID:   "tutor-1",
			LearnerID: "learner-1",
			Date:      date,
			StartTime: generic.NewTimeOfDay(hour, 0),
			EndTime:   generic.NewTimeOfDay(hour+1, 0),
			Status:    booking.SessionScheduled,
		}
	}
	inTx(t, s, func(tx booking.Store) error {
		if err := tx.CreateBooking(ctx, newBooking("b-1", booking.StatusApproved, now)); err != nil {
			return err
		}
		return tx.CreateSchedules(ctx, []booking.Schedule{
			mk("c", "s-1", day.AddDate(0, 0, 7), 9),
			mk("b", "s-2", day, 18),
			mk("a", "s-1", day, 9),
		})
	})

	list, err := s.SchedulesByBooking(ctx, "b-1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []booking.ScheduleID{"a", "b", "c"}, []booking.ScheduleID{list[0].ID, list[1].ID, list[2].ID})
	assert.True(t, list[0].Date.Equal(day))
	assert.Equal(t, generic.NewTimeOfDay(18, 0), list[1].StartTime)

	require.NoError(t, s.SetAttended(ctx, "b", true))
	sc, err := s.GetSchedule(ctx, "b")
	require.NoError(t, err)
	assert.True(t, sc.Attended)
	assert.Equal(t, booking.SessionAttended, sc.Status)

	assert.True(t, generic.IsNotFound(s.SetAttended(ctx, "missing", true)))
	_, err = s.GetSchedule(ctx, "missing")
	assert.True(t, generic.IsNotFound(err))

	n, err := s.DeleteSchedules(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	list, err = s.SchedulesByBooking(ctx, "b-1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func testPendingBefore(t *testing.T, s booking.TxStore) {
	ctx := context.Background()
	inTx(t, s, func(tx booking.Store) error {
		older := newBooking("b-old", booking.StatusPending, now.Add(-96*time.Hour))
		newer := newBooking("b-new", booking.StatusPending, now.Add(-80*time.Hour))
		newer.SubjectID = "physics"
		fresh := newBooking("b-fresh", booking.StatusPending, now.Add(-time.Hour))
		fresh.SubjectID = "chemistry"
		done := newBooking("b-done", booking.StatusCancelled, now.Add(-100*time.Hour))
		for _, b := range []*booking.Booking{newer, fresh, done, older} {
			if err := tx.CreateBooking(ctx, b); err != nil {
				return err
			}
		}
		return nil
	})

	stale, err := s.PendingCreatedBefore(ctx, now.Add(-72*time.Hour))
	require.NoError(t, err)
	require.Len(t, stale, 2)
	assert.Equal(t, booking.BookingID("b-old"), stale[0].ID)
	assert.Equal(t, booking.BookingID("b-new"), stale[1].ID)
}

func testTutors(t *testing.T, s booking.TxStore) {
	ctx := context.Background()
	require.NoError(t, s.SaveTutor(ctx, booking.Tutor{ID: "t-1", PricePerHour: generic.MustParseAmount("99.90")}))
	require.NoError(t, s.SaveTutor(ctx, booking.Tutor{ID: "t-1", PricePerHour: generic.NewAmount(120)}))

	got, err := s.GetTutor(ctx, "t-1")
	require.NoError(t, err)
	assert.True(t, got.PricePerHour.Equal(generic.NewAmount(120)))

	_, err = s.GetTutor(ctx, "missing")
	assert.True(t, generic.IsNotFound(err))
}
