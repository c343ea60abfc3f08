package booking_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/generic"
	"github.com/warp/booking-engine/store/memory"
)

// approvedSingle books one slot for one month at 50,000 a session and
// leaves the learner exactly one session price.
func approvedSingle(t *testing.T, store booking.TxStore) (*fixture, *booking.Booking, []booking.Schedule) {
	t.Helper()
	f := newFixture(t, store, 50000, 250000)
	b := f.approved(1, 0)
	f.requireBalance(learnerID, 50000)
	sessions, err := f.svc.Sessions(f.ctx, learner, b.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 4)
	return f, b, sessions
}

func TestMarkAttendance_TransfersAndReverses(t *testing.T) {
	forEachStore(t, func(t *testing.T, newStore func(t *testing.T) booking.TxStore) {
		// GIVEN: the first session has started
		f, b, sessions := approvedSingle(t, newStore(t))
		f.clock.Set(sessions[0].StartsAt())

		// WHEN: the learner marks it attended
		res, err := f.svc.MarkAttendance(f.ctx, learner, sessions[0].ID, true)
		require.NoError(t, err)

		// THEN: one session price moved from learner to tutor
		assert.Equal(t, 1, res.Booking.PaidSessions)
		assert.True(t, res.Schedule.Attended)
		assert.Equal(t, booking.SessionAttended, res.Schedule.Status)
		assert.True(t, res.Transferred.Equal(generic.NewAmount(50000)))
		f.requireBalance(learnerID, 0)
		f.requireBalance(tutorID, 50000)

		got, err := f.svc.Sessions(f.ctx, learner, b.ID)
		require.NoError(t, err)
		assert.True(t, got[0].Attended)

		// WHEN: the learner takes it back
		res, err = f.svc.MarkAttendance(f.ctx, learner, sessions[0].ID, false)
		require.NoError(t, err)

		// THEN: both balances are restored
		assert.Equal(t, 0, res.Booking.PaidSessions)
		assert.False(t, res.TutorDebitSkipped)
		f.requireBalance(learnerID, 50000)
		f.requireBalance(tutorID, 0)
		f.reconciled(learnerID, tutorID)

		tutorEntries, err := f.svc.Statement(f.ctx, tutor, tutorID)
		require.NoError(t, err)
		require.Len(t, tutorEntries, 2)
		assert.Equal(t, generic.EntryEarning, tutorEntries[0].Type)
		assert.Equal(t, generic.EntrySpend, tutorEntries[1].Type)
	})
}

func TestMarkAttendance_Unchanged(t *testing.T) {
	f, _, sessions := approvedSingle(t, memory.New())
	f.clock.Set(sessions[0].StartsAt())

	_, err := f.svc.MarkAttendance(f.ctx, learner, sessions[0].ID, false)
	var unchanged *booking.AttendanceUnchangedError
	require.ErrorAs(t, err, &unchanged)
	assert.False(t, unchanged.Attended)

	_, err = f.svc.MarkAttendance(f.ctx, learner, sessions[0].ID, true)
	require.NoError(t, err)

	// A retried request does not charge twice.
	_, err = f.svc.MarkAttendance(f.ctx, learner, sessions[0].ID, true)
	assert.ErrorIs(t, err, booking.ErrAttendanceUnchanged)
	f.requireBalance(learnerID, 0)
	f.requireBalance(tutorID, 50000)
}

func TestMarkAttendance_TooEarly(t *testing.T) {
	f, _, sessions := approvedSingle(t, memory.New())

	_, err := f.svc.MarkAttendance(f.ctx, learner, sessions[0].ID, true)

	var early *booking.TooEarlyError
	require.ErrorAs(t, err, &early)
	assert.Equal(t, sessions[0].StartsAt(), early.StartsAt)
	f.requireBalance(learnerID, 50000)
}

func TestMarkAttendance_RequiresApprovedBooking(t *testing.T) {
	f := newFixture(t, memory.New(), 50000, 250000)
	b := f.create(1, 0)
	sessions, err := f.svc.Sessions(f.ctx, learner, b.ID)
	require.NoError(t, err)
	f.clock.Set(sessions[0].EndsAt())

	_, err = f.svc.MarkAttendance(f.ctx, learner, sessions[0].ID, true)
	assert.ErrorIs(t, err, booking.ErrInvalidTransition)
}

func TestMarkAttendance_CompletedBooking(t *testing.T) {
	f := newFixture(t, memory.New(), 50000, 1000000)
	b := f.approved(1, 0)
	sessions, err := f.svc.Sessions(f.ctx, learner, b.ID)
	require.NoError(t, err)
	f.attendAll(b)
	_, err = f.svc.Finish(f.ctx, learner, b.ID)
	require.NoError(t, err)

	_, err = f.svc.MarkAttendance(f.ctx, learner, sessions[0].ID, false)
	assert.ErrorIs(t, err, booking.ErrAlreadyTerminal)
}

func TestMarkAttendance_OnlyTheLearner(t *testing.T) {
	f, _, sessions := approvedSingle(t, memory.New())
	f.clock.Set(sessions[0].StartsAt())

	_, err := f.svc.MarkAttendance(f.ctx, tutor, sessions[0].ID, true)
	assert.ErrorIs(t, err, generic.ErrForbidden)
	_, err = f.svc.MarkAttendance(f.ctx, admin, sessions[0].ID, true)
	assert.ErrorIs(t, err, generic.ErrForbidden)

	_, err = f.svc.MarkAttendance(f.ctx, learner, "missing", true)
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func TestMarkAttendance_LearnerCannotAffordSession(t *testing.T) {
	forEachStore(t, func(t *testing.T, newStore func(t *testing.T) booking.TxStore) {
		// GIVEN: the learner spent their last session price on session 1
		f, b, sessions := approvedSingle(t, newStore(t))
		f.clock.Set(sessions[1].StartsAt())
		_, err := f.svc.MarkAttendance(f.ctx, learner, sessions[0].ID, true)
		require.NoError(t, err)

		// WHEN: marking session 2
		_, err = f.svc.MarkAttendance(f.ctx, learner, sessions[1].ID, true)

		// THEN: nothing moves and the flag stays down
		var insufficient *generic.InsufficientBalanceError
		require.ErrorAs(t, err, &insufficient)
		assert.Equal(t, learnerID, insufficient.UserID)

		got, err := f.svc.Get(f.ctx, learner, b.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.PaidSessions)
		list, err := f.svc.Sessions(f.ctx, learner, b.ID)
		require.NoError(t, err)
		assert.False(t, list[1].Attended)
		f.requireBalance(tutorID, 50000)
		f.reconciled(learnerID, tutorID)
	})
}

func TestMarkAttendance_ReversalSkipsSpentEarning(t *testing.T) {
	forEachStore(t, func(t *testing.T, newStore func(t *testing.T) booking.TxStore) {
		// GIVEN: the tutor withdrew the earning of an attended session
		f, _, sessions := approvedSingle(t, newStore(t))
		f.clock.Set(sessions[0].StartsAt())
		_, err := f.svc.MarkAttendance(f.ctx, learner, sessions[0].ID, true)
		require.NoError(t, err)
		_, err = f.svc.Withdraw(f.ctx, tutor, tutorID, generic.NewAmount(50000), "payout-1")
		require.NoError(t, err)

		// WHEN: the learner reverses attendance
		res, err := f.svc.MarkAttendance(f.ctx, learner, sessions[0].ID, false)
		require.NoError(t, err)

		// THEN: the learner is made whole and the tutor is not taken negative
		assert.True(t, res.TutorDebitSkipped)
		assert.Equal(t, 0, res.Booking.PaidSessions)
		f.requireBalance(learnerID, 50000)
		f.requireBalance(tutorID, 0)
		f.reconciled(learnerID, tutorID)
	})
}

func TestMarkAttendance_RepeatedTogglesConserveBalances(t *testing.T) {
	forEachStore(t, func(t *testing.T, newStore func(t *testing.T) booking.TxStore) {
		// GIVEN: a started session and the learner holding exactly one session price
		f, b, sessions := approvedSingle(t, newStore(t))
		f.clock.Set(sessions[0].StartsAt())

		// WHEN: attendance is toggled on and off three times
		for i := 0; i < 3; i++ {
			res, err := f.svc.MarkAttendance(f.ctx, learner, sessions[0].ID, true)
			require.NoError(t, err)
			assert.Equal(t, 1, res.Booking.PaidSessions)

			res, err = f.svc.MarkAttendance(f.ctx, learner, sessions[0].ID, false)
			require.NoError(t, err)
			assert.Equal(t, 0, res.Booking.PaidSessions)
			assert.False(t, res.TutorDebitSkipped)
		}

		// THEN: both parties end where they started
		f.requireBalance(learnerID, 50000)
		f.requireBalance(tutorID, 0)
		f.reconciled(learnerID, tutorID)

		got, err := f.svc.Get(f.ctx, learner, b.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, got.PaidSessions)

		// AND: every move is on the statements, three each way per party
		assert.Equal(t, 6, f.entryCount(tutorID))
	})
}
