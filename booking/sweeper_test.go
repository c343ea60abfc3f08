package booking_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/generic"
	"github.com/warp/booking-engine/store/memory"
)

func newSweeper(t *testing.T, f *fixture) *booking.ExpirySweeper {
	return booking.NewExpirySweeper(f.svc, booking.SweeperConfig{
		Interval:    time.Hour,
		PendingTTL:  72 * time.Hour,
		Concurrency: 2,
		Logger:      zaptest.NewLogger(t),
	})
}

func TestSweeper_ExpiresStalePending(t *testing.T) {
	forEachStore(t, func(t *testing.T, newStore func(t *testing.T) booking.TxStore) {
		// GIVEN: a pending booking left alone for 73 hours
		f := newFixture(t, newStore(t), 100000, 1000000)
		b := f.create(2, 0, 1)
		f.clock.Advance(73 * time.Hour)

		// WHEN: the sweeper runs
		report, err := newSweeper(t, f).RunNow(f.ctx)
		require.NoError(t, err)

		// THEN: the booking is cancelled with a full refund
		assert.Equal(t, 1, report.Scanned)
		assert.Equal(t, 1, report.Expired)
		got, err := f.svc.Get(f.ctx, admin, b.ID)
		require.NoError(t, err)
		assert.Equal(t, booking.StatusCancelled, got.Status)
		assert.Equal(t, booking.DepositRefunded, got.DepositStatus)
		assert.Empty(t, got.ScheduleIDs)
		f.requireBalance(learnerID, 1000000)
		f.reconciled(learnerID)

		slots, err := f.svc.TutorSlots(f.ctx, tutorID)
		require.NoError(t, err)
		assert.False(t, slots[0].Claimed)

		last := f.events.last()
		assert.Equal(t, booking.EventExpired, last.Type)
		assert.Equal(t, booking.SystemCaller.UserID, last.Actor)
	})
}

func TestSweeper_LeavesFreshAndApprovedBookings(t *testing.T) {
	// GIVEN: one approved booking and one pending booking 71 hours old
	f := newFixture(t, memory.New(), 100000, 2000000)
	approved := f.approved(1, 0)

	req := f.request(1, 1)
	req.SubjectID = "physics"
	pending, err := f.svc.Create(f.ctx, learner, req)
	require.NoError(t, err)
	f.clock.Advance(71 * time.Hour)

	// WHEN: sweeping
	report, err := newSweeper(t, f).RunNow(f.ctx)
	require.NoError(t, err)

	// THEN: nothing expires
	assert.Equal(t, 0, report.Scanned)
	for id, want := range map[booking.BookingID]booking.Status{
		approved.ID: booking.StatusApproved,
		pending.ID:  booking.StatusPending,
	} {
		got, err := f.svc.Get(f.ctx, admin, id)
		require.NoError(t, err)
		assert.Equal(t, want, got.Status)
	}
}

func TestExpireBooking_RechecksUnderLock(t *testing.T) {
	f := newFixture(t, memory.New(), 100000, 1000000)
	b := f.create(1, 0)
	cutoff := f.clock.Now()

	// Created at the cutoff, not before it.
	_, err := f.svc.ExpireBooking(f.ctx, b.ID, cutoff)
	assert.ErrorIs(t, err, booking.ErrInvalidTransition)

	_, err = f.svc.Approve(f.ctx, tutor, b.ID)
	require.NoError(t, err)
	_, err = f.svc.ExpireBooking(f.ctx, b.ID, cutoff.Add(time.Hour))
	assert.ErrorIs(t, err, booking.ErrInvalidTransition)

	_, err = f.svc.Cancel(f.ctx, learner, b.ID)
	require.NoError(t, err)
	_, err = f.svc.ExpireBooking(f.ctx, b.ID, cutoff.Add(time.Hour))
	assert.ErrorIs(t, err, booking.ErrAlreadyTerminal)
}

func TestExpireBooking_RacesWithCancel(t *testing.T) {
	forEachStore(t, func(t *testing.T, newStore func(t *testing.T) booking.TxStore) {
		// GIVEN: a stale pending booking
		f := newFixture(t, newStore(t), 100000, 1000000)
		b := f.create(2, 0, 1)
		f.clock.Advance(73 * time.Hour)
		cutoff := f.clock.Now().Add(-72 * time.Hour)

		// WHEN: the learner cancels while the sweeper expires it
		var wg sync.WaitGroup
		var cancelErr, expireErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, cancelErr = f.svc.Cancel(context.Background(), learner, b.ID)
		}()
		go func() {
			defer wg.Done()
			_, expireErr = f.svc.ExpireBooking(context.Background(), b.ID, cutoff)
		}()
		wg.Wait()

		// THEN: exactly one wins and the other sees a terminal booking
		errs := []error{cancelErr, expireErr}
		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, booking.ErrAlreadyTerminal)
		}
		assert.Equal(t, 1, succeeded)

		// AND: the refund happened once
		f.requireBalance(learnerID, 1000000)
		entries, err := f.svc.Statement(f.ctx, learner, learnerID)
		require.NoError(t, err)
		refunds := 0
		for _, e := range entries {
			if e.Type == generic.EntryRefund {
				refunds++
			}
		}
		assert.Equal(t, 1, refunds)
	})
}

func TestSweeper_SkipsBookingsResolvedMeanwhile(t *testing.T) {
	// GIVEN: a stale booking the tutor approves while a pass is in flight
	f := newFixture(t, memory.New(), 100000, 1000000)
	b := f.create(1, 0)
	f.clock.Advance(73 * time.Hour)

	stale, err := f.svc.PendingBefore(f.ctx, f.clock.Now().Add(-72*time.Hour))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	_, err = f.svc.Approve(f.ctx, tutor, b.ID)
	require.NoError(t, err)

	// WHEN: expiring the candidate found before the approval
	_, err = f.svc.ExpireBooking(f.ctx, stale[0].ID, f.clock.Now().Add(-72*time.Hour))

	// THEN: it is left alone
	assert.True(t, errors.Is(err, booking.ErrInvalidTransition))
	f.requireBalance(learnerID, 600000)
}

func TestSweeper_StartStop(t *testing.T) {
	f := newFixture(t, memory.New(), 100000, 1000000)
	b := f.create(1, 0)
	f.clock.Advance(100 * time.Hour)

	sw := newSweeper(t, f)
	_, ok := sw.LastRun()
	assert.False(t, ok)
	assert.True(t, sw.NextRunTime().IsZero())

	before := time.Now()
	sw.Start(f.ctx)
	sw.Start(f.ctx) // second start is a no-op

	require.Eventually(t, func() bool {
		r, ok := sw.LastRun()
		return ok && r.Expired == 1
	}, 2*time.Second, 10*time.Millisecond)
	after := time.Now()

	got, err := f.svc.Get(f.ctx, admin, b.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, got.Status)

	// The next pass is one interval after the loop started.
	next := sw.NextRunTime()
	assert.WithinRange(t, next, before.Add(time.Hour), after.Add(time.Hour))

	// A manual pass does not move the ticker.
	_, err = sw.RunNow(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, next, sw.NextRunTime())

	sw.Stop()
	sw.Stop()
	assert.True(t, sw.NextRunTime().IsZero())
}
