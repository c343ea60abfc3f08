package booking_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/generic"
	"github.com/warp/booking-engine/store/memory"
	"github.com/warp/booking-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// Saturday 10:00 UTC. The fixture slots fall on Monday, Wednesday and Friday.
var fixtureNow = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

const (
	learnerID generic.UserID = "learner-1"
	tutorID   generic.UserID = "tutor-1"
	subjectID                = booking.SubjectID("math")
)

var (
	learner = booking.Caller{UserID: learnerID, Role: booking.RoleLearner}
	tutor   = booking.Caller{UserID: tutorID, Role: booking.RoleTutor}
	admin   = booking.Caller{UserID: "admin-1", Role: booking.RoleAdmin}
)

// storeFactories lets a test run against every local store.
var storeFactories = map[string]func(t *testing.T) booking.TxStore{
	"memory": func(t *testing.T) booking.TxStore { return memory.New() },
	"sqlite": func(t *testing.T) booking.TxStore {
		s, err := sqlite.New(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	},
}

func forEachStore(t *testing.T, fn func(t *testing.T, newStore func(t *testing.T) booking.TxStore)) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) { fn(t, factory) })
	}
}

type eventLog struct {
	mu     sync.Mutex
	events []booking.Event
}

func (l *eventLog) Notify(_ context.Context, e booking.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return nil
}

func (l *eventLog) types() []booking.EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]booking.EventType, len(l.events))
	for i, e := range l.events {
		out[i] = e.Type
	}
	return out
}

func (l *eventLog) last() booking.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.events[len(l.events)-1]
}

type fixture struct {
	t      *testing.T
	ctx    context.Context
	svc    *booking.Service
	store  booking.TxStore
	clock  *generic.FixedClock
	events *eventLog
	slots  []booking.Slot // Monday 09:00, Wednesday 18:00, Friday 09:00
}

// newFixture registers tutor-1 at pricePerHour with three weekly slots and
// funds learner-1 with balance.
func newFixture(t *testing.T, store booking.TxStore, pricePerHour, balance int64, opts ...booking.Option) *fixture {
	t.Helper()
	f := &fixture{
		t:      t,
		ctx:    context.Background(),
		store:  store,
		clock:  generic.NewFixedClock(fixtureNow),
		events: &eventLog{},
	}
	opts = append([]booking.Option{
		booking.WithClock(f.clock),
		booking.WithNotifier(f.events),
		booking.WithReadRetry(1, time.Millisecond),
	}, opts...)
	f.svc = booking.NewService(store, opts...)

	_, err := f.svc.RegisterTutor(f.ctx, tutor, booking.Tutor{ID: tutorID, PricePerHour: generic.NewAmount(pricePerHour)})
	require.NoError(t, err)
	for _, sl := range []struct {
		day        time.Weekday
		start, end generic.TimeOfDay
	}{
		{time.Monday, generic.NewTimeOfDay(9, 0), generic.NewTimeOfDay(10, 0)},
		{time.Wednesday, generic.NewTimeOfDay(18, 0), generic.NewTimeOfDay(19, 0)},
		{time.Friday, generic.NewTimeOfDay(9, 0), generic.NewTimeOfDay(10, 0)},
	} {
		slot, err := f.svc.AddSlot(f.ctx, tutor, booking.SlotRequest{TutorID: tutorID, DayOfWeek: sl.day, StartTime: sl.start, EndTime: sl.end})
		require.NoError(t, err)
		f.slots = append(f.slots, *slot)
	}
	f.fund(learnerID, balance)
	return f
}

func (f *fixture) fund(id generic.UserID, amount int64) {
	f.t.Helper()
	_, err := f.svc.OpenAccount(f.ctx, admin, id)
	require.NoError(f.t, err)
	if amount > 0 {
		_, err = f.svc.TopUp(f.ctx, admin, id, generic.NewAmount(amount), "")
		require.NoError(f.t, err)
	}
}

func (f *fixture) request(months int, slots ...int) booking.CreateRequest {
	ids := make([]booking.SlotID, len(slots))
	for i, n := range slots {
		ids[i] = f.slots[n].ID
	}
	return booking.CreateRequest{
		LearnerID:      learnerID,
		TutorID:        tutorID,
		SubjectID:      subjectID,
		NumberOfMonths: months,
		SlotIDs:        ids,
	}
}

func (f *fixture) create(months int, slots ...int) *booking.Booking {
	f.t.Helper()
	b, err := f.svc.Create(f.ctx, learner, f.request(months, slots...))
	require.NoError(f.t, err)
	return b
}

func (f *fixture) approved(months int, slots ...int) *booking.Booking {
	f.t.Helper()
	b := f.create(months, slots...)
	b, err := f.svc.Approve(f.ctx, tutor, b.ID)
	require.NoError(f.t, err)
	return b
}

func (f *fixture) balance(id generic.UserID) generic.Amount {
	f.t.Helper()
	acct, err := f.svc.Account(f.ctx, admin, id)
	require.NoError(f.t, err)
	return acct.Balance
}

func (f *fixture) requireBalance(id generic.UserID, want int64) {
	f.t.Helper()
	got := f.balance(id)
	require.True(f.t, got.Equal(generic.NewAmount(want)), "balance of %s: got %s, want %d", id, got, want)
}

// attendAll moves the clock past the last session and marks every session attended.
func (f *fixture) attendAll(b *booking.Booking) {
	f.t.Helper()
	sessions, err := f.svc.Sessions(f.ctx, learner, b.ID)
	require.NoError(f.t, err)
	f.clock.Set(sessions[len(sessions)-1].EndsAt())
	for _, sc := range sessions {
		_, err := f.svc.MarkAttendance(f.ctx, learner, sc.ID, true)
		require.NoError(f.t, err)
	}
}

func (f *fixture) reconciled(ids ...generic.UserID) {
	f.t.Helper()
	for _, id := range ids {
		r, err := f.svc.Reconcile(f.ctx, admin, id)
		require.NoError(f.t, err)
		require.True(f.t, r.Balanced(), "ledger drift for %s: %s", id, r.Drift())
	}
}
