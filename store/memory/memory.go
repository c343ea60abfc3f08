// Package memory provides an in-memory booking.TxStore (for testing/dev).
package memory

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation
// =============================================================================

// Memory serializes writers on one lock. WithTx runs against a copy of the
// data and swaps it in on success, so a failed transaction leaves nothing
// behind.
type Memory struct {
	mu   sync.RWMutex
	data *state
}

type state struct {
	accounts  map[generic.UserID]generic.Account
	entries   map[generic.UserID][]generic.Entry
	keys      map[string]bool
	tutors    map[generic.UserID]booking.Tutor
	slots     map[booking.SlotID]booking.Slot
	bookings  map[booking.BookingID]booking.Booking
	schedules map[booking.ScheduleID]booking.Schedule
}

func New() *Memory {
	return &Memory{data: &state{
		accounts:  make(map[generic.UserID]generic.Account),
		entries:   make(map[generic.UserID][]generic.Entry),
		keys:      make(map[string]bool),
		tutors:    make(map[generic.UserID]booking.Tutor),
		slots:     make(map[booking.SlotID]booking.Slot),
		bookings:  make(map[booking.BookingID]booking.Booking),
		schedules: make(map[booking.ScheduleID]booking.Schedule),
	}}
}

func (s *state) clone() *state {
	entries := make(map[generic.UserID][]generic.Entry, len(s.entries))
	for id, es := range s.entries {
		entries[id] = append([]generic.Entry(nil), es...)
	}
	return &state{
		accounts:  maps.Clone(s.accounts),
		entries:   entries,
		keys:      maps.Clone(s.keys),
		tutors:    maps.Clone(s.tutors),
		slots:     maps.Clone(s.slots),
		bookings:  maps.Clone(s.bookings),
		schedules: maps.Clone(s.schedules),
	}
}

// WithTx runs fn on a private copy and commits it if fn succeeds.
func (m *Memory) WithTx(ctx context.Context, fn func(booking.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.data.clone()
	if err := fn(&view{s: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.data = work
	return nil
}

// =============================================================================
// LOCKED ENTRY POINTS
// =============================================================================

func (m *Memory) readView() (*view, func()) {
	m.mu.RLock()
	return &view{s: m.data}, m.mu.RUnlock
}

func (m *Memory) writeView() (*view, func()) {
	m.mu.Lock()
	return &view{s: m.data}, m.mu.Unlock
}

func (m *Memory) SaveAccount(ctx context.Context, a generic.Account) error {
	v, done := m.writeView()
	defer done()
	return v.SaveAccount(ctx, a)
}

func (m *Memory) GetAccount(ctx context.Context, id generic.UserID) (*generic.Account, error) {
	v, done := m.readView()
	defer done()
	return v.GetAccount(ctx, id)
}

func (m *Memory) LockAccount(ctx context.Context, id generic.UserID) (*generic.Account, error) {
	return m.GetAccount(ctx, id)
}

func (m *Memory) SetBalance(ctx context.Context, id generic.UserID, bal generic.Amount) error {
	v, done := m.writeView()
	defer done()
	return v.SetBalance(ctx, id, bal)
}

func (m *Memory) AppendEntry(ctx context.Context, e generic.Entry) error {
	v, done := m.writeView()
	defer done()
	return v.AppendEntry(ctx, e)
}

func (m *Memory) Entries(ctx context.Context, id generic.UserID) ([]generic.Entry, error) {
	v, done := m.readView()
	defer done()
	return v.Entries(ctx, id)
}

func (m *Memory) EntryExists(ctx context.Context, key string) (bool, error) {
	v, done := m.readView()
	defer done()
	return v.EntryExists(ctx, key)
}

func (m *Memory) SaveTutor(ctx context.Context, t booking.Tutor) error {
	v, done := m.writeView()
	defer done()
	return v.SaveTutor(ctx, t)
}

func (m *Memory) GetTutor(ctx context.Context, id generic.UserID) (*booking.Tutor, error) {
	v, done := m.readView()
	defer done()
	return v.GetTutor(ctx, id)
}

func (m *Memory) SaveSlot(ctx context.Context, sl booking.Slot) error {
	v, done := m.writeView()
	defer done()
	return v.SaveSlot(ctx, sl)
}

func (m *Memory) GetSlots(ctx context.Context, ids []booking.SlotID) ([]booking.Slot, error) {
	v, done := m.readView()
	defer done()
	return v.GetSlots(ctx, ids)
}

func (m *Memory) SlotsByTutor(ctx context.Context, id generic.UserID) ([]booking.Slot, error) {
	v, done := m.readView()
	defer done()
	return v.SlotsByTutor(ctx, id)
}

func (m *Memory) ClaimSlots(ctx context.Context, ids []booking.SlotID, b booking.BookingID) (int, error) {
	v, done := m.writeView()
	defer done()
	return v.ClaimSlots(ctx, ids, b)
}

func (m *Memory) ReleaseSlots(ctx context.Context, b booking.BookingID) error {
	v, done := m.writeView()
	defer done()
	return v.ReleaseSlots(ctx, b)
}

func (m *Memory) CreateBooking(ctx context.Context, b *booking.Booking) error {
	v, done := m.writeView()
	defer done()
	return v.CreateBooking(ctx, b)
}

func (m *Memory) GetBooking(ctx context.Context, id booking.BookingID) (*booking.Booking, error) {
	v, done := m.readView()
	defer done()
	return v.GetBooking(ctx, id)
}

func (m *Memory) LockBooking(ctx context.Context, id booking.BookingID) (*booking.Booking, error) {
	return m.GetBooking(ctx, id)
}

func (m *Memory) UpdateBooking(ctx context.Context, b *booking.Booking) error {
	v, done := m.writeView()
	defer done()
	return v.UpdateBooking(ctx, b)
}

func (m *Memory) FindActiveBooking(ctx context.Context, learner, tutor generic.UserID, subject booking.SubjectID) (*booking.Booking, error) {
	v, done := m.readView()
	defer done()
	return v.FindActiveBooking(ctx, learner, tutor, subject)
}

func (m *Memory) PendingCreatedBefore(ctx context.Context, cutoff time.Time) ([]booking.Booking, error) {
	v, done := m.readView()
	defer done()
	return v.PendingCreatedBefore(ctx, cutoff)
}

func (m *Memory) CreateSchedules(ctx context.Context, sc []booking.Schedule) error {
	v, done := m.writeView()
	defer done()
	return v.CreateSchedules(ctx, sc)
}

func (m *Memory) GetSchedule(ctx context.Context, id booking.ScheduleID) (*booking.Schedule, error) {
	v, done := m.readView()
	defer done()
	return v.GetSchedule(ctx, id)
}

func (m *Memory) SchedulesByBooking(ctx context.Context, id booking.BookingID) ([]booking.Schedule, error) {
	v, done := m.readView()
	defer done()
	return v.SchedulesByBooking(ctx, id)
}

func (m *Memory) SetAttended(ctx context.Context, id booking.ScheduleID, attended bool) error {
	v, done := m.writeView()
	defer done()
	return v.SetAttended(ctx, id, attended)
}

func (m *Memory) DeleteSchedules(ctx context.Context, id booking.BookingID) (int, error) {
	v, done := m.writeView()
	defer done()
	return v.DeleteSchedules(ctx, id)
}

// =============================================================================
// VIEW - Unlocked operations on one state
// =============================================================================

type view struct {
	s *state
}

func (v *view) SaveAccount(_ context.Context, a generic.Account) error {
	if _, ok := v.s.accounts[a.ID]; ok {
		return nil
	}
	v.s.accounts[a.ID] = a
	return nil
}

func (v *view) GetAccount(_ context.Context, id generic.UserID) (*generic.Account, error) {
	a, ok := v.s.accounts[id]
	if !ok {
		return nil, generic.ErrNotFound
	}
	return &a, nil
}

func (v *view) LockAccount(ctx context.Context, id generic.UserID) (*generic.Account, error) {
	return v.GetAccount(ctx, id)
}

func (v *view) SetBalance(_ context.Context, id generic.UserID, bal generic.Amount) error {
	a, ok := v.s.accounts[id]
	if !ok {
		return generic.ErrNotFound
	}
	a.Balance = bal
	v.s.accounts[id] = a
	return nil
}

func (v *view) AppendEntry(_ context.Context, e generic.Entry) error {
	if e.IdempotencyKey != "" {
		if v.s.keys[e.IdempotencyKey] {
			return generic.ErrDuplicateIdempotencyKey
		}
		v.s.keys[e.IdempotencyKey] = true
	}
	v.s.entries[e.UserID] = append(v.s.entries[e.UserID], e)
	return nil
}

func (v *view) Entries(_ context.Context, id generic.UserID) ([]generic.Entry, error) {
	return append([]generic.Entry(nil), v.s.entries[id]...), nil
}

func (v *view) EntryExists(_ context.Context, key string) (bool, error) {
	return v.s.keys[key], nil
}

func (v *view) SaveTutor(_ context.Context, t booking.Tutor) error {
	v.s.tutors[t.ID] = t
	return nil
}

func (v *view) GetTutor(_ context.Context, id generic.UserID) (*booking.Tutor, error) {
	t, ok := v.s.tutors[id]
	if !ok {
		return nil, generic.ErrNotFound
	}
	return &t, nil
}

func (v *view) SaveSlot(_ context.Context, sl booking.Slot) error {
	v.s.slots[sl.ID] = sl
	return nil
}

func (v *view) GetSlots(_ context.Context, ids []booking.SlotID) ([]booking.Slot, error) {
	out := make([]booking.Slot, 0, len(ids))
	for _, id := range ids {
		if sl, ok := v.s.slots[id]; ok {
			out = append(out, sl)
		}
	}
	return out, nil
}

func (v *view) SlotsByTutor(_ context.Context, id generic.UserID) ([]booking.Slot, error) {
	var out []booking.Slot
	for _, sl := range v.s.slots {
		if sl.TutorID == id {
			out = append(out, sl)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DayOfWeek != out[j].DayOfWeek {
			return out[i].DayOfWeek < out[j].DayOfWeek
		}
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (v *view) ClaimSlots(_ context.Context, ids []booking.SlotID, b booking.BookingID) (int, error) {
	n := 0
	for _, id := range ids {
		sl, ok := v.s.slots[id]
		if !ok || sl.Claimed {
			continue
		}
		sl.Claimed = true
		sl.BookingID = b
		v.s.slots[id] = sl
		n++
	}
	return n, nil
}

func (v *view) ReleaseSlots(_ context.Context, b booking.BookingID) error {
	for id, sl := range v.s.slots {
		if sl.Claimed && sl.BookingID == b {
			sl.Claimed = false
			sl.BookingID = ""
			v.s.slots[id] = sl
		}
	}
	return nil
}

func (v *view) CreateBooking(_ context.Context, b *booking.Booking) error {
	if _, ok := v.s.bookings[b.ID]; ok {
		return generic.Invalid("id", "booking %s already exists", b.ID)
	}
	if b.Status.Active() {
		for _, o := range v.s.bookings {
			if o.Status.Active() && o.LearnerID == b.LearnerID && o.TutorID == b.TutorID && o.SubjectID == b.SubjectID {
				return &booking.DuplicateBookingError{ExistingID: o.ID, Status: o.Status}
			}
		}
	}
	stored := *b
	stored.ScheduleIDs = nil
	v.s.bookings[b.ID] = stored
	return nil
}

func (v *view) GetBooking(_ context.Context, id booking.BookingID) (*booking.Booking, error) {
	b, ok := v.s.bookings[id]
	if !ok {
		return nil, generic.ErrNotFound
	}
	return &b, nil
}

func (v *view) LockBooking(ctx context.Context, id booking.BookingID) (*booking.Booking, error) {
	return v.GetBooking(ctx, id)
}

func (v *view) UpdateBooking(_ context.Context, b *booking.Booking) error {
	cur, ok := v.s.bookings[b.ID]
	if !ok {
		return generic.ErrNotFound
	}
	if cur.Version != b.Version {
		return generic.ErrConcurrentModification
	}
	b.Version++
	stored := *b
	stored.ScheduleIDs = nil
	v.s.bookings[b.ID] = stored
	return nil
}

func (v *view) FindActiveBooking(_ context.Context, learner, tutor generic.UserID, subject booking.SubjectID) (*booking.Booking, error) {
	for _, b := range v.s.bookings {
		if b.Status.Active() && b.LearnerID == learner && b.TutorID == tutor && b.SubjectID == subject {
			return &b, nil
		}
	}
	return nil, generic.ErrNotFound
}

func (v *view) PendingCreatedBefore(_ context.Context, cutoff time.Time) ([]booking.Booking, error) {
	var out []booking.Booking
	for _, b := range v.s.bookings {
		if b.Status == booking.StatusPending && b.CreatedAt.Before(cutoff) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (v *view) CreateSchedules(_ context.Context, sc []booking.Schedule) error {
	for _, s := range sc {
		if _, ok := v.s.schedules[s.ID]; ok {
			return generic.Invalid("id", "schedule %s already exists", s.ID)
		}
		v.s.schedules[s.ID] = s
	}
	return nil
}

func (v *view) GetSchedule(_ context.Context, id booking.ScheduleID) (*booking.Schedule, error) {
	s, ok := v.s.schedules[id]
	if !ok {
		return nil, generic.ErrNotFound
	}
	return &s, nil
}

func (v *view) SchedulesByBooking(_ context.Context, id booking.BookingID) ([]booking.Schedule, error) {
	var out []booking.Schedule
	for _, s := range v.s.schedules {
		if s.BookingID == id {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].StartsAt(), out[j].StartsAt()
		if !a.Equal(b) {
			return a.Before(b)
		}
		return out[i].SlotID < out[j].SlotID
	})
	return out, nil
}

func (v *view) SetAttended(_ context.Context, id booking.ScheduleID, attended bool) error {
	s, ok := v.s.schedules[id]
	if !ok {
		return generic.ErrNotFound
	}
	s.Attended = attended
	s.Status = booking.SessionScheduled
	if attended {
		s.Status = booking.SessionAttended
	}
	v.s.schedules[id] = s
	return nil
}

func (v *view) DeleteSchedules(_ context.Context, id booking.BookingID) (int, error) {
	n := 0
	for sid, s := range v.s.schedules {
		if s.BookingID == id {
			delete(v.s.schedules, sid)
			n++
		}
	}
	return n, nil
}

var (
	_ booking.TxStore = (*Memory)(nil)
	_ booking.Store   = (*view)(nil)
)
