/*
Package sqlite provides a SQLite-backed implementation of booking.TxStore.

PURPOSE:
  Persists accounts, the ledger, tutors, slots, bookings and sessions in one
  SQLite file. Every money-moving operation runs through WithTx, so the
  balance, ledger rows, booking row and sessions commit together.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on ledger_entries
  - No DELETE statements on ledger_entries
  - Corrections are reversing entries

KEY TABLES:
  accounts:        Cached balance per user
  ledger_entries:  Immutable record of every balance change
  tutors:          Price directory
  slots:           Weekly availability, claimed by at most one booking
  bookings:        The aggregate, with an optimistic version column
  schedules:       Dated sessions

INDEXES:
  - idx_bookings_active: at most one pending/approved booking per
    (learner, tutor, subject)
  - idx_entries_idempotency: one-shot postings are applied once
  - idx_entries_user: statements and reconciliation (hot path)
  - idx_bookings_pending: sweeper scan

CONCURRENCY:
  The pool is limited to one connection and WithTx holds a mutex, so write
  transactions are serialized. Slot claims are still written as
  compare-and-swap updates and booking updates check the version, so the
  same statements are safe on a multi-writer database.

USAGE:
  store, err := sqlite.New("./data/booking.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()
  service := booking.NewService(store)

SEE ALSO:
  - booking/store.go: Interface definitions
  - store/postgres: Multi-writer implementation
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/generic"
)

const timeFormat = time.RFC3339

// Store implements booking.TxStore using SQLite.
type Store struct {
	queries
	db *sql.DB
	mu sync.Mutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: ":memory:" databases are per connection, and SQLite
	// has a single writer anyway.
	db.SetMaxOpenConns(1)

	store := &Store{queries: queries{q: db}, db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		balance TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Append-only ledger
	CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES accounts(id),
		amount TEXT NOT NULL,
		balance_change TEXT NOT NULL,
		balance_after TEXT NOT NULL,
		entry_type TEXT NOT NULL,
		status TEXT NOT NULL,
		description TEXT,
		reference_id TEXT,
		idempotency_key TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_user
		ON ledger_entries(user_id, created_at);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_entries_idempotency
		ON ledger_entries(idempotency_key) WHERE idempotency_key IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_entries_reference
		ON ledger_entries(reference_id);

	CREATE TABLE IF NOT EXISTS tutors (
		id TEXT PRIMARY KEY,
		price_per_hour TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS slots (
		id TEXT PRIMARY KEY,
		tutor_id TEXT NOT NULL,
		day_of_week INTEGER NOT NULL CHECK (day_of_week BETWEEN 0 AND 6),
		start_minute INTEGER NOT NULL,
		end_minute INTEGER NOT NULL,
		claimed INTEGER NOT NULL DEFAULT 0,
		booking_id TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_slots_tutor ON slots(tutor_id);
	CREATE INDEX IF NOT EXISTS idx_slots_booking ON slots(booking_id);

	CREATE TABLE IF NOT EXISTS bookings (
		id TEXT PRIMARY KEY,
		learner_id TEXT NOT NULL,
		tutor_id TEXT NOT NULL,
		subject_id TEXT NOT NULL,
		note TEXT,
		status TEXT NOT NULL,
		deposit_status TEXT NOT NULL,
		amount TEXT NOT NULL,
		monthly_payment TEXT NOT NULL,
		initial_payment TEXT NOT NULL,
		deposit TEXT NOT NULL,
		session_price TEXT NOT NULL,
		number_of_months INTEGER NOT NULL,
		number_of_sessions INTEGER NOT NULL,
		paid_months INTEGER NOT NULL,
		paid_sessions INTEGER NOT NULL CHECK (paid_sessions >= 0),
		completed INTEGER NOT NULL DEFAULT 0,
		reported INTEGER NOT NULL DEFAULT 0,
		version INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- CRITICAL: one active booking per learner, tutor and subject
	CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_active
		ON bookings(learner_id, tutor_id, subject_id)
		WHERE status IN ('pending', 'approve');

	CREATE INDEX IF NOT EXISTS idx_bookings_pending
		ON bookings(status, created_at);

	CREATE TABLE IF NOT EXISTS schedules (
		id TEXT PRIMARY KEY,
		booking_id TEXT NOT NULL REFERENCES bookings(id),
		slot_id TEXT NOT NULL,
		tutor_id TEXT NOT NULL,
		learner_id TEXT NOT NULL,
		date TEXT NOT NULL,
		start_minute INTEGER NOT NULL,
		end_minute INTEGER NOT NULL,
		attended INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_schedules_booking ON schedules(booking_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (booking.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store booking.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", mapError(err))
	}
	defer sqlTx.Rollback()

	if err := fn(&queries{q: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", mapError(err))
	}
	return nil
}

// Reset deletes all data (for demo reseeding).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"schedules", "bookings", "slots", "tutors", "ledger_entries", "accounts"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// QUERIES - Shared by the pool and by transactions
// =============================================================================

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	q querier
}

// --- Accounts ---

func (s *queries) SaveAccount(ctx context.Context, a generic.Account) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO accounts (id, balance, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, a.ID, a.Balance.String(), formatTime(a.CreatedAt), formatTime(a.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save account: %w", mapError(err))
	}
	return nil
}

func (s *queries) GetAccount(ctx context.Context, id generic.UserID) (*generic.Account, error) {
	var (
		a                    generic.Account
		balance              string
		createdAt, updatedAt string
	)
	err := s.q.QueryRowContext(ctx,
		`SELECT id, balance, created_at, updated_at FROM accounts WHERE id = ?`, id,
	).Scan(&a.ID, &balance, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, generic.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", mapError(err))
	}
	if a.Balance, err = generic.ParseAmount(balance); err != nil {
		return nil, err
	}
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return &a, nil
}

// LockAccount is a plain read: transactions are already serialized.
func (s *queries) LockAccount(ctx context.Context, id generic.UserID) (*generic.Account, error) {
	return s.GetAccount(ctx, id)
}

func (s *queries) SetBalance(ctx context.Context, id generic.UserID, balance generic.Amount) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE accounts SET balance = ?, updated_at = ? WHERE id = ?`,
		balance.String(), formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("failed to set balance: %w", mapError(err))
	}
	return expectOne(res)
}

func (s *queries) AppendEntry(ctx context.Context, e generic.Entry) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO ledger_entries
		(id, user_id, amount, balance_change, balance_after, entry_type, status,
		 description, reference_id, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID, e.UserID, e.Amount.String(), e.BalanceChange.String(), e.BalanceAfter.String(),
		e.Type, e.Status, e.Description, e.ReferenceID, nullString(e.IdempotencyKey),
		formatTime(e.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to append entry: %w", mapError(err))
	}
	return nil
}

func (s *queries) Entries(ctx context.Context, id generic.UserID) ([]generic.Entry, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, user_id, amount, balance_change, balance_after, entry_type, status,
		       description, reference_id, idempotency_key, created_at
		FROM ledger_entries
		WHERE user_id = ?
		ORDER BY created_at ASC, rowid ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", mapError(err))
	}
	defer rows.Close()

	var entries []generic.Entry
	for rows.Next() {
		var (
			e                            generic.Entry
			amount, change, after        string
			description, reference, ikey sql.NullString
			createdAt                    string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &amount, &change, &after, &e.Type, &e.Status,
			&description, &reference, &ikey, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		e.Amount = parseAmount(amount)
		e.BalanceChange = parseAmount(change)
		e.BalanceAfter = parseAmount(after)
		e.Description = description.String
		e.ReferenceID = reference.String
		e.IdempotencyKey = ikey.String
		e.CreatedAt = parseTime(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *queries) EntryExists(ctx context.Context, key string) (bool, error) {
	var count int
	err := s.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM ledger_entries WHERE idempotency_key = ?", key,
	).Scan(&count)
	return count > 0, err
}

// --- Tutors ---

func (s *queries) SaveTutor(ctx context.Context, t booking.Tutor) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO tutors (id, price_per_hour) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET price_per_hour = excluded.price_per_hour
	`, t.ID, t.PricePerHour.String())
	if err != nil {
		return fmt.Errorf("failed to save tutor: %w", mapError(err))
	}
	return nil
}

func (s *queries) GetTutor(ctx context.Context, id generic.UserID) (*booking.Tutor, error) {
	var (
		t     booking.Tutor
		price string
	)
	err := s.q.QueryRowContext(ctx, `SELECT id, price_per_hour FROM tutors WHERE id = ?`, id).Scan(&t.ID, &price)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, generic.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tutor: %w", mapError(err))
	}
	t.PricePerHour = parseAmount(price)
	return &t, nil
}

// --- Slots ---

const slotColumns = `id, tutor_id, day_of_week, start_minute, end_minute, claimed, booking_id`

func (s *queries) SaveSlot(ctx context.Context, sl booking.Slot) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO slots (`+slotColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			day_of_week = excluded.day_of_week,
			start_minute = excluded.start_minute,
			end_minute = excluded.end_minute
	`, sl.ID, sl.TutorID, int(sl.DayOfWeek), int(sl.StartTime), int(sl.EndTime), sl.Claimed, nullString(string(sl.BookingID)))
	if err != nil {
		return fmt.Errorf("failed to save slot: %w", mapError(err))
	}
	return nil
}

func (s *queries) GetSlots(ctx context.Context, ids []booking.SlotID) ([]booking.Slot, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return s.querySlots(ctx, `SELECT `+slotColumns+` FROM slots WHERE id IN (`+placeholders(len(ids))+`)`, args...)
}

func (s *queries) SlotsByTutor(ctx context.Context, tutorID generic.UserID) ([]booking.Slot, error) {
	return s.querySlots(ctx, `
		SELECT `+slotColumns+` FROM slots WHERE tutor_id = ?
		ORDER BY day_of_week, start_minute, id
	`, tutorID)
}

// ClaimSlots flips each free slot with a compare-and-swap update.
func (s *queries) ClaimSlots(ctx context.Context, ids []booking.SlotID, bookingID booking.BookingID) (int, error) {
	claimed := 0
	for _, id := range ids {
		res, err := s.q.ExecContext(ctx,
			`UPDATE slots SET claimed = 1, booking_id = ? WHERE id = ? AND claimed = 0`,
			bookingID, id,
		)
		if err != nil {
			return claimed, fmt.Errorf("failed to claim slot %s: %w", id, mapError(err))
		}
		n, err := res.RowsAffected()
		if err != nil {
			return claimed, err
		}
		claimed += int(n)
	}
	return claimed, nil
}

func (s *queries) ReleaseSlots(ctx context.Context, bookingID booking.BookingID) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE slots SET claimed = 0, booking_id = NULL WHERE booking_id = ?`, bookingID)
	if err != nil {
		return fmt.Errorf("failed to release slots: %w", mapError(err))
	}
	return nil
}

func (s *queries) querySlots(ctx context.Context, query string, args ...any) ([]booking.Slot, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query slots: %w", mapError(err))
	}
	defer rows.Close()

	var slots []booking.Slot
	for rows.Next() {
		var (
			sl              booking.Slot
			dow, start, end int
			bookingID       sql.NullString
		)
		if err := rows.Scan(&sl.ID, &sl.TutorID, &dow, &start, &end, &sl.Claimed, &bookingID); err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		sl.DayOfWeek = time.Weekday(dow)
		sl.StartTime = generic.TimeOfDay(start)
		sl.EndTime = generic.TimeOfDay(end)
		sl.BookingID = booking.BookingID(bookingID.String)
		slots = append(slots, sl)
	}
	return slots, rows.Err()
}

// --- Bookings ---

const bookingColumns = `id, learner_id, tutor_id, subject_id, note, status, deposit_status,
	amount, monthly_payment, initial_payment, deposit, session_price,
	number_of_months, number_of_sessions, paid_months, paid_sessions,
	completed, reported, version, created_at, updated_at`

func (s *queries) CreateBooking(ctx context.Context, b *booking.Booking) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		b.ID, b.LearnerID, b.TutorID, b.SubjectID, b.Note, b.Status, b.DepositStatus,
		b.Amount.String(), b.MonthlyPayment.String(), b.InitialPayment.String(), b.Deposit.String(), b.SessionPrice.String(),
		b.NumberOfMonths, b.NumberOfSessions, b.PaidMonths, b.PaidSessions,
		b.Completed, b.Reported, b.Version, formatTime(b.CreatedAt), formatTime(b.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) && strings.Contains(err.Error(), "bookings.learner_id") {
			return fmt.Errorf("failed to create booking: %w", booking.ErrDuplicateBooking)
		}
		return fmt.Errorf("failed to create booking: %w", mapError(err))
	}
	return nil
}

func (s *queries) GetBooking(ctx context.Context, id booking.BookingID) (*booking.Booking, error) {
	bookings, err := s.queryBookings(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(bookings) == 0 {
		return nil, generic.ErrNotFound
	}
	return &bookings[0], nil
}

// LockBooking is a plain read: transactions are already serialized.
func (s *queries) LockBooking(ctx context.Context, id booking.BookingID) (*booking.Booking, error) {
	return s.GetBooking(ctx, id)
}

func (s *queries) UpdateBooking(ctx context.Context, b *booking.Booking) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE bookings SET
			status = ?, deposit_status = ?, paid_months = ?, paid_sessions = ?,
			completed = ?, reported = ?, note = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?
	`,
		b.Status, b.DepositStatus, b.PaidMonths, b.PaidSessions,
		b.Completed, b.Reported, b.Note, formatTime(b.UpdatedAt),
		b.ID, b.Version,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("failed to update booking: %w", booking.ErrDuplicateBooking)
		}
		return fmt.Errorf("failed to update booking: %w", mapError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := s.GetBooking(ctx, b.ID); err != nil {
			return err
		}
		return generic.ErrConcurrentModification
	}
	b.Version++
	return nil
}

func (s *queries) FindActiveBooking(ctx context.Context, learner, tutor generic.UserID, subject booking.SubjectID) (*booking.Booking, error) {
	bookings, err := s.queryBookings(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE learner_id = ? AND tutor_id = ? AND subject_id = ? AND status IN ('pending', 'approve')
		LIMIT 1
	`, learner, tutor, subject)
	if err != nil {
		return nil, err
	}
	if len(bookings) == 0 {
		return nil, generic.ErrNotFound
	}
	return &bookings[0], nil
}

func (s *queries) PendingCreatedBefore(ctx context.Context, cutoff time.Time) ([]booking.Booking, error) {
	return s.queryBookings(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE status = 'pending' AND created_at < ?
		ORDER BY created_at ASC
	`, formatTime(cutoff))
}

func (s *queries) queryBookings(ctx context.Context, query string, args ...any) ([]booking.Booking, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", mapError(err))
	}
	defer rows.Close()

	var bookings []booking.Booking
	for rows.Next() {
		var (
			b                                            booking.Booking
			note                                         sql.NullString
			amount, monthly, initial, deposit, sessionPx string
			createdAt, updatedAt                         string
		)
		if err := rows.Scan(
			&b.ID, &b.LearnerID, &b.TutorID, &b.SubjectID, &note, &b.Status, &b.DepositStatus,
			&amount, &monthly, &initial, &deposit, &sessionPx,
			&b.NumberOfMonths, &b.NumberOfSessions, &b.PaidMonths, &b.PaidSessions,
			&b.Completed, &b.Reported, &b.Version, &createdAt, &updatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		b.Note = note.String
		b.Amount = parseAmount(amount)
		b.MonthlyPayment = parseAmount(monthly)
		b.InitialPayment = parseAmount(initial)
		b.Deposit = parseAmount(deposit)
		b.SessionPrice = parseAmount(sessionPx)
		b.CreatedAt = parseTime(createdAt)
		b.UpdatedAt = parseTime(updatedAt)
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// --- Schedules ---

const scheduleColumns = `id, booking_id, slot_id, tutor_id, learner_id, date, start_minute, end_minute, attended, status`

func (s *queries) CreateSchedules(ctx context.Context, schedules []booking.Schedule) error {
	for _, sc := range schedules {
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO schedules (`+scheduleColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			sc.ID, sc.BookingID, sc.SlotID, sc.TutorID, sc.LearnerID, sc.Date.Format(time.DateOnly),
			int(sc.StartTime), int(sc.EndTime), sc.Attended, sc.Status,
		)
		if err != nil {
			return fmt.Errorf("failed to create schedule: %w", mapError(err))
		}
	}
	return nil
}

func (s *queries) GetSchedule(ctx context.Context, id booking.ScheduleID) (*booking.Schedule, error) {
	out, err := s.querySchedules(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, generic.ErrNotFound
	}
	return &out[0], nil
}

func (s *queries) SchedulesByBooking(ctx context.Context, bookingID booking.BookingID) ([]booking.Schedule, error) {
	return s.querySchedules(ctx, `
		SELECT `+scheduleColumns+` FROM schedules WHERE booking_id = ?
		ORDER BY date, start_minute, slot_id
	`, bookingID)
}

func (s *queries) SetAttended(ctx context.Context, id booking.ScheduleID, attended bool) error {
	status := booking.SessionScheduled
	if attended {
		status = booking.SessionAttended
	}
	res, err := s.q.ExecContext(ctx,
		`UPDATE schedules SET attended = ?, status = ? WHERE id = ?`, attended, status, id)
	if err != nil {
		return fmt.Errorf("failed to set attended: %w", mapError(err))
	}
	return expectOne(res)
}

func (s *queries) DeleteSchedules(ctx context.Context, bookingID booking.BookingID) (int, error) {
	res, err := s.q.ExecContext(ctx, `DELETE FROM schedules WHERE booking_id = ?`, bookingID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete schedules: %w", mapError(err))
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *queries) querySchedules(ctx context.Context, query string, args ...any) ([]booking.Schedule, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedules: %w", mapError(err))
	}
	defer rows.Close()

	var out []booking.Schedule
	for rows.Next() {
		var (
			sc         booking.Schedule
			date       string
			start, end int
		)
		if err := rows.Scan(&sc.ID, &sc.BookingID, &sc.SlotID, &sc.TutorID, &sc.LearnerID,
			&date, &start, &end, &sc.Attended, &sc.Status); err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		sc.Date, _ = time.Parse(time.DateOnly, date)
		sc.StartTime = generic.TimeOfDay(start)
		sc.EndTime = generic.TimeOfDay(end)
		out = append(out, sc)
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatTime(t time.Time) string { return t.UTC().Format(timeFormat) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeFormat, s)
	return t.UTC()
}

func parseAmount(s string) generic.Amount {
	a, err := generic.ParseAmount(s)
	if err != nil {
		return generic.NewAmount(0)
	}
	return a
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return generic.ErrNotFound
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// mapError turns lock contention into ErrConcurrentModification.
func mapError(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) && (se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked) {
		return fmt.Errorf("%w: %v", generic.ErrConcurrentModification, err)
	}
	return err
}

var _ booking.TxStore = (*Store)(nil)
