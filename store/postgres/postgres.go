/*
Package postgres provides a PostgreSQL implementation of booking.TxStore.

PURPOSE:
  The multi-writer store. Unlike SQLite, several service instances may run
  transactions at once, so contended rows are locked explicitly:

  - LockAccount and LockBooking use SELECT ... FOR UPDATE
  - ClaimSlots is a single compare-and-swap UPDATE ... WHERE NOT claimed;
    a concurrent claimer blocks on the row lock and then matches nothing
  - idx_bookings_active rejects a second active booking for the triple
  - UpdateBooking checks the version column

ERROR MAPPING:
  23505 unique_violation       → ErrDuplicateIdempotencyKey / ErrDuplicateBooking
  40001 serialization_failure  → ErrConcurrentModification
  40P01 deadlock_detected      → ErrConcurrentModification
  55P03 lock_not_available     → ErrConcurrentModification

MIGRATIONS:
  Embedded goose migrations under migrations/, applied by Migrate.
*/
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/generic"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Store struct {
	queries
	pool *pgxpool.Pool
}

// Open connects to databaseURL and applies pending migrations.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return New(pool), nil
}

// New wraps an existing pool. The schema must already be migrated.
func New(pool *pgxpool.Pool) *Store {
	return &Store{queries: queries{q: pool}, pool: pool}
}

// Migrate applies the embedded goose migrations.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (s *Store) Close() { s.pool.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// WithTx runs fn in a READ COMMITTED transaction; contended rows are locked
// by the queries themselves.
func (s *Store) WithTx(ctx context.Context, fn func(booking.Store) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin: %w", mapError(err))
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(&queries{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", mapError(err))
	}
	return nil
}

// =============================================================================
// QUERIES
// =============================================================================

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

type queries struct {
	q querier
}

// --- Accounts ---

func (s *queries) SaveAccount(ctx context.Context, a generic.Account) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO accounts (id, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`, string(a.ID), a.Balance.String(), a.CreatedAt, a.UpdatedAt)
	return mapError(err)
}

func (s *queries) GetAccount(ctx context.Context, id generic.UserID) (*generic.Account, error) {
	return s.account(ctx, `SELECT id, balance::text, created_at, updated_at FROM accounts WHERE id = $1`, id)
}

func (s *queries) LockAccount(ctx context.Context, id generic.UserID) (*generic.Account, error) {
	return s.account(ctx, `SELECT id, balance::text, created_at, updated_at FROM accounts WHERE id = $1 FOR UPDATE`, id)
}

func (s *queries) account(ctx context.Context, query string, id generic.UserID) (*generic.Account, error) {
	var (
		a       generic.Account
		uid     string
		balance string
	)
	err := s.q.QueryRow(ctx, query, string(id)).Scan(&uid, &balance, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, generic.ErrNotFound
	}
	if err != nil {
		return nil, mapError(err)
	}
	a.ID = generic.UserID(uid)
	if a.Balance, err = generic.ParseAmount(balance); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *queries) SetBalance(ctx context.Context, id generic.UserID, balance generic.Amount) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE accounts SET balance = $1, updated_at = now() WHERE id = $2`,
		balance.String(), string(id))
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return generic.ErrNotFound
	}
	return nil
}

func (s *queries) AppendEntry(ctx context.Context, e generic.Entry) error {
	var key *string
	if e.IdempotencyKey != "" {
		key = &e.IdempotencyKey
	}
	_, err := s.q.Exec(ctx, `
		INSERT INTO ledger_entries
		(id, user_id, amount, balance_change, balance_after, entry_type, status,
		 description, reference_id, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		string(e.ID), string(e.UserID), e.Amount.String(), e.BalanceChange.String(), e.BalanceAfter.String(),
		string(e.Type), string(e.Status), e.Description, e.ReferenceID, key, e.CreatedAt,
	)
	return mapError(err)
}

func (s *queries) Entries(ctx context.Context, id generic.UserID) ([]generic.Entry, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, user_id, amount::text, balance_change::text, balance_after::text,
		       entry_type, status, description, reference_id, COALESCE(idempotency_key, ''), created_at
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY seq
	`, string(id))
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []generic.Entry
	for rows.Next() {
		var (
			e                     generic.Entry
			eid, uid, typ, status string
			amount, change, after string
		)
		if err := rows.Scan(&eid, &uid, &amount, &change, &after, &typ, &status,
			&e.Description, &e.ReferenceID, &e.IdempotencyKey, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ID = generic.EntryID(eid)
		e.UserID = generic.UserID(uid)
		e.Type = generic.EntryType(typ)
		e.Status = generic.EntryStatus(status)
		e.Amount = parseAmount(amount)
		e.BalanceChange = parseAmount(change)
		e.BalanceAfter = parseAmount(after)
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *queries) EntryExists(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := s.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM ledger_entries WHERE idempotency_key = $1)`, key,
	).Scan(&exists)
	return exists, mapError(err)
}

// --- Tutors ---

func (s *queries) SaveTutor(ctx context.Context, t booking.Tutor) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO tutors (id, price_per_hour) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET price_per_hour = EXCLUDED.price_per_hour
	`, string(t.ID), t.PricePerHour.String())
	return mapError(err)
}

func (s *queries) GetTutor(ctx context.Context, id generic.UserID) (*booking.Tutor, error) {
	var price string
	err := s.q.QueryRow(ctx, `SELECT price_per_hour::text FROM tutors WHERE id = $1`, string(id)).Scan(&price)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, generic.ErrNotFound
	}
	if err != nil {
		return nil, mapError(err)
	}
	return &booking.Tutor{ID: id, PricePerHour: parseAmount(price)}, nil
}

// --- Slots ---

const slotColumns = `id, tutor_id, day_of_week, start_minute, end_minute, claimed, COALESCE(booking_id, '')`

func (s *queries) SaveSlot(ctx context.Context, sl booking.Slot) error {
	var bookingID *string
	if sl.BookingID != "" {
		id := string(sl.BookingID)
		bookingID = &id
	}
	_, err := s.q.Exec(ctx, `
		INSERT INTO slots (id, tutor_id, day_of_week, start_minute, end_minute, claimed, booking_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			day_of_week = EXCLUDED.day_of_week,
			start_minute = EXCLUDED.start_minute,
			end_minute = EXCLUDED.end_minute
	`, string(sl.ID), string(sl.TutorID), int(sl.DayOfWeek), int(sl.StartTime), int(sl.EndTime), sl.Claimed, bookingID)
	return mapError(err)
}

func (s *queries) GetSlots(ctx context.Context, ids []booking.SlotID) ([]booking.Slot, error) {
	return s.querySlots(ctx, `SELECT `+slotColumns+` FROM slots WHERE id = ANY($1)`, slotStrings(ids))
}

func (s *queries) SlotsByTutor(ctx context.Context, tutorID generic.UserID) ([]booking.Slot, error) {
	return s.querySlots(ctx, `
		SELECT `+slotColumns+` FROM slots WHERE tutor_id = $1
		ORDER BY day_of_week, start_minute, id
	`, string(tutorID))
}

func (s *queries) ClaimSlots(ctx context.Context, ids []booking.SlotID, bookingID booking.BookingID) (int, error) {
	tag, err := s.q.Exec(ctx, `
		UPDATE slots SET claimed = TRUE, booking_id = $1
		WHERE id = ANY($2) AND NOT claimed
	`, string(bookingID), slotStrings(ids))
	if err != nil {
		return 0, mapError(err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *queries) ReleaseSlots(ctx context.Context, bookingID booking.BookingID) error {
	_, err := s.q.Exec(ctx,
		`UPDATE slots SET claimed = FALSE, booking_id = NULL WHERE booking_id = $1`, string(bookingID))
	return mapError(err)
}

func (s *queries) querySlots(ctx context.Context, query string, args ...any) ([]booking.Slot, error) {
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []booking.Slot
	for rows.Next() {
		var (
			id, tutor, bookingID string
			dow                  int16
			start, end           int32
			sl                   booking.Slot
		)
		if err := rows.Scan(&id, &tutor, &dow, &start, &end, &sl.Claimed, &bookingID); err != nil {
			return nil, err
		}
		sl.ID = booking.SlotID(id)
		sl.TutorID = generic.UserID(tutor)
		sl.DayOfWeek = time.Weekday(dow)
		sl.StartTime = generic.TimeOfDay(start)
		sl.EndTime = generic.TimeOfDay(end)
		sl.BookingID = booking.BookingID(bookingID)
		out = append(out, sl)
	}
	return out, rows.Err()
}

// --- Bookings ---

const bookingColumns = `id, learner_id, tutor_id, subject_id, note, status, deposit_status,
	amount::text, monthly_payment::text, initial_payment::text, deposit::text, session_price::text,
	number_of_months, number_of_sessions, paid_months, paid_sessions,
	completed, reported, version, created_at, updated_at`

func (s *queries) CreateBooking(ctx context.Context, b *booking.Booking) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO bookings (id, learner_id, tutor_id, subject_id, note, status, deposit_status,
			amount, monthly_payment, initial_payment, deposit, session_price,
			number_of_months, number_of_sessions, paid_months, paid_sessions,
			completed, reported, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`,
		string(b.ID), string(b.LearnerID), string(b.TutorID), string(b.SubjectID), b.Note,
		string(b.Status), string(b.DepositStatus),
		b.Amount.String(), b.MonthlyPayment.String(), b.InitialPayment.String(), b.Deposit.String(), b.SessionPrice.String(),
		b.NumberOfMonths, b.NumberOfSessions, b.PaidMonths, b.PaidSessions,
		b.Completed, b.Reported, b.Version, b.CreatedAt, b.UpdatedAt,
	)
	return mapError(err)
}

func (s *queries) GetBooking(ctx context.Context, id booking.BookingID) (*booking.Booking, error) {
	return s.oneBooking(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, string(id))
}

func (s *queries) LockBooking(ctx context.Context, id booking.BookingID) (*booking.Booking, error) {
	return s.oneBooking(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, string(id))
}

func (s *queries) UpdateBooking(ctx context.Context, b *booking.Booking) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE bookings SET
			status = $1, deposit_status = $2, paid_months = $3, paid_sessions = $4,
			completed = $5, reported = $6, note = $7, updated_at = $8, version = version + 1
		WHERE id = $9 AND version = $10
	`,
		string(b.Status), string(b.DepositStatus), b.PaidMonths, b.PaidSessions,
		b.Completed, b.Reported, b.Note, b.UpdatedAt,
		string(b.ID), b.Version,
	)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetBooking(ctx, b.ID); err != nil {
			return err
		}
		return generic.ErrConcurrentModification
	}
	b.Version++
	return nil
}

func (s *queries) FindActiveBooking(ctx context.Context, learner, tutor generic.UserID, subject booking.SubjectID) (*booking.Booking, error) {
	return s.oneBooking(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE learner_id = $1 AND tutor_id = $2 AND subject_id = $3 AND status IN ('pending', 'approve')
		LIMIT 1
	`, string(learner), string(tutor), string(subject))
}

func (s *queries) PendingCreatedBefore(ctx context.Context, cutoff time.Time) ([]booking.Booking, error) {
	return s.queryBookings(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at
	`, cutoff)
}

func (s *queries) oneBooking(ctx context.Context, query string, args ...any) (*booking.Booking, error) {
	out, err := s.queryBookings(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, generic.ErrNotFound
	}
	return &out[0], nil
}

func (s *queries) queryBookings(ctx context.Context, query string, args ...any) ([]booking.Booking, error) {
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []booking.Booking
	for rows.Next() {
		var (
			b                                            booking.Booking
			id, learner, tutor, subject, status, deposit string
			amount, monthly, initial, held, sessionPx    string
		)
		if err := rows.Scan(
			&id, &learner, &tutor, &subject, &b.Note, &status, &deposit,
			&amount, &monthly, &initial, &held, &sessionPx,
			&b.NumberOfMonths, &b.NumberOfSessions, &b.PaidMonths, &b.PaidSessions,
			&b.Completed, &b.Reported, &b.Version, &b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			return nil, err
		}
		b.ID = booking.BookingID(id)
		b.LearnerID = generic.UserID(learner)
		b.TutorID = generic.UserID(tutor)
		b.SubjectID = booking.SubjectID(subject)
		b.Status = booking.Status(status)
		b.DepositStatus = booking.DepositStatus(deposit)
		b.Amount = parseAmount(amount)
		b.MonthlyPayment = parseAmount(monthly)
		b.InitialPayment = parseAmount(initial)
		b.Deposit = parseAmount(held)
		b.SessionPrice = parseAmount(sessionPx)
		b.CreatedAt = b.CreatedAt.UTC()
		b.UpdatedAt = b.UpdatedAt.UTC()
		out = append(out, b)
	}
	return out, rows.Err()
}

// --- Schedules ---

const scheduleColumns = `id, booking_id, slot_id, tutor_id, learner_id, date, start_minute, end_minute, attended, status`

func (s *queries) CreateSchedules(ctx context.Context, schedules []booking.Schedule) error {
	rows := make([][]any, len(schedules))
	for i, sc := range schedules {
		rows[i] = []any{
			string(sc.ID), string(sc.BookingID), string(sc.SlotID), string(sc.TutorID), string(sc.LearnerID),
			sc.Date, int32(sc.StartTime), int32(sc.EndTime), sc.Attended, string(sc.Status),
		}
	}
	_, err := s.q.CopyFrom(ctx,
		pgx.Identifier{"schedules"},
		[]string{"id", "booking_id", "slot_id", "tutor_id", "learner_id", "date", "start_minute", "end_minute", "attended", "status"},
		pgx.CopyFromRows(rows),
	)
	return mapError(err)
}

func (s *queries) GetSchedule(ctx context.Context, id booking.ScheduleID) (*booking.Schedule, error) {
	out, err := s.querySchedules(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE id = $1`, string(id))
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
		SELECT `+scheduleColumns+` FROM schedules WHERE booking_id = $1
		ORDER BY date, start_minute, slot_id
	`, string(bookingID))
}

func (s *queries) SetAttended(ctx context.Context, id booking.ScheduleID, attended bool) error {
	status := booking.SessionScheduled
	if attended {
		status = booking.SessionAttended
	}
	tag, err := s.q.Exec(ctx,
		`UPDATE schedules SET attended = $1, status = $2 WHERE id = $3`, attended, string(status), string(id))
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return generic.ErrNotFound
	}
	return nil
}

func (s *queries) DeleteSchedules(ctx context.Context, bookingID booking.BookingID) (int, error) {
	tag, err := s.q.Exec(ctx, `DELETE FROM schedules WHERE booking_id = $1`, string(bookingID))
	if err != nil {
		return 0, mapError(err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *queries) querySchedules(ctx context.Context, query string, args ...any) ([]booking.Schedule, error) {
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []booking.Schedule
	for rows.Next() {
		var (
			sc                                    booking.Schedule
			id, bookingID, slotID, tutor, learner string
			status                                string
			start, end                            int32
		)
		if err := rows.Scan(&id, &bookingID, &slotID, &tutor, &learner, &sc.Date, &start, &end, &sc.Attended, &status); err != nil {
			return nil, err
		}
		sc.ID = booking.ScheduleID(id)
		sc.BookingID = booking.BookingID(bookingID)
		sc.SlotID = booking.SlotID(slotID)
		sc.TutorID = generic.UserID(tutor)
		sc.LearnerID = generic.UserID(learner)
		sc.Status = booking.ScheduleStatus(status)
		sc.StartTime = generic.TimeOfDay(start)
		sc.EndTime = generic.TimeOfDay(end)
		sc.Date = time.Date(sc.Date.Year(), sc.Date.Month(), sc.Date.Day(), 0, 0, 0, 0, time.UTC)
		out = append(out, sc)
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func slotStrings(ids []booking.SlotID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func parseAmount(s string) generic.Amount {
	a, err := generic.ParseAmount(s)
	if err != nil {
		return generic.NewAmount(0)
	}
	return a
}

// mapError translates PostgreSQL error codes into the engine's sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505":
		switch pgErr.ConstraintName {
		case "idx_entries_idempotency":
			return generic.ErrDuplicateIdempotencyKey
		case "idx_bookings_active":
			return fmt.Errorf("%w: %s", booking.ErrDuplicateBooking, pgErr.Detail)
		}
	case "40001", "40P01", "55P03":
		return fmt.Errorf("%w: %s", generic.ErrConcurrentModification, pgErr.Message)
	}
	return err
}

var _ booking.TxStore = (*Store)(nil)
