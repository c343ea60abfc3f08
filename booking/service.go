/*
service.go - Booking creation and state transitions

PURPOSE:
  Service is the engine's entry point. Every operation that moves money or
  changes a booking's status runs as one TxStore transaction: slot claims,
  ledger postings, the booking row and its sessions commit together or not
  at all. Notifications are sent only after commit.

TRANSACTION RULES:
  - The tutor directory is read before the transaction opens.
  - Domain errors (duplicate, conflict, forbidden, ...) are returned as is.
  - Any other failure of a write transaction surfaces as
    generic.TransactionFailedError and is never retried here.
  - Reads retry a bounded number of times on transient store conflicts.

IDEMPOTENCY KEYS:
  booking:<id>:initial   initial payment at creation
  booking:<id>:refund    refund on cancel, reject, expiry or completion
  booking:<id>:payout    tutor payout at completion

SEE ALSO:
  - attendance.go: Per-session transfers
  - wallet.go: Top-ups, withdrawals and statements
  - sweeper.go: Background expiry
*/
package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/warp/booking-engine/generic"
)

const tracerName = "github.com/warp/booking-engine/booking"

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	store    TxStore
	tutors   TutorDirectory
	ledger   *generic.Ledger
	policy   Policy
	clock    generic.Clock
	notifier Notifier
	logger   *zap.Logger
	tracer   trace.Tracer
	newID    func() string

	readRetries uint64
	readBackoff time.Duration
}

type Option func(*Service)

// WithTutorDirectory overrides where tutor prices come from. Defaults to the store.
func WithTutorDirectory(d TutorDirectory) Option { return func(s *Service) { s.tutors = d } }

func WithPolicy(p Policy) Option { return func(s *Service) { s.policy = p } }

func WithClock(c generic.Clock) Option { return func(s *Service) { s.clock = c } }

func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.logger = l } }

// WithIDGenerator replaces uuid generation for booking and session ids.
func WithIDGenerator(f func() string) Option { return func(s *Service) { s.newID = f } }

// WithReadRetry sets how often and how fast idempotent reads retry.
func WithReadRetry(retries uint64, base time.Duration) Option {
	return func(s *Service) {
		s.readRetries = retries
		s.readBackoff = base
	}
}

func NewService(store TxStore, opts ...Option) *Service {
	s := &Service{
		store:       store,
		tutors:      store,
		policy:      DefaultPolicy(),
		clock:       generic.SystemClock{},
		notifier:    nopNotifier{},
		logger:      zap.NewNop(),
		tracer:      otel.Tracer(tracerName),
		newID:       uuid.NewString,
		readRetries: 3,
		readBackoff: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ledger = generic.NewLedger(s.clock)
	return s
}

func (s *Service) Policy() Policy { return s.policy }

func (s *Service) Clock() generic.Clock { return s.clock }

// =============================================================================
// CREATION
// =============================================================================

type CreateRequest struct {
	LearnerID      generic.UserID
	TutorID        generic.UserID
	SubjectID      SubjectID
	NumberOfMonths int
	SlotIDs        []SlotID
	Note           string
}

func (r CreateRequest) Validate() error {
	if r.LearnerID == "" {
		return generic.Invalid("learner_id", "is required")
	}
	if r.TutorID == "" {
		return generic.Invalid("tutor_id", "is required")
	}
	if r.LearnerID == r.TutorID {
		return generic.Invalid("tutor_id", "learner cannot book themselves")
	}
	if r.SubjectID == "" {
		return generic.Invalid("subject_id", "is required")
	}
	if r.NumberOfMonths < 1 {
		return generic.Invalid("number_of_months", "must be at least 1, got %d", r.NumberOfMonths)
	}
	if len(r.SlotIDs) == 0 {
		return generic.Invalid("slot_ids", "at least one slot is required")
	}
	seen := make(map[SlotID]bool, len(r.SlotIDs))
	for _, id := range r.SlotIDs {
		if id == "" {
			return generic.Invalid("slot_ids", "empty slot id")
		}
		if seen[id] {
			return generic.Invalid("slot_ids", "slot %s listed twice", id)
		}
		seen[id] = true
	}
	return nil
}

// Create claims the slots, charges the first month and materializes every
// session of a new pending booking.
func (s *Service) Create(ctx context.Context, caller Caller, req CreateRequest) (_ *Booking, err error) {
	ctx, span := s.startSpan(ctx, "Create",
		attribute.String("learner_id", string(req.LearnerID)),
		attribute.String("tutor_id", string(req.TutorID)),
		attribute.Int("slots", len(req.SlotIDs)),
	)
	defer func() { endSpan(span, err) }()

	if req.LearnerID == "" {
		req.LearnerID = caller.UserID
	}
	if caller.Role != RoleLearner || caller.UserID != req.LearnerID {
		return nil, forbidden(caller, "create a booking for "+string(req.LearnerID))
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	tutor, err := s.tutors.GetTutor(ctx, req.TutorID)
	if err != nil {
		if generic.IsNotFound(err) {
			return nil, &generic.NotFoundError{Kind: "tutor", ID: string(req.TutorID)}
		}
		return nil, fmt.Errorf("get tutor: %w", err)
	}
	quote, err := ComputeQuote(tutor.PricePerHour, len(req.SlotIDs), req.NumberOfMonths)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	b := &Booking{
		ID:        BookingID(s.newID()),
		LearnerID: req.LearnerID,
		TutorID:   req.TutorID,
		SubjectID: req.SubjectID,
		Note:      req.Note,
		Status:    StatusPending,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	quote.apply(b, req.NumberOfMonths)

	err = s.atomically(ctx, "create booking", func(tx Store) error {
		existing, err := tx.FindActiveBooking(ctx, b.LearnerID, b.TutorID, b.SubjectID)
		if err == nil {
			return &DuplicateBookingError{ExistingID: existing.ID, Status: existing.Status}
		}
		if !generic.IsNotFound(err) {
			return fmt.Errorf("find active booking: %w", err)
		}

		slots, err := s.loadFreeSlots(ctx, tx, req)
		if err != nil {
			return err
		}
		claimed, err := tx.ClaimSlots(ctx, req.SlotIDs, b.ID)
		if err != nil {
			return fmt.Errorf("claim slots: %w", err)
		}
		if claimed != len(req.SlotIDs) {
			return &SlotConflictError{Requested: len(req.SlotIDs), Claimed: claimed}
		}

		if _, err := s.ledger.Post(ctx, tx, generic.Posting{
			UserID:         b.LearnerID,
			Amount:         b.InitialPayment,
			Type:           generic.EntrySpend,
			Description:    "initial payment for booking " + string(b.ID),
			ReferenceID:    string(b.ID),
			IdempotencyKey: idempotencyKey(b.ID, "initial"),
		}); err != nil {
			return err
		}

		if err := tx.CreateBooking(ctx, b); err != nil {
			return fmt.Errorf("create booking: %w", err)
		}

		sessions := GenerateSessions(now, slots, b.NumberOfMonths)
		b.ScheduleIDs = make([]ScheduleID, len(sessions))
		for i := range sessions {
			sessions[i].ID = ScheduleID(s.newID())
			sessions[i].BookingID = b.ID
			sessions[i].LearnerID = b.LearnerID
			b.ScheduleIDs[i] = sessions[i].ID
		}
		if err := tx.CreateSchedules(ctx, sessions); err != nil {
			return fmt.Errorf("create schedules: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking created",
		zap.String("booking_id", string(b.ID)),
		zap.String("learner_id", string(b.LearnerID)),
		zap.String("tutor_id", string(b.TutorID)),
		zap.Stringer("initial_payment", b.InitialPayment),
		zap.Int("sessions", len(b.ScheduleIDs)),
	)
	s.notify(ctx, caller, b, EventRequested, b.InitialPayment, "")
	return b, nil
}

// loadFreeSlots returns the requested slots after checking they exist,
// belong to the tutor and are not claimed.
func (s *Service) loadFreeSlots(ctx context.Context, tx Store, req CreateRequest) ([]Slot, error) {
	slots, err := tx.GetSlots(ctx, req.SlotIDs)
	if err != nil {
		return nil, fmt.Errorf("get slots: %w", err)
	}
	found := make(map[SlotID]Slot, len(slots))
	for _, sl := range slots {
		found[sl.ID] = sl
	}

	var taken []SlotID
	for _, id := range req.SlotIDs {
		sl, ok := found[id]
		if !ok {
			return nil, &generic.NotFoundError{Kind: "slot", ID: string(id)}
		}
		if sl.TutorID != req.TutorID {
			return nil, generic.Invalid("slot_ids", "slot %s belongs to another tutor", id)
		}
		if sl.Claimed {
			taken = append(taken, id)
		}
	}
	if len(taken) > 0 {
		return nil, &SlotConflictError{
			Requested: len(req.SlotIDs),
			Claimed:   len(req.SlotIDs) - len(taken),
			SlotIDs:   taken,
		}
	}
	return slots, nil
}

// =============================================================================
// STATE TRANSITIONS
// =============================================================================

// Approve moves a pending booking to approve. Tutor of the booking only.
func (s *Service) Approve(ctx context.Context, caller Caller, id BookingID) (_ *Booking, err error) {
	ctx, span := s.startSpan(ctx, "Approve", attribute.String("booking_id", string(id)))
	defer func() { endSpan(span, err) }()

	b, err := s.transition(ctx, "approve booking", id, func(_ Store, b *Booking) error {
		if !actsAsTutor(caller, b) {
			return forbidden(caller, "approve booking "+string(b.ID))
		}
		if err := checkTransition(b, StatusApproved, "approve"); err != nil {
			return err
		}
		b.Status = StatusApproved
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking approved", zap.String("booking_id", string(b.ID)), zap.String("actor", string(caller.UserID)))
	s.notify(ctx, caller, b, EventApproved, generic.Amount{}, "")
	return b, nil
}

// Reject moves a pending booking to rejected, applies the rejection rule,
// and frees its slots and sessions. Tutor of the booking only.
func (s *Service) Reject(ctx context.Context, caller Caller, id BookingID, reason string) (_ *Booking, err error) {
	ctx, span := s.startSpan(ctx, "Reject", attribute.String("booking_id", string(id)))
	defer func() { endSpan(span, err) }()

	var refund generic.Amount
	b, err := s.transition(ctx, "reject booking", id, func(tx Store, b *Booking) error {
		if !actsAsTutor(caller, b) {
			return forbidden(caller, "reject booking "+string(b.ID))
		}
		if err := checkTransition(b, StatusRejected, "reject"); err != nil {
			return err
		}
		var err error
		refund, err = s.resolveEarly(ctx, tx, b, StatusRejected, s.policy.Rejection, "rejection")
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking rejected",
		zap.String("booking_id", string(b.ID)),
		zap.String("actor", string(caller.UserID)),
		zap.Stringer("refund", refund),
	)
	s.notify(ctx, caller, b, EventRejected, refund, reason)
	return b, nil
}

// Cancel ends a pending or approved booking early. Only the learner who
// owns the booking may cancel; the refund comes from the cancellation table.
func (s *Service) Cancel(ctx context.Context, caller Caller, id BookingID) (_ *Booking, err error) {
	ctx, span := s.startSpan(ctx, "Cancel", attribute.String("booking_id", string(id)))
	defer func() { endSpan(span, err) }()

	var refund generic.Amount
	b, err := s.transition(ctx, "cancel booking", id, func(tx Store, b *Booking) error {
		if caller.UserID != b.LearnerID {
			return forbidden(caller, "cancel booking "+string(b.ID))
		}
		if err := checkTransition(b, StatusCancelled, "cancel"); err != nil {
			return err
		}
		rule, ok := s.policy.CancellationFor(b.Status)
		if !ok {
			return &InvalidTransitionError{BookingID: b.ID, From: b.Status, Action: "cancel"}
		}
		var err error
		refund, err = s.resolveEarly(ctx, tx, b, StatusCancelled, rule, "cancellation")
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking cancelled",
		zap.String("booking_id", string(b.ID)),
		zap.String("actor", string(caller.UserID)),
		zap.Stringer("refund", refund),
		zap.String("deposit_status", string(b.DepositStatus)),
	)
	s.notify(ctx, caller, b, EventCancelled, refund, "")
	return b, nil
}

// ExpireBooking cancels a pending booking created before cutoff with the
// expiry rule. It re-checks both conditions under the booking lock, so a
// booking resolved concurrently yields AlreadyTerminalError.
func (s *Service) ExpireBooking(ctx context.Context, id BookingID, cutoff time.Time) (_ *Booking, err error) {
	ctx, span := s.startSpan(ctx, "ExpireBooking", attribute.String("booking_id", string(id)))
	defer func() { endSpan(span, err) }()

	var refund generic.Amount
	b, err := s.transition(ctx, "expire booking", id, func(tx Store, b *Booking) error {
		if err := checkTransition(b, StatusCancelled, "expire"); err != nil {
			return err
		}
		if b.Status != StatusPending || !b.CreatedAt.Before(cutoff) {
			return &InvalidTransitionError{BookingID: b.ID, From: b.Status, Action: "expire"}
		}
		var err error
		refund, err = s.resolveEarly(ctx, tx, b, StatusCancelled, s.policy.Expiry, "expired")
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking expired",
		zap.String("booking_id", string(b.ID)),
		zap.Time("created_at", b.CreatedAt),
		zap.Stringer("refund", refund),
	)
	s.notify(ctx, SystemCaller, b, EventExpired, refund, "pending too long")
	return b, nil
}

// Finish completes an approved booking once every session is paid and
// settles with the tutor according to the completion payout mode.
func (s *Service) Finish(ctx context.Context, caller Caller, id BookingID) (_ *Booking, err error) {
	ctx, span := s.startSpan(ctx, "Finish", attribute.String("booking_id", string(id)))
	defer func() { endSpan(span, err) }()

	var st Settlement
	b, err := s.transition(ctx, "finish booking", id, func(tx Store, b *Booking) error {
		if !b.IsParty(caller.UserID) && caller.Role != RoleAdmin {
			return forbidden(caller, "finish booking "+string(b.ID))
		}
		if b.PaidSessions == 0 || b.PaidSessions != b.NumberOfSessions {
			return &IncompleteSessionsError{BookingID: b.ID, Paid: b.PaidSessions, Total: b.NumberOfSessions}
		}
		if err := checkTransition(b, StatusCompleted, "finish"); err != nil {
			return err
		}

		st = s.policy.Settle(b)
		if err := lockParties(ctx, tx, b); err != nil {
			return err
		}
		if st.TutorPayout.IsPositive() {
			if _, err := s.ledger.Post(ctx, tx, generic.Posting{
				UserID:         b.TutorID,
				Amount:         st.TutorPayout,
				Type:           generic.EntryEarning,
				Description:    "completion payout for booking " + string(b.ID),
				ReferenceID:    string(b.ID),
				IdempotencyKey: idempotencyKey(b.ID, "payout"),
			}); err != nil {
				return err
			}
		}
		if st.LearnerRefund.IsPositive() {
			if _, err := s.ledger.Post(ctx, tx, generic.Posting{
				UserID:         b.LearnerID,
				Amount:         st.LearnerRefund,
				Type:           generic.EntryRefund,
				Description:    "initial payment released for booking " + string(b.ID),
				ReferenceID:    string(b.ID),
				IdempotencyKey: idempotencyKey(b.ID, "refund"),
			}); err != nil {
				return err
			}
		}

		b.Status = StatusCompleted
		b.Completed = true
		b.DepositStatus = st.DepositStatus
		b.PaidMonths = b.NumberOfMonths
		if err := tx.ReleaseSlots(ctx, b.ID); err != nil {
			return fmt.Errorf("release slots: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking completed",
		zap.String("booking_id", string(b.ID)),
		zap.String("payout_mode", string(s.policy.Completion)),
		zap.Stringer("tutor_payout", st.TutorPayout),
		zap.Stringer("learner_refund", st.LearnerRefund),
	)
	s.notify(ctx, caller, b, EventCompleted, st.TutorPayout, "")
	return b, nil
}

// Report flags the booking. Either party may report; it has no effect on
// money or status.
func (s *Service) Report(ctx context.Context, caller Caller, id BookingID, reason string) (_ *Booking, err error) {
	ctx, span := s.startSpan(ctx, "Report", attribute.String("booking_id", string(id)))
	defer func() { endSpan(span, err) }()

	b, err := s.transition(ctx, "report booking", id, func(_ Store, b *Booking) error {
		if !b.IsParty(caller.UserID) {
			return forbidden(caller, "report booking "+string(b.ID))
		}
		b.Reported = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking reported", zap.String("booking_id", string(b.ID)), zap.String("actor", string(caller.UserID)))
	s.notify(ctx, caller, b, EventReported, generic.Amount{}, reason)
	return b, nil
}

// =============================================================================
// READS
// =============================================================================

// Get returns the booking with its session ids. Parties and admins only.
func (s *Service) Get(ctx context.Context, caller Caller, id BookingID) (*Booking, error) {
	var b *Booking
	err := s.read(ctx, func(ctx context.Context) error {
		got, err := s.store.GetBooking(ctx, id)
		if err != nil {
			return err
		}
		sessions, err := s.store.SchedulesByBooking(ctx, id)
		if err != nil {
			return err
		}
		got.ScheduleIDs = make([]ScheduleID, len(sessions))
		for i, sc := range sessions {
			got.ScheduleIDs[i] = sc.ID
		}
		b = got
		return nil
	})
	if err != nil {
		if generic.IsNotFound(err) {
			return nil, &generic.NotFoundError{Kind: "booking", ID: string(id)}
		}
		return nil, err
	}
	if !b.IsParty(caller.UserID) && !privileged(caller) {
		return nil, forbidden(caller, "read booking "+string(id))
	}
	return b, nil
}

// Sessions lists the booking's sessions in start order.
func (s *Service) Sessions(ctx context.Context, caller Caller, id BookingID) ([]Schedule, error) {
	if _, err := s.Get(ctx, caller, id); err != nil {
		return nil, err
	}
	var out []Schedule
	err := s.read(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.store.SchedulesByBooking(ctx, id)
		return err
	})
	return out, err
}

// PendingBefore lists pending bookings created before cutoff.
func (s *Service) PendingBefore(ctx context.Context, cutoff time.Time) ([]Booking, error) {
	var out []Booking
	err := s.read(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.store.PendingCreatedBefore(ctx, cutoff)
		return err
	})
	return out, err
}

// =============================================================================
// INTERNALS
// =============================================================================

// transition locks the booking, lets fn mutate it and writes it back, all in
// one transaction.
func (s *Service) transition(ctx context.Context, op string, id BookingID, fn func(tx Store, b *Booking) error) (*Booking, error) {
	var out *Booking
	err := s.atomically(ctx, op, func(tx Store) error {
		b, err := tx.LockBooking(ctx, id)
		if err != nil {
			if generic.IsNotFound(err) {
				return &generic.NotFoundError{Kind: "booking", ID: string(id)}
			}
			return fmt.Errorf("lock booking: %w", err)
		}
		if err := fn(tx, b); err != nil {
			return err
		}
		b.UpdatedAt = s.clock.Now()
		if err := tx.UpdateBooking(ctx, b); err != nil {
			return fmt.Errorf("update booking: %w", err)
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// lockParties locks the learner and tutor accounts in user-id order. Every
// operation that moves money between the two calls it before posting.
func lockParties(ctx context.Context, tx Store, b *Booking) error {
	ids := [2]generic.UserID{b.LearnerID, b.TutorID}
	if ids[1] < ids[0] {
		ids[0], ids[1] = ids[1], ids[0]
	}
	for _, id := range ids {
		if _, err := tx.LockAccount(ctx, id); err != nil {
			if generic.IsNotFound(err) {
				return &generic.NotFoundError{Kind: "account", ID: string(id)}
			}
			return fmt.Errorf("lock account: %w", err)
		}
	}
	return nil
}

// resolveEarly ends b before completion: refunds per rule, settles the
// deposit, deletes sessions and releases slots.
func (s *Service) resolveEarly(ctx context.Context, tx Store, b *Booking, to Status, rule CancellationRule, reason string) (generic.Amount, error) {
	refund := rule.Refund(b)
	if refund.IsPositive() {
		if _, err := s.ledger.Post(ctx, tx, generic.Posting{
			UserID:         b.LearnerID,
			Amount:         refund,
			Type:           generic.EntryRefund,
			Description:    fmt.Sprintf("%s refund for booking %s", reason, b.ID),
			ReferenceID:    string(b.ID),
			IdempotencyKey: idempotencyKey(b.ID, "refund"),
		}); err != nil {
			return refund, err
		}
	}

	b.Status = to
	b.DepositStatus = rule.DepositAfter(b.DepositStatus)
	if _, err := tx.DeleteSchedules(ctx, b.ID); err != nil {
		return refund, fmt.Errorf("delete schedules: %w", err)
	}
	if err := tx.ReleaseSlots(ctx, b.ID); err != nil {
		return refund, fmt.Errorf("release slots: %w", err)
	}
	b.ScheduleIDs = nil
	return refund, nil
}

// atomically runs fn in a transaction. Non-domain failures become
// TransactionFailedError.
func (s *Service) atomically(ctx context.Context, op string, fn func(Store) error) error {
	err := s.store.WithTx(ctx, fn)
	if err == nil || generic.IsClientError(err) {
		return err
	}
	s.logger.Error("transaction failed", zap.String("op", op), zap.Error(err))
	return &generic.TransactionFailedError{Op: op, Err: err}
}

// read retries fn on transient conflicts.
func (s *Service) read(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(s.readRetries, retry.NewExponential(s.readBackoff))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && generic.IsRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (s *Service) notify(ctx context.Context, actor Caller, b *Booking, typ EventType, amount generic.Amount, reason string) {
	e := Event{
		Type:      typ,
		BookingID: b.ID,
		LearnerID: b.LearnerID,
		TutorID:   b.TutorID,
		Status:    b.Status,
		Actor:     actor.UserID,
		Reason:    reason,
		At:        s.clock.Now(),
	}
	if amount.IsPositive() {
		e.Amount = amount.String()
	}
	if err := s.notifier.Notify(context.WithoutCancel(ctx), e); err != nil {
		s.logger.Warn("notification failed",
			zap.String("event", string(typ)),
			zap.String("booking_id", string(b.ID)),
			zap.Error(err),
		)
	}
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "booking."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func idempotencyKey(id BookingID, what string) string {
	return "booking:" + string(id) + ":" + what
}

func forbidden(c Caller, action string) error {
	return &generic.ForbiddenError{UserID: c.UserID, Action: action}
}

func privileged(c Caller) bool { return c.Role == RoleAdmin || c.Role == RoleSystem }

func actsAsTutor(c Caller, b *Booking) bool {
	return c.UserID == b.TutorID || c.Role == RoleAdmin
}
