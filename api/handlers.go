/*
handlers.go - HTTP API handlers for the booking engine

PURPOSE:
  Exposes booking.Service via REST. Handles HTTP request/response and JSON
  serialization, and delegates every rule to the domain layer.

ENDPOINTS:
  Bookings:
    POST   /api/bookings                 Create a booking request (learner)
    GET    /api/bookings/{id}            Booking with schedule ids
    GET    /api/bookings/{id}/sessions   Dated sessions
    POST   /api/bookings/{id}/approve    Tutor accepts
    POST   /api/bookings/{id}/reject     Tutor declines
    POST   /api/bookings/{id}/cancel     Learner withdraws
    POST   /api/bookings/{id}/finish     Settle a fully attended booking
    POST   /api/bookings/{id}/report     Flag for admin review

  Sessions:
    POST   /api/sessions/{id}/attendance Toggle attendance (learner)

  Accounts:
    POST   /api/accounts                 Open an account
    GET    /api/accounts/{id}            Balance
    POST   /api/accounts/{id}/topup      Credit
    POST   /api/accounts/{id}/withdraw   Debit
    GET    /api/accounts/{id}/entries    Ledger statement
    GET    /api/accounts/{id}/reconcile  Balance vs ledger sum

  Tutors:
    POST   /api/tutors                   Register price
    GET    /api/tutors/{id}              Directory entry
    GET    /api/tutors/{id}/slots        Weekly slots
    POST   /api/tutors/{id}/slots        Add a slot

  Admin:
    GET    /api/admin/policy             Active refund/payout policy
    GET    /api/admin/sweep              Last expiry sweep
    POST   /api/admin/sweep              Run the expiry sweep now

ERROR HANDLING:
  Domain errors map to status codes in statusFor:
  - 400: Validation errors, invalid input
  - 403: Caller may not act on the resource
  - 404: Resource not found
  - 409: Duplicate booking, slot conflict, already terminal, concurrent write
  - 422: Insufficient balance, incomplete sessions, invalid transition
  - 425: Session has not started yet
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - auth.go: Bearer token identity
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/factory"
	"github.com/warp/booking-engine/generic"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *booking.Service
	Sweeper *booking.ExpirySweeper // nil when sweeping is disabled
	logger  *zap.Logger
}

// NewHandler creates a new handler for the service.
func NewHandler(service *booking.Service, sweeper *booking.ExpirySweeper, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Service: service, Sweeper: sweeper, logger: logger}
}

// =============================================================================
// BOOKING HANDLERS
// =============================================================================

// CreateBooking creates a pending booking and charges the first month.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req CreateBookingRequest
	if !decode(w, r, &req) {
		return
	}
	caller := callerOf(r)
	if req.LearnerID == "" {
		req.LearnerID = string(caller.UserID)
	}

	slotIDs := make([]booking.SlotID, len(req.SlotIDs))
	for i, id := range req.SlotIDs {
		slotIDs[i] = booking.SlotID(id)
	}
	b, err := h.Service.Create(r.Context(), caller, booking.CreateRequest{
		LearnerID:      generic.UserID(req.LearnerID),
		TutorID:        generic.UserID(req.TutorID),
		SubjectID:      booking.SubjectID(req.SubjectID),
		NumberOfMonths: req.NumberOfMonths,
		SlotIDs:        slotIDs,
		Note:           req.Note,
	})
	if err != nil {
		h.fail(w, r, "Failed to create booking", err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookingDTO(b))
}

// GetBooking returns one booking.
func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.Service.Get(r.Context(), callerOf(r), bookingID(r))
	if err != nil {
		h.fail(w, r, "Failed to get booking", err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTO(b))
}

// GetSessions lists the booking's sessions in chronological order.
func (h *Handler) GetSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.Service.Sessions(r.Context(), callerOf(r), bookingID(r))
	if err != nil {
		h.fail(w, r, "Failed to list sessions", err)
		return
	}
	dtos := make([]ScheduleDTO, len(sessions))
	for i, s := range sessions {
		dtos[i] = toScheduleDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) ApproveBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.Service.Approve(r.Context(), callerOf(r), bookingID(r))
	h.respondBooking(w, r, "Failed to approve booking", b, err)
}

func (h *Handler) RejectBooking(w http.ResponseWriter, r *http.Request) {
	var req ReasonRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	b, err := h.Service.Reject(r.Context(), callerOf(r), bookingID(r), req.Reason)
	h.respondBooking(w, r, "Failed to reject booking", b, err)
}

func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.Service.Cancel(r.Context(), callerOf(r), bookingID(r))
	h.respondBooking(w, r, "Failed to cancel booking", b, err)
}

func (h *Handler) FinishBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.Service.Finish(r.Context(), callerOf(r), bookingID(r))
	h.respondBooking(w, r, "Failed to finish booking", b, err)
}

func (h *Handler) ReportBooking(w http.ResponseWriter, r *http.Request) {
	var req ReasonRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	b, err := h.Service.Report(r.Context(), callerOf(r), bookingID(r), req.Reason)
	h.respondBooking(w, r, "Failed to report booking", b, err)
}

// MarkAttendance toggles the attended flag of one session.
func (h *Handler) MarkAttendance(w http.ResponseWriter, r *http.Request) {
	var req AttendanceRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.Service.MarkAttendance(r.Context(), callerOf(r), booking.ScheduleID(chi.URLParam(r, "id")), req.Attended)
	if err != nil {
		h.fail(w, r, "Failed to mark attendance", err)
		return
	}
	writeJSON(w, http.StatusOK, AttendanceDTO{
		Booking:           toBookingDTO(res.Booking),
		Session:           toScheduleDTO(res.Schedule),
		Transferred:       money(res.Transferred),
		TutorDebitSkipped: res.TutorDebitSkipped,
	})
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

func (h *Handler) OpenAccount(w http.ResponseWriter, r *http.Request) {
	var req OpenAccountRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	caller := callerOf(r)
	if req.UserID == "" {
		req.UserID = string(caller.UserID)
	}
	acct, err := h.Service.OpenAccount(r.Context(), caller, generic.UserID(req.UserID))
	if err != nil {
		h.fail(w, r, "Failed to open account", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountDTO(acct))
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := h.Service.Account(r.Context(), callerOf(r), userID(r))
	if err != nil {
		h.fail(w, r, "Failed to get account", err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(acct))
}

func (h *Handler) TopUp(w http.ResponseWriter, r *http.Request) {
	h.moneyMovement(w, r, "Failed to top up", h.Service.TopUp)
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.moneyMovement(w, r, "Failed to withdraw", h.Service.Withdraw)
}

type walletFunc func(ctx context.Context, caller booking.Caller, id generic.UserID, amount generic.Amount, reference string) (generic.Entry, error)

func (h *Handler) moneyMovement(w http.ResponseWriter, r *http.Request, message string, post walletFunc) {
	var req MoneyRequest
	if !decode(w, r, &req) {
		return
	}
	amount, err := generic.ParseAmount(req.Amount)
	if err != nil {
		h.fail(w, r, message, generic.Invalid("amount", "%v", err))
		return
	}
	entry, err := post(r.Context(), callerOf(r), userID(r), amount, req.Reference)
	if err != nil {
		h.fail(w, r, message, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(entry))
}

func (h *Handler) GetEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Service.Statement(r.Context(), callerOf(r), userID(r))
	if err != nil {
		h.fail(w, r, "Failed to get entries", err)
		return
	}
	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Service.Reconcile(r.Context(), callerOf(r), userID(r))
	if err != nil {
		h.fail(w, r, "Failed to reconcile", err)
		return
	}
	writeJSON(w, http.StatusOK, ReconciliationDTO{
		UserID:    string(rec.UserID),
		Balance:   money(rec.Balance),
		LedgerSum: money(rec.LedgerSum),
		Drift:     money(rec.Drift()),
		Entries:   rec.Entries,
		Balanced:  rec.Balanced(),
	})
}

// =============================================================================
// TUTOR HANDLERS
// =============================================================================

func (h *Handler) RegisterTutor(w http.ResponseWriter, r *http.Request) {
	var req RegisterTutorRequest
	if !decode(w, r, &req) {
		return
	}
	caller := callerOf(r)
	if req.ID == "" {
		req.ID = string(caller.UserID)
	}
	price, err := generic.ParseAmount(req.PricePerHour)
	if err != nil {
		h.fail(w, r, "Failed to register tutor", generic.Invalid("price_per_hour", "%v", err))
		return
	}
	t, err := h.Service.RegisterTutor(r.Context(), caller, booking.Tutor{ID: generic.UserID(req.ID), PricePerHour: price})
	if err != nil {
		h.fail(w, r, "Failed to register tutor", err)
		return
	}
	writeJSON(w, http.StatusCreated, TutorDTO{ID: string(t.ID), PricePerHour: money(t.PricePerHour)})
}

func (h *Handler) GetTutor(w http.ResponseWriter, r *http.Request) {
	t, err := h.Service.Tutor(r.Context(), userID(r))
	if err != nil {
		h.fail(w, r, "Failed to get tutor", err)
		return
	}
	writeJSON(w, http.StatusOK, TutorDTO{ID: string(t.ID), PricePerHour: money(t.PricePerHour)})
}

func (h *Handler) ListSlots(w http.ResponseWriter, r *http.Request) {
	slots, err := h.Service.TutorSlots(r.Context(), userID(r))
	if err != nil {
		h.fail(w, r, "Failed to list slots", err)
		return
	}
	dtos := make([]SlotDTO, len(slots))
	for i, s := range slots {
		dtos[i] = toSlotDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) AddSlot(w http.ResponseWriter, r *http.Request) {
	var req AddSlotRequest
	if !decode(w, r, &req) {
		return
	}
	start, err := generic.ParseTimeOfDay(req.StartTime)
	if err != nil {
		h.fail(w, r, "Failed to add slot", generic.Invalid("start_time", "%v", err))
		return
	}
	end, err := generic.ParseTimeOfDay(req.EndTime)
	if err != nil {
		h.fail(w, r, "Failed to add slot", generic.Invalid("end_time", "%v", err))
		return
	}
	slot, err := h.Service.AddSlot(r.Context(), callerOf(r), booking.SlotRequest{
		TutorID:   userID(r),
		DayOfWeek: time.Weekday(req.DayOfWeek),
		StartTime: start,
		EndTime:   end,
	})
	if err != nil {
		h.fail(w, r, "Failed to add slot", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSlotDTO(*slot))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// GetPolicy returns the active policy in its JSON schema.
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, factory.NewPolicyFactory().ToJSON(h.Service.Policy()))
}

// RunSweep expires stale pending bookings immediately.
func (h *Handler) RunSweep(w http.ResponseWriter, r *http.Request) {
	if h.Sweeper == nil {
		writeError(w, http.StatusServiceUnavailable, "sweeper_disabled", "Expiry sweeper is disabled", nil)
		return
	}
	report, err := h.Sweeper.RunNow(r.Context())
	if err != nil {
		h.fail(w, r, "Sweep failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toSweepReportDTO(report))
}

// GetSweep returns the last sweep report and the next scheduled run.
func (h *Handler) GetSweep(w http.ResponseWriter, r *http.Request) {
	if h.Sweeper == nil {
		writeError(w, http.StatusServiceUnavailable, "sweeper_disabled", "Expiry sweeper is disabled", nil)
		return
	}
	report, ok := h.Sweeper.LastRun()
	if !ok {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	dto := toSweepReportDTO(report)
	dto.NextRun = stamp(h.Sweeper.NextRunTime())
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) respondBooking(w http.ResponseWriter, r *http.Request, message string, b *booking.Booking, err error) {
	if err != nil {
		h.fail(w, r, message, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTO(b))
}

// fail maps a domain error to its status. Server-side failures are logged
// with the request id; client errors are not.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(message,
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
	writeError(w, status, code, message, err)
}

// statusFor maps the error taxonomy to an HTTP status and a stable code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, generic.ErrTransactionFailed):
		if generic.IsRetryable(err) {
			return http.StatusConflict, "transaction_failed"
		}
		return http.StatusInternalServerError, "transaction_failed"
	case errors.Is(err, generic.ErrValidation):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, generic.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, generic.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, booking.ErrDuplicateBooking):
		return http.StatusConflict, "duplicate_booking"
	case errors.Is(err, booking.ErrSlotConflict):
		return http.StatusConflict, "slot_conflict"
	case errors.Is(err, booking.ErrAlreadyTerminal):
		return http.StatusConflict, "already_terminal"
	case errors.Is(err, generic.ErrDuplicateIdempotencyKey):
		return http.StatusConflict, "duplicate_request"
	case errors.Is(err, generic.ErrConcurrentModification):
		return http.StatusConflict, "concurrent_modification"
	case errors.Is(err, generic.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity, "insufficient_balance"
	case errors.Is(err, booking.ErrIncompleteSessions):
		return http.StatusUnprocessableEntity, "incomplete_sessions"
	case errors.Is(err, booking.ErrInvalidTransition):
		return http.StatusUnprocessableEntity, "invalid_transition"
	case errors.Is(err, booking.ErrAttendanceUnchanged):
		return http.StatusUnprocessableEntity, "attendance_unchanged"
	case errors.Is(err, booking.ErrTooEarly):
		return http.StatusTooEarly, "too_early"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// errorDetails exposes the fields a client needs to recover.
func errorDetails(err error) any {
	var (
		dup      *booking.DuplicateBookingError
		conflict *booking.SlotConflictError
		short    *generic.InsufficientBalanceError
		partial  *booking.IncompleteSessionsError
		invalid  *generic.ValidationError
		early    *booking.TooEarlyError
	)
	switch {
	case errors.As(err, &dup):
		return map[string]any{"existing_booking_id": dup.ExistingID, "status": dup.Status}
	case errors.As(err, &conflict):
		return map[string]any{"slot_ids": conflict.SlotIDs, "requested": conflict.Requested, "claimed": conflict.Claimed}
	case errors.As(err, &short):
		return map[string]any{"available": money(short.Available), "requested": money(short.Requested)}
	case errors.As(err, &partial):
		return map[string]any{"paid_sessions": partial.Paid, "number_of_sessions": partial.Total}
	case errors.As(err, &invalid):
		return map[string]any{"field": invalid.Field, "message": invalid.Message}
	case errors.As(err, &early):
		return map[string]any{"starts_at": stamp(early.StartsAt)}
	}
	return err.Error()
}

func callerOf(r *http.Request) booking.Caller {
	c, _ := CallerFrom(r.Context())
	return c
}

func bookingID(r *http.Request) booking.BookingID {
	return booking.BookingID(chi.URLParam(r, "id"))
}

func userID(r *http.Request) generic.UserID {
	return generic.UserID(chi.URLParam(r, "id"))
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "Invalid request body", err)
		return false
	}
	return true
}

// decodeOptional accepts an empty body.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.ContentLength == 0 {
		return true
	}
	return decode(w, r, v)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string, err error) {
	resp := ErrorResponse{Error: message, Code: code}
	if err != nil {
		resp.Details = errorDetails(err)
	}
	writeJSON(w, status, resp)
}
