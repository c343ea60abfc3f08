/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Amounts travel as decimal strings with two places ("800000.00") so no
  client ever rounds through a float.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/generic"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

type CreateBookingRequest struct {
	LearnerID      string   `json:"learner_id"`
	TutorID        string   `json:"tutor_id"`
	SubjectID      string   `json:"subject_id"`
	NumberOfMonths int      `json:"number_of_months"`
	SlotIDs        []string `json:"slot_ids"`
	Note           string   `json:"note,omitempty"`
}

// ReasonRequest is the optional body of reject and report.
type ReasonRequest struct {
	Reason string `json:"reason"`
}

type AttendanceRequest struct {
	Attended bool `json:"attended"`
}

type OpenAccountRequest struct {
	UserID string `json:"user_id"`
}

// MoneyRequest is the body of top-up and withdraw. Reference makes the
// posting idempotent.
type MoneyRequest struct {
	Amount    string `json:"amount"`
	Reference string `json:"reference,omitempty"`
}

type RegisterTutorRequest struct {
	ID           string `json:"id"`
	PricePerHour string `json:"price_per_hour"`
}

type AddSlotRequest struct {
	DayOfWeek int    `json:"day_of_week"` // 0 = Sunday
	StartTime string `json:"start_time"`  // "15:04"
	EndTime   string `json:"end_time"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

type BookingDTO struct {
	ID               string   `json:"id"`
	LearnerID        string   `json:"learner_id"`
	TutorID          string   `json:"tutor_id"`
	SubjectID        string   `json:"subject_id"`
	Note             string   `json:"note,omitempty"`
	Status           string   `json:"status"`
	DepositStatus    string   `json:"deposit_status"`
	Amount           string   `json:"amount"`
	MonthlyPayment   string   `json:"monthly_payment"`
	InitialPayment   string   `json:"initial_payment"`
	Deposit          string   `json:"deposit"`
	SessionPrice     string   `json:"session_price"`
	NumberOfMonths   int      `json:"number_of_months"`
	NumberOfSessions int      `json:"number_of_sessions"`
	PaidMonths       int      `json:"paid_months"`
	PaidSessions     int      `json:"paid_sessions"`
	Completed        bool     `json:"completed"`
	Reported         bool     `json:"reported"`
	ScheduleIDs      []string `json:"schedule_ids,omitempty"`
	Version          int      `json:"version"`
	CreatedAt        string   `json:"created_at"`
	UpdatedAt        string   `json:"updated_at"`
}

type ScheduleDTO struct {
	ID        string `json:"id"`
	BookingID string `json:"booking_id"`
	SlotID    string `json:"slot_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	StartsAt  string `json:"starts_at"`
	Attended  bool   `json:"attended"`
	Status    string `json:"status"`
}

type AttendanceDTO struct {
	Booking           BookingDTO  `json:"booking"`
	Session           ScheduleDTO `json:"session"`
	Transferred       string      `json:"transferred"`
	TutorDebitSkipped bool        `json:"tutor_debit_skipped,omitempty"`
}

type AccountDTO struct {
	UserID    string `json:"user_id"`
	Balance   string `json:"balance"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

type EntryDTO struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	Amount        string `json:"amount"`
	BalanceChange string `json:"balance_change"`
	BalanceAfter  string `json:"balance_after"`
	Status        string `json:"status"`
	Description   string `json:"description,omitempty"`
	ReferenceID   string `json:"reference_id,omitempty"`
	CreatedAt     string `json:"created_at"`
}

type ReconciliationDTO struct {
	UserID    string `json:"user_id"`
	Balance   string `json:"balance"`
	LedgerSum string `json:"ledger_sum"`
	Drift     string `json:"drift"`
	Entries   int    `json:"entries"`
	Balanced  bool   `json:"balanced"`
}

type TutorDTO struct {
	ID           string `json:"id"`
	PricePerHour string `json:"price_per_hour"`
}

type SlotDTO struct {
	ID        string `json:"id"`
	TutorID   string `json:"tutor_id"`
	DayOfWeek int    `json:"day_of_week"`
	Weekday   string `json:"weekday"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Claimed   bool   `json:"claimed"`
	BookingID string `json:"booking_id,omitempty"`
}

type SweepReportDTO struct {
	Cutoff  string `json:"cutoff"`
	Scanned int    `json:"scanned"`
	Expired int    `json:"expired"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`
	TookMS  int64  `json:"took_ms"`
	NextRun string `json:"next_run,omitempty"`
}

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func money(a generic.Amount) string {
	return a.Value.StringFixed(2)
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func toBookingDTO(b *booking.Booking) BookingDTO {
	dto := BookingDTO{
		ID:               string(b.ID),
		LearnerID:        string(b.LearnerID),
		TutorID:          string(b.TutorID),
		SubjectID:        string(b.SubjectID),
		Note:             b.Note,
		Status:           string(b.Status),
		DepositStatus:    string(b.DepositStatus),
		Amount:           money(b.Amount),
		MonthlyPayment:   money(b.MonthlyPayment),
		InitialPayment:   money(b.InitialPayment),
		Deposit:          money(b.Deposit),
		SessionPrice:     money(b.SessionPrice),
		NumberOfMonths:   b.NumberOfMonths,
		NumberOfSessions: b.NumberOfSessions,
		PaidMonths:       b.PaidMonths,
		PaidSessions:     b.PaidSessions,
		Completed:        b.Completed,
		Reported:         b.Reported,
		Version:          b.Version,
		CreatedAt:        stamp(b.CreatedAt),
		UpdatedAt:        stamp(b.UpdatedAt),
	}
	for _, id := range b.ScheduleIDs {
		dto.ScheduleIDs = append(dto.ScheduleIDs, string(id))
	}
	return dto
}

func toScheduleDTO(s booking.Schedule) ScheduleDTO {
	return ScheduleDTO{
		ID:        string(s.ID),
		BookingID: string(s.BookingID),
		SlotID:    string(s.SlotID),
		Date:      s.Date.Format(time.DateOnly),
		StartTime: s.StartTime.String(),
		EndTime:   s.EndTime.String(),
		StartsAt:  stamp(s.StartsAt()),
		Attended:  s.Attended,
		Status:    string(s.Status),
	}
}

func toAccountDTO(a *generic.Account) AccountDTO {
	return AccountDTO{UserID: string(a.ID), Balance: money(a.Balance), UpdatedAt: stamp(a.UpdatedAt)}
}

func toEntryDTO(e generic.Entry) EntryDTO {
	return EntryDTO{
		ID:            string(e.ID),
		Type:          string(e.Type),
		Amount:        money(e.Amount),
		BalanceChange: money(e.BalanceChange),
		BalanceAfter:  money(e.BalanceAfter),
		Status:        string(e.Status),
		Description:   e.Description,
		ReferenceID:   e.ReferenceID,
		CreatedAt:     stamp(e.CreatedAt),
	}
}

func toSlotDTO(s booking.Slot) SlotDTO {
	return SlotDTO{
		ID:        string(s.ID),
		TutorID:   string(s.TutorID),
		DayOfWeek: int(s.DayOfWeek),
		Weekday:   s.DayOfWeek.String(),
		StartTime: s.StartTime.String(),
		EndTime:   s.EndTime.String(),
		Claimed:   s.Claimed,
		BookingID: string(s.BookingID),
	}
}

func toSweepReportDTO(r booking.SweepReport) SweepReportDTO {
	return SweepReportDTO{
		Cutoff:  stamp(r.Cutoff),
		Scanned: r.Scanned,
		Expired: r.Expired,
		Skipped: r.Skipped,
		Failed:  r.Failed,
		TookMS:  r.Took.Milliseconds(),
	}
}
