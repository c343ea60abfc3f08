package booking

import (
	"github.com/warp/booking-engine/generic"
)

// WeeksPerMonth is the billing convention: a month is four weekly sessions per slot.
const WeeksPerMonth = 4

// Quote is the price breakdown of a booking, computed once at creation.
type Quote struct {
	MonthlyFee     generic.Amount
	Amount         generic.Amount
	InitialPayment generic.Amount
	Deposit        generic.Amount
	DepositStatus  DepositStatus
	Sessions       int
	SessionPrice   generic.Amount
}

// ComputeQuote prices `slots` weekly slots at pricePerHour for `months` months.
//
//	monthlyFee     = pricePerHour × slots × 4
//	amount         = monthlyFee × months
//	initialPayment = monthlyFee
//	deposit        = monthlyFee when months > 1, else 0
//	sessionPrice   = amount / (slots × 4 × months), rounded to cents
func ComputeQuote(pricePerHour generic.Amount, slots, months int) (Quote, error) {
	if !pricePerHour.IsPositive() {
		return Quote{}, generic.Invalid("price_per_hour", "must be positive, got %s", pricePerHour)
	}
	if slots < 1 {
		return Quote{}, generic.Invalid("slot_ids", "at least one slot is required")
	}
	if months < 1 {
		return Quote{}, generic.Invalid("number_of_months", "must be at least 1, got %d", months)
	}

	monthly := pricePerHour.MulInt(slots * WeeksPerMonth)
	q := Quote{
		MonthlyFee:     monthly,
		Amount:         monthly.MulInt(months),
		InitialPayment: monthly,
		Deposit:        generic.NewAmount(0),
		DepositStatus:  DepositNone,
		Sessions:       slots * WeeksPerMonth * months,
	}
	if months > 1 {
		q.Deposit = monthly
		q.DepositStatus = DepositHeld
	}
	q.SessionPrice = q.Amount.DivInt(q.Sessions)
	return q, nil
}

// apply copies the quote's terms onto b.
func (q Quote) apply(b *Booking, months int) {
	b.Amount = q.Amount
	b.MonthlyPayment = q.MonthlyFee
	b.InitialPayment = q.InitialPayment
	b.Deposit = q.Deposit
	b.DepositStatus = q.DepositStatus
	b.SessionPrice = q.SessionPrice
	b.NumberOfMonths = months
	b.NumberOfSessions = q.Sessions
	b.PaidMonths = 1
}
