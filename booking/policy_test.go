package booking_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/generic"
)

func TestCancellationRule_Refund(t *testing.T) {
	b := &booking.Booking{InitialPayment: generic.MustParseAmount("800000")}

	tests := []struct {
		fraction string
		want     string
	}{
		{"1", "800000"},
		{"0", "0"},
		{"0.5", "400000"},
		{"0.333", "266400"},
	}
	for _, tt := range tests {
		t.Run(tt.fraction, func(t *testing.T) {
			rule := booking.CancellationRule{RefundFraction: decimal.RequireFromString(tt.fraction)}
			assert.True(t, rule.Refund(b).Equal(generic.MustParseAmount(tt.want)), rule.Refund(b).String())
		})
	}
}

func TestCancellationRule_DepositAfter(t *testing.T) {
	rule := booking.CancellationRule{DepositOnHeld: booking.DepositForfeit}

	assert.Equal(t, booking.DepositForfeit, rule.DepositAfter(booking.DepositHeld))
	assert.Equal(t, booking.DepositNone, rule.DepositAfter(booking.DepositNone))
	assert.Equal(t, booking.DepositRefunded, rule.DepositAfter(booking.DepositRefunded))

	keep := booking.CancellationRule{}
	assert.Equal(t, booking.DepositHeld, keep.DepositAfter(booking.DepositHeld))
}

func TestDefaultPolicy(t *testing.T) {
	p := booking.DefaultPolicy()
	assert.NoError(t, p.Validate())

	pending, ok := p.CancellationFor(booking.StatusPending)
	assert.True(t, ok)
	assert.True(t, pending.RefundFraction.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, booking.DepositRefunded, pending.DepositOnHeld)

	approved, ok := p.CancellationFor(booking.StatusApproved)
	assert.True(t, ok)
	assert.True(t, approved.RefundFraction.IsZero())
	assert.Equal(t, booking.DepositForfeit, approved.DepositOnHeld)

	_, ok = p.CancellationFor(booking.StatusCompleted)
	assert.False(t, ok)

	assert.True(t, p.Rejection.RefundFraction.IsZero())
	assert.True(t, p.Expiry.RefundFraction.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, booking.PayoutRemainder, p.Completion)
}

func TestPolicy_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*booking.Policy)
	}{
		{"fraction above one", func(p *booking.Policy) { p.Rejection.RefundFraction = decimal.NewFromInt(2) }},
		{"negative fraction", func(p *booking.Policy) { p.Expiry.RefundFraction = decimal.NewFromInt(-1) }},
		{"unknown deposit status", func(p *booking.Policy) { p.Rejection.DepositOnHeld = "lost" }},
		{"terminal cancellation key", func(p *booking.Policy) {
			p.Cancellation[booking.StatusCancelled] = booking.CancellationRule{}
		}},
		{"unknown payout mode", func(p *booking.Policy) { p.Completion = "twice" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := booking.DefaultPolicy()
			tt.mutate(&p)
			assert.ErrorIs(t, p.Validate(), generic.ErrValidation)
		})
	}
}

func TestPolicy_Settle(t *testing.T) {
	// One month, 4 sessions at 50,000, initial payment 200,000.
	base := booking.Booking{
		Amount:           generic.NewAmount(200000),
		InitialPayment:   generic.NewAmount(200000),
		SessionPrice:     generic.NewAmount(50000),
		NumberOfSessions: 4,
		DepositStatus:    booking.DepositHeld,
	}

	tests := []struct {
		name    string
		mode    booking.PayoutMode
		paid    int
		amount  int64
		payout  int64
		refund  int64
		deposit booking.DepositStatus
	}{
		{"remainder, all transferred", booking.PayoutRemainder, 4, 200000, 0, 200000, booking.DepositRefunded},
		{"remainder, nothing transferred", booking.PayoutRemainder, 0, 200000, 200000, 0, booking.DepositRefunded},
		{"remainder capped at initial payment", booking.PayoutRemainder, 0, 800000, 200000, 0, booking.DepositRefunded},
		{"remainder, half transferred", booking.PayoutRemainder, 2, 200000, 100000, 100000, booking.DepositRefunded},
		{"lump sum", booking.PayoutLumpSum, 4, 200000, 200000, 0, booking.DepositUsed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := base
			b.PaidSessions = tt.paid
			b.Amount = generic.NewAmount(tt.amount)
			p := booking.DefaultPolicy()
			p.Completion = tt.mode

			st := p.Settle(&b)

			assert.True(t, st.TutorPayout.Equal(generic.NewAmount(tt.payout)), "payout %s", st.TutorPayout)
			assert.True(t, st.LearnerRefund.Equal(generic.NewAmount(tt.refund)), "refund %s", st.LearnerRefund)
			assert.Equal(t, tt.deposit, st.DepositStatus)
		})
	}
}

func TestCanTransition(t *testing.T) {
	assert.True(t, booking.CanTransition(booking.StatusPending, booking.StatusApproved))
	assert.True(t, booking.CanTransition(booking.StatusPending, booking.StatusRejected))
	assert.True(t, booking.CanTransition(booking.StatusPending, booking.StatusCancelled))
	assert.True(t, booking.CanTransition(booking.StatusApproved, booking.StatusCompleted))
	assert.True(t, booking.CanTransition(booking.StatusApproved, booking.StatusCancelled))

	assert.False(t, booking.CanTransition(booking.StatusPending, booking.StatusCompleted))
	assert.False(t, booking.CanTransition(booking.StatusApproved, booking.StatusRejected))
	for _, terminal := range []booking.Status{booking.StatusRejected, booking.StatusCancelled, booking.StatusCompleted} {
		assert.True(t, terminal.Terminal())
		assert.False(t, booking.CanTransition(terminal, booking.StatusPending), terminal)
	}
}
