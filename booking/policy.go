/*
policy.go - Refund and payout rules

PURPOSE:
  What a learner gets back when a booking ends early, and how the tutor is
  paid when it completes, are business rules rather than state-machine
  logic. They live in a Policy table keyed by the status the booking is
  leaving, so they can be tuned (see factory/policy.go) without touching
  the transitions.

DEFAULTS:
  ┌──────────────────────┬────────────────┬──────────────────┐
  │ resolution           │ refund         │ deposit (held →) │
  ├──────────────────────┼────────────────┼──────────────────┤
  │ cancel from pending  │ 100% initial   │ refunded         │
  │ cancel from approve  │ 0%             │ forfeit          │
  │ reject               │ 0%             │ refunded         │
  │ expiry (sweeper)     │ 100% initial   │ refunded         │
  └──────────────────────┴────────────────┴──────────────────┘

  Completion pays the untransferred remainder by default (PayoutRemainder).
  PayoutLumpSum credits the tutor the whole amount on top of per-session
  transfers.
*/
package booking

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/booking-engine/generic"
)

// CancellationRule decides the refund and deposit outcome of ending a booking early.
type CancellationRule struct {
	// RefundFraction of the initial payment returned to the learner, in [0, 1].
	RefundFraction decimal.Decimal
	// DepositOnHeld is the deposit status after resolution when it was held.
	DepositOnHeld DepositStatus
}

// Refund is the amount returned to the learner of b, rounded to cents.
func (r CancellationRule) Refund(b *Booking) generic.Amount {
	if r.RefundFraction.IsZero() {
		return generic.NewAmount(0)
	}
	return b.InitialPayment.Mul(r.RefundFraction).Round(2)
}

// DepositAfter maps the current deposit status through the rule. Only a
// held deposit changes.
func (r CancellationRule) DepositAfter(current DepositStatus) DepositStatus {
	if current != DepositHeld || r.DepositOnHeld == "" {
		return current
	}
	return r.DepositOnHeld
}

func (r CancellationRule) Validate() error {
	if r.RefundFraction.IsNegative() || r.RefundFraction.GreaterThan(decimal.NewFromInt(1)) {
		return generic.Invalid("refund_fraction", "must be between 0 and 1, got %s", r.RefundFraction)
	}
	if r.DepositOnHeld != "" && !r.DepositOnHeld.Valid() {
		return generic.Invalid("deposit_on_held", "unknown deposit status %q", r.DepositOnHeld)
	}
	return nil
}

// PayoutMode selects how completion settles with the tutor.
type PayoutMode string

const (
	// PayoutRemainder credits the tutor amount − paidSessions × sessionPrice
	// out of the held initial payment and returns the rest of it to the learner.
	PayoutRemainder PayoutMode = "remainder"
	// PayoutLumpSum credits the tutor the full amount at completion.
	PayoutLumpSum PayoutMode = "lump_sum"
)

func (m PayoutMode) Valid() bool { return m == PayoutRemainder || m == PayoutLumpSum }

// Policy is the full rule table.
type Policy struct {
	Cancellation map[Status]CancellationRule
	Rejection    CancellationRule
	Expiry       CancellationRule
	Completion   PayoutMode
}

func DefaultPolicy() Policy {
	one := decimal.NewFromInt(1)
	return Policy{
		Cancellation: map[Status]CancellationRule{
			StatusPending:  {RefundFraction: one, DepositOnHeld: DepositRefunded},
			StatusApproved: {RefundFraction: decimal.Zero, DepositOnHeld: DepositForfeit},
		},
		Rejection:  CancellationRule{RefundFraction: decimal.Zero, DepositOnHeld: DepositRefunded},
		Expiry:     CancellationRule{RefundFraction: one, DepositOnHeld: DepositRefunded},
		Completion: PayoutRemainder,
	}
}

// CancellationFor returns the rule for cancelling from status s.
func (p Policy) CancellationFor(s Status) (CancellationRule, bool) {
	r, ok := p.Cancellation[s]
	return r, ok
}

func (p Policy) Validate() error {
	for s, r := range p.Cancellation {
		if !s.Active() {
			return generic.Invalid("cancellation", "status %q cannot be cancelled", s)
		}
		if err := r.Validate(); err != nil {
			return fmt.Errorf("cancellation[%s]: %w", s, err)
		}
	}
	if err := p.Rejection.Validate(); err != nil {
		return fmt.Errorf("rejection: %w", err)
	}
	if err := p.Expiry.Validate(); err != nil {
		return fmt.Errorf("expiry: %w", err)
	}
	if !p.Completion.Valid() {
		return generic.Invalid("completion_payout", "unknown payout mode %q", p.Completion)
	}
	return nil
}

// Settlement is what completion moves.
type Settlement struct {
	TutorPayout   generic.Amount // earning for the tutor
	LearnerRefund generic.Amount // released back to the learner
	DepositStatus DepositStatus
}

// Settle computes the completion settlement for b under the policy's payout mode.
func (p Policy) Settle(b *Booking) Settlement {
	zero := generic.NewAmount(0)
	if p.Completion == PayoutLumpSum {
		deposit := b.DepositStatus
		if deposit == DepositHeld {
			deposit = DepositUsed
		}
		return Settlement{TutorPayout: b.Amount, LearnerRefund: zero, DepositStatus: deposit}
	}

	remainder := b.Amount.Sub(b.Transferred())
	if !remainder.IsPositive() {
		remainder = zero
	}
	if remainder.GreaterThan(b.InitialPayment) {
		remainder = b.InitialPayment
	}
	deposit := b.DepositStatus
	if deposit == DepositHeld {
		deposit = DepositRefunded
	}
	return Settlement{
		TutorPayout:   remainder,
		LearnerRefund: b.InitialPayment.Sub(remainder),
		DepositStatus: deposit,
	}
}
