/*
Package generic provides the domain-agnostic money and ledger primitives of the engine.

PURPOSE:
  Everything in here is independent of bookings: amounts of money, account
  identifiers, immutable ledger entries and the guarded posting path that is
  the ONLY way a cached balance may change. The booking package builds its
  state machine on top of these types.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount:  A monetary quantity backed by decimal.Decimal
  - Account: A user's wallet with a cached balance
  - Entry:   An immutable ledger row recording one balance change
  - EntryType: topup, withdraw, earning, spend, refund

DESIGN PRINCIPLES:
  1. Immutability: Entries are never modified or deleted
  2. Precision: decimal.Decimal, never float64, for money
  3. Type Safety: UserID and EntryID are distinct string types
  4. Auditability: every entry carries description, reference and balance after

SEE ALSO:
  - ledger.go: The posting path (balance guard + entry append)
  - store.go: AccountStore persistence contract
*/
package generic

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Monetary quantity
// =============================================================================

// Amount is a monetary value. The zero value is a valid zero amount.
type Amount struct {
	Value decimal.Decimal
}

func NewAmount(value int64) Amount { return Amount{Value: decimal.NewFromInt(value)} }

func NewAmountFromDecimal(d decimal.Decimal) Amount { return Amount{Value: d} }

// ParseAmount parses a decimal string such as "150000" or "12.50".
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, err
	}
	return Amount{Value: d}, nil
}

// MustParseAmount is ParseAmount for trusted input (tests, stored values). Invalid input yields zero.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		return Amount{}
	}
	return a
}

func (a Amount) Add(b Amount) Amount            { return Amount{Value: a.Value.Add(b.Value)} }
func (a Amount) Sub(b Amount) Amount            { return Amount{Value: a.Value.Sub(b.Value)} }
func (a Amount) Mul(s decimal.Decimal) Amount   { return Amount{Value: a.Value.Mul(s)} }
func (a Amount) MulInt(n int) Amount            { return Amount{Value: a.Value.Mul(decimal.NewFromInt(int64(n)))} }
func (a Amount) DivInt(n int) Amount            { return Amount{Value: a.Value.DivRound(decimal.NewFromInt(int64(n)), 2)} }
func (a Amount) Neg() Amount                    { return Amount{Value: a.Value.Neg()} }
func (a Amount) Abs() Amount                    { return Amount{Value: a.Value.Abs()} }
func (a Amount) IsNegative() bool               { return a.Value.IsNegative() }
func (a Amount) IsZero() bool                   { return a.Value.IsZero() }
func (a Amount) IsPositive() bool               { return a.Value.IsPositive() }
func (a Amount) Equal(b Amount) bool            { return a.Value.Equal(b.Value) }
func (a Amount) GreaterThan(b Amount) bool      { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool         { return a.Value.LessThan(b.Value) }
func (a Amount) GreaterThanOrEqual(b Amount) bool { return a.Value.GreaterThanOrEqual(b.Value) }
func (a Amount) String() string                 { return a.Value.String() }

// Round returns the amount rounded half away from zero to the given decimal places.
func (a Amount) Round(places int32) Amount { return Amount{Value: a.Value.Round(places)} }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type EntryID string

// =============================================================================
// ACCOUNT - Wallet with cached balance
// =============================================================================

// Account is the balance-bearing side of a user. The balance is a cache of the
// ledger: it is only ever written together with the Entry that explains it.
type Account struct {
	ID        UserID
	Balance   Amount
	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// LEDGER ENTRY - Immutable record of one balance change
// =============================================================================

type EntryType string

const (
	EntryTopUp    EntryType = "topup"    // Funds added from outside the platform
	EntryWithdraw EntryType = "withdraw" // Funds leaving the platform
	EntryEarning  EntryType = "earning"  // Tutor income (session transfer, payout)
	EntrySpend    EntryType = "spend"    // Learner payment (initial payment, session)
	EntryRefund   EntryType = "refund"   // Money returned (cancellation, expiry, reversal)
)

// Sign is +1 for entry types that credit an account and -1 for debits.
func (t EntryType) Sign() int {
	switch t {
	case EntrySpend, EntryWithdraw:
		return -1
	default:
		return 1
	}
}

func (t EntryType) Valid() bool {
	switch t {
	case EntryTopUp, EntryWithdraw, EntryEarning, EntrySpend, EntryRefund:
		return true
	}
	return false
}

type EntryStatus string

const (
	EntrySucceeded EntryStatus = "success"
)

type Entry struct {
	ID             EntryID
	UserID         UserID
	Amount         Amount // always positive
	BalanceChange  Amount // signed, matches Type.Sign()
	BalanceAfter   Amount
	Type           EntryType
	Status         EntryStatus
	Description    string
	ReferenceID    string // booking or session the entry belongs to
	IdempotencyKey string
	CreatedAt      time.Time
}

// SignConsistent reports whether BalanceChange carries the sign its Type requires.
func (e Entry) SignConsistent() bool {
	if e.BalanceChange.IsZero() {
		return false
	}
	if e.Type.Sign() < 0 {
		return e.BalanceChange.IsNegative()
	}
	return e.BalanceChange.IsPositive()
}
