/*
ledger.go - Guarded balance mutation and append-only entries

PURPOSE:
  The Ledger is the single path through which a balance changes. A posting
  locks the account, checks that a debit does not take it below zero, writes
  the new cached balance and appends the Entry explaining the change, all
  against the AccountStore it is handed. Callers pass a transactional view so
  the posting commits or rolls back together with the rest of their work.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: entries are never updated or deleted
  2. NON-NEGATIVE: no debit is applied if the balance cannot cover it
  3. CONSISTENT: balance change and entry are written together
  4. IDEMPOTENT: a posting with a known idempotency key is rejected

CORRECTIONS:
  Mistakes are not edited. A reversing posting (refund for a spend, spend
  for an earning) is appended and both rows remain.

EXAMPLE:
  err := txStore.WithTx(ctx, func(tx booking.Store) error {
      _, err := ledger.Post(ctx, tx, generic.Posting{
          UserID: learnerID, Amount: fee, Type: generic.EntrySpend,
          Description: "initial payment", ReferenceID: bookingID,
      })
      return err
  })

SEE ALSO:
  - store.go: AccountStore
  - booking/service.go: Postings for bookings, refunds and payouts
*/
package generic

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Posting is a request to move money into or out of one account.
type Posting struct {
	UserID         UserID
	Amount         Amount // positive magnitude; direction comes from Type
	Type           EntryType
	Description    string
	ReferenceID    string
	IdempotencyKey string
}

// Ledger applies postings. It holds no state besides its clock.
type Ledger struct {
	clock Clock
	newID func() EntryID
}

func NewLedger(clock Clock) *Ledger {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Ledger{
		clock: clock,
		newID: func() EntryID { return EntryID(uuid.NewString()) },
	}
}

// Post applies one posting against store and returns the appended entry.
// On any error nothing has been written.
func (l *Ledger) Post(ctx context.Context, store AccountStore, p Posting) (Entry, error) {
	if p.UserID == "" {
		return Entry{}, Invalid("user_id", "is required")
	}
	if !p.Type.Valid() {
		return Entry{}, Invalid("type", "unknown entry type %q", p.Type)
	}
	if !p.Amount.IsPositive() {
		return Entry{}, Invalid("amount", "must be positive, got %s", p.Amount)
	}

	if p.IdempotencyKey != "" {
		exists, err := store.EntryExists(ctx, p.IdempotencyKey)
		if err != nil {
			return Entry{}, fmt.Errorf("check idempotency key: %w", err)
		}
		if exists {
			return Entry{}, ErrDuplicateIdempotencyKey
		}
	}

	acct, err := store.LockAccount(ctx, p.UserID)
	if err != nil {
		if IsNotFound(err) {
			return Entry{}, &NotFoundError{Kind: "account", ID: string(p.UserID)}
		}
		return Entry{}, fmt.Errorf("lock account: %w", err)
	}

	change := p.Amount
	if p.Type.Sign() < 0 {
		change = p.Amount.Neg()
	}
	after := acct.Balance.Add(change)
	if after.IsNegative() {
		return Entry{}, &InsufficientBalanceError{
			UserID:    p.UserID,
			Available: acct.Balance,
			Requested: p.Amount,
		}
	}

	if err := store.SetBalance(ctx, p.UserID, after); err != nil {
		return Entry{}, fmt.Errorf("set balance: %w", err)
	}

	entry := Entry{
		ID:             l.newID(),
		UserID:         p.UserID,
		Amount:         p.Amount,
		BalanceChange:  change,
		BalanceAfter:   after,
		Type:           p.Type,
		Status:         EntrySucceeded,
		Description:    p.Description,
		ReferenceID:    p.ReferenceID,
		IdempotencyKey: p.IdempotencyKey,
		CreatedAt:      l.clock.Now(),
	}
	if err := store.AppendEntry(ctx, entry); err != nil {
		return Entry{}, fmt.Errorf("append entry: %w", err)
	}
	return entry, nil
}

// =============================================================================
// RECONCILIATION - Cached balance vs. ledger
// =============================================================================

// Reconciliation compares the cached balance with the sum of the ledger.
type Reconciliation struct {
	UserID    UserID
	Balance   Amount
	LedgerSum Amount
	Entries   int
}

// Drift is Balance minus LedgerSum; zero for a healthy account.
func (r Reconciliation) Drift() Amount { return r.Balance.Sub(r.LedgerSum) }

func (r Reconciliation) Balanced() bool { return r.Drift().IsZero() }

// Reconcile reads the account and its entries. It is read-only.
func (l *Ledger) Reconcile(ctx context.Context, store AccountStore, id UserID) (Reconciliation, error) {
	acct, err := store.GetAccount(ctx, id)
	if err != nil {
		return Reconciliation{}, err
	}
	entries, err := store.Entries(ctx, id)
	if err != nil {
		return Reconciliation{}, err
	}

	sum := Amount{}
	for _, e := range entries {
		sum = sum.Add(e.BalanceChange)
	}
	return Reconciliation{
		UserID:    id,
		Balance:   acct.Balance,
		LedgerSum: sum,
		Entries:   len(entries),
	}, nil
}
