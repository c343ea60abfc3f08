package generic

import "context"

// =============================================================================
// ACCOUNT STORE - Persistence for balances and the ledger
// =============================================================================

// AccountStore persists accounts and ledger entries.
//
// Entries are APPEND-ONLY: there is no update or delete for them. The cached
// balance is written with SetBalance, and callers must only do so through
// Ledger.Post, which appends the matching entry in the same transaction.
type AccountStore interface {
	// SaveAccount creates the account if it does not exist yet. Existing
	// balances are left untouched.
	SaveAccount(ctx context.Context, acct Account) error

	// GetAccount returns ErrNotFound for unknown ids.
	GetAccount(ctx context.Context, id UserID) (*Account, error)

	// LockAccount reads the account for update. Inside a transaction the row
	// stays locked until commit or rollback.
	LockAccount(ctx context.Context, id UserID) (*Account, error)

	SetBalance(ctx context.Context, id UserID, balance Amount) error

	// AppendEntry returns ErrDuplicateIdempotencyKey if a non-empty key exists.
	AppendEntry(ctx context.Context, e Entry) error

	// Entries returns the user's entries oldest first.
	Entries(ctx context.Context, id UserID) ([]Entry, error)

	EntryExists(ctx context.Context, idempotencyKey string) (bool, error)
}
