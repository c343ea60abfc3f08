package booking

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/warp/booking-engine/generic"
)

// =============================================================================
// WALLET - Balance operations outside the booking lifecycle
// =============================================================================

// OpenAccount creates a zero-balance account for id if it has none.
func (s *Service) OpenAccount(ctx context.Context, caller Caller, id generic.UserID) (*generic.Account, error) {
	if id == "" {
		return nil, generic.Invalid("user_id", "is required")
	}
	if caller.UserID != id && !privileged(caller) {
		return nil, forbidden(caller, "open account "+string(id))
	}
	now := s.clock.Now()
	if err := s.store.SaveAccount(ctx, generic.Account{ID: id, Balance: generic.NewAmount(0), CreatedAt: now, UpdatedAt: now}); err != nil {
		return nil, fmt.Errorf("save account: %w", err)
	}
	return s.store.GetAccount(ctx, id)
}

// Account returns the cached balance.
func (s *Service) Account(ctx context.Context, caller Caller, id generic.UserID) (*generic.Account, error) {
	if caller.UserID != id && !privileged(caller) {
		return nil, forbidden(caller, "read account "+string(id))
	}
	var acct *generic.Account
	err := s.read(ctx, func(ctx context.Context) error {
		var err error
		acct, err = s.store.GetAccount(ctx, id)
		return err
	})
	if generic.IsNotFound(err) {
		return nil, &generic.NotFoundError{Kind: "account", ID: string(id)}
	}
	return acct, err
}

// TopUp credits the account. The payment itself happens outside the engine.
func (s *Service) TopUp(ctx context.Context, caller Caller, id generic.UserID, amount generic.Amount, reference string) (generic.Entry, error) {
	return s.walletPost(ctx, caller, "top up", generic.Posting{
		UserID:         id,
		Amount:         amount,
		Type:           generic.EntryTopUp,
		Description:    "top-up",
		ReferenceID:    reference,
		IdempotencyKey: walletKey(id, "topup", reference),
	})
}

// Withdraw debits the account, failing with InsufficientBalanceError rather
// than going below zero.
func (s *Service) Withdraw(ctx context.Context, caller Caller, id generic.UserID, amount generic.Amount, reference string) (generic.Entry, error) {
	return s.walletPost(ctx, caller, "withdraw", generic.Posting{
		UserID:         id,
		Amount:         amount,
		Type:           generic.EntryWithdraw,
		Description:    "withdrawal",
		ReferenceID:    reference,
		IdempotencyKey: walletKey(id, "withdraw", reference),
	})
}

func (s *Service) walletPost(ctx context.Context, caller Caller, op string, p generic.Posting) (_ generic.Entry, err error) {
	ctx, span := s.startSpan(ctx, "Wallet",
		attribute.String("user_id", string(p.UserID)),
		attribute.String("type", string(p.Type)),
	)
	defer func() { endSpan(span, err) }()

	if caller.UserID != p.UserID && !privileged(caller) {
		return generic.Entry{}, forbidden(caller, op+" for "+string(p.UserID))
	}

	var entry generic.Entry
	err = s.atomically(ctx, op, func(tx Store) error {
		var err error
		entry, err = s.ledger.Post(ctx, tx, p)
		return err
	})
	if err != nil {
		return generic.Entry{}, err
	}
	s.logger.Info("wallet posting",
		zap.String("user_id", string(p.UserID)),
		zap.String("type", string(p.Type)),
		zap.Stringer("amount", p.Amount),
		zap.Stringer("balance_after", entry.BalanceAfter),
	)
	return entry, nil
}

// Statement returns the account's ledger entries oldest first.
func (s *Service) Statement(ctx context.Context, caller Caller, id generic.UserID) ([]generic.Entry, error) {
	if caller.UserID != id && !privileged(caller) {
		return nil, forbidden(caller, "read statement of "+string(id))
	}
	var entries []generic.Entry
	err := s.read(ctx, func(ctx context.Context) error {
		var err error
		entries, err = s.store.Entries(ctx, id)
		return err
	})
	return entries, err
}

// Reconcile compares the cached balance with the ledger sum.
func (s *Service) Reconcile(ctx context.Context, caller Caller, id generic.UserID) (generic.Reconciliation, error) {
	if caller.UserID != id && !privileged(caller) {
		return generic.Reconciliation{}, forbidden(caller, "reconcile "+string(id))
	}
	var r generic.Reconciliation
	err := s.read(ctx, func(ctx context.Context) error {
		var err error
		r, err = s.ledger.Reconcile(ctx, s.store, id)
		return err
	})
	if err != nil {
		if generic.IsNotFound(err) {
			return r, &generic.NotFoundError{Kind: "account", ID: string(id)}
		}
		return r, err
	}
	if !r.Balanced() {
		s.logger.Error("ledger drift detected",
			zap.String("user_id", string(id)),
			zap.Stringer("balance", r.Balance),
			zap.Stringer("ledger_sum", r.LedgerSum),
		)
	}
	return r, nil
}

// walletKey makes a caller-supplied reference idempotent per account.
func walletKey(id generic.UserID, kind, reference string) string {
	if reference == "" {
		return ""
	}
	return "wallet:" + string(id) + ":" + kind + ":" + reference
}
