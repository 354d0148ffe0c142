package domain

import (
	"context"
	"time"
)

// Transaction kinds.
const (
	TxStake  = "stake"
	TxPayout = "payout"
)

// Transaction is one immutable ledger entry. Amounts are signed integer
// minor units (cents): stakes are negative, payouts non-negative. At most
// one transaction per (session, kind) may exist; that uniqueness is what
// makes debits and settlement exactly-once across server processes.
type Transaction struct {
	ID          int64     `json:"id"`
	SessionID   string    `json:"sessionId"`
	OwnerID     int64     `json:"ownerId"`
	Kind        string    `json:"kind"`
	AmountCents int64     `json:"amountCents"`
	CreatedAt   time.Time `json:"createdAt"`
}

// WalletRepository is the port to the balance ledger of record.
type WalletRepository interface {
	// Balance returns the owner's current balance in cents.
	Balance(ctx context.Context, ownerID int64) (int64, error)
	// Apply atomically records the transaction and adjusts the owner's
	// balance by tx.AmountCents, returning the new balance. Returns
	// ErrDuplicateTransaction if a transaction for the same session and
	// kind was already applied (the balance is left untouched), and
	// ErrInsufficientBalance if a negative amount would overdraw.
	Apply(ctx context.Context, tx Transaction) (int64, error)
	// FindTransaction returns the transaction for a session and kind, or nil.
	FindTransaction(ctx context.Context, sessionID, kind string) (*Transaction, error)
	// ListTransactions returns the owner's most recent entries up to limit.
	ListTransactions(ctx context.Context, ownerID int64, limit int) ([]Transaction, error)
}
