package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"pairstake/internal/domain"
)

// EnsureWallet creates a zero-balance wallet row for the owner if one does
// not exist yet.
func (d *DB) EnsureWallet(ctx context.Context, ownerID int64) error {
	_, err := d.sql.ExecContext(ctx,
		"INSERT INTO wallets(owner_id, balance_cents) VALUES($1, 0) ON CONFLICT (owner_id) DO NOTHING;", ownerID)
	return err
}

// Balance returns the owner's balance in cents.
func (d *DB) Balance(ctx context.Context, ownerID int64) (int64, error) {
	var balance int64
	err := d.sql.QueryRowContext(ctx,
		"SELECT balance_cents FROM wallets WHERE owner_id = $1;", ownerID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return balance, err
}

// Apply records the transaction and adjusts the balance in one database
// transaction. The UNIQUE(session_id, kind) constraint makes replays fail
// with ErrDuplicateTransaction before any balance change; the non-negative
// balance check makes overdrawing fail with ErrInsufficientBalance.
func (d *DB) Apply(ctx context.Context, t domain.Transaction) (int64, error) {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		"INSERT INTO transactions(session_id, owner_id, kind, amount_cents, created_at) VALUES($1, $2, $3, $4, $5);",
		t.SessionID, t.OwnerID, t.Kind, t.AmountCents, time.Now().UTC())
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return 0, domain.ErrDuplicateTransaction
	}
	if err != nil {
		return 0, err
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE wallets SET balance_cents = balance_cents + $1 WHERE owner_id = $2 AND balance_cents + $1 >= 0;",
		t.AmountCents, t.OwnerID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, domain.ErrInsufficientBalance
	}

	var balance int64
	if err := tx.QueryRowContext(ctx,
		"SELECT balance_cents FROM wallets WHERE owner_id = $1;", t.OwnerID).Scan(&balance); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return balance, nil
}

// FindTransaction returns the transaction for a session and kind, or nil.
func (d *DB) FindTransaction(ctx context.Context, sessionID, kind string) (*domain.Transaction, error) {
	var t domain.Transaction
	err := d.sql.QueryRowContext(ctx,
		"SELECT id, session_id, owner_id, kind, amount_cents, created_at FROM transactions WHERE session_id = $1 AND kind = $2;",
		sessionID, kind,
	).Scan(&t.ID, &t.SessionID, &t.OwnerID, &t.Kind, &t.AmountCents, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTransactions returns the owner's most recent transactions up to limit.
func (d *DB) ListTransactions(ctx context.Context, ownerID int64, limit int) ([]domain.Transaction, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT id, session_id, owner_id, kind, amount_cents, created_at FROM transactions WHERE owner_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2;",
		ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	out := make([]domain.Transaction, 0, limit)
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(&t.ID, &t.SessionID, &t.OwnerID, &t.Kind, &t.AmountCents, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
