package domain

import "errors"

var (
	// ErrActiveSessionExists indicates the owner already has an active session.
	ErrActiveSessionExists = errors.New("active session exists")
	// ErrVersionConflict indicates another writer updated the session first.
	ErrVersionConflict = errors.New("session version conflict")
	// ErrInsufficientBalance indicates the wallet cannot cover a debit.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrDuplicateTransaction indicates a transaction already exists for the
	// session and kind.
	ErrDuplicateTransaction = errors.New("duplicate transaction")
)
