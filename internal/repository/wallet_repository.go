package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/studio-class-booking/internal/model"
)

// WalletRepo persists wallets and the append-only credit ledger.  The
// two are written only together: ApplyDeltaTx updates the balance and
// inserts the ledger row inside the caller's transaction, so the
// invariant balance == sum(ledger deltas) holds by construction.
type WalletRepo struct {
	db *sql.DB
}

// NewWalletRepo returns a WalletRepo bound to the given database.
func NewWalletRepo(db *sql.DB) *WalletRepo { return &WalletRepo{db: db} }

// GetForUpdateTx locks and returns the user's wallet row.  Every
// balance-gated decision must read through this lock.
func (r *WalletRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, userID uint64) (*model.Wallet, error) {
	var w model.Wallet
	err := tx.QueryRowContext(ctx,
		`SELECT id, user_id, balance, created_at, updated_at FROM wallets WHERE user_id = ? FOR UPDATE`,
		userID).Scan(&w.ID, &w.UserID, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// Get returns the wallet without locking, for read-only surfaces.
func (r *WalletRepo) Get(ctx context.Context, userID uint64) (*model.Wallet, error) {
	var w model.Wallet
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, balance, created_at, updated_at FROM wallets WHERE user_id = ?`,
		userID).Scan(&w.ID, &w.UserID, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// ApplyDeltaTx moves the balance by delta and appends the matching
// ledger entry, returning the entry's ID.  The UPDATE is guarded so a
// negative delta can never push the balance below zero even if the
// caller's own check raced; zero rows affected means the guard fired
// (or the wallet is missing) and nothing is written.
func (r *WalletRepo) ApplyDeltaTx(ctx context.Context, tx *sql.Tx, userID uint64, delta int64, reason model.LedgerReason, ref model.LedgerRef, notes string) (uint64, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE wallets SET balance = balance + ? WHERE user_id = ? AND balance + ? >= 0`,
		delta, userID, delta)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrInsufficientBalance
	}
	var (
		refKind sql.NullString
		refID   sql.NullInt64
	)
	if !ref.IsZero() {
		refKind = sql.NullString{String: string(ref.Kind), Valid: true}
		refID = sql.NullInt64{Int64: int64(ref.ID), Valid: true}
	}
	ins, err := tx.ExecContext(ctx,
		`INSERT INTO credit_ledger (user_id, delta, reason, ref_kind, ref_id, notes) VALUES (?, ?, ?, ?, ?, ?)`,
		userID, delta, string(reason), refKind, refID, notes)
	if err != nil {
		return 0, err
	}
	id, err := ins.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// ListLedger returns the user's ledger entries, newest first.
func (r *WalletRepo) ListLedger(ctx context.Context, userID uint64, limit int) ([]model.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, delta, reason, ref_kind, ref_id, notes, created_at
		 FROM credit_ledger WHERE user_id = ? ORDER BY id DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := make([]model.LedgerEntry, 0)
	for rows.Next() {
		var (
			e       model.LedgerEntry
			reason  string
			refKind sql.NullString
			refID   sql.NullInt64
			notes   sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Delta, &reason, &refKind, &refID, &notes, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Reason = model.LedgerReason(reason)
		if refKind.Valid && refID.Valid {
			e.Ref = model.LedgerRef{Kind: model.RefKind(refKind.String), ID: uint64(refID.Int64)}
		}
		if notes.Valid {
			e.Notes = notes.String
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
