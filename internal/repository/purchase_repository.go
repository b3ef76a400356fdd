package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/studio-class-booking/internal/model"
)

// PurchaseRepo persists credit purchases.  The reference column is
// unique; the guarded PENDING → PAID update is what makes payment
// confirmations idempotent.
type PurchaseRepo struct {
	db *sql.DB
}

// NewPurchaseRepo returns a PurchaseRepo bound to the given database.
func NewPurchaseRepo(db *sql.DB) *PurchaseRepo { return &PurchaseRepo{db: db} }

// CreateTx inserts a PENDING purchase and returns its ID.
func (r *PurchaseRepo) CreateTx(ctx context.Context, tx *sql.Tx, userID uint64, reference string, credits int64) (uint64, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO purchases (user_id, reference, credits, status) VALUES (?, ?, ?, 'PENDING')`,
		userID, reference, credits)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByReferenceTx locks and returns the purchase with the given
// reference, nil when it does not exist.
func (r *PurchaseRepo) GetByReferenceTx(ctx context.Context, tx *sql.Tx, reference string) (*model.Purchase, error) {
	var (
		p      model.Purchase
		paidAt sql.NullTime
	)
	err := tx.QueryRowContext(ctx,
		`SELECT id, user_id, reference, credits, status, paid_at, created_at
		 FROM purchases WHERE reference = ? FOR UPDATE`,
		reference).Scan(&p.ID, &p.UserID, &p.Reference, &p.Credits, &p.Status, &paidAt, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if paidAt.Valid {
		t := paidAt.Time
		p.PaidAt = &t
	}
	return &p, nil
}

// MarkPaidTx performs the guarded PENDING → PAID transition and
// reports whether this call transitioned it.
func (r *PurchaseRepo) MarkPaidTx(ctx context.Context, tx *sql.Tx, reference string, at time.Time) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE purchases SET status = 'PAID', paid_at = ? WHERE reference = ? AND status = 'PENDING'`,
		at.UTC(), reference)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
