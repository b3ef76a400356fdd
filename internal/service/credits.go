package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/studio-class-booking/internal/metrics"
	"github.com/iliyamo/studio-class-booking/internal/model"
)

// CreditService covers the credit-granting surfaces around the
// wallet: purchases confirmed by the payment collaborator and manual
// admin adjustments.  Spending happens in the booking and waitlist
// engines; every path goes through the same ledger-paired ApplyDelta.
type CreditService struct {
	store Store
}

// NewCreditService constructs a CreditService.
func NewCreditService(store Store) *CreditService {
	if store == nil {
		panic("nil store passed to NewCreditService")
	}
	return &CreditService{store: store}
}

// CreatePurchase opens a PENDING purchase for the given number of
// credits and returns it.  The generated reference is the idempotency
// key handed to the payment provider; credits are granted only when
// ConfirmPurchase sees that reference.
func (s *CreditService) CreatePurchase(ctx context.Context, userID uint64, credits int64) (*model.Purchase, error) {
	ref := uuid.NewString()
	var p model.Purchase
	err := s.store.ExecTx(ctx, func(tx Tx) error {
		id, err := tx.CreatePurchase(ctx, userID, ref, credits)
		if err != nil {
			return err
		}
		p = model.Purchase{ID: id, UserID: userID, Reference: ref, Credits: credits, Status: model.PurchasePending}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ConfirmPurchase handles a payment confirmation for the referenced
// purchase.  The grant is conditional on the purchase's own
// PENDING → PAID transition, not on the ledger: a duplicate delivery
// of the same confirmation finds the row already PAID, skips the
// grant and still reports success, so the collaborator may retry
// freely without double-granting.
func (s *CreditService) ConfirmPurchase(ctx context.Context, reference string) (*model.Purchase, error) {
	var p *model.Purchase
	err := s.store.ExecTx(ctx, func(tx Tx) error {
		var err error
		p, err = tx.PurchaseByReference(ctx, reference)
		if err != nil {
			return err
		}
		if p == nil {
			return ErrPurchaseNotFound
		}
		now := time.Now().UTC()
		transitioned, err := tx.MarkPurchasePaid(ctx, reference, now)
		if err != nil {
			return err
		}
		if !transitioned {
			return nil
		}
		p.Status = model.PurchasePaid
		p.PaidAt = &now
		if _, err := tx.WalletForUpdate(ctx, p.UserID); err != nil {
			return err
		}
		_, err = tx.ApplyDelta(ctx, p.UserID, p.Credits, model.ReasonPurchase, model.PurchaseRef(p.ID), "")
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.PurchasesTotal.Inc()
	return p, nil
}

// AdminAdjust applies a signed manual correction to a user's wallet
// with reason ADMIN_ADJUST.  Negative deltas that would take the
// balance below zero are rejected whole.
func (s *CreditService) AdminAdjust(ctx context.Context, userID uint64, delta int64, notes string) error {
	return s.store.ExecTx(ctx, func(tx Tx) error {
		wallet, err := tx.WalletForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if wallet.Balance+delta < 0 {
			return ErrInsufficientCredits
		}
		_, err = tx.ApplyDelta(ctx, userID, delta, model.ReasonAdminAdjust, model.LedgerRef{}, notes)
		return err
	})
}
