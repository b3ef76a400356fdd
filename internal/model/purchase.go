package model

import "time"

// PurchaseStatus enumerates the states of a credit purchase.
type PurchaseStatus string

const (
	PurchasePending PurchaseStatus = "PENDING"
	PurchasePaid    PurchaseStatus = "PAID"
)

// Purchase is a request to buy credits, confirmed later by the
// payment collaborator.  The credit grant is tied to the row's
// PENDING → PAID transition, which is what makes duplicate payment
// confirmations idempotent: only the first confirmation flips the
// status, so only the first one grants.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – buyer.
//  Reference – opaque idempotency key handed to the payment provider.
//  Credits   – number of credits granted when paid.
//  Status    – PENDING or PAID.
//  PaidAt    – when the payment was confirmed (null while pending).
//  CreatedAt – timestamp of creation.
type Purchase struct {
	ID        uint64         // purchases.id
	UserID    uint64         // purchases.user_id
	Reference string         // purchases.reference
	Credits   int64          // purchases.credits
	Status    PurchaseStatus // purchases.status
	PaidAt    *time.Time     // purchases.paid_at (nullable)
	CreatedAt time.Time      // purchases.created_at
}
