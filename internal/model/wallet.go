package model

import "time"

// Wallet holds a user's prepaid class credits.  There is exactly one
// wallet per user.  The balance is never written directly: every
// change goes through a ledger-paired delta so that at all times the
// balance equals the sum of the user's ledger entries.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the wallet (unique).
//  Balance   – current credit balance, never negative.
//  CreatedAt – timestamp of creation.
//  UpdatedAt – timestamp of last update.
type Wallet struct {
	ID        uint64    // wallets.id
	UserID    uint64    // wallets.user_id
	Balance   int64     // wallets.balance
	CreatedAt time.Time // wallets.created_at
	UpdatedAt time.Time // wallets.updated_at
}

// LedgerReason enumerates why a credit movement happened.  Stored as
// a string column; code must switch over these constants rather than
// compare ad-hoc strings.
type LedgerReason string

const (
	ReasonPurchase     LedgerReason = "PURCHASE"      // credits bought through the payment collaborator
	ReasonBooking      LedgerReason = "BOOKING"       // debit for a booked session (direct or via waitlist)
	ReasonCancelRefund LedgerReason = "CANCEL_REFUND" // credit returned after an in-window cancellation
	ReasonAdminAdjust  LedgerReason = "ADMIN_ADJUST"  // manual correction by an admin
	ReasonExpiration   LedgerReason = "EXPIRATION"    // credits removed when a package expires
)

// RefKind identifies which entity a ledger entry points back at.
type RefKind string

const (
	RefSession     RefKind = "SESSION"
	RefReservation RefKind = "RESERVATION"
	RefPurchase    RefKind = "PURCHASE"
)

// LedgerRef is a typed back-reference from a ledger entry to the
// entity that caused it.  Construct values through SessionRef,
// ReservationRef or PurchaseRef so that the kind and the ID cannot
// drift apart.  The zero value means "no reference" (admin
// adjustments without a subject).
type LedgerRef struct {
	Kind RefKind // credit_ledger.ref_kind
	ID   uint64  // credit_ledger.ref_id
}

// SessionRef builds a reference to a class session.
func SessionRef(id uint64) LedgerRef { return LedgerRef{Kind: RefSession, ID: id} }

// ReservationRef builds a reference to a reservation.
func ReservationRef(id uint64) LedgerRef { return LedgerRef{Kind: RefReservation, ID: id} }

// PurchaseRef builds a reference to a credit purchase.
func PurchaseRef(id uint64) LedgerRef { return LedgerRef{Kind: RefPurchase, ID: id} }

// IsZero reports whether the reference is unset.
func (r LedgerRef) IsZero() bool { return r.Kind == "" && r.ID == 0 }

// LedgerEntry is an immutable, append-only record of a single credit
// movement.  Entries are created in the same transaction as the
// wallet update they describe and are never updated or deleted.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – wallet owner the delta applies to.
//  Delta     – signed credit change (+grant / −spend).
//  Reason    – why the movement happened.
//  Ref       – typed back-reference to the causing entity.
//  Notes     – optional free-text annotation.
//  CreatedAt – timestamp of creation.
type LedgerEntry struct {
	ID        uint64       // credit_ledger.id
	UserID    uint64       // credit_ledger.user_id
	Delta     int64        // credit_ledger.delta
	Reason    LedgerReason // credit_ledger.reason
	Ref       LedgerRef    // credit_ledger.ref_kind + credit_ledger.ref_id
	Notes     string       // credit_ledger.notes
	CreatedAt time.Time    // credit_ledger.created_at
}
