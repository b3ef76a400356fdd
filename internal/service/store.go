package service

import (
	"context"
	"time"

	"github.com/iliyamo/studio-class-booking/internal/model"
)

// Store is the transactional boundary the engines run against.  ExecTx
// executes fn inside one all-or-nothing transaction: if fn returns an
// error the transaction is rolled back, otherwise it is committed.
// The production implementation is repository.SQLStore backed by
// MySQL/InnoDB; tests substitute an in-memory store whose ExecTx
// holds a mutex, which provides the same serializable semantics the
// SQL store gets from FOR UPDATE row locks.
type Store interface {
	ExecTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of state reads and writes available inside a
// transaction.  "ForUpdate" reads take an exclusive lock on the row
// so that concurrent transactions touching the same session or wallet
// serialize; every capacity or balance check the engines perform is
// paired with the lock that makes the later write race-free.
//
// Lookup methods that can legitimately find nothing (reservation or
// waitlist rows for a pair, tokens, in-flight offers) return
// (nil, nil) rather than an error so callers can branch without
// sentinel comparisons.
type Tx interface {
	// Sessions. SessionForUpdate locks the session row; all occupancy
	// and waitlist mutations for a session begin with this call.
	SessionForUpdate(ctx context.Context, sessionID uint64) (*model.ClassSession, error)
	ActiveReservationCount(ctx context.Context, sessionID uint64) (int, error)

	// Wallet and ledger. ApplyDelta updates the balance and appends
	// the ledger row as one indivisible pair; it must be called with
	// the wallet row already locked via WalletForUpdate. It returns
	// the new ledger entry's ID.
	WalletForUpdate(ctx context.Context, userID uint64) (*model.Wallet, error)
	ApplyDelta(ctx context.Context, userID uint64, delta int64, reason model.LedgerReason, ref model.LedgerRef, notes string) (uint64, error)

	// Reservations. UpsertBooked creates the (session, user) row or
	// reactivates a CANCELLED one, setting status BOOKED, the paying
	// ledger entry and booked_at, and clearing cancelled_at.
	ReservationForUpdate(ctx context.Context, sessionID, userID uint64) (*model.Reservation, error)
	UpsertBooked(ctx context.Context, sessionID, userID, ledgerID uint64, bookedAt time.Time) (uint64, error)
	MarkReservationCancelled(ctx context.Context, reservationID uint64, at time.Time) error

	// Waitlist.
	WaitingCount(ctx context.Context, sessionID uint64) (int, error)
	ActiveWaitlistCount(ctx context.Context, sessionID uint64) (int, error)
	ActiveWaitlistEntry(ctx context.Context, sessionID, userID uint64) (*model.WaitlistEntry, error)
	UpsertWaiting(ctx context.Context, sessionID, userID uint64, position int) (uint64, error)
	LowestWaiting(ctx context.Context, sessionID uint64) (*model.WaitlistEntry, error)
	NotifiedEntry(ctx context.Context, sessionID uint64) (*model.WaitlistEntry, error)
	MarkNotified(ctx context.Context, entryID uint64, token string, notifiedAt, expiresAt time.Time) error
	EntryByToken(ctx context.Context, token string) (*model.WaitlistEntry, error)
	MarkAccepted(ctx context.Context, entryID uint64, at time.Time) error
	// MarkExpiredIfNotified flips the entry to EXPIRED only when it is
	// still NOTIFIED with a passed deadline, reporting whether the
	// flip happened. The guard makes the sweep safe against a
	// concurrent acceptance.
	MarkExpiredIfNotified(ctx context.Context, entryID uint64, now time.Time) (bool, error)
	MarkWaitlistCancelled(ctx context.Context, entryID uint64) error
	// CompactPositions closes the gap left by a departed entry:
	// every WAITING entry of the session with a greater position is
	// shifted down by one.
	CompactPositions(ctx context.Context, sessionID uint64, removedPosition int) error
	ExpiredNotifiedEntries(ctx context.Context, now time.Time) ([]model.WaitlistEntry, error)

	// Users, for notification payloads.
	UserByID(ctx context.Context, userID uint64) (*model.User, error)

	// Purchases. MarkPurchasePaid performs the guarded
	// PENDING → PAID transition and reports whether this call was the
	// one that transitioned it.
	CreatePurchase(ctx context.Context, userID uint64, reference string, credits int64) (uint64, error)
	PurchaseByReference(ctx context.Context, reference string) (*model.Purchase, error)
	MarkPurchasePaid(ctx context.Context, reference string, at time.Time) (bool, error)
}
