package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/studio-class-booking/internal/model"
	"github.com/iliyamo/studio-class-booking/internal/service"
)

// SQLStore is the production implementation of service.Store.  It
// composes the per-aggregate repositories under one transaction:
// ExecTx opens a *sql.Tx, hands the callback a sqlTx view over it,
// and commits or rolls back as a whole.  Isolation comes from
// InnoDB's default REPEATABLE READ plus the explicit FOR UPDATE locks
// the repositories take on session and wallet rows.
type SQLStore struct {
	db           *sql.DB
	sessions     *SessionRepo
	wallets      *WalletRepo
	reservations *ReservationRepo
	waitlist     *WaitlistRepo
	purchases    *PurchaseRepo
	users        *UserRepo
}

// NewSQLStore builds a SQLStore over the shared database handle.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{
		db:           db,
		sessions:     NewSessionRepo(db),
		wallets:      NewWalletRepo(db),
		reservations: NewReservationRepo(db),
		waitlist:     NewWaitlistRepo(db),
		purchases:    NewPurchaseRepo(db),
		users:        NewUserRepo(db),
	}
}

// ExecTx runs fn inside one transaction.
func (s *SQLStore) ExecTx(ctx context.Context, fn func(tx service.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&sqlTx{store: s, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// sqlTx adapts the repositories' ...Tx methods to the service.Tx
// interface, translating storage sentinels into the service-level
// failure taxonomy where the two differ.
type sqlTx struct {
	store *SQLStore
	tx    *sql.Tx
}

func (t *sqlTx) SessionForUpdate(ctx context.Context, sessionID uint64) (*model.ClassSession, error) {
	sess, err := t.store.sessions.GetForUpdateTx(ctx, t.tx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, service.ErrSessionNotFound
	}
	return sess, err
}

func (t *sqlTx) ActiveReservationCount(ctx context.Context, sessionID uint64) (int, error) {
	return t.store.sessions.ActiveReservationCountTx(ctx, t.tx, sessionID)
}

func (t *sqlTx) WalletForUpdate(ctx context.Context, userID uint64) (*model.Wallet, error) {
	return t.store.wallets.GetForUpdateTx(ctx, t.tx, userID)
}

func (t *sqlTx) ApplyDelta(ctx context.Context, userID uint64, delta int64, reason model.LedgerReason, ref model.LedgerRef, notes string) (uint64, error) {
	id, err := t.store.wallets.ApplyDeltaTx(ctx, t.tx, userID, delta, reason, ref, notes)
	if errors.Is(err, ErrInsufficientBalance) {
		return 0, service.ErrInsufficientCredits
	}
	return id, err
}

func (t *sqlTx) ReservationForUpdate(ctx context.Context, sessionID, userID uint64) (*model.Reservation, error) {
	return t.store.reservations.GetForUpdateTx(ctx, t.tx, sessionID, userID)
}

func (t *sqlTx) UpsertBooked(ctx context.Context, sessionID, userID, ledgerID uint64, bookedAt time.Time) (uint64, error) {
	return t.store.reservations.UpsertBookedTx(ctx, t.tx, sessionID, userID, ledgerID, bookedAt)
}

func (t *sqlTx) MarkReservationCancelled(ctx context.Context, reservationID uint64, at time.Time) error {
	return t.store.reservations.MarkCancelledTx(ctx, t.tx, reservationID, at)
}

func (t *sqlTx) WaitingCount(ctx context.Context, sessionID uint64) (int, error) {
	return t.store.waitlist.WaitingCountTx(ctx, t.tx, sessionID)
}

func (t *sqlTx) ActiveWaitlistCount(ctx context.Context, sessionID uint64) (int, error) {
	return t.store.waitlist.ActiveCountTx(ctx, t.tx, sessionID)
}

func (t *sqlTx) ActiveWaitlistEntry(ctx context.Context, sessionID, userID uint64) (*model.WaitlistEntry, error) {
	return t.store.waitlist.ActiveEntryTx(ctx, t.tx, sessionID, userID)
}

func (t *sqlTx) UpsertWaiting(ctx context.Context, sessionID, userID uint64, position int) (uint64, error) {
	return t.store.waitlist.UpsertWaitingTx(ctx, t.tx, sessionID, userID, position)
}

func (t *sqlTx) LowestWaiting(ctx context.Context, sessionID uint64) (*model.WaitlistEntry, error) {
	return t.store.waitlist.LowestWaitingTx(ctx, t.tx, sessionID)
}

func (t *sqlTx) NotifiedEntry(ctx context.Context, sessionID uint64) (*model.WaitlistEntry, error) {
	return t.store.waitlist.NotifiedEntryTx(ctx, t.tx, sessionID)
}

func (t *sqlTx) MarkNotified(ctx context.Context, entryID uint64, token string, notifiedAt, expiresAt time.Time) error {
	return t.store.waitlist.MarkNotifiedTx(ctx, t.tx, entryID, token, notifiedAt, expiresAt)
}

func (t *sqlTx) EntryByToken(ctx context.Context, token string) (*model.WaitlistEntry, error) {
	return t.store.waitlist.EntryByTokenTx(ctx, t.tx, token)
}

func (t *sqlTx) MarkAccepted(ctx context.Context, entryID uint64, at time.Time) error {
	return t.store.waitlist.MarkAcceptedTx(ctx, t.tx, entryID, at)
}

func (t *sqlTx) MarkExpiredIfNotified(ctx context.Context, entryID uint64, now time.Time) (bool, error) {
	return t.store.waitlist.MarkExpiredIfNotifiedTx(ctx, t.tx, entryID, now)
}

func (t *sqlTx) MarkWaitlistCancelled(ctx context.Context, entryID uint64) error {
	return t.store.waitlist.MarkCancelledTx(ctx, t.tx, entryID)
}

func (t *sqlTx) CompactPositions(ctx context.Context, sessionID uint64, removedPosition int) error {
	return t.store.waitlist.CompactPositionsTx(ctx, t.tx, sessionID, removedPosition)
}

func (t *sqlTx) ExpiredNotifiedEntries(ctx context.Context, now time.Time) ([]model.WaitlistEntry, error) {
	return t.store.waitlist.ExpiredNotifiedTx(ctx, t.tx, now)
}

func (t *sqlTx) UserByID(ctx context.Context, userID uint64) (*model.User, error) {
	u, err := t.store.users.GetByIDTx(ctx, t.tx, userID)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (t *sqlTx) CreatePurchase(ctx context.Context, userID uint64, reference string, credits int64) (uint64, error) {
	return t.store.purchases.CreateTx(ctx, t.tx, userID, reference, credits)
}

func (t *sqlTx) PurchaseByReference(ctx context.Context, reference string) (*model.Purchase, error) {
	return t.store.purchases.GetByReferenceTx(ctx, t.tx, reference)
}

func (t *sqlTx) MarkPurchasePaid(ctx context.Context, reference string, at time.Time) (bool, error) {
	return t.store.purchases.MarkPaidTx(ctx, t.tx, reference, at)
}
