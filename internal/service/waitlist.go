package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/studio-class-booking/internal/logger"
	"github.com/iliyamo/studio-class-booking/internal/metrics"
	"github.com/iliyamo/studio-class-booking/internal/model"
)

// Notifier dispatches the accept invitation to the promoted client.
// Delivery is fire-and-forget relative to state correctness: the
// NOTIFIED transition commits whether or not the dispatch succeeds.
type Notifier interface {
	NotifyWaitlistSpot(ctx context.Context, n WaitlistNotification) error
}

// WaitlistNotification carries everything the mailer needs to compose
// the accept email, including the single-use token embedded in the
// accept link.
type WaitlistNotification struct {
	Email     string
	FirstName string
	Token     string
	ClassName string
	StartsAt  time.Time
	ExpiresAt time.Time
}

// WaitlistService manages the bounded, position-ordered waitlist per
// session and its promotion cycle: notify the head of the queue, give
// them a time-boxed single-use token, expire the offer if unused and
// move on.  A session has at most one NOTIFIED entry at a time; the
// guard is a re-read inside the same transaction that holds the
// session row lock, so the post-cancellation trigger and the periodic
// sweep cannot both extend an offer.
//
// Positions are dense and 1-based over the session's active entries.
// The NOTIFIED entry keeps the position it held when selected (always
// the lowest); compaction of the entries behind it happens when the
// offer resolves, not when it is extended.
type WaitlistService struct {
	store        Store
	notifier     Notifier
	maxWaiting   int
	acceptWindow time.Duration
}

// NewWaitlistService constructs a WaitlistService.  maxWaiting bounds
// the number of WAITING entries per session (3 by default in config)
// and acceptWindow is how long a notified client has to accept (10
// minutes by default).  notifier may be nil to disable dispatch.
func NewWaitlistService(store Store, notifier Notifier, maxWaiting int, acceptWindow time.Duration) *WaitlistService {
	if store == nil {
		panic("nil store passed to NewWaitlistService")
	}
	return &WaitlistService{store: store, notifier: notifier, maxWaiting: maxWaiting, acceptWindow: acceptWindow}
}

// randomToken returns n cryptographically random bytes hex-encoded.
// Accept tokens use 32 bytes, giving a 64 character string.
func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Join puts the user on the session's waitlist.  Joining is valid
// only when the session is SCHEDULED, in the future and currently
// full; when seats are open the caller is told to book directly.  The
// user must not hold an active reservation or an active waitlist
// entry, and the WAITING queue must be below its cap.  The assigned
// 1-based position is returned.
func (w *WaitlistService) Join(ctx context.Context, sessionID, userID uint64) (int, error) {
	var position int
	err := w.store.ExecTx(ctx, func(tx Tx) error {
		sess, err := tx.SessionForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		if sess.Status != model.SessionScheduled || !sess.StartsAt.After(now) {
			return ErrSessionUnavailable
		}
		booked, err := tx.ActiveReservationCount(ctx, sessionID)
		if err != nil {
			return err
		}
		if booked < sess.Capacity {
			return ErrSessionNotFull
		}
		res, err := tx.ReservationForUpdate(ctx, sessionID, userID)
		if err != nil {
			return err
		}
		if res != nil && res.Status.Active() {
			return ErrAlreadyBooked
		}
		entry, err := tx.ActiveWaitlistEntry(ctx, sessionID, userID)
		if err != nil {
			return err
		}
		if entry != nil {
			return ErrAlreadyWaiting
		}
		waiting, err := tx.WaitingCount(ctx, sessionID)
		if err != nil {
			return err
		}
		if waiting >= w.maxWaiting {
			return ErrWaitlistFull
		}
		active, err := tx.ActiveWaitlistCount(ctx, sessionID)
		if err != nil {
			return err
		}
		position = active + 1
		_, err = tx.UpsertWaiting(ctx, sessionID, userID, position)
		return err
	})
	if err != nil {
		return 0, err
	}
	metrics.WaitlistJoinsTotal.Inc()
	return position, nil
}

// Leave removes the user's WAITING entry and closes the position gap
// behind it.  Only WAITING entries can leave; a NOTIFIED entry must
// let its offer expire or accept it.
func (w *WaitlistService) Leave(ctx context.Context, sessionID, userID uint64) error {
	return w.store.ExecTx(ctx, func(tx Tx) error {
		if _, err := tx.SessionForUpdate(ctx, sessionID); err != nil {
			return err
		}
		entry, err := tx.ActiveWaitlistEntry(ctx, sessionID, userID)
		if err != nil {
			return err
		}
		if entry == nil || entry.Status != model.WaitlistWaiting {
			return ErrNotWaiting
		}
		if err := tx.MarkWaitlistCancelled(ctx, entry.ID); err != nil {
			return err
		}
		return tx.CompactPositions(ctx, sessionID, entry.Position)
	})
}

// NotifyResult reports what NotifyNext did.  Notified is false when
// there was nothing to do: nobody waiting, an offer already in
// flight, or no seat actually free.
type NotifyResult struct {
	Notified bool
	UserID   uint64
	Position int
}

// NotifyNext extends the session's single in-flight offer to the
// lowest-position WAITING entry.  It is invoked after a cancellation
// frees a seat and by the expiry sweep; both paths serialize on the
// session row lock, and the NotifiedEntry re-read inside the
// transaction enforces the one-offer-at-a-time invariant regardless
// of which path got here first.  The notification email is dispatched
// after commit and its failure does not roll back the NOTIFIED state.
func (w *WaitlistService) NotifyNext(ctx context.Context, sessionID uint64) (NotifyResult, error) {
	var (
		result NotifyResult
		note   WaitlistNotification
	)
	err := w.store.ExecTx(ctx, func(tx Tx) error {
		sess, err := tx.SessionForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		if sess.Status != model.SessionScheduled || !sess.StartsAt.After(now) {
			return nil
		}
		inflight, err := tx.NotifiedEntry(ctx, sessionID)
		if err != nil {
			return err
		}
		if inflight != nil {
			return nil
		}
		booked, err := tx.ActiveReservationCount(ctx, sessionID)
		if err != nil {
			return err
		}
		if booked >= sess.Capacity {
			return nil
		}
		head, err := tx.LowestWaiting(ctx, sessionID)
		if err != nil {
			return err
		}
		if head == nil {
			return nil
		}
		token, err := randomToken(32)
		if err != nil {
			return err
		}
		expiresAt := now.Add(w.acceptWindow)
		if err := tx.MarkNotified(ctx, head.ID, token, now, expiresAt); err != nil {
			return err
		}
		user, err := tx.UserByID(ctx, head.UserID)
		if err != nil {
			return err
		}
		result = NotifyResult{Notified: true, UserID: head.UserID, Position: head.Position}
		note = WaitlistNotification{
			Email:     user.Email,
			FirstName: user.FirstName,
			Token:     token,
			ClassName: sess.ClassName,
			StartsAt:  sess.StartsAt,
			ExpiresAt: expiresAt,
		}
		return nil
	})
	if err != nil || !result.Notified {
		return result, err
	}
	metrics.PromotionsTotal.Inc()
	if w.notifier != nil {
		if nerr := w.notifier.NotifyWaitlistSpot(ctx, note); nerr != nil {
			logger.Log.Error("waitlist notification dispatch failed",
				zap.Uint64("session_id", sessionID), zap.Uint64("user_id", result.UserID), zap.Error(nerr))
		}
	}
	return result, nil
}

// Accept redeems an invitation token.  The entry must be NOTIFIED and
// inside its window; an entry found past its deadline is flipped to
// EXPIRED as part of the rejection, and that flip commits even though
// the call fails (lazy expiry, the sweep is the eager path).  The
// seat and the wallet are re-checked before booking because a
// concurrent booking or acceptance may have taken the freed seat;
// those rejections leave the entry NOTIFIED.  A successful accept
// does not extend the next offer; only a later cancellation or the
// sweep does.
func (w *WaitlistService) Accept(ctx context.Context, token string) (*model.Reservation, error) {
	var (
		res   model.Reservation
		opErr error
	)
	err := w.store.ExecTx(ctx, func(tx Tx) error {
		entry, err := tx.EntryByToken(ctx, token)
		if err != nil {
			return err
		}
		if entry == nil {
			opErr = ErrInvalidInvite
			return nil
		}
		if entry.Status != model.WaitlistNotified {
			opErr = ErrInviteNotActive
			return nil
		}
		sess, err := tx.SessionForUpdate(ctx, entry.SessionID)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		if entry.ExpiresAt != nil && !entry.ExpiresAt.After(now) {
			// The flip to EXPIRED must commit along with the position
			// compaction, so it is recorded as a result error rather
			// than a transaction abort.
			if _, err := tx.MarkExpiredIfNotified(ctx, entry.ID, now); err != nil {
				return err
			}
			if err := tx.CompactPositions(ctx, entry.SessionID, entry.Position); err != nil {
				return err
			}
			opErr = ErrInviteExpired
			return nil
		}
		if sess.Status != model.SessionScheduled || !sess.StartsAt.After(now) {
			opErr = ErrSessionUnavailable
			return nil
		}
		booked, err := tx.ActiveReservationCount(ctx, entry.SessionID)
		if err != nil {
			return err
		}
		if booked >= sess.Capacity {
			opErr = ErrSessionFull
			return nil
		}
		wallet, err := tx.WalletForUpdate(ctx, entry.UserID)
		if err != nil {
			return err
		}
		if wallet.Balance < 1 {
			opErr = ErrInsufficientCredits
			return nil
		}
		ledgerID, err := tx.ApplyDelta(ctx, entry.UserID, -1, model.ReasonBooking, model.SessionRef(entry.SessionID), "waitlist promotion")
		if err != nil {
			return err
		}
		resID, err := tx.UpsertBooked(ctx, entry.SessionID, entry.UserID, ledgerID, now)
		if err != nil {
			return err
		}
		if err := tx.MarkAccepted(ctx, entry.ID, now); err != nil {
			return err
		}
		if err := tx.CompactPositions(ctx, entry.SessionID, entry.Position); err != nil {
			return err
		}
		res = model.Reservation{
			ID:        resID,
			SessionID: entry.SessionID,
			UserID:    entry.UserID,
			Status:    model.ReservationBooked,
			LedgerID:  ledgerID,
			BookedAt:  now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if opErr != nil {
		if opErr == ErrInviteExpired {
			metrics.ExpiriesTotal.Inc()
		}
		return nil, opErr
	}
	metrics.AcceptancesTotal.Inc()
	return &res, nil
}

// SweepExpired is the eager expiry path, invoked on an interval by
// the worker.  Each overdue NOTIFIED entry is expired and compacted
// in its own transaction (guarded, so a just-in-time acceptance
// wins), then every touched session with remaining capacity gets a
// fresh NotifyNext.  Safe to run concurrently with itself and with
// in-flight accepts.  Returns how many entries were expired.
func (w *WaitlistService) SweepExpired(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	var overdue []model.WaitlistEntry
	err := w.store.ExecTx(ctx, func(tx Tx) error {
		var err error
		overdue, err = tx.ExpiredNotifiedEntries(ctx, now)
		return err
	})
	if err != nil {
		return 0, err
	}
	expired := 0
	touched := make(map[uint64]struct{})
	for _, entry := range overdue {
		e := entry
		err := w.store.ExecTx(ctx, func(tx Tx) error {
			if _, err := tx.SessionForUpdate(ctx, e.SessionID); err != nil {
				return err
			}
			flipped, err := tx.MarkExpiredIfNotified(ctx, e.ID, now)
			if err != nil {
				return err
			}
			if !flipped {
				return nil
			}
			if err := tx.CompactPositions(ctx, e.SessionID, e.Position); err != nil {
				return err
			}
			expired++
			touched[e.SessionID] = struct{}{}
			return nil
		})
		if err != nil {
			logger.Log.Error("expiry sweep failed for waitlist entry",
				zap.Uint64("entry_id", e.ID), zap.Uint64("session_id", e.SessionID), zap.Error(err))
		}
	}
	if expired > 0 {
		metrics.ExpiriesTotal.Add(float64(expired))
	}
	for sessionID := range touched {
		if _, err := w.NotifyNext(ctx, sessionID); err != nil {
			logger.Log.Error("waitlist promotion after expiry failed",
				zap.Uint64("session_id", sessionID), zap.Error(err))
		}
	}
	return expired, nil
}
