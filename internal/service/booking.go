package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/studio-class-booking/internal/logger"
	"github.com/iliyamo/studio-class-booking/internal/metrics"
	"github.com/iliyamo/studio-class-booking/internal/model"
)

// BookingEngine arbitrates session seats against wallet credits.  Both
// operations run as one transaction each: the capacity check, the
// credit movement and the reservation write either all commit or none
// do.  Concurrent bookings for the same session serialize on the
// session row lock taken by SessionForUpdate, so two calls racing for
// the last seat cannot both pass the capacity check.
type BookingEngine struct {
	store        Store
	waitlist     *WaitlistService
	cancelWindow time.Duration
}

// NewBookingEngine constructs a BookingEngine.  cancelWindow is the
// minimum time before session start at which a booking may still be
// cancelled (12h by default in config).  waitlist may be nil, in
// which case cancellations do not trigger promotion.
func NewBookingEngine(store Store, waitlist *WaitlistService, cancelWindow time.Duration) *BookingEngine {
	if store == nil {
		panic("nil store passed to NewBookingEngine")
	}
	return &BookingEngine{store: store, waitlist: waitlist, cancelWindow: cancelWindow}
}

// BookSession books one seat on the session for the user, debiting a
// single credit.  Preconditions are checked in order inside the
// transaction: session exists and is SCHEDULED, session has not
// started, a seat is free, the user has no active reservation for the
// session, and the wallet holds at least one credit.  On success the
// reservation row is created, or reactivated when the user booked and
// cancelled this session before.
func (e *BookingEngine) BookSession(ctx context.Context, sessionID, userID uint64) (*model.Reservation, error) {
	var res model.Reservation
	err := e.store.ExecTx(ctx, func(tx Tx) error {
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
		if booked >= sess.Capacity {
			return ErrSessionFull
		}
		prior, err := tx.ReservationForUpdate(ctx, sessionID, userID)
		if err != nil {
			return err
		}
		if prior != nil && prior.Status.Active() {
			return ErrAlreadyBooked
		}
		wallet, err := tx.WalletForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if wallet.Balance < 1 {
			return ErrInsufficientCredits
		}
		ledgerID, err := tx.ApplyDelta(ctx, userID, -1, model.ReasonBooking, model.SessionRef(sessionID), "")
		if err != nil {
			return err
		}
		resID, err := tx.UpsertBooked(ctx, sessionID, userID, ledgerID, now)
		if err != nil {
			return err
		}
		res = model.Reservation{
			ID:        resID,
			SessionID: sessionID,
			UserID:    userID,
			Status:    model.ReservationBooked,
			LedgerID:  ledgerID,
			BookedAt:  now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.BookingsTotal.Inc()
	return &res, nil
}

// CancelBooking cancels the user's BOOKED reservation on the session
// and refunds the credit.  Cancellation is allowed only while the
// session start is at least the configured window away; inside the
// window the operation is rejected outright, there is no partial
// refund path.  After the cancellation commits, waitlist promotion
// for the freed seat is triggered best-effort: a promotion failure is
// logged but never unwinds the committed cancellation.
func (e *BookingEngine) CancelBooking(ctx context.Context, sessionID, userID uint64) error {
	err := e.store.ExecTx(ctx, func(tx Tx) error {
		sess, err := tx.SessionForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		res, err := tx.ReservationForUpdate(ctx, sessionID, userID)
		if err != nil {
			return err
		}
		if res == nil {
			return ErrReservationNotFound
		}
		if res.Status != model.ReservationBooked {
			return ErrReservationNotActive
		}
		now := time.Now().UTC()
		if sess.StartsAt.Sub(now) < e.cancelWindow {
			return ErrCancellationWindowClosed
		}
		if err := tx.MarkReservationCancelled(ctx, res.ID, now); err != nil {
			return err
		}
		if _, err := tx.WalletForUpdate(ctx, userID); err != nil {
			return err
		}
		_, err = tx.ApplyDelta(ctx, userID, 1, model.ReasonCancelRefund, model.ReservationRef(res.ID), "")
		return err
	})
	if err != nil {
		return err
	}
	metrics.CancellationsTotal.Inc()
	if e.waitlist != nil {
		if _, perr := e.waitlist.NotifyNext(ctx, sessionID); perr != nil {
			logger.Log.Error("waitlist promotion after cancellation failed",
				zap.Uint64("session_id", sessionID), zap.Error(perr))
		}
	}
	return nil
}
