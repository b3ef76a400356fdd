package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

const (
	testCancelWindow = 12 * time.Hour
	testAcceptWindow = 10 * time.Minute
	testMaxWaiting   = 3
)

func futureStart() time.Time {
	return time.Now().UTC().Add(48 * time.Hour)
}

func TestBookSessionDebitsCreditAndCreatesReservation(t *testing.T) {
	store := newMemStore()
	store.addSession(1, 5, futureStart())
	store.addUser(10, 3)
	engine := NewBookingEngine(store, nil, testCancelWindow)

	res, err := engine.BookSession(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("BookSession: %v", err)
	}
	if res.Status != "BOOKED" {
		t.Fatalf("status = %s, want BOOKED", res.Status)
	}
	if got := store.balance(10); got != 2 {
		t.Fatalf("balance = %d, want 2", got)
	}
	if got := store.ledgerSum(10); got != -1 {
		t.Fatalf("ledger sum = %d, want -1", got)
	}
}

func TestBookSessionInsufficientCredits(t *testing.T) {
	store := newMemStore()
	store.addSession(1, 5, futureStart())
	store.addUser(10, 0)
	engine := NewBookingEngine(store, nil, testCancelWindow)

	_, err := engine.BookSession(context.Background(), 1, 10)
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("err = %v, want ErrInsufficientCredits", err)
	}
	if store.reservation(1, 10) != nil {
		t.Fatal("reservation created despite rejection")
	}
}

func TestBookSessionRejectsDuplicate(t *testing.T) {
	store := newMemStore()
	store.addSession(1, 5, futureStart())
	store.addUser(10, 3)
	engine := NewBookingEngine(store, nil, testCancelWindow)

	if _, err := engine.BookSession(context.Background(), 1, 10); err != nil {
		t.Fatalf("first book: %v", err)
	}
	_, err := engine.BookSession(context.Background(), 1, 10)
	if !errors.Is(err, ErrAlreadyBooked) {
		t.Fatalf("err = %v, want ErrAlreadyBooked", err)
	}
	if got := store.balance(10); got != 2 {
		t.Fatalf("balance = %d, want 2 (single debit)", got)
	}
}

func TestBookSessionUnknownSession(t *testing.T) {
	store := newMemStore()
	store.addUser(10, 3)
	engine := NewBookingEngine(store, nil, testCancelWindow)

	_, err := engine.BookSession(context.Background(), 99, 10)
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestBookSessionStartedSessionRejected(t *testing.T) {
	store := newMemStore()
	store.addSession(1, 5, time.Now().UTC().Add(-time.Minute))
	store.addUser(10, 3)
	engine := NewBookingEngine(store, nil, testCancelWindow)

	_, err := engine.BookSession(context.Background(), 1, 10)
	if !errors.Is(err, ErrSessionUnavailable) {
		t.Fatalf("err = %v, want ErrSessionUnavailable", err)
	}
}

// Ten funded users race for a two-seat session.  Exactly two must
// succeed and every failed caller must keep their credit.
func TestBookSessionLastSeatRace(t *testing.T) {
	store := newMemStore()
	store.addSession(1, 2, futureStart())
	for uid := uint64(1); uid <= 10; uid++ {
		store.addUser(uid, 1)
	}
	engine := NewBookingEngine(store, nil, testCancelWindow)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		full      int
	)
	for uid := uint64(1); uid <= 10; uid++ {
		wg.Add(1)
		go func(uid uint64) {
			defer wg.Done()
			_, err := engine.BookSession(context.Background(), 1, uid)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrSessionFull):
				full++
			default:
				t.Errorf("user %d: unexpected error %v", uid, err)
			}
		}(uid)
	}
	wg.Wait()

	if succeeded != 2 {
		t.Fatalf("succeeded = %d, want 2", succeeded)
	}
	if full != 8 {
		t.Fatalf("rejected with full = %d, want 8", full)
	}
	var debited int64
	for uid := uint64(1); uid <= 10; uid++ {
		debited += 1 - store.balance(uid)
	}
	if debited != 2 {
		t.Fatalf("total credits debited = %d, want 2", debited)
	}
}

func TestCancelBookingRefundsAndReopensRow(t *testing.T) {
	store := newMemStore()
	store.addSession(1, 1, futureStart())
	store.addUser(10, 2)
	engine := NewBookingEngine(store, nil, testCancelWindow)
	ctx := context.Background()

	if _, err := engine.BookSession(ctx, 1, 10); err != nil {
		t.Fatalf("book: %v", err)
	}
	if err := engine.CancelBooking(ctx, 1, 10); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := store.balance(10); got != 2 {
		t.Fatalf("balance after refund = %d, want 2", got)
	}
	r := store.reservation(1, 10)
	if r == nil || r.Status != "CANCELLED" {
		t.Fatalf("reservation = %+v, want CANCELLED", r)
	}

	// The same pair books again: the row is reactivated.
	if _, err := engine.BookSession(ctx, 1, 10); err != nil {
		t.Fatalf("rebook: %v", err)
	}
	r = store.reservation(1, 10)
	if r == nil || r.Status != "BOOKED" {
		t.Fatalf("reservation after rebook = %+v, want BOOKED", r)
	}
	if got := store.ledgerSum(10); got != -1 {
		t.Fatalf("ledger sum = %d, want -1 (debit, refund, debit)", got)
	}
}

func TestCancelBookingInsideWindowRejected(t *testing.T) {
	store := newMemStore()
	store.addSession(1, 1, time.Now().UTC().Add(2*time.Hour))
	store.addUser(10, 1)
	engine := NewBookingEngine(store, nil, testCancelWindow)
	ctx := context.Background()

	if _, err := engine.BookSession(ctx, 1, 10); err != nil {
		t.Fatalf("book: %v", err)
	}
	err := engine.CancelBooking(ctx, 1, 10)
	if !errors.Is(err, ErrCancellationWindowClosed) {
		t.Fatalf("err = %v, want ErrCancellationWindowClosed", err)
	}
	if got := store.balance(10); got != 0 {
		t.Fatalf("balance = %d, want 0 (no refund)", got)
	}
	r := store.reservation(1, 10)
	if r == nil || r.Status != "BOOKED" {
		t.Fatalf("reservation = %+v, want still BOOKED", r)
	}
}

func TestCancelBookingWithoutReservation(t *testing.T) {
	store := newMemStore()
	store.addSession(1, 1, futureStart())
	store.addUser(10, 1)
	engine := NewBookingEngine(store, nil, testCancelWindow)

	err := engine.CancelBooking(context.Background(), 1, 10)
	if !errors.Is(err, ErrReservationNotFound) {
		t.Fatalf("err = %v, want ErrReservationNotFound", err)
	}
}

func TestCancelBookingPromotesWaitlistHead(t *testing.T) {
	store := newMemStore()
	store.addSession(1, 1, futureStart())
	store.addUser(10, 1)
	store.addUser(20, 1)
	notifier := &fakeNotifier{}
	waitlist := NewWaitlistService(store, notifier, testMaxWaiting, testAcceptWindow)
	engine := NewBookingEngine(store, waitlist, testCancelWindow)
	ctx := context.Background()

	if _, err := engine.BookSession(ctx, 1, 10); err != nil {
		t.Fatalf("book: %v", err)
	}
	if _, err := waitlist.Join(ctx, 1, 20); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := engine.CancelBooking(ctx, 1, 10); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	e := store.entry(1, 20)
	if e == nil || e.Status != "NOTIFIED" {
		t.Fatalf("entry = %+v, want NOTIFIED", e)
	}
	if e.Token == "" || e.ExpiresAt == nil {
		t.Fatal("notified entry missing token or deadline")
	}
	if notifier.count() != 1 {
		t.Fatalf("notifications = %d, want 1", notifier.count())
	}
	if notifier.last().Token != e.Token {
		t.Fatal("dispatched token does not match stored token")
	}
}
