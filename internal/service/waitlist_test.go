package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fillSession books every seat with synthetic users whose IDs start at
// 1000 so they never collide with the test's own actors.
func fillSession(t *testing.T, store *memStore, engine *BookingEngine, sessionID uint64, capacity int) {
	t.Helper()
	for i := 0; i < capacity; i++ {
		uid := uint64(1000 + i)
		store.addUser(uid, 1)
		if _, err := engine.BookSession(context.Background(), sessionID, uid); err != nil {
			t.Fatalf("fill seat %d: %v", i, err)
		}
	}
}

func newWaitlistFixture(t *testing.T, capacity int) (*memStore, *BookingEngine, *WaitlistService, *fakeNotifier) {
	t.Helper()
	store := newMemStore()
	store.addSession(1, capacity, futureStart())
	notifier := &fakeNotifier{}
	waitlist := NewWaitlistService(store, notifier, testMaxWaiting, testAcceptWindow)
	engine := NewBookingEngine(store, waitlist, testCancelWindow)
	fillSession(t, store, engine, 1, capacity)
	return store, engine, waitlist, notifier
}

func TestJoinRequiresFullSession(t *testing.T) {
	store := newMemStore()
	store.addSession(1, 2, futureStart())
	store.addUser(10, 1)
	waitlist := NewWaitlistService(store, nil, testMaxWaiting, testAcceptWindow)

	_, err := waitlist.Join(context.Background(), 1, 10)
	if !errors.Is(err, ErrSessionNotFull) {
		t.Fatalf("err = %v, want ErrSessionNotFull", err)
	}
}

func TestJoinAssignsDensePositionsAndCapsQueue(t *testing.T) {
	store, _, waitlist, _ := newWaitlistFixture(t, 1)
	ctx := context.Background()

	for i, uid := range []uint64{20, 21, 22} {
		store.addUser(uid, 1)
		pos, err := waitlist.Join(ctx, 1, uid)
		if err != nil {
			t.Fatalf("join %d: %v", uid, err)
		}
		if pos != i+1 {
			t.Fatalf("user %d position = %d, want %d", uid, pos, i+1)
		}
	}

	store.addUser(23, 1)
	_, err := waitlist.Join(ctx, 1, 23)
	if !errors.Is(err, ErrWaitlistFull) {
		t.Fatalf("err = %v, want ErrWaitlistFull", err)
	}
}

func TestJoinRejectsDuplicateAndBookedUser(t *testing.T) {
	store, _, waitlist, _ := newWaitlistFixture(t, 1)
	ctx := context.Background()

	store.addUser(20, 1)
	if _, err := waitlist.Join(ctx, 1, 20); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := waitlist.Join(ctx, 1, 20); !errors.Is(err, ErrAlreadyWaiting) {
		t.Fatalf("duplicate join err = %v, want ErrAlreadyWaiting", err)
	}
	// User 1000 holds the seat from the fixture.
	if _, err := waitlist.Join(ctx, 1, 1000); !errors.Is(err, ErrAlreadyBooked) {
		t.Fatalf("booked-user join err = %v, want ErrAlreadyBooked", err)
	}
}

func TestLeaveCompactsPositions(t *testing.T) {
	store, _, waitlist, _ := newWaitlistFixture(t, 1)
	ctx := context.Background()

	for _, uid := range []uint64{20, 21, 22} {
		store.addUser(uid, 1)
		if _, err := waitlist.Join(ctx, 1, uid); err != nil {
			t.Fatalf("join %d: %v", uid, err)
		}
	}
	if err := waitlist.Leave(ctx, 1, 21); err != nil {
		t.Fatalf("leave: %v", err)
	}

	if e := store.entry(1, 21); e == nil || e.Status != "CANCELLED" {
		t.Fatalf("left entry = %+v, want CANCELLED", e)
	}
	if e := store.entry(1, 20); e.Position != 1 {
		t.Fatalf("user 20 position = %d, want 1", e.Position)
	}
	if e := store.entry(1, 22); e.Position != 2 {
		t.Fatalf("user 22 position = %d, want 2 after compaction", e.Position)
	}

	if err := waitlist.Leave(ctx, 1, 21); !errors.Is(err, ErrNotWaiting) {
		t.Fatalf("second leave err = %v, want ErrNotWaiting", err)
	}
}

func TestNotifyNextSingleOfferInFlight(t *testing.T) {
	store, engine, waitlist, notifier := newWaitlistFixture(t, 2)
	ctx := context.Background()

	for _, uid := range []uint64{20, 21} {
		store.addUser(uid, 1)
		if _, err := waitlist.Join(ctx, 1, uid); err != nil {
			t.Fatalf("join %d: %v", uid, err)
		}
	}

	// Both seats free up back to back; only the head may be notified
	// because the second freed seat finds an offer already in flight.
	if err := engine.CancelBooking(ctx, 1, 1000); err != nil {
		t.Fatalf("cancel 1: %v", err)
	}
	if err := engine.CancelBooking(ctx, 1, 1001); err != nil {
		t.Fatalf("cancel 2: %v", err)
	}

	if notifier.count() != 1 {
		t.Fatalf("notifications = %d, want 1", notifier.count())
	}
	if e := store.entry(1, 20); e == nil || e.Status != "NOTIFIED" {
		t.Fatalf("head entry = %+v, want NOTIFIED", e)
	}
	if e := store.entry(1, 21); e == nil || e.Status != "WAITING" {
		t.Fatalf("second entry = %+v, want still WAITING", e)
	}
}

func TestAcceptBooksSeatAndCompacts(t *testing.T) {
	store, engine, waitlist, notifier := newWaitlistFixture(t, 1)
	ctx := context.Background()

	store.addUser(20, 1)
	store.addUser(21, 1)
	for _, uid := range []uint64{20, 21} {
		if _, err := waitlist.Join(ctx, 1, uid); err != nil {
			t.Fatalf("join %d: %v", uid, err)
		}
	}
	if err := engine.CancelBooking(ctx, 1, 1000); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	res, err := waitlist.Accept(ctx, notifier.last().Token)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if res.UserID != 20 || res.SessionID != 1 {
		t.Fatalf("reservation = %+v, want user 20 on session 1", res)
	}
	if got := store.balance(20); got != 0 {
		t.Fatalf("balance = %d, want 0 (one credit spent)", got)
	}
	if e := store.entry(1, 20); e == nil || e.Status != "ACCEPTED" || e.Token != "" {
		t.Fatalf("entry = %+v, want ACCEPTED with token cleared", e)
	}
	if e := store.entry(1, 21); e.Position != 1 {
		t.Fatalf("remaining entry position = %d, want 1", e.Position)
	}
}

func TestAcceptInvalidToken(t *testing.T) {
	store := newMemStore()
	store.addSession(1, 1, futureStart())
	waitlist := NewWaitlistService(store, nil, testMaxWaiting, testAcceptWindow)

	_, err := waitlist.Accept(context.Background(), "no-such-token")
	if !errors.Is(err, ErrInvalidInvite) {
		t.Fatalf("err = %v, want ErrInvalidInvite", err)
	}
}

func TestAcceptExpiredTokenFlipsEntry(t *testing.T) {
	store, engine, waitlist, notifier := newWaitlistFixture(t, 1)
	ctx := context.Background()

	store.addUser(20, 1)
	store.addUser(21, 1)
	for _, uid := range []uint64{20, 21} {
		if _, err := waitlist.Join(ctx, 1, uid); err != nil {
			t.Fatalf("join %d: %v", uid, err)
		}
	}
	if err := engine.CancelBooking(ctx, 1, 1000); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	token := notifier.last().Token

	// Backdate the offer deadline.
	e := store.entry(1, 20)
	past := time.Now().UTC().Add(-time.Minute)
	e.ExpiresAt = &past
	store.setEntry(*e)

	if _, err := waitlist.Accept(ctx, token); !errors.Is(err, ErrInviteExpired) {
		t.Fatalf("err = %v, want ErrInviteExpired", err)
	}
	if e := store.entry(1, 20); e.Status != "EXPIRED" || e.Token != "" {
		t.Fatalf("entry = %+v, want EXPIRED with token cleared", e)
	}
	// The rejection compacted the queue; the next promotion picks
	// user 21 at position 1.
	if _, err := waitlist.NotifyNext(ctx, 1); err != nil {
		t.Fatalf("notify next: %v", err)
	}
	if e := store.entry(1, 21); e.Status != "NOTIFIED" || e.Position != 1 {
		t.Fatalf("entry = %+v, want NOTIFIED at position 1", e)
	}
	// A second redemption of the dead token is rejected.
	if _, err := waitlist.Accept(ctx, token); !errors.Is(err, ErrInvalidInvite) {
		t.Fatalf("replayed token err = %v, want ErrInvalidInvite", err)
	}
}

func TestAcceptSameTokenTwiceSingleRedemption(t *testing.T) {
	store, engine, waitlist, notifier := newWaitlistFixture(t, 1)
	ctx := context.Background()

	store.addUser(20, 1)
	if _, err := waitlist.Join(ctx, 1, 20); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := engine.CancelBooking(ctx, 1, 1000); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	token := notifier.last().Token

	// The same invitation redeemed from two devices at once: exactly
	// one accept may book the seat, the other finds the token gone.
	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := waitlist.Accept(ctx, token)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var booked, rejected int
	for err := range errs {
		switch {
		case err == nil:
			booked++
		case errors.Is(err, ErrInvalidInvite):
			rejected++
		default:
			t.Fatalf("unexpected accept error: %v", err)
		}
	}
	if booked != 1 || rejected != 1 {
		t.Fatalf("booked = %d, rejected = %d, want exactly one of each", booked, rejected)
	}
	if got := store.balance(20); got != 0 {
		t.Fatalf("balance = %d, want 0 (debited once)", got)
	}
	if got := store.ledgerSum(20); got != -1 {
		t.Fatalf("ledger sum = %d, want -1 (single debit)", got)
	}
	if e := store.entry(1, 20); e == nil || e.Status != "ACCEPTED" || e.Token != "" {
		t.Fatalf("entry = %+v, want ACCEPTED with token cleared", e)
	}
}

func TestAcceptSeatAlreadyRetakenLeavesEntryNotified(t *testing.T) {
	store, engine, waitlist, notifier := newWaitlistFixture(t, 1)
	ctx := context.Background()

	store.addUser(20, 1)
	if _, err := waitlist.Join(ctx, 1, 20); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := engine.CancelBooking(ctx, 1, 1000); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	// A walk-in books the freed seat before the invitation is used.
	store.addUser(30, 1)
	if _, err := engine.BookSession(ctx, 1, 30); err != nil {
		t.Fatalf("walk-in book: %v", err)
	}

	_, err := waitlist.Accept(ctx, notifier.last().Token)
	if !errors.Is(err, ErrSessionFull) {
		t.Fatalf("err = %v, want ErrSessionFull", err)
	}
	// The offer stays live: the client may try again if another seat
	// frees up inside the window.
	if e := store.entry(1, 20); e.Status != "NOTIFIED" {
		t.Fatalf("entry = %+v, want still NOTIFIED", e)
	}
}

func TestAcceptWithEmptyWalletKeepsOffer(t *testing.T) {
	store, engine, waitlist, notifier := newWaitlistFixture(t, 1)
	ctx := context.Background()

	store.addUser(20, 0)
	if _, err := waitlist.Join(ctx, 1, 20); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := engine.CancelBooking(ctx, 1, 1000); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	_, err := waitlist.Accept(ctx, notifier.last().Token)
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("err = %v, want ErrInsufficientCredits", err)
	}
	if e := store.entry(1, 20); e.Status != "NOTIFIED" {
		t.Fatalf("entry = %+v, want still NOTIFIED", e)
	}
}

func TestSweepExpiredPromotesNextWaiter(t *testing.T) {
	store, engine, waitlist, notifier := newWaitlistFixture(t, 1)
	ctx := context.Background()

	store.addUser(20, 1)
	store.addUser(21, 1)
	for _, uid := range []uint64{20, 21} {
		if _, err := waitlist.Join(ctx, 1, uid); err != nil {
			t.Fatalf("join %d: %v", uid, err)
		}
	}
	if err := engine.CancelBooking(ctx, 1, 1000); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	e := store.entry(1, 20)
	past := time.Now().UTC().Add(-time.Minute)
	e.ExpiresAt = &past
	store.setEntry(*e)

	expired, err := waitlist.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expired = %d, want 1", expired)
	}
	if e := store.entry(1, 20); e.Status != "EXPIRED" {
		t.Fatalf("head entry = %+v, want EXPIRED", e)
	}
	if e := store.entry(1, 21); e.Status != "NOTIFIED" || e.Position != 1 {
		t.Fatalf("next entry = %+v, want NOTIFIED at position 1", e)
	}
	if notifier.count() != 2 {
		t.Fatalf("notifications = %d, want 2 (initial offer plus re-offer)", notifier.count())
	}

	// A second sweep finds nothing overdue.
	expired, err = waitlist.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if expired != 0 {
		t.Fatalf("second sweep expired = %d, want 0", expired)
	}
}

// Full cycle: book out the session, queue up, free a seat, accept the
// invitation, and verify wallet and ledger agree at every actor.
func TestWaitlistEndToEnd(t *testing.T) {
	store, engine, waitlist, notifier := newWaitlistFixture(t, 2)
	ctx := context.Background()

	store.addUser(20, 2)
	pos, err := waitlist.Join(ctx, 1, 20)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if pos != 1 {
		t.Fatalf("position = %d, want 1", pos)
	}

	if err := engine.CancelBooking(ctx, 1, 1001); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := store.balance(1001); got != 1 {
		t.Fatalf("canceller balance = %d, want 1 (refunded)", got)
	}

	res, err := waitlist.Accept(ctx, notifier.last().Token)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if res.UserID != 20 {
		t.Fatalf("promoted user = %d, want 20", res.UserID)
	}
	if got := store.balance(20); got != 1 {
		t.Fatalf("promoted balance = %d, want 1", got)
	}
	if got := store.ledgerSum(20); got != -1 {
		t.Fatalf("promoted ledger sum = %d, want -1", got)
	}

	// The session is full again; a fresh join queues at position 1.
	store.addUser(40, 1)
	pos, err = waitlist.Join(ctx, 1, 40)
	if err != nil {
		t.Fatalf("post-accept join: %v", err)
	}
	if pos != 1 {
		t.Fatalf("post-accept position = %d, want 1", pos)
	}
}
