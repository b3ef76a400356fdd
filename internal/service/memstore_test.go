package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/iliyamo/studio-class-booking/internal/model"
)

// memStore is an in-memory Store used by the service tests.  ExecTx
// holds one mutex for the whole callback, which mirrors the
// serialization the SQL store gets from the session row lock, and
// restores a snapshot when the callback errors so aborted work never
// leaks into later assertions.
type memStore struct {
	mu sync.Mutex

	nextID       uint64
	sessions     map[uint64]model.ClassSession
	users        map[uint64]model.User
	wallets      map[uint64]model.Wallet
	ledger       []model.LedgerEntry
	reservations map[uint64]model.Reservation
	resByPair    map[[2]uint64]uint64 // (session, user) -> reservation id
	waitlist     map[uint64]model.WaitlistEntry
	waitByPair   map[[2]uint64]uint64
	purchases    map[string]model.Purchase
}

var _ Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		sessions:     make(map[uint64]model.ClassSession),
		users:        make(map[uint64]model.User),
		wallets:      make(map[uint64]model.Wallet),
		reservations: make(map[uint64]model.Reservation),
		resByPair:    make(map[[2]uint64]uint64),
		waitlist:     make(map[uint64]model.WaitlistEntry),
		waitByPair:   make(map[[2]uint64]uint64),
		purchases:    make(map[string]model.Purchase),
	}
}

type memSnapshot struct {
	nextID       uint64
	sessions     map[uint64]model.ClassSession
	users        map[uint64]model.User
	wallets      map[uint64]model.Wallet
	ledger       []model.LedgerEntry
	reservations map[uint64]model.Reservation
	resByPair    map[[2]uint64]uint64
	waitlist     map[uint64]model.WaitlistEntry
	waitByPair   map[[2]uint64]uint64
	purchases    map[string]model.Purchase
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memStore) snapshot() memSnapshot {
	return memSnapshot{
		nextID:       s.nextID,
		sessions:     cloneMap(s.sessions),
		users:        cloneMap(s.users),
		wallets:      cloneMap(s.wallets),
		ledger:       append([]model.LedgerEntry(nil), s.ledger...),
		reservations: cloneMap(s.reservations),
		resByPair:    cloneMap(s.resByPair),
		waitlist:     cloneMap(s.waitlist),
		waitByPair:   cloneMap(s.waitByPair),
		purchases:    cloneMap(s.purchases),
	}
}

func (s *memStore) restore(snap memSnapshot) {
	s.nextID = snap.nextID
	s.sessions = snap.sessions
	s.users = snap.users
	s.wallets = snap.wallets
	s.ledger = snap.ledger
	s.reservations = snap.reservations
	s.resByPair = snap.resByPair
	s.waitlist = snap.waitlist
	s.waitByPair = snap.waitByPair
	s.purchases = snap.purchases
}

func (s *memStore) ExecTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshot()
	if err := fn(&memTx{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *memStore) id() uint64 {
	s.nextID++
	return s.nextID
}

// ----- test fixtures -----

func (s *memStore) addSession(id uint64, capacity int, startsAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = model.ClassSession{
		ID:        id,
		StartsAt:  startsAt,
		EndsAt:    startsAt.Add(time.Hour),
		Capacity:  capacity,
		Status:    model.SessionScheduled,
		ClassName: "Reformer Pilates",
	}
}

func (s *memStore) addUser(id uint64, balance int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = model.User{ID: id, Email: "user@example.com", FirstName: "Sam", Role: model.RoleClient}
	s.wallets[id] = model.Wallet{ID: id, UserID: id, Balance: balance}
}

func (s *memStore) balance(userID uint64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wallets[userID].Balance
}

func (s *memStore) ledgerSum(userID uint64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum int64
	for _, e := range s.ledger {
		if e.UserID == userID {
			sum += e.Delta
		}
	}
	return sum
}

func (s *memStore) reservation(sessionID, userID uint64) *model.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.resByPair[[2]uint64{sessionID, userID}]
	if !ok {
		return nil
	}
	r := s.reservations[id]
	return &r
}

func (s *memStore) entry(sessionID, userID uint64) *model.WaitlistEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.waitByPair[[2]uint64{sessionID, userID}]
	if !ok {
		return nil
	}
	e := s.waitlist[id]
	return &e
}

func (s *memStore) setEntry(e model.WaitlistEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waitlist[e.ID] = e
}

// ----- Tx implementation -----

type memTx struct {
	s *memStore
}

var _ Tx = (*memTx)(nil)

func (t *memTx) SessionForUpdate(ctx context.Context, sessionID uint64) (*model.ClassSession, error) {
	sess, ok := t.s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &sess, nil
}

func (t *memTx) ActiveReservationCount(ctx context.Context, sessionID uint64) (int, error) {
	n := 0
	for _, r := range t.s.reservations {
		if r.SessionID == sessionID && r.Status.Active() {
			n++
		}
	}
	return n, nil
}

func (t *memTx) WalletForUpdate(ctx context.Context, userID uint64) (*model.Wallet, error) {
	w, ok := t.s.wallets[userID]
	if !ok {
		return nil, ErrInsufficientCredits
	}
	return &w, nil
}

func (t *memTx) ApplyDelta(ctx context.Context, userID uint64, delta int64, reason model.LedgerReason, ref model.LedgerRef, notes string) (uint64, error) {
	w, ok := t.s.wallets[userID]
	if !ok || w.Balance+delta < 0 {
		return 0, ErrInsufficientCredits
	}
	w.Balance += delta
	t.s.wallets[userID] = w
	id := t.s.id()
	t.s.ledger = append(t.s.ledger, model.LedgerEntry{
		ID: id, UserID: userID, Delta: delta, Reason: reason, Ref: ref, Notes: notes,
	})
	return id, nil
}

func (t *memTx) ReservationForUpdate(ctx context.Context, sessionID, userID uint64) (*model.Reservation, error) {
	id, ok := t.s.resByPair[[2]uint64{sessionID, userID}]
	if !ok {
		return nil, nil
	}
	r := t.s.reservations[id]
	return &r, nil
}

func (t *memTx) UpsertBooked(ctx context.Context, sessionID, userID, ledgerID uint64, bookedAt time.Time) (uint64, error) {
	pair := [2]uint64{sessionID, userID}
	id, ok := t.s.resByPair[pair]
	if !ok {
		id = t.s.id()
		t.s.resByPair[pair] = id
	}
	t.s.reservations[id] = model.Reservation{
		ID: id, SessionID: sessionID, UserID: userID,
		Status: model.ReservationBooked, LedgerID: ledgerID, BookedAt: bookedAt,
	}
	return id, nil
}

func (t *memTx) MarkReservationCancelled(ctx context.Context, reservationID uint64, at time.Time) error {
	r := t.s.reservations[reservationID]
	r.Status = model.ReservationCancelled
	r.CancelledAt = &at
	t.s.reservations[reservationID] = r
	return nil
}

func (t *memTx) WaitingCount(ctx context.Context, sessionID uint64) (int, error) {
	n := 0
	for _, e := range t.s.waitlist {
		if e.SessionID == sessionID && e.Status == model.WaitlistWaiting {
			n++
		}
	}
	return n, nil
}

func (t *memTx) ActiveWaitlistCount(ctx context.Context, sessionID uint64) (int, error) {
	n := 0
	for _, e := range t.s.waitlist {
		if e.SessionID == sessionID && e.Status.Active() {
			n++
		}
	}
	return n, nil
}

func (t *memTx) ActiveWaitlistEntry(ctx context.Context, sessionID, userID uint64) (*model.WaitlistEntry, error) {
	id, ok := t.s.waitByPair[[2]uint64{sessionID, userID}]
	if !ok {
		return nil, nil
	}
	e := t.s.waitlist[id]
	if !e.Status.Active() {
		return nil, nil
	}
	return &e, nil
}

func (t *memTx) UpsertWaiting(ctx context.Context, sessionID, userID uint64, position int) (uint64, error) {
	pair := [2]uint64{sessionID, userID}
	id, ok := t.s.waitByPair[pair]
	if !ok {
		id = t.s.id()
		t.s.waitByPair[pair] = id
	}
	t.s.waitlist[id] = model.WaitlistEntry{
		ID: id, SessionID: sessionID, UserID: userID,
		Position: position, Status: model.WaitlistWaiting,
	}
	return id, nil
}

func (t *memTx) LowestWaiting(ctx context.Context, sessionID uint64) (*model.WaitlistEntry, error) {
	var head *model.WaitlistEntry
	for _, e := range t.s.waitlist {
		if e.SessionID != sessionID || e.Status != model.WaitlistWaiting {
			continue
		}
		e := e
		if head == nil || e.Position < head.Position {
			head = &e
		}
	}
	return head, nil
}

func (t *memTx) NotifiedEntry(ctx context.Context, sessionID uint64) (*model.WaitlistEntry, error) {
	for _, e := range t.s.waitlist {
		if e.SessionID == sessionID && e.Status == model.WaitlistNotified {
			e := e
			return &e, nil
		}
	}
	return nil, nil
}

func (t *memTx) MarkNotified(ctx context.Context, entryID uint64, token string, notifiedAt, expiresAt time.Time) error {
	e := t.s.waitlist[entryID]
	e.Status = model.WaitlistNotified
	e.Token = token
	e.NotifiedAt = &notifiedAt
	e.ExpiresAt = &expiresAt
	t.s.waitlist[entryID] = e
	return nil
}

func (t *memTx) EntryByToken(ctx context.Context, token string) (*model.WaitlistEntry, error) {
	if token == "" {
		return nil, nil
	}
	for _, e := range t.s.waitlist {
		if e.Token == token {
			e := e
			return &e, nil
		}
	}
	return nil, nil
}

func (t *memTx) MarkAccepted(ctx context.Context, entryID uint64, at time.Time) error {
	e := t.s.waitlist[entryID]
	e.Status = model.WaitlistAccepted
	e.Token = ""
	e.AcceptedAt = &at
	t.s.waitlist[entryID] = e
	return nil
}

func (t *memTx) MarkExpiredIfNotified(ctx context.Context, entryID uint64, now time.Time) (bool, error) {
	e := t.s.waitlist[entryID]
	if e.Status != model.WaitlistNotified || e.ExpiresAt == nil || e.ExpiresAt.After(now) {
		return false, nil
	}
	e.Status = model.WaitlistExpired
	e.Token = ""
	t.s.waitlist[entryID] = e
	return true, nil
}

func (t *memTx) MarkWaitlistCancelled(ctx context.Context, entryID uint64) error {
	e := t.s.waitlist[entryID]
	e.Status = model.WaitlistCancelled
	e.Token = ""
	t.s.waitlist[entryID] = e
	return nil
}

func (t *memTx) CompactPositions(ctx context.Context, sessionID uint64, removedPosition int) error {
	for id, e := range t.s.waitlist {
		if e.SessionID == sessionID && e.Status == model.WaitlistWaiting && e.Position > removedPosition {
			e.Position--
			t.s.waitlist[id] = e
		}
	}
	return nil
}

func (t *memTx) ExpiredNotifiedEntries(ctx context.Context, now time.Time) ([]model.WaitlistEntry, error) {
	var out []model.WaitlistEntry
	for _, e := range t.s.waitlist {
		if e.Status == model.WaitlistNotified && e.ExpiresAt != nil && !e.ExpiresAt.After(now) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (t *memTx) UserByID(ctx context.Context, userID uint64) (*model.User, error) {
	u, ok := t.s.users[userID]
	if !ok {
		return nil, errors.New("user not found")
	}
	return &u, nil
}

func (t *memTx) CreatePurchase(ctx context.Context, userID uint64, reference string, credits int64) (uint64, error) {
	id := t.s.id()
	t.s.purchases[reference] = model.Purchase{
		ID: id, UserID: userID, Reference: reference, Credits: credits, Status: model.PurchasePending,
	}
	return id, nil
}

func (t *memTx) PurchaseByReference(ctx context.Context, reference string) (*model.Purchase, error) {
	p, ok := t.s.purchases[reference]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (t *memTx) MarkPurchasePaid(ctx context.Context, reference string, at time.Time) (bool, error) {
	p, ok := t.s.purchases[reference]
	if !ok || p.Status != model.PurchasePending {
		return false, nil
	}
	p.Status = model.PurchasePaid
	p.PaidAt = &at
	t.s.purchases[reference] = p
	return true, nil
}

// fakeNotifier records dispatched notifications.
type fakeNotifier struct {
	mu    sync.Mutex
	notes []WaitlistNotification
}

func (f *fakeNotifier) NotifyWaitlistSpot(ctx context.Context, n WaitlistNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, n)
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.notes)
}

func (f *fakeNotifier) last() WaitlistNotification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.notes[len(f.notes)-1]
}
