package model

import "time"

// WaitlistStatus enumerates the states of a waitlist entry.  The
// machine is WAITING → NOTIFIED → {ACCEPTED, EXPIRED} with a
// user-initiated WAITING → CANCELLED exit.  ACCEPTED, EXPIRED and
// CANCELLED are terminal for the row's current cycle; rejoining
// reopens the same row back to WAITING with a fresh position.
type WaitlistStatus string

const (
	WaitlistWaiting   WaitlistStatus = "WAITING"
	WaitlistNotified  WaitlistStatus = "NOTIFIED"
	WaitlistAccepted  WaitlistStatus = "ACCEPTED"
	WaitlistExpired   WaitlistStatus = "EXPIRED"
	WaitlistCancelled WaitlistStatus = "CANCELLED"
)

// Active reports whether the entry currently occupies a place in the
// queue (waiting for a seat or holding the in-flight offer).
func (s WaitlistStatus) Active() bool {
	switch s {
	case WaitlistWaiting, WaitlistNotified:
		return true
	case WaitlistAccepted, WaitlistExpired, WaitlistCancelled:
		return false
	}
	return false
}

// WaitlistEntry is a user's place in a session's waitlist.  There is
// at most one row per (session, user) pair.  Positions among a
// session's WAITING entries are dense and 1-based: after any leave,
// acceptance or expiry the remaining WAITING positions are compacted
// back to 1..N.  The token is single-use and set only while the
// entry is NOTIFIED.
//
// Fields:
//  ID         – primary key identifier.
//  SessionID  – session the user is queued for.
//  UserID     – queued user.
//  Position   – 1-based place among WAITING entries.
//  Status     – WAITING, NOTIFIED, ACCEPTED, EXPIRED or CANCELLED.
//  Token      – opaque accept token (empty unless NOTIFIED).
//  NotifiedAt – when the offer was sent (null before).
//  ExpiresAt  – hard deadline for accepting the offer (null before).
//  AcceptedAt – when the offer was accepted (null unless ACCEPTED).
//  CreatedAt  – timestamp of row creation.
//  UpdatedAt  – timestamp of last update.
type WaitlistEntry struct {
	ID         uint64         // waitlist_entries.id
	SessionID  uint64         // waitlist_entries.session_id
	UserID     uint64         // waitlist_entries.user_id
	Position   int            // waitlist_entries.position
	Status     WaitlistStatus // waitlist_entries.status
	Token      string         // waitlist_entries.token
	NotifiedAt *time.Time     // waitlist_entries.notified_at (nullable)
	ExpiresAt  *time.Time     // waitlist_entries.expires_at (nullable)
	AcceptedAt *time.Time     // waitlist_entries.accepted_at (nullable)
	CreatedAt  time.Time      // waitlist_entries.created_at
	UpdatedAt  time.Time      // waitlist_entries.updated_at
}
