// Package service implements the booking, waitlist and credit engines.
// Every state-mutating operation runs as a single transaction against
// the shared store; the sentinel errors below form the failure
// taxonomy handlers translate into HTTP responses. All failures abort
// the whole operation with no partial state change, with one
// deliberate exception: detecting an expired invitation commits the
// EXPIRED flip while still reporting failure to the caller.
package service

import "errors"

// Booking failures.
var (
	ErrSessionNotFound          = errors.New("session not found")
	ErrSessionUnavailable       = errors.New("session is not open for booking")
	ErrSessionFull              = errors.New("session is full")
	ErrAlreadyBooked            = errors.New("user already has an active reservation for this session")
	ErrInsufficientCredits      = errors.New("insufficient credits")
	ErrReservationNotFound      = errors.New("reservation not found")
	ErrReservationNotActive     = errors.New("reservation is not active")
	ErrCancellationWindowClosed = errors.New("cancellation window has closed")
)

// Waitlist failures.
var (
	ErrSessionNotFull  = errors.New("session still has open seats; book directly")
	ErrAlreadyWaiting  = errors.New("user is already on the waitlist for this session")
	ErrWaitlistFull    = errors.New("waitlist is full")
	ErrNotWaiting      = errors.New("user is not waiting on this session")
	ErrInvalidInvite   = errors.New("invitation token is not valid")
	ErrInviteNotActive = errors.New("invitation is no longer valid")
	ErrInviteExpired   = errors.New("invitation has expired")
)

// Credit failures.
var (
	ErrPurchaseNotFound = errors.New("purchase not found")
)
