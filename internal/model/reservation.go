package model

import "time"

// ReservationStatus enumerates the states of a reservation.  BOOKED,
// ATTENDED and NO_SHOW all count against the session's capacity;
// only CANCELLED frees the seat.
type ReservationStatus string

const (
	ReservationBooked    ReservationStatus = "BOOKED"
	ReservationAttended  ReservationStatus = "ATTENDED"
	ReservationNoShow    ReservationStatus = "NO_SHOW"
	ReservationCancelled ReservationStatus = "CANCELLED"
)

// Active reports whether the status occupies a seat.
func (s ReservationStatus) Active() bool {
	switch s {
	case ReservationBooked, ReservationAttended, ReservationNoShow:
		return true
	case ReservationCancelled:
		return false
	}
	return false
}

// Reservation records a user's booking for a class session.  There is
// at most one row per (session, user) pair: re-booking after a
// cancellation reactivates the existing row instead of inserting a
// duplicate.  Rows are never physically deleted.
//
// Fields:
//  ID          – primary key identifier.
//  SessionID   – session being booked.
//  UserID      – user who booked.
//  Status      – BOOKED, ATTENDED, NO_SHOW or CANCELLED.
//  LedgerID    – ledger entry of the debit that paid for the booking.
//  BookedAt    – when the (latest) booking was made.
//  CancelledAt – when the booking was cancelled (null while active).
//  CreatedAt   – timestamp of row creation.
//  UpdatedAt   – timestamp of last update.
type Reservation struct {
	ID          uint64            // reservations.id
	SessionID   uint64            // reservations.session_id
	UserID      uint64            // reservations.user_id
	Status      ReservationStatus // reservations.status
	LedgerID    uint64            // reservations.credit_ledger_id
	BookedAt    time.Time         // reservations.booked_at
	CancelledAt *time.Time        // reservations.cancelled_at (nullable)
	CreatedAt   time.Time         // reservations.created_at
	UpdatedAt   time.Time         // reservations.updated_at
}
