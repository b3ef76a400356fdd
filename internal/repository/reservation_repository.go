package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/studio-class-booking/internal/model"
)

// ReservationRepo persists reservations.  The table is unique on
// (session_id, user_id); rows are reused across book/cancel cycles
// and never deleted.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// GetForUpdateTx locks and returns the (session, user) reservation
// row, or nil when the pair has never booked.
func (r *ReservationRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, sessionID, userID uint64) (*model.Reservation, error) {
	var (
		res         model.Reservation
		cancelledAt sql.NullTime
		bookedAt    sql.NullTime
	)
	err := tx.QueryRowContext(ctx,
		`SELECT id, session_id, user_id, status, credit_ledger_id, booked_at, cancelled_at, created_at, updated_at
		 FROM reservations WHERE session_id = ? AND user_id = ? FOR UPDATE`,
		sessionID, userID).Scan(&res.ID, &res.SessionID, &res.UserID, &res.Status, &res.LedgerID,
		&bookedAt, &cancelledAt, &res.CreatedAt, &res.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if bookedAt.Valid {
		res.BookedAt = bookedAt.Time
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time
		res.CancelledAt = &t
	}
	return &res, nil
}

// UpsertBookedTx creates the reservation row as BOOKED, or
// reactivates the pair's CANCELLED row: same row, fresh booked_at and
// paying ledger entry, cancelled_at cleared.  Returns the row ID.
func (r *ReservationRepo) UpsertBookedTx(ctx context.Context, tx *sql.Tx, sessionID, userID, ledgerID uint64, bookedAt time.Time) (uint64, error) {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO reservations (session_id, user_id, status, credit_ledger_id, booked_at)
		 VALUES (?, ?, 'BOOKED', ?, ?)
		 ON DUPLICATE KEY UPDATE
			 status = 'BOOKED',
			 credit_ledger_id = VALUES(credit_ledger_id),
			 booked_at = VALUES(booked_at),
			 cancelled_at = NULL`,
		sessionID, userID, ledgerID, bookedAt.UTC())
	if err != nil {
		return 0, err
	}
	// LastInsertId is the new ID on insert; on the duplicate-key path
	// MySQL returns it only with an explicit id = LAST_INSERT_ID(id)
	// trick, so read the row back instead.
	var id uint64
	if err := tx.QueryRowContext(ctx,
		`SELECT id FROM reservations WHERE session_id = ? AND user_id = ?`,
		sessionID, userID).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// MarkCancelledTx flips the reservation to CANCELLED with the given
// timestamp.
func (r *ReservationRepo) MarkCancelledTx(ctx context.Context, tx *sql.Tx, reservationID uint64, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE reservations SET status = 'CANCELLED', cancelled_at = ? WHERE id = ?`,
		at.UTC(), reservationID)
	return err
}

// MarkAttendance advances a BOOKED reservation to ATTENDED or
// NO_SHOW.  Returns sql.ErrNoRows when the pair has no BOOKED row.
func (r *ReservationRepo) MarkAttendance(ctx context.Context, sessionID, userID uint64, status model.ReservationStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE reservations SET status = ? WHERE session_id = ? AND user_id = ? AND status = 'BOOKED'`,
		string(status), sessionID, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ReservationDetail is a reservation joined with its session for
// display to the client.
type ReservationDetail struct {
	ID          uint64     `json:"id"`
	SessionID   uint64     `json:"session_id"`
	Status      string     `json:"status"`
	ClassName   string     `json:"class_name"`
	StartsAt    time.Time  `json:"starts_at"`
	BookedAt    time.Time  `json:"booked_at"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

// ListByUser returns the user's reservations, newest first.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64) ([]ReservationDetail, error) {
	const q = `SELECT r.id, r.session_id, r.status, ct.name, s.starts_at, r.booked_at, r.cancelled_at
			   FROM reservations r
			   JOIN class_sessions s ON s.id = r.session_id
			   JOIN class_types ct ON ct.id = s.class_type_id
			   WHERE r.user_id = ?
			   ORDER BY s.starts_at DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	details := make([]ReservationDetail, 0)
	for rows.Next() {
		var (
			d           ReservationDetail
			cancelledAt sql.NullTime
		)
		if err := rows.Scan(&d.ID, &d.SessionID, &d.Status, &d.ClassName, &d.StartsAt, &d.BookedAt, &cancelledAt); err != nil {
			return nil, err
		}
		if cancelledAt.Valid {
			t := cancelledAt.Time
			d.CancelledAt = &t
		}
		details = append(details, d)
	}
	return details, rows.Err()
}
