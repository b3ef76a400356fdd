package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/studio-class-booking/internal/model"
)

// SessionRepo manages class sessions plus the small lookup tables
// they reference (class types, instructors).  Occupancy is always
// derived by counting active reservations, never stored; the
// FOR UPDATE read below is the serialization point for every
// capacity-sensitive mutation.
type SessionRepo struct {
	db *sql.DB
}

// NewSessionRepo returns a SessionRepo bound to the given database.
func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{db: db} }

// DB exposes the underlying sql.DB.  It allows callers to begin
// transactions spanning multiple repositories.
func (r *SessionRepo) DB() *sql.DB { return r.db }

const sessionColumns = `s.id, s.class_type_id, s.instructor_id, s.starts_at, s.ends_at,
		s.capacity, s.status, ct.name, i.name, s.created_at, s.updated_at`

func scanSession(row *sql.Row) (*model.ClassSession, error) {
	var s model.ClassSession
	err := row.Scan(&s.ID, &s.ClassTypeID, &s.InstructorID, &s.StartsAt, &s.EndsAt,
		&s.Capacity, &s.Status, &s.ClassName, &s.InstructorName, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetForUpdateTx locks the session row and returns it with the class
// and instructor names joined in.  The lock is taken on the
// class_sessions row alone (the joins happen in a second read) so
// unrelated sessions never block each other.
func (r *SessionRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, sessionID uint64) (*model.ClassSession, error) {
	var id uint64
	err := tx.QueryRowContext(ctx, `SELECT id FROM class_sessions WHERE id = ? FOR UPDATE`, sessionID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	const q = `SELECT ` + sessionColumns + `
			   FROM class_sessions s
			   JOIN class_types ct ON ct.id = s.class_type_id
			   JOIN instructors i ON i.id = s.instructor_id
			   WHERE s.id = ?`
	return scanSession(tx.QueryRowContext(ctx, q, sessionID))
}

// GetByID returns a session without locking, for read-only surfaces.
func (r *SessionRepo) GetByID(ctx context.Context, sessionID uint64) (*model.ClassSession, error) {
	const q = `SELECT ` + sessionColumns + `
			   FROM class_sessions s
			   JOIN class_types ct ON ct.id = s.class_type_id
			   JOIN instructors i ON i.id = s.instructor_id
			   WHERE s.id = ?`
	return scanSession(r.db.QueryRowContext(ctx, q, sessionID))
}

// ActiveReservationCountTx counts reservations that occupy a seat
// (BOOKED, ATTENDED, NO_SHOW).  Must be called with the session row
// locked when the result gates a write.
func (r *SessionRepo) ActiveReservationCountTx(ctx context.Context, tx *sql.Tx, sessionID uint64) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations WHERE session_id = ? AND status IN ('BOOKED','ATTENDED','NO_SHOW')`,
		sessionID).Scan(&n)
	return n, err
}

// Create inserts a new SCHEDULED session and returns its ID.
func (r *SessionRepo) Create(ctx context.Context, classTypeID, instructorID uint64, startsAt, endsAt time.Time, capacity int) (uint64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO class_sessions (class_type_id, instructor_id, starts_at, ends_at, capacity, status)
		 VALUES (?, ?, ?, ?, ?, 'SCHEDULED')`,
		classTypeID, instructorID, startsAt.UTC(), endsAt.UTC(), capacity)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// Cancel marks a session CANCELLED.  Administrative; reservations and
// waitlist entries are left to the surrounding admin tooling.
func (r *SessionRepo) Cancel(ctx context.Context, sessionID uint64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE class_sessions SET status = 'CANCELLED' WHERE id = ? AND status = 'SCHEDULED'`, sessionID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// SessionListing is a browse row: a session plus its live seat and
// waitlist numbers, computed in one query.
type SessionListing struct {
	ID             uint64    `json:"id"`
	ClassName      string    `json:"class_name"`
	InstructorName string    `json:"instructor_name"`
	StartsAt       time.Time `json:"starts_at"`
	EndsAt         time.Time `json:"ends_at"`
	Capacity       int       `json:"capacity"`
	Booked         int       `json:"booked"`
	SeatsLeft      int       `json:"seats_left"`
	Waiting        int       `json:"waiting"`
}

// ListUpcoming returns SCHEDULED sessions starting between from and
// to, ordered by start time, with derived occupancy.  The counts are
// a consistent read but not a lock; booking decisions never rely on
// this view.
func (r *SessionRepo) ListUpcoming(ctx context.Context, from, to time.Time) ([]SessionListing, error) {
	const q = `SELECT s.id, ct.name, i.name, s.starts_at, s.ends_at, s.capacity,
					  (SELECT COUNT(*) FROM reservations r
						WHERE r.session_id = s.id AND r.status IN ('BOOKED','ATTENDED','NO_SHOW')),
					  (SELECT COUNT(*) FROM waitlist_entries w
						WHERE w.session_id = s.id AND w.status = 'WAITING')
			   FROM class_sessions s
			   JOIN class_types ct ON ct.id = s.class_type_id
			   JOIN instructors i ON i.id = s.instructor_id
			   WHERE s.status = 'SCHEDULED' AND s.starts_at >= ? AND s.starts_at < ?
			   ORDER BY s.starts_at`
	rows, err := r.db.QueryContext(ctx, q, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]SessionListing, 0)
	for rows.Next() {
		var it SessionListing
		if err := rows.Scan(&it.ID, &it.ClassName, &it.InstructorName, &it.StartsAt, &it.EndsAt,
			&it.Capacity, &it.Booked, &it.Waiting); err != nil {
			return nil, err
		}
		it.SeatsLeft = it.Capacity - it.Booked
		if it.SeatsLeft < 0 {
			it.SeatsLeft = 0
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// CreateClassType inserts a class type and returns its ID.
func (r *SessionRepo) CreateClassType(ctx context.Context, name string) (uint64, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO class_types (name) VALUES (?)`, name)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// CreateInstructor inserts an instructor and returns their ID.
func (r *SessionRepo) CreateInstructor(ctx context.Context, name string) (uint64, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO instructors (name) VALUES (?)`, name)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// ListClassTypes returns all class types ordered by name.
func (r *SessionRepo) ListClassTypes(ctx context.Context) ([]model.ClassType, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, created_at FROM class_types ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]model.ClassType, 0)
	for rows.Next() {
		var ct model.ClassType
		if err := rows.Scan(&ct.ID, &ct.Name, &ct.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, ct)
	}
	return items, rows.Err()
}

// ListInstructors returns all instructors ordered by name.
func (r *SessionRepo) ListInstructors(ctx context.Context) ([]model.Instructor, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, created_at FROM instructors ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]model.Instructor, 0)
	for rows.Next() {
		var in model.Instructor
		if err := rows.Scan(&in.ID, &in.Name, &in.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, in)
	}
	return items, rows.Err()
}
