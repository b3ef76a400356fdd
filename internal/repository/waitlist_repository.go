package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/studio-class-booking/internal/model"
)

// WaitlistRepo persists waitlist entries.  The table is unique on
// (session_id, user_id); a user who left or expired and joins again
// reopens their existing row.  Position mutations for a session are
// only ever performed while the session row is locked, which keeps
// the dense 1..N ordering race-free.
type WaitlistRepo struct {
	db *sql.DB
}

// NewWaitlistRepo returns a WaitlistRepo bound to the given database.
func NewWaitlistRepo(db *sql.DB) *WaitlistRepo { return &WaitlistRepo{db: db} }

const waitlistColumns = `id, session_id, user_id, position, status, token, notified_at, expires_at, accepted_at, created_at, updated_at`

func scanWaitlistEntry(scan func(dest ...any) error) (*model.WaitlistEntry, error) {
	var (
		e          model.WaitlistEntry
		token      sql.NullString
		notifiedAt sql.NullTime
		expiresAt  sql.NullTime
		acceptedAt sql.NullTime
	)
	err := scan(&e.ID, &e.SessionID, &e.UserID, &e.Position, &e.Status, &token,
		&notifiedAt, &expiresAt, &acceptedAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if token.Valid {
		e.Token = token.String
	}
	if notifiedAt.Valid {
		t := notifiedAt.Time
		e.NotifiedAt = &t
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		e.ExpiresAt = &t
	}
	if acceptedAt.Valid {
		t := acceptedAt.Time
		e.AcceptedAt = &t
	}
	return &e, nil
}

// WaitingCountTx counts WAITING entries for the session.
func (r *WaitlistRepo) WaitingCountTx(ctx context.Context, tx *sql.Tx, sessionID uint64) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM waitlist_entries WHERE session_id = ? AND status = 'WAITING'`,
		sessionID).Scan(&n)
	return n, err
}

// ActiveCountTx counts WAITING plus NOTIFIED entries; the next join
// position is this count plus one.
func (r *WaitlistRepo) ActiveCountTx(ctx context.Context, tx *sql.Tx, sessionID uint64) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM waitlist_entries WHERE session_id = ? AND status IN ('WAITING','NOTIFIED')`,
		sessionID).Scan(&n)
	return n, err
}

// ActiveEntryTx returns the pair's WAITING or NOTIFIED entry, nil
// when the user is not actively queued.
func (r *WaitlistRepo) ActiveEntryTx(ctx context.Context, tx *sql.Tx, sessionID, userID uint64) (*model.WaitlistEntry, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+waitlistColumns+` FROM waitlist_entries
		 WHERE session_id = ? AND user_id = ? AND status IN ('WAITING','NOTIFIED') FOR UPDATE`,
		sessionID, userID)
	e, err := scanWaitlistEntry(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

// UpsertWaitingTx creates the pair's entry as WAITING at the given
// position, or reopens a terminal (CANCELLED/EXPIRED/ACCEPTED) row:
// fresh position, offer fields cleared.  Returns the row ID.
func (r *WaitlistRepo) UpsertWaitingTx(ctx context.Context, tx *sql.Tx, sessionID, userID uint64, position int) (uint64, error) {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO waitlist_entries (session_id, user_id, position, status)
		 VALUES (?, ?, ?, 'WAITING')
		 ON DUPLICATE KEY UPDATE
			 position = VALUES(position),
			 status = 'WAITING',
			 token = NULL,
			 notified_at = NULL,
			 expires_at = NULL,
			 accepted_at = NULL`,
		sessionID, userID, position)
	if err != nil {
		return 0, err
	}
	var id uint64
	if err := tx.QueryRowContext(ctx,
		`SELECT id FROM waitlist_entries WHERE session_id = ? AND user_id = ?`,
		sessionID, userID).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// LowestWaitingTx returns the WAITING entry with the lowest position,
// nil when nobody is waiting.
func (r *WaitlistRepo) LowestWaitingTx(ctx context.Context, tx *sql.Tx, sessionID uint64) (*model.WaitlistEntry, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+waitlistColumns+` FROM waitlist_entries
		 WHERE session_id = ? AND status = 'WAITING'
		 ORDER BY position ASC LIMIT 1 FOR UPDATE`,
		sessionID)
	e, err := scanWaitlistEntry(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

// NotifiedEntryTx returns the session's in-flight NOTIFIED entry, nil
// when no offer is out.  There is at most one by construction.
func (r *WaitlistRepo) NotifiedEntryTx(ctx context.Context, tx *sql.Tx, sessionID uint64) (*model.WaitlistEntry, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+waitlistColumns+` FROM waitlist_entries
		 WHERE session_id = ? AND status = 'NOTIFIED' LIMIT 1 FOR UPDATE`,
		sessionID)
	e, err := scanWaitlistEntry(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

// MarkNotifiedTx moves the entry to NOTIFIED with its single-use
// token and accept deadline.
func (r *WaitlistRepo) MarkNotifiedTx(ctx context.Context, tx *sql.Tx, entryID uint64, token string, notifiedAt, expiresAt time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE waitlist_entries SET status = 'NOTIFIED', token = ?, notified_at = ?, expires_at = ? WHERE id = ?`,
		token, notifiedAt.UTC(), expiresAt.UTC(), entryID)
	return err
}

// EntryByTokenTx looks an entry up by accept token, nil when the
// token matches nothing.
func (r *WaitlistRepo) EntryByTokenTx(ctx context.Context, tx *sql.Tx, token string) (*model.WaitlistEntry, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+waitlistColumns+` FROM waitlist_entries WHERE token = ? LIMIT 1 FOR UPDATE`,
		token)
	e, err := scanWaitlistEntry(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

// MarkAcceptedTx moves the entry to ACCEPTED and consumes the token.
func (r *WaitlistRepo) MarkAcceptedTx(ctx context.Context, tx *sql.Tx, entryID uint64, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE waitlist_entries SET status = 'ACCEPTED', accepted_at = ?, token = NULL WHERE id = ?`,
		at.UTC(), entryID)
	return err
}

// MarkExpiredIfNotifiedTx expires the entry only while it is still
// NOTIFIED with a passed deadline, consuming the token.  Reports
// whether this call flipped it; false means a concurrent acceptance
// (or an earlier sweep) got there first.
func (r *WaitlistRepo) MarkExpiredIfNotifiedTx(ctx context.Context, tx *sql.Tx, entryID uint64, now time.Time) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE waitlist_entries SET status = 'EXPIRED', token = NULL
		 WHERE id = ? AND status = 'NOTIFIED' AND expires_at <= ?`,
		entryID, now.UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkCancelledTx records a user-initiated leave.
func (r *WaitlistRepo) MarkCancelledTx(ctx context.Context, tx *sql.Tx, entryID uint64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE waitlist_entries SET status = 'CANCELLED', token = NULL WHERE id = ?`,
		entryID)
	return err
}

// CompactPositionsTx closes the gap behind a departed entry by
// shifting every WAITING entry with a greater position down one.
func (r *WaitlistRepo) CompactPositionsTx(ctx context.Context, tx *sql.Tx, sessionID uint64, removedPosition int) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE waitlist_entries SET position = position - 1
		 WHERE session_id = ? AND status = 'WAITING' AND position > ?`,
		sessionID, removedPosition)
	return err
}

// ExpiredNotifiedTx lists NOTIFIED entries whose deadline has passed,
// across all sessions.  The sweep re-checks each one under the
// session lock before flipping it.
func (r *WaitlistRepo) ExpiredNotifiedTx(ctx context.Context, tx *sql.Tx, now time.Time) ([]model.WaitlistEntry, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+waitlistColumns+` FROM waitlist_entries
		 WHERE status = 'NOTIFIED' AND expires_at <= ?
		 ORDER BY expires_at ASC`,
		now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := make([]model.WaitlistEntry, 0)
	for rows.Next() {
		e, err := scanWaitlistEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// WaitlistDetail is a waitlist entry joined with its session for
// display to the client.
type WaitlistDetail struct {
	ID        uint64     `json:"id"`
	SessionID uint64     `json:"session_id"`
	Position  int        `json:"position"`
	Status    string     `json:"status"`
	ClassName string     `json:"class_name"`
	StartsAt  time.Time  `json:"starts_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// ListActiveByUser returns the user's WAITING and NOTIFIED entries
// ordered by session start.
func (r *WaitlistRepo) ListActiveByUser(ctx context.Context, userID uint64) ([]WaitlistDetail, error) {
	const q = `SELECT w.id, w.session_id, w.position, w.status, ct.name, s.starts_at, w.expires_at
			   FROM waitlist_entries w
			   JOIN class_sessions s ON s.id = w.session_id
			   JOIN class_types ct ON ct.id = s.class_type_id
			   WHERE w.user_id = ? AND w.status IN ('WAITING','NOTIFIED')
			   ORDER BY s.starts_at`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]WaitlistDetail, 0)
	for rows.Next() {
		var (
			d         WaitlistDetail
			expiresAt sql.NullTime
		)
		if err := rows.Scan(&d.ID, &d.SessionID, &d.Position, &d.Status, &d.ClassName, &d.StartsAt, &expiresAt); err != nil {
			return nil, err
		}
		if expiresAt.Valid {
			t := expiresAt.Time
			d.ExpiresAt = &t
		}
		items = append(items, d)
	}
	return items, rows.Err()
}
