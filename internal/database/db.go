package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Open connects to MySQL and verifies the connection.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, host, port, name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// schema holds the CREATE TABLE statements in dependency order.  The
// unique keys on (session_id, user_id) are what the booking and
// waitlist upserts rely on, and purchases.reference is the payment
// idempotency key.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		email         VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		first_name    VARCHAR(100) NOT NULL DEFAULT '',
		role          ENUM('CLIENT','ADMIN') NOT NULL DEFAULT 'CLIENT',
		is_active     TINYINT(1) NOT NULL DEFAULT 1,
		created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id    BIGINT UNSIGNED NOT NULL,
		token_hash CHAR(64) NOT NULL UNIQUE,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT fk_refresh_user FOREIGN KEY (user_id) REFERENCES users(id)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS wallets (
		id         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id    BIGINT UNSIGNED NOT NULL UNIQUE,
		balance    BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		CONSTRAINT fk_wallet_user FOREIGN KEY (user_id) REFERENCES users(id),
		CONSTRAINT chk_wallet_balance CHECK (balance >= 0)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS credit_ledger (
		id         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id    BIGINT UNSIGNED NOT NULL,
		delta      BIGINT NOT NULL,
		reason     ENUM('PURCHASE','BOOKING','CANCEL_REFUND','ADMIN_ADJUST','EXPIRATION') NOT NULL,
		ref_kind   VARCHAR(32) NULL,
		ref_id     BIGINT UNSIGNED NULL,
		notes      VARCHAR(255) NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_ledger_user (user_id, id),
		CONSTRAINT fk_ledger_user FOREIGN KEY (user_id) REFERENCES users(id)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS class_types (
		id         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		name       VARCHAR(100) NOT NULL UNIQUE,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS instructors (
		id         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		name       VARCHAR(100) NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS class_sessions (
		id            BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		class_type_id BIGINT UNSIGNED NOT NULL,
		instructor_id BIGINT UNSIGNED NOT NULL,
		starts_at     DATETIME NOT NULL,
		ends_at       DATETIME NOT NULL,
		capacity      INT NOT NULL,
		status        ENUM('SCHEDULED','CANCELLED') NOT NULL DEFAULT 'SCHEDULED',
		created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		KEY idx_sessions_start (status, starts_at),
		CONSTRAINT fk_session_type FOREIGN KEY (class_type_id) REFERENCES class_types(id),
		CONSTRAINT fk_session_instructor FOREIGN KEY (instructor_id) REFERENCES instructors(id)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS reservations (
		id               BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		session_id       BIGINT UNSIGNED NOT NULL,
		user_id          BIGINT UNSIGNED NOT NULL,
		status           ENUM('BOOKED','ATTENDED','NO_SHOW','CANCELLED') NOT NULL,
		credit_ledger_id BIGINT UNSIGNED NOT NULL,
		booked_at        DATETIME NOT NULL,
		cancelled_at     DATETIME NULL,
		created_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_reservation (session_id, user_id),
		KEY idx_reservation_user (user_id),
		CONSTRAINT fk_reservation_session FOREIGN KEY (session_id) REFERENCES class_sessions(id),
		CONSTRAINT fk_reservation_user FOREIGN KEY (user_id) REFERENCES users(id)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS waitlist_entries (
		id          BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		session_id  BIGINT UNSIGNED NOT NULL,
		user_id     BIGINT UNSIGNED NOT NULL,
		position    INT NOT NULL,
		status      ENUM('WAITING','NOTIFIED','ACCEPTED','EXPIRED','CANCELLED') NOT NULL,
		token       CHAR(64) NULL,
		notified_at DATETIME NULL,
		expires_at  DATETIME NULL,
		accepted_at DATETIME NULL,
		created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_waitlist (session_id, user_id),
		UNIQUE KEY uq_waitlist_token (token),
		KEY idx_waitlist_expiry (status, expires_at),
		CONSTRAINT fk_waitlist_session FOREIGN KEY (session_id) REFERENCES class_sessions(id),
		CONSTRAINT fk_waitlist_user FOREIGN KEY (user_id) REFERENCES users(id)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS purchases (
		id         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id    BIGINT UNSIGNED NOT NULL,
		reference  CHAR(36) NOT NULL UNIQUE,
		credits    BIGINT NOT NULL,
		status     ENUM('PENDING','PAID') NOT NULL DEFAULT 'PENDING',
		paid_at    DATETIME NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT fk_purchase_user FOREIGN KEY (user_id) REFERENCES users(id)
	) ENGINE=InnoDB`,
}

// EnsureSchema creates any missing tables.  Statements are idempotent
// so running at every startup is safe.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
