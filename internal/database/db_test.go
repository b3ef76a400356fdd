package database

import (
	"strings"
	"testing"
)

// The repositories hand-write their SQL, so a column renamed in the
// bootstrap DDL only surfaces at runtime as MySQL error 1054.  Pin
// every column the repositories reference to the statement that
// creates its table.
func TestSchemaDeclaresQueriedColumns(t *testing.T) {
	queried := map[string][]string{
		"users":            {"email", "password_hash", "first_name", "role"},
		"refresh_tokens":   {"user_id", "token_hash", "expires_at", "revoked_at"},
		"wallets":          {"user_id", "balance"},
		"credit_ledger":    {"user_id", "delta", "reason", "ref_kind", "ref_id", "notes"},
		"class_types":      {"name"},
		"instructors":      {"name"},
		"class_sessions":   {"class_type_id", "instructor_id", "starts_at", "ends_at", "capacity", "status"},
		"reservations":     {"session_id", "user_id", "status", "credit_ledger_id", "booked_at", "cancelled_at"},
		"waitlist_entries": {"session_id", "user_id", "position", "status", "token", "notified_at", "expires_at", "accepted_at"},
		"purchases":        {"user_id", "reference", "credits", "status", "paid_at"},
	}
	for table, cols := range queried {
		stmt := createStatement(t, table)
		for _, col := range cols {
			if !strings.Contains(stmt, col) {
				t.Errorf("table %s: column %s missing from bootstrap DDL", table, col)
			}
		}
	}
}

func createStatement(t *testing.T, table string) string {
	t.Helper()
	for _, stmt := range schema {
		if strings.Contains(stmt, "CREATE TABLE IF NOT EXISTS "+table+" (") {
			return stmt
		}
	}
	t.Fatalf("no CREATE TABLE statement for %s", table)
	return ""
}
