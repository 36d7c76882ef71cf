package db

import (
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func TestMigrateCreatesSchema(t *testing.T) {
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}

	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	tables := []string{
		"users", "admins", "merchants", "gift_cards",
		"ledger_entries", "rewards", "notifications",
		"idempotency_keys", "settings",
	}
	for _, table := range tables {
		if !conn.Migrator().HasTable(table) {
			t.Fatalf("missing table %s", table)
		}
	}

	columns := map[string][]string{
		"gift_cards":       {"serial", "balance_fiat_cents", "balance_crypto_micros", "parent_id", "status", "expires_at"},
		"ledger_entries":   {"request_id", "type", "amount_fiat_cents", "idempotency_key", "metadata"},
		"users":            {"account_balance_cents", "reward_points", "wallet_address"},
		"rewards":          {"points", "expires_at", "expired"},
		"idempotency_keys": {"key", "operation", "response", "expires_at"},
	}
	for table, cols := range columns {
		for _, col := range cols {
			if !conn.Migrator().HasColumn(table, col) {
				t.Fatalf("missing column %s.%s", table, col)
			}
		}
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("first migrate: %v", errMigrate)
	}
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("second migrate: %v", errMigrate)
	}
}
