package database

import (
	"path/filepath"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestConnectRequiresDSN(t *testing.T) {
	if _, err := Connect("", false); err == nil {
		t.Fatal("expected an error for an empty DSN")
	}
}

func TestMigrateCreatesLedgerTables(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "m.db")), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	defer Close(db)

	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	// Running twice must be harmless.
	if err := Migrate(db); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	for _, table := range []string{"campaigns", "ledger_entries", "donations", "users", "email_events", "webhook_events"} {
		if !db.Migrator().HasTable(table) {
			t.Errorf("missing table %s", table)
		}
	}
}
