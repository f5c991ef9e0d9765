package testutil

import (
	"testing"

	"zyberhero/internal/database"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// SetupTestDB creates a migrated in-memory SQLite database for testing.
// The pool is limited to one connection so every goroutine sees the same
// in-memory store; it is closed when the test ends.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), database.GormConfig(false))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() { sqlDB.Close() })
	return db
}
