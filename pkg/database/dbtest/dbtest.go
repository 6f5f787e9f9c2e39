package dbtest

import (
	"testing"

	"github.com/Guimenn/Zelos-Senai-sub003/pkg/database"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenTestDB opens a migrated in-memory SQLite database, installs it as the
// shared instance and closes it when the test ends.
func OpenTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	conn, err := database.Open(sqlite.Open("file::memory:?_foreign_keys=on"), logger.Silent)
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("failed to get test db: %v", err)
	}
	// Every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)

	if err := database.Migrate(conn); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}

	previous := database.GetDB()
	database.SetDB(conn)
	t.Cleanup(func() {
		database.SetDB(previous)
		sqlDB.Close()
	})

	return conn
}
