// Package dbtest opens throwaway migrated databases for tests.
package dbtest

import (
	"testing"

	"github.com/lamanada/tickets-api/internal/database"
	"gorm.io/gorm"
)

// New returns a migrated in-memory sqlite database closed at test cleanup.
func New(tb testing.TB) *gorm.DB {
	tb.Helper()

	db, err := database.Open("sqlite", ":memory:")
	if err != nil {
		tb.Fatalf("failed to connect database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		tb.Fatalf("failed to migrate database: %v", err)
	}

	tb.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return db
}
