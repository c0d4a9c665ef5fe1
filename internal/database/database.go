package database

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lamanada/tickets-api/internal/config"
	"github.com/lamanada/tickets-api/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the configured database. Migrations are run separately.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	return Open(cfg.DatabaseDriver, cfg.DatabaseURL)
}

func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite", "":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         NewLogger(logrus.StandardLogger()),
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", driver, err)
	}

	if driver != "postgres" {
		// sqlite serialises writers; a single connection avoids SQLITE_BUSY
		// and keeps in-memory databases alive.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("getting sql db: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return db, nil
}

// NewLogger logs slow queries and failures to w. Missing rows are a normal
// lookup outcome and stay quiet.
func NewLogger(w logger.Writer) logger.Interface {
	return logger.New(w, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

// Migrate creates or updates the schema, including the partial unique index
// that allows one pending/paid ticket per (event, attendee).
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Event{},
		&models.Attendee{},
		&models.Ticket{},
		&models.CheckinEvent{},
		&models.Staff{},
	); err != nil {
		return fmt.Errorf("auto migrating: %w", err)
	}

	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_tickets_active_pair
		ON tickets (event_id, attendee_id)
		WHERE status IN ('pending', 'paid')`).Error; err != nil {
		return fmt.Errorf("creating active ticket index: %w", err)
	}

	return nil
}

// IsUniqueViolation reports whether err was caused by a unique index.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// Errors that bypass the dialect translator still carry the driver text.
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key value")
}
