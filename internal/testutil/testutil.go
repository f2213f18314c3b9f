package testutil

import (
	"fmt"
	"testing"
	"time"

	"nudge/internal/database"
	"nudge/internal/logger"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	return logger.Nop()
}

// DB opens a fresh in-memory database with every table migrated. Each call
// gets its own database, so tests can run in parallel.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), database.GormConfig(Logger(tb), gormLogger.Silent))
	if err != nil {
		tb.Fatalf("open test db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("test db handle: %v", err)
	}
	// the in-memory database lives as long as one connection holds it
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := database.Migrate(db); err != nil {
		tb.Fatalf("migrate: %v", err)
	}
	if err := database.MigrateCollaborators(db); err != nil {
		tb.Fatalf("migrate collaborators: %v", err)
	}
	return db
}

// FixedClock always returns t
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t.UTC() }
}

// Clock is a settable clock for tests that move time forward
type Clock struct {
	T time.Time
}

func (c *Clock) Now() time.Time {
	return c.T.UTC()
}

func (c *Clock) Advance(d time.Duration) {
	c.T = c.T.Add(d)
}

func MustTime(tb testing.TB, s string) time.Time {
	tb.Helper()
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		tb.Fatalf("parse time %q: %v", s, err)
	}
	return t.UTC()
}
