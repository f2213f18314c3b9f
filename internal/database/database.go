package database

import (
	"fmt"
	"time"

	"nudge/internal/config"
	"nudge/internal/logger"
	"nudge/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// Open connects to postgres with retry and configures the connection pool
func Open(cfg *config.Config, log *logger.Logger) (*gorm.DB, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}

	level := gormlogger.Info
	if cfg.IsRelease() {
		level = gormlogger.Warn
	}

	var db *gorm.DB
	maxRetries := 5
	retryDelay := time.Second * 5

	for i := 0; i < maxRetries; i++ {
		db, err = gorm.Open(postgres.Open(dsn), GormConfig(log, level))
		if err == nil {
			break
		}
		log.Warn("database connection attempt failed", "attempt", i+1, "error", err)
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("database connection established")
	return db, nil
}

// GormConfig is shared by the postgres connection and the sqlite test harness
func GormConfig(log *logger.Logger, level gormlogger.LogLevel) *gorm.Config {
	return &gorm.Config{
		Logger: NewGormLogger(log, level, SchedulerPollPatterns...),
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Migrate creates the tables the reminder engine owns, plus the partial
// unique index that enforces one live reminder per dedup key.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Reminder{},
		&models.ReminderInteraction{},
		&models.ReminderPreference{},
		&models.ReminderAnalytics{},
		&models.PushSubscription{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	stmt := fmt.Sprintf(
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_reminder_live_dedup ON reminder (tenant_id, type, foreign_id) WHERE %s",
		models.LiveStatusPredicate,
	)
	if err := db.Exec(stmt).Error; err != nil {
		return fmt.Errorf("failed to create dedup index: %w", err)
	}
	return nil
}

// MigrateCollaborators creates the read-model tables owned by other
// subsystems. Only used for local development and tests.
func MigrateCollaborators(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Account{}, &models.Assignment{}); err != nil {
		return fmt.Errorf("failed to migrate collaborator tables: %w", err)
	}
	return nil
}
