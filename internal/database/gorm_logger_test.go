package database

import (
	"testing"

	"nudge/internal/logger"

	gormlogger "gorm.io/gorm/logger"
)

func TestGormLoggerIgnoresPollQueries(t *testing.T) {
	l := NewGormLogger(logger.Nop(), gormlogger.Info, SchedulerPollPatterns...)

	tests := []struct {
		sql  string
		want bool
	}{
		{`SELECT * FROM "reminder" WHERE status IN ('scheduled','queued','snoozed') AND scheduled_for >= '2025-03-08'`, true},
		{`SELECT * FROM "assignment" WHERE due_date > '2025-03-08'`, true},
		{`UPDATE "reminder" SET "status"='sent' WHERE id = 'r-1'`, false},
		{`INSERT INTO "reminder_interaction" ("reminder_id") VALUES ('r-1')`, false},
	}
	for _, tt := range tests {
		if got := l.ignored(tt.sql); got != tt.want {
			t.Errorf("ignored(%q) = %v, want %v", tt.sql, got, tt.want)
		}
	}
}

func TestGormLoggerLogMode(t *testing.T) {
	l := NewGormLogger(logger.Nop(), gormlogger.Warn)
	quiet := l.LogMode(gormlogger.Silent).(*GormLogger)
	if quiet.level != gormlogger.Silent || l.level != gormlogger.Warn {
		t.Fatalf("LogMode must return a copy: original=%d copy=%d", l.level, quiet.level)
	}
}
