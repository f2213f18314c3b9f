package database

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"nudge/internal/logger"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// SchedulerPollPatterns are the queries the tick issues every few minutes;
// logging each of them at debug level drowns everything else.
var SchedulerPollPatterns = []string{
	`FROM "reminder" WHERE status IN`,
	`FROM "assignment" WHERE`,
	`FROM "account" WHERE`,
}

// GormLogger routes GORM SQL tracing through zap and filters noisy queries
type GormLogger struct {
	log                  *logger.Logger
	level                gormlogger.LogLevel
	slowThreshold        time.Duration
	ignoredQueryPatterns []string
}

// NewGormLogger creates a GORM logger with the given ignored query patterns
func NewGormLogger(log *logger.Logger, level gormlogger.LogLevel, ignoredPatterns ...string) *GormLogger {
	return &GormLogger{
		log:                  log,
		level:                level,
		slowThreshold:        time.Second,
		ignoredQueryPatterns: ignoredPatterns,
	}
}

// LogMode implements logger.Interface
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		l.log.Info(fmt.Sprintf(msg, args...))
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.log.Warn(fmt.Sprintf(msg, args...))
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		l.log.Error(fmt.Sprintf(msg, args...))
	}
}

// Trace implements logger.Interface
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= gormlogger.Error:
		l.log.Error("sql failed", "sql", sql, "rows", rows, "elapsed", elapsed, "caller", findCaller(), "error", err)
	case elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		l.log.Warn("slow sql", "sql", sql, "rows", rows, "elapsed", elapsed, "caller", findCaller())
	case l.level >= gormlogger.Info:
		if l.ignored(sql) {
			return
		}
		l.log.Debug("sql", "sql", sql, "rows", rows, "elapsed", elapsed, "caller", findCaller())
	}
}

func (l *GormLogger) ignored(sql string) bool {
	for _, pattern := range l.ignoredQueryPatterns {
		if strings.Contains(sql, pattern) {
			return true
		}
	}
	return false
}

// findCaller looks through the call stack for the first frame outside GORM and this package
func findCaller() string {
	for i := 3; i < 15; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		if strings.Contains(file, "gorm.io") || strings.Contains(file, "internal/database") {
			continue
		}

		funcName := ""
		if fn := runtime.FuncForPC(pc); fn != nil {
			funcName = fn.Name()
			if idx := strings.LastIndexByte(funcName, '.'); idx != -1 {
				funcName = funcName[idx+1:]
			}
		}
		if funcName != "" {
			return fmt.Sprintf("%s() at %s:%d", funcName, file, line)
		}
		return fmt.Sprintf("%s:%d", file, line)
	}
	return ""
}
