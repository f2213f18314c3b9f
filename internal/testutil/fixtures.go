package testutil

import (
	"context"
	"testing"
	"time"

	"nudge/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func SeedAssignment(tb testing.TB, ctx context.Context, db *gorm.DB, tenantID string, due time.Time) *models.Assignment {
	tb.Helper()
	a := &models.Assignment{
		ID:              uuid.NewString(),
		TenantID:        tenantID,
		Title:           "Essay draft",
		DueDate:         due.UTC(),
		CompletionState: models.AssignmentPending,
	}
	if err := db.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed assignment: %v", err)
	}
	return a
}

func SeedAccount(tb testing.TB, ctx context.Context, db *gorm.DB, lastLogin time.Time) *models.Account {
	tb.Helper()
	a := &models.Account{
		ID:          uuid.NewString(),
		LastLoginAt: lastLogin.UTC(),
	}
	if err := db.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed account: %v", err)
	}
	return a
}

func SeedPreference(tb testing.TB, ctx context.Context, db *gorm.DB, pref models.ReminderPreference) *models.ReminderPreference {
	tb.Helper()
	if err := db.WithContext(ctx).Create(&pref).Error; err != nil {
		tb.Fatalf("seed preference: %v", err)
	}
	return &pref
}

// SeedReminder inserts a reminder as-is; the dedup index still applies
func SeedReminder(tb testing.TB, ctx context.Context, db *gorm.DB, tenantID string, status models.ReminderStatus, scheduledFor time.Time) *models.Reminder {
	tb.Helper()
	r := &models.Reminder{
		TenantID:     tenantID,
		Type:         models.ReminderDeadline,
		ForeignID:    uuid.NewString(),
		ScheduledFor: scheduledFor.UTC(),
		Status:       status,
		Title:        "Upcoming: Essay draft",
		Message:      "Essay draft is due soon.",
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		tb.Fatalf("seed reminder: %v", err)
	}
	return r
}

func SeedSubscription(tb testing.TB, ctx context.Context, db *gorm.DB, tenantID, endpoint string) *models.PushSubscription {
	tb.Helper()
	s := &models.PushSubscription{
		TenantID: tenantID,
		Endpoint: endpoint,
		P256dh:   "p256dh",
		Auth:     "auth",
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed subscription: %v", err)
	}
	return s
}
