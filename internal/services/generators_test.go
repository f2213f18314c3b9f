package services

import (
	"context"
	"testing"
	"time"

	"nudge/internal/auth"
	"nudge/internal/models"
	"nudge/internal/testutil"

	"gorm.io/gorm"
)

func newTestGenerator(t *testing.T, db *gorm.DB, clock *testutil.Clock) *Generator {
	t.Helper()
	cipher, err := auth.NewMetadataCipher([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("cipher: %v", err)
	}
	return NewGenerator(db, cipher, testutil.Logger(t), GeneratorOptions{Clock: clock.Now})
}

func liveReminders(t *testing.T, db *gorm.DB, tenantID string) []models.Reminder {
	t.Helper()
	var rows []models.Reminder
	if err := db.Where("tenant_id = ? AND status IN ?", tenantID, models.LiveStatuses).Find(&rows).Error; err != nil {
		t.Fatalf("load reminders: %v", err)
	}
	return rows
}

func TestGenerateDeadlineDedup(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	clock := &testutil.Clock{T: mustTime(t, "2025-03-08T12:00:00Z")}
	gen := newTestGenerator(t, db, clock)

	assignment := testutil.SeedAssignment(t, ctx, db, "tenant-1", mustTime(t, "2025-03-10T09:00:00Z"))

	first := gen.GenerateDeadline(ctx)
	if first.Created != 1 {
		t.Fatalf("first run: %+v, want one created", first)
	}
	second := gen.GenerateDeadline(ctx)
	if second.Created != 0 || second.Updated != 0 || second.Unchanged != 1 {
		t.Fatalf("second run: %+v, want one unchanged", second)
	}

	n, err := newStore(db).reminders.CountLiveByKey(ctx, models.DedupKey{
		TenantID:  "tenant-1",
		Type:      models.ReminderDeadline,
		ForeignID: assignment.ID,
	})
	if err != nil {
		t.Fatalf("CountLiveByKey: %v", err)
	}
	if n != 1 {
		t.Fatalf("live reminders for key = %d, want 1", n)
	}

	rows := liveReminders(t, db, "tenant-1")
	if want := mustTime(t, "2025-03-09T18:00:00Z"); !rows[0].ScheduledFor.Equal(want) {
		t.Fatalf("scheduled for %s, want %s", rows[0].ScheduledFor, want)
	}
	if !rows[0].MetadataEncrypted || rows[0].Metadata == "" {
		t.Fatalf("metadata not sealed: encrypted=%v", rows[0].MetadataEncrypted)
	}
}

func TestGenerateDeadlineFollowsMovedDueDate(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	clock := &testutil.Clock{T: mustTime(t, "2025-03-08T12:00:00Z")}
	gen := newTestGenerator(t, db, clock)

	assignment := testutil.SeedAssignment(t, ctx, db, "tenant-1", mustTime(t, "2025-03-10T09:00:00Z"))
	gen.GenerateDeadline(ctx)

	if err := db.Model(assignment).Update("due_date", mustTime(t, "2025-03-09T15:00:00Z")).Error; err != nil {
		t.Fatalf("move due date: %v", err)
	}
	stats := gen.GenerateDeadline(ctx)
	if stats.Updated != 1 {
		t.Fatalf("stats = %+v, want one updated", stats)
	}

	rows := liveReminders(t, db, "tenant-1")
	if len(rows) != 1 {
		t.Fatalf("live reminders = %d, want 1", len(rows))
	}
	if want := mustTime(t, "2025-03-08T18:00:00Z"); !rows[0].ScheduledFor.Equal(want) {
		t.Fatalf("scheduled for %s, want %s", rows[0].ScheduledFor, want)
	}
}

func TestGenerateDeadlineAfterTerminalReminder(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	clock := &testutil.Clock{T: mustTime(t, "2025-03-08T12:00:00Z")}
	gen := newTestGenerator(t, db, clock)

	testutil.SeedAssignment(t, ctx, db, "tenant-1", mustTime(t, "2025-03-10T09:00:00Z"))
	gen.GenerateDeadline(ctx)

	if err := db.Model(&models.Reminder{}).Where("tenant_id = ?", "tenant-1").
		Update("status", models.StatusDismissed).Error; err != nil {
		t.Fatalf("dismiss: %v", err)
	}

	stats := gen.GenerateDeadline(ctx)
	if stats.Created != 1 {
		t.Fatalf("stats = %+v, want a fresh reminder", stats)
	}

	var total int64
	db.Model(&models.Reminder{}).Where("tenant_id = ?", "tenant-1").Count(&total)
	if total != 2 {
		t.Fatalf("total reminders = %d, want 2", total)
	}
	if live := liveReminders(t, db, "tenant-1"); len(live) != 1 {
		t.Fatalf("live reminders = %d, want 1", len(live))
	}
}

func TestGenerateDeadlineSkips(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	clock := &testutil.Clock{T: mustTime(t, "2025-03-08T12:00:00Z")}
	gen := newTestGenerator(t, db, clock)

	done := testutil.SeedAssignment(t, ctx, db, "tenant-1", mustTime(t, "2025-03-09T09:00:00Z"))
	db.Model(done).Update("completion_state", models.AssignmentCompleted)

	// outside the lookahead window
	testutil.SeedAssignment(t, ctx, db, "tenant-1", mustTime(t, "2025-03-20T09:00:00Z"))

	off := models.DefaultPreference("tenant-2")
	off.SmartRemindersEnabled = false
	testutil.SeedPreference(t, ctx, db, off)
	testutil.SeedAssignment(t, ctx, db, "tenant-2", mustTime(t, "2025-03-09T09:00:00Z"))

	stats := gen.GenerateDeadline(ctx)
	if stats.Created != 0 || stats.Skipped != 1 {
		t.Fatalf("stats = %+v, want nothing created and one skipped", stats)
	}
}

func TestGenerateInactivity(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	clock := &testutil.Clock{T: mustTime(t, "2025-03-08T12:00:00Z")}
	gen := newTestGenerator(t, db, clock)

	idle := testutil.SeedAccount(t, ctx, db, mustTime(t, "2025-03-07T10:00:00Z"))
	// the nudge would already be in the past
	testutil.SeedAccount(t, ctx, db, mustTime(t, "2025-03-01T10:00:00Z"))
	optedOut := testutil.SeedAccount(t, ctx, db, mustTime(t, "2025-03-07T10:00:00Z"))
	db.Model(optedOut).Update("reminder_opt_out", true)

	stats := gen.GenerateInactivity(ctx)
	if stats.Created != 1 || stats.Skipped != 1 {
		t.Fatalf("stats = %+v, want one created and one skipped", stats)
	}

	rows := liveReminders(t, db, idle.ID)
	if len(rows) != 1 {
		t.Fatalf("live reminders = %d, want 1", len(rows))
	}
	// last login + 48h, snapped to 18:00
	if want := mustTime(t, "2025-03-09T18:00:00Z"); !rows[0].ScheduledFor.Equal(want) {
		t.Fatalf("scheduled for %s, want %s", rows[0].ScheduledFor, want)
	}
	if rows[0].ForeignID != idle.ID || rows[0].Type != models.ReminderInactivity {
		t.Fatalf("unexpected reminder %+v", rows[0])
	}
}

func TestGenerateBehavioral(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	clock := &testutil.Clock{T: mustTime(t, "2025-03-08T12:00:00Z")}
	gen := newTestGenerator(t, db, clock)
	s := newStore(db)

	fresh := models.NewReminderAnalytics("tenant-1")
	fresh.PreferredHourOfDay = 20
	fresh.LastComputedAt = clock.Now().Add(-24 * time.Hour)
	if err := s.analytics.Upsert(ctx, &fresh); err != nil {
		t.Fatalf("seed analytics: %v", err)
	}

	stale := models.NewReminderAnalytics("tenant-2")
	stale.LastComputedAt = clock.Now().AddDate(0, 0, -30)
	if err := s.analytics.Upsert(ctx, &stale); err != nil {
		t.Fatalf("seed analytics: %v", err)
	}

	// Saturday is not a study day for tenant-3
	weekdays := models.DefaultPreference("tenant-3")
	weekdays.PreferredWeekdays = models.IntList{1, 2, 3, 4, 5}
	testutil.SeedPreference(t, ctx, db, weekdays)
	other := models.NewReminderAnalytics("tenant-3")
	other.LastComputedAt = clock.Now().Add(-time.Hour)
	if err := s.analytics.Upsert(ctx, &other); err != nil {
		t.Fatalf("seed analytics: %v", err)
	}

	stats := gen.GenerateBehavioral(ctx)
	if stats.Created != 1 || stats.Skipped != 2 {
		t.Fatalf("stats = %+v, want one created and two skipped", stats)
	}

	rows := liveReminders(t, db, "tenant-1")
	if len(rows) != 1 {
		t.Fatalf("live reminders = %d, want 1", len(rows))
	}
	if rows[0].ForeignID != BehaviourKey(clock.Now()) {
		t.Fatalf("foreign id = %q, want %q", rows[0].ForeignID, BehaviourKey(clock.Now()))
	}
	if want := mustTime(t, "2025-03-08T20:00:00Z"); !rows[0].ScheduledFor.Equal(want) {
		t.Fatalf("scheduled for %s, want %s", rows[0].ScheduledFor, want)
	}

	// one behavioural nudge per day
	if again := gen.GenerateBehavioral(ctx); again.Created != 0 {
		t.Fatalf("second run created %d", again.Created)
	}
}

func TestGenerateBehavioralKeysByFiringDay(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	// after today's preferred hour, so the nudge lands tomorrow
	clock := &testutil.Clock{T: mustTime(t, "2025-03-08T19:00:00Z")}
	gen := newTestGenerator(t, db, clock)

	a := models.NewReminderAnalytics("tenant-1")
	a.PreferredHourOfDay = 18
	a.LastComputedAt = clock.Now().Add(-time.Hour)
	if err := newStore(db).analytics.Upsert(ctx, &a); err != nil {
		t.Fatalf("seed analytics: %v", err)
	}

	if stats := gen.GenerateBehavioral(ctx); stats.Created != 1 {
		t.Fatalf("evening run: %+v, want one created", stats)
	}

	// past midnight the tick falls on the same day the nudge fires
	clock.Advance(6 * time.Hour)
	if stats := gen.GenerateBehavioral(ctx); stats.Created != 0 || stats.Unchanged != 1 {
		t.Fatalf("night run: %+v, want one unchanged", stats)
	}

	rows := liveReminders(t, db, "tenant-1")
	if len(rows) != 1 {
		t.Fatalf("live reminders = %d, want 1", len(rows))
	}
	if rows[0].ForeignID != "behaviour_2025-03-09" {
		t.Fatalf("foreign id = %q", rows[0].ForeignID)
	}
	if want := mustTime(t, "2025-03-09T18:00:00Z"); !rows[0].ScheduledFor.Equal(want) {
		t.Fatalf("scheduled for %s, want %s", rows[0].ScheduledFor, want)
	}
}
