package services

import (
	"context"
	"math"
	"testing"
	"time"

	"nudge/internal/models"
	"nudge/internal/testutil"
)

func TestApplyInteractionConvergesOnActedHour(t *testing.T) {
	a := models.NewReminderAnalytics("tenant-1")
	scheduled := mustTime(t, "2025-03-08T18:00:00Z")
	now := mustTime(t, "2025-03-08T20:00:00Z")

	prev := a.PreferredHourOfDay
	for i := 0; i < 10; i++ {
		acted := mustTime(t, "2025-03-08T20:15:00Z").AddDate(0, 0, i)
		a = ApplyInteraction(a, models.ActionDismissed, acted, scheduled, time.UTC, now)
		if a.PreferredHourOfDay < prev {
			t.Fatalf("step %d: preferred hour went from %d to %d", i, prev, a.PreferredHourOfDay)
		}
		prev = a.PreferredHourOfDay
	}

	if diff := 20 - a.PreferredHourOfDay; diff < 0 || diff > 1 {
		t.Fatalf("preferred hour = %d, want within 1 of 20", a.PreferredHourOfDay)
	}
	if a.SampleSize != 10 {
		t.Fatalf("sample size = %d, want 10", a.SampleSize)
	}
	if !a.LastComputedAt.Equal(now) {
		t.Fatalf("last computed = %s, want %s", a.LastComputedAt, now)
	}
}

func TestApplyInteractionCompletionLead(t *testing.T) {
	scheduled := mustTime(t, "2025-03-07T10:00:00Z") // a Friday
	acted := mustTime(t, "2025-03-07T14:00:00Z")

	a := models.NewReminderAnalytics("tenant-1")
	a = ApplyInteraction(a, models.ActionCompleted, acted, scheduled, time.UTC, acted)

	want := SmoothingFactor*4 + (1-SmoothingFactor)*models.DefaultAverageCompletionLeadHours
	if math.Abs(a.AverageCompletionLeadHours-want) > 1e-9 {
		t.Fatalf("average lead = %f, want %f", a.AverageCompletionLeadHours, want)
	}
	if a.PreferredDayOfWeek != int(time.Friday) {
		t.Fatalf("preferred day = %d, want %d", a.PreferredDayOfWeek, time.Friday)
	}

	// completing right on time keeps the lead at its floor
	a.AverageCompletionLeadHours = 1
	a = ApplyInteraction(a, models.ActionCompleted, scheduled, scheduled, time.UTC, acted)
	if a.AverageCompletionLeadHours != 1 {
		t.Fatalf("average lead = %f, want floor of 1", a.AverageCompletionLeadHours)
	}
}

func TestApplyInteractionOnlyCompletionMovesLead(t *testing.T) {
	a := models.NewReminderAnalytics("tenant-1")
	scheduled := mustTime(t, "2025-03-07T10:00:00Z")
	acted := mustTime(t, "2025-03-08T10:00:00Z")

	for _, action := range []models.InteractionAction{models.ActionDelivered, models.ActionSnoozed, models.ActionDismissed} {
		got := ApplyInteraction(a, action, acted, scheduled, time.UTC, acted)
		if got.AverageCompletionLeadHours != a.AverageCompletionLeadHours {
			t.Fatalf("%s changed the completion lead to %f", action, got.AverageCompletionLeadHours)
		}
	}
}

func TestApplyInteractionReadsLocalHour(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	a := models.NewReminderAnalytics("tenant-1")
	a.PreferredHourOfDay = 21
	// 21:00 in Tokyo
	acted := mustTime(t, "2025-03-08T12:00:00Z")

	got := ApplyInteraction(a, models.ActionDelivered, acted, acted, loc, acted)
	if got.PreferredHourOfDay != 21 {
		t.Fatalf("preferred hour = %d, want 21", got.PreferredHourOfDay)
	}
}

func TestAnalyticsSnapshotDefaults(t *testing.T) {
	db := testutil.DB(t)
	svc := NewAnalyticsService(db)

	a, err := svc.Snapshot(context.Background(), "tenant-1")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if a.PreferredHourOfDay != models.DefaultPreferredHour || a.SampleSize != 0 {
		t.Fatalf("unexpected defaults: %+v", a)
	}
}
