package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"nudge/internal/auth"
	"nudge/internal/models"
	"nudge/internal/testutil"
)

func TestListLiveWindow(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	now := mustTime(t, "2025-03-08T12:00:00Z")
	cipher, _ := auth.NewMetadataCipher(nil)
	svc := NewReminderService(db, cipher, testutil.Logger(t), testutil.FixedClock(now))

	soon := testutil.SeedReminder(t, ctx, db, "tenant-1", models.StatusScheduled, now.Add(6*time.Hour))
	testutil.SeedReminder(t, ctx, db, "tenant-1", models.StatusScheduled, now.Add(10*24*time.Hour))
	testutil.SeedReminder(t, ctx, db, "tenant-1", models.StatusDismissed, now.Add(time.Hour))
	testutil.SeedReminder(t, ctx, db, "tenant-2", models.StatusScheduled, now.Add(time.Hour))

	views, err := svc.ListLive(ctx, "tenant-1", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("ListLive: %v", err)
	}
	if len(views) != 1 || views[0].ID != soon.ID {
		t.Fatalf("views = %d, want only the reminder due within a week", len(views))
	}
	if views[0].Interactions == nil {
		t.Fatalf("interactions must be an empty list, not null")
	}

	wide, err := svc.ListLive(ctx, "tenant-1", now, now.Add(30*24*time.Hour))
	if err != nil {
		t.Fatalf("ListLive: %v", err)
	}
	if len(wide) != 2 {
		t.Fatalf("wide window = %d reminders, want 2", len(wide))
	}

	if _, err := svc.ListLive(ctx, "tenant-1", now, now.Add(-time.Hour)); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("err = %v, want ErrInvalidWindow", err)
	}
}

func TestReminderMetadataRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	clock := &testutil.Clock{T: mustTime(t, "2025-03-08T12:00:00Z")}
	gen := newTestGenerator(t, db, clock)
	assignment := testutil.SeedAssignment(t, ctx, db, "tenant-1", mustTime(t, "2025-03-10T09:00:00Z"))
	gen.GenerateDeadline(ctx)

	rows := liveReminders(t, db, "tenant-1")
	if len(rows) != 1 {
		t.Fatalf("live reminders = %d, want 1", len(rows))
	}

	right, _ := auth.NewMetadataCipher([]byte("0123456789abcdef0123456789abcdef"))
	view, err := NewReminderService(db, right, testutil.Logger(t), clock.Now).Get(ctx, "tenant-1", rows[0].ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if view.Metadata["assignmentId"] != assignment.ID {
		t.Fatalf("metadata = %v", view.Metadata)
	}

	// a rotated key hides metadata instead of failing the read
	wrong, _ := auth.NewMetadataCipher([]byte("fedcba9876543210fedcba9876543210"))
	view, err = NewReminderService(db, wrong, testutil.Logger(t), clock.Now).Get(ctx, "tenant-1", rows[0].ID)
	if err != nil {
		t.Fatalf("Get with wrong key: %v", err)
	}
	if view.Metadata != nil {
		t.Fatalf("metadata = %v, want nil", view.Metadata)
	}

	if _, err := NewReminderService(db, right, testutil.Logger(t), clock.Now).Get(ctx, "tenant-2", rows[0].ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-tenant Get err = %v, want ErrNotFound", err)
	}
}

func TestPreferenceUpdate(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	svc := NewPreferenceService(db)

	pref, err := svc.Get(ctx, "tenant-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if pref.Timezone != models.DefaultTimezone || !pref.SmartRemindersEnabled {
		t.Fatalf("defaults = %+v", pref)
	}

	tz := "Europe/Berlin"
	lead := 240
	off := false
	updated, err := svc.Update(ctx, "tenant-1", models.UpdatePreferenceRequest{
		Timezone:               &tz,
		DefaultLeadMinutes:     &lead,
		PushEnabled:            &off,
		SnoozeDurationsMinutes: []int{15, 45},
		QuietHours:             &models.QuietHours{StartHour: 23, EndHour: 6},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Timezone != tz || updated.DefaultLeadMinutes != lead || updated.PushEnabled {
		t.Fatalf("updated = %+v", updated)
	}

	reloaded, err := svc.Get(ctx, "tenant-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got := reloaded.SnoozeOptions(); len(got) != 2 || got[0] != 15 {
		t.Fatalf("snooze options = %v", got)
	}
	if reloaded.QuietHours.StartHour != 23 || reloaded.QuietHours.EndHour != 6 {
		t.Fatalf("quiet hours = %+v", reloaded.QuietHours)
	}
	// untouched fields keep their values
	if reloaded.InactivityThresholdHours != models.DefaultInactivityThresholdHours {
		t.Fatalf("threshold = %d", reloaded.InactivityThresholdHours)
	}
}

func TestPreferenceUpdateValidation(t *testing.T) {
	bad := "Mars/Olympus_Mons"
	negative := -5
	zero := 0

	tests := []struct {
		name string
		req  models.UpdatePreferenceRequest
	}{
		{"unknown timezone", models.UpdatePreferenceRequest{Timezone: &bad}},
		{"negative lead", models.UpdatePreferenceRequest{DefaultLeadMinutes: &negative}},
		{"zero threshold", models.UpdatePreferenceRequest{InactivityThresholdHours: &zero}},
		{"zero lookback", models.UpdatePreferenceRequest{BehaviourLookbackDays: &zero}},
		{"quiet hour out of range", models.UpdatePreferenceRequest{QuietHours: &models.QuietHours{StartHour: 24, EndHour: 7}}},
		{"weekday out of range", models.UpdatePreferenceRequest{PreferredWeekdays: []int{1, 7}}},
		{"no snooze options", models.UpdatePreferenceRequest{SnoozeDurationsMinutes: []int{}}},
		{"zero snooze", models.UpdatePreferenceRequest{SnoozeDurationsMinutes: []int{0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			db := testutil.DB(t)
			svc := NewPreferenceService(db)

			if _, err := svc.Update(ctx, "tenant-1", tt.req); !errors.Is(err, ErrInvalidPreference) {
				t.Fatalf("err = %v, want ErrInvalidPreference", err)
			}
			pref, err := svc.Get(ctx, "tenant-1")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if pref.Timezone != models.DefaultTimezone || pref.DefaultLeadMinutes != models.DefaultLeadMinutes {
				t.Fatalf("rejected update was stored: %+v", pref)
			}
		})
	}
}

func TestSubscriptionLifecycle(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	svc := NewSubscriptionService(db, testutil.Logger(t))

	req := models.RegisterPushSubscriptionRequest{
		Endpoint: "https://push.example.com/device-1",
		Keys:     models.PushSubscriptionKeys{P256dh: "key-1", Auth: "secret-1"},
	}
	if _, err := svc.Register(ctx, "tenant-1", req, "Firefox"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	// the same endpoint re-registered by another tenant moves over
	req.Keys.P256dh = "key-2"
	sub, err := svc.Register(ctx, "tenant-2", req, "Firefox")
	if err != nil {
		t.Fatalf("re-Register: %v", err)
	}
	if sub.TenantID != "tenant-2" || sub.P256dh != "key-2" {
		t.Fatalf("subscription = %+v", sub)
	}
	if subs, _ := svc.List(ctx, "tenant-1"); len(subs) != 0 {
		t.Fatalf("tenant-1 still has %d subscriptions", len(subs))
	}

	if err := svc.Unregister(ctx, "tenant-1", req.Endpoint); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign Unregister err = %v, want ErrNotFound", err)
	}
	if err := svc.Unregister(ctx, "tenant-2", req.Endpoint); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if err := svc.Unregister(ctx, "tenant-2", req.Endpoint); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Unregister err = %v, want ErrNotFound", err)
	}

	if _, err := svc.Register(ctx, "tenant-1", models.RegisterPushSubscriptionRequest{Endpoint: "https://push.example.com/x"}, ""); !errors.Is(err, ErrInvalidSubscription) {
		t.Fatalf("keyless Register err = %v, want ErrInvalidSubscription", err)
	}
}
