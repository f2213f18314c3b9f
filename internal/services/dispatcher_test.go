package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"nudge/internal/models"
	"nudge/internal/testutil"

	"gorm.io/gorm"
)

type fakePusher struct {
	mu       sync.Mutex
	failures map[string]error
	sent     map[string][]byte
}

func newFakePusher() *fakePusher {
	return &fakePusher{failures: map[string]error{}, sent: map[string][]byte{}}
}

func (p *fakePusher) Push(_ context.Context, sub models.PushSubscription, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failures[sub.Endpoint]; err != nil {
		return err
	}
	p.sent[sub.Endpoint] = payload
	return nil
}

func reloadReminder(t *testing.T, db *gorm.DB, id string) *models.Reminder {
	t.Helper()
	r, err := newStore(db).reminders.GetByID(context.Background(), "", id)
	if err != nil {
		t.Fatalf("reload reminder: %v", err)
	}
	return r
}

func TestDispatchWithoutSubscriptionsStillMarksSent(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	now := mustTime(t, "2025-03-08T18:02:00Z")
	r := testutil.SeedReminder(t, ctx, db, "tenant-1", models.StatusScheduled, now.Add(-2*time.Minute))

	d := NewDispatcher(db, newFakePusher(), testutil.Logger(t), DispatcherOptions{Clock: testutil.FixedClock(now)})
	stats := d.Dispatch(ctx)
	if stats.Sent != 1 || stats.Outcomes[models.DeliveryNoSubscriptions] != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	got := reloadReminder(t, db, r.ID)
	if got.Status != models.StatusSent {
		t.Fatalf("status = %s, want sent", got.Status)
	}
	if got.SentAt == nil || !got.SentAt.Equal(now) {
		t.Fatalf("sent_at = %v, want %s", got.SentAt, now)
	}
	if got.DeliveryOutcome != models.DeliveryNoSubscriptions {
		t.Fatalf("delivery outcome = %q", got.DeliveryOutcome)
	}
	if len(got.Interactions) != 1 || got.Interactions[0].Action != models.ActionSent {
		t.Fatalf("interactions = %+v, want one sent entry", got.Interactions)
	}
}

func TestDispatchFansOutAndForgetsExpiredSubscriptions(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	now := mustTime(t, "2025-03-08T18:02:00Z")
	r := testutil.SeedReminder(t, ctx, db, "tenant-1", models.StatusScheduled, now.Add(-time.Minute))
	testutil.SeedSubscription(t, ctx, db, "tenant-1", "https://push.example.com/ok")
	testutil.SeedSubscription(t, ctx, db, "tenant-1", "https://push.example.com/gone")
	testutil.SeedSubscription(t, ctx, db, "tenant-1", "https://push.example.com/flaky")

	pusher := newFakePusher()
	pusher.failures["https://push.example.com/gone"] = fmt.Errorf("%w: 410", ErrSubscriptionGone)
	pusher.failures["https://push.example.com/flaky"] = fmt.Errorf("%w: 503", ErrTransport)

	d := NewDispatcher(db, pusher, testutil.Logger(t), DispatcherOptions{Clock: testutil.FixedClock(now)})
	stats := d.Dispatch(ctx)
	if stats.Outcomes[models.DeliveryPartial] != 1 {
		t.Fatalf("stats = %+v, want one partial delivery", stats)
	}

	got := reloadReminder(t, db, r.ID)
	if got.Status != models.StatusSent || got.DeliveryOutcome != models.DeliveryPartial {
		t.Fatalf("status=%s outcome=%s", got.Status, got.DeliveryOutcome)
	}

	subs, err := newStore(db).subscriptions.ListByTenant(ctx, "tenant-1")
	if err != nil {
		t.Fatalf("ListByTenant: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("subscriptions = %d, want the expired one removed", len(subs))
	}
	for _, s := range subs {
		if s.Endpoint == "https://push.example.com/gone" {
			t.Fatalf("expired subscription still stored")
		}
	}

	var payload PushPayload
	if err := json.Unmarshal(pusher.sent["https://push.example.com/ok"], &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Data.ReminderID != r.ID || payload.Title != r.Title {
		t.Fatalf("payload = %+v", payload)
	}
	if len(payload.Data.SnoozeOptions) != 3 || payload.Data.SnoozeOptions[0] != 10 {
		t.Fatalf("snooze options = %v", payload.Data.SnoozeOptions)
	}
}

func TestDispatchDegradedOutcomes(t *testing.T) {
	now := mustTime(t, "2025-03-08T18:02:00Z")

	tests := []struct {
		name    string
		pusher  Pusher
		disable bool
		want    models.DeliveryOutcome
	}{
		{"no transport", nil, false, models.DeliveryTransportUnconfigured},
		{"push disabled by tenant", newFakePusher(), true, models.DeliveryPushDisabled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			db := testutil.DB(t)
			pref := models.DefaultPreference("tenant-1")
			pref.PushEnabled = !tt.disable
			testutil.SeedPreference(t, ctx, db, pref)
			testutil.SeedSubscription(t, ctx, db, "tenant-1", "https://push.example.com/ok")
			r := testutil.SeedReminder(t, ctx, db, "tenant-1", models.StatusQueued, now)

			NewDispatcher(db, tt.pusher, testutil.Logger(t), DispatcherOptions{Clock: testutil.FixedClock(now)}).Dispatch(ctx)

			got := reloadReminder(t, db, r.ID)
			if got.Status != models.StatusSent || got.DeliveryOutcome != tt.want {
				t.Fatalf("status=%s outcome=%s, want sent/%s", got.Status, got.DeliveryOutcome, tt.want)
			}
		})
	}
}

func TestDispatchSelectsOnlyTheWindow(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	now := mustTime(t, "2025-03-08T18:00:00Z")

	due := testutil.SeedReminder(t, ctx, db, "tenant-1", models.StatusSnoozed, now.Add(-4*time.Minute))
	early := testutil.SeedReminder(t, ctx, db, "tenant-1", models.StatusScheduled, now.Add(time.Minute))
	missed := testutil.SeedReminder(t, ctx, db, "tenant-1", models.StatusScheduled, now.Add(-10*time.Minute))
	closed := testutil.SeedReminder(t, ctx, db, "tenant-1", models.StatusDismissed, now.Add(-time.Minute))

	stats := NewDispatcher(db, newFakePusher(), testutil.Logger(t), DispatcherOptions{Clock: testutil.FixedClock(now)}).Dispatch(ctx)
	if stats.Selected != 1 || stats.Sent != 1 {
		t.Fatalf("stats = %+v, want exactly one dispatched", stats)
	}

	if got := reloadReminder(t, db, due.ID); got.Status != models.StatusSent {
		t.Fatalf("due reminder status = %s", got.Status)
	}
	for _, r := range []*models.Reminder{early, missed, closed} {
		if got := reloadReminder(t, db, r.ID); got.Status != r.Status {
			t.Fatalf("reminder at %s changed to %s", r.ScheduledFor, got.Status)
		}
	}
}
