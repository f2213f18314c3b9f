package services

import (
	"context"
	"errors"
	"time"

	"nudge/internal/logger"
	"nudge/internal/models"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// DispatcherOptions tunes the dispatch window
type DispatcherOptions struct {
	Window      time.Duration
	BatchSize   int
	Concurrency int
	Clock       Clock
}

// Dispatcher pushes due reminders and marks them sent
type Dispatcher struct {
	store       *store
	pusher      Pusher
	log         *logger.Logger
	now         Clock
	window      time.Duration
	batchSize   int
	concurrency int
}

// NewDispatcher builds a dispatcher. A nil pusher means no transport is
// configured; reminders are still marked sent with that outcome recorded.
func NewDispatcher(db *gorm.DB, pusher Pusher, log *logger.Logger, opts DispatcherOptions) *Dispatcher {
	if opts.Window <= 0 {
		opts.Window = 5 * time.Minute
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	if opts.Clock == nil {
		opts.Clock = systemClock
	}
	return &Dispatcher{
		store:       newStore(db),
		pusher:      pusher,
		log:         log.With("component", "dispatcher"),
		now:         opts.Clock,
		window:      opts.Window,
		batchSize:   opts.BatchSize,
		concurrency: opts.Concurrency,
	}
}

// DispatchStats summarizes one dispatch pass
type DispatchStats struct {
	Selected int                            `json:"selected"`
	Sent     int                            `json:"sent"`
	Raced    int                            `json:"raced"`
	Failed   int                            `json:"failed"`
	Outcomes map[models.DeliveryOutcome]int `json:"outcomes"`
}

// Dispatch delivers every reminder due in [now-window, now]
func (d *Dispatcher) Dispatch(ctx context.Context) DispatchStats {
	stats := DispatchStats{Outcomes: make(map[models.DeliveryOutcome]int)}
	now := d.now()

	due, err := d.store.reminders.ListDispatchable(ctx, now.Add(-d.window), now, d.batchSize)
	if err != nil {
		d.log.Error("failed to select due reminders", "error", err)
		return stats
	}
	stats.Selected = len(due)

	prefs := make(map[string]*models.ReminderPreference)
	for i := range due {
		if ctx.Err() != nil {
			break
		}
		r := &due[i]

		pref, ok := prefs[r.TenantID]
		if !ok {
			pref, err = d.store.preferences.GetOrCreate(ctx, r.TenantID)
			if err != nil {
				d.log.Error("failed to load preferences", "tenant_id", r.TenantID, "reminder_id", r.ID, "error", err)
				stats.Failed++
				continue
			}
			prefs[r.TenantID] = pref
		}

		outcome, err := d.dispatchOne(ctx, r, pref)
		switch {
		case errors.Is(err, ErrConcurrentUpdate):
			stats.Raced++
		case err != nil:
			d.log.Error("failed to mark reminder sent", "reminder_id", r.ID, "error", err)
			stats.Failed++
		default:
			stats.Sent++
			stats.Outcomes[outcome]++
		}
	}
	return stats
}

// delivery is what the fan-out to a tenant's devices achieved
type delivery struct {
	outcome       models.DeliveryOutcome
	subscriptions int
	delivered     int
}

func (d *Dispatcher) dispatchOne(ctx context.Context, r *models.Reminder, pref *models.ReminderPreference) (models.DeliveryOutcome, error) {
	res := d.deliver(ctx, r, pref)
	now := d.now()

	err := d.store.transaction(ctx, func(tx *store) error {
		ok, err := tx.reminders.Transition(ctx, r.ID, models.DispatchableStatuses, map[string]interface{}{
			"status":           models.StatusSent,
			"sent_at":          now,
			"delivery_outcome": res.outcome,
			"updated_at":       now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return ErrConcurrentUpdate
		}
		_, err = tx.reminders.AppendInteraction(ctx, r.ID, models.ActionSent, now, jsonMetadata(map[string]interface{}{
			"delivery":      res.outcome,
			"subscriptions": res.subscriptions,
			"delivered":     res.delivered,
		}))
		return err
	})
	if err != nil {
		return res.outcome, err
	}

	RemindersDispatched.WithLabelValues(string(res.outcome)).Inc()
	InteractionsRecorded.WithLabelValues(string(models.ActionSent)).Inc()
	d.log.Info("reminder sent",
		"reminder_id", r.ID,
		"tenant_id", r.TenantID,
		"type", r.Type,
		"delivery", res.outcome,
		"delivered", res.delivered,
		"subscriptions", res.subscriptions,
	)
	return res.outcome, nil
}

// deliver pushes the reminder to every subscription of its tenant and waits
// for all sends to finish. Failures are counted, never returned.
func (d *Dispatcher) deliver(ctx context.Context, r *models.Reminder, pref *models.ReminderPreference) delivery {
	if d.pusher == nil {
		return delivery{outcome: models.DeliveryTransportUnconfigured}
	}
	if !pref.PushEnabled {
		return delivery{outcome: models.DeliveryPushDisabled}
	}

	subs, err := d.store.subscriptions.ListByTenant(ctx, r.TenantID)
	if err != nil {
		d.log.Error("failed to load push subscriptions", "tenant_id", r.TenantID, "error", err)
		return delivery{outcome: models.DeliveryTransportFailed}
	}
	if len(subs) == 0 {
		return delivery{outcome: models.DeliveryNoSubscriptions}
	}

	payload, err := BuildPushPayload(r, pref.SnoozeOptions())
	if err != nil {
		d.log.Error("failed to encode push payload", "reminder_id", r.ID, "error", err)
		return delivery{outcome: models.DeliveryTransportFailed, subscriptions: len(subs)}
	}

	results := make([]error, len(subs))
	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i := range subs {
		i := i
		g.Go(func() error {
			results[i] = d.pusher.Push(ctx, subs[i], payload)
			return nil
		})
	}
	_ = g.Wait()

	res := delivery{subscriptions: len(subs)}
	for i, err := range results {
		sub := subs[i]
		switch {
		case err == nil:
			res.delivered++
			PushSends.WithLabelValues("ok").Inc()
		case errors.Is(err, ErrSubscriptionGone):
			PushSends.WithLabelValues("gone").Inc()
			d.log.Info("removing expired push subscription", "tenant_id", sub.TenantID, "endpoint", sub.Endpoint)
			if _, derr := d.store.subscriptions.DeleteByEndpoint(ctx, sub.Endpoint, sub.TenantID); derr != nil {
				d.log.Warn("failed to remove expired push subscription", "endpoint", sub.Endpoint, "error", derr)
			}
		default:
			PushSends.WithLabelValues("failed").Inc()
			d.log.Warn("push send failed", "reminder_id", r.ID, "endpoint", sub.Endpoint, "error", err)
		}
	}

	switch {
	case res.delivered == len(subs):
		res.outcome = models.DeliveryPushed
	case res.delivered > 0:
		res.outcome = models.DeliveryPartial
	default:
		res.outcome = models.DeliveryTransportFailed
	}
	return res
}
