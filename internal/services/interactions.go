package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"nudge/internal/auth"
	"nudge/internal/logger"
	"nudge/internal/models"

	"gorm.io/gorm"
)

// transitions lists the statuses reachable from each status. Terminal
// statuses have no entry.
var transitions = map[models.ReminderStatus][]models.ReminderStatus{
	models.StatusScheduled: {models.StatusSent, models.StatusSnoozed, models.StatusDismissed, models.StatusCompleted},
	models.StatusQueued:    {models.StatusSent, models.StatusSnoozed, models.StatusDismissed, models.StatusCompleted},
	models.StatusSent:      {models.StatusSent, models.StatusSnoozed, models.StatusDismissed, models.StatusCompleted},
	models.StatusSnoozed:   {models.StatusSent, models.StatusSnoozed, models.StatusDismissed, models.StatusCompleted},
}

// CanTransition reports whether a reminder may move from one status to another
func CanTransition(from, to models.ReminderStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// targetStatus maps a client action to the status it produces
func targetStatus(a models.InteractionAction) models.ReminderStatus {
	switch a {
	case models.ActionSnoozed:
		return models.StatusSnoozed
	case models.ActionDismissed:
		return models.StatusDismissed
	case models.ActionCompleted:
		return models.StatusCompleted
	default:
		return models.StatusSent
	}
}

// InteractionService applies client actions to reminders and feeds the
// analytics model
type InteractionService struct {
	store  *store
	cipher *auth.MetadataCipher
	log    *logger.Logger
	now    Clock
}

func NewInteractionService(db *gorm.DB, cipher *auth.MetadataCipher, log *logger.Logger, clock Clock) *InteractionService {
	if clock == nil {
		clock = systemClock
	}
	return &InteractionService{
		store:  newStore(db),
		cipher: cipher,
		log:    log.With("component", "interactions"),
		now:    clock,
	}
}

// Acknowledge records that the reminder reached a device
func (s *InteractionService) Acknowledge(ctx context.Context, tenantID, reminderID string) (*ReminderView, error) {
	return s.RecordInteraction(ctx, tenantID, reminderID, string(models.ActionDelivered), nil)
}

// RecordInteraction validates and applies one client action. The status
// change, the audit entry and the analytics update commit together; an
// analytics failure is rolled back on its own and does not fail the call.
func (s *InteractionService) RecordInteraction(ctx context.Context, tenantID, reminderID, rawAction string, metadata map[string]interface{}) (*ReminderView, error) {
	action, ok := models.ParseClientAction(rawAction)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, rawAction)
	}
	now := s.now()

	err := s.store.transaction(ctx, func(tx *store) error {
		r, err := tx.reminders.GetByID(ctx, tenantID, reminderID)
		if err != nil {
			return err
		}

		entry := copyMetadata(metadata)
		var updates map[string]interface{}

		if r.Status.IsTerminal() {
			if action != models.ActionDelivered {
				return fmt.Errorf("%w: %s on %s reminder", ErrInvalidTransition, action, r.Status)
			}
			// a late device ack still counts as delivery
			s.log.Info("delivery acknowledged on closed reminder", "reminder_id", r.ID, "status", r.Status)
			updates = map[string]interface{}{"delivered_at": now, "updated_at": now}
		} else {
			target := targetStatus(action)
			if !CanTransition(r.Status, target) {
				return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, target)
			}
			updates = map[string]interface{}{"status": target, "updated_at": now}

			switch action {
			case models.ActionDelivered:
				updates["delivered_at"] = now
				if r.SentAt == nil {
					updates["sent_at"] = now
				}
			case models.ActionSnoozed:
				pref, err := tx.preferences.GetOrCreate(ctx, tenantID)
				if err != nil {
					return err
				}
				until, err := snoozeTarget(metadata, pref, now)
				if err != nil {
					return err
				}
				updates["snoozed_until"] = until
				updates["scheduled_for"] = until
				entry["snoozedUntil"] = until.Format(time.RFC3339)
			case models.ActionCompleted:
				updates["completion_logged_at"] = now
			}
		}

		moved, err := tx.reminders.Transition(ctx, r.ID, []models.ReminderStatus{r.Status}, updates)
		if err != nil {
			return err
		}
		if !moved {
			return ErrConcurrentUpdate
		}
		if _, err := tx.reminders.AppendInteraction(ctx, r.ID, action, now, jsonMetadata(entry)); err != nil {
			return err
		}

		if err := tx.transaction(ctx, func(sp *store) error {
			return updateAnalytics(ctx, sp, r, action, now, now)
		}); err != nil {
			AnalyticsFailures.Inc()
			s.log.Warn("analytics update failed", "tenant_id", tenantID, "reminder_id", r.ID, "error", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	InteractionsRecorded.WithLabelValues(string(action)).Inc()

	r, err := s.store.reminders.GetByID(ctx, tenantID, reminderID)
	if err != nil {
		return nil, err
	}
	return newReminderView(s.cipher, s.log, r), nil
}

// maxSnoozeMinutes caps a client supplied snooze offset at one day
const maxSnoozeMinutes = 24 * 60

// snoozeTarget resolves when a snoozed reminder should fire again: an explicit
// snoozedUntil timestamp, else a minutes offset, else the tenant's first
// snooze option.
func snoozeTarget(metadata map[string]interface{}, pref *models.ReminderPreference, now time.Time) (time.Time, error) {
	var until time.Time

	if raw, ok := metadata["snoozedUntil"]; ok {
		str, _ := raw.(string)
		t, err := time.Parse(time.RFC3339, str)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: snoozedUntil must be an RFC3339 timestamp", ErrInvalidSnooze)
		}
		until = t.UTC()
	} else {
		minutes := pref.SnoozeOptions()[0]
		if raw, ok := metadata["minutes"]; ok {
			m, ok := asNumber(raw)
			if !ok || m <= 0 || m != math.Trunc(m) {
				return time.Time{}, fmt.Errorf("%w: minutes must be a positive whole number", ErrInvalidSnooze)
			}
			if m > maxSnoozeMinutes {
				return time.Time{}, fmt.Errorf("%w: minutes must be at most %d", ErrInvalidSnooze, maxSnoozeMinutes)
			}
			minutes = int(m)
		}
		until = now.Add(time.Duration(minutes) * time.Minute).Truncate(time.Second)
	}

	if !until.After(now) {
		return time.Time{}, fmt.Errorf("%w: %s is not in the future", ErrInvalidSnooze, until.Format(time.RFC3339))
	}
	return until, nil
}

func asNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func copyMetadata(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}
