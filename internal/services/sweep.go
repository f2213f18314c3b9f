package services

import (
	"context"
	"time"

	"nudge/internal/logger"
	"nudge/internal/models"

	"gorm.io/gorm"
)

// Sweep reasons recorded on the closing interaction
const (
	SweepExpired       = "expired"
	SweepStale         = "stale"
	SweepAutoCompleted = "assignment_completed"
)

// SweeperOptions tunes retention
type SweeperOptions struct {
	// RetentionAfter closes sent reminders nobody acted on
	RetentionAfter time.Duration
	// StaleAfter closes reminders that never got dispatched
	StaleAfter time.Duration
	BatchSize  int
	Clock      Clock
}

// Sweeper closes reminders that will never be acted on, freeing their dedup
// key for a fresh reminder
type Sweeper struct {
	store     *store
	log       *logger.Logger
	now       Clock
	retention time.Duration
	stale     time.Duration
	batchSize int
}

func NewSweeper(db *gorm.DB, log *logger.Logger, opts SweeperOptions) *Sweeper {
	if opts.RetentionAfter <= 0 {
		opts.RetentionAfter = 24 * time.Hour
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 48 * time.Hour
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.Clock == nil {
		opts.Clock = systemClock
	}
	return &Sweeper{
		store:     newStore(db),
		log:       log.With("component", "sweeper"),
		now:       opts.Clock,
		retention: opts.RetentionAfter,
		stale:     opts.StaleAfter,
		batchSize: opts.BatchSize,
	}
}

// SweepStats counts closed reminders by reason
type SweepStats struct {
	Expired       int `json:"expired"`
	Stale         int `json:"stale"`
	AutoCompleted int `json:"auto_completed"`
	Failed        int `json:"failed"`
}

func (st *SweepStats) tally(counter *int, r closeResult) {
	switch r {
	case closeDone:
		*counter++
	case closeFailed:
		st.Failed++
	}
}

type closeResult int

const (
	closeDone closeResult = iota
	closeRaced
	closeFailed
)

// Sweep runs every retention rule once
func (s *Sweeper) Sweep(ctx context.Context) SweepStats {
	var stats SweepStats
	now := s.now()

	expired, err := s.store.reminders.ListByStatusBefore(ctx, []models.ReminderStatus{models.StatusSent}, now.Add(-s.retention), s.batchSize)
	if err != nil {
		s.log.Error("failed to select expired reminders", "error", err)
	}
	for i := range expired {
		stats.tally(&stats.Expired, s.close(ctx, &expired[i], models.StatusDismissed, models.ActionDismissed, SweepExpired, now))
	}

	stale, err := s.store.reminders.ListByStatusBefore(ctx, models.DispatchableStatuses, now.Add(-s.stale), s.batchSize)
	if err != nil {
		s.log.Error("failed to select stale reminders", "error", err)
	}
	for i := range stale {
		stats.tally(&stats.Stale, s.close(ctx, &stale[i], models.StatusDismissed, models.ActionDismissed, SweepStale, now))
	}

	done, err := s.store.reminders.ListLiveForCompletedAssignments(ctx, s.batchSize)
	if err != nil {
		s.log.Error("failed to select reminders of completed assignments", "error", err)
	}
	for i := range done {
		stats.tally(&stats.AutoCompleted, s.close(ctx, &done[i], models.StatusCompleted, models.ActionAutoCompleted, SweepAutoCompleted, now))
	}

	if stats != (SweepStats{}) {
		s.log.Info("retention sweep finished",
			"expired", stats.Expired,
			"stale", stats.Stale,
			"auto_completed", stats.AutoCompleted,
			"failed", stats.Failed,
		)
	}
	return stats
}

// close moves one reminder to a terminal status with an audit entry. A
// reminder that changed status since it was selected is left alone.
func (s *Sweeper) close(ctx context.Context, r *models.Reminder, to models.ReminderStatus, action models.InteractionAction, reason string, now time.Time) closeResult {
	updates := map[string]interface{}{"status": to, "updated_at": now}
	if to == models.StatusCompleted {
		updates["completion_logged_at"] = now
	}

	var moved bool
	err := s.store.transaction(ctx, func(tx *store) error {
		ok, err := tx.reminders.Transition(ctx, r.ID, []models.ReminderStatus{r.Status}, updates)
		if err != nil || !ok {
			return err
		}
		if _, err := tx.reminders.AppendInteraction(ctx, r.ID, action, now, jsonMetadata(map[string]interface{}{
			"reason": reason,
		})); err != nil {
			return err
		}
		moved = true
		return nil
	})
	if err != nil {
		s.log.Error("failed to close reminder", "reminder_id", r.ID, "reason", reason, "error", err)
		return closeFailed
	}
	if !moved {
		return closeRaced
	}
	RemindersSwept.WithLabelValues(reason).Inc()
	InteractionsRecorded.WithLabelValues(string(action)).Inc()
	return closeDone
}
