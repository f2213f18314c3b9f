package services

import (
	"context"
	"errors"
	"math"
	"time"

	"nudge/internal/models"

	"gorm.io/gorm"
)

// SmoothingFactor weights the newest observation in the moving averages
const SmoothingFactor = 0.35

// minCompletionLeadHours keeps the learned lead from collapsing to zero
const minCompletionLeadHours = 1.0

// ApplyInteraction folds one interaction into a tenant's analytics. actedAt
// and scheduledFor are read in loc. The input is not modified.
func ApplyInteraction(a models.ReminderAnalytics, action models.InteractionAction, actedAt, scheduledFor time.Time, loc *time.Location, now time.Time) models.ReminderAnalytics {
	if loc == nil {
		loc = time.UTC
	}
	acted := actedAt.In(loc)

	hour := SmoothingFactor*float64(acted.Hour()) + (1-SmoothingFactor)*float64(a.PreferredHourOfDay)
	a.PreferredHourOfDay = clampHour(int(math.Round(hour)))

	if action == models.ActionCompleted {
		lead := math.Abs(actedAt.Sub(scheduledFor).Hours())
		avg := SmoothingFactor*lead + (1-SmoothingFactor)*a.AverageCompletionLeadHours
		a.AverageCompletionLeadHours = math.Max(minCompletionLeadHours, avg)
	}

	a.PreferredDayOfWeek = int(scheduledFor.In(loc).Weekday())
	a.SampleSize++
	a.LastComputedAt = now.UTC()
	return a
}

// AnalyticsService exposes the learned timing of a tenant
type AnalyticsService struct {
	store *store
}

func NewAnalyticsService(db *gorm.DB) *AnalyticsService {
	return &AnalyticsService{store: newStore(db)}
}

// Snapshot returns the tenant's analytics, or the defaults when nothing has
// been learned yet
func (s *AnalyticsService) Snapshot(ctx context.Context, tenantID string) (*models.ReminderAnalytics, error) {
	a, err := s.store.analytics.Get(ctx, tenantID)
	if errors.Is(err, ErrNotFound) {
		def := models.NewReminderAnalytics(tenantID)
		return &def, nil
	}
	return a, err
}

// updateAnalytics applies one interaction inside the caller's transaction
func updateAnalytics(ctx context.Context, tx *store, r *models.Reminder, action models.InteractionAction, actedAt time.Time, now time.Time) error {
	pref, err := tx.preferences.GetOrCreate(ctx, r.TenantID)
	if err != nil {
		return err
	}
	current, err := tx.analytics.Get(ctx, r.TenantID)
	if errors.Is(err, ErrNotFound) {
		def := models.NewReminderAnalytics(r.TenantID)
		current = &def
	} else if err != nil {
		return err
	}
	next := ApplyInteraction(*current, action, actedAt, r.ScheduledFor, pref.Location(), now)
	return tx.analytics.Upsert(ctx, &next)
}
