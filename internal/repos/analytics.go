package repos

import (
	"context"
	"errors"
	"time"

	"nudge/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AnalyticsRepo persists the learned per-tenant timing model
type AnalyticsRepo struct {
	db *gorm.DB
}

func NewAnalyticsRepo(db *gorm.DB) *AnalyticsRepo {
	return &AnalyticsRepo{db: db}
}

// Get returns the tenant's analytics or ErrNotFound
func (r *AnalyticsRepo) Get(ctx context.Context, tenantID string) (*models.ReminderAnalytics, error) {
	var a models.ReminderAnalytics
	err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Upsert writes the whole model keyed by tenant
func (r *AnalyticsRepo) Upsert(ctx context.Context, a *models.ReminderAnalytics) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"preferred_hour_of_day",
			"preferred_day_of_week",
			"average_completion_lead_hours",
			"average_inactivity_hours",
			"sample_size",
			"last_computed_at",
		}),
	}).Create(a).Error
}

// ListComputedSince returns analytics rows refreshed at or after since
func (r *AnalyticsRepo) ListComputedSince(ctx context.Context, since time.Time, limit int) ([]models.ReminderAnalytics, error) {
	var rows []models.ReminderAnalytics
	err := r.db.WithContext(ctx).
		Where("last_computed_at >= ?", since.UTC()).
		Order("last_computed_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
