package repos

import (
	"context"
	"errors"

	"nudge/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PreferenceRepo persists per-tenant reminder policy
type PreferenceRepo struct {
	db *gorm.DB
}

func NewPreferenceRepo(db *gorm.DB) *PreferenceRepo {
	return &PreferenceRepo{db: db}
}

// GetOrCreate returns the tenant's preference, creating it with defaults on
// first read. Concurrent first reads converge on the same row.
func (r *PreferenceRepo) GetOrCreate(ctx context.Context, tenantID string) (*models.ReminderPreference, error) {
	var pref models.ReminderPreference
	err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&pref).Error
	if err == nil {
		return &pref, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	pref = models.DefaultPreference(tenantID)
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&pref).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&pref).Error; err != nil {
		return nil, err
	}
	return &pref, nil
}

// Save writes every column of the preference
func (r *PreferenceRepo) Save(ctx context.Context, pref *models.ReminderPreference) error {
	return r.db.WithContext(ctx).Save(pref).Error
}
