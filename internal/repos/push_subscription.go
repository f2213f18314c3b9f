package repos

import (
	"context"

	"nudge/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PushSubscriptionRepo persists device push endpoints
type PushSubscriptionRepo struct {
	db *gorm.DB
}

func NewPushSubscriptionRepo(db *gorm.DB) *PushSubscriptionRepo {
	return &PushSubscriptionRepo{db: db}
}

// Upsert registers a subscription; an endpoint already known is re-keyed and
// moved to the registering tenant.
func (r *PushSubscriptionRepo) Upsert(ctx context.Context, sub *models.PushSubscription) (*models.PushSubscription, error) {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"tenant_id", "p256dh", "auth", "user_agent", "updated_at"}),
	}).Create(sub).Error
	if err != nil {
		return nil, err
	}

	var stored models.PushSubscription
	if err := r.db.WithContext(ctx).Where("endpoint = ?", sub.Endpoint).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// DeleteByEndpoint removes a subscription. A non-empty tenantID restricts the
// delete to that tenant's subscriptions.
func (r *PushSubscriptionRepo) DeleteByEndpoint(ctx context.Context, endpoint, tenantID string) (int64, error) {
	q := r.db.WithContext(ctx).Where("endpoint = ?", endpoint)
	if tenantID != "" {
		q = q.Where("tenant_id = ?", tenantID)
	}
	res := q.Delete(&models.PushSubscription{})
	return res.RowsAffected, res.Error
}

// ListByTenant returns every device subscription of a tenant
func (r *PushSubscriptionRepo) ListByTenant(ctx context.Context, tenantID string) ([]models.PushSubscription, error) {
	var subs []models.PushSubscription
	err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Order("created_at ASC").Find(&subs).Error
	return subs, err
}
