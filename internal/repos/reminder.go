package repos

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nudge/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when a looked-up row does not exist
var ErrNotFound = errors.New("not found")

// ReminderRepo persists reminders and their interaction log
type ReminderRepo struct {
	db *gorm.DB
}

func NewReminderRepo(db *gorm.DB) *ReminderRepo {
	return &ReminderRepo{db: db}
}

// UpsertLive inserts the candidate unless a live reminder with the same dedup
// key exists, in which case only its scheduled_for is moved (and only while it
// is still waiting for dispatch). The conflict is
// resolved by the partial unique index, so concurrent ticks cannot create
// duplicates. It returns the live row and whether it was newly created.
func (r *ReminderRepo) UpsertLive(ctx context.Context, candidate *models.Reminder) (*models.Reminder, bool, error) {
	var live models.Reminder
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}, {Name: "type"}, {Name: "foreign_id"}},
			TargetWhere: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: models.LiveStatusPredicate},
			}},
			DoUpdates: clause.AssignmentColumns([]string{"scheduled_for", "updated_at"}),
			// delivered or snoozed reminders keep their time
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "reminder.status IN ('scheduled','queued')"},
			}},
		}).Create(candidate).Error
		if err != nil {
			return fmt.Errorf("upsert reminder: %w", err)
		}

		return tx.
			Where("tenant_id = ? AND type = ? AND foreign_id = ?", candidate.TenantID, candidate.Type, candidate.ForeignID).
			Where(models.LiveStatusPredicate).
			First(&live).Error
	})
	if err != nil {
		return nil, false, err
	}
	return &live, live.ID == candidate.ID, nil
}

// FindLiveByKey returns the live reminder for a dedup key
func (r *ReminderRepo) FindLiveByKey(ctx context.Context, key models.DedupKey) (*models.Reminder, error) {
	var reminder models.Reminder
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND type = ? AND foreign_id = ?", key.TenantID, key.Type, key.ForeignID).
		Where(models.LiveStatusPredicate).
		First(&reminder).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &reminder, nil
}

// CountLiveByKey is used by tests and diagnostics to check the dedup invariant
func (r *ReminderRepo) CountLiveByKey(ctx context.Context, key models.DedupKey) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Reminder{}).
		Where("tenant_id = ? AND type = ? AND foreign_id = ?", key.TenantID, key.Type, key.ForeignID).
		Where(models.LiveStatusPredicate).
		Count(&count).Error
	return count, err
}

// GetByID loads a reminder with its interactions in recorded order. An empty
// tenantID skips tenant scoping.
func (r *ReminderRepo) GetByID(ctx context.Context, tenantID, id string) (*models.Reminder, error) {
	q := r.db.WithContext(ctx).
		Preload("Interactions", func(db *gorm.DB) *gorm.DB {
			return db.Order("acted_at ASC, id ASC")
		}).
		Where("id = ?", id)
	if tenantID != "" {
		q = q.Where("tenant_id = ?", tenantID)
	}

	var reminder models.Reminder
	if err := q.First(&reminder).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &reminder, nil
}

// ListLiveInWindow lists a tenant's live reminders scheduled in [from, to]
func (r *ReminderRepo) ListLiveInWindow(ctx context.Context, tenantID string, from, to time.Time) ([]models.Reminder, error) {
	var reminders []models.Reminder
	err := r.db.WithContext(ctx).
		Preload("Interactions", func(db *gorm.DB) *gorm.DB {
			return db.Order("acted_at ASC, id ASC")
		}).
		Where("status IN ?", models.LiveStatuses).
		Where("tenant_id = ? AND scheduled_for >= ? AND scheduled_for <= ?", tenantID, from.UTC(), to.UTC()).
		Order("scheduled_for ASC").
		Find(&reminders).Error
	return reminders, err
}

// ListDispatchable selects reminders waiting for delivery whose scheduled
// time falls in [from, to], oldest first.
func (r *ReminderRepo) ListDispatchable(ctx context.Context, from, to time.Time, limit int) ([]models.Reminder, error) {
	var reminders []models.Reminder
	err := r.db.WithContext(ctx).
		Where("status IN ?", models.DispatchableStatuses).
		Where("scheduled_for >= ? AND scheduled_for <= ?", from.UTC(), to.UTC()).
		Order("scheduled_for ASC").
		Limit(limit).
		Find(&reminders).Error
	return reminders, err
}

// ListByStatusBefore selects reminders in one of the statuses scheduled before cutoff
func (r *ReminderRepo) ListByStatusBefore(ctx context.Context, statuses []models.ReminderStatus, cutoff time.Time, limit int) ([]models.Reminder, error) {
	var reminders []models.Reminder
	err := r.db.WithContext(ctx).
		Where("status IN ?", statuses).
		Where("scheduled_for < ?", cutoff.UTC()).
		Order("scheduled_for ASC").
		Limit(limit).
		Find(&reminders).Error
	return reminders, err
}

// ListLiveForCompletedAssignments finds live deadline reminders whose
// assignment has been completed since they were scheduled.
func (r *ReminderRepo) ListLiveForCompletedAssignments(ctx context.Context, limit int) ([]models.Reminder, error) {
	var reminders []models.Reminder
	err := r.db.WithContext(ctx).
		Select("reminder.*").
		Joins("JOIN assignment ON assignment.id = reminder.foreign_id AND assignment.tenant_id = reminder.tenant_id").
		Where("reminder.type = ?", models.ReminderDeadline).
		Where("reminder.status IN ?", models.LiveStatuses).
		Where("assignment.completion_state = ?", models.AssignmentCompleted).
		Order("reminder.scheduled_for ASC").
		Limit(limit).
		Find(&reminders).Error
	return reminders, err
}

// Transition moves a reminder from one of the expected statuses to a new
// state. It reports false when the row was concurrently moved elsewhere.
func (r *ReminderRepo) Transition(ctx context.Context, id string, from []models.ReminderStatus, updates map[string]interface{}) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Reminder{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// AppendInteraction adds one entry to a reminder's audit log
func (r *ReminderRepo) AppendInteraction(ctx context.Context, reminderID string, action models.InteractionAction, at time.Time, metadata datatypes.JSON) (*models.ReminderInteraction, error) {
	entry := &models.ReminderInteraction{
		ReminderID: reminderID,
		Action:     action,
		ActedAt:    at.UTC(),
		Metadata:   metadata,
	}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, fmt.Errorf("append %s interaction: %w", action, err)
	}
	return entry, nil
}
