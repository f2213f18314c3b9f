package repos

import (
	"context"
	"time"

	"nudge/internal/models"

	"gorm.io/gorm"
)

// AssignmentRepo reads assignments owned by the coursework subsystem
type AssignmentRepo struct {
	db *gorm.DB
}

func NewAssignmentRepo(db *gorm.DB) *AssignmentRepo {
	return &AssignmentRepo{db: db}
}

// ListDueBetween returns incomplete assignments due in (from, to], soonest first
func (r *AssignmentRepo) ListDueBetween(ctx context.Context, from, to time.Time, limit int) ([]models.Assignment, error) {
	var assignments []models.Assignment
	err := r.db.WithContext(ctx).
		Where("due_date > ? AND due_date <= ?", from.UTC(), to.UTC()).
		Where("completion_state <> ?", models.AssignmentCompleted).
		Order("due_date ASC").
		Limit(limit).
		Find(&assignments).Error
	return assignments, err
}

// AccountRepo reads tenant accounts owned by the accounts subsystem
type AccountRepo struct {
	db *gorm.DB
}

func NewAccountRepo(db *gorm.DB) *AccountRepo {
	return &AccountRepo{db: db}
}

// ListReminderEligible returns accounts that have not opted out and logged in
// at or after since, most recently active first.
func (r *AccountRepo) ListReminderEligible(ctx context.Context, since time.Time, limit int) ([]models.Account, error) {
	var accounts []models.Account
	err := r.db.WithContext(ctx).
		Where("reminder_opt_out = ?", false).
		Where("last_login_at >= ?", since.UTC()).
		Order("last_login_at DESC").
		Limit(limit).
		Find(&accounts).Error
	return accounts, err
}
