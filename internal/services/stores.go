package services

import (
	"context"
	"time"

	"nudge/internal/repos"

	"gorm.io/gorm"
)

// Clock returns the current time; tests substitute a fixed one
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

// store bundles the repositories of one unit of work. Every repository in it
// shares the same *gorm.DB, which is a transaction when built inside one.
type store struct {
	db            *gorm.DB
	reminders     *repos.ReminderRepo
	preferences   *repos.PreferenceRepo
	analytics     *repos.AnalyticsRepo
	subscriptions *repos.PushSubscriptionRepo
	assignments   *repos.AssignmentRepo
	accounts      *repos.AccountRepo
}

func newStore(db *gorm.DB) *store {
	return &store{
		db:            db,
		reminders:     repos.NewReminderRepo(db),
		preferences:   repos.NewPreferenceRepo(db),
		analytics:     repos.NewAnalyticsRepo(db),
		subscriptions: repos.NewPushSubscriptionRepo(db),
		assignments:   repos.NewAssignmentRepo(db),
		accounts:      repos.NewAccountRepo(db),
	}
}

// transaction runs fn with a store bound to a transaction. Nested calls use
// savepoints, so an inner failure rolls back only the inner writes.
func (s *store) transaction(ctx context.Context, fn func(tx *store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(newStore(tx))
	})
}
