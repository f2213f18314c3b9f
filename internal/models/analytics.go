package models

import "time"

// Analytics defaults used until a tenant has interaction history
const (
	DefaultPreferredHour              = 18
	DefaultAverageCompletionLeadHours = 2.0
)

// ReminderAnalytics is the learned timing model of one tenant
type ReminderAnalytics struct {
	TenantID                   string    `gorm:"primaryKey;size:64" json:"tenant_id"`
	PreferredHourOfDay         int       `gorm:"not null" json:"preferred_hour_of_day"`
	PreferredDayOfWeek         int       `gorm:"not null" json:"preferred_day_of_week"`
	AverageCompletionLeadHours float64   `gorm:"not null" json:"average_completion_lead_hours"`
	AverageInactivityHours     float64   `gorm:"not null" json:"average_inactivity_hours"`
	SampleSize                 int       `gorm:"not null" json:"sample_size"`
	LastComputedAt             time.Time `gorm:"not null;index" json:"last_computed_at"`
}

// NewReminderAnalytics returns the starting model for a tenant
func NewReminderAnalytics(tenantID string) ReminderAnalytics {
	return ReminderAnalytics{
		TenantID:                   tenantID,
		PreferredHourOfDay:         DefaultPreferredHour,
		AverageCompletionLeadHours: DefaultAverageCompletionLeadHours,
	}
}

// TableName specifies the table name for the ReminderAnalytics model
func (ReminderAnalytics) TableName() string {
	return "reminder_analytics"
}
