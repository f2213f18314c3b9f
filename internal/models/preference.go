package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// IntList represents a list of ints that can be stored as JSON
type IntList []int

func (l IntList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]int(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *IntList) Scan(value interface{}) error {
	if value == nil {
		*l = IntList{}
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported type for IntList: %T", value)
	}
}

// Contains reports whether v is in the list
func (l IntList) Contains(v int) bool {
	for _, x := range l {
		if x == v {
			return true
		}
	}
	return false
}

// QuietHours is a time-of-day window during which reminders must not fire.
// StartHour == EndHour disables it.
type QuietHours struct {
	StartHour int `gorm:"column:quiet_start_hour;not null" json:"start_hour"`
	EndHour   int `gorm:"column:quiet_end_hour;not null" json:"end_hour"`
}

// Enabled reports whether the window is active
func (q QuietHours) Enabled() bool {
	return q.StartHour != q.EndHour
}

// Contains reports whether hour falls in [StartHour, EndHour), wrapping past midnight
func (q QuietHours) Contains(hour int) bool {
	if !q.Enabled() {
		return false
	}
	if q.StartHour < q.EndHour {
		return hour >= q.StartHour && hour < q.EndHour
	}
	return hour >= q.StartHour || hour < q.EndHour
}

// Preference defaults applied on lazy creation
const (
	DefaultTimezone                 = "UTC"
	DefaultLeadMinutes              = 120
	DefaultInactivityThresholdHours = 48
	DefaultBehaviourLookbackDays    = 14
	DefaultQuietStartHour           = 22
	DefaultQuietEndHour             = 7
)

// ReminderPreference owns all tunable reminder policy for a tenant
type ReminderPreference struct {
	TenantID                 string     `gorm:"primaryKey;size:64" json:"tenant_id"`
	Timezone                 string     `gorm:"size:64;not null" json:"timezone"`
	DefaultLeadMinutes       int        `gorm:"not null" json:"default_lead_minutes"`
	InactivityThresholdHours int        `gorm:"not null" json:"inactivity_threshold_hours"`
	BehaviourLookbackDays    int        `gorm:"not null" json:"behaviour_lookback_days"`
	QuietHours               QuietHours `gorm:"embedded" json:"quiet_hours"`
	PreferredWeekdays        IntList    `gorm:"type:text" json:"preferred_weekdays"`
	SnoozeDurationsMinutes   IntList    `gorm:"type:text" json:"snooze_durations_minutes"`
	SmartRemindersEnabled    bool       `gorm:"not null" json:"smart_reminders_enabled"`
	PushEnabled              bool       `gorm:"not null" json:"push_enabled"`
	CreatedAt                time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt                time.Time  `gorm:"not null" json:"updated_at"`
}

// DefaultPreference returns the preference a tenant gets before changing anything
func DefaultPreference(tenantID string) ReminderPreference {
	return ReminderPreference{
		TenantID:                 tenantID,
		Timezone:                 DefaultTimezone,
		DefaultLeadMinutes:       DefaultLeadMinutes,
		InactivityThresholdHours: DefaultInactivityThresholdHours,
		BehaviourLookbackDays:    DefaultBehaviourLookbackDays,
		QuietHours:               QuietHours{StartHour: DefaultQuietStartHour, EndHour: DefaultQuietEndHour},
		PreferredWeekdays:        IntList{0, 1, 2, 3, 4, 5, 6},
		SnoozeDurationsMinutes:   IntList{10, 30, 60},
		SmartRemindersEnabled:    true,
		PushEnabled:              true,
	}
}

// Location resolves the tenant timezone, falling back to UTC
func (p *ReminderPreference) Location() *time.Location {
	if p == nil || p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SnoozeOptions returns the snooze durations offered to clients
func (p *ReminderPreference) SnoozeOptions() []int {
	if p == nil || len(p.SnoozeDurationsMinutes) == 0 {
		return []int{10, 30, 60}
	}
	return []int(p.SnoozeDurationsMinutes)
}

// TableName specifies the table name for the ReminderPreference model
func (ReminderPreference) TableName() string {
	return "reminder_preference"
}

// UpdatePreferenceRequest is the allow-listed set of fields a tenant may change.
// Nil fields are left untouched.
type UpdatePreferenceRequest struct {
	Timezone                 *string     `json:"timezone"`
	DefaultLeadMinutes       *int        `json:"default_lead_minutes" binding:"omitempty,min=0,max=10080"`
	InactivityThresholdHours *int        `json:"inactivity_threshold_hours" binding:"omitempty,min=1,max=2160"`
	BehaviourLookbackDays    *int        `json:"behaviour_lookback_days" binding:"omitempty,min=1,max=365"`
	QuietHours               *QuietHours `json:"quiet_hours"`
	PreferredWeekdays        []int       `json:"preferred_weekdays" binding:"omitempty,dive,min=0,max=6"`
	SnoozeDurationsMinutes   []int       `json:"snooze_durations_minutes" binding:"omitempty,dive,min=1,max=1440"`
	SmartRemindersEnabled    *bool       `json:"smart_reminders_enabled"`
	PushEnabled              *bool       `json:"push_enabled"`
}
