package models

import "time"

// Account is the read model of a tenant account owned by the accounts
// subsystem. The scheduler only reads it.
type Account struct {
	ID             string    `gorm:"primaryKey;size:64" json:"id"`
	LastLoginAt    time.Time `gorm:"not null;index" json:"last_login_at"`
	ReminderOptOut bool      `gorm:"not null" json:"reminder_opt_out"`
	CreatedAt      time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null" json:"updated_at"`
}

// TableName specifies the table name for the Account model
func (Account) TableName() string {
	return "account"
}

// CompletionState of an assignment as tracked by the coursework subsystem
type CompletionState string

const (
	AssignmentPending    CompletionState = "pending"
	AssignmentInProgress CompletionState = "in_progress"
	AssignmentCompleted  CompletionState = "completed"
)

// Assignment is the read model of a coursework assignment
type Assignment struct {
	ID              string          `gorm:"primaryKey;size:64" json:"id"`
	TenantID        string          `gorm:"size:64;not null;index" json:"tenant_id"`
	Title           string          `gorm:"size:255;not null" json:"title"`
	DueDate         time.Time       `gorm:"not null;index" json:"due_date"`
	CompletionState CompletionState `gorm:"size:20;not null" json:"completion_state"`
	CreatedAt       time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"not null" json:"updated_at"`
}

// IsComplete reports whether the assignment needs no more reminders
func (a *Assignment) IsComplete() bool {
	return a.CompletionState == AssignmentCompleted
}

// TableName specifies the table name for the Assignment model
func (Assignment) TableName() string {
	return "assignment"
}
