package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ReminderType identifies which signal source produced a reminder
type ReminderType string

const (
	ReminderDeadline   ReminderType = "DEADLINE"
	ReminderInactivity ReminderType = "INACTIVITY"
	ReminderBehavioral ReminderType = "BEHAVIORAL"
)

// ReminderStatus is the lifecycle state of a reminder
type ReminderStatus string

const (
	StatusScheduled ReminderStatus = "scheduled"
	StatusQueued    ReminderStatus = "queued"
	StatusSent      ReminderStatus = "sent"
	StatusSnoozed   ReminderStatus = "snoozed"
	StatusDismissed ReminderStatus = "dismissed"
	StatusCompleted ReminderStatus = "completed"
)

// LiveStatuses are the non-terminal statuses; at most one reminder per dedup
// key may be in one of them.
var LiveStatuses = []ReminderStatus{StatusScheduled, StatusQueued, StatusSent, StatusSnoozed}

// DispatchableStatuses are the live statuses the dispatcher picks up.
var DispatchableStatuses = []ReminderStatus{StatusScheduled, StatusQueued, StatusSnoozed}

// LiveStatusPredicate is the SQL predicate backing the partial unique index
// on the dedup key. It must stay textually identical between the index and
// the upsert's conflict target.
const LiveStatusPredicate = "status IN ('scheduled','queued','sent','snoozed')"

// IsLive reports whether the status is non-terminal
func (s ReminderStatus) IsLive() bool {
	for _, live := range LiveStatuses {
		if s == live {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible
func (s ReminderStatus) IsTerminal() bool {
	return s == StatusDismissed || s == StatusCompleted
}

// DeliveryOutcome records what actually happened when a reminder was handed to
// the push transport. A reminder can be "sent" without reaching any device.
type DeliveryOutcome string

const (
	DeliveryPending               DeliveryOutcome = ""
	DeliveryPushed                DeliveryOutcome = "pushed"
	DeliveryPartial               DeliveryOutcome = "partial"
	DeliveryTransportFailed       DeliveryOutcome = "transport_failed"
	DeliveryNoSubscriptions       DeliveryOutcome = "no_subscriptions"
	DeliveryPushDisabled          DeliveryOutcome = "push_disabled"
	DeliveryTransportUnconfigured DeliveryOutcome = "transport_unconfigured"
)

// ChannelPush is the only delivery channel
const ChannelPush = "push"

// Reminder is one scheduled notification instance
type Reminder struct {
	ID                 string          `gorm:"primaryKey;size:36" json:"id"`
	TenantID           string          `gorm:"size:64;not null;index:idx_reminder_tenant_scheduled" json:"tenant_id"`
	Type               ReminderType    `gorm:"size:16;not null" json:"type"`
	ForeignID          string          `gorm:"size:128;not null" json:"foreign_id"`
	ScheduledFor       time.Time       `gorm:"not null;index:idx_reminder_tenant_scheduled;index:idx_reminder_status_scheduled" json:"scheduled_for"`
	SnoozedUntil       *time.Time      `json:"snoozed_until,omitempty"`
	Status             ReminderStatus  `gorm:"size:16;not null;index:idx_reminder_status_scheduled" json:"status"`
	SentAt             *time.Time      `json:"sent_at,omitempty"`
	DeliveredAt        *time.Time      `json:"delivered_at,omitempty"`
	CompletionLoggedAt *time.Time      `json:"completion_logged_at,omitempty"`
	DeliveryOutcome    DeliveryOutcome `gorm:"size:32" json:"delivery_outcome,omitempty"`
	Title              string          `gorm:"size:255;not null" json:"title"`
	Message            string          `gorm:"type:text" json:"message"`
	Channel            string          `gorm:"size:16;not null" json:"channel"`
	// Metadata is AES-GCM ciphertext (base64) when MetadataEncrypted is set,
	// plain JSON otherwise. It is never exposed directly.
	Metadata          string                `gorm:"type:text" json:"-"`
	MetadataEncrypted bool                  `gorm:"not null" json:"-"`
	Interactions      []ReminderInteraction `gorm:"foreignKey:ReminderID" json:"interactions"`
	CreatedAt         time.Time             `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time             `gorm:"not null" json:"updated_at"`
}

// DedupKey identifies "the same logical reminder"
type DedupKey struct {
	TenantID  string
	Type      ReminderType
	ForeignID string
}

func (r *Reminder) Key() DedupKey {
	return DedupKey{TenantID: r.TenantID, Type: r.Type, ForeignID: r.ForeignID}
}

// BeforeCreate fills the identity and lifecycle defaults
func (r *Reminder) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = StatusScheduled
	}
	if r.Channel == "" {
		r.Channel = ChannelPush
	}
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = now
	}
	return nil
}

// TableName specifies the table name for the Reminder model
func (Reminder) TableName() string {
	return "reminder"
}

// InteractionAction is a recorded user or system action on a reminder
type InteractionAction string

const (
	ActionSent          InteractionAction = "sent"
	ActionDelivered     InteractionAction = "delivered"
	ActionSnoozed       InteractionAction = "snoozed"
	ActionDismissed     InteractionAction = "dismissed"
	ActionCompleted     InteractionAction = "completed"
	ActionAutoCompleted InteractionAction = "auto_completed"
)

// ClientActions are the actions a client may record
var ClientActions = []InteractionAction{ActionDelivered, ActionSnoozed, ActionDismissed, ActionCompleted}

// ParseClientAction validates an action coming from a client
func ParseClientAction(raw string) (InteractionAction, bool) {
	for _, a := range ClientActions {
		if string(a) == raw {
			return a, true
		}
	}
	return "", false
}

// ReminderInteraction is one append-only audit entry
type ReminderInteraction struct {
	ID         uint              `gorm:"primaryKey;autoIncrement" json:"-"`
	ReminderID string            `gorm:"size:36;not null;index" json:"-"`
	Action     InteractionAction `gorm:"size:20;not null" json:"action"`
	ActedAt    time.Time         `gorm:"not null;index" json:"acted_at"`
	Metadata   datatypes.JSON    `json:"metadata,omitempty"`
}

// TableName specifies the table name for the ReminderInteraction model
func (ReminderInteraction) TableName() string {
	return "reminder_interaction"
}
