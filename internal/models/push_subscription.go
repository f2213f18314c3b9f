package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PushSubscription holds the Web Push transport keys of one tenant device
type PushSubscription struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	TenantID  string    `gorm:"size:64;not null;index" json:"tenant_id"`
	Endpoint  string    `gorm:"size:1024;not null;uniqueIndex" json:"endpoint"`
	P256dh    string    `gorm:"size:255;not null" json:"-"`
	Auth      string    `gorm:"size:255;not null" json:"-"`
	UserAgent string    `gorm:"size:255" json:"user_agent,omitempty"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// BeforeCreate hook is called before creating a new subscription
func (s *PushSubscription) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = now
	}
	return nil
}

// TableName specifies the table name for the PushSubscription model
func (PushSubscription) TableName() string {
	return "push_subscription"
}

// PushSubscriptionKeys mirrors the browser PushSubscription.toJSON() keys
type PushSubscriptionKeys struct {
	P256dh string `json:"p256dh" binding:"required"`
	Auth   string `json:"auth" binding:"required"`
}

// RegisterPushSubscriptionRequest is the body of a subscription registration
type RegisterPushSubscriptionRequest struct {
	Endpoint string               `json:"endpoint" binding:"required,url"`
	Keys     PushSubscriptionKeys `json:"keys" binding:"required"`
}

// UnregisterPushSubscriptionRequest identifies the subscription to remove
type UnregisterPushSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}
