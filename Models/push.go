package Models

import (
	"time"

	"gorm.io/gorm"
)

// PushSubscription is one registered Web Push endpoint for a user. Created by
// client registration, deleted by the dispatcher when delivery reports it gone.
type PushSubscription struct {
	gorm.Model
	UserID     uint       `json:"user_id" gorm:"index"`
	Endpoint   string     `json:"endpoint" gorm:"uniqueIndex;size:512"`
	P256dh     string     `json:"p256dh" gorm:"column:p256dh"`
	Auth       string     `json:"auth"`
	LastUsedAt *time.Time `json:"last_used_at"`
}

// Notification is an internal inbox record consumed by the UI.
type Notification struct {
	gorm.Model
	UserID   uint   `json:"user_id" gorm:"index"`
	Type     string `json:"type"`
	Title    string `json:"title"`
	EntityID uint   `json:"entity_id"`
	Read     bool   `json:"read" gorm:"default:false"`
}
