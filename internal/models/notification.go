package models

import "time"

// Notification is a user-facing event record written by the notifier.
//
// Notifications are best-effort: a failed write is logged and never fails
// the financial operation that produced it.
type Notification struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"` // Recipient user.

	Type    string `gorm:"type:text;not null"` // Event kind, e.g. "recharge".
	Title   string `gorm:"type:text;not null"` // Short headline.
	Message string `gorm:"type:text"`          // Body text.

	GiftCardID *uint64 `gorm:"index"` // Related card, if any.

	Read bool `gorm:"not null;default:false"` // Whether the user has seen it.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp.
}
