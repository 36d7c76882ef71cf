package models

import "time"

// User represents an end-user account that owns gift cards and rewards.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username string `gorm:"type:text;not null;uniqueIndex"` // Unique login name.
	Email    string `gorm:"type:text"`                      // Contact email.
	Password string `gorm:"type:text;not null"`             // Hashed password.

	WalletAddress *string `gorm:"type:text;uniqueIndex"` // Bound wallet address, unique across users.

	AccountBalanceCents int64 `gorm:"not null;default:0"` // Non-card balance credited by refunds.
	RewardPoints        int64 `gorm:"not null;default:0"` // Cumulative loyalty point total.

	TOTPSecret string `gorm:"type:text"` // TOTP secret when MFA is enrolled.

	Active   bool `gorm:"not null;default:true"`  // Whether the account is usable.
	Disabled bool `gorm:"not null;default:false"` // Administrative lockout flag.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
