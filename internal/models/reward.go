package models

import "time"

// RewardType classifies how loyalty points were earned.
type RewardType string

// Reward types.
const (
	// RewardTypePurchase is earned on card purchase/mint.
	RewardTypePurchase RewardType = "purchase"
	// RewardTypeRecharge is earned on card top-up.
	RewardTypeRecharge RewardType = "recharge"
	// RewardTypeEngagement is a flat one-time bonus (e.g. first wallet bind).
	RewardTypeEngagement RewardType = "engagement"
)

// Reward is an immutable loyalty point grant.
type Reward struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"`    // Earning user.
	User   *User  `gorm:"foreignKey:UserID"` // User record.

	Points int64      `gorm:"not null"`                 // Points granted; never negative.
	Type   RewardType `gorm:"type:text;not null;index"` // Earning reason.

	LedgerEntryID *uint64 `gorm:"index"` // Originating ledger entry, if any.

	ExpiresAt *time.Time `gorm:"index"`                  // Optional point expiry.
	Expired   bool       `gorm:"not null;default:false"` // Set by the expiry sweep.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
