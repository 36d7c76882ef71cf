package models

import "time"

// Merchant represents a store that issues gift cards.
type Merchant struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name     string `gorm:"type:text;not null;uniqueIndex"` // Display name.
	Category string `gorm:"type:text"`                      // Storefront category.

	IsEnabled bool `gorm:"not null;default:true"` // Whether new cards may be issued.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
