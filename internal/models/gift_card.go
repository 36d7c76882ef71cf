package models

import "time"

// CardStatus is the derived lifecycle state of a gift card.
type CardStatus string

// Card lifecycle states. Status is derived from balance and expiry and is
// never written directly by clients.
const (
	// CardStatusActive marks a card with positive balance and unexpired.
	CardStatusActive CardStatus = "active"
	// CardStatusEmpty marks a card whose fiat balance reached zero.
	CardStatusEmpty CardStatus = "empty"
	// CardStatusExpired marks a card past its expiry; terminal.
	CardStatusExpired CardStatus = "expired"
)

// GiftCard represents a discrete, non-fungible store-credit token.
//
// Balances are fixed-point integers: fiat in cents, crypto in micro-units.
// They are tracked independently and always updated together from
// caller-supplied amounts; neither is recomputed from an exchange rate.
type GiftCard struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Serial string `gorm:"type:text;not null;uniqueIndex"` // Public card serial.

	MerchantID *uint64   `gorm:"index"`                 // Issuing merchant; nil for peer-issued cards.
	Merchant   *Merchant `gorm:"foreignKey:MerchantID"` // Merchant record.
	OwnerID    *uint64   `gorm:"index"`                 // Owning user, when purchased.
	ParentID   *uint64   `gorm:"index"`                 // Card this one was split from, if any.

	BalanceFiatCents    int64 `gorm:"not null;default:0"` // Remaining fiat balance in cents.
	BalanceCryptoMicros int64 `gorm:"not null;default:0"` // Remaining crypto balance in micro-units.

	OriginalFiatCents    int64 `gorm:"not null"` // Fiat value at mint; immutable.
	OriginalCryptoMicros int64 `gorm:"not null"` // Crypto value at mint; immutable.

	IsRechargeable   bool `gorm:"not null;default:false"` // Set at mint; immutable thereafter.
	IsPrivacyEnabled bool `gorm:"not null;default:false"` // Spends require a verified proof artifact.

	IsEnabled bool `gorm:"not null;default:true"` // Administrative disable flag.

	ExpiresAt *time.Time // Expiry timestamp; nil cards never expire.

	Status CardStatus `gorm:"type:text;not null;default:'active';index"` // Last derived status.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
