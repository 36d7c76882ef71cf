package models

import (
	"time"

	"gorm.io/datatypes"
)

// EntryType classifies a ledger entry.
type EntryType string

// Ledger entry types.
const (
	// EntryTypePurchase records the initial value placed on a card at mint.
	EntryTypePurchase EntryType = "purchase"
	// EntryTypeRecharge records a top-up of an existing card.
	EntryTypeRecharge EntryType = "recharge"
	// EntryTypeRedeem records a spend/partial redemption.
	EntryTypeRedeem EntryType = "redeem"
	// EntryTypeRefund records change credited off-card to the user account.
	EntryTypeRefund EntryType = "refund"
)

// EntryStatus tracks ledger entry progress.
type EntryStatus string

// Ledger entry statuses. Entries are immutable once completed or failed.
const (
	EntryStatusPending    EntryStatus = "pending"
	EntryStatusProcessing EntryStatus = "processing"
	EntryStatusCompleted  EntryStatus = "completed"
	EntryStatusFailed     EntryStatus = "failed"
)

// LedgerEntry is one row of the append-only card ledger.
//
// Balance changes are derived by applying entries in order, so the set of
// completed entries for a card must replay to its current balance. Entries
// are created in the same database transaction as the balance update.
type LedgerEntry struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	RequestID string `gorm:"type:text;not null;uniqueIndex"` // Server-generated entry UUID.

	GiftCardID uint64    `gorm:"not null;index"`        // Affected card.
	GiftCard   *GiftCard `gorm:"foreignKey:GiftCardID"` // Card record.
	UserID     *uint64   `gorm:"index"`                 // Acting user, when known.

	Type   EntryType   `gorm:"type:text;not null;index"` // Operation kind.
	Status EntryStatus `gorm:"type:text;not null;index"` // Entry progress.

	AmountFiatCents    int64 `gorm:"not null"` // Signed fiat delta in cents.
	AmountCryptoMicros int64 `gorm:"not null"` // Signed crypto delta in micro-units.

	IdempotencyKey *string `gorm:"type:text;index"` // Client-supplied retry key, if any.

	Metadata datatypes.JSON `gorm:"type:jsonb"` // Operation detail (change mode, child card, reason).

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp.
}
