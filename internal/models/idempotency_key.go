package models

import (
	"time"

	"gorm.io/datatypes"
)

// IdempotencyKey records a completed mutation keyed by a client-supplied
// retry token. Replaying the same key returns the stored response instead
// of re-applying the operation.
type IdempotencyKey struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Key       string `gorm:"type:text;not null;uniqueIndex:idx_idem_key_op"` // Client-supplied key.
	Operation string `gorm:"type:text;not null;uniqueIndex:idx_idem_key_op"` // Operation scope including user and card, e.g. "recharge:42:7".

	Response datatypes.JSON `gorm:"type:jsonb"` // Recorded response body.

	ExpiresAt time.Time `gorm:"not null;index"` // Keys are pruned after this.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
