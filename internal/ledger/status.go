package ledger

import (
	"time"

	"github.com/giftvault/giftvault/internal/models"
)

// DeriveStatus computes a card's lifecycle state from its fiat balance and
// expiry. It is a pure function: expiry dominates balance, a zero balance
// means empty, anything else is active.
func DeriveStatus(balanceFiatCents int64, expiresAt *time.Time, now time.Time) models.CardStatus {
	if expiresAt != nil && now.After(*expiresAt) {
		return models.CardStatusExpired
	}
	if balanceFiatCents <= 0 {
		return models.CardStatusEmpty
	}
	return models.CardStatusActive
}

// refreshStatus rederives and stores the status on the card struct,
// reporting whether it changed.
func refreshStatus(card *models.GiftCard, now time.Time) bool {
	next := DeriveStatus(card.BalanceFiatCents, card.ExpiresAt, now)
	if card.Status == next {
		return false
	}
	card.Status = next
	return true
}
