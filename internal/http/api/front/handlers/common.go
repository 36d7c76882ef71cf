package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/giftvault/giftvault/internal/models"
)

// getUserID extracts the user ID from gin context.
func getUserID(c *gin.Context) uint64 {
	val, exists := c.Get("userID")
	if !exists {
		return 0
	}
	switch v := val.(type) {
	case uint64:
		return v
	case int64:
		return uint64(v)
	case uint:
		return uint64(v)
	case int:
		return uint64(v)
	default:
		return 0
	}
}

// parseIDParam parses the :id path parameter, writing a 400 on failure.
func parseIDParam(c *gin.Context) (uint64, bool) {
	id, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// giftCardView builds the card response payload shared by card endpoints.
func giftCardView(card *models.GiftCard) gin.H {
	if card == nil {
		return nil
	}
	return gin.H{
		"id":                     card.ID,
		"serial":                 card.Serial,
		"merchant_id":            card.MerchantID,
		"owner_id":               card.OwnerID,
		"parent_id":              card.ParentID,
		"balance_fiat_cents":     card.BalanceFiatCents,
		"balance_crypto_micros":  card.BalanceCryptoMicros,
		"original_fiat_cents":    card.OriginalFiatCents,
		"original_crypto_micros": card.OriginalCryptoMicros,
		"is_rechargeable":        card.IsRechargeable,
		"is_privacy_enabled":     card.IsPrivacyEnabled,
		"is_enabled":             card.IsEnabled,
		"expires_at":             card.ExpiresAt,
		"status":                 card.Status,
		"created_at":             card.CreatedAt,
		"updated_at":             card.UpdatedAt,
	}
}

// ledgerEntryView builds the ledger entry response payload.
func ledgerEntryView(entry *models.LedgerEntry) gin.H {
	if entry == nil {
		return nil
	}
	return gin.H{
		"id":                   entry.ID,
		"request_id":           entry.RequestID,
		"gift_card_id":         entry.GiftCardID,
		"user_id":              entry.UserID,
		"type":                 entry.Type,
		"status":               entry.Status,
		"amount_fiat_cents":    entry.AmountFiatCents,
		"amount_crypto_micros": entry.AmountCryptoMicros,
		"metadata":             entry.Metadata,
		"created_at":           entry.CreatedAt,
	}
}
