package handlers

import (
	"crypto/rand"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	dbutil "github.com/giftvault/giftvault/internal/db"
	"github.com/giftvault/giftvault/internal/ledger"
	"github.com/giftvault/giftvault/internal/models"
)

// GiftCardHandler handles admin operations for gift cards.
type GiftCardHandler struct {
	db  *gorm.DB
	svc *ledger.Service
}

// NewGiftCardHandler wires a gift card handler with its dependencies.
func NewGiftCardHandler(db *gorm.DB, svc *ledger.Service) *GiftCardHandler {
	return &GiftCardHandler{db: db, svc: svc}
}

// parseID parses the :id path parameter.
func parseID(c *gin.Context) (uint64, bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// writeLedgerError maps ledger errors to HTTP responses.
func writeLedgerError(c *gin.Context, err error) {
	if reason, ok := ledger.PolicyReason(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "reason": reason})
		return
	}
	if errors.Is(err, ledger.ErrCardNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "card not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "operation failed"})
}

// createGiftCardRequest captures the payload for creating a single card.
type createGiftCardRequest struct {
	Serial           string  `json:"serial"`        // Optional serial; generated when empty.
	MerchantID       *uint64 `json:"merchant_id"`   // Issuing merchant, if any.
	OwnerID          *uint64 `json:"owner_id"`      // Optional initial owner.
	FiatCents        int64   `json:"fiat_cents"`    // Initial fiat value in cents.
	CryptoMicros     int64   `json:"crypto_micros"` // Initial crypto value in micro-units.
	IsRechargeable   bool    `json:"is_rechargeable"`
	IsPrivacyEnabled bool    `json:"is_privacy_enabled"`
	ValidDays        *int    `json:"valid_days"` // Optional validity period in days.
}

// expiryFromValidDays converts an optional day count into a timestamp.
func expiryFromValidDays(validDays *int) (*time.Time, bool) {
	if validDays == nil || *validDays == 0 {
		return nil, true
	}
	if *validDays < 0 {
		return nil, false
	}
	exp := time.Now().UTC().AddDate(0, 0, *validDays)
	return &exp, true
}

// Create validates input and mints a new gift card.
func (h *GiftCardHandler) Create(c *gin.Context) {
	var body createGiftCardRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	expiresAt, okDays := expiryFromValidDays(body.ValidDays)
	if !okDays {
		c.JSON(http.StatusBadRequest, gin.H{"error": "valid_days cannot be negative"})
		return
	}

	card, _, errMint := h.svc.Mint(c.Request.Context(), ledger.MintParams{
		MerchantID:       body.MerchantID,
		OwnerID:          body.OwnerID,
		Serial:           body.Serial,
		ExpiresAt:        expiresAt,
		FiatCents:        body.FiatCents,
		CryptoMicros:     body.CryptoMicros,
		IsRechargeable:   body.IsRechargeable,
		IsPrivacyEnabled: body.IsPrivacyEnabled,
	})
	if errMint != nil {
		writeLedgerError(c, errMint)
		return
	}
	c.JSON(http.StatusCreated, h.formatCard(card))
}

// batchCreateGiftCardRequest captures the payload for batch card creation.
type batchCreateGiftCardRequest struct {
	Count            int     `json:"count"`         // Number of cards to create.
	SerialPrefix     string  `json:"serial_prefix"` // Optional serial prefix.
	MerchantID       *uint64 `json:"merchant_id"`   // Issuing merchant, if any.
	FiatCents        int64   `json:"fiat_cents"`    // Value assigned to each card.
	CryptoMicros     int64   `json:"crypto_micros"`
	IsRechargeable   bool    `json:"is_rechargeable"`
	IsPrivacyEnabled bool    `json:"is_privacy_enabled"`
	ValidDays        *int    `json:"valid_days"` // Optional validity period in days.
}

// BatchCreate mints multiple gift cards with generated serials.
func (h *GiftCardHandler) BatchCreate(c *gin.Context) {
	var body batchCreateGiftCardRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.Count <= 0 || body.Count > 1000 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "count must be between 1 and 1000"})
		return
	}
	expiresAt, okDays := expiryFromValidDays(body.ValidDays)
	if !okDays {
		c.JSON(http.StatusBadRequest, gin.H{"error": "valid_days cannot be negative"})
		return
	}
	prefix := strings.TrimSpace(body.SerialPrefix)

	created := make([]gin.H, 0, body.Count)
	for i := 0; i < body.Count; i++ {
		serial, errSerial := generateSerial(16)
		if errSerial != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "serial generation failed"})
			return
		}
		card, _, errMint := h.svc.Mint(c.Request.Context(), ledger.MintParams{
			MerchantID:       body.MerchantID,
			Serial:           prefix + serial,
			ExpiresAt:        expiresAt,
			FiatCents:        body.FiatCents,
			CryptoMicros:     body.CryptoMicros,
			IsRechargeable:   body.IsRechargeable,
			IsPrivacyEnabled: body.IsPrivacyEnabled,
		})
		if errMint != nil {
			writeLedgerError(c, errMint)
			return
		}
		created = append(created, h.formatCard(card))
	}
	c.JSON(http.StatusCreated, gin.H{"gift_cards": created})
}

// List returns gift cards filtered by query parameters.
func (h *GiftCardHandler) List(c *gin.Context) {
	var (
		serialQ   = strings.TrimSpace(c.Query("serial"))
		statusQ   = strings.TrimSpace(c.Query("status"))
		ownerQ    = strings.TrimSpace(c.Query("owner"))
		merchantQ = strings.TrimSpace(c.Query("merchant_id"))
	)

	q := h.db.WithContext(c.Request.Context()).
		Model(&models.GiftCard{}).
		Preload("Merchant")
	if serialQ != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+serialQ+"%")
		q = q.Where(dbutil.CaseInsensitiveLikeExpr(h.db, "serial"), pattern)
	}
	if statusQ != "" {
		q = q.Where("status = ?", statusQ)
	}
	if ownerQ != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+ownerQ+"%")
		q = q.Joins("LEFT JOIN users ON users.id = gift_cards.owner_id").
			Where(dbutil.CaseInsensitiveLikeExpr(h.db, "users.username"), pattern)
	}
	if merchantQ != "" {
		if merchantID, errParse := strconv.ParseUint(merchantQ, 10, 64); errParse == nil {
			q = q.Where("merchant_id = ?", merchantID)
		}
	}

	var rows []models.GiftCard
	if errFind := q.Order("created_at DESC").Limit(500).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list gift cards failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, h.formatCard(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"gift_cards": out})
}

// Get fetches a single card with a ledger replay audit. The replayed balance
// must match the stored balance on a healthy card.
func (h *GiftCardHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	card, errGet := h.svc.Get(c.Request.Context(), id)
	if errGet != nil {
		writeLedgerError(c, errGet)
		return
	}

	replayFiat, replayCrypto, errReplay := h.svc.ReplayBalance(c.Request.Context(), id)
	if errReplay != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ledger replay failed"})
		return
	}

	resp := h.formatCard(card)
	resp["replay"] = gin.H{
		"fiat_cents":    replayFiat,
		"crypto_micros": replayCrypto,
		"consistent":    replayFiat == card.BalanceFiatCents && replayCrypto == card.BalanceCryptoMicros,
	}
	c.JSON(http.StatusOK, resp)
}

// Ledger returns the full entry history for a card.
func (h *GiftCardHandler) Ledger(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	entries, errEntries := h.svc.Entries(c.Request.Context(), id)
	if errEntries != nil {
		writeLedgerError(c, errEntries)
		return
	}
	out := make([]gin.H, 0, len(entries))
	for _, entry := range entries {
		out = append(out, gin.H{
			"id":                   entry.ID,
			"request_id":           entry.RequestID,
			"user_id":              entry.UserID,
			"type":                 entry.Type,
			"status":               entry.Status,
			"amount_fiat_cents":    entry.AmountFiatCents,
			"amount_crypto_micros": entry.AmountCryptoMicros,
			"idempotency_key":      entry.IdempotencyKey,
			"metadata":             entry.Metadata,
			"created_at":           entry.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"entries": out})
}

// setEnabledRequest captures the payload for toggling a card.
type setEnabledRequest struct {
	IsEnabled bool `json:"is_enabled"`
}

// SetEnabled toggles the administrative disable flag on a card.
func (h *GiftCardHandler) SetEnabled(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var body setEnabledRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.GiftCard{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_enabled": body.IsEnabled,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// formatCard maps a gift card model into a response payload.
func (h *GiftCardHandler) formatCard(card *models.GiftCard) gin.H {
	item := gin.H{
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
	if card.Merchant != nil {
		item["merchant"] = gin.H{
			"id":   card.Merchant.ID,
			"name": card.Merchant.Name,
		}
	}
	return item
}

// generateSerial returns a random uppercase token of the requested length.
func generateSerial(length int) (string, error) {
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, length)
	for i, b := range buf {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(out), nil
}
