package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/giftvault/giftvault/internal/idempotency"
	"github.com/giftvault/giftvault/internal/ledger"
	"github.com/giftvault/giftvault/internal/models"
	"github.com/giftvault/giftvault/internal/settings"
)

// GiftCardHandler handles gift card endpoints for users.
type GiftCardHandler struct {
	db   *gorm.DB
	svc  *ledger.Service
	idem idempotency.Store
}

// NewGiftCardHandler constructs a GiftCardHandler.
func NewGiftCardHandler(db *gorm.DB, svc *ledger.Service, idem idempotency.Store) *GiftCardHandler {
	return &GiftCardHandler{db: db, svc: svc, idem: idem}
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
	if errors.Is(err, ledger.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "operation failed"})
}

// idempotencyTTL returns the configured replay window.
func idempotencyTTL() time.Duration {
	hours := settings.IntValue(settings.IdempotencyTTLHoursKey, settings.DefaultIdempotencyTTLHours)
	return time.Duration(hours) * time.Hour
}

// idemScope namespaces an idempotency record by the authenticated user and
// target card. A key replays only for the same user and card, never across
// principals.
func idemScope(operation string, userID, cardID uint64) string {
	return operation + ":" + strconv.FormatUint(userID, 10) + ":" + strconv.FormatUint(cardID, 10)
}

// replayIdempotent serves a recorded response when the request carries a
// previously seen Idempotency-Key. Returns true when the request is handled.
func (h *GiftCardHandler) replayIdempotent(c *gin.Context, operation, key string) bool {
	if h.idem == nil || key == "" {
		return false
	}
	raw, hit, errGet := h.idem.Get(c.Request.Context(), operation, key)
	if errGet != nil {
		log.WithError(errGet).WithField("operation", operation).Warn("idempotency lookup failed")
		return false
	}
	if !hit {
		return false
	}
	c.Header("Idempotent-Replay", "true")
	c.Data(http.StatusOK, "application/json", raw)
	return true
}

// recordIdempotent stores the response body for later replays.
func (h *GiftCardHandler) recordIdempotent(c *gin.Context, operation, key string, response gin.H) {
	if h.idem == nil || key == "" {
		return
	}
	if errPut := h.idem.Put(c.Request.Context(), operation, key, response, idempotencyTTL()); errPut != nil {
		log.WithError(errPut).WithField("operation", operation).Warn("idempotency record failed")
	}
}

// idempotencyKeyHeader reads and validates the Idempotency-Key header.
// The bool result is false when the header is present but unusable.
func idempotencyKeyHeader(c *gin.Context) (string, bool) {
	key := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if key == "" {
		return "", true
	}
	if !idempotency.ValidKey(key) {
		return "", false
	}
	return key, true
}

// loadOwnedCard fetches a card and verifies ownership.
func (h *GiftCardHandler) loadOwnedCard(c *gin.Context, cardID, userID uint64) (*models.GiftCard, bool) {
	card, errGet := h.svc.Get(c.Request.Context(), cardID)
	if errGet != nil {
		writeLedgerError(c, errGet)
		return nil, false
	}
	if card.OwnerID == nil || *card.OwnerID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "card not found"})
		return nil, false
	}
	return card, true
}

// List returns the user's gift cards, optionally filtered by status.
func (h *GiftCardHandler) List(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	query := h.db.WithContext(c.Request.Context()).Where("owner_id = ?", userID)
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		query = query.Where("status = ?", status)
	}

	var cards []models.GiftCard
	if errFind := query.Order("created_at DESC, id DESC").Find(&cards).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query cards failed"})
		return
	}

	resp := make([]gin.H, 0, len(cards))
	for i := range cards {
		resp = append(resp, giftCardView(&cards[i]))
	}
	c.JSON(http.StatusOK, gin.H{"cards": resp})
}

// Get returns one of the user's cards with a freshly derived status.
func (h *GiftCardHandler) Get(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	cardID, okParse := parseIDParam(c)
	if !okParse {
		return
	}

	card, ok := h.loadOwnedCard(c, cardID, userID)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"card": giftCardView(card)})
}

// purchaseRequest defines the request body for buying a new card.
type purchaseRequest struct {
	MerchantID       *uint64 `json:"merchant_id"`
	FiatCents        int64   `json:"fiat_cents"`
	CryptoMicros     int64   `json:"crypto_micros"`
	IsRechargeable   bool    `json:"is_rechargeable"`
	IsPrivacyEnabled bool    `json:"is_privacy_enabled"`
	ValidDays        int     `json:"valid_days"`
}

// Purchase mints a new card owned by the current user.
func (h *GiftCardHandler) Purchase(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body purchaseRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	if body.MerchantID != nil {
		var merchant models.Merchant
		if errFind := h.db.WithContext(c.Request.Context()).First(&merchant, *body.MerchantID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "merchant not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query merchant failed"})
			return
		}
		if !merchant.IsEnabled {
			c.JSON(http.StatusBadRequest, gin.H{"error": "merchant is disabled"})
			return
		}
	}

	var expiresAt *time.Time
	if body.ValidDays > 0 {
		exp := time.Now().UTC().AddDate(0, 0, body.ValidDays)
		expiresAt = &exp
	}

	card, points, errMint := h.svc.Mint(c.Request.Context(), ledger.MintParams{
		MerchantID:       body.MerchantID,
		OwnerID:          &userID,
		ExpiresAt:        expiresAt,
		FiatCents:        body.FiatCents,
		CryptoMicros:     body.CryptoMicros,
		IsRechargeable:   body.IsRechargeable,
		IsPrivacyEnabled: body.IsPrivacyEnabled,
		AwardPurchase:    true,
	})
	if errMint != nil {
		writeLedgerError(c, errMint)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"card":          giftCardView(card),
		"reward_points": points,
	})
}

// rechargeRequest defines the request body for topping up a card.
type rechargeRequest struct {
	FiatCents    int64 `json:"fiat_cents"`
	CryptoMicros int64 `json:"crypto_micros"`
}

// Recharge adds value to one of the user's cards.
func (h *GiftCardHandler) Recharge(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	cardID, okParse := parseIDParam(c)
	if !okParse {
		return
	}

	key, okKey := idempotencyKeyHeader(c)
	if !okKey {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid idempotency key"})
		return
	}
	scope := idemScope("recharge", userID, cardID)
	if h.replayIdempotent(c, scope, key) {
		return
	}

	var body rechargeRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	if _, ok := h.loadOwnedCard(c, cardID, userID); !ok {
		return
	}

	var idemKey *string
	if key != "" {
		idemKey = &key
	}
	result, errRecharge := h.svc.Recharge(c.Request.Context(), ledger.RechargeParams{
		CardID:         cardID,
		UserID:         userID,
		FiatCents:      body.FiatCents,
		CryptoMicros:   body.CryptoMicros,
		IdempotencyKey: idemKey,
	})
	if errRecharge != nil {
		writeLedgerError(c, errRecharge)
		return
	}

	resp := gin.H{
		"card":          giftCardView(result.Card),
		"reward_points": result.RewardPoints,
	}
	h.recordIdempotent(c, scope, key, resp)
	c.JSON(http.StatusOK, resp)
}

// spendRequest defines the request body for spending from a card.
// An omitted change_mode defaults to "keep".
type spendRequest struct {
	FiatCents     int64  `json:"fiat_cents"`
	ChangeMode    string `json:"change_mode"`
	ProofArtifact string `json:"proof_artifact"`
}

// Spend debits a card and issues change per the requested mode.
func (h *GiftCardHandler) Spend(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	cardID, okParse := parseIDParam(c)
	if !okParse {
		return
	}

	key, okKey := idempotencyKeyHeader(c)
	if !okKey {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid idempotency key"})
		return
	}
	scope := idemScope("spend", userID, cardID)
	if h.replayIdempotent(c, scope, key) {
		return
	}

	var body spendRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	mode := ledger.ChangeMode(strings.TrimSpace(body.ChangeMode))
	if mode == "" {
		mode = ledger.ModeKeep
	}

	if _, ok := h.loadOwnedCard(c, cardID, userID); !ok {
		return
	}

	var idemKey *string
	if key != "" {
		idemKey = &key
	}
	result, errSpend := h.svc.Spend(c.Request.Context(), ledger.SpendParams{
		CardID:         cardID,
		UserID:         userID,
		FiatCents:      body.FiatCents,
		Mode:           mode,
		ProofArtifact:  body.ProofArtifact,
		IdempotencyKey: idemKey,
	})
	if errSpend != nil {
		writeLedgerError(c, errSpend)
		return
	}

	resp := gin.H{
		"card":              giftCardView(result.Card),
		"change_fiat_cents": result.ChangeFiatCents,
	}
	if result.NewCard != nil {
		resp["change_card"] = giftCardView(result.NewCard)
	}
	h.recordIdempotent(c, scope, key, resp)
	c.JSON(http.StatusOK, resp)
}

// Ledger returns the full transaction history for one of the user's cards.
func (h *GiftCardHandler) Ledger(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	cardID, okParse := parseIDParam(c)
	if !okParse {
		return
	}

	if _, ok := h.loadOwnedCard(c, cardID, userID); !ok {
		return
	}

	entries, errEntries := h.svc.Entries(c.Request.Context(), cardID)
	if errEntries != nil {
		writeLedgerError(c, errEntries)
		return
	}

	resp := make([]gin.H, 0, len(entries))
	for i := range entries {
		resp = append(resp, ledgerEntryView(&entries[i]))
	}
	c.JSON(http.StatusOK, gin.H{"entries": resp})
}
