package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/giftvault/giftvault/internal/ledger"
	"github.com/giftvault/giftvault/internal/models"
	"github.com/giftvault/giftvault/internal/reward"
	"github.com/giftvault/giftvault/internal/util"
)

// WalletHandler handles wallet binding endpoints.
type WalletHandler struct {
	db       *gorm.DB
	rewards  *reward.Accruer
	notifier ledger.Notifier
}

// NewWalletHandler constructs a WalletHandler.
func NewWalletHandler(db *gorm.DB, rewards *reward.Accruer, notifier ledger.Notifier) *WalletHandler {
	return &WalletHandler{db: db, rewards: rewards, notifier: notifier}
}

// bindWalletRequest defines the request body for wallet binding.
type bindWalletRequest struct {
	Address string `json:"address"`
}

// Bind attaches a wallet address to the user's account. The first successful
// bind grants a one-time engagement bonus.
func (h *WalletHandler) Bind(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body bindWalletRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	address := util.NormalizeWallet(body.Address)
	if address == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing address"})
		return
	}

	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).First(&user, userID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	firstBind := user.WalletAddress == nil

	var taken models.User
	if errCheck := h.db.WithContext(c.Request.Context()).
		Where("wallet_address = ? AND id <> ?", address, userID).
		First(&taken).Error; errCheck == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "wallet already bound to another account"})
		return
	} else if !errors.Is(errCheck, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	if errUpdate := h.db.WithContext(c.Request.Context()).Model(&user).Updates(map[string]any{
		"wallet_address": address,
		"updated_at":     time.Now().UTC(),
	}).Error; errUpdate != nil {
		if strings.Contains(strings.ToLower(errUpdate.Error()), "unique") {
			c.JSON(http.StatusConflict, gin.H{"error": "wallet already bound to another account"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "bind wallet failed"})
		return
	}

	var bonus int64
	if firstBind && h.rewards != nil {
		granted, errAccrue := h.rewards.AccrueEngagement(c.Request.Context(), userID)
		if errAccrue != nil {
			log.WithError(errAccrue).WithField("user_id", userID).Warn("wallet bind bonus accrual failed")
		} else {
			bonus = granted
		}
	}
	if h.notifier != nil {
		h.notifier.Notify(c.Request.Context(), userID, "wallet_bind", "Wallet bound",
			"Wallet "+util.MaskWallet(address)+" is now linked to your account.", nil)
	}

	c.JSON(http.StatusOK, gin.H{
		"wallet_address": util.MaskWallet(address),
		"bonus_points":   bonus,
	})
}
