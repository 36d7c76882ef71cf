package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/giftvault/giftvault/internal/models"
)

// DashboardHandler serves aggregate storefront statistics.
type DashboardHandler struct {
	db *gorm.DB
}

// NewDashboardHandler constructs a DashboardHandler.
func NewDashboardHandler(db *gorm.DB) *DashboardHandler {
	return &DashboardHandler{db: db}
}

// statusCount is one row of the cards-by-status aggregate.
type statusCount struct {
	Status models.CardStatus `json:"status"`
	Count  int64             `json:"count"`
}

// Overview returns card counts, outstanding balances and reward totals.
func (h *DashboardHandler) Overview(c *gin.Context) {
	ctx := c.Request.Context()

	var byStatus []statusCount
	if errFind := h.db.WithContext(ctx).Model(&models.GiftCard{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Find(&byStatus).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "aggregate cards failed"})
		return
	}

	var outstanding struct {
		FiatCents    int64
		CryptoMicros int64
	}
	if errSum := h.db.WithContext(ctx).Model(&models.GiftCard{}).
		Select("COALESCE(SUM(balance_fiat_cents), 0) AS fiat_cents, COALESCE(SUM(balance_crypto_micros), 0) AS crypto_micros").
		Where("status = ?", models.CardStatusActive).
		Scan(&outstanding).Error; errSum != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "aggregate balances failed"})
		return
	}

	var userCount int64
	if errCount := h.db.WithContext(ctx).Model(&models.User{}).Count(&userCount).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count users failed"})
		return
	}

	var rewardPoints int64
	if errSum := h.db.WithContext(ctx).Model(&models.Reward{}).
		Select("COALESCE(SUM(points), 0)").
		Where("expired = ?", false).
		Scan(&rewardPoints).Error; errSum != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "aggregate rewards failed"})
		return
	}

	var entryCount int64
	if errCount := h.db.WithContext(ctx).Model(&models.LedgerEntry{}).Count(&entryCount).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count entries failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cards_by_status": byStatus,
		"outstanding": gin.H{
			"fiat_cents":    outstanding.FiatCents,
			"crypto_micros": outstanding.CryptoMicros,
		},
		"users":                userCount,
		"active_reward_points": rewardPoints,
		"ledger_entries":       entryCount,
	})
}
